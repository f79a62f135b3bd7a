// internal/ai/chat.go
package ai

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chimeradev/chimera-navigator/internal/storage"
)

const chatSystemPrompt = `You are the ChimeraNavigator assistant. You help users understand ` +
	`their uploaded React/TypeScript projects: component structure, hooks, imports and ` +
	`dependencies. Answer concisely and concretely.`

// ChatContext carries the identity the reply should be grounded to.
type ChatContext struct {
	UserID    int64
	ProjectID *int64
}

// Chat produces a free-text assistant reply. When the context names a
// project, its stored analysis is summarized into four counters and spliced
// into the system prompt as grounding. A missing analysis is not an error;
// the reply simply goes ungrounded.
func (c *Client) Chat(ctx context.Context, db *sql.DB, message string, chatCtx ChatContext) (string, error) {
	system := chatSystemPrompt

	if chatCtx.ProjectID != nil {
		result, err := storage.FindAnalysisResult(ctx, db, *chatCtx.ProjectID)
		switch {
		case err == nil:
			componentCount := countComponents(result.ASTData)
			nodeCount := countNodes(decodeJSON(result.ASTData))
			system += fmt.Sprintf(
				"\n\nProject context: %d components, %d hooks, %d imports, %d AST nodes.",
				componentCount, len(result.Hooks), len(result.Imports), nodeCount)
		case errors.Is(err, storage.ErrNoAnalysis):
			system += "\n\nProject context: no analysis has been run for this project yet."
		default:
			return "", err
		}
	}

	reply, err := c.complete(ctx, system, message, false)
	if err != nil {
		return "", err
	}
	if reply == "" {
		return apologyReply, nil
	}
	return reply, nil
}

func decodeJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	return value
}

// countComponents reads the top-level components list out of the aggregated
// AST data. The shape is only weakly enforced, so anything unexpected counts
// as zero.
func countComponents(astData json.RawMessage) int {
	value, ok := decodeJSON(astData).(map[string]any)
	if !ok {
		return 0
	}
	components, ok := value["components"].([]any)
	if !ok {
		return 0
	}
	return len(components)
}

// countNodes recursively counts every object and array element in a decoded
// JSON structure, the total-AST-node counter used for chat grounding.
func countNodes(value any) int {
	switch v := value.(type) {
	case map[string]any:
		count := 1
		for _, child := range v {
			count += countNodes(child)
		}
		return count
	case []any:
		count := 0
		for _, child := range v {
			count += countNodes(child)
		}
		return count
	case nil:
		return 0
	default:
		return 1
	}
}
