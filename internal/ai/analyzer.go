// internal/ai/analyzer.go
package ai

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/chimeradev/chimera-navigator/internal/domain"
	"github.com/chimeradev/chimera-navigator/internal/storage"
)

// componentSummary is one file's contribution to the aggregated AST data.
type componentSummary struct {
	Filename    string   `json:"filename"`
	Path        string   `json:"path"`
	Summary     string   `json:"summary"`
	Hooks       []string `json:"hooks"`
	Imports     []string `json:"imports"`
	Suggestions []string `json:"suggestions"`
}

// AnalyzeProject re-reads every stored file for the project, asks the model
// to summarize each one, and aggregates the results into the project's
// single AnalysisResult (created if absent, else replaced in place).
func (c *Client) AnalyzeProject(ctx context.Context, db *sql.DB, projectID int64) (*domain.AnalysisResult, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	files, err := storage.ListProjectFiles(ctx, db, projectID)
	if err != nil {
		return nil, err
	}

	components := []componentSummary{}
	hookSet := map[string]bool{}
	importSet := map[string]bool{}
	hooks := []string{}
	imports := []string{}

	for _, file := range files {
		analysis, err := c.AnalyzeFile(ctx, file.Filename, file.Content)
		if err != nil {
			return nil, fmt.Errorf("analysis of %s failed: %w", file.Filename, err)
		}

		components = append(components, componentSummary{
			Filename:    file.Filename,
			Path:        file.Path,
			Summary:     analysis.Summary,
			Hooks:       analysis.Hooks,
			Imports:     analysis.Imports,
			Suggestions: analysis.Suggestions,
		})
		for _, hook := range analysis.Hooks {
			if !hookSet[hook] {
				hookSet[hook] = true
				hooks = append(hooks, hook)
			}
		}
		for _, imp := range analysis.Imports {
			if !importSet[imp] {
				importSet[imp] = true
				imports = append(imports, imp)
			}
		}
	}

	astData, err := json.Marshal(map[string]any{"components": components})
	if err != nil {
		return nil, fmt.Errorf("failed to encode aggregated analysis: %w", err)
	}

	// The flattened dependency list is the deduplicated union of imports.
	dependencies := make([]string, len(imports))
	copy(dependencies, imports)

	return storage.UpsertAnalysisResult(ctx, db, projectID, astData, hooks, imports, dependencies, nil)
}
