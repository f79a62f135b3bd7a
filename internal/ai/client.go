// internal/ai/client.go
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chimeradev/chimera-navigator/config"
	"github.com/chimeradev/chimera-navigator/internal/logger"
)

var (
	customLog = logger.NewLogger()

	// ErrNotConfigured is returned by every operation when no API credential
	// was present at startup. Callers that tolerate degraded mode branch on
	// this (or check Enabled() up front).
	ErrNotConfigured = errors.New("ai delegate is not configured: missing API key")
)

const apologyReply = "I'm sorry, I couldn't generate a response. Please try again."

// Client is the stateless wrapper around the hosted large-language-model
// completion API. No retries, no caching, no streaming.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient builds the AI delegate from startup configuration. The returned
// client is usable even when unconfigured; every call then fails with
// ErrNotConfigured.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		apiKey:  cfg.OpenAIAPIKey,
		baseURL: strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		model:   cfg.OpenAIModel,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Enabled reports whether a credential is configured, so callers can branch
// on availability instead of catching ErrNotConfigured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type chatCompletionRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// complete performs one model completion call. jsonMode asks the API for a
// well-formed JSON object response.
func (c *Client) complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}

	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	}
	if jsonMode {
		reqBody.ResponseFormat = &respFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("malformed completion response (status %d): %w", res.StatusCode, err)
	}
	if res.StatusCode != http.StatusOK {
		msg := "unknown upstream error"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("completion API returned status %d: %s", res.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}

// FileAnalysis is the per-file summary produced by the model.
type FileAnalysis struct {
	Summary     string   `json:"summary"`
	Hooks       []string `json:"hooks"`
	Imports     []string `json:"imports"`
	Suggestions []string `json:"suggestions"`
}

const fileAnalysisSystemPrompt = `You are an expert React/TypeScript code analyst. ` +
	`Given one source file, respond with a JSON object of the shape ` +
	`{"summary": string, "hooks": string[], "imports": string[], "suggestions": string[]}. ` +
	`hooks lists every React hook used, imports lists every imported module, ` +
	`summary describes the component structure in two or three sentences.`

// AnalyzeFile asks the model to summarize one source file. Malformed model
// output never fails the call: the result degrades to an empty analysis.
func (c *Client) AnalyzeFile(ctx context.Context, filename, content string) (*FileAnalysis, error) {
	user := fmt.Sprintf("Analyze the following file %q:\n\n%s", filename, content)
	raw, err := c.complete(ctx, fileAnalysisSystemPrompt, user, true)
	if err != nil {
		return nil, err
	}

	analysis := &FileAnalysis{Hooks: []string{}, Imports: []string{}, Suggestions: []string{}}
	if err := json.Unmarshal([]byte(raw), analysis); err != nil {
		customLog.Warnf("AI: malformed analysis response for %s, falling back to empty result: %v", filename, err)
		return &FileAnalysis{Hooks: []string{}, Imports: []string{}, Suggestions: []string{}}, nil
	}
	if analysis.Hooks == nil {
		analysis.Hooks = []string{}
	}
	if analysis.Imports == nil {
		analysis.Imports = []string{}
	}
	if analysis.Suggestions == nil {
		analysis.Suggestions = []string{}
	}
	return analysis, nil
}

// SchemaModification is the result of a natural-language schema command.
type SchemaModification struct {
	Success        bool            `json:"success"`
	ModifiedSchema json.RawMessage `json:"modifiedSchema"`
	Explanation    string          `json:"explanation"`
}

const schemaModifySystemPrompt = `You modify JSON schemas describing React component trees. ` +
	`Given a schema and an instruction, respond with a JSON object of the shape ` +
	`{"success": boolean, "modifiedSchema": object, "explanation": string}. ` +
	`Apply only the requested change and explain what was changed.`

// ModifySchema applies a natural-language instruction to a schema object.
// Parse failures yield a fixed failure object rather than an error.
func (c *Client) ModifySchema(ctx context.Context, instruction string, schema json.RawMessage) (*SchemaModification, error) {
	user := fmt.Sprintf("Current schema:\n%s\n\nInstruction: %s", string(schema), instruction)
	raw, err := c.complete(ctx, schemaModifySystemPrompt, user, true)
	if err != nil {
		return nil, err
	}

	var mod SchemaModification
	if err := json.Unmarshal([]byte(raw), &mod); err != nil {
		customLog.Warnf("AI: malformed schema modification response: %v", err)
		return &SchemaModification{
			Success:     false,
			Explanation: "The model returned an unusable response; the schema was not modified.",
		}, nil
	}
	return &mod, nil
}

const reviewSystemPrompt = `You are a senior React engineer performing a code review. ` +
	`Given an aggregated project analysis, respond with a JSON object containing your review ` +
	`(overall assessment, strengths, issues, prioritized recommendations).`

// GenerateReview produces an unconstrained JSON review object from an
// aggregated project analysis.
func (c *Client) GenerateReview(ctx context.Context, analysisJSON json.RawMessage) (json.RawMessage, error) {
	raw, err := c.complete(ctx, reviewSystemPrompt, "Project analysis:\n"+string(analysisJSON), true)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(raw)) {
		customLog.Warnf("AI: review response was not valid JSON, defaulting to empty object")
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(raw), nil
}

const astPathSystemPrompt = `You map natural-language descriptions of UI elements to AST paths. ` +
	`Given a component source and an element description, respond with only the dotted AST path ` +
	`to that element (for example body.0.declarations.0.init.body), nothing else.`

// GenerateASTPath returns a single path-like string locating the described
// element, trimmed, defaulting to the empty string.
func (c *Client) GenerateASTPath(ctx context.Context, description, componentSource string) (string, error) {
	user := fmt.Sprintf("Component source:\n%s\n\nElement: %s", componentSource, description)
	raw, err := c.complete(ctx, astPathSystemPrompt, user, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}
