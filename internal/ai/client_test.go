// internal/ai/client_test.go
package ai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chimeradev/chimera-navigator/config"
	"github.com/chimeradev/chimera-navigator/internal/ai"
)

// fakeCompletionServer serves a canned chat-completion body for every request.
func fakeCompletionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "boom", "type": "server_error"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
}

func testClient(t *testing.T, baseURL string) *ai.Client {
	t.Helper()
	return ai.NewClient(&config.Config{
		OpenAIAPIKey:  "test-key",
		OpenAIBaseURL: baseURL,
		OpenAIModel:   "gpt-4o-mini",
	})
}

func TestClientNotConfigured(t *testing.T) {
	client := ai.NewClient(&config.Config{OpenAIBaseURL: "http://localhost:0"})
	assert.False(t, client.Enabled())

	_, err := client.AnalyzeFile(context.Background(), "App.tsx", "export default 1")
	assert.ErrorIs(t, err, ai.ErrNotConfigured)

	_, err = client.GenerateASTPath(context.Background(), "the submit button", "")
	assert.ErrorIs(t, err, ai.ErrNotConfigured)
}

func TestAnalyzeFile(t *testing.T) {
	t.Run("WellFormedResponse", func(t *testing.T) {
		server := fakeCompletionServer(t, http.StatusOK,
			`{"summary":"A form component.","hooks":["useState"],"imports":["react"],"suggestions":[]}`)
		defer server.Close()

		analysis, err := testClient(t, server.URL).AnalyzeFile(context.Background(), "Form.tsx", "...")
		assert.NoError(t, err)
		assert.Equal(t, "A form component.", analysis.Summary)
		assert.Equal(t, []string{"useState"}, analysis.Hooks)
		assert.Equal(t, []string{"react"}, analysis.Imports)
	})

	t.Run("MalformedResponseDegradesToEmpty", func(t *testing.T) {
		server := fakeCompletionServer(t, http.StatusOK, `this is not JSON`)
		defer server.Close()

		analysis, err := testClient(t, server.URL).AnalyzeFile(context.Background(), "Form.tsx", "...")
		assert.NoError(t, err)
		assert.Empty(t, analysis.Summary)
		assert.Empty(t, analysis.Hooks)
		assert.Empty(t, analysis.Imports)
	})

	t.Run("UpstreamErrorIsAnError", func(t *testing.T) {
		server := fakeCompletionServer(t, http.StatusInternalServerError, "")
		defer server.Close()

		_, err := testClient(t, server.URL).AnalyzeFile(context.Background(), "Form.tsx", "...")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ai.ErrNotConfigured)
	})
}

func TestModifySchema(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := fakeCompletionServer(t, http.StatusOK,
			`{"success":true,"modifiedSchema":{"title":"renamed"},"explanation":"Renamed the title."}`)
		defer server.Close()

		mod, err := testClient(t, server.URL).ModifySchema(context.Background(),
			"rename the title", json.RawMessage(`{"title":"old"}`))
		assert.NoError(t, err)
		assert.True(t, mod.Success)
		assert.JSONEq(t, `{"title":"renamed"}`, string(mod.ModifiedSchema))
	})

	t.Run("MalformedResponseIsFailureObject", func(t *testing.T) {
		server := fakeCompletionServer(t, http.StatusOK, `nonsense`)
		defer server.Close()

		mod, err := testClient(t, server.URL).ModifySchema(context.Background(),
			"rename the title", json.RawMessage(`{}`))
		assert.NoError(t, err)
		assert.False(t, mod.Success)
		assert.NotEmpty(t, mod.Explanation)
	})
}

func TestGenerateReview(t *testing.T) {
	t.Run("ValidJSONPassesThrough", func(t *testing.T) {
		server := fakeCompletionServer(t, http.StatusOK, `{"assessment":"solid"}`)
		defer server.Close()

		review, err := testClient(t, server.URL).GenerateReview(context.Background(), json.RawMessage(`{}`))
		assert.NoError(t, err)
		assert.JSONEq(t, `{"assessment":"solid"}`, string(review))
	})

	t.Run("InvalidJSONDefaultsToEmptyObject", func(t *testing.T) {
		server := fakeCompletionServer(t, http.StatusOK, `no json here`)
		defer server.Close()

		review, err := testClient(t, server.URL).GenerateReview(context.Background(), json.RawMessage(`{}`))
		assert.NoError(t, err)
		assert.Equal(t, "{}", string(review))
	})
}

func TestGenerateASTPathTrimsReply(t *testing.T) {
	server := fakeCompletionServer(t, http.StatusOK, "  body.0.declarations.0.init.body \n")
	defer server.Close()

	path, err := testClient(t, server.URL).GenerateASTPath(context.Background(), "the button", "source")
	assert.NoError(t, err)
	assert.Equal(t, "body.0.declarations.0.init.body", path)
}
