// api/handlers/ai_handler_test.go
package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/chimeradev/chimera-navigator/config"
	"github.com/chimeradev/chimera-navigator/internal/automation"
	"github.com/chimeradev/chimera-navigator/internal/domain"
)

func TestChatHistoryIsSelfOnly(t *testing.T) {
	env := setupTestServer(t, nil)
	assert := assert.New(t)

	user := env.createTestUser(t, "uid-history")
	other := env.createTestUser(t, "uid-history-other")

	var chats []domain.AiChat
	res := env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/ai/chat/%d", user.ID), "uid-history", nil, &chats)
	assert.Equal(http.StatusOK, res.StatusCode)
	assert.Empty(chats)

	res = env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/ai/chat/%d", other.ID), "uid-history", nil, nil)
	assert.Equal(http.StatusForbidden, res.StatusCode)
}

func TestModifySchema(t *testing.T) {
	upstream := fakeAIServer(t, http.StatusOK,
		`{"success":true,"modifiedSchema":{"title":"renamed"},"explanation":"Renamed the title."}`)
	defer upstream.Close()

	env := setupTestServer(t, func(cfg *config.Config) {
		cfg.OpenAIAPIKey = "test-key"
		cfg.OpenAIBaseURL = upstream.URL
		cfg.PipelineCommand = "echo pipeline ran"
	})
	assert := assert.New(t)

	env.createTestUser(t, "uid-schema")
	project := env.createTestProject(t, "uid-schema", "schema")

	t.Run("AppliesAndPersists", func(t *testing.T) {
		// Seed an analysis row by uploading a file first; the canned reply
		// parses as a schema modification, which is fine for seeding.
		res := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/files", project.ID),
			"uid-schema", uploadBody("App.tsx"), nil)
		assert.Equal(http.StatusOK, res.StatusCode)

		var body struct {
			Success        bool               `json:"success"`
			ModifiedSchema map[string]any     `json:"modifiedSchema"`
			Explanation    string             `json:"explanation"`
			Automation     *automation.Result `json:"automation"`
		}
		res = env.doJSON(t, http.MethodPost, "/api/ai/modify-schema", "uid-schema", gin.H{
			"projectId":   project.ID,
			"instruction": "rename the title",
			"schema":      gin.H{"title": "old"},
		}, &body)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.True(body.Success)
		assert.Equal("renamed", body.ModifiedSchema["title"])
		assert.Nil(body.Automation, "pipeline must not run unless requested")

		// The modified schema was written back onto the analysis row.
		var result domain.AnalysisResult
		res = env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/results", project.ID), "uid-schema", nil, &result)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.JSONEq(`{"title":"renamed"}`, string(result.Schema))
	})

	t.Run("ChainsPipelineWhenRequested", func(t *testing.T) {
		var body struct {
			Success    bool               `json:"success"`
			Automation *automation.Result `json:"automation"`
		}
		res := env.doJSON(t, http.MethodPost, "/api/ai/modify-schema", "uid-schema", gin.H{
			"projectId":   project.ID,
			"instruction": "rename again",
			"schema":      gin.H{"title": "renamed"},
			"runPipeline": true,
		}, &body)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.True(body.Success)
		if assert.NotNil(body.Automation) {
			assert.True(body.Automation.Succeeded)
			assert.Equal("pipeline ran\n", body.Automation.Output)
		}
	})

	t.Run("OwnershipEnforced", func(t *testing.T) {
		env.createTestUser(t, "uid-schema-intruder")
		res := env.doJSON(t, http.MethodPost, "/api/ai/modify-schema", "uid-schema-intruder", gin.H{
			"projectId":   project.ID,
			"instruction": "steal it",
		}, nil)
		assert.Equal(http.StatusForbidden, res.StatusCode)
	})
}

func TestGenerateASTPath(t *testing.T) {
	upstream := fakeAIServer(t, http.StatusOK, "body.0.declarations.0.init.body")
	defer upstream.Close()

	env := setupTestServer(t, func(cfg *config.Config) {
		cfg.OpenAIAPIKey = "test-key"
		cfg.OpenAIBaseURL = upstream.URL
	})
	assert := assert.New(t)

	env.createTestUser(t, "uid-ast")

	var body struct {
		Path string `json:"path"`
	}
	res := env.doJSON(t, http.MethodPost, "/api/ai/ast-path", "uid-ast", gin.H{
		"description":     "the submit button",
		"componentSource": "const Form = () => <button>Submit</button>",
	}, &body)
	assert.Equal(http.StatusOK, res.StatusCode)
	assert.Equal("body.0.declarations.0.init.body", body.Path)

	res = env.doJSON(t, http.MethodPost, "/api/ai/ast-path", "uid-ast", gin.H{"description": "missing source"}, nil)
	assert.Equal(http.StatusBadRequest, res.StatusCode)
}
