// api/handlers/file_upload_test.go
package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/chimeradev/chimera-navigator/config"
	"github.com/chimeradev/chimera-navigator/internal/domain"
	"github.com/chimeradev/chimera-navigator/internal/storage"
)

// fakeAIServer is a stand-in completion upstream. Each request is answered
// with the canned content; a non-OK status simulates upstream failure.
func fakeAIServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_ = json.NewEncoder(w).Encode(gin.H{"error": gin.H{"message": "upstream exploded"}})
			return
		}
		_ = json.NewEncoder(w).Encode(gin.H{
			"choices": []gin.H{
				{"message": gin.H{"content": content}},
			},
		})
	}))
}

func uploadBody(filenames ...string) gin.H {
	files := make([]gin.H, 0, len(filenames))
	for _, name := range filenames {
		files = append(files, gin.H{
			"filename": name,
			"content":  "export default function X() { return null }",
			"type":     "tsx",
		})
	}
	return gin.H{"files": files}
}

func TestUploadDegradedModeWithoutAI(t *testing.T) {
	env := setupTestServer(t, nil) // no OPENAI_API_KEY
	assert := assert.New(t)

	env.createTestUser(t, "uid-degraded")
	project := env.createTestProject(t, "uid-degraded", "deg")

	var body struct {
		Files    []domain.ProjectFile `json:"files"`
		Analysis *json.RawMessage     `json:"analysis"`
	}
	res := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/files", project.ID),
		"uid-degraded", uploadBody("App.tsx", "Form.tsx"), &body)

	assert.Equal(http.StatusOK, res.StatusCode, "upload must succeed without an AI credential")
	assert.Len(body.Files, 2)
	assert.Nil(body.Analysis, "degraded mode yields no analysis")

	assert.Equal(domain.ProjectStatusCompleted, projectStatus(t, env.DB, project.ID))

	// One INFO per file plus one WARN for the skipped analysis, newest first.
	var logs []domain.Log
	res = env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/logs", project.ID), "uid-degraded", nil, &logs)
	assert.Equal(http.StatusOK, res.StatusCode)
	if assert.Len(logs, 3) {
		assert.Equal(domain.LogLevelWarn, logs[0].Level)
		assert.Equal(domain.LogLevelInfo, logs[1].Level)
		assert.Equal(domain.LogLevelInfo, logs[2].Level)
	}

	t.Run("LogsPaginate", func(t *testing.T) {
		var page []domain.Log
		res := env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/logs?limit=1", project.ID), "uid-degraded", nil, &page)
		assert.Equal(http.StatusOK, res.StatusCode)
		if assert.Len(page, 1) {
			assert.Equal(domain.LogLevelWarn, page[0].Level)
		}

		res = env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/logs?limit=1&offset=2", project.ID), "uid-degraded", nil, &page)
		assert.Equal(http.StatusOK, res.StatusCode)
		if assert.Len(page, 1) {
			assert.Equal(domain.LogLevelInfo, page[0].Level)
		}

		res = env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/logs?limit=bogus", project.ID), "uid-degraded", nil, nil)
		assert.Equal(http.StatusBadRequest, res.StatusCode)
	})
}

func TestUploadWithAnalysis(t *testing.T) {
	upstream := fakeAIServer(t, http.StatusOK,
		`{"summary":"A component.","hooks":["useState"],"imports":["react"],"suggestions":["split it up"]}`)
	defer upstream.Close()

	env := setupTestServer(t, func(cfg *config.Config) {
		cfg.OpenAIAPIKey = "test-key"
		cfg.OpenAIBaseURL = upstream.URL
	})
	assert := assert.New(t)

	user := env.createTestUser(t, "uid-analyzed")
	project := env.createTestProject(t, "uid-analyzed", "ana")

	var body struct {
		Files    []domain.ProjectFile   `json:"files"`
		Analysis *domain.AnalysisResult `json:"analysis"`
	}
	res := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/files", project.ID),
		"uid-analyzed", uploadBody("App.tsx"), &body)

	assert.Equal(http.StatusOK, res.StatusCode)
	assert.Len(body.Files, 1)
	if assert.NotNil(body.Analysis) {
		assert.Equal([]string{"useState"}, body.Analysis.Hooks)
		assert.Equal([]string{"react"}, body.Analysis.Imports)
	}
	assert.Equal(domain.ProjectStatusCompleted, projectStatus(t, env.DB, project.ID))

	t.Run("ResultsAreDurable", func(t *testing.T) {
		var result domain.AnalysisResult
		res := env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/results", project.ID), "uid-analyzed", nil, &result)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.Equal([]string{"useState"}, result.Hooks)
	})

	t.Run("ReviewRequiresAnalysisAndWorks", func(t *testing.T) {
		var reviewBody struct {
			Review json.RawMessage `json:"review"`
		}
		res := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/ai/review/%d", project.ID), "uid-analyzed", nil, &reviewBody)
		assert.Equal(http.StatusOK, res.StatusCode)
		assert.NotEmpty(reviewBody.Review)

		// A never-analyzed project has nothing to review. The single free
		// credit went into "ana", so upgrade before creating another project.
		upgradeRes := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/users/%d/upgrade", user.ID), "uid-analyzed", nil, nil)
		assert.Equal(http.StatusOK, upgradeRes.StatusCode)

		bare := env.createTestProject(t, "uid-analyzed", "bare")
		res = env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/ai/review/%d", bare.ID), "uid-analyzed", nil, nil)
		assert.Equal(http.StatusNotFound, res.StatusCode)
	})
}

func TestUploadAnalysisFailureMarksProjectErrored(t *testing.T) {
	upstream := fakeAIServer(t, http.StatusInternalServerError, "")
	defer upstream.Close()

	env := setupTestServer(t, func(cfg *config.Config) {
		cfg.OpenAIAPIKey = "test-key"
		cfg.OpenAIBaseURL = upstream.URL
	})
	assert := assert.New(t)

	env.createTestUser(t, "uid-failure")
	project := env.createTestProject(t, "uid-failure", "boom")

	res := env.doJSON(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/files", project.ID),
		"uid-failure", uploadBody("App.tsx"), nil)
	assert.Equal(http.StatusInternalServerError, res.StatusCode)

	assert.Equal(domain.ProjectStatusError, projectStatus(t, env.DB, project.ID))

	// The persisted file survives the failed analysis.
	count, err := storage.CountProjectFiles(context.Background(), env.DB, project.ID)
	assert.NoError(err)
	assert.Equal(int64(1), count)

	errorLogs, err := storage.CountLogsByLevel(context.Background(), env.DB, project.ID, domain.LogLevelError)
	assert.NoError(err)
	assert.Equal(int64(1), errorLogs)
}

func TestUploadValidation(t *testing.T) {
	env := setupTestServer(t, nil)
	assert := assert.New(t)

	env.createTestUser(t, "uid-validate")
	project := env.createTestProject(t, "uid-validate", "val")
	path := fmt.Sprintf("/api/projects/%d/files", project.ID)

	cases := []struct {
		name string
		body gin.H
	}{
		{"EmptyFileList", gin.H{"files": []gin.H{}}},
		{"FilenameWithSeparator", gin.H{"files": []gin.H{
			{"filename": "src/App.tsx", "content": "x", "type": "tsx"},
		}}},
		{"HiddenFilename", gin.H{"files": []gin.H{
			{"filename": ".env", "content": "x", "type": "ts"},
		}}},
		{"DisallowedType", gin.H{"files": []gin.H{
			{"filename": "script.py", "content": "x", "type": "py"},
		}}},
		{"TraversalPath", gin.H{"files": []gin.H{
			{"filename": "App.tsx", "content": "x", "type": "tsx", "path": "../outside/App.tsx"},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := env.doJSON(t, http.MethodPost, path, "uid-validate", tc.body, nil)
			assert.Equal(http.StatusBadRequest, res.StatusCode)
		})
	}

	// Nothing was persisted and the project never left pending.
	count, err := storage.CountProjectFiles(context.Background(), env.DB, project.ID)
	assert.NoError(err)
	assert.Equal(int64(0), count)
	assert.Equal(domain.ProjectStatusPending, projectStatus(t, env.DB, project.ID))
}
