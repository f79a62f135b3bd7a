// api/handlers/file_handler.go
package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chimeradev/chimera-navigator/api/models"
	"github.com/chimeradev/chimera-navigator/internal/ai"
	"github.com/chimeradev/chimera-navigator/internal/core"
	"github.com/chimeradev/chimera-navigator/internal/domain"
	"github.com/chimeradev/chimera-navigator/internal/storage"
)

// FileHandler holds dependencies for file ingestion and read-only project
// data handlers.
type FileHandler struct {
	DB *sql.DB
	AI *ai.Client
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(db *sql.DB, aiClient *ai.Client) *FileHandler {
	return &FileHandler{
		DB: db,
		AI: aiClient,
	}
}

// Upload handles file ingestion and analysis orchestration:
// verify ownership, mark the project processing, persist every file tuple
// with one INFO log each, run the AI analysis over the stored files, then
// settle the project status from the analysis outcome. An unconfigured AI
// delegate is a deliberate degraded mode: the upload still succeeds and the
// project completes with a WARN log. Any other analysis failure marks the
// project error and fails the request; the already-persisted files are kept,
// not rolled back.
func (h *FileHandler) Upload(c *gin.Context) {
	project, ok := getOwnedProject(c, h.DB)
	if !ok {
		return
	}

	var req models.UploadFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		customLog.Warnf("File upload binding error: %v", err)
		_ = c.Error(err)
		return
	}

	// Validate every tuple before any mutation.
	for i := range req.Files {
		f := &req.Files[i]
		if !core.IsValidFilename(f.Filename) {
			err := fmt.Errorf("invalid filename %q", f.Filename)
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		normalized, valid := core.NormalizeAndValidateFileType(f.Type)
		if !valid {
			err := fmt.Errorf("invalid file type %q: must be one of js, jsx, ts, tsx", f.Type)
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f.Type = normalized
		if !core.IsValidLogicalPath(f.Path) {
			err := fmt.Errorf("invalid file path %q", f.Path)
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if f.Path == "" {
			f.Path = f.Filename
		}
	}

	ctx := c.Request.Context()

	if err := storage.UpdateProjectStatus(ctx, h.DB, project.ID, domain.ProjectStatusProcessing); err != nil {
		_ = c.Error(err)
		return
	}

	persisted := make([]*domain.ProjectFile, 0, len(req.Files))
	for _, f := range req.Files {
		stored, err := storage.CreateProjectFile(ctx, h.DB, project.ID, f.Filename, f.Content, f.Path, f.Type)
		if err != nil {
			_ = c.Error(err)
			return
		}
		persisted = append(persisted, stored)

		if err := storage.AppendLog(ctx, h.DB, &project.ID, domain.LogLevelInfo,
			fmt.Sprintf("Uploaded file %s", f.Filename),
			map[string]any{"filename": f.Filename, "path": f.Path, "type": f.Type}); err != nil {
			customLog.Warnf("Failed to log upload of %s: %v", f.Filename, err)
		}
	}

	result, analysisErr := h.AI.AnalyzeProject(ctx, h.DB, project.ID)
	switch {
	case analysisErr == nil:
		if err := storage.UpdateProjectStatus(ctx, h.DB, project.ID, domain.ProjectStatusCompleted); err != nil {
			_ = c.Error(err)
			return
		}
		if err := storage.AppendLog(ctx, h.DB, &project.ID, domain.LogLevelSuccess,
			fmt.Sprintf("Analysis completed for %d files", len(persisted)), nil); err != nil {
			customLog.Warnf("Failed to log analysis completion: %v", err)
		}

	case errors.Is(analysisErr, ai.ErrNotConfigured):
		// Degraded mode: the upload succeeds even without AI.
		if err := storage.UpdateProjectStatus(ctx, h.DB, project.ID, domain.ProjectStatusCompleted); err != nil {
			_ = c.Error(err)
			return
		}
		if err := storage.AppendLog(ctx, h.DB, &project.ID, domain.LogLevelWarn,
			"AI analysis skipped: no API key configured", nil); err != nil {
			customLog.Warnf("Failed to log degraded analysis: %v", err)
		}

	default:
		customLog.Warnf("Analysis failed for project %d: %v", project.ID, analysisErr)
		if err := storage.UpdateProjectStatus(ctx, h.DB, project.ID, domain.ProjectStatusError); err != nil {
			customLog.Warnf("Failed to mark project %d errored: %v", project.ID, err)
		}
		if err := storage.AppendLog(ctx, h.DB, &project.ID, domain.LogLevelError,
			fmt.Sprintf("Analysis failed: %v", analysisErr), nil); err != nil {
			customLog.Warnf("Failed to log analysis failure: %v", err)
		}
		_ = c.Error(analysisErr)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "File analysis failed: " + analysisErr.Error()})
		return
	}

	response := gin.H{"files": persisted}
	if result != nil {
		response["analysis"] = result
	}

	customLog.Printf("Uploaded %d files to project %d", len(persisted), project.ID)
	c.JSON(http.StatusOK, response)
}

// GetResults returns the project's analysis result, or an empty-shaped
// default when no analysis was ever created.
func (h *FileHandler) GetResults(c *gin.Context) {
	project, ok := getOwnedProject(c, h.DB)
	if !ok {
		return
	}

	result, err := storage.FindAnalysisResult(c.Request.Context(), h.DB, project.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNoAnalysis) {
			c.JSON(http.StatusOK, gin.H{
				"astData":      nil,
				"hooks":        []string{},
				"imports":      []string{},
				"dependencies": []string{},
				"schema":       nil,
			})
			return
		}
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetLogs returns the project's audit trail, newest entries first,
// paginated via limit/offset query parameters.
func (h *FileHandler) GetLogs(c *gin.Context) {
	project, ok := getOwnedProject(c, h.DB)
	if !ok {
		return
	}

	page, err := core.ParsePageOptions(c.Request.URL.Query())
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logs, err := storage.ListLogsByProject(c.Request.Context(), h.DB, project.ID, page.Limit, page.Offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, logs)
}
