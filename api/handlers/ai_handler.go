// api/handlers/ai_handler.go
package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/chimeradev/chimera-navigator/api/models"
	"github.com/chimeradev/chimera-navigator/config"
	"github.com/chimeradev/chimera-navigator/internal/ai"
	"github.com/chimeradev/chimera-navigator/internal/automation"
	"github.com/chimeradev/chimera-navigator/internal/storage"
)

// AIHandler holds dependencies for AI-delegate pass-through handlers.
type AIHandler struct {
	DB     *sql.DB
	AI     *ai.Client
	Runner *automation.Runner
	Cfg    *config.Config
}

// NewAIHandler creates a new AIHandler.
func NewAIHandler(db *sql.DB, aiClient *ai.Client, runner *automation.Runner, cfg *config.Config) *AIHandler {
	return &AIHandler{
		DB:     db,
		AI:     aiClient,
		Runner: runner,
		Cfg:    cfg,
	}
}

// GetChatHistory returns a user's chat transcripts, most recently updated
// first. Only the user themselves may read their history.
func (h *AIHandler) GetChatHistory(c *gin.Context) {
	targetID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format."})
		return
	}

	callerID := c.MustGet("userID").(int64)
	if callerID != targetID {
		_ = c.Error(storage.ErrNotOwner)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have access to this chat history."})
		return
	}

	var projectID *int64
	if raw := c.Query("projectId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid projectId filter."})
			return
		}
		projectID = &parsed
	}

	chats, err := storage.ListChatsByUser(c.Request.Context(), h.DB, targetID, projectID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, chats)
}

// GenerateReview asks the AI delegate for a code review of an analyzed
// project. Requires a pre-existing analysis result.
func (h *AIHandler) GenerateReview(c *gin.Context) {
	projectID, err := strconv.ParseInt(c.Param("projectId"), 10, 64)
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID format."})
		return
	}

	project, err := storage.FindProjectByID(c.Request.Context(), h.DB, projectID)
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, storage.ErrProjectNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Project not found."})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up project."})
		}
		return
	}
	if project.UserID != c.MustGet("userID").(int64) {
		_ = c.Error(storage.ErrNotOwner)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have access to this project."})
		return
	}

	result, err := storage.FindAnalysisResult(c.Request.Context(), h.DB, projectID)
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, storage.ErrNoAnalysis) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "No analysis data available for this project."})
		}
		return
	}

	analysisJSON, err := json.Marshal(result)
	if err != nil {
		_ = c.Error(err)
		return
	}

	review, err := h.AI.GenerateReview(c.Request.Context(), analysisJSON)
	if err != nil {
		customLog.Warnf("Review generation failed for project %d: %v", projectID, err)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"review": review})
}

// ModifySchema applies a natural-language schema command via the AI
// delegate, persists the modified schema on success, and optionally chains
// the external transformation pipeline, folding its captured outcome into
// the response.
func (h *AIHandler) ModifySchema(c *gin.Context) {
	var req models.ModifySchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		customLog.Warnf("Schema modification binding error: %v", err)
		_ = c.Error(err)
		return
	}

	project, err := storage.FindProjectByID(c.Request.Context(), h.DB, req.ProjectID)
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, storage.ErrProjectNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Project not found."})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up project."})
		}
		return
	}
	if project.UserID != c.MustGet("userID").(int64) {
		_ = c.Error(storage.ErrNotOwner)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have access to this project."})
		return
	}

	schema := req.Schema
	if len(schema) == 0 {
		// Fall back to the stored schema when the caller sends none.
		result, err := storage.FindAnalysisResult(c.Request.Context(), h.DB, req.ProjectID)
		if err != nil {
			_ = c.Error(err)
			if errors.Is(err, storage.ErrNoAnalysis) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "No schema available to modify."})
			}
			return
		}
		schema = result.Schema
		if len(schema) == 0 {
			schema = json.RawMessage("{}")
		}
	}

	modification, err := h.AI.ModifySchema(c.Request.Context(), req.Instruction, schema)
	if err != nil {
		customLog.Warnf("Schema modification failed for project %d: %v", req.ProjectID, err)
		_ = c.Error(err)
		return
	}

	if modification.Success && len(modification.ModifiedSchema) > 0 {
		if err := storage.UpdateAnalysisSchema(c.Request.Context(), h.DB, req.ProjectID, modification.ModifiedSchema); err != nil {
			// The modification stands; persisting it is best-effort when no
			// analysis row exists yet.
			if !errors.Is(err, storage.ErrNoAnalysis) {
				_ = c.Error(err)
				return
			}
			customLog.Warnf("Modified schema not persisted for project %d: no analysis row", req.ProjectID)
		}
	}

	response := gin.H{
		"success":        modification.Success,
		"modifiedSchema": modification.ModifiedSchema,
		"explanation":    modification.Explanation,
	}

	if req.RunPipeline && modification.Success {
		automationResult, err := h.Runner.Execute(c.Request.Context(), h.Cfg.PipelineCommand)
		if err != nil {
			customLog.Warnf("Pipeline invocation failed for project %d: %v", req.ProjectID, err)
			response["automation"] = automation.Result{Succeeded: false, Error: err.Error()}
		} else {
			response["automation"] = automationResult
		}
	}

	c.JSON(http.StatusOK, response)
}

// GenerateASTPath maps a natural-language element description to an AST path
// within the supplied component source.
func (h *AIHandler) GenerateASTPath(c *gin.Context) {
	var req struct {
		Description     string `json:"description" binding:"required"`
		ComponentSource string `json:"componentSource" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	path, err := h.AI.GenerateASTPath(c.Request.Context(), req.Description, req.ComponentSource)
	if err != nil {
		customLog.Warnf("AST path generation failed: %v", err)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"path": path})
}
