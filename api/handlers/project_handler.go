// api/handlers/project_handler.go
package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/chimeradev/chimera-navigator/api/models"
	"github.com/chimeradev/chimera-navigator/internal/domain"
	"github.com/chimeradev/chimera-navigator/internal/storage"
)

// ProjectHandler holds dependencies for project CRUD handlers.
type ProjectHandler struct {
	DB *sql.DB
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(db *sql.DB) *ProjectHandler {
	return &ProjectHandler{DB: db}
}

// getOwnedProject resolves the :id path param to a project and verifies the
// authenticated user owns it. The check runs on every request; nothing is
// cached. Writes the error response itself on failure.
func getOwnedProject(c *gin.Context, db *sql.DB) (*domain.Project, bool) {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID format."})
		return nil, false
	}

	project, err := storage.FindProjectByID(c.Request.Context(), db, projectID)
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, storage.ErrProjectNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Project not found."})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up project."})
		}
		return nil, false
	}

	callerID := c.MustGet("userID").(int64)
	if project.UserID != callerID {
		_ = c.Error(storage.ErrNotOwner)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have access to this project."})
		return nil, false
	}

	return project, true
}

// List returns the authenticated user's projects, newest first.
func (h *ProjectHandler) List(c *gin.Context) {
	userID := c.MustGet("userID").(int64)

	projects, err := storage.ListProjectsByUser(c.Request.Context(), h.DB, userID)
	if err != nil {
		customLog.Warnf("Failed to list projects for user %d: %v", userID, err)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, projects)
}

// Create handles project creation through the credit/tier gate. This is the
// only monetization enforcement point: pro always passes, free consumes one
// credit, and an exhausted free user gets a payment-required response
// carrying their current tier and balance.
func (h *ProjectHandler) Create(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		customLog.Warnf("Project creation binding error: %v", err)
		_ = c.Error(err)
		return
	}

	user := c.MustGet("user").(*domain.User)

	project, err := storage.CreateProjectWithQuota(c.Request.Context(), h.DB, user.ID, req.Name, req.Description)
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, storage.ErrInsufficientCredits) {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":       "No credits remaining. Upgrade to pro to create more projects.",
				"accountTier": user.AccountTier,
				"credits":     user.Credits,
			})
			return
		}
		customLog.Warnf("Failed to create project for user %d: %v", user.ID, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project."})
		return
	}

	customLog.Printf("Created project %d for user %d", project.ID, user.ID)
	c.JSON(http.StatusCreated, project)
}

// Get returns a single owned project.
func (h *ProjectHandler) Get(c *gin.Context) {
	project, ok := getOwnedProject(c, h.DB)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, project)
}

// Delete removes an owned project. Files, analysis results and logs cascade
// with it.
func (h *ProjectHandler) Delete(c *gin.Context) {
	project, ok := getOwnedProject(c, h.DB)
	if !ok {
		return
	}

	if err := storage.DeleteProject(c.Request.Context(), h.DB, project.ID); err != nil {
		customLog.Warnf("Failed to delete project %d: %v", project.ID, err)
		_ = c.Error(err)
		return
	}

	customLog.Printf("Deleted project %d", project.ID)
	c.Status(http.StatusNoContent)
}
