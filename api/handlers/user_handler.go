// api/handlers/user_handler.go
package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/chimeradev/chimera-navigator/api/models"
	"github.com/chimeradev/chimera-navigator/config"
	"github.com/chimeradev/chimera-navigator/internal/domain"
	"github.com/chimeradev/chimera-navigator/internal/logger"
	"github.com/chimeradev/chimera-navigator/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

// UserHandler holds dependencies for user/identity handlers.
type UserHandler struct {
	DB  *sql.DB
	Cfg *config.Config
}

// NewUserHandler creates a new UserHandler with dependencies.
func NewUserHandler(db *sql.DB, cfg *config.Config) *UserHandler {
	return &UserHandler{
		DB:  db,
		Cfg: cfg,
	}
}

// FindByFirebaseUID handles identity resolution for a known subject id.
func (h *UserHandler) FindByFirebaseUID(c *gin.Context) {
	uid := c.Param("uid")

	user, err := storage.FindUserByFirebaseUID(c.Request.Context(), h.DB, uid)
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, storage.ErrUserNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "User not found."})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user."})
		}
		return
	}

	c.JSON(http.StatusOK, user)
}

// Create handles first-sign-in user creation. A fresh user is free tier with
// one credit. Posting an already-known identity returns the existing row, so
// clients can call this on every sign-in.
func (h *UserHandler) Create(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		customLog.Warnf("User creation binding error: %v", err)
		_ = c.Error(err)
		return
	}

	user, err := storage.CreateUser(c.Request.Context(), h.DB, req.FirebaseUID, req.Email, req.DisplayName, req.PhotoURL)
	if err != nil {
		if errors.Is(err, storage.ErrFirebaseUIDExists) {
			existing, findErr := storage.FindUserByFirebaseUID(c.Request.Context(), h.DB, req.FirebaseUID)
			if findErr == nil {
				c.JSON(http.StatusOK, existing)
				return
			}
			err = findErr
		}
		customLog.Warnf("Failed to create user %s: %v", req.FirebaseUID, err)
		_ = c.Error(err)
		return
	}

	customLog.Printf("Registered user %d for identity %s", user.ID, req.FirebaseUID)
	c.JSON(http.StatusCreated, user)
}

// requireSelf parses the :id path param and verifies it names the
// authenticated user. User-scoped endpoints may only be called by the user
// they target.
func requireSelf(c *gin.Context) (int64, bool) {
	targetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format."})
		return 0, false
	}

	callerID := c.MustGet("userID").(int64)
	if callerID != targetID {
		_ = c.Error(storage.ErrNotOwner)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have access to this resource."})
		return 0, false
	}
	return targetID, true
}

// GetCredits reports the authenticated user's tier and remaining balance.
func (h *UserHandler) GetCredits(c *gin.Context) {
	if _, ok := requireSelf(c); !ok {
		return
	}

	user := c.MustGet("user").(*domain.User)
	c.JSON(http.StatusOK, models.CreditsResponse{
		AccountTier: user.AccountTier,
		Credits:     user.Credits,
	})
}

// Upgrade grants pro tier synchronously, without payment verification.
// TODO: gate this behind an admin role before production; today it exists so
// the client can be demoed without a Stripe account.
func (h *UserHandler) Upgrade(c *gin.Context) {
	userID, ok := requireSelf(c)
	if !ok {
		return
	}

	if err := storage.SetUserTier(c.Request.Context(), h.DB, userID, domain.TierPro, nil); err != nil {
		customLog.Warnf("Manual upgrade failed for user %d: %v", userID, err)
		_ = c.Error(err)
		return
	}

	if err := storage.AppendLog(c.Request.Context(), h.DB, nil, domain.LogLevelInfo,
		"Account manually upgraded to pro", map[string]any{"userId": userID}); err != nil {
		customLog.Warnf("Failed to log manual upgrade for user %d: %v", userID, err)
	}

	user, err := storage.FindUserByID(c.Request.Context(), h.DB, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	customLog.Printf("Manually upgraded user %d to pro", userID)
	c.JSON(http.StatusOK, user)
}
