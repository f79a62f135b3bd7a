// api/middleware/auth_middleware.go
package middleware

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chimeradev/chimera-navigator/internal/logger"
	"github.com/chimeradev/chimera-navigator/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

// IdentityHeader carries the opaque, externally-verified subject id on every
// authenticated request. Its value is trusted as-is; verification of the
// identity itself is delegated to the external identity provider.
const IdentityHeader = "X-Firebase-UID"

// AuthMiddleware resolves the caller's identity header to a User row on
// every request. No session state is kept server-side.
func AuthMiddleware(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		firebaseUID := c.GetHeader(IdentityHeader)
		if firebaseUID == "" {
			err := errors.New("identity header required")
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		user, err := storage.FindUserByFirebaseUID(c.Request.Context(), db, firebaseUID)
		if err != nil {
			customLog.Warnf("AuthMiddleware: failed to resolve identity %s: %v", firebaseUID, err)
			_ = c.Error(err)
			if errors.Is(err, storage.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unknown user identity"})
			} else {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve identity"})
			}
			return
		}

		c.Set("userID", user.ID)
		c.Set("firebaseUID", user.FirebaseUID)
		c.Set("user", user)

		c.Next()
	}
}
