// api/handlers/ws_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chimeradev/chimera-navigator/config"
	"github.com/chimeradev/chimera-navigator/internal/auth"
	"github.com/chimeradev/chimera-navigator/internal/relay"
)

// WSHandler holds dependencies for the chat relay's HTTP surface.
type WSHandler struct {
	Cfg   *config.Config
	Relay *relay.Relay
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(cfg *config.Config, r *relay.Relay) *WSHandler {
	return &WSHandler{
		Cfg:   cfg,
		Relay: r,
	}
}

// CreateTicket mints a short-lived ticket binding a websocket handshake to
// the authenticated user. Browsers cannot send custom headers on an
// upgrade, so the ticket carries the identity instead.
func (h *WSHandler) CreateTicket(c *gin.Context) {
	userID := c.MustGet("userID").(int64)
	firebaseUID := c.MustGet("firebaseUID").(string)

	ticket, err := auth.GenerateTicket(userID, firebaseUID, h.Cfg.WSTicketSecret, h.Cfg.WSTicketTTL)
	if err != nil {
		customLog.Warnf("Failed to mint ws ticket for user %d: %v", userID, err)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticket":           ticket,
		"expiresInSeconds": int(h.Cfg.WSTicketTTL.Seconds()),
	})
}

// Serve validates the handshake ticket and upgrades the connection, handing
// it to the relay for the duration of the session.
func (h *WSHandler) Serve(c *gin.Context) {
	ticket := c.Query("ticket")
	if ticket == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "ticket query parameter required"})
		return
	}

	userID, _, err := auth.ValidateTicket(ticket, h.Cfg.WSTicketSecret)
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired ticket"})
		return
	}

	if err := h.Relay.Serve(c.Writer, c.Request, userID); err != nil {
		customLog.Warnf("Websocket upgrade failed for user %d: %v", userID, err)
		// Upgrade failures already wrote an HTTP error response.
	}
}
