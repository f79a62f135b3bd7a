// api/handlers/stripe_handler.go
package handlers

import (
	"database/sql"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/chimeradev/chimera-navigator/internal/billing"
	"github.com/chimeradev/chimera-navigator/internal/domain"
)

// StripeHandler holds dependencies for billing handlers.
type StripeHandler struct {
	DB      *sql.DB
	Billing *billing.Client
}

// NewStripeHandler creates a new StripeHandler.
func NewStripeHandler(db *sql.DB, billingClient *billing.Client) *StripeHandler {
	return &StripeHandler{
		DB:      db,
		Billing: billingClient,
	}
}

// CreateSubscription starts an incomplete pro subscription for the
// authenticated user. The actual tier change happens asynchronously via the
// webhook once payment succeeds.
func (h *StripeHandler) CreateSubscription(c *gin.Context) {
	user := c.MustGet("user").(*domain.User)

	intent, err := h.Billing.CreateSubscription(c.Request.Context(), h.DB, user)
	if err != nil {
		customLog.Warnf("Subscription creation failed for user %d: %v", user.ID, err)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, intent)
}

// ListPrices returns the active subscription prices.
func (h *StripeHandler) ListPrices(c *gin.Context) {
	prices, err := h.Billing.ListPrices(c.Request.Context())
	if err != nil {
		customLog.Warnf("Price listing failed: %v", err)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"prices": prices})
}

// Webhook handles asynchronous Stripe subscription events. The endpoint is
// unauthenticated but every payload is signature-verified against the
// endpoint secret; a mismatch rejects the payload with no state mutated.
func (h *StripeHandler) Webhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		customLog.Warnf("Stripe webhook read failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	endpointSecret := h.Billing.WebhookSecret()
	if endpointSecret == "" {
		customLog.Warnln("Stripe webhook secret missing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		c.GetHeader("Stripe-Signature"),
		endpointSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		customLog.Warnf("Stripe webhook signature failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	if err := h.Billing.ApplyEvent(c.Request.Context(), h.DB, event); err != nil {
		customLog.Warnf("Stripe webhook %s failed: %v", event.Type, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
