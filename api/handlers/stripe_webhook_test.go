// api/handlers/stripe_webhook_test.go
package handlers_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/chimeradev/chimera-navigator/config"
	"github.com/chimeradev/chimera-navigator/internal/domain"
	"github.com/chimeradev/chimera-navigator/internal/storage"
)

const testWebhookSecret = "whsec_test_secret"

// signedWebhookRequest posts an event payload with a freshly computed
// signature header, the same scheme Stripe uses for deliveries.
func (e *testEnv) signedWebhookRequest(t *testing.T, payload []byte, secret string) *http.Response {
	t.Helper()

	now := time.Now()
	signature := webhook.ComputeSignature(now, payload, secret)
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(signature))

	req, err := http.NewRequest(http.MethodPost, e.Server.URL+"/api/stripe/webhook", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", header)

	res, err := e.Server.Client().Do(req)
	require.NoError(t, err)
	res.Body.Close()
	return res
}

func subscriptionEventPayload(t *testing.T, eventType, customerID, status string) []byte {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"id":   "evt_test_1",
		"type": eventType,
		"data": map[string]any{
			"object": map[string]any{
				"id":       "sub_test_1",
				"customer": customerID,
				"status":   status,
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func TestStripeWebhook(t *testing.T) {
	env := setupTestServer(t, func(cfg *config.Config) {
		cfg.StripeWebhookSecret = testWebhookSecret
	})
	assert := assert.New(t)
	ctx := context.Background()

	user := env.createTestUser(t, "uid-webhook")
	require.NoError(t, storage.SetUserStripeCustomerID(ctx, env.DB, user.ID, "cus_webhook"))

	t.Run("ActiveSubscriptionUpgradesToPro", func(t *testing.T) {
		payload := subscriptionEventPayload(t, "customer.subscription.created", "cus_webhook", "active")
		res := env.signedWebhookRequest(t, payload, testWebhookSecret)
		assert.Equal(http.StatusOK, res.StatusCode)

		fresh, err := storage.FindUserByID(ctx, env.DB, user.ID)
		assert.NoError(err)
		assert.Equal(domain.TierPro, fresh.AccountTier)
		assert.Nil(fresh.Credits)
	})

	t.Run("BadSignatureRejectedWithoutMutation", func(t *testing.T) {
		payload := subscriptionEventPayload(t, "customer.subscription.deleted", "cus_webhook", "canceled")
		res := env.signedWebhookRequest(t, payload, "whsec_wrong_secret")
		assert.Equal(http.StatusBadRequest, res.StatusCode)

		fresh, err := storage.FindUserByID(ctx, env.DB, user.ID)
		assert.NoError(err)
		assert.Equal(domain.TierPro, fresh.AccountTier, "a forged delivery must not change state")
	})

	t.Run("DeletedSubscriptionDowngradesToFree", func(t *testing.T) {
		payload := subscriptionEventPayload(t, "customer.subscription.deleted", "cus_webhook", "canceled")
		res := env.signedWebhookRequest(t, payload, testWebhookSecret)
		assert.Equal(http.StatusOK, res.StatusCode)

		fresh, err := storage.FindUserByID(ctx, env.DB, user.ID)
		assert.NoError(err)
		assert.Equal(domain.TierFree, fresh.AccountTier)
		if assert.NotNil(fresh.Credits) {
			assert.Equal(int64(1), *fresh.Credits)
		}
	})

	t.Run("UnknownEventTypeIsAccepted", func(t *testing.T) {
		payload, err := json.Marshal(map[string]any{
			"id":   "evt_test_2",
			"type": "invoice.paid",
			"data": map[string]any{"object": map[string]any{}},
		})
		require.NoError(t, err)
		res := env.signedWebhookRequest(t, payload, testWebhookSecret)
		assert.Equal(http.StatusOK, res.StatusCode)
	})

	t.Run("UnknownCustomerFailsSoStripeRetries", func(t *testing.T) {
		payload := subscriptionEventPayload(t, "customer.subscription.deleted", "cus_stranger", "canceled")
		res := env.signedWebhookRequest(t, payload, testWebhookSecret)
		assert.Equal(http.StatusInternalServerError, res.StatusCode)
	})
}

func TestStripeWebhookUnconfigured(t *testing.T) {
	env := setupTestServer(t, nil) // no webhook secret

	payload := subscriptionEventPayload(t, "customer.subscription.created", "cus_x", "active")
	res := env.signedWebhookRequest(t, payload, testWebhookSecret)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}
