// internal/billing/billing.go
package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/price"
	"github.com/stripe/stripe-go/v79/subscription"

	"github.com/chimeradev/chimera-navigator/config"
	"github.com/chimeradev/chimera-navigator/internal/domain"
	"github.com/chimeradev/chimera-navigator/internal/logger"
	"github.com/chimeradev/chimera-navigator/internal/storage"
)

var (
	customLog = logger.NewLogger()

	// ErrNotConfigured is returned when no billing credential was present at
	// startup.
	ErrNotConfigured = errors.New("billing delegate is not configured: missing Stripe key")
)

// Client wraps the third-party subscription API. Request/response only; the
// asynchronous side lives in webhook.go.
type Client struct {
	secretKey     string
	webhookSecret string
	priceIDPro    string
}

// NewClient wires the Stripe API key from startup configuration.
func NewClient(cfg *config.Config) *Client {
	if cfg.StripeEnabled() {
		stripe.Key = cfg.StripeSecretKey
	}
	return &Client{
		secretKey:     cfg.StripeSecretKey,
		webhookSecret: cfg.StripeWebhookSecret,
		priceIDPro:    cfg.StripePriceIDPro,
	}
}

// Enabled reports whether a billing credential is configured.
func (c *Client) Enabled() bool {
	return c.secretKey != ""
}

// WebhookSecret exposes the endpoint secret for signature verification.
func (c *Client) WebhookSecret() string {
	return c.webhookSecret
}

// EnsureCustomer finds or creates the Stripe customer for a user, storing the
// customer id on the user row. The external customer record carries the
// firebase uid as metadata so webhook events can be mapped back.
func (c *Client) EnsureCustomer(ctx context.Context, db *sql.DB, user *domain.User) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Metadata: map[string]string{
			"firebase_uid": user.FirebaseUID,
		},
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create billing customer: %w", err)
	}

	if err := storage.SetUserStripeCustomerID(ctx, db, user.ID, cust.ID); err != nil {
		return "", err
	}
	return cust.ID, nil
}

// SubscriptionIntent is what the client needs to complete payment.
type SubscriptionIntent struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientSecret   string `json:"clientSecret"`
}

// CreateSubscription starts an incomplete pro subscription for the user and
// returns the payment intent's client secret. Tier changes happen only via
// the webhook once payment succeeds.
func (c *Client) CreateSubscription(ctx context.Context, db *sql.DB, user *domain.User) (*SubscriptionIntent, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	if c.priceIDPro == "" {
		return nil, errors.New("billing price is not configured")
	}

	customerID, err := c.EnsureCustomer(ctx, db, user)
	if err != nil {
		return nil, err
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(c.priceIDPro)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	params.AddExpand("latest_invoice.payment_intent")
	params.SetIdempotencyKey(uuid.NewString())

	sub, err := subscription.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	intent := &SubscriptionIntent{SubscriptionID: sub.ID}
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		intent.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	customLog.Printf("Billing: created subscription %s for user %d", sub.ID, user.ID)
	return intent, nil
}

// Price is one purchasable subscription price.
type Price struct {
	ID         string `json:"id"`
	Nickname   string `json:"nickname"`
	UnitAmount int64  `json:"unitAmount"`
	Currency   string `json:"currency"`
	Interval   string `json:"interval"`
}

// ListPrices returns the active subscription prices.
func (c *Client) ListPrices(ctx context.Context) ([]Price, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	params := &stripe.PriceListParams{Active: stripe.Bool(true)}
	params.Limit = stripe.Int64(20)

	prices := []Price{}
	iter := price.List(params)
	for iter.Next() {
		p := iter.Price()
		entry := Price{
			ID:         p.ID,
			Nickname:   p.Nickname,
			UnitAmount: p.UnitAmount,
			Currency:   string(p.Currency),
		}
		if p.Recurring != nil {
			entry.Interval = string(p.Recurring.Interval)
		}
		prices = append(prices, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	return prices, nil
}
