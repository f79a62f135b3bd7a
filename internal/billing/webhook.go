// internal/billing/webhook.go
package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"

	"github.com/chimeradev/chimera-navigator/internal/domain"
	"github.com/chimeradev/chimera-navigator/internal/storage"
)

// downgradeCredits is the credit balance a user is reset to when their
// subscription ends.
const downgradeCredits int64 = 1

// ApplyEvent mutates user tiers from an already signature-verified Stripe
// event. Unrecognized event types are ignored; a recognized event for an
// unresolvable user is an error so the webhook retries.
func (c *Client) ApplyEvent(ctx context.Context, db *sql.DB, event stripe.Event) error {
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		sub, err := unmarshalSubscription(event)
		if err != nil {
			return err
		}
		if sub.Status != stripe.SubscriptionStatusActive {
			customLog.Printf("Billing: ignoring %s with status %s", event.Type, sub.Status)
			return nil
		}
		user, err := c.resolveUser(ctx, db, sub)
		if err != nil {
			return err
		}
		// Pro tier means unlimited credits (NULL balance).
		if err := storage.SetUserTier(ctx, db, user.ID, domain.TierPro, nil); err != nil {
			return err
		}
		customLog.Printf("Billing: upgraded user %d to pro via %s", user.ID, event.Type)
		return storage.AppendLog(ctx, db, nil, domain.LogLevelInfo,
			"Subscription activated: account upgraded to pro",
			map[string]any{"userId": user.ID, "event": string(event.Type)})

	case "customer.subscription.deleted":
		sub, err := unmarshalSubscription(event)
		if err != nil {
			return err
		}
		user, err := c.resolveUser(ctx, db, sub)
		if err != nil {
			return err
		}
		credits := downgradeCredits
		if err := storage.SetUserTier(ctx, db, user.ID, domain.TierFree, &credits); err != nil {
			return err
		}
		customLog.Printf("Billing: downgraded user %d to free", user.ID)
		return storage.AppendLog(ctx, db, nil, domain.LogLevelInfo,
			"Subscription ended: account downgraded to free",
			map[string]any{"userId": user.ID, "event": string(event.Type)})

	default:
		// Intentionally ignore unhandled events.
		return nil
	}
}

func unmarshalSubscription(event stripe.Event) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("malformed subscription payload: %w", err)
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return nil, errors.New("subscription event missing customer id")
	}
	return &sub, nil
}

// resolveUser maps the external customer on a subscription back to an
// internal user: first by the stored billing-customer id, then by the
// firebase uid carried as metadata on the external customer record.
func (c *Client) resolveUser(ctx context.Context, db *sql.DB, sub *stripe.Subscription) (*domain.User, error) {
	user, err := storage.FindUserByStripeCustomerID(ctx, db, sub.Customer.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, err
	}

	if !c.Enabled() {
		return nil, fmt.Errorf("no user for billing customer %s", sub.Customer.ID)
	}
	cust, err := customer.Get(sub.Customer.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch billing customer %s: %w", sub.Customer.ID, err)
	}
	firebaseUID := cust.Metadata["firebase_uid"]
	if firebaseUID == "" {
		return nil, fmt.Errorf("billing customer %s carries no firebase uid", sub.Customer.ID)
	}
	user, err = storage.FindUserByFirebaseUID(ctx, db, firebaseUID)
	if err != nil {
		return nil, err
	}
	// Backfill so the next event resolves without an API call.
	if err := storage.SetUserStripeCustomerID(ctx, db, user.ID, sub.Customer.ID); err != nil {
		customLog.Warnf("Billing: failed to backfill customer id for user %d: %v", user.ID, err)
	}
	return user, nil
}
