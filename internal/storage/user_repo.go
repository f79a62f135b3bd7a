// internal/storage/user_repo.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/chimeradev/chimera-navigator/internal/domain"
)

// Specific errors for storage operations.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrFirebaseUIDExists   = errors.New("user already exists for this firebase uid")
	ErrProjectNotFound     = errors.New("project not found")
	ErrChatNotFound        = errors.New("chat not found")
	ErrNoAnalysis          = errors.New("no analysis data available for this project")
	ErrInsufficientCredits = errors.New("insufficient credits to create a project")
	ErrNotOwner            = errors.New("resource is not owned by this user")
)

const userColumns = `id, firebase_uid, email, display_name, photo_url, account_tier, credits, stripe_customer_id, created_at, updated_at`

func scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.FirebaseUID, &user.Email, &user.DisplayName, &user.PhotoURL,
		&user.AccountTier, &user.Credits, &user.StripeCustomerID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("database error finding user: %w", err)
	}
	return &user, nil
}

// CreateUser inserts a new user. A fresh user is free tier with one credit.
func CreateUser(ctx context.Context, db *sql.DB, firebaseUID, email, displayName, photoURL string) (*domain.User, error) {
	sqlStatement := `INSERT INTO users (firebase_uid, email, display_name, photo_url, account_tier, credits)
		VALUES (?, ?, ?, ?, 'free', 1)`
	result, err := db.ExecContext(ctx, sqlStatement, firebaseUID, email, displayName, photoURL)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			if strings.Contains(sqliteErr.Error(), "users.firebase_uid") {
				return nil, ErrFirebaseUIDExists
			}
		}
		log.Printf("Storage: Failed to insert user %s: %v", firebaseUID, err)
		return nil, fmt.Errorf("database error during user creation: %w", err)
	}
	userID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user ID after creation: %w", err)
	}
	return FindUserByID(ctx, db, userID)
}

// FindUserByID retrieves a user by internal id.
func FindUserByID(ctx context.Context, db *sql.DB, id int64) (*domain.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, id)
	return scanUser(row)
}

// FindUserByFirebaseUID retrieves a user by their external subject id.
func FindUserByFirebaseUID(ctx context.Context, db *sql.DB, firebaseUID string) (*domain.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE firebase_uid = ? LIMIT 1`, firebaseUID)
	return scanUser(row)
}

// FindUserByStripeCustomerID retrieves a user by their billing-customer id.
func FindUserByStripeCustomerID(ctx context.Context, db *sql.DB, customerID string) (*domain.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE stripe_customer_id = ? LIMIT 1`, customerID)
	return scanUser(row)
}

// SetUserTier updates a user's tier and credit balance in one statement.
// A pro user's credits are always NULL (unlimited).
func SetUserTier(ctx context.Context, db *sql.DB, userID int64, tier string, credits *int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET account_tier = ?, credits = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		tier, credits, userID)
	if err != nil {
		log.Printf("Storage: Failed to update tier for user %d: %v", userID, err)
		return fmt.Errorf("database error updating user tier: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check tier update: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetUserStripeCustomerID stores the external billing-customer id on the user.
func SetUserStripeCustomerID(ctx context.Context, db *sql.DB, userID int64, customerID string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET stripe_customer_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		customerID, userID)
	if err != nil {
		log.Printf("Storage: Failed to store stripe customer id for user %d: %v", userID, err)
		return fmt.Errorf("database error storing stripe customer id: %w", err)
	}
	return nil
}
