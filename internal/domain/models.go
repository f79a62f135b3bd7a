// internal/domain/models.go
package domain

import (
	"encoding/json"
	"time"
)

// Account tiers. A pro user has unlimited project credits (Credits == nil);
// a free user carries a non-negative credit counter.
const (
	TierFree = "free"
	TierPro  = "pro"
)

// Project statuses.
const (
	ProjectStatusPending    = "pending"
	ProjectStatusProcessing = "processing"
	ProjectStatusCompleted  = "completed"
	ProjectStatusError      = "error"
)

// Log levels for the project audit trail.
const (
	LogLevelInfo    = "INFO"
	LogLevelDebug   = "DEBUG"
	LogLevelWarn    = "WARN"
	LogLevelError   = "ERROR"
	LogLevelSuccess = "SUCCESS"
)

// User is an identity bound to an external identity-provider subject id.
type User struct {
	ID               int64   `json:"id"`
	FirebaseUID      string  `json:"firebaseUid"`
	Email            string  `json:"email"`
	DisplayName      string  `json:"displayName"`
	PhotoURL         string  `json:"photoUrl"`
	AccountTier      string  `json:"accountTier"`
	Credits          *int64  `json:"credits"` // nil means unlimited
	StripeCustomerID *string `json:"stripeCustomerId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Project is owned by exactly one user.
type Project struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectFile holds one uploaded source file. Immutable once created.
type ProjectFile struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"projectId"`
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	Path      string    `json:"path"`
	FileType  string    `json:"fileType"` // js | jsx | ts | tsx
	CreatedAt time.Time `json:"createdAt"`
}

// AnalysisResult is the stored output of AI-driven code analysis for a
// project. At most one per project; replaced in place on re-analysis.
type AnalysisResult struct {
	ID           int64           `json:"id"`
	ProjectID    int64           `json:"projectId"`
	ASTData      json.RawMessage `json:"astData"`
	Hooks        []string        `json:"hooks"`
	Imports      []string        `json:"imports"`
	Dependencies []string        `json:"dependencies"`
	Schema       json.RawMessage `json:"schema"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// ChatMessage is one entry in a chat transcript.
type ChatMessage struct {
	Role      string    `json:"role"` // user | assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AiChat is a chat transcript owned by a user, optionally scoped to a project.
type AiChat struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"userId"`
	ProjectID *int64        `json:"projectId"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Log is one append-only audit entry, owned by a project (or nil for
// account-level events).
type Log struct {
	ID        int64           `json:"id"`
	ProjectID *int64          `json:"projectId"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
