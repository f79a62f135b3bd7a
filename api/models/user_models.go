// api/models/user_models.go
package models

// --- User Request/Response Structs ---

// CreateUserRequest defines the structure for the first-sign-in user creation body
type CreateUserRequest struct {
	FirebaseUID string `json:"firebaseUid" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl" binding:"omitempty,url"`
}

// CreditsResponse reports a user's tier and remaining balance
type CreditsResponse struct {
	AccountTier string `json:"accountTier"`
	Credits     *int64 `json:"credits"` // null means unlimited
}
