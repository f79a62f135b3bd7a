// internal/auth/auth.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chimeradev/chimera-navigator/internal/logger"
)

var (
	ErrTicketMalformed         = errors.New("malformed ticket")
	ErrTicketExpired           = errors.New("ticket is expired or not valid yet")
	ErrTicketInvalid           = errors.New("invalid ticket")
	ErrTicketClaimsInvalid     = errors.New("invalid ticket claims")
	ErrUnexpectedSigningMethod = errors.New("unexpected token signing method")
	customLog                  = logger.NewLogger()
)

// TicketClaims bind one websocket handshake to an authenticated user.
// Identity verification itself is delegated to the external identity
// provider; the ticket only carries an already-resolved identity across the
// upgrade, where headers are unavailable.
type TicketClaims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

// GenerateTicket creates a signed, short-lived websocket ticket for a user.
func GenerateTicket(userID int64, firebaseUID, secret string, ttl time.Duration) (string, error) {
	claims := TicketClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   firebaseUID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "chimera-navigator",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		customLog.Warnf("Error signing ws ticket for user %d: %v", userID, err)
		return "", fmt.Errorf("failed to generate ticket")
	}
	return signed, nil
}

// ValidateTicket parses and validates a websocket ticket, returning the
// bound user id and firebase uid.
func ValidateTicket(ticket, secret string) (int64, string, error) {
	claims := &TicketClaims{}

	token, err := jwt.ParseWithClaims(ticket, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			customLog.Warnf("ValidateTicket: Unexpected signing method: %v", token.Header["alg"])
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedSigningMethod, token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		customLog.Warnf("ValidateTicket: Ticket parsing error: %v", err)
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return 0, "", ErrTicketMalformed
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return 0, "", ErrTicketExpired
		case errors.Is(err, ErrUnexpectedSigningMethod):
			return 0, "", err
		default:
			return 0, "", ErrTicketInvalid
		}
	}

	if !token.Valid {
		return 0, "", ErrTicketInvalid
	}
	if claims.UserID == 0 || claims.Subject == "" {
		customLog.Warnf("ValidateTicket: identity missing in ticket claims")
		return 0, "", ErrTicketClaimsInvalid
	}

	return claims.UserID, claims.Subject, nil
}
