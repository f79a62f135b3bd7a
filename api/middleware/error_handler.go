// api/middleware/error_handler.go
package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/chimeradev/chimera-navigator/internal/ai"
	"github.com/chimeradev/chimera-navigator/internal/auth"
	"github.com/chimeradev/chimera-navigator/internal/billing"
	"github.com/chimeradev/chimera-navigator/internal/storage"
)

// ErrorHandler creates a Gin middleware for centralized error handling.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// We only handle the last error for the response.
		err := c.Errors.Last().Err

		log.Printf("[ErrorHandler] Detected error: %v | Type: %T", err, err)

		var statusCode int
		var userMessage string

		if errors.Is(err, storage.ErrUserNotFound) ||
			errors.Is(err, storage.ErrProjectNotFound) ||
			errors.Is(err, storage.ErrChatNotFound) ||
			errors.Is(err, storage.ErrNoAnalysis) {
			statusCode = http.StatusNotFound
			userMessage = err.Error()
		} else if errors.Is(err, storage.ErrFirebaseUIDExists) {
			statusCode = http.StatusConflict
			userMessage = err.Error()
		} else if errors.Is(err, storage.ErrInsufficientCredits) {
			statusCode = http.StatusPaymentRequired
			userMessage = err.Error()
		} else if errors.Is(err, storage.ErrNotOwner) {
			statusCode = http.StatusForbidden
			userMessage = "You do not have access to this resource."
		} else if errors.Is(err, auth.ErrTicketMalformed) ||
			errors.Is(err, auth.ErrTicketInvalid) ||
			errors.Is(err, auth.ErrTicketClaimsInvalid) ||
			errors.Is(err, auth.ErrUnexpectedSigningMethod) {
			statusCode = http.StatusUnauthorized
			userMessage = "Invalid or malformed websocket ticket."
		} else if errors.Is(err, auth.ErrTicketExpired) {
			statusCode = http.StatusUnauthorized
			userMessage = "Websocket ticket has expired."
		} else if errors.Is(err, ai.ErrNotConfigured) || errors.Is(err, billing.ErrNotConfigured) {
			statusCode = http.StatusInternalServerError
			userMessage = err.Error()
		} else if validationErrs, ok := err.(validator.ValidationErrors); ok {
			statusCode = http.StatusBadRequest
			userMessage = "Validation failed. Please check your input."
			for _, fe := range validationErrs {
				log.Printf("Validation Error: Field %s failed on %s", fe.Field(), fe.Tag())
			}
		} else if isMalformedBody(err) {
			statusCode = http.StatusBadRequest
			userMessage = "Malformed request body."
		} else {
			statusCode = http.StatusInternalServerError
			userMessage = "An unexpected internal server error occurred."
			log.Printf("Unhandled error type: %T, Error: %v", err, err)
		}

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(statusCode, gin.H{"error": userMessage})
		} else {
			log.Printf("[ErrorHandler] Warning: Response already written before handling error.")
		}
	}
}

// isMalformedBody reports whether err came from decoding a syntactically
// invalid, truncated or mistyped JSON request body.
func isMalformedBody(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}
