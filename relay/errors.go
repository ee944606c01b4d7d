package relay

import (
	"errors"
	"fmt"
)

// Error codes carried in messageError events.
const (
	CodeValidation    = "validation"
	CodeAuthorization = "authorization"
	CodeRateLimited   = "rate_limited"
	CodePersistence   = "persistence"
)

// ValidationError reports a missing or empty required field. The request is
// rejected before any persistence attempt.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// AuthorizationError reports a join or send by a user who is not a member of
// the target room.
type AuthorizationError struct {
	RoomID string
	UserID string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %s is not a member of room %s", e.UserID, e.RoomID)
}

// RateLimitError reports a send rejected by the per-sender token bucket.
type RateLimitError struct {
	SenderID string
}

func (e *RateLimitError) Error() string {
	return "message rate limit exceeded"
}

// PersistenceError reports a failed append to the message log. The attempt
// is not retried.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist message: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Code maps an error from the relay to its wire-level error code.
func Code(err error) string {
	var (
		validation *ValidationError
		authz      *AuthorizationError
		limited    *RateLimitError
	)
	switch {
	case errors.As(err, &validation):
		return CodeValidation
	case errors.As(err, &authz):
		return CodeAuthorization
	case errors.As(err, &limited):
		return CodeRateLimited
	default:
		return CodePersistence
	}
}

// UserMessage returns the human-readable notice surfaced to the failing
// client.
func UserMessage(err error) string {
	switch Code(err) {
	case CodeValidation:
		return "Invalid message: " + err.Error()
	case CodeAuthorization:
		return "You are not a member of this room."
	case CodeRateLimited:
		return "You are sending messages too quickly."
	default:
		return "Failed to send message."
	}
}
