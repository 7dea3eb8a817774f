package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound roots every missing-entity error.
	ErrNotFound = errors.New("not found")
	// ErrConflict roots errors for writes that collide with existing state.
	ErrConflict = errors.New("conflict")
	// ErrForbidden roots errors for access the caller is not entitled to.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation roots malformed input errors.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized is returned when credentials are missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransient marks network or storage failures worth retrying.
	ErrTransient = errors.New("temporarily unavailable")
)

var (
	ErrParticipantNotFound = fmt.Errorf("participant %w", ErrNotFound)
	ErrQuizNotFound        = fmt.Errorf("quiz %w", ErrNotFound)
	ErrQuestionNotFound    = fmt.Errorf("question %w", ErrNotFound)
	ErrResultNotFound      = fmt.Errorf("result %w", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)

	// ErrAlreadyCompleted is returned for a second submission without a retake grant.
	ErrAlreadyCompleted = fmt.Errorf("quiz already completed, retake not allowed: %w", ErrConflict)
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = fmt.Errorf("username already exists: %w", ErrConflict)

	// ErrNotOwner is returned when a participant asks for someone else's result.
	ErrNotOwner = fmt.Errorf("result belongs to another participant: %w", ErrForbidden)
	// ErrAdminOnly is returned when an anonymous caller reaches an admin operation.
	ErrAdminOnly = fmt.Errorf("admin access required: %w", ErrForbidden)
	// ErrInvalidAdminSecret is returned for registrations with a wrong registration code.
	ErrInvalidAdminSecret = fmt.Errorf("invalid admin secret: %w", ErrForbidden)

	// ErrInvalidCredentials is returned by login for unknown users and bad passwords alike.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
)

// ValidationError lists field-level problems with an input.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
