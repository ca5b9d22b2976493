package filter

import (
	"errors"
	"strings"

	"github.com/mikey/phishing-detector/internal/core"
)

var (
	// ErrMissingSender rejects input without a sender
	ErrMissingSender = errors.New("sender is required")
	// ErrMissingBody rejects input without a body
	ErrMissingBody = errors.New("body is required")
)

// validateEmail rejects malformed top-level input before it reaches the engine
func validateEmail(email *core.Email) error {
	if email == nil {
		return core.ErrNilEmail
	}
	if strings.TrimSpace(email.Sender) == "" {
		return ErrMissingSender
	}
	if strings.TrimSpace(email.Body) == "" {
		return ErrMissingBody
	}
	return nil
}
