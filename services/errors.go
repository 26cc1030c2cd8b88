package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Errors shared across services and mapped to HTTP in the handlers layer.
var (
	// Submission gates
	ErrRegistrationClosed = errors.New("registration is closed, all team slots are filled")
	ErrProofRequired      = errors.New("payment proof screenshot is required")
	ErrTeamNameTaken      = errors.New("team name is already registered")

	// Moderation
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrInvalidPaymentStatus = errors.New("payment status must be approved or rejected")

	// Auth
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError carries per-field messages for a rejected submission.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
