package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation indicates a missing or malformed input. Nothing was mutated.
	ErrValidation = errors.New("invalid input")
	// ErrInvalidEvent indicates an unknown event type or a payload that does not match it.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrInvalidLookup indicates an evidence pack lookup without exactly one identifier.
	ErrInvalidLookup = errors.New("exactly one of share_id or session_id is required")

	// ErrSessionNotFound indicates the requested session is missing.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEvidencePackNotFound indicates no evidence pack matches the lookup.
	ErrEvidencePackNotFound = errors.New("evidence pack not found")

	// ErrSessionNotActive indicates a mutation on a completed or abandoned session.
	ErrSessionNotActive = errors.New("session not active")
	// ErrStageMismatch indicates the caller's stage differs from the session's current stage.
	ErrStageMismatch = errors.New("stage mismatch")

	// ErrUpstream indicates an AI or speech service failure.
	ErrUpstream = errors.New("upstream service failure")
)

// IsValidation reports whether err belongs to the validation class.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, ErrInvalidLookup)
}

// IsNotFound reports whether err belongs to the not-found class.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrEvidencePackNotFound)
}

// IsState reports whether err belongs to the state class.
func IsState(err error) bool {
	return errors.Is(err, ErrSessionNotActive) || errors.Is(err, ErrStageMismatch)
}

func invalidValueError(field, value string, valid []string) error {
	return fmt.Errorf("%w: %s %q (valid: %s)", ErrValidation, field, value, strings.Join(valid, ", "))
}

func requiredFieldError(base error, field string) error {
	return fmt.Errorf("%w: %s is required", base, field)
}
