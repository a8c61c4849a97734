// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound          = errors.New("not found")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ImbalancedEntryError indicates a journal entry whose postings do not sum
// to zero. The write is always rejected; imbalance is never auto-corrected.
type ImbalancedEntryError struct {
	Description string
	SumMinor    int64
}

func (e *ImbalancedEntryError) Error() string {
	return fmt.Sprintf("imbalanced entry %q: postings sum to %d, want 0", e.Description, e.SumMinor)
}

// UnknownAccountError indicates a reference to an account that is not in
// the configured chart of accounts.
type UnknownAccountError struct {
	AccountID string
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("unknown account %q", e.AccountID)
}

// ParseError records one malformed input row. It is collected per row and
// never aborts the surrounding batch.
type ParseError struct {
	Reason string
	Row    int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// ConfigError indicates missing or invalid configuration. Fatal at startup:
// all downstream computation depends on a valid configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
