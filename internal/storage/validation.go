package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/runwayfin/runway/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrEmptySlice       = errors.New("slice cannot be empty")
	ErrInvalidDateRange = errors.New("start date must be before end date")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateNewEntry checks the structural requirements of a pending entry.
// Balance and chart membership are checked separately so they surface as
// their own error types.
func validateNewEntry(entry *model.NewEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if len(entry.Postings) == 0 {
		return fmt.Errorf("%w: postings", ErrEmptySlice)
	}
	if entry.PostedAt.IsZero() {
		return fmt.Errorf("entry %q has no posted_at timestamp", entry.Description)
	}
	for i, p := range entry.Postings {
		if strings.TrimSpace(p.AccountID) == "" {
			return fmt.Errorf("posting %d: %w: account_id", i, ErrEmptyString)
		}
	}
	for i, k := range entry.ImportKeys {
		if strings.TrimSpace(k.AccountID) == "" || strings.TrimSpace(k.ProviderTxnID) == "" {
			return fmt.Errorf("import key %d is incomplete", i)
		}
	}
	return nil
}
