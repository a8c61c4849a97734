// Package service defines the interfaces the ledger engines depend on.
package service

import (
	"context"
	"time"

	"github.com/runwayfin/runway/internal/model"
)

// EntryFilter defines filtering options for journal entry queries.
type EntryFilter struct {
	From      *time.Time
	To        *time.Time
	AccountID string
	Limit     int
	Offset    int
}

// BalancePoint is one day of an account balance series.
type BalancePoint struct {
	Date         time.Time
	BalanceMinor int64
}

// MonthlyTotal is the posting sum for one account in one calendar month.
type MonthlyTotal struct {
	Month      string // "2006-01"
	AccountID  string
	TotalMinor int64
}

// DescriptionGroup aggregates the entries sharing one raw description.
type DescriptionGroup struct {
	FirstSeen      time.Time
	LastSeen       time.Time
	RawDescription string
	Accounts       []string
	Occurrences    int
	TotalMinor     int64
}

// Storage defines the contract for the ledger persistence layer.
//
// All mutation is transactional: either the full set of postings for an
// entry commits, or none do. The store enforces the balanced-entry
// invariant and the configured chart of accounts on every write.
type Storage interface {
	// Entry writes.
	CreateEntry(ctx context.Context, entry model.NewEntry) (int64, error)
	ReplaceTransferPair(ctx context.Context, fromEntryID, toEntryID int64, merged model.NewEntry) (int64, error)
	UpdateEntryDescription(ctx context.Context, entryID int64, cleanDescription string) error
	UpdateEntryCategoryLeg(ctx context.Context, entryID int64, accountID string) error

	// Entry reads.
	GetEntry(ctx context.Context, entryID int64) (*model.JournalEntry, error)
	GetEntries(ctx context.Context, filter EntryFilter) ([]model.JournalEntry, error)
	GetEntryCount(ctx context.Context, filter EntryFilter) (int, error)
	GetOneSidedEntries(ctx context.Context, from, to time.Time) ([]model.JournalEntry, error)
	GetDescriptionGroups(ctx context.Context) ([]DescriptionGroup, error)

	// Import idempotence.
	HasImportKey(ctx context.Context, accountID, providerTxnID string) (bool, error)

	// Balance queries.
	GetBalance(ctx context.Context, accountID string, asOf *time.Time) (int64, error)
	GetDailyBalanceSeries(ctx context.Context, accountIDs []string, from, to time.Time) ([]BalancePoint, error)
	MonthlyAccountTotals(ctx context.Context, accountIDs []string, from, to time.Time) ([]MonthlyTotal, error)

	// Database management.
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}

// Tx represents a database transaction. All Storage methods invoked on a Tx
// run inside it and become visible together at Commit.
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}
