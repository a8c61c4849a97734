// Package importer turns normalized bank transactions into balanced journal
// entries: dedup, categorize, persist, match transfers.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/runwayfin/runway/internal/categorize"
	"github.com/runwayfin/runway/internal/common"
	"github.com/runwayfin/runway/internal/config"
	"github.com/runwayfin/runway/internal/model"
	"github.com/runwayfin/runway/internal/service"
	"github.com/runwayfin/runway/internal/transfer"

	"github.com/google/uuid"
)

// matchLookbackDays widens the transfer-matching window beyond the batch's
// own date range so legs imported in earlier batches can still pair.
const matchLookbackDays = 3

// RowError records one malformed transaction. It never aborts the batch.
type RowError struct {
	ProviderTxnID string `json:"provider_txn_id,omitempty"`
	Reason        string `json:"reason"`
	Row           int    `json:"row"`
}

// ImportResult reports the outcome of one import batch.
type ImportResult struct {
	BatchID              uuid.UUID  `json:"batch_id"`
	AccountID            string     `json:"account_id"`
	UnmappedDescriptions []string   `json:"unmapped_descriptions,omitempty"`
	Errors               []RowError `json:"errors,omitempty"`
	Created              int        `json:"created"`
	Duplicates           int        `json:"duplicates"`
	TransfersMatched     int        `json:"transfers_matched"`
}

// Pipeline imports normalized transactions for one account at a time.
type Pipeline struct {
	store   service.Storage
	cfg     *config.Config
	matcher *transfer.Matcher
}

// NewPipeline creates an import pipeline over the given store and
// configuration.
func NewPipeline(store service.Storage, cfg *config.Config) *Pipeline {
	return &Pipeline{
		store:   store,
		cfg:     cfg,
		matcher: transfer.NewMatcher(cfg.Transfers),
	}
}

// ImportBatch imports one account's transactions. Re-running the same batch
// is a no-op: rows whose (account, provider txn id) key already exists are
// counted as duplicates. A malformed row is recorded in Errors and does not
// abort its siblings.
func (p *Pipeline) ImportBatch(ctx context.Context, accountID, sourceFile string, txns []model.ImportedTransaction) (*ImportResult, error) {
	account, ok := p.cfg.Chart.Lookup(accountID)
	if !ok {
		return nil, &common.UnknownAccountError{AccountID: accountID}
	}
	if account.Type != model.AccountTypeAsset {
		return nil, fmt.Errorf("account %s is not an asset account", accountID)
	}

	result := &ImportResult{
		BatchID:   uuid.New(),
		AccountID: accountID,
	}

	var batchMin, batchMax time.Time
	unmapped := make(map[string]bool)

	for i, txn := range txns {
		if reason := validateRow(&txn); reason != "" {
			result.Errors = append(result.Errors, RowError{
				Row:           i,
				ProviderTxnID: txn.ProviderTxnID,
				Reason:        reason,
			})
			continue
		}

		duplicate, err := p.store.HasImportKey(ctx, accountID, txn.ProviderTxnID)
		if err != nil {
			return nil, fmt.Errorf("failed to check import key for row %d: %w", i, err)
		}
		if duplicate {
			result.Duplicates++
			continue
		}

		categoryAccount := categorize.MapCategoryToAccount(txn.ProviderCategory, txn.RawDescription, txn.Inflow())
		if categoryAccount == categorize.AccountUncategorized || categoryAccount == categorize.AccountOtherIncome {
			unmapped[txn.RawDescription] = true
		}

		entry := model.NewEntry{
			PostedAt:         txn.PostedAt,
			Description:      txn.RawDescription,
			RawDescription:   txn.RawDescription,
			CleanDescription: txn.RawDescription,
			Counterparty:     txn.Counterparty,
			SourceFile:       sourceFile,
			Postings: []model.NewPosting{
				{AccountID: accountID, AmountMinor: txn.AmountMinor},
				{AccountID: categoryAccount, AmountMinor: -txn.AmountMinor},
			},
			ImportKeys: []model.ImportKey{
				{AccountID: accountID, ProviderTxnID: txn.ProviderTxnID},
			},
		}

		if _, err := p.store.CreateEntry(ctx, entry); err != nil {
			result.Errors = append(result.Errors, RowError{
				Row:           i,
				ProviderTxnID: txn.ProviderTxnID,
				Reason:        err.Error(),
			})
			continue
		}
		result.Created++

		posted := txn.PostedAt.UTC()
		if batchMin.IsZero() || posted.Before(batchMin) {
			batchMin = posted
		}
		if batchMax.IsZero() || posted.After(batchMax) {
			batchMax = posted
		}
	}

	for desc := range unmapped {
		result.UnmappedDescriptions = append(result.UnmappedDescriptions, desc)
	}
	sort.Strings(result.UnmappedDescriptions)

	if result.Created > 0 {
		matched, err := p.matchTransfers(ctx, batchMin, batchMax)
		if err != nil {
			return nil, err
		}
		result.TransfersMatched = matched
	}

	slog.Info("Import batch complete",
		"batch_id", result.BatchID,
		"account", accountID,
		"created", result.Created,
		"duplicates", result.Duplicates,
		"transfers_matched", result.TransfersMatched,
		"errors", len(result.Errors))

	return result, nil
}

// matchTransfers runs the transfer matcher over the batch's date range plus
// recent unmatched one-sided entries on either side of it.
func (p *Pipeline) matchTransfers(ctx context.Context, batchMin, batchMax time.Time) (int, error) {
	from := batchMin.AddDate(0, 0, -matchLookbackDays)
	to := batchMax.AddDate(0, 0, matchLookbackDays)

	entries, err := p.store.GetOneSidedEntries(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to load one-sided entries: %w", err)
	}

	candidates := make([]transfer.Candidate, 0, len(entries))
	for _, e := range entries {
		if c, ok := transfer.CandidateFromEntry(e, p.cfg.Chart); ok {
			candidates = append(candidates, c)
		}
	}

	pairs := p.matcher.Match(candidates)
	if len(pairs) == 0 {
		return 0, nil
	}
	return transfer.Apply(ctx, p.store, pairs)
}

func validateRow(txn *model.ImportedTransaction) string {
	switch {
	case txn.ProviderTxnID == "":
		return "missing provider transaction id"
	case txn.PostedAt.IsZero():
		return "missing posted_at timestamp"
	case txn.RawDescription == "":
		return "missing description"
	case txn.AmountMinor == 0:
		return "zero amount"
	default:
		return ""
	}
}
