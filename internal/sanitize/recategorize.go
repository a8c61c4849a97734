package sanitize

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/runwayfin/runway/internal/categorize"
	"github.com/runwayfin/runway/internal/model"
	"github.com/runwayfin/runway/internal/service"
)

// RecategorizeAction proposes moving one entry's category leg.
type RecategorizeAction struct {
	RawDescription string `json:"raw_description"`
	FromAccount    string `json:"from_account"`
	ToAccount      string `json:"to_account"`
	EntryID        int64  `json:"entry_id"`
}

// RecategorizePlan classifies every provisional entry against the rules
// that carry a category.
type RecategorizePlan struct {
	ToUpdate           []RecategorizeAction `json:"to_update"`
	AlreadyCategorized int                  `json:"already_categorized"`
	NoMatch            int                  `json:"no_match"`
}

// RecategorizeResult reports an executed (or dry-run) recategorization.
type RecategorizeResult struct {
	Errors  []ActionError `json:"errors,omitempty"`
	Updated int           `json:"updated"`
	Skipped int           `json:"skipped"`
	DryRun  bool          `json:"dry_run"`
}

// PlanRecategorize proposes category-leg changes by re-running the category
// mapper against each matching rule's category. Entries already on the
// proposed account are counted as already categorized.
func (e *Engine) PlanRecategorize(ctx context.Context) (*RecategorizePlan, error) {
	entries, err := e.store.GetEntries(ctx, service.EntryFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	plan := &RecategorizePlan{}
	for _, entry := range entries {
		rule, ok := e.rules.FirstMatch(entry.RawDescription)
		if !ok || rule.Category == "" {
			plan.NoMatch++
			continue
		}

		assetLeg, categoryLeg, ok := e.splitLegs(&entry)
		if !ok {
			// Merged transfers have no category leg to move.
			plan.NoMatch++
			continue
		}

		target := categorize.MapCategoryToAccount(rule.Category, entry.RawDescription, assetLeg.AmountMinor > 0)
		if categoryLeg.AccountID == target {
			plan.AlreadyCategorized++
			continue
		}
		plan.ToUpdate = append(plan.ToUpdate, RecategorizeAction{
			EntryID:        entry.ID,
			RawDescription: entry.RawDescription,
			FromAccount:    categoryLeg.AccountID,
			ToAccount:      target,
		})
	}
	return plan, nil
}

// ExecuteRecategorize applies the plan inside one transaction unless
// dryRun. Per-row failures are collected and do not abort the rest.
func (e *Engine) ExecuteRecategorize(ctx context.Context, plan *RecategorizePlan, dryRun bool) (*RecategorizeResult, error) {
	result := &RecategorizeResult{
		Skipped: plan.AlreadyCategorized + plan.NoMatch,
		DryRun:  dryRun,
	}

	if dryRun {
		result.Updated = len(plan.ToUpdate)
		return result, nil
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin recategorize transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, action := range plan.ToUpdate {
		if err := tx.UpdateEntryCategoryLeg(ctx, action.EntryID, action.ToAccount); err != nil {
			result.Errors = append(result.Errors, ActionError{
				EntryID: action.EntryID,
				Reason:  err.Error(),
			})
			continue
		}
		result.Updated++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit recategorization: %w", err)
	}

	slog.Info("Recategorization complete",
		"updated", result.Updated,
		"skipped", result.Skipped,
		"errors", len(result.Errors))

	return result, nil
}

// splitLegs returns the asset and category legs of a provisional entry.
func (e *Engine) splitLegs(entry *model.JournalEntry) (asset, category *model.Posting, ok bool) {
	if len(entry.Postings) != 2 {
		return nil, nil, false
	}
	for i := range entry.Postings {
		acct, found := e.chart.Lookup(entry.Postings[i].AccountID)
		if found && acct.Type == model.AccountTypeAsset {
			asset = &entry.Postings[i]
		} else {
			category = &entry.Postings[i]
		}
	}
	if asset == nil || category == nil {
		return nil, nil, false
	}
	return asset, category, true
}
