package sanitize

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/runwayfin/runway/internal/service"
)

// MigrationAction proposes one clean-description rewrite.
type MigrationAction struct {
	RawDescription string `json:"raw_description"`
	CurrentClean   string `json:"current_clean"`
	ProposedClean  string `json:"proposed_clean"`
	EntryID        int64  `json:"entry_id"`
}

// MigrationPlan classifies every entry against the rule set. Entries whose
// clean description was manually edited are counted as already clean and
// are never overwritten.
type MigrationPlan struct {
	ToUpdate     []MigrationAction `json:"to_update"`
	AlreadyClean int               `json:"already_clean"`
	NoMatch      int               `json:"no_match"`
}

// MigrationResult reports an executed (or dry-run) migration.
type MigrationResult struct {
	Errors  []ActionError `json:"errors,omitempty"`
	Updated int           `json:"updated"`
	Skipped int           `json:"skipped"`
	DryRun  bool          `json:"dry_run"`
}

// PlanMigration classifies every entry as toUpdate, alreadyClean or
// noMatch. The plan mutates nothing.
func (e *Engine) PlanMigration(ctx context.Context) (*MigrationPlan, error) {
	entries, err := e.store.GetEntries(ctx, service.EntryFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	plan := &MigrationPlan{}
	for _, entry := range entries {
		rule, ok := e.rules.FirstMatch(entry.RawDescription)
		if !ok {
			plan.NoMatch++
			continue
		}
		if entry.CleanDescription == rule.Target {
			plan.AlreadyClean++
			continue
		}
		if entry.CleanDescription != entry.RawDescription {
			// Manually edited: manual edits always win over rules.
			plan.AlreadyClean++
			continue
		}
		plan.ToUpdate = append(plan.ToUpdate, MigrationAction{
			EntryID:        entry.ID,
			RawDescription: entry.RawDescription,
			CurrentClean:   entry.CleanDescription,
			ProposedClean:  rule.Target,
		})
	}
	return plan, nil
}

// ExecuteMigration applies the plan's updates inside one transaction. With
// dryRun set nothing is written; the result mirrors what a real run would
// report. A per-row failure is collected and does not abort the rest.
func (e *Engine) ExecuteMigration(ctx context.Context, plan *MigrationPlan, dryRun bool) (*MigrationResult, error) {
	result := &MigrationResult{
		Skipped: plan.AlreadyClean + plan.NoMatch,
		DryRun:  dryRun,
	}

	if dryRun {
		result.Updated = len(plan.ToUpdate)
		return result, nil
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, action := range plan.ToUpdate {
		if err := tx.UpdateEntryDescription(ctx, action.EntryID, action.ProposedClean); err != nil {
			result.Errors = append(result.Errors, ActionError{
				EntryID: action.EntryID,
				Reason:  err.Error(),
			})
			continue
		}
		result.Updated++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit migration: %w", err)
	}

	slog.Info("Description migration complete",
		"updated", result.Updated,
		"skipped", result.Skipped,
		"errors", len(result.Errors))

	return result, nil
}
