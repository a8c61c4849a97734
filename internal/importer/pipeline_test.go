package importer

import (
	"context"
	"testing"
	"time"

	"github.com/runwayfin/runway/internal/model"
	"github.com/runwayfin/runway/internal/service"
	"github.com/runwayfin/runway/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func txn(id string, postedAt time.Time, amountMinor int64, description, category string) model.ImportedTransaction {
	return model.ImportedTransaction{
		ProviderTxnID:    id,
		PostedAt:         postedAt,
		AmountMinor:      amountMinor,
		Currency:         "GBP",
		RawDescription:   description,
		ProviderCategory: category,
	}
}

func TestImportBatch(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)
	pipeline := NewPipeline(store, cfg)

	txns := []model.ImportedTransaction{
		txn("tx-1", day(2026, 3, 2), -1250, "TESCO STORES 3247", "groceries"),
		txn("tx-2", day(2026, 3, 3), 300000, "ACME PAYROLL", "salary"),
		txn("tx-3", day(2026, 3, 4), -999, "MYSTERY SHOP", ""),
	}

	result, err := pipeline.ImportBatch(ctx, "Assets:Monzo:Current", "march.ofx", txns)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Created)
	assert.Zero(t, result.Duplicates)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{"MYSTERY SHOP"}, result.UnmappedDescriptions)

	// Every created entry is balanced and on the mapped accounts.
	balance, err := store.GetBalance(ctx, "Assets:Monzo:Current", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-1250+300000-999), balance)

	groceries, err := store.GetBalance(ctx, "Expenses:Food:Groceries", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), groceries)

	salary, err := store.GetBalance(ctx, "Income:Salary", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-300000), salary)

	uncategorized, err := store.GetBalance(ctx, "Expenses:Uncategorized", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(999), uncategorized)
}

func TestImportBatch_Idempotent(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)
	pipeline := NewPipeline(store, cfg)

	txns := []model.ImportedTransaction{
		txn("tx-1", day(2026, 3, 2), -1250, "TESCO STORES 3247", "groceries"),
		txn("tx-2", day(2026, 3, 3), 300000, "ACME PAYROLL", "salary"),
	}

	first, err := pipeline.ImportBatch(ctx, "Assets:Monzo:Current", "march.ofx", txns)
	require.NoError(t, err)
	require.Equal(t, 2, first.Created)

	balanceBefore, err := store.GetBalance(ctx, "Assets:Monzo:Current", nil)
	require.NoError(t, err)
	countBefore, err := store.GetEntryCount(ctx, service.EntryFilter{})
	require.NoError(t, err)

	// The same file again: nothing changes.
	second, err := pipeline.ImportBatch(ctx, "Assets:Monzo:Current", "march.ofx", txns)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 2, second.Duplicates)

	balanceAfter, err := store.GetBalance(ctx, "Assets:Monzo:Current", nil)
	require.NoError(t, err)
	assert.Equal(t, balanceBefore, balanceAfter)

	countAfter, err := store.GetEntryCount(ctx, service.EntryFilter{})
	require.NoError(t, err)
	assert.Equal(t, countBefore, countAfter)
}

func TestImportBatch_RowErrorsDoNotAbort(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)
	pipeline := NewPipeline(store, cfg)

	txns := []model.ImportedTransaction{
		txn("", day(2026, 3, 2), -1250, "NO ID", "groceries"),
		txn("tx-2", time.Time{}, -1250, "NO DATE", "groceries"),
		txn("tx-3", day(2026, 3, 2), -1250, "", "groceries"),
		txn("tx-4", day(2026, 3, 2), 0, "ZERO AMOUNT", "groceries"),
		txn("tx-5", day(2026, 3, 2), -1250, "TESCO STORES 3247", "groceries"),
	}

	result, err := pipeline.ImportBatch(ctx, "Assets:Monzo:Current", "march.ofx", txns)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 4)
	assert.Equal(t, 0, result.Errors[0].Row)
	assert.Equal(t, "missing provider transaction id", result.Errors[0].Reason)
	assert.Equal(t, "missing posted_at timestamp", result.Errors[1].Reason)
	assert.Equal(t, "missing description", result.Errors[2].Reason)
	assert.Equal(t, "zero amount", result.Errors[3].Reason)
}

func TestImportBatch_RejectsNonAssetAccount(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)
	pipeline := NewPipeline(store, cfg)

	_, err := pipeline.ImportBatch(ctx, "Expenses:Food:Groceries", "x.ofx", nil)
	assert.Error(t, err)

	_, err = pipeline.ImportBatch(ctx, "Assets:Ghost", "x.ofx", nil)
	assert.Error(t, err)
}

func TestImportBatch_MatchesTransfersAcrossBatches(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)
	pipeline := NewPipeline(store, cfg)

	// The from leg arrives in the current account's statement.
	first, err := pipeline.ImportBatch(ctx, "Assets:Monzo:Current", "current.ofx", []model.ImportedTransaction{
		txn("out-1", day(2026, 3, 5), -20000, "Pot transfer to Savings", ""),
	})
	require.NoError(t, err)
	assert.Zero(t, first.TransfersMatched, "one leg alone cannot pair")

	// The to leg arrives a day later in the savings statement.
	second, err := pipeline.ImportBatch(ctx, "Assets:Monzo:Savings", "savings.ofx", []model.ImportedTransaction{
		txn("in-1", day(2026, 3, 6), 20000, "Pot transfer from Current", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.TransfersMatched)

	// One merged entry remains, moving the money between the assets.
	count, err := store.GetEntryCount(ctx, service.EntryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	current, err := store.GetBalance(ctx, "Assets:Monzo:Current", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-20000), current)

	savings, err := store.GetBalance(ctx, "Assets:Monzo:Savings", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), savings)

	wash, err := store.GetBalance(ctx, "Equity:Transfers", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), wash)

	// Re-importing both statements after the merge is still a no-op.
	again, err := pipeline.ImportBatch(ctx, "Assets:Monzo:Current", "current.ofx", []model.ImportedTransaction{
		txn("out-1", day(2026, 3, 5), -20000, "Pot transfer to Savings", ""),
	})
	require.NoError(t, err)
	assert.Zero(t, again.Created)
	assert.Equal(t, 1, again.Duplicates)
}
