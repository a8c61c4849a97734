package analytics

import (
	"context"
	"testing"

	"github.com/runwayfin/runway/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxReserve(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)
	engine := NewEngine(store, cfg)

	// Business profit since the April 6 tax-year boundary.
	seedEntry(t, store, "Assets:Starling:Business", "Income:Sales", day(2026, 5, 1), 1000000)
	seedEntry(t, store, "Assets:Starling:Business", "Expenses:Fees", day(2026, 5, 15), -200000)
	// Profit from the previous tax year is out of scope.
	seedEntry(t, store, "Assets:Starling:Business", "Income:Sales", day(2026, 3, 1), 5000000)

	result, err := engine.TaxReserve(ctx, "business", day(2026, 6, 30))
	require.NoError(t, err)

	assert.Equal(t, day(2026, 4, 6), result.TaxYearStart)
	assert.Equal(t, int64(800000), result.YTDNetMinor)
	// Corporation tax at 25%.
	assert.Equal(t, int64(200000), result.ReserveMinor)
}

func TestTaxReserve_BoundaryRollsBack(t *testing.T) {
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)
	engine := NewEngine(store, cfg)

	// Before this year's boundary, the window starts at last year's.
	result, err := engine.TaxReserve(context.Background(), "business", day(2026, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, day(2025, 4, 6), result.TaxYearStart)
}

func TestTaxReserve_IncomeAndNone(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	cfg.Groups = append(cfg.Groups, cfg.Groups[0])
	cfg.Groups[2].ID = "untaxed"
	cfg.Groups[2].TaxType = "none"
	store := testutil.SetupTestDB(t, cfg)
	engine := NewEngine(store, cfg)

	earn(t, store, day(2026, 5, 1), 1000000)

	// The personal group reserves at the income-tax rate.
	personal, err := engine.TaxReserve(ctx, "personal", day(2026, 6, 30))
	require.NoError(t, err)
	assert.Equal(t, int64(200000), personal.ReserveMinor)

	// A tax-free group always reserves zero.
	untaxed, err := engine.TaxReserve(ctx, "untaxed", day(2026, 6, 30))
	require.NoError(t, err)
	assert.True(t, untaxed.Rate.IsZero())
	assert.Zero(t, untaxed.ReserveMinor)
}

func TestTaxReserve_NegativeNetReservesNothing(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)
	engine := NewEngine(store, cfg)

	seedEntry(t, store, "Assets:Starling:Business", "Expenses:Fees", day(2026, 5, 15), -200000)

	result, err := engine.TaxReserve(ctx, "business", day(2026, 6, 30))
	require.NoError(t, err)
	assert.Equal(t, int64(-200000), result.YTDNetMinor)
	assert.Zero(t, result.ReserveMinor, "a loss carries no tax reserve")
}

func TestExpenseReserve(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)
	engine := NewEngine(store, cfg)

	for i := 0; i < 6; i++ {
		spend(t, store, "Expenses:Food:Groceries", day(2025, 10, 10).AddDate(0, i, 0), 100000)
	}

	result, err := engine.ExpenseReserve(ctx, "personal", day(2026, 4, 2))
	require.NoError(t, err)

	assert.Equal(t, int64(100000), result.MedianMonthlyMinor)
	assert.Equal(t, 3, result.ReserveMonths)
	assert.Equal(t, int64(300000), result.ReserveMinor)
}
