package analytics

import (
	"context"
	"testing"

	"github.com/runwayfin/runway/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpenseTree(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)
	engine := NewEngine(store, cfg)

	// One month of spending across a small hierarchy.
	spend(t, store, "Expenses:Food:Groceries", day(2026, 3, 5), 40000)
	spend(t, store, "Expenses:Food:EatingOut", day(2026, 3, 12), 10000)
	spend(t, store, "Expenses:Transport", day(2026, 3, 20), 5000)

	root, err := engine.ExpenseTree(ctx, day(2026, 4, 2), 1, StatisticMedian)
	require.NoError(t, err)

	assert.Equal(t, "Expenses", root.Path)
	assert.Equal(t, int64(55000), root.MonthlyMinor)
	assert.Zero(t, root.OwnMonthlyMinor, "the root is never posted to directly")

	// Children sorted by rolled-up figure descending.
	require.Len(t, root.Children, 2)
	food := root.Children[0]
	assert.Equal(t, "Expenses:Food", food.Path)
	assert.Equal(t, "Food", food.Name)
	assert.Equal(t, int64(50000), food.MonthlyMinor)

	transport := root.Children[1]
	assert.Equal(t, "Expenses:Transport", transport.Path)
	assert.Equal(t, int64(5000), transport.MonthlyMinor)
	assert.Equal(t, int64(5000), transport.OwnMonthlyMinor)

	require.Len(t, food.Children, 2)
	assert.Equal(t, "Groceries", food.Children[0].Name)
	assert.Equal(t, int64(40000), food.Children[0].MonthlyMinor)
	assert.Equal(t, "EatingOut", food.Children[1].Name)
}

func TestExpenseTree_Empty(t *testing.T) {
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)
	engine := NewEngine(store, cfg)

	root, err := engine.ExpenseTree(context.Background(), day(2026, 4, 2), 1, StatisticMedian)
	require.NoError(t, err)
	assert.Empty(t, root.Children)
	assert.Zero(t, root.MonthlyMinor)
}

func TestCategoryBreakdown(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)
	engine := NewEngine(store, cfg)

	// Two months in the window.
	spend(t, store, "Expenses:Food:Groceries", day(2026, 2, 5), 40000)
	spend(t, store, "Expenses:Food:Groceries", day(2026, 3, 5), 60000)
	spend(t, store, "Expenses:Transport", day(2026, 3, 20), 5000)

	breakdown, err := engine.CategoryBreakdown(ctx, day(2026, 4, 2), 2, 10)
	require.NoError(t, err)
	require.Len(t, breakdown, 2)

	groceries := breakdown[0]
	assert.Equal(t, "Expenses:Food:Groceries", groceries.AccountID)
	assert.Equal(t, int64(100000), groceries.TotalMinor)
	assert.Equal(t, int64(50000), groceries.MonthlyMedianMinor)

	assert.Equal(t, "Expenses:Transport", breakdown[1].AccountID)

	// topN truncates after sorting.
	top, err := engine.CategoryBreakdown(ctx, day(2026, 4, 2), 2, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Expenses:Food:Groceries", top[0].AccountID)
}

func TestGroupBalanceSeries(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)
	engine := NewEngine(store, cfg)

	earn(t, store, day(2026, 3, 1), 100000)
	spend(t, store, "Expenses:Food:Groceries", day(2026, 3, 3), 30000)

	series, err := engine.GroupBalanceSeries(ctx, "personal", day(2026, 3, 1), day(2026, 3, 4))
	require.NoError(t, err)
	require.Len(t, series, 4)
	assert.Equal(t, int64(100000), series[0].BalanceMinor)
	assert.Equal(t, int64(70000), series[2].BalanceMinor)
	assert.Equal(t, int64(70000), series[3].BalanceMinor)

	_, err = engine.GroupBalanceSeries(ctx, "ghost", day(2026, 3, 1), day(2026, 3, 4))
	assert.Error(t, err)
}
