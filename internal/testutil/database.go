// Package testutil provides test fixtures for the ledger: an in-memory
// store, a standard chart of accounts and a standard configuration.
package testutil

import (
	"context"
	"testing"

	"github.com/runwayfin/runway/internal/config"
	"github.com/runwayfin/runway/internal/model"
	"github.com/runwayfin/runway/internal/service"
	"github.com/runwayfin/runway/internal/storage"
)

// TestAccounts is a chart covering the common test scenarios: two personal
// current/savings accounts, a business account and a joint account.
func TestAccounts() []config.AccountConfig {
	return []config.AccountConfig{
		{ID: "Assets:Monzo:Current", Type: "asset", Provider: "monzo", Group: "personal", Subtype: "current"},
		{ID: "Assets:Monzo:Savings", Type: "asset", Provider: "monzo", Group: "personal", Subtype: "savings"},
		{ID: "Assets:Starling:Business", Type: "asset", Provider: "starling", Group: "business", Subtype: "current"},
		{ID: "Assets:Joint:Current", Type: "asset", Provider: "monzo", Group: "personal", Subtype: "joint"},
	}
}

// TestConfig returns a validated configuration over TestAccounts with a
// personal and a business group and transfer matching between the current
// and savings accounts.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()

	chart, err := config.BuildChart(TestAccounts())
	if err != nil {
		t.Fatalf("failed to build test chart: %v", err)
	}

	return &config.Config{
		Chart:  chart,
		Groups: testGroups(),
		Financial: config.Financial{
			TrailingMonths: 6,
			CorpTaxRate:    0.25,
			IncomeTaxRate:  0.20,
			TaxYearStart:   config.TaxYearStart{Month: 4, Day: 6},
		},
		Transfers: config.TransferAccounts{
			From: []string{"Assets:Monzo:Current"},
			To:   []string{"Assets:Monzo:Savings"},
		},
	}
}

func testGroups() []model.GroupMetadata {
	return []model.GroupMetadata{
		{
			ID:                   "personal",
			Label:                "Personal",
			TaxType:              model.TaxTypeIncome,
			ExpenseReserveMonths: 3,
		},
		{
			ID:                      "business",
			Label:                   "Business",
			TaxType:                 model.TaxTypeCorp,
			ExpenseReserveMonths:    6,
			BurnRateExcludeAccounts: []string{"Expenses:Tax:VAT"},
		},
	}
}

// SetupTestDB creates a migrated in-memory store over the given config's
// chart, cleaned up with the test.
func SetupTestDB(t *testing.T, cfg *config.Config) service.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:", cfg.Chart)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}
