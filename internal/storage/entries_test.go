package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/runwayfin/runway/internal/common"
	"github.com/runwayfin/runway/internal/model"
	"github.com/runwayfin/runway/internal/service"
	"github.com/runwayfin/runway/internal/testutil"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func groceryEntry(postedAt time.Time, amountMinor int64, txnID string) model.NewEntry {
	return model.NewEntry{
		PostedAt:         postedAt,
		Description:      "TESCO STORES 3247",
		RawDescription:   "TESCO STORES 3247",
		CleanDescription: "TESCO STORES 3247",
		SourceFile:       "test.ofx",
		Postings: []model.NewPosting{
			{AccountID: "Assets:Monzo:Current", AmountMinor: -amountMinor},
			{AccountID: "Expenses:Food:Groceries", AmountMinor: amountMinor},
		},
		ImportKeys: []model.ImportKey{
			{AccountID: "Assets:Monzo:Current", ProviderTxnID: txnID},
		},
	}
}

func TestCreateEntry(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)

	id, err := store.CreateEntry(ctx, groceryEntry(day(2026, 3, 10), 1250, "tx-1"))
	if err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}

	entry, err := store.GetEntry(ctx, id)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if len(entry.Postings) != 2 {
		t.Fatalf("got %d postings, want 2", len(entry.Postings))
	}
	if !entry.Balanced() {
		t.Errorf("stored entry is imbalanced: sum %d", entry.PostingSum())
	}
	if entry.CleanDescription != entry.RawDescription {
		t.Errorf("clean description = %q, want %q", entry.CleanDescription, entry.RawDescription)
	}
	if !entry.PostedAt.Equal(day(2026, 3, 10)) {
		t.Errorf("posted at = %v, want %v", entry.PostedAt, day(2026, 3, 10))
	}

	exists, err := store.HasImportKey(ctx, "Assets:Monzo:Current", "tx-1")
	if err != nil {
		t.Fatalf("HasImportKey failed: %v", err)
	}
	if !exists {
		t.Error("import key should exist after create")
	}
}

func TestCreateEntry_RejectsImbalanced(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)

	entry := groceryEntry(day(2026, 3, 10), 1250, "tx-1")
	entry.Postings[1].AmountMinor = 1249

	_, err := store.CreateEntry(ctx, entry)
	var imbalanced *common.ImbalancedEntryError
	if !errors.As(err, &imbalanced) {
		t.Fatalf("want ImbalancedEntryError, got %v", err)
	}
	if imbalanced.SumMinor != -1 {
		t.Errorf("SumMinor = %d, want -1", imbalanced.SumMinor)
	}

	// Nothing may be written by a failed create.
	count, err := store.GetEntryCount(ctx, service.EntryFilter{})
	if err != nil {
		t.Fatalf("GetEntryCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("entry count = %d, want 0", count)
	}
}

func TestCreateEntry_RejectsUnknownAccount(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)

	entry := groceryEntry(day(2026, 3, 10), 1250, "tx-1")
	entry.Postings[1].AccountID = "Expenses:Nope"

	_, err := store.CreateEntry(ctx, entry)
	var unknown *common.UnknownAccountError
	if !errors.As(err, &unknown) {
		t.Fatalf("want UnknownAccountError, got %v", err)
	}
	if unknown.AccountID != "Expenses:Nope" {
		t.Errorf("AccountID = %q", unknown.AccountID)
	}
}

func TestCreateEntry_DuplicateImportKey(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)

	if _, err := store.CreateEntry(ctx, groceryEntry(day(2026, 3, 10), 1250, "tx-1")); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := store.CreateEntry(ctx, groceryEntry(day(2026, 3, 11), 900, "tx-1")); err == nil {
		t.Fatal("second create with the same import key should fail")
	}

	// The failed create must not leave a partial entry behind.
	count, err := store.GetEntryCount(ctx, service.EntryFilter{})
	if err != nil {
		t.Fatalf("GetEntryCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("entry count = %d, want 1", count)
	}
}

func TestGetEntries_Filters(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)

	mustCreate(t, store, groceryEntry(day(2026, 3, 1), 1000, "tx-1"))
	mustCreate(t, store, groceryEntry(day(2026, 3, 15), 2000, "tx-2"))

	salary := model.NewEntry{
		PostedAt:         day(2026, 3, 25),
		Description:      "ACME PAYROLL",
		RawDescription:   "ACME PAYROLL",
		CleanDescription: "ACME PAYROLL",
		Postings: []model.NewPosting{
			{AccountID: "Assets:Starling:Business", AmountMinor: 500000},
			{AccountID: "Income:Salary", AmountMinor: -500000},
		},
	}
	mustCreate(t, store, salary)

	all, err := store.GetEntries(ctx, service.EntryFilter{})
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}
	// Ordered by posting time.
	for i := 1; i < len(all); i++ {
		if all[i].PostedAt.Before(all[i-1].PostedAt) {
			t.Errorf("entries out of order at %d", i)
		}
	}

	from := day(2026, 3, 10)
	to := day(2026, 3, 20)
	windowed, err := store.GetEntries(ctx, service.EntryFilter{From: &from, To: &to})
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	if len(windowed) != 1 || windowed[0].RawDescription != "TESCO STORES 3247" {
		t.Errorf("window filter returned %d entries", len(windowed))
	}

	byAccount, err := store.GetEntries(ctx, service.EntryFilter{AccountID: "Assets:Starling:Business"})
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	if len(byAccount) != 1 || byAccount[0].RawDescription != "ACME PAYROLL" {
		t.Errorf("account filter returned %d entries", len(byAccount))
	}

	limited, err := store.GetEntries(ctx, service.EntryFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit/offset returned %d entries, want 2", len(limited))
	}

	// Offset works without a limit.
	skipped, err := store.GetEntries(ctx, service.EntryFilter{Offset: 1})
	if err != nil {
		t.Fatalf("GetEntries failed: %v", err)
	}
	if len(skipped) != 2 {
		t.Fatalf("offset without limit returned %d entries, want 2", len(skipped))
	}
	if skipped[0].RawDescription != "TESCO STORES 3247" || skipped[1].RawDescription != "ACME PAYROLL" {
		t.Errorf("offset without limit returned wrong entries: %q, %q",
			skipped[0].RawDescription, skipped[1].RawDescription)
	}
}

func TestGetEntry_NotFound(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)

	_, err := store.GetEntry(ctx, 42)
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestReplaceTransferPair(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)

	fromEntry := model.NewEntry{
		PostedAt:         day(2026, 3, 5),
		Description:      "Pot transfer to Savings",
		RawDescription:   "Pot transfer to Savings",
		CleanDescription: "Pot transfer to Savings",
		Postings: []model.NewPosting{
			{AccountID: "Assets:Monzo:Current", AmountMinor: -20000},
			{AccountID: "Equity:Transfers", AmountMinor: 20000},
		},
		ImportKeys: []model.ImportKey{{AccountID: "Assets:Monzo:Current", ProviderTxnID: "out-1"}},
	}
	toEntry := model.NewEntry{
		PostedAt:         day(2026, 3, 5),
		Description:      "Pot transfer from Current",
		RawDescription:   "Pot transfer from Current",
		CleanDescription: "Pot transfer from Current",
		Postings: []model.NewPosting{
			{AccountID: "Assets:Monzo:Savings", AmountMinor: 20000},
			{AccountID: "Equity:Transfers", AmountMinor: -20000},
		},
		ImportKeys: []model.ImportKey{{AccountID: "Assets:Monzo:Savings", ProviderTxnID: "in-1"}},
	}

	fromID := mustCreate(t, store, fromEntry)
	toID := mustCreate(t, store, toEntry)

	merged := model.NewEntry{
		PostedAt:         day(2026, 3, 5),
		Description:      "Transfer Assets:Monzo:Current -> Assets:Monzo:Savings",
		RawDescription:   "Pot transfer to Savings",
		CleanDescription: "Pot transfer to Savings",
		Postings: []model.NewPosting{
			{AccountID: "Assets:Monzo:Current", AmountMinor: -20000},
			{AccountID: "Assets:Monzo:Savings", AmountMinor: 20000},
		},
	}

	mergedID, err := store.ReplaceTransferPair(ctx, fromID, toID, merged)
	if err != nil {
		t.Fatalf("ReplaceTransferPair failed: %v", err)
	}

	// The provisional entries are gone.
	if _, err := store.GetEntry(ctx, fromID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("from entry should be deleted, got %v", err)
	}
	if _, err := store.GetEntry(ctx, toID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("to entry should be deleted, got %v", err)
	}

	entry, err := store.GetEntry(ctx, mergedID)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if len(entry.Postings) != 2 || !entry.Balanced() {
		t.Fatalf("merged entry malformed: %+v", entry.Postings)
	}

	// Both import keys survive the merge, keeping re-imports idempotent.
	for _, key := range []model.ImportKey{
		{AccountID: "Assets:Monzo:Current", ProviderTxnID: "out-1"},
		{AccountID: "Assets:Monzo:Savings", ProviderTxnID: "in-1"},
	} {
		exists, err := store.HasImportKey(ctx, key.AccountID, key.ProviderTxnID)
		if err != nil {
			t.Fatalf("HasImportKey failed: %v", err)
		}
		if !exists {
			t.Errorf("import key %s/%s lost by merge", key.AccountID, key.ProviderTxnID)
		}
	}

	count, err := store.GetEntryCount(ctx, service.EntryFilter{})
	if err != nil {
		t.Fatalf("GetEntryCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("entry count = %d, want 1", count)
	}
}

func TestReplaceTransferPair_MissingEntry(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)

	id := mustCreate(t, store, groceryEntry(day(2026, 3, 10), 1250, "tx-1"))

	merged := model.NewEntry{
		PostedAt:         day(2026, 3, 10),
		Description:      "Transfer",
		RawDescription:   "Transfer",
		CleanDescription: "Transfer",
		Postings: []model.NewPosting{
			{AccountID: "Assets:Monzo:Current", AmountMinor: -1250},
			{AccountID: "Assets:Monzo:Savings", AmountMinor: 1250},
		},
	}

	if _, err := store.ReplaceTransferPair(ctx, id, id+99, merged); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}

	// The surviving entry is untouched.
	if _, err := store.GetEntry(ctx, id); err != nil {
		t.Errorf("existing entry should survive a failed merge: %v", err)
	}
}

func TestUpdateEntryDescription(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)

	id := mustCreate(t, store, groceryEntry(day(2026, 3, 10), 1250, "tx-1"))

	if err := store.UpdateEntryDescription(ctx, id, "Tesco"); err != nil {
		t.Fatalf("UpdateEntryDescription failed: %v", err)
	}

	entry, err := store.GetEntry(ctx, id)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if entry.CleanDescription != "Tesco" {
		t.Errorf("clean description = %q, want Tesco", entry.CleanDescription)
	}
	if entry.RawDescription != "TESCO STORES 3247" {
		t.Errorf("raw description must never change, got %q", entry.RawDescription)
	}

	if err := store.UpdateEntryDescription(ctx, id+99, "x"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("want ErrNotFound for missing entry, got %v", err)
	}
}

func TestUpdateEntryCategoryLeg(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)

	id := mustCreate(t, store, groceryEntry(day(2026, 3, 10), 1250, "tx-1"))

	if err := store.UpdateEntryCategoryLeg(ctx, id, "Expenses:Food:EatingOut"); err != nil {
		t.Fatalf("UpdateEntryCategoryLeg failed: %v", err)
	}

	entry, err := store.GetEntry(ctx, id)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if _, ok := entry.PostingFor("Expenses:Food:EatingOut"); !ok {
		t.Error("category leg should have moved to Expenses:Food:EatingOut")
	}
	if p, ok := entry.PostingFor("Assets:Monzo:Current"); !ok || p.AmountMinor != -1250 {
		t.Error("asset leg must be untouched")
	}
	if !entry.Balanced() {
		t.Error("entry must stay balanced after recategorization")
	}

	if err := store.UpdateEntryCategoryLeg(ctx, id, "Expenses:Nope"); err == nil {
		t.Error("unknown target account should fail")
	}
}

func TestGetOneSidedEntries(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)

	mustCreate(t, store, groceryEntry(day(2026, 3, 10), 1250, "tx-1"))

	// A merged transfer has two asset legs and is not one-sided.
	mustCreate(t, store, model.NewEntry{
		PostedAt:         day(2026, 3, 11),
		Description:      "Transfer",
		RawDescription:   "Transfer",
		CleanDescription: "Transfer",
		Postings: []model.NewPosting{
			{AccountID: "Assets:Monzo:Current", AmountMinor: -5000},
			{AccountID: "Assets:Monzo:Savings", AmountMinor: 5000},
		},
	})

	oneSided, err := store.GetOneSidedEntries(ctx, day(2026, 3, 1), day(2026, 3, 31))
	if err != nil {
		t.Fatalf("GetOneSidedEntries failed: %v", err)
	}
	if len(oneSided) != 1 {
		t.Fatalf("got %d one-sided entries, want 1", len(oneSided))
	}
	if oneSided[0].RawDescription != "TESCO STORES 3247" {
		t.Errorf("unexpected one-sided entry %q", oneSided[0].RawDescription)
	}
}

func TestGetDescriptionGroups(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.TestConfig(t)
	store := testutil.SetupTestDB(t, cfg)

	mustCreate(t, store, groceryEntry(day(2026, 3, 1), 1000, "tx-1"))
	mustCreate(t, store, groceryEntry(day(2026, 3, 20), 2500, "tx-2"))

	coffee := groceryEntry(day(2026, 3, 5), 375, "tx-3")
	coffee.Description = "COSTA COFFEE"
	coffee.RawDescription = "COSTA COFFEE"
	coffee.CleanDescription = "COSTA COFFEE"
	mustCreate(t, store, coffee)

	groups, err := store.GetDescriptionGroups(ctx)
	if err != nil {
		t.Fatalf("GetDescriptionGroups failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}

	// Ordered by occurrence count descending.
	tesco := groups[0]
	if tesco.RawDescription != "TESCO STORES 3247" || tesco.Occurrences != 2 {
		t.Fatalf("unexpected first group: %+v", tesco)
	}
	if tesco.TotalMinor != 3500 {
		t.Errorf("TotalMinor = %d, want 3500", tesco.TotalMinor)
	}
	if tesco.FirstSeen.After(tesco.LastSeen) {
		t.Error("FirstSeen must not be after LastSeen")
	}
	if !tesco.FirstSeen.Equal(day(2026, 3, 1)) || !tesco.LastSeen.Equal(day(2026, 3, 20)) {
		t.Errorf("seen range = %v..%v", tesco.FirstSeen, tesco.LastSeen)
	}
}

func mustCreate(t *testing.T, store service.Storage, entry model.NewEntry) int64 {
	t.Helper()
	id, err := store.CreateEntry(context.Background(), entry)
	if err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}
	return id
}
