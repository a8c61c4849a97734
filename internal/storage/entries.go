package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/runwayfin/runway/internal/common"
	"github.com/runwayfin/runway/internal/model"
	"github.com/runwayfin/runway/internal/service"
)

// CreateEntry writes a balanced journal entry, its postings and its import
// keys in one transaction.
func (s *SQLiteStorage) CreateEntry(ctx context.Context, entry model.NewEntry) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := s.createEntryTx(ctx, tx, entry)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit entry: %w", err)
	}
	return id, nil
}

func (t *sqliteTx) CreateEntry(ctx context.Context, entry model.NewEntry) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return t.storage.createEntryTx(ctx, t.tx, entry)
}

func (s *SQLiteStorage) createEntryTx(ctx context.Context, q querier, entry model.NewEntry) (int64, error) {
	if err := validateNewEntry(&entry); err != nil {
		return 0, err
	}
	if sum := entry.PostingSum(); sum != 0 {
		return 0, &common.ImbalancedEntryError{Description: entry.Description, SumMinor: sum}
	}
	for _, p := range entry.Postings {
		if _, ok := s.chart.Lookup(p.AccountID); !ok {
			return 0, &common.UnknownAccountError{AccountID: p.AccountID}
		}
	}
	for _, k := range entry.ImportKeys {
		if _, ok := s.chart.Lookup(k.AccountID); !ok {
			return 0, &common.UnknownAccountError{AccountID: k.AccountID}
		}
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO entries (posted_at, description, raw_description, clean_description, counterparty, source_file)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.PostedAt.UTC(),
		entry.Description,
		entry.RawDescription,
		entry.CleanDescription,
		entry.Counterparty,
		entry.SourceFile,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert entry: %w", err)
	}

	entryID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get entry id: %w", err)
	}

	for _, p := range entry.Postings {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO postings (entry_id, account_id, amount_minor) VALUES (?, ?, ?)
		`, entryID, p.AccountID, p.AmountMinor); err != nil {
			return 0, fmt.Errorf("failed to insert posting for %s: %w", p.AccountID, err)
		}
	}

	for _, k := range entry.ImportKeys {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO import_keys (entry_id, account_id, provider_txn_id) VALUES (?, ?, ?)
		`, entryID, k.AccountID, k.ProviderTxnID); err != nil {
			return 0, fmt.Errorf("failed to insert import key %s/%s: %w", k.AccountID, k.ProviderTxnID, err)
		}
	}

	return entryID, nil
}

// ReplaceTransferPair atomically deletes two provisional one-sided entries
// and writes the merged two-asset-posting entry in their place. Both
// entries' import keys must be carried on the merged entry.
func (s *SQLiteStorage) ReplaceTransferPair(ctx context.Context, fromEntryID, toEntryID int64, merged model.NewEntry) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := s.replaceTransferPairTx(ctx, tx, fromEntryID, toEntryID, merged)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transfer merge: %w", err)
	}
	return id, nil
}

func (t *sqliteTx) ReplaceTransferPair(ctx context.Context, fromEntryID, toEntryID int64, merged model.NewEntry) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return t.storage.replaceTransferPairTx(ctx, t.tx, fromEntryID, toEntryID, merged)
}

func (s *SQLiteStorage) replaceTransferPairTx(ctx context.Context, q querier, fromEntryID, toEntryID int64, merged model.NewEntry) (int64, error) {
	if fromEntryID == toEntryID {
		return 0, fmt.Errorf("cannot merge entry %d with itself", fromEntryID)
	}

	// Import keys on the provisional entries survive onto the merged entry;
	// losing them would allow the same provider rows to re-import.
	rows, err := q.QueryContext(ctx, `
		SELECT account_id, provider_txn_id FROM import_keys WHERE entry_id IN (?, ?)
	`, fromEntryID, toEntryID)
	if err != nil {
		return 0, fmt.Errorf("failed to load import keys: %w", err)
	}
	for rows.Next() {
		var k model.ImportKey
		if err := rows.Scan(&k.AccountID, &k.ProviderTxnID); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan import key: %w", err)
		}
		merged.ImportKeys = append(merged.ImportKeys, k)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("failed to iterate import keys: %w", err)
	}
	_ = rows.Close()

	res, err := q.ExecContext(ctx, `DELETE FROM entries WHERE id IN (?, ?)`, fromEntryID, toEntryID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete provisional entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if affected != 2 {
		return 0, fmt.Errorf("transfer pair %d/%d: %w", fromEntryID, toEntryID, common.ErrNotFound)
	}

	return s.createEntryTx(ctx, q, merged)
}

// UpdateEntryDescription rewrites an entry's clean description. Amounts and
// timestamps are never touched.
func (s *SQLiteStorage) UpdateEntryDescription(ctx context.Context, entryID int64, cleanDescription string) error {
	return updateEntryDescription(ctx, s.db, entryID, cleanDescription)
}

func (t *sqliteTx) UpdateEntryDescription(ctx context.Context, entryID int64, cleanDescription string) error {
	return updateEntryDescription(ctx, t.tx, entryID, cleanDescription)
}

func updateEntryDescription(ctx context.Context, q querier, entryID int64, cleanDescription string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(cleanDescription, "cleanDescription"); err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE entries SET clean_description = ?, description = ? WHERE id = ?
	`, cleanDescription, cleanDescription, entryID)
	if err != nil {
		return fmt.Errorf("failed to update entry %d: %w", entryID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entry %d: %w", entryID, common.ErrNotFound)
	}
	return nil
}

// UpdateEntryCategoryLeg moves an entry's category leg to a different
// account. The leg is the single non-asset posting of a provisional entry;
// merged transfer entries have no category leg.
func (s *SQLiteStorage) UpdateEntryCategoryLeg(ctx context.Context, entryID int64, accountID string) error {
	return s.updateEntryCategoryLeg(ctx, s.db, entryID, accountID)
}

func (t *sqliteTx) UpdateEntryCategoryLeg(ctx context.Context, entryID int64, accountID string) error {
	return t.storage.updateEntryCategoryLeg(ctx, t.tx, entryID, accountID)
}

func (s *SQLiteStorage) updateEntryCategoryLeg(ctx context.Context, q querier, entryID int64, accountID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if _, ok := s.chart.Lookup(accountID); !ok {
		return &common.UnknownAccountError{AccountID: accountID}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, account_id FROM postings WHERE entry_id = ? ORDER BY id
	`, entryID)
	if err != nil {
		return fmt.Errorf("failed to load postings for entry %d: %w", entryID, err)
	}
	defer func() { _ = rows.Close() }()

	var legID int64
	var found bool
	for rows.Next() {
		var id int64
		var account string
		if err := rows.Scan(&id, &account); err != nil {
			return fmt.Errorf("failed to scan posting: %w", err)
		}
		acct, ok := s.chart.Lookup(account)
		if !ok || acct.Type == model.AccountTypeAsset {
			continue
		}
		legID = id
		found = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate postings: %w", err)
	}
	if !found {
		return fmt.Errorf("entry %d has no category leg: %w", entryID, common.ErrNotFound)
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE postings SET account_id = ? WHERE id = ?
	`, accountID, legID); err != nil {
		return fmt.Errorf("failed to move category leg of entry %d: %w", entryID, err)
	}
	return nil
}

// GetEntry loads one journal entry with its postings.
func (s *SQLiteStorage) GetEntry(ctx context.Context, entryID int64) (*model.JournalEntry, error) {
	return getEntry(ctx, s.db, entryID)
}

func (t *sqliteTx) GetEntry(ctx context.Context, entryID int64) (*model.JournalEntry, error) {
	return getEntry(ctx, t.tx, entryID)
}

func getEntry(ctx context.Context, q querier, entryID int64) (*model.JournalEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx, `
		SELECT id, posted_at, description, raw_description, clean_description, counterparty, source_file
		FROM entries WHERE id = ?
	`, entryID)

	entry, err := scanEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("entry %d: %w", entryID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load entry %d: %w", entryID, err)
	}

	if err := loadPostings(ctx, q, []*model.JournalEntry{entry}); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetEntries returns entries matching the filter, postings included,
// ordered by posting time.
func (s *SQLiteStorage) GetEntries(ctx context.Context, filter service.EntryFilter) ([]model.JournalEntry, error) {
	return getEntries(ctx, s.db, filter)
}

func (t *sqliteTx) GetEntries(ctx context.Context, filter service.EntryFilter) ([]model.JournalEntry, error) {
	return getEntries(ctx, t.tx, filter)
}

func getEntries(ctx context.Context, q querier, filter service.EntryFilter) ([]model.JournalEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT DISTINCT e.id, e.posted_at, e.description, e.raw_description, e.clean_description, e.counterparty, e.source_file FROM entries e`
	where, args := entryFilterClauses(filter)
	if filter.AccountID != "" {
		query += ` JOIN postings p ON p.entry_id = e.id`
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY e.posted_at, e.id"
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1 // SQLite treats a negative LIMIT as unbounded.
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*model.JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	if err := loadPostings(ctx, q, entries); err != nil {
		return nil, err
	}

	out := make([]model.JournalEntry, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	return out, nil
}

// GetEntryCount returns the number of entries matching the filter.
func (s *SQLiteStorage) GetEntryCount(ctx context.Context, filter service.EntryFilter) (int, error) {
	return getEntryCount(ctx, s.db, filter)
}

func (t *sqliteTx) GetEntryCount(ctx context.Context, filter service.EntryFilter) (int, error) {
	return getEntryCount(ctx, t.tx, filter)
}

func getEntryCount(ctx context.Context, q querier, filter service.EntryFilter) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	query := `SELECT COUNT(DISTINCT e.id) FROM entries e`
	where, args := entryFilterClauses(filter)
	if filter.AccountID != "" {
		query += ` JOIN postings p ON p.entry_id = e.id`
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var count int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func entryFilterClauses(filter service.EntryFilter) ([]string, []any) {
	var where []string
	var args []any
	if filter.AccountID != "" {
		where = append(where, "p.account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.From != nil {
		where = append(where, "e.posted_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		where = append(where, "e.posted_at <= ?")
		args = append(args, filter.To.UTC())
	}
	return where, args
}

// GetOneSidedEntries returns the provisional entries in the date range:
// exactly two postings of which exactly one hits an asset account. Merged
// transfer entries have two asset postings and are excluded.
func (s *SQLiteStorage) GetOneSidedEntries(ctx context.Context, from, to time.Time) ([]model.JournalEntry, error) {
	return s.getOneSidedEntries(ctx, s.db, from, to)
}

func (t *sqliteTx) GetOneSidedEntries(ctx context.Context, from, to time.Time) ([]model.JournalEntry, error) {
	return t.storage.getOneSidedEntries(ctx, t.tx, from, to)
}

func (s *SQLiteStorage) getOneSidedEntries(ctx context.Context, q querier, from, to time.Time) ([]model.JournalEntry, error) {
	entries, err := getEntries(ctx, q, service.EntryFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	var oneSided []model.JournalEntry
	for _, e := range entries {
		if len(e.Postings) != 2 {
			continue
		}
		assetLegs := 0
		for _, p := range e.Postings {
			if acct, ok := s.chart.Lookup(p.AccountID); ok && acct.Type == model.AccountTypeAsset {
				assetLegs++
			}
		}
		if assetLegs == 1 {
			oneSided = append(oneSided, e)
		}
	}
	return oneSided, nil
}

// GetDescriptionGroups aggregates entries by raw description for
// sanitization discovery, ordered by occurrence count descending.
func (s *SQLiteStorage) GetDescriptionGroups(ctx context.Context) ([]service.DescriptionGroup, error) {
	return getDescriptionGroups(ctx, s.db)
}

func (t *sqliteTx) GetDescriptionGroups(ctx context.Context) ([]service.DescriptionGroup, error) {
	return getDescriptionGroups(ctx, t.tx)
}

func getDescriptionGroups(ctx context.Context, q querier) ([]service.DescriptionGroup, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT e.raw_description,
		       COUNT(DISTINCT e.id),
		       COALESCE(SUM(CASE WHEN p.amount_minor > 0 THEN p.amount_minor ELSE 0 END), 0),
		       GROUP_CONCAT(DISTINCT p.account_id),
		       MIN(e.posted_at),
		       MAX(e.posted_at)
		FROM entries e
		JOIN postings p ON p.entry_id = e.id
		GROUP BY e.raw_description
		ORDER BY COUNT(DISTINCT e.id) DESC, e.raw_description
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query description groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []service.DescriptionGroup
	for rows.Next() {
		var g service.DescriptionGroup
		var accounts sql.NullString
		var first, last string
		if err := rows.Scan(&g.RawDescription, &g.Occurrences, &g.TotalMinor, &accounts, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan description group: %w", err)
		}
		if accounts.Valid && accounts.String != "" {
			g.Accounts = strings.Split(accounts.String, ",")
			sort.Strings(g.Accounts)
		}
		if g.FirstSeen, err = parseSQLiteTime(first); err != nil {
			return nil, err
		}
		if g.LastSeen, err = parseSQLiteTime(last); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate description groups: %w", err)
	}
	return groups, nil
}

// HasImportKey reports whether a provider row has already been imported
// into the given account. This is the import idempotence boundary.
func (s *SQLiteStorage) HasImportKey(ctx context.Context, accountID, providerTxnID string) (bool, error) {
	return hasImportKey(ctx, s.db, accountID, providerTxnID)
}

func (t *sqliteTx) HasImportKey(ctx context.Context, accountID, providerTxnID string) (bool, error) {
	return hasImportKey(ctx, t.tx, accountID, providerTxnID)
}

func hasImportKey(ctx context.Context, q querier, accountID, providerTxnID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return false, err
	}
	if err := validateString(providerTxnID, "providerTxnID"); err != nil {
		return false, err
	}

	var exists int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM import_keys WHERE account_id = ? AND provider_txn_id = ? LIMIT 1
	`, accountID, providerTxnID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check import key: %w", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*model.JournalEntry, error) {
	var e model.JournalEntry
	if err := row.Scan(&e.ID, &e.PostedAt, &e.Description, &e.RawDescription,
		&e.CleanDescription, &e.Counterparty, &e.SourceFile); err != nil {
		return nil, err
	}
	e.PostedAt = e.PostedAt.UTC()
	return &e, nil
}

func loadPostings(ctx context.Context, q querier, entries []*model.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	byID := make(map[int64]*model.JournalEntry, len(entries))
	placeholders := make([]string, len(entries))
	args := make([]any, len(entries))
	for i, e := range entries {
		byID[e.ID] = e
		placeholders[i] = "?"
		args[i] = e.ID
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT entry_id, account_id, amount_minor FROM postings
		WHERE entry_id IN (%s) ORDER BY id
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return fmt.Errorf("failed to load postings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var p model.Posting
		if err := rows.Scan(&p.EntryID, &p.AccountID, &p.AmountMinor); err != nil {
			return fmt.Errorf("failed to scan posting: %w", err)
		}
		if e, ok := byID[p.EntryID]; ok {
			e.Postings = append(e.Postings, p)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate postings: %w", err)
	}
	return nil
}

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

func parseSQLiteTime(s string) (time.Time, error) {
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
