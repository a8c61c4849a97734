package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/runwayfin/runway/internal/common"
	"github.com/runwayfin/runway/internal/service"
)

// GetBalance returns the sum of postings for the account up to and
// including asOf (nil means latest). Balances are always computed from the
// append-only posting ledger, never from a mutable running total.
func (s *SQLiteStorage) GetBalance(ctx context.Context, accountID string, asOf *time.Time) (int64, error) {
	return s.getBalance(ctx, s.db, accountID, asOf)
}

func (t *sqliteTx) GetBalance(ctx context.Context, accountID string, asOf *time.Time) (int64, error) {
	return t.storage.getBalance(ctx, t.tx, accountID, asOf)
}

func (s *SQLiteStorage) getBalance(ctx context.Context, q querier, accountID string, asOf *time.Time) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if _, ok := s.chart.Lookup(accountID); !ok {
		return 0, &common.UnknownAccountError{AccountID: accountID}
	}

	query := `
		SELECT COALESCE(SUM(p.amount_minor), 0)
		FROM postings p
		JOIN entries e ON e.id = p.entry_id
		WHERE p.account_id = ?`
	args := []any{accountID}
	if asOf != nil {
		query += ` AND e.posted_at <= ?`
		args = append(args, asOf.UTC())
	}

	var balance int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to compute balance for %s: %w", accountID, err)
	}
	return balance, nil
}

// GetDailyBalanceSeries returns one balance point per calendar day over
// [from, to] for the combined accounts, carrying the balance forward
// across days with no postings. One set-based query covers all accounts.
func (s *SQLiteStorage) GetDailyBalanceSeries(ctx context.Context, accountIDs []string, from, to time.Time) ([]service.BalancePoint, error) {
	return s.getDailyBalanceSeries(ctx, s.db, accountIDs, from, to)
}

func (t *sqliteTx) GetDailyBalanceSeries(ctx context.Context, accountIDs []string, from, to time.Time) ([]service.BalancePoint, error) {
	return t.storage.getDailyBalanceSeries(ctx, t.tx, accountIDs, from, to)
}

func (s *SQLiteStorage) getDailyBalanceSeries(ctx context.Context, q querier, accountIDs []string, from, to time.Time) ([]service.BalancePoint, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(accountIDs) == 0 {
		return nil, fmt.Errorf("%w: accountIDs", ErrEmptySlice)
	}
	for _, id := range accountIDs {
		if _, ok := s.chart.Lookup(id); !ok {
			return nil, &common.UnknownAccountError{AccountID: id}
		}
	}

	fromDay := truncateToDay(from)
	toDay := truncateToDay(to)
	if toDay.Before(fromDay) {
		return nil, ErrInvalidDateRange
	}

	placeholders, args := inClause(accountIDs)

	// Opening balance: everything strictly before the window.
	var opening int64
	openArgs := append(append([]any{}, args...), fromDay)
	if err := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COALESCE(SUM(p.amount_minor), 0)
		FROM postings p
		JOIN entries e ON e.id = p.entry_id
		WHERE p.account_id IN (%s) AND e.posted_at < ?
	`, placeholders), openArgs...).Scan(&opening); err != nil {
		return nil, fmt.Errorf("failed to compute opening balance: %w", err)
	}

	dayArgs := append(append([]any{}, args...), fromDay, toDay.AddDate(0, 0, 1))
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT date(e.posted_at), SUM(p.amount_minor)
		FROM postings p
		JOIN entries e ON e.id = p.entry_id
		WHERE p.account_id IN (%s) AND e.posted_at >= ? AND e.posted_at < ?
		GROUP BY date(e.posted_at)
		ORDER BY date(e.posted_at)
	`, placeholders), dayArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily deltas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	deltas := make(map[string]int64)
	for rows.Next() {
		var day string
		var delta int64
		if err := rows.Scan(&day, &delta); err != nil {
			return nil, fmt.Errorf("failed to scan daily delta: %w", err)
		}
		deltas[day] = delta
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily deltas: %w", err)
	}

	var series []service.BalancePoint
	balance := opening
	for day := fromDay; !day.After(toDay); day = day.AddDate(0, 0, 1) {
		balance += deltas[day.Format("2006-01-02")]
		series = append(series, service.BalancePoint{Date: day, BalanceMinor: balance})
	}
	return series, nil
}

// MonthlyAccountTotals returns per-account posting sums per calendar month
// over [from, to], one set-based query for all accounts.
func (s *SQLiteStorage) MonthlyAccountTotals(ctx context.Context, accountIDs []string, from, to time.Time) ([]service.MonthlyTotal, error) {
	return s.monthlyAccountTotals(ctx, s.db, accountIDs, from, to)
}

func (t *sqliteTx) MonthlyAccountTotals(ctx context.Context, accountIDs []string, from, to time.Time) ([]service.MonthlyTotal, error) {
	return t.storage.monthlyAccountTotals(ctx, t.tx, accountIDs, from, to)
}

func (s *SQLiteStorage) monthlyAccountTotals(ctx context.Context, q querier, accountIDs []string, from, to time.Time) ([]service.MonthlyTotal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(accountIDs) == 0 {
		return nil, fmt.Errorf("%w: accountIDs", ErrEmptySlice)
	}
	for _, id := range accountIDs {
		if _, ok := s.chart.Lookup(id); !ok {
			return nil, &common.UnknownAccountError{AccountID: id}
		}
	}

	placeholders, args := inClause(accountIDs)
	args = append(args, from.UTC(), to.UTC())

	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT strftime('%%Y-%%m', e.posted_at), p.account_id, SUM(p.amount_minor)
		FROM postings p
		JOIN entries e ON e.id = p.entry_id
		WHERE p.account_id IN (%s) AND e.posted_at >= ? AND e.posted_at <= ?
		GROUP BY 1, 2
		ORDER BY 1, 2
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totals []service.MonthlyTotal
	for rows.Next() {
		var t service.MonthlyTotal
		if err := rows.Scan(&t.Month, &t.AccountID, &t.TotalMinor); err != nil {
			return nil, fmt.Errorf("failed to scan monthly total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate monthly totals: %w", err)
	}
	return totals, nil
}

func truncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func inClause(ids []string) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ","), args
}
