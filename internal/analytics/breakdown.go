package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/runwayfin/runway/internal/model"
)

// CategoryTotal is one expense account's spend over the window, with its
// trailing monthly median for trend context.
type CategoryTotal struct {
	AccountID          string `json:"account_id"`
	TotalMinor         int64  `json:"total_minor"`
	MonthlyMedianMinor int64  `json:"monthly_median_minor"`
}

// CategoryBreakdown returns the top-N expense accounts by total spend over
// the trailing window ending at asOf, alongside each account's monthly
// median over the same window.
func (e *Engine) CategoryBreakdown(ctx context.Context, asOf time.Time, months, topN int) ([]CategoryTotal, error) {
	if months <= 0 {
		months = e.cfg.Financial.TrailingMonths
	}

	accounts := e.cfg.Chart.AccountsOfType(model.AccountTypeExpense)
	if len(accounts) == 0 {
		return nil, nil
	}
	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}

	windowStart := monthStart(asOf).AddDate(0, -months, 0)
	windowEnd := monthStart(asOf).Add(-time.Nanosecond)
	totals, err := e.store.MonthlyAccountTotals(ctx, ids, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load monthly totals: %w", err)
	}

	byAccount := make(map[string]map[string]int64)
	for _, t := range totals {
		if byAccount[t.AccountID] == nil {
			byAccount[t.AccountID] = make(map[string]int64)
		}
		byAccount[t.AccountID][t.Month] += t.TotalMinor
	}

	monthKeys := trailingMonths(asOf, months)
	breakdown := make([]CategoryTotal, 0, len(byAccount))
	for accountID, byMonth := range byAccount {
		var total int64
		values := make([]int64, 0, len(monthKeys))
		for _, key := range monthKeys {
			total += byMonth[key]
			values = append(values, byMonth[key])
		}
		if total == 0 {
			continue
		}
		breakdown = append(breakdown, CategoryTotal{
			AccountID:          accountID,
			TotalMinor:         total,
			MonthlyMedianMinor: median(values),
		})
	}

	sort.SliceStable(breakdown, func(i, j int) bool {
		if breakdown[i].TotalMinor != breakdown[j].TotalMinor {
			return breakdown[i].TotalMinor > breakdown[j].TotalMinor
		}
		return breakdown[i].AccountID < breakdown[j].AccountID
	})

	if topN > 0 && len(breakdown) > topN {
		breakdown = breakdown[:topN]
	}
	return breakdown, nil
}
