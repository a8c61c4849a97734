package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/runwayfin/runway/internal/model"
	"github.com/runwayfin/runway/internal/service"

	"github.com/shopspring/decimal"
)

// MonthCashflow is one calendar month of a group's income and expenses.
// SavingsRate is net/income and nil for months with no income.
type MonthCashflow struct {
	SavingsRate  *decimal.Decimal `json:"savings_rate,omitempty"`
	Month        string           `json:"month"`
	IncomeMinor  int64            `json:"income_minor"`
	ExpenseMinor int64            `json:"expense_minor"`
	NetMinor     int64            `json:"net_minor"`
}

// MonthlyCashflow sums postings into income and expense accounts for the
// group per calendar month over [from, to].
func (e *Engine) MonthlyCashflow(ctx context.Context, groupID string, from, to time.Time) ([]MonthCashflow, error) {
	if _, err := e.group(groupID); err != nil {
		return nil, err
	}

	flows, err := e.groupMonthlyFlows(ctx, groupID, from, to, nil)
	if err != nil {
		return nil, err
	}

	var months []MonthCashflow
	for cursor := monthStart(from); !cursor.After(to); cursor = cursor.AddDate(0, 1, 0) {
		key := monthKey(cursor)
		f := flows[key]
		m := MonthCashflow{
			Month:        key,
			IncomeMinor:  f.income,
			ExpenseMinor: f.expense,
			NetMinor:     f.income - f.expense,
		}
		if f.income != 0 {
			rate := decimal.NewFromInt(m.NetMinor).Div(decimal.NewFromInt(f.income)).Round(4)
			m.SavingsRate = &rate
		}
		months = append(months, m)
	}
	return months, nil
}

// monthFlows is one month's income and expense totals, minor units.
type monthFlows struct {
	income  int64
	expense int64
}

// groupMonthlyFlows aggregates income/expense legs per month for entries
// whose asset leg belongs to the group. One entries query covers the whole
// range; transfer entries carry no income or expense leg and contribute
// nothing. Accounts in exclude are skipped on the expense side.
func (e *Engine) groupMonthlyFlows(ctx context.Context, groupID string, from, to time.Time, exclude map[string]bool) (map[string]monthFlows, error) {
	entries, err := e.store.GetEntries(ctx, service.EntryFilter{From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	flows := make(map[string]monthFlows)
	for _, entry := range entries {
		assetAccount, ok := e.groupAssetLeg(&entry, groupID)
		if !ok {
			continue
		}

		key := monthKey(entry.PostedAt)
		f := flows[key]
		for _, p := range entry.Postings {
			acct, found := e.cfg.Chart.Lookup(p.AccountID)
			if !found {
				continue
			}
			switch acct.Type {
			case model.AccountTypeIncome:
				f.income += e.scaleJoint(assetAccount, -p.AmountMinor)
			case model.AccountTypeExpense:
				if exclude[p.AccountID] {
					continue
				}
				f.expense += e.scaleJoint(assetAccount, p.AmountMinor)
			}
		}
		flows[key] = f
	}
	return flows, nil
}

// groupAssetLeg returns the entry's asset account when it belongs to the
// group.
func (e *Engine) groupAssetLeg(entry *model.JournalEntry, groupID string) (model.Account, bool) {
	for _, p := range entry.Postings {
		acct, ok := e.cfg.Chart.Lookup(p.AccountID)
		if ok && acct.Type == model.AccountTypeAsset && acct.Group == groupID {
			return acct, true
		}
	}
	return model.Account{}, false
}
