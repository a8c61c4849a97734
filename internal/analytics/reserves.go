package analytics

import (
	"context"
	"time"

	"github.com/runwayfin/runway/internal/model"

	"github.com/shopspring/decimal"
)

// TaxReserveResult is the portion of balance earmarked for tax.
type TaxReserveResult struct {
	TaxYearStart time.Time       `json:"tax_year_start"`
	Rate         decimal.Decimal `json:"rate"`
	GroupID      string          `json:"group_id"`
	YTDNetMinor  int64           `json:"ytd_net_minor"`
	ReserveMinor int64           `json:"reserve_minor"`
}

// TaxReserve computes max(0, yearToDateNet) * taxRate for the group. The
// accumulation window starts at the configured tax-year boundary, not a
// rolling 12 months, and resets there each year.
func (e *Engine) TaxReserve(ctx context.Context, groupID string, asOf time.Time) (*TaxReserveResult, error) {
	group, err := e.group(groupID)
	if err != nil {
		return nil, err
	}

	yearStart := e.taxYearStart(asOf)
	flows, err := e.groupMonthlyFlows(ctx, groupID, yearStart, asOf, nil)
	if err != nil {
		return nil, err
	}

	var net int64
	for _, f := range flows {
		net += f.income - f.expense
	}

	var rate decimal.Decimal
	switch group.TaxType {
	case model.TaxTypeCorp:
		rate = e.cfg.Financial.CorpRate()
	case model.TaxTypeIncome:
		rate = e.cfg.Financial.IncomeRate()
	default:
		rate = decimal.Zero
	}

	reserve := int64(0)
	if net > 0 {
		reserve = decimal.NewFromInt(net).Mul(rate).Round(0).IntPart()
	}

	return &TaxReserveResult{
		GroupID:      groupID,
		TaxYearStart: yearStart,
		YTDNetMinor:  net,
		Rate:         rate,
		ReserveMinor: reserve,
	}, nil
}

// taxYearStart returns the most recent configured tax-year boundary at or
// before asOf.
func (e *Engine) taxYearStart(asOf time.Time) time.Time {
	ts := e.cfg.Financial.TaxYearStart
	u := asOf.UTC()
	start := time.Date(u.Year(), time.Month(ts.Month), ts.Day, 0, 0, 0, 0, time.UTC)
	if start.After(u) {
		start = start.AddDate(-1, 0, 0)
	}
	return start
}

// ExpenseReserveResult is the buffer earmarked to cover typical expenses.
type ExpenseReserveResult struct {
	GroupID            string `json:"group_id"`
	MedianMonthlyMinor int64  `json:"median_monthly_minor"`
	ReserveMonths      int    `json:"reserve_months"`
	ReserveMinor       int64  `json:"reserve_minor"`
}

// ExpenseReserve computes medianMonthlyExpense * the group's configured
// reserve months.
func (e *Engine) ExpenseReserve(ctx context.Context, groupID string, asOf time.Time) (*ExpenseReserveResult, error) {
	group, err := e.group(groupID)
	if err != nil {
		return nil, err
	}

	monthly, err := e.BurnRate(ctx, groupID, asOf, BurnRateOptions{Statistic: StatisticMedian})
	if err != nil {
		return nil, err
	}

	return &ExpenseReserveResult{
		GroupID:            groupID,
		MedianMonthlyMinor: monthly,
		ReserveMonths:      group.ExpenseReserveMonths,
		ReserveMinor:       monthly * int64(group.ExpenseReserveMonths),
	}, nil
}
