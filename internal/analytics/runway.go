package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RunwayResult reports months of liquid balance remaining at the current
// burn rate.
type RunwayResult struct {
	Months        decimal.Decimal `json:"months"`
	GroupIDs      []string        `json:"group_ids"`
	LiquidMinor   int64           `json:"liquid_minor"`
	BurnRateMinor int64           `json:"burn_rate_minor"`
	Capped        bool            `json:"capped"`
}

// Runway computes liquid balance over burn rate for one group, capped at
// RunwayCapMonths when the trailing trend is net-positive (effectively
// indefinite).
func (e *Engine) Runway(ctx context.Context, groupID string, asOf time.Time, scenario *Scenario) (*RunwayResult, error) {
	return e.runway(ctx, []string{groupID}, asOf, scenario)
}

// ConsolidatedRunway runs the same computation over the summed liquid
// balances and burn rates of an explicit set of groups.
func (e *Engine) ConsolidatedRunway(ctx context.Context, groupIDs []string, asOf time.Time, scenario *Scenario) (*RunwayResult, error) {
	if len(groupIDs) == 0 {
		return nil, fmt.Errorf("no groups given")
	}
	return e.runway(ctx, groupIDs, asOf, scenario)
}

func (e *Engine) runway(ctx context.Context, groupIDs []string, asOf time.Time, scenario *Scenario) (*RunwayResult, error) {
	var liquid, burn, net int64
	for _, groupID := range groupIDs {
		if _, err := e.group(groupID); err != nil {
			return nil, err
		}

		groupLiquid, err := e.liquidBalance(ctx, groupID, asOf)
		if err != nil {
			return nil, err
		}
		liquid += groupLiquid

		groupBurn, err := e.BurnRate(ctx, groupID, asOf, BurnRateOptions{})
		if err != nil {
			return nil, err
		}
		burn += groupBurn

		groupNet, err := e.trailingNet(ctx, groupID, asOf, e.cfg.Financial.TrailingMonths)
		if err != nil {
			return nil, err
		}
		net += groupNet
	}

	if scenario != nil {
		burn += scenario.ExtraMonthlyExpenseMinor - scenario.ExtraMonthlyIncomeMinor
		net += scenario.ExtraMonthlyIncomeMinor - scenario.ExtraMonthlyExpenseMinor
	}

	result := &RunwayResult{
		GroupIDs:      groupIDs,
		LiquidMinor:   liquid,
		BurnRateMinor: burn,
	}

	capMonths := decimal.NewFromInt(RunwayCapMonths)
	if burn <= 0 || net >= 0 {
		result.Months = capMonths
		result.Capped = true
		return result, nil
	}

	months := decimal.NewFromInt(liquid).Div(decimal.NewFromInt(burn)).Round(1)
	if months.GreaterThanOrEqual(capMonths) {
		result.Months = capMonths
		result.Capped = true
		return result, nil
	}
	result.Months = months
	return result, nil
}

// liquidBalance sums the group's asset account balances as of the given
// time, skipping accounts marked illiquid.
func (e *Engine) liquidBalance(ctx context.Context, groupID string, asOf time.Time) (int64, error) {
	var total int64
	for _, acct := range e.cfg.Chart.GroupAssetAccounts(groupID) {
		if acct.Subtype == "illiquid" {
			continue
		}
		balance, err := e.store.GetBalance(ctx, acct.ID, &asOf)
		if err != nil {
			return 0, fmt.Errorf("failed to read balance of %s: %w", acct.ID, err)
		}
		total += balance
	}
	return total, nil
}
