package analytics

import (
	"context"
	"time"
)

// BurnRateOptions parameterizes the burn rate statistic.
type BurnRateOptions struct {
	Statistic Statistic
	// Months is the trailing window of complete calendar months; the
	// configured trailing window applies when zero.
	Months int
}

// BurnRate returns the representative monthly outflow for the group over
// the trailing window ending at asOf. Postings to the group's configured
// pass-through accounts are excluded, as are transfer entries (which carry
// no expense leg). Median is the default statistic.
func (e *Engine) BurnRate(ctx context.Context, groupID string, asOf time.Time, opts BurnRateOptions) (int64, error) {
	group, err := e.group(groupID)
	if err != nil {
		return 0, err
	}

	months := opts.Months
	if months <= 0 {
		months = e.cfg.Financial.TrailingMonths
	}

	exclude := make(map[string]bool, len(group.BurnRateExcludeAccounts))
	for _, id := range group.BurnRateExcludeAccounts {
		exclude[id] = true
	}

	windowStart := monthStart(asOf).AddDate(0, -months, 0)
	windowEnd := monthStart(asOf).Add(-time.Nanosecond)
	flows, err := e.groupMonthlyFlows(ctx, groupID, windowStart, windowEnd, exclude)
	if err != nil {
		return 0, err
	}

	outflows := make([]int64, 0, months)
	for _, key := range trailingMonths(asOf, months) {
		outflows = append(outflows, flows[key].expense)
	}
	return representative(outflows, opts.Statistic), nil
}

// trailingNet returns the group's net cashflow summed over the trailing
// window, for the net-positive runway check.
func (e *Engine) trailingNet(ctx context.Context, groupID string, asOf time.Time, months int) (int64, error) {
	windowStart := monthStart(asOf).AddDate(0, -months, 0)
	windowEnd := monthStart(asOf).Add(-time.Nanosecond)
	flows, err := e.groupMonthlyFlows(ctx, groupID, windowStart, windowEnd, nil)
	if err != nil {
		return 0, err
	}

	var net int64
	for _, key := range trailingMonths(asOf, months) {
		net += flows[key].income - flows[key].expense
	}
	return net, nil
}
