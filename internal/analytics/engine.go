// Package analytics derives time-series financial metrics from the ledger:
// cashflow, burn rate, runway, reserves and expense breakdowns. Everything
// here is a pure read over the store plus injected configuration.
package analytics

import (
	"fmt"
	"time"

	"github.com/runwayfin/runway/internal/config"
	"github.com/runwayfin/runway/internal/model"
	"github.com/runwayfin/runway/internal/service"

	"github.com/shopspring/decimal"
)

// Statistic selects the representative monthly figure.
type Statistic string

// Supported statistics. Median is the default: it shrugs off one-month
// spikes that would drag a mean.
const (
	StatisticMedian Statistic = "median"
	StatisticMean   Statistic = "mean"
)

// RunwayCapMonths is the runway ceiling. A net-positive trend reads as
// "indefinite" and reports the cap rather than an unbounded value.
const RunwayCapMonths = 120

// Engine computes analytics over one store and configuration. The
// configuration is injected; there is no ambient global state, so tests can
// run engines with distinct configurations side by side.
type Engine struct {
	store service.Storage
	cfg   *config.Config
}

// NewEngine creates an analytics engine.
func NewEngine(store service.Storage, cfg *config.Config) *Engine {
	return &Engine{store: store, cfg: cfg}
}

// Scenario adjusts runway projections with hypothetical recurring flows.
type Scenario struct {
	Label                    string `json:"label"`
	ExtraMonthlyIncomeMinor  int64  `json:"extra_monthly_income_minor"`
	ExtraMonthlyExpenseMinor int64  `json:"extra_monthly_expense_minor"`
}

// group returns the metadata for a configured group.
func (e *Engine) group(groupID string) (model.GroupMetadata, error) {
	g, ok := e.cfg.Group(groupID)
	if !ok {
		return model.GroupMetadata{}, fmt.Errorf("unknown group %q", groupID)
	}
	return g, nil
}

// jointRatio returns the share of joint-account flows attributed to this
// ledger, 1 when unconfigured.
func (e *Engine) jointRatio() decimal.Decimal {
	if e.cfg.Financial.JointShareRatio <= 0 || e.cfg.Financial.JointShareRatio >= 1 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(e.cfg.Financial.JointShareRatio)
}

// scaleJoint applies the joint-share ratio to amounts flowing through
// accounts marked with the joint subtype.
func (e *Engine) scaleJoint(account model.Account, amount int64) int64 {
	if account.Subtype != "joint" {
		return amount
	}
	return decimal.NewFromInt(amount).Mul(e.jointRatio()).Round(0).IntPart()
}

// monthKey formats a time as a calendar-month key.
func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// monthStart returns the first instant of t's calendar month.
func monthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// trailingMonths returns the month keys for the n complete calendar months
// preceding asOf's month, oldest first.
func trailingMonths(asOf time.Time, n int) []string {
	keys := make([]string, 0, n)
	start := monthStart(asOf).AddDate(0, -n, 0)
	for i := 0; i < n; i++ {
		keys = append(keys, monthKey(start.AddDate(0, i, 0)))
	}
	return keys
}
