// Package sanitize discovers raw-description patterns and applies
// rule-driven description rewrites and recategorizations, with dry-run
// support throughout.
package sanitize

import (
	"context"
	"fmt"
	"sort"

	"github.com/runwayfin/runway/internal/config"
	"github.com/runwayfin/runway/internal/model"
	"github.com/runwayfin/runway/internal/service"
)

// OrderBy selects the discovery sort key.
type OrderBy string

// Discovery orderings.
const (
	OrderByOccurrence OrderBy = "occurrence"
	OrderByTotal      OrderBy = "total"
)

// DiscoverOptions filters and orders description discovery.
type DiscoverOptions struct {
	OrderBy      OrderBy
	Limit        int
	UnmappedOnly bool
}

// Engine runs discovery, migration and recategorization over the ledger.
type Engine struct {
	store service.Storage
	chart *config.Chart
	rules *model.NameMappingConfig
}

// NewEngine creates a sanitization engine.
func NewEngine(store service.Storage, chart *config.Chart, rules *model.NameMappingConfig) *Engine {
	return &Engine{store: store, chart: chart, rules: rules}
}

// Discover groups existing entries by raw description. With UnmappedOnly
// set, only descriptions no rule matches are returned.
func (e *Engine) Discover(ctx context.Context, opts DiscoverOptions) ([]service.DescriptionGroup, error) {
	groups, err := e.store.GetDescriptionGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load description groups: %w", err)
	}

	if opts.UnmappedOnly {
		filtered := groups[:0]
		for _, g := range groups {
			if _, ok := e.rules.FirstMatch(g.RawDescription); !ok {
				filtered = append(filtered, g)
			}
		}
		groups = filtered
	}

	switch opts.OrderBy {
	case OrderByTotal:
		sort.SliceStable(groups, func(i, j int) bool {
			return groups[i].TotalMinor > groups[j].TotalMinor
		})
	default:
		sort.SliceStable(groups, func(i, j int) bool {
			return groups[i].Occurrences > groups[j].Occurrences
		})
	}

	if opts.Limit > 0 && len(groups) > opts.Limit {
		groups = groups[:opts.Limit]
	}
	return groups, nil
}

// ActionError records one entry a migration or recategorization could not
// update. It never aborts the remaining rows.
type ActionError struct {
	Reason  string `json:"reason"`
	EntryID int64  `json:"entry_id"`
}
