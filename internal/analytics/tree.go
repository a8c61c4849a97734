package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/runwayfin/runway/internal/model"
)

// TreeNode is one node of the hierarchical expense rollup. MonthlyMinor is
// the representative monthly figure for the node including all children,
// OwnMonthlyMinor for the node's own account alone. Children are sorted by
// MonthlyMinor descending for display.
type TreeNode struct {
	Path            string      `json:"path"`
	Name            string      `json:"name"`
	Children        []*TreeNode `json:"children,omitempty"`
	MonthlyMinor    int64       `json:"monthly_minor"`
	OwnMonthlyMinor int64       `json:"own_monthly_minor"`
}

// ExpenseTree rolls expense accounts up their colon-delimited paths over
// the trailing window ending at asOf. One set-based monthly-totals query
// covers every expense account.
func (e *Engine) ExpenseTree(ctx context.Context, asOf time.Time, months int, stat Statistic) (*TreeNode, error) {
	if months <= 0 {
		months = e.cfg.Financial.TrailingMonths
	}

	accounts := e.cfg.Chart.AccountsOfType(model.AccountTypeExpense)
	if len(accounts) == 0 {
		return &TreeNode{Path: "Expenses", Name: "Expenses"}, nil
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

	// Monthly series per path: own contributions, and contributions rolled
	// up every ancestor.
	rolled := make(map[string]map[string]int64)
	own := make(map[string]map[string]int64)
	for _, t := range totals {
		if own[t.AccountID] == nil {
			own[t.AccountID] = make(map[string]int64)
		}
		own[t.AccountID][t.Month] += t.TotalMinor
		for path := t.AccountID; path != ""; path = model.AccountParent(path) {
			if rolled[path] == nil {
				rolled[path] = make(map[string]int64)
			}
			rolled[path][t.Month] += t.TotalMinor
		}
	}

	monthKeys := trailingMonths(asOf, months)
	figure := func(byMonth map[string]int64) int64 {
		values := make([]int64, 0, len(monthKeys))
		for _, key := range monthKeys {
			values = append(values, byMonth[key])
		}
		return representative(values, stat)
	}

	root := &TreeNode{Path: "Expenses", Name: "Expenses"}
	nodes := map[string]*TreeNode{"Expenses": root}

	paths := make([]string, 0, len(rolled))
	for path := range rolled {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if path == "Expenses" || !strings.HasPrefix(path, "Expenses:") {
			continue
		}
		segments := model.PathSegments(path)
		node := &TreeNode{
			Path: path,
			Name: segments[len(segments)-1],
		}
		nodes[path] = node
		// Sorted iteration guarantees parents exist before children.
		if parent := nodes[model.AccountParent(path)]; parent != nil {
			parent.Children = append(parent.Children, node)
		}
	}

	for path, node := range nodes {
		node.MonthlyMinor = figure(rolled[path])
		node.OwnMonthlyMinor = figure(own[path])
	}

	sortTree(root)
	return root, nil
}

func sortTree(node *TreeNode) {
	sort.SliceStable(node.Children, func(i, j int) bool {
		return node.Children[i].MonthlyMinor > node.Children[j].MonthlyMinor
	})
	for _, child := range node.Children {
		sortTree(child)
	}
}
