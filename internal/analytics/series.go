package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/runwayfin/runway/internal/service"
)

// GroupBalanceSeries returns the combined daily balance of the group's
// asset accounts over [from, to], one set-based query for all accounts.
func (e *Engine) GroupBalanceSeries(ctx context.Context, groupID string, from, to time.Time) ([]service.BalancePoint, error) {
	if _, err := e.group(groupID); err != nil {
		return nil, err
	}

	accounts := e.cfg.Chart.GroupAssetAccounts(groupID)
	if len(accounts) == 0 {
		return nil, fmt.Errorf("group %q has no asset accounts", groupID)
	}
	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}

	return e.store.GetDailyBalanceSeries(ctx, ids, from, to)
}
