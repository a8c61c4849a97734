// Package transfer detects paired inter-account transfers among one-sided
// provisional entries and merges each pair into a single two-posting entry.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/runwayfin/runway/internal/config"
	"github.com/runwayfin/runway/internal/model"
	"github.com/runwayfin/runway/internal/service"
)

// MinTransferMinor is the smallest amount considered a reliable transfer
// signal. Coincidental equal amounts below this are too common to pair on.
const MinTransferMinor = 500

// MatchWindowDays is how many calendar days a from and to leg may be apart,
// in either direction.
const MatchWindowDays = 1

// Candidate is one provisional one-sided entry viewed from its asset leg.
type Candidate struct {
	PostedAt    time.Time
	AccountID   string
	EntryID     int64
	AmountMinor int64
}

// Pair is a matched transfer: a negative from leg and a positive to leg of
// equal magnitude.
type Pair struct {
	From Candidate
	To   Candidate
}

// Matcher pairs transfer candidates between the configured from and to
// account sets.
type Matcher struct {
	fromSet map[string]bool
	toSet   map[string]bool
}

// NewMatcher creates a matcher for the configured transfer account sets.
func NewMatcher(accounts config.TransferAccounts) *Matcher {
	m := &Matcher{
		fromSet: make(map[string]bool, len(accounts.From)),
		toSet:   make(map[string]bool, len(accounts.To)),
	}
	for _, id := range accounts.From {
		m.fromSet[id] = true
	}
	for _, id := range accounts.To {
		m.toSet[id] = true
	}
	return m
}

// CandidateFromEntry extracts the asset leg of a provisional entry. Returns
// false for entries that are not one-sided (e.g. already-merged transfers).
func CandidateFromEntry(entry model.JournalEntry, chart *config.Chart) (Candidate, bool) {
	if len(entry.Postings) != 2 {
		return Candidate{}, false
	}
	var asset *model.Posting
	for i := range entry.Postings {
		acct, ok := chart.Lookup(entry.Postings[i].AccountID)
		if !ok || acct.Type != model.AccountTypeAsset {
			continue
		}
		if asset != nil {
			return Candidate{}, false
		}
		asset = &entry.Postings[i]
	}
	if asset == nil {
		return Candidate{}, false
	}
	return Candidate{
		EntryID:     entry.ID,
		PostedAt:    entry.PostedAt,
		AccountID:   asset.AccountID,
		AmountMinor: asset.AmountMinor,
	}, true
}

// Match pairs candidates of equal magnitude between the from and to sets.
//
// The matching is greedy and local: candidates are walked in timestamp
// order keeping a stack per side, and a pending from/to pair within the
// calendar-day window is paired immediately, last-pushed first. This is
// deterministic but not a global optimal assignment; existing data relies
// on the current pairing, so changing it needs product sign-off.
func (m *Matcher) Match(candidates []Candidate) []Pair {
	groups := make(map[int64][]Candidate)
	for _, c := range candidates {
		amount := c.AmountMinor
		if amount < 0 {
			amount = -amount
		}
		if amount < MinTransferMinor {
			continue
		}
		groups[amount] = append(groups[amount], c)
	}

	amounts := make([]int64, 0, len(groups))
	for amount := range groups {
		amounts = append(amounts, amount)
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i] < amounts[j] })

	var pairs []Pair
	for _, amount := range amounts {
		pairs = append(pairs, m.matchGroup(groups[amount])...)
	}
	return pairs
}

type event struct {
	candidate Candidate
	isFrom    bool
}

func (m *Matcher) matchGroup(group []Candidate) []Pair {
	var events []event
	for _, c := range group {
		switch {
		case c.AmountMinor < 0 && m.fromSet[c.AccountID]:
			events = append(events, event{candidate: c, isFrom: true})
		case c.AmountMinor > 0 && m.toSet[c.AccountID]:
			events = append(events, event{candidate: c, isFrom: false})
		}
		// Wrong-direction amounts are never eligible.
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].candidate.PostedAt.Equal(events[j].candidate.PostedAt) {
			return events[i].candidate.PostedAt.Before(events[j].candidate.PostedAt)
		}
		return events[i].candidate.EntryID < events[j].candidate.EntryID
	})

	var pairs []Pair
	var fromStack, toStack []Candidate
	for _, ev := range events {
		if ev.isFrom {
			if n := len(toStack); n > 0 && withinWindow(toStack[n-1].PostedAt, ev.candidate.PostedAt) {
				pairs = append(pairs, Pair{From: ev.candidate, To: toStack[n-1]})
				toStack = toStack[:n-1]
				continue
			}
			fromStack = append(fromStack, ev.candidate)
		} else {
			if n := len(fromStack); n > 0 && withinWindow(fromStack[n-1].PostedAt, ev.candidate.PostedAt) {
				pairs = append(pairs, Pair{From: fromStack[n-1], To: ev.candidate})
				fromStack = fromStack[:n-1]
				continue
			}
			toStack = append(toStack, ev.candidate)
		}
	}
	return pairs
}

// withinWindow reports whether two timestamps fall within the calendar-day
// match window, lag tolerated in either direction.
func withinWindow(a, b time.Time) bool {
	dayA := a.UTC().Truncate(24 * time.Hour)
	dayB := b.UTC().Truncate(24 * time.Hour)
	diff := dayA.Sub(dayB)
	if diff < 0 {
		diff = -diff
	}
	return diff <= MatchWindowDays*24*time.Hour
}

// Apply merges each matched pair in the store: the two provisional entries
// are replaced by one entry moving the amount between the asset accounts,
// timestamped at the from leg. Returns the number of pairs merged.
func Apply(ctx context.Context, store service.Storage, pairs []Pair) (int, error) {
	merged := 0
	for _, pair := range pairs {
		fromEntry, err := store.GetEntry(ctx, pair.From.EntryID)
		if err != nil {
			return merged, fmt.Errorf("failed to load from entry %d: %w", pair.From.EntryID, err)
		}

		amount := pair.To.AmountMinor
		description := fmt.Sprintf("Transfer %s -> %s", pair.From.AccountID, pair.To.AccountID)
		entry := model.NewEntry{
			PostedAt:         pair.From.PostedAt,
			Description:      description,
			RawDescription:   fromEntry.RawDescription,
			CleanDescription: description,
			SourceFile:       fromEntry.SourceFile,
			Postings: []model.NewPosting{
				{AccountID: pair.From.AccountID, AmountMinor: -amount},
				{AccountID: pair.To.AccountID, AmountMinor: amount},
			},
			// Import keys carried over by ReplaceTransferPair.
		}

		if _, err := store.ReplaceTransferPair(ctx, pair.From.EntryID, pair.To.EntryID, entry); err != nil {
			return merged, fmt.Errorf("failed to merge transfer pair %d/%d: %w", pair.From.EntryID, pair.To.EntryID, err)
		}
		merged++

		slog.Debug("Merged transfer pair",
			"from_account", pair.From.AccountID,
			"to_account", pair.To.AccountID,
			"amount_minor", amount)
	}
	return merged, nil
}
