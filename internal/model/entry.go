package model

import "time"

// Posting is one signed amount against one account within a journal entry.
// Amounts are integer minor currency units; a posting belongs to exactly
// one entry.
type Posting struct {
	EntryID     int64  `json:"entry_id"`
	AccountID   string `json:"account_id"`
	AmountMinor int64  `json:"amount_minor"`
}

// JournalEntry is one balanced accounting event: a group of postings that
// sum to exactly zero. Two postings is the common case but the model
// supports N.
type JournalEntry struct {
	PostedAt         time.Time `json:"posted_at"`
	Description      string    `json:"description"`
	RawDescription   string    `json:"raw_description"`
	CleanDescription string    `json:"clean_description"`
	Counterparty     string    `json:"counterparty,omitempty"`
	SourceFile       string    `json:"source_file,omitempty"`
	Postings         []Posting `json:"postings"`
	ID               int64     `json:"id"`
}

// PostingSum returns the sum of the entry's posting amounts. A balanced
// entry sums to zero.
func (e *JournalEntry) PostingSum() int64 {
	var sum int64
	for _, p := range e.Postings {
		sum += p.AmountMinor
	}
	return sum
}

// Balanced reports whether the entry's postings sum to exactly zero.
func (e *JournalEntry) Balanced() bool {
	return e.PostingSum() == 0
}

// PostingFor returns the posting against the given account, if any.
func (e *JournalEntry) PostingFor(accountID string) (Posting, bool) {
	for _, p := range e.Postings {
		if p.AccountID == accountID {
			return p, true
		}
	}
	return Posting{}, false
}

// ManuallyEdited reports whether the clean description has been edited away
// from the raw description. Manually edited entries are never overwritten
// by rule-driven migration.
func (e *JournalEntry) ManuallyEdited(ruleTarget string) bool {
	return e.CleanDescription != e.RawDescription && e.CleanDescription != ruleTarget
}

// NewPosting describes one leg of an entry about to be written. EntryID is
// assigned by the store.
type NewPosting struct {
	AccountID   string `json:"account_id"`
	AmountMinor int64  `json:"amount_minor"`
}

// ImportKey ties a journal entry back to the provider row it was imported
// from. The (AccountID, ProviderTxnID) pair is unique across the store and
// is the import idempotence boundary.
type ImportKey struct {
	AccountID     string `json:"account_id"`
	ProviderTxnID string `json:"provider_txn_id"`
}

// NewEntry describes a journal entry about to be written, postings and
// import keys included. The store assigns the entry ID and persists the
// whole set atomically.
type NewEntry struct {
	PostedAt         time.Time    `json:"posted_at"`
	Description      string       `json:"description"`
	RawDescription   string       `json:"raw_description"`
	CleanDescription string       `json:"clean_description"`
	Counterparty     string       `json:"counterparty,omitempty"`
	SourceFile       string       `json:"source_file,omitempty"`
	Postings         []NewPosting `json:"postings"`
	ImportKeys       []ImportKey  `json:"import_keys,omitempty"`
}

// PostingSum returns the sum of the pending entry's posting amounts.
func (e *NewEntry) PostingSum() int64 {
	var sum int64
	for _, p := range e.Postings {
		sum += p.AmountMinor
	}
	return sum
}
