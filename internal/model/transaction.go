package model

import "time"

// ImportedTransaction is one normalized bank row handed to the import
// pipeline by a bank-file parser. It is not persisted verbatim; the
// pipeline turns it into a balanced journal entry.
type ImportedTransaction struct {
	PostedAt         time.Time `json:"posted_at"`
	ProviderTxnID    string    `json:"provider_txn_id"`
	ChartAccountID   string    `json:"chart_account_id"`
	Currency         string    `json:"currency"`
	RawDescription   string    `json:"raw_description"`
	Counterparty     string    `json:"counterparty,omitempty"`
	ProviderCategory string    `json:"provider_category,omitempty"`
	BalanceMinor     *int64    `json:"balance_minor,omitempty"`
	AmountMinor      int64     `json:"amount_minor"`
}

// Inflow reports whether the transaction increases the asset account.
func (t *ImportedTransaction) Inflow() bool {
	return t.AmountMinor > 0
}

// ParsedStatement is the result of parsing one bank file: the chart
// account it belongs to plus its normalized transactions.
type ParsedStatement struct {
	ChartAccountID string                `json:"chart_account_id"`
	Transactions   []ImportedTransaction `json:"transactions"`
	HasBalances    bool                  `json:"has_balances"`
}
