// Package model defines the core data structures for the runway ledger.
package model

import "strings"

// AccountType classifies an account in the chart of accounts.
type AccountType string

// Account type constants.
const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
)

// AccountTypes lists every valid account type.
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeIncome,
	AccountTypeExpense,
}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// NaturalSign returns the sign that increases an account's natural balance
// side: +1 for assets and expenses (debit-normal), -1 for liabilities,
// equity and income (credit-normal).
func (t AccountType) NaturalSign() int64 {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return 1
	default:
		return -1
	}
}

// Account is one node in the hierarchical chart of accounts. Accounts come
// from configuration and are immutable at runtime.
type Account struct {
	ID       string      `json:"id"`
	Type     AccountType `json:"type"`
	Provider string      `json:"provider,omitempty"`
	Group    string      `json:"group,omitempty"`
	Subtype  string      `json:"subtype,omitempty"`
}

// PathSegments splits a colon-delimited account ID into its hierarchy
// segments, e.g. "Expenses:Food:Groceries" -> ["Expenses", "Food", "Groceries"].
func PathSegments(id string) []string {
	return strings.Split(id, ":")
}

// Parent returns the parent account ID, or "" for a top-level account.
func AccountParent(id string) string {
	idx := strings.LastIndex(id, ":")
	if idx < 0 {
		return ""
	}
	return id[:idx]
}
