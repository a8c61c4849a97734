package model

// TaxType selects the tax-reserve treatment for a group.
type TaxType string

// Tax type constants.
const (
	TaxTypeCorp   TaxType = "corp"
	TaxTypeIncome TaxType = "income"
	TaxTypeNone   TaxType = "none"
)

// Valid reports whether t is a known tax type.
func (t TaxType) Valid() bool {
	switch t {
	case TaxTypeCorp, TaxTypeIncome, TaxTypeNone:
		return true
	}
	return false
}

// GroupMetadata describes one reporting group (e.g. "personal",
// "business"). It drives reserve and runway computation and is only ever
// read by the core.
type GroupMetadata struct {
	ID                      string   `json:"id"`
	Label                   string   `json:"label"`
	TaxType                 TaxType  `json:"tax_type"`
	ExpenseReserveMonths    int      `json:"expense_reserve_months"`
	BurnRateExcludeAccounts []string `json:"burn_rate_exclude_accounts,omitempty"`
}
