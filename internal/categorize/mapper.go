// Package categorize maps provider category hints and raw descriptions to
// chart-of-accounts leaves. The mapping is a pure function so it can be
// unit-tested without storage.
package categorize

import "strings"

// Well-known synthetic accounts produced by the mapper.
const (
	AccountTransfers     = "Equity:Transfers"
	AccountRefunds       = "Income:Refunds"
	AccountOtherIncome   = "Income:Other"
	AccountUncategorized = "Expenses:Uncategorized"
)

// expenseAccounts maps provider expense category keywords to expense
// accounts. Keys are lowercase.
var expenseAccounts = map[string]string{
	"groceries":     "Expenses:Food:Groceries",
	"eating_out":    "Expenses:Food:EatingOut",
	"restaurants":   "Expenses:Food:EatingOut",
	"coffee":        "Expenses:Food:Coffee",
	"energy":        "Expenses:Bills:Energy",
	"bills":         "Expenses:Bills",
	"insurance":     "Expenses:Bills:Insurance",
	"phone":         "Expenses:Bills:Phone",
	"rent":          "Expenses:Housing:Rent",
	"mortgage":      "Expenses:Housing:Mortgage",
	"transport":     "Expenses:Transport",
	"fuel":          "Expenses:Transport:Fuel",
	"shopping":      "Expenses:Shopping",
	"entertainment": "Expenses:Entertainment",
	"subscriptions": "Expenses:Subscriptions",
	"personal_care": "Expenses:PersonalCare",
	"health":        "Expenses:Health",
	"holidays":      "Expenses:Travel",
	"travel":        "Expenses:Travel",
	"charity":       "Expenses:Charity",
	"gifts":         "Expenses:Gifts",
	"cash":          "Expenses:Cash",
	"fees":          "Expenses:Fees",
	"vat":           "Expenses:Tax:VAT",
	"tax":           "Expenses:Tax",
	"general":       "Expenses:Uncategorized",
}

// incomeAccounts maps provider income category keywords to income accounts.
var incomeAccounts = map[string]string{
	"salary":    "Income:Salary",
	"wages":     "Income:Salary",
	"interest":  "Income:Interest",
	"dividends": "Income:Dividends",
	"invoice":   "Income:Sales",
	"sales":     "Income:Sales",
	"refund":    "Income:Refunds",
}

// transferPatterns are raw-description substrings that mark a row as an
// inter-account transfer regardless of its category hint.
var transferPatterns = []string{
	"pot transfer",
	"round up",
	"topped up",
	"transfer to savings",
	"transfer from savings",
	"auto save",
}

// MapCategoryToAccount resolves a (category hint, raw description, inflow)
// triple to a chart-of-accounts leaf. Resolution order: transfer heuristic,
// refund-into-expense-category, income table, expense table.
func MapCategoryToAccount(category, description string, inflow bool) string {
	cat := strings.ToLower(strings.TrimSpace(category))

	if cat == "transfer" || IsTransferDescription(description) {
		return AccountTransfers
	}

	if inflow {
		if IsExpenseCategory(cat) {
			return AccountRefunds
		}
		if account, ok := incomeAccounts[cat]; ok {
			return account
		}
		return AccountOtherIncome
	}

	if account, ok := expenseAccounts[cat]; ok {
		return account
	}
	return AccountUncategorized
}

// IsTransferDescription reports whether the raw description matches the
// transfer heuristic.
func IsTransferDescription(description string) bool {
	lower := strings.ToLower(description)
	for _, pattern := range transferPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// MappedAccounts returns every account the mapper can produce, for folding
// into the configured chart at load time.
func MappedAccounts() []string {
	seen := make(map[string]bool)
	accounts := make([]string, 0, len(expenseAccounts)+len(incomeAccounts)+4)

	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			accounts = append(accounts, id)
		}
	}

	add(AccountTransfers)
	add(AccountRefunds)
	add(AccountOtherIncome)
	add(AccountUncategorized)
	for _, id := range expenseAccounts {
		add(id)
	}
	for _, id := range incomeAccounts {
		add(id)
	}
	return accounts
}

// IsExpenseCategory reports whether the category hint is a known expense
// category keyword.
func IsExpenseCategory(category string) bool {
	_, ok := expenseAccounts[strings.ToLower(strings.TrimSpace(category))]
	return ok
}
