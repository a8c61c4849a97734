package config

import (
	"fmt"
	"strings"

	"github.com/runwayfin/runway/internal/categorize"
	"github.com/runwayfin/runway/internal/common"
	"github.com/runwayfin/runway/internal/model"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// TaxYearStart is the month/day boundary at which tax-reserve accumulation
// resets.
type TaxYearStart struct {
	Month int `mapstructure:"month"`
	Day   int `mapstructure:"day"`
}

// Financial holds global financial parameters.
type Financial struct {
	TrailingMonths  int          `mapstructure:"trailing_months"`
	CorpTaxRate     float64      `mapstructure:"corp_tax_rate"`
	IncomeTaxRate   float64      `mapstructure:"income_tax_rate"`
	JointShareRatio float64      `mapstructure:"joint_share_ratio"`
	TaxYearStart    TaxYearStart `mapstructure:"tax_year_start"`
}

// AccountConfig is one account row as declared in the config file.
type AccountConfig struct {
	ID       string `mapstructure:"id"`
	Type     string `mapstructure:"type"`
	Provider string `mapstructure:"provider"`
	Group    string `mapstructure:"group"`
	Subtype  string `mapstructure:"subtype"`
}

// GroupConfig is one reporting group as declared in the config file.
type GroupConfig struct {
	ID                      string   `mapstructure:"id"`
	Label                   string   `mapstructure:"label"`
	TaxType                 string   `mapstructure:"tax_type"`
	ExpenseReserveMonths    int      `mapstructure:"expense_reserve_months"`
	BurnRateExcludeAccounts []string `mapstructure:"burn_rate_exclude_accounts"`
}

// TransferAccounts configures the transfer matcher's candidate account sets.
type TransferAccounts struct {
	From []string `mapstructure:"from"`
	To   []string `mapstructure:"to"`
}

// fileConfig mirrors the on-disk config layout for unmarshalling.
type fileConfig struct {
	Accounts  []AccountConfig  `mapstructure:"accounts"`
	Groups    []GroupConfig    `mapstructure:"groups"`
	Financial Financial        `mapstructure:"financial"`
	Transfers TransferAccounts `mapstructure:"transfers"`
}

// Config is the validated runtime configuration consumed by the engines. It
// is passed explicitly into every import/analytics call; there is no
// ambient global configuration.
type Config struct {
	Chart     *Chart
	Groups    []model.GroupMetadata
	Financial Financial
	Transfers TransferAccounts
}

// Group returns the group with the given ID.
func (c *Config) Group(id string) (model.GroupMetadata, bool) {
	for _, g := range c.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return model.GroupMetadata{}, false
}

// CorpRate returns the corporation-tax reserve rate as a decimal.
func (f Financial) CorpRate() decimal.Decimal {
	return decimal.NewFromFloat(f.CorpTaxRate)
}

// IncomeRate returns the income-tax reserve rate as a decimal.
func (f Financial) IncomeRate() decimal.Decimal {
	return decimal.NewFromFloat(f.IncomeTaxRate)
}

// defaults applied before validation.
const (
	defaultTrailingMonths = 6
	defaultCorpTaxRate    = 0.25
	defaultIncomeTaxRate  = 0.20
)

// LoadFromViper builds the validated Config from an already-initialized
// viper instance. Invalid configuration is fatal: everything downstream
// depends on it.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return build(fc)
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(ExpandPath(path))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return LoadFromViper(v)
}

func build(fc fileConfig) (*Config, error) {
	if len(fc.Accounts) == 0 {
		return nil, fmt.Errorf("no accounts configured: %w", common.ErrMissingConfig)
	}
	if fc.Financial.TrailingMonths <= 0 {
		fc.Financial.TrailingMonths = defaultTrailingMonths
	}
	if fc.Financial.CorpTaxRate == 0 {
		fc.Financial.CorpTaxRate = defaultCorpTaxRate
	}
	if fc.Financial.IncomeTaxRate == 0 {
		fc.Financial.IncomeTaxRate = defaultIncomeTaxRate
	}
	if fc.Financial.TaxYearStart.Month == 0 {
		fc.Financial.TaxYearStart = TaxYearStart{Month: 4, Day: 6}
	}
	if ts := fc.Financial.TaxYearStart; ts.Month < 1 || ts.Month > 12 || ts.Day < 1 || ts.Day > 31 {
		return nil, &common.ConfigError{Field: "financial.tax_year_start", Reason: "invalid month/day"}
	}

	chart, err := BuildChart(fc.Accounts)
	if err != nil {
		return nil, err
	}

	groups := make([]model.GroupMetadata, 0, len(fc.Groups))
	seen := make(map[string]bool)
	for _, g := range fc.Groups {
		if g.ID == "" {
			return nil, &common.ConfigError{Field: "groups", Reason: "group with empty id"}
		}
		if seen[g.ID] {
			return nil, &common.ConfigError{Field: "groups", Reason: fmt.Sprintf("duplicate group %q", g.ID)}
		}
		seen[g.ID] = true

		taxType := model.TaxType(g.TaxType)
		if g.TaxType == "" {
			taxType = model.TaxTypeNone
		}
		if !taxType.Valid() {
			return nil, &common.ConfigError{
				Field:  fmt.Sprintf("groups.%s.tax_type", g.ID),
				Reason: fmt.Sprintf("unknown tax type %q", g.TaxType),
			}
		}
		for _, id := range g.BurnRateExcludeAccounts {
			if _, ok := chart.Lookup(id); !ok {
				return nil, &common.ConfigError{
					Field:  fmt.Sprintf("groups.%s.burn_rate_exclude_accounts", g.ID),
					Reason: fmt.Sprintf("unknown account %q", id),
				}
			}
		}
		groups = append(groups, model.GroupMetadata{
			ID:                      g.ID,
			Label:                   g.Label,
			TaxType:                 taxType,
			ExpenseReserveMonths:    g.ExpenseReserveMonths,
			BurnRateExcludeAccounts: g.BurnRateExcludeAccounts,
		})
	}

	for _, acct := range chart.Accounts() {
		if acct.Group == "" {
			continue
		}
		if !seen[acct.Group] {
			return nil, &common.ConfigError{
				Field:  fmt.Sprintf("accounts.%s.group", acct.ID),
				Reason: fmt.Sprintf("unknown group %q", acct.Group),
			}
		}
	}

	for _, id := range append(append([]string{}, fc.Transfers.From...), fc.Transfers.To...) {
		acct, ok := chart.Lookup(id)
		if !ok {
			return nil, &common.ConfigError{Field: "transfers", Reason: fmt.Sprintf("unknown account %q", id)}
		}
		if acct.Type != model.AccountTypeAsset {
			return nil, &common.ConfigError{Field: "transfers", Reason: fmt.Sprintf("account %q is not an asset account", id)}
		}
	}

	return &Config{
		Chart:     chart,
		Groups:    groups,
		Financial: fc.Financial,
		Transfers: fc.Transfers,
	}, nil
}

// Chart is the closed set of configured account IDs, validated once at
// load time. Downstream code looks accounts up here instead of re-checking
// strings.
type Chart struct {
	accounts map[string]model.Account
	ordered  []model.Account
}

// BuildChart assembles the chart from configured accounts plus every
// account the category mapper can produce.
func BuildChart(accounts []AccountConfig) (*Chart, error) {
	chart := &Chart{accounts: make(map[string]model.Account)}

	for _, ac := range accounts {
		if strings.TrimSpace(ac.ID) == "" {
			return nil, &common.ConfigError{Field: "accounts", Reason: "account with empty id"}
		}
		accountType := model.AccountType(ac.Type)
		if !accountType.Valid() {
			return nil, &common.ConfigError{
				Field:  fmt.Sprintf("accounts.%s.type", ac.ID),
				Reason: fmt.Sprintf("unknown account type %q", ac.Type),
			}
		}
		if _, dup := chart.accounts[ac.ID]; dup {
			return nil, &common.ConfigError{
				Field:  "accounts",
				Reason: fmt.Sprintf("duplicate account %q", ac.ID),
			}
		}
		chart.add(model.Account{
			ID:       ac.ID,
			Type:     accountType,
			Provider: ac.Provider,
			Group:    ac.Group,
			Subtype:  ac.Subtype,
		})
	}

	// Mapper targets are part of the chart even when not declared.
	for _, id := range categorize.MappedAccounts() {
		if _, ok := chart.accounts[id]; ok {
			continue
		}
		chart.add(model.Account{ID: id, Type: accountTypeForPath(id)})
	}

	return chart, nil
}

func (c *Chart) add(a model.Account) {
	c.accounts[a.ID] = a
	c.ordered = append(c.ordered, a)
}

// Lookup returns the account with the given ID.
func (c *Chart) Lookup(id string) (model.Account, bool) {
	a, ok := c.accounts[id]
	return a, ok
}

// Accounts returns every account in declaration order.
func (c *Chart) Accounts() []model.Account {
	return c.ordered
}

// AccountIDs returns every account ID in declaration order.
func (c *Chart) AccountIDs() []string {
	ids := make([]string, len(c.ordered))
	for i, a := range c.ordered {
		ids[i] = a.ID
	}
	return ids
}

// AccountsOfType returns the accounts with the given type, in order.
func (c *Chart) AccountsOfType(t model.AccountType) []model.Account {
	var out []model.Account
	for _, a := range c.ordered {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// GroupAssetAccounts returns the asset accounts belonging to the group.
func (c *Chart) GroupAssetAccounts(groupID string) []model.Account {
	var out []model.Account
	for _, a := range c.ordered {
		if a.Type == model.AccountTypeAsset && a.Group == groupID {
			out = append(out, a)
		}
	}
	return out
}

func accountTypeForPath(id string) model.AccountType {
	switch {
	case strings.HasPrefix(id, "Expenses:"):
		return model.AccountTypeExpense
	case strings.HasPrefix(id, "Income:"):
		return model.AccountTypeIncome
	case strings.HasPrefix(id, "Equity:"):
		return model.AccountTypeEquity
	case strings.HasPrefix(id, "Liabilities:"):
		return model.AccountTypeLiability
	default:
		return model.AccountTypeAsset
	}
}
