// Package dictionary carries the curated seed data shared by the services:
// the default retail chart of accounts and the permission catalog.
package dictionary

import "github.com/tinoosan/backoffice/internal/ledger"

// AccountDef describes one seeded account in the default chart.
type AccountDef struct {
	Code  string             `json:"code"`
	Name  string             `json:"name"`
	Type  ledger.AccountType `json:"type"`
	Label string             `json:"label"`
}

var chart = []AccountDef{
	{Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset, Label: "Cash on hand and registers"},
	{Code: "1100", Name: "Bank", Type: ledger.AccountTypeAsset, Label: "Bank accounts"},
	{Code: "1200", Name: "Inventory", Type: ledger.AccountTypeAsset, Label: "Merchandise at cost"},
	{Code: "1300", Name: "Accounts Receivable", Type: ledger.AccountTypeAsset, Label: "Customer balances"},
	{Code: "2000", Name: "Accounts Payable", Type: ledger.AccountTypeLiability, Label: "Supplier balances"},
	{Code: "2100", Name: "Sales Tax Payable", Type: ledger.AccountTypeLiability, Label: "Collected tax owed"},
	{Code: "3000", Name: "Owner Equity", Type: ledger.AccountTypeEquity, Label: "Contributed capital"},
	{Code: "4000", Name: "Sales Revenue", Type: ledger.AccountTypeIncome, Label: "Retail sales"},
	{Code: "4100", Name: "Other Income", Type: ledger.AccountTypeIncome, Label: "Non-sales income"},
	{Code: "5000", Name: "Cost of Goods Sold", Type: ledger.AccountTypeExpense, Label: "Merchandise cost"},
	{Code: "5100", Name: "Rent", Type: ledger.AccountTypeExpense, Label: "Store rent"},
	{Code: "5200", Name: "Utilities", Type: ledger.AccountTypeExpense, Label: "Power, water, comms"},
	{Code: "5300", Name: "Salaries", Type: ledger.AccountTypeExpense, Label: "Staff pay"},
}

// DefaultChart returns the seed chart of accounts.
func DefaultChart() []AccountDef {
	out := make([]AccountDef, len(chart))
	copy(out, chart)
	return out
}

// ChartFor returns the seed accounts of one type, or all when t is nil.
func ChartFor(t *ledger.AccountType) []AccountDef {
	if t == nil {
		return DefaultChart()
	}
	out := make([]AccountDef, 0)
	for _, def := range chart {
		if def.Type == *t {
			out = append(out, def)
		}
	}
	return out
}

// Permission resources and actions recognized across the suite.
var (
	Resources = []string{"account", "transaction", "user", "financial", "product", "stock", "sale", "settings"}
	Actions   = []string{"create", "read", "update", "delete", "list", "admin"}
)

// RoleDef maps a seeded role to its permission names.
type RoleDef struct {
	Name        string
	Description string
	Permissions []string
}

// DefaultRoles returns the seeded roles. The admin role gets every
// resource:action pair; cashier and manager get the POS-facing subsets.
func DefaultRoles() []RoleDef {
	all := make([]string, 0, len(Resources)*len(Actions))
	for _, r := range Resources {
		for _, a := range Actions {
			all = append(all, r+":"+a)
		}
	}
	return []RoleDef{
		{Name: "admin", Description: "Full access", Permissions: all},
		{Name: "manager", Description: "Store manager", Permissions: []string{
			"sale:create", "sale:read", "sale:list", "sale:update", "sale:admin",
			"stock:read", "stock:update", "product:read", "product:list",
			"transaction:create", "transaction:read", "transaction:list",
			"account:read", "account:list", "financial:read", "settings:read",
		}},
		{Name: "cashier", Description: "Point of sale operator", Permissions: []string{
			"sale:create", "sale:read", "sale:list",
			"stock:read", "stock:update", "product:read", "product:list",
			"settings:read",
		}},
	}
}
