package model

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// DebitNormal reports whether balances of this type grow on the debit side.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Account represents a row in chart-of-accounts.csv.
type Account struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`    // Arabic display name
	NameEN      string      `json:"name_en"` // English fallback
	Type        AccountType `json:"type"`
	ParentID    int         `json:"parent_id,omitempty"` // 0 = top-level
	TaxLine     string      `json:"tax_line,omitempty"`
	Description string      `json:"description,omitempty"`
}

// CostCenter is an organizational unit that expenses are allocated to.
type CostCenter struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}
