package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a directly paid operating cost.
type Expense struct {
	ID               string          `json:"id"`
	Date             time.Time       `json:"date"`
	Category         string          `json:"category"`
	AccountID        int             `json:"account_id"`
	CostCenter       string          `json:"cost_center,omitempty"`
	VendorID         string          `json:"vendor_id,omitempty"`
	Description      string          `json:"description"`
	Amount           decimal.Decimal `json:"amount"` // before tax
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	PaymentAccountID int             `json:"payment_account_id"`
	Reference        string          `json:"reference,omitempty"`
	EntryID          string          `json:"entry_id"`
	CreatedAt        time.Time       `json:"created_at"`
}

// GetID implements store.Entity.
func (e Expense) GetID() string { return e.ID }

// Total is amount plus tax.
func (e Expense) Total() decimal.Decimal {
	return e.Amount.Add(e.TaxAmount)
}
