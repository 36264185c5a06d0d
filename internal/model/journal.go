package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus represents the lifecycle state of a journal entry.
type EntryStatus string

const (
	StatusPosted   EntryStatus = "posted"
	StatusDraft    EntryStatus = "draft"
	StatusReversed EntryStatus = "reversed"
)

// EntrySource names the business document that produced a journal entry.
type EntrySource string

const (
	SourceManual    EntrySource = "manual"
	SourceInvoice   EntrySource = "invoice"
	SourcePurchase  EntrySource = "purchase"
	SourcePayment   EntrySource = "payment"
	SourceExpense   EntrySource = "expense"
	SourcePayroll   EntrySource = "payroll"
	SourceInventory EntrySource = "inventory"
	SourceImport    EntrySource = "import"
	SourceReversal  EntrySource = "reversal"
)

// Leg is a single row in journal.csv (one side of a double-entry).
type Leg struct {
	EntryID      string          `json:"entry_id"` // "YYYY-MM-NNNx" where x = a,b,c...
	Date         time.Time       `json:"date"`
	AccountID    int             `json:"account_id"`
	Description  string          `json:"description"`
	Debit        decimal.Decimal `json:"debit"`  // zero if credit side
	Credit       decimal.Decimal `json:"credit"` // zero if debit side
	Counterparty string          `json:"counterparty,omitempty"`
	Reference    string          `json:"reference,omitempty"`
	CostCenter   string          `json:"cost_center,omitempty"`
	Status       EntryStatus     `json:"status"`
	Source       EntrySource     `json:"source"`
	Tags         string          `json:"tags,omitempty"` // semicolon-separated
	Notes        string          `json:"notes,omitempty"`
}

// EntryGroup returns the base entry ID (without leg suffix).
// "2025-01-001a" -> "2025-01-001"
func (l Leg) EntryGroup() string {
	i := len(l.EntryID)
	for i > 0 && l.EntryID[i-1] >= 'a' && l.EntryID[i-1] <= 'z' {
		i--
	}
	return l.EntryID[:i]
}

// Amount returns the non-zero side of the leg.
func (l Leg) Amount() decimal.Decimal {
	if !l.Debit.IsZero() {
		return l.Debit
	}
	return l.Credit
}
