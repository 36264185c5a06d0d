package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentStatus is the lifecycle state of invoices and purchases.
type DocumentStatus string

const (
	DocDraft         DocumentStatus = "draft"
	DocIssued        DocumentStatus = "issued"
	DocPartiallyPaid DocumentStatus = "partially_paid"
	DocPaid          DocumentStatus = "paid"
	DocOverdue       DocumentStatus = "overdue"
	DocCancelled     DocumentStatus = "cancelled"
)

// Open reports whether a document still carries an unpaid balance.
func (s DocumentStatus) Open() bool {
	return s == DocIssued || s == DocPartiallyPaid || s == DocOverdue
}

// LineItem is one row of an invoice or purchase.
type LineItem struct {
	ProductID       string          `json:"product_id,omitempty"`
	AccountID       int             `json:"account_id,omitempty"` // expense account for non-stock purchase lines
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
	Net             decimal.Decimal `json:"net"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
}

// Totals are the computed amounts of a document.
type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"` // sum of gross line amounts
	DiscountTotal decimal.Decimal `json:"discount_total"`
	NetTotal      decimal.Decimal `json:"net_total"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	Shipping      decimal.Decimal `json:"shipping"`
	Total         decimal.Decimal `json:"total"`
}

// Invoice is a sales invoice.
type Invoice struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	CustomerID string          `json:"customer_id"`
	IssueDate  time.Time       `json:"issue_date"`
	DueDate    time.Time       `json:"due_date"`
	Status     DocumentStatus  `json:"status"`
	Currency   string          `json:"currency"`
	Items      []LineItem      `json:"items"`
	Discount   decimal.Decimal `json:"discount"` // document-level discount amount
	Totals
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Notes      string          `json:"notes,omitempty"`
	EntryID    string          `json:"entry_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// GetID implements store.Entity.
func (i Invoice) GetID() string { return i.ID }

// Outstanding returns the unpaid part of the invoice total.
func (i Invoice) Outstanding() decimal.Decimal {
	return i.Total.Sub(i.AmountPaid)
}

// Purchase is a vendor bill.
type Purchase struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	VendorID   string          `json:"vendor_id"`
	VendorRef  string          `json:"vendor_ref,omitempty"`
	Date       time.Time       `json:"date"`
	DueDate    time.Time       `json:"due_date"`
	Status     DocumentStatus  `json:"status"`
	Currency   string          `json:"currency"`
	Items      []LineItem      `json:"items"`
	Discount   decimal.Decimal `json:"discount"`
	Totals
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Notes      string          `json:"notes,omitempty"`
	EntryID    string          `json:"entry_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// GetID implements store.Entity.
func (p Purchase) GetID() string { return p.ID }

// Outstanding returns the unpaid part of the bill.
func (p Purchase) Outstanding() decimal.Decimal {
	return p.Total.Sub(p.AmountPaid)
}

// PaymentKind distinguishes money received from money paid out.
type PaymentKind string

const (
	PaymentReceipt      PaymentKind = "receipt"
	PaymentDisbursement PaymentKind = "disbursement"
)

// Payment settles an invoice (receipt) or a purchase (disbursement).
type Payment struct {
	ID         string          `json:"id"`
	Kind       PaymentKind     `json:"kind"`
	DocumentID string          `json:"document_id"`
	PartyID    string          `json:"party_id"`
	Date       time.Time       `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
	AccountID  int             `json:"account_id"` // cash or bank
	Method     string          `json:"method,omitempty"`
	EntryID    string          `json:"entry_id"`
	CreatedAt  time.Time       `json:"created_at"`
}

// GetID implements store.Entity.
func (p Payment) GetID() string { return p.ID }
