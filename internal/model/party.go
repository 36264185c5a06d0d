package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PartyStatus marks whether a customer or vendor can be used on new documents.
type PartyStatus string

const (
	PartyActive   PartyStatus = "active"
	PartyInactive PartyStatus = "inactive"
)

// Customer is someone the business sells to. Balance is the open receivable.
type Customer struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone,omitempty"`
	Email       string          `json:"email,omitempty"`
	TaxNumber   string          `json:"tax_number,omitempty"`
	Address     string          `json:"address,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	Status      PartyStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Vendor is a supplier. Balance is the open payable.
type Vendor struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Phone        string          `json:"phone,omitempty"`
	Email        string          `json:"email,omitempty"`
	TaxNumber    string          `json:"tax_number,omitempty"`
	Address      string          `json:"address,omitempty"`
	PaymentTerms int             `json:"payment_terms"` // days
	Balance      decimal.Decimal `json:"balance"`
	Status       PartyStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// GetID implements store.Entity.
func (c Customer) GetID() string { return c.ID }

// GetID implements store.Entity.
func (v Vendor) GetID() string { return v.ID }
