package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a stocked item or a service line.
type Product struct {
	ID           string          `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"`
	Unit         string          `json:"unit,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Cost         decimal.Decimal `json:"cost"` // weighted-average unit cost
	TaxRate      decimal.Decimal `json:"tax_rate"`
	Quantity     decimal.Decimal `json:"quantity"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	Service      bool            `json:"service"` // services carry no stock
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// GetID implements store.Entity.
func (p Product) GetID() string { return p.ID }

// LowStock reports whether a stocked product is at or below its reorder level.
func (p Product) LowStock() bool {
	return !p.Service && p.Quantity.LessThanOrEqual(p.ReorderLevel)
}
