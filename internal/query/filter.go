package query

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/daftar-erp/daftar/internal/model"
)

// Filter returns the items for which keep is true, preserving order.
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// CustomerFilter narrows the customer list.
type CustomerFilter struct {
	Status      model.PartyStatus
	WithBalance bool // only customers that owe something
	MinBalance  decimal.Decimal
	Search      string
}

// Match reports whether c passes every set criterion.
func (f CustomerFilter) Match(c model.Customer) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.WithBalance && !c.Balance.IsPositive() {
		return false
	}
	if !f.MinBalance.IsZero() && c.Balance.LessThan(f.MinBalance) {
		return false
	}
	return Matches(f.Search, c.Name, c.Phone, c.Email, c.TaxNumber)
}

// VendorFilter narrows the vendor list.
type VendorFilter struct {
	Status      model.PartyStatus
	WithBalance bool
	Search      string
}

// Match reports whether v passes every set criterion.
func (f VendorFilter) Match(v model.Vendor) bool {
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	if f.WithBalance && !v.Balance.IsPositive() {
		return false
	}
	return Matches(f.Search, v.Name, v.Phone, v.Email, v.TaxNumber)
}

// InvoiceFilter narrows invoice lists. From/To bound the issue date inclusively.
type InvoiceFilter struct {
	Status     model.DocumentStatus
	CustomerID string
	From, To   time.Time
	Search     string
}

// Match reports whether inv passes every set criterion.
func (f InvoiceFilter) Match(inv model.Invoice) bool {
	if f.Status != "" && inv.Status != f.Status {
		return false
	}
	if f.CustomerID != "" && inv.CustomerID != f.CustomerID {
		return false
	}
	if !InRange(inv.IssueDate, f.From, f.To) {
		return false
	}
	return Matches(f.Search, inv.Number, inv.Notes)
}

// PurchaseFilter narrows purchase lists.
type PurchaseFilter struct {
	Status   model.DocumentStatus
	VendorID string
	From, To time.Time
}

// Match reports whether p passes every set criterion.
func (f PurchaseFilter) Match(p model.Purchase) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.VendorID != "" && p.VendorID != f.VendorID {
		return false
	}
	return InRange(p.Date, f.From, f.To)
}

// ProductFilter narrows the product list.
type ProductFilter struct {
	Category string
	LowStock bool
	Search   string
}

// Match reports whether p passes every set criterion.
func (f ProductFilter) Match(p model.Product) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.LowStock && !p.LowStock() {
		return false
	}
	return Matches(f.Search, p.Name, p.SKU, p.Category)
}

// InRange reports whether t falls within [from, to]; zero bounds are open.
func InRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

// Matches reports whether any field contains term after folding. An empty term matches.
func Matches(term string, fields ...string) bool {
	term = Fold(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(Fold(f), term) {
			return true
		}
	}
	return false
}

// Fold normalizes text for search: lower case, Arabic alef/teh marbuta/alef maksura
// variants unified, tashkeel and tatweel removed.
func Fold(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == 'أ' || r == 'إ' || r == 'آ' || r == 'ٱ':
			return 'ا'
		case r == 'ة':
			return 'ه'
		case r == 'ى':
			return 'ي'
		case r == 'ـ':
			return -1
		case r >= 0x064B && r <= 0x0652:
			return -1
		}
		return r
	}, strings.ToLower(s))
}
