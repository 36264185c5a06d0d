// Package inventory keeps the product catalog and stock levels.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/daftar-erp/daftar/internal/config"
	"github.com/daftar-erp/daftar/internal/id"
	"github.com/daftar-erp/daftar/internal/journal"
	"github.com/daftar-erp/daftar/internal/model"
	"github.com/daftar-erp/daftar/internal/query"
	"github.com/daftar-erp/daftar/internal/store"
)

var (
	// ErrInvalid is returned for a product that fails validation.
	ErrInvalid = errors.New("invalid product")
	// ErrDuplicateSKU is returned when a SKU is already used.
	ErrDuplicateSKU = errors.New("sku already exists")
	// ErrInsufficientStock is returned when a movement would take stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// costPlaces is the precision of weighted-average unit cost.
const costPlaces = 4

// Poster appends journal entries.
type Poster interface {
	AddEntry(params journal.EntryParams) (string, error)
}

// Service owns products and their stock.
type Service struct {
	mu       sync.Mutex
	products *store.Collection[model.Product]
	ledger   Poster
	accts    config.LedgerConfig
	now      func() time.Time
}

// NewService creates an inventory Service.
func NewService(st *store.Store, ledger Poster, accts config.LedgerConfig) *Service {
	return &Service{products: st.Products, ledger: ledger, accts: accts, now: time.Now}
}

func validate(p model.Product) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case strings.TrimSpace(p.SKU) == "":
		return fmt.Errorf("%w: sku is required", ErrInvalid)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price is negative", ErrInvalid)
	case p.Cost.IsNegative():
		return fmt.Errorf("%w: cost is negative", ErrInvalid)
	case p.TaxRate.IsNegative() || p.TaxRate.GreaterThan(decimal.NewFromInt(100)):
		return fmt.Errorf("%w: tax rate outside 0..100", ErrInvalid)
	case p.ReorderLevel.IsNegative():
		return fmt.Errorf("%w: reorder level is negative", ErrInvalid)
	case p.Quantity.IsNegative():
		return fmt.Errorf("%w: quantity is negative", ErrInvalid)
	}
	return nil
}

func (s *Service) skuTaken(ctx context.Context, sku, exceptID string) (bool, error) {
	all, err := s.products.List(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range all {
		if p.ID != exceptID && strings.EqualFold(p.SKU, sku) {
			return true, nil
		}
	}
	return false, nil
}

// Create stores a new product. An opening quantity is accepted as-is and
// carried at the given cost.
func (s *Service) Create(ctx context.Context, p model.Product) (model.Product, error) {
	p.SKU = strings.TrimSpace(p.SKU)
	if err := validate(p); err != nil {
		return model.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	taken, err := s.skuTaken(ctx, p.SKU, "")
	if err != nil {
		return model.Product{}, err
	}
	if taken {
		return model.Product{}, fmt.Errorf("%s: %w", p.SKU, ErrDuplicateSKU)
	}

	now := s.now().UTC()
	p.ID = id.New()
	p.Active = true
	if p.Service {
		p.Quantity = decimal.Zero
		p.ReorderLevel = decimal.Zero
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.products.Put(ctx, p); err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// Update replaces catalog fields. Quantity and cost only change through
// stock movements.
func (s *Service) Update(ctx context.Context, p model.Product) (model.Product, error) {
	p.SKU = strings.TrimSpace(p.SKU)
	if err := validate(p); err != nil {
		return model.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.products.Get(ctx, p.ID)
	if err != nil {
		return model.Product{}, err
	}
	taken, err := s.skuTaken(ctx, p.SKU, p.ID)
	if err != nil {
		return model.Product{}, err
	}
	if taken {
		return model.Product{}, fmt.Errorf("%s: %w", p.SKU, ErrDuplicateSKU)
	}
	p.Quantity = existing.Quantity
	p.Cost = existing.Cost
	p.Service = existing.Service
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now().UTC()
	if err := s.products.Put(ctx, p); err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// Delete removes a product with no stock on hand.
func (s *Service) Delete(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return err
	}
	if !p.Quantity.IsZero() {
		return fmt.Errorf("%w: %s still has %s in stock", ErrInvalid, p.SKU, p.Quantity)
	}
	return s.products.Delete(ctx, productID)
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, productID string) (model.Product, error) {
	return s.products.Get(ctx, productID)
}

// List returns products passing f, sorted by SKU.
func (s *Service) List(ctx context.Context, f query.ProductFilter) ([]model.Product, error) {
	all, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	out := query.Filter(all, f.Match)
	slices.SortFunc(out, func(a, b model.Product) int { return strings.Compare(a.SKU, b.SKU) })
	return out, nil
}

// Move changes the quantity on hand by delta. Services are left untouched.
func (s *Service) Move(ctx context.Context, productID string, delta decimal.Decimal) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.move(ctx, productID, delta)
}

func (s *Service) move(ctx context.Context, productID string, delta decimal.Decimal) (model.Product, error) {
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return model.Product{}, err
	}
	if p.Service || delta.IsZero() {
		return p, nil
	}
	next := p.Quantity.Add(delta)
	if next.IsNegative() {
		return model.Product{}, fmt.Errorf("%s: %w (on hand %s, requested %s)", p.SKU, ErrInsufficientStock, p.Quantity, delta.Neg())
	}
	p.Quantity = next
	p.UpdatedAt = s.now().UTC()
	if err := s.products.Put(ctx, p); err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// CheckAvailable reports ErrInsufficientStock when qty exceeds the stock on hand.
func (s *Service) CheckAvailable(ctx context.Context, productID string, qty decimal.Decimal) error {
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return err
	}
	if !p.Service && p.Quantity.LessThan(qty) {
		return fmt.Errorf("%s: %w (on hand %s, requested %s)", p.SKU, ErrInsufficientStock, p.Quantity, qty)
	}
	return nil
}

// Adjust corrects the stock count by delta and posts the value difference
// against the inventory adjustment account. Returns the journal entry ID,
// empty when the product carries no cost.
func (s *Service) Adjust(ctx context.Context, productID string, delta decimal.Decimal, reason string, date time.Time) (model.Product, string, error) {
	if delta.IsZero() {
		return model.Product{}, "", fmt.Errorf("%w: adjustment is zero", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return model.Product{}, "", err
	}
	if p.Service {
		return model.Product{}, "", fmt.Errorf("%w: %s is a service", ErrInvalid, p.SKU)
	}
	if p.Quantity.Add(delta).IsNegative() {
		return model.Product{}, "", fmt.Errorf("%s: %w", p.SKU, ErrInsufficientStock)
	}

	var entryID string
	value := delta.Abs().Mul(p.Cost).Round(2)
	if value.IsPositive() {
		debit, credit := s.accts.Inventory, s.accts.InventoryAdjustment
		if delta.IsNegative() {
			debit, credit = credit, debit
		}
		desc := "تسوية مخزون " + p.SKU
		if reason != "" {
			desc += ": " + reason
		}
		entryID, err = s.ledger.AddEntry(journal.EntryParams{
			Date:        date,
			Description: desc,
			Reference:   p.SKU,
			Source:      model.SourceInventory,
			Notes:       reason,
			Legs: []journal.LegParams{
				{AccountID: debit, Debit: value},
				{AccountID: credit, Credit: value},
			},
		})
		if err != nil {
			return model.Product{}, "", fmt.Errorf("posting adjustment: %w", err)
		}
	}

	p, err = s.move(ctx, productID, delta)
	if err != nil {
		return model.Product{}, "", err
	}
	return p, entryID, nil
}

// ReceiveAt adds qty at unitCost and re-averages the product cost.
func (s *Service) ReceiveAt(ctx context.Context, productID string, qty, unitCost decimal.Decimal) (model.Product, error) {
	if !qty.IsPositive() {
		return model.Product{}, fmt.Errorf("%w: received quantity must be positive", ErrInvalid)
	}
	if unitCost.IsNegative() {
		return model.Product{}, fmt.Errorf("%w: unit cost is negative", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return model.Product{}, err
	}
	if p.Service {
		return p, nil
	}
	p.Cost = WeightedCost(p.Quantity, p.Cost, qty, unitCost)
	p.Quantity = p.Quantity.Add(qty)
	p.UpdatedAt = s.now().UTC()
	if err := s.products.Put(ctx, p); err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// WeightedCost averages the cost of stock on hand with a new receipt.
func WeightedCost(onHand, cost, qty, unitCost decimal.Decimal) decimal.Decimal {
	if !onHand.IsPositive() {
		return unitCost.Round(costPlaces)
	}
	total := onHand.Add(qty)
	return onHand.Mul(cost).Add(qty.Mul(unitCost)).Div(total).Round(costPlaces)
}

// LowStock returns active stocked products at or below their reorder level.
func (s *Service) LowStock(ctx context.Context) ([]model.Product, error) {
	all, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	return query.Filter(all, func(p model.Product) bool { return p.Active && p.LowStock() }), nil
}

// Valuation is the cost value of all stock on hand.
func (s *Service) Valuation(ctx context.Context) (decimal.Decimal, error) {
	all, err := s.products.List(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range all {
		if p.Service {
			continue
		}
		total = total.Add(p.Quantity.Mul(p.Cost))
	}
	return total.Round(2), nil
}
