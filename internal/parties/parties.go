// Package parties manages customers and vendors and their running balances.
package parties

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/daftar-erp/daftar/internal/id"
	"github.com/daftar-erp/daftar/internal/model"
	"github.com/daftar-erp/daftar/internal/query"
	"github.com/daftar-erp/daftar/internal/store"
)

var (
	// ErrInvalid is returned for a customer or vendor that fails validation.
	ErrInvalid = errors.New("invalid party")
	// ErrHasBalance is returned when deleting a party with an open balance.
	ErrHasBalance = errors.New("party has an open balance")
)

// Service owns customers and vendors.
type Service struct {
	mu        sync.Mutex
	customers *store.Collection[model.Customer]
	vendors   *store.Collection[model.Vendor]
	now       func() time.Time
}

// NewService creates a parties Service over st.
func NewService(st *store.Store) *Service {
	return &Service{customers: st.Customers, vendors: st.Vendors, now: time.Now}
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	return nil
}

// CreateCustomer stores a new customer with a zero balance.
func (s *Service) CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	if err := validateName(c.Name); err != nil {
		return model.Customer{}, err
	}
	if c.CreditLimit.IsNegative() {
		return model.Customer{}, fmt.Errorf("%w: credit limit is negative", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	c.ID = id.New()
	c.Name = strings.TrimSpace(c.Name)
	c.Balance = decimal.Zero
	if c.Status == "" {
		c.Status = model.PartyActive
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := s.customers.Put(ctx, c); err != nil {
		return model.Customer{}, err
	}
	return c, nil
}

// UpdateCustomer replaces the editable fields of a customer. The balance is
// only changed through AdjustCustomerBalance.
func (s *Service) UpdateCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	if err := validateName(c.Name); err != nil {
		return model.Customer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.customers.Get(ctx, c.ID)
	if err != nil {
		return model.Customer{}, err
	}
	c.Name = strings.TrimSpace(c.Name)
	c.Balance = existing.Balance
	c.CreatedAt = existing.CreatedAt
	if c.Status == "" {
		c.Status = existing.Status
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.customers.Put(ctx, c); err != nil {
		return model.Customer{}, err
	}
	return c, nil
}

// DeleteCustomer removes a customer that owes nothing.
func (s *Service) DeleteCustomer(ctx context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return err
	}
	if !c.Balance.IsZero() {
		return fmt.Errorf("customer %s: %w (%s)", c.Name, ErrHasBalance, c.Balance.StringFixed(2))
	}
	return s.customers.Delete(ctx, customerID)
}

// GetCustomer returns one customer.
func (s *Service) GetCustomer(ctx context.Context, customerID string) (model.Customer, error) {
	return s.customers.Get(ctx, customerID)
}

// ListCustomers returns customers passing f, sorted by name.
func (s *Service) ListCustomers(ctx context.Context, f query.CustomerFilter) ([]model.Customer, error) {
	all, err := s.customers.List(ctx)
	if err != nil {
		return nil, err
	}
	out := query.Filter(all, f.Match)
	sortByName(out, func(c model.Customer) string { return c.Name })
	return out, nil
}

// AdjustCustomerBalance adds delta to the customer's receivable balance.
func (s *Service) AdjustCustomerBalance(ctx context.Context, customerID string, delta decimal.Decimal) (model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return model.Customer{}, err
	}
	c.Balance = c.Balance.Add(delta)
	c.UpdatedAt = s.now().UTC()
	if err := s.customers.Put(ctx, c); err != nil {
		return model.Customer{}, err
	}
	return c, nil
}

// CreateVendor stores a new vendor with a zero balance.
func (s *Service) CreateVendor(ctx context.Context, v model.Vendor) (model.Vendor, error) {
	if err := validateName(v.Name); err != nil {
		return model.Vendor{}, err
	}
	if v.PaymentTerms < 0 {
		return model.Vendor{}, fmt.Errorf("%w: payment terms are negative", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	v.ID = id.New()
	v.Name = strings.TrimSpace(v.Name)
	v.Balance = decimal.Zero
	if v.Status == "" {
		v.Status = model.PartyActive
	}
	v.CreatedAt = now
	v.UpdatedAt = now
	if err := s.vendors.Put(ctx, v); err != nil {
		return model.Vendor{}, err
	}
	return v, nil
}

// UpdateVendor replaces the editable fields of a vendor.
func (s *Service) UpdateVendor(ctx context.Context, v model.Vendor) (model.Vendor, error) {
	if err := validateName(v.Name); err != nil {
		return model.Vendor{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.vendors.Get(ctx, v.ID)
	if err != nil {
		return model.Vendor{}, err
	}
	v.Name = strings.TrimSpace(v.Name)
	v.Balance = existing.Balance
	v.CreatedAt = existing.CreatedAt
	if v.Status == "" {
		v.Status = existing.Status
	}
	v.UpdatedAt = s.now().UTC()
	if err := s.vendors.Put(ctx, v); err != nil {
		return model.Vendor{}, err
	}
	return v, nil
}

// DeleteVendor removes a vendor that is owed nothing.
func (s *Service) DeleteVendor(ctx context.Context, vendorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.vendors.Get(ctx, vendorID)
	if err != nil {
		return err
	}
	if !v.Balance.IsZero() {
		return fmt.Errorf("vendor %s: %w (%s)", v.Name, ErrHasBalance, v.Balance.StringFixed(2))
	}
	return s.vendors.Delete(ctx, vendorID)
}

// GetVendor returns one vendor.
func (s *Service) GetVendor(ctx context.Context, vendorID string) (model.Vendor, error) {
	return s.vendors.Get(ctx, vendorID)
}

// ListVendors returns vendors passing f, sorted by name.
func (s *Service) ListVendors(ctx context.Context, f query.VendorFilter) ([]model.Vendor, error) {
	all, err := s.vendors.List(ctx)
	if err != nil {
		return nil, err
	}
	out := query.Filter(all, f.Match)
	sortByName(out, func(v model.Vendor) string { return v.Name })
	return out, nil
}

// AdjustVendorBalance adds delta to the payable owed to the vendor.
func (s *Service) AdjustVendorBalance(ctx context.Context, vendorID string, delta decimal.Decimal) (model.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.vendors.Get(ctx, vendorID)
	if err != nil {
		return model.Vendor{}, err
	}
	v.Balance = v.Balance.Add(delta)
	v.UpdatedAt = s.now().UTC()
	if err := s.vendors.Put(ctx, v); err != nil {
		return model.Vendor{}, err
	}
	return v, nil
}

// TotalReceivables sums positive customer balances.
func (s *Service) TotalReceivables(ctx context.Context) (decimal.Decimal, error) {
	all, err := s.customers.List(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, c := range all {
		if c.Balance.IsPositive() {
			total = total.Add(c.Balance)
		}
	}
	return total, nil
}

// TotalPayables sums positive vendor balances.
func (s *Service) TotalPayables(ctx context.Context) (decimal.Decimal, error) {
	all, err := s.vendors.List(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, v := range all {
		if v.Balance.IsPositive() {
			total = total.Add(v.Balance)
		}
	}
	return total, nil
}

func sortByName[T any](items []T, name func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int {
		return strings.Compare(name(a), name(b))
	})
}
