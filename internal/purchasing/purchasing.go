// Package purchasing records vendor bills, receives their stock and pays them.
package purchasing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/daftar-erp/daftar/internal/billing"
	"github.com/daftar-erp/daftar/internal/config"
	"github.com/daftar-erp/daftar/internal/id"
	"github.com/daftar-erp/daftar/internal/journal"
	"github.com/daftar-erp/daftar/internal/model"
	"github.com/daftar-erp/daftar/internal/query"
	"github.com/daftar-erp/daftar/internal/store"
)

var (
	ErrInvalid     = errors.New("invalid purchase")
	ErrNotDraft    = errors.New("purchase is not a draft")
	ErrNotOpen     = errors.New("purchase is not open")
	ErrOverpayment = errors.New("payment exceeds outstanding amount")
)

// Ledger posts journal entries.
type Ledger interface {
	AddEntry(params journal.EntryParams) (string, error)
}

// Stock receives purchased goods.
type Stock interface {
	Get(ctx context.Context, productID string) (model.Product, error)
	ReceiveAt(ctx context.Context, productID string, qty, unitCost decimal.Decimal) (model.Product, error)
}

// Vendors tracks payables per vendor.
type Vendors interface {
	GetVendor(ctx context.Context, vendorID string) (model.Vendor, error)
	AdjustVendorBalance(ctx context.Context, vendorID string, delta decimal.Decimal) (model.Vendor, error)
}

type Service struct {
	mu        sync.Mutex
	purchases *store.Collection[model.Purchase]
	payments  *store.Collection[model.Payment]
	ledger    Ledger
	stock     Stock
	vendors   Vendors
	accts     config.LedgerConfig
	currency  string
	now       func() time.Time
}

func NewService(st *store.Store, ledger Ledger, stock Stock, vendors Vendors, accts config.LedgerConfig, currency string) *Service {
	return &Service{
		purchases: st.Purchases,
		payments:  st.Payments,
		ledger:    ledger,
		stock:     stock,
		vendors:   vendors,
		accts:     accts,
		currency:  currency,
		now:       time.Now,
	}
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Create stores a draft bill numbered PUR-YYYY-NNNN. Lines either name a
// product or carry the expense account they are charged to. The due date
// defaults to the vendor's payment terms.
func (s *Service) Create(ctx context.Context, p model.Purchase) (model.Purchase, error) {
	if p.VendorID == "" {
		return model.Purchase{}, fmt.Errorf("%w: vendor is required", ErrInvalid)
	}
	vendor, err := s.vendors.GetVendor(ctx, p.VendorID)
	if err != nil {
		return model.Purchase{}, fmt.Errorf("%w: vendor %s: %v", ErrInvalid, p.VendorID, err)
	}
	if p.Date.IsZero() {
		p.Date = s.now()
	}
	p.Date = day(p.Date)
	if p.DueDate.IsZero() {
		p.DueDate = p.Date.AddDate(0, 0, vendor.PaymentTerms)
	}
	p.DueDate = day(p.DueDate)
	if p.DueDate.Before(p.Date) {
		return model.Purchase{}, fmt.Errorf("%w: due date before bill date", ErrInvalid)
	}
	if p.Currency == "" {
		p.Currency = s.currency
	}

	p.Items = slices.Clone(p.Items)
	for i, it := range p.Items {
		switch {
		case it.ProductID != "":
			prod, err := s.stock.Get(ctx, it.ProductID)
			if err != nil {
				return model.Purchase{}, fmt.Errorf("%w: line %d product %s: %v", ErrInvalid, i+1, it.ProductID, err)
			}
			if it.Description == "" {
				it.Description = prod.Name
			}
			if it.UnitPrice.IsZero() {
				it.UnitPrice = prod.Cost
			}
		case it.AccountID == 0:
			return model.Purchase{}, fmt.Errorf("%w: line %d needs a product or an expense account", ErrInvalid, i+1)
		}
		p.Items[i] = it
	}
	items, totals, err := billing.Price(p.Items, p.Discount, p.Shipping)
	if err != nil {
		return model.Purchase{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	p.Items = items
	p.Totals = totals

	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.purchases.List(ctx)
	if err != nil {
		return model.Purchase{}, err
	}
	numbers := make([]string, len(all))
	for i, existing := range all {
		numbers[i] = existing.Number
	}
	year := p.Date.Year()

	now := s.now().UTC()
	p.ID = id.New()
	p.Number = id.FormatDocumentNumber(id.PrefixPurchase, year, id.NextDocumentSeq(id.PrefixPurchase, year, numbers))
	p.Status = model.DocDraft
	p.AmountPaid = decimal.Zero
	p.EntryID = ""
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.purchases.Put(ctx, p); err != nil {
		return model.Purchase{}, err
	}
	return p, nil
}

// Post books a draft bill: Dr inventory for stocked products, Dr the line's
// expense account otherwise, Dr VAT input, Cr payables. Shipping is
// capitalized into inventory when the bill carries stock. Received goods
// update the weighted-average cost and the vendor's balance grows.
func (s *Service) Post(ctx context.Context, purchaseID string) (model.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.purchases.Get(ctx, purchaseID)
	if err != nil {
		return model.Purchase{}, err
	}
	if p.Status != model.DocDraft {
		return model.Purchase{}, fmt.Errorf("%s: %w", p.Number, ErrNotDraft)
	}
	if !p.Total.IsPositive() {
		return model.Purchase{}, fmt.Errorf("%w: %s has a zero total", ErrInvalid, p.Number)
	}
	vendor, err := s.vendors.GetVendor(ctx, p.VendorID)
	if err != nil {
		return model.Purchase{}, err
	}

	debits := make(map[int]decimal.Decimal)
	var order []int
	debit := func(acct int, amt decimal.Decimal) {
		if !amt.IsPositive() {
			return
		}
		if _, ok := debits[acct]; !ok {
			order = append(order, acct)
		}
		debits[acct] = debits[acct].Add(amt)
	}

	type receipt struct {
		productID string
		qty, net  decimal.Decimal
	}
	var receipts []receipt
	firstExpense := 0
	for _, it := range p.Items {
		if it.ProductID == "" {
			debit(it.AccountID, it.Net)
			if firstExpense == 0 {
				firstExpense = it.AccountID
			}
			continue
		}
		prod, err := s.stock.Get(ctx, it.ProductID)
		if err != nil {
			return model.Purchase{}, err
		}
		if prod.Service {
			acct := it.AccountID
			if acct == 0 {
				acct = s.accts.COGS
			}
			debit(acct, it.Net)
			continue
		}
		debit(s.accts.Inventory, it.Net)
		receipts = append(receipts, receipt{productID: it.ProductID, qty: it.Quantity, net: it.Net})
	}
	stockNet := decimal.Zero
	for _, r := range receipts {
		stockNet = stockNet.Add(r.net)
	}
	switch {
	case len(receipts) > 0:
		debit(s.accts.Inventory, p.Shipping)
	case firstExpense != 0:
		debit(firstExpense, p.Shipping)
	default:
		debit(s.accts.COGS, p.Shipping)
	}
	debit(s.accts.VATInput, p.TaxTotal)

	var legs []journal.LegParams
	for _, acct := range order {
		legs = append(legs, journal.LegParams{AccountID: acct, Debit: debits[acct]})
	}
	legs = append(legs, journal.LegParams{AccountID: s.accts.Payable, Credit: p.Total})

	desc := "فاتورة مشتريات " + p.Number
	if p.VendorRef != "" {
		desc += " (" + p.VendorRef + ")"
	}
	entryID, err := s.ledger.AddEntry(journal.EntryParams{
		Date:         p.Date,
		Description:  desc,
		Legs:         legs,
		Counterparty: vendor.Name,
		Reference:    p.Number,
		Source:       model.SourcePurchase,
	})
	if err != nil {
		return model.Purchase{}, fmt.Errorf("posting %s: %w", p.Number, err)
	}

	for _, r := range receipts {
		landed := r.net
		if p.Shipping.IsPositive() && stockNet.IsPositive() {
			landed = landed.Add(p.Shipping.Mul(r.net).Div(stockNet))
		}
		if _, err := s.stock.ReceiveAt(ctx, r.productID, r.qty, landed.Div(r.qty)); err != nil {
			return model.Purchase{}, fmt.Errorf("receiving %s: %w", r.productID, err)
		}
	}
	if _, err := s.vendors.AdjustVendorBalance(ctx, p.VendorID, p.Total); err != nil {
		return model.Purchase{}, err
	}

	p.Status = model.DocIssued
	p.EntryID = entryID
	p.UpdatedAt = s.now().UTC()
	if err := s.purchases.Put(ctx, p); err != nil {
		return model.Purchase{}, err
	}
	return p, nil
}

// PaymentInput describes money paid against a bill.
type PaymentInput struct {
	Amount    decimal.Decimal
	Date      time.Time
	AccountID int // cash or bank; defaults to bank
	Method    string
}

// RecordPayment posts Dr payables, Cr cash/bank and reduces the vendor's balance.
func (s *Service) RecordPayment(ctx context.Context, purchaseID string, in PaymentInput) (model.Purchase, model.Payment, error) {
	if !in.Amount.IsPositive() || !in.Amount.Equal(in.Amount.Round(2)) {
		return model.Purchase{}, model.Payment{}, fmt.Errorf("%w: payment amount %s", ErrInvalid, in.Amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.purchases.Get(ctx, purchaseID)
	if err != nil {
		return model.Purchase{}, model.Payment{}, err
	}
	if !p.Status.Open() {
		return model.Purchase{}, model.Payment{}, fmt.Errorf("%s (%s): %w", p.Number, p.Status, ErrNotOpen)
	}
	if in.Amount.GreaterThan(p.Outstanding()) {
		return model.Purchase{}, model.Payment{}, fmt.Errorf("%s: %w (outstanding %s)", p.Number, ErrOverpayment, p.Outstanding().StringFixed(2))
	}
	if in.AccountID == 0 {
		in.AccountID = s.accts.Bank
	}
	if in.Date.IsZero() {
		in.Date = s.now()
	}
	in.Date = day(in.Date)
	vendor, err := s.vendors.GetVendor(ctx, p.VendorID)
	if err != nil {
		return model.Purchase{}, model.Payment{}, err
	}

	entryID, err := s.ledger.AddEntry(journal.EntryParams{
		Date:         in.Date,
		Description:  "سداد فاتورة مشتريات " + p.Number,
		Counterparty: vendor.Name,
		Reference:    p.Number,
		Source:       model.SourcePayment,
		Legs: []journal.LegParams{
			{AccountID: s.accts.Payable, Debit: in.Amount},
			{AccountID: in.AccountID, Credit: in.Amount},
		},
	})
	if err != nil {
		return model.Purchase{}, model.Payment{}, fmt.Errorf("posting payment for %s: %w", p.Number, err)
	}

	pay := model.Payment{
		ID:         id.New(),
		Kind:       model.PaymentDisbursement,
		DocumentID: p.ID,
		PartyID:    p.VendorID,
		Date:       in.Date,
		Amount:     in.Amount,
		AccountID:  in.AccountID,
		Method:     in.Method,
		EntryID:    entryID,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.payments.Put(ctx, pay); err != nil {
		return model.Purchase{}, model.Payment{}, err
	}
	if _, err := s.vendors.AdjustVendorBalance(ctx, p.VendorID, in.Amount.Neg()); err != nil {
		return model.Purchase{}, model.Payment{}, err
	}

	p.AmountPaid = p.AmountPaid.Add(in.Amount)
	if p.Outstanding().IsZero() {
		p.Status = model.DocPaid
	} else {
		p.Status = model.DocPartiallyPaid
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.purchases.Put(ctx, p); err != nil {
		return model.Purchase{}, model.Payment{}, err
	}
	return p, pay, nil
}

// Delete removes a draft bill.
func (s *Service) Delete(ctx context.Context, purchaseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.purchases.Get(ctx, purchaseID)
	if err != nil {
		return err
	}
	if p.Status != model.DocDraft {
		return fmt.Errorf("%s: %w", p.Number, ErrNotDraft)
	}
	return s.purchases.Delete(ctx, purchaseID)
}

func (s *Service) Get(ctx context.Context, purchaseID string) (model.Purchase, error) {
	return s.purchases.Get(ctx, purchaseID)
}

// List returns bills passing f, newest first.
func (s *Service) List(ctx context.Context, f query.PurchaseFilter) ([]model.Purchase, error) {
	all, err := s.purchases.List(ctx)
	if err != nil {
		return nil, err
	}
	out := query.Filter(all, f.Match)
	slices.SortFunc(out, func(a, b model.Purchase) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return strings.Compare(b.Number, a.Number)
	})
	return out, nil
}
