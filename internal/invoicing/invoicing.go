// Package invoicing handles sales invoices from draft to payment and posts
// each step to the ledger.
package invoicing

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
	// ErrInvalid is returned for an invoice that fails validation.
	ErrInvalid = errors.New("invalid invoice")
	// ErrNotDraft is returned when editing or issuing a non-draft invoice.
	ErrNotDraft = errors.New("invoice is not a draft")
	// ErrNotOpen is returned when paying or cancelling an invoice with nothing outstanding.
	ErrNotOpen = errors.New("invoice is not open")
	// ErrOverpayment is returned when a payment exceeds the outstanding amount.
	ErrOverpayment = errors.New("payment exceeds outstanding amount")
	// ErrHasPayments is returned when cancelling an invoice that has been paid against.
	ErrHasPayments = errors.New("invoice has payments")
)

// DefaultTermDays is used when an invoice has no due date.
const DefaultTermDays = 30

// Ledger posts and reverses journal entries.
type Ledger interface {
	AddEntry(params journal.EntryParams) (string, error)
	Reverse(entryID string, date time.Time, reason string) (string, error)
}

// Stock is the inventory surface invoicing needs.
type Stock interface {
	Get(ctx context.Context, productID string) (model.Product, error)
	CheckAvailable(ctx context.Context, productID string, qty decimal.Decimal) error
	Move(ctx context.Context, productID string, delta decimal.Decimal) (model.Product, error)
}

// Customers is the receivables surface invoicing needs.
type Customers interface {
	GetCustomer(ctx context.Context, customerID string) (model.Customer, error)
	AdjustCustomerBalance(ctx context.Context, customerID string, delta decimal.Decimal) (model.Customer, error)
}

// Service owns sales invoices and customer receipts.
type Service struct {
	mu        sync.Mutex
	invoices  *store.Collection[model.Invoice]
	payments  *store.Collection[model.Payment]
	ledger    Ledger
	stock     Stock
	customers Customers
	accts     config.LedgerConfig
	currency  string
	now       func() time.Time
}

// NewService creates an invoicing Service.
func NewService(st *store.Store, ledger Ledger, stock Stock, customers Customers, accts config.LedgerConfig, currency string) *Service {
	return &Service{
		invoices:  st.Invoices,
		payments:  st.Payments,
		ledger:    ledger,
		stock:     stock,
		customers: customers,
		accts:     accts,
		currency:  currency,
		now:       time.Now,
	}
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// prepare validates inv, fills product defaults and prices every line.
func (s *Service) prepare(ctx context.Context, inv model.Invoice) (model.Invoice, error) {
	if inv.CustomerID == "" {
		return inv, fmt.Errorf("%w: customer is required", ErrInvalid)
	}
	if _, err := s.customers.GetCustomer(ctx, inv.CustomerID); err != nil {
		return inv, fmt.Errorf("%w: customer %s: %v", ErrInvalid, inv.CustomerID, err)
	}
	if inv.IssueDate.IsZero() {
		inv.IssueDate = s.now()
	}
	inv.IssueDate = day(inv.IssueDate)
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.IssueDate.AddDate(0, 0, DefaultTermDays)
	}
	inv.DueDate = day(inv.DueDate)
	if inv.DueDate.Before(inv.IssueDate) {
		return inv, fmt.Errorf("%w: due date before issue date", ErrInvalid)
	}
	if inv.Currency == "" {
		inv.Currency = s.currency
	}

	for i, it := range inv.Items {
		if it.ProductID == "" {
			if strings.TrimSpace(it.Description) == "" {
				return inv, fmt.Errorf("%w: line %d needs a product or description", ErrInvalid, i+1)
			}
			continue
		}
		p, err := s.stock.Get(ctx, it.ProductID)
		if err != nil {
			return inv, fmt.Errorf("%w: line %d product %s: %v", ErrInvalid, i+1, it.ProductID, err)
		}
		if it.Description == "" {
			it.Description = p.Name
		}
		if it.UnitPrice.IsZero() {
			it.UnitPrice = p.Price
		}
		inv.Items[i] = it
	}

	items, totals, err := billing.Price(inv.Items, inv.Discount, inv.Shipping)
	if err != nil {
		return inv, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	inv.Items = items
	inv.Totals = totals
	return inv, nil
}

// Create stores a new draft invoice with the next INV-YYYY-NNNN number.
func (s *Service) Create(ctx context.Context, inv model.Invoice) (model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv.Items = slices.Clone(inv.Items)
	inv, err := s.prepare(ctx, inv)
	if err != nil {
		return model.Invoice{}, err
	}

	all, err := s.invoices.List(ctx)
	if err != nil {
		return model.Invoice{}, err
	}
	numbers := make([]string, len(all))
	for i, existing := range all {
		numbers[i] = existing.Number
	}
	year := inv.IssueDate.Year()

	now := s.now().UTC()
	inv.ID = id.New()
	inv.Number = id.FormatDocumentNumber(id.PrefixInvoice, year, id.NextDocumentSeq(id.PrefixInvoice, year, numbers))
	inv.Status = model.DocDraft
	inv.AmountPaid = decimal.Zero
	inv.EntryID = ""
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if err := s.invoices.Put(ctx, inv); err != nil {
		return model.Invoice{}, err
	}
	return inv, nil
}

// Update replaces a draft's customer, dates, lines and notes and reprices it.
func (s *Service) Update(ctx context.Context, inv model.Invoice) (model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.invoices.Get(ctx, inv.ID)
	if err != nil {
		return model.Invoice{}, err
	}
	if existing.Status != model.DocDraft {
		return model.Invoice{}, fmt.Errorf("%s: %w", existing.Number, ErrNotDraft)
	}

	inv.Items = slices.Clone(inv.Items)
	inv, err = s.prepare(ctx, inv)
	if err != nil {
		return model.Invoice{}, err
	}
	inv.Number = existing.Number
	inv.Status = model.DocDraft
	inv.AmountPaid = decimal.Zero
	inv.CreatedAt = existing.CreatedAt
	inv.UpdatedAt = s.now().UTC()
	if err := s.invoices.Put(ctx, inv); err != nil {
		return model.Invoice{}, err
	}
	return inv, nil
}

// Delete removes a draft invoice.
func (s *Service) Delete(ctx context.Context, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteDraft(ctx, invoiceID)
}

func (s *Service) deleteDraft(ctx context.Context, invoiceID string) error {
	inv, err := s.invoices.Get(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status != model.DocDraft {
		return fmt.Errorf("%s: %w", inv.Number, ErrNotDraft)
	}
	return s.invoices.Delete(ctx, invoiceID)
}

// BulkDelete deletes the selected drafts and drops them from sel. Selected
// invoices that are not drafts stay selected and are returned as skipped.
func (s *Service) BulkDelete(ctx context.Context, sel *query.Selection[string]) (deleted, skipped []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, invoiceID := range sel.Items() {
		err := s.deleteDraft(ctx, invoiceID)
		switch {
		case err == nil:
			deleted = append(deleted, invoiceID)
			sel.Set(invoiceID, false)
		case errors.Is(err, ErrNotDraft), errors.Is(err, store.ErrNotFound):
			skipped = append(skipped, invoiceID)
		default:
			return deleted, skipped, err
		}
	}
	return deleted, skipped, nil
}

// Get returns one invoice.
func (s *Service) Get(ctx context.Context, invoiceID string) (model.Invoice, error) {
	return s.invoices.Get(ctx, invoiceID)
}

// List returns invoices passing f, newest first.
func (s *Service) List(ctx context.Context, f query.InvoiceFilter) ([]model.Invoice, error) {
	all, err := s.invoices.List(ctx)
	if err != nil {
		return nil, err
	}
	out := query.Filter(all, f.Match)
	slices.SortFunc(out, func(a, b model.Invoice) int {
		if c := b.IssueDate.Compare(a.IssueDate); c != 0 {
			return c
		}
		return strings.Compare(b.Number, a.Number)
	})
	return out, nil
}

// Payments returns the receipts recorded against an invoice.
func (s *Service) Payments(ctx context.Context, invoiceID string) ([]model.Payment, error) {
	all, err := s.payments.List(ctx)
	if err != nil {
		return nil, err
	}
	out := query.Filter(all, func(p model.Payment) bool {
		return p.Kind == model.PaymentReceipt && p.DocumentID == invoiceID
	})
	slices.SortFunc(out, func(a, b model.Payment) int { return a.Date.Compare(b.Date) })
	return out, nil
}

// issueLegs builds the sale entry and the per-product stock movements.
func (s *Service) issueLegs(ctx context.Context, inv model.Invoice) ([]journal.LegParams, map[string]decimal.Decimal, error) {
	credits := make(map[int]decimal.Decimal)
	var order []int
	credit := func(acct int, amt decimal.Decimal) {
		if !amt.IsPositive() {
			return
		}
		if _, ok := credits[acct]; !ok {
			order = append(order, acct)
		}
		credits[acct] = credits[acct].Add(amt)
	}

	moves := make(map[string]decimal.Decimal)
	cogs := decimal.Zero
	for _, it := range inv.Items {
		revenue := s.accts.Sales
		if it.ProductID != "" {
			p, err := s.stock.Get(ctx, it.ProductID)
			if err != nil {
				return nil, nil, err
			}
			if p.Service {
				revenue = s.accts.ServiceRevenue
			} else {
				moves[p.ID] = moves[p.ID].Add(it.Quantity)
				cogs = cogs.Add(it.Quantity.Mul(p.Cost))
			}
		}
		credit(revenue, it.Net)
	}
	credit(s.accts.Sales, inv.Shipping)
	credit(s.accts.VATOutput, inv.TaxTotal)

	legs := []journal.LegParams{{AccountID: s.accts.Receivable, Debit: inv.Total}}
	for _, acct := range order {
		legs = append(legs, journal.LegParams{AccountID: acct, Credit: credits[acct]})
	}
	cogs = cogs.Round(2)
	if cogs.IsPositive() {
		legs = append(legs,
			journal.LegParams{AccountID: s.accts.COGS, Debit: cogs, Description: "تكلفة المبيعات " + inv.Number},
			journal.LegParams{AccountID: s.accts.Inventory, Credit: cogs, Description: "تكلفة المبيعات " + inv.Number},
		)
	}
	return legs, moves, nil
}

// Issue posts a draft: Dr receivable, Cr revenue and VAT output, plus cost of
// sales for stocked products. Stock leaves inventory and the customer's
// balance grows by the invoice total.
func (s *Service) Issue(ctx context.Context, invoiceID string) (model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.invoices.Get(ctx, invoiceID)
	if err != nil {
		return model.Invoice{}, err
	}
	if inv.Status != model.DocDraft {
		return model.Invoice{}, fmt.Errorf("%s: %w", inv.Number, ErrNotDraft)
	}
	if !inv.Total.IsPositive() {
		return model.Invoice{}, fmt.Errorf("%w: %s has a zero total", ErrInvalid, inv.Number)
	}
	cust, err := s.customers.GetCustomer(ctx, inv.CustomerID)
	if err != nil {
		return model.Invoice{}, err
	}

	legs, moves, err := s.issueLegs(ctx, inv)
	if err != nil {
		return model.Invoice{}, err
	}
	for productID, qty := range moves {
		if err := s.stock.CheckAvailable(ctx, productID, qty); err != nil {
			return model.Invoice{}, err
		}
	}

	entryID, err := s.ledger.AddEntry(journal.EntryParams{
		Date:         inv.IssueDate,
		Description:  "فاتورة مبيعات " + inv.Number,
		Legs:         legs,
		Counterparty: cust.Name,
		Reference:    inv.Number,
		Source:       model.SourceInvoice,
	})
	if err != nil {
		return model.Invoice{}, fmt.Errorf("posting %s: %w", inv.Number, err)
	}

	var moved []string
	for productID, qty := range moves {
		if _, err := s.stock.Move(ctx, productID, qty.Neg()); err != nil {
			s.rollbackIssue(ctx, inv, entryID, moved, moves)
			return model.Invoice{}, err
		}
		moved = append(moved, productID)
	}
	if _, err := s.customers.AdjustCustomerBalance(ctx, inv.CustomerID, inv.Total); err != nil {
		s.rollbackIssue(ctx, inv, entryID, moved, moves)
		return model.Invoice{}, err
	}

	inv.Status = model.DocIssued
	inv.EntryID = entryID
	inv.UpdatedAt = s.now().UTC()
	if err := s.invoices.Put(ctx, inv); err != nil {
		return model.Invoice{}, err
	}
	return inv, nil
}

func (s *Service) rollbackIssue(ctx context.Context, inv model.Invoice, entryID string, moved []string, moves map[string]decimal.Decimal) {
	_, _ = s.ledger.Reverse(entryID, inv.IssueDate, "تعذر إصدار الفاتورة")
	for _, productID := range moved {
		_, _ = s.stock.Move(ctx, productID, moves[productID])
	}
}

// PaymentInput describes money received against an invoice.
type PaymentInput struct {
	Amount    decimal.Decimal
	Date      time.Time
	AccountID int // cash or bank; defaults to bank
	Method    string
}

// RecordPayment posts Dr cash/bank, Cr receivable and moves the invoice to
// partially paid or paid.
func (s *Service) RecordPayment(ctx context.Context, invoiceID string, in PaymentInput) (model.Invoice, model.Payment, error) {
	if !in.Amount.IsPositive() {
		return model.Invoice{}, model.Payment{}, fmt.Errorf("%w: payment amount must be positive", ErrInvalid)
	}
	if !in.Amount.Equal(in.Amount.Round(2)) {
		return model.Invoice{}, model.Payment{}, fmt.Errorf("%w: payment has more than 2 decimals", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.invoices.Get(ctx, invoiceID)
	if err != nil {
		return model.Invoice{}, model.Payment{}, err
	}
	if !inv.Status.Open() {
		return model.Invoice{}, model.Payment{}, fmt.Errorf("%s (%s): %w", inv.Number, inv.Status, ErrNotOpen)
	}
	if in.Amount.GreaterThan(inv.Outstanding()) {
		return model.Invoice{}, model.Payment{}, fmt.Errorf("%s: %w (outstanding %s)", inv.Number, ErrOverpayment, inv.Outstanding().StringFixed(2))
	}
	if in.AccountID == 0 {
		in.AccountID = s.accts.Bank
	}
	if in.Date.IsZero() {
		in.Date = s.now()
	}
	in.Date = day(in.Date)
	cust, err := s.customers.GetCustomer(ctx, inv.CustomerID)
	if err != nil {
		return model.Invoice{}, model.Payment{}, err
	}

	entryID, err := s.ledger.AddEntry(journal.EntryParams{
		Date:         in.Date,
		Description:  "تحصيل فاتورة " + inv.Number,
		Counterparty: cust.Name,
		Reference:    inv.Number,
		Source:       model.SourcePayment,
		Legs: []journal.LegParams{
			{AccountID: in.AccountID, Debit: in.Amount},
			{AccountID: s.accts.Receivable, Credit: in.Amount},
		},
	})
	if err != nil {
		return model.Invoice{}, model.Payment{}, fmt.Errorf("posting payment for %s: %w", inv.Number, err)
	}

	pay := model.Payment{
		ID:         id.New(),
		Kind:       model.PaymentReceipt,
		DocumentID: inv.ID,
		PartyID:    inv.CustomerID,
		Date:       in.Date,
		Amount:     in.Amount,
		AccountID:  in.AccountID,
		Method:     in.Method,
		EntryID:    entryID,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.payments.Put(ctx, pay); err != nil {
		return model.Invoice{}, model.Payment{}, err
	}
	if _, err := s.customers.AdjustCustomerBalance(ctx, inv.CustomerID, in.Amount.Neg()); err != nil {
		return model.Invoice{}, model.Payment{}, err
	}

	inv.AmountPaid = inv.AmountPaid.Add(in.Amount)
	if inv.Outstanding().IsZero() {
		inv.Status = model.DocPaid
	} else {
		inv.Status = model.DocPartiallyPaid
	}
	inv.UpdatedAt = s.now().UTC()
	if err := s.invoices.Put(ctx, inv); err != nil {
		return model.Invoice{}, model.Payment{}, err
	}
	return inv, pay, nil
}

// Cancel voids an invoice. Drafts are simply marked cancelled. Issued
// invoices without payments get a reversing entry, their stock back and the
// customer's balance restored.
func (s *Service) Cancel(ctx context.Context, invoiceID string, date time.Time, reason string) (model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.invoices.Get(ctx, invoiceID)
	if err != nil {
		return model.Invoice{}, err
	}
	switch {
	case inv.Status == model.DocDraft:
	case !inv.Status.Open():
		return model.Invoice{}, fmt.Errorf("%s (%s): %w", inv.Number, inv.Status, ErrNotOpen)
	case inv.AmountPaid.IsPositive():
		return model.Invoice{}, fmt.Errorf("%s: %w", inv.Number, ErrHasPayments)
	default:
		if date.IsZero() {
			date = s.now()
		}
		if _, err := s.ledger.Reverse(inv.EntryID, day(date), reason); err != nil {
			return model.Invoice{}, fmt.Errorf("reversing %s: %w", inv.Number, err)
		}
		for _, it := range inv.Items {
			if it.ProductID == "" {
				continue
			}
			if _, err := s.stock.Move(ctx, it.ProductID, it.Quantity); err != nil {
				return model.Invoice{}, fmt.Errorf("restocking %s: %w", it.ProductID, err)
			}
		}
		if _, err := s.customers.AdjustCustomerBalance(ctx, inv.CustomerID, inv.Total.Neg()); err != nil {
			return model.Invoice{}, err
		}
	}

	inv.Status = model.DocCancelled
	if reason != "" {
		inv.Notes = strings.TrimSpace(inv.Notes + "\n" + reason)
	}
	inv.UpdatedAt = s.now().UTC()
	if err := s.invoices.Put(ctx, inv); err != nil {
		return model.Invoice{}, err
	}
	return inv, nil
}

// MarkOverdue flags open invoices whose due date is before asOf and returns
// the ones that changed.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) ([]model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.invoices.List(ctx)
	if err != nil {
		return nil, err
	}
	asOf = day(asOf)
	var changed []model.Invoice
	for _, inv := range all {
		if inv.Status != model.DocIssued && inv.Status != model.DocPartiallyPaid {
			continue
		}
		if !inv.DueDate.Before(asOf) {
			continue
		}
		inv.Status = model.DocOverdue
		inv.UpdatedAt = s.now().UTC()
		if err := s.invoices.Put(ctx, inv); err != nil {
			return changed, err
		}
		changed = append(changed, inv)
	}
	return changed, nil
}

// DueWithin returns open, not yet overdue invoices due within days of asOf.
func (s *Service) DueWithin(ctx context.Context, asOf time.Time, days int) ([]model.Invoice, error) {
	all, err := s.invoices.List(ctx)
	if err != nil {
		return nil, err
	}
	asOf = day(asOf)
	limit := asOf.AddDate(0, 0, days)
	return query.Filter(all, func(inv model.Invoice) bool {
		return (inv.Status == model.DocIssued || inv.Status == model.DocPartiallyPaid) &&
			!inv.DueDate.Before(asOf) && !inv.DueDate.After(limit)
	}), nil
}
