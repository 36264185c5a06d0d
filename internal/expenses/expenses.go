// Package expenses records direct expenses paid from cash or bank.
package expenses

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

// ErrInvalid is returned for an expense that fails validation.
var ErrInvalid = errors.New("invalid expense")

// Ledger posts journal entries.
type Ledger interface {
	AddEntry(params journal.EntryParams) (string, error)
}

type Service struct {
	mu       sync.Mutex
	expenses *store.Collection[model.Expense]
	ledger   Ledger
	accts    config.LedgerConfig
	now      func() time.Time
}

func NewService(st *store.Store, ledger Ledger, accts config.LedgerConfig) *Service {
	return &Service{expenses: st.Expenses, ledger: ledger, accts: accts, now: time.Now}
}

// Record posts Dr expense account (tagged with the cost center), Dr VAT
// input for any tax, Cr the payment account, and stores the expense.
func (s *Service) Record(ctx context.Context, e model.Expense) (model.Expense, error) {
	e.Description = strings.TrimSpace(e.Description)
	e.CostCenter = strings.ToUpper(strings.TrimSpace(e.CostCenter))
	switch {
	case e.AccountID == 0:
		return model.Expense{}, fmt.Errorf("%w: expense account is required", ErrInvalid)
	case !e.Amount.IsPositive():
		return model.Expense{}, fmt.Errorf("%w: amount must be positive", ErrInvalid)
	case e.TaxAmount.IsNegative():
		return model.Expense{}, fmt.Errorf("%w: tax is negative", ErrInvalid)
	case e.Description == "" && e.Category == "":
		return model.Expense{}, fmt.Errorf("%w: description or category is required", ErrInvalid)
	}
	if e.PaymentAccountID == 0 {
		e.PaymentAccountID = s.accts.Cash
	}
	if e.Date.IsZero() {
		e.Date = s.now()
	}
	e.Date = time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(), 0, 0, 0, 0, time.UTC)
	desc := e.Description
	if desc == "" {
		desc = e.Category
	}

	legs := []journal.LegParams{{AccountID: e.AccountID, Debit: e.Amount, CostCenter: e.CostCenter}}
	if e.TaxAmount.IsPositive() {
		legs = append(legs, journal.LegParams{AccountID: s.accts.VATInput, Debit: e.TaxAmount})
	}
	legs = append(legs, journal.LegParams{AccountID: e.PaymentAccountID, Credit: e.Total()})

	s.mu.Lock()
	defer s.mu.Unlock()
	entryID, err := s.ledger.AddEntry(journal.EntryParams{
		Date:        e.Date,
		Description: desc,
		Legs:        legs,
		Reference:   e.Reference,
		Source:      model.SourceExpense,
		Tags:        e.Category,
	})
	if err != nil {
		return model.Expense{}, fmt.Errorf("posting expense: %w", err)
	}

	e.ID = id.New()
	e.EntryID = entryID
	e.CreatedAt = s.now().UTC()
	if err := s.expenses.Put(ctx, e); err != nil {
		return model.Expense{}, err
	}
	return e, nil
}

func (s *Service) Get(ctx context.Context, expenseID string) (model.Expense, error) {
	return s.expenses.Get(ctx, expenseID)
}

// Filter narrows the expense list. Zero fields match everything.
type Filter struct {
	From, To   time.Time
	CostCenter string
	AccountID  int
	Search     string
}

// List returns expenses passing f, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]model.Expense, error) {
	all, err := s.expenses.List(ctx)
	if err != nil {
		return nil, err
	}
	out := query.Filter(all, func(e model.Expense) bool {
		if f.CostCenter != "" && !strings.EqualFold(e.CostCenter, f.CostCenter) {
			return false
		}
		if f.AccountID != 0 && e.AccountID != f.AccountID {
			return false
		}
		return query.InRange(e.Date, f.From, f.To) && query.Matches(f.Search, e.Description, e.Category, e.Reference)
	})
	slices.SortStableFunc(out, func(a, b model.Expense) int { return b.Date.Compare(a.Date) })
	return out, nil
}

// ByCostCenter totals expense amounts before tax per cost center in [from, to].
// Expenses without a cost center are grouped under "".
func (s *Service) ByCostCenter(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	list, err := s.List(ctx, Filter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal)
	for _, e := range list {
		out[e.CostCenter] = out[e.CostCenter].Add(e.Amount)
	}
	return out, nil
}
