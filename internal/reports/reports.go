// Package reports builds financial statements from the journal and
// operational summaries from the store.
//
// Draft legs are never counted. Reversed legs are, together with their
// mirror entries, so a reversal nets to zero in every period that holds both.
package reports

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/daftar-erp/daftar/internal/config"
	"github.com/daftar-erp/daftar/internal/model"
	"github.com/daftar-erp/daftar/internal/store"
)

// Ledger reads journal legs.
type Ledger interface {
	ReadAll() ([]model.Leg, error)
}

// Chart resolves account and cost center metadata.
type Chart interface {
	All() []model.Account
	Get(id int) (model.Account, bool)
	CostCenters() []model.CostCenter
}

type Service struct {
	ledger Ledger
	chart  Chart
	store  *store.Store
	accts  config.LedgerConfig
}

func NewService(ledger Ledger, chart Chart, st *store.Store, accts config.LedgerConfig) *Service {
	return &Service{ledger: ledger, chart: chart, store: st, accts: accts}
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// legs returns counted legs dated within [from, to]. A zero from is open.
func (s *Service) legs(from, to time.Time) ([]model.Leg, error) {
	all, err := s.ledger.ReadAll()
	if err != nil {
		return nil, err
	}
	to = day(to)
	var out []model.Leg
	for _, l := range all {
		if l.Status == model.StatusDraft {
			continue
		}
		d := day(l.Date)
		if (!from.IsZero() && d.Before(day(from))) || d.After(to) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// Row is one account in a trial balance. Balance is signed toward the
// account's normal side.
type Row struct {
	AccountID int               `json:"account_id"`
	Name      string            `json:"name"`
	NameEN    string            `json:"name_en"`
	Type      model.AccountType `json:"type"`
	Debit     decimal.Decimal   `json:"debit"`
	Credit    decimal.Decimal   `json:"credit"`
	Balance   decimal.Decimal   `json:"balance"`
}

type TrialBalance struct {
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	Rows        []Row           `json:"rows"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Balanced    bool            `json:"balanced"`
}

func (s *Service) rows(legs []model.Leg) []Row {
	byID := make(map[int]*Row)
	for _, l := range legs {
		r, ok := byID[l.AccountID]
		if !ok {
			r = &Row{AccountID: l.AccountID}
			if a, found := s.chart.Get(l.AccountID); found {
				r.Name, r.NameEN, r.Type = a.Name, a.NameEN, a.Type
			}
			byID[l.AccountID] = r
		}
		r.Debit = r.Debit.Add(l.Debit)
		r.Credit = r.Credit.Add(l.Credit)
	}
	out := make([]Row, 0, len(byID))
	for _, r := range byID {
		if r.Type.DebitNormal() {
			r.Balance = r.Debit.Sub(r.Credit)
		} else {
			r.Balance = r.Credit.Sub(r.Debit)
		}
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b Row) int { return cmp.Compare(a.AccountID, b.AccountID) })
	return out
}

// TrialBalance totals debits and credits per account for [from, to].
func (s *Service) TrialBalance(from, to time.Time) (TrialBalance, error) {
	legs, err := s.legs(from, to)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := TrialBalance{From: from, To: to, Rows: s.rows(legs)}
	for _, r := range tb.Rows {
		tb.TotalDebit = tb.TotalDebit.Add(r.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(r.Credit)
	}
	tb.Balanced = tb.TotalDebit.Equal(tb.TotalCredit)
	return tb, nil
}

// Line is one account on a statement.
type Line struct {
	AccountID int             `json:"account_id"`
	Name      string          `json:"name"`
	NameEN    string          `json:"name_en"`
	Amount    decimal.Decimal `json:"amount"`
}

type IncomeStatement struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Revenue       []Line          `json:"revenue"`
	Expenses      []Line          `json:"expenses"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetIncome     decimal.Decimal `json:"net_income"`
}

func section(rows []Row, t model.AccountType) ([]Line, decimal.Decimal) {
	var lines []Line
	total := decimal.Zero
	for _, r := range rows {
		if r.Type != t || r.Balance.IsZero() {
			continue
		}
		lines = append(lines, Line{AccountID: r.AccountID, Name: r.Name, NameEN: r.NameEN, Amount: r.Balance})
		total = total.Add(r.Balance)
	}
	return lines, total
}

// IncomeStatement reports revenue less expenses for [from, to].
func (s *Service) IncomeStatement(from, to time.Time) (IncomeStatement, error) {
	legs, err := s.legs(from, to)
	if err != nil {
		return IncomeStatement{}, err
	}
	rows := s.rows(legs)
	is := IncomeStatement{From: from, To: to}
	is.Revenue, is.TotalRevenue = section(rows, model.AccountTypeRevenue)
	is.Expenses, is.TotalExpenses = section(rows, model.AccountTypeExpense)
	is.NetIncome = is.TotalRevenue.Sub(is.TotalExpenses)
	return is, nil
}

type BalanceSheet struct {
	AsOf             time.Time       `json:"as_of"`
	Assets           []Line          `json:"assets"`
	Liabilities      []Line          `json:"liabilities"`
	Equity           []Line          `json:"equity"`
	CurrentEarnings  decimal.Decimal `json:"current_earnings"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	TotalEquity      decimal.Decimal `json:"total_equity"` // includes current earnings
	Balanced         bool            `json:"balanced"`
}

// BalanceSheet reports cumulative balances up to asOf. Revenue and expense
// accounts that have not been closed show up as current earnings in equity.
func (s *Service) BalanceSheet(asOf time.Time) (BalanceSheet, error) {
	legs, err := s.legs(time.Time{}, asOf)
	if err != nil {
		return BalanceSheet{}, err
	}
	rows := s.rows(legs)
	bs := BalanceSheet{AsOf: asOf}
	bs.Assets, bs.TotalAssets = section(rows, model.AccountTypeAsset)
	bs.Liabilities, bs.TotalLiabilities = section(rows, model.AccountTypeLiability)
	var equity decimal.Decimal
	bs.Equity, equity = section(rows, model.AccountTypeEquity)
	_, revenue := section(rows, model.AccountTypeRevenue)
	_, expenses := section(rows, model.AccountTypeExpense)
	bs.CurrentEarnings = revenue.Sub(expenses)
	bs.TotalEquity = equity.Add(bs.CurrentEarnings)
	bs.Balanced = bs.TotalAssets.Equal(bs.TotalLiabilities.Add(bs.TotalEquity))
	return bs, nil
}

// CostCenterTotal is the revenue and expense posted to one cost center.
type CostCenterTotal struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// CostCenterSummary groups revenue and expense legs in [from, to] by cost
// center. Untagged legs are reported under an empty code, last.
func (s *Service) CostCenterSummary(from, to time.Time) ([]CostCenterTotal, error) {
	legs, err := s.legs(from, to)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string)
	for _, cc := range s.chart.CostCenters() {
		names[cc.Code] = cc.Name
	}
	byCode := make(map[string]*CostCenterTotal)
	for _, l := range legs {
		a, ok := s.chart.Get(l.AccountID)
		if !ok || (a.Type != model.AccountTypeRevenue && a.Type != model.AccountTypeExpense) {
			continue
		}
		t, ok := byCode[l.CostCenter]
		if !ok {
			t = &CostCenterTotal{Code: l.CostCenter, Name: names[l.CostCenter]}
			byCode[l.CostCenter] = t
		}
		if a.Type == model.AccountTypeRevenue {
			t.Revenue = t.Revenue.Add(l.Credit).Sub(l.Debit)
		} else {
			t.Expenses = t.Expenses.Add(l.Debit).Sub(l.Credit)
		}
	}
	out := make([]CostCenterTotal, 0, len(byCode))
	for _, t := range byCode {
		t.Net = t.Revenue.Sub(t.Expenses)
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b CostCenterTotal) int {
		switch {
		case a.Code == "" && b.Code != "":
			return 1
		case b.Code == "" && a.Code != "":
			return -1
		}
		return cmp.Compare(a.Code, b.Code)
	})
	return out, nil
}

// AccountBalance returns the balance of one account up to asOf, signed
// toward its normal side.
func (s *Service) AccountBalance(accountID int, asOf time.Time) (decimal.Decimal, error) {
	legs, err := s.legs(time.Time{}, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	for _, r := range s.rows(legs) {
		if r.AccountID == accountID {
			return r.Balance, nil
		}
	}
	return decimal.Zero, nil
}

// Aging buckets by days past due.
const (
	Bucket0To30 = iota
	Bucket31To60
	Bucket61To90
	BucketOver90
	numBuckets
)

// AgingRow is one customer's outstanding invoices split by days past due.
// Invoices not yet due count in the first bucket.
type AgingRow struct {
	CustomerID string                      `json:"customer_id"`
	Name       string                      `json:"name"`
	Buckets    [numBuckets]decimal.Decimal `json:"buckets"`
	Total      decimal.Decimal             `json:"total"`
}

type Aging struct {
	AsOf    time.Time                   `json:"as_of"`
	Rows    []AgingRow                  `json:"rows"`
	Buckets [numBuckets]decimal.Decimal `json:"buckets"`
	Total   decimal.Decimal             `json:"total"`
}

func bucket(daysPastDue int) int {
	switch {
	case daysPastDue <= 30:
		return Bucket0To30
	case daysPastDue <= 60:
		return Bucket31To60
	case daysPastDue <= 90:
		return Bucket61To90
	default:
		return BucketOver90
	}
}

// ReceivablesAging ages open invoices issued on or before asOf.
func (s *Service) ReceivablesAging(ctx context.Context, asOf time.Time) (Aging, error) {
	invoices, err := s.store.Invoices.List(ctx)
	if err != nil {
		return Aging{}, err
	}
	asOf = day(asOf)
	aging := Aging{AsOf: asOf}
	byCustomer := make(map[string]*AgingRow)
	for _, inv := range invoices {
		if !inv.Status.Open() || inv.IssueDate.After(asOf) {
			continue
		}
		out := inv.Outstanding()
		if !out.IsPositive() {
			continue
		}
		row, ok := byCustomer[inv.CustomerID]
		if !ok {
			row = &AgingRow{CustomerID: inv.CustomerID}
			if c, err := s.store.Customers.Get(ctx, inv.CustomerID); err == nil {
				row.Name = c.Name
			}
			byCustomer[inv.CustomerID] = row
		}
		b := bucket(int(asOf.Sub(day(inv.DueDate)).Hours() / 24))
		row.Buckets[b] = row.Buckets[b].Add(out)
		row.Total = row.Total.Add(out)
		aging.Buckets[b] = aging.Buckets[b].Add(out)
		aging.Total = aging.Total.Add(out)
	}
	for _, r := range byCustomer {
		aging.Rows = append(aging.Rows, *r)
	}
	slices.SortFunc(aging.Rows, func(a, b AgingRow) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return aging, nil
}

// Dashboard is the home screen summary.
type Dashboard struct {
	AsOf            time.Time       `json:"as_of"`
	MonthRevenue    decimal.Decimal `json:"month_revenue"`
	MonthExpenses   decimal.Decimal `json:"month_expenses"`
	MonthProfit     decimal.Decimal `json:"month_profit"`
	Cash            decimal.Decimal `json:"cash"` // cash on hand plus bank
	Receivables     decimal.Decimal `json:"receivables"`
	Payables        decimal.Decimal `json:"payables"`
	OverdueInvoices int             `json:"overdue_invoices"`
	OverdueAmount   decimal.Decimal `json:"overdue_amount"`
	LowStock        int             `json:"low_stock"`
	Unread          int             `json:"unread_notifications"`
}

// Dashboard summarizes the month containing asOf and the position at asOf.
func (s *Service) Dashboard(ctx context.Context, asOf time.Time) (Dashboard, error) {
	asOf = day(asOf)
	d := Dashboard{AsOf: asOf}

	monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	is, err := s.IncomeStatement(monthStart, asOf)
	if err != nil {
		return Dashboard{}, err
	}
	d.MonthRevenue, d.MonthExpenses, d.MonthProfit = is.TotalRevenue, is.TotalExpenses, is.NetIncome

	legs, err := s.legs(time.Time{}, asOf)
	if err != nil {
		return Dashboard{}, err
	}
	for _, r := range s.rows(legs) {
		switch r.AccountID {
		case s.accts.Cash, s.accts.Bank:
			d.Cash = d.Cash.Add(r.Balance)
		case s.accts.Receivable:
			d.Receivables = r.Balance
		case s.accts.Payable:
			d.Payables = r.Balance
		}
	}

	invoices, err := s.store.Invoices.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	for _, inv := range invoices {
		if inv.Status.Open() && inv.DueDate.Before(asOf) {
			d.OverdueInvoices++
			d.OverdueAmount = d.OverdueAmount.Add(inv.Outstanding())
		}
	}

	products, err := s.store.Products.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	for _, p := range products {
		if p.Active && p.LowStock() {
			d.LowStock++
		}
	}

	notes, err := s.store.Notifications.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	for _, n := range notes {
		if !n.Read {
			d.Unread++
		}
	}
	return d, nil
}
