// Package hr keeps the employee register and runs monthly payroll.
package hr

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
	ErrInvalid       = errors.New("invalid employee")
	ErrPayrollExists = errors.New("payroll already run for period")
	ErrNoEmployees   = errors.New("no active employees")
)

var hundred = decimal.NewFromInt(100)

// Ledger posts journal entries.
type Ledger interface {
	AddEntry(params journal.EntryParams) (string, error)
}

type Service struct {
	mu        sync.Mutex
	employees *store.Collection[model.Employee]
	runs      *store.Collection[model.PayrollRun]
	ledger    Ledger
	accts     config.LedgerConfig
	rate      decimal.Decimal // social insurance, percent of base salary
	now       func() time.Time
}

// NewService creates an hr Service. insuranceRate is the employee social
// insurance share in percent of base salary.
func NewService(st *store.Store, ledger Ledger, accts config.LedgerConfig, insuranceRate float64) *Service {
	return &Service{
		employees: st.Employees,
		runs:      st.PayrollRuns,
		ledger:    ledger,
		accts:     accts,
		rate:      decimal.NewFromFloat(insuranceRate),
		now:       time.Now,
	}
}

func validate(e model.Employee) error {
	if e.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if e.BaseSalary.IsNegative() || e.Allowances.IsNegative() {
		return fmt.Errorf("%w: salary and allowances cannot be negative", ErrInvalid)
	}
	switch e.Status {
	case model.EmployeeActive, model.EmployeeOnLeave, model.EmployeeTerminated:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, e.Status)
	}
	return nil
}

func normalize(e model.Employee) model.Employee {
	e.Name = strings.TrimSpace(e.Name)
	e.CostCenter = strings.ToUpper(strings.TrimSpace(e.CostCenter))
	if e.Status == "" {
		e.Status = model.EmployeeActive
	}
	return e
}

func (s *Service) CreateEmployee(ctx context.Context, e model.Employee) (model.Employee, error) {
	e = normalize(e)
	if err := validate(e); err != nil {
		return model.Employee{}, err
	}
	now := s.now().UTC()
	e.ID = id.New()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.HireDate.IsZero() {
		e.HireDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if err := s.employees.Put(ctx, e); err != nil {
		return model.Employee{}, err
	}
	return e, nil
}

func (s *Service) UpdateEmployee(ctx context.Context, e model.Employee) (model.Employee, error) {
	existing, err := s.employees.Get(ctx, e.ID)
	if err != nil {
		return model.Employee{}, err
	}
	e = normalize(e)
	if err := validate(e); err != nil {
		return model.Employee{}, err
	}
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = s.now().UTC()
	if err := s.employees.Put(ctx, e); err != nil {
		return model.Employee{}, err
	}
	return e, nil
}

func (s *Service) DeleteEmployee(ctx context.Context, employeeID string) error {
	return s.employees.Delete(ctx, employeeID)
}

func (s *Service) GetEmployee(ctx context.Context, employeeID string) (model.Employee, error) {
	return s.employees.Get(ctx, employeeID)
}

// ListEmployees returns employees sorted by name. An empty status lists all.
func (s *Service) ListEmployees(ctx context.Context, status model.EmployeeStatus, search string) ([]model.Employee, error) {
	all, err := s.employees.List(ctx)
	if err != nil {
		return nil, err
	}
	out := query.Filter(all, func(e model.Employee) bool {
		if status != "" && e.Status != status {
			return false
		}
		return query.Matches(search, e.Name, e.Position, e.Department, e.NationalID)
	})
	slices.SortStableFunc(out, func(a, b model.Employee) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// PeriodID is the payroll run ID of a month.
func PeriodID(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// Payslip computes one employee's pay: gross = base + allowances,
// deduction = base × rate%, net = gross − deduction.
func (s *Service) Payslip(e model.Employee) model.PayrollLine {
	gross := e.BaseSalary.Add(e.Allowances).Round(2)
	deduction := e.BaseSalary.Mul(s.rate).Div(hundred).Round(2)
	return model.PayrollLine{
		EmployeeID: e.ID,
		Name:       e.Name,
		CostCenter: e.CostCenter,
		Gross:      gross,
		Deduction:  deduction,
		Net:        gross.Sub(deduction),
	}
}

// RunPayroll pays every active employee for year/month and posts
// Dr salaries per cost center, Cr salaries payable for the net and
// Cr social insurance payable for the deductions. A period runs once.
func (s *Service) RunPayroll(ctx context.Context, year, month int, payDate time.Time) (model.PayrollRun, error) {
	if month < 1 || month > 12 {
		return model.PayrollRun{}, fmt.Errorf("%w: month %d", ErrInvalid, month)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	runID := PeriodID(year, month)
	if _, err := s.runs.Get(ctx, runID); err == nil {
		return model.PayrollRun{}, fmt.Errorf("%s: %w", runID, ErrPayrollExists)
	} else if !errors.Is(err, store.ErrNotFound) {
		return model.PayrollRun{}, err
	}

	active, err := s.ListEmployees(ctx, model.EmployeeActive, "")
	if err != nil {
		return model.PayrollRun{}, err
	}
	if len(active) == 0 {
		return model.PayrollRun{}, fmt.Errorf("%s: %w", runID, ErrNoEmployees)
	}
	if payDate.IsZero() {
		payDate = time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
	}

	run := model.PayrollRun{ID: runID, PayDate: payDate}
	byCenter := make(map[string]decimal.Decimal)
	var centers []string
	for _, e := range active {
		line := s.Payslip(e)
		run.Lines = append(run.Lines, line)
		run.GrossTotal = run.GrossTotal.Add(line.Gross)
		run.DeductionTotal = run.DeductionTotal.Add(line.Deduction)
		run.NetTotal = run.NetTotal.Add(line.Net)
		if _, ok := byCenter[line.CostCenter]; !ok {
			centers = append(centers, line.CostCenter)
		}
		byCenter[line.CostCenter] = byCenter[line.CostCenter].Add(line.Gross)
	}
	if !run.GrossTotal.IsPositive() {
		return model.PayrollRun{}, fmt.Errorf("%s: %w: zero gross pay", runID, ErrInvalid)
	}

	slices.Sort(centers)
	var legs []journal.LegParams
	for _, cc := range centers {
		if byCenter[cc].IsPositive() {
			legs = append(legs, journal.LegParams{AccountID: s.accts.Salaries, Debit: byCenter[cc], CostCenter: cc})
		}
	}
	if run.NetTotal.IsPositive() {
		legs = append(legs, journal.LegParams{AccountID: s.accts.SalariesPayable, Credit: run.NetTotal})
	}
	if run.DeductionTotal.IsPositive() {
		legs = append(legs, journal.LegParams{AccountID: s.accts.SocialInsurancePayable, Credit: run.DeductionTotal})
	}

	entryID, err := s.ledger.AddEntry(journal.EntryParams{
		Date:        payDate,
		Description: "رواتب شهر " + runID,
		Legs:        legs,
		Reference:   "PAYROLL-" + runID,
		Source:      model.SourcePayroll,
	})
	if err != nil {
		return model.PayrollRun{}, fmt.Errorf("posting payroll %s: %w", runID, err)
	}
	run.EntryID = entryID
	run.CreatedAt = s.now().UTC()
	if err := s.runs.Put(ctx, run); err != nil {
		return model.PayrollRun{}, err
	}
	return run, nil
}

func (s *Service) GetPayrollRun(ctx context.Context, runID string) (model.PayrollRun, error) {
	return s.runs.Get(ctx, runID)
}

// ListPayrollRuns returns all runs, latest period first.
func (s *Service) ListPayrollRuns(ctx context.Context) ([]model.PayrollRun, error) {
	runs, err := s.runs.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.Reverse(runs)
	return runs, nil
}
