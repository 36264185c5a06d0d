package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EmployeeStatus marks whether an employee is included in payroll.
type EmployeeStatus string

const (
	EmployeeActive     EmployeeStatus = "active"
	EmployeeOnLeave    EmployeeStatus = "on_leave"
	EmployeeTerminated EmployeeStatus = "terminated"
)

// Employee is a salaried staff member.
type Employee struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	NationalID string          `json:"national_id,omitempty"`
	Position   string          `json:"position,omitempty"`
	Department string          `json:"department,omitempty"`
	CostCenter string          `json:"cost_center,omitempty"`
	BaseSalary decimal.Decimal `json:"base_salary"`
	Allowances decimal.Decimal `json:"allowances"`
	HireDate   time.Time       `json:"hire_date"`
	Status     EmployeeStatus  `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// GetID implements store.Entity.
func (e Employee) GetID() string { return e.ID }

// PayrollLine is one employee's pay for a period.
type PayrollLine struct {
	EmployeeID string          `json:"employee_id"`
	Name       string          `json:"name"`
	CostCenter string          `json:"cost_center,omitempty"`
	Gross      decimal.Decimal `json:"gross"`
	Deduction  decimal.Decimal `json:"deduction"`
	Net        decimal.Decimal `json:"net"`
}

// PayrollRun is a posted monthly payroll. ID is the period "YYYY-MM".
type PayrollRun struct {
	ID             string          `json:"id"`
	PayDate        time.Time       `json:"pay_date"`
	Lines          []PayrollLine   `json:"lines"`
	GrossTotal     decimal.Decimal `json:"gross_total"`
	DeductionTotal decimal.Decimal `json:"deduction_total"`
	NetTotal       decimal.Decimal `json:"net_total"`
	EntryID        string          `json:"entry_id"`
	CreatedAt      time.Time       `json:"created_at"`
}

// GetID implements store.Entity.
func (r PayrollRun) GetID() string { return r.ID }
