package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/daftar-erp/daftar/internal/expenses"
	"github.com/daftar-erp/daftar/internal/model"
)

type expenseRequest struct {
	Date             Date            `json:"date"`
	Category         string          `json:"category"`
	AccountID        int             `json:"account_id"`
	CostCenter       string          `json:"cost_center"`
	VendorID         string          `json:"vendor_id"`
	Description      string          `json:"description"`
	Amount           decimal.Decimal `json:"amount"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	PaymentAccountID int             `json:"payment_account_id"`
	Reference        string          `json:"reference"`
}

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	accountID, err := queryInt(r, "account_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	list, err := s.app.Expenses.List(r.Context(), expenses.Filter{
		From:       from,
		To:         to,
		CostCenter: q.Get("cost_center"),
		AccountID:  accountID,
		Search:     q.Get("search"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) recordExpense(w http.ResponseWriter, r *http.Request) {
	var in expenseRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.app.Expenses.Record(r.Context(), model.Expense{
		Date:             in.Date.Time,
		Category:         in.Category,
		AccountID:        in.AccountID,
		CostCenter:       in.CostCenter,
		VendorID:         in.VendorID,
		Description:      in.Description,
		Amount:           in.Amount,
		TaxAmount:        in.TaxAmount,
		PaymentAccountID: in.PaymentAccountID,
		Reference:        in.Reference,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "expense.record", e.ID, e.EntryID, fmt.Sprintf("%s %s", e.Category, e.Total().StringFixed(2)))
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) getExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.app.Expenses.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type employeeRequest struct {
	Name       string               `json:"name"`
	NationalID string               `json:"national_id"`
	Position   string               `json:"position"`
	Department string               `json:"department"`
	CostCenter string               `json:"cost_center"`
	BaseSalary decimal.Decimal      `json:"base_salary"`
	Allowances decimal.Decimal      `json:"allowances"`
	HireDate   Date                 `json:"hire_date"`
	Status     model.EmployeeStatus `json:"status"`
}

func (in employeeRequest) employee() model.Employee {
	return model.Employee{
		Name:       in.Name,
		NationalID: in.NationalID,
		Position:   in.Position,
		Department: in.Department,
		CostCenter: in.CostCenter,
		BaseSalary: in.BaseSalary,
		Allowances: in.Allowances,
		HireDate:   in.HireDate.Time,
		Status:     in.Status,
	}
}

func (s *Server) listEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.app.HR.ListEmployees(r.Context(), model.EmployeeStatus(q.Get("status")), q.Get("search"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createEmployee(w http.ResponseWriter, r *http.Request) {
	var in employeeRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.app.HR.CreateEmployee(r.Context(), in.employee())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "employee.create", e.ID, "", e.Name)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) getEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := s.app.HR.GetEmployee(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) updateEmployee(w http.ResponseWriter, r *http.Request) {
	var in employeeRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	e := in.employee()
	e.ID = mux.Vars(r)["id"]
	e, err := s.app.HR.UpdateEmployee(r.Context(), e)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "employee.update", e.ID, "", e.Name)
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) deleteEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID := mux.Vars(r)["id"]
	if err := s.app.HR.DeleteEmployee(r.Context(), employeeID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "employee.delete", employeeID, "", "")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) payslip(w http.ResponseWriter, r *http.Request) {
	e, err := s.app.HR.GetEmployee(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.HR.Payslip(e))
}

type payrollRequest struct {
	Year    int  `json:"year"`
	Month   int  `json:"month"`
	PayDate Date `json:"pay_date"`
}

func (s *Server) runPayroll(w http.ResponseWriter, r *http.Request) {
	var in payrollRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if in.Year == 0 {
		in.Year = s.now().UTC().Year()
	}
	run, err := s.app.HR.RunPayroll(r.Context(), in.Year, in.Month, in.PayDate.Time)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "payroll.run", run.ID, run.EntryID, fmt.Sprintf("%d employees, net %s", len(run.Lines), run.NetTotal.StringFixed(2)))
	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) listPayrollRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.app.HR.ListPayrollRuns(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getPayrollRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.app.HR.GetPayrollRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
