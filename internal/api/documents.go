package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/daftar-erp/daftar/internal/invoicing"
	"github.com/daftar-erp/daftar/internal/model"
	"github.com/daftar-erp/daftar/internal/purchasing"
	"github.com/daftar-erp/daftar/internal/query"
)

type invoiceRequest struct {
	CustomerID string           `json:"customer_id"`
	IssueDate  Date             `json:"issue_date"`
	DueDate    Date             `json:"due_date"`
	Currency   string           `json:"currency"`
	Items      []model.LineItem `json:"items"`
	Discount   decimal.Decimal  `json:"discount"`
	Shipping   decimal.Decimal  `json:"shipping"`
	Notes      string           `json:"notes"`
}

func (in invoiceRequest) invoice() model.Invoice {
	inv := model.Invoice{
		CustomerID: in.CustomerID,
		IssueDate:  in.IssueDate.Time,
		DueDate:    in.DueDate.Time,
		Currency:   in.Currency,
		Items:      in.Items,
		Discount:   in.Discount,
		Notes:      in.Notes,
	}
	inv.Shipping = in.Shipping
	return inv
}

type paymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Date      Date            `json:"date"`
	AccountID int             `json:"account_id"`
	Method    string          `json:"method"`
}

type paymentResponse[T any] struct {
	Document T             `json:"document"`
	Payment  model.Payment `json:"payment"`
}

func (s *Server) listInvoices(w http.ResponseWriter, r *http.Request) {
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
	q := r.URL.Query()
	list, err := s.app.Invoices.List(r.Context(), query.InvoiceFilter{
		Status:     model.DocumentStatus(q.Get("status")),
		CustomerID: q.Get("customer_id"),
		From:       from,
		To:         to,
		Search:     q.Get("search"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createInvoice(w http.ResponseWriter, r *http.Request) {
	var in invoiceRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	inv, err := s.app.Invoices.Create(r.Context(), in.invoice())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "invoice.create", inv.ID, "", inv.Number)
	writeJSON(w, http.StatusCreated, inv)
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.app.Invoices.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) updateInvoice(w http.ResponseWriter, r *http.Request) {
	var in invoiceRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	inv := in.invoice()
	inv.ID = mux.Vars(r)["id"]
	inv, err := s.app.Invoices.Update(r.Context(), inv)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "invoice.update", inv.ID, "", inv.Number)
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID := mux.Vars(r)["id"]
	if err := s.app.Invoices.Delete(r.Context(), invoiceID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "invoice.delete", invoiceID, "", "")
	w.WriteHeader(http.StatusNoContent)
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type bulkDeleteResponse struct {
	Deleted []string `json:"deleted"`
	Skipped []string `json:"skipped"`
}

// bulkDeleteInvoices deletes the selected drafts. Non-drafts are skipped
// and reported back so the client can keep them selected.
func (s *Server) bulkDeleteInvoices(w http.ResponseWriter, r *http.Request) {
	var in bulkDeleteRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(in.IDs) == 0 {
		s.writeError(w, r, fmt.Errorf("%w: no invoices selected", errBadRequest))
		return
	}
	sel := query.NewSelection(in.IDs...)
	deleted, skipped, err := s.app.Invoices.BulkDelete(r.Context(), sel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, invoiceID := range deleted {
		s.audit(r, "invoice.delete", invoiceID, "", "bulk")
	}
	if deleted == nil {
		deleted = []string{}
	}
	if skipped == nil {
		skipped = []string{}
	}
	writeJSON(w, http.StatusOK, bulkDeleteResponse{Deleted: deleted, Skipped: skipped})
}

func (s *Server) issueInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.app.Invoices.Issue(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "invoice.issue", inv.ID, inv.EntryID, fmt.Sprintf("%s %s", inv.Number, inv.Total.StringFixed(2)))
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) invoicePayments(w http.ResponseWriter, r *http.Request) {
	list, err := s.app.Invoices.Payments(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) recordInvoicePayment(w http.ResponseWriter, r *http.Request) {
	var in paymentRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	inv, pay, err := s.app.Invoices.RecordPayment(r.Context(), mux.Vars(r)["id"], invoicing.PaymentInput{
		Amount:    in.Amount,
		Date:      in.Date.Time,
		AccountID: in.AccountID,
		Method:    in.Method,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "invoice.payment", inv.ID, pay.EntryID, fmt.Sprintf("%s %s", inv.Number, pay.Amount.StringFixed(2)))
	s.notifyPayment(r, inv, pay)
	writeJSON(w, http.StatusCreated, paymentResponse[model.Invoice]{Document: inv, Payment: pay})
}

func (s *Server) notifyPayment(r *http.Request, inv model.Invoice, pay model.Payment) {
	_, err := s.app.Notify.Notify(r.Context(), model.NotifyPaymentReceived,
		"دفعة مستلمة "+inv.Number,
		fmt.Sprintf("تم استلام %s %s للفاتورة %s", pay.Amount.StringFixed(2), inv.Currency, inv.Number),
		inv.ID)
	if err != nil {
		s.requestLog(r).WithError(err).Debug("payment notification skipped")
	}
}

type cancelRequest struct {
	Date   Date   `json:"date"`
	Reason string `json:"reason"`
}

func (s *Server) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	var in cancelRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	date := in.Date.Time
	if date.IsZero() {
		date = s.now().UTC()
	}
	inv, err := s.app.Invoices.Cancel(r.Context(), mux.Vars(r)["id"], date, in.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "invoice.cancel", inv.ID, "", in.Reason)
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) invoicePDF(w http.ResponseWriter, r *http.Request) {
	inv, err := s.app.Invoices.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	customer, err := s.app.Parties.GetCustomer(r.Context(), inv.CustomerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := invoicing.RenderPDF(&buf, inv, customer, s.app.Config.Business); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.pdf"`, inv.Number))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type purchaseRequest struct {
	VendorID  string           `json:"vendor_id"`
	VendorRef string           `json:"vendor_ref"`
	Date      Date             `json:"date"`
	DueDate   Date             `json:"due_date"`
	Currency  string           `json:"currency"`
	Items     []model.LineItem `json:"items"`
	Discount  decimal.Decimal  `json:"discount"`
	Shipping  decimal.Decimal  `json:"shipping"`
	Notes     string           `json:"notes"`
}

func (s *Server) listPurchases(w http.ResponseWriter, r *http.Request) {
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
	q := r.URL.Query()
	list, err := s.app.Purchases.List(r.Context(), query.PurchaseFilter{
		Status:   model.DocumentStatus(q.Get("status")),
		VendorID: q.Get("vendor_id"),
		From:     from,
		To:       to,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createPurchase(w http.ResponseWriter, r *http.Request) {
	var in purchaseRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	p := model.Purchase{
		VendorID:  in.VendorID,
		VendorRef: in.VendorRef,
		Date:      in.Date.Time,
		DueDate:   in.DueDate.Time,
		Currency:  in.Currency,
		Items:     in.Items,
		Discount:  in.Discount,
		Notes:     in.Notes,
	}
	p.Shipping = in.Shipping
	p, err := s.app.Purchases.Create(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "purchase.create", p.ID, "", p.Number)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getPurchase(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.Purchases.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deletePurchase(w http.ResponseWriter, r *http.Request) {
	purchaseID := mux.Vars(r)["id"]
	if err := s.app.Purchases.Delete(r.Context(), purchaseID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "purchase.delete", purchaseID, "", "")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postPurchase(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.Purchases.Post(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "purchase.post", p.ID, p.EntryID, fmt.Sprintf("%s %s", p.Number, p.Total.StringFixed(2)))
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) recordPurchasePayment(w http.ResponseWriter, r *http.Request) {
	var in paymentRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, pay, err := s.app.Purchases.RecordPayment(r.Context(), mux.Vars(r)["id"], purchasing.PaymentInput{
		Amount:    in.Amount,
		Date:      in.Date.Time,
		AccountID: in.AccountID,
		Method:    in.Method,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit(r, "purchase.payment", p.ID, pay.EntryID, fmt.Sprintf("%s %s", p.Number, pay.Amount.StringFixed(2)))
	writeJSON(w, http.StatusCreated, paymentResponse[model.Purchase]{Document: p, Payment: pay})
}
