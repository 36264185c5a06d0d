package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/daftar-erp/daftar/internal/accounts"
	"github.com/daftar-erp/daftar/internal/analysis"
	"github.com/daftar-erp/daftar/internal/backup"
	"github.com/daftar-erp/daftar/internal/billing"
	"github.com/daftar-erp/daftar/internal/expenses"
	"github.com/daftar-erp/daftar/internal/hr"
	"github.com/daftar-erp/daftar/internal/inventory"
	"github.com/daftar-erp/daftar/internal/invoicing"
	"github.com/daftar-erp/daftar/internal/journal"
	"github.com/daftar-erp/daftar/internal/notify"
	"github.com/daftar-erp/daftar/internal/parties"
	"github.com/daftar-erp/daftar/internal/purchasing"
	"github.com/daftar-erp/daftar/internal/store"
)

const dateLayout = "2006-01-02"

// errBadRequest marks malformed input caught at the HTTP layer.
var errBadRequest = errors.New("bad request")

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type apiError struct {
	status int
	code   string
	ar, en string
}

var (
	errInternal = apiError{http.StatusInternalServerError, "internal", "حدث خطأ ما", "something went wrong"}
	errAuth     = apiError{http.StatusUnauthorized, "unauthorized", "يلزم تسجيل الدخول", "sign in required"}
	errLimited  = apiError{http.StatusTooManyRequests, "rate_limited", "طلبات كثيرة، حاول لاحقاً", "too many requests, try again later"}
	errNoRoute  = apiError{http.StatusNotFound, "not_found", "غير موجود", "not found"}
)

// catalog maps domain errors to responses. First match wins.
var catalog = []struct {
	target error
	resp   apiError
}{
	{store.ErrNotFound, errNoRoute},
	{journal.ErrEntryNotFound, errNoRoute},
	{inventory.ErrInsufficientStock, apiError{http.StatusConflict, "insufficient_stock", "الكمية المتوفرة غير كافية", "insufficient stock"}},
	{inventory.ErrDuplicateSKU, apiError{http.StatusConflict, "duplicate", "رمز الصنف مستخدم", "sku already in use"}},
	{accounts.ErrDuplicate, apiError{http.StatusConflict, "duplicate", "السجل موجود مسبقاً", "already exists"}},
	{invoicing.ErrNotDraft, apiError{http.StatusConflict, "not_draft", "لا يمكن تعديل فاتورة صادرة", "only draft invoices can be changed"}},
	{invoicing.ErrNotOpen, apiError{http.StatusConflict, "not_open", "الفاتورة ليست مفتوحة", "invoice is not open"}},
	{invoicing.ErrOverpayment, apiError{http.StatusConflict, "overpayment", "المبلغ يتجاوز المتبقي", "payment exceeds the outstanding amount"}},
	{invoicing.ErrHasPayments, apiError{http.StatusConflict, "has_payments", "على الفاتورة دفعات مسجلة", "invoice has payments"}},
	{purchasing.ErrNotDraft, apiError{http.StatusConflict, "not_draft", "لا يمكن تعديل فاتورة مرحّلة", "only draft purchases can be changed"}},
	{purchasing.ErrNotOpen, apiError{http.StatusConflict, "not_open", "فاتورة الشراء ليست مفتوحة", "purchase is not open"}},
	{purchasing.ErrOverpayment, apiError{http.StatusConflict, "overpayment", "المبلغ يتجاوز المتبقي", "payment exceeds the outstanding amount"}},
	{parties.ErrHasBalance, apiError{http.StatusConflict, "has_balance", "يوجد رصيد مفتوح", "party has an open balance"}},
	{hr.ErrPayrollExists, apiError{http.StatusConflict, "payroll_exists", "تم صرف رواتب هذا الشهر", "payroll already run for this period"}},
	{hr.ErrNoEmployees, apiError{http.StatusConflict, "no_employees", "لا يوجد موظفون نشطون", "no active employees"}},
	{journal.ErrAlreadyReversed, apiError{http.StatusConflict, "already_reversed", "القيد معكوس مسبقاً", "entry already reversed"}},
	{journal.ErrDraft, apiError{http.StatusConflict, "draft", "القيد مسودة لم يُرحّل", "entry is a draft"}},
	{journal.ErrNotDraft, apiError{http.StatusConflict, "not_draft", "القيد ليس مسودة", "entry is not a draft"}},
	{notify.ErrNotConfigured, apiError{http.StatusServiceUnavailable, "not_configured", "البريد الإلكتروني غير مهيأ", "email is not configured"}},
	{analysis.ErrNotConfigured, apiError{http.StatusServiceUnavailable, "not_configured", "خدمة التحليل غير مهيأة", "analysis is not configured"}},
}

// invalid is the response for any validation failure.
var invalid = apiError{http.StatusBadRequest, "invalid", "البيانات المدخلة غير صحيحة", "invalid input"}

var validationErrors = []error{
	errBadRequest,
	accounts.ErrInvalid,
	billing.ErrInvalidLine,
	parties.ErrInvalid,
	inventory.ErrInvalid,
	invoicing.ErrInvalid,
	purchasing.ErrInvalid,
	expenses.ErrInvalid,
	hr.ErrInvalid,
	notify.ErrInvalidSettings,
	notify.ErrInvalidEmail,
	backup.ErrInvalidSettings,
	analysis.ErrEmptyText,
}

func classify(err error) apiError {
	for _, c := range catalog {
		if errors.Is(err, c.target) {
			return c.resp
		}
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return invalid
		}
	}
	var verrs journal.ValidationErrors
	if errors.As(err, &verrs) {
		return apiError{http.StatusUnprocessableEntity, "unbalanced", "القيد غير متوازن أو غير صالح", "journal entry is not valid"}
	}
	return errInternal
}

// language picks ar or en from Accept-Language, falling back to def.
func language(r *http.Request, def string) string {
	for _, part := range strings.Split(r.Header.Get("Accept-Language"), ",") {
		tag := strings.ToLower(strings.TrimSpace(strings.SplitN(part, ";", 2)[0]))
		switch {
		case tag == "ar" || strings.HasPrefix(tag, "ar-"):
			return "ar"
		case tag == "en" || strings.HasPrefix(tag, "en-"):
			return "en"
		}
	}
	if def == "en" {
		return "en"
	}
	return "ar"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, e apiError, detail string) {
	msg := e.ar
	if language(r, s.locale) == "en" {
		msg = e.en
	}
	writeJSON(w, e.status, ErrorResponse{Error: e.code, Message: msg, Detail: detail})
}

// writeError classifies err and writes the localized response. Internal
// errors are logged and their text is kept out of the body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	switch {
	case e.status == http.StatusInternalServerError:
		s.requestLog(r).WithError(err).Error("request failed")
		s.respond(w, r, e, "")
	case e.status > http.StatusInternalServerError:
		s.respond(w, r, e, "")
	default:
		s.respond(w, r, e, err.Error())
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// Date is a calendar day in requests and query strings.
type Date struct{ time.Time }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func queryDate(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", errBadRequest, name)
	}
	return t, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", errBadRequest, name)
	}
	return n, nil
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// period reads from/to, defaulting to the current month so far.
func (s *Server) period(r *http.Request) (time.Time, time.Time, error) {
	from, err := queryDate(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	now := s.now().UTC()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to is before from", errBadRequest)
	}
	return from, to, nil
}

func (s *Server) asOf(r *http.Request) (time.Time, error) {
	t, err := queryDate(r, "as_of")
	if err != nil || !t.IsZero() {
		return t, err
	}
	return s.now().UTC(), nil
}
