package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daftar-erp/daftar/internal/accounts"
	"github.com/daftar-erp/daftar/internal/analysis"
	"github.com/daftar-erp/daftar/internal/app"
	"github.com/daftar-erp/daftar/internal/config"
	"github.com/daftar-erp/daftar/internal/model"
)

type env struct {
	t   *testing.T
	app *app.App
	srv *Server
}

func newApp(t *testing.T, tweak func(*config.Config)) *app.App {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default("مؤسسة الأفق", "trading")
	cfg.Store.Driver = "memory"
	cfg.Git.AutoCommit = false
	if tweak != nil {
		tweak(cfg)
	}
	require.NoError(t, config.Save(filepath.Join(root, config.FileName), cfg))
	require.NoError(t, accounts.NewService(accounts.DefaultChart("trading"), accounts.DefaultCostCenters()).Save(root))

	logger, _ := test.NewNullLogger()
	a, err := app.Open(context.Background(), root, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func setup(t *testing.T, tweak func(*config.Config), opts Options) env {
	a := newApp(t, tweak)
	return env{t: t, app: a, srv: New(a, opts)}
}

func (e env) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	e := setup(t, nil, Options{})
	rec := e.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])

	rec = e.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "daftar_http_requests_total")
}

func TestLocalizedErrors(t *testing.T) {
	e := setup(t, nil, Options{})

	rec := e.do(http.MethodGet, Prefix+"/customers/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "not_found", body.Error)
	assert.Equal(t, "غير موجود", body.Message)

	rec = e.do(http.MethodGet, Prefix+"/customers/missing", nil, "Accept-Language", "en-US,en;q=0.9")
	body = decode[ErrorResponse](t, rec)
	assert.Equal(t, "not found", body.Message)

	rec = e.do(http.MethodPost, Prefix+"/customers", map[string]any{"name": ""}, "Accept-Language", "en")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body = decode[ErrorResponse](t, rec)
	assert.Equal(t, "invalid", body.Error)
	assert.NotEmpty(t, body.Detail)

	rec = e.do(http.MethodPost, Prefix+"/customers", map[string]any{"name": "x", "unknown": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(http.MethodPatch, Prefix+"/customers", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestInvoiceFlow(t *testing.T) {
	e := setup(t, nil, Options{})

	rec := e.do(http.MethodPost, Prefix+"/customers", map[string]any{"name": "شركة النور", "email": "billing@alnoor.example"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cust := decode[model.Customer](t, rec)

	rec = e.do(http.MethodPost, Prefix+"/products", map[string]any{
		"sku": "COF-1", "name": "قهوة عربية", "price": "100", "cost": "60", "quantity": "10", "active": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	prod := decode[model.Product](t, rec)

	rec = e.do(http.MethodPost, Prefix+"/invoices", map[string]any{
		"customer_id": cust.ID,
		"issue_date":  "2025-03-01",
		"items":       []map[string]any{{"product_id": prod.ID, "quantity": "2", "tax_percent": "15"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decode[model.Invoice](t, rec)
	assert.Equal(t, model.DocDraft, inv.Status)
	assert.Equal(t, "230", inv.Total.String())

	rec = e.do(http.MethodPost, Prefix+"/invoices/"+inv.ID+"/issue", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	inv = decode[model.Invoice](t, rec)
	assert.Equal(t, model.DocIssued, inv.Status)
	assert.NotEmpty(t, inv.EntryID)

	rec = e.do(http.MethodPost, Prefix+"/invoices/"+inv.ID+"/payments", map[string]any{"amount": "500", "date": "2025-03-05"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "overpayment", decode[ErrorResponse](t, rec).Error)

	rec = e.do(http.MethodPost, Prefix+"/invoices/"+inv.ID+"/payments", map[string]any{"amount": "100", "date": "2025-03-05"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paid := decode[paymentResponse[model.Invoice]](t, rec)
	assert.Equal(t, model.DocPartiallyPaid, paid.Document.Status)
	assert.Equal(t, "130", paid.Document.Outstanding().String())

	rec = e.do(http.MethodGet, Prefix+"/invoices/"+inv.ID+"/payments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Payment](t, rec), 1)

	rec = e.do(http.MethodGet, Prefix+"/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decode[[]model.Notification](t, rec)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotifyPaymentReceived, notes[0].Kind)

	rec = e.do(http.MethodPost, Prefix+"/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":1}`, rec.Body.String())

	rec = e.do(http.MethodGet, Prefix+"/invoices/"+inv.ID+"/pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = e.do(http.MethodDelete, Prefix+"/invoices/"+inv.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(http.MethodGet, Prefix+"/reports/trial-balance?from=2025-03-01&to=2025-03-31", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(http.MethodGet, Prefix+"/reports/aging?as_of=2025-03-10", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(http.MethodGet, Prefix+"/customers/"+cust.ID+"/invoices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Invoice](t, rec), 1)

	rec = e.do(http.MethodGet, Prefix+"/reports/trial-balance?from=2025-03-31&to=2025-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJournalEndpoints(t *testing.T) {
	e := setup(t, nil, Options{})

	unbalanced := map[string]any{
		"date":        "2025-04-02",
		"description": "إيداع رأس المال",
		"legs": []map[string]any{
			{"account_id": accounts.Bank, "debit": "1000"},
			{"account_id": accounts.Capital, "credit": "900"},
		},
	}
	rec := e.do(http.MethodPost, Prefix+"/journal", unbalanced)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "unbalanced", decode[ErrorResponse](t, rec).Error)

	unbalanced["legs"].([]map[string]any)[1]["credit"] = "1000"
	rec = e.do(http.MethodPost, Prefix+"/journal", unbalanced)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decode[entryResponse](t, rec)
	assert.Len(t, entry.Legs, 2)

	rec = e.do(http.MethodGet, Prefix+"/journal/"+entry.EntryID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodGet, Prefix+"/accounts/1020/balance?as_of=2025-04-30", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(http.MethodPost, Prefix+"/journal/"+entry.EntryID+"/reverse", map[string]any{"date": "2025-04-03", "reason": "خطأ"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(http.MethodPost, Prefix+"/journal/"+entry.EntryID+"/reverse", map[string]any{"date": "2025-04-03"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(http.MethodGet, Prefix+"/journal/2099-01-999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(http.MethodGet, Prefix+"/journal/garbage", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmployeesAndPayroll(t *testing.T) {
	e := setup(t, nil, Options{})

	rec := e.do(http.MethodPost, Prefix+"/employees", map[string]any{
		"name": "سارة", "base_salary": "8000", "allowances": "2000", "hire_date": "2024-01-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	emp := decode[model.Employee](t, rec)

	rec = e.do(http.MethodGet, Prefix+"/employees/"+emp.ID+"/payslip", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	slip := decode[model.PayrollLine](t, rec)
	assert.Equal(t, emp.ID, slip.EmployeeID)

	rec = e.do(http.MethodPost, Prefix+"/payroll", map[string]any{"year": 2025, "month": 3, "pay_date": "2025-03-28"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	run := decode[model.PayrollRun](t, rec)
	assert.Len(t, run.Lines, 1)

	rec = e.do(http.MethodPost, Prefix+"/payroll", map[string]any{"year": 2025, "month": 3, "pay_date": "2025-03-28"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(http.MethodGet, Prefix+"/payroll/"+run.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth(t *testing.T) {
	secret := []byte("test-secret")
	e := setup(t, nil, Options{JWTSecret: secret})

	rec := e.do(http.MethodGet, Prefix+"/customers", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	sign := func(claims jwt.RegisteredClaims, key []byte) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		require.NoError(t, err)
		return "Bearer " + s
	}
	valid := jwt.RegisteredClaims{Subject: "sara", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	rec = e.do(http.MethodGet, Prefix+"/customers", nil, "Authorization", sign(valid, []byte("other")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(http.MethodGet, Prefix+"/customers", nil, "Authorization", sign(jwt.RegisteredClaims{Subject: "sara"}, secret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(http.MethodPost, Prefix+"/customers", map[string]any{"name": "شركة النور"}, "Authorization", sign(valid, secret))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cust := decode[model.Customer](t, rec)

	trail, err := e.app.Audit.Read(cust.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "sara", trail[0].Actor)
	assert.Equal(t, "customer.create", trail[0].Action)
}

func TestCORS(t *testing.T) {
	e := setup(t, func(c *config.Config) { c.Server.AllowedOrigins = []string{"https://app.example"} }, Options{})

	rec := e.do(http.MethodOptions, Prefix+"/customers", nil, "Origin", "https://app.example", "Access-Control-Request-Method", "POST")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = e.do(http.MethodGet, Prefix+"/customers", nil, "Origin", "https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSendEmail(t *testing.T) {
	var got map[string]any
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"msg_123"}`))
	}))
	defer provider.Close()
	t.Setenv("DAFTAR_TEST_EMAIL_KEY", "re_test")

	e := setup(t, func(c *config.Config) {
		c.Email.Endpoint = provider.URL
		c.Email.APIKeyEnv = "DAFTAR_TEST_EMAIL_KEY"
		c.Email.RequestsPerSecond = 100
	}, Options{})

	rec := e.do(http.MethodPost, Prefix+"/functions/send-email", map[string]any{
		"to": []string{"owner@example.com"}, "subject": "تذكير", "html": "<p>مرحبا</p>",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":"msg_123"}`, rec.Body.String())
	assert.Equal(t, "تذكير", got["subject"])

	rec = e.do(http.MethodPost, Prefix+"/functions/send-email", map[string]any{"subject": "x", "html": "y"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendEmail_NotConfigured(t *testing.T) {
	e := setup(t, func(c *config.Config) { c.Email.APIKeyEnv = "DAFTAR_TEST_UNSET_KEY" }, Options{})
	rec := e.do(http.MethodPost, Prefix+"/functions/send-email", map[string]any{
		"to": []string{"owner@example.com"}, "subject": "s", "html": "h",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_configured", decode[ErrorResponse](t, rec).Error)
}

func TestRateLimit(t *testing.T) {
	e := setup(t, func(c *config.Config) {
		c.Server.RateLimit = 0.001
		c.Server.RateBurst = 2
	}, Options{})

	for i := 0; i < 2; i++ {
		rec := e.do(http.MethodPost, Prefix+"/functions/send-email", map[string]any{"bogus": true})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := e.do(http.MethodPost, Prefix+"/functions/send-email", map[string]any{"bogus": true})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = e.do(http.MethodGet, Prefix+"/customers", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyzeInvoice(t *testing.T) {
	completions := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		answer := `{"vendor_name":"مؤسسة التوريد","invoice_number":"P-77","total":115,"items":[{"description":"ورق","quantity":5,"unit_price":20,"total":100}]}`
		resp, _ := json.Marshal(map[string]any{"choices": []map[string]any{{"message": map[string]string{"content": answer}}}})
		_, _ = w.Write(resp)
	}))
	defer completions.Close()
	t.Setenv("DAFTAR_TEST_AI_KEY", "sk-test")

	a := newApp(t, func(c *config.Config) {
		c.Analysis.Endpoint = completions.URL
		c.Analysis.APIKeyEnv = "DAFTAR_TEST_AI_KEY"
		c.Analysis.RequestsPerMinute = 600
	})
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	jobs := analysis.NewJobs(ctx, a.Analyzer, logger)
	e := env{t: t, app: a, srv: New(a, Options{Jobs: jobs})}

	rec := e.do(http.MethodPost, Prefix+"/functions/analyze-invoice", map[string]any{"text": "فاتورة رقم P-77"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	inv := decode[analysis.ExtractedInvoice](t, rec)
	assert.Equal(t, "مؤسسة التوريد", inv.VendorName)
	assert.Len(t, inv.Items, 1)

	rec = e.do(http.MethodPost, Prefix+"/functions/analyze-invoice", map[string]any{"text": "فاتورة رقم P-77", "async": true})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	job := decode[analysis.Job](t, rec)
	jobs.Wait()

	rec = e.do(http.MethodGet, Prefix+"/functions/analyze-invoice/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	job = decode[analysis.Job](t, rec)
	assert.Equal(t, analysis.JobCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, "P-77", job.Result.InvoiceNumber)

	rec = e.do(http.MethodGet, Prefix+"/functions/analyze-invoice/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodPost, Prefix+"/functions/analyze-invoice", map[string]any{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackupEndpoints(t *testing.T) {
	e := setup(t, nil, Options{})

	rec := e.do(http.MethodGet, Prefix+"/backup/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	set := decode[model.BackupSettings](t, rec)
	assert.Equal(t, "0 2 * * *", set.Schedule)

	rec = e.do(http.MethodPut, Prefix+"/backup/settings", map[string]any{"enabled": true, "schedule": "not cron", "retain": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPut, Prefix+"/backup/settings", map[string]any{"enabled": true, "schedule": "0 3 * * *", "retain": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(http.MethodPost, Prefix+"/backup/run", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(http.MethodGet, Prefix+"/backup/files", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	files := decode[[]string](t, rec)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], ".json"))
}
