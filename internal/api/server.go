// Package api serves the JSON HTTP API the web client talks to.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/daftar-erp/daftar/internal/analysis"
	"github.com/daftar-erp/daftar/internal/app"
	"github.com/daftar-erp/daftar/internal/auditlog"
	"github.com/daftar-erp/daftar/internal/buildinfo"
	"github.com/daftar-erp/daftar/internal/metrics"
	"github.com/daftar-erp/daftar/internal/scheduler"
)

// Prefix is where the versioned API is mounted.
const Prefix = "/api/v1"

// Options tunes a Server beyond what the app config holds.
type Options struct {
	// JWTSecret enables bearer auth when non-empty.
	JWTSecret []byte
	// Scheduler, when set, is told about backup settings changes and runs
	// manual backups so they notify like scheduled ones.
	Scheduler *scheduler.Scheduler
	// Jobs tracks asynchronous invoice analyses.
	Jobs *analysis.Jobs
}

type Server struct {
	app       *app.App
	log       logrus.FieldLogger
	locale    string
	jwtSecret []byte
	origins   []string
	limiter   *clientLimiter
	sched     *scheduler.Scheduler
	jobs      *analysis.Jobs
	analyzer  analysis.Runner
	now       func() time.Time
	handler   http.Handler
}

func New(a *app.App, opts Options) *Server {
	s := &Server{
		app:       a,
		log:       a.Log.WithField("component", "api"),
		locale:    a.Config.Business.Locale,
		jwtSecret: opts.JWTSecret,
		origins:   a.Config.Server.AllowedOrigins,
		limiter:   newClientLimiter(a.Config.Server.RateLimit, a.Config.Server.RateBurst),
		sched:     opts.Scheduler,
		jobs:      opts.Jobs,
		analyzer:  a.Analyzer,
		now:       time.Now,
	}
	s.handler = s.recoverer(s.logRequests(s.cors(s.routes())))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.respond(w, req, errNoRoute, "")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.respond(w, req, apiError{http.StatusMethodNotAllowed, "method_not_allowed", "العملية غير مسموحة", "method not allowed"}, "")
	})

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix(Prefix).Subrouter()
	v1.Use(s.authenticate)

	v1.HandleFunc("/customers", s.listCustomers).Methods(http.MethodGet)
	v1.HandleFunc("/customers", s.createCustomer).Methods(http.MethodPost)
	v1.HandleFunc("/customers/{id}", s.getCustomer).Methods(http.MethodGet)
	v1.HandleFunc("/customers/{id}", s.updateCustomer).Methods(http.MethodPut)
	v1.HandleFunc("/customers/{id}", s.deleteCustomer).Methods(http.MethodDelete)
	v1.HandleFunc("/customers/{id}/invoices", s.customerInvoices).Methods(http.MethodGet)

	v1.HandleFunc("/vendors", s.listVendors).Methods(http.MethodGet)
	v1.HandleFunc("/vendors", s.createVendor).Methods(http.MethodPost)
	v1.HandleFunc("/vendors/{id}", s.getVendor).Methods(http.MethodGet)
	v1.HandleFunc("/vendors/{id}", s.updateVendor).Methods(http.MethodPut)
	v1.HandleFunc("/vendors/{id}", s.deleteVendor).Methods(http.MethodDelete)

	v1.HandleFunc("/products", s.listProducts).Methods(http.MethodGet)
	v1.HandleFunc("/products", s.createProduct).Methods(http.MethodPost)
	v1.HandleFunc("/products/low-stock", s.lowStock).Methods(http.MethodGet)
	v1.HandleFunc("/products/{id}", s.getProduct).Methods(http.MethodGet)
	v1.HandleFunc("/products/{id}", s.updateProduct).Methods(http.MethodPut)
	v1.HandleFunc("/products/{id}", s.deleteProduct).Methods(http.MethodDelete)
	v1.HandleFunc("/products/{id}/adjust", s.adjustProduct).Methods(http.MethodPost)

	v1.HandleFunc("/invoices", s.listInvoices).Methods(http.MethodGet)
	v1.HandleFunc("/invoices", s.createInvoice).Methods(http.MethodPost)
	v1.HandleFunc("/invoices/bulk-delete", s.bulkDeleteInvoices).Methods(http.MethodPost)
	v1.HandleFunc("/invoices/{id}", s.getInvoice).Methods(http.MethodGet)
	v1.HandleFunc("/invoices/{id}", s.updateInvoice).Methods(http.MethodPut)
	v1.HandleFunc("/invoices/{id}", s.deleteInvoice).Methods(http.MethodDelete)
	v1.HandleFunc("/invoices/{id}/issue", s.issueInvoice).Methods(http.MethodPost)
	v1.HandleFunc("/invoices/{id}/payments", s.invoicePayments).Methods(http.MethodGet)
	v1.HandleFunc("/invoices/{id}/payments", s.recordInvoicePayment).Methods(http.MethodPost)
	v1.HandleFunc("/invoices/{id}/cancel", s.cancelInvoice).Methods(http.MethodPost)
	v1.HandleFunc("/invoices/{id}/pdf", s.invoicePDF).Methods(http.MethodGet)

	v1.HandleFunc("/purchases", s.listPurchases).Methods(http.MethodGet)
	v1.HandleFunc("/purchases", s.createPurchase).Methods(http.MethodPost)
	v1.HandleFunc("/purchases/{id}", s.getPurchase).Methods(http.MethodGet)
	v1.HandleFunc("/purchases/{id}", s.deletePurchase).Methods(http.MethodDelete)
	v1.HandleFunc("/purchases/{id}/post", s.postPurchase).Methods(http.MethodPost)
	v1.HandleFunc("/purchases/{id}/payments", s.recordPurchasePayment).Methods(http.MethodPost)

	v1.HandleFunc("/expenses", s.listExpenses).Methods(http.MethodGet)
	v1.HandleFunc("/expenses", s.recordExpense).Methods(http.MethodPost)
	v1.HandleFunc("/expenses/{id}", s.getExpense).Methods(http.MethodGet)

	v1.HandleFunc("/employees", s.listEmployees).Methods(http.MethodGet)
	v1.HandleFunc("/employees", s.createEmployee).Methods(http.MethodPost)
	v1.HandleFunc("/employees/{id}", s.getEmployee).Methods(http.MethodGet)
	v1.HandleFunc("/employees/{id}", s.updateEmployee).Methods(http.MethodPut)
	v1.HandleFunc("/employees/{id}", s.deleteEmployee).Methods(http.MethodDelete)
	v1.HandleFunc("/employees/{id}/payslip", s.payslip).Methods(http.MethodGet)
	v1.HandleFunc("/payroll", s.listPayrollRuns).Methods(http.MethodGet)
	v1.HandleFunc("/payroll", s.runPayroll).Methods(http.MethodPost)
	v1.HandleFunc("/payroll/{id}", s.getPayrollRun).Methods(http.MethodGet)

	v1.HandleFunc("/accounts", s.listAccounts).Methods(http.MethodGet)
	v1.HandleFunc("/accounts", s.createAccount).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{id:[0-9]+}/balance", s.accountBalance).Methods(http.MethodGet)
	v1.HandleFunc("/cost-centers", s.listCostCenters).Methods(http.MethodGet)
	v1.HandleFunc("/cost-centers", s.createCostCenter).Methods(http.MethodPost)

	v1.HandleFunc("/journal", s.listJournal).Methods(http.MethodGet)
	v1.HandleFunc("/journal", s.createJournalEntry).Methods(http.MethodPost)
	v1.HandleFunc("/journal/{id}", s.getJournalEntry).Methods(http.MethodGet)
	v1.HandleFunc("/journal/{id}/reverse", s.reverseJournalEntry).Methods(http.MethodPost)
	v1.HandleFunc("/journal/{id}/approve", s.approveJournalEntry).Methods(http.MethodPost)

	v1.HandleFunc("/reports/trial-balance", s.trialBalance).Methods(http.MethodGet)
	v1.HandleFunc("/reports/income", s.incomeStatement).Methods(http.MethodGet)
	v1.HandleFunc("/reports/balance-sheet", s.balanceSheet).Methods(http.MethodGet)
	v1.HandleFunc("/reports/aging", s.aging).Methods(http.MethodGet)
	v1.HandleFunc("/reports/cost-centers", s.costCenterSummary).Methods(http.MethodGet)
	v1.HandleFunc("/dashboard", s.dashboard).Methods(http.MethodGet)

	v1.HandleFunc("/notifications", s.listNotifications).Methods(http.MethodGet)
	v1.HandleFunc("/notifications/read-all", s.markAllRead).Methods(http.MethodPost)
	v1.HandleFunc("/notifications/settings", s.notificationSettings).Methods(http.MethodGet)
	v1.HandleFunc("/notifications/settings", s.updateNotificationSettings).Methods(http.MethodPut)
	v1.HandleFunc("/notifications/{id}/read", s.markRead).Methods(http.MethodPost)
	v1.HandleFunc("/notifications/{id}", s.deleteNotification).Methods(http.MethodDelete)

	v1.HandleFunc("/backup/settings", s.backupSettings).Methods(http.MethodGet)
	v1.HandleFunc("/backup/settings", s.updateBackupSettings).Methods(http.MethodPut)
	v1.HandleFunc("/backup/run", s.runBackup).Methods(http.MethodPost)
	v1.HandleFunc("/backup/files", s.backupFiles).Methods(http.MethodGet)

	fn := v1.PathPrefix("/functions").Subrouter()
	fn.Use(s.rateLimit)
	fn.HandleFunc("/send-email", s.sendEmail).Methods(http.MethodPost)
	fn.HandleFunc("/analyze-invoice", s.analyzeInvoice).Methods(http.MethodPost)
	fn.HandleFunc("/analyze-invoice/jobs/{id}", s.analysisJob).Methods(http.MethodGet)

	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.Version})
}

// audit appends to the audit trail. A failed write is logged, not returned;
// the change it describes has already happened.
func (s *Server) audit(r *http.Request, action, entityID, entryID, details string) {
	err := s.app.Audit.Record(auditlog.Entry{
		Timestamp: s.now().UTC(),
		Actor:     Actor(r.Context()),
		Action:    action,
		Details:   details,
		EntityID:  entityID,
		EntryID:   entryID,
	})
	if err != nil {
		s.requestLog(r).WithError(err).Warn("audit write failed")
	}
}
