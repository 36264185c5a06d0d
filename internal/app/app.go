// Package app opens a daftar project directory and wires its services.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/daftar-erp/daftar/internal/accounts"
	"github.com/daftar-erp/daftar/internal/analysis"
	"github.com/daftar-erp/daftar/internal/auditlog"
	"github.com/daftar-erp/daftar/internal/backup"
	"github.com/daftar-erp/daftar/internal/config"
	"github.com/daftar-erp/daftar/internal/expenses"
	"github.com/daftar-erp/daftar/internal/hr"
	"github.com/daftar-erp/daftar/internal/inventory"
	"github.com/daftar-erp/daftar/internal/invoicing"
	"github.com/daftar-erp/daftar/internal/journal"
	"github.com/daftar-erp/daftar/internal/metrics"
	"github.com/daftar-erp/daftar/internal/notify"
	"github.com/daftar-erp/daftar/internal/parties"
	"github.com/daftar-erp/daftar/internal/purchasing"
	"github.com/daftar-erp/daftar/internal/reports"
	"github.com/daftar-erp/daftar/internal/scheduler"
	"github.com/daftar-erp/daftar/internal/store"
)

// App holds every service of one project.
type App struct {
	Root   string
	Config *config.Config
	Log    logrus.FieldLogger

	Store     *store.Store
	Chart     *accounts.Service
	Journal   *journal.Service
	Parties   *parties.Service
	Inventory *inventory.Service
	Invoices  *invoicing.Service
	Purchases *purchasing.Service
	Expenses  *expenses.Service
	HR        *hr.Service
	Reports   *reports.Service
	Notify    *notify.Service
	Backup    *backup.Service
	Analyzer  *analysis.Analyzer
	Audit     *auditlog.Log
	Ledger    Ledger
}

// Ledger counts posted entries on their way into the journal. Services
// post through it rather than through Journal directly.
type Ledger struct {
	*journal.Service
}

func (l Ledger) AddEntry(params journal.EntryParams) (string, error) {
	entryID, err := l.Service.AddEntry(params)
	if err == nil {
		metrics.RecordEntry(string(params.Source))
	}
	return entryID, err
}

// Open loads root/daftar.yaml and root/.env and builds the services.
func Open(ctx context.Context, root string, log logrus.FieldLogger) (*App, error) {
	if err := config.LoadEnv(root); err != nil {
		return nil, err
	}
	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, err
	}
	return New(ctx, root, cfg, log)
}

// New builds the services for root using cfg.
func New(ctx context.Context, root string, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	chart, err := accounts.Load(root)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store.Driver, root, cfg.Secret(cfg.Store.DSNEnv))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	j := journal.NewService(root, chart, chart)
	l := Ledger{j}
	ps := parties.NewService(st)
	inv := inventory.NewService(st, l, cfg.Ledger)

	var sender notify.Sender
	if key := cfg.Secret(cfg.Email.APIKeyEnv); key != "" {
		sender = notify.NewHTTPSender(cfg.Email.Endpoint, key, cfg.Email.From, cfg.Email.RequestsPerSecond)
	}

	return &App{
		Root:      root,
		Config:    cfg,
		Log:       log,
		Store:     st,
		Chart:     chart,
		Journal:   j,
		Parties:   ps,
		Inventory: inv,
		Invoices:  invoicing.NewService(st, l, inv, ps, cfg.Ledger, cfg.Business.Currency),
		Purchases: purchasing.NewService(st, l, inv, ps, cfg.Ledger, cfg.Business.Currency),
		Expenses:  expenses.NewService(st, l, cfg.Ledger),
		HR:        hr.NewService(st, l, cfg.Ledger, cfg.HR.SocialInsuranceRate),
		Reports:   reports.NewService(j, chart, st, cfg.Ledger),
		Notify:    notify.NewService(st, sender, log),
		Backup:    backup.NewService(st, root, cfg, log),
		Analyzer:  analysis.NewAnalyzer(cfg.Analysis, cfg.Secret(cfg.Analysis.APIKeyEnv)),
		Audit:     auditlog.New(root),
		Ledger:    l,
	}, nil
}

// Post appends a manual entry through the same path as the services.
func (a *App) Post(params journal.EntryParams) (string, error) {
	return a.Ledger.AddEntry(params)
}

// Scheduler builds the periodic job runner over the app's services.
func (a *App) Scheduler() *scheduler.Scheduler {
	return scheduler.New(a.Backup, a.Invoices, a.Inventory, a.Notify, a.Log)
}

func (a *App) Close() error {
	return a.Store.Close()
}
