// Package scheduler runs the periodic jobs: store backups, the invoice
// due/overdue sweep and low-stock alerts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/daftar-erp/daftar/internal/backup"
	"github.com/daftar-erp/daftar/internal/metrics"
	"github.com/daftar-erp/daftar/internal/model"
	"github.com/daftar-erp/daftar/internal/notify"
)

// Default schedules, in UTC.
const (
	SweepSchedule    = "0 6 * * *"
	LowStockSchedule = "30 6 * * *"
)

type Backups interface {
	Settings(ctx context.Context) (model.BackupSettings, error)
	Run(ctx context.Context) (backup.Result, error)
}

type Invoices interface {
	MarkOverdue(ctx context.Context, asOf time.Time) ([]model.Invoice, error)
	DueWithin(ctx context.Context, asOf time.Time, days int) ([]model.Invoice, error)
}

type Stock interface {
	LowStock(ctx context.Context) ([]model.Product, error)
}

type Notifier interface {
	Settings(ctx context.Context) (model.NotificationSettings, error)
	Notify(ctx context.Context, kind model.NotificationKind, title, message, ref string) (model.Notification, error)
	Exists(ctx context.Context, kind model.NotificationKind, ref string) (bool, error)
	HasUnread(ctx context.Context, kind model.NotificationKind, ref string) (bool, error)
}

type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	backups  Backups
	invoices Invoices
	stock    Stock
	notifier Notifier
	log      logrus.FieldLogger
	now      func() time.Time

	ctx      context.Context
	backupID cron.EntryID
}

func New(backups Backups, invoices Invoices, stock Stock, notifier Notifier, log logrus.FieldLogger) *Scheduler {
	log = log.WithField("component", "scheduler")
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cron.PrintfLogger(log))),
		),
		backups:  backups,
		invoices: invoices,
		stock:    stock,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Start registers the jobs and starts the cron loop. Jobs run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(SweepSchedule, s.job("invoice-sweep", func(ctx context.Context) error {
		_, _, err := s.SweepInvoices(ctx)
		return err
	})); err != nil {
		return fmt.Errorf("scheduling invoice sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(LowStockSchedule, s.job("low-stock", func(ctx context.Context) error {
		_, err := s.CheckLowStock(ctx)
		return err
	})); err != nil {
		return fmt.Errorf("scheduling low-stock check: %w", err)
	}
	if err := s.Reschedule(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.log.WithField("jobs", len(s.cron.Entries())).Info("scheduler started")
	return nil
}

// Reschedule replaces the backup job with one on the saved schedule, or
// removes it when backups are disabled. Call it after settings change.
func (s *Scheduler) Reschedule(ctx context.Context) error {
	set, err := s.backups.Settings(ctx)
	if err != nil {
		return fmt.Errorf("reading backup settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backupID != 0 {
		s.cron.Remove(s.backupID)
		s.backupID = 0
	}
	if !set.Enabled {
		s.log.Info("scheduled backups disabled")
		return nil
	}
	entryID, err := s.cron.AddFunc(set.Schedule, s.job("backup", func(ctx context.Context) error {
		_, err := s.RunBackup(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("scheduling backup %q: %w", set.Schedule, err)
	}
	s.backupID = entryID
	s.log.WithField("schedule", set.Schedule).Info("backup scheduled")
	return nil
}

// NextBackup returns when the backup job next fires, or zero when none is scheduled.
func (s *Scheduler) NextBackup() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backupID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.backupID).Next
}

// Stop halts the cron loop and waits for running jobs, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) job(name string, fn func(context.Context) error) func() {
	return func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		start := time.Now()
		err := fn(ctx)
		metrics.RecordJob(name, time.Since(start), err == nil)
		entry := s.log.WithFields(logrus.Fields{"job": name, "duration": time.Since(start).String()})
		if err != nil {
			entry.WithError(err).Error("job failed")
			return
		}
		entry.Info("job finished")
	}
}

// notify swallows muted kinds; they are a settings choice, not a failure.
func (s *Scheduler) notify(ctx context.Context, kind model.NotificationKind, title, message, ref string) (bool, error) {
	_, err := s.notifier.Notify(ctx, kind, title, message, ref)
	if errors.Is(err, notify.ErrMuted) {
		return false, nil
	}
	return err == nil, err
}

// SweepInvoices marks past-due invoices overdue and alerts on them, then
// alerts on invoices falling due within the configured lead time. Each
// invoice is alerted once per kind.
func (s *Scheduler) SweepInvoices(ctx context.Context) (overdue, dueSoon int, err error) {
	asOf := s.now().UTC()
	changed, err := s.invoices.MarkOverdue(ctx, asOf)
	if err != nil {
		return 0, 0, fmt.Errorf("marking overdue: %w", err)
	}
	for _, inv := range changed {
		seen, err := s.notifier.Exists(ctx, model.NotifyInvoiceOverdue, inv.ID)
		if err != nil {
			return overdue, dueSoon, err
		}
		if seen {
			continue
		}
		sent, err := s.notify(ctx, model.NotifyInvoiceOverdue,
			"فاتورة متأخرة "+inv.Number,
			fmt.Sprintf("الفاتورة %s تجاوزت تاريخ الاستحقاق %s والمبلغ المتبقي %s %s",
				inv.Number, inv.DueDate.Format("2006-01-02"), inv.Outstanding().StringFixed(2), inv.Currency),
			inv.ID)
		if err != nil {
			return overdue, dueSoon, err
		}
		if sent {
			overdue++
		}
	}

	set, err := s.notifier.Settings(ctx)
	if err != nil {
		return overdue, dueSoon, err
	}
	if !set.InvoiceDue {
		return overdue, dueSoon, nil
	}
	soon, err := s.invoices.DueWithin(ctx, asOf, set.DaysBeforeDue)
	if err != nil {
		return overdue, dueSoon, fmt.Errorf("listing due invoices: %w", err)
	}
	for _, inv := range soon {
		seen, err := s.notifier.Exists(ctx, model.NotifyInvoiceDue, inv.ID)
		if err != nil {
			return overdue, dueSoon, err
		}
		if seen {
			continue
		}
		sent, err := s.notify(ctx, model.NotifyInvoiceDue,
			"فاتورة مستحقة قريباً "+inv.Number,
			fmt.Sprintf("الفاتورة %s تستحق في %s والمبلغ المتبقي %s %s",
				inv.Number, inv.DueDate.Format("2006-01-02"), inv.Outstanding().StringFixed(2), inv.Currency),
			inv.ID)
		if err != nil {
			return overdue, dueSoon, err
		}
		if sent {
			dueSoon++
		}
	}
	return overdue, dueSoon, nil
}

// CheckLowStock alerts on products at or below their reorder level unless
// an unread alert for the product is still pending.
func (s *Scheduler) CheckLowStock(ctx context.Context) (int, error) {
	low, err := s.stock.LowStock(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing low stock: %w", err)
	}
	alerted := 0
	for _, p := range low {
		pending, err := s.notifier.HasUnread(ctx, model.NotifyLowStock, p.ID)
		if err != nil {
			return alerted, err
		}
		if pending {
			continue
		}
		sent, err := s.notify(ctx, model.NotifyLowStock,
			"مخزون منخفض: "+p.Name,
			fmt.Sprintf("الكمية المتوفرة من %s (%s) هي %s وحد إعادة الطلب %s",
				p.Name, p.SKU, p.Quantity.String(), p.ReorderLevel.String()),
			p.ID)
		if err != nil {
			return alerted, err
		}
		if sent {
			alerted++
		}
	}
	return alerted, nil
}

// RunBackup runs a backup and posts the outcome as a notification.
func (s *Scheduler) RunBackup(ctx context.Context) (backup.Result, error) {
	res, err := s.backups.Run(ctx)
	if err != nil {
		if _, nerr := s.notify(ctx, model.NotifyBackup, "فشل النسخ الاحتياطي", err.Error(), ""); nerr != nil {
			s.log.WithError(nerr).Warn("backup failure notification failed")
		}
		return res, err
	}
	name := filepath.Base(res.Path)
	if _, err := s.notify(ctx, model.NotifyBackup, "تم النسخ الاحتياطي",
		fmt.Sprintf("تم حفظ %d سجل في %s", res.Documents, name), name); err != nil {
		s.log.WithError(err).Warn("backup notification failed")
	}
	return res, nil
}
