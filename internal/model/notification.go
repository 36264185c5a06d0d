package model

import "time"

// NotificationKind classifies notifications for filtering and settings.
type NotificationKind string

const (
	NotifyInvoiceDue      NotificationKind = "invoice_due"
	NotifyInvoiceOverdue  NotificationKind = "invoice_overdue"
	NotifyPaymentReceived NotificationKind = "payment_received"
	NotifyLowStock        NotificationKind = "low_stock"
	NotifyBackup          NotificationKind = "backup"
	NotifySystem          NotificationKind = "system"
)

// Notification is an in-app message.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Ref       string           `json:"ref,omitempty"` // related document ID
	Read      bool             `json:"read"`
	Emailed   bool             `json:"emailed"`
	CreatedAt time.Time        `json:"created_at"`
}

// GetID implements store.Entity.
func (n Notification) GetID() string { return n.ID }

// NotificationSettings controls which events notify and whether they are emailed.
type NotificationSettings struct {
	ID              string `json:"id"` // singleton "default"
	EmailEnabled    bool   `json:"email_enabled"`
	Email           string `json:"email,omitempty"`
	InvoiceDue      bool   `json:"invoice_due"`
	DaysBeforeDue   int    `json:"days_before_due"`
	InvoiceOverdue  bool   `json:"invoice_overdue"`
	PaymentReceived bool   `json:"payment_received"`
	LowStock        bool   `json:"low_stock"`
	Backup          bool   `json:"backup"`
}

// GetID implements store.Entity.
func (s NotificationSettings) GetID() string { return s.ID }

// Allows reports whether notifications of kind are enabled.
func (s NotificationSettings) Allows(kind NotificationKind) bool {
	switch kind {
	case NotifyInvoiceDue:
		return s.InvoiceDue
	case NotifyInvoiceOverdue:
		return s.InvoiceOverdue
	case NotifyPaymentReceived:
		return s.PaymentReceived
	case NotifyLowStock:
		return s.LowStock
	case NotifyBackup:
		return s.Backup
	default:
		return true
	}
}

// BackupSettings controls scheduled backups.
type BackupSettings struct {
	ID         string    `json:"id"` // singleton "default"
	Enabled    bool      `json:"enabled"`
	Schedule   string    `json:"schedule"` // cron expression
	Retain     int       `json:"retain"`
	LastRunAt  time.Time `json:"last_run_at,omitempty"`
	LastResult string    `json:"last_result,omitempty"`
}

// GetID implements store.Entity.
func (s BackupSettings) GetID() string { return s.ID }
