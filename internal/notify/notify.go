// Package notify stores in-app notifications and emails them when the
// business has opted in.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/daftar-erp/daftar/internal/id"
	"github.com/daftar-erp/daftar/internal/model"
	"github.com/daftar-erp/daftar/internal/store"
)

// SettingsID is the ID of the single settings document.
const SettingsID = "default"

var (
	// ErrMuted is returned by Notify when settings turn the kind off.
	ErrMuted = errors.New("notification kind is muted")
	// ErrInvalidSettings is returned for settings that cannot be saved.
	ErrInvalidSettings = errors.New("invalid notification settings")
	// ErrNotConfigured is returned by SendEmail when no sender is set up.
	ErrNotConfigured = errors.New("email is not configured")
)

// DefaultSettings enables every kind in-app and leaves email off.
func DefaultSettings() model.NotificationSettings {
	return model.NotificationSettings{
		ID:              SettingsID,
		InvoiceDue:      true,
		DaysBeforeDue:   3,
		InvoiceOverdue:  true,
		PaymentReceived: true,
		LowStock:        true,
		Backup:          true,
	}
}

type Service struct {
	notifications *store.Collection[model.Notification]
	settings      *store.Collection[model.NotificationSettings]
	sender        Sender
	log           logrus.FieldLogger
	now           func() time.Time
}

// NewService creates a notify Service. sender may be nil, in which case
// nothing is emailed.
func NewService(st *store.Store, sender Sender, log logrus.FieldLogger) *Service {
	return &Service{
		notifications: st.Notifications,
		settings:      st.NotificationSettings,
		sender:        sender,
		log:           log,
		now:           time.Now,
	}
}

// Settings returns the saved settings or the defaults.
func (s *Service) Settings(ctx context.Context) (model.NotificationSettings, error) {
	set, err := s.settings.Get(ctx, SettingsID)
	if errors.Is(err, store.ErrNotFound) {
		return DefaultSettings(), nil
	}
	return set, err
}

func (s *Service) UpdateSettings(ctx context.Context, set model.NotificationSettings) (model.NotificationSettings, error) {
	set.ID = SettingsID
	set.Email = strings.TrimSpace(set.Email)
	if set.EmailEnabled && !strings.Contains(set.Email, "@") {
		return model.NotificationSettings{}, fmt.Errorf("%w: email alerts need an address", ErrInvalidSettings)
	}
	if set.DaysBeforeDue < 0 || set.DaysBeforeDue > 60 {
		return model.NotificationSettings{}, fmt.Errorf("%w: days before due must be 0..60", ErrInvalidSettings)
	}
	if err := s.settings.Put(ctx, set); err != nil {
		return model.NotificationSettings{}, err
	}
	return set, nil
}

// Notify stores a notification and emails it when email alerts are on.
// A failed email is logged and leaves Emailed false.
func (s *Service) Notify(ctx context.Context, kind model.NotificationKind, title, message, ref string) (model.Notification, error) {
	set, err := s.Settings(ctx)
	if err != nil {
		return model.Notification{}, err
	}
	if !set.Allows(kind) {
		return model.Notification{}, fmt.Errorf("%s: %w", kind, ErrMuted)
	}

	n := model.Notification{
		ID:        id.New(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		Ref:       ref,
		CreatedAt: s.now().UTC(),
	}
	if set.EmailEnabled && s.sender != nil {
		msgID, err := s.sender.Send(ctx, Email{
			To:      []string{set.Email},
			Subject: title,
			HTML:    `<div dir="rtl"><p>` + html.EscapeString(message) + `</p></div>`,
		})
		if err != nil {
			s.log.WithError(err).WithField("kind", kind).Warn("emailing notification failed")
		} else {
			n.Emailed = true
			s.log.WithFields(logrus.Fields{"kind": kind, "message_id": msgID}).Debug("notification emailed")
		}
	}
	if err := s.notifications.Put(ctx, n); err != nil {
		return model.Notification{}, err
	}
	return n, nil
}

// SendEmail delivers an arbitrary message through the configured sender.
func (s *Service) SendEmail(ctx context.Context, e Email) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	if s.sender == nil {
		return "", ErrNotConfigured
	}
	return s.sender.Send(ctx, e)
}

// List returns notifications newest first.
func (s *Service) List(ctx context.Context, unreadOnly bool) ([]model.Notification, error) {
	all, err := s.notifications.List(ctx)
	if err != nil {
		return nil, err
	}
	if unreadOnly {
		all = slices.DeleteFunc(all, func(n model.Notification) bool { return n.Read })
	}
	slices.SortStableFunc(all, func(a, b model.Notification) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return all, nil
}

func (s *Service) MarkRead(ctx context.Context, notificationID string) (model.Notification, error) {
	n, err := s.notifications.Get(ctx, notificationID)
	if err != nil {
		return model.Notification{}, err
	}
	if n.Read {
		return n, nil
	}
	n.Read = true
	if err := s.notifications.Put(ctx, n); err != nil {
		return model.Notification{}, err
	}
	return n, nil
}

// MarkAllRead marks every unread notification read and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context) (int, error) {
	unread, err := s.List(ctx, true)
	if err != nil {
		return 0, err
	}
	for i, n := range unread {
		n.Read = true
		if err := s.notifications.Put(ctx, n); err != nil {
			return i, err
		}
	}
	return len(unread), nil
}

func (s *Service) Delete(ctx context.Context, notificationID string) error {
	return s.notifications.Delete(ctx, notificationID)
}

// Exists reports whether a notification of kind already refers to ref.
// The scheduler uses it to avoid repeating alerts.
func (s *Service) Exists(ctx context.Context, kind model.NotificationKind, ref string) (bool, error) {
	all, err := s.notifications.List(ctx)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(all, func(n model.Notification) bool {
		return n.Kind == kind && n.Ref == ref
	}), nil
}

// HasUnread is Exists limited to notifications not yet read, for alerts that
// may repeat once acknowledged.
func (s *Service) HasUnread(ctx context.Context, kind model.NotificationKind, ref string) (bool, error) {
	unread, err := s.List(ctx, true)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(unread, func(n model.Notification) bool {
		return n.Kind == kind && n.Ref == ref
	}), nil
}
