// Package store persists business records as JSON documents grouped into
// collections. Backends are interchangeable: in-memory, a JSON file on disk,
// or a Postgres table.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/daftar-erp/daftar/internal/model"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// Collection names.
const (
	Customers            = "customers"
	Vendors              = "vendors"
	Products             = "products"
	Invoices             = "invoices"
	Purchases            = "purchases"
	Payments             = "payments"
	Expenses             = "expenses"
	Employees            = "employees"
	PayrollRuns          = "payroll_runs"
	Notifications        = "notifications"
	NotificationSettings = "notification_settings"
	BackupSettings       = "backup_settings"
)

// Entity is anything stored by ID.
type Entity interface {
	GetID() string
}

// Backend stores raw JSON documents.
type Backend interface {
	Get(ctx context.Context, collection, id string) ([]byte, error)
	// List returns the documents of a collection ordered by ID.
	List(ctx context.Context, collection string) ([][]byte, error)
	Put(ctx context.Context, collection, id string, data []byte) error
	Delete(ctx context.Context, collection, id string) error
	Collections(ctx context.Context) ([]string, error)
	Close() error
}

// Collection is a typed view over one backend collection.
type Collection[T Entity] struct {
	backend Backend
	name    string
}

// NewCollection returns a typed collection.
func NewCollection[T Entity](backend Backend, name string) *Collection[T] {
	return &Collection[T]{backend: backend, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Get loads one record.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var v T
	data, err := c.backend.Get(ctx, c.name, id)
	if err != nil {
		return v, fmt.Errorf("%s %s: %w", c.name, id, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decoding %s %s: %w", c.name, id, err)
	}
	return v, nil
}

// List loads every record in ID order.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	docs, err := c.backend.List(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", c.name, err)
	}
	out := make([]T, 0, len(docs))
	for _, data := range docs {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", c.name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Put creates or replaces a record.
func (c *Collection[T]) Put(ctx context.Context, v T) error {
	id := v.GetID()
	if id == "" {
		return fmt.Errorf("%s: record has no id", c.name)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s %s: %w", c.name, id, err)
	}
	if err := c.backend.Put(ctx, c.name, id, data); err != nil {
		return fmt.Errorf("saving %s %s: %w", c.name, id, err)
	}
	return nil
}

// Delete removes a record.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := c.backend.Delete(ctx, c.name, id); err != nil {
		return fmt.Errorf("deleting %s %s: %w", c.name, id, err)
	}
	return nil
}

// Store groups the collections used by the services.
type Store struct {
	Backend              Backend
	Customers            *Collection[model.Customer]
	Vendors              *Collection[model.Vendor]
	Products             *Collection[model.Product]
	Invoices             *Collection[model.Invoice]
	Purchases            *Collection[model.Purchase]
	Payments             *Collection[model.Payment]
	Expenses             *Collection[model.Expense]
	Employees            *Collection[model.Employee]
	PayrollRuns          *Collection[model.PayrollRun]
	Notifications        *Collection[model.Notification]
	NotificationSettings *Collection[model.NotificationSettings]
	BackupSettings       *Collection[model.BackupSettings]
}

// New wires every collection onto backend.
func New(backend Backend) *Store {
	return &Store{
		Backend:              backend,
		Customers:            NewCollection[model.Customer](backend, Customers),
		Vendors:              NewCollection[model.Vendor](backend, Vendors),
		Products:             NewCollection[model.Product](backend, Products),
		Invoices:             NewCollection[model.Invoice](backend, Invoices),
		Purchases:            NewCollection[model.Purchase](backend, Purchases),
		Payments:             NewCollection[model.Payment](backend, Payments),
		Expenses:             NewCollection[model.Expense](backend, Expenses),
		Employees:            NewCollection[model.Employee](backend, Employees),
		PayrollRuns:          NewCollection[model.PayrollRun](backend, PayrollRuns),
		Notifications:        NewCollection[model.Notification](backend, Notifications),
		NotificationSettings: NewCollection[model.NotificationSettings](backend, NotificationSettings),
		BackupSettings:       NewCollection[model.BackupSettings](backend, BackupSettings),
	}
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.Backend.Close()
}

// Snapshot is every document keyed by collection then ID.
type Snapshot map[string]map[string]json.RawMessage

// Snapshot copies the whole backend.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	names, err := s.Backend.Collections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	snap := make(Snapshot, len(names))
	for _, name := range names {
		docs, err := s.Backend.List(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", name, err)
		}
		coll := make(map[string]json.RawMessage, len(docs))
		for _, data := range docs {
			var head struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(data, &head); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", name, err)
			}
			coll[head.ID] = json.RawMessage(data)
		}
		snap[name] = coll
	}
	return snap, nil
}

// Restore makes the backend match snap. Collections the backend holds but
// snap lacks were empty when the snapshot was taken, so they are emptied.
func (s *Store) Restore(ctx context.Context, snap Snapshot) error {
	held, err := s.Backend.Collections(ctx)
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}
	names := slices.Clone(held)
	for name := range snap {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		docs, err := s.Backend.List(ctx, name)
		if err != nil {
			return fmt.Errorf("listing %s: %w", name, err)
		}
		for _, data := range docs {
			var head struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(data, &head); err != nil {
				return fmt.Errorf("decoding %s: %w", name, err)
			}
			if _, keep := snap[name][head.ID]; keep {
				continue
			}
			if err := s.Backend.Delete(ctx, name, head.ID); err != nil {
				return fmt.Errorf("clearing %s %s: %w", name, head.ID, err)
			}
		}
		for id, data := range snap[name] {
			if err := s.Backend.Put(ctx, name, id, data); err != nil {
				return fmt.Errorf("restoring %s %s: %w", name, id, err)
			}
		}
	}
	return nil
}
