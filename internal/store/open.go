package store

import (
	"context"
	"fmt"
	"path/filepath"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// DefaultFile is the file backend's location relative to the repo root.
const DefaultFile = "data/store.json"

// Open builds a Store for driver. repoRoot locates the file backend and dsn
// is only used by postgres.
func Open(ctx context.Context, driver, repoRoot, dsn string) (*Store, error) {
	switch driver {
	case DriverMemory:
		return New(NewMemory()), nil
	case DriverFile, "":
		f, err := OpenFile(filepath.Join(repoRoot, DefaultFile))
		if err != nil {
			return nil, err
		}
		return New(f), nil
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres store needs a DSN")
		}
		pg, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return New(pg), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
