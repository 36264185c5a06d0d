// Package backup snapshots the document store to JSON files and restores them.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/daftar-erp/daftar/internal/config"
	"github.com/daftar-erp/daftar/internal/gitops"
	"github.com/daftar-erp/daftar/internal/model"
	"github.com/daftar-erp/daftar/internal/store"
)

// SettingsID is the ID of the single settings document.
const SettingsID = "default"

const (
	filePrefix = "backup-"
	fileSuffix = ".json"
	stampFmt   = "20060102T150405Z"

	maxPerSecond = 99
)

// ErrInvalidSettings is returned for settings that cannot be saved.
var ErrInvalidSettings = errors.New("invalid backup settings")

// File is the on-disk backup document.
type File struct {
	CreatedAt   time.Time      `json:"created_at"`
	Business    string         `json:"business"`
	Collections store.Snapshot `json:"collections"`
}

// Result describes one completed run.
type Result struct {
	Path      string   `json:"path"`
	Documents int      `json:"documents"`
	Pruned    []string `json:"pruned,omitempty"`
	Commit    string   `json:"commit,omitempty"`
}

type Service struct {
	mu       sync.Mutex
	store    *store.Store
	repoRoot string
	cfg      config.BackupConfig
	business string
	git      config.GitConfig
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewService(st *store.Store, repoRoot string, cfg *config.Config, log logrus.FieldLogger) *Service {
	return &Service{
		store:    st,
		repoRoot: repoRoot,
		cfg:      cfg.Backup,
		business: cfg.Business.Name,
		git:      cfg.Git,
		log:      log,
		now:      time.Now,
	}
}

// Dir is where backup files are written.
func (s *Service) Dir() string {
	dir := s.cfg.Dir
	if dir == "" {
		dir = "backups"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(s.repoRoot, dir)
}

// Settings returns the saved settings, or ones derived from daftar.yaml.
func (s *Service) Settings(ctx context.Context) (model.BackupSettings, error) {
	set, err := s.store.BackupSettings.Get(ctx, SettingsID)
	if errors.Is(err, store.ErrNotFound) {
		return model.BackupSettings{ID: SettingsID, Enabled: s.cfg.Enabled, Schedule: s.cfg.Schedule, Retain: s.cfg.Retain}, nil
	}
	return set, err
}

// UpdateSettings validates the cron schedule and retention and saves them.
// The last-run fields are kept from the stored settings.
func (s *Service) UpdateSettings(ctx context.Context, set model.BackupSettings) (model.BackupSettings, error) {
	set.Schedule = strings.TrimSpace(set.Schedule)
	if _, err := cron.ParseStandard(set.Schedule); err != nil {
		return model.BackupSettings{}, fmt.Errorf("%w: schedule %q: %v", ErrInvalidSettings, set.Schedule, err)
	}
	if set.Retain < 1 {
		return model.BackupSettings{}, fmt.Errorf("%w: retain must be at least 1", ErrInvalidSettings)
	}
	current, err := s.Settings(ctx)
	if err != nil {
		return model.BackupSettings{}, err
	}
	set.ID = SettingsID
	set.LastRunAt = current.LastRunAt
	set.LastResult = current.LastResult
	if err := s.store.BackupSettings.Put(ctx, set); err != nil {
		return model.BackupSettings{}, err
	}
	return set, nil
}

// Run writes a snapshot, prunes old files beyond the retention count and,
// with git auto-commit on, commits the project.
func (s *Service) Run(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.run(ctx)
	set, serr := s.Settings(ctx)
	if serr == nil {
		set.LastRunAt = s.now().UTC()
		if err != nil {
			set.LastResult = "failed: " + err.Error()
		} else {
			set.LastResult = fmt.Sprintf("ok: %s (%d documents)", filepath.Base(res.Path), res.Documents)
		}
		if perr := s.store.BackupSettings.Put(ctx, set); perr != nil {
			s.log.WithError(perr).Warn("saving backup status failed")
		}
	}
	return res, err
}

func (s *Service) run(ctx context.Context) (Result, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("snapshot: %w", err)
	}
	now := s.now().UTC()
	doc := File{CreatedAt: now, Business: s.business, Collections: snap}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("encoding backup: %w", err)
	}

	dir := s.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating backup dir: %w", err)
	}
	path, err := reserve(dir, now.Format(stampFmt))
	if err != nil {
		return Result{}, err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(path)
		return Result{}, fmt.Errorf("writing backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		os.Remove(path)
		return Result{}, fmt.Errorf("writing backup: %w", err)
	}

	res := Result{Path: path}
	for _, coll := range snap {
		res.Documents += len(coll)
	}

	set, err := s.Settings(ctx)
	if err != nil {
		return res, err
	}
	res.Pruned, err = s.prune(set.Retain)
	if err != nil {
		return res, err
	}

	if s.git.AutoCommit && gitops.IsRepo(s.repoRoot) {
		hash, err := gitops.Commit(ctx, s.repoRoot, "backup: "+filepath.Base(path), gitops.Author{Name: s.git.AuthorName, Email: s.git.AuthorEmail})
		switch {
		case errors.Is(err, gitops.ErrNothingToCommit):
		case err != nil:
			return res, fmt.Errorf("committing: %w", err)
		default:
			res.Commit = hash
		}
	}
	s.log.WithFields(logrus.Fields{"path": path, "documents": res.Documents, "pruned": len(res.Pruned)}).Info("backup written")
	return res, nil
}

// reserve claims a backup file name for stamp. Runs within the same second
// get a _NN suffix, which sorts after the bare name.
func reserve(dir, stamp string) (string, error) {
	for n := 1; n <= maxPerSecond; n++ {
		name := filePrefix + stamp + fileSuffix
		if n > 1 {
			name = fmt.Sprintf("%s%s_%02d%s", filePrefix, stamp, n, fileSuffix)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating backup file: %w", err)
		}
		return path, f.Close()
	}
	return "", fmt.Errorf("more than %d backups at %s", maxPerSecond, stamp)
}

// List returns backup file paths, newest first.
func (s *Service) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir(), filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	// The timestamp format sorts lexically.
	slices.Sort(matches)
	slices.Reverse(matches)
	return matches, nil
}

func (s *Service) prune(retain int) ([]string, error) {
	if retain < 1 {
		return nil, nil
	}
	files, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(files) <= retain {
		return nil, nil
	}
	var pruned []string
	for _, path := range files[retain:] {
		if err := os.Remove(path); err != nil {
			return pruned, fmt.Errorf("pruning %s: %w", path, err)
		}
		pruned = append(pruned, path)
	}
	return pruned, nil
}

// Restore replaces the store contents with a backup file.
func (s *Service) Restore(ctx context.Context, path string) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading backup: %w", err)
	}
	var doc File
	if err := json.Unmarshal(data, &doc); err != nil {
		return File{}, fmt.Errorf("parsing backup %s: %w", filepath.Base(path), err)
	}
	if doc.Collections == nil {
		return File{}, fmt.Errorf("backup %s has no collections", filepath.Base(path))
	}
	if err := s.store.Restore(ctx, doc.Collections); err != nil {
		return File{}, fmt.Errorf("restoring: %w", err)
	}
	s.log.WithField("path", path).Info("backup restored")
	return doc, nil
}
