package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/daftar-erp/daftar/internal/app"
	"github.com/daftar-erp/daftar/internal/config"
	"github.com/daftar-erp/daftar/internal/gitops"
	"github.com/daftar-erp/daftar/internal/logging"
)

const dateFlagLayout = "2006-01-02"

func repoFlag(cmd *cobra.Command, dir *string) {
	cmd.Flags().StringVar(dir, "repo", ".", "project directory")
}

// openProject loads the project's config and env file, builds a logger
// from the log section and wires the services.
func openProject(ctx context.Context, repoDir string) (*app.App, error) {
	root, err := filepath.Abs(repoDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if err := config.LoadEnv(root); err != nil {
		return nil, err
	}
	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.JSON)
	return app.New(ctx, root, cfg, log)
}

// commit records the project change in git when auto-commit is on. Failures
// are reported as warnings; the change itself already succeeded.
func commit(ctx context.Context, a *app.App, message string) {
	if !a.Config.Git.AutoCommit || !gitops.IsRepo(a.Root) {
		return
	}
	_, err := gitops.Commit(ctx, a.Root, message, gitops.Author{Name: a.Config.Git.AuthorName, Email: a.Config.Git.AuthorEmail})
	if err != nil && !errors.Is(err, gitops.ErrNothingToCommit) {
		fmt.Fprintf(os.Stderr, "warning: git commit failed: %v\n", err)
	}
}

func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateFlagLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}
