package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/daftar-erp/daftar/internal/analysis"
	"github.com/daftar-erp/daftar/internal/api"
	"github.com/daftar-erp/daftar/internal/logging"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	var repoDir, addr string
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, repoDir, addr, !noScheduler)
		},
	}

	repoFlag(cmd, &repoDir)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr in daftar.yaml)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run backups and reminder sweeps")

	return cmd
}

func runServe(ctx context.Context, repoDir, addr string, withScheduler bool) error {
	a, err := openProject(ctx, repoDir)
	if err != nil {
		return err
	}
	defer a.Close()
	log := logging.WithComponent(a.Log, "serve")

	if addr == "" {
		addr = a.Config.Server.Addr
	}
	secret := a.Config.Secret(a.Config.Auth.JWTSecretEnv)
	if secret == "" {
		log.Warnf("%s is not set; the API accepts unauthenticated requests", a.Config.Auth.JWTSecretEnv)
	}

	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	jobs := analysis.NewJobs(jobsCtx, a.Analyzer, logging.WithComponent(a.Log, "analysis"))

	opts := api.Options{JWTSecret: []byte(secret), Jobs: jobs}
	if withScheduler {
		sched := a.Scheduler()
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				log.WithError(err).Warn("scheduler did not stop cleanly")
			}
		}()
		opts.Scheduler = sched
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.New(a, opts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	cancelJobs()
	jobs.Wait()
	return nil
}
