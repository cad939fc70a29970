package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexbarcelo/netbox-dns-handler/internal/health"
)

// newCmdServe returns the long-running command: periodic reconciliation
// plus the health and metrics server.
func newCmdServe(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Reconcile periodically and serve /health, /ready and /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	cfg, logger := a.cfg, a.logger

	logger.Info("netbox-dns-handler starting",
		slog.String("version", Version),
		slog.String("build_date", BuildDate),
		slog.String("go_version", runtime.Version()),
		slog.Bool("dry_run", cfg.DryRun),
		slog.String("root_domain", cfg.RootDomain),
	)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	src, err := a.newSource()
	if err != nil {
		return err
	}
	runner, err := a.newRunner(st, src)
	if err != nil {
		return err
	}

	healthServer := health.New(cfg.HealthPort, health.WithLogger(logger))
	healthServer.RegisterChecker("store", st.Ping)
	healthServer.RegisterChecker("inventory:"+src.Name(), src.Ping)
	healthServer.RegisterDegradedChecker("reconciler", func(context.Context) (bool, string) {
		last, err := runner.LastRun()
		if err != nil {
			return true, fmt.Sprintf("last run at %s failed: %v", last.Format(time.RFC3339), err)
		}
		return false, ""
	})

	if err := healthServer.Start(); err != nil {
		return fmt.Errorf("starting health server: %w", err)
	}

	triggerReconcile := func() {
		result, err := runner.Run(ctx)
		if err != nil {
			// Logged by the runner; the next tick retries.
			return
		}
		if result.HasErrors() {
			logger.Warn("reconciliation finished with failed actions",
				slog.Int("failed", result.FailedCount()),
			)
		}
	}

	// Run initial reconciliation
	logger.Info("running initial reconciliation")
	triggerReconcile()

	go func() {
		ticker := time.NewTicker(cfg.ReconcileInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Debug("periodic reconciliation triggered",
					slog.Duration("interval", cfg.ReconcileInterval),
				)
				triggerReconcile()
			}
		}
	}()

	logger.Info("netbox-dns-handler initialized",
		slog.Duration("interval", cfg.ReconcileInterval),
		slog.String("inventory", src.Name()),
		slog.Int("service_mappings", len(cfg.Services.Mappings)),
		slog.Int("health_port", cfg.HealthPort),
	)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	cancel()

	// Shutdown health server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown error", slog.String("error", err.Error()))
	}

	// An in-flight run finishes before the store closes.
	runner.Wait()

	logger.Info("netbox-dns-handler shutdown complete")
	return nil
}
