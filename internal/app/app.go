// Package app wires up and runs the application services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/skobkin/proctop-web/internal/config"
	"github.com/skobkin/proctop-web/internal/httpserver"
	"github.com/skobkin/proctop-web/internal/monitor"
	"github.com/skobkin/proctop-web/internal/proc"
)

const shutdownTimeout = 10 * time.Second

// NewMonitor opens the proc reader described by cfg and wraps it in a Manager.
func NewMonitor(baseLogger *slog.Logger, cfg config.Config) (*monitor.Manager, error) {
	paths := proc.Paths{
		ProcRoot:      cfg.Paths.ProcRoot,
		OSReleasePath: cfg.Paths.OSReleasePath,
		PasswdPath:    cfg.Paths.PasswdPath,
	}
	reader, err := proc.NewReader(paths, cfg.ClockTicks, baseLogger.With("component", "proc_reader"))
	if err != nil {
		return nil, fmt.Errorf("init proc reader: %w", err)
	}
	manager, err := monitor.NewManager(cfg.SampleInterval, cfg.Proc, reader, baseLogger.With("component", "monitor"))
	if err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("init monitor: %w", err)
	}
	return manager, nil
}

// Run bootstraps the application lifecycle.
func Run(ctx context.Context, baseLogger *slog.Logger, cfg config.Config) error {
	appLogger := baseLogger.With("component", "app")

	manager, err := NewMonitor(baseLogger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Close(); err != nil {
			appLogger.Warn("monitor close", "err", err)
		}
	}()
	appLogger.Info("proc reader ready", "proc_root", cfg.Paths.ProcRoot, "clock_ticks", manager.ClockTicks())

	monitorCtx, monitorCancel := context.WithCancel(ctx)
	defer monitorCancel()

	monitorErrCh := make(chan error, 1)
	go func() {
		monitorErrCh <- manager.Run(monitorCtx)
	}()

	srv := httpserver.New(cfg, baseLogger.With("component", "http"), manager)

	appLogger.Info("starting HTTP server", "listen_addr", cfg.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stopMonitor := func() error {
		monitorCancel()
		if monitorErrCh == nil {
			return nil
		}
		if err := <-monitorErrCh; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	for {
		select {
		case err := <-errCh:
			if stopErr := stopMonitor(); err == nil {
				err = stopErr
			}
			return err
		case err := <-monitorErrCh:
			monitorErrCh = nil
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		case <-ctx.Done():
			appLogger.Info("shutdown initiated", "reason", ctx.Err())

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("http shutdown: %w", err)
			}
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			if err := stopMonitor(); err != nil {
				return err
			}

			appLogger.Info("shutdown complete")
			return nil
		}
	}
}
