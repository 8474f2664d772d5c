package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/gatekeeper/internal/app"
	"github.com/allisson/gatekeeper/internal/config"
)

// RunServer starts the API server and its background workers: the metrics
// server, the alert dispatcher, the anomaly monitor cleanup and the session
// sweeper. Blocks until SIGINT/SIGTERM or until any of them fails, then shuts
// everything down within the configured grace period.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger)

	// Initializes every dependency; fails fast on bad KEKs, policy or storage
	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}
	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}
	dispatcher, err := container.Dispatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize alert dispatcher: %w", err)
	}
	monitor, err := container.Monitor()
	if err != nil {
		return fmt.Errorf("failed to initialize monitor: %w", err)
	}
	sessions, err := container.SessionStore()
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := server.Start(groupCtx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})
	if metricsServer != nil {
		group.Go(func() error {
			if err := metricsServer.Start(groupCtx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return dispatcher.Run(groupCtx)
	})
	group.Go(func() error {
		return monitor.Run(groupCtx, cfg.MonitorCleanupInterval)
	})
	group.Go(func() error {
		return sessions.Run(groupCtx, cfg.SessionSweepInterval, cfg.SessionIdleTimeout)
	})

	// Servers do not watch the context, so stop them once anything finishes
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown initiated")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		var shutdownErrors []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}
		return errors.Join(shutdownErrors...)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("server stopped")
	return nil
}
