/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the prayer ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, PRAYER_* variables, flags)
  2. Build the zap logger
  3. Open the ledger store (sqlite, redis or memory)
  4. Create the session registry, content source and metrics
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  --port      HTTP server port (default: 8080)
  --store     sqlite | redis | memory (default: sqlite)
  --db        SQLite database path (default: prayer.db)
              Use ":memory:" for in-memory database
  --timezone  Zone that defines the prayer day (default: Local)
  Run with --help for the full list.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the save-retry scheduler, then save every open ledger
  4. Close the store
  5. Exit

EXAMPLES:
  # Run with file database
  ./server --db="./data/prayer.db"

  # Run against Redis
  PRAYER_STORE=redis PRAYER_REDIS_ADDR=cache:6379 ./server

SEE ALSO:
  - config/config.go: All settings
  - api/server.go: Router configuration
  - streak/registry.go: Per-user sessions
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/warp/prayer-ledger/api"
	"github.com/warp/prayer-ledger/config"
	"github.com/warp/prayer-ledger/content"
	"github.com/warp/prayer-ledger/generic"
	"github.com/warp/prayer-ledger/generic/store"
	"github.com/warp/prayer-ledger/logging"
	"github.com/warp/prayer-ledger/metrics"
	"github.com/warp/prayer-ledger/store/redis"
	"github.com/warp/prayer-ledger/store/sqlite"
	"github.com/warp/prayer-ledger/streak"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Initialize store
	ledgers, closer, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize %s store: %w", cfg.Store, err)
	}
	defer closer.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	sessions := streak.NewRegistry(streak.SessionConfig{
		Store:    ledgers,
		Clock:    generic.SystemClock{},
		Location: loc,
		Logger:   logger,
		Metrics:  collector,
	})

	handler := api.NewHandler(sessions, content.NewFileSource(cfg.ContentDir, cfg.DefaultLocale), logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins:  cfg.CORSOrigins,
		SubmitPerMinute: cfg.SubmitPerMinute,
		Metrics:         collector,
		MetricsHandler:  metrics.Handler(reg),
	})

	retries := api.NewSaveRetryScheduler(sessions, logger)
	retries.CheckInterval = cfg.SaveRetryInterval
	retries.Enabled = cfg.SaveRetryInterval > 0
	retries.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("store", cfg.Store),
			zap.String("timezone", loc.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	retries.Stop()
	if err := sessions.Flush(ctx); err != nil {
		logger.Warn("some ledgers were not saved", zap.Error(err))
	}

	logger.Info("server stopped", zap.Int("sessions", sessions.Len()))
	return nil
}

// openStore returns the configured ledger store and what to close on exit.
func openStore(cfg config.Config, logger *zap.Logger) (generic.Store, io.Closer, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		s, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		records, err := s.ListLedgers(context.Background())
		if err != nil {
			s.Close()
			return nil, nil, err
		}
		fields := []zap.Field{zap.String("path", cfg.DBPath), zap.Int("ledgers", len(records))}
		if len(records) > 0 && records[0].LastPrayedAt != nil {
			fields = append(fields, zap.Time("last_prayed_at", *records[0].LastPrayedAt))
		}
		logger.Info("sqlite store opened", fields...)
		return s, s, nil
	case config.StoreRedis:
		s, err := redis.Dial(context.Background(), redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return store.NewMemory(), io.NopCloser(nil), nil
	}
}
