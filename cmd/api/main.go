package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bryanwahyu/contract-analysis/internal/bootstrap"
	"github.com/bryanwahyu/contract-analysis/internal/config"
	"github.com/bryanwahyu/contract-analysis/internal/infra/httpserver"
	"github.com/bryanwahyu/contract-analysis/internal/logging"
	"github.com/bryanwahyu/contract-analysis/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	log := logging.New("api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// schema migration runs here, once, before the listener opens
	db, dialect, err := bootstrap.OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("database ready", "driver", cfg.Database.Driver)

	store, err := bootstrap.OpenFileStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("minio init: %w", err)
	}

	metrics := middleware.NewMetrics()
	deps := bootstrap.Deps{Metrics: metrics, Logger: logging.New("pipeline")}
	health := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}
	if store != nil {
		deps.Files = store
		health["storage"] = middleware.CheckFunc(store.Ping)
	} else {
		log.Warn("minio not configured, upload endpoint disabled")
	}

	svc, err := bootstrap.NewService(ctx, cfg, db, dialect, deps)
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSecond)
	defer limiter.Close()

	var ready atomic.Bool
	handler := httpserver.NewRouter(httpserver.Options{
		Service:           svc,
		Metrics:           metrics,
		Limiter:           limiter,
		APIKeys:           cfg.Auth.APIKeys,
		CORSOrigins:       cfg.Server.CORSOrigins,
		Health:            health,
		Ready:             &ready,
		AllowPrivateHosts: cfg.Extractor.AllowPrivateHosts,
		MaxUploadBytes:    cfg.Server.MaxUploadBytes,
		Logger:            logging.New("http"),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	ready.Store(true)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// graceful shutdown
	log.Info("shutting down server")
	ready.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
