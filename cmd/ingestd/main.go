package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/ingestd/internal/config"
	"github.com/abdul-hamid-achik/ingestd/internal/dedup"
	"github.com/abdul-hamid-achik/ingestd/internal/health"
	"github.com/abdul-hamid-achik/ingestd/internal/httpapi"
	"github.com/abdul-hamid-achik/ingestd/internal/logger"
	"github.com/abdul-hamid-achik/ingestd/internal/metrics"
	"github.com/abdul-hamid-achik/ingestd/internal/objectstore"
	"github.com/abdul-hamid-achik/ingestd/internal/sessionstore"
	"github.com/abdul-hamid-achik/ingestd/internal/staging"
	"github.com/abdul-hamid-achik/ingestd/internal/sweeper"
	"github.com/abdul-hamid-achik/ingestd/internal/upload"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "ingestd",
		Short: "Resumable chunked-upload ingest server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	if err := root.Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Default()
	log.Info("configuration loaded", "environment", cfg.Environment, "port", cfg.Port)

	if err := os.MkdirAll(cfg.StorageRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create storage root: %w", err)
	}
	if err := os.MkdirAll(cfg.StagingRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create staging root: %w", err)
	}

	store, err := sessionstore.Open(cfg.SessionDBDSN, log)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	stagingArea := staging.New(cfg.StagingRoot)
	objects := objectstore.New(cfg.StorageRoot)
	dedupIndex := dedup.New(cfg.StorageRoot + "/md5_index.json")

	mgr := upload.New(upload.Config{
		Store:        store,
		Staging:      stagingArea,
		Dedup:        dedupIndex,
		Objects:      objects,
		ChunkSize:    cfg.ChunkSize,
		MaxFileSize:  cfg.MaxFileSize,
		AllowedTypes: cfg.AllowedTypes,
		Logger:       log,
	})

	checker := health.NewChecker(store, cfg.StagingRoot, cfg.StorageRoot)

	metrics.SetAppInfo("1.0.0", cfg.Environment, "ingestd")

	sw := sweeper.New(stagingArea, objects, cfg.ChunkTimeout, cfg.RetentionDays, log)
	scheduler, err := sweeper.NewScheduler(sw)
	if err != nil {
		return fmt.Errorf("failed to start sweeper scheduler: %w", err)
	}
	defer scheduler.Stop()
	log.Info("sweeper scheduled", "chunk_timeout", cfg.ChunkTimeout, "retention_days", cfg.RetentionDays)

	handler := httpapi.NewRouter(httpapi.Config{Manager: mgr, Checker: checker, Config: cfg})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port, "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			_ = server.Close()
			return fmt.Errorf("forced shutdown: %w", err)
		}
	}

	log.Info("server stopped gracefully")
	return nil
}
