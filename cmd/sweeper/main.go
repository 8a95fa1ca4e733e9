package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/abdul-hamid-achik/ingestd/internal/config"
	"github.com/abdul-hamid-achik/ingestd/internal/logger"
	"github.com/abdul-hamid-achik/ingestd/internal/objectstore"
	"github.com/abdul-hamid-achik/ingestd/internal/staging"
	"github.com/abdul-hamid-achik/ingestd/internal/sweeper"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "sweeper",
		Short: "Runs one pass of the lifecycle sweeper: staging and object purge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	if err := root.Execute(); err != nil {
		slog.Error("sweeper failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Default()

	log.Info("starting sweeper pass")
	start := time.Now()

	stagingArea := staging.New(cfg.StagingRoot)
	objects := objectstore.New(cfg.StorageRoot)

	sw := sweeper.New(stagingArea, objects, cfg.ChunkTimeout, cfg.RetentionDays, log)
	sw.PurgeExpiredStaging()
	sw.PurgeExpiredObjects()

	log.Info("sweeper pass completed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}
