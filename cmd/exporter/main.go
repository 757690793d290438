package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/handelsbanken-explorer/internal/app"
	"github.com/samvad-hq/handelsbanken-explorer/internal/config"
	"github.com/samvad-hq/handelsbanken-explorer/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "exporter failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("exporter starting", "config", map[string]any{
		"country":         cfg.Country,
		"output_file":     cfg.OutputFile,
		"publishers_file": cfg.PublishersFile,
		"storage_type":    cfg.StorageType,
		"sync_interval":   cfg.SyncInterval.String(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exporter, err := app.NewExporter(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize exporter", "error", err.Error())
		return err
	}

	if err := exporter.Run(ctx); err != nil {
		return fmt.Errorf("exporter run: %w", err)
	}
	return nil
}
