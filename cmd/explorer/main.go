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
		fmt.Fprintf(os.Stderr, "explorer failed: %v\n", err)
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

	logger.DebugObj("explorer starting", "config", map[string]any{
		"country":  cfg.Country,
		"base_url": cfg.BaseURL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	explorer, err := app.NewExplorer(cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize explorer", "error", err.Error())
		return err
	}

	if err := explorer.Run(ctx, os.Stdout); err != nil {
		return fmt.Errorf("explorer run: %w", err)
	}
	return nil
}
