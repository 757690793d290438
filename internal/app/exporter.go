package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/handelsbanken-explorer/internal/config"
	"github.com/samvad-hq/handelsbanken-explorer/internal/export"
	"github.com/samvad-hq/handelsbanken-explorer/internal/logger"
	"github.com/samvad-hq/handelsbanken-explorer/internal/pipeline"
	"github.com/samvad-hq/handelsbanken-explorer/internal/storage"
	"github.com/samvad-hq/handelsbanken-explorer/pkg/publishers"
)

// Exporter is the export runtime. It owns the CSV writer, the storage backend and
// the publisher fanout, and drives export passes through the pipeline service.
type Exporter struct {
	cfg          *config.Config
	service      *pipeline.Service
	writer       *export.Writer
	fanout       *publishers.Fanout
	store        storage.Store
	syncInterval time.Duration
	log          logger.Logger
}

// NewExporter builds an exporter runtime from config. Publishers are optional.
func NewExporter(ctx context.Context, cfg *config.Config, log logger.Logger) (_ *Exporter, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if err := cfg.ValidateSync(); err != nil {
		return nil, err
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := newBankClient(cfg, log)
	if err != nil {
		return nil, err
	}

	e := &Exporter{cfg: cfg, syncInterval: cfg.SyncInterval, log: log}
	defer func() {
		if err != nil {
			e.close()
		}
	}()

	e.fanout, err = buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		return nil, err
	}

	e.store, err = storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		TransactionTTL:  cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"transaction_ttl_seconds":  int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	// A persistent ledger only lets new rows through, so the file must keep earlier ones.
	openOutput := export.Create
	if storage.Persistent(cfg.StorageType) {
		openOutput = export.Append
	}
	e.writer, err = openOutput(cfg.OutputFile)
	if err != nil {
		return nil, err
	}

	var pub pipeline.EventPublisher
	if e.fanout.Size() > 0 {
		pub = e.fanout
	}
	e.service = pipeline.NewService(client, e.writer, pub, e.store, log, pipeline.Options{
		Country:           client.Endpoints().Country,
		SkipAuthorization: cfg.SkipAuthorization,
	})
	return e, nil
}

func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(path) == "" {
		log.InfoObj("no publishers file configured", "publishers_file", path)
		return publishers.NewFanout(nil, log), nil
	}

	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{"id": pubCfg.ID, "type": pubCfg.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubs, log), nil
}

// Run executes one export pass, or keeps exporting every sync interval until the
// context is cancelled. Resources are released when Run returns.
func (e *Exporter) Run(ctx context.Context) error {
	if e == nil || e.service == nil {
		return fmt.Errorf("exporter is not initialized")
	}
	defer e.close()

	if e.syncInterval <= 0 {
		return e.runOnce(ctx)
	}

	e.log.InfoObj("exporter loop starting", "exporter_state", map[string]any{
		"output_file":      e.cfg.OutputFile,
		"publishers_count": e.fanout.Size(),
		"sync_interval":    e.syncInterval.String(),
	})

	if err := e.runOnce(ctx); err != nil {
		e.log.ErrorObj("initial export failed", "error", err.Error())
	}

	ticker := time.NewTicker(e.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.InfoObj("exporter loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			if err := e.runOnce(ctx); err != nil {
				e.log.ErrorObj("scheduled export failed", "error", err.Error())
			}
		}
	}
}

func (e *Exporter) runOnce(ctx context.Context) error {
	start := time.Now()
	e.log.InfoObj("export started", "export_meta", map[string]any{
		"started_at": start.UTC(),
	})
	res, err := e.service.Run(ctx)
	e.log.InfoObj("export completed", "export_meta", map[string]any{
		"result":     res,
		"rows":       e.writer.Rows(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return err
}

// close releases the writer, the publishers and the storage backend, logging failures.
func (e *Exporter) close() {
	var errs []error
	if e.writer != nil {
		errs = append(errs, e.writer.Close())
		e.writer = nil
	}
	if e.fanout != nil {
		errs = append(errs, e.fanout.Close())
		e.fanout = nil
	}
	if e.store != nil {
		errs = append(errs, e.store.Close())
		e.store = nil
	}
	if err := errors.Join(errs...); err != nil {
		e.log.ErrorObj("exporter close failed", "error", err.Error())
	}
}
