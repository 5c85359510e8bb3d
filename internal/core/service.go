package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ServiceConfig tunes a Service. Zero values fall back to defaults.
type ServiceConfig struct {
	MaxUploadSize        int64
	ExportDir            string
	ExportTimeout        time.Duration
	MaxConcurrentExports int
	ExportWait           time.Duration
	// JobRetention is how long a finished export stays queryable.
	JobRetention time.Duration
}

const (
	defaultExportDir     = "data/exports"
	defaultExportTimeout = 30 * time.Minute
	defaultJobRetention  = 24 * time.Hour
)

// Service ties datasets, templates and exports together. It is the entry
// point for the HTTP handlers.
type Service struct {
	repo     TemplateRepository
	datasets *DatasetStore
	exporter *Exporter
	limiter  *ExportLimiter
	cfg      ServiceConfig

	// tplMu serializes read-modify-write cycles on templates.
	tplMu sync.Mutex

	mu   sync.RWMutex
	jobs map[string]*exportJob
}

// NewService creates a Service over repo, rendering with renderer.
func NewService(repo TemplateRepository, renderer Renderer, cfg ServiceConfig) *Service {
	if cfg.ExportDir == "" {
		cfg.ExportDir = defaultExportDir
	}
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = defaultExportTimeout
	}
	if cfg.JobRetention <= 0 {
		cfg.JobRetention = defaultJobRetention
	}

	return &Service{
		repo:     repo,
		datasets: NewDatasetStore(),
		exporter: NewExporter(renderer, slog.Default()),
		limiter:  NewExportLimiter(cfg.MaxConcurrentExports, cfg.ExportWait),
		cfg:      cfg,
		jobs:     make(map[string]*exportJob),
	}
}

// UploadDataset ingests a CSV file and adds it to the dataset store.
func (s *Service) UploadDataset(ctx context.Context, filename string, r io.Reader) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := IngestCSV(filename, r, s.cfg.MaxUploadSize)
	if err != nil {
		return nil, fmt.Errorf("upload dataset: %w", err)
	}
	s.datasets.Add(ds)

	slog.Info("dataset uploaded",
		"dataset_id", ds.ID,
		"file", ds.Name,
		"rows", ds.Statistics.RowCount,
		"columns", ds.Statistics.ColumnCount,
		"data_type", ds.Statistics.DataType,
	)
	return ds, nil
}

// ListDatasets returns uploaded datasets, most recent first.
func (s *Service) ListDatasets() []*Dataset {
	return s.datasets.List()
}

// GetDataset returns one dataset.
func (s *Service) GetDataset(id string) (*Dataset, error) {
	return s.datasets.Get(id)
}

// RemoveDataset drops a dataset from memory. Exports of templates still
// bound to it fail with ErrDatasetMissing until the CSV is imported again.
func (s *Service) RemoveDataset(id string) error {
	if err := s.datasets.Remove(id); err != nil {
		return err
	}
	slog.Info("dataset removed", "dataset_id", id)
	return nil
}

// ExportLimiterStatus reports export slot usage.
func (s *Service) ExportLimiterStatus() ExportLimiterStatus {
	return s.limiter.Status()
}

// WaitForExports blocks until running exports finish or ctx is done.
// Used during graceful shutdown.
func (s *Service) WaitForExports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
