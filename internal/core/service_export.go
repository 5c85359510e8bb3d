package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExportOptions selects how a template is exported. DatasetID overrides the
// dataset bound to the template by a CSV import.
type ExportOptions struct {
	Mode      ExportMode `json:"mode"`
	DatasetID string     `json:"datasetId,omitempty"`
}

// ExportJob is a snapshot of a batch export.
type ExportJob struct {
	ID         string         `json:"id"`
	TemplateID string         `json:"templateId"`
	DatasetID  string         `json:"datasetId,omitempty"`
	Mode       ExportMode     `json:"mode"`
	Progress   ExportProgress `json:"progress"`
	Result     *ExportResult  `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
}

type exportJob struct {
	mu        sync.Mutex
	snapshot  ExportJob
	dir       string
	done      chan struct{}
	listeners []chan ExportProgress
}

// StartExport starts a batch export of a template in the background and
// returns its job ID. It waits for a free export slot and fails with
// ErrTooManyExports when none frees up in time.
func (s *Service) StartExport(ctx context.Context, templateID string, opts ExportOptions) (string, error) {
	mode, err := ParseExportMode(string(opts.Mode))
	if err != nil {
		return "", err
	}

	t, err := s.repo.Get(ctx, templateID)
	if err != nil {
		return "", err
	}

	datasetID := opts.DatasetID
	if datasetID == "" {
		datasetID = t.DatasetID
	}
	var rows []Row
	if datasetID != "" {
		ds, err := s.datasets.Get(datasetID)
		if err != nil {
			return "", err
		}
		rows = ds.MergeRows()
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	job := &exportJob{
		snapshot: ExportJob{
			ID:         jobID,
			TemplateID: templateID,
			DatasetID:  datasetID,
			Mode:       mode,
			Progress:   ExportProgress{Phase: PhasePending, Total: len(rows)},
			StartedAt:  time.Now().UTC(),
		},
		dir:  filepath.Join(s.cfg.ExportDir, jobID),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.jobs[jobID] = job
	s.mu.Unlock()

	req := ExportRequest{HTML: t.HTML, PaperSize: t.PaperSize, Rows: rows, Mode: mode}
	go s.runExport(job, req)

	return jobID, nil
}

func (s *Service) runExport(job *exportJob, req ExportRequest) {
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ExportTimeout)
	defer cancel()

	logger := slog.With("job_id", job.snapshot.ID, "template_id", job.snapshot.TemplateID)
	logger.Info("export started", "rows", len(req.Rows), "mode", req.Mode)

	result, err := s.exporter.Export(ctx, req, DirSink{Dir: job.dir}, job.setProgress)

	if err != nil {
		if rmErr := os.RemoveAll(job.dir); rmErr != nil {
			logger.Warn("failed to remove partial export output", "error", rmErr)
		}
	} else if _, uerr := s.recordGenerated(job.snapshot.TemplateID, result.Count); uerr != nil {
		logger.Warn("failed to update template counters", "error", uerr)
	}

	job.finish(result, err)
	s.cleanup(job.snapshot.ID, s.cfg.JobRetention)
}

// recordGenerated bumps the template's document counter and last-used time.
func (s *Service) recordGenerated(templateID string, count int) (*Template, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.tplMu.Lock()
	defer s.tplMu.Unlock()

	t, err := s.repo.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	t.DocumentsGenerated += count
	t.LastUsed = &now
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (j *exportJob) setProgress(p ExportProgress) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.snapshot.Progress = p
	for _, ch := range j.listeners {
		select {
		case ch <- p:
		default:
			// Listener is slow, skip this update
		}
	}
}

func (j *exportJob) finish(result *ExportResult, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now().UTC()
	j.snapshot.FinishedAt = &now
	j.snapshot.Result = result
	if err != nil {
		j.snapshot.Error = FormatUserError(err)
	}
	for _, ch := range j.listeners {
		close(ch)
	}
	j.listeners = nil
	close(j.done)
}

func (j *exportJob) view() ExportJob {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshot
}

func (s *Service) job(id string) (*exportJob, error) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrExportNotFound)
	}
	return job, nil
}

// SubscribeExport returns a channel of progress updates. The current
// progress is sent first; the channel is closed when the export ends.
func (s *Service) SubscribeExport(id string) (<-chan ExportProgress, error) {
	job, err := s.job(id)
	if err != nil {
		return nil, err
	}

	ch := make(chan ExportProgress, 10)

	job.mu.Lock()
	defer job.mu.Unlock()
	ch <- job.snapshot.Progress
	if job.snapshot.FinishedAt != nil {
		close(ch)
		return ch, nil
	}
	job.listeners = append(job.listeners, ch)
	return ch, nil
}

// GetExport returns a snapshot of an export job.
func (s *Service) GetExport(id string) (ExportJob, error) {
	job, err := s.job(id)
	if err != nil {
		return ExportJob{}, err
	}
	return job.view(), nil
}

// WaitExport blocks until the export ends or ctx is done.
func (s *Service) WaitExport(ctx context.Context, id string) (ExportJob, error) {
	job, err := s.job(id)
	if err != nil {
		return ExportJob{}, err
	}
	select {
	case <-job.done:
		return job.view(), nil
	case <-ctx.Done():
		return ExportJob{}, ctx.Err()
	}
}

// ExportFilePath returns the path of a file produced by a finished export.
func (s *Service) ExportFilePath(id, name string) (string, error) {
	job, err := s.job(id)
	if err != nil {
		return "", err
	}
	snap := job.view()
	if snap.Result == nil {
		return "", fmt.Errorf("%s/%s: %w", id, name, ErrExportFileMissing)
	}
	for _, f := range snap.Result.Files {
		if f == name {
			return filepath.Join(job.dir, f), nil
		}
	}
	return "", fmt.Errorf("%s/%s: %w", id, name, ErrExportFileMissing)
}

// cleanup forgets the job after delay. Its files are removed by the
// retention scheduler.
func (s *Service) cleanup(id string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.jobs, id)
		s.mu.Unlock()
	})
}
