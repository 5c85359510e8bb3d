package core

// scheduler.go purges expired export output. Every finished export leaves a
// directory under the export dir; once it is older than the retention
// window the directory is removed. Failures are logged and retried on the
// next tick.

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// StartRetentionScheduler purges expired export output immediately and then
// every interval until ctx is cancelled.
func (s *Service) StartRetentionScheduler(ctx context.Context, retention, interval time.Duration) {
	slog.Info("export retention scheduler started",
		"retention", retention,
		"interval", interval,
		"dir", s.cfg.ExportDir,
	)

	s.runRetentionJob(retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("export retention scheduler stopped")
			return
		case <-ticker.C:
			s.runRetentionJob(retention)
		}
	}
}

func (s *Service) runRetentionJob(retention time.Duration) {
	start := time.Now()
	purged, err := s.purgeExpiredExports(time.Now().Add(-retention))
	if err != nil {
		slog.Error("export purge failed", "error", err)
		return
	}
	slog.Info("export purge completed",
		"dirs_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// purgeExpiredExports removes export directories last modified before cutoff.
// Directories of exports still running are kept.
func (s *Service) purgeExpiredExports(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.cfg.ExportDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, e := range entries {
		if !e.IsDir() || s.exportRunning(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.cfg.ExportDir, e.Name())); err != nil {
			slog.Warn("failed to purge export", "dir", e.Name(), "error", err)
			continue
		}
		purged++
	}
	return purged, nil
}

func (s *Service) exportRunning(id string) bool {
	job, err := s.job(id)
	if err != nil {
		return false
	}
	return job.view().FinishedAt == nil
}
