package core

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// SingleDocumentName is used when a document is exported without rows.
	SingleDocumentName = "document.pdf"
	// ArchiveName is the zip produced by ExportZip.
	ArchiveName = "documents.zip"
)

// DocumentName returns the file name for the row at index i.
func DocumentName(i int) string {
	return "document_" + strconv.Itoa(i+1) + ".pdf"
}

// Renderer turns a complete HTML document into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// Sink receives finished files.
type Sink interface {
	Deliver(ctx context.Context, filename string, data []byte) error
}

// ProgressFunc observes export progress. It is called synchronously from the
// export goroutine and must not block.
type ProgressFunc func(ExportProgress)

// ExportRequest is one batch export.
type ExportRequest struct {
	HTML      string
	PaperSize PaperSize
	Rows      []Row
	Mode      ExportMode
}

// Exporter renders one PDF per row, strictly in row order with one render
// in flight, and delivers the results to a Sink.
type Exporter struct {
	renderer Renderer
	queue    taskQueue
	logger   *slog.Logger
}

// NewExporter creates an exporter backed by r.
func NewExporter(r Renderer, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{renderer: r, queue: taskQueue{limit: 1}, logger: logger}
}

// Export runs req. Without rows it renders the unmodified document once as
// document.pdf. With rows it renders document_1.pdf..document_N.pdf and
// delivers each immediately (ExportIndividual) or once as documents.zip
// (ExportZip). The first failure stops the batch, discards anything not yet
// delivered and resets progress to zero.
func (e *Exporter) Export(ctx context.Context, req ExportRequest, sink Sink, progress ProgressFunc) (*ExportResult, error) {
	if progress == nil {
		progress = func(ExportProgress) {}
	}
	if req.Mode == "" {
		req.Mode = ExportIndividual
	}
	if req.Mode != ExportIndividual && req.Mode != ExportZip {
		return nil, ErrInvalidExportMode
	}

	start := time.Now()
	total := len(req.Rows)
	progress(ExportProgress{Phase: PhaseRendering, Total: total})

	result, err := e.export(ctx, req, sink, progress)
	if err != nil {
		progress(ExportProgress{Phase: PhaseFailed, Total: total, Error: FormatUserError(err)})
		e.logger.Error("export failed", "rows", total, "mode", req.Mode, "error", err)
		return nil, err
	}

	result.Duration = time.Since(start)
	progress(ExportProgress{Phase: PhaseComplete, Completed: total, Total: total, Percent: 100})
	e.logger.Info("export complete", "rows", total, "mode", req.Mode, "files", len(result.Files), "duration", result.Duration)
	return result, nil
}

func (e *Exporter) export(ctx context.Context, req ExportRequest, sink Sink, progress ProgressFunc) (*ExportResult, error) {
	if len(req.Rows) == 0 {
		pdf, err := e.render(ctx, SingleDocumentName, Shell(req.HTML, req.PaperSize))
		if err != nil {
			return nil, err
		}
		if err := deliver(ctx, sink, SingleDocumentName, pdf); err != nil {
			return nil, err
		}
		return &ExportResult{Files: []string{SingleDocumentName}, Count: 1}, nil
	}

	total := len(req.Rows)
	var archive []archiveEntry
	result := &ExportResult{}
	sub := NewSubstituter(RowKeys(req.Rows...))

	err := e.queue.run(ctx, total, func(ctx context.Context, i int) error {
		name := DocumentName(i)
		pdf, err := e.render(ctx, name, Shell(sub.Apply(req.HTML, req.Rows[i]), req.PaperSize))
		if err != nil {
			return err
		}

		progress(ExportProgress{
			Phase:     PhaseRendering,
			Completed: i + 1,
			Total:     total,
			Percent:   float64(i+1) / float64(total) * 100,
		})

		if req.Mode == ExportZip {
			archive = append(archive, archiveEntry{name: name, data: pdf})
			return nil
		}
		if err := deliver(ctx, sink, name, pdf); err != nil {
			return err
		}
		result.Files = append(result.Files, name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Count = total

	if req.Mode == ExportZip {
		progress(ExportProgress{Phase: PhasePackaging, Completed: total, Total: total, Percent: 100})
		data, err := writeZip(archive)
		if err != nil {
			return nil, fmt.Errorf("package archive: %w", err)
		}
		if err := deliver(ctx, sink, ArchiveName, data); err != nil {
			return nil, err
		}
		result.Files = []string{ArchiveName}
	}
	return result, nil
}

func (e *Exporter) render(ctx context.Context, name, doc string) ([]byte, error) {
	pdf, err := e.renderer.Render(ctx, doc)
	if err == nil {
		return pdf, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s: %w", ErrRenderTimeout, name, err)
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrRenderFailed, name, err)
}

func deliver(ctx context.Context, sink Sink, name string, data []byte) error {
	if err := sink.Deliver(ctx, name, data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDeliveryFailed, name, err)
	}
	return nil
}

type archiveEntry struct {
	name string
	data []byte
}

func writeZip(entries []archiveEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range entries {
		w, err := zw.Create(entry.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(entry.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DirSink writes delivered files into a directory, creating it on first use.
type DirSink struct {
	Dir string
}

func (s DirSink) Deliver(ctx context.Context, filename string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if filepath.Base(filename) != filename {
		return fmt.Errorf("invalid file name %q", filename)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(s.Dir, "."+filename+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(s.Dir, filename))
}
