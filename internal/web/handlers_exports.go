package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/docmerge/internal/core"
	"github.com/JonMunkholm/docmerge/internal/logging"
	"github.com/JonMunkholm/docmerge/internal/render"
)

// handleStartExport starts a batch export and returns its job ID. The body
// is optional; it defaults to individual files from the bound dataset.
func (s *Server) handleStartExport(w http.ResponseWriter, r *http.Request) {
	var opts core.ExportOptions
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &opts); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	templateID := chi.URLParam(r, "templateID")
	id, err := s.service.StartExport(r.Context(), templateID, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "export_id", id, "template_id", templateID).
		Info("export started", "mode", opts.Mode)
	writeJSON(w, http.StatusAccepted, map[string]string{"exportId": id})
}

// handleGetExport returns the state of an export job.
func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.GetExport(chi.URLParam(r, "exportID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleExportProgress streams export progress via Server-Sent Events. The
// current progress is sent first; a "complete" event carrying the final
// job state ends the stream.
func (s *Server) handleExportProgress(w http.ResponseWriter, r *http.Request) {
	exportID := chi.URLParam(r, "exportID")

	progressCh, err := s.service.SubscribeExport(exportID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, fmt.Errorf("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	eventID := 0
	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				job, err := s.service.GetExport(exportID)
				data := []byte("{}")
				if err == nil {
					data, _ = json.Marshal(job)
				}
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}

			eventID++
			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleExportFile downloads one file produced by a finished export.
func (s *Server) handleExportFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, err := s.service.ExportFilePath(chi.URLParam(r, "exportID"), name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%s: %w", name, core.ErrExportFileMissing))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	contentType := "application/pdf"
	if strings.EqualFold(filepath.Ext(name), ".zip") {
		contentType = "application/zip"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// handleExportPDF renders one HTML document to PDF. Every failure, including
// an unreadable body, is reported as {error, details} with status 500 so
// remote render clients can rely on one shape. Fields other than html, such
// as the filename browsers send, are ignored.
func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	var req render.Request
	err := json.NewDecoder(r.Body).Decode(&req)
	if err == nil && strings.TrimSpace(req.HTML) == "" {
		err = errors.New("html is required")
	}

	var pdf []byte
	if err == nil {
		pdf, err = s.renderer.Render(r.Context(), req.HTML)
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("pdf generation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, render.ErrorBody{
			Error:   "PDF generation failed",
			Details: err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, core.SingleDocumentName))
	w.Write(pdf)
}
