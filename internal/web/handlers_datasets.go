package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/docmerge/internal/core"
)

// datasetSummary is a dataset without its rows.
type datasetSummary struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Columns    []core.Column   `json:"columns"`
	Statistics core.Statistics `json:"statistics"`
	UploadedAt time.Time       `json:"uploadedAt"`
}

func summarize(ds *core.Dataset) datasetSummary {
	return datasetSummary{
		ID:         ds.ID,
		Name:       ds.Name,
		Columns:    ds.Columns,
		Statistics: ds.Statistics,
		UploadedAt: ds.UploadedAt,
	}
}

// handleUploadDataset ingests a CSV file sent as the multipart "file" field.
func (s *Server) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer file.Close()

	ds, err := s.service.UploadDataset(r.Context(), header.Filename, file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		datasetSummary
		Preview []core.Row `json:"preview"`
	}{summarize(ds), ds.Preview(core.PreviewRows)})
}

// handleListDatasets returns all uploaded datasets without their rows.
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets := s.service.ListDatasets()
	out := make([]datasetSummary, len(datasets))
	for i, ds := range datasets {
		out[i] = summarize(ds)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetDataset returns one dataset's columns and statistics.
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.service.GetDataset(chi.URLParam(r, "datasetID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(ds))
}

// handleDatasetPreview returns the first rows of a dataset. The row count
// defaults to core.PreviewRows and may be raised with ?rows=N.
func (s *Server) handleDatasetPreview(w http.ResponseWriter, r *http.Request) {
	ds, err := s.service.GetDataset(chi.URLParam(r, "datasetID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	n := core.PreviewRows
	if v := r.URL.Query().Get("rows"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"columns": ds.ColumnNames(),
		"rows":    ds.Preview(n),
		"total":   ds.Statistics.RowCount,
	})
}

// handleDeleteDataset removes a dataset from memory.
func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := s.service.RemoveDataset(chi.URLParam(r, "datasetID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
