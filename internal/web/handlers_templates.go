package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/docmerge/internal/core"
)

// handleListTemplates returns templates, most recently updated first.
// ?q= filters them with a fuzzy match on name and description.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := s.service.ListTemplates(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tpls)
}

// handleCreateTemplate creates a template holding an empty document.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in core.TemplateInput
	if err := decodeJSON(r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	t, err := s.service.CreateTemplate(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// handleGetTemplate returns a single template by ID.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.GetTemplate(r.Context(), chi.URLParam(r, "templateID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleUpdateTemplate changes a template's name, description or paper size.
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var in core.TemplateInput
	if err := decodeJSON(r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	t, err := s.service.UpdateTemplate(r.Context(), chi.URLParam(r, "templateID"), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTemplate(r.Context(), chi.URLParam(r, "templateID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSaveContent stores the editor's serialized state together with the
// HTML it rendered.
func (s *Server) handleSaveContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content json.RawMessage `json:"content"`
		HTML    string          `json:"html"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	t, err := s.service.SaveContent(r.Context(), chi.URLParam(r, "templateID"), req.Content, req.HTML)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleOpenTemplate records that a template was opened in the editor.
func (s *Server) handleOpenTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.OpenTemplate(r.Context(), chi.URLParam(r, "templateID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleAddVariable registers a custom variable.
func (s *Server) handleAddVariable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	v, err := s.service.AddVariable(r.Context(), chi.URLParam(r, "templateID"), req.Name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleRemoveVariable(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.RemoveVariable(r.Context(), chi.URLParam(r, "templateID"), chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleImportVariables registers the headers of an uploaded CSV file as
// variables and binds its rows to the template.
func (s *Server) handleImportVariables(w http.ResponseWriter, r *http.Request) {
	file, header, err := s.formFile(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer file.Close()

	result, err := s.service.ImportVariables(r.Context(), chi.URLParam(r, "templateID"), header.Filename, file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"template": result.Template,
		"dataset":  summarize(result.Dataset),
		"added":    result.Added,
		"skipped":  result.Skipped,
	})
}

// handleInsertVariable inserts a placeholder into the template's HTML. A
// missing cursor appends it.
func (s *Server) handleInsertVariable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Cursor *int   `json:"cursor,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	cursor := -1
	if req.Cursor != nil {
		cursor = *req.Cursor
	}

	t, err := s.service.InsertVariable(r.Context(), chi.URLParam(r, "templateID"), req.Name, cursor)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handlePreviewTemplate returns the template text with sample values
// substituted. Without explicit samples the first row of the bound dataset
// is used.
func (s *Server) handlePreviewTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "templateID")

	var req struct {
		Samples map[string]string `json:"samples"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	if req.Samples == nil {
		t, err := s.service.GetTemplate(r.Context(), id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if ds, err := s.service.GetDataset(t.DatasetID); err == nil {
			req.Samples = ds.Samples()
		}
	}

	text, err := s.service.PreviewTemplate(r.Context(), id, req.Samples)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"preview": text})
}
