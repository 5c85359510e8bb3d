package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
)

// TemplateInput carries the user-editable template metadata.
type TemplateInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PaperSize   string `json:"paperSize"`
}

// VariableImport reports the outcome of importing variables from a CSV file.
type VariableImport struct {
	Template *Template  `json:"template"`
	Dataset  *Dataset   `json:"dataset"`
	Added    []Variable `json:"added"`
	Skipped  []string   `json:"skipped"`
}

// CreateTemplate creates a template holding an empty document.
func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput) (*Template, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrTemplateName
	}
	paper, err := ParsePaperSize(in.PaperSize)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &Template{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		PaperSize:   paper,
		Content:     EmptyEditorState,
		HTML:        "<p></p>",
		Variables:   []Variable{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.tplMu.Lock()
	defer s.tplMu.Unlock()
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	slog.Info("template created", "template_id", t.ID, "name", t.Name)
	return t, nil
}

// ListTemplates returns templates, most recently updated first. A non-empty
// query fuzzy-matches name and description and orders by match score.
func (s *Service) ListTemplates(ctx context.Context, query string) ([]Template, error) {
	templates, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].UpdatedAt.After(templates[j].UpdatedAt)
	})

	query = strings.TrimSpace(query)
	if query == "" {
		return templates, nil
	}

	searchStrings := make([]string, len(templates))
	for i, t := range templates {
		searchStrings[i] = t.Name + " " + t.Description
	}

	matches := fuzzy.Find(query, searchStrings)
	results := make([]Template, 0, len(matches))
	for _, m := range matches {
		results = append(results, templates[m.Index])
	}
	return results, nil
}

// GetTemplate returns one template.
func (s *Service) GetTemplate(ctx context.Context, id string) (*Template, error) {
	return s.repo.Get(ctx, id)
}

// UpdateTemplate replaces the template's name, description and paper size.
func (s *Service) UpdateTemplate(ctx context.Context, id string, in TemplateInput) (*Template, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrTemplateName
	}
	paper, err := ParsePaperSize(in.PaperSize)
	if err != nil {
		return nil, err
	}

	return s.mutateTemplate(ctx, id, func(t *Template) error {
		t.Name = name
		t.Description = strings.TrimSpace(in.Description)
		t.PaperSize = paper
		return nil
	})
}

// SaveContent stores the editor's serialized state and the HTML it renders to.
func (s *Service) SaveContent(ctx context.Context, id string, content json.RawMessage, html string) (*Template, error) {
	return s.mutateTemplate(ctx, id, func(t *Template) error {
		doc := NewHTMLDocument(t.Content, t.HTML)
		if err := doc.LoadSerialized(content); err != nil {
			return err
		}
		doc.SetHTML(html)
		t.Content = doc.State()
		t.HTML = doc.HTML()
		return nil
	})
}

// OpenTemplate records that the template was opened.
func (s *Service) OpenTemplate(ctx context.Context, id string) (*Template, error) {
	s.tplMu.Lock()
	defer s.tplMu.Unlock()

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	t.LastUsed = &now
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}
	return t, nil
}

// DeleteTemplate removes a template.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	s.tplMu.Lock()
	defer s.tplMu.Unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("template deleted", "template_id", id)
	return nil
}

// AddVariable registers a custom variable on the template.
func (s *Service) AddVariable(ctx context.Context, id, rawName string) (Variable, error) {
	var added Variable
	_, err := s.mutateTemplate(ctx, id, func(t *Template) error {
		reg := NewRegistry(t.Variables)
		v, err := reg.Add(rawName)
		if err != nil {
			return err
		}
		added = v
		t.Variables = reg.Variables()
		return nil
	})
	return added, err
}

// RemoveVariable unregisters a variable. Placeholders already in the
// document are left alone.
func (s *Service) RemoveVariable(ctx context.Context, id, name string) (*Template, error) {
	return s.mutateTemplate(ctx, id, func(t *Template) error {
		reg := NewRegistry(t.Variables)
		if err := reg.Remove(name); err != nil {
			return err
		}
		t.Variables = reg.Variables()
		return nil
	})
}

// ImportVariables parses a CSV file, registers its headers as csv variables
// and binds the parsed rows to the template for export. Headers colliding
// with existing variables are skipped.
func (s *Service) ImportVariables(ctx context.Context, id, filename string, r io.Reader) (*VariableImport, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}

	ds, err := IngestCSV(filename, r, s.cfg.MaxUploadSize)
	if err != nil {
		return nil, fmt.Errorf("import variables: %w", err)
	}

	result := &VariableImport{Dataset: ds}
	t, err := s.mutateTemplate(ctx, id, func(t *Template) error {
		reg := NewRegistry(t.Variables)
		result.Added, result.Skipped = reg.ImportColumns(ds.ColumnNames())
		t.Variables = reg.Variables()
		t.DatasetID = ds.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.datasets.Add(ds)
	result.Template = t

	slog.Info("variables imported",
		"template_id", id,
		"dataset_id", ds.ID,
		"added", len(result.Added),
		"skipped", len(result.Skipped),
		"rows", ds.Statistics.RowCount,
	)
	return result, nil
}

// InsertVariable inserts {{name}} into the template's HTML snapshot. A
// non-negative cursor is a rune offset into the document text; otherwise
// the placeholder is appended.
func (s *Service) InsertVariable(ctx context.Context, id, name string, cursor int) (*Template, error) {
	return s.mutateTemplate(ctx, id, func(t *Template) error {
		doc := NewHTMLDocument(t.Content, t.HTML)
		doc.SetCursor(cursor)
		if err := InsertVariable(doc, name); err != nil {
			return err
		}
		t.HTML = doc.HTML()
		return nil
	})
}

// PreviewTemplate renders the template's text with every registered
// variable replaced by its sample value, or "" when none was given. The
// stored template is not modified.
func (s *Service) PreviewTemplate(ctx context.Context, id string, samples map[string]string) (string, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return Preview(NewHTMLDocument(t.Content, t.HTML), t.Variables, samples), nil
}

// mutateTemplate loads a template, applies fn and saves it with a fresh
// UpdatedAt. Nothing is saved when fn fails.
func (s *Service) mutateTemplate(ctx context.Context, id string, fn func(*Template) error) (*Template, error) {
	s.tplMu.Lock()
	defer s.tplMu.Unlock()

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	t.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}
	return t, nil
}
