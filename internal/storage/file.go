// Package storage holds the template repositories: a single JSON file on
// disk and a PostgreSQL table.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/JonMunkholm/docmerge/internal/core"
)

// FileRepository stores every template in one JSON array. The file is read
// and written wholesale; concurrent writers in other processes are not
// coordinated and the last write wins.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileRepository returns a repository backed by path. The file and its
// directory are created on first save.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// load reads the whole file. A missing file is an empty collection, and so
// is a corrupt one: it is logged and otherwise ignored.
func (r *FileRepository) load() ([]core.Template, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return []core.Template{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	if len(data) == 0 {
		return []core.Template{}, nil
	}

	var templates []core.Template
	if err := json.Unmarshal(data, &templates); err != nil {
		slog.Error("template store is corrupt, starting empty", "path", r.path, "error", err)
		return []core.Template{}, nil
	}
	return templates, nil
}

func (r *FileRepository) store(templates []core.Template) error {
	data, err := json.MarshalIndent(templates, "", "  ")
	if err != nil {
		return fmt.Errorf("encode templates: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create template dir: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write templates: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("write templates: %w", err)
	}
	return nil
}

func (r *FileRepository) List(ctx context.Context) ([]core.Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *FileRepository) Get(ctx context.Context, id string) (*core.Template, error) {
	templates, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range templates {
		if templates[i].ID == id {
			return &templates[i], nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, core.ErrTemplateNotFound)
}

func (r *FileRepository) Save(ctx context.Context, t *core.Template) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	templates, err := r.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range templates {
		if templates[i].ID == t.ID {
			templates[i] = *t
			replaced = true
			break
		}
	}
	if !replaced {
		templates = append(templates, *t)
	}
	return r.store(templates)
}

func (r *FileRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	templates, err := r.load()
	if err != nil {
		return err
	}
	for i := range templates {
		if templates[i].ID == id {
			return r.store(append(templates[:i], templates[i+1:]...))
		}
	}
	return fmt.Errorf("%s: %w", id, core.ErrTemplateNotFound)
}
