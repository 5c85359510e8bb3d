package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/docmerge/internal/core"
)

func sampleTemplate(id, name string) *core.Template {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &core.Template{
		ID:        id,
		Name:      name,
		PaperSize: core.PaperLetter,
		Content:   core.EmptyEditorState,
		HTML:      "<p>{{name}}</p>",
		Variables: []core.Variable{{Name: "name", Type: core.VariableCSV}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestFileRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "nested", "templates.json"))

	list, err := repo.List(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("List() on missing file = %v, %v", list, err)
	}

	if err := repo.Save(ctx, sampleTemplate("a", "First")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Save(ctx, sampleTemplate("b", "Second")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	updated := sampleTemplate("a", "Renamed")
	updated.DocumentsGenerated = 3
	if err := repo.Save(ctx, updated); err != nil {
		t.Fatalf("Save(update) error = %v", err)
	}

	got, err := repo.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Renamed" || got.DocumentsGenerated != 3 {
		t.Errorf("Get() = %+v", got)
	}
	if string(got.Content) != string(core.EmptyEditorState) {
		t.Errorf("Content not preserved verbatim: %s", got.Content)
	}

	list, _ = repo.List(ctx)
	if len(list) != 2 {
		t.Errorf("len(List()) = %d, want 2", len(list))
	}

	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, "a"); !errors.Is(err, core.ErrTemplateNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrTemplateNotFound", err)
	}
	if err := repo.Delete(ctx, "a"); !errors.Is(err, core.ErrTemplateNotFound) {
		t.Errorf("second Delete error = %v, want ErrTemplateNotFound", err)
	}
}

func TestFileRepository_CorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	repo := NewFileRepository(path)

	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v, want corrupt file treated as empty", err)
	}
	if len(list) != 0 {
		t.Errorf("len(List()) = %d, want 0", len(list))
	}

	if err := repo.Save(context.Background(), sampleTemplate("x", "Fresh")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if list, _ := repo.List(context.Background()); len(list) != 1 {
		t.Errorf("len(List()) after save = %d, want 1", len(list))
	}
}

func TestFileRepository_CancelledContext(t *testing.T) {
	repo := NewFileRepository(filepath.Join(t.TempDir(), "t.json"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := repo.Save(ctx, sampleTemplate("a", "A")); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() error = %v, want context.Canceled", err)
	}
}
