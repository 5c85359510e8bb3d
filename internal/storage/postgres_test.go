package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/docmerge/internal/core"
)

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// fakeDB records Exec calls and answers QueryRow with a fixed error.
type fakeDB struct {
	execSQL  []string
	execArgs [][]any
	tag      pgconn.CommandTag
	rowErr   error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return f.tag, nil
}

func (f *fakeDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return errRow{err: f.rowErr}
}

func TestPostgresRepository_GetNotFound(t *testing.T) {
	repo := NewPostgresRepository(&fakeDB{rowErr: pgx.ErrNoRows})

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, core.ErrTemplateNotFound) {
		t.Errorf("Get() error = %v, want ErrTemplateNotFound", err)
	}
}

func TestPostgresRepository_DeleteNotFound(t *testing.T) {
	repo := NewPostgresRepository(&fakeDB{tag: pgconn.NewCommandTag("DELETE 0")})

	if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, core.ErrTemplateNotFound) {
		t.Errorf("Delete() error = %v, want ErrTemplateNotFound", err)
	}

	ok := NewPostgresRepository(&fakeDB{tag: pgconn.NewCommandTag("DELETE 1")})
	if err := ok.Delete(context.Background(), "present"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestPostgresRepository_SaveUpserts(t *testing.T) {
	db := &fakeDB{tag: pgconn.NewCommandTag("INSERT 0 1")}
	repo := NewPostgresRepository(db)

	tpl := sampleTemplate("a", "Letter")
	tpl.Variables = nil
	if err := repo.Save(context.Background(), tpl); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if len(db.execSQL) != 1 || !strings.Contains(db.execSQL[0], "ON CONFLICT (id) DO UPDATE") {
		t.Fatalf("Save() SQL = %v", db.execSQL)
	}
	args := db.execArgs[0]
	if len(args) != 12 {
		t.Fatalf("Save() args = %d, want 12", len(args))
	}
	var vars []core.Variable
	if err := json.Unmarshal(args[6].([]byte), &vars); err != nil || vars == nil {
		t.Errorf("variables arg = %s, want an empty JSON array", args[6])
	}
	if args[3] != "letter" {
		t.Errorf("paper size arg = %v, want letter", args[3])
	}
}

func TestPostgresRepository_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	if err := NewPostgresRepository(db).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if !strings.Contains(db.execSQL[0], "CREATE TABLE IF NOT EXISTS templates") {
		t.Errorf("EnsureSchema() SQL = %q", db.execSQL[0])
	}
}
