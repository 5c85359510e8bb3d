package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/docmerge/internal/core"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS templates (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	paper_size          TEXT NOT NULL DEFAULT 'a4',
	content             JSONB NOT NULL,
	html                TEXT NOT NULL DEFAULT '',
	variables           JSONB NOT NULL DEFAULT '[]',
	dataset_id          TEXT NOT NULL DEFAULT '',
	documents_generated INTEGER NOT NULL DEFAULT 0,
	last_used           TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
)`

const templateColumns = `id, name, description, paper_size, content, html, variables,
	dataset_id, documents_generated, last_used, created_at, updated_at`

// PostgresRepository stores templates in the templates table.
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository returns a repository over db.
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the templates table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create templates table: %w", err)
	}
	return nil
}

func scanTemplate(row pgx.Row) (*core.Template, error) {
	var (
		t         core.Template
		paper     string
		content   []byte
		variables []byte
	)
	err := row.Scan(&t.ID, &t.Name, &t.Description, &paper, &content, &t.HTML, &variables,
		&t.DatasetID, &t.DocumentsGenerated, &t.LastUsed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.PaperSize = core.PaperSize(paper)
	t.Content = json.RawMessage(content)
	if err := json.Unmarshal(variables, &t.Variables); err != nil {
		return nil, fmt.Errorf("decode variables of %s: %w", t.ID, err)
	}
	return &t, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]core.Template, error) {
	rows, err := r.db.Query(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	templates := []core.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return templates, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*core.Template, error) {
	t, err := scanTemplate(r.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, core.ErrTemplateNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Save(ctx context.Context, t *core.Template) error {
	vars := t.Variables
	if vars == nil {
		vars = []core.Variable{}
	}
	variables, err := json.Marshal(vars)
	if err != nil {
		return fmt.Errorf("encode variables: %w", err)
	}
	content := []byte(t.Content)
	if len(content) == 0 {
		content = core.EmptyEditorState
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			paper_size = EXCLUDED.paper_size,
			content = EXCLUDED.content,
			html = EXCLUDED.html,
			variables = EXCLUDED.variables,
			dataset_id = EXCLUDED.dataset_id,
			documents_generated = EXCLUDED.documents_generated,
			last_used = EXCLUDED.last_used,
			updated_at = EXCLUDED.updated_at`,
		t.ID, t.Name, t.Description, string(t.PaperSize), content, t.HTML, variables,
		t.DatasetID, t.DocumentsGenerated, t.LastUsed, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, core.ErrTemplateNotFound)
	}
	return nil
}
