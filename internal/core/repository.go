package core

import "context"

// TemplateRepository persists templates. Implementations live in
// internal/storage. Get and Delete return an error wrapping
// ErrTemplateNotFound for unknown IDs; Save inserts or replaces.
type TemplateRepository interface {
	List(ctx context.Context) ([]Template, error)
	Get(ctx context.Context, id string) (*Template, error)
	Save(ctx context.Context, t *Template) error
	Delete(ctx context.Context, id string) error
}
