package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrDuplicate is returned when a template with the same name already exists.
	ErrDuplicate = errors.New("template already exists")

	// ErrTemplateNotFound is returned when no template has the requested name.
	ErrTemplateNotFound = errors.New("template not found")
)

// Template is a named, persisted list of serialized aggregation specs
// bound to one collection.
type Template struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Collection string          `json:"collection"`
	Specs      json.RawMessage `json:"specs"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TemplateStore defines the interface for storing and retrieving templates.
type TemplateStore interface {
	// SaveTemplate persists t. Returns ErrDuplicate if the name is taken.
	SaveTemplate(ctx context.Context, t *Template) error

	// GetTemplate returns ErrTemplateNotFound if no template has the name.
	GetTemplate(ctx context.Context, name string) (*Template, error)

	// ListTemplates returns templates ordered by name, optionally
	// restricted to one collection.
	ListTemplates(ctx context.Context, collection string) ([]*Template, error)

	// DeleteTemplate returns ErrTemplateNotFound if no template has the name.
	DeleteTemplate(ctx context.Context, name string) error
}
