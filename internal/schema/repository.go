package schema

import (
	"context"
)

// Repository defines the interface for schema storage.
type Repository interface {
	// Create stores a new schema. Returns ErrAlreadyExists if
	// a schema with the same (TenantID, Collection, Version) already exists.
	Create(ctx context.Context, schema *Schema) error

	// Get retrieves a schema by key. Returns ErrNotFound if not found.
	Get(ctx context.Context, key Key) (*Schema, error)

	// List returns all schemas for a tenant, optionally filtered by collection.
	List(ctx context.Context, tenantID string, collection string) ([]*Schema, error)
}
