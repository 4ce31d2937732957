package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheCapacity is the default number of compiled collections to cache.
const DefaultCacheCapacity = 1000

// Registry resolves collection schemas with tenant/platform fallback,
// compiles them with the registered format compilers and caches the result.
type Registry struct {
	repo         Repository
	formats      *FormatRegistry
	cache        *LRUCache
	compileGroup singleflight.Group
}

// NewRegistry creates a new schema registry.
func NewRegistry(repo Repository, formats *FormatRegistry) *Registry {
	return NewRegistryWithCache(repo, formats, DefaultCacheCapacity)
}

// NewRegistryWithCache creates a registry with a custom cache capacity.
func NewRegistryWithCache(repo Repository, formats *FormatRegistry, cacheCapacity int) *Registry {
	return &Registry{
		repo:    repo,
		formats: formats,
		cache:   NewLRUCache(cacheCapacity),
	}
}

// Get retrieves a schema definition using hybrid lookup:
// 1. Try tenant-specific schema first
// 2. Fallback to platform global schema
//
// Version 0 selects the highest registered version.
func (r *Registry) Get(ctx context.Context, tenantID, collection string, version int) (*Schema, error) {
	for _, tenant := range []string{tenantID, PlatformTenantID} {
		if tenant == "" {
			continue
		}
		s, err := r.get(ctx, Key{TenantID: tenant, Collection: collection, Version: version})
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s v%d", ErrNotFound, collection, version)
}

func (r *Registry) get(ctx context.Context, key Key) (*Schema, error) {
	if key.Version > 0 {
		return r.repo.Get(ctx, key)
	}

	schemas, err := r.repo.List(ctx, key.TenantID, key.Collection)
	if err != nil {
		return nil, err
	}
	var latest *Schema
	for _, s := range schemas {
		if s.State == StateDeleted {
			continue
		}
		if latest == nil || s.Version > latest.Version {
			latest = s
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

// Collection returns the compiled collection schema.
// Concurrent compilations of the same definition are deduplicated.
func (r *Registry) Collection(ctx context.Context, tenantID, collection string, version int) (*Collection, error) {
	s, err := r.Get(ctx, tenantID, collection, version)
	if err != nil {
		return nil, err
	}

	key := s.Key()
	if c := r.cache.Get(key, s.Fingerprint); c != nil {
		return c, nil
	}

	flightKey := fmt.Sprintf("%s:%s:%d:%s", key.TenantID, key.Collection, key.Version, s.Fingerprint)
	result, err, _ := r.compileGroup.Do(flightKey, func() (interface{}, error) {
		if c := r.cache.Get(key, s.Fingerprint); c != nil {
			return c, nil
		}

		compiler, err := r.formats.GetCompiler(s.Format)
		if err != nil {
			return nil, fmt.Errorf("compilation failed: %w", err)
		}
		c, err := compiler.Compile(ctx, s)
		if err != nil {
			return nil, err
		}

		slog.Debug("[Schema] Compiled collection schema",
			"tenant_id", key.TenantID, "collection", key.Collection, "version", key.Version, "fields", len(c.Fields))
		r.cache.Put(key, s.Fingerprint, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Collection), nil
}

// Register creates a new schema version.
func (r *Registry) Register(ctx context.Context, tenantID, collection string, version int, format Format, definition []byte) (*Schema, error) {
	if tenantID == "" {
		return nil, errors.New("tenant_id is required")
	}
	if collection == "" {
		return nil, errors.New("collection is required")
	}
	if version < 1 {
		return nil, errors.New("version must be >= 1")
	}
	if len(definition) == 0 {
		return nil, errors.New("definition is required")
	}

	s := &Schema{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Collection:  collection,
		Version:     version,
		Format:      format,
		Definition:  definition,
		Fingerprint: ComputeFingerprint(definition),
		State:       StateActive,
		CreatedAt:   time.Now().UTC(),
	}

	if err := r.repo.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// List returns all schemas for a tenant.
func (r *Registry) List(ctx context.Context, tenantID, collection string) ([]*Schema, error) {
	return r.repo.List(ctx, tenantID, collection)
}
