package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/aevon-lab/docagg/internal/schema"
)

// MemoryRepository is an in-memory implementation of schema.Repository.
// Useful for testing and development.
type MemoryRepository struct {
	mu      sync.RWMutex
	schemas map[schema.Key]*schema.Schema
}

// NewMemoryRepository creates a new in-memory schema repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		schemas: make(map[schema.Key]*schema.Schema),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, s *schema.Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := s.Key()
	if _, exists := r.schemas[key]; exists {
		return schema.ErrAlreadyExists
	}

	copy := *s
	r.schemas[key] = &copy
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, key schema.Key) (*schema.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.schemas[key]
	if !exists {
		return nil, schema.ErrNotFound
	}

	copy := *s
	return &copy, nil
}

func (r *MemoryRepository) List(ctx context.Context, tenantID string, collection string) ([]*schema.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*schema.Schema
	for _, s := range r.schemas {
		if s.TenantID != tenantID {
			continue
		}
		if collection != "" && s.Collection != collection {
			continue
		}
		copy := *s
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Collection != result[j].Collection {
			return result[i].Collection < result[j].Collection
		}
		return result[i].Version < result[j].Version
	})
	return result, nil
}
