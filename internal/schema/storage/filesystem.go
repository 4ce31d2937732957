package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aevon-lab/docagg/internal/schema"
)

// FileSystemRepository implements schema.Repository using the local file system.
// It expects a directory structure: root/{tenant_id}/{collection}/v{version}.[yaml|proto]
// YAML files take precedence over protobuf files if both exist.
type FileSystemRepository struct {
	rootDir string
}

// NewFileSystemRepository creates a new file system backed repository.
func NewFileSystemRepository(rootDir string) *FileSystemRepository {
	return &FileSystemRepository{
		rootDir: rootDir,
	}
}

// Create is not supported in read-only file system mode.
// Add .yaml or .proto files directly to the schema directory instead.
func (r *FileSystemRepository) Create(ctx context.Context, s *schema.Schema) error {
	ext := ".yaml"
	if s.Format == schema.FormatProtobuf {
		ext = ".proto"
	}
	return fmt.Errorf("create not supported in filesystem mode: please add %s/%s/%s/v%d%s",
		r.rootDir, s.TenantID, s.Collection, s.Version, ext)
}

// Get retrieves a schema from the file system.
func (r *FileSystemRepository) Get(ctx context.Context, key schema.Key) (*schema.Schema, error) {
	dir := filepath.Join(r.rootDir, key.TenantID, key.Collection)
	yamlPath := filepath.Join(dir, fmt.Sprintf("v%d.yaml", key.Version))
	protoPath := filepath.Join(dir, fmt.Sprintf("v%d.proto", key.Version))

	yamlExists := fileExists(yamlPath)
	protoExists := fileExists(protoPath)

	if yamlExists && protoExists {
		slog.Warn("[Schema] Both .yaml and .proto exist for collection - using .yaml",
			"tenant_id", key.TenantID, "collection", key.Collection, "version", key.Version)
	}

	switch {
	case yamlExists:
		content, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read YAML schema: %w", err)
		}
		return r.buildSchema(key, content, schema.FormatYaml), nil
	case protoExists:
		content, err := os.ReadFile(protoPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read protobuf schema: %w", err)
		}
		return r.buildSchema(key, content, schema.FormatProtobuf), nil
	}

	return nil, schema.ErrNotFound
}

func (r *FileSystemRepository) buildSchema(key schema.Key, content []byte, format schema.Format) *schema.Schema {
	return &schema.Schema{
		ID:          fmt.Sprintf("%s-%s-%d", key.TenantID, key.Collection, key.Version),
		TenantID:    key.TenantID,
		Collection:  key.Collection,
		Version:     key.Version,
		Format:      format,
		Definition:  content,
		Fingerprint: schema.ComputeFingerprint(content),
		State:       schema.StateActive,
		CreatedAt:   time.Now(),
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// List scans the tenant directory for schemas, optionally restricted to one collection.
func (r *FileSystemRepository) List(ctx context.Context, tenantID string, collection string) ([]*schema.Schema, error) {
	tenantDir := filepath.Join(r.rootDir, tenantID)

	if collection != "" {
		return r.scanCollectionDir(ctx, tenantID, collection)
	}

	entries, err := os.ReadDir(tenantDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*schema.Schema{}, nil
		}
		return nil, err
	}

	var result []*schema.Schema
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		schemas, err := r.scanCollectionDir(ctx, tenantID, entry.Name())
		if err != nil {
			return nil, err
		}
		result = append(result, schemas...)
	}
	return result, nil
}

func (r *FileSystemRepository) scanCollectionDir(ctx context.Context, tenantID, collection string) ([]*schema.Schema, error) {
	entries, err := os.ReadDir(filepath.Join(r.rootDir, tenantID, collection))
	if err != nil {
		if os.IsNotExist(err) {
			return []*schema.Schema{}, nil
		}
		return nil, err
	}

	versions := make(map[int]bool)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "v") {
			continue
		}
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".proto" {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "v"), ext))
		if err != nil {
			continue
		}
		versions[v] = true
	}

	ordered := make([]int, 0, len(versions))
	for v := range versions {
		ordered = append(ordered, v)
	}
	sort.Ints(ordered)

	schemas := make([]*schema.Schema, 0, len(ordered))
	for _, v := range ordered {
		s, err := r.Get(ctx, schema.Key{TenantID: tenantID, Collection: collection, Version: v})
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}
