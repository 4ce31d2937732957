package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PlatformTenantID is the reserved tenant ID for platform-provided collections.
const PlatformTenantID = "_platform"

// State represents the lifecycle state of a schema.
type State string

const (
	StateActive  State = "active"
	StateDeleted State = "deleted"
)

// Format represents the format of the schema definition.
type Format string

const (
	FormatProtobuf Format = "protobuf"
	FormatYaml     Format = "yaml"
)

// Schema is a registered collection schema definition.
type Schema struct {
	// ID is the unique schema identifier.
	ID string `json:"id"`

	// TenantID isolates schemas per tenant. "_platform" for global schemas.
	TenantID string `json:"tenant_id"`

	// Collection is the name of the document collection this schema describes.
	Collection string `json:"collection"`

	// Version is the schema version number (1, 2, 3...).
	Version int `json:"version"`

	// Format is the definition format.
	Format Format `json:"format"`

	// Definition is the raw schema content (.yaml or .proto file content).
	Definition []byte `json:"definition"`

	// Fingerprint is SHA-256 hash of Definition.
	Fingerprint string `json:"fingerprint"`

	State State `json:"state"`

	CreatedAt time.Time `json:"created_at"`
}

// ComputeFingerprint calculates SHA-256 hash of the definition.
func ComputeFingerprint(definition []byte) string {
	hash := sha256.Sum256(definition)
	return hex.EncodeToString(hash[:])
}

// Key uniquely identifies a schema for lookup.
type Key struct {
	TenantID   string
	Collection string
	Version    int
}

// Key returns the lookup key for this schema.
func (s *Schema) Key() Key {
	return Key{
		TenantID:   s.TenantID,
		Collection: s.Collection,
		Version:    s.Version,
	}
}
