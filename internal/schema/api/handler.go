package api

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	httperr "github.com/aevon-lab/docagg/internal/core/errors"
	"github.com/aevon-lab/docagg/internal/schema"
	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

const tenantHeader = "X-Tenant-ID"

// Handler handles collection schema HTTP requests.
type Handler struct {
	registry      *schema.Registry
	defaultTenant string
}

// NewHandler creates a new schema API handler.
func NewHandler(reg *schema.Registry, defaultTenant string) *Handler {
	return &Handler{
		registry:      reg,
		defaultTenant: defaultTenant,
	}
}

// SchemaResponse is the response body for a single schema version.
type SchemaResponse struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Collection  string `json:"collection"`
	Version     int    `json:"version"`
	Format      string `json:"format"`
	State       string `json:"state"`
	Fingerprint string `json:"fingerprint"`
	CreatedAt   string `json:"created_at"`
}

// ListedSchemaResponse is the list payload. For YAML schemas, Definition
// contains the parsed document; other formats carry the raw text.
type ListedSchemaResponse struct {
	TenantID   string      `json:"tenant_id"`
	Collection string      `json:"collection"`
	Version    int         `json:"version"`
	Format     string      `json:"format"`
	State      string      `json:"state"`
	Definition interface{} `json:"definition"`
}

// FieldResponse describes one compiled field. Embedded documents, and lists
// of them, list their sub-fields.
type FieldResponse struct {
	Name   string           `json:"name"`
	Type   string           `json:"type"`
	Fields []*FieldResponse `json:"fields,omitempty"`
}

// FieldsResponse is the compiled field tree of a collection.
type FieldsResponse struct {
	Collection  string           `json:"collection"`
	Media       string           `json:"media"`
	Fields      []*FieldResponse `json:"fields"`
	FrameFields []*FieldResponse `json:"frame_fields,omitempty"`
}

// HandleGet handles GET /v1/schemas/{collection}/{version}.
func (h *Handler) HandleGet(c *gin.Context) {
	version, ok := parseVersion(c)
	if !ok {
		return
	}

	s, err := h.registry.Get(c.Request.Context(), h.tenant(c), c.Param("collection"), version)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(s))
}

// HandleFields handles GET /v1/schemas/{collection}/{version}/fields.
func (h *Handler) HandleFields(c *gin.Context) {
	version, ok := parseVersion(c)
	if !ok {
		return
	}

	coll, err := h.registry.Collection(c.Request.Context(), h.tenant(c), c.Param("collection"), version)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, &FieldsResponse{
		Collection:  coll.Name,
		Media:       string(coll.MediaKind()),
		Fields:      toFields(coll.Fields),
		FrameFields: toFields(coll.FrameFields),
	})
}

// HandleList handles GET /v1/schemas?collection=.
func (h *Handler) HandleList(c *gin.Context) {
	tenantID := h.tenant(c)
	collection := c.Query("collection")

	schemas, err := h.registry.List(c.Request.Context(), tenantID, collection)
	if err != nil {
		slog.Error("[Schema] List failed", "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{ErrorType: httperr.HttpInternalError, Message: "Failed to list schemas"})
		return
	}

	responses := make([]*ListedSchemaResponse, len(schemas))
	for i, s := range schemas {
		resp, convErr := toListedResponse(s)
		if convErr != nil {
			slog.Error("[Schema] Definition conversion failed", "error", convErr, "collection", s.Collection, "version", s.Version)
			c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{ErrorType: httperr.HttpInternalError, Message: "Failed to convert schema definition"})
			return
		}
		responses[i] = resp
	}

	c.JSON(http.StatusOK, responses)
}

func (h *Handler) tenant(c *gin.Context) string {
	if t := c.GetHeader(tenantHeader); t != "" {
		return t
	}
	if h.defaultTenant != "" {
		return h.defaultTenant
	}
	return schema.PlatformTenantID
}

// parseVersion accepts a positive integer or "latest".
func parseVersion(c *gin.Context) (int, bool) {
	raw := c.Param("version")
	if raw == "latest" {
		return 0, true
	}
	version, err := strconv.Atoi(raw)
	if err != nil || version < 1 {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidSpecificationError,
			Message:   "version must be a positive integer or \"latest\"",
		})
		return 0, false
	}
	return version, true
}

func writeError(c *gin.Context, err error) {
	status, resp := httperr.FromError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("[Schema] Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, resp)
}

func toResponse(s *schema.Schema) *SchemaResponse {
	return &SchemaResponse{
		ID:          s.ID,
		TenantID:    s.TenantID,
		Collection:  s.Collection,
		Version:     s.Version,
		Format:      string(s.Format),
		State:       string(s.State),
		Fingerprint: s.Fingerprint,
		CreatedAt:   s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toListedResponse(s *schema.Schema) (*ListedSchemaResponse, error) {
	resp := &ListedSchemaResponse{
		TenantID:   s.TenantID,
		Collection: s.Collection,
		Version:    s.Version,
		Format:     string(s.Format),
		State:      string(s.State),
	}

	if s.Format == schema.FormatYaml {
		var parsed map[string]interface{}
		if err := yaml.Unmarshal(s.Definition, &parsed); err != nil {
			return nil, err
		}
		resp.Definition = parsed
		return resp, nil
	}

	resp.Definition = map[string]interface{}{
		"raw": string(s.Definition),
	}
	return resp, nil
}

func toFields(fields map[string]*schema.Field) []*FieldResponse {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*FieldResponse, len(names))
	for i, name := range names {
		f := fields[name]
		sub := f.Fields
		if f.Kind == schema.KindList && f.Elem != nil {
			sub = f.Elem.Fields
		}
		out[i] = &FieldResponse{Name: name, Type: f.String(), Fields: toFields(sub)}
	}
	return out
}
