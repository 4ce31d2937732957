package api

import (
	"github.com/aevon-lab/docagg/internal/schema"
	"github.com/gin-gonic/gin"
)

// Service provides the read-only collection schema API.
type Service struct {
	registry      *schema.Registry
	defaultTenant string
}

// NewService creates a new schema API service. defaultTenant is used when a
// request carries no X-Tenant-ID header.
func NewService(reg *schema.Registry, defaultTenant string) *Service {
	return &Service{
		registry:      reg,
		defaultTenant: defaultTenant,
	}
}

// RegisterRoutes registers the schema API routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	handler := NewHandler(s.registry, s.defaultTenant)

	schemas := r.Group("/v1/schemas")
	{
		schemas.GET("", handler.HandleList)
		// /v1/schemas/{collection}/{version|latest}
		schemas.GET("/:collection/:version", handler.HandleGet)
		schemas.GET("/:collection/:version/fields", handler.HandleFields)
	}
}
