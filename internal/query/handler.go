package query

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	httperr "github.com/aevon-lab/docagg/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// TenantHeader selects the tenant whose collection schemas are used.
const TenantHeader = "X-Tenant-ID"

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
)

// requestError carries an HTTP error shape from a helper back to the handler.
type requestError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *requestError) Error() string {
	return e.message
}

// RegisterRoutes registers the query API routes. Template routes are only
// registered when a template store is configured.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.POST("/collections/:collection/pipeline", s.HandlePipeline)
	v1.POST("/collections/:collection/aggregate", s.HandleAggregate)

	if s.templates == nil {
		return
	}
	v1.POST("/templates", s.HandleSaveTemplate)
	v1.GET("/templates", s.HandleListTemplates)
	v1.GET("/templates/:name", s.HandleGetTemplate)
	v1.DELETE("/templates/:name", s.HandleDeleteTemplate)
	v1.POST("/templates/:name/run", s.HandleRunTemplate)
}

// HandlePipeline handles POST /v1/collections/:collection/pipeline
func (s *Service) HandlePipeline(c *gin.Context) {
	var body SpecsBody
	if err := s.bindBody(c, &body, false); err != nil {
		writeRequestError(c, err)
		return
	}

	resp, err := s.Pipelines(c.Request.Context(), s.request(c, body))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleAggregate handles POST /v1/collections/:collection/aggregate
func (s *Service) HandleAggregate(c *gin.Context) {
	var body SpecsBody
	if err := s.bindBody(c, &body, false); err != nil {
		writeRequestError(c, err)
		return
	}

	resp, err := s.Aggregate(c.Request.Context(), s.request(c, body))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleSaveTemplate handles POST /v1/templates
func (s *Service) HandleSaveTemplate(c *gin.Context) {
	var body TemplateBody
	if err := s.bindBody(c, &body, false); err != nil {
		writeRequestError(c, err)
		return
	}

	tpl, err := s.SaveTemplate(c.Request.Context(), body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

// HandleListTemplates handles GET /v1/templates?collection=
func (s *Service) HandleListTemplates(c *gin.Context) {
	templates, err := s.ListTemplates(c.Request.Context(), c.Query("collection"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

// HandleGetTemplate handles GET /v1/templates/:name
func (s *Service) HandleGetTemplate(c *gin.Context) {
	tpl, err := s.GetTemplate(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// HandleDeleteTemplate handles DELETE /v1/templates/:name
func (s *Service) HandleDeleteTemplate(c *gin.Context) {
	if err := s.DeleteTemplate(c.Request.Context(), c.Param("name")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleRunTemplate handles POST /v1/templates/:name/run. The body is
// optional.
func (s *Service) HandleRunTemplate(c *gin.Context) {
	var body RunTemplateBody
	if err := s.bindBody(c, &body, true); err != nil {
		writeRequestError(c, err)
		return
	}

	resp, err := s.RunTemplate(c.Request.Context(), c.GetHeader(TenantHeader), c.Param("name"), body.Version)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Service) request(c *gin.Context, body SpecsBody) Request {
	return Request{
		TenantID:   c.GetHeader(TenantHeader),
		Collection: c.Param("collection"),
		Version:    body.Version,
		Specs:      body.Specs,
	}
}

// bindBody reads at most MaxBodySizeMB of the request body and binds it
// into dst.
func (s *Service) bindBody(c *gin.Context, dst interface{}, optional bool) *requestError {
	maxBytes := int64(s.opts.MaxBodySizeMB) * 1024 * 1024
	bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
	if err != nil {
		slog.Error("[Query] Failed to read request body", "error", err)
		return &requestError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("[Query] Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return &requestError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": s.opts.MaxBodySizeMB,
			},
		}
	}
	if optional && len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	if err := c.ShouldBindJSON(dst); err != nil {
		slog.Warn("[Query] Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return &requestError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
			details:    err.Error(),
		}
	}
	return nil
}

func writeRequestError(c *gin.Context, err *requestError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}

func writeError(c *gin.Context, err error) {
	if errors.Is(err, ErrTemplatesDisabled) {
		c.JSON(http.StatusNotImplemented, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   err.Error(),
		})
		return
	}

	status, resp := httperr.FromError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("[Query] Request failed", "path", c.FullPath(), "status", status, "error", err)
	} else {
		slog.Warn("[Query] Request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, resp)
}
