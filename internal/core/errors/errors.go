package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/aevon-lab/docagg/internal/aggregation"
	"github.com/aevon-lab/docagg/internal/core/storage"
	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/aevon-lab/docagg/internal/schema"
)

const (
	HttpInternalError             = "internal_error"
	HttpInvalidJsonError          = "invalid_json"
	HttpInvalidSpecificationError = "invalid_specification"
	HttpInvalidExpressionError    = "invalid_expression"
	HttpCollectionNotFoundError   = "collection_not_found"
	HttpFieldNotFoundError        = "field_not_found"
	HttpSchemaValidationError     = "schema_validation_failed"
	HttpTemplateNotFoundError     = "template_not_found"
	HttpDuplicateTemplateError    = "duplicate_template"
	HttpExecutionError            = "execution_failed"
)

// ErrorResponse is the error response body for API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// FromError maps err onto an HTTP status and response body.
func FromError(err error) (int, ErrorResponse) {
	var execErr *aggregation.ExecutionError
	var detailer schema.ValidationDetailer

	switch {
	case stderrors.As(err, &execErr):
		return http.StatusBadGateway, ErrorResponse{
			ErrorType: HttpExecutionError,
			Message:   err.Error(),
			Details:   map[string]string{"collection": execErr.Collection},
		}
	case stderrors.Is(err, expression.ErrInvalidExpression):
		return http.StatusBadRequest, ErrorResponse{ErrorType: HttpInvalidExpressionError, Message: err.Error()}
	case stderrors.Is(err, aggregation.ErrInvalidSpecification):
		return http.StatusBadRequest, ErrorResponse{ErrorType: HttpInvalidSpecificationError, Message: err.Error()}
	case stderrors.As(err, &detailer):
		return http.StatusBadRequest, ErrorResponse{
			ErrorType: HttpSchemaValidationError,
			Message:   err.Error(),
			Details:   detailer.Details(),
		}
	case stderrors.Is(err, schema.ErrFieldNotFound):
		return http.StatusNotFound, ErrorResponse{ErrorType: HttpFieldNotFoundError, Message: err.Error()}
	case stderrors.Is(err, schema.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{ErrorType: HttpCollectionNotFoundError, Message: err.Error()}
	case stderrors.Is(err, storage.ErrTemplateNotFound):
		return http.StatusNotFound, ErrorResponse{ErrorType: HttpTemplateNotFoundError, Message: err.Error()}
	case stderrors.Is(err, storage.ErrDuplicate):
		return http.StatusConflict, ErrorResponse{ErrorType: HttpDuplicateTemplateError, Message: err.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{ErrorType: HttpInternalError, Message: "internal server error"}
}
