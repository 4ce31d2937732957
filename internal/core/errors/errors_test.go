package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aevon-lab/docagg/internal/aggregation"
	"github.com/aevon-lab/docagg/internal/core/storage"
	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/aevon-lab/docagg/internal/schema"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		errorType string
	}{
		{
			name:      "invalid specification",
			err:       fmt.Errorf("%w: bins must be positive", aggregation.ErrInvalidSpecification),
			status:    http.StatusBadRequest,
			errorType: HttpInvalidSpecificationError,
		},
		{
			name:      "invalid expression",
			err:       fmt.Errorf("%w: unknown function", expression.ErrInvalidExpression),
			status:    http.StatusBadRequest,
			errorType: HttpInvalidExpressionError,
		},
		{
			name:      "schema validation",
			err:       schema.NewUnsupportedTypeError("samples", 1, "x", "complex"),
			status:    http.StatusBadRequest,
			errorType: HttpSchemaValidationError,
		},
		{
			name:      "unknown field",
			err:       fmt.Errorf("resolve: %w", &schema.FieldNotFoundError{Collection: "samples", Path: "y"}),
			status:    http.StatusNotFound,
			errorType: HttpFieldNotFoundError,
		},
		{
			name:      "unknown collection",
			err:       fmt.Errorf("%w: samples v0", schema.ErrNotFound),
			status:    http.StatusNotFound,
			errorType: HttpCollectionNotFoundError,
		},
		{
			name:      "unknown template",
			err:       storage.ErrTemplateNotFound,
			status:    http.StatusNotFound,
			errorType: HttpTemplateNotFoundError,
		},
		{
			name:      "duplicate template",
			err:       storage.ErrDuplicate,
			status:    http.StatusConflict,
			errorType: HttpDuplicateTemplateError,
		},
		{
			name:      "execution",
			err:       &aggregation.ExecutionError{Collection: "samples", Err: stderrors.New("timeout")},
			status:    http.StatusBadGateway,
			errorType: HttpExecutionError,
		},
		{
			name:      "anything else",
			err:       stderrors.New("boom"),
			status:    http.StatusInternalServerError,
			errorType: HttpInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := FromError(tt.err)
			require.Equal(t, tt.status, status)
			require.Equal(t, tt.errorType, resp.ErrorType)
			require.NotEmpty(t, resp.Message)
		})
	}
}

func TestFromError_HidesInternalMessage(t *testing.T) {
	_, resp := FromError(stderrors.New("password=hunter2"))
	require.Equal(t, "internal server error", resp.Message)
}

func TestFromError_ExecutionDetails(t *testing.T) {
	_, resp := FromError(&aggregation.ExecutionError{Collection: "frames", Err: stderrors.New("reset")})
	require.Equal(t, map[string]string{"collection": "frames"}, resp.Details)
}
