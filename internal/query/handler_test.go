package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aevon-lab/docagg/internal/aggregation"
	httperr "github.com/aevon-lab/docagg/internal/core/errors"
	"github.com/aevon-lab/docagg/internal/core/storage"
	enginemocks "github.com/aevon-lab/docagg/internal/mocks/engine"
	storagemocks "github.com/aevon-lab/docagg/internal/mocks/storage"
	"github.com/aevon-lab/docagg/internal/schema"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type fakeSource struct {
	coll    *schema.Collection
	tenants []string
}

func (f *fakeSource) Collection(_ context.Context, tenantID, collection string, version int) (*schema.Collection, error) {
	f.tenants = append(f.tenants, tenantID)
	if collection != f.coll.Name {
		return nil, fmt.Errorf("%w: %s v%d", schema.ErrNotFound, collection, version)
	}
	return f.coll, nil
}

func newSource() *fakeSource {
	return &fakeSource{coll: &schema.Collection{
		Name:  "samples",
		Media: schema.MediaImage,
		Fields: map[string]*schema.Field{
			"x":          {Name: "x", Kind: schema.KindInt},
			"confidence": {Name: "confidence", Kind: schema.KindFloat},
		},
	}}
}

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc.RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, url, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) httperr.ErrorResponse {
	t.Helper()
	var body httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body
}

func TestHandlePipeline(t *testing.T) {
	source := newSource()
	svc := NewService(source, enginemocks.NewExecutor(t), nil, Options{TenantID: "acme"})
	r := newRouter(svc)

	resp := do(r, http.MethodPost, "/v1/collections/samples/pipeline",
		`{"specs": [{"kind": "Count", "params": [], "uuid": "c1"}]}`, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body PipelineResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, "samples", body.Collection)
	require.Len(t, body.Pipelines, 1)
	require.Equal(t, "c1", body.Pipelines[0].UUID)
	require.Equal(t, aggregation.KindCount, body.Pipelines[0].Kind)
	require.Len(t, body.Pipelines[0].Pipeline, 1)
	require.JSONEq(t, `{"$count": "count"}`, string(body.Pipelines[0].Pipeline[0]))
	require.Equal(t, []string{"acme"}, source.tenants)
}

func TestHandleAggregate(t *testing.T) {
	exec := enginemocks.NewExecutor(t)
	exec.EXPECT().
		Aggregate(mock.Anything, "samples", []bson.D{{{Key: "$count", Value: "count"}}}).
		Return([]bson.M{{"count": int32(7)}}, nil).
		Once()

	source := newSource()
	r := newRouter(NewService(source, exec, nil, Options{}))

	resp := do(r, http.MethodPost, "/v1/collections/samples/aggregate",
		`{"specs": [{"kind": "Count", "params": [], "uuid": "c1"}]}`,
		map[string]string{TenantHeader: "tenant-7"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.JSONEq(t, `{"collection": "samples", "results": {"c1": 7}, "order": ["c1"]}`, resp.Body.String())
	require.Equal(t, []string{"tenant-7"}, source.tenants)
}

func TestHandleAggregate_GeneratesIdentityTokens(t *testing.T) {
	exec := enginemocks.NewExecutor(t)
	exec.EXPECT().
		Aggregate(mock.Anything, "samples", mock.Anything).
		Return([]bson.M{{"0": bson.A{bson.M{"count": int32(2)}}, "1": bson.A{bson.M{"_id": nil, "sum": int32(9)}}}}, nil).
		Once()

	r := newRouter(NewService(newSource(), exec, nil, Options{}))
	resp := do(r, http.MethodPost, "/v1/collections/samples/aggregate",
		`{"specs": [{"kind": "Count", "params": []}, {"kind": "Sum", "params": [["field_or_expr", "x"]]}]}`, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body AggregateResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Order, 2)
	require.NotEqual(t, body.Order[0], body.Order[1])
	require.Equal(t, float64(2), body.Results[body.Order[0]])
	require.Equal(t, float64(9), body.Results[body.Order[1]])
}

func TestHandleAggregate_StatusMapping(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		body           string
		configureExec  func(exec *enginemocks.Executor)
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "malformed json",
			url:            "/v1/collections/samples/aggregate",
			body:           `{"specs": [`,
			expectedStatus: http.StatusBadRequest,
			expectedType:   httperr.HttpInvalidJsonError,
		},
		{
			name:           "missing specs",
			url:            "/v1/collections/samples/aggregate",
			body:           `{"version": 1}`,
			expectedStatus: http.StatusBadRequest,
			expectedType:   httperr.HttpInvalidJsonError,
		},
		{
			name:           "empty specs",
			url:            "/v1/collections/samples/aggregate",
			body:           `{"specs": []}`,
			expectedStatus: http.StatusBadRequest,
			expectedType:   httperr.HttpInvalidSpecificationError,
		},
		{
			name:           "unknown kind",
			url:            "/v1/collections/samples/aggregate",
			body:           `{"specs": [{"kind": "Median", "params": []}]}`,
			expectedStatus: http.StatusBadRequest,
			expectedType:   httperr.HttpInvalidSpecificationError,
		},
		{
			name:           "invalid expression",
			url:            "/v1/collections/samples/aggregate",
			body:           `{"specs": [{"kind": "Sum", "params": [["expr", "x +"]]}]}`,
			expectedStatus: http.StatusBadRequest,
			expectedType:   httperr.HttpInvalidExpressionError,
		},
		{
			name:           "unknown collection",
			url:            "/v1/collections/frames/aggregate",
			body:           `{"specs": [{"kind": "Count", "params": []}]}`,
			expectedStatus: http.StatusNotFound,
			expectedType:   httperr.HttpCollectionNotFoundError,
		},
		{
			name:           "unknown field",
			url:            "/v1/collections/samples/aggregate",
			body:           `{"specs": [{"kind": "Sum", "params": [["field_or_expr", "missing"]]}]}`,
			expectedStatus: http.StatusNotFound,
			expectedType:   httperr.HttpFieldNotFoundError,
		},
		{
			name: "engine failure",
			url:  "/v1/collections/samples/aggregate",
			body: `{"specs": [{"kind": "Count", "params": []}]}`,
			configureExec: func(exec *enginemocks.Executor) {
				exec.EXPECT().
					Aggregate(mock.Anything, "samples", mock.Anything).
					Return(nil, &aggregation.ExecutionError{Collection: "samples", Err: errors.New("socket closed")}).
					Once()
			},
			expectedStatus: http.StatusBadGateway,
			expectedType:   httperr.HttpExecutionError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exec := enginemocks.NewExecutor(t)
			if tc.configureExec != nil {
				tc.configureExec(exec)
			}
			r := newRouter(NewService(newSource(), exec, nil, Options{}))

			resp := do(r, http.MethodPost, tc.url, tc.body, nil)
			if resp.Code != tc.expectedStatus {
				t.Logf("unexpected response body: %s", resp.Body.String())
			}
			require.Equal(t, tc.expectedStatus, resp.Code)
			require.Equal(t, tc.expectedType, decodeError(t, resp).ErrorType)
		})
	}
}

func TestHandleAggregate_BodyTooLarge(t *testing.T) {
	r := newRouter(NewService(newSource(), enginemocks.NewExecutor(t), nil, Options{MaxBodySizeMB: 1}))

	body := `{"specs": [], "pad": "` + strings.Repeat("x", 1024*1024) + `"}`
	resp := do(r, http.MethodPost, "/v1/collections/samples/aggregate", body, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
}

func TestTemplateRoutes_NotRegisteredWithoutStore(t *testing.T) {
	r := newRouter(NewService(newSource(), enginemocks.NewExecutor(t), nil, Options{}))

	resp := do(r, http.MethodGet, "/v1/templates", "", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandleSaveTemplate(t *testing.T) {
	store := storagemocks.NewTemplateStore(t)
	var saved *storage.Template
	store.EXPECT().
		SaveTemplate(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, tpl *storage.Template) error {
			tpl.ID = "tpl-1"
			tpl.CreatedAt = time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
			saved = tpl
			return nil
		}).
		Once()

	r := newRouter(NewService(newSource(), enginemocks.NewExecutor(t), store, Options{}))
	resp := do(r, http.MethodPost, "/v1/templates",
		`{"name": "daily", "collection": "samples", "specs": [{"kind": "Mean", "params": [["field_or_expr", "confidence"]]}]}`, nil)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	require.Equal(t, "daily", saved.Name)
	var docs []aggregation.Document
	require.NoError(t, json.Unmarshal(saved.Specs, &docs))
	require.Len(t, docs, 1)
	require.Equal(t, aggregation.KindMean, docs[0].Kind)
	require.NotEmpty(t, docs[0].UUID)
}

func TestHandleSaveTemplate_Errors(t *testing.T) {
	t.Run("duplicate", func(t *testing.T) {
		store := storagemocks.NewTemplateStore(t)
		store.EXPECT().SaveTemplate(mock.Anything, mock.Anything).Return(storage.ErrDuplicate).Once()

		r := newRouter(NewService(newSource(), enginemocks.NewExecutor(t), store, Options{}))
		resp := do(r, http.MethodPost, "/v1/templates",
			`{"name": "daily", "collection": "samples", "specs": [{"kind": "Count", "params": []}]}`, nil)
		require.Equal(t, http.StatusConflict, resp.Code)
		require.Equal(t, httperr.HttpDuplicateTemplateError, decodeError(t, resp).ErrorType)
	})

	t.Run("invalid specs are not stored", func(t *testing.T) {
		store := storagemocks.NewTemplateStore(t)

		r := newRouter(NewService(newSource(), enginemocks.NewExecutor(t), store, Options{}))
		resp := do(r, http.MethodPost, "/v1/templates",
			`{"name": "daily", "collection": "samples", "specs": [{"kind": "Count"}]}`, nil)
		require.Equal(t, http.StatusBadRequest, resp.Code)
		store.AssertNotCalled(t, "SaveTemplate", mock.Anything, mock.Anything)
	})
}

func TestHandleTemplateLookup(t *testing.T) {
	created := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)
	tpl := &storage.Template{
		ID:         "tpl-1",
		Name:       "daily",
		Collection: "samples",
		Specs:      json.RawMessage(`[{"kind":"Count","params":[],"uuid":"t1"}]`),
		CreatedAt:  created,
	}

	store := storagemocks.NewTemplateStore(t)
	store.EXPECT().GetTemplate(mock.Anything, "daily").Return(tpl, nil).Once()
	store.EXPECT().GetTemplate(mock.Anything, "missing").
		Return(nil, fmt.Errorf("%w: missing", storage.ErrTemplateNotFound)).Once()
	store.EXPECT().ListTemplates(mock.Anything, "samples").Return([]*storage.Template{tpl}, nil).Once()
	store.EXPECT().DeleteTemplate(mock.Anything, "daily").Return(nil).Once()

	r := newRouter(NewService(newSource(), enginemocks.NewExecutor(t), store, Options{}))

	resp := do(r, http.MethodGet, "/v1/templates/daily", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{
		"id": "tpl-1",
		"name": "daily",
		"collection": "samples",
		"specs": [{"kind": "Count", "params": [], "uuid": "t1"}],
		"created_at": "2026-02-08T12:00:00Z"
	}`, resp.Body.String())

	resp = do(r, http.MethodGet, "/v1/templates/missing", "", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Equal(t, httperr.HttpTemplateNotFoundError, decodeError(t, resp).ErrorType)

	resp = do(r, http.MethodGet, "/v1/templates?collection=samples", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var listed struct {
		Templates []storage.Template `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &listed))
	require.Len(t, listed.Templates, 1)

	resp = do(r, http.MethodDelete, "/v1/templates/daily", "", nil)
	require.Equal(t, http.StatusNoContent, resp.Code)
}

func TestHandleRunTemplate(t *testing.T) {
	store := storagemocks.NewTemplateStore(t)
	store.EXPECT().GetTemplate(mock.Anything, "daily").Return(&storage.Template{
		Name:       "daily",
		Collection: "samples",
		Specs:      json.RawMessage(`[{"kind":"Count","params":[],"uuid":"t1"}]`),
	}, nil).Twice()

	exec := enginemocks.NewExecutor(t)
	exec.EXPECT().
		Aggregate(mock.Anything, "samples", mock.Anything).
		Return([]bson.M{{"count": int32(11)}}, nil).
		Twice()

	source := newSource()
	r := newRouter(NewService(source, exec, store, Options{TenantID: "acme"}))

	resp := do(r, http.MethodPost, "/v1/templates/daily/run", "", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.JSONEq(t, `{"collection": "samples", "results": {"t1": 11}, "order": ["t1"]}`, resp.Body.String())

	resp = do(r, http.MethodPost, "/v1/templates/daily/run", `{"version": 2}`, map[string]string{TenantHeader: "t-2"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Equal(t, []string{"acme", "t-2"}, source.tenants)
}

func TestJSONSafe(t *testing.T) {
	got := jsonSafe([]any{
		math.NaN(),
		math.Inf(1),
		bson.A{math.Inf(-1), 1.5},
		aggregation.BoundsResult{Min: math.Inf(-1), Max: 3.0},
		aggregation.CountValuesResult{Total: 1, Values: []aggregation.ValueCount{{Value: math.NaN(), Count: 1}}},
		bson.D{{Key: "a", Value: math.NaN()}},
	})

	require.Equal(t, []any{
		"nan",
		"inf",
		[]any{"-inf", 1.5},
		aggregation.BoundsResult{Min: "-inf", Max: 3.0},
		aggregation.CountValuesResult{Total: 1, Values: []aggregation.ValueCount{{Value: "nan", Count: 1}}},
		map[string]any{"a": "nan"},
	}, got)

	_, err := json.Marshal(got)
	require.NoError(t, err)
}

func TestCompile_AppliesDefaultBins(t *testing.T) {
	svc := NewService(newSource(), enginemocks.NewExecutor(t), nil, Options{DefaultBins: 4})

	defaulted := &aggregation.HistogramValues{Field: "x", Range: []any{0, 4}}
	explicit := &aggregation.HistogramValues{Field: "x", Range: []any{0, 4}, Bins: 2}

	resp, err := svc.Compile(context.Background(), "", "samples", 0, []aggregation.Spec{defaulted, explicit})
	require.NoError(t, err)
	require.Len(t, resp.Pipelines, 2)
	require.Equal(t, 4, defaulted.Bins)
	require.Equal(t, 2, explicit.Bins)
}
