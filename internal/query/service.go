// Package query exposes compiled pipelines, aggregation runs and saved
// templates over HTTP.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aevon-lab/docagg/internal/aggregation"
	"github.com/aevon-lab/docagg/internal/core/storage"
	"github.com/aevon-lab/docagg/internal/engine"
	"github.com/aevon-lab/docagg/internal/schema"
)

// ErrTemplatesDisabled is returned by template operations when no template
// store is configured.
var ErrTemplatesDisabled = errors.New("template store is not configured")

// CollectionSource resolves compiled collection schemas.
type CollectionSource interface {
	Collection(ctx context.Context, tenantID, collection string, version int) (*schema.Collection, error)
}

type Options struct {
	// TenantID is used when a request names no tenant.
	TenantID      string
	MaxParallel   int
	MaxBodySizeMB int
	// DefaultBins replaces the bin count of histograms that name neither
	// bins nor edges.
	DefaultBins int
}

type Service struct {
	schemas   CollectionSource
	exec      engine.Executor
	templates storage.TemplateStore
	opts      Options
}

// NewService creates a query service. templates may be nil, in which case
// the template routes are not registered.
func NewService(schemas CollectionSource, exec engine.Executor, templates storage.TemplateStore, opts Options) *Service {
	if opts.MaxBodySizeMB <= 0 {
		opts.MaxBodySizeMB = 1
	}
	return &Service{schemas: schemas, exec: exec, templates: templates, opts: opts}
}

func (s *Service) collection(ctx context.Context, tenantID, name string, version int) (*engine.Collection, error) {
	if tenantID == "" {
		tenantID = s.opts.TenantID
	}
	c, err := s.schemas.Collection(ctx, tenantID, name, version)
	if err != nil {
		return nil, fmt.Errorf("load collection %q: %w", name, err)
	}
	return engine.NewCollection(c, s.exec, s.opts.MaxParallel), nil
}

func (s *Service) applyDefaults(specs []aggregation.Spec) {
	if s.opts.DefaultBins <= 0 {
		return
	}
	for _, spec := range specs {
		if h, ok := spec.(*aggregation.HistogramValues); ok && h.Bins <= 0 && h.Edges == nil {
			h.Bins = s.opts.DefaultBins
		}
	}
}

func parseSpecs(raw json.RawMessage) ([]aggregation.Spec, error) {
	specs, err := aggregation.ParseDocuments(raw)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no specs given", aggregation.ErrInvalidSpecification)
	}
	return specs, nil
}

// Pipelines compiles the requested specs without running them.
func (s *Service) Pipelines(ctx context.Context, req Request) (*PipelineResponse, error) {
	specs, err := parseSpecs(req.Specs)
	if err != nil {
		return nil, err
	}
	return s.Compile(ctx, req.TenantID, req.Collection, req.Version, specs)
}

// Compile compiles specs against a collection schema.
func (s *Service) Compile(ctx context.Context, tenantID, collection string, version int, specs []aggregation.Spec) (*PipelineResponse, error) {
	coll, err := s.collection(ctx, tenantID, collection, version)
	if err != nil {
		return nil, err
	}
	s.applyDefaults(specs)
	compiled, err := coll.Compile(ctx, specs...)
	if err != nil {
		return nil, err
	}

	resp := &PipelineResponse{Collection: collection, Pipelines: make([]CompiledPipeline, len(specs))}
	for i, c := range compiled {
		stages, err := engine.PipelineJSON(c.Pipeline)
		if err != nil {
			return nil, fmt.Errorf("render %s pipeline: %w", c.Kind, err)
		}
		resp.Pipelines[i] = CompiledPipeline{UUID: specs[i].ID(), Kind: c.Kind, Pipeline: stages}
	}
	return resp, nil
}

// Aggregate compiles and runs the requested specs.
func (s *Service) Aggregate(ctx context.Context, req Request) (*AggregateResponse, error) {
	specs, err := parseSpecs(req.Specs)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, req.TenantID, req.Collection, req.Version, specs)
}

// Run compiles and executes specs against a collection. Non-finite floats
// in the results are reported as strings.
func (s *Service) Run(ctx context.Context, tenantID, collection string, version int, specs []aggregation.Spec) (*AggregateResponse, error) {
	coll, err := s.collection(ctx, tenantID, collection, version)
	if err != nil {
		return nil, err
	}
	s.applyDefaults(specs)
	results, err := coll.Aggregate(ctx, specs...)
	if err != nil {
		return nil, err
	}

	resp := &AggregateResponse{
		Collection: collection,
		Results:    make(map[string]any, len(specs)),
		Order:      make([]string, len(specs)),
	}
	for i, spec := range specs {
		id := spec.ID()
		resp.Order[i] = id
		resp.Results[id] = jsonSafe(results[i])
	}
	return resp, nil
}

// SaveTemplate validates and stores a named list of specs. The specs are
// stored re-serialized with their identity tokens so every run of the
// template reports results under the same keys.
func (s *Service) SaveTemplate(ctx context.Context, body TemplateBody) (*storage.Template, error) {
	if s.templates == nil {
		return nil, ErrTemplatesDisabled
	}
	if strings.TrimSpace(body.Name) == "" || strings.TrimSpace(body.Collection) == "" {
		return nil, fmt.Errorf("%w: template name and collection are required", aggregation.ErrInvalidSpecification)
	}
	specs, err := parseSpecs(body.Specs)
	if err != nil {
		return nil, err
	}

	docs := make([]aggregation.Document, len(specs))
	for i, spec := range specs {
		docs[i] = aggregation.Serialize(spec, true)
	}
	encoded, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("encode specs: %w", err)
	}

	tpl := &storage.Template{Name: body.Name, Collection: body.Collection, Specs: encoded}
	if err := s.templates.SaveTemplate(ctx, tpl); err != nil {
		return nil, err
	}
	slog.Info("[Templates] Saved template", "name", tpl.Name, "collection", tpl.Collection, "specs", len(specs))
	return tpl, nil
}

func (s *Service) GetTemplate(ctx context.Context, name string) (*storage.Template, error) {
	if s.templates == nil {
		return nil, ErrTemplatesDisabled
	}
	return s.templates.GetTemplate(ctx, name)
}

func (s *Service) ListTemplates(ctx context.Context, collection string) ([]*storage.Template, error) {
	if s.templates == nil {
		return nil, ErrTemplatesDisabled
	}
	return s.templates.ListTemplates(ctx, collection)
}

func (s *Service) DeleteTemplate(ctx context.Context, name string) error {
	if s.templates == nil {
		return ErrTemplatesDisabled
	}
	if err := s.templates.DeleteTemplate(ctx, name); err != nil {
		return err
	}
	slog.Info("[Templates] Deleted template", "name", name)
	return nil
}

// RunTemplate loads a stored template and runs its specs against the
// template's collection.
func (s *Service) RunTemplate(ctx context.Context, tenantID, name string, version int) (*AggregateResponse, error) {
	tpl, err := s.GetTemplate(ctx, name)
	if err != nil {
		return nil, err
	}
	specs, err := parseSpecs(tpl.Specs)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	return s.Run(ctx, tenantID, tpl.Collection, version, specs)
}
