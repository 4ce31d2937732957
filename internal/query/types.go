package query

import (
	"encoding/json"

	"github.com/aevon-lab/docagg/internal/aggregation"
)

// Request identifies the collection schema and the serialized specs of a
// pipeline or aggregate call.
type Request struct {
	TenantID   string
	Collection string
	// Version 0 selects the latest collection schema.
	Version int
	Specs   json.RawMessage
}

// SpecsBody is the JSON body accepted by the pipeline and aggregate routes.
type SpecsBody struct {
	Specs   json.RawMessage `json:"specs" binding:"required"`
	Version int             `json:"version"`
}

// CompiledPipeline is one spec's compiled pipeline in relaxed Extended JSON.
type CompiledPipeline struct {
	UUID     string            `json:"uuid"`
	Kind     aggregation.Kind  `json:"kind"`
	Pipeline []json.RawMessage `json:"pipeline"`
}

type PipelineResponse struct {
	Collection string             `json:"collection"`
	Pipelines  []CompiledPipeline `json:"pipelines"`
}

// AggregateResponse carries results keyed by spec identity token. Order
// lists the tokens in request order.
type AggregateResponse struct {
	Collection string         `json:"collection"`
	Results    map[string]any `json:"results"`
	Order      []string       `json:"order"`
}

// TemplateBody is the JSON body accepted by POST /v1/templates.
type TemplateBody struct {
	Name       string          `json:"name" binding:"required"`
	Collection string          `json:"collection" binding:"required"`
	Specs      json.RawMessage `json:"specs" binding:"required"`
}

// RunTemplateBody is the optional JSON body of POST /v1/templates/:name/run.
type RunTemplateBody struct {
	Version int `json:"version"`
}
