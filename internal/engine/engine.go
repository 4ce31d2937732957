// Package engine executes aggregation specs against a collection through a
// pluggable Executor, batching independent specs into as few engine
// requests as possible.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aevon-lab/docagg/internal/aggregation"
	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/aevon-lab/docagg/internal/metrics"
	"github.com/aevon-lab/docagg/internal/schema"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxParallel bounds the concurrent compile and execute calls of a
// single Aggregate call.
const DefaultMaxParallel = 4

// Executor runs a pipeline against a named collection and returns every
// result document. Engine failures are reported as
// *aggregation.ExecutionError.
type Executor interface {
	Aggregate(ctx context.Context, collection string, pipeline []bson.D) ([]bson.M, error)
}

// Collection binds a compiled collection schema to an executor. It is the
// aggregation.Collection specs compile against.
type Collection struct {
	*schema.Collection
	exec        Executor
	maxParallel int
}

var _ aggregation.Collection = (*Collection)(nil)

// NewCollection creates a collection executing through exec. A
// non-positive maxParallel selects DefaultMaxParallel.
func NewCollection(c *schema.Collection, exec Executor, maxParallel int) *Collection {
	if maxParallel < 1 {
		maxParallel = DefaultMaxParallel
	}
	return &Collection{Collection: c, exec: exec, maxParallel: maxParallel}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.Collection.Name }

// Bounds computes the (min, max) of a field or expression by running a
// Bounds spec.
func (c *Collection) Bounds(ctx context.Context, field string, expr *expression.Expr, safe bool) (any, any, error) {
	results, err := c.Aggregate(ctx, &aggregation.Bounds{Field: field, Expr: expr, Safe: safe})
	if err != nil {
		return nil, nil, err
	}
	b := results[0].(aggregation.BoundsResult)
	return b.Min, b.Max, nil
}

// Compile compiles every spec against the collection. Big-batchable Values
// specs project into distinct fields so their pipelines can be merged.
func (c *Collection) Compile(ctx context.Context, specs ...aggregation.Spec) ([]*aggregation.Compiled, error) {
	compiled := make([]*aggregation.Compiled, len(specs))
	bigFields := make([]string, len(specs))
	n := 0
	for i, s := range specs {
		if v, ok := s.(*aggregation.Values); ok && v.BigBatchable() {
			bigFields[i] = "value" + strconv.Itoa(n)
			n++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxParallel)
	for i, s := range specs {
		g.Go(func() error {
			var (
				cs  *aggregation.Compiled
				err error
			)
			if bigFields[i] != "" {
				cs, err = s.(*aggregation.Values).CompileWithField(gctx, c, bigFields[i])
			} else {
				cs, err = s.Compile(gctx, c)
			}
			if err != nil {
				return fmt.Errorf("compile %s: %w", s.Kind(), err)
			}
			compiled[i] = cs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return compiled, nil
}

// Aggregate compiles and executes specs and returns their decoded results
// in input order. Specs returning a single document share one $facet
// request, big-batchable Values specs share one $project request, and the
// remaining specs run on their own. Requests run in parallel.
func (c *Collection) Aggregate(ctx context.Context, specs ...aggregation.Spec) ([]any, error) {
	if len(specs) == 0 {
		return []any{}, nil
	}
	compiled, err := c.Compile(ctx, specs...)
	if err != nil {
		return nil, err
	}

	results := make([]any, len(specs))
	reqs := plan(specs, compiled, results)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxParallel)
	for _, r := range reqs {
		g.Go(func() error { return c.run(gctx, r) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Collection) run(ctx context.Context, r *request) error {
	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		rendered, err := RenderPipeline(r.pipeline)
		if err != nil {
			rendered = err.Error()
		}
		slog.Debug("[Engine] Running pipeline",
			"collection", c.Name(), "batch", r.batch, "specs", len(r.members), "pipeline", rendered)
	}

	start := time.Now()
	docs, err := c.exec.Aggregate(ctx, c.Name(), r.pipeline)
	metrics.PipelineDuration.WithLabelValues(c.Name(), r.batch).Observe(time.Since(start).Seconds())
	if err != nil {
		for _, m := range r.members {
			metrics.AggregationsTotal.WithLabelValues(string(m.spec.Kind()), "error").Inc()
		}
		slog.Error("[Engine] Pipeline failed", "collection", c.Name(), "batch", r.batch, "error", err)
		return err
	}

	if err := r.decode(docs); err != nil {
		for _, m := range r.members {
			metrics.AggregationsTotal.WithLabelValues(string(m.spec.Kind()), "error").Inc()
		}
		return err
	}
	for _, m := range r.members {
		metrics.AggregationsTotal.WithLabelValues(string(m.spec.Kind()), "ok").Inc()
	}
	return nil
}
