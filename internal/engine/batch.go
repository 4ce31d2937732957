package engine

import (
	"fmt"
	"strconv"

	"github.com/aevon-lab/docagg/internal/aggregation"
	"github.com/aevon-lab/docagg/internal/metrics"
	"go.mongodb.org/mongo-driver/bson"
)

type member struct {
	index    int
	spec     aggregation.Spec
	compiled *aggregation.Compiled
}

func (m member) decode(docs []bson.M, results []any) error {
	res, err := m.spec.Decode(m.compiled, docs)
	if err != nil {
		return fmt.Errorf("decode %s: %w", m.spec.Kind(), err)
	}
	results[m.index] = res
	return nil
}

// request is one engine round trip serving one or more specs.
type request struct {
	batch    string
	pipeline []bson.D
	members  []member
	decode   func(docs []bson.M) error
}

// plan groups compiled specs into requests whose decoders store into
// results by input position.
func plan(specs []aggregation.Spec, compiled []*aggregation.Compiled, results []any) []*request {
	var facetable, batchable, alone []member
	for i, s := range specs {
		m := member{index: i, spec: s, compiled: compiled[i]}
		v, isValues := s.(*aggregation.Values)
		switch {
		case isValues && v.BigBatchable():
			batchable = append(batchable, m)
		case isValues && v.BigResult():
			alone = append(alone, m)
		case hasFacet(m.compiled.Pipeline):
			alone = append(alone, m)
		default:
			facetable = append(facetable, m)
		}
	}

	var reqs []*request
	switch len(facetable) {
	case 0:
	case 1:
		alone = append(alone, facetable[0])
	default:
		reqs = append(reqs, facetRequest(facetable, results))
	}
	switch len(batchable) {
	case 0:
	case 1:
		alone = append(alone, batchable[0])
	default:
		reqs = append(reqs, valuesRequest(batchable, results))
	}
	for _, m := range alone {
		reqs = append(reqs, singleRequest(m, results))
	}
	return reqs
}

func singleRequest(m member, results []any) *request {
	return &request{
		batch:    metrics.BatchSingle,
		pipeline: m.compiled.Pipeline,
		members:  []member{m},
		decode: func(docs []bson.M) error {
			return m.decode(docs, results)
		},
	}
}

// facetRequest runs every member pipeline as a branch of one $facet stage,
// keyed by the member's position in the batch.
func facetRequest(members []member, results []any) *request {
	branches := make(bson.D, len(members))
	for j, m := range members {
		stages := make(bson.A, len(m.compiled.Pipeline))
		for k, s := range m.compiled.Pipeline {
			stages[k] = s
		}
		branches[j] = bson.E{Key: strconv.Itoa(j), Value: stages}
	}

	return &request{
		batch:    metrics.BatchFacet,
		pipeline: []bson.D{{{Key: "$facet", Value: branches}}},
		members:  members,
		decode: func(docs []bson.M) error {
			var out bson.M
			if len(docs) > 0 {
				out = docs[0]
			}
			for j, m := range members {
				branch, err := toDocs(out[strconv.Itoa(j)])
				if err != nil {
					return fmt.Errorf("facet %d: %w", j, err)
				}
				if err := m.decode(branch, results); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// valuesRequest merges the single $project stages of big-batchable Values
// specs. Each member reads its own projected field from the shared stream.
func valuesRequest(members []member, results []any) *request {
	var fields bson.D
	for _, m := range members {
		fields = append(fields, m.compiled.Pipeline[0][0].Value.(bson.D)...)
	}

	return &request{
		batch:    metrics.BatchValues,
		pipeline: []bson.D{{{Key: "$project", Value: fields}}},
		members:  members,
		decode: func(docs []bson.M) error {
			for _, m := range members {
				if err := m.decode(docs, results); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func hasFacet(pipeline []bson.D) bool {
	for _, stage := range pipeline {
		if len(stage) > 0 && stage[0].Key == "$facet" {
			return true
		}
	}
	return false
}

// toDocs converts a facet branch result to documents.
func toDocs(v any) ([]bson.M, error) {
	var items []any
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bson.A:
		items = val
	case []any:
		items = val
	default:
		return nil, fmt.Errorf("expected list of documents, got %T", v)
	}

	docs := make([]bson.M, len(items))
	for i, item := range items {
		switch d := item.(type) {
		case bson.M:
			docs[i] = d
		case map[string]any:
			docs[i] = d
		case bson.D:
			docs[i] = d.Map()
		default:
			return nil, fmt.Errorf("expected document, got %T", item)
		}
	}
	return docs, nil
}
