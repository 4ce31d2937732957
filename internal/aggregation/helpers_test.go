package aggregation

import (
	"context"

	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/aevon-lab/docagg/internal/schema"
)

// testCollection serves a fixed schema and canned bounds.
type testCollection struct {
	*schema.Collection
	min, max    any
	boundsCalls int
}

func (c *testCollection) Name() string { return c.Collection.Name }

func (c *testCollection) Bounds(_ context.Context, _ string, _ *expression.Expr, _ bool) (any, any, error) {
	c.boundsCalls++
	return c.min, c.max, nil
}

func list(elem *schema.Field) *schema.Field {
	return &schema.Field{Name: elem.Name, Kind: schema.KindList, Elem: elem}
}

func embedded(name string, fields ...*schema.Field) *schema.Field {
	f := &schema.Field{Name: name, Kind: schema.KindEmbedded, Fields: map[string]*schema.Field{}}
	for _, sub := range fields {
		f.Fields[sub.Name] = sub
	}
	return f
}

func field(name string, kind schema.Kind) *schema.Field {
	return &schema.Field{Name: name, Kind: kind}
}

func newTestCollection(media schema.MediaKind) *testCollection {
	detection := embedded("detections",
		field("label", schema.KindString),
		field("confidence", schema.KindFloat),
		list(field("tags", schema.KindString)),
	)
	top := []*schema.Field{
		field("x", schema.KindInt),
		field("confidence", schema.KindFloat),
		field("filepath", schema.KindString),
		field("created", schema.KindDateTime),
		list(field("tags", schema.KindString)),
		embedded("ground_truth", list(detection)),
		list(embedded("a",
			list(embedded("b",
				list(embedded("c", field("x", schema.KindFloat))),
			)),
		)),
	}
	c := &schema.Collection{
		Name:        "samples",
		Media:       media,
		Fields:      map[string]*schema.Field{},
		FrameFields: map[string]*schema.Field{},
	}
	for _, f := range top {
		c.Fields[f.Name] = f
	}
	objects := list(embedded("objects", field("label", schema.KindString)))
	c.FrameFields[objects.Name] = objects
	return &testCollection{Collection: c}
}

func exprPtr(e expression.Expr) *expression.Expr {
	return &e
}
