package aggregation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/aevon-lab/docagg/internal/schema"
	"go.mongodb.org/mongo-driver/bson"
)

// UnwindMode selects which list levels on a path are flattened.
type UnwindMode int

const (
	// UnwindNone keeps list nesting, including a terminal list.
	UnwindNone UnwindMode = iota
	// UnwindAll flattens every list on the path.
	UnwindAll
	// UnwindAllButTop flattens every list below the outermost one.
	UnwindAllButTop
)

// rootField is the field an expression without a common prefix is
// evaluated into.
const rootField = "value"

type resolveInput struct {
	field        string
	expr         *expression.Expr
	safe         bool
	unwind       UnwindMode
	allowMissing bool
}

// resolve maps the field or expression of a spec onto a path in the stream
// of documents produced by the returned stages. Every list that must be
// flattened has been unwound by those stages; the retained lists are still
// nested around the value.
func resolve(coll Collection, in resolveInput) ([]bson.D, *ResolvedPath, error) {
	if in.field == "" && in.expr == nil {
		return nil, nil, invalidf("a field or an expression is required")
	}
	if in.field != "" && in.expr != nil {
		return nil, nil, invalidf("field %q and an expression are mutually exclusive", in.field)
	}

	autoUnwind := in.unwind != UnwindNone
	keepTopLevel := in.unwind == UnwindAllButTop

	field, expr := in.field, in.expr
	if field == "" {
		prefix, rebased := extractCommonPrefix(*expr)
		field, expr = prefix, &rebased
	}

	root := true
	var ft *schema.Field
	if field != "" {
		root = !strings.Contains(field, ".")
		ft = fieldType(coll, field, autoUnwind)
	}

	foundExpr := expr != nil
	if in.safe {
		expr = safeExpr(expr, ft)
	}

	var stages []bson.D
	allowMissing := in.allowMissing
	if expr != nil {
		embeddedRoot := false
		if field == "" {
			field = rootField
			embeddedRoot = true
			allowMissing = true
		} else {
			allowMissing = false
		}
		assign, _, err := coll.SetFieldPipeline(field, *expr, embeddedRoot, allowMissing)
		if err != nil {
			return nil, nil, fmt.Errorf("assign expression to %q: %w", field, err)
		}
		stages = append(stages, assign...)
	}

	rp, err := coll.ResolvePath(field, schema.ResolveOptions{
		AutoUnwind:        autoUnwind,
		OmitTerminalLists: in.unwind == UnwindNone,
		AllowMissing:      allowMissing,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("resolve %q: %w", field, err)
	}

	if foundExpr {
		rp.IDToString = false
		ft = nil
	}
	if rp.IDToString || (ft != nil && ft.IsPrimitive()) {
		ft = nil
	}

	path := rp.Path
	unwinds := append([]string(nil), rp.Unwind...)
	retained := append([]string(nil), rp.Retained...)

	switch {
	case keepTopLevel:
		if rp.IsFrameField {
			if !root {
				prefix := schema.FramesField + "."
				path = prefix + path
				unwinds = prefixed(prefix, unwinds)
				retained = prefixed(prefix, retained)
			}
			retained = append([]string{schema.FramesField}, retained...)
		} else if len(unwinds) > 0 {
			retained = append(retained, unwinds[0])
			sort.Strings(retained)
			unwinds = unwinds[1:]
		}
		stages = append(stages, keep(path))
	case autoUnwind:
		if rp.IsFrameField {
			stages = append(stages, unwind(schema.FramesField))
			if !root {
				stages = append(stages,
					keep(schema.FramesField+"."+path),
					replaceRoot(schema.FramesField),
				)
			}
		} else {
			stages = append(stages, keep(path))
		}
	case len(unwinds) > 0:
		stages = append(stages, keep(path))
	}

	folds, path, unwinds, retained := planUnwinds(path, unwinds, retained)
	stages = append(stages, folds...)
	for _, u := range unwinds {
		stages = append(stages, unwind(u))
	}

	return stages, &ResolvedPath{
		ResolvedPath: schema.ResolvedPath{
			Path:         path,
			IsFrameField: rp.IsFrameField,
			Unwind:       unwinds,
			Retained:     retained,
			IDToString:   rp.IDToString,
		},
		FieldType: ft,
	}, nil
}

// fieldType looks up the declared type of field, unwrapping lists when
// they are unwound. Undeclared fields have no type.
func fieldType(coll Collection, field string, unwind bool) *schema.Field {
	ft, err := coll.FieldType(field)
	if err != nil {
		return nil
	}
	if unwind {
		for ft != nil && ft.IsList() {
			ft = ft.Elem
		}
	}
	return ft
}

func prefixed(prefix string, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = prefix + p
	}
	return out
}
