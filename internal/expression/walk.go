package expression

import "strings"

// FieldPaths returns the paths of all bare field references in the tree, in
// depth-first order. Frozen sub-trees and the bodies of $map, $filter,
// $reduce and $let are skipped: references there are relative to the
// variable their operator binds, not to the document.
func (e Expr) FieldPaths() []string {
	var paths []string
	e.walk(func(f Expr) {
		paths = append(paths, f.path)
	})
	return paths
}

func (e Expr) walk(visit func(Expr)) {
	if e.frozen {
		return
	}
	switch e.kind {
	case kindField:
		visit(e)
	case kindArray, kindOp:
		for _, a := range e.args {
			a.walk(visit)
		}
	case kindObject, kindDoc:
		for _, p := range e.params {
			if !p.scoped {
				p.expr.walk(visit)
			}
		}
	}
}

// TrimPrefix returns a copy of the tree with prefix removed from every
// field reference it walks over. A reference equal to prefix becomes a
// self reference.
func (e Expr) TrimPrefix(prefix string) Expr {
	if prefix == "" || e.frozen {
		return e
	}
	switch e.kind {
	case kindField:
		switch {
		case e.path == prefix:
			e.path = ""
		case strings.HasPrefix(e.path, prefix+"."):
			e.path = e.path[len(prefix)+1:]
		}
	case kindArray, kindOp:
		args := make([]Expr, len(e.args))
		for i, a := range e.args {
			args[i] = a.TrimPrefix(prefix)
		}
		e.args = args
	case kindObject, kindDoc:
		params := make([]param, len(e.params))
		for i, p := range e.params {
			if !p.scoped {
				p.expr = p.expr.TrimPrefix(prefix)
			}
			params[i] = p
		}
		e.params = params
	}
	return e
}
