package aggregation

import (
	"sort"
	"strings"

	"github.com/aevon-lab/docagg/internal/expression"
	"go.mongodb.org/mongo-driver/bson"
)

type listSegment struct {
	path    string
	flatten bool
}

// planUnwinds orders the list segments of path. A segment that must be
// flattened while its parent list is retained cannot be unwound in place:
// the parent is instead folded into the concatenation of the segment's
// non-null values, and everything below the segment is re-rooted at the
// parent. The returned stages must run before any $unwind.
func planUnwinds(path string, unwinds, retained []string) ([]bson.D, string, []string, []string) {
	segs := make([]listSegment, 0, len(unwinds)+len(retained))
	for _, u := range unwinds {
		segs = append(segs, listSegment{path: u, flatten: true})
	}
	for _, r := range retained {
		segs = append(segs, listSegment{path: r})
	}
	sortSegments(segs)

	var stages []bson.D
	for i := 1; i < len(segs); {
		parent, child := segs[i-1], segs[i]
		if !child.flatten || parent.flatten || !strings.HasPrefix(child.path, parent.path+".") {
			i++
			continue
		}

		leaf := expression.F(child.path[len(parent.path)+1:])
		fold := expression.F(parent.path).Reduce(
			leaf.NotNull().IfElse(expression.Value.Extend(leaf), expression.Value),
			[]any{},
		)
		stages = append(stages, set(bson.E{Key: parent.path, Value: fold.Compile("")}))

		path = rebase(path, child.path, parent.path)
		segs = append(segs[:i], segs[i+1:]...)
		for j := range segs {
			segs[j].path = rebase(segs[j].path, child.path, parent.path)
		}
		sortSegments(segs)
		i = 1
	}

	if len(stages) == 0 {
		return nil, path, unwinds, retained
	}

	var outUnwinds, outRetained []string
	for _, s := range segs {
		if s.flatten {
			outUnwinds = append(outUnwinds, s.path)
		} else {
			outRetained = append(outRetained, s.path)
		}
	}
	return stages, path, outUnwinds, outRetained
}

func sortSegments(segs []listSegment) {
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].path < segs[j].path })
}

// rebase moves p from under old to under replacement.
func rebase(p, old, replacement string) string {
	if p == old {
		return replacement
	}
	if strings.HasPrefix(p, old+".") {
		return replacement + p[len(old):]
	}
	return p
}
