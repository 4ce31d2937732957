package aggregation

import (
	"strings"

	"github.com/aevon-lab/docagg/internal/expression"
)

// extractCommonPrefix finds the longest dotted path shared by every field
// reference in e and returns it with e rebased onto it. The prefix is ""
// when e references no fields or they share no leading segment.
func extractCommonPrefix(e expression.Expr) (string, expression.Expr) {
	prefix := commonPrefix(e.FieldPaths())
	if prefix == "" {
		return "", e
	}
	return prefix, e.TrimPrefix(prefix)
}

func commonPrefix(paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	chunks := make([][]string, len(paths))
	minChunks := -1
	for i, p := range paths {
		chunks[i] = strings.Split(p, ".")
		if minChunks < 0 || len(chunks[i]) < minChunks {
			minChunks = len(chunks[i])
		}
	}

	common := ""
	for idx := 0; idx < minChunks; idx++ {
		seg := chunks[0][idx]
		for _, c := range chunks[1:] {
			if c[idx] != seg {
				return common
			}
		}
		if idx == 0 {
			common = seg
		} else {
			common += "." + seg
		}
	}
	return common
}
