package aggregation

import (
	"testing"

	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestExtractCommonPrefix(t *testing.T) {
	tests := []struct {
		name       string
		expr       expression.Expr
		wantPrefix string
		wantPaths  []string
	}{
		{
			name:       "map body stays relative to the element",
			expr:       expression.F("ground_truth.detections").Map(expression.F("label")),
			wantPrefix: "ground_truth.detections",
			wantPaths:  []string{""},
		},
		{
			name:       "siblings share parent",
			expr:       expression.F("gt.a").Add(expression.F("gt.b")),
			wantPrefix: "gt",
			wantPaths:  []string{"a", "b"},
		},
		{
			name:       "no shared segment",
			expr:       expression.F("a").Add(expression.F("b")),
			wantPrefix: "",
			wantPaths:  []string{"a", "b"},
		},
		{
			name:       "literal",
			expr:       expression.Lit(1),
			wantPrefix: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix, trimmed := extractCommonPrefix(tt.expr)
			require.Equal(t, tt.wantPrefix, prefix)
			require.Equal(t, tt.wantPaths, trimmed.FieldPaths())
		})
	}
}

func TestExtractCommonPrefix_MapBodyCompilesAgainstElement(t *testing.T) {
	_, trimmed := extractCommonPrefix(expression.F("ground_truth.detections").Map(expression.F("label")))

	want := bson.D{{Key: "$map", Value: bson.D{
		{Key: "input", Value: "$$CURRENT"},
		{Key: "as", Value: "this"},
		{Key: "in", Value: "$$this.label"},
	}}}
	require.Equal(t, want, trimmed.Compile(""))
}
