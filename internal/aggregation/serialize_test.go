package aggregation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func allKinds() []Spec {
	detConf := expression.F("ground_truth.detections.confidence")
	return []Spec{
		&Bounds{Field: "confidence", Safe: true, CountNonfinites: true},
		&Count{},
		&Count{Field: "tags", DisableUnwind: true},
		&CountValues{Field: "tags", First: 5, SortBy: SortByValue, Desc: true, Include: []any{"cat"}, Search: "^c", Selected: []any{"dog"}},
		&Distinct{Expr: exprPtr(expression.F("filepath").Upper())},
		&HistogramValues{Field: "confidence", Edges: []any{0, 0.5, 1}},
		&HistogramValues{Field: "x", Bins: 4, Range: []any{0, 100}},
		&HistogramValues{Field: "x", Auto: true},
		&Mean{Expr: exprPtr(detConf.Multiply(2.5))},
		&Std{Field: "confidence", Sample: true},
		&Sum{Field: "x", Safe: true},
		&Values{Field: "tags", MissingValue: "none", Unwind: UnwindAllButTop, AllowMissing: true, Raw: true},
		&Values{Field: "x", SingleDocument: true},
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	for _, s := range allKinds() {
		t.Run(string(s.Kind()), func(t *testing.T) {
			got, err := Deserialize(Serialize(s, false))
			require.NoError(t, err)
			require.True(t, Equal(s, got), "%#v != %#v", s, got)
		})
	}
}

func TestSerializeJSONRoundTrip(t *testing.T) {
	for _, s := range allKinds() {
		t.Run(string(s.Kind()), func(t *testing.T) {
			data, err := json.Marshal(Serialize(s, false))
			require.NoError(t, err)

			got, err := ParseDocument(data)
			require.NoError(t, err)
			require.True(t, Equal(s, got), "%s", data)
		})
	}
}

func TestSerializeJSONRoundTrip_Dates(t *testing.T) {
	lo := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	hi := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		spec *HistogramValues
	}{
		{name: "range", spec: &HistogramValues{Field: "created_at", Bins: 3, Range: []any{lo, hi}}},
		{name: "edges", spec: &HistogramValues{Field: "created_at", Edges: []any{lo, hi}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(Serialize(tt.spec, false))
			require.NoError(t, err)

			got, err := ParseDocument(data)
			require.NoError(t, err)
			require.True(t, Equal(tt.spec, got), "%s", data)

			h := got.(*HistogramValues)
			bounds := append(append([]any{}, h.Range...), h.Edges...)
			require.Equal(t, []any{lo, hi}, bounds)
		})
	}
}

func TestSerializeCoversAllKinds(t *testing.T) {
	seen := make(map[Kind]bool)
	for _, s := range allKinds() {
		seen[s.Kind()] = true
	}
	for kind, entry := range kinds {
		require.True(t, seen[kind], "no round trip case for %s", kind)
		require.Equal(t, kind, entry.empty().Kind())
	}
	require.Len(t, kinds, len(seen))
}

func TestSerializeIdentity(t *testing.T) {
	s := &Mean{Field: "x"}
	d := Serialize(s, true)
	require.Equal(t, s.ID(), d.UUID)

	got, err := Deserialize(d)
	require.NoError(t, err)
	require.Equal(t, s.ID(), got.ID())

	require.Empty(t, Serialize(&Mean{Field: "x"}, false).UUID)
}

func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
	}{
		{name: "unknown kind", doc: Document{Kind: "Median"}},
		{name: "unknown param", doc: Document{Kind: KindMean, Params: []Param{{Name: "bins", Value: 3}}}},
		{name: "field not a string", doc: Document{Kind: KindMean, Params: []Param{{Name: "field_or_expr", Value: 3}}}},
		{name: "bad expression", doc: Document{Kind: KindSum, Params: []Param{{Name: "expr", Value: 3}}}},
		{name: "bad unwind", doc: Document{Kind: KindValues, Params: []Param{{Name: "unwind", Value: 2}}}},
		{name: "bad list", doc: Document{Kind: KindCountValues, Params: []Param{{Name: "include", Value: "cat"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize(tt.doc)
			require.ErrorIs(t, err, ErrInvalidSpecification)
		})
	}
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{name: "valid", data: `{"kind": "Count", "params": []}`},
		{name: "with uuid", data: `{"kind": "Count", "params": [], "uuid": "abc"}`},
		{name: "unknown kind", data: `{"kind": "Median", "params": []}`, wantErr: true},
		{name: "missing params", data: `{"kind": "Count"}`, wantErr: true},
		{name: "short pair", data: `{"kind": "Count", "params": [["unwind"]]}`, wantErr: true},
		{name: "non string name", data: `{"kind": "Count", "params": [[1, true]]}`, wantErr: true},
		{name: "extra key", data: `{"kind": "Count", "params": [], "extra": 1}`, wantErr: true},
		{name: "not json", data: `kind: Count`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument([]byte(tt.data))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidSpecification)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseDocuments(t *testing.T) {
	specs, err := ParseDocuments([]byte(`[
		{"kind": "Mean", "params": [["field_or_expr", "confidence"], ["safe", true]]},
		{"kind": "Sum", "params": [["expr", "x * 2"]]}
	]`))
	require.NoError(t, err)
	require.Len(t, specs, 2)
	require.True(t, Equal(&Mean{Field: "confidence", Safe: true}, specs[0]))
	require.True(t, Equal(&Sum{Expr: exprPtr(expression.F("x").Multiply(2))}, specs[1]))

	_, err = ParseDocuments([]byte(`[{"kind": "Mean", "params": [["nope", 1]]}]`))
	require.ErrorIs(t, err, ErrInvalidSpecification)
}

func TestParseYAML(t *testing.T) {
	specs, err := ParseYAML([]byte(`
- kind: Count
  params:
    - [field_or_expr, tags]
    - [unwind, false]
- kind: HistogramValues
  params:
    - [field_or_expr, confidence]
    - [bins, [0, 0.5, 1]]
`))
	require.NoError(t, err)
	require.Len(t, specs, 2)
	require.True(t, Equal(&Count{Field: "tags", DisableUnwind: true}, specs[0]))

	hist := specs[1].(*HistogramValues)
	require.Equal(t, []any{int64(0), 0.5, int64(1)}, hist.Edges)
	require.Zero(t, hist.Bins)
}

func TestMarshalYAMLRoundTrip(t *testing.T) {
	docs := make([]Document, 0)
	for _, s := range allKinds() {
		docs = append(docs, Serialize(s, false))
	}
	data, err := yaml.Marshal(docs)
	require.NoError(t, err)

	specs, err := ParseYAML(data)
	require.NoError(t, err)
	require.Len(t, specs, len(docs))
	for i, s := range allKinds() {
		require.True(t, Equal(s, specs[i]), "spec %d", i)
	}
}
