package engine

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// RenderPipeline renders a pipeline as a relaxed Extended JSON array.
func RenderPipeline(pipeline []bson.D) (string, error) {
	raw, err := PipelineJSON(pipeline)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// PipelineJSON returns each stage of a pipeline as relaxed Extended JSON,
// ready to be embedded in a JSON response.
func PipelineJSON(pipeline []bson.D) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(pipeline))
	for i, stage := range pipeline {
		data, err := bson.MarshalExtJSON(stage, false, false)
		if err != nil {
			return nil, fmt.Errorf("render stage %d: %w", i, err)
		}
		out[i] = data
	}
	return out, nil
}
