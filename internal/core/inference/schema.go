package inference

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// summarySchemaMap matches [{"summary_text": "..."}].
func summarySchemaMap() map[string]any {
	return map[string]any{
		"type":     "array",
		"minItems": 1,
		"items": map[string]any{
			"type":     "object",
			"required": []string{"summary_text"},
			"properties": map[string]any{
				"summary_text": map[string]any{"type": "string"},
			},
		},
	}
}

// answerSchemaMap matches {"answer": "...", "score": 0.9, "start": 1, "end": 4}.
func answerSchemaMap() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"answer"},
		"properties": map[string]any{
			"answer": map[string]any{"type": "string"},
			"score":  map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"start":  map[string]any{"type": "integer", "minimum": 0},
			"end":    map[string]any{"type": "integer", "minimum": 0},
		},
	}
}

var (
	summarySchema = mustCompile("summary.json", summarySchemaMap())
	answerSchema  = mustCompile("answer.json", answerSchemaMap())
)

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func mustCompile(name string, schemaMap map[string]any) *jsonschema.Schema {
	s, err := compileSchema(name, schemaMap)
	if err != nil {
		panic(err)
	}
	return s
}

func validateResponse(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
