package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/docscan/constants"
)

// A rules file extends or overrides the built-in tables:
//
//	{
//	  "mode": "append",
//	  "rules": {
//	    "invoice": [{"label": "GSTIN", "pattern": "GSTIN[:\\s]*([0-9A-Z]{15})"}]
//	  }
//	}
//
// mode "replace" swaps the whole rule set of every listed type.
type rulesFile struct {
	Mode  string                     `json:"mode"`
	Rules map[string][]rulesFileRule `json:"rules"`
}

type rulesFileRule struct {
	Label   string `json:"label"`
	Pattern string `json:"pattern"`
}

func rulesFileSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"rules"},
		"properties": map[string]any{
			"mode": map[string]any{"type": "string", "enum": []string{"append", "replace"}},
			"rules": map[string]any{
				"type":          "object",
				"minProperties": 1,
				"propertyNames": map[string]any{"enum": constants.DocumentTypeStrings()},
				"additionalProperties": map[string]any{
					"type":     "array",
					"minItems": 1,
					"items": map[string]any{
						"type":                 "object",
						"additionalProperties": false,
						"required":             []string{"label", "pattern"},
						"properties": map[string]any{
							"label":   map[string]any{"type": "string", "minLength": 1},
							"pattern": map[string]any{"type": "string", "minLength": 1},
						},
					},
				},
			},
		},
	}
}

func compileRulesSchema() (*jsonschema.Schema, error) {
	b, err := json.Marshal(rulesFileSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return jsonschema.CompileString("rules.schema.json", string(b))
}

// LoadRulesFile validates the file against the rules schema, compiles every
// pattern, then applies them to the registry. Nothing is applied unless the
// whole file is valid.
func (r *Registry) LoadRulesFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rules file: %w", err)
	}
	return r.LoadRules(raw)
}

func (r *Registry) LoadRules(raw []byte) error {
	schema, err := compileRulesSchema()
	if err != nil {
		return fmt.Errorf("compile rules schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode rules: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("rules do not match schema: %w", err)
	}

	var f rulesFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("decode rules: %w", err)
	}

	names := make([]string, 0, len(f.Rules))
	for name := range f.Rules {
		names = append(names, name)
	}
	sort.Strings(names)

	compiled := make(map[constants.DocumentType][]Rule, len(names))
	for _, name := range names {
		dt, ok := constants.ParseDocumentType(name)
		if !ok {
			return fmt.Errorf("unknown document type %q", name)
		}
		for _, fr := range f.Rules[name] {
			rule, err := NewRule(fr.Pattern, fr.Label)
			if err != nil {
				return err
			}
			compiled[dt] = append(compiled[dt], rule)
		}
	}

	for _, name := range names {
		dt, _ := constants.ParseDocumentType(name)
		if f.Mode == "replace" {
			r.Register(dt, compiled[dt]...)
		} else {
			r.Append(dt, compiled[dt]...)
		}
	}
	return nil
}
