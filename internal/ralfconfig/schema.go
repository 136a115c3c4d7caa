package ralfconfig

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// configSchema is the embedded JSON Schema that every config.json/config.yaml
// must satisfy before semantic validation runs. It catches shape errors
// (wrong types, missing required fields) with a precise pointer into the
// document, rather than a field-by-field Go error.
const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "model_priority": {"type": "array", "items": {"type": "string"}},
    "model_selection": {"type": "string", "enum": ["round_robin", "priority"]},
    "required_verifiers": {"type": "array", "items": {"type": "string"}},
    "completion_promise": {"type": "string"},
    "models": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "command_argv"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "command_argv": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "prompt_mode": {"type": "string", "enum": ["stdin", "arg"]},
          "timeout_seconds": {"type": "integer"},
          "rate_limit_patterns": {"type": "array", "items": {"type": "string"}},
          "default_cooldown_seconds": {"type": "integer"}
        }
      }
    },
    "verifiers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "command_argv"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "command_argv": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "timeout_seconds": {"type": "integer"}
        }
      }
    }
  }
}`

var compiledConfigSchema *jsonschema.Schema

func configSchema() (*jsonschema.Schema, error) {
	if compiledConfigSchema != nil {
		return compiledConfigSchema, nil
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource("config.json", bytes.NewReader([]byte(configSchemaJSON))); err != nil {
		return nil, err
	}
	s, err := c.Compile("config.json")
	if err != nil {
		return nil, err
	}
	compiledConfigSchema = s
	return s, nil
}

// validateSchema checks raw document bytes (JSON or YAML) against
// configSchema before any Go struct decoding happens.
func validateSchema(raw []byte, isYAML bool) error {
	var doc any
	if isYAML {
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("parse: %w", err)
		}
		doc = normalizeYAML(doc)
	} else {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return fmt.Errorf("parse: %w", err)
		}
	}
	schema, err := configSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

// normalizeYAML recursively converts the map[string]interface{} and
// map[interface{}]interface{} shapes yaml.v3 produces into the
// map[string]any shape jsonschema expects.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = normalizeYAML(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[fmt.Sprint(k)] = normalizeYAML(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = normalizeYAML(vv)
		}
		return out
	default:
		return v
	}
}
