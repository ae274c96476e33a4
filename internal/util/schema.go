package util

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a compiled JSON schema ready to validate tool arguments.
type Schema struct {
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON schema document given as a Go map. A nil or
// empty document accepts any object.
func CompileSchema(name string, doc map[string]any) (*Schema, error) {
	if len(doc) == 0 {
		doc = map[string]any{"type": "object"}
	}

	normalized, err := normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}

	url := "https://studymesh.local/schemas/" + name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, normalized); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}

	return &Schema{compiled: compiled}, nil
}

// Validate checks args against the schema.
func (s *Schema) Validate(args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	instance, err := normalize(args)
	if err != nil {
		return err
	}
	return s.compiled.Validate(instance)
}

// DecodeArgs parses a raw JSON object. Empty input yields an empty map.
func DecodeArgs(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	return args, nil
}

// normalize round-trips v through JSON so the validator sees the value
// shapes it expects (json.Number, []any, map[string]any).
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}
