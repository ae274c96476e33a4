package util

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaFor derives a JSON schema map from the Go type of v. Struct fields
// use their json tags; `jsonschema:"description=..."` tags add
// descriptions. Fields without omitempty are required.
func SchemaFor(v any) map[string]any {
	r := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}

	s := r.Reflect(v)

	b, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object"}
	}

	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{"type": "object"}
	}

	delete(out, "$schema")
	delete(out, "$id")

	return out
}
