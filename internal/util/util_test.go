package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSchema_Validate(t *testing.T) {
	s, err := CompileSchema("fetch_user_calendar", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"days_ahead": map[string]any{"type": "integer", "minimum": 0},
		},
		"required": []string{"days_ahead"},
	})
	require.NoError(t, err)

	assert.NoError(t, s.Validate(map[string]any{"days_ahead": 7}))
	assert.Error(t, s.Validate(map[string]any{"days_ahead": "seven"}))
	assert.Error(t, s.Validate(map[string]any{}))
}

func TestCompileSchema_EmptyAcceptsObject(t *testing.T) {
	s, err := CompileSchema("any", nil)
	require.NoError(t, err)
	assert.NoError(t, s.Validate(nil))
}

func TestDecodeArgs(t *testing.T) {
	args, err := DecodeArgs(`{"query":"transformers"}`)
	require.NoError(t, err)
	assert.Equal(t, "transformers", args["query"])

	args, err = DecodeArgs("")
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = DecodeArgs(`[1,2]`)
	assert.Error(t, err)
}

func TestSchemaFor(t *testing.T) {
	type input struct {
		Content  string `json:"content" jsonschema:"description=Post text"`
		Platform string `json:"platform,omitempty"`
	}

	s := SchemaFor(input{})
	assert.Equal(t, "object", s["type"])
	props := s["properties"].(map[string]any)
	assert.Contains(t, props, "content")
	assert.Equal(t, "Post text", props["content"].(map[string]any)["description"])
	assert.Equal(t, []any{"content"}, s["required"])
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Hello {{.name}}, focus on {{default \"anything\" .focus}}.", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada, focus on anything.", out)

	out, err = RenderTemplate("plain <text>", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain <text>", out)
}

func TestRenderTemplate_PlannerFuncs(t *testing.T) {
	state := map[string]any{
		"name":     "Ada",
		"subjects": []string{"Math", "ML"},
		"hours":    12.5,
	}
	out, err := RenderTemplate(`{{ upper .name }} studied {{ join ", " .subjects }} for {{ hours .hours }}.`, state)
	require.NoError(t, err)
	assert.Equal(t, "ADA studied Math, ML for 12.5hrs.", out)

	again, err := RenderTemplate(`{{ upper .name }} studied {{ join ", " .subjects }} for {{ hours .hours }}.`, map[string]any{
		"name": "Bo", "subjects": []any{"CS"}, "hours": 1.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "BO studied CS for 1.0hrs.", again)

	_, err = RenderTemplate("{{ .name ", nil)
	assert.ErrorContains(t, err, "parse instruction")
}
