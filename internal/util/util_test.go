package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleArgs struct {
	Path  string `json:"path" description:"directory to list"`
	Depth int    `json:"depth,omitempty"`
	Note  *string
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(sampleArgs{})

	props := schema["properties"].(map[string]any)
	assert.Equal(t, "string", props["path"].(map[string]any)["type"])
	assert.Equal(t, "directory to list", props["path"].(map[string]any)["description"])
	assert.Equal(t, "integer", props["depth"].(map[string]any)["type"])
	assert.Equal(t, []string{"path"}, schema["required"])
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recipient": map[string]any{"type": "string", "enum": []string{"dev", "qa"}},
			"count":     map[string]any{"type": "integer"},
		},
		"required": []string{"recipient"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"recipient": "dev", "count": float64(2)}, schema))

	var verr *ValidationError
	err := ValidateParameters(map[string]any{}, schema)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "recipient", verr.Field)

	err = ValidateParameters(map[string]any{"recipient": "ceo"}, schema)
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Message, "dev, qa")

	err = ValidateParameters(map[string]any{"recipient": "dev", "count": 1.5}, schema)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "count", verr.Field)
}

func TestValidateParameters_DecodedRequired(t *testing.T) {
	schema := map[string]any{"required": []any{"a"}}
	assert.Error(t, ValidateParameters(map[string]any{}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"a": 1}, schema))
}

func TestRenderPrompt(t *testing.T) {
	out, err := RenderPrompt("Summarize {{.name}} ({{default \"n/a\" .lang}})", map[string]any{"name": "main.go"})
	require.NoError(t, err)
	assert.Equal(t, "Summarize main.go (n/a)", out)

	plain, err := RenderPrompt("<b>no markers</b>", nil)
	require.NoError(t, err)
	assert.Equal(t, "<b>no markers</b>", plain)

	_, err = RenderPrompt("{{.broken", nil)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "a", Truncate("aé", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

type enumArgs struct {
	Mode  string   `json:"mode" enum:"fast,slow"`
	Files []string `json:"files,omitempty"`
}

func TestCreateSchema_EnumAndItems(t *testing.T) {
	schema := CreateSchema(&enumArgs{})

	props := schema["properties"].(map[string]any)
	assert.Equal(t, []string{"fast", "slow"}, props["mode"].(map[string]any)["enum"])
	files := props["files"].(map[string]any)
	assert.Equal(t, "array", files["type"])
	assert.Equal(t, map[string]any{"type": "string"}, files["items"])
	assert.Equal(t, []string{"mode"}, schema["required"])

	err := ValidateParameters(map[string]any{"mode": "fast", "files": []any{"a.go", 3.0}}, schema)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "files[1]", verr.Field)
}

func TestCreateSchema_NonStruct(t *testing.T) {
	schema := CreateSchema("plain")
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, schema["properties"])
}
