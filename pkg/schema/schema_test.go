package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	s := Schema{
		"name":  {Type: String(), Required: true},
		"scope": {Type: OneOf("user", "temp"), Default: "temp"},
		"tags":  {Type: Slice(String())},
	}

	args := map[string]any{"name": "Ada", "extra": true}
	out, err := Apply(s, args)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada", "scope": "temp", "extra": true}, out)
	assert.NotContains(t, args, "scope", "the arguments are not modified")

	_, err = Apply(s, map[string]any{"scope": "galaxy", "tags": []any{1}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	errs := ValidationErrors(err)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0].Error(), `"name": required`)
	assert.Contains(t, errs[1].Error(), `"scope"`)
	assert.Contains(t, errs[2].Error(), `"tags": element 0`)
	assert.Contains(t, err.Error(), "3 validation errors")
}

func TestApply_Empty(t *testing.T) {
	out, err := Apply(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, out)

	assert.NoError(t, Validate(Schema{"n": {Type: Int()}}, map[string]any{"n": nil}))
	err = Validate(Schema{"n": {Type: Int(), Required: true}}, map[string]any{})
	assert.EqualError(t, err, `invalid argument "n": required`)
}

func TestSchema_JSON(t *testing.T) {
	var s Schema
	err := json.Unmarshal([]byte(`{
		"city": {"type": "string", "required": true},
		"nights": {"type": "int", "default": 1},
		"tags": "[string]"
	}`), &s)
	require.NoError(t, err)

	require.Len(t, s, 3)
	assert.True(t, s["city"].Required)
	assert.Equal(t, float64(1), s["nights"].Default)
	assert.Equal(t, "[string]", s["tags"].Type.Name())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"city": {"type": "string", "required": true},
		"nights": {"type": "int", "default": 1},
		"tags": {"type": "[string]"}
	}`, string(data))

	err = json.Unmarshal([]byte(`{"when": "date"}`), &s)
	assert.ErrorContains(t, err, "parameter when")
}
