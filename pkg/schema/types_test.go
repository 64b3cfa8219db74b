package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypes_Validate(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		value   any
		wantErr bool
	}{
		{"string", String(), "hello", false},
		{"string rejects int", String(), 1, true},
		{"number int", Number(), 3, false},
		{"number float", Number(), 3.5, false},
		{"number rejects string", Number(), "3", true},
		{"int", Int(), 42, false},
		{"int from json", Int(), float64(42), false},
		{"int rejects fraction", Int(), 4.2, true},
		{"bool", Bool(), true, false},
		{"bool rejects string", Bool(), "true", true},
		{"object", Object(), map[string]any{"a": 1}, false},
		{"object rejects list", Object(), []any{1}, true},
		{"any", Any(), struct{}{}, false},
		{"slice", Slice(String()), []any{"a", "b"}, false},
		{"typed slice", Slice(Int()), []int{1, 2}, false},
		{"slice bad element", Slice(String()), []any{"a", 2}, true},
		{"slice rejects scalar", Slice(String()), "a", true},
		{"one of", OneOf("user", "temp"), "temp", false},
		{"one of rejects others", OneOf("user", "temp"), "galaxy", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.typ.Validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	for _, name := range []string{"string", "number", "int", "boolean", "object", "any", "[string]", "[[number]]"} {
		typ, err := ParseType(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, typ.Name())
	}

	typ, err := ParseType("bool")
	require.NoError(t, err)
	assert.Equal(t, "boolean", typ.Name())

	_, err = ParseType("date")
	assert.ErrorContains(t, err, "unsupported type: date")
	_, err = ParseType("[date]")
	assert.Error(t, err)
}
