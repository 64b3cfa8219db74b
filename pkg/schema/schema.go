package schema

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
)

// Param declares one parameter of an action.
type Param struct {
	Type     Type
	Required bool
	// Default is used when the argument is absent. It is not checked.
	Default any
}

// Schema maps parameter names to their declaration.
type Schema map[string]Param

// Apply checks args against the schema and returns a copy with the defaults
// of absent parameters filled. Every failure is reported, in an AggregateError.
func Apply(s Schema, args map[string]any) (map[string]any, error) {
	out := maps.Clone(args)
	if out == nil {
		out = make(map[string]any)
	}
	if len(s) == 0 {
		return out, nil
	}

	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		p := s[name]
		value, ok := args[name]
		if !ok || value == nil {
			switch {
			case p.Default != nil:
				out[name] = p.Default
			case p.Required:
				errs = append(errs, &ValidationError{Key: name, Reason: "required"})
			}
			continue
		}
		if p.Type == nil {
			continue
		}
		if err := p.Type.Validate(value); err != nil {
			errs = append(errs, &ValidationError{Key: name, Reason: err.Error()})
		}
	}

	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	return out, nil
}

// Validate checks args against the schema, without filling defaults.
func Validate(s Schema, args map[string]any) error {
	_, err := Apply(s, args)
	return err
}

type jsonParam struct {
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
	Default  any    `json:"default,omitempty"`
}

// MarshalJSON writes each parameter with its type name.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	raw := make(map[string]jsonParam, len(s))
	for name, p := range s {
		typ := Any()
		if p.Type != nil {
			typ = p.Type
		}
		raw[name] = jsonParam{Type: typ.Name(), Required: p.Required, Default: p.Default}
	}
	return json.Marshal(raw)
}

// UnmarshalJSON reads parameters written as {"type": ..., "required": ..., "default": ...},
// or as a bare type name.
func (s *Schema) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed := make(Schema, len(raw))
	for name, msg := range raw {
		var jp jsonParam
		var typeName string
		if err := json.Unmarshal(msg, &typeName); err == nil {
			jp.Type = typeName
		} else if err := json.Unmarshal(msg, &jp); err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		typ, err := ParseType(jp.Type)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		parsed[name] = Param{Type: typ, Required: jp.Required, Default: jp.Default}
	}
	*s = parsed
	return nil
}
