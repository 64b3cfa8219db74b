package instruction

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/lyoneil/Botpress/pkg/domain"
)

var mustache = regexp.MustCompile(`\{\{\{\s*([^{}]+?)\s*\}\}\}|\{\{\s*([^{}]+?)\s*\}\}`)

// Template resolves {{path}} and {{{path}}} placeholders against a data set.
// Double braces are HTML-escaped, triple braces are inserted raw, and
// unknown paths render as an empty string.
type Template struct {
	data []byte
}

// NewTemplate snapshots data for lookups.
func NewTemplate(data map[string]any) (*Template, error) {
	js, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template data: %w", err)
	}
	return &Template{data: js}, nil
}

// Render returns value with every string inside it rendered.
// Maps and slices are rendered recursively; other values are returned as is.
func (t *Template) Render(value any) any {
	switch v := value.(type) {
	case string:
		return t.RenderString(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = t.Render(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = t.Render(item)
		}
		return out
	default:
		return value
	}
}

// RenderString renders the placeholders of one string.
func (t *Template) RenderString(s string) string {
	return mustache.ReplaceAllStringFunc(s, func(m string) string {
		groups := mustache.FindStringSubmatch(m)
		if groups[1] != "" {
			return t.lookup(groups[1])
		}
		return html.EscapeString(t.lookup(groups[2]))
	})
}

func (t *Template) lookup(path string) string {
	res := gjson.GetBytes(t.data, path)
	if !res.Exists() || res.Type == gjson.Null {
		return ""
	}
	return res.String()
}

// CommonArgs returns the variables exposed to templates, renderers and
// transition conditions: extra, overlaid with event, user, temp, session,
// bot and workflow.
func CommonArgs(evt *domain.Event, extra map[string]any) (map[string]any, error) {
	state := evt.State
	if state == nil {
		state = domain.NewState()
	}

	eventMap, err := toMap(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to convert event: %w", err)
	}
	stateMap, err := state.AsMap()
	if err != nil {
		return nil, err
	}
	if evt.State == nil {
		eventMap["state"] = stateMap
	}

	out := make(map[string]any, len(extra)+6)
	for k, v := range extra {
		out[k] = v
	}
	out["event"] = eventMap
	out["user"] = stateMap["user"]
	out["temp"] = stateMap["temp"]
	out["session"] = stateMap["session"]
	out["bot"] = stateMap["bot"]
	out["workflow"] = stateMap["workflow"]
	return out, nil
}

func toMap(v any) (map[string]any, error) {
	js, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(js, &out); err != nil {
		return nil, err
	}
	return out, nil
}
