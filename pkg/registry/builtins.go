package registry

import (
	"context"
	"fmt"

	"github.com/lyoneil/Botpress/pkg/ports"
	"github.com/lyoneil/Botpress/pkg/schema"
)

// Names of the actions installed by RegisterBuiltins.
const (
	ActionSetVariable  = "builtin/setVariable"
	ActionResetSession = "builtin/resetSession"
)

// RegisterBuiltins installs the actions every bot can use.
func RegisterBuiltins(r *Registry) {
	r.Register(ActionSetVariable, setVariable, WithParams(schema.Schema{
		"type":  {Type: schema.OneOf("user", "session", "temp", "bot", "workflow"), Default: "temp"},
		"name":  {Type: schema.String(), Required: true},
		"value": {Type: schema.Any()},
	}))
	r.Register(ActionResetSession, resetSession)
}

// setVariable stores args.value under args.name in the scope named by args.type
// (user, session, temp, bot or workflow).
func setVariable(_ context.Context, call ports.ActionCall) error {
	state := call.IncomingEvent.State
	if state == nil {
		return fmt.Errorf("%s: event has no state", ActionSetVariable)
	}
	name, _ := call.ActionArgs["name"].(string)
	if name == "" {
		return fmt.Errorf("%s: missing variable name", ActionSetVariable)
	}
	value := call.ActionArgs["value"]

	switch scope, _ := call.ActionArgs["type"].(string); scope {
	case "user":
		state.User[name] = value
	case "session":
		state.Session.Values[name] = value
	case "temp", "":
		state.Temp[name] = value
	case "bot":
		if state.Bot == nil {
			state.Bot = make(map[string]any)
		}
		state.Bot[name] = value
	case "workflow":
		state.Workflow.Variables[name] = value
	default:
		return fmt.Errorf("%s: unknown variable type %q", ActionSetVariable, scope)
	}
	return nil
}

// resetSession clears the session memory and the dialog position.
func resetSession(_ context.Context, call ports.ActionCall) error {
	state := call.IncomingEvent.State
	if state == nil {
		return nil
	}
	state.Session.LastMessages = nil
	state.Session.Values = make(map[string]any)
	state.ResetDialog()
	return nil
}
