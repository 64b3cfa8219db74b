package instruction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/lyoneil/Botpress/pkg/domain"
)

const sayPrefix = "say "

// Compiled is a parsed instruction: *Say, *Action or *Transition.
type Compiled interface {
	// Raw returns the instruction the value was parsed from.
	Raw() domain.Instruction
}

// Say renders content of OutputType and replies with it.
type Say struct {
	raw        domain.Instruction
	OutputType string
	Args       map[string]any
	// FromNodeArgs is set for @-prefixed output types, whose arguments are the
	// instruction args rather than inline JSON.
	FromNodeArgs bool
}

func (s *Say) Raw() domain.Instruction { return s.raw }

// Action calls a named action, locally or on an action server.
type Action struct {
	raw      domain.Instruction
	Name     string
	ServerID string
	Args     map[string]any
}

func (a *Action) Raw() domain.Instruction { return a.raw }

// Transition moves the dialog to Target when Condition holds.
type Transition struct {
	raw       domain.Instruction
	Condition string
	Target    string
	// expr is Condition with $variables rewritten.
	expr string
}

func (t *Transition) Raw() domain.Instruction { return t.raw }

// ParseError reports a malformed instruction. These are authoring mistakes
// and are never recovered from.
type ParseError struct {
	Fn  string
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	return e.Msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsSay reports whether fn is an output directive.
func IsSay(fn string) bool {
	return strings.HasPrefix(fn, sayPrefix)
}

// Parse turns a raw instruction into its typed form.
func Parse(in domain.Instruction) (Compiled, error) {
	switch {
	case in.Type == domain.InstructionTransition:
		return parseTransition(in), nil
	case IsSay(in.Fn):
		return parseSay(in)
	default:
		return parseAction(in)
	}
}

func parseSay(in domain.Instruction) (*Say, error) {
	chunks := strings.Split(in.Fn, " ")
	if len(chunks) < 2 {
		return nil, &ParseError{Fn: in.Fn, Msg: `Invalid text instruction. Expected an instruction along "say #text Something"`}
	}

	s := &Say{raw: in, OutputType: chunks[1], Args: map[string]any{}}
	if strings.HasPrefix(s.OutputType, "@") {
		s.FromNodeArgs = true
		s.Args = nil
		return s, nil
	}

	params := strings.Join(chunks[2:], " ")
	if len(params) > 0 {
		if err := json.Unmarshal([]byte(params), &s.Args); err != nil {
			return nil, &ParseError{
				Fn:  in.Fn,
				Msg: fmt.Sprintf("Say %q has invalid arguments (not a valid JSON string): %s", s.OutputType, params),
				Err: err,
			}
		}
	}
	return s, nil
}

func parseAction(in domain.Instruction) (*Action, error) {
	chunks := strings.Split(in.Fn, " ")
	head := chunks[0]
	argsStr := strings.Join(chunks[1:], " ")

	a := &Action{raw: in, Args: map[string]any{}}
	if server, name, ok := strings.Cut(head, ":"); ok {
		a.ServerID, a.Name = server, name
	} else {
		a.Name = head
	}
	if a.Name == "" {
		return nil, &ParseError{Fn: in.Fn, Msg: fmt.Sprintf("Invalid action instruction %q: missing action name", in.Fn)}
	}

	if len(argsStr) > 0 {
		if err := json.Unmarshal([]byte(argsStr), &a.Args); err != nil {
			return nil, &ParseError{
				Fn:  in.Fn,
				Msg: fmt.Sprintf("Action %q has invalid arguments (not a valid JSON string): %s", a.Name, argsStr),
				Err: err,
			}
		}
		return a, nil
	}

	// Inline JSON wins; otherwise the args object of the instruction is used.
	for k, v := range in.Args {
		a.Args[k] = v
	}
	return a, nil
}

var variableRef = regexp.MustCompile(`\$[a-zA-Z][a-zA-Z0-9_-]*`)

func parseTransition(in domain.Instruction) *Transition {
	return &Transition{
		raw:       in,
		Condition: in.Fn,
		Target:    in.Node,
		expr:      RewriteVariables(in.Fn),
	}
}

// RewriteVariables replaces every $name with event.state.workflow.variables.name.
func RewriteVariables(cond string) string {
	return variableRef.ReplaceAllStringFunc(cond, func(m string) string {
		return "event.state.workflow.variables." + m[1:]
	})
}

// RewriteThisNode replaces thisNode with the temp namespace of the current node.
func RewriteThisNode(cond string, dc domain.DialogContext) string {
	if !strings.Contains(cond, "thisNode") {
		return cond
	}
	key := domain.FlowBaseName(dc.CurrentFlow) + "/" + dc.CurrentNode
	return strings.ReplaceAll(cond, "thisNode", "(event.state.temp['"+key+"'] || {})")
}
