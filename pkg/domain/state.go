package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultLastMessagesLimit caps session.lastMessages when no limit is configured.
const DefaultLastMessagesLimit = 20

// ConversationKey identifies one dialog session: a user talking to a bot on a channel.
type ConversationKey struct {
	BotID   string
	Channel string
	UserID  string
}

const keySeparator = "::"

// String returns the storage identifier of the conversation.
func (k ConversationKey) String() string {
	return k.BotID + keySeparator + k.Channel + keySeparator + k.UserID
}

// ParseConversationKey is the inverse of ConversationKey.String.
func ParseConversationKey(s string) (ConversationKey, error) {
	parts := strings.SplitN(s, keySeparator, 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ConversationKey{}, fmt.Errorf("invalid conversation key %q", s)
	}
	return ConversationKey{BotID: parts[0], Channel: parts[1], UserID: parts[2]}, nil
}

// StackEntry is one visited node in the dialog stack trace.
type StackEntry struct {
	Flow string `json:"flow"`
	Node string `json:"node"`
}

// JumpPoint remembers where to come back when a sub-flow returns.
type JumpPoint struct {
	Flow string `json:"flow"`
	Node string `json:"node"`
}

// DialogContext is the position of the conversation in the flow graph.
type DialogContext struct {
	CurrentFlow  string        `json:"currentFlow,omitempty"`
	CurrentNode  string        `json:"currentNode,omitempty"`
	PreviousFlow string        `json:"previousFlow,omitempty"`
	PreviousNode string        `json:"previousNode,omitempty"`
	Queue        []Instruction `json:"queue,omitempty"`
	JumpPoints   []JumpPoint   `json:"jumpPoints,omitempty"`
}

// IsActive reports whether the conversation is inside a flow.
func (c DialogContext) IsActive() bool {
	return c.CurrentFlow != "" && c.CurrentNode != ""
}

// DialogTurnHistory records one reply of the dialog manager.
type DialogTurnHistory struct {
	EventID         string    `json:"eventId"`
	IncomingPreview string    `json:"incomingPreview"`
	ReplyConfidence float64   `json:"replyConfidence"`
	ReplySource     string    `json:"replySource"`
	ReplyDate       time.Time `json:"replyDate"`
	ReplyPreview    string    `json:"replyPreview"`
}

// SessionState is the cross-turn conversation memory.
// Values holds free-form keys written by actions; it is flattened next to
// lastMessages when serialized.
type SessionState struct {
	LastMessages []DialogTurnHistory
	Values       map[string]any
}

// MarshalJSON flattens Values and lastMessages into one object.
func (s SessionState) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Values)+1)
	for k, v := range s.Values {
		out[k] = v
	}
	lastMessages := s.LastMessages
	if lastMessages == nil {
		lastMessages = []DialogTurnHistory{}
	}
	out["lastMessages"] = lastMessages
	return json.Marshal(out)
}

// UnmarshalJSON splits lastMessages from the free-form keys.
func (s *SessionState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Values = make(map[string]any, len(raw))
	s.LastMessages = nil
	for k, v := range raw {
		if k == "lastMessages" {
			if err := json.Unmarshal(v, &s.LastMessages); err != nil {
				return fmt.Errorf("invalid lastMessages: %w", err)
			}
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		s.Values[k] = val
	}
	return nil
}

// Workflow holds the variables of the active workflow.
type Workflow struct {
	Variables map[string]any `json:"variables"`
}

// State is the per-conversation dialog session.
type State struct {
	Context    DialogContext  `json:"context"`
	Temp       map[string]any `json:"temp"`
	Session    SessionState   `json:"session"`
	User       map[string]any `json:"user"`
	Bot        map[string]any `json:"bot,omitempty"`
	Workflow   Workflow       `json:"workflow"`
	Stacktrace []StackEntry   `json:"__stacktrace"`
}

// NewState creates an empty session state.
func NewState() *State {
	s := &State{}
	s.Normalize()
	return s
}

// Normalize makes sure every map is allocated, typically after loading from a store.
func (s *State) Normalize() {
	if s.Temp == nil {
		s.Temp = make(map[string]any)
	}
	if s.User == nil {
		s.User = make(map[string]any)
	}
	if s.Session.Values == nil {
		s.Session.Values = make(map[string]any)
	}
	if s.Workflow.Variables == nil {
		s.Workflow.Variables = make(map[string]any)
	}
}

// PushStack appends a visited node to the stack trace.
func (s *State) PushStack(flow, node string) {
	s.Stacktrace = append(s.Stacktrace, StackEntry{Flow: flow, Node: node})
}

// PreviousNode returns the entry visited before the current one.
// It reports false when fewer than two entries exist.
func (s *State) PreviousNode() (StackEntry, bool) {
	if len(s.Stacktrace) < 2 {
		return StackEntry{}, false
	}
	return s.Stacktrace[len(s.Stacktrace)-2], true
}

// AppendTurn records a reply in session.lastMessages, dropping the oldest
// entries beyond limit.
func (s *State) AppendTurn(turn DialogTurnHistory, limit int) {
	if limit <= 0 {
		limit = DefaultLastMessagesLimit
	}
	s.Session.LastMessages = append(s.Session.LastMessages, turn)
	if over := len(s.Session.LastMessages) - limit; over > 0 {
		s.Session.LastMessages = append([]DialogTurnHistory(nil), s.Session.LastMessages[over:]...)
	}
}

// OnErrorFlowTo returns the flow configured in temp.onErrorFlowTo, or fallback.
func (s *State) OnErrorFlowTo(fallback string) string {
	if s == nil {
		return fallback
	}
	if target, ok := s.Temp["onErrorFlowTo"].(string); ok && target != "" {
		return target
	}
	return fallback
}

// ResetDialog clears the flow position and the per-turn variables.
func (s *State) ResetDialog() {
	s.Context = DialogContext{}
	s.Temp = make(map[string]any)
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		Context: DialogContext{
			CurrentFlow:  s.Context.CurrentFlow,
			CurrentNode:  s.Context.CurrentNode,
			PreviousFlow: s.Context.PreviousFlow,
			PreviousNode: s.Context.PreviousNode,
			JumpPoints:   append([]JumpPoint(nil), s.Context.JumpPoints...),
		},
		Temp: copyMap(s.Temp),
		Session: SessionState{
			LastMessages: append([]DialogTurnHistory(nil), s.Session.LastMessages...),
			Values:       copyMap(s.Session.Values),
		},
		User:       copyMap(s.User),
		Bot:        copyMap(s.Bot),
		Workflow:   Workflow{Variables: copyMap(s.Workflow.Variables)},
		Stacktrace: append([]StackEntry(nil), s.Stacktrace...),
	}
	for _, in := range s.Context.Queue {
		in.Args = copyMap(in.Args)
		out.Context.Queue = append(out.Context.Queue, in)
	}
	return out
}

// AsMap returns the JSON shape of the state, as seen by flow expressions.
func (s *State) AsMap() (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return out, nil
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return val
	}
}
