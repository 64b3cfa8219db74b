package domain

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Direction tells whether an event enters the bot or leaves it.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// FlagSkipDialogEngine prevents the dialog engine from processing an incoming event.
const FlagSkipDialogEngine = "SKIP_DIALOG_ENGINE"

// Destination addresses a reply to a conversation on a channel.
type Destination struct {
	Channel  string `json:"channel"`
	Target   string `json:"target"`
	BotID    string `json:"botId"`
	ThreadID string `json:"threadId,omitempty"`
}

// RenderedElement is one channel-agnostic message produced by the content renderer.
type RenderedElement map[string]any

// EventInit holds the fields used to build an Event.
type EventInit struct {
	ID              string
	Direction       Direction
	BotID           string
	Channel         string
	Target          string
	ThreadID        string
	Type            string
	Payload         map[string]any
	Preview         string
	IncomingEventID string
	Flags           []string
}

// Event is the envelope carrying one conversational message through the pipeline.
// An Event belongs to the single pipeline run carrying it. Handlers that need it
// after their own invocation must work on a Clone.
type Event struct {
	ID              string          `json:"id"`
	Direction       Direction       `json:"direction"`
	BotID           string          `json:"botId"`
	Channel         string          `json:"channel"`
	Target          string          `json:"target"`
	ThreadID        string          `json:"threadId,omitempty"`
	Type            string          `json:"type"`
	Payload         map[string]any  `json:"payload"`
	Preview         string          `json:"preview,omitempty"`
	IncomingEventID string          `json:"incomingEventId,omitempty"`
	CreatedOn       time.Time       `json:"createdOn"`
	State           *State          `json:"state,omitempty"`
	Flags           map[string]bool `json:"flags,omitempty"`

	mu    sync.Mutex
	steps []string
}

// NewEvent builds an Event, filling the id, timestamp and preview when absent.
func NewEvent(init EventInit) *Event {
	evt := &Event{
		ID:              init.ID,
		Direction:       init.Direction,
		BotID:           init.BotID,
		Channel:         init.Channel,
		Target:          init.Target,
		ThreadID:        init.ThreadID,
		Type:            init.Type,
		Payload:         init.Payload,
		Preview:         init.Preview,
		IncomingEventID: init.IncomingEventID,
		CreatedOn:       time.Now().UTC(),
	}
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Payload == nil {
		evt.Payload = make(map[string]any)
	}
	if evt.Preview == "" {
		evt.Preview = previewOf(evt.Type, evt.Payload)
	}
	for _, f := range init.Flags {
		evt.SetFlag(f)
	}
	return evt
}

func previewOf(eventType string, payload map[string]any) string {
	if text, ok := payload["text"].(string); ok && text != "" {
		return text
	}
	if eventType == "" {
		return ""
	}
	return "[" + eventType + "]"
}

// Validate checks the fields channel adapters are required to provide.
func (e *Event) Validate() error {
	switch {
	case e.BotID == "":
		return fmt.Errorf("%w: botId is required", ErrInvalidEvent)
	case e.Channel == "":
		return fmt.Errorf("%w: channel is required", ErrInvalidEvent)
	case e.Direction != DirectionIncoming && e.Direction != DirectionOutgoing:
		return fmt.Errorf("%w: direction %q is not supported", ErrInvalidEvent, e.Direction)
	case e.Type == "":
		return fmt.Errorf("%w: type is required", ErrInvalidEvent)
	case e.Target == "":
		return fmt.Errorf("%w: target is required", ErrInvalidEvent)
	}
	return nil
}

// AddStep appends an annotation to the event audit trail.
func (e *Event) AddStep(step string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.steps = append(e.steps, step)
}

// Steps returns a copy of the audit trail.
func (e *Event) Steps() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.steps))
	copy(out, e.steps)
	return out
}

// SetFlag raises a processing flag on the event.
func (e *Event) SetFlag(flag string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Flags == nil {
		e.Flags = make(map[string]bool)
	}
	e.Flags[flag] = true
}

// HasFlag reports whether the flag was raised.
func (e *Event) HasFlag(flag string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Flags[flag]
}

// Destination returns where replies to this event must be sent.
func (e *Event) Destination() Destination {
	return Destination{
		Channel:  e.Channel,
		Target:   e.Target,
		BotID:    e.BotID,
		ThreadID: e.ThreadID,
	}
}

// ConversationKey identifies the dialog session this event belongs to.
func (e *Event) ConversationKey() ConversationKey {
	return ConversationKey{BotID: e.BotID, Channel: e.Channel, UserID: e.Target}
}

// Text returns the payload text, if any.
func (e *Event) Text() string {
	text, _ := e.Payload["text"].(string)
	return text
}

// Clone returns a deep copy that can outlive the pipeline run.
func (e *Event) Clone() *Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := &Event{
		ID:              e.ID,
		Direction:       e.Direction,
		BotID:           e.BotID,
		Channel:         e.Channel,
		Target:          e.Target,
		ThreadID:        e.ThreadID,
		Type:            e.Type,
		Payload:         copyMap(e.Payload),
		Preview:         e.Preview,
		IncomingEventID: e.IncomingEventID,
		CreatedOn:       e.CreatedOn,
		steps:           append([]string(nil), e.steps...),
	}
	if e.State != nil {
		out.State = e.State.Clone()
	}
	if e.Flags != nil {
		out.Flags = make(map[string]bool, len(e.Flags))
		for k, v := range e.Flags {
			out.Flags[k] = v
		}
	}
	return out
}

type eventJSON Event

// MarshalJSON includes the audit trail in the serialized event.
func (e *Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		*eventJSON
		Steps []string `json:"steps,omitempty"`
	}{
		eventJSON: (*eventJSON)(e),
		Steps:     e.Steps(),
	})
}

// UnmarshalJSON restores an event, including its audit trail.
func (e *Event) UnmarshalJSON(data []byte) error {
	aux := struct {
		*eventJSON
		Steps []string `json:"steps,omitempty"`
	}{
		eventJSON: (*eventJSON)(e),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.steps = aux.Steps
	return nil
}
