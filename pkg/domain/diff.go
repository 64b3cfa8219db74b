package domain

import (
	"reflect"
)

// StateDiff represents the changes a turn made to a dialog session.
// It is designed to be serialized to JSON for partial updates on admin clients.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentFlow *string `json:"current_flow,omitempty"`
	CurrentNode *string `json:"current_node,omitempty"`

	// Temp and Variables contain only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Temp      map[string]any `json:"temp,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`

	// LastMessages contains the turns appended to session.lastMessages.
	LastMessages []DialogTurnHistory `json:"last_messages,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
func Diff(sessionID string, oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{SessionID: sessionID}

	if oldState == nil || oldState.Context.CurrentFlow != newState.Context.CurrentFlow {
		diff.CurrentFlow = &newState.Context.CurrentFlow
	}
	if oldState == nil || oldState.Context.CurrentNode != newState.Context.CurrentNode {
		diff.CurrentNode = &newState.Context.CurrentNode
	}

	var oldTemp, oldVars map[string]any
	var oldMessages []DialogTurnHistory
	if oldState != nil {
		oldTemp = oldState.Temp
		oldVars = oldState.Workflow.Variables
		oldMessages = oldState.Session.LastMessages
	}
	diff.Temp = diffMap(oldTemp, newState.Temp)
	diff.Variables = diffMap(oldVars, newState.Workflow.Variables)
	diff.LastMessages = appendedTurns(oldMessages, newState.Session.LastMessages)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffMap(old, new map[string]any) map[string]any {
	delta := make(map[string]any)

	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}
	for k := range old {
		if _, exists := new[k]; !exists {
			delta[k] = nil
		}
	}

	// Return nil if delta is empty so omitempty can remove the key
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// appendedTurns finds the turns added after the last one the old state knew.
// The list is capped, so the old tail is searched for rather than assuming a prefix.
func appendedTurns(old, new []DialogTurnHistory) []DialogTurnHistory {
	if len(new) == 0 {
		return nil
	}
	if len(old) == 0 {
		return new
	}
	last := old[len(old)-1]
	for i := len(new) - 1; i >= 0; i-- {
		if new[i].EventID == last.EventID && new[i].ReplyDate.Equal(last.ReplyDate) {
			if i == len(new)-1 {
				return nil
			}
			return new[i+1:]
		}
	}
	return new
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.CurrentFlow == nil &&
		d.CurrentNode == nil &&
		len(d.Temp) == 0 &&
		len(d.Variables) == 0 &&
		len(d.LastMessages) == 0
}
