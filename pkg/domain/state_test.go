package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionState_JSONFlattensValues(t *testing.T) {
	s := NewState()
	s.Session.Values["topic"] = "billing"
	s.AppendTurn(DialogTurnHistory{EventID: "e1", ReplyPreview: "#builtin_text"}, 0)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	session := raw["session"].(map[string]any)
	assert.Equal(t, "billing", session["topic"])
	assert.Len(t, session["lastMessages"], 1)
	assert.Contains(t, raw, "__stacktrace")

	var back State
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "billing", back.Session.Values["topic"])
	require.Len(t, back.Session.LastMessages, 1)
	assert.Equal(t, "e1", back.Session.LastMessages[0].EventID)
	assert.NotContains(t, back.Session.Values, "lastMessages")
}

func TestState_AppendTurnCapsOldestFirst(t *testing.T) {
	s := NewState()
	for i := 0; i < 5; i++ {
		s.AppendTurn(DialogTurnHistory{EventID: string(rune('a' + i)), ReplyDate: time.Now()}, 3)
	}

	require.Len(t, s.Session.LastMessages, 3)
	assert.Equal(t, "c", s.Session.LastMessages[0].EventID)
	assert.Equal(t, "e", s.Session.LastMessages[2].EventID)
}

func TestState_PreviousNode(t *testing.T) {
	s := NewState()
	_, ok := s.PreviousNode()
	assert.False(t, ok)

	s.PushStack("main.flow.json", "entry")
	_, ok = s.PreviousNode()
	assert.False(t, ok, "a single entry is the current node")

	s.PushStack("main.flow.json", "ask")
	prev, ok := s.PreviousNode()
	require.True(t, ok)
	assert.Equal(t, "entry", prev.Node)
}

func TestState_CloneIsDeep(t *testing.T) {
	s := NewState()
	s.Temp["nested"] = map[string]any{"k": "v"}
	s.Workflow.Variables["list"] = []any{1, 2}
	s.Context.Queue = []Instruction{{Type: InstructionOnReceive, Fn: "act", Args: map[string]any{"x": 1}}}

	c := s.Clone()
	c.Temp["nested"].(map[string]any)["k"] = "changed"
	c.Workflow.Variables["list"].([]any)[0] = 99
	c.Context.Queue[0].Args["x"] = 2

	assert.Equal(t, "v", s.Temp["nested"].(map[string]any)["k"])
	assert.Equal(t, 1, s.Workflow.Variables["list"].([]any)[0])
	assert.Equal(t, 1, s.Context.Queue[0].Args["x"])
}

func TestState_OnErrorFlowTo(t *testing.T) {
	s := NewState()
	assert.Equal(t, "error.flow.json", s.OnErrorFlowTo("error.flow.json"))

	s.Temp["onErrorFlowTo"] = "custom.flow.json"
	assert.Equal(t, "custom.flow.json", s.OnErrorFlowTo("error.flow.json"))

	s.Temp["onErrorFlowTo"] = ""
	assert.Equal(t, "error.flow.json", s.OnErrorFlowTo("error.flow.json"))
}

func TestConversationKey_RoundTrip(t *testing.T) {
	key := ConversationKey{BotID: "welcome-bot", Channel: "web", UserID: "u-1"}
	parsed, err := ParseConversationKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = ParseConversationKey("bot::web")
	assert.Error(t, err)
}

func TestProcessingResult(t *testing.T) {
	none := NoTransition()
	assert.False(t, none.IsTransition())
	assert.Equal(t, "none", none.String())

	tr := TransitionTo("custom.flow.json")
	assert.True(t, tr.IsTransition())
	assert.Equal(t, "custom.flow.json", tr.Target())
}
