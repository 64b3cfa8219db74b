package dialog_test

import (
	"context"
	"sync"
	"testing"

	"github.com/lyoneil/Botpress/pkg/adapters/memory"
	"github.com/lyoneil/Botpress/pkg/dialog"
	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/dsl"
	"github.com/lyoneil/Botpress/pkg/instruction"
	"github.com/lyoneil/Botpress/pkg/ports"
	"github.com/lyoneil/Botpress/pkg/registry"
	"github.com/lyoneil/Botpress/pkg/render"
	"github.com/lyoneil/Botpress/pkg/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type replies struct {
	mu    sync.Mutex
	texts []string
}

func (r *replies) Reply(_ context.Context, _ domain.Destination, els []domain.RenderedElement, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, el := range els {
		text, _ := el["text"].(string)
		r.texts = append(r.texts, text)
	}
	return nil
}

func (r *replies) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.texts
	r.texts = nil
	return out
}

type harness struct {
	engine   *dialog.Engine
	loader   *memory.Loader
	registry *registry.Registry
	replies  *replies
	state    *domain.State
}

func newHarness(t *testing.T, flows map[string]string, opts ...dialog.Option) *harness {
	t.Helper()
	loader, err := memory.NewFromJSON("bot1", flows)
	require.NoError(t, err)
	return newLoaderHarness(loader, opts...)
}

func newLoaderHarness(loader *memory.Loader, opts ...dialog.Option) *harness {
	reg := registry.NewRegistry()
	registry.RegisterBuiltins(reg)
	out := &replies{}
	processor := instruction.NewProcessor(
		instruction.NewActionStrategy(reg, nil, render.New(), out),
		instruction.NewTransitionStrategy(sandbox.New(sandbox.Config{}), nil),
		domain.LifecycleHooks{},
	)

	return &harness{
		engine:   dialog.NewEngine(loader, processor, opts...),
		loader:   loader,
		registry: reg,
		replies:  out,
		state:    domain.NewState(),
	}
}

func (h *harness) send(t *testing.T, text string) error {
	t.Helper()
	evt := domain.NewEvent(domain.EventInit{
		Direction: domain.DirectionIncoming,
		BotID:     "bot1",
		Channel:   "web",
		Target:    "user1",
		Type:      "text",
		Payload:   map[string]any{"text": text},
	})
	evt.State = h.state
	return h.engine.ProcessEvent(context.Background(), evt)
}

func (h *harness) position() string {
	return h.state.Context.CurrentFlow + "#" + h.state.Context.CurrentNode
}

const mainFlow = `{
	"name": "main.flow.json",
	"startNode": "entry",
	"nodes": [
		{
			"name": "entry",
			"onEnter": ["say #builtin_text {\"text\":\"Hi! What is your name?\"}"],
			"onReceive": [],
			"next": [{"condition": "true", "node": "greet"}]
		},
		{
			"name": "greet",
			"onEnter": [
				"builtin/setVariable {\"type\":\"user\",\"name\":\"name\",\"value\":\"{{event.preview}}\"}",
				"say #builtin_text {\"text\":\"Nice to meet you {{user.name}}\"}"
			],
			"next": [{"condition": "true", "node": "ask"}]
		},
		{
			"name": "ask",
			"onEnter": ["say #builtin_text {\"text\":\"Need help?\"}"],
			"onReceive": [],
			"next": [
				{"condition": "event.preview === 'bye'", "node": "END"},
				{"condition": "event.preview === 'yes'", "node": "router"}
			]
		},
		{
			"name": "router",
			"next": [
				{"condition": "temp.helped", "node": "thanks"},
				{"condition": "true", "node": "help.flow.json"}
			]
		},
		{
			"name": "thanks",
			"onEnter": ["say #builtin_text {\"text\":\"Glad I could help\"}"],
			"next": [{"condition": "true", "node": "ask"}]
		}
	]
}`

const helpFlow = `{
	"name": "help.flow.json",
	"startNode": "start",
	"nodes": [
		{
			"name": "start",
			"onEnter": [
				"say #builtin_text {\"text\":\"Here is some help\"}",
				"builtin/setVariable {\"type\":\"temp\",\"name\":\"helped\",\"value\":true}"
			],
			"next": [{"condition": "true", "node": "#"}]
		}
	]
}`

func TestEngine_Conversation(t *testing.T) {
	h := newHarness(t, map[string]string{"main.flow.json": mainFlow, "help.flow.json": helpFlow})

	require.NoError(t, h.send(t, "hello"))
	assert.Equal(t, []string{"Hi! What is your name?"}, h.replies.take())
	assert.Equal(t, "main.flow.json#entry", h.position())
	require.NotEmpty(t, h.state.Context.Queue)
	assert.Equal(t, domain.InstructionWait, h.state.Context.Queue[0].Type)

	require.NoError(t, h.send(t, "Ada"))
	assert.Equal(t, []string{"Nice to meet you Ada", "Need help?"}, h.replies.take())
	assert.Equal(t, "main.flow.json#ask", h.position())
	assert.Equal(t, "Ada", h.state.User["name"])
	assert.Equal(t, []domain.StackEntry{
		{Flow: "main.flow.json", Node: "entry"},
		{Flow: "main.flow.json", Node: "greet"},
		{Flow: "main.flow.json", Node: "ask"},
	}, h.state.Stacktrace)
	assert.Equal(t, "greet", h.state.Context.PreviousNode)

	require.NoError(t, h.send(t, "yes"))
	assert.Equal(t, []string{"Here is some help", "Glad I could help", "Need help?"}, h.replies.take())
	assert.Equal(t, "main.flow.json#ask", h.position())
	assert.Empty(t, h.state.Context.JumpPoints, "returning pops the jump point")

	require.NoError(t, h.send(t, "no thanks"))
	assert.Empty(t, h.replies.take())
	assert.Equal(t, "main.flow.json#ask", h.position(), "no transition keeps the node waiting")

	require.NoError(t, h.send(t, "bye"))
	assert.False(t, h.state.Context.IsActive())
	assert.Empty(t, h.state.Temp, "END clears temp")
	assert.Equal(t, "Ada", h.state.User["name"], "END keeps user memory")

	require.NoError(t, h.send(t, "hello again"))
	assert.Equal(t, []string{"Hi! What is your name?"}, h.replies.take())
	assert.Len(t, h.state.Session.LastMessages, 7)
}

func TestEngine_Targets(t *testing.T) {
	flows := map[string]string{
		"main.flow.json": `{
			"name": "main.flow.json",
			"startNode": "a",
			"nodes": [
				{"name": "a", "next": [{"condition": "true", "node": "sub.flow.json#deep"}]},
				{"name": "after", "onEnter": ["say #builtin_text {\"text\":\"back in main\"}"], "onReceive": []}
			]
		}`,
		"sub.flow.json": `{
			"name": "sub.flow.json",
			"startNode": "top",
			"nodes": [
				{"name": "top", "onEnter": ["say #builtin_text {\"text\":\"top\"}"]},
				{"name": "deep", "onEnter": ["say #builtin_text {\"text\":\"deep\"}"], "next": [{"condition": "true", "node": "#after"}]}
			]
		}`,
	}
	h := newHarness(t, flows)

	require.NoError(t, h.send(t, "go"))
	assert.Equal(t, []string{"deep", "back in main"}, h.replies.take())
	assert.Equal(t, "main.flow.json#after", h.position())
	assert.Empty(t, h.state.Context.JumpPoints)
}

func TestEngine_ReturnWithoutCallerEnds(t *testing.T) {
	h := newHarness(t, map[string]string{"main.flow.json": `{
		"name": "main.flow.json",
		"startNode": "a",
		"nodes": [{"name": "a", "onEnter": ["say #builtin_text {\"text\":\"a\"}"], "next": [{"condition": "true", "node": "#"}]}]
	}`})

	require.NoError(t, h.send(t, "hi"))
	assert.Equal(t, []string{"a"}, h.replies.take())
	assert.False(t, h.state.Context.IsActive())
}

func TestEngine_NoTransitionKeepsPosition(t *testing.T) {
	h := newHarness(t, map[string]string{"main.flow.json": `{
		"name": "main.flow.json",
		"startNode": "check",
		"nodes": [
			{"name": "check", "next": [{"condition": "event.preview === 'open sesame'", "node": "vault"}]},
			{"name": "vault", "onEnter": ["say #builtin_text {\"text\":\"welcome\"}"], "onReceive": []}
		]
	}`})

	require.NoError(t, h.send(t, "hello"))
	assert.Equal(t, "main.flow.json#check", h.position())
	assert.Empty(t, h.state.Context.Queue)

	require.NoError(t, h.send(t, "open sesame"))
	assert.Equal(t, []string{"welcome"}, h.replies.take())
	assert.Equal(t, "main.flow.json#vault", h.position())
}

func TestEngine_ActionFailureGoesToErrorFlow(t *testing.T) {
	h := newHarness(t, map[string]string{
		"main.flow.json": `{
			"name": "main.flow.json",
			"startNode": "a",
			"nodes": [{"name": "a", "onEnter": ["doesNotExist {}", "say #builtin_text {\"text\":\"unreachable\"}"]}]
		}`,
		"error.flow.json": `{
			"name": "error.flow.json",
			"startNode": "oops",
			"nodes": [{"name": "oops", "onEnter": ["say #builtin_text {\"text\":\"Something went wrong\"}"], "onReceive": []}]
		}`,
	})

	require.NoError(t, h.send(t, "hi"))
	assert.Equal(t, []string{"Something went wrong"}, h.replies.take())
	assert.Equal(t, "error.flow.json#oops", h.position())
	assert.Equal(t, []domain.JumpPoint{{Flow: "main.flow.json", Node: "a"}}, h.state.Context.JumpPoints)
}

func TestEngine_ActionArgsFromInstruction(t *testing.T) {
	b := dsl.New()
	b.Flow("main").Add("entry").
		Wait().
		Do("book", map[string]any{"city": "{{event.preview}}", "nights": 2}).
		Do("builtin/setVariable", map[string]any{"type": "user", "name": "city", "value": "{{event.preview}}"}).
		Text("Booked {{user.city}}")
	loader, err := b.Build("bot1")
	require.NoError(t, err)

	h := newLoaderHarness(loader)
	var got map[string]any
	h.registry.Register("book", func(_ context.Context, call ports.ActionCall) error {
		got = call.ActionArgs
		return nil
	})

	require.NoError(t, h.send(t, "hi"))
	require.NoError(t, h.send(t, "Paris"))

	assert.Equal(t, map[string]any{"city": "Paris", "nights": 2}, got)
	assert.Equal(t, "Paris", h.state.User["city"])
	assert.Equal(t, []string{"Booked Paris"}, h.replies.take())
}

func TestEngine_CatchAll(t *testing.T) {
	h := newHarness(t, map[string]string{"main.flow.json": `{
		"name": "main.flow.json",
		"startNode": "entry",
		"catchAll": {"next": [{"condition": "event.preview === 'restart'", "node": "entry"}]},
		"nodes": [
			{"name": "entry", "onEnter": ["say #builtin_text {\"text\":\"start\"}"], "onReceive": [], "next": [{"condition": "true", "node": "second"}]},
			{"name": "second", "onEnter": ["say #builtin_text {\"text\":\"second\"}"], "onReceive": []}
		]
	}`})

	require.NoError(t, h.send(t, "hi"))
	require.NoError(t, h.send(t, "next"))
	assert.Equal(t, []string{"start", "second"}, h.replies.take())

	require.NoError(t, h.send(t, "restart"))
	assert.Equal(t, []string{"start"}, h.replies.take())
	assert.Equal(t, "main.flow.json#entry", h.position())
}

func TestEngine_LastNode(t *testing.T) {
	h := newHarness(t, map[string]string{"main.flow.json": `{
		"name": "main.flow.json",
		"startNode": "a",
		"nodes": [
			{"name": "a", "next": [{"condition": "true", "node": "b"}]},
			{"name": "b", "next": [{"condition": "lastNode=z", "node": "z"}, {"condition": "lastNode=a", "node": "c"}]},
			{"name": "c", "onEnter": ["say #builtin_text {\"text\":\"came from a\"}"], "onReceive": []},
			{"name": "z", "onReceive": []}
		]
	}`})

	require.NoError(t, h.send(t, "hi"))
	assert.Equal(t, []string{"came from a"}, h.replies.take())
}

func TestEngine_InfiniteLoop(t *testing.T) {
	h := newHarness(t, map[string]string{"main.flow.json": `{
		"name": "main.flow.json",
		"startNode": "ping",
		"nodes": [
			{"name": "ping", "next": [{"condition": "true", "node": "pong"}]},
			{"name": "pong", "next": [{"condition": "true", "node": "ping"}]}
		]
	}`}, dialog.WithMaxSteps(10))

	h.state.Temp["keep"] = "no"
	err := h.send(t, "hi")
	assert.ErrorIs(t, err, domain.ErrInfiniteLoop)
	assert.False(t, h.state.Context.IsActive(), "a looping conversation is reset")
	assert.Empty(t, h.state.Temp)
}

func TestEngine_Errors(t *testing.T) {
	t.Run("UnknownNode", func(t *testing.T) {
		h := newHarness(t, map[string]string{"main.flow.json": `{
			"name": "main.flow.json", "startNode": "a",
			"nodes": [{"name": "a", "next": [{"condition": "true", "node": "nowhere"}]}]
		}`})
		assert.ErrorIs(t, h.send(t, "hi"), domain.ErrNodeNotFound)
	})

	t.Run("UnknownFlow", func(t *testing.T) {
		h := newHarness(t, map[string]string{"main.flow.json": `{
			"name": "main.flow.json", "startNode": "a",
			"nodes": [{"name": "a", "next": [{"condition": "true", "node": "ghost.flow.json"}]}]
		}`})
		assert.ErrorIs(t, h.send(t, "hi"), domain.ErrFlowNotFound)
	})

	t.Run("MissingEntryFlow", func(t *testing.T) {
		h := newHarness(t, map[string]string{"other.flow.json": `{
			"name": "other.flow.json", "startNode": "a", "nodes": [{"name": "a"}]
		}`})
		assert.ErrorIs(t, h.send(t, "hi"), domain.ErrFlowNotFound)
	})

	t.Run("NoState", func(t *testing.T) {
		h := newHarness(t, map[string]string{"main.flow.json": mainFlow})
		evt := domain.NewEvent(domain.EventInit{BotID: "bot1", Channel: "web", Target: "u", Type: "text"})
		assert.ErrorIs(t, h.engine.ProcessEvent(context.Background(), evt), domain.ErrInvalidEvent)
	})

	t.Run("ConditionError", func(t *testing.T) {
		h := newHarness(t, map[string]string{"main.flow.json": `{
			"name": "main.flow.json", "startNode": "a",
			"nodes": [{"name": "a", "next": [{"condition": "undeclared.value", "node": "a"}]}]
		}`})
		var evalErr *sandbox.EvaluationError
		assert.ErrorAs(t, h.send(t, "hi"), &evalErr)
	})
}

func TestEngine_StalePositionRestarts(t *testing.T) {
	h := newHarness(t, map[string]string{"main.flow.json": mainFlow})
	h.state.Context.CurrentFlow = "main.flow.json"
	h.state.Context.CurrentNode = "removed"

	require.NoError(t, h.send(t, "hi"))
	assert.Equal(t, []string{"Hi! What is your name?"}, h.replies.take())
	assert.Equal(t, "main.flow.json#entry", h.position())
}

func TestEngine_Reload(t *testing.T) {
	h := newHarness(t, map[string]string{"main.flow.json": mainFlow})
	ctx := context.Background()

	flows, err := h.engine.Flows(ctx, "bot1")
	require.NoError(t, err)
	assert.Contains(t, flows, "main.flow.json")

	h.loader.Add("bot1", domain.Flow{
		Name:      "main.flow.json",
		StartNode: "only",
		Nodes:     []domain.Node{{Name: "only", OnEnter: []domain.NodeInstruction{{Fn: `say #builtin_text {"text":"v2"}`}}}},
	})
	require.NoError(t, h.send(t, "hi"))
	assert.Equal(t, []string{"Hi! What is your name?"}, h.replies.take(), "flows are cached until reloaded")

	_, err = h.engine.Reload(ctx, "bot1")
	require.NoError(t, err)
	h.state = domain.NewState()
	require.NoError(t, h.send(t, "hi"))
	assert.Equal(t, []string{"v2"}, h.replies.take())

	h.loader.Add("bot1", domain.Flow{Name: "broken.flow.json", StartNode: "missing"})
	_, err = h.engine.Reload(ctx, "bot1")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	flows, err = h.engine.Flows(ctx, "bot1")
	require.NoError(t, err)
	assert.NotContains(t, flows, "broken.flow.json", "a failed reload keeps the previous flows")
}

func TestEngine_Hooks(t *testing.T) {
	var entered, targets []string
	hooks := domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			entered = append(entered, e.Node)
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			targets = append(targets, e.FromNode+"->"+e.Target)
		},
	}
	h := newHarness(t, map[string]string{"main.flow.json": mainFlow}, dialog.WithLifecycleHooks(hooks))

	require.NoError(t, h.send(t, "hi"))
	require.NoError(t, h.send(t, "Ada"))
	assert.Equal(t, []string{"entry", "greet", "ask"}, entered)
	assert.Equal(t, []string{"entry->greet", "greet->ask"}, targets)
}
