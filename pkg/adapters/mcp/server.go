package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/lyoneil/Botpress/internal/logging"
	"github.com/lyoneil/Botpress/internal/presentation/graph"
	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/ports"
)

// Channel is the channel of conversations held through the converse tool.
const Channel = "mcp"

// SessionsURI is the resource listing the stored dialog sessions.
const SessionsURI = "botpress://sessions"

// Runtime is the part of the pipeline the server drives.
type Runtime interface {
	Dispatch(ctx context.Context, evt *domain.Event) error
	RegisterSender(channel string, sender ports.Sender)
	Reload(ctx context.Context, botID string) error
}

// Sessions gives read access to stored dialog sessions.
type Sessions interface {
	List(ctx context.Context) ([]string, error)
	Load(ctx context.Context, sessionID string) (*domain.State, error)
}

// ConverseArgs are the arguments of the converse tool.
type ConverseArgs struct {
	BotID  string `json:"bot_id"`
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// ConverseResult holds the replies of one turn and the resulting session.
type ConverseResult struct {
	SessionID string           `json:"session_id" jsonschema_description:"Key of the dialog session"`
	Responses []map[string]any `json:"responses" jsonschema_description:"Elements sent by the bot during the turn"`
	State     *domain.State    `json:"state,omitempty" jsonschema_description:"The dialog session after the turn"`
}

// SessionArgs select one stored session.
type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// BotArgs select one bot.
type BotArgs struct {
	BotID     string `json:"bot_id"`
	SessionID string `json:"session_id,omitempty"`
}

// SessionList is the result of the list_sessions tool.
type SessionList struct {
	Sessions []string `json:"sessions"`
}

// Server exposes a runtime as an MCP server, so agents can hold
// conversations with bots and inspect their sessions.
type Server struct {
	runtime   Runtime
	sessions  Sessions
	flows     ports.FlowLoader
	mcpServer *server.MCPServer
	logger    *slog.Logger

	// pending collects the replies of in-flight converse calls, by incoming event id.
	pending sync.Map
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the server and registers the sender of Channel on the runtime.
func NewServer(rt Runtime, sessions Sessions, flows ports.FlowLoader, version string, opts ...Option) *Server {
	s := &Server{
		runtime:   rt,
		sessions:  sessions,
		flows:     flows,
		mcpServer: server.NewMCPServer("botpress-mcp", strings.TrimSpace(version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	rt.RegisterSender(Channel, ports.SenderFunc(s.collect))
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on Stdin/Stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over Server-Sent Events on ln until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, ln net.Listener) error {
	baseURL := "http://" + ln.Addr().String()
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("converse",
		mcp.WithDescription("Send a text message to a bot as a user, and get the replies of the bot."),
		mcp.WithString("bot_id", mcp.Required(), mcp.Description("Bot to talk to")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User id of the conversation")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
		mcp.WithOutputSchema[ConverseResult](),
	), mcp.NewStructuredToolHandler(s.handleConverse))

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List the keys of the stored dialog sessions (bot::channel::user)."),
		mcp.WithOutputSchema[SessionList](),
	), mcp.NewStructuredToolHandler(s.handleListSessions))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get a stored dialog session: position, memory and last messages."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session key, as returned by list_sessions")),
	), mcp.NewStructuredToolHandler(s.handleGetSession))

	s.mcpServer.AddTool(mcp.NewTool("reload_flows",
		mcp.WithDescription("Reload the flows of a bot from their source."),
		mcp.WithString("bot_id", mcp.Required(), mcp.Description("Bot whose flows are reloaded")),
	), s.handleReload)

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the flows of a bot as a Mermaid flowchart, optionally highlighting a session."),
		mcp.WithString("bot_id", mcp.Required(), mcp.Description("Bot whose flows are drawn")),
		mcp.WithString("session_id", mcp.Description("Session whose path is highlighted (optional)")),
	), s.handleGraph)
}

func (s *Server) collect(_ context.Context, evt *domain.Event) error {
	v, ok := s.pending.Load(evt.IncomingEventID)
	if !ok {
		s.logger.Debug("no pending call for reply", "event_id", evt.ID, "incoming_event_id", evt.IncomingEventID)
		return nil
	}
	r := v.(*replies)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elements = append(r.elements, evt.Payload)
	return nil
}

type replies struct {
	mu       sync.Mutex
	elements []map[string]any
}

func (s *Server) handleConverse(ctx context.Context, _ mcp.CallToolRequest, args ConverseArgs) (ConverseResult, error) {
	evt := domain.NewEvent(domain.EventInit{
		Direction: domain.DirectionIncoming,
		BotID:     args.BotID,
		Channel:   Channel,
		Target:    args.UserID,
		Type:      "text",
		Payload:   map[string]any{"text": args.Text},
	})

	collected := &replies{}
	s.pending.Store(evt.ID, collected)
	err := s.runtime.Dispatch(ctx, evt)
	s.pending.Delete(evt.ID)
	if err != nil {
		s.logger.Warn("MCP Converse failed", "bot_id", args.BotID, "event_id", evt.ID, "err", err)
		return ConverseResult{}, fmt.Errorf("converse failed: %w", err)
	}

	sessionID := evt.ConversationKey().String()
	state, err := s.sessions.Load(ctx, sessionID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return ConverseResult{}, fmt.Errorf("session reload failed: %w", err)
	}

	collected.mu.Lock()
	defer collected.mu.Unlock()
	res := ConverseResult{SessionID: sessionID, Responses: collected.elements, State: state}
	if res.Responses == nil {
		res.Responses = []map[string]any{}
	}
	return res, nil
}

func (s *Server) handleListSessions(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (SessionList, error) {
	ids, err := s.sessions.List(ctx)
	if err != nil {
		return SessionList{}, fmt.Errorf("list failed: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return SessionList{Sessions: ids}, nil
}

func (s *Server) handleGetSession(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (*domain.State, error) {
	state, err := s.sessions.Load(ctx, args.SessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", args.SessionID, err)
	}
	return state, nil
}

func (s *Server) handleReload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	botID := request.GetString("bot_id", "")
	if err := s.runtime.Reload(ctx, botID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reload failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("flows of %s reloaded", botID)), nil
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	botID := request.GetString("bot_id", "")
	flows, err := s.flows.LoadFlows(ctx, botID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load flows failed: %v", err)), nil
	}

	var overlay *graph.GraphOverlay
	if sessionID := request.GetString("session_id", ""); sessionID != "" {
		if state, err := s.sessions.Load(ctx, sessionID); err == nil {
			overlay = graph.OverlayFromState(state)
		}
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(flows, overlay)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(SessionsURI, "Dialog Sessions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		list, err := s.handleListSessions(ctx, mcp.CallToolRequest{}, struct{}{})
		if err != nil {
			return nil, err
		}
		jsonBytes, err := json.Marshal(list)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      SessionsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
