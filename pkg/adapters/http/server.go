package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lyoneil/Botpress/internal/logging"
	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/middleware"
	"github.com/lyoneil/Botpress/pkg/ports"
	"github.com/lyoneil/Botpress/pkg/realtime"
)

// APIChannel is the channel of conversations held through the converse endpoint.
const APIChannel = "api"

// Runtime is the part of the pipeline the server drives.
type Runtime interface {
	Dispatch(ctx context.Context, evt *domain.Event) error
	RegisterSender(channel string, sender ports.Sender)
	Reload(ctx context.Context, botID string) error
}

// Sessions gives access to stored dialog sessions.
type Sessions interface {
	List(ctx context.Context) ([]string, error)
	Load(ctx context.Context, sessionID string) (*domain.State, error)
	Delete(ctx context.Context, sessionID string) error
}

// Server serves the HTTP API of one runtime.
type Server struct {
	runtime  Runtime
	sessions Sessions
	Streams  *StreamManager

	hub     *realtime.Hub
	metrics http.Handler
	origins []string
	logger  *slog.Logger

	// pending collects the replies of in-flight converse requests, by incoming event id.
	pending sync.Map
}

// Option configures the Server.
type Option func(*Server)

// WithRealtime mounts the websocket namespaces of the hub.
func WithRealtime(hub *realtime.Hub) Option {
	return func(s *Server) {
		s.hub = hub
	}
}

// WithMetrics mounts a metrics handler on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithCORSOrigins restricts cross-origin requests. Empty allows every origin.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the server and registers the sender of APIChannel on the runtime.
func NewServer(rt Runtime, sessions Sessions, opts ...Option) *Server {
	s := &Server{
		runtime:  rt,
		sessions: sessions,
		Streams:  NewStreamManager(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	rt.RegisterSender(APIChannel, ports.SenderFunc(s.collect))
	return s
}

// NewHandler creates a new HTTP handler for the runtime.
func NewHandler(rt Runtime, sessions Sessions, opts ...Option) http.Handler {
	return NewServer(rt, sessions, opts...).Handler()
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.GetHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	if s.hub != nil {
		r.Get("/socket/guest", s.hub.ServeGuest)
		r.Get("/socket/admin", s.hub.ServeAdmin)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/bots/{botId}/converse/{userId}", s.Converse)
		r.Post("/bots/{botId}/flows/reload", s.ReloadFlows)
		r.Get("/sessions", s.ListSessions)
		r.Get("/sessions/{sessionId}", s.GetSession)
		r.Delete("/sessions/{sessionId}", s.DeleteSession)
		r.Get("/sessions/{sessionId}/events", s.SubscribeEvents)
	})

	return s.enableCORS(r)
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := s.allowOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	if len(s.origins) == 0 {
		return "*"
	}
	for _, o := range s.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// ConverseRequest is the body of the converse endpoint. Text is a shortcut
// for a text payload.
type ConverseRequest struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ConverseResponse holds the replies of the turn and the resulting session.
type ConverseResponse struct {
	Responses []map[string]any `json:"responses"`
	State     *domain.State    `json:"state,omitempty"`
}

type replies struct {
	mu       sync.Mutex
	elements []map[string]any
}

func (s *Server) collect(_ context.Context, evt *domain.Event) error {
	v, ok := s.pending.Load(evt.IncomingEventID)
	if !ok {
		s.logger.Debug("no pending request for reply", "event_id", evt.ID, "incoming_event_id", evt.IncomingEventID)
		return nil
	}
	r := v.(*replies)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elements = append(r.elements, evt.Payload)
	return nil
}

// Converse handles POST /api/v1/bots/{botId}/converse/{userId}: one turn of
// the conversation, answered with the replies it produced.
func (s *Server) Converse(w http.ResponseWriter, r *http.Request) {
	var body ConverseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Converse: Invalid request body", "err", err)
		return
	}
	if body.Type == "" {
		body.Type = "text"
	}
	payload := body.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	if body.Text != "" {
		payload["text"] = body.Text
	}

	evt := domain.NewEvent(domain.EventInit{
		Direction: domain.DirectionIncoming,
		BotID:     chi.URLParam(r, "botId"),
		Channel:   APIChannel,
		Target:    chi.URLParam(r, "userId"),
		Type:      body.Type,
		Payload:   payload,
	})
	sessionID := evt.ConversationKey().String()
	before, _ := s.sessions.Load(r.Context(), sessionID)

	collected := &replies{}
	s.pending.Store(evt.ID, collected)
	err := s.runtime.Dispatch(r.Context(), evt)
	s.pending.Delete(evt.ID)

	if err != nil {
		status := statusOf(err)
		http.Error(w, fmt.Sprintf("Converse error: %v", err), status)
		if status >= http.StatusInternalServerError {
			s.logger.Error("Converse failed", "bot_id", evt.BotID, "event_id", evt.ID, "err", err)
		}
		return
	}

	after, err := s.sessions.Load(r.Context(), sessionID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		s.logger.Warn("Converse: session reload failed", "session_id", sessionID, "err", err)
	}
	if diff := domain.Diff(sessionID, before, after); diff != nil {
		if bytes, err := json.Marshal(diff); err == nil {
			s.Streams.Broadcast(sessionID, string(bytes))
		}
	}

	collected.mu.Lock()
	resp := ConverseResponse{Responses: collected.elements, State: after}
	collected.mu.Unlock()
	if resp.Responses == nil {
		resp.Responses = []map[string]any{}
	}
	writeJSON(w, s.logger, http.StatusOK, resp)
}

// ReloadFlows handles POST /api/v1/bots/{botId}/flows/reload.
func (s *Server) ReloadFlows(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botId")
	if err := s.runtime.Reload(r.Context(), botID); err != nil {
		http.Error(w, fmt.Sprintf("Reload error: %v", err), statusOf(err))
		s.logger.Warn("Flow reload failed", "bot_id", botID, "err", err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "reloaded"})
}

// ListSessions handles GET /api/v1/sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("List error: %v", err), http.StatusInternalServerError)
		s.logger.Error("ListSessions failed", "err", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, s.logger, http.StatusOK, map[string][]string{"sessions": ids})
}

// GetSession handles GET /api/v1/sessions/{sessionId}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.sessions.Load(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	writeJSON(w, s.logger, http.StatusOK, state)
}

// DeleteSession handles DELETE /api/v1/sessions/{sessionId}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "sessionId")); err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func statusOf(err error) int {
	var dup *middleware.DuplicateMiddlewareError
	switch {
	case errors.Is(err, domain.ErrInvalidEvent),
		errors.Is(err, middleware.ErrInputTooLarge),
		errors.Is(err, middleware.ErrInvalidUTF8):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrFlowNotFound) && !errors.As(err, &dup):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "err", err)
	}
}
