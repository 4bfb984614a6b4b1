// Package api provides HTTP and WebSocket handlers for the onboarding chat.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/onboard-chat/internal/conversation"
	"github.com/ashureev/onboard-chat/internal/domain"
)

// maxMessageLen bounds a single chat message.
const maxMessageLen = 2000

// Conversations is the orchestrator surface the handlers need.
type Conversations interface {
	Start(ctx context.Context) (*conversation.Reply, error)
	Send(ctx context.Context, id, text string) (*conversation.Reply, error)
	Get(ctx context.Context, id string) (*domain.Session, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Summary, error)
}

// Handler serves the conversation endpoints.
type Handler struct {
	conversations Conversations
	logger        *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(conversations Conversations, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{conversations: conversations, logger: logger}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// StartResponse is returned when a conversation begins.
type StartResponse struct {
	SessionID string       `json:"session_id"`
	Message   string       `json:"message"`
	State     domain.State `json:"current_state"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Root reports that the service is up.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"message": "Insurance Onboarding Chat API",
		"status":  "running",
	})
}

// StartConversation handles POST /api/conversation/start.
func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	reply, err := h.conversations.Start(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, StartResponse{
		SessionID: reply.SessionID,
		Message:   reply.Message,
		State:     reply.State,
	})
}

// Chat handles POST /api/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateChat(req); msg != "" {
		Error(w, http.StatusBadRequest, msg)
		return
	}

	reply, err := h.conversations.Send(r.Context(), req.SessionID, req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, reply)
}

func validateChat(req ChatRequest) string {
	switch {
	case strings.TrimSpace(req.SessionID) == "":
		return "session_id is required"
	case strings.TrimSpace(req.Message) == "":
		return "message is required"
	case len(req.Message) > maxMessageLen:
		return "message is too long"
	}
	return ""
}

// GetConversation handles GET /api/conversation/{session_id}.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	sess, err := h.conversations.Get(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, sess)
}

// ListConversations handles GET /api/conversations?limit=N.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	summaries, err := h.conversations.ListRecent(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []domain.Summary{}
	}
	JSON(w, http.StatusOK, summaries)
}

// fail maps orchestrator errors to HTTP responses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isNotFound(err):
		Error(w, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
		h.logger.Debug("request cancelled", "path", r.URL.Path)
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, conversation.ErrNotFound)
}

// RegisterRoutes registers the conversation routes. chatMiddleware wraps the
// endpoints that create or advance conversations.
func (h *Handler) RegisterRoutes(r chi.Router, chatMiddleware ...func(http.Handler) http.Handler) {
	r.Get("/", h.Root)
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chatMiddleware...)
			r.Post("/conversation/start", h.StartConversation)
			r.Post("/chat", h.Chat)
		})
		r.Get("/conversation/{session_id}", h.GetConversation)
		r.Get("/conversations", h.ListConversations)
	})
}
