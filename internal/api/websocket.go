package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/onboard-chat/internal/conversation"
	"github.com/ashureev/onboard-chat/internal/middleware"
)

// wsWriteTimeout bounds a single frame write.
const wsWriteTimeout = 10 * time.Second

// WebSocketHandler serves the chat over a WebSocket. Frames are JSON objects
// with a type field:
//
//	client: {"type":"start"} | {"type":"message","session_id":"...","content":"..."} | {"type":"ping"}
//	server: {"type":"started",...} | {"type":"reply",...} | {"type":"pong"} | {"type":"error","error":"..."}
type WebSocketHandler struct {
	conversations  Conversations
	allowedOrigins []string
	isDev          bool
	limiter        Limiter
	logger         *slog.Logger
}

// Limiter reports whether a client may send another chat message.
// *middleware.RateLimiter satisfies it.
type Limiter interface {
	Allow(key string) bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(conversations Conversations, allowedOrigins []string, isDev bool, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		conversations:  conversations,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
		logger:         logger,
	}
}

// LimitMessages applies l to every message frame, keyed by client address.
// The upgrade request itself is limited by the router middleware.
func (h *WebSocketHandler) LimitMessages(l Limiter) *WebSocketHandler {
	h.limiter = l
	return h
}

// wsMessage is an inbound frame.
type wsMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// wsReply is an outbound frame.
type wsReply struct {
	Type string `json:"type"`
	*conversation.Reply
	Error string `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()
	ws.SetReadLimit(64 << 10)

	h.logger.Info("Chat WebSocket connected", "ip", r.RemoteAddr)
	h.readLoop(r.Context(), ws, middleware.ClientKey(r))
	h.logger.Info("Chat WebSocket closed", "ip", r.RemoteAddr)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin)
	return false
}

// readLoop handles frames one at a time until the client disconnects.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, client string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.logger.Debug("WebSocket closed by client")
			} else {
				h.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := h.write(ctx, ws, wsReply{Type: "error", Error: "invalid frame"}); err != nil {
				return
			}
			continue
		}

		if err := h.write(ctx, ws, h.dispatch(ctx, client, msg)); err != nil {
			h.logger.Debug("WebSocket write error", "error", err)
			return
		}
	}
}

func (h *WebSocketHandler) dispatch(ctx context.Context, client string, msg wsMessage) wsReply {
	switch msg.Type {
	case "ping":
		return wsReply{Type: "pong"}
	case "start":
		reply, err := h.conversations.Start(ctx)
		if err != nil {
			return h.errorFrame(err)
		}
		return wsReply{Type: "started", Reply: reply}
	case "message":
		if problem := validateChat(ChatRequest{SessionID: msg.SessionID, Message: msg.Content}); problem != "" {
			return wsReply{Type: "error", Error: problem}
		}
		if h.limiter != nil && !h.limiter.Allow(client) {
			return wsReply{Type: "error", Error: "too many requests, please slow down"}
		}
		reply, err := h.conversations.Send(ctx, msg.SessionID, msg.Content)
		if err != nil {
			return h.errorFrame(err)
		}
		return wsReply{Type: "reply", Reply: reply}
	default:
		return wsReply{Type: "error", Error: "unknown frame type"}
	}
}

func (h *WebSocketHandler) errorFrame(err error) wsReply {
	if isNotFound(err) {
		return wsReply{Type: "error", Error: "Conversation not found"}
	}
	h.logger.Error("WebSocket request failed", "error", err)
	return wsReply{Type: "error", Error: "internal error"}
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, v wsReply) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}
