//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/onboard-chat/internal/conversation"
	"github.com/ashureev/onboard-chat/internal/domain"
)

// fakeConversations is an in-memory stand-in for the orchestrator.
type fakeConversations struct {
	mu        sync.Mutex
	sessions  map[string]*domain.Session
	lastLimit int
	err       error
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{sessions: make(map[string]*domain.Session)}
}

func (f *fakeConversations) Start(context.Context) (*conversation.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	id := fmt.Sprintf("sess-%d", len(f.sessions)+1)
	f.sessions[id] = domain.NewSession(id, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	return &conversation.Reply{SessionID: id, Message: "Hi! What's your ZIP code?", State: domain.StateZipCode}, nil
}

func (f *fakeConversations) Send(_ context.Context, id, text string) (*conversation.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", conversation.ErrNotFound, id)
	}
	s.Append(domain.RoleUser, text, time.Now())
	s.State = domain.StateFullName
	return &conversation.Reply{SessionID: id, Message: "Thanks! What's your full name?", State: s.State}, nil
}

func (f *fakeConversations) Get(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", conversation.ErrNotFound, id)
	}
	return s.Clone(), nil
}

func (f *fakeConversations) ListRecent(_ context.Context, limit int) ([]domain.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func newTestRouter(conv Conversations) http.Handler {
	r := chi.NewRouter()
	NewHandler(conv, nil).RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return v
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestRoot(t *testing.T) {
	rec := do(t, newTestRouter(newFakeConversations()), http.MethodGet, "/", "")
	got := decode[map[string]string](t, rec)
	if rec.Code != http.StatusOK || got["status"] != "running" {
		t.Errorf("status %d, body %v", rec.Code, got)
	}
}

func TestStartThenChat(t *testing.T) {
	conv := newFakeConversations()
	h := newTestRouter(conv)

	rec := do(t, h, http.MethodPost, "/api/conversation/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d", rec.Code)
	}
	started := decode[StartResponse](t, rec)
	if started.SessionID == "" || started.State != domain.StateZipCode || started.Message == "" {
		t.Fatalf("start response = %+v", started)
	}

	rec = do(t, h, http.MethodPost, "/api/chat", fmt.Sprintf(`{"session_id":%q,"message":"10001"}`, started.SessionID))
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]any](t, rec)
	if body["current_state"] != "full_name" || body["is_complete"] != false || body["response"] == "" {
		t.Errorf("chat response = %v", body)
	}

	rec = do(t, h, http.MethodGet, "/api/conversation/"+started.SessionID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	sess := decode[domain.Session](t, rec)
	if len(sess.Transcript) != 1 || sess.Transcript[0].Content != "10001" {
		t.Errorf("session = %+v", sess)
	}
}

func TestChatValidation(t *testing.T) {
	h := newTestRouter(newFakeConversations())

	tests := map[string]struct {
		body string
		code int
	}{
		"malformed json":  {`{"session_id":`, http.StatusBadRequest},
		"missing session": {`{"message":"hi"}`, http.StatusBadRequest},
		"blank message":   {`{"session_id":"x","message":"   "}`, http.StatusBadRequest},
		"too long":        {fmt.Sprintf(`{"session_id":"x","message":%q}`, strings.Repeat("a", maxMessageLen+1)), http.StatusBadRequest},
		"unknown session": {`{"session_id":"nope","message":"hi"}`, http.StatusNotFound},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/chat", tt.body)
			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.code, rec.Body.String())
			}
			if got := decode[map[string]string](t, rec); got["error"] == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestGetUnknownConversation(t *testing.T) {
	rec := do(t, newTestRouter(newFakeConversations()), http.MethodGet, "/api/conversation/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestListConversations(t *testing.T) {
	conv := newFakeConversations()
	h := newTestRouter(conv)

	rec := do(t, h, http.MethodGet, "/api/conversations?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty list should encode as [], got %s", rec.Body.String())
	}
	if conv.lastLimit != 5 {
		t.Errorf("limit = %d", conv.lastLimit)
	}

	if rec := do(t, h, http.MethodGet, "/api/conversations?limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}

func TestStorageFailureIsInternalError(t *testing.T) {
	conv := newFakeConversations()
	conv.err = errors.New("disk full")

	rec := do(t, newTestRouter(conv), http.MethodPost, "/api/conversation/start", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec); strings.Contains(got["error"], "disk") {
		t.Errorf("internal detail leaked: %q", got["error"])
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	for _, tt := range []struct {
		name   string
		err    error
		code   int
		status string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"degraded", errors.New("locked"), http.StatusServiceUnavailable, "degraded"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHealthHandler(fakePinger{tt.err}, time.Second).RegisterHealth(r)
			rec := do(t, r, http.MethodGet, "/ready", "")
			if rec.Code != tt.code {
				t.Errorf("status = %d", rec.Code)
			}
			if got := decode[map[string]any](t, rec); got["status"] != tt.status {
				t.Errorf("body = %v", got)
			}
		})
	}
}
