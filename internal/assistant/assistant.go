// Package assistant generates the assistant's side of the onboarding chat.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/onboard-chat/internal/domain"
)

// FrustrationMarker prefixes replies written for a frustrated user.
const FrustrationMarker = "[FRUSTRATED_USER]"

var (
	// ErrNoProvider is returned when generation is disabled.
	ErrNoProvider = errors.New("no language model configured")
	// ErrEmptyReply is returned when the provider answers with no text.
	ErrEmptyReply = errors.New("language model returned an empty reply")
)

// Message is one role-tagged entry of a completion request.
type Message struct {
	Role    domain.Role
	Content string
}

// Provider is a stateless chat-completion backend.
type Provider interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
	Name() string
}

// Fact is one piece of collected information shown to the model.
type Fact struct {
	Label string
	Value string
}

// Request is the input of a single generation call.
type Request struct {
	State       domain.State
	UserMessage string
	History     []domain.Turn
	Collected   []Fact
	// Extra carries validation reasons and other per-turn hints.
	Extra      string
	Frustrated bool
}

// Config tunes a Generator.
type Config struct {
	HistoryLimit int
	Timeout      time.Duration
}

// Generator builds prompts and calls the configured provider.
type Generator struct {
	provider Provider
	cfg      Config
	logger   *slog.Logger
}

// NewGenerator creates a generator. A nil provider disables generation and
// every call returns ErrNoProvider.
func NewGenerator(provider Provider, cfg Config, logger *slog.Logger) *Generator {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{provider: provider, cfg: cfg, logger: logger}
}

// ProviderName returns the backend name, or "none".
func (g *Generator) ProviderName() string {
	if g.provider == nil {
		return "none"
	}
	return g.provider.Name()
}

// Generate returns the model's reply for req. Callers substitute Fallback on error.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	if g.provider == nil {
		return "", ErrNoProvider
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	text, err := g.provider.Complete(ctx, SystemPrompt(req), g.messages(req))
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", g.provider.Name(), err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyReply
	}
	g.logger.Debug("reply generated",
		"provider", g.provider.Name(),
		"state", req.State,
		"duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

// messages returns the capped history followed by the user message.
func (g *Generator) messages(req Request) []Message {
	history := req.History
	if len(history) > g.cfg.HistoryLimit {
		history = history[len(history)-g.cfg.HistoryLimit:]
	}
	msgs := make([]Message, 0, len(history)+1)
	for _, t := range history {
		msgs = append(msgs, Message{Role: t.Role, Content: t.Content})
	}
	if req.UserMessage != "" {
		msgs = append(msgs, Message{Role: domain.RoleUser, Content: req.UserMessage})
	}
	return msgs
}

// StripMarker removes a leading FrustrationMarker and reports whether it was present.
func StripMarker(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, FrustrationMarker) {
		return text, false
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, FrustrationMarker)), true
}
