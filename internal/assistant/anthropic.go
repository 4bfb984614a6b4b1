package assistant

import (
	"context"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/ashureev/onboard-chat/internal/domain"
)

// openingPrompt stands in for the user when a request has no user turn,
// since the messages API requires the conversation to start with one.
const openingPrompt = "Hello"

// Anthropic calls the Anthropic messages API.
type Anthropic struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropic creates an Anthropic provider. An empty baseURL selects the public API.
func NewAnthropic(apiKey, model, baseURL string, maxTokens int) *Anthropic {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	if maxTokens <= 0 {
		maxTokens = 200
	}
	return &Anthropic{
		client:    anthropic.NewClient(apiKey, opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Name implements Provider.
func (p *Anthropic) Name() string { return "anthropic" }

// Complete implements Provider.
func (p *Anthropic) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	temperature := defaultTemperature
	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(p.model),
		Messages:    alternate(messages),
		MaxTokens:   p.maxTokens,
		Temperature: &temperature,
		MultiSystem: []anthropic.MessageSystemPart{{Type: "text", Text: system}},
	}

	resp, err := p.client.CreateMessages(ctx, req)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			b.WriteString(*block.Text)
		}
	}
	return b.String(), nil
}

// alternate converts messages into the strict user/assistant alternation the
// API expects: leading assistant turns get a user opener and consecutive turns
// from the same role are merged.
func alternate(messages []Message) []anthropic.Message {
	out := make([]anthropic.Message, 0, len(messages)+1)
	var lastRole anthropic.ChatRole
	var pending []string

	flush := func() {
		if len(pending) == 0 {
			return
		}
		out = append(out, anthropic.Message{
			Role:    lastRole,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(strings.Join(pending, "\n\n"))},
		})
		pending = nil
	}

	for _, m := range messages {
		role := anthropic.RoleUser
		if m.Role == domain.RoleAssistant {
			role = anthropic.RoleAssistant
		}
		if len(out) == 0 && len(pending) == 0 && role == anthropic.RoleAssistant {
			lastRole = anthropic.RoleUser
			pending = append(pending, openingPrompt)
		}
		if role != lastRole {
			flush()
			lastRole = role
		}
		pending = append(pending, m.Content)
	}
	flush()

	if len(out) == 0 || out[len(out)-1].Role != anthropic.RoleUser {
		out = append(out, anthropic.Message{
			Role:    anthropic.RoleUser,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(openingPrompt)},
		})
	}
	return out
}
