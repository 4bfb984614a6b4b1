package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/onboard-chat/internal/assistant"
	"github.com/ashureev/onboard-chat/internal/config"
	"github.com/ashureev/onboard-chat/internal/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DBPath:       filepath.Join(dir, "onboarding.db"),
		LLM:          config.LLMConfig{Provider: config.ProviderNone, Timeout: time.Second, MaxTokens: 50},
		NHTSA:        config.NHTSAConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second, MakesTTL: time.Hour},
		Quotes:       config.QuotesConfig{URL: "http://127.0.0.1:1", Timeout: time.Second},
		HistoryLimit: 10,
		ListLimitMax: 200,
		ConversationLog: config.ConversationLogConfig{
			Enabled:    true,
			Dir:        filepath.Join(dir, "logs"),
			GlobalPath: filepath.Join(dir, "logs", "all.ndjson"),
			QueueSize:  8,
		},
	}
}

func TestNewWiresWorkingOrchestrator(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	}()

	if a.ProviderName != "none" {
		t.Errorf("ProviderName = %q", a.ProviderName)
	}

	reply, err := a.Orchestrator.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if reply.Message != assistant.Welcome {
		t.Errorf("welcome = %q, want the fallback welcome", reply.Message)
	}

	reply, err = a.Orchestrator.Send(ctx, reply.SessionID, "10001")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if reply.State != domain.StateFullName || reply.Message != assistant.Fallback(domain.StateFullName) {
		t.Errorf("reply = %+v", reply)
	}

	sess, err := a.Store.Get(ctx, reply.SessionID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.ZipCode != "10001" || len(sess.Transcript) != 2 {
		t.Errorf("stored session = %+v", sess)
	}
}

func TestProvider(t *testing.T) {
	if p := Provider(config.LLMConfig{Provider: config.ProviderNone}); p != nil {
		t.Errorf("none provider = %T", p)
	}
	if p := Provider(config.LLMConfig{Provider: config.ProviderOpenAI, OpenAIKey: "sk", OpenAIModel: "gpt-3.5-turbo"}); p == nil || p.Name() != "openai" {
		t.Errorf("openai provider = %v", p)
	}
	if p := Provider(config.LLMConfig{Provider: config.ProviderAnthropic, AnthropicKey: "sk"}); p == nil || p.Name() != "anthropic" {
		t.Errorf("anthropic provider = %v", p)
	}
}
