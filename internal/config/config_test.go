package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "LLM_PROVIDER", "CORS_ORIGINS", "RETENTION_TTL"} {
		t.Setenv(key, "")
	}
	t.Setenv("LLM_PROVIDER", "none")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port == "" || cfg.DBPath == "" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.LLM.Timeout != 15*time.Second || cfg.NHTSA.Timeout != 10*time.Second || cfg.Quotes.Timeout != 5*time.Second {
		t.Errorf("timeouts = %v / %v / %v", cfg.LLM.Timeout, cfg.NHTSA.Timeout, cfg.Quotes.Timeout)
	}
	if cfg.HistoryLimit != 10 || cfg.ListLimitMax != 200 {
		t.Errorf("limits = %d / %d", cfg.HistoryLimit, cfg.ListLimitMax)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("LLM_TIMEOUT", "3s")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RETENTION_TTL", "72h")
	t.Setenv("RATE_LIMIT_WINDOW", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != ProviderAnthropic || cfg.LLM.Timeout != 3*time.Second {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if strings.Join(cfg.CORSOrigins, "|") != "https://a.example|https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.Retention.TTL != 72*time.Hour {
		t.Errorf("Retention.TTL = %v", cfg.Retention.TTL)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Errorf("invalid duration should fall back, got %v", cfg.RateLimit.Window)
	}
}

func TestDefaultProviderFollowsKeys(t *testing.T) {
	if got := defaultProvider("", ""); got != ProviderNone {
		t.Errorf("no keys: %s", got)
	}
	if got := defaultProvider("sk", "sk-ant"); got != ProviderOpenAI {
		t.Errorf("both keys: %s", got)
	}
	if got := defaultProvider("", "sk-ant"); got != ProviderAnthropic {
		t.Errorf("anthropic key: %s", got)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:   "8080",
			DBPath: "x.db",
			LLM:    LLMConfig{Provider: ProviderNone, Timeout: time.Second, MaxTokens: 10},
			NHTSA:  NHTSAConfig{Timeout: time.Second},
			Quotes: QuotesConfig{Timeout: time.Second},
			RateLimit: RateLimitConfig{
				Requests: 1,
				Window:   time.Second,
			},
			HistoryLimit: 10,
			ListLimitMax: 200,
			ConversationLog: ConversationLogConfig{
				Dir:        "logs",
				GlobalPath: "logs/all.ndjson",
				QueueSize:  1,
			},
		}
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := map[string]func(*Config){
		"empty port":         func(c *Config) { c.Port = "" },
		"unknown provider":   func(c *Config) { c.LLM.Provider = "gemini" },
		"openai without key": func(c *Config) { c.LLM.Provider = ProviderOpenAI },
		"zero llm timeout":   func(c *Config) { c.LLM.Timeout = 0 },
		"negative retention": func(c *Config) { c.Retention.TTL = -time.Hour },
		"retention interval": func(c *Config) { c.Retention.TTL = time.Hour },
		"zero history":       func(c *Config) { c.HistoryLimit = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
