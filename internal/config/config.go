// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LLM provider names accepted in LLM_PROVIDER.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	CORSOrigins []string

	LLM       LLMConfig
	NHTSA     NHTSAConfig
	Quotes    QuotesConfig
	RateLimit RateLimitConfig
	Retention RetentionConfig

	HistoryLimit int
	ListLimitMax int

	ConversationLog ConversationLogConfig
}

// LLMConfig selects and configures the reply generator backend.
type LLMConfig struct {
	Provider         string
	OpenAIKey        string
	OpenAIModel      string
	OpenAIBaseURL    string
	AnthropicKey     string
	AnthropicModel   string
	AnthropicBaseURL string
	Timeout          time.Duration
	MaxTokens        int
}

// NHTSAConfig configures the vehicle verification client.
type NHTSAConfig struct {
	BaseURL  string
	Timeout  time.Duration
	MakesTTL time.Duration
}

// QuotesConfig configures the calming-quote source.
type QuotesConfig struct {
	URL     string
	Timeout time.Duration
}

// RateLimitConfig bounds chat requests per client.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// RetentionConfig controls purging of idle sessions. A zero TTL disables it.
type RetentionConfig struct {
	TTL      time.Duration
	Interval time.Duration
}

// ConversationLogConfig controls NDJSON transcript logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	openAIKey := getEnv("OPENAI_API_KEY", "")
	anthropicKey := getEnv("ANTHROPIC_API_KEY", "")

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/onboarding.db"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
		LLM: LLMConfig{
			Provider:         strings.ToLower(getEnv("LLM_PROVIDER", defaultProvider(openAIKey, anthropicKey))),
			OpenAIKey:        openAIKey,
			OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
			OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
			AnthropicKey:     anthropicKey,
			AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
			AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
			Timeout:          getEnvDuration("LLM_TIMEOUT", 15*time.Second),
			MaxTokens:        getEnvInt("LLM_MAX_TOKENS", 200),
		},
		NHTSA: NHTSAConfig{
			BaseURL:  getEnv("NHTSA_BASE_URL", "https://vpic.nhtsa.dot.gov/api/vehicles"),
			Timeout:  getEnvDuration("NHTSA_TIMEOUT", 10*time.Second),
			MakesTTL: getEnvDuration("NHTSA_MAKES_CACHE_TTL", 24*time.Hour),
		},
		Quotes: QuotesConfig{
			URL:     getEnv("QUOTES_URL", "https://zenquotes.io/api/quotes"),
			Timeout: getEnvDuration("QUOTES_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Retention: RetentionConfig{
			TTL:      getEnvDuration("RETENTION_TTL", 0),
			Interval: getEnvDuration("RETENTION_INTERVAL", time.Hour),
		},
		HistoryLimit: getEnvInt("HISTORY_LIMIT", 10),
		ListLimitMax: getEnvInt("LIST_LIMIT_MAX", 200),
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func defaultProvider(openAIKey, anthropicKey string) string {
	switch {
	case openAIKey != "":
		return ProviderOpenAI
	case anthropicKey != "":
		return ProviderAnthropic
	default:
		return ProviderNone
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case ProviderAnthropic:
		if c.LLM.AnthropicKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
	case ProviderNone:
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of openai, anthropic, none (got %q)", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 || c.NHTSA.Timeout <= 0 || c.Quotes.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT, NHTSA_TIMEOUT and QUOTES_TIMEOUT must be > 0")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be > 0")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.Retention.TTL < 0 {
		return fmt.Errorf("RETENTION_TTL cannot be negative")
	}
	if c.Retention.TTL > 0 && c.Retention.Interval <= 0 {
		return fmt.Errorf("RETENTION_INTERVAL must be > 0 when retention is enabled")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be > 0")
	}
	if c.ListLimitMax <= 0 {
		return fmt.Errorf("LIST_LIMIT_MAX must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
