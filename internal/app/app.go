// Package app wires configuration into a running orchestrator. It is shared by
// the HTTP server and the operator CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/onboard-chat/internal/assistant"
	"github.com/ashureev/onboard-chat/internal/config"
	"github.com/ashureev/onboard-chat/internal/conversation"
	"github.com/ashureev/onboard-chat/internal/nhtsa"
	"github.com/ashureev/onboard-chat/internal/quotes"
	"github.com/ashureev/onboard-chat/internal/store"
	"github.com/ashureev/onboard-chat/internal/transcriptlog"
)

// App holds the long-lived dependencies of the service.
type App struct {
	Store        *store.SQLiteStore
	Orchestrator *conversation.Orchestrator
	Transcripts  *transcriptlog.Logger
	ProviderName string
}

// New opens the database and builds the orchestrator with its collaborators.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("database health check: %w", err)
	}

	transcripts, err := transcriptlog.New(transcriptlog.Config{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("initialize transcript logger: %w", err)
	}

	verifier := nhtsa.NewClient(nhtsa.Config{
		BaseURL:  cfg.NHTSA.BaseURL,
		Timeout:  cfg.NHTSA.Timeout,
		MakesTTL: cfg.NHTSA.MakesTTL,
	}, logger)

	generator := assistant.NewGenerator(Provider(cfg.LLM), assistant.Config{
		HistoryLimit: cfg.HistoryLimit,
		Timeout:      cfg.LLM.Timeout,
	}, logger)

	orch, err := conversation.New(conversation.Options{
		Store:        repo,
		Verifier:     verifier,
		Generator:    generator,
		Quotes:       quotes.NewClient(cfg.Quotes.URL, cfg.Quotes.Timeout, logger),
		Logger:       logger,
		Transcripts:  transcripts,
		HistoryLimit: cfg.HistoryLimit,
		MaxListLimit: cfg.ListLimitMax,
	})
	if err != nil {
		_ = transcripts.Close()
		_ = repo.Close()
		return nil, err
	}

	return &App{
		Store:        repo,
		Orchestrator: orch,
		Transcripts:  transcripts,
		ProviderName: generator.ProviderName(),
	}, nil
}

// Provider returns the configured LLM backend, or nil when generation is
// disabled and every reply comes from the per-state fallbacks.
func Provider(cfg config.LLMConfig) assistant.Provider {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return assistant.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.MaxTokens)
	case config.ProviderAnthropic:
		return assistant.NewAnthropic(cfg.AnthropicKey, cfg.AnthropicModel, cfg.AnthropicBaseURL, cfg.MaxTokens)
	default:
		return nil
	}
}

// Close flushes transcripts and closes the database.
func (a *App) Close() error {
	return errors.Join(a.Transcripts.Close(), a.Store.Close())
}
