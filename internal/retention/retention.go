// Package retention purges conversations that have been idle longer than a TTL.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/onboard-chat/internal/conversation"
	"github.com/ashureev/onboard-chat/internal/shared"
)

// Purger lists and deletes sessions. *conversation.Orchestrator satisfies it.
type Purger interface {
	IdleSessions(ctx context.Context, before time.Time) ([]string, error)
	Delete(ctx context.Context, id string) error
}

const (
	maxRetries = 3
	baseDelay  = 100 * time.Millisecond
)

// Worker periodically deletes idle sessions.
type Worker struct {
	purger   Purger
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewWorker creates a retention worker.
func NewWorker(purger Purger, ttl, interval time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		purger:   purger,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start runs the sweep loop in a goroutine until ctx is done. The returned
// channel is closed when the loop has exited.
func (w *Worker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(w.interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		w.logger.Info("Retention worker started", "interval", w.interval, "ttl", w.ttl)

		for {
			select {
			case <-ticker.C:
				if _, err := w.Sweep(ctx); err != nil {
					w.logger.Error("Retention sweep failed", "error", err)
				}
			case <-ctx.Done():
				w.logger.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

// Sweep deletes every session idle for longer than the TTL and returns how
// many were removed. Individual delete failures are logged and skipped.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.ttl)
	ids, err := w.purger.IdleSessions(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list idle sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	w.logger.Info("Retention worker found idle sessions", "count", len(ids), "cutoff", cutoff)
	deleted := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if err := w.deleteWithRetry(ctx, id); err != nil {
			w.logger.Warn("Retention worker failed to delete session", "session_id", id, "error", err)
			continue
		}
		deleted++
	}
	w.logger.Info("Retention sweep completed", "deleted", deleted)
	return deleted, nil
}

// deleteWithRetry retries SQLite lock conflicts with exponential backoff:
// 100ms, 200ms, 400ms. A session that is already gone counts as deleted.
func (w *Worker) deleteWithRetry(ctx context.Context, id string) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = w.purger.Delete(ctx, id)
		if err == nil || errors.Is(err, conversation.ErrNotFound) {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i)
		w.logger.Debug("Session delete hit a locked database, retrying",
			"session_id", id,
			"attempt", i+1,
			"delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("delete session %s: %w", id, err)
}
