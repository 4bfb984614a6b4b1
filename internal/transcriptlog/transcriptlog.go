// Package transcriptlog writes conversation turns to NDJSON files for audit.
//
// Events are queued and written by a single background goroutine so callers
// never block on disk. Each session gets its own file; an optional global
// file receives every event.
package transcriptlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls transcript logging.
type Config struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Event is one logged turn.
type Event struct {
	SessionID  string    `json:"session_id"`
	Role       string    `json:"role"`
	State      string    `json:"state"`
	Content    string    `json:"content"`
	Frustrated bool      `json:"frustrated,omitempty"`
	Timestamp  time.Time `json:"ts"`
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Logger is an asynchronous NDJSON writer.
type Logger struct {
	cfg     Config
	logger  *slog.Logger
	queue   chan Event
	done    chan struct{}
	mu      sync.RWMutex // Guards closed against concurrent Log calls
	closed  bool
	dropped atomic.Int64
	global  *os.File
}

// New creates a Logger. A disabled config returns a Logger whose Log is a no-op.
func New(cfg Config, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Logger{cfg: cfg, logger: logger, done: make(chan struct{})}
	if !cfg.Enabled {
		close(l.done)
		return l, nil
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
		l.cfg.QueueSize = cfg.QueueSize
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create transcript log directory: %w", err)
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0755); err != nil {
			return nil, fmt.Errorf("create global transcript log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.GlobalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open global transcript log: %w", err)
		}
		l.global = f
	}

	l.queue = make(chan Event, cfg.QueueSize)
	go l.run()
	return l, nil
}

// Log queues an event. When the queue is full the event is dropped.
func (l *Logger) Log(event Event) {
	if l == nil || l.queue == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.logger.Warn("transcript log queue full, dropping events", "dropped", n)
		}
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (l *Logger) Dropped() int64 {
	return l.dropped.Load()
}

// Close stops accepting events and waits until queued ones are written.
func (l *Logger) Close() error {
	if l == nil || l.queue == nil {
		return nil
	}
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()
	<-l.done
	if l.global != nil {
		err := l.global.Close()
		l.global = nil
		if err != nil {
			return fmt.Errorf("close global transcript log: %w", err)
		}
	}
	return nil
}

func (l *Logger) run() {
	defer close(l.done)
	for event := range l.queue {
		line, err := json.Marshal(event)
		if err != nil {
			l.logger.Warn("failed to encode transcript event", "error", err)
			continue
		}
		line = append(line, '\n')
		if err := l.appendSession(event.SessionID, line); err != nil {
			l.logger.Warn("failed to write transcript event", "session_id", event.SessionID, "error", err)
		}
		if l.global != nil {
			if _, err := l.global.Write(line); err != nil {
				l.logger.Warn("failed to write global transcript event", "error", err)
			}
		}
	}
}

func (l *Logger) appendSession(sessionID string, line []byte) error {
	f, err := os.OpenFile(l.SessionPath(sessionID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// SessionPath returns the file a session's events are written to.
func (l *Logger) SessionPath(sessionID string) string {
	name := unsafeName.ReplaceAllString(strings.TrimSpace(sessionID), "_")
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(l.cfg.Dir, name+".ndjson")
}
