package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/ashureev/onboard-chat/internal/conversation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePurger struct {
	mu       sync.Mutex
	idle     []string
	cutoff   time.Time
	failures map[string][]error
	deleted  []string
	sweeps   int
}

func (f *fakePurger) IdleSessions(_ context.Context, before time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoff = before
	f.sweeps++
	return f.idle, nil
}

func (f *fakePurger) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if errs := f.failures[id]; len(errs) > 0 {
		f.failures[id] = errs[1:]
		return errs[0]
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func TestSweepDeletesIdleSessions(t *testing.T) {
	now := time.Date(2026, 5, 8, 12, 0, 0, 0, time.UTC)
	p := &fakePurger{
		idle: []string{"a", "b", "c", "d"},
		failures: map[string][]error{
			"b": {errors.New("database is locked (5) (SQLITE_BUSY)")},
			"c": {errors.New("disk I/O error")},
			"d": {fmt.Errorf("%w: d", conversation.ErrNotFound)},
		},
	}
	w := NewWorker(p, 7*24*time.Hour, time.Hour, nil)
	w.now = func() time.Time { return now }

	deleted, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3 (a, b after retry, d already gone)", deleted)
	}
	if want := now.Add(-7 * 24 * time.Hour); !p.cutoff.Equal(want) {
		t.Errorf("cutoff = %v, want %v", p.cutoff, want)
	}
	if len(p.deleted) != 2 || p.deleted[0] != "a" || p.deleted[1] != "b" {
		t.Errorf("deleted ids = %v", p.deleted)
	}
}

func TestStartStopsWithContext(t *testing.T) {
	p := &fakePurger{}
	w := NewWorker(p, time.Hour, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := w.Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		p.mu.Lock()
		sweeps := p.sweeps
		p.mu.Unlock()
		if sweeps > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker never swept")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
