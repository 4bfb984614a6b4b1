// Package conversation drives the onboarding dialogue.
//
// The Orchestrator owns every session mutation. Each inbound message runs as
// one unit under a per-session lock: mood detection, field extraction and at
// most one verification call, reply generation, then a single persistence
// write. Validation and external-service problems never surface as errors;
// they become re-prompts or degraded replies. Only unknown sessions and
// storage failures are returned to the caller.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/onboard-chat/internal/assistant"
	"github.com/ashureev/onboard-chat/internal/domain"
	"github.com/ashureev/onboard-chat/internal/mood"
	"github.com/ashureev/onboard-chat/internal/nhtsa"
	"github.com/ashureev/onboard-chat/internal/quotes"
	"github.com/ashureev/onboard-chat/internal/store"
	"github.com/ashureev/onboard-chat/internal/transcriptlog"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("conversation not found")

const (
	defaultListLimit    = 50
	defaultHistoryLimit = 10
	defaultMaxListLimit = 200
)

// Generator produces the assistant's reply text.
type Generator interface {
	Generate(ctx context.Context, req assistant.Request) (string, error)
}

// TranscriptLogger receives each persisted exchange.
type TranscriptLogger interface {
	Log(event transcriptlog.Event)
}

// Reply is the result of starting a conversation or sending a message.
type Reply struct {
	SessionID  string       `json:"session_id"`
	Message    string       `json:"response"`
	State      domain.State `json:"current_state"`
	Complete   bool         `json:"is_complete"`
	Frustrated bool         `json:"frustrated,omitempty"`
	Warning    string       `json:"warning,omitempty"`
}

// Options configures an Orchestrator. Store, Verifier and Generator are required.
type Options struct {
	Store     store.Repository
	Verifier  nhtsa.Verifier
	Generator Generator
	Quotes    quotes.Provider
	Logger    *slog.Logger

	// Transcripts is optional.
	Transcripts TranscriptLogger

	HistoryLimit int
	MaxListLimit int

	// Now and NewID are replaced in tests.
	Now   func() time.Time
	NewID func() string
}

// Orchestrator runs conversations.
type Orchestrator struct {
	store       store.Repository
	machine     *Machine
	generator   Generator
	quotes      quotes.Provider
	transcripts TranscriptLogger
	logger      *slog.Logger
	locks       *sessionLocks

	historyLimit int
	maxListLimit int
	now          func() time.Time
	newID        func() string
}

// New creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("conversation: store is required")
	}
	if opts.Verifier == nil {
		return nil, errors.New("conversation: verifier is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("conversation: generator is required")
	}
	if opts.Quotes == nil {
		opts.Quotes = quotes.Static(quotes.FallbackEmpty)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.MaxListLimit <= 0 {
		opts.MaxListLimit = defaultMaxListLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	return &Orchestrator{
		store:        opts.Store,
		machine:      NewMachine(opts.Verifier, opts.Now),
		generator:    opts.Generator,
		quotes:       opts.Quotes,
		transcripts:  opts.Transcripts,
		logger:       opts.Logger,
		locks:        newSessionLocks(),
		historyLimit: opts.HistoryLimit,
		maxListLimit: opts.MaxListLimit,
		now:          opts.Now,
		newID:        opts.NewID,
	}, nil
}

// clock returns the current time at the precision sessions are stored with.
func (o *Orchestrator) clock() time.Time {
	return o.now().UTC().Truncate(time.Millisecond)
}

// Start creates a session in the initial state with an opening message.
func (o *Orchestrator) Start(ctx context.Context) (*Reply, error) {
	sess := domain.NewSession(o.newID(), o.clock())

	text, err := o.generator.Generate(ctx, assistant.Request{
		State: sess.State,
		Extra: assistant.WelcomeHint,
	})
	if err != nil {
		o.logger.Warn("welcome generation failed, using fallback", "session_id", sess.ID, "error", err)
		text = assistant.Welcome
	}
	text, _ = assistant.StripMarker(text)
	sess.Greeting = text

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := o.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	o.logger.Info("conversation started", "session_id", sess.ID)
	return &Reply{SessionID: sess.ID, Message: text, State: sess.State}, nil
}

// Send processes one user message and returns the assistant's reply.
func (o *Orchestrator) Send(ctx context.Context, id, text string) (*Reply, error) {
	unlock := o.locks.lock(id)
	defer unlock()

	sess, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}

	frustrated := mood.IsFrustrated(text)
	history := append([]domain.Turn(nil), sess.RecentTurns(o.historyLimit)...)
	from := sess.State

	var outcome Outcome
	var extra string
	switch {
	case sess.State.Terminal():
		extra = "Onboarding is already complete. Acknowledge the message briefly and let them know nothing else is needed."
	default:
		if c, ok := applyCorrection(sess, text); ok {
			extra = fmt.Sprintf("The user corrected their %s to %s. Confirm the change, then continue with the current task.", c.Field, c.Value)
			o.logger.Info("answer corrected", "session_id", id, "field", c.Field)
			break
		}
		outcome = o.machine.Next(ctx, sess, text)
		extra = promptContext(outcome)
	}

	message, markerSeen := o.compose(ctx, sess, assistant.Request{
		State:       sess.State,
		UserMessage: text,
		History:     history,
		Collected:   assistant.CollectedFacts(sess),
		Extra:       extra,
		Frustrated:  frustrated,
	}, frustrated)

	// Nothing has been written yet: an abandoned request leaves the session as it was.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := o.clock()
	sess.Append(domain.RoleUser, text, now)
	sess.Append(domain.RoleAssistant, message, now)
	sess.UpdatedAt = now
	if err := o.store.Update(ctx, sess); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		o.logger.Error("failed to persist session", "session_id", id, "error", err)
		return nil, fmt.Errorf("persist session: %w", err)
	}

	o.logger.Debug("message processed",
		"session_id", id,
		"from", from,
		"to", sess.State,
		"advanced", outcome.Advanced,
		"frustrated", frustrated)
	o.record(sess, text, message, from, frustrated || markerSeen, now)

	return &Reply{
		SessionID:  id,
		Message:    message,
		State:      sess.State,
		Complete:   sess.Complete(),
		Frustrated: frustrated || markerSeen,
		Warning:    outcome.Warning,
	}, nil
}

// promptContext tells the generator what happened to the user's answer.
func promptContext(o Outcome) string {
	switch {
	case !o.Advanced && o.Reason != "":
		return fmt.Sprintf("The user's answer for the %s was not accepted: %s Ask again for the %s.", o.Field, ensurePeriod(o.Reason), o.Field)
	case o.Advanced && o.Warning != "":
		return fmt.Sprintf("The %s was accepted, but: %s", o.Field, o.Warning)
	default:
		return ""
	}
}

func ensurePeriod(s string) string {
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}

// compose generates the reply and, for a frustrated user, fetches a calming
// quote concurrently and prepends it. It reports whether the generator
// flagged frustration itself.
func (o *Orchestrator) compose(ctx context.Context, sess *domain.Session, req assistant.Request, frustrated bool) (string, bool) {
	var text, quote string
	var g errgroup.Group

	g.Go(func() error {
		generated, err := o.generator.Generate(ctx, req)
		if err != nil {
			o.logger.Warn("reply generation failed, using fallback",
				"session_id", sess.ID,
				"state", req.State,
				"error", err)
			generated = assistant.Fallback(req.State)
		}
		text = generated
		return nil
	})
	if frustrated {
		g.Go(func() error {
			quote = o.quotes.Quote(ctx)
			return nil
		})
	}
	_ = g.Wait()

	text, marked := assistant.StripMarker(text)
	if text == "" {
		text = assistant.Fallback(req.State)
	}
	if quote != "" {
		text = quote + "\n\n" + text
	}
	return text, marked
}

func (o *Orchestrator) record(sess *domain.Session, userText, reply string, from domain.State, frustrated bool, at time.Time) {
	if o.transcripts == nil {
		return
	}
	o.transcripts.Log(transcriptlog.Event{
		SessionID: sess.ID, Role: string(domain.RoleUser), State: string(from),
		Content: userText, Frustrated: frustrated, Timestamp: at,
	})
	o.transcripts.Log(transcriptlog.Event{
		SessionID: sess.ID, Role: string(domain.RoleAssistant), State: string(sess.State),
		Content: reply, Timestamp: at,
	})
}

// Get returns a full session snapshot.
func (o *Orchestrator) Get(ctx context.Context, id string) (*domain.Session, error) {
	unlock := o.locks.lock(id)
	defer unlock()
	return o.load(ctx, id)
}

func (o *Orchestrator) load(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := o.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// ListRecent returns session summaries, most recently updated first. A
// non-positive limit selects the default of 50.
func (o *Orchestrator) ListRecent(ctx context.Context, limit int) ([]domain.Summary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > o.maxListLimit {
		limit = o.maxListLimit
	}
	summaries, err := o.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return summaries, nil
}

// IdleSessions returns the IDs of sessions not updated since before.
func (o *Orchestrator) IdleSessions(ctx context.Context, before time.Time) ([]string, error) {
	ids, err := o.store.IdleSessions(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("list idle sessions: %w", err)
	}
	return ids, nil
}

// Delete removes a session and everything collected in it.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	unlock := o.locks.lock(id)
	defer unlock()
	if err := o.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
