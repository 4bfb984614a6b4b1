package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/ashureev/onboard-chat/internal/assistant"
	"github.com/ashureev/onboard-chat/internal/domain"
	"github.com/ashureev/onboard-chat/internal/nhtsa"
	"github.com/ashureev/onboard-chat/internal/store"
	"github.com/ashureev/onboard-chat/internal/transcriptlog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeVerifier struct {
	mu          sync.Mutex
	vinVerdict  nhtsa.Verdict
	makeVerdict nhtsa.Verdict
	vinCalls    int
	makeCalls   int
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{
		vinVerdict:  nhtsa.Verdict{Valid: true, Make: "HONDA", Model: "Accord", Year: 2003, BodyClass: "Coupe"},
		makeVerdict: nhtsa.Verdict{Valid: true},
	}
}

func (f *fakeVerifier) DecodeVIN(context.Context, string) nhtsa.Verdict {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vinCalls++
	return f.vinVerdict
}

func (f *fakeVerifier) ValidateYearMake(_ context.Context, year int, vehicleMake string) nhtsa.Verdict {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.makeCalls++
	v := f.makeVerdict
	if v.Valid {
		v.Make, v.Year = vehicleMake, year
	}
	return v
}

// fakeGenerator answers "ask:<state>" unless reply or err is set.
type fakeGenerator struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []assistant.Request
	onCall   func()
}

func (f *fakeGenerator) Generate(_ context.Context, req assistant.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	reply, err, hook := f.reply, f.err, f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return "", err
	}
	if reply != "" {
		return reply, nil
	}
	return "ask:" + string(req.State), nil
}

func (f *fakeGenerator) last() assistant.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeQuotes struct {
	mu    sync.Mutex
	calls int
}

const testQuote = `"Breathe in, breathe out." - Someone Calm`

func (f *fakeQuotes) Quote(context.Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return testQuote
}

func (f *fakeQuotes) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingTranscripts struct {
	mu     sync.Mutex
	events []transcriptlog.Event
}

func (r *recordingTranscripts) Log(e transcriptlog.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// testClock advances one second per reading.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type harness struct {
	o           *Orchestrator
	store       *store.MemoryStore
	verifier    *fakeVerifier
	generator   *fakeGenerator
	quotes      *fakeQuotes
	transcripts *recordingTranscripts
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:       store.NewMemory(),
		verifier:    newFakeVerifier(),
		generator:   &fakeGenerator{},
		quotes:      &fakeQuotes{},
		transcripts: &recordingTranscripts{},
	}
	clock := &testClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	var seq int
	var seqMu sync.Mutex
	o, err := New(Options{
		Store:       h.store,
		Verifier:    h.verifier,
		Generator:   h.generator,
		Quotes:      h.quotes,
		Transcripts: h.transcripts,
		Now:         clock.Now,
		NewID: func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("session-%d", seq)
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	h.o = o
	return h
}

func (h *harness) start(t *testing.T) string {
	t.Helper()
	reply, err := h.o.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return reply.SessionID
}

func (h *harness) send(t *testing.T, id, text string) *Reply {
	t.Helper()
	reply, err := h.o.Send(context.Background(), id, text)
	if err != nil {
		t.Fatalf("Send(%q) failed: %v", text, err)
	}
	return reply
}

// seed stores a session positioned at state with plausible earlier answers.
func (h *harness) seed(t *testing.T, id string, state domain.State) {
	t.Helper()
	yes := true
	days := 5
	s := domain.NewSession(id, time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	s.ZipCode, s.FullName, s.Email = "10001", "Jane Doe", "jane@example.com"
	switch state {
	case domain.StateVehicleVIN:
		s.Draft = &domain.Vehicle{Mode: domain.ModeVIN}
	case domain.StateVehicleYear, domain.StateVehicleMake, domain.StateVehicleBody,
		domain.StateVehicleUse, domain.StateBlindSpotWarning, domain.StateCommuteDays,
		domain.StateCommuteMiles, domain.StateAnnualMileage:
		s.Draft = &domain.Vehicle{
			Mode: domain.ModeManual, Year: 2019, Make: "Toyota", BodyType: "Sedan",
			Use: domain.UseCommuting, BlindSpotWarning: &yes, DaysPerWeek: &days,
		}
	case domain.StateAddAnotherVehicle, domain.StateLicenseType, domain.StateLicenseStatus:
		miles := 12
		s.Vehicles = []domain.Vehicle{{
			Mode: domain.ModeManual, Year: 2019, Make: "Toyota", BodyType: "Sedan",
			Use: domain.UseCommuting, BlindSpotWarning: &yes, DaysPerWeek: &days, OneWayMiles: &miles,
		}}
	}
	s.State = state
	if err := h.store.Create(context.Background(), s); err != nil {
		t.Fatalf("seed %s: %v", state, err)
	}
}

func (h *harness) get(t *testing.T, id string) *domain.Session {
	t.Helper()
	s, err := h.o.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	return s
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error without a store")
	}
	if _, err := New(Options{Store: store.NewMemory(), Verifier: newFakeVerifier()}); err == nil {
		t.Error("expected error without a generator")
	}
}

func TestErrorsAreTyped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.o.Send(ctx, "missing", "10001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Send: err = %v, want ErrNotFound", err)
	}
	if _, err := h.o.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: err = %v, want ErrNotFound", err)
	}
	if err := h.o.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: err = %v, want ErrNotFound", err)
	}
	if !strings.Contains(fmt.Sprint(ErrNotFound), "not found") {
		t.Error("ErrNotFound should read as not found")
	}
}
