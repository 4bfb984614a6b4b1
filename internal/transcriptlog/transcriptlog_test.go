package transcriptlog

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{
		Enabled:       true,
		Dir:           dir,
		GlobalEnabled: true,
		GlobalPath:    filepath.Join(dir, "all", "all.ndjson"),
		QueueSize:     16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Log(Event{SessionID: "sess-1", Role: "user", State: "zip_code", Content: "10001"})
	logger.Log(Event{SessionID: "sess-1", Role: "assistant", State: "full_name", Content: "What's your name?"})
	logger.Log(Event{SessionID: "sess-2", Role: "user", State: "zip_code", Content: "hi"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, "sess-1.ndjson"))
	if len(lines) != 2 {
		t.Fatalf("sess-1 has %d lines, want 2", len(lines))
	}
	var got Event
	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.Role != "assistant" || got.State != "full_name" {
		t.Errorf("unexpected event: %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be filled in")
	}

	if all := readLines(t, filepath.Join(dir, "all", "all.ndjson")); len(all) != 3 {
		t.Errorf("global log has %d lines, want 3", len(all))
	}
}

func TestLoggerDisabledIsNoop(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "never")
	logger, err := New(Config{Enabled: false, Dir: dir}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Log(Event{SessionID: "s", Content: "x"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("disabled logger created %s", dir)
	}
}

func TestLogAfterCloseDoesNotPanic(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{Enabled: true, Dir: t.TempDir(), QueueSize: 1}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	logger.Log(Event{SessionID: "late"})
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestSessionPathSanitizes(t *testing.T) {
	t.Parallel()

	l := &Logger{cfg: Config{Dir: "/logs"}}
	if got := l.SessionPath("../../etc/passwd"); got != filepath.Join("/logs", ".._.._etc_passwd.ndjson") {
		t.Errorf("SessionPath = %q", got)
	}
	if got := l.SessionPath(" "); !strings.HasSuffix(got, "unknown.ndjson") {
		t.Errorf("blank id path = %q", got)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			return strings.Split(strings.TrimSpace(string(data)), "\n")
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return nil
}
