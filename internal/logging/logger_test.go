package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"line one\nline two", 100, "line one line two"},
		{"abcdefghij", 4, "abcd..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestSubsystemPrefix(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	Info("orchestrator", "refreshed %d tasks", 3)
	if !strings.Contains(buf.String(), "[orchestrator] refreshed 3 tasks") {
		t.Errorf("unexpected log line: %q", buf.String())
	}

	buf.Reset()
	SetDebug(false)
	Debug("orchestrator", "hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug to be suppressed, got %q", buf.String())
	}

	SetDebug(true)
	defer SetDebug(false)
	Debug("orchestrator", "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected debug output, got %q", buf.String())
	}
}

func TestRedirectToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	closer, err := RedirectToFile(path)
	if err != nil {
		t.Fatalf("RedirectToFile failed: %v", err)
	}
	Info("test", "to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "[test] to file") {
		t.Errorf("expected log in file, got %q", string(data))
	}
}
