package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ldi/telepathic/internal/ai"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if err := execute(args, &stdout, &stderr); err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, stderr.String())
	}
	return stdout.String()
}

func TestTaskCommands(t *testing.T) {
	isolate(t)

	out := run(t, "list-tasks")
	if !strings.Contains(out, "Buy milk") || !strings.Contains(out, "Getting Started") {
		t.Fatalf("expected seeded tasks, got:\n%s", out)
	}

	out = run(t, "add-task", "Call", "555-0100")
	if !strings.Contains(out, "Added task 4: Call 555-0100 (Phone)") {
		t.Errorf("unexpected add output %q", out)
	}

	run(t, "complete", "4")
	if out := run(t, "list-tasks"); strings.Contains(out, "Call 555-0100") {
		t.Error("completed task should be hidden without -all")
	}
	if out := run(t, "list-tasks", "-all"); !strings.Contains(out, "Call 555-0100") {
		t.Error("expected completed task with -all")
	}

	run(t, "complete", "4", "-undo")
	if out := run(t, "list-tasks"); !strings.Contains(out, "Call 555-0100") {
		t.Error("expected the reopened task")
	}

	run(t, "complete", "1")
	out = run(t, "clean")
	if !strings.Contains(out, "All cleaned up!") || !strings.Contains(out, "Deleted 1 completed tasks") {
		t.Errorf("unexpected clean output %q", out)
	}

	run(t, "delete", "2")
	if out := run(t, "list-tasks", "-all"); strings.Contains(out, "Connect a calendar") {
		t.Error("expected task 2 to be deleted")
	}
}

func TestTaskCommandErrors(t *testing.T) {
	isolate(t)
	var stdout, stderr bytes.Buffer

	cases := [][]string{
		{"complete"},
		{"complete", "abc"},
		{"complete", "99"},
		{"delete", "99"},
		{"add-task"},
		{"extract"},
		{"settings", "-telepathy", "maybe"},
		{"config", "bogus"},
	}
	for _, args := range cases {
		if err := execute(args, &stdout, &stderr); err == nil {
			t.Errorf("expected %v to fail", args)
		}
	}
}

func TestPrioritizeDisabled(t *testing.T) {
	isolate(t)
	out := run(t, "prioritize")
	if !strings.Contains(out, "Priorities are off") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSettingsCommand(t *testing.T) {
	isolate(t)
	out := run(t, "settings", "-telepathy", "on", "-about", "I work nights")
	if !strings.Contains(out, "Telepathy: on") || !strings.Contains(out, "About me:  I work nights") {
		t.Errorf("unexpected settings output %q", out)
	}
	if out := run(t, "settings"); !strings.Contains(out, "Telepathy: on") {
		t.Error("expected the setting to persist")
	}

	if out := run(t, "settings", "-api-key", "sk-test"); !strings.Contains(out, "API key:   on") {
		t.Errorf("expected the key to be saved, got %q", out)
	}
	if out := run(t, "settings", "-clear-api-key"); !strings.Contains(out, "API key:   off") {
		t.Errorf("expected the key to be cleared, got %q", out)
	}
	if out := run(t, "settings"); !strings.Contains(out, "API key:   off") {
		t.Errorf("cleared key came back, got %q", out)
	}
}

func TestProjectByName(t *testing.T) {
	isolate(t)

	out := run(t, "add-task", "-project", "Getting Started", "Read the manual")
	if !strings.Contains(out, "Added task 4: Read the manual") {
		t.Fatalf("unexpected add output %q", out)
	}
	out = run(t, "list-tasks", "-project", "Getting Started")
	if !strings.Contains(out, "Read the manual") {
		t.Errorf("expected the task under its project, got:\n%s", out)
	}
	if out := run(t, "list-tasks", "-project", "1"); !strings.Contains(out, "Read the manual") {
		t.Errorf("expected lookup by id to match, got:\n%s", out)
	}

	var stdout, stderr bytes.Buffer
	err := execute([]string{"add-task", "-project", "Nope", "Lost task"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "project not found: Nope") {
		t.Errorf("expected a missing project error, got %v", err)
	}
}

func TestExtractWithoutKey(t *testing.T) {
	isolate(t)
	var stdout, stderr bytes.Buffer
	err := execute([]string{"extract", "-text", "buy eggs"}, &stdout, &stderr)
	if !errors.Is(err, ai.ErrNotInitialized) {
		t.Errorf("expected an uninitialized AI error, got %v", err)
	}
}

func TestCalendarsCommand(t *testing.T) {
	isolate(t)
	if out := run(t, "calendars"); !strings.Contains(out, "No calendars available") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestStatus(t *testing.T) {
	isolate(t)
	out := run(t, "status")
	for _, want := range []string{"Telepathic Status", "Total Tasks:     3", "Projects:        1", "Telepathy:       off", "Personal"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in status output:\n%s", want, out)
		}
	}
}

func TestConfigCommands(t *testing.T) {
	home := isolate(t)

	out := run(t, "config", "init", "-global")
	path := filepath.Join(home, ".telepathic", "config.yaml")
	if !strings.Contains(out, path) {
		t.Errorf("unexpected output %q", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}

	data := "ai:\n  api_key: sk-secret\n  model: gpt-test\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	out = run(t, "config", "show")
	if strings.Contains(out, "sk-secret") {
		t.Error("api key should be masked")
	}
	if !strings.Contains(out, "gpt-test") || !strings.Contains(out, "# "+path) {
		t.Errorf("unexpected config output:\n%s", out)
	}

	if out := run(t, "config"); !strings.Contains(out, "Usage: telepathic config") {
		t.Errorf("expected usage, got %q", out)
	}
}
