package main

import (
	"bytes"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate points the CLI at a fresh database and keeps real credentials out.
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	originalConfig, originalDB, originalVerbose, originalMenu := configPath, dbPath, verbose, runMenu
	t.Cleanup(func() {
		configPath, dbPath, verbose, runMenu = originalConfig, originalDB, originalVerbose, originalMenu
	})
	t.Setenv("HOME", tmpDir)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_PLACES_API_KEY", "")
	t.Setenv("TELEPATHIC_AI_API_KEY", "")

	configPath = ""
	dbPath = filepath.Join(tmpDir, "telepathic.db")
	return tmpDir
}

func TestExecuteUnknownCommand(t *testing.T) {
	tmpDir := isolate(t)
	var stdout, stderr bytes.Buffer
	err := execute([]string{"--db-path", filepath.Join(tmpDir, "x.db"), "work"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "unknown command: work") {
		t.Fatalf("expected unknown command error, got: %v", err)
	}
}

func TestExecuteUsesPresetDBPath(t *testing.T) {
	tmpDir := isolate(t)
	want := dbPath

	run(t, "add-task", "Water plants")
	if dbPath != want {
		t.Errorf("db path changed to %q", dbPath)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected the database at %s: %v", want, err)
	}
	if _, err := os.Stat(filepath.Join(".telepathic", "telepathic.db")); !os.IsNotExist(err) {
		t.Error("a database was written to the working directory")
	}

	other := filepath.Join(tmpDir, "other.db")
	run(t, "--db-path", other, "status")
	if _, err := os.Stat(other); err != nil {
		t.Errorf("expected --db-path to override the preset path: %v", err)
	}
}

func TestExecuteHelp(t *testing.T) {
	isolate(t)
	var stdout, stderr bytes.Buffer
	err := execute([]string{"--help"}, &stdout, &stderr)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected help error, got: %v", err)
	}

	output := stderr.String()
	if !strings.Contains(output, "Running `telepathic` with no command opens the menu.") {
		t.Fatalf("expected root help text, got: %s", output)
	}
	for _, want := range []string{"-config", "-db-path", "-verbose", "prioritize", "extract"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in help output", want)
		}
	}
}

func TestExecuteMenu(t *testing.T) {
	isolate(t)

	t.Run("cancelled", func(t *testing.T) {
		runMenu = func() (string, error) { return "", nil }
		var stdout, stderr bytes.Buffer
		if err := execute(nil, &stdout, &stderr); err != nil {
			t.Fatalf("execute failed: %v", err)
		}
		if stdout.Len() != 0 {
			t.Errorf("expected no output, got %q", stdout.String())
		}
	})

	t.Run("routes selection", func(t *testing.T) {
		runMenu = func() (string, error) { return "status", nil }
		var stdout, stderr bytes.Buffer
		if err := execute(nil, &stdout, &stderr); err != nil {
			t.Fatalf("execute failed: %v", err)
		}
		if !strings.Contains(stdout.String(), "Telepathic Status") {
			t.Errorf("expected status output, got %q", stdout.String())
		}
	})

	t.Run("menu error", func(t *testing.T) {
		runMenu = func() (string, error) { return "", errors.New("no tty") }
		var stdout, stderr bytes.Buffer
		if err := execute(nil, &stdout, &stderr); err == nil || !strings.Contains(err.Error(), "no tty") {
			t.Errorf("expected menu error, got %v", err)
		}
	})
}
