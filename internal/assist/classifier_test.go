package assist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ldi/telepathic/internal/ai"
	"github.com/ldi/telepathic/internal/db"
	"github.com/ldi/telepathic/pkg/models"
	"github.com/mark3labs/mcp-go/server"
)

func TestAnalyze(t *testing.T) {
	ctx := context.Background()

	t.Run("Applies classification", func(t *testing.T) {
		fake := &ai.Fake{StructuredFunc: ai.RespondWith(map[string]string{
			"assistType": "Phone",
			"assistData": " 555-0100 ",
		})}
		c := NewClassifier(ai.NewFakeService(fake))
		task := &models.Task{Title: "Call the plumber at 555-0100"}

		if !c.Analyze(ctx, task) {
			t.Fatal("expected an assist to be found")
		}
		if task.AssistType != models.AssistPhone || task.AssistData != "555-0100" {
			t.Errorf("unexpected classification %v %q", task.AssistType, task.AssistData)
		}
		if !strings.Contains(fake.LastPrompt(), `Task text: "Call the plumber at 555-0100"`) {
			t.Errorf("prompt missing title:\n%s", fake.LastPrompt())
		}
		if fake.StructuredCalls() != 1 {
			t.Errorf("expected exactly one call, got %d", fake.StructuredCalls())
		}
	})

	t.Run("None is not an assist", func(t *testing.T) {
		fake := &ai.Fake{StructuredFunc: ai.RespondWith(map[string]string{"assistType": "None"})}
		c := NewClassifier(ai.NewFakeService(fake))
		task := &models.Task{Title: "Think about life"}
		if c.Analyze(ctx, task) {
			t.Error("expected false for None")
		}
	})

	t.Run("Uninitialized skips the call", func(t *testing.T) {
		c := NewClassifier(ai.NewService(ai.Options{}, nil))
		task := &models.Task{Title: "Call mom"}
		if c.Analyze(ctx, task) {
			t.Error("expected false")
		}
		if task.AssistType != models.AssistNone {
			t.Error("task should be unchanged")
		}
	})

	t.Run("Error leaves task unchanged", func(t *testing.T) {
		fake := &ai.Fake{StructuredFunc: func(ctx context.Context, prompt string, out any, tools []server.ServerTool) error {
			return errors.New("timeout")
		}}
		c := NewClassifier(ai.NewFakeService(fake))
		task := &models.Task{Title: "Email Ann", AssistType: models.AssistEmail, AssistData: "ann@example.com"}
		if c.Analyze(ctx, task) {
			t.Error("expected false on error")
		}
		if task.AssistType != models.AssistEmail || task.AssistData != "ann@example.com" {
			t.Errorf("task changed on error: %+v", task)
		}
		if fake.StructuredCalls() != 1 {
			t.Errorf("expected no retry, got %d calls", fake.StructuredCalls())
		}
	})

	t.Run("Blank title", func(t *testing.T) {
		fake := &ai.Fake{}
		c := NewClassifier(ai.NewFakeService(fake))
		if c.Analyze(ctx, &models.Task{Title: "  "}) {
			t.Error("expected false")
		}
		if fake.Calls() != 0 {
			t.Error("expected no AI call for blank title")
		}
	})
}

func TestAnalyzeOrGuess(t *testing.T) {
	c := NewClassifier(ai.NewService(ai.Options{}, nil))
	c.rules.entities = nil

	task := &models.Task{Title: "Email bob@example.com the slides"}
	if !c.AnalyzeOrGuess(context.Background(), task) {
		t.Fatal("expected rule match")
	}
	if task.AssistType != models.AssistEmail || task.AssistData != "bob@example.com" {
		t.Errorf("unexpected guess %v %q", task.AssistType, task.AssistData)
	}
}

func TestAnalyzeAndSave(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	defer database.Close()
	if err := database.Init(ctx); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}

	task := &models.Task{Title: "Visit the library"}
	if _, err := database.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}

	fake := &ai.Fake{StructuredFunc: ai.RespondWith(map[string]string{
		"assistType": "Maps",
		"assistData": "Central Library",
	})}
	c := NewClassifier(ai.NewFakeService(fake))

	found, err := c.AnalyzeAndSave(ctx, database, task)
	if err != nil {
		t.Fatalf("AnalyzeAndSave failed: %v", err)
	}
	if !found {
		t.Fatal("expected an assist")
	}

	got, _ := database.GetTask(ctx, task.ID)
	if got.AssistType != models.AssistMaps || got.AssistData != "Central Library" {
		t.Errorf("classification not persisted: %+v", got)
	}
}
