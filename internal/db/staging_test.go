package db

import (
	"testing"

	"github.com/ldi/telepathic/pkg/models"
)

func TestStagingManager(t *testing.T) {
	sm := NewStagingManager()
	sessionID := "test-session"

	sm.Stage(sessionID, &models.ExtractionResult{
		Projects: []models.ExtractedProject{{Name: "Garden", Tasks: []models.ExtractedTask{{Title: "Buy seeds"}}}},
	})
	sm.Stage(sessionID, &models.ExtractionResult{
		StandaloneTasks: []models.ExtractedTask{{Title: "Call mom"}},
	})

	peeked := sm.Peek(sessionID)
	if len(peeked.Projects) != 1 || len(peeked.StandaloneTasks) != 1 {
		t.Errorf("expected merged staging, got %+v", peeked)
	}

	staged := sm.GetAndClear(sessionID)
	if len(staged.Projects) != 1 || staged.Projects[0].Name != "Garden" {
		t.Errorf("expected Garden project, got %v", staged.Projects)
	}
	if len(staged.StandaloneTasks) != 1 || staged.StandaloneTasks[0].Title != "Call mom" {
		t.Errorf("expected standalone task, got %v", staged.StandaloneTasks)
	}

	staged2 := sm.GetAndClear(sessionID)
	if !staged2.IsEmpty() {
		t.Errorf("expected empty staging after GetAndClear, got %v", staged2)
	}
}

func TestStagingManagerMultipleSessions(t *testing.T) {
	sm := NewStagingManager()

	sm.Stage("s1", &models.ExtractionResult{StandaloneTasks: []models.ExtractedTask{{Title: "one"}}})
	sm.Stage("s2", &models.ExtractionResult{StandaloneTasks: []models.ExtractedTask{{Title: "two"}}})
	sm.Discard("s2")

	if got := sm.GetAndClear("s1"); len(got.StandaloneTasks) != 1 || got.StandaloneTasks[0].Title != "one" {
		t.Errorf("session 1: expected one, got %v", got.StandaloneTasks)
	}
	if got := sm.GetAndClear("s2"); !got.IsEmpty() {
		t.Errorf("session 2: expected discarded, got %v", got)
	}
}

func TestStagingManagerEmptySession(t *testing.T) {
	sm := NewStagingManager()
	staged := sm.GetAndClear("non-existent")

	if staged == nil {
		t.Fatal("expected non-nil result for empty session")
	}
	if !staged.IsEmpty() {
		t.Errorf("expected empty result, got %v", staged)
	}
}
