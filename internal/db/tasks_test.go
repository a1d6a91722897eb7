package db

import (
	"context"
	"testing"
	"time"

	"github.com/ldi/telepathic/pkg/models"
)

func TestTaskCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := &models.Project{Name: "Home"}
	if _, err := db.SaveProject(ctx, p); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	due := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	task := &models.Task{
		Title:      "Call plumber",
		DueDate:    &due,
		Priority:   3,
		ProjectID:  &p.ID,
		AssistType: models.AssistPhone,
		AssistData: "555-0100",
	}

	t.Run("Insert assigns id", func(t *testing.T) {
		id, err := db.SaveTask(ctx, task)
		if err != nil {
			t.Fatalf("SaveTask failed: %v", err)
		}
		if id == 0 || task.ID != id {
			t.Fatalf("expected id to be assigned, got %d (task.ID=%d)", id, task.ID)
		}
	})

	t.Run("Get", func(t *testing.T) {
		got, err := db.GetTask(ctx, task.ID)
		if err != nil {
			t.Fatalf("GetTask failed: %v", err)
		}
		if got == nil {
			t.Fatal("expected task, got nil")
		}
		if got.Title != "Call plumber" || got.Priority != 3 {
			t.Errorf("unexpected task: %+v", got)
		}
		if got.AssistType != models.AssistPhone || got.AssistData != "555-0100" {
			t.Errorf("assist fields not persisted: %v %q", got.AssistType, got.AssistData)
		}
		if got.ProjectName != "Home" {
			t.Errorf("expected project name Home, got %q", got.ProjectName)
		}
		if got.DueDate == nil || !got.DueDate.Equal(due) {
			t.Errorf("expected due date %v, got %v", due, got.DueDate)
		}
	})

	t.Run("Get missing returns nil", func(t *testing.T) {
		got, err := db.GetTask(ctx, 9999)
		if err != nil {
			t.Fatalf("GetTask failed: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("Update", func(t *testing.T) {
		task.Title = "Call the plumber"
		task.IsCompleted = true
		if _, err := db.SaveTask(ctx, task); err != nil {
			t.Fatalf("SaveTask (update) failed: %v", err)
		}
		got, _ := db.GetTask(ctx, task.ID)
		if got.Title != "Call the plumber" || !got.IsCompleted {
			t.Errorf("update not applied: %+v", got)
		}
	})

	t.Run("Update missing", func(t *testing.T) {
		_, err := db.SaveTask(ctx, &models.Task{ID: 4242, Title: "ghost"})
		if err == nil {
			t.Error("expected error updating missing task")
		}
	})

	t.Run("Invalid priority", func(t *testing.T) {
		_, err := db.SaveTask(ctx, &models.Task{Title: "bad", Priority: 9})
		if err == nil {
			t.Error("expected error for priority out of range")
		}
	})

	t.Run("List by project", func(t *testing.T) {
		if _, err := db.SaveTask(ctx, &models.Task{Title: "Standalone"}); err != nil {
			t.Fatalf("SaveTask failed: %v", err)
		}
		all, err := db.ListTasks(ctx, nil)
		if err != nil {
			t.Fatalf("ListTasks failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 tasks, got %d", len(all))
		}
		scoped, err := db.ListTasks(ctx, &p.ID)
		if err != nil {
			t.Fatalf("ListTasks failed: %v", err)
		}
		if len(scoped) != 1 || scoped[0].ID != task.ID {
			t.Errorf("expected only the project task, got %v", scoped)
		}
		incomplete, err := db.ListIncompleteTasks(ctx)
		if err != nil {
			t.Fatalf("ListIncompleteTasks failed: %v", err)
		}
		if len(incomplete) != 1 || incomplete[0].Title != "Standalone" {
			t.Errorf("expected only Standalone to be incomplete, got %v", incomplete)
		}
	})

	t.Run("Delete returns count", func(t *testing.T) {
		n, err := db.DeleteTask(ctx, task.ID)
		if err != nil {
			t.Fatalf("DeleteTask failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 row deleted, got %d", n)
		}
		n, err = db.DeleteTask(ctx, task.ID)
		if err != nil {
			t.Fatalf("DeleteTask failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0 rows deleted the second time, got %d", n)
		}
	})
}

func TestDeleteCompletedTasks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i, done := range []bool{true, false, true} {
		task := &models.Task{Title: string(rune('a' + i)), IsCompleted: done}
		if _, err := db.SaveTask(ctx, task); err != nil {
			t.Fatalf("SaveTask failed: %v", err)
		}
	}

	n, err := db.DeleteCompletedTasks(ctx)
	if err != nil {
		t.Fatalf("DeleteCompletedTasks failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}

	remaining, _ := db.ListTasks(ctx, nil)
	if len(remaining) != 1 || remaining[0].IsCompleted {
		t.Errorf("expected one incomplete task left, got %v", remaining)
	}
}

func TestSetTaskCompleted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := &models.Task{Title: "Water plants"}
	if _, err := db.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}

	if err := db.SetTaskCompleted(ctx, task.ID, true); err != nil {
		t.Fatalf("SetTaskCompleted failed: %v", err)
	}
	got, _ := db.GetTask(ctx, task.ID)
	if !got.IsCompleted {
		t.Error("expected task to be completed")
	}

	if err := db.SetTaskCompleted(ctx, 777, true); err == nil {
		t.Error("expected error for missing task")
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := &models.Project{Name: "Trip"}
	if _, err := db.SaveProject(ctx, p); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	if _, err := db.SaveTask(ctx, &models.Task{Title: "Pack", ProjectID: &p.ID}); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}

	got, err := db.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if len(got.Tasks) != 1 {
		t.Fatalf("expected 1 project task, got %d", len(got.Tasks))
	}

	if err := db.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}
	tasks, _ := db.ListTasks(ctx, nil)
	if len(tasks) != 0 {
		t.Errorf("expected tasks to cascade, got %d", len(tasks))
	}
	if err := db.DeleteProject(ctx, p.ID); err == nil {
		t.Error("expected not found error on second delete")
	}
}

func TestListProjectsWithTasks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c := &models.Category{Title: "Work", Color: "#000"}
	if err := db.SaveCategory(ctx, c); err != nil {
		t.Fatalf("SaveCategory failed: %v", err)
	}
	p := &models.Project{Name: "Launch", CategoryID: &c.ID}
	if _, err := db.SaveProject(ctx, p); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	for _, title := range []string{"Write post", "Ship"} {
		if _, err := db.SaveTask(ctx, &models.Task{Title: title, ProjectID: &p.ID}); err != nil {
			t.Fatalf("SaveTask failed: %v", err)
		}
	}

	projects, err := db.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(projects))
	}
	if projects[0].CategoryTitle != "Work" || len(projects[0].Tasks) != 2 {
		t.Errorf("unexpected project: %+v", projects[0])
	}

	counts, err := db.CategoryTaskCounts(ctx)
	if err != nil {
		t.Fatalf("CategoryTaskCounts failed: %v", err)
	}
	if len(counts) != 1 || counts[0].Count != 2 {
		t.Errorf("expected Work with 2 tasks, got %v", counts)
	}
}
