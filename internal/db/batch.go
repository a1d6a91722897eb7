package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/ldi/telepathic/pkg/models"
)

// SaveExtraction stores extracted projects and tasks in one transaction.
// Projects without a name are called "Project N" by their position.
func (db *DB) SaveExtraction(ctx context.Context, result *models.ExtractionResult) ([]*models.Task, error) {
	if result == nil || result.IsEmpty() {
		return nil, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var created []*models.Task

	for i, ep := range result.Projects {
		name := strings.TrimSpace(ep.Name)
		if name == "" {
			name = fmt.Sprintf("Project %d", i+1)
		}
		p := &models.Project{Name: name, Description: ep.Description}
		if err := db.saveProject(ctx, tx, p); err != nil {
			return nil, fmt.Errorf("failed to save extracted project %s: %w", name, err)
		}

		for _, et := range ep.Tasks {
			t := extractedToTask(et, &p.ID)
			if t == nil {
				continue
			}
			if err := db.saveTask(ctx, tx, t); err != nil {
				return nil, fmt.Errorf("failed to save extracted task %s: %w", t.Title, err)
			}
			t.ProjectName = p.Name
			created = append(created, t)
		}
	}

	for _, et := range result.StandaloneTasks {
		t := extractedToTask(et, nil)
		if t == nil {
			continue
		}
		if err := db.saveTask(ctx, tx, t); err != nil {
			return nil, fmt.Errorf("failed to save extracted task %s: %w", t.Title, err)
		}
		created = append(created, t)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx)
	return created, nil
}

// extractedToTask returns nil for entries without a title.
func extractedToTask(et models.ExtractedTask, projectID *int64) *models.Task {
	title := strings.TrimSpace(et.Title)
	if title == "" {
		return nil
	}
	t := &models.Task{Title: title, ProjectID: projectID}
	if due := strings.TrimSpace(et.DueDate); due != "" {
		// Unparsable dates are dropped rather than failing the batch.
		if parsed, err := parseDate(due); err == nil {
			t.DueDate = &parsed
		}
	}
	return t
}
