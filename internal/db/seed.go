package db

import (
	"context"
	"fmt"

	"github.com/ldi/telepathic/pkg/models"
)

var defaultCategories = []models.Category{
	{Title: "Work", Color: "#3068DF"},
	{Title: "Personal", Color: "#C13AA3"},
	{Title: "Errands", Color: "#2BB673"},
}

// SeedDefaults loads first-run categories and a starter project. It runs once
// per database, guarded by the is_seeded preference, and reports whether it seeded.
func (db *DB) SeedDefaults(ctx context.Context) (bool, error) {
	seeded, err := db.GetBoolPreference(ctx, PrefIsSeeded, false)
	if err != nil {
		return false, err
	}
	if seeded {
		return false, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var personalID int64
	for _, c := range defaultCategories {
		existing, err := db.getCategoryByTitle(ctx, tx, c.Title)
		if err != nil {
			return false, err
		}
		if existing == nil {
			cat := c
			if err := db.saveCategory(ctx, tx, &cat); err != nil {
				return false, fmt.Errorf("failed to seed category %s: %w", c.Title, err)
			}
			existing = &cat
		}
		if existing.Title == "Personal" {
			personalID = existing.ID
		}
	}

	p := &models.Project{
		Name:        "Getting Started",
		Description: "A few things to try",
		CategoryID:  &personalID,
	}
	if err := db.saveProject(ctx, tx, p); err != nil {
		return false, fmt.Errorf("failed to seed project: %w", err)
	}

	starter := []*models.Task{
		{Title: "Record a voice memo of what is on your mind", ProjectID: &p.ID},
		{Title: "Connect a calendar", ProjectID: &p.ID},
		{Title: "Buy milk", ProjectID: &p.ID, AssistType: models.AssistMaps, AssistData: "grocery store"},
	}
	for _, t := range starter {
		if err := db.saveTask(ctx, tx, t); err != nil {
			return false, fmt.Errorf("failed to seed task %s: %w", t.Title, err)
		}
	}

	if err := db.setPreference(ctx, tx, PrefIsSeeded, "true"); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit seed: %w", err)
	}

	db.triggerChange(ctx)
	return true, nil
}
