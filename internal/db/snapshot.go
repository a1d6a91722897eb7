package db

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ldi/telepathic/pkg/models"
)

// EnableAutoSnapshot sets up a hook that automatically exports a snapshot
// to the given path after every successful write operation.
func (db *DB) EnableAutoSnapshot(path string) {
	db.SetOnChange(func(ctx context.Context) {
		// Export failures must not fail the write that triggered them.
		_ = db.ExportSnapshot(ctx, path)
	})
}

// ExportSnapshot queries the v_snapshot_jsonl_lines view and writes the results
// to the given path atomically using a temporary file.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	rows, err := db.QueryContext(ctx, `
		SELECT json_line
		FROM v_snapshot_jsonl_lines
		ORDER BY record_order, sort_name, sort_secondary
	`)
	if err != nil {
		return fmt.Errorf("failed to query snapshot lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("failed to scan snapshot line: %w", err)
		}
		if _, err := tempFile.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("failed to write snapshot line: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

type snapshotProject struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type snapshotTask struct {
	Title       string  `json:"title"`
	IsCompleted bool    `json:"is_completed"`
	DueDate     *string `json:"due_date"`
	Priority    int     `json:"priority"`
	ProjectID   *int64  `json:"project_id"`
	AssistType  int     `json:"assist_type"`
	AssistData  string  `json:"assist_data"`
}

// ImportSnapshot reads a JSONL snapshot and merges it into the database.
// Records are matched by name: categories by title, projects by name and
// tasks by project and title. Snapshot project IDs are remapped to local IDs.
func (db *DB) ImportSnapshot(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	projectSnapshotIDToLocalID := make(map[int64]int64)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var base struct {
			RecordType string `json:"record_type"`
		}
		if err := json.Unmarshal(line, &base); err != nil {
			return fmt.Errorf("failed to unmarshal base record: %w", err)
		}

		switch base.RecordType {
		case "category":
			var c struct {
				Title string `json:"title"`
				Color string `json:"color"`
			}
			if err := json.Unmarshal(line, &c); err != nil {
				return fmt.Errorf("failed to unmarshal category: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO categories (title, color) VALUES (?, ?)
				ON CONFLICT(title) DO UPDATE SET color = excluded.color`,
				c.Title, c.Color)
			if err != nil {
				return fmt.Errorf("failed to sync category %s: %w", c.Title, err)
			}

		case "project":
			var p snapshotProject
			if err := json.Unmarshal(line, &p); err != nil {
				return fmt.Errorf("failed to unmarshal project: %w", err)
			}
			localID, err := db.importProject(ctx, tx, p)
			if err != nil {
				return err
			}
			projectSnapshotIDToLocalID[p.ID] = localID

		case "task":
			var t snapshotTask
			if err := json.Unmarshal(line, &t); err != nil {
				return fmt.Errorf("failed to unmarshal task: %w", err)
			}
			var projectID *int64
			if t.ProjectID != nil {
				localID, ok := projectSnapshotIDToLocalID[*t.ProjectID]
				if !ok {
					return fmt.Errorf("project not found for task %s: %d", t.Title, *t.ProjectID)
				}
				projectID = &localID
			}
			if err := importTask(ctx, tx, t, projectID); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot import: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) importProject(ctx context.Context, tx *sql.Tx, p snapshotProject) (int64, error) {
	var categoryID *int64
	if p.Category != "" {
		c, err := db.getCategoryByTitle(ctx, tx, p.Category)
		if err != nil {
			return 0, err
		}
		if c != nil {
			categoryID = &c.ID
		}
	}

	var localID int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM projects WHERE name = ? ORDER BY id LIMIT 1`, p.Name).Scan(&localID)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to look up project %s: %w", p.Name, err)
	}

	project := &models.Project{ID: localID, Name: p.Name, Description: p.Description, CategoryID: categoryID}
	if err := db.saveProject(ctx, tx, project); err != nil {
		return 0, fmt.Errorf("failed to sync project %s: %w", p.Name, err)
	}
	return project.ID, nil
}

func importTask(ctx context.Context, tx *sql.Tx, t snapshotTask, projectID *int64) error {
	var localID int64
	var err error
	if projectID != nil {
		err = tx.QueryRowContext(ctx, `SELECT id FROM tasks WHERE project_id = ? AND title = ? ORDER BY id LIMIT 1`, *projectID, t.Title).Scan(&localID)
	} else {
		err = tx.QueryRowContext(ctx, `SELECT id FROM tasks WHERE project_id IS NULL AND title = ? ORDER BY id LIMIT 1`, t.Title).Scan(&localID)
	}
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to look up task %s: %w", t.Title, err)
	}

	if localID != 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE tasks SET is_completed = ?, due_date = ?, priority = ?, assist_type = ?, assist_data = ?
			WHERE id = ?`,
			boolToInt(t.IsCompleted), t.DueDate, t.Priority, t.AssistType, t.AssistData, localID)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tasks (title, is_completed, due_date, priority, project_id, assist_type, assist_data)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.Title, boolToInt(t.IsCompleted), t.DueDate, t.Priority, projectID, t.AssistType, t.AssistData)
	}
	if err != nil {
		return fmt.Errorf("failed to sync task %s: %w", t.Title, err)
	}
	return nil
}
