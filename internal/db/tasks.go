package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ldi/telepathic/pkg/models"
)

const taskColumns = `
	t.id, t.title, t.is_completed, t.due_date, t.priority, t.project_id,
	t.assist_type, t.assist_data, COALESCE(p.name, '') AS project_name
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	var completed int
	var due sql.NullString
	var projectID sql.NullInt64
	err := row.Scan(
		&t.ID, &t.Title, &completed, &due, &t.Priority, &projectID,
		&t.AssistType, &t.AssistData, &t.ProjectName,
	)
	if err != nil {
		return nil, err
	}
	t.IsCompleted = completed == 1
	if projectID.Valid {
		id := projectID.Int64
		t.ProjectID = &id
	}
	if due.Valid && due.String != "" {
		parsed, err := parseDate(due.String)
		if err != nil {
			return nil, fmt.Errorf("invalid due date %q: %w", due.String, err)
		}
		t.DueDate = &parsed
	}
	return t, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

// ListTasks returns tasks, optionally restricted to one project.
func (db *DB) ListTasks(ctx context.Context, projectID *int64) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks t
		LEFT JOIN projects p ON t.project_id = p.id
		WHERE 1=1
	`
	args := []any{}
	if projectID != nil {
		query += " AND t.project_id = ?"
		args = append(args, *projectID)
	}
	query += " ORDER BY t.id ASC"

	return db.queryTasks(ctx, db.DB, query, args...)
}

// ListIncompleteTasks returns every task that is not completed.
func (db *DB) ListIncompleteTasks(ctx context.Context) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks t
		LEFT JOIN projects p ON t.project_id = p.id
		WHERE t.is_completed = 0
		ORDER BY t.id ASC
	`
	return db.queryTasks(ctx, db.DB, query)
}

// GetTask retrieves a task by its ID. It returns nil when no task matches.
func (db *DB) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks t
		LEFT JOIN projects p ON t.project_id = p.id
		WHERE t.id = ?
	`
	t, err := scanTask(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

func (db *DB) queryTasks(ctx context.Context, exec executor, query string, args ...any) ([]*models.Task, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return tasks, nil
}

// SaveTask inserts the task when its ID is zero and updates it otherwise.
// It returns the task's ID.
func (db *DB) SaveTask(ctx context.Context, t *models.Task) (int64, error) {
	if err := db.saveTask(ctx, db.DB, t); err != nil {
		return 0, err
	}

	db.triggerChange(ctx)
	return t.ID, nil
}

func (db *DB) saveTask(ctx context.Context, exec executor, t *models.Task) error {
	if t.Priority < 0 || t.Priority > 5 {
		return fmt.Errorf("priority must be between 1 and 5 (or 0 for unset), got %d", t.Priority)
	}

	if t.ID == 0 {
		query := `
			INSERT INTO tasks (title, is_completed, due_date, priority, project_id, assist_type, assist_data)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		res, err := exec.ExecContext(ctx, query,
			t.Title, boolToInt(t.IsCompleted), formatDate(t.DueDate), t.Priority, t.ProjectID,
			int(t.AssistType), t.AssistData,
		)
		if err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read task id: %w", err)
		}
		t.ID = id
		return nil
	}

	query := `
		UPDATE tasks
		SET title = ?, is_completed = ?, due_date = ?, priority = ?, project_id = ?, assist_type = ?, assist_data = ?
		WHERE id = ?
	`
	res, err := exec.ExecContext(ctx, query,
		t.Title, boolToInt(t.IsCompleted), formatDate(t.DueDate), t.Priority, t.ProjectID,
		int(t.AssistType), t.AssistData, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task not found: %d", t.ID)
	}
	return nil
}

// SetTaskCompleted flips the completion flag of a single task.
func (db *DB) SetTaskCompleted(ctx context.Context, id int64, completed bool) error {
	res, err := db.ExecContext(ctx, `UPDATE tasks SET is_completed = ? WHERE id = ?`, boolToInt(completed), id)
	if err != nil {
		return fmt.Errorf("failed to update task completion: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task not found: %d", id)
	}

	db.triggerChange(ctx)
	return nil
}

// DeleteTask deletes a task by its ID and returns the number of rows removed.
func (db *DB) DeleteTask(ctx context.Context, id int64) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		db.triggerChange(ctx)
	}
	return rows, nil
}

// DeleteCompletedTasks removes every completed task and returns how many were removed.
func (db *DB) DeleteCompletedTasks(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE is_completed = 1`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete completed tasks: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		db.triggerChange(ctx)
	}
	return rows, nil
}
