package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ldi/telepathic/pkg/models"
)

const projectColumns = `p.id, p.name, p.description, p.category_id, COALESCE(c.title, '')`

func scanProject(row rowScanner) (*models.Project, error) {
	p := &models.Project{}
	var categoryID sql.NullInt64
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &categoryID, &p.CategoryTitle); err != nil {
		return nil, err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		p.CategoryID = &id
	}
	return p, nil
}

// SaveProject inserts the project when its ID is zero and updates it otherwise.
func (db *DB) SaveProject(ctx context.Context, p *models.Project) (int64, error) {
	if err := db.saveProject(ctx, db.DB, p); err != nil {
		return 0, err
	}

	db.triggerChange(ctx)
	return p.ID, nil
}

func (db *DB) saveProject(ctx context.Context, exec executor, p *models.Project) error {
	if p.ID == 0 {
		res, err := exec.ExecContext(ctx,
			`INSERT INTO projects (name, description, category_id) VALUES (?, ?, ?)`,
			p.Name, p.Description, p.CategoryID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert project: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read project id: %w", err)
		}
		p.ID = id
		return nil
	}

	res, err := exec.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, category_id = ? WHERE id = ?`,
		p.Name, p.Description, p.CategoryID, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("project not found: %d", p.ID)
	}
	return nil
}

// GetProject retrieves a project with its tasks. It returns nil when no project matches.
func (db *DB) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	query := `SELECT ` + projectColumns + `
		FROM projects p
		LEFT JOIN categories c ON p.category_id = c.id
		WHERE p.id = ?
	`
	p, err := scanProject(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	p.Tasks, err = db.ListTasks(ctx, &p.ID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjects returns every project with its tasks.
func (db *DB) ListProjects(ctx context.Context) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + `
		FROM projects p
		LEFT JOIN categories c ON p.category_id = c.id
		ORDER BY p.name ASC, p.id ASC
	`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	var projects []*models.Project
	byID := make(map[int64]*models.Project)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	// A single connection is shared, so tasks are read after the project cursor closes.
	tasks, err := db.ListTasks(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.ProjectID == nil {
			continue
		}
		if p, ok := byID[*t.ProjectID]; ok {
			p.Tasks = append(p.Tasks, t)
		}
	}

	return projects, nil
}

// DeleteProject deletes a project and, by cascade, its tasks.
func (db *DB) DeleteProject(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("project not found: %d", id)
	}

	db.triggerChange(ctx)
	return nil
}

// GetProjectByName returns the first project with the given name, or nil.
func (db *DB) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + `
		FROM projects p
		LEFT JOIN categories c ON p.category_id = c.id
		WHERE p.name = ?
		ORDER BY p.id ASC
		LIMIT 1
	`
	p, err := scanProject(db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project by name: %w", err)
	}
	return p, nil
}
