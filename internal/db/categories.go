package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ldi/telepathic/pkg/models"
)

func (db *DB) SaveCategory(ctx context.Context, c *models.Category) error {
	if err := db.saveCategory(ctx, db.DB, c); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) saveCategory(ctx context.Context, exec executor, c *models.Category) error {
	if c.ID == 0 {
		res, err := exec.ExecContext(ctx, `INSERT INTO categories (title, color) VALUES (?, ?)`, c.Title, c.Color)
		if err != nil {
			return fmt.Errorf("failed to insert category: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read category id: %w", err)
		}
		c.ID = id
		return nil
	}

	res, err := exec.ExecContext(ctx, `UPDATE categories SET title = ?, color = ? WHERE id = ?`, c.Title, c.Color, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("category not found: %d", c.ID)
	}
	return nil
}

func (db *DB) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, title, color FROM categories ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		c := &models.Category{}
		if err := rows.Scan(&c.ID, &c.Title, &c.Color); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}

func (db *DB) getCategoryByTitle(ctx context.Context, exec executor, title string) (*models.Category, error) {
	c := &models.Category{}
	err := exec.QueryRowContext(ctx, `SELECT id, title, color FROM categories WHERE title = ?`, title).
		Scan(&c.ID, &c.Title, &c.Color)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category by title: %w", err)
	}
	return c, nil
}

// CategoryTaskCounts returns, per category, the number of tasks across its projects.
func (db *DB) CategoryTaskCounts(ctx context.Context) ([]models.CategoryCount, error) {
	query := `
		SELECT c.title, c.color, COUNT(t.id)
		FROM categories c
		LEFT JOIN projects p ON p.category_id = c.id
		LEFT JOIN tasks t ON t.project_id = p.id
		GROUP BY c.id
		ORDER BY c.id ASC
	`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by category: %w", err)
	}
	defer rows.Close()

	var counts []models.CategoryCount
	for rows.Next() {
		var c models.CategoryCount
		if err := rows.Scan(&c.Title, &c.Color, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return counts, nil
}
