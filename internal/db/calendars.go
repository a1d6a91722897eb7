package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ldi/telepathic/pkg/models"
)

// Event timestamps are stored as UTC RFC3339 so range filters can compare strings.
func eventTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// SaveCalendar creates or renames a local calendar. An empty ID gets a new UUID.
func (db *DB) SaveCalendar(ctx context.Context, c *models.CalendarInfo) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO calendars (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`
	if _, err := db.ExecContext(ctx, query, c.ID, c.Name); err != nil {
		return fmt.Errorf("failed to save calendar: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// ListCalendars returns the local calendars. Selection lives in preferences, not here.
func (db *DB) ListCalendars(ctx context.Context) ([]models.CalendarInfo, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM calendars ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	defer rows.Close()

	var calendars []models.CalendarInfo
	for rows.Next() {
		var c models.CalendarInfo
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan calendar: %w", err)
		}
		calendars = append(calendars, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return calendars, nil
}

// CreateEvent stores an event on a local calendar and assigns it a UUID.
func (db *DB) CreateEvent(ctx context.Context, e *models.CalendarEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if !e.End.After(e.Start) {
		return fmt.Errorf("event end must be after start")
	}
	query := `
		INSERT INTO calendar_events (id, calendar_id, title, description, start_at, end_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query, e.ID, e.CalendarID, e.Title, e.Description, eventTime(e.Start), eventTime(e.End))
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// ListEvents returns events of one calendar overlapping [start, end), ordered by start.
func (db *DB) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.CalendarEvent, error) {
	query := `
		SELECT id, calendar_id, title, description, start_at, end_at
		FROM calendar_events
		WHERE calendar_id = ? AND start_at < ? AND end_at > ?
		ORDER BY start_at ASC
	`
	rows, err := db.QueryContext(ctx, query, calendarID, eventTime(end), eventTime(start))
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.CalendarEvent
	for rows.Next() {
		var e models.CalendarEvent
		var startAt, endAt string
		if err := rows.Scan(&e.ID, &e.CalendarID, &e.Title, &e.Description, &startAt, &endAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if e.Start, err = time.Parse(time.RFC3339, startAt); err != nil {
			return nil, fmt.Errorf("invalid event start %q: %w", startAt, err)
		}
		if e.End, err = time.Parse(time.RFC3339, endAt); err != nil {
			return nil, fmt.Errorf("invalid event end %q: %w", endAt, err)
		}
		e.Start = e.Start.Local()
		e.End = e.End.Local()
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}
