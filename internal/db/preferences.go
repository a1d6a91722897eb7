package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// Preference keys shared by the orchestrator, calendar selection and CLI.
const (
	PrefAPIKey            = "openai_api_key"
	PrefTelepathyEnabled  = "telepathy_enabled"
	PrefAboutMe           = "about_me_text"
	PrefLocationEnabled   = "location_enabled"
	PrefSavedCalendars    = "saved_calendars"
	PrefCalendarConnected = "calendar_connected"
	PrefIsSeeded          = "is_seeded"
)

// GetPreference returns the stored value and whether the key exists.
func (db *DB) GetPreference(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get preference %s: %w", key, err)
	}
	return value, true, nil
}

func (db *DB) SetPreference(ctx context.Context, key, value string) error {
	if err := db.setPreference(ctx, db.DB, key, value); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) setPreference(ctx context.Context, exec executor, key, value string) error {
	query := `
		INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := exec.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set preference %s: %w", key, err)
	}
	return nil
}

func (db *DB) DeletePreference(ctx context.Context, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete preference %s: %w", key, err)
	}

	db.triggerChange(ctx)
	return nil
}

// GetBoolPreference returns def when the key is missing or unparsable.
func (db *DB) GetBoolPreference(ctx context.Context, key string, def bool) (bool, error) {
	value, ok, err := db.GetPreference(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return def, nil
	}
	return b, nil
}

func (db *DB) SetBoolPreference(ctx context.Context, key string, value bool) error {
	return db.SetPreference(ctx, key, strconv.FormatBool(value))
}
