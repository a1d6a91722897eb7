package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"

	embedsql "github.com/ldi/telepathic/embed/sql"
	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// pragmas are applied by the driver to every new connection.
var pragmas = []string{
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"busy_timeout(5000)",
}

// DB is the task store. Writes made through its methods fire the change
// hook once they have committed.
type DB struct {
	*sql.DB
	Staging *StagingManager

	path     string
	onChange atomic.Pointer[func(ctx context.Context)]
}

// executor is satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens the SQLite file at path, creating its directory if needed.
// ":memory:" gives a private in-memory store.
func Open(path string) (*DB, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps an in-memory store alive between calls.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}

	return &DB{DB: sqlDB, Staging: NewStagingManager(), path: path}, nil
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Path is the location the store was opened from.
func (db *DB) Path() string {
	return db.path
}

// Init creates any missing tables and views. It is safe to run on every
// start.
func (db *DB) Init(ctx context.Context) error {
	return db.Migrate(ctx, embedsql.Schema)
}

func (db *DB) Migrate(ctx context.Context, schema string) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SetOnChange installs fn as the change hook, replacing any previous one.
// A nil fn removes it.
func (db *DB) SetOnChange(fn func(ctx context.Context)) {
	if fn == nil {
		db.onChange.Store(nil)
		return
	}
	db.onChange.Store(&fn)
}

func (db *DB) triggerChange(ctx context.Context) {
	if fn := db.onChange.Load(); fn != nil {
		(*fn)(ctx)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
