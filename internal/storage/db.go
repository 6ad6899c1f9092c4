// Package storage is the durable store: one SQLite database with a table per
// collection (conversations, tasks, reminders, preferences, mood logs,
// interactions).
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/vthunder/jarvis/internal/logging"
)

// Supported database/sql driver names
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

// ErrNotFound is returned by single-record lookups
var ErrNotFound = errors.New("not found")

const schemaVersion = 1

// DB wraps the SQLite connection
type DB struct {
	db     *sql.DB
	path   string
	driver string
}

// Open opens or creates the database at path using driver ("sqlite3" or "sqlite")
func Open(driver, path string) (*DB, error) {
	if driver == "" {
		driver = DriverCGO
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	dsn, err := buildDSN(driver, path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{db: db, path: path, driver: driver}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	logging.Debug("storage", "opened %s (%s)", path, driver)
	return d, nil
}

func buildDSN(driver, path string) (string, error) {
	switch driver {
	case DriverCGO:
		return path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", nil
	case DriverPureGo:
		return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file location
func (d *DB) Path() string {
	return d.path
}

func (d *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		text TEXT NOT NULL,
		intent TEXT,
		command TEXT,
		sentiment_label TEXT,
		sentiment_score REAL,
		mood TEXT,
		response TEXT,
		data TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_timestamp ON conversations(timestamp);
	CREATE INDEX IF NOT EXISTS idx_conversations_sentiment ON conversations(sentiment_label);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		priority TEXT NOT NULL DEFAULT 'medium',
		due_date INTEGER,
		completed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		completed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_date);
	CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(completed);

	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		trigger_time INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		fired_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_reminders_trigger ON reminders(trigger_time);
	CREATE INDEX IF NOT EXISTS idx_reminders_active ON reminders(active);

	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mood_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		date TEXT NOT NULL,
		mood TEXT NOT NULL,
		notes TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_mood_logs_timestamp ON mood_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_mood_logs_mood ON mood_logs(mood);

	CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		text TEXT NOT NULL,
		normalized TEXT NOT NULL,
		intent TEXT,
		command TEXT,
		response TEXT,
		success INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_normalized ON interactions(normalized);
	`
	if _, err := d.db.Exec(schema); err != nil {
		return err
	}

	var version int
	err := d.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = d.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, schemaVersion)
		return err
	case err != nil:
		return err
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema v%d is newer than supported v%d", version, schemaVersion)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMilli(n.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
