package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetPreference returns the raw value stored under key
func (d *DB) GetPreference(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	return []byte(value), true, nil
}

// PutPreference upserts a single key
func (d *DB) PutPreference(ctx context.Context, key string, value []byte) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write preference %s: %w", key, err)
	}
	return nil
}
