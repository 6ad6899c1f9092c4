package storage

import (
	"context"
	"fmt"
	"time"
)

// Interaction is one self-learning log record
type Interaction struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Text       string    `json:"text"`
	Normalized string    `json:"normalized"`
	Intent     string    `json:"intent,omitempty"`
	Command    string    `json:"command,omitempty"`
	Response   string    `json:"response,omitempty"`
	Success    bool      `json:"success"`
}

// AddInteraction appends a self-learning record
func (d *DB) AddInteraction(ctx context.Context, in Interaction) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO interactions (id, timestamp, text, normalized, intent, command, response, success)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, toMillis(in.Timestamp), in.Text, in.Normalized, in.Intent, in.Command, in.Response, boolInt(in.Success))
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

// RecentInteractions returns up to limit records, most recent last
func (d *DB) RecentInteractions(ctx context.Context, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, timestamp, text, normalized, COALESCE(intent, ''), COALESCE(command, ''), COALESCE(response, ''), success
		FROM (SELECT * FROM interactions ORDER BY timestamp DESC, rowid DESC LIMIT ?)
		ORDER BY timestamp ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var (
			in      Interaction
			ts      int64
			success int
		)
		if err := rows.Scan(&in.ID, &ts, &in.Text, &in.Normalized, &in.Intent, &in.Command, &in.Response, &success); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		in.Timestamp = fromMillis(ts)
		in.Success = success != 0
		out = append(out, in)
	}
	return out, rows.Err()
}
