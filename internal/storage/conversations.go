package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vthunder/jarvis/internal/types"
)

// AddConversation appends a turn. Conversations are append-only.
func (d *DB) AddConversation(ctx context.Context, turn types.ConversationTurn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO conversations (timestamp, text, intent, command, sentiment_label, sentiment_score, mood, response, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toMillis(turn.Timestamp), turn.Utterance.Text, turn.Classification.Intent, turn.Classification.Command,
		string(turn.Sentiment.Label), turn.Sentiment.Score, string(turn.Mood), turn.Response, string(data))
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

// RecentConversations returns up to limit turns, most recent last
func (d *DB) RecentConversations(ctx context.Context, limit int) ([]types.ConversationTurn, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT data FROM (
			SELECT id, timestamp, data FROM conversations ORDER BY timestamp DESC, id DESC LIMIT ?
		) ORDER BY timestamp ASC, id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var turns []types.ConversationTurn
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		var turn types.ConversationTurn
		if err := json.Unmarshal([]byte(data), &turn); err != nil {
			return nil, fmt.Errorf("failed to decode conversation: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// CountConversations returns the number of stored turns
func (d *DB) CountConversations(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n)
	return n, err
}
