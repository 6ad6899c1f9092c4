package storage

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// MoodLog records the mood of one exchange
type MoodLog struct {
	Timestamp time.Time `json:"timestamp"`
	Date      string    `json:"date"` // YYYY-MM-DD, UTC
	Mood      string    `json:"mood"`
	Notes     string    `json:"notes,omitempty"`
}

// MoodCount is the number of logs per mood within a trend window
type MoodCount struct {
	Mood  string `json:"mood"`
	Count int    `json:"count"`
}

// LogMood appends a mood log. Date is derived from Timestamp when empty.
func (d *DB) LogMood(ctx context.Context, m MoodLog) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	if m.Date == "" {
		m.Date = m.Timestamp.UTC().Format("2006-01-02")
	}
	_, err := d.db.ExecContext(ctx, `INSERT INTO mood_logs (timestamp, date, mood, notes) VALUES (?, ?, ?, ?)`,
		toMillis(m.Timestamp), m.Date, m.Mood, m.Notes)
	if err != nil {
		return fmt.Errorf("failed to insert mood log: %w", err)
	}
	return nil
}

// MoodTrends returns logs newer than now-days, oldest first (days defaults to 7)
func (d *DB) MoodTrends(ctx context.Context, now time.Time, days int) ([]MoodLog, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	rows, err := d.db.QueryContext(ctx, `
		SELECT timestamp, date, mood, COALESCE(notes, '') FROM mood_logs
		WHERE timestamp > ? ORDER BY timestamp ASC, id ASC`, toMillis(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to query mood logs: %w", err)
	}
	defer rows.Close()

	var out []MoodLog
	for rows.Next() {
		var (
			m  MoodLog
			ts int64
		)
		if err := rows.Scan(&ts, &m.Date, &m.Mood, &m.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan mood log: %w", err)
		}
		m.Timestamp = fromMillis(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

// SummarizeMoods counts logs per mood, most frequent first
func SummarizeMoods(logs []MoodLog) []MoodCount {
	counts := make(map[string]int)
	for _, l := range logs {
		counts[l.Mood]++
	}
	out := make([]MoodCount, 0, len(counts))
	for mood, n := range counts {
		out = append(out, MoodCount{Mood: mood, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Mood < out[j].Mood
	})
	return out
}
