package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Task is a to-do item
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Reminder is a one-shot notification at TriggerTime
type Reminder struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	TriggerTime time.Time  `json:"trigger_time"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	FiredAt     *time.Time `json:"fired_at,omitempty"`
}

// AddTask inserts a task
func (d *DB) AddTask(ctx context.Context, t *Task) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, priority, due_date, completed, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.Priority, nullableMillis(t.DueDate),
		boolInt(t.Completed), toMillis(t.CreatedAt), nullableMillis(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// UpdateTask rewrites a task by ID
func (d *DB) UpdateTask(ctx context.Context, t *Task) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, priority = ?, due_date = ?, completed = ?, completed_at = ?
		WHERE id = ?`,
		t.Title, t.Description, t.Priority, nullableMillis(t.DueDate),
		boolInt(t.Completed), nullableMillis(t.CompletedAt), t.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

// GetTask returns one task
func (d *DB) GetTask(ctx context.Context, id string) (*Task, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, title, description, priority, due_date, completed, created_at, completed_at
		FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, err
}

// GetTasks returns every task in creation order
func (d *DB) GetTasks(ctx context.Context) ([]Task, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, title, description, priority, due_date, completed, created_at, completed_at
		FROM tasks ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var (
		t           Task
		description sql.NullString
		due         sql.NullInt64
		completed   int
		created     int64
		completedAt sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.Title, &description, &t.Priority, &due, &completed, &created, &completedAt); err != nil {
		return nil, err
	}
	t.Description = description.String
	t.DueDate = timePtr(due)
	t.Completed = completed != 0
	t.CreatedAt = fromMillis(created)
	t.CompletedAt = timePtr(completedAt)
	return &t, nil
}

// AddReminder inserts a reminder
func (d *DB) AddReminder(ctx context.Context, r *Reminder) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO reminders (id, text, trigger_time, active, created_at, fired_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Text, toMillis(r.TriggerTime), boolInt(r.Active), toMillis(r.CreatedAt), nullableMillis(r.FiredAt))
	if err != nil {
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	return nil
}

// GetReminders returns every reminder ordered by trigger time
func (d *DB) GetReminders(ctx context.Context) ([]Reminder, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, text, trigger_time, active, created_at, fired_at
		FROM reminders ORDER BY trigger_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var (
			r       Reminder
			trigger int64
			active  int
			created int64
			fired   sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Text, &trigger, &active, &created, &fired); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		r.TriggerTime = fromMillis(trigger)
		r.Active = active != 0
		r.CreatedAt = fromMillis(created)
		r.FiredAt = timePtr(fired)
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkReminderFired deactivates a reminder
func (d *DB) MarkReminderFired(ctx context.Context, id string, at time.Time) error {
	res, err := d.db.ExecContext(ctx, `UPDATE reminders SET active = 0, fired_at = ? WHERE id = ?`, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reminder %s: %w", id, ErrNotFound)
	}
	return nil
}
