// Package tasks manages to-do items and reminders on top of the durable store.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vthunder/jarvis/internal/storage"
)

// Store is the subset of storage.DB the manager needs
type Store interface {
	AddTask(ctx context.Context, t *storage.Task) error
	GetTask(ctx context.Context, id string) (*storage.Task, error)
	GetTasks(ctx context.Context) ([]storage.Task, error)
	UpdateTask(ctx context.Context, t *storage.Task) error
	AddReminder(ctx context.Context, r *storage.Reminder) error
	GetReminders(ctx context.Context) ([]storage.Reminder, error)
	MarkReminderFired(ctx context.Context, id string, at time.Time) error
}

// Defaults
const (
	DefaultPriority    = "medium"
	DefaultMaxTasks    = 100
	FilterOpen         = "open"
	FilterCompleted    = "completed"
	FilterAll          = "all"
	maxTitleLength     = 200
	maxReminderTextLen = 500
)

// Errors
var (
	ErrTaskLimit     = errors.New("task list is full")
	ErrInvalidFilter = errors.New("invalid task filter")
)

// Manager adds, lists and completes tasks and schedules reminders
type Manager struct {
	store    Store
	maxTasks int
	now      func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithMaxTasks overrides the open-task limit
func WithMaxTasks(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxTasks = n
		}
	}
}

// NewManager creates a task manager
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{store: store, maxTasks: DefaultMaxTasks, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddTask creates an open task. An empty priority becomes "medium".
func (m *Manager) AddTask(ctx context.Context, title string, due *time.Time, priority string) (*storage.Task, error) {
	priority = strings.ToLower(strings.TrimSpace(priority))
	if priority == "" {
		priority = DefaultPriority
	}
	task := &storage.Task{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		Priority:  priority,
		DueDate:   due,
		CreatedAt: m.now(),
	}
	if err := ValidateTask(task); err != nil {
		return nil, err
	}

	open, err := m.ListTasks(ctx, FilterOpen)
	if err != nil {
		return nil, err
	}
	if len(open) >= m.maxTasks {
		return nil, fmt.Errorf("%w (%d open tasks)", ErrTaskLimit, len(open))
	}

	if err := m.store.AddTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks returns tasks matching filter: "" or "open", "completed"/"done",
// "all", or a priority level (open tasks of that priority). Open tasks are
// ordered by due date with undated tasks last.
func (m *Manager) ListTasks(ctx context.Context, filter string) ([]storage.Task, error) {
	all, err := m.store.GetTasks(ctx)
	if err != nil {
		return nil, err
	}

	filter = strings.ToLower(strings.TrimSpace(filter))
	var keep func(storage.Task) bool
	switch {
	case filter == "" || filter == FilterOpen:
		keep = func(t storage.Task) bool { return !t.Completed }
	case filter == FilterCompleted || filter == "done":
		keep = func(t storage.Task) bool { return t.Completed }
	case filter == FilterAll:
		keep = func(storage.Task) bool { return true }
	case IsValidPriority(filter):
		keep = func(t storage.Task) bool { return !t.Completed && t.Priority == filter }
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, filter)
	}

	var out []storage.Task
	for _, t := range all {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return dueBefore(out[i].DueDate, out[j].DueDate)
	})
	return out, nil
}

// UpcomingTasks returns up to limit open tasks, soonest due first
func (m *Manager) UpcomingTasks(ctx context.Context, limit int) ([]storage.Task, error) {
	open, err := m.ListTasks(ctx, FilterOpen)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

func dueBefore(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}

// CompleteTask marks a task done
func (m *Manager) CompleteTask(ctx context.Context, id string) (*storage.Task, error) {
	task, err := m.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Completed {
		return task, nil
	}
	now := m.now()
	task.Completed = true
	task.CompletedAt = &now
	if err := m.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// AddReminder schedules a reminder at the given time
func (m *Manager) AddReminder(ctx context.Context, text string, at time.Time) (*storage.Reminder, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("reminder text is required")
	}
	if len(text) > maxReminderTextLen {
		return nil, fmt.Errorf("reminder text too long (max %d characters)", maxReminderTextLen)
	}
	if at.IsZero() {
		return nil, fmt.Errorf("reminder time is required")
	}
	r := &storage.Reminder{
		ID:          uuid.NewString(),
		Text:        text,
		TriggerTime: at,
		Active:      true,
		CreatedAt:   m.now(),
	}
	if err := m.store.AddReminder(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ActiveReminders returns active reminders that have not yet triggered
func (m *Manager) ActiveReminders(ctx context.Context) ([]storage.Reminder, error) {
	all, err := m.store.GetReminders(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()
	var out []storage.Reminder
	for _, r := range all {
		if r.Active && r.TriggerTime.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

// DueReminders returns active reminders whose trigger time has passed
func (m *Manager) DueReminders(ctx context.Context) ([]storage.Reminder, error) {
	all, err := m.store.GetReminders(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()
	var out []storage.Reminder
	for _, r := range all {
		if r.Active && !r.TriggerTime.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

// MarkFired deactivates a reminder after it has been delivered
func (m *Manager) MarkFired(ctx context.Context, id string) error {
	return m.store.MarkReminderFired(ctx, id, m.now())
}
