package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vthunder/jarvis/internal/logging"
	"github.com/vthunder/jarvis/internal/storage"
)

// Notifier delivers a due reminder (speech, Discord, terminal...)
type Notifier func(ctx context.Context, r storage.Reminder) error

// Scheduler periodically fires due reminders
type Scheduler struct {
	manager  *Manager
	notify   Notifier
	interval time.Duration
	timeout  time.Duration
	cron     *cron.Cron
}

// NewScheduler creates a scheduler that checks every interval (default 1m)
func NewScheduler(manager *Manager, interval time.Duration, notify Notifier) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	logger := cronLogger{}
	return &Scheduler{
		manager:  manager,
		notify:   notify,
		interval: interval,
		timeout:  30 * time.Second,
		cron: cron.New(cron.WithLogger(logger), cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
	}
}

// Start begins the periodic check
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.tick); err != nil {
		return fmt.Errorf("failed to schedule reminder check: %w", err)
	}
	s.cron.Start()
	logging.Info("reminders", "checking every %s", s.interval)
	return nil
}

// Stop halts the scheduler and waits for a running check to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.CheckDue(ctx); err != nil {
		logging.Error("reminders", err, "reminder check failed")
	}
}

// CheckDue delivers every due reminder and returns how many fired. A reminder
// whose delivery fails stays active and is retried on the next check.
func (s *Scheduler) CheckDue(ctx context.Context) (int, error) {
	due, err := s.manager.DueReminders(ctx)
	if err != nil {
		return 0, err
	}
	fired := 0
	for _, r := range due {
		if s.notify != nil {
			if err := s.notify(ctx, r); err != nil {
				logging.Warn("reminders", "delivery failed for %s: %v", r.ID, err)
				continue
			}
		}
		if err := s.manager.MarkFired(ctx, r.ID); err != nil {
			return fired, err
		}
		fired++
		logging.Info("reminders", "fired: %s", logging.Truncate(r.Text, 50))
	}
	return fired, nil
}

// cronLogger routes cron's logging through the shared logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debug("cron", "%s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.Error("cron", err, "%s %v", msg, keysAndValues)
}
