package tasks

import (
	"fmt"
	"strings"

	"github.com/vthunder/jarvis/internal/storage"
)

// PriorityLevels in ascending order of urgency
var PriorityLevels = []string{"low", "medium", "high", "urgent"}

// IsValidPriority reports whether p is a known priority level
func IsValidPriority(p string) bool {
	for _, level := range PriorityLevels {
		if level == p {
			return true
		}
	}
	return false
}

// ValidateTask checks a task before it is stored
func ValidateTask(task *storage.Task) error {
	if task.Title == "" {
		return fmt.Errorf("task title is required")
	}
	if len(task.Title) > maxTitleLength {
		return fmt.Errorf("task title too long (max %d characters)", maxTitleLength)
	}
	if !IsValidPriority(task.Priority) {
		return fmt.Errorf("invalid priority %q (must be one of: %s)", task.Priority, strings.Join(PriorityLevels, ", "))
	}
	if task.Completed && task.CompletedAt == nil {
		return fmt.Errorf("completed task needs completed_at")
	}
	return nil
}
