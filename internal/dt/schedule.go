package dt

import (
	"fmt"
	"time"
)

// Trigger describes when the scheduled updater runs: a fixed wall-clock time
// each day, or a fixed repeating interval. Exactly one must be set.
type Trigger struct {
	Daily string        // "HH:MM", 24-hour
	Every time.Duration // minute granularity, at most 24h
}

// CronExpr renders the trigger as a five-field cron expression.
func (t Trigger) CronExpr() (string, error) {
	switch {
	case t.Daily != "" && t.Every != 0:
		return "", fmt.Errorf("trigger has both daily time and interval")
	case t.Daily != "":
		parsed, err := time.Parse("15:04", t.Daily)
		if err != nil {
			return "", fmt.Errorf("invalid daily time %q: %w", t.Daily, err)
		}
		return fmt.Sprintf("%d %d * * *", parsed.Minute(), parsed.Hour()), nil
	case t.Every != 0:
		if t.Every < time.Minute || t.Every > 24*time.Hour {
			return "", fmt.Errorf("interval %s out of range (1m..24h)", t.Every)
		}
		if t.Every%time.Hour == 0 {
			hours := int(t.Every / time.Hour)
			if hours == 24 {
				return "0 0 * * *", nil
			}
			return fmt.Sprintf("0 */%d * * *", hours), nil
		}
		if t.Every%time.Minute != 0 || t.Every >= time.Hour {
			return "", fmt.Errorf("interval %s must be whole minutes under an hour, or whole hours", t.Every)
		}
		return fmt.Sprintf("*/%d * * * *", int(t.Every/time.Minute)), nil
	default:
		return "", fmt.Errorf("trigger has neither daily time nor interval")
	}
}

// Task is the OS-level recurring job that invokes the updater unattended.
type Task struct {
	Label   string
	Program string
	Args    []string
	LogPath string // task output is appended here
	Trigger Trigger
}

// Registrar manages the scheduled task. At most one task per label exists at
// any time: Register deregisters any existing task with the label first.
type Registrar interface {
	Register(task Task) error

	// Deregister removes the task with the label. Absence is not an error.
	Deregister(label string) error

	// Registered reports whether a task with the label exists.
	Registered(label string) (bool, error)
}
