// Package notify delivers visit reminders through whatever channel the host
// system offers. Delivery is strictly best-effort and isolated from the rest
// of the application: a missing notifier binary or denied permission only
// degrades reminders, never data operations.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Reminder is one scheduled nudge about an upcoming visit.
type Reminder struct {
	ContactName string
	ScheduledAt time.Time // when the visit happens
	FireAt      time.Time // when the reminder should be delivered
	Message     string
}

// Scheduler delivers reminders. Pick an implementation once at startup based
// on what the host system supports.
type Scheduler interface {
	Deliver(ctx context.Context, r Reminder) error
}

// PermissionError means the delivery channel exists but refused us.
type PermissionError struct {
	Channel string
	Err     error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("notification channel %s denied: %v", e.Channel, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// NewScheduler returns the best scheduler the host supports: the desktop
// notifier binary when present, otherwise the logging fallback.
func NewScheduler() Scheduler {
	if path, err := exec.LookPath("notify-send"); err == nil {
		return &CommandScheduler{Command: path}
	}
	return &LogScheduler{}
}

// CommandScheduler shells out to a desktop notification binary.
type CommandScheduler struct {
	Command string
}

func (s *CommandScheduler) Deliver(ctx context.Context, r Reminder) error {
	title := "Visit reminder: " + r.ContactName
	cmd := exec.CommandContext(ctx, s.Command, title, r.Message)
	if out, err := cmd.CombinedOutput(); err != nil {
		if strings.Contains(strings.ToLower(string(out)), "permission") {
			return &PermissionError{Channel: s.Command, Err: err}
		}
		return fmt.Errorf("notifier command failed: %w", err)
	}
	return nil
}

// LogScheduler writes reminders to the structured log. The fallback when no
// desktop notifier is available, e.g. headless or server deployments.
type LogScheduler struct{}

func (s *LogScheduler) Deliver(_ context.Context, r Reminder) error {
	slog.Info("visit reminder",
		"contact", r.ContactName,
		"scheduled_at", r.ScheduledAt.Format(time.RFC3339),
		"message", r.Message)
	return nil
}

// ParseOffsets parses a comma-separated reminder offset list such as
// "-30,-10" into minute offsets relative to the visit time. Malformed pieces
// are skipped rather than failing the whole list.
func ParseOffsets(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Plan expands one upcoming visit into its reminders using the configured
// offsets. Offsets are negative minutes before the visit; a positive offset
// would land after the visit and is dropped.
func Plan(contactName string, scheduledAt time.Time, offsets string) []Reminder {
	var out []Reminder
	for _, off := range ParseOffsets(offsets) {
		if off > 0 {
			continue
		}
		fireAt := scheduledAt.Add(time.Duration(off) * time.Minute)
		out = append(out, Reminder{
			ContactName: contactName,
			ScheduledAt: scheduledAt,
			FireAt:      fireAt,
			Message:     fmt.Sprintf("Visit at %s", scheduledAt.Format("15:04")),
		})
	}
	return out
}
