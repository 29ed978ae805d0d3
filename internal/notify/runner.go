package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yiadomb/return-visit-tracker/internal/store"
)

const lookahead = 24 * time.Hour

// Runner periodically scans upcoming visit occurrences and fires their due
// reminders through a Scheduler. Each reminder fires at most once per
// process lifetime; restarts may re-fire reminders still in their window,
// which beats silently missing them.
type Runner struct {
	store     *store.Store
	sched     Scheduler
	interval  time.Duration
	delivered map[string]bool
}

// NewRunner creates a reminder runner. interval controls how often the
// schedule is rescanned; zero means once a minute.
func NewRunner(st *store.Store, sched Scheduler, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Runner{
		store:     st,
		sched:     sched,
		interval:  interval,
		delivered: make(map[string]bool),
	}
}

// Run blocks, delivering due reminders until the context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Tick(ctx, time.Now()); err != nil {
				slog.Warn("reminder scan failed", "error", err)
			}
		}
	}
}

// Tick delivers every reminder due at or before now that has not fired yet.
func (r *Runner) Tick(ctx context.Context, now time.Time) error {
	occs, err := r.store.OccurrencesBetween(ctx, now, now.Add(lookahead))
	if err != nil {
		return err
	}

	for _, o := range occs {
		if o.Status == store.StatusCancelled {
			continue
		}
		name, offsets, err := r.resolve(ctx, o)
		if err != nil {
			return err
		}

		for _, rem := range Plan(name, o.ScheduledAt, offsets) {
			if rem.FireAt.After(now) {
				continue
			}
			key := fmt.Sprintf("%d@%s", o.ID, rem.FireAt.Format(time.RFC3339))
			if r.delivered[key] {
				continue
			}
			if err := r.sched.Deliver(ctx, rem); err != nil {
				// Permission problems are permanent for this process; log
				// once at a higher level and keep the key unmarked so a
				// replaced scheduler could still fire it.
				slog.Warn("reminder delivery failed", "contact", name, "error", err)
				continue
			}
			r.delivered[key] = true
		}
	}
	return nil
}

// resolve finds the display name and effective reminder offsets for an
// occurrence, falling back to the owning contact's defaults.
func (r *Runner) resolve(ctx context.Context, o *store.Occurrence) (string, string, error) {
	name := "visit"
	offsets := o.Reminders

	if o.ContactID != 0 {
		c, err := r.store.GetContact(ctx, o.ContactID)
		if err != nil {
			return "", "", err
		}
		if c != nil {
			name = c.Name
			if offsets == "" {
				offsets = c.Reminders
			}
		}
	}
	return name, offsets, nil
}
