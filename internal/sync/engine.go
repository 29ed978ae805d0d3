// Package sync reconciles the local store with the remote backend. Push
// uploads local rows after assigning stable remote identifiers; pull merges
// remote rows back using last-write-wins on the server-stamped updated_at;
// a local dedup pass collapses duplicate contacts around both.
package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/yiadomb/return-visit-tracker/internal/remote"
	"github.com/yiadomb/return-visit-tracker/internal/store"
)

// Provider supplies the current authenticated user identity, or "" when no
// identity exists. Sync treats absence as "sync disabled".
type Provider interface {
	UserID(ctx context.Context) string
}

// StaticProvider is a Provider backed by a fixed identity from config.
type StaticProvider string

func (p StaticProvider) UserID(context.Context) string { return string(p) }

// Backend is the remote store surface the engine needs: per-table read-all
// and upsert-many scoped to one user, plus the best-effort change nudge.
// *remote.Store implements it.
type Backend interface {
	ContactRows(ctx context.Context, userID string) ([]remote.ContactRow, error)
	UpsertContacts(ctx context.Context, userID string, rows []remote.ContactRow) ([]remote.Stamp, error)
	OccurrenceRows(ctx context.Context, userID string) ([]remote.OccurrenceRow, error)
	UpsertOccurrences(ctx context.Context, userID string, rows []remote.OccurrenceRow) ([]remote.Stamp, error)
	ReportRows(ctx context.Context, userID string) ([]remote.ReportRow, error)
	UpsertReports(ctx context.Context, userID string, rows []remote.ReportRow) ([]remote.Stamp, error)
	EntryRows(ctx context.Context, userID string) ([]remote.EntryRow, error)
	UpsertEntries(ctx context.Context, userID string, rows []remote.EntryRow) ([]remote.Stamp, error)
	GoalRows(ctx context.Context, userID string) ([]remote.GoalRow, error)
	UpsertGoals(ctx context.Context, userID string, rows []remote.GoalRow) ([]remote.Stamp, error)
	NoteRows(ctx context.Context, userID string) ([]remote.NoteRow, error)
	UpsertNotes(ctx context.Context, userID string, rows []remote.NoteRow) ([]remote.Stamp, error)
	Broadcast(ctx context.Context, userID string) error
}

// Result carries the row counts of one sync cycle.
type Result struct {
	Pushed int
	Pulled int
}

// Event notifies observers that a push or pull phase completed.
type Event struct {
	Phase  string // "push" or "pull"
	Pushed int
	Pulled int
	Err    error
}

// Options tune the engine's realtime triggers.
type Options struct {
	// Debounce coalesces bursts of change notifications into one pull.
	Debounce time.Duration
	// PollInterval re-triggers pull as a safety net when realtime
	// notifications are unavailable. Zero disables polling.
	PollInterval time.Duration
	// Foreground gates the fallback poll; polls are skipped while it
	// returns false. Nil means always foregrounded.
	Foreground func() bool
	// Subscribe attaches to the backend's change notifications and returns
	// an unsubscribe func. Nil disables realtime triggers.
	Subscribe func(ctx context.Context, userID string, onChange func(table string)) (func(), error)
	// ShowProgress renders a per-collection progress bar during push and
	// pull. Meant for one-shot command invocations, not the daemon.
	ShowProgress bool
}

// Engine orchestrates push, pull, conflict resolution and re-sync triggers.
// It owns no entity state of its own; everything flows through the store and
// backend contracts. Construct one at startup and share it by reference.
type Engine struct {
	store   *store.Store
	backend Backend // nil when the remote is not configured
	auth    Provider
	opts    Options

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	lmu       sync.RWMutex
	observers []func(Event)
}

// NewEngine creates a sync engine. backend may be nil, which turns every
// sync operation into a no-op returning zero counts.
func NewEngine(st *store.Store, backend Backend, auth Provider, opts Options) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}
	return &Engine{store: st, backend: backend, auth: auth, opts: opts}
}

// Notify registers an observer for push/pull-complete events.
func (e *Engine) Notify(fn func(Event)) {
	e.lmu.Lock()
	e.observers = append(e.observers, fn)
	e.lmu.Unlock()
}

// progressBar returns a rendered bar when ShowProgress is on, nil otherwise.
func (e *Engine) progressBar(total int, description string) *progressbar.ProgressBar {
	if !e.opts.ShowProgress {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
	)
}

func (e *Engine) emit(ev Event) {
	e.lmu.RLock()
	obs := e.observers
	e.lmu.RUnlock()
	for _, fn := range obs {
		fn(ev)
	}
}

// SyncAll runs push then pull. Each phase's failure is caught and surfaced
// as an event and a warning, never as a hard fault: sync is best-effort by
// design and must not crash the host application.
func (e *Engine) SyncAll(ctx context.Context) Result {
	var res Result
	if e.backend == nil {
		return res
	}

	pushed, err := e.PushAll(ctx)
	if err != nil {
		slog.Warn("push failed", "error", err)
	}
	res.Pushed = pushed
	e.emit(Event{Phase: "push", Pushed: pushed, Err: err})

	pulled, err := e.PullAll(ctx)
	if err != nil {
		slog.Warn("pull failed", "error", err)
	}
	res.Pulled = pulled
	e.emit(Event{Phase: "pull", Pulled: pulled, Err: err})

	return res
}

// Start wires the realtime triggers: change notifications debounced into
// pulls, plus the fallback poll. Calling Start twice is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true

	ctx, e.cancel = context.WithCancel(ctx)

	if e.backend == nil {
		return
	}
	userID := e.auth.UserID(ctx)
	if userID == "" {
		return
	}

	deb := NewDebouncer(e.opts.Debounce)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer deb.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-deb.Signals():
				pulled, err := e.PullAll(ctx)
				if err != nil {
					slog.Warn("realtime pull failed", "error", err)
				}
				e.emit(Event{Phase: "pull", Pulled: pulled, Err: err})
			}
		}
	}()

	if e.opts.Subscribe != nil {
		unsubscribe, err := e.opts.Subscribe(ctx, userID, func(table string) {
			slog.Debug("change notification", "table", table)
			deb.Nudge()
		})
		if err != nil {
			slog.Warn("realtime subscribe failed; relying on polling", "error", err)
		} else {
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				<-ctx.Done()
				unsubscribe()
			}()
		}
	}

	if e.opts.PollInterval > 0 {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			ticker := time.NewTicker(e.opts.PollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if e.opts.Foreground != nil && !e.opts.Foreground() {
						continue
					}
					deb.Nudge()
				}
			}
		}()
	}
}

// Stop tears down all subscriptions and timers. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}
