package remote

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// broadcastChannel is the low-frequency "something changed" nudge used when
// row-level change notifications are unavailable to a client.
const broadcastChannel = "rv_broadcast"

func tableChannel(table string) string {
	return "rv_" + table
}

// Listener holds a dedicated backend connection subscribed to the per-table
// change channels plus the broadcast channel, scoped to one user.
type Listener struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Listen subscribes to change notifications for every table. onChange is
// invoked with the table name for row-level notifications and "" for the
// broadcast nudge; notifications for other users are dropped. The listener
// reconnects on connection loss until Stop or context cancellation.
func (r *Store) Listen(ctx context.Context, userID string, onChange func(table string)) (*Listener, error) {
	ctx, cancel := context.WithCancel(ctx)
	l := &Listener{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(l.done)
		for {
			if err := r.listenOnce(ctx, userID, onChange); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("realtime listener disconnected, retrying", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()

	return l, nil
}

func (r *Store) listenOnce(ctx context.Context, userID string, onChange func(table string)) error {
	conn, err := r.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, table := range Tables {
		if _, err := conn.Exec(ctx, "LISTEN "+tableChannel(table)); err != nil {
			return err
		}
	}
	if _, err := conn.Exec(ctx, "LISTEN "+broadcastChannel); err != nil {
		return err
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if n.Payload != userID {
			continue
		}
		if n.Channel == broadcastChannel {
			onChange("")
			continue
		}
		onChange(strings.TrimPrefix(n.Channel, "rv_"))
	}
}

// Stop tears down the subscription. Safe to call more than once.
func (l *Listener) Stop() {
	l.cancel()
	<-l.done
}

// Broadcast emits the best-effort "something changed" nudge so other
// connected clients re-pull.
func (r *Store) Broadcast(ctx context.Context, userID string) error {
	_, err := r.Pool.Exec(ctx, "SELECT pg_notify($1, $2)", broadcastChannel, userID)
	return wrap("notify", broadcastChannel, err)
}
