package notify

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yiadomb/return-visit-tracker/internal/store"
)

func TestParseOffsets(t *testing.T) {
	assert.Equal(t, []int{-30}, ParseOffsets("-30"))
	assert.Equal(t, []int{-30, -10}, ParseOffsets("-30,-10"))
	assert.Equal(t, []int{-30, -10}, ParseOffsets(" -30 , -10 "))
	assert.Nil(t, ParseOffsets(""))
	assert.Equal(t, []int{-10}, ParseOffsets("abc,-10"), "malformed pieces are skipped")
}

func TestPlan(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	rems := Plan("Ama", at, "-30,-10")
	require.Len(t, rems, 2)
	assert.Equal(t, at.Add(-30*time.Minute), rems[0].FireAt)
	assert.Equal(t, at.Add(-10*time.Minute), rems[1].FireAt)
	assert.Equal(t, "Ama", rems[0].ContactName)
	assert.Contains(t, rems[0].Message, "10:00")

	assert.Empty(t, Plan("Ama", at, "15"), "offsets after the visit are dropped")
	assert.Empty(t, Plan("Ama", at, ""))
}

type recordingScheduler struct {
	delivered []Reminder
	err       error
}

func (s *recordingScheduler) Deliver(_ context.Context, r Reminder) error {
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, r)
	return nil
}

func newNotifyStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRunner_DeliversDueOnce(t *testing.T) {
	st := newNotifyStore(t)
	ctx := context.Background()

	c, err := st.CreateContact(ctx, &store.Contact{Name: "Ama", Reminders: "-30"})
	require.NoError(t, err)
	visit := time.Now().Add(20 * time.Minute) // inside the -30m window
	_, err = st.CreateOccurrence(ctx, &store.Occurrence{ContactID: c.ID, ScheduledAt: visit})
	require.NoError(t, err)

	sched := &recordingScheduler{}
	r := NewRunner(st, sched, time.Minute)

	require.NoError(t, r.Tick(ctx, time.Now()))
	require.Len(t, sched.delivered, 1)
	assert.Equal(t, "Ama", sched.delivered[0].ContactName)

	// The same reminder never fires twice.
	require.NoError(t, r.Tick(ctx, time.Now()))
	assert.Len(t, sched.delivered, 1)
}

func TestRunner_SkipsNotYetDue(t *testing.T) {
	st := newNotifyStore(t)
	ctx := context.Background()

	c, err := st.CreateContact(ctx, &store.Contact{Name: "Ama", Reminders: "-30"})
	require.NoError(t, err)
	_, err = st.CreateOccurrence(ctx, &store.Occurrence{
		ContactID:   c.ID,
		ScheduledAt: time.Now().Add(5 * time.Hour),
	})
	require.NoError(t, err)

	sched := &recordingScheduler{}
	r := NewRunner(st, sched, time.Minute)

	require.NoError(t, r.Tick(ctx, time.Now()))
	assert.Empty(t, sched.delivered)
}

func TestRunner_SkipsCancelled(t *testing.T) {
	st := newNotifyStore(t)
	ctx := context.Background()

	c, err := st.CreateContact(ctx, &store.Contact{Name: "Ama", Reminders: "-30"})
	require.NoError(t, err)
	o, err := st.CreateOccurrence(ctx, &store.Occurrence{
		ContactID:   c.ID,
		ScheduledAt: time.Now().Add(20 * time.Minute),
	})
	require.NoError(t, err)
	cancelled := store.StatusCancelled
	_, err = st.UpdateOccurrence(ctx, o.ID, store.OccurrencePatch{Status: &cancelled})
	require.NoError(t, err)

	sched := &recordingScheduler{}
	r := NewRunner(st, sched, time.Minute)

	require.NoError(t, r.Tick(ctx, time.Now()))
	assert.Empty(t, sched.delivered)
}

func TestRunner_OccurrenceOffsetsOverrideContact(t *testing.T) {
	st := newNotifyStore(t)
	ctx := context.Background()

	c, err := st.CreateContact(ctx, &store.Contact{Name: "Ama", Reminders: "-300"})
	require.NoError(t, err)
	_, err = st.CreateOccurrence(ctx, &store.Occurrence{
		ContactID:   c.ID,
		ScheduledAt: time.Now().Add(20 * time.Minute),
		Reminders:   "-30",
	})
	require.NoError(t, err)

	sched := &recordingScheduler{}
	r := NewRunner(st, sched, time.Minute)

	require.NoError(t, r.Tick(ctx, time.Now()))
	require.Len(t, sched.delivered, 1, "the occurrence's own offsets apply")
}

func TestPermissionError(t *testing.T) {
	inner := assert.AnError
	err := &PermissionError{Channel: "notify-send", Err: inner}
	assert.Contains(t, err.Error(), "notify-send")
	assert.ErrorIs(t, err, inner)
}

func TestLogScheduler_NeverFails(t *testing.T) {
	s := &LogScheduler{}
	err := s.Deliver(context.Background(), Reminder{ContactName: "Ama"})
	assert.NoError(t, err)
}
