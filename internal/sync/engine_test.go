package sync

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yiadomb/return-visit-tracker/internal/remote"
	"github.com/yiadomb/return-visit-tracker/internal/store"
)

// fakeBackend is an in-memory Backend with a strictly increasing server
// clock: every upsert stamps rows with a later updated_at, like the real
// backend's NOW() does.
type fakeBackend struct {
	mu    sync.Mutex
	clock time.Time

	contacts    map[string]remote.ContactRow
	occurrences map[string]remote.OccurrenceRow
	reports     map[string]remote.ReportRow
	entries     map[string]remote.EntryRow
	goals       map[string]remote.GoalRow
	notes       map[string]remote.NoteRow

	broadcasts int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		clock:       time.Now().Truncate(time.Millisecond),
		contacts:    make(map[string]remote.ContactRow),
		occurrences: make(map[string]remote.OccurrenceRow),
		reports:     make(map[string]remote.ReportRow),
		entries:     make(map[string]remote.EntryRow),
		goals:       make(map[string]remote.GoalRow),
		notes:       make(map[string]remote.NoteRow),
	}
}

func (f *fakeBackend) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeBackend) ContactRows(context.Context, string) ([]remote.ContactRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.ContactRow, 0, len(f.contacts))
	for _, r := range f.contacts {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBackend) UpsertContacts(_ context.Context, _ string, rows []remote.ContactRow) ([]remote.Stamp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stamps := make([]remote.Stamp, 0, len(rows))
	for _, r := range rows {
		r.UpdatedAt = f.tick()
		f.contacts[r.RemoteUUID] = r
		stamps = append(stamps, remote.Stamp{RemoteUUID: r.RemoteUUID, UpdatedAt: r.UpdatedAt})
	}
	return stamps, nil
}

func (f *fakeBackend) OccurrenceRows(context.Context, string) ([]remote.OccurrenceRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.OccurrenceRow, 0, len(f.occurrences))
	for _, r := range f.occurrences {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBackend) UpsertOccurrences(_ context.Context, _ string, rows []remote.OccurrenceRow) ([]remote.Stamp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stamps := make([]remote.Stamp, 0, len(rows))
	for _, r := range rows {
		r.UpdatedAt = f.tick()
		f.occurrences[r.RemoteUUID] = r
		stamps = append(stamps, remote.Stamp{RemoteUUID: r.RemoteUUID, UpdatedAt: r.UpdatedAt})
	}
	return stamps, nil
}

func (f *fakeBackend) ReportRows(context.Context, string) ([]remote.ReportRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.ReportRow, 0, len(f.reports))
	for _, r := range f.reports {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBackend) UpsertReports(_ context.Context, _ string, rows []remote.ReportRow) ([]remote.Stamp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stamps := make([]remote.Stamp, 0, len(rows))
	for _, r := range rows {
		r.UpdatedAt = f.tick()
		f.reports[r.RemoteUUID] = r
		stamps = append(stamps, remote.Stamp{RemoteUUID: r.RemoteUUID, UpdatedAt: r.UpdatedAt})
	}
	return stamps, nil
}

func (f *fakeBackend) EntryRows(context.Context, string) ([]remote.EntryRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.EntryRow, 0, len(f.entries))
	for _, r := range f.entries {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBackend) UpsertEntries(_ context.Context, _ string, rows []remote.EntryRow) ([]remote.Stamp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stamps := make([]remote.Stamp, 0, len(rows))
	for _, r := range rows {
		r.UpdatedAt = f.tick()
		f.entries[r.RemoteUUID] = r
		stamps = append(stamps, remote.Stamp{RemoteUUID: r.RemoteUUID, UpdatedAt: r.UpdatedAt})
	}
	return stamps, nil
}

func (f *fakeBackend) GoalRows(context.Context, string) ([]remote.GoalRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.GoalRow, 0, len(f.goals))
	for _, r := range f.goals {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBackend) UpsertGoals(_ context.Context, _ string, rows []remote.GoalRow) ([]remote.Stamp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stamps := make([]remote.Stamp, 0, len(rows))
	for _, r := range rows {
		r.UpdatedAt = f.tick()
		f.goals[r.RemoteUUID] = r
		stamps = append(stamps, remote.Stamp{RemoteUUID: r.RemoteUUID, UpdatedAt: r.UpdatedAt})
	}
	return stamps, nil
}

func (f *fakeBackend) NoteRows(context.Context, string) ([]remote.NoteRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remote.NoteRow, 0, len(f.notes))
	for _, r := range f.notes {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeBackend) UpsertNotes(_ context.Context, _ string, rows []remote.NoteRow) ([]remote.Stamp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stamps := make([]remote.Stamp, 0, len(rows))
	for _, r := range rows {
		r.UpdatedAt = f.tick()
		f.notes[r.RemoteUUID] = r
		stamps = append(stamps, remote.Stamp{RemoteUUID: r.RemoteUUID, UpdatedAt: r.UpdatedAt})
	}
	return stamps, nil
}

func (f *fakeBackend) Broadcast(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts++
	return nil
}

func newEngineStore(t *testing.T, name string) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestEngine(st *store.Store, backend Backend) *Engine {
	return NewEngine(st, backend, StaticProvider("user-1"), Options{})
}

func TestSyncAll_NilBackend(t *testing.T) {
	st := newEngineStore(t, "a.db")
	e := NewEngine(st, nil, StaticProvider("user-1"), Options{})

	res := e.SyncAll(context.Background())
	assert.Zero(t, res.Pushed)
	assert.Zero(t, res.Pulled)
}

func TestPushAll_NoIdentity(t *testing.T) {
	st := newEngineStore(t, "a.db")
	e := NewEngine(st, newFakeBackend(), StaticProvider(""), Options{})

	n, err := e.PushAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "no identity means sync is off")
}

func TestPushAll_AssignsIdentifiersAndAdoptsStamps(t *testing.T) {
	st := newEngineStore(t, "a.db")
	fake := newFakeBackend()
	e := newTestEngine(st, fake)
	ctx := context.Background()

	c, err := st.CreateContact(ctx, &store.Contact{Name: "Ama"})
	require.NoError(t, err)
	o, err := st.CreateOccurrence(ctx, &store.Occurrence{
		ContactID:   c.ID,
		ScheduledAt: time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	pushed, err := e.PushAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pushed)

	c2, err := st.GetContact(ctx, c.ID)
	require.NoError(t, err)
	require.NotEmpty(t, c2.RemoteUUID)
	o2, err := st.GetOccurrence(ctx, o.ID)
	require.NoError(t, err)
	require.NotEmpty(t, o2.RemoteUUID)
	assert.Equal(t, c2.RemoteUUID, o2.ContactUUID,
		"the occurrence carries its owner's identifier on the wire")

	// Local timestamps now match the server's authoritative stamps.
	serverContact := fake.contacts[c2.RemoteUUID]
	assert.True(t, c2.UpdatedAt.Equal(serverContact.UpdatedAt))

	assert.Equal(t, 1, fake.broadcasts, "a push nudges other clients once")

	meta, err := st.SyncMeta(ctx)
	require.NoError(t, err)
	assert.NotNil(t, meta.LastSyncedAt)
	assert.Equal(t, "user-1", meta.RemoteSessionID)
}

func TestPullAll_ImportsRemoteRows(t *testing.T) {
	st := newEngineStore(t, "a.db")
	fake := newFakeBackend()
	e := newTestEngine(st, fake)
	ctx := context.Background()

	stamp := time.Now().Truncate(time.Millisecond)
	visit := stamp.Add(48 * time.Hour)
	fake.contacts["c1"] = remote.ContactRow{
		RemoteUUID: "c1", Name: "Ama", Bucket: "Sunday", UpdatedAt: stamp,
	}
	fake.occurrences["o1"] = remote.OccurrenceRow{
		RemoteUUID: "o1", ContactUUID: "c1", ScheduledAt: visit,
		Status: store.StatusPlanned, UpdatedAt: stamp,
	}
	fake.entries["e1"] = remote.EntryRow{
		RemoteUUID: "e1", Year: 2026, Month: 3,
		EntryDate: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Minutes:   45, UpdatedAt: stamp,
	}
	fake.goals["g1"] = remote.GoalRow{
		RemoteUUID: "g1", Year: 2026, Month: 3, TargetMinutes: 600, UpdatedAt: stamp,
	}
	fake.notes["n1"] = remote.NoteRow{
		RemoteUUID: "n1", Content: "bring brochures", Pinned: true, UpdatedAt: stamp,
	}

	pulled, err := e.PullAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, pulled)

	c, err := st.FindContactByRemoteUUID(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Sunday", c.Bucket)

	o, err := st.FindOccurrenceByRemoteUUID(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, c.ID, o.ContactID, "the remote contact reference resolves to the local id")

	// The imported entry feeds the derived monthly aggregates.
	r, err := st.GetReport(ctx, 2026, 3)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, 45, r.TotalMinutes)
}

func TestPullAll_LastWriteWinsIsStrict(t *testing.T) {
	st := newEngineStore(t, "a.db")
	fake := newFakeBackend()
	e := newTestEngine(st, fake)
	ctx := context.Background()

	t1 := time.Now().Truncate(time.Millisecond)
	local, err := st.ImportContact(ctx, &store.Contact{
		RemoteUUID: "c1", Name: "Ama", Phone: "0201", CreatedAt: t1, UpdatedAt: t1,
	})
	require.NoError(t, err)

	// Equal timestamps: local copy is preserved.
	fake.contacts["c1"] = remote.ContactRow{
		RemoteUUID: "c1", Name: "Ama", Phone: "0999", UpdatedAt: t1,
	}
	pulled, err := e.PullAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, pulled)
	got, err := st.GetContact(ctx, local.ID)
	require.NoError(t, err)
	assert.Equal(t, "0201", got.Phone)

	// Strictly newer: remote wins.
	fake.contacts["c1"] = remote.ContactRow{
		RemoteUUID: "c1", Name: "Ama", Phone: "0999", UpdatedAt: t1.Add(time.Second),
	}
	pulled, err = e.PullAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pulled)
	got, err = st.GetContact(ctx, local.ID)
	require.NoError(t, err)
	assert.Equal(t, "0999", got.Phone)
}

func TestPullAll_NameFallbackAdoptsLocalContact(t *testing.T) {
	st := newEngineStore(t, "a.db")
	fake := newFakeBackend()
	e := newTestEngine(st, fake)
	ctx := context.Background()

	// Created offline on this device, never pushed.
	local, err := st.CreateContact(ctx, &store.Contact{Name: "Ama"})
	require.NoError(t, err)

	fake.contacts["c1"] = remote.ContactRow{
		RemoteUUID: "c1", Name: "Ama", Phone: "0999",
		UpdatedAt: time.Now().Add(time.Minute),
	}

	pulled, err := e.PullAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pulled)

	n, err := st.Count(ctx, store.Contacts)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the remote twin adopts the local row instead of spawning one")

	got, err := st.GetContact(ctx, local.ID)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.RemoteUUID)
	assert.Equal(t, "0999", got.Phone)
}

func TestSyncAll_TwoClientsConverge(t *testing.T) {
	fake := newFakeBackend()
	stA := newEngineStore(t, "a.db")
	stB := newEngineStore(t, "b.db")
	engineA := newTestEngine(stA, fake)
	engineB := newTestEngine(stB, fake)
	ctx := context.Background()

	// Device A records a contact and syncs.
	_, err := stA.CreateContact(ctx, &store.Contact{Name: "Ama", Phone: "0201"})
	require.NoError(t, err)
	resA := engineA.SyncAll(ctx)
	assert.Equal(t, 1, resA.Pushed)

	// Device B syncs and receives it.
	resB := engineB.SyncAll(ctx)
	assert.Equal(t, 1, resB.Pulled)

	contactsB, err := stB.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, contactsB, 1)
	assert.Equal(t, "0201", contactsB[0].Phone)

	// Device B edits the contact; after both sync again, A sees the edit.
	phone := "0555"
	_, err = stB.UpdateContact(ctx, contactsB[0].ID, store.ContactPatch{Phone: &phone})
	require.NoError(t, err)
	engineB.SyncAll(ctx)
	engineA.SyncAll(ctx)

	contactsA, err := stA.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, contactsA, 1)
	assert.Equal(t, "0555", contactsA[0].Phone)
	assert.Equal(t, contactsB[0].RemoteUUID, contactsA[0].RemoteUUID)

	nA, err := stA.Count(ctx, store.Contacts)
	require.NoError(t, err)
	nB, err := stB.Count(ctx, store.Contacts)
	require.NoError(t, err)
	assert.Equal(t, nA, nB, "both devices hold the same single contact")
}

func TestEngine_NotifyObservers(t *testing.T) {
	st := newEngineStore(t, "a.db")
	e := newTestEngine(st, newFakeBackend())

	var phases []string
	e.Notify(func(ev Event) { phases = append(phases, ev.Phase) })

	e.SyncAll(context.Background())
	assert.Equal(t, []string{"push", "pull"}, phases)
}

func TestEngine_StartStopIdempotent(t *testing.T) {
	st := newEngineStore(t, "a.db")
	e := NewEngine(st, newFakeBackend(), StaticProvider("user-1"), Options{
		Debounce: 10 * time.Millisecond,
	})
	ctx := context.Background()

	e.Start(ctx)
	e.Start(ctx) // no-op
	e.Stop()
	e.Stop() // no-op
}
