package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOccurrence_Validation(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateOccurrence(ctx, &Occurrence{ScheduledAt: *now})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "contact", verr.Field)

	c, err := s.CreateContact(ctx, &Contact{Name: "Ama"})
	require.NoError(t, err)
	_, err = s.CreateOccurrence(ctx, &Occurrence{ContactID: c.ID})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "scheduled_at", verr.Field)
}

func TestNextVisit_EarliestFutureNonCancelled(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateContact(ctx, &Contact{Name: "Ama"})
	require.NoError(t, err)
	assert.Nil(t, c.NextVisitAt)

	far := now.Add(72 * time.Hour)
	nearer := now.Add(24 * time.Hour)

	_, err = s.CreateOccurrence(ctx, &Occurrence{ContactID: c.ID, ScheduledAt: far})
	require.NoError(t, err)
	got, err := s.GetContact(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextVisitAt)
	assert.True(t, got.NextVisitAt.Equal(far))

	// A nearer future occurrence wins.
	o2, err := s.CreateOccurrence(ctx, &Occurrence{ContactID: c.ID, ScheduledAt: nearer})
	require.NoError(t, err)
	got, err = s.GetContact(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.NextVisitAt.Equal(nearer))

	// Cancelling it falls back to the later one.
	cancelled := StatusCancelled
	_, err = s.UpdateOccurrence(ctx, o2.ID, OccurrencePatch{Status: &cancelled})
	require.NoError(t, err)
	got, err = s.GetContact(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextVisitAt)
	assert.True(t, got.NextVisitAt.Equal(far))
}

func TestNextVisit_IgnoresPast(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateContact(ctx, &Contact{Name: "Ama"})
	require.NoError(t, err)

	_, err = s.CreateOccurrence(ctx, &Occurrence{ContactID: c.ID, ScheduledAt: now.Add(-24 * time.Hour)})
	require.NoError(t, err)

	got, err := s.GetContact(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.NextVisitAt, "past occurrences never surface as the next visit")
}

func TestNextVisit_ClearedOnDelete(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateContact(ctx, &Contact{Name: "Ama"})
	require.NoError(t, err)
	o, err := s.CreateOccurrence(ctx, &Occurrence{ContactID: c.ID, ScheduledAt: now.Add(24 * time.Hour)})
	require.NoError(t, err)

	require.NoError(t, s.DeleteOccurrence(ctx, o.ID))

	got, err := s.GetContact(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.NextVisitAt)
}

func TestNextVisit_UnchangedDerivationKeepsUpdatedAt(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateContact(ctx, &Contact{Name: "Ama"})
	require.NoError(t, err)
	_, err = s.CreateOccurrence(ctx, &Occurrence{ContactID: c.ID, ScheduledAt: now.Add(24 * time.Hour)})
	require.NoError(t, err)

	before, err := s.GetContact(ctx, c.ID)
	require.NoError(t, err)

	// A later occurrence does not change the earliest; the contact must not
	// be restamped for a no-op derivation.
	*now = now.Add(time.Minute)
	_, err = s.CreateOccurrence(ctx, &Occurrence{ContactID: c.ID, ScheduledAt: now.Add(72 * time.Hour)})
	require.NoError(t, err)

	after, err := s.GetContact(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.Equal(before.UpdatedAt))
}

func TestSetOccurrenceContact(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateContact(ctx, &Contact{Name: "Ama", RemoteUUID: "c-uuid"})
	require.NoError(t, err)
	o, err := s.ImportOccurrence(ctx, &Occurrence{
		RemoteUUID:  "o-uuid",
		ContactUUID: "c-uuid",
		ScheduledAt: now.Add(24 * time.Hour),
		Status:      StatusPlanned,
		CreatedAt:   *now,
		UpdatedAt:   *now,
	})
	require.NoError(t, err)
	assert.Zero(t, o.ContactID)

	require.NoError(t, s.SetOccurrenceContact(ctx, o.ID, c.ID, "c-uuid"))

	got, err := s.GetOccurrence(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ContactID)
	assert.True(t, got.UpdatedAt.Equal(o.UpdatedAt), "ownership resolution is not an edit")

	// Resolution also feeds the derived next visit.
	cc, err := s.GetContact(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, cc.NextVisitAt)
}

func TestOccurrencesBetween(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateContact(ctx, &Contact{Name: "Ama"})
	require.NoError(t, err)
	_, err = s.CreateOccurrence(ctx, &Occurrence{ContactID: c.ID, ScheduledAt: now.Add(1 * time.Hour)})
	require.NoError(t, err)
	_, err = s.CreateOccurrence(ctx, &Occurrence{ContactID: c.ID, ScheduledAt: now.Add(50 * time.Hour)})
	require.NoError(t, err)

	got, err := s.OccurrencesBetween(ctx, *now, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
