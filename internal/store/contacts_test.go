package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateContact_Defaults(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateContact(ctx, &Contact{Name: "Ama"})
	require.NoError(t, err)

	assert.Equal(t, DefaultBucket, c.Bucket)
	assert.Equal(t, "-30", c.Reminders)
	assert.Equal(t, 0, c.DisplayOrder)
	assert.Empty(t, c.RemoteUUID)
	assert.False(t, c.CreatedAt.IsZero())
	assert.True(t, c.UpdatedAt.Equal(c.CreatedAt))
}

func TestCreateContact_RequiresName(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.CreateContact(context.Background(), &Contact{Name: "   "})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
}

func TestCreateContact_DisplayOrderPerBucket(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateContact(ctx, &Contact{Name: "Ama", Bucket: "Saturday"})
	require.NoError(t, err)
	b, err := s.CreateContact(ctx, &Contact{Name: "Kofi", Bucket: "Saturday"})
	require.NoError(t, err)
	c, err := s.CreateContact(ctx, &Contact{Name: "Yaw", Bucket: "Sunday"})
	require.NoError(t, err)

	assert.Equal(t, 0, a.DisplayOrder)
	assert.Equal(t, 1, b.DisplayOrder)
	assert.Equal(t, 0, c.DisplayOrder, "ordering is per bucket")
}

func TestUpdateContact_PartialPatch(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateContact(ctx, &Contact{Name: "Ama", Phone: "0201"})
	require.NoError(t, err)

	*now = now.Add(time.Minute)
	phone := "0555"
	got, err := s.UpdateContact(ctx, c.ID, ContactPatch{Phone: &phone})
	require.NoError(t, err)

	assert.Equal(t, "0555", got.Phone)
	assert.Equal(t, "Ama", got.Name, "unpatched fields survive")
	assert.True(t, got.UpdatedAt.After(c.UpdatedAt), "every update restamps updated_at")
}

func TestUpdateContact_RejectsBlankName(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateContact(ctx, &Contact{Name: "Ama"})
	require.NoError(t, err)

	blank := " "
	_, err = s.UpdateContact(ctx, c.ID, ContactPatch{Name: &blank})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestDeleteContact_CascadesOccurrences(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateContact(ctx, &Contact{Name: "Ama"})
	require.NoError(t, err)
	_, err = s.CreateOccurrence(ctx, &Occurrence{
		ContactID:   c.ID,
		ScheduledAt: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteContact(ctx, c.ID))

	n, err := s.Count(ctx, Occurrences)
	require.NoError(t, err)
	assert.Zero(t, n, "occurrences go with their contact")
}

func TestFindContactByName(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateContact(ctx, &Contact{Name: "Ama"})
	require.NoError(t, err)

	got, err := s.FindContactByName(ctx, "Ama")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ama", got.Name)

	got, err = s.FindContactByName(ctx, "Nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestImportContact_PreservesTimestamps(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 2, 6, 9, 30, 0, 0, time.UTC)
	c, err := s.ImportContact(ctx, &Contact{
		RemoteUUID: "uuid-1",
		Name:       "Kofi",
		CreatedAt:  created,
		UpdatedAt:  updated,
	})
	require.NoError(t, err)

	assert.True(t, c.CreatedAt.Equal(created))
	assert.True(t, c.UpdatedAt.Equal(updated), "imports never restamp")
}

func TestApplyRemoteContact_KeepsRemoteUpdatedAt(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateContact(ctx, &Contact{Name: "Ama"})
	require.NoError(t, err)

	remoteStamp := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.ApplyRemoteContact(ctx, c.ID, &Contact{
		RemoteUUID: "uuid-1",
		Name:       "Ama A.",
		UpdatedAt:  remoteStamp,
	}))

	got, err := s.GetContact(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ama A.", got.Name)
	assert.True(t, got.UpdatedAt.Equal(remoteStamp))
}

func TestContactsDueBetween(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	c, err := s.CreateContact(ctx, &Contact{Name: "Ama"})
	require.NoError(t, err)
	_, err = s.CreateOccurrence(ctx, &Occurrence{
		ContactID:   c.ID,
		ScheduledAt: now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	due, err := s.ContactsDueBetween(ctx, *now, now.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, c.ID, due[0].ID)

	due, err = s.ContactsDueBetween(ctx, now.Add(48*time.Hour), now.Add(96*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}
