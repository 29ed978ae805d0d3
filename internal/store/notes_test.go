package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotes_CRUD(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, &Note{Content: "bring brochures"})
	require.NoError(t, err)
	assert.False(t, n.Pinned)

	*now = now.Add(time.Minute)
	pinned := true
	got, err := s.UpdateNote(ctx, n.ID, NotePatch{Pinned: &pinned})
	require.NoError(t, err)
	assert.True(t, got.Pinned)
	assert.Equal(t, "bring brochures", got.Content)
	assert.True(t, got.UpdatedAt.After(n.UpdatedAt))

	require.NoError(t, s.DeleteNote(ctx, n.ID))
	got, err = s.GetNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListNotes_PinnedFirst(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateNote(ctx, &Note{Content: "old"})
	require.NoError(t, err)
	*now = now.Add(time.Minute)
	_, err = s.CreateNote(ctx, &Note{Content: "new"})
	require.NoError(t, err)
	*now = now.Add(time.Minute)
	_, err = s.CreateNote(ctx, &Note{Content: "sticky", Pinned: true})
	require.NoError(t, err)

	notes, err := s.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, "sticky", notes[0].Content)
	assert.Equal(t, "new", notes[1].Content)
	assert.Equal(t, "old", notes[2].Content)
}
