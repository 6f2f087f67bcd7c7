package localstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/honeycal/internal/event"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "honeycal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreate_AssignsLocalIDAndPending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ev, err := s.Create(ctx, event.Draft{Title: "dinner", Date: "2024-06-01"}, 42)
	require.NoError(t, err)

	assert.NotZero(t, ev.ID.Local)
	assert.Empty(t, ev.ID.Remote)
	assert.Equal(t, event.StatusPending, ev.Status)
	assert.Equal(t, int64(42), ev.CreatedBy)
}

func TestCreate_RejectsInvalidDraft(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Create(context.Background(), event.Draft{Date: "2024-06-01"}, 1)
	assert.ErrorIs(t, err, event.ErrTitleRequired)
}

func TestMarkSynced_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ev, err := s.Create(ctx, event.Draft{Title: "dinner", Date: "2024-06-01"}, 1)
	require.NoError(t, err)

	require.NoError(t, s.MarkSynced(ctx, ev.ID.Local, "r-77"))

	events, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.StatusSynced, events[0].Status)
	assert.Equal(t, "r-77", events[0].ID.Remote)
	assert.Equal(t, ev.ID.Local, events[0].ID.Local)
}

func TestMarkSynced_MissingRecord(t *testing.T) {
	s := openTestStore(t)
	assert.ErrorIs(t, s.MarkSynced(context.Background(), 999, "r-1"), ErrNotFound)
}

func TestList_CanonicalOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, event.Draft{Title: "later day", Date: "2024-01-02"}, 1)
	require.NoError(t, err)
	_, err = s.Create(ctx, event.Draft{Title: "nine", Date: "2024-01-01", StartTime: "09:00"}, 1)
	require.NoError(t, err)
	_, err = s.Create(ctx, event.Draft{Title: "eight", Date: "2024-01-01", StartTime: "08:00"}, 1)
	require.NoError(t, err)

	events, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "eight", events[0].Title)
	assert.Equal(t, "nine", events[1].Title)
	assert.Equal(t, "later day", events[2].Title)
}

func TestUpdate_MergesFieldsAndRefreshesTimestamp(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	s, err := Open(filepath.Join(t.TempDir(), "honeycal.db"), WithClock(func() time.Time { return current }))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	ev, err := s.Create(ctx, event.Draft{Title: "dinner", Date: "2024-06-01", Location: "home"}, 1)
	require.NoError(t, err)

	current = base.Add(time.Hour)
	title := "supper"
	updated, err := s.Update(ctx, ev.ID.Local, event.Patch{Title: &title})
	require.NoError(t, err)

	assert.Equal(t, "supper", updated.Title)
	assert.Equal(t, "home", updated.Location, "unpatched fields survive")
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	got, err := s.Get(ctx, ev.ID.Local)
	require.NoError(t, err)
	assert.Equal(t, "supper", got.Title)
}

func TestUpdate_MissingRecord(t *testing.T) {
	s := openTestStore(t)
	title := "x"
	_, err := s.Update(context.Background(), 12345, event.Patch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ev, err := s.Create(ctx, event.Draft{Title: "dinner", Date: "2024-06-01"}, 1)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, ev.ID.Local))
	require.NoError(t, s.Delete(ctx, ev.ID.Local), "deleting an absent identifier is not an error")

	events, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestListUnsynced(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, event.Draft{Title: "a", Date: "2024-06-01"}, 1)
	require.NoError(t, err)
	b, err := s.Create(ctx, event.Draft{Title: "b", Date: "2024-06-02"}, 1)
	require.NoError(t, err)

	require.NoError(t, s.MarkSynced(ctx, a.ID.Local, "r-1"))

	pending, err := s.ListUnsynced(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID.Local, pending[0].ID.Local)
	assert.Equal(t, event.StatusPending, pending[0].Status)
}

func TestOpen_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "honeycal.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	ev, err := s1.Create(ctx, event.Draft{Title: "persisted", Date: "2024-06-01"}, 1)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, ev.ID.Local)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Title)
}
