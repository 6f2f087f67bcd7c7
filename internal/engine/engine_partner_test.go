package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/honeycal/internal/event"
	"github.com/roach88/honeycal/internal/session"
	"github.com/roach88/honeycal/internal/testutil"
)

// newPartnerPair builds two engines with independent local stores sharing
// one authoritative remote, the two-device household setup.
func newPartnerPair(t *testing.T) (*Engine, *Engine, *testutil.FakeRemote) {
	t.Helper()
	fake := testutil.NewFakeRemote()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	alice := New(openStore(t), fake, session.Caller{UserID: 1, PartnerID: 2}, WithLogger(quiet))
	ben := New(openStore(t), fake, session.Caller{UserID: 2, PartnerID: 1}, WithLogger(quiet))
	return alice, ben, fake
}

func viewTitles(e *Engine) []string {
	snap := e.View().Snapshot()
	titles := make([]string, 0, len(snap.Events))
	for _, ev := range snap.Events {
		titles = append(titles, ev.Title)
	}
	return titles
}

func TestPartners_ConvergeAfterLoad(t *testing.T) {
	alice, ben, _ := newPartnerPair(t)
	ctx := context.Background()

	_, err := alice.CreateEvent(ctx, event.Draft{Title: "dinner", Date: "2024-06-01", StartTime: "19:00"})
	require.NoError(t, err)
	_, err = ben.CreateEvent(ctx, event.Draft{Title: "dentist", Date: "2024-06-02"})
	require.NoError(t, err)

	require.NoError(t, alice.LoadEvents(ctx))
	require.NoError(t, ben.LoadEvents(ctx))

	want := []string{"dinner", "dentist"}
	assert.Equal(t, want, viewTitles(alice))
	assert.Equal(t, want, viewTitles(ben), "both partners see the same ordered calendar")
}

func TestPartners_OfflineEditArrivesAfterSync(t *testing.T) {
	alice, ben, fake := newPartnerPair(t)
	ctx := context.Background()

	fake.Offline = true
	_, err := alice.CreateEvent(ctx, event.Draft{Title: "movie night", Date: "2024-06-05"})
	require.NoError(t, err)

	// Ben can't see it yet: it only exists on Alice's device.
	fake.Offline = false
	require.NoError(t, ben.LoadEvents(ctx))
	assert.Empty(t, viewTitles(ben))

	require.NoError(t, alice.SyncEvents(ctx))
	require.NoError(t, ben.LoadEvents(ctx))
	assert.Equal(t, []string{"movie night"}, viewTitles(ben))
}

func TestPartners_EditPropagatesRemoteWins(t *testing.T) {
	alice, ben, _ := newPartnerPair(t)
	ctx := context.Background()

	confirmed, err := alice.CreateEvent(ctx, event.Draft{Title: "dinner", Date: "2024-06-01"})
	require.NoError(t, err)
	require.NoError(t, ben.LoadEvents(ctx))

	title := "dinner moved"
	_, err = alice.UpdateEvent(ctx, confirmed.ID.Local, event.Patch{Title: &title})
	require.NoError(t, err)

	require.NoError(t, ben.LoadEvents(ctx))
	assert.Equal(t, []string{"dinner moved"}, viewTitles(ben))
}

func TestPartners_DeletePropagates(t *testing.T) {
	alice, ben, _ := newPartnerPair(t)
	ctx := context.Background()

	confirmed, err := alice.CreateEvent(ctx, event.Draft{Title: "dinner", Date: "2024-06-01"})
	require.NoError(t, err)
	require.NoError(t, ben.LoadEvents(ctx))
	require.Len(t, ben.View().Snapshot().Events, 1)

	require.NoError(t, alice.DeleteEvent(ctx, confirmed.ID.Local))

	require.NoError(t, ben.LoadEvents(ctx))
	assert.Empty(t, ben.View().Snapshot().Events)
}
