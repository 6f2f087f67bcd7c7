package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/honeycal/internal/api"
	"github.com/roach88/honeycal/internal/event"
	"github.com/roach88/honeycal/internal/session"
)

func testSession() session.Static {
	return session.Static{
		Caller: session.Caller{UserID: 1, PartnerID: 2},
		Token:  "secret-token",
	}
}

func TestList_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]api.Event{})
	}))
	defer srv.Close()

	c := New(srv.URL, testSession())
	_, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestList_DecodesDomainEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/events", r.URL.Path)
		json.NewEncoder(w).Encode([]api.Event{
			{ID: "r-1", Title: "dinner", Date: "2024-06-01", StartTime: "19:00", CreatedBy: 2, CreatedByName: "Ben"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, testSession())
	events, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, "r-1", events[0].ID.Remote)
	assert.Zero(t, events[0].ID.Local, "remote events carry no local identity")
	assert.Equal(t, event.StatusSynced, events[0].Status)
	assert.Equal(t, "Ben", events[0].CreatedByName)
}

func TestCreate_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var draft event.Draft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
		assert.Equal(t, "dinner", draft.Title)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(api.Event{ID: "r-9", Title: draft.Title, Date: draft.Date, CreatedBy: 1})
	}))
	defer srv.Close()

	c := New(srv.URL, testSession())
	ev, err := c.Create(context.Background(), event.Draft{Title: "dinner", Date: "2024-06-01"})
	require.NoError(t, err)
	assert.Equal(t, "r-9", ev.ID.Remote)
	assert.Equal(t, event.StatusSynced, ev.Status)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "401 unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUnauthorized)
				assert.True(t, IsAuthFailure(err))
				assert.False(t, IsUnreachable(err))
			},
		},
		{
			name:   "403 forbidden",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrForbidden)
				assert.True(t, IsAuthFailure(err))
			},
		},
		{
			name:   "404 not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name:   "400 validation",
			status: http.StatusBadRequest,
			body:   `{"error":"title is required"}`,
			check: func(t *testing.T, err error) {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Contains(t, ve.Message, "title is required")
			},
		},
		{
			name:   "500 counts as unreachable",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				assert.True(t, IsUnreachable(err))
				assert.False(t, IsAuthFailure(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != "" {
					w.Write([]byte(tt.body))
				}
			}))
			defer srv.Close()

			c := New(srv.URL, testSession())
			_, err := c.List(context.Background())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestDo_ConnectionRefusedIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := New(srv.URL, testSession())
	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnreachable(err))
}

func TestDelete_SecondCallNotFound(t *testing.T) {
	deleted := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/events/r-1", r.URL.Path)
		if deleted {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, testSession())
	require.NoError(t, c.Delete(context.Background(), "r-1"))
	assert.ErrorIs(t, c.Delete(context.Background(), "r-1"), ErrNotFound)
}

func TestSyncBatch_MapsLocalToRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events/sync", r.URL.Path)

		var req api.SyncRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Events, 2)
		assert.Equal(t, int64(10), req.Events[0].LocalID)

		// Accept the first record only.
		json.NewEncoder(w).Encode(api.SyncResponse{Synced: []api.SyncedEvent{
			{LocalID: 10, RemoteID: "r-1"},
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, testSession())
	assigned, err := c.SyncBatch(context.Background(), []event.Event{
		{ID: event.Identity{Local: 10}, Title: "a", Date: "2024-06-01"},
		{ID: event.Identity{Local: 11}, Title: "b", Date: "2024-06-02"},
	})
	require.NoError(t, err)

	assert.Equal(t, map[int64]string{10: "r-1"}, assigned, "omitted records stay out of the mapping")
}
