package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/honeycal/internal/api"
	"github.com/roach88/honeycal/internal/event"
)

// memRepo is an in-memory Repo for handler tests.
type memRepo struct {
	mu     sync.Mutex
	users  map[string]User // keyed by token
	events map[string]api.Event
	nextID int
}

func newMemRepo() *memRepo {
	return &memRepo{
		users: map[string]User{
			"token-alice": {ID: 1, Name: "Alice", PartnerID: 2},
			"token-ben":   {ID: 2, Name: "Ben", PartnerID: 1},
			"token-carol": {ID: 3, Name: "Carol"},
		},
		events: map[string]api.Event{},
	}
}

func (m *memRepo) UserByToken(_ context.Context, token string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[token]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memRepo) ListFor(_ context.Context, u User) ([]api.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []api.Event{}
	for _, ev := range m.events {
		if ev.CreatedBy == u.ID || (u.PartnerID != 0 && ev.CreatedBy == u.PartnerID) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memRepo) Create(_ context.Context, u User, draft event.Draft) (api.Event, error) {
	if err := draft.Validate(); err != nil {
		return api.Event{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := time.Now().UTC()
	ev := api.Event{
		ID:            fmt.Sprintf("e-%d", m.nextID),
		Title:         draft.Title,
		Description:   draft.Description,
		Date:          draft.Date,
		StartTime:     draft.StartTime,
		EndTime:       draft.EndTime,
		Location:      draft.Location,
		CreatedBy:     u.ID,
		CreatedByName: u.Name,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.events[ev.ID] = ev
	return ev, nil
}

func (m *memRepo) Update(_ context.Context, u User, id string, patch event.Patch) (api.Event, error) {
	if err := patch.Validate(); err != nil {
		return api.Event{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return api.Event{}, ErrNotFound
	}
	if ev.CreatedBy != u.ID {
		return api.Event{}, ErrForbidden
	}
	updated := api.FromDomain(patch.Apply(ev.Domain()))
	updated.ID = id
	updated.CreatedByName = ev.CreatedByName
	updated.UpdatedAt = time.Now().UTC()
	m.events[id] = updated
	return updated, nil
}

func (m *memRepo) Delete(_ context.Context, u User, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return ErrNotFound
	}
	if ev.CreatedBy != u.ID {
		return ErrForbidden
	}
	delete(m.events, id)
	return nil
}

func newTestServer(t *testing.T) (*Server, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(repo, quiet), repo
}

func doRequest(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth_NoAuthRequired(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticate_RejectsMissingAndInvalidTokens(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/events", "no-such-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, decodeBody[api.ErrorResponse](t, rec).Error)
}

func TestCreate_AssignsIDAndCreatorName(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/events", "token-alice",
		event.Draft{Title: "dinner", Date: "2024-06-01", StartTime: "19:00"})
	require.Equal(t, http.StatusCreated, rec.Code)

	ev := decodeBody[api.Event](t, rec)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, int64(1), ev.CreatedBy)
	assert.Equal(t, "Alice", ev.CreatedByName)
}

func TestCreate_RejectsInvalidDraft(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/events", "token-alice",
		event.Draft{Date: "2024-06-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestList_SharedBetweenPartnersOnly(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/events", "token-alice",
		event.Draft{Title: "dinner", Date: "2024-06-01"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// The partner sees it.
	rec = doRequest(t, s, http.MethodGet, "/api/events", "token-ben", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]api.Event](t, rec), 1)

	// An unpaired third user does not.
	rec = doRequest(t, s, http.MethodGet, "/api/events", "token-carol", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]api.Event](t, rec))
}

func TestUpdate_CreatorOnly(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/events", "token-alice",
		event.Draft{Title: "dinner", Date: "2024-06-01"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[api.Event](t, rec)

	title := "supper"
	rec = doRequest(t, s, http.MethodPut, "/api/events/"+created.ID, "token-ben",
		event.Patch{Title: &title})
	assert.Equal(t, http.StatusForbidden, rec.Code, "the partner may read but not edit")

	rec = doRequest(t, s, http.MethodPut, "/api/events/"+created.ID, "token-alice",
		event.Patch{Title: &title})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "supper", decodeBody[api.Event](t, rec).Title)
}

func TestUpdate_UnknownIDNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	title := "x"
	rec := doRequest(t, s, http.MethodPut, "/api/events/nope", "token-alice",
		event.Patch{Title: &title})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDelete_SecondCallNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/events", "token-alice",
		event.Draft{Title: "dinner", Date: "2024-06-01"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[api.Event](t, rec)

	rec = doRequest(t, s, http.MethodDelete, "/api/events/"+created.ID, "token-alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, s, http.MethodDelete, "/api/events/"+created.ID, "token-alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSync_AcceptsValidOmitsInvalid(t *testing.T) {
	s, repo := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/events/sync", "token-alice", api.SyncRequest{
		Events: []api.SyncItem{
			{LocalID: 10, Title: "valid", Date: "2024-06-01"},
			{LocalID: 11, Title: "", Date: "2024-06-02"}, // missing title
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[api.SyncResponse](t, rec)
	require.Len(t, resp.Synced, 1, "invalid records are omitted, not fatal")
	assert.Equal(t, int64(10), resp.Synced[0].LocalID)
	assert.NotEmpty(t, resp.Synced[0].RemoteID)

	assert.Len(t, repo.events, 1)
}
