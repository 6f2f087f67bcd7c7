package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/honeycal/internal/event"
	"github.com/roach88/honeycal/internal/remote"
)

// FakeRemote is an in-memory remote event service. It satisfies the
// engine's RemoteService interface and can be shared between two engines
// to simulate a pair of partners against one authoritative store.
//
// Set Offline to make every call fail with an UnreachableError; set
// FailWith to inject a specific error (e.g. remote.ErrForbidden).
type FakeRemote struct {
	mu      sync.Mutex
	events  map[string]event.Event
	nextID  int
	Offline bool
	// FailWith, when non-nil, is returned by every call.
	FailWith error
}

// NewFakeRemote creates an empty fake service.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{events: make(map[string]event.Event)}
}

func (f *FakeRemote) fail() error {
	if f.FailWith != nil {
		return f.FailWith
	}
	if f.Offline {
		return &remote.UnreachableError{Op: "fake", Err: errors.New("connection refused")}
	}
	return nil
}

func (f *FakeRemote) assignID() string {
	f.nextID++
	return fmt.Sprintf("r-%d", f.nextID)
}

// List returns all stored events with remote-only identity.
func (f *FakeRemote) List(ctx context.Context) ([]event.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}

	events := make([]event.Event, 0, len(f.events))
	for _, ev := range f.events {
		events = append(events, ev)
	}
	event.Sort(events)
	return events, nil
}

// Create stores the draft under a new remote identifier.
func (f *FakeRemote) Create(ctx context.Context, draft event.Draft) (event.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return event.Event{}, err
	}

	now := time.Now().UTC()
	ev := event.Event{
		ID:          event.Identity{Remote: f.assignID()},
		Title:       draft.Title,
		Description: draft.Description,
		Date:        draft.Date,
		StartTime:   draft.StartTime,
		EndTime:     draft.EndTime,
		Location:    draft.Location,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      event.StatusSynced,
	}
	f.events[ev.ID.Remote] = ev
	return ev, nil
}

// Update patches a stored event; remote.ErrNotFound if absent.
func (f *FakeRemote) Update(ctx context.Context, remoteID string, patch event.Patch) (event.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return event.Event{}, err
	}

	ev, ok := f.events[remoteID]
	if !ok {
		return event.Event{}, remote.ErrNotFound
	}
	ev = patch.Apply(ev)
	ev.UpdatedAt = time.Now().UTC()
	f.events[remoteID] = ev
	return ev, nil
}

// Delete removes a stored event. Not idempotent, matching the real
// service: a second delete returns remote.ErrNotFound.
func (f *FakeRemote) Delete(ctx context.Context, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}

	if _, ok := f.events[remoteID]; !ok {
		return remote.ErrNotFound
	}
	delete(f.events, remoteID)
	return nil
}

// SyncBatch accepts every valid pending event and returns the local to
// remote identifier mapping. Invalid drafts are silently omitted, like
// the real bulk-sync endpoint.
func (f *FakeRemote) SyncBatch(ctx context.Context, pending []event.Event) (map[int64]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}

	assigned := make(map[int64]string, len(pending))
	now := time.Now().UTC()
	for _, ev := range pending {
		draft := event.Draft{
			Title:       ev.Title,
			Description: ev.Description,
			Date:        ev.Date,
			StartTime:   ev.StartTime,
			EndTime:     ev.EndTime,
			Location:    ev.Location,
		}
		if draft.Validate() != nil {
			continue
		}
		stored := ev
		stored.ID = event.Identity{Remote: f.assignID()}
		stored.Status = event.StatusSynced
		stored.CreatedAt = now
		stored.UpdatedAt = now
		f.events[stored.ID.Remote] = stored
		assigned[ev.ID.Local] = stored.ID.Remote
	}
	return assigned, nil
}

// Stored returns a copy of the authoritative state, for assertions.
func (f *FakeRemote) Stored() map[string]event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]event.Event, len(f.events))
	for k, v := range f.events {
		out[k] = v
	}
	return out
}

// Put seeds the authoritative state directly.
func (f *FakeRemote) Put(ev event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[ev.ID.Remote] = ev
}
