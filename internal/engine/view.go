package engine

import (
	"sync"

	"github.com/roach88/honeycal/internal/event"
)

// State is the externally observable phase of the current load cycle.
type State string

const (
	// StateIdle means no load cycle has run yet.
	StateIdle State = "idle"
	// StateLocalLoaded means local state is visible; remote sync has
	// not completed. This state is published before any network I/O,
	// which is the offline-first guarantee.
	StateLocalLoaded State = "local_loaded"
	// StateReconciled means the last load cycle merged remote state.
	StateReconciled State = "reconciled"
	// StateOffline means the last load cycle could not reach the
	// remote service and the local-only view stands.
	StateOffline State = "offline_fallback"
)

// Snapshot is an immutable copy of the published view. The events slice
// is never mutated after publication.
type Snapshot struct {
	Events []event.Event
	State  State

	// SyncErr is the last surfaced (non-network) remote failure, nil
	// when the last cycle was clean or merely offline.
	SyncErr error
}

// View is the published, UI-facing state holder. Single writer (the
// engine), many readers. Every mutation replaces the whole events slice;
// readers holding a previous snapshot are never corrupted mid-read.
type View struct {
	mu      sync.RWMutex
	events  []event.Event
	state   State
	syncErr error
	subs    []chan struct{}
}

// NewView returns an empty view in StateIdle.
func NewView() *View {
	return &View{state: StateIdle}
}

// Snapshot returns the current published state.
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Snapshot{Events: v.events, State: v.state, SyncErr: v.syncErr}
}

// Subscribe returns a channel that receives a signal after each publish.
// The channel has capacity one and signals coalesce; subscribers read the
// latest state via Snapshot rather than from the channel itself.
func (v *View) Subscribe() <-chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	ch := make(chan struct{}, 1)
	v.subs = append(v.subs, ch)
	return ch
}

// publish replaces the view wholesale and wakes subscribers. The caller
// must pass a slice it will not mutate afterwards.
func (v *View) publish(events []event.Event, state State, syncErr error) {
	v.mu.Lock()
	v.events = events
	v.state = state
	v.syncErr = syncErr
	subs := v.subs
	v.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default: // subscriber already has a pending signal
		}
	}
}

// setSyncErr records a surfaced remote failure without touching the
// published events, and wakes subscribers so a UI can show it.
func (v *View) setSyncErr(err error) {
	v.mu.Lock()
	v.syncErr = err
	subs := v.subs
	v.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// upsert replaces the entry with the same merge key, or appends, and
// republishes in canonical order. Used for optimistic single-entry
// updates between full load cycles.
func (v *View) upsert(ev event.Event) {
	v.mu.RLock()
	current := v.events
	state := v.state
	syncErr := v.syncErr
	v.mu.RUnlock()

	next := make([]event.Event, 0, len(current)+1)
	for _, e := range current {
		if sameEntry(e, ev) {
			continue
		}
		next = append(next, e)
	}
	next = append(next, ev)
	event.Sort(next)
	v.publish(next, state, syncErr)
}

// remove drops the entry for the given local identifier and republishes,
// returning the removed entry so a failed operation can restore it.
func (v *View) remove(localID int64) (event.Event, bool) {
	v.mu.RLock()
	current := v.events
	state := v.state
	syncErr := v.syncErr
	v.mu.RUnlock()

	var removed event.Event
	found := false
	next := make([]event.Event, 0, len(current))
	for _, e := range current {
		if !found && e.ID.Local == localID && localID != 0 {
			removed = e
			found = true
			continue
		}
		next = append(next, e)
	}
	if !found {
		return event.Event{}, false
	}
	v.publish(next, state, syncErr)
	return removed, true
}

// sameEntry reports whether two events denote the same logical record in
// the view: matching merge keys, or matching local identifiers (the
// pending entry being swapped for its remote-confirmed counterpart).
func sameEntry(a, b event.Event) bool {
	if a.ID.Local != 0 && a.ID.Local == b.ID.Local {
		return true
	}
	return a.ID.Key() == b.ID.Key()
}
