package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/honeycal/internal/event"
	"github.com/roach88/honeycal/internal/localstore"
	"github.com/roach88/honeycal/internal/remote"
	"github.com/roach88/honeycal/internal/session"
)

// LocalStore is the durable device-local cache the engine writes first.
// Implemented by localstore.Store.
type LocalStore interface {
	List(ctx context.Context) ([]event.Event, error)
	ListUnsynced(ctx context.Context) ([]event.Event, error)
	Get(ctx context.Context, localID int64) (event.Event, error)
	Create(ctx context.Context, draft event.Draft, createdBy int64) (event.Event, error)
	Update(ctx context.Context, localID int64, patch event.Patch) (event.Event, error)
	Delete(ctx context.Context, localID int64) error
	MarkSynced(ctx context.Context, localID int64, remoteID string) error
}

// RemoteService is the authoritative store's request/response contract.
// Implemented by remote.Client.
type RemoteService interface {
	List(ctx context.Context) ([]event.Event, error)
	Create(ctx context.Context, draft event.Draft) (event.Event, error)
	Update(ctx context.Context, remoteID string, patch event.Patch) (event.Event, error)
	Delete(ctx context.Context, remoteID string) error
	SyncBatch(ctx context.Context, pending []event.Event) (map[int64]string, error)
}

// Notifier broadcasts confirmed remote changes to the paired partner.
// Best-effort: delivery is a latency optimization over polling, never a
// reliability mechanism. Implemented by realtime.Client.
type Notifier interface {
	EmitCreated(ev event.Event)
	EmitUpdated(ev event.Event)
	EmitDeleted(ev event.Event)
}

// NopNotifier discards notifications. Used when no realtime channel is
// connected (one-shot CLI commands, unpaired users, tests).
type NopNotifier struct{}

func (NopNotifier) EmitCreated(event.Event) {}
func (NopNotifier) EmitUpdated(event.Event) {}
func (NopNotifier) EmitDeleted(event.Event) {}

// DefaultRemoteTimeout bounds each remote call so a hung request degrades
// into a logged offline failure instead of delaying the success branch
// forever. The optimistic local state is published before any remote call
// either way.
const DefaultRemoteTimeout = 5 * time.Second

// Engine orchestrates load-merge-persist cycles and per-operation
// optimistic writes with best-effort remote propagation.
type Engine struct {
	store    LocalStore
	remote   RemoteService
	notifier Notifier
	view     *View
	caller   session.Caller
	log      *slog.Logger

	remoteTimeout time.Duration

	// mu serializes operations: the local store rewrites durable state
	// on every mutation, so interleaved operations could lose updates.
	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier attaches the realtime notification client.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithRemoteTimeout overrides the per-call remote timeout.
func WithRemoteTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.remoteTimeout = d
	}
}

// WithLogger overrides the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// New creates an engine for the given caller over a local store and a
// remote service.
func New(store LocalStore, rs RemoteService, caller session.Caller, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		remote:        rs,
		notifier:      NopNotifier{},
		view:          NewView(),
		caller:        caller,
		log:           slog.Default(),
		remoteTimeout: DefaultRemoteTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// View returns the published view. Readers take snapshots; only the
// engine writes.
func (e *Engine) View() *View {
	return e.view
}

// SetNotifier attaches the realtime notification client. The engine and
// the realtime client reference each other (emits one way, reload
// triggers the other), so one side is wired after construction.
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = n
}

// LoadEvents runs one load cycle: read the local store and publish
// immediately (offline-capable, instant), then fetch remote state, merge
// remote-wins, and republish. A remote network failure leaves the
// local-only view standing in StateOffline and is logged, not returned;
// an authorization failure is additionally surfaced via the view.
func (e *Engine) LoadEvents(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadLocked(ctx)
}

func (e *Engine) loadLocked(ctx context.Context) error {
	local, err := e.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load local events: %w", err)
	}
	e.view.publish(local, StateLocalLoaded, nil)

	rctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()

	remoteEvents, err := e.remote.List(rctx)
	if err != nil {
		if surfaced := e.classifyRemoteFailure("list", err); surfaced != nil {
			e.view.publish(local, StateOffline, surfaced)
		} else {
			e.view.publish(local, StateOffline, nil)
		}
		return nil
	}

	merged := Merge(local, remoteEvents)
	e.view.publish(merged, StateReconciled, nil)
	e.log.Debug("events reconciled",
		"local", len(local),
		"remote", len(remoteEvents),
		"merged", len(merged),
	)
	return nil
}

// LoadLocal publishes the local store's state without contacting the
// remote service. Used by callers that explicitly want the offline view.
func (e *Engine) LoadLocal(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	local, err := e.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load local events: %w", err)
	}
	e.view.publish(local, StateLocalLoaded, nil)
	return nil
}

// CreateEvent writes the draft optimistically to the local store with
// status pending and publishes it, then attempts the remote create. On
// remote success the local record is marked synced, the pending view
// entry is swapped for the canonical remote-shaped one, and the partner
// is notified. Remote failure is swallowed: the pending record is the
// durable retry state.
func (e *Engine) CreateEvent(ctx context.Context, draft event.Draft) (event.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	local, err := e.store.Create(ctx, draft, e.caller.UserID)
	if err != nil {
		return event.Event{}, fmt.Errorf("create event locally: %w", err)
	}
	e.view.upsert(local)

	rctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()

	confirmed, err := e.remote.Create(rctx, draft)
	if err != nil {
		if surfaced := e.classifyRemoteFailure("create", err); surfaced != nil {
			e.view.setSyncErr(surfaced)
		}
		return local, nil
	}

	if err := e.store.MarkSynced(ctx, local.ID.Local, confirmed.ID.Remote); err != nil {
		return event.Event{}, fmt.Errorf("mark created event synced: %w", err)
	}

	confirmed.ID.Local = local.ID.Local
	e.view.upsert(confirmed)
	e.notifier.EmitCreated(confirmed)
	e.log.Debug("event created and synced",
		"local_id", local.ID.Local,
		"remote_id", confirmed.ID.Remote,
	)
	return confirmed, nil
}

// UpdateEvent applies the patch locally first and publishes. The remote
// update is attempted only when the record carries a remote identity;
// failure is swallowed and local state remains authoritative until the
// next successful sync.
func (e *Engine) UpdateEvent(ctx context.Context, localID int64, patch event.Patch) (event.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	updated, err := e.store.Update(ctx, localID, patch)
	if err != nil {
		return event.Event{}, fmt.Errorf("update event locally: %w", err)
	}
	e.view.upsert(updated)

	if updated.ID.Remote == "" {
		return updated, nil
	}

	rctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()

	confirmed, err := e.remote.Update(rctx, updated.ID.Remote, patch)
	if err != nil {
		if surfaced := e.classifyRemoteFailure("update", err); surfaced != nil {
			e.view.setSyncErr(surfaced)
		}
		return updated, nil
	}

	confirmed.ID.Local = updated.ID.Local
	e.view.upsert(confirmed)
	e.notifier.EmitUpdated(confirmed)
	return confirmed, nil
}

// DeleteEvent removes the event, remote-first with rollback: the view
// entry is optimistically removed, the remote delete is attempted when a
// remote identity exists (NotFound means already satisfied, network
// failures are swallowed, authorization failures are hard failures that
// restore the view entry), and only then is the record deleted locally.
func (e *Engine) DeleteEvent(ctx context.Context, localID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.store.Get(ctx, localID)
	if errors.Is(err, localstore.ErrNotFound) {
		return nil // already gone, deletion is idempotent locally
	}
	if err != nil {
		return fmt.Errorf("load event for delete: %w", err)
	}

	removed, restorable := e.view.remove(localID)

	if current.ID.Remote != "" {
		rctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
		defer cancel()

		err := e.remote.Delete(rctx, current.ID.Remote)
		switch {
		case err == nil:
		case errors.Is(err, remote.ErrNotFound):
			// Already deleted remotely; the intent is satisfied.
			e.log.Debug("remote delete already satisfied", "remote_id", current.ID.Remote)
		case remote.IsUnreachable(err):
			e.log.Info("remote delete deferred, offline", "remote_id", current.ID.Remote, "err", err)
		default:
			// Authorization failure: a real problem, not an offline
			// condition. Restore the optimistically removed entry.
			if restorable {
				e.view.upsert(removed)
			}
			return fmt.Errorf("delete event remotely: %w", err)
		}
	}

	if err := e.store.Delete(ctx, localID); err != nil {
		if restorable {
			e.view.upsert(removed)
		}
		return fmt.Errorf("delete event locally: %w", err)
	}

	e.notifier.EmitDeleted(current)
	return nil
}

// SyncEvents flushes locally-pending records through the bulk-sync
// operation, marks every accepted record synced with its assigned remote
// identifier, and reloads. Records absent from the response stay pending
// and are retried on the next cycle.
func (e *Engine) SyncEvents(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pending, err := e.store.ListUnsynced(ctx)
	if err != nil {
		return fmt.Errorf("list pending events: %w", err)
	}
	if len(pending) == 0 {
		return e.loadLocked(ctx)
	}

	rctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()

	assigned, err := e.remote.SyncBatch(rctx, pending)
	if err != nil {
		if surfaced := e.classifyRemoteFailure("sync batch", err); surfaced != nil {
			e.view.setSyncErr(surfaced)
		}
		return e.loadLocked(ctx)
	}

	for _, ev := range pending {
		remoteID, ok := assigned[ev.ID.Local]
		if !ok {
			continue // not accepted, stays pending for the next cycle
		}
		if err := e.store.MarkSynced(ctx, ev.ID.Local, remoteID); err != nil {
			return fmt.Errorf("mark synced after batch: %w", err)
		}
	}
	if len(assigned) < len(pending) {
		e.log.Warn("sync batch partially accepted",
			"submitted", len(pending),
			"accepted", len(assigned),
		)
	} else {
		e.log.Info("pending events synced", "count", len(assigned))
	}

	return e.loadLocked(ctx)
}

// classifyRemoteFailure applies the swallow-and-log policy. Network-class
// failures are the expected offline case: logged at info, nothing
// surfaced. Authorization and validation failures are logged at error
// and returned so callers can surface them through the view.
func (e *Engine) classifyRemoteFailure(op string, err error) error {
	if remote.IsUnreachable(err) {
		e.log.Info("offline, remote call skipped", "op", op, "err", err)
		return nil
	}

	var ve *remote.ValidationError
	if remote.IsAuthFailure(err) || errors.As(err, &ve) {
		e.log.Error("remote call rejected", "op", op, "err", err)
		return err
	}

	e.log.Warn("remote call failed", "op", op, "err", err)
	return nil
}
