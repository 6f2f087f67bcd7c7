// Package api defines the wire contract between the sync engine and the
// remote event service: the HTTP payloads and the realtime frames. Both
// the client (internal/remote, internal/realtime) and the reference
// server (internal/server) marshal these types, so the two sides cannot
// drift.
package api

import (
	"time"

	"github.com/roach88/honeycal/internal/event"
)

// Event is the remote representation of an event. Its ID lives in the
// remote identity space; local identifiers never appear on the wire
// except inside sync batches, where they key the response mapping.
type Event struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Date          string    `json:"date"`
	StartTime     string    `json:"start_time,omitempty"`
	EndTime       string    `json:"end_time,omitempty"`
	Location      string    `json:"location,omitempty"`
	CreatedBy     int64     `json:"created_by"`
	CreatedByName string    `json:"created_by_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Domain converts the wire event to a domain event. Remote-origin events
// are synced by definition: their identifier was assigned by the server.
func (e Event) Domain() event.Event {
	return event.Event{
		ID:            event.Identity{Remote: e.ID},
		Title:         e.Title,
		Description:   e.Description,
		Date:          e.Date,
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		Location:      e.Location,
		CreatedBy:     e.CreatedBy,
		CreatedByName: e.CreatedByName,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		Status:        event.StatusSynced,
	}
}

// FromDomain converts a domain event to its wire shape.
func FromDomain(ev event.Event) Event {
	return Event{
		ID:            ev.ID.Remote,
		Title:         ev.Title,
		Description:   ev.Description,
		Date:          ev.Date,
		StartTime:     ev.StartTime,
		EndTime:       ev.EndTime,
		Location:      ev.Location,
		CreatedBy:     ev.CreatedBy,
		CreatedByName: ev.CreatedByName,
		CreatedAt:     ev.CreatedAt,
		UpdatedAt:     ev.UpdatedAt,
	}
}

// SyncItem is one locally-pending event submitted in a sync batch. The
// local identifier is echoed back in the response mapping and never
// stored server-side.
type SyncItem struct {
	LocalID     int64  `json:"local_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	Location    string `json:"location,omitempty"`
}

// SyncRequest is the bulk-sync payload.
type SyncRequest struct {
	Events []SyncItem `json:"events"`
}

// SyncedEvent maps a submitted local identifier to the remote identifier
// the server assigned.
type SyncedEvent struct {
	LocalID  int64  `json:"local_id"`
	RemoteID string `json:"remote_id"`
	Event    Event  `json:"event"`
}

// SyncResponse lists every accepted record. Records the server could not
// accept are silently omitted; the client keeps them pending.
type SyncResponse struct {
	Synced []SyncedEvent `json:"synced"`
}

// ErrorResponse is the JSON error envelope for non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Realtime frame types. Delivery is at-most-once and unordered relative
// to the authoritative store; the frames carry a hint to reload, not
// state to apply.
const (
	FrameJoinPartner  = "join_partner_room"
	FrameEventCreated = "event_created"
	FrameEventUpdated = "event_updated"
	FrameEventDeleted = "event_deleted"
)

// Frame is one realtime channel message.
type Frame struct {
	Type string `json:"type"`
	// ID is a per-frame identifier for logging and de-dup.
	ID string `json:"id,omitempty"`
	// PartnerID is the target room for outbound event frames, or the
	// room to join for FrameJoinPartner.
	PartnerID int64 `json:"partner_id,omitempty"`
	// Event is the payload for event frames.
	Event *Event `json:"event,omitempty"`
}
