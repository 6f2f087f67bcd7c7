// Package event defines the calendar domain model shared by the local
// store, the synchronization engine, and the remote service contract.
package event

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// TimeLayout is the wire and storage format for start/end times.
const TimeLayout = "15:04"

// Status is the sync state of a locally known event.
type Status string

const (
	// StatusPending means the event exists locally and has not been
	// confirmed by the remote store.
	StatusPending Status = "pending"

	// StatusSynced means the remote store accepted the event and the
	// local copy carries its remote identifier.
	StatusSynced Status = "synced"
)

// Identity is the tagged dual identity of an event.
//
// Local and remote identifiers are distinct identity spaces: a record may
// carry only a local identifier (created offline, not yet accepted
// remotely), only a remote identifier (fetched from the remote store, not
// cached locally), or both (after a successful sync). Modeling the pair
// explicitly removes the ambiguity between "this record's own id is
// remote" and "this record cross-references a remote id".
type Identity struct {
	// Local is the identifier assigned by the local store. Zero means
	// the record has no local row.
	Local int64 `json:"local_id,omitempty"`

	// Remote is the identifier assigned by the remote service. Empty
	// means the record has not been accepted remotely.
	Remote string `json:"remote_id,omitempty"`
}

// IsZero reports whether neither identifier is set.
func (id Identity) IsZero() bool {
	return id.Local == 0 && id.Remote == ""
}

// Key returns the merge key for the materialized view: the remote
// identifier when present, otherwise a local-scoped synthetic key. Two
// records that denote the same logical event always produce the same key
// once the remote identifier is known on both sides, so the merged view
// never shows duplicates.
func (id Identity) Key() string {
	if id.Remote != "" {
		return id.Remote
	}
	return fmt.Sprintf("local:%d", id.Local)
}

// Event is the central entity of the shared calendar.
//
// StartTime and EndTime are both empty for all-day events. Date is a
// calendar date in DateLayout; times are in TimeLayout. The string forms
// sort lexicographically in chronological order, which the ordering
// comparator relies on.
type Event struct {
	ID            Identity  `json:"id"`
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
	Status        Status    `json:"status"`
}

// AllDay reports whether the event has no start/end times.
func (e Event) AllDay() bool {
	return e.StartTime == "" && e.EndTime == ""
}

// Draft is the input for creating an event. Title and Date are required.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time,omitempty"`
	EndTime     string `json:"end_time,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Date        *string `json:"date,omitempty"`
	StartTime   *string `json:"start_time,omitempty"`
	EndTime     *string `json:"end_time,omitempty"`
	Location    *string `json:"location,omitempty"`
}

// IsZero reports whether the patch touches no fields.
func (p Patch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Date == nil &&
		p.StartTime == nil && p.EndTime == nil && p.Location == nil
}

// Apply merges the patch into a copy of e and returns it. The caller is
// responsible for refreshing UpdatedAt.
func (p Patch) Apply(e Event) Event {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		e.EndTime = *p.EndTime
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	return e
}
