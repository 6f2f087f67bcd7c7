package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/honeycal/internal/event"
)

const eventColumns = `id, title, description, date, start_time, end_time,
	location, created_by, created_at, updated_at, synced, remote_id`

// List returns all locally known events in canonical order: date
// ascending, then start time ascending with all-day events first.
func (s *Store) List(ctx context.Context) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY id ASC`)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}

	event.Sort(events)
	return events, nil
}

// ListUnsynced returns all records with status pending, in creation order.
func (s *Store) ListUnsynced(ctx context.Context) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE synced = 0 ORDER BY id ASC`)
	if err != nil {
		return nil, &PersistenceError{Op: "list unsynced", Err: err}
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, &PersistenceError{Op: "list unsynced", Err: err}
	}
	return events, nil
}

// Get returns the record with the given local identifier.
func (s *Store) Get(ctx context.Context, localID int64) (event.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, localID)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, ErrNotFound
	}
	if err != nil {
		return event.Event{}, &PersistenceError{Op: "get", Err: err}
	}
	return ev, nil
}

// Create persists a new record with status pending and no remote
// cross-reference, assigns a local identifier, and returns the stored
// record.
func (s *Store) Create(ctx context.Context, draft event.Draft, createdBy int64) (event.Event, error) {
	if err := draft.Validate(); err != nil {
		return event.Event{}, err
	}

	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (title, description, date, start_time, end_time,
			location, created_by, created_at, updated_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		draft.Title, nullable(draft.Description), draft.Date,
		nullable(draft.StartTime), nullable(draft.EndTime),
		nullable(draft.Location), createdBy,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return event.Event{}, &PersistenceError{Op: "create", Err: err}
	}

	localID, err := res.LastInsertId()
	if err != nil {
		return event.Event{}, &PersistenceError{Op: "create", Err: err}
	}

	return event.Event{
		ID:          event.Identity{Local: localID},
		Title:       draft.Title,
		Description: draft.Description,
		Date:        draft.Date,
		StartTime:   draft.StartTime,
		EndTime:     draft.EndTime,
		Location:    draft.Location,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      event.StatusPending,
	}, nil
}

// Update merges the patch into the existing record and refreshes the
// update timestamp. Returns ErrNotFound if no record has the identifier.
func (s *Store) Update(ctx context.Context, localID int64, patch event.Patch) (event.Event, error) {
	if err := patch.Validate(); err != nil {
		return event.Event{}, err
	}

	current, err := s.Get(ctx, localID)
	if err != nil {
		return event.Event{}, err
	}

	updated := patch.Apply(current)
	updated.UpdatedAt = s.now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE events
		SET title = ?, description = ?, date = ?, start_time = ?,
			end_time = ?, location = ?, updated_at = ?
		WHERE id = ?`,
		updated.Title, nullable(updated.Description), updated.Date,
		nullable(updated.StartTime), nullable(updated.EndTime),
		nullable(updated.Location), updated.UpdatedAt.Format(time.RFC3339),
		localID,
	)
	if err != nil {
		return event.Event{}, &PersistenceError{Op: "update", Err: err}
	}
	return updated, nil
}

// Delete removes the record. Idempotent: deleting an absent identifier
// succeeds.
func (s *Store) Delete(ctx context.Context, localID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, localID); err != nil {
		return &PersistenceError{Op: "delete", Err: err}
	}
	return nil
}

// MarkSynced sets the record's status to synced and stores the remote
// cross-reference assigned by the remote service.
func (s *Store) MarkSynced(ctx context.Context, localID int64, remoteID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET synced = 1, remote_id = ? WHERE id = ?`,
		remoteID, localID)
	if err != nil {
		return &PersistenceError{Op: "mark synced", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &PersistenceError{Op: "mark synced", Err: err}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (event.Event, error) {
	var (
		ev                   event.Event
		localID              int64
		description          sql.NullString
		startTime, endTime   sql.NullString
		location, remoteID   sql.NullString
		createdAt, updatedAt string
		synced               int
	)
	err := row.Scan(&localID, &ev.Title, &description, &ev.Date,
		&startTime, &endTime, &location, &ev.CreatedBy,
		&createdAt, &updatedAt, &synced, &remoteID)
	if err != nil {
		return event.Event{}, err
	}

	ev.ID = event.Identity{Local: localID, Remote: remoteID.String}
	ev.Description = description.String
	ev.StartTime = startTime.String
	ev.EndTime = endTime.String
	ev.Location = location.String
	ev.Status = event.StatusPending
	if synced != 0 {
		ev.Status = event.StatusSynced
	}

	if ev.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return event.Event{}, fmt.Errorf("created_at: %w", err)
	}
	if ev.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return event.Event{}, fmt.Errorf("updated_at: %w", err)
	}
	return ev, nil
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	var events []event.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if events == nil {
		events = []event.Event{}
	}
	return events, nil
}

// parseTimestamp accepts RFC 3339 and the bare SQLite CURRENT_TIMESTAMP
// format written by pre-migration databases.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
