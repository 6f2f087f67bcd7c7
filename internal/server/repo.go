package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/honeycal/internal/api"
	"github.com/roach88/honeycal/internal/event"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller is not the record's creator.
// Only the creator may mutate or delete an event.
var ErrForbidden = errors.New("not the event creator")

// User is the authentication collaborator's view of an account: just
// enough to resolve a credential and address the shared calendar.
type User struct {
	ID        int64
	Name      string
	PartnerID int64 // 0 when unpaired
}

// Repo is the server-side event store. Implemented by PGRepo; tests use
// an in-memory fake.
type Repo interface {
	// UserByToken resolves a session credential to its user.
	UserByToken(ctx context.Context, token string) (User, error)
	// ListFor returns events created by the user or the user's paired
	// partner, ordered by date then start time ascending.
	ListFor(ctx context.Context, u User) ([]api.Event, error)
	Create(ctx context.Context, u User, draft event.Draft) (api.Event, error)
	Update(ctx context.Context, u User, id string, patch event.Patch) (api.Event, error)
	Delete(ctx context.Context, u User, id string) error
}

// PGRepo is the PostgreSQL implementation of Repo.
type PGRepo struct {
	db *pgxpool.Pool
}

// NewPGRepo constructs a PGRepo over a pgx pool.
func NewPGRepo(db *pgxpool.Pool) *PGRepo {
	return &PGRepo{db: db}
}

const eventSelect = `
	SELECT e.id, e.title, e.description, e.date, e.start_time, e.end_time,
	       e.location, e.created_by, u.name, e.created_at, e.updated_at
	FROM events e
	JOIN users u ON u.id = e.created_by`

// UserByToken resolves a bearer token to its user row.
func (r *PGRepo) UserByToken(ctx context.Context, token string) (User, error) {
	var u User
	var partner *int64
	err := r.db.QueryRow(ctx,
		`SELECT id, name, partner_id FROM users WHERE token = $1`, token,
	).Scan(&u.ID, &u.Name, &partner)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("resolve token: %w", err)
	}
	if partner != nil {
		u.PartnerID = *partner
	}
	return u, nil
}

// ListFor returns the shared calendar: events created by the user or the
// user's paired partner.
func (r *PGRepo) ListFor(ctx context.Context, u User) ([]api.Event, error) {
	query := eventSelect + `
	WHERE e.created_by = $1 OR e.created_by = $2
	ORDER BY e.date ASC, e.start_time ASC NULLS FIRST, e.id ASC`

	partner := u.ID // unpaired: the second clause matches nothing new
	if u.PartnerID != 0 {
		partner = u.PartnerID
	}

	rows, err := r.db.Query(ctx, query, u.ID, partner)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []api.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Create inserts a new event with a server-assigned identifier.
func (r *PGRepo) Create(ctx context.Context, u User, draft event.Draft) (api.Event, error) {
	if err := draft.Validate(); err != nil {
		return api.Event{}, err
	}

	now := time.Now().UTC()
	ev := api.Event{
		ID:            uuid.New().String(),
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

	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, title, description, date, start_time, end_time,
			location, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ev.ID, ev.Title, nullable(ev.Description), ev.Date,
		nullable(ev.StartTime), nullable(ev.EndTime), nullable(ev.Location),
		ev.CreatedBy, ev.CreatedAt, ev.UpdatedAt,
	)
	if err != nil {
		return api.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}

// Update patches an event after checking the caller is its creator.
func (r *PGRepo) Update(ctx context.Context, u User, id string, patch event.Patch) (api.Event, error) {
	if err := patch.Validate(); err != nil {
		return api.Event{}, err
	}

	current, err := r.getOwned(ctx, u, id)
	if err != nil {
		return api.Event{}, err
	}

	updated := patch.Apply(current.Domain())
	now := time.Now().UTC()

	_, err = r.db.Exec(ctx,
		`UPDATE events
		 SET title = $1, description = $2, date = $3, start_time = $4,
		     end_time = $5, location = $6, updated_at = $7
		 WHERE id = $8`,
		updated.Title, nullable(updated.Description), updated.Date,
		nullable(updated.StartTime), nullable(updated.EndTime),
		nullable(updated.Location), now, id,
	)
	if err != nil {
		return api.Event{}, fmt.Errorf("update event: %w", err)
	}

	out := api.FromDomain(updated)
	out.ID = id
	out.CreatedByName = current.CreatedByName
	out.UpdatedAt = now
	return out, nil
}

// Delete removes an event after checking the caller is its creator.
// Not idempotent: a second delete yields ErrNotFound.
func (r *PGRepo) Delete(ctx context.Context, u User, id string) error {
	if _, err := r.getOwned(ctx, u, id); err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// getOwned loads an event and enforces the creator-only mutation rule.
func (r *PGRepo) getOwned(ctx context.Context, u User, id string) (api.Event, error) {
	row := r.db.QueryRow(ctx, eventSelect+` WHERE e.id = $1`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return api.Event{}, ErrNotFound
	}
	if err != nil {
		return api.Event{}, err
	}
	if ev.CreatedBy != u.ID {
		return api.Event{}, ErrForbidden
	}
	return ev, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (api.Event, error) {
	var (
		ev                           api.Event
		description, start, end, loc *string
	)
	err := row.Scan(&ev.ID, &ev.Title, &description, &ev.Date, &start, &end,
		&loc, &ev.CreatedBy, &ev.CreatedByName, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return api.Event{}, err
	}
	ev.Description = deref(description)
	ev.StartTime = deref(start)
	ev.EndTime = deref(end)
	ev.Location = deref(loc)
	return ev, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
