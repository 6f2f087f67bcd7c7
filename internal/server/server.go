// Package server is the reference remote event service: the authoritative
// store the sync engine reconciles against, plus the realtime relay. It
// implements the service contract the client packages consume — list,
// create, update, delete, bulk sync — with creator-only mutation enforced
// server-side, and relays partner notifications between rooms.
//
// Authentication and pairing are owned by an external collaborator; this
// server only resolves an already-issued bearer token to a user row.
package server

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Server serves the remote event API and the realtime channel.
type Server struct {
	repo Repo
	hub  *Hub
	log  *slog.Logger
}

// New creates a server over the given repository.
func New(repo Repo, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{repo: repo, hub: NewHub(log), log: log}
}

// Router builds the chi router with the full route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/api/events", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Post("/", s.handleCreate)
			r.Post("/sync", s.handleSync)
			r.Put("/{id}", s.handleUpdate)
			r.Delete("/{id}", s.handleDelete)
		})

		r.Get("/ws", s.handleWS)
	})

	return r
}

// NewPool connects a pgx pool for the server store, retrying briefly to
// accommodate a database container still starting up.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = 30 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			err = pool.Ping(ctx)
			if err == nil {
				return pool, nil
			}
			pool.Close()
		}
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("connect to postgres: %w", err)
}

// EnsureSchema applies the reference DDL. Every statement is IF NOT
// EXISTS, so repeated startups are harmless.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
