package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/honeycal/internal/api"
	"github.com/roach88/honeycal/internal/event"
)

type ctxKey int

const userKey ctxKey = iota

// callerUser returns the authenticated user attached by the auth
// middleware.
func callerUser(r *http.Request) User {
	u, _ := r.Context().Value(userKey).(User)
	return u
}

// authenticate resolves the bearer token (or ?token= for the websocket
// handshake) to a user and attaches it to the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing credential")
			return
		}

		u, err := s.repo.UserByToken(r.Context(), token)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credential")
			return
		}
		if err != nil {
			s.log.Error("token lookup failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// handleList returns the shared calendar for the caller and partner.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	events, err := s.repo.ListFor(r.Context(), callerUser(r))
	if err != nil {
		s.log.Error("list events failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleCreate persists a new event owned by the caller.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var draft event.Draft
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ev, err := s.repo.Create(r.Context(), callerUser(r), draft)
	if err != nil {
		writeRepoError(w, s, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// handleUpdate patches an event; only the creator may update.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch event.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ev, err := s.repo.Update(r.Context(), callerUser(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeRepoError(w, s, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleDelete removes an event; only the creator may delete. A repeat
// delete yields 404, which clients treat as already satisfied.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := s.repo.Delete(r.Context(), callerUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeRepoError(w, s, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSync accepts a batch of locally-pending events, creates each
// remotely, and returns the local→remote identifier mapping for every
// accepted record. Records that fail validation are silently omitted;
// the client keeps them pending.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req api.SyncRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	u := callerUser(r)
	resp := api.SyncResponse{Synced: []api.SyncedEvent{}}
	for _, item := range req.Events {
		draft := event.Draft{
			Title:       item.Title,
			Description: item.Description,
			Date:        item.Date,
			StartTime:   item.StartTime,
			EndTime:     item.EndTime,
			Location:    item.Location,
		}
		ev, err := s.repo.Create(r.Context(), u, draft)
		if err != nil {
			s.log.Warn("sync batch item rejected", "local_id", item.LocalID, "err", err)
			continue
		}
		resp.Synced = append(resp.Synced, api.SyncedEvent{
			LocalID:  item.LocalID,
			RemoteID: ev.ID,
			Event:    ev,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleWS hands the authenticated connection to the hub.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, callerUser(r))
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeRepoError(w http.ResponseWriter, s *Server, err error) {
	var ve *event.ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "not authorized for this event")
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	default:
		s.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
