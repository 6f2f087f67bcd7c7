// Package remote is the HTTP client for the remote event service. It
// implements the consumer side of the service contract: list, create,
// update, delete, and bulk sync, with HTTP failures mapped onto the
// typed error taxonomy the engine branches on.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/roach88/honeycal/internal/api"
	"github.com/roach88/honeycal/internal/event"
	"github.com/roach88/honeycal/internal/session"
)

// Client talks to the remote event service.
type Client struct {
	baseURL string
	http    *http.Client
	creds   session.Source
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client. Used by tests and
// by callers that need custom transport settings.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the service at baseURL (e.g.
// "https://cal.example.com/api"). The credential is fetched from creds
// per request so a refreshed session takes effect without reconnecting.
func New(baseURL string, creds session.Source, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		creds:   creds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns all events owned by the caller or the caller's paired
// partner, in the service's canonical order.
func (c *Client) List(ctx context.Context) ([]event.Event, error) {
	var wire []api.Event
	if err := c.do(ctx, http.MethodGet, "/events", nil, &wire); err != nil {
		return nil, err
	}
	events := make([]event.Event, 0, len(wire))
	for _, we := range wire {
		events = append(events, we.Domain())
	}
	return events, nil
}

// Create submits a new event and returns the persisted record, including
// the server-assigned identifier and creator display name.
func (c *Client) Create(ctx context.Context, draft event.Draft) (event.Event, error) {
	var wire api.Event
	if err := c.do(ctx, http.MethodPost, "/events", draft, &wire); err != nil {
		return event.Event{}, err
	}
	return wire.Domain(), nil
}

// Update patches the remote record. Fails with ErrNotFound if no such
// record exists and ErrForbidden if the caller is not the creator.
func (c *Client) Update(ctx context.Context, remoteID string, patch event.Patch) (event.Event, error) {
	var wire api.Event
	if err := c.do(ctx, http.MethodPut, "/events/"+remoteID, patch, &wire); err != nil {
		return event.Event{}, err
	}
	return wire.Domain(), nil
}

// Delete removes the remote record. Deletion is not idempotent on the
// service side: a second delete yields ErrNotFound, which callers treat
// as already satisfied.
func (c *Client) Delete(ctx context.Context, remoteID string) error {
	return c.do(ctx, http.MethodDelete, "/events/"+remoteID, nil, nil)
}

// SyncBatch submits locally-pending events and returns the mapping from
// submitted local identifier to assigned remote identifier for every
// record the service accepted. Omitted records remain pending.
func (c *Client) SyncBatch(ctx context.Context, pending []event.Event) (map[int64]string, error) {
	req := api.SyncRequest{Events: make([]api.SyncItem, 0, len(pending))}
	for _, ev := range pending {
		req.Events = append(req.Events, api.SyncItem{
			LocalID:     ev.ID.Local,
			Title:       ev.Title,
			Description: ev.Description,
			Date:        ev.Date,
			StartTime:   ev.StartTime,
			EndTime:     ev.EndTime,
			Location:    ev.Location,
		})
	}

	var resp api.SyncResponse
	if err := c.do(ctx, http.MethodPost, "/events/sync", req, &resp); err != nil {
		return nil, err
	}

	assigned := make(map[int64]string, len(resp.Synced))
	for _, se := range resp.Synced {
		assigned[se.LocalID] = se.RemoteID
	}
	return assigned, nil
}

// do issues one request with the bearer credential attached and decodes
// the response into out (when non-nil). Transport failures become
// UnreachableError; non-2xx statuses map to the error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	cred, err := c.creds.Credential()
	if err != nil {
		return fmt.Errorf("credential: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+string(cred))

	resp, err := c.http.Do(req)
	if err != nil {
		return &UnreachableError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(method+" "+path, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UnreachableError{Op: method + " " + path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// statusError maps a non-2xx response to the typed taxonomy. Server-side
// 5xx failures count as unreachable: from the engine's point of view they
// are indistinguishable from the service being down.
func statusError(op string, resp *http.Response) error {
	msg := readErrorMessage(resp.Body)
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if msg == "" {
			msg = resp.Status
		}
		return &ValidationError{Message: msg}
	default:
		return &UnreachableError{Op: op, Err: fmt.Errorf("unexpected status %s: %s", resp.Status, msg)}
	}
}

func readErrorMessage(body io.Reader) string {
	var envelope api.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&envelope); err != nil {
		return ""
	}
	return envelope.Error
}
