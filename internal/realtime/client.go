// Package realtime maintains the live notification channel between
// partners. It is a latency optimization over polling, not a reliability
// mechanism: frames are delivered at most once, unordered relative to the
// authoritative store, and the engine's next load cycle is always the
// authoritative path.
//
// Received partner frames are never applied directly; each one triggers a
// full reconciliation, which avoids a second merge path for push
// payloads.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roach88/honeycal/internal/api"
	"github.com/roach88/honeycal/internal/event"
	"github.com/roach88/honeycal/internal/session"
)

// Reloader triggers a full load-merge cycle. Implemented by
// engine.Engine.
type Reloader interface {
	LoadEvents(ctx context.Context) error
}

// Reconnect backoff bounds. The spec leaves reconnect unspecified beyond
// a connection-error log; bounded backoff is a documented hardening
// deviation.
const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
	reloadBudget = 30 * time.Second
)

// Client holds one persistent websocket connection, authenticated with
// the caller's session credential. On connect it joins the paired
// partner's room so partner-originated broadcasts arrive.
type Client struct {
	wsURL  string
	creds  session.Source
	reload Reloader
	log    *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	caller session.Caller
	closed bool
	done   chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger overrides the client's logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a realtime client for the websocket endpoint at wsURL
// (e.g. "wss://cal.example.com/ws").
func New(wsURL string, creds session.Source, reload Reloader, opts ...Option) *Client {
	c := &Client{
		wsURL:  wsURL,
		creds:  creds,
		reload: reload,
		log:    slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes the connection and starts the read loop with
// bounded reconnect. Called once after successful authentication; returns
// after the first dial attempt (success or not) and keeps retrying in the
// background until Close.
func (c *Client) Connect(ctx context.Context) error {
	caller, err := c.creds.CurrentCaller()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.caller = caller
	c.mu.Unlock()

	err = c.dial(ctx)
	if err != nil {
		c.log.Error("realtime connect failed, will retry", "err", err)
	}
	go c.run(ctx)
	return nil
}

// Close disconnects and stops reconnecting. Called on logout.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// EmitCreated broadcasts a confirmed remote create to the partner's room.
func (c *Client) EmitCreated(ev event.Event) { c.emit(api.FrameEventCreated, ev) }

// EmitUpdated broadcasts a confirmed remote update to the partner's room.
func (c *Client) EmitUpdated(ev event.Event) { c.emit(api.FrameEventUpdated, ev) }

// EmitDeleted broadcasts a confirmed remote delete to the partner's room.
func (c *Client) EmitDeleted(ev event.Event) { c.emit(api.FrameEventDeleted, ev) }

// emit sends one event frame tagged with the partner's room. Silently a
// no-op when disconnected or unpaired: no acknowledgement or redelivery,
// the partner's next load cycle catches up either way.
func (c *Client) emit(frameType string, ev event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.caller.Paired() {
		return
	}

	wire := api.FromDomain(ev)
	frame := api.Frame{
		Type:      frameType,
		ID:        uuid.NewString(),
		PartnerID: c.caller.PartnerID,
		Event:     &wire,
	}
	if err := c.conn.WriteJSON(frame); err != nil {
		c.log.Info("realtime emit failed", "type", frameType, "err", err)
	}
}

// dial connects, authenticates via the token query parameter, and joins
// the partner's room when paired.
func (c *Client) dial(ctx context.Context) error {
	cred, err := c.creds.Credential()
	if err != nil {
		return err
	}

	u, err := url.Parse(c.wsURL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("token", string(cred))
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return errors.New("realtime client closed")
	}
	c.conn = conn
	caller := c.caller
	c.mu.Unlock()

	if caller.Paired() {
		join := api.Frame{Type: api.FrameJoinPartner, PartnerID: caller.PartnerID}
		c.mu.Lock()
		err = conn.WriteJSON(join)
		c.mu.Unlock()
		if err != nil {
			return err
		}
	}

	c.log.Info("realtime connected", "user_id", caller.UserID, "paired", caller.Paired())
	return nil
}

// run reads frames until the connection drops, then reconnects with
// capped doubling backoff. Exits on Close or context cancellation.
func (c *Client) run(ctx context.Context) {
	backoff := reconnectMin
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		if conn != nil {
			c.readLoop(ctx, conn)
			backoff = reconnectMin
		}

		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		if err := c.dial(ctx); err != nil {
			c.log.Info("realtime reconnect failed", "backoff", backoff, "err", err)
			backoff *= 2
			if backoff > reconnectMax {
				backoff = reconnectMax
			}
		}
	}
}

// readLoop consumes frames from one connection until it fails. Each
// partner-originated change triggers a full reconciliation rather than an
// incremental patch.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		var frame api.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.log.Info("realtime connection lost", "err", err)
			}
			return
		}

		switch frame.Type {
		case api.FrameEventCreated, api.FrameEventUpdated, api.FrameEventDeleted:
			c.log.Debug("partner change received", "type", frame.Type, "frame_id", frame.ID)
			rctx, cancel := context.WithTimeout(ctx, reloadBudget)
			if err := c.reload.LoadEvents(rctx); err != nil {
				c.log.Error("reload after partner change failed", "err", err)
			}
			cancel()
		default:
			c.log.Debug("ignoring unknown frame", "type", frame.Type)
		}
	}
}
