package server

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/roach88/honeycal/internal/api"
)

// Hub relays realtime frames between partner rooms. Each user has a
// private room; a connection sits in its own user's room and may join its
// partner's room to receive partner-originated broadcasts. Delivery is
// best-effort: a slow or dead connection is dropped, never retried.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[int64]map[*hubConn]struct{}
}

type hubConn struct {
	conn   *websocket.Conn
	userID int64

	writeMu sync.Mutex
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:   log,
		rooms: make(map[int64]map[*hubConn]struct{}),
		upgrader: websocket.Upgrader{
			// The HTTP layer has already authenticated the token;
			// cross-origin browser clients are expected.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and pumps frames for one connection. The
// caller has already been authenticated.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, u User) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Info("websocket upgrade failed", "user_id", u.ID, "err", err)
		return
	}

	hc := &hubConn{conn: conn, userID: u.ID}
	h.join(u.ID, hc)
	h.log.Info("realtime client connected", "user_id", u.ID)

	defer func() {
		h.leaveAll(hc)
		conn.Close()
		h.log.Info("realtime client disconnected", "user_id", u.ID)
	}()

	for {
		var frame api.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case api.FrameJoinPartner:
			if frame.PartnerID != 0 {
				h.join(frame.PartnerID, hc)
			}
		case api.FrameEventCreated, api.FrameEventUpdated, api.FrameEventDeleted:
			if frame.PartnerID != 0 {
				h.broadcast(frame.PartnerID, hc, frame)
			}
		default:
			h.log.Debug("ignoring unknown frame", "type", frame.Type, "user_id", u.ID)
		}
	}
}

func (h *Hub) join(room int64, hc *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*hubConn]struct{})
	}
	h.rooms[room][hc] = struct{}{}
}

func (h *Hub) leaveAll(hc *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, conns := range h.rooms {
		delete(conns, hc)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// broadcast relays a frame to every other connection in the room. The
// sender is excluded so a client never echoes its own change back.
func (h *Hub) broadcast(room int64, from *hubConn, frame api.Frame) {
	h.mu.Lock()
	conns := make([]*hubConn, 0, len(h.rooms[room]))
	for hc := range h.rooms[room] {
		if hc != from {
			conns = append(conns, hc)
		}
	}
	h.mu.Unlock()

	for _, hc := range conns {
		hc.writeMu.Lock()
		err := hc.conn.WriteJSON(frame)
		hc.writeMu.Unlock()
		if err != nil {
			h.log.Debug("broadcast write failed", "room", room, "user_id", hc.userID, "err", err)
		}
	}
}
