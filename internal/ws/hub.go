package ws

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Ranaran315/campus-backend-sub000/internal/models"
	"github.com/Ranaran315/campus-backend-sub000/internal/observability"
)

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one registered session connection.
type Client struct {
	conn    Conn
	info    ConnInfo
	writeMu sync.Mutex
	rooms   []string
}

// UserID returns the authenticated user id the connection belongs to.
func (c *Client) UserID() string { return c.info.UserID }

// Info returns the connection metadata.
func (c *Client) Info() ConnInfo { return c.info }

func (c *Client) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub is the presence registry and delivery dispatcher: an in-memory
// directory of authenticated connections keyed by user id, plus group
// broadcast rooms. Push is a latency optimization only; the durable store is
// always the source of truth, so a failed or skipped delivery is never an
// error.
type Hub struct {
	mu    sync.RWMutex
	users map[string]*Client          // user id -> live connection, last wins
	rooms map[string]map[*Client]bool // group id -> subscribed connections
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		users: make(map[string]*Client),
		rooms: make(map[string]map[*Client]bool),
	}
}

// Register records the connection as the user's live one. An existing entry
// for the same user is overwritten and its connection closed: the newest
// connection wins.
func (h *Hub) Register(conn Conn, info ConnInfo) *Client {
	c := &Client{conn: conn, info: info}

	h.mu.Lock()
	old := h.users[info.UserID]
	h.users[info.UserID] = c
	if old != nil {
		h.removeFromRoomsLocked(old)
	}
	h.mu.Unlock()

	if old != nil {
		_ = old.conn.Close()
		observability.DecWSActive("session")
		log.Printf("superseded session for user %s (conn %s)", info.UserID, old.info.ConnID)
	}
	observability.IncWSActive("session")
	return c
}

// Unregister removes the connection from the directory and its rooms, but
// only while the directory still points at it. A stale teardown racing a
// fresher reconnect must not clobber the live entry. The gauge mirrors the
// directory: it moves only when an entry is actually released, so the
// eviction path and the read loop's deferred teardown together decrement
// once, not twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	released := h.users[c.info.UserID] == c
	if released {
		delete(h.users, c.info.UserID)
	}
	h.removeFromRoomsLocked(c)
	h.mu.Unlock()

	_ = c.conn.Close()
	if released {
		observability.DecWSActive("session")
	}
}

func (h *Hub) removeFromRoomsLocked(c *Client) {
	for _, groupID := range c.rooms {
		if room, ok := h.rooms[groupID]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, groupID)
			}
		}
	}
	c.rooms = nil
}

// JoinRoom subscribes the connection to a group's broadcast room. Rooms are a
// property of the connection: there is no explicit leave, teardown drops them.
func (h *Hub) JoinRoom(c *Client, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[groupID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[groupID] = room
	}
	if !room[c] {
		room[c] = true
		c.rooms = append(c.rooms, groupID)
	}
}

// IsOnline reports whether the user has a live connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.users[userID] != nil
}

// SendToUser pushes the payload to the user's live connection. Returns false
// when the user is offline; the caller relies on durable storage for later
// retrieval.
func (h *Hub) SendToUser(userID string, payload models.EventPayload) bool {
	h.mu.RLock()
	c := h.users[userID]
	h.mu.RUnlock()
	if c == nil {
		return false
	}

	data, err := models.EncodeEvent(payload)
	if err != nil {
		log.Printf("encode %s event: %v", payload.Kind(), err)
		return false
	}
	if err := c.write(data); err != nil {
		log.Printf("websocket write error for user %s: %v", userID, err)
		h.Unregister(c)
		observability.IncWSEvent("session", "ws_error")
		return false
	}
	observability.IncWSEvent("session", string(payload.Kind()))
	return true
}

// BroadcastToGroupRoom pushes the payload to every connection in the group's
// room. Best effort: membership was verified at connect time, not per
// broadcast, and write failures only evict the broken connection.
func (h *Hub) BroadcastToGroupRoom(groupID string, payload models.EventPayload) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[groupID]))
	for c := range h.rooms[groupID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}
	data, err := models.EncodeEvent(payload)
	if err != nil {
		log.Printf("encode %s event: %v", payload.Kind(), err)
		return
	}
	for _, c := range clients {
		if err := c.write(data); err != nil {
			log.Printf("websocket write error in room %s: %v", groupID, err)
			h.Unregister(c)
			observability.IncWSEvent("session", "ws_error")
		}
	}
	observability.IncWSEvent("session", string(payload.Kind()))
}

// SendAck delivers the connection-confirmed event to a specific connection.
func (h *Hub) SendAck(c *Client) error {
	data, err := models.EncodeEvent(models.ConnectedPayload{
		UserID:      c.info.UserID,
		DisplayName: c.info.DisplayName,
		ConnID:      c.info.ConnID,
	})
	if err != nil {
		return err
	}
	return c.write(data)
}
