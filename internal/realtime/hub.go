// Package realtime pushes live poll results to result-page viewers over WebSocket.
package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/livepoll/backend/internal/feed"
	"github.com/livepoll/backend/internal/live"
	"github.com/livepoll/backend/internal/results"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Events sent to viewers.
const (
	EventResults = "results"
	EventViewers = "viewers"
)

// room is the set of viewers of one session plus the subscriber feeding them.
// clients is guarded by Hub.mu. mu serializes subscribe and unsubscribe so a slow feed
// subscription only holds up its own session; closed is set once the room left the hub.
type room struct {
	clients    map[string]*Client
	subscriber *live.Subscriber

	mu     sync.Mutex
	closed bool
}

// Hub maintains session_id -> viewers. The first viewer of a session mounts a live.Subscriber
// and the last one to leave unmounts it, so a session is only followed while someone watches it.
type Hub struct {
	rooms    map[string]*room
	mu       sync.RWMutex
	listener feed.Listener
	loader   live.ResultsLoader
	logger   *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(listener feed.Listener, loader live.ResultsLoader, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[string]*room),
		listener: listener,
		loader:   loader,
		logger:   logger,
	}
}

// Register adds a client to a session room, subscribing to the session if it is the first viewer.
// The client receives the latest known results right away when there are any.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	r := h.rooms[c.SessionID]
	if r == nil {
		sessionID := c.SessionID
		r = &room{clients: make(map[string]*Client)}
		r.subscriber = live.NewSubscriber(h.listener, h.loader, func(res *results.SessionResults) {
			h.Broadcast(sessionID, EventResults, res)
		}, h.logger)
		h.rooms[sessionID] = r
	}
	r.clients[c.ID] = c
	count := len(r.clients)
	h.mu.Unlock()

	// The feed subscription may be a network round trip; only this room waits for it.
	r.mu.Lock()
	var err error
	if !r.closed {
		err = r.subscriber.Subscribe(c.SessionID)
	}
	r.mu.Unlock()
	if err != nil {
		h.logger.Warn("live subscribe failed", zap.String("session_id", c.SessionID), zap.Error(err))
		h.Unregister(c)
		return err
	}

	if latest := r.subscriber.Latest(); latest != nil {
		h.send(c, EventResults, latest)
	}
	h.Broadcast(c.SessionID, EventViewers, map[string]int{"count": count})
	h.logger.Debug("viewer joined session", zap.String("client_id", c.ID), zap.String("session_id", c.SessionID))
	return nil
}

// Unregister removes a client. The session's subscriber is stopped when the last viewer leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	var (
		count int
		stop  *room
	)
	if r, ok := h.rooms[c.SessionID]; ok {
		if _, member := r.clients[c.ID]; !member {
			h.mu.Unlock()
			return
		}
		delete(r.clients, c.ID)
		count = len(r.clients)
		if count == 0 {
			delete(h.rooms, c.SessionID)
			stop = r
		}
	}
	h.mu.Unlock()

	// Unsubscribe waits for the refresh loop, whose sink takes h.mu.
	if stop != nil {
		stop.close()
	} else if count > 0 {
		h.Broadcast(c.SessionID, EventViewers, map[string]int{"count": count})
	}
	h.logger.Debug("viewer left session", zap.String("client_id", c.ID), zap.String("session_id", c.SessionID))
}

// close stops the room's subscriber for good. A Register racing with it will not resubscribe.
func (r *room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.subscriber.Unsubscribe()
}

// Broadcast sends a message to every viewer of a session on this instance.
func (h *Hub) Broadcast(sessionID string, event string, payload interface{}) {
	msg, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	r := h.rooms[sessionID]
	if r == nil {
		return
	}
	for _, c := range r.clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// ViewerCount returns the number of connected viewers of a session.
func (h *Hub) ViewerCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r := h.rooms[sessionID]; r != nil {
		return len(r.clients)
	}
	return 0
}

// Latest returns the most recent results pushed to a session's viewers, or nil.
func (h *Hub) Latest(sessionID string) *results.SessionResults {
	h.mu.RLock()
	r := h.rooms[sessionID]
	h.mu.RUnlock()
	if r == nil {
		return nil
	}
	return r.subscriber.Latest()
}

// Close unsubscribes every room. Connected clients are left to time out.
func (h *Hub) Close() {
	h.mu.Lock()
	rooms := make([]*room, 0, len(h.rooms))
	for id, r := range h.rooms {
		rooms = append(rooms, r)
		delete(h.rooms, id)
	}
	h.mu.Unlock()
	for _, r := range rooms {
		r.close()
	}
}

func (h *Hub) send(c *Client, event string, payload interface{}) {
	msg, ok := encode(event, payload)
	if !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func encode(event string, payload interface{}) (WSMessage, bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		return WSMessage{}, false
	}
	return WSMessage{Event: event, Data: data}, true
}
