package internal

import (
	"log"
	"sync"
	"time"
)

const (
	messageRateWindow = 3 * time.Second
	messageRateBurst  = 10
)

// Hub owns the connection registry and every shared piece of room state. All
// inbound events funnel through dispatch; all outbound fan-out goes through
// the non-blocking send helpers so no slow peer can stall another.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Client

	sessions *SessionRegistry
	rooms    *RoomStore
	calls    *CallTracker
	metrics  *Metrics
	limiter  *RateLimiter

	// multiRoom preserves the legacy re-join behavior: joining a second room
	// leaves the old membership in place and only moves the session pointer.
	// The default policy removes the connection from its previous room first.
	multiRoom bool
}

// NewHub builds a hub with empty state. historyLimit <= 0 falls back to
// DefaultHistoryLimit.
func NewHub(historyLimit int, multiRoom bool, metrics *Metrics) *Hub {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Hub{
		conns:     make(map[string]*Client),
		sessions:  NewSessionRegistry(),
		rooms:     NewRoomStore(historyLimit),
		calls:     NewCallTracker(),
		metrics:   metrics,
		limiter:   NewRateLimiter(messageRateBurst, messageRateWindow),
		multiRoom: multiRoom,
	}
}

// Rooms exposes the room store to the HTTP surface (stats, upload checks).
func (h *Hub) Rooms() *RoomStore {
	return h.rooms
}

// Calls exposes the call roster for the stats endpoint.
func (h *Hub) Calls() *CallTracker {
	return h.calls
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	h.metrics.IncConn()
}

func (h *Hub) client(connID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[connID]
}

// ConnCount reports the number of registered connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// dropClient removes the connection from the registry and closes its send
// queue exactly once. Safe to call from any path, including a failed fan-out
// racing the read pump's own cleanup. The close happens under h.mu: queue
// sends while holding the read lock, so a send can never interleave with the
// close here.
func (h *Hub) dropClient(c *Client) {
	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return
	}
	c.closed = true
	delete(h.conns, c.id)
	close(c.send)
	h.mu.Unlock()
	h.limiter.Forget(c.id)
	h.metrics.DecConn()
}

// sendTo queues one event for a single connection. Returns false when the
// target is not connected or its queue is full.
func (h *Hub) sendTo(connID, event string, data any) bool {
	target := h.client(connID)
	if target == nil {
		return false
	}
	payload, err := encodeEvent(event, data)
	if err != nil {
		log.Printf("encode %s event: %v", event, err)
		return false
	}
	return h.queue(target, payload)
}

// broadcastRoom delivers one event to every member of a room.
func (h *Hub) broadcastRoom(roomID, event string, data any) {
	h.broadcastRoomExcept(roomID, "", event, data)
}

// broadcastRoomExcept delivers to every room member except exceptID. The
// roster is snapshotted first, so delivery never holds the room store lock
// and a blocked peer only costs itself.
func (h *Hub) broadcastRoomExcept(roomID, exceptID, event string, data any) {
	members := h.rooms.Members(roomID)
	if len(members) == 0 {
		return
	}
	payload, err := encodeEvent(event, data)
	if err != nil {
		log.Printf("encode %s event: %v", event, err)
		return
	}
	for _, member := range members {
		if member.ID == exceptID {
			continue
		}
		if target := h.client(member.ID); target != nil {
			h.queue(target, payload)
		}
	}
}

// queue hands the payload to the client's send channel. A peer that cannot
// keep up is dropped rather than letting backpressure reach the room; its
// read pump then runs the usual disconnect cleanup. The closed check and the
// send share the read lock, so a concurrent dropClient waits for the write
// lock instead of closing the channel mid-send.
func (h *Hub) queue(c *Client, payload []byte) bool {
	h.mu.RLock()
	if c.closed {
		h.mu.RUnlock()
		return false
	}
	sent := c.trySend(payload)
	h.mu.RUnlock()
	if sent {
		return true
	}
	log.Printf("conn %s send queue full, dropping connection", c.id)
	h.dropClient(c)
	return false
}
