package internal

import "sync"

// CallTracker remembers which connections announced join-call and in which
// room. The signaling relay itself stays store-less; this roster only feeds
// the stats endpoint.
type CallTracker struct {
	mu     sync.Mutex
	inCall map[string]string // connection id -> room id
}

func NewCallTracker() *CallTracker {
	return &CallTracker{inCall: make(map[string]string)}
}

func (t *CallTracker) JoinCall(connID, roomID string) {
	t.mu.Lock()
	t.inCall[connID] = roomID
	t.mu.Unlock()
}

// Leave clears call participation; safe to call for connections that never
// joined a call.
func (t *CallTracker) Leave(connID string) {
	t.mu.Lock()
	delete(t.inCall, connID)
	t.mu.Unlock()
}

func (t *CallTracker) InCall(connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inCall[connID]
	return ok
}

// CountForRoom reports how many connections are in the room's call.
func (t *CallTracker) CountForRoom(roomID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, room := range t.inCall {
		if room == roomID {
			count++
		}
	}
	return count
}
