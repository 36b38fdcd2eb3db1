package internal

import (
	"strings"
	"sync"
)

// DefaultRoom is where a join with an empty room id lands.
const DefaultRoom = "lobby"

type session struct {
	room string
	name string
}

// SessionRegistry maps a connection id to its current room and display name.
// It is the only place join defaults are applied, so the rest of the router
// can assume both fields are already resolved.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]session)}
}

// Join records the connection's room and name and returns both after
// normalization. Re-joining the same room just refreshes the name.
func (r *SessionRegistry) Join(connID, roomID, name string) (string, string) {
	room := NormalizeRoomID(roomID)
	resolved := strings.TrimSpace(name)
	if resolved == "" {
		resolved = placeholderName(connID)
	}
	r.mu.Lock()
	r.sessions[connID] = session{room: room, name: resolved}
	r.mu.Unlock()
	return room, resolved
}

// CurrentRoom reports the room the connection joined, if any. Handlers other
// than join resolve this first and silently drop the event when ok is false.
func (r *SessionRegistry) CurrentRoom(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s.room, ok
}

// Name returns the display name recorded at join time.
func (r *SessionRegistry) Name(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s.name, ok
}

// Leave drops the room association. Called on an explicit leave event and on
// transport disconnect; both may race an in-flight message, which then
// resolves to a no-op.
func (r *SessionRegistry) Leave(connID string) {
	r.mu.Lock()
	delete(r.sessions, connID)
	r.mu.Unlock()
}

// NormalizeRoomID trims and lower-cases a user-supplied room id so "Lobby"
// and " lobby " address the same room. Empty input falls back to DefaultRoom.
func NormalizeRoomID(roomID string) string {
	room := strings.ToLower(strings.TrimSpace(roomID))
	if room == "" {
		return DefaultRoom
	}
	return room
}

func placeholderName(connID string) string {
	short := connID
	if len(short) > 6 {
		short = short[:6]
	}
	return "User " + short
}
