package internal

import (
	"sort"
	"sync"
)

// DefaultHistoryLimit caps how many messages a room replays to new joiners.
// Older entries are evicted from memory and are not recoverable.
const DefaultHistoryLimit = 100

type roomState struct {
	members map[string]string // connection id -> display name
	history []Message
}

// RoomStore holds every live room: its membership and its bounded message
// history. A single RWMutex covers the whole store; rooms are small and the
// hot paths (append, roster snapshot) hold it only briefly.
type RoomStore struct {
	mu           sync.RWMutex
	rooms        map[string]*roomState
	historyLimit int
}

func NewRoomStore(historyLimit int) *RoomStore {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &RoomStore{
		rooms:        make(map[string]*roomState),
		historyLimit: historyLimit,
	}
}

// getOrCreate is the only path that brings a room into existence.
// Caller must hold the write lock.
func (s *RoomStore) getOrCreate(roomID string) *roomState {
	if room, exists := s.rooms[roomID]; exists {
		return room
	}
	room := &roomState{members: make(map[string]string)}
	s.rooms[roomID] = room
	return room
}

// AddMember inserts the connection into the room, creating the room lazily on
// first join. Adding an existing member only refreshes its name.
func (s *RoomStore) AddMember(roomID, connID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.getOrCreate(roomID)
	room.members[connID] = name
}

// RemoveMember drops the connection from the room. When the last member
// leaves the room is destroyed, history included; the return value reports
// that so callers can skip the roster broadcast.
func (s *RoomStore) RemoveMember(roomID, connID string) (destroyed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, exists := s.rooms[roomID]
	if !exists {
		return false
	}
	delete(room.members, connID)
	if len(room.members) == 0 {
		delete(s.rooms, roomID)
		return true
	}
	return false
}

// AppendMessage adds a message at the tail of the room's history, evicting
// from the head once the bound is exceeded. Returns false if the room no
// longer exists, which can happen when a send races a disconnect.
func (s *RoomStore) AppendMessage(roomID string, msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, exists := s.rooms[roomID]
	if !exists {
		return false
	}
	room.history = append(room.history, msg)
	if overflow := len(room.history) - s.historyLimit; overflow > 0 {
		// re-slicing keeps the append amortized O(1); the array is copied
		// only when append eventually outgrows its capacity.
		room.history = room.history[overflow:]
	}
	return true
}

// RecentHistory returns up to limit most recent messages in chronological
// order. The slice is a copy, so readers never observe a concurrent append.
func (s *RoomStore) RecentHistory(roomID string, limit int) []Message {
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, exists := s.rooms[roomID]
	if !exists {
		return []Message{}
	}
	history := room.history
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]Message, len(history))
	copy(out, history)
	return out
}

// Members returns a roster snapshot sorted by name for stable output.
func (s *RoomStore) Members(roomID string) []RoomUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, exists := s.rooms[roomID]
	if !exists {
		return nil
	}
	users := make([]RoomUser, 0, len(room.members))
	for id, name := range room.members {
		users = append(users, RoomUser{ID: id, Name: name})
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name == users[j].Name {
			return users[i].ID < users[j].ID
		}
		return users[i].Name < users[j].Name
	})
	return users
}

// MemberName looks up the display name snapshotted in the room's membership.
func (s *RoomStore) MemberName(roomID, connID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, exists := s.rooms[roomID]
	if !exists {
		return "", false
	}
	name, ok := room.members[connID]
	return name, ok
}

// Exists reports whether the room is live without creating it.
func (s *RoomStore) Exists(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[roomID]
	return ok
}

// Destroy removes the room and its history entirely.
func (s *RoomStore) Destroy(roomID string) {
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
}

// RoomCount is used by the stats endpoint.
func (s *RoomStore) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// MemberCounts returns roomID -> member count for the stats endpoint.
func (s *RoomStore) MemberCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int, len(s.rooms))
	for id, room := range s.rooms {
		counts[id] = len(room.members)
	}
	return counts
}
