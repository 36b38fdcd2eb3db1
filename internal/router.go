package internal

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// dispatch routes one inbound frame. Malformed frames and events that violate
// their precondition (anything but join before joining a room) are dropped
// without an error reply: a client talking out of turn is a user error, not a
// fault, and must never desynchronize shared state.
func (h *Hub) dispatch(c *Client, payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		h.metrics.IncDropped()
		return
	}
	switch env.Event {
	case EventJoin:
		h.handleJoin(c, env.Data)
	case EventMessage:
		h.handleMessage(c, env.Data)
	case EventTyping:
		h.handleTyping(c, EventTyping)
	case EventStopTyping:
		h.handleTyping(c, EventStopTyping)
	case EventJoinCall:
		h.handleJoinCall(c)
	case EventLeave:
		h.handleLeave(c)
	case EventOffer, EventAnswer, EventICECandidate:
		h.relaySignal(c, env.Event, env.Data)
	default:
		h.metrics.IncDropped()
	}
}

func (h *Hub) handleJoin(c *Client, data json.RawMessage) {
	var req joinRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			h.metrics.IncDropped()
			return
		}
	}
	if !h.multiRoom {
		// single-room policy: moving to another room is an implicit leave,
		// so the old room's roster stays truthful.
		if previous, ok := h.sessions.CurrentRoom(c.id); ok {
			target := NormalizeRoomID(req.RoomID)
			if previous != target {
				h.calls.Leave(c.id)
				if destroyed := h.rooms.RemoveMember(previous, c.id); !destroyed {
					h.broadcastRoom(previous, EventUsers, h.rooms.Members(previous))
				}
			}
		}
	}
	room, name := h.sessions.Join(c.id, req.RoomID, req.UserName)
	h.rooms.AddMember(room, c.id, name)

	h.broadcastRoom(room, EventUsers, h.rooms.Members(room))
	h.sendTo(c.id, EventHistory, h.rooms.RecentHistory(room, DefaultHistoryLimit))
}

func (h *Hub) handleMessage(c *Client, data json.RawMessage) {
	room, ok := h.sessions.CurrentRoom(c.id)
	if !ok {
		h.metrics.IncDropped()
		return
	}
	if !h.limiter.Allow(c.id) {
		h.metrics.IncDropped()
		return
	}
	var req messageRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			h.metrics.IncDropped()
			return
		}
	}
	name, ok := h.rooms.MemberName(room, c.id)
	if !ok {
		name = "Unknown"
	}
	files := req.Files
	if files == nil {
		files = []FileRef{}
	}
	msg := Message{
		ID:        uuid.NewString(),
		UserID:    c.id,
		UserName:  name,
		Text:      req.Text,
		Files:     files,
		Time:      time.Now().UnixMilli(),
		Delivered: true,
	}
	if !h.rooms.AppendMessage(room, msg) {
		// the room was destroyed between the session lookup and the append;
		// a message for a dead room is a correct no-op.
		h.metrics.IncDropped()
		return
	}
	h.metrics.IncMessage()
	h.broadcastRoom(room, EventMessage, msg)
}

// handleTyping covers both typing and stopTyping: stateless signals relayed
// to everyone in the room except the sender.
func (h *Hub) handleTyping(c *Client, event string) {
	room, ok := h.sessions.CurrentRoom(c.id)
	if !ok {
		h.metrics.IncDropped()
		return
	}
	if event == EventStopTyping {
		h.broadcastRoomExcept(room, c.id, event, c.id)
		return
	}
	name, _ := h.rooms.MemberName(room, c.id)
	h.broadcastRoomExcept(room, c.id, event, RoomUser{ID: c.id, Name: name})
}

func (h *Hub) handleJoinCall(c *Client) {
	room, ok := h.sessions.CurrentRoom(c.id)
	if !ok {
		h.metrics.IncDropped()
		return
	}
	name, _ := h.rooms.MemberName(room, c.id)
	h.calls.JoinCall(c.id, room)
	h.broadcastRoomExcept(room, c.id, EventPeerJoinedCall, RoomUser{ID: c.id, Name: name})
}

// handleLeave detaches the connection from its room but keeps the socket
// open; the client is back in the unjoined state.
func (h *Hub) handleLeave(c *Client) {
	h.cleanupMembership(c)
}

// handleDisconnect runs once per connection when its read pump exits.
func (h *Hub) handleDisconnect(c *Client) {
	h.cleanupMembership(c)
	h.dropClient(c)
}

func (h *Hub) cleanupMembership(c *Client) {
	room, ok := h.sessions.CurrentRoom(c.id)
	h.sessions.Leave(c.id)
	h.calls.Leave(c.id)
	if !ok {
		return
	}
	if destroyed := h.rooms.RemoveMember(room, c.id); destroyed {
		// the roster update is omitted entirely when the room died with its
		// last member.
		return
	}
	h.broadcastRoom(room, EventUsers, h.rooms.Members(room))
}
