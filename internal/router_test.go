package internal

import (
	"encoding/json"
	"testing"
)

func newTestHub() *Hub {
	return NewHub(0, false, nil)
}

func addTestClient(h *Hub, id string) *Client {
	c := newClient(id, nil)
	h.addClient(c)
	return c
}

func sendFrame(t *testing.T, h *Hub, c *Client, event string, data any) {
	t.Helper()
	payload, err := encodeEvent(event, data)
	if err != nil {
		t.Fatalf("encode %s: %v", event, err)
	}
	h.dispatch(c, payload)
}

func joinRoom(t *testing.T, h *Hub, c *Client, room, name string) {
	t.Helper()
	sendFrame(t, h, c, EventJoin, joinRequest{RoomID: room, UserName: name})
}

func nextEvent(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case payload := <-c.send:
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatalf("conn %s: bad frame %s: %v", c.id, payload, err)
		}
		return env
	default:
		t.Fatalf("conn %s: expected an event, queue is empty", c.id)
		return Envelope{}
	}
}

func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.send:
		t.Fatalf("conn %s: unexpected event %s", c.id, payload)
	default:
	}
}

func drainEvents(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func decodeUsers(t *testing.T, env Envelope) []RoomUser {
	t.Helper()
	if env.Event != EventUsers {
		t.Fatalf("expected %s event, got %s", EventUsers, env.Event)
	}
	var users []RoomUser
	if err := json.Unmarshal(env.Data, &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	return users
}

func TestJoinBroadcastAndDisconnectCleanup(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h, "conn-a")
	bob := addTestClient(h, "conn-b")

	joinRoom(t, h, alice, "lobby", "Alice")
	users := decodeUsers(t, nextEvent(t, alice))
	if len(users) != 1 || users[0].ID != "conn-a" || users[0].Name != "Alice" {
		t.Fatalf("unexpected roster after first join: %+v", users)
	}
	if env := nextEvent(t, alice); env.Event != EventHistory {
		t.Fatalf("joiner should receive history, got %s", env.Event)
	}

	joinRoom(t, h, bob, "Lobby", "Bob")
	users = decodeUsers(t, nextEvent(t, alice))
	if len(users) != 2 {
		t.Fatalf("alice should see both members, got %+v", users)
	}
	users = decodeUsers(t, nextEvent(t, bob))
	if len(users) != 2 || users[0].Name != "Alice" || users[1].Name != "Bob" {
		t.Fatalf("roster should be name-sorted, got %+v", users)
	}
	if env := nextEvent(t, bob); env.Event != EventHistory {
		t.Fatalf("bob should receive history, got %s", env.Event)
	}

	h.handleDisconnect(bob)
	users = decodeUsers(t, nextEvent(t, alice))
	if len(users) != 1 || users[0].Name != "Alice" {
		t.Fatalf("alice should see bob gone, got %+v", users)
	}
	if h.client("conn-b") != nil {
		t.Fatalf("bob should be removed from the registry")
	}

	h.handleDisconnect(alice)
	if h.rooms.Exists("lobby") {
		t.Fatalf("room should be destroyed with its last member")
	}
	if h.ConnCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", h.ConnCount())
	}
}

func TestMessageFanOutAndHistoryReplay(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h, "conn-a")
	bob := addTestClient(h, "conn-b")
	joinRoom(t, h, alice, "lobby", "Alice")
	drainEvents(alice)

	sendFrame(t, h, alice, EventMessage, messageRequest{Text: "hello"})
	env := nextEvent(t, alice)
	if env.Event != EventMessage {
		t.Fatalf("expected message event, got %s", env.Event)
	}
	var msg Message
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.ID == "" || msg.UserID != "conn-a" || msg.UserName != "Alice" || msg.Text != "hello" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if !msg.Delivered {
		t.Fatalf("relayed messages are always marked delivered")
	}
	if msg.Files == nil {
		t.Fatalf("files must serialize as an empty array, not null")
	}
	if msg.Time == 0 {
		t.Fatalf("message should carry a timestamp")
	}

	// a later joiner gets the message replayed
	joinRoom(t, h, bob, "lobby", "Bob")
	drainEvents(alice)
	if env := nextEvent(t, bob); env.Event != EventUsers {
		t.Fatalf("expected users first, got %s", env.Event)
	}
	env = nextEvent(t, bob)
	if env.Event != EventHistory {
		t.Fatalf("expected history, got %s", env.Event)
	}
	var history []Message
	if err := json.Unmarshal(env.Data, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 || history[0].Text != "hello" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestMessageBeforeJoinDropped(t *testing.T) {
	h := newTestHub()
	c := addTestClient(h, "conn-x")

	sendFrame(t, h, c, EventMessage, messageRequest{Text: "premature"})
	expectNoEvent(t, c)
	if h.rooms.RoomCount() != 0 {
		t.Fatalf("a dropped message must not create a room")
	}
}

func TestUnknownEventDropped(t *testing.T) {
	h := newTestHub()
	c := addTestClient(h, "conn-x")
	joinRoom(t, h, c, "lobby", "Alice")
	drainEvents(c)

	sendFrame(t, h, c, "bogus-event", map[string]string{"k": "v"})
	expectNoEvent(t, c)

	h.dispatch(c, []byte("{not json"))
	expectNoEvent(t, c)
}

func TestTypingExcludesSender(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h, "conn-a")
	bob := addTestClient(h, "conn-b")
	cara := addTestClient(h, "conn-c")
	joinRoom(t, h, alice, "lobby", "Alice")
	joinRoom(t, h, bob, "lobby", "Bob")
	joinRoom(t, h, cara, "lobby", "Cara")
	drainEvents(alice)
	drainEvents(bob)
	drainEvents(cara)

	sendFrame(t, h, alice, EventTyping, nil)
	expectNoEvent(t, alice)
	for _, peer := range []*Client{bob, cara} {
		env := nextEvent(t, peer)
		if env.Event != EventTyping {
			t.Fatalf("expected typing, got %s", env.Event)
		}
		var user RoomUser
		if err := json.Unmarshal(env.Data, &user); err != nil {
			t.Fatalf("decode typing: %v", err)
		}
		if user.ID != "conn-a" || user.Name != "Alice" {
			t.Fatalf("unexpected typing payload: %+v", user)
		}
	}

	sendFrame(t, h, alice, EventStopTyping, nil)
	expectNoEvent(t, alice)
	env := nextEvent(t, bob)
	if env.Event != EventStopTyping {
		t.Fatalf("expected stopTyping, got %s", env.Event)
	}
	var id string
	if err := json.Unmarshal(env.Data, &id); err != nil || id != "conn-a" {
		t.Fatalf("stopTyping should carry the sender id, got %s (%v)", env.Data, err)
	}
	drainEvents(cara)
}

func TestJoinCallNotifiesPeers(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h, "conn-a")
	bob := addTestClient(h, "conn-b")
	joinRoom(t, h, alice, "lobby", "Alice")
	joinRoom(t, h, bob, "lobby", "Bob")
	drainEvents(alice)
	drainEvents(bob)

	sendFrame(t, h, alice, EventJoinCall, nil)
	expectNoEvent(t, alice)
	env := nextEvent(t, bob)
	if env.Event != EventPeerJoinedCall {
		t.Fatalf("expected peer-joined-call, got %s", env.Event)
	}
	var user RoomUser
	if err := json.Unmarshal(env.Data, &user); err != nil || user.ID != "conn-a" {
		t.Fatalf("unexpected payload %s (%v)", env.Data, err)
	}
	if !h.calls.InCall("conn-a") {
		t.Fatalf("caller should be tracked as in-call")
	}
}

func TestSignalRelayedToTargetOnly(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h, "conn-a")
	bob := addTestClient(h, "conn-b")
	cara := addTestClient(h, "conn-c")
	joinRoom(t, h, alice, "lobby", "Alice")
	joinRoom(t, h, bob, "lobby", "Bob")
	joinRoom(t, h, cara, "lobby", "Cara")
	drainEvents(alice)
	drainEvents(bob)
	drainEvents(cara)

	sendFrame(t, h, alice, EventOffer, map[string]any{
		"to":  "conn-b",
		"sdp": "v=0 fake-session-description",
	})

	env := nextEvent(t, bob)
	if env.Event != EventOffer {
		t.Fatalf("expected offer, got %s", env.Event)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &fields); err != nil {
		t.Fatalf("decode offer: %v", err)
	}
	if _, ok := fields["to"]; ok {
		t.Fatalf("routing field must be stripped before forwarding")
	}
	var from, sdp string
	if err := json.Unmarshal(fields["from"], &from); err != nil || from != "conn-a" {
		t.Fatalf("offer should be stamped with the sender id, got %s", fields["from"])
	}
	if err := json.Unmarshal(fields["sdp"], &sdp); err != nil || sdp != "v=0 fake-session-description" {
		t.Fatalf("payload body must pass through untouched, got %s", fields["sdp"])
	}

	// nobody else sees the signal
	expectNoEvent(t, alice)
	expectNoEvent(t, cara)
}

func TestSignalToMissingPeerDropped(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h, "conn-a")
	joinRoom(t, h, alice, "lobby", "Alice")
	drainEvents(alice)

	sendFrame(t, h, alice, EventICECandidate, map[string]any{"to": "conn-ghost", "candidate": "x"})
	expectNoEvent(t, alice)

	// a signal with no target is equally dropped
	sendFrame(t, h, alice, EventAnswer, map[string]any{"sdp": "blob"})
	expectNoEvent(t, alice)
}

func TestRejoinLeavesPreviousRoom(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h, "conn-a")
	bob := addTestClient(h, "conn-b")
	joinRoom(t, h, alice, "room1", "Alice")
	joinRoom(t, h, bob, "room1", "Bob")
	sendFrame(t, h, alice, EventJoinCall, nil)
	drainEvents(alice)
	drainEvents(bob)

	joinRoom(t, h, alice, "room2", "Alice")

	users := decodeUsers(t, nextEvent(t, bob))
	if len(users) != 1 || users[0].Name != "Bob" {
		t.Fatalf("room1 roster should shrink to bob, got %+v", users)
	}
	if room, _ := h.sessions.CurrentRoom("conn-a"); room != "room2" {
		t.Fatalf("alice should now be in room2, got %q", room)
	}
	members := h.rooms.Members("room1")
	if len(members) != 1 || members[0].ID != "conn-b" {
		t.Fatalf("alice should be gone from room1, got %+v", members)
	}
	if h.calls.InCall("conn-a") {
		t.Fatalf("moving rooms should end call participation")
	}
}

func TestMultiRoomPolicyKeepsOldMembership(t *testing.T) {
	h := NewHub(0, true, nil)
	alice := addTestClient(h, "conn-a")
	bob := addTestClient(h, "conn-b")
	joinRoom(t, h, alice, "room1", "Alice")
	joinRoom(t, h, bob, "room1", "Bob")
	drainEvents(alice)
	drainEvents(bob)

	joinRoom(t, h, alice, "room2", "Alice")

	if members := h.rooms.Members("room1"); len(members) != 2 {
		t.Fatalf("legacy policy should keep the old membership, got %+v", members)
	}
	expectNoEvent(t, bob)
}

func TestLeaveKeepsConnectionOpen(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h, "conn-a")
	bob := addTestClient(h, "conn-b")
	joinRoom(t, h, alice, "lobby", "Alice")
	joinRoom(t, h, bob, "lobby", "Bob")
	drainEvents(alice)
	drainEvents(bob)

	sendFrame(t, h, alice, EventLeave, nil)

	users := decodeUsers(t, nextEvent(t, bob))
	if len(users) != 1 || users[0].Name != "Bob" {
		t.Fatalf("bob should see alice gone, got %+v", users)
	}
	if h.client("conn-a") == nil {
		t.Fatalf("leave must not close the connection")
	}
	// back in the unjoined state: messages are dropped until the next join
	sendFrame(t, h, alice, EventMessage, messageRequest{Text: "into the void"})
	expectNoEvent(t, alice)
	expectNoEvent(t, bob)
}

func TestMessageRateLimit(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h, "conn-a")
	joinRoom(t, h, alice, "lobby", "Alice")
	drainEvents(alice)

	for i := 0; i < messageRateBurst; i++ {
		sendFrame(t, h, alice, EventMessage, messageRequest{Text: "spam"})
		if env := nextEvent(t, alice); env.Event != EventMessage {
			t.Fatalf("send %d: expected message, got %s", i, env.Event)
		}
	}
	sendFrame(t, h, alice, EventMessage, messageRequest{Text: "one too many"})
	expectNoEvent(t, alice)
}

func TestQueueToDroppedClient(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h, "conn-a")
	bob := addTestClient(h, "conn-b")
	joinRoom(t, h, alice, "lobby", "Alice")
	joinRoom(t, h, bob, "lobby", "Bob")
	drainEvents(alice)
	drainEvents(bob)

	// a disconnect can land between the registry lookup and the send; queueing
	// to the already-dropped client must fail quietly, never panic.
	target := h.client("conn-b")
	h.dropClient(target)

	payload, err := encodeEvent(EventMessage, messageRequest{Text: "late"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if h.queue(target, payload) {
		t.Fatalf("queue to a dropped client should report failure")
	}

	// fan-out still works for everyone else; the dead member is skipped
	sendFrame(t, h, alice, EventMessage, messageRequest{Text: "still here"})
	if env := nextEvent(t, alice); env.Event != EventMessage {
		t.Fatalf("expected message, got %s", env.Event)
	}
}

func TestSlowConsumerDropped(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h, "conn-a")
	bob := addTestClient(h, "conn-b")
	joinRoom(t, h, alice, "lobby", "Alice")
	joinRoom(t, h, bob, "lobby", "Bob")
	drainEvents(alice)
	drainEvents(bob)

	for i := 0; i < sendQueueSize; i++ {
		if !bob.trySend([]byte("backlog")) {
			t.Fatalf("queue should accept %d frames", sendQueueSize)
		}
	}

	sendFrame(t, h, alice, EventMessage, messageRequest{Text: "hello"})

	// alice still gets the message; bob loses the connection, not the room
	if env := nextEvent(t, alice); env.Event != EventMessage {
		t.Fatalf("expected message, got %s", env.Event)
	}
	if h.client("conn-b") != nil {
		t.Fatalf("slow consumer should be dropped from the registry")
	}
	// dropClient is idempotent when the read pump cleanup fires afterwards
	h.handleDisconnect(bob)
}
