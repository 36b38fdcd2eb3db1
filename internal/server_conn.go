package internal

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// pingPeriod/pongWait mirror the transport liveness the protocol was
	// designed around: heartbeat every 25s, peer declared dead after 60s.
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	// signaling payloads carry SDP blobs, which run well past chat-sized
	// frames.
	maxMsgSize = 32 * 1024

	sendQueueSize = 256
)

// Client wraps one websocket connection with a buffered send queue. The hub
// only ever talks to the queue; the pumps own the socket. sock may be nil in
// tests, which exercise the queue directly.
type Client struct {
	id     string
	sock   *websocket.Conn
	send   chan []byte
	closed bool // guarded by the hub's mutex
}

func newClient(id string, sock *websocket.Conn) *Client {
	return &Client{
		id:   id,
		sock: sock,
		send: make(chan []byte, sendQueueSize),
	}
}

// ID returns the server-assigned connection id.
func (c *Client) ID() string {
	return c.id
}

// trySend queues a payload without blocking. A full queue means the peer is
// not keeping up; the caller decides whether that costs the connection.
func (c *Client) trySend(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) readPump(hub *Hub) {
	defer func() {
		// socket death is the single disconnect signal; all room and
		// session cleanup hangs off it.
		hub.handleDisconnect(c)
		_ = c.sock.Close()
	}()
	c.sock.SetReadLimit(maxMsgSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := c.sock.ReadMessage()
		if err != nil {
			// normal close or read error, deferred cleanup handles it.
			break
		}
		hub.dispatch(c, payload)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.sock.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the queue; ask the peer to close too.
				_ = c.sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
