package internal

import "encoding/json"

// Every frame on the wire is an envelope: the event name plus an
// event-specific data object. Both directions use the same shape.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// inbound event names
const (
	EventJoin         = "join"
	EventMessage      = "message"
	EventTyping       = "typing"
	EventStopTyping   = "stopTyping"
	EventJoinCall     = "join-call"
	EventLeave        = "leave"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
)

// outbound event names
const (
	EventUsers          = "users"
	EventHistory        = "history"
	EventPeerJoinedCall = "peer-joined-call"
)

// FileRef is the descriptor the upload endpoint hands out. The relay never
// looks past these fields; the blob itself lives on disk.
type FileRef struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	Mimetype string `json:"mimetype"`
	Size     int64  `json:"size"`
}

// Message is one chat entry in a room's history. UserName is snapshotted at
// send time so renames or disconnects don't rewrite old history.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	Files     []FileRef `json:"files"`
	Time      int64     `json:"time"` // unix milliseconds
	Delivered bool      `json:"delivered"`
}

// RoomUser is one entry in the roster pushed with every membership change.
type RoomUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type joinRequest struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

type messageRequest struct {
	Text  string    `json:"text"`
	Files []FileRef `json:"files"`
}

// encodeEvent wraps data in an envelope and marshals it for the send queues.
func encodeEvent(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
