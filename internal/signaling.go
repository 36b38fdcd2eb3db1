package internal

import (
	"encoding/json"
	"strconv"
)

// relaySignal forwards an offer/answer/ice-candidate payload to the peer
// named in its "to" field, stamped with the sender's id. The payload is kept
// as raw JSON end to end: the relay routes it, it never reads it. A missing
// or disconnected target is a silent drop; the peer may simply have gone away
// mid-negotiation.
func (h *Hub) relaySignal(c *Client, event string, data json.RawMessage) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		h.metrics.IncDropped()
		return
	}
	var to string
	if raw, ok := fields["to"]; ok {
		_ = json.Unmarshal(raw, &to)
	}
	if to == "" {
		h.metrics.IncDropped()
		return
	}
	delete(fields, "to")
	fields["from"] = json.RawMessage(strconv.Quote(c.id))
	if h.sendTo(to, event, fields) {
		h.metrics.IncSignal()
	}
}
