package internal

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

type Metrics struct {
	activeConns atomic.Int64
	messages    atomic.Uint64
	signals     atomic.Uint64
	uploads     atomic.Uint64
	dropped     atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncConn() {
	m.activeConns.Add(1)
}

func (m *Metrics) DecConn() {
	m.activeConns.Add(-1)
}

func (m *Metrics) IncMessage() {
	m.messages.Add(1)
}

func (m *Metrics) IncSignal() {
	m.signals.Add(1)
}

func (m *Metrics) IncUpload() {
	m.uploads.Add(1)
}

func (m *Metrics) IncDropped() {
	m.dropped.Add(1)
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"active_connections":      m.activeConns.Load(),
		"messages_relayed_total":  m.messages.Load(),
		"signals_forwarded_total": m.signals.Load(),
		"uploads_total":           m.uploads.Load(),
		"events_dropped_total":    m.dropped.Load(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
