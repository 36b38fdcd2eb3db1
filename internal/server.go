package internal

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"relaychat/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// all origins are allowed; the relay carries no credentials and has
		// no authenticated surface to forge requests against.
		return true
	},
}

// Server ties the hub to its HTTP surface: the websocket endpoint, the upload
// collaborator, and the read-only stats/metrics handlers.
type Server struct {
	hub     *Hub
	metrics *Metrics
	uploads *FileUploadHandler
}

func NewServer(store *storage.Store, uploadDir string, maxFileSize int64, historyLimit int, multiRoom bool) *Server {
	metrics := NewMetrics()
	return &Server{
		hub:     NewHub(historyLimit, multiRoom, metrics),
		metrics: metrics,
		uploads: NewFileUploadHandler(store, uploadDir, maxFileSize, metrics),
	}
}

// Hub exposes the underlying hub, mainly for tests.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ServeWS upgrades the request, assigns the connection its id, and starts the
// pumps. The client is unjoined until it sends a join event.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		return
	}
	client := newClient(uuid.NewString(), sock)
	s.hub.addClient(client)

	go client.writePump()
	go client.readPump(s.hub)
}

func (s *Server) HandleFileUpload(w http.ResponseWriter, r *http.Request) {
	s.uploads.HandleUpload(w, r)
}

func (s *Server) HandleFileDownload(w http.ResponseWriter, r *http.Request) {
	s.uploads.HandleDownload(w, r)
}

func (s *Server) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type roomStats struct {
	Room    string `json:"room"`
	Members int    `json:"members"`
	InCall  int    `json:"in_call"`
}

type statsResponse struct {
	Connections int         `json:"connections"`
	Rooms       []roomStats `json:"rooms"`
}

// HandleStats reports live occupancy per room. Read-only; nothing here can
// create or mutate a room.
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	counts := s.hub.Rooms().MemberCounts()
	rooms := make([]roomStats, 0, len(counts))
	for id, members := range counts {
		rooms = append(rooms, roomStats{
			Room:    id,
			Members: members,
			InCall:  s.hub.Calls().CountForRoom(id),
		})
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Room < rooms[j].Room })
	writeJSON(w, http.StatusOK, statsResponse{
		Connections: s.hub.ConnCount(),
		Rooms:       rooms,
	})
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
