package internal

import (
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// TUIModel holds the bubbletea state for the chat client: the input box, the
// transcript, the live roster and typing set, and the websocket connection.
type TUIModel struct {
	textInput  textinput.Model
	transcript []transcriptEntry
	roster     []RoomUser
	typing     map[string]string // connection id -> name

	serverURL string
	room      string
	username  string

	conn        *websocket.Conn
	writeMutex  sync.Mutex
	events      chan Envelope
	isConnected bool
	lastError   error

	typingSent bool
}

type transcriptEntry struct {
	when   int64 // unix milliseconds, zero for local notices
	user   string
	body   string
	files  []FileRef
	system bool
}

// bubbletea messages for the asynchronous parts: connecting, inbound frames,
// uploads, and failures.
type (
	connectedMsg     struct{}
	connectFailedMsg struct{ err error }
	disconnectedMsg  struct{}
	wsEventMsg       Envelope
	errorMsg         error
	uploadDoneMsg    struct{ ref FileRef }
	uploadFailedMsg  struct{ err error }
)

func NewTUIModel(serverURL, room, username string) *TUIModel {
	input := textinput.New()
	input.Placeholder = "Type a message… (/send <path> uploads a file)"
	input.CharLimit = 0
	input.Focus()
	input.Prompt = "> "

	if username == "" {
		username = defaultUsername()
	}

	return &TUIModel{
		textInput: input,
		serverURL: serverURL,
		room:      room,
		username:  username,
		typing:    make(map[string]string),
		events:    make(chan Envelope, 32),
	}
}

func defaultUsername() string {
	if user := os.Getenv("RELAYCHAT_USER"); user != "" {
		return user
	}
	// empty is fine, the server hands out a placeholder name.
	return os.Getenv("USER")
}

func (model *TUIModel) Init() tea.Cmd {
	return model.connectCmd()
}
