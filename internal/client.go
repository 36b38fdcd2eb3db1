package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

var uploadHTTPTimeout = 30 * time.Second

// RunClient launches the Bubble Tea TUI against the given relay.
func RunClient(serverURL, room, username string) error {
	model := NewTUIModel(serverURL, room, username)
	program := tea.NewProgram(model)
	_, err := program.Run()
	return err
}

// connectCmd dials the relay, sends the join event, and starts the goroutine
// that pumps inbound frames into the model's event channel.
func (model *TUIModel) connectCmd() tea.Cmd {
	return func() tea.Msg {
		conn, _, err := websocket.DefaultDialer.Dial(model.serverURL, nil)
		if err != nil {
			return connectFailedMsg{err: err}
		}
		model.conn = conn
		if err := model.sendEvent(EventJoin, joinRequest{RoomID: model.room, UserName: model.username}); err != nil {
			_ = conn.Close()
			return connectFailedMsg{err: err}
		}
		go model.readLoop()
		return connectedMsg{}
	}
}

func (model *TUIModel) readLoop() {
	for {
		_, payload, err := model.conn.ReadMessage()
		if err != nil {
			model.events <- Envelope{}
			close(model.events)
			return
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			continue
		}
		model.events <- env
	}
}

// waitForEventCmd hands the next inbound frame to Update. Re-issued after
// every frame so the loop keeps running.
func (model *TUIModel) waitForEventCmd() tea.Cmd {
	return func() tea.Msg {
		env, ok := <-model.events
		if !ok || env.Event == "" {
			return disconnectedMsg{}
		}
		return wsEventMsg(env)
	}
}

// sendEvent marshals and writes one envelope. The write mutex keeps the
// typing signals and chat sends from interleaving on the socket.
func (model *TUIModel) sendEvent(event string, data any) error {
	payload, err := encodeEvent(event, data)
	if err != nil {
		return err
	}
	model.writeMutex.Lock()
	defer model.writeMutex.Unlock()
	return model.conn.WriteMessage(websocket.TextMessage, payload)
}

func (model *TUIModel) sendChatCmd(text string, files []FileRef) tea.Cmd {
	return func() tea.Msg {
		if err := model.sendEvent(EventMessage, messageRequest{Text: text, Files: files}); err != nil {
			return errorMsg(err)
		}
		return nil
	}
}

func (model *TUIModel) sendTyping(event string) {
	if model.conn == nil || !model.isConnected {
		return
	}
	_ = model.sendEvent(event, nil)
}

// uploadFileCmd pushes a local file to the upload endpoint and reports the
// descriptor so Update can send it as a file message.
func (model *TUIModel) uploadFileCmd(path string) tea.Cmd {
	return func() tea.Msg {
		ref, err := uploadFile(model.serverURL, path)
		if err != nil {
			return uploadFailedMsg{err: err}
		}
		return uploadDoneMsg{ref: ref}
	}
}

func uploadFile(serverURL, path string) (FileRef, error) {
	base, err := httpBaseFromWSURL(serverURL)
	if err != nil {
		return FileRef{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		return FileRef{}, err
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return FileRef{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return FileRef{}, err
	}
	if err := writer.Close(); err != nil {
		return FileRef{}, err
	}

	req, err := http.NewRequest(http.MethodPost, base+"/upload", body)
	if err != nil {
		return FileRef{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	client := &http.Client{Timeout: uploadHTTPTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return FileRef{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return FileRef{}, fmt.Errorf("upload failed: server returned %d", resp.StatusCode)
	}
	var ref FileRef
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return FileRef{}, err
	}
	return ref, nil
}

// httpBaseFromWSURL converts ws(s)://host/ws into the http(s)://host base the
// upload endpoint lives under.
func httpBaseFromWSURL(wsURL string) (string, error) {
	parsed, err := url.Parse(wsURL)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "ws":
		parsed.Scheme = "http"
	case "wss":
		parsed.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported scheme %s", parsed.Scheme)
	}
	parsed.Path = ""
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return strings.TrimRight(parsed.String(), "/"), nil
}
