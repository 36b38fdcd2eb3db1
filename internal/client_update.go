package internal

import (
	"encoding/json"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.KeyMsg:
		return model.handleKey(typedMessage)

	case connectedMsg:
		model.isConnected = true
		model.lastError = nil
		model.appendNotice("connected to " + model.serverURL)
		return model, model.waitForEventCmd()

	case connectFailedMsg:
		model.lastError = typedMessage.err
		return model, nil

	case disconnectedMsg:
		model.isConnected = false
		model.appendNotice("disconnected from server")
		return model, nil

	case wsEventMsg:
		model.applyEvent(Envelope(typedMessage))
		return model, model.waitForEventCmd()

	case uploadDoneMsg:
		model.appendNotice("uploaded " + typedMessage.ref.Name)
		return model, model.sendChatCmd("", []FileRef{typedMessage.ref})

	case uploadFailedMsg:
		model.lastError = typedMessage.err
		return model, nil

	case errorMsg:
		model.lastError = typedMessage
		return model, nil
	}

	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(message)
	return model, cmd
}

func (model *TUIModel) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		if model.conn != nil {
			_ = model.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = model.conn.Close()
		}
		return model, tea.Quit

	case tea.KeyEnter:
		text := strings.TrimSpace(model.textInput.Value())
		model.textInput.SetValue("")
		if model.typingSent {
			model.typingSent = false
			model.sendTyping(EventStopTyping)
		}
		if text == "" {
			return model, nil
		}
		if path, ok := strings.CutPrefix(text, "/send "); ok {
			return model, model.uploadFileCmd(strings.TrimSpace(path))
		}
		return model, model.sendChatCmd(text, nil)
	}

	// any other keystroke is typing activity worth signaling once until the
	// next send.
	if !model.typingSent && model.isConnected {
		model.typingSent = true
		model.sendTyping(EventTyping)
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(key)
	return model, cmd
}

func (model *TUIModel) applyEvent(env Envelope) {
	switch env.Event {
	case EventUsers:
		var users []RoomUser
		if err := json.Unmarshal(env.Data, &users); err == nil {
			model.roster = users
		}

	case EventHistory:
		var history []Message
		if err := json.Unmarshal(env.Data, &history); err != nil {
			return
		}
		model.transcript = model.transcript[:0]
		for _, msg := range history {
			model.appendMessage(msg)
		}

	case EventMessage:
		var msg Message
		if err := json.Unmarshal(env.Data, &msg); err == nil {
			model.appendMessage(msg)
		}

	case EventTyping:
		var user RoomUser
		if err := json.Unmarshal(env.Data, &user); err == nil && user.ID != "" {
			model.typing[user.ID] = user.Name
		}

	case EventStopTyping:
		var id string
		if err := json.Unmarshal(env.Data, &id); err == nil {
			delete(model.typing, id)
		}

	case EventPeerJoinedCall:
		var user RoomUser
		if err := json.Unmarshal(env.Data, &user); err == nil {
			model.appendNotice(user.Name + " joined the call")
		}

	case EventOffer, EventAnswer, EventICECandidate:
		// no audio stack in the terminal client; just surface the attempt.
		model.appendNotice("call signal received (" + env.Event + ")")
	}
}

func (model *TUIModel) appendMessage(msg Message) {
	// the author stopped typing if a message arrived.
	delete(model.typing, msg.UserID)
	model.transcript = append(model.transcript, transcriptEntry{
		when:  msg.Time,
		user:  msg.UserName,
		body:  msg.Text,
		files: msg.Files,
	})
}

func (model *TUIModel) appendNotice(body string) {
	model.transcript = append(model.transcript, transcriptEntry{
		when:   time.Now().UnixMilli(),
		user:   "system",
		body:   body,
		system: true,
	})
}
