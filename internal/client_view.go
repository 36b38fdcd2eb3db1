package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const transcriptWindow = 20

// pre-styled building blocks, lipgloss all the way down
var (
	appTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	chatHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle     = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle    = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	messageBodyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("253"))
	messageBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	inputBoxStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	timestampStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	usernameStyle      = lipgloss.NewStyle().Bold(true)
	fileRefStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Underline(true)
	typingStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("178")).Italic(true)
	systemMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	errorStyle         = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	userColorPalette   = []lipgloss.Color{
		lipgloss.Color("45"),
		lipgloss.Color("81"),
		lipgloss.Color("141"),
		lipgloss.Color("98"),
		lipgloss.Color("63"),
		lipgloss.Color("135"),
		lipgloss.Color("32"),
	}
)

func (model *TUIModel) View() string {
	var builder strings.Builder

	room := model.room
	if room == "" {
		room = DefaultRoom
	}
	header := fmt.Sprintf("relaychat ┃ #%s", room)
	if len(model.roster) > 0 {
		names := make([]string, 0, len(model.roster))
		for _, user := range model.roster {
			names = append(names, user.Name)
		}
		header += "  (" + strings.Join(names, ", ") + ")"
	}
	builder.WriteString(chatHeaderStyle.Render(header))
	builder.WriteString("\n")

	builder.WriteString(messageBoxStyle.Render(model.renderTranscript()))
	builder.WriteString("\n")

	if line := model.renderTyping(); line != "" {
		builder.WriteString(typingStyle.Render(line))
		builder.WriteString("\n")
	}

	builder.WriteString(inputBoxStyle.Render(model.textInput.View()))
	builder.WriteString("\n")

	switch {
	case model.lastError != nil:
		builder.WriteString(errorStyle.Render("error: " + model.lastError.Error()))
	case model.isConnected:
		builder.WriteString(connectedStyle.Render("connected"))
	default:
		builder.WriteString(connectingStyle.Render("connecting…"))
	}
	builder.WriteString("\n")

	return builder.String()
}

func (model *TUIModel) renderTranscript() string {
	if len(model.transcript) == 0 {
		return messageBodyStyle.Render("No messages yet. Say hi!")
	}
	entries := model.transcript
	if len(entries) > transcriptWindow {
		entries = entries[len(entries)-transcriptWindow:]
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, model.renderEntry(entry))
	}
	return strings.Join(lines, "\n")
}

func (model *TUIModel) renderEntry(entry transcriptEntry) string {
	stamp := timestampStyle.Render(time.UnixMilli(entry.when).Format("15:04"))
	if entry.system {
		return stamp + " " + systemMessageStyle.Render(entry.body)
	}
	name := usernameStyle.Copy().Foreground(colorForUser(entry.user)).Render(entry.user)
	line := stamp + " " + name + ": " + messageBodyStyle.Render(entry.body)
	for _, file := range entry.files {
		label := fmt.Sprintf("[%s, %s]", file.Name, humanize.Bytes(uint64(file.Size)))
		line += " " + fileRefStyle.Render(label)
	}
	return line
}

func (model *TUIModel) renderTyping() string {
	if len(model.typing) == 0 {
		return ""
	}
	names := make([]string, 0, len(model.typing))
	for _, name := range model.typing {
		names = append(names, name)
	}
	if len(names) == 1 {
		return names[0] + " is typing…"
	}
	return strings.Join(names, ", ") + " are typing…"
}

func colorForUser(name string) lipgloss.Color {
	if len(userColorPalette) == 0 {
		return lipgloss.Color("255")
	}
	sum := 0
	for _, r := range name {
		sum += int(r)
	}
	return userColorPalette[sum%len(userColorPalette)]
}
