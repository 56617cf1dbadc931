package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shopnotify/internal/theme"
)

// CommandMsg is emitted when the user executes a command.
type CommandMsg string

// Commands understood by the root model.
const (
	Refresh    CommandMsg = "refresh"
	ReadAll    CommandMsg = "read all"
	DeleteRead CommandMsg = "delete read"
	Unread     CommandMsg = "unread"
	All        CommandMsg = "all"
	Reconnect  CommandMsg = "reconnect"
	Ping       CommandMsg = "ping"
	Login      CommandMsg = "login"
	Logout     CommandMsg = "logout"
	Quit       CommandMsg = "quit"
)

// Known lists every command, in the order suggestions are offered.
var Known = []CommandMsg{
	Refresh, ReadAll, DeleteRead, Unread, All, Reconnect, Ping, Login, Logout, Quit,
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.Focus()
	ti.Width = width - 6

	suggestions := make([]string, len(Known))
	for i, c := range Known {
		suggestions[i] = string(c)
	}
	ti.SetSuggestions(suggestions)

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			cmd := Normalize(m.input.Value())
			m.input.Reset()
			if cmd != "" {
				return m, func() tea.Msg {
					return cmd
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Normalize lowercases input and collapses whitespace so "Read   All"
// matches ReadAll.
func Normalize(input string) CommandMsg {
	return CommandMsg(strings.Join(strings.Fields(strings.ToLower(input)), " "))
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	names := make([]string, len(Known))
	for i, c := range Known {
		names[i] = string(c)
	}
	hint := theme.HelpStyle.Render(strings.Join(names, " · "))

	content := lipgloss.JoinVertical(lipgloss.Left, title, input, "", hint)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
