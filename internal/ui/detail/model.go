package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shopnotify/internal/keys"
	"github.com/nhle/shopnotify/internal/model"
	"github.com/nhle/shopnotify/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// ActionMsg signals the parent to execute an action on the shown
// notification.
type ActionMsg struct {
	Action string
	ID     string
}

// Actions carried by ActionMsg.
const (
	ActionMarkRead = "mark_read"
	ActionDelete   = "delete"
)

// Model is the notification detail view component.
type Model struct {
	item     *model.Notification
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.MarkRead):
			if m.item != nil && !m.item.IsRead {
				return m, m.action(ActionMarkRead)
			}
			return m, nil

		case key.Matches(msg, m.keys.Delete):
			if m.item != nil {
				return m, m.action(ActionDelete)
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) action(name string) tea.Cmd {
	id := m.item.ID
	return func() tea.Msg {
		return ActionMsg{Action: name, ID: id}
	}
}

// View renders the detail view.
func (m Model) View() string {
	if m.item == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No notification selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.item == nil {
		return ""
	}

	n := m.item
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(n.Title))

	typeBadge := theme.TypeLabelStyle(n.Type).Render(
		theme.TypeIcon(n.Type) + " " + typeName(n.Type),
	)
	readBadge := theme.UnreadStyle.Render("UNREAD")
	if n.IsRead {
		readBadge = theme.DimmedStyle.Render("read")
	}
	sections = append(sections,
		lipgloss.JoinHorizontal(lipgloss.Top, typeBadge, "  ", readBadge),
		"",
	)

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	if !n.CreatedAt.IsZero() {
		sections = append(sections, fmt.Sprintf(
			"%s  %s",
			metaStyle.Render("Received:"),
			valStyle.Render(n.CreatedAt.Local().Format("2006-01-02 15:04")),
		))
	}
	if n.ActionURL != "" {
		label := "Link:"
		if !n.IsExternal() {
			label = "Route:"
		}
		sections = append(sections, fmt.Sprintf(
			"%s %s",
			metaStyle.Render(fmt.Sprintf("%-9s", label)),
			valStyle.Render(n.ActionURL),
		))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	body := n.Message
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No message")
	}
	sections = append(sections,
		lipgloss.NewStyle().Width(max(m.width-4, 10)).Render(body),
	)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetNotification updates the notification being displayed and
// re-renders the content.
func (m *Model) SetNotification(n *model.Notification) {
	m.item = n
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Current returns the shown notification's ID, or "" if none.
func (m Model) Current() string {
	if m.item == nil {
		return ""
	}
	return m.item.ID
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.viewport.SetContent(m.renderContent())
}

// typeName turns ORDER_SHIPPED into "Order shipped".
func typeName(t model.NotificationType) string {
	s := strings.ToLower(strings.ReplaceAll(string(t), "_", " "))
	if s == "" {
		return "Notification"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
