package notiflist

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shopnotify/internal/keys"
	"github.com/nhle/shopnotify/internal/model"
	"github.com/nhle/shopnotify/internal/theme"
)

// SelectedMsg is sent when the user opens a notification.
type SelectedMsg struct {
	ID string
}

// Model is the notification list view component.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	page   model.PageInfo
	stale  bool
	width  int
	height int
}

// New creates a new notification list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetItems replaces the rendered notifications, keeping the cursor on the
// same notification when it is still present.
func (m *Model) SetItems(items []model.Notification, page model.PageInfo, stale bool) tea.Cmd {
	selected := m.SelectedID()

	listItems := make([]list.Item, len(items))
	cursor := -1
	for i, n := range items {
		listItems[i] = Item{Notification: n}
		if n.ID == selected {
			cursor = i
		}
	}

	m.page = page
	m.stale = stale
	cmd := m.list.SetItems(listItems)
	if cursor >= 0 {
		m.list.Select(cursor)
	}
	return cmd
}

// SelectedID returns the ID under the cursor, or "" for an empty list.
func (m Model) SelectedID() string {
	n, ok := m.Selected()
	if !ok {
		return ""
	}
	return n.ID
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Select) {
		id := m.SelectedID()
		if id == "" {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedMsg{ID: id}
		}
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list view.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), m.footer())
}

func (m Model) footer() string {
	text := fmt.Sprintf("page %d", max(m.page.Page, 1))
	if m.page.TotalPages > 0 {
		text = fmt.Sprintf("page %d/%d · %d total", m.page.Page, m.page.TotalPages, m.page.Total)
	}
	if m.page.UnreadOnly {
		text += " · unread only"
	}
	if m.stale {
		text += " · cached"
	}
	return theme.HelpStyle.Render(text)
}

// renderEmptyState shows guidance text when there is nothing to list.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.page.UnreadOnly {
		return style.Render("No unread notifications.\nPress u to show all.")
	}
	return style.Render("No notifications yet.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
