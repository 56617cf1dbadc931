package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/shopnotify/internal/api"
	"github.com/nhle/shopnotify/internal/inbox"
	"github.com/nhle/shopnotify/internal/keys"
	"github.com/nhle/shopnotify/internal/model"
	"github.com/nhle/shopnotify/internal/realtime"
	appsync "github.com/nhle/shopnotify/internal/sync"
	"github.com/nhle/shopnotify/internal/theme"
	"github.com/nhle/shopnotify/internal/ui"
	"github.com/nhle/shopnotify/internal/ui/command"
	"github.com/nhle/shopnotify/internal/ui/detail"
	helpview "github.com/nhle/shopnotify/internal/ui/help"
	"github.com/nhle/shopnotify/internal/ui/login"
	"github.com/nhle/shopnotify/internal/ui/notiflist"
)

// actionTimeout bounds a single user-triggered REST call.
const actionTimeout = 30 * time.Second

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewHelp
	ViewCommand
	ViewLogin
)

// Tokens is the credential store the login and logout flows write to.
type Tokens interface {
	Save(token string) error
	Clear() error
}

// Deps are the collaborators of the root model.
type Deps struct {
	Inbox    *inbox.Inbox
	Resyncer *appsync.Resyncer
	Tokens   Tokens
	Logger   *slog.Logger
}

// actionResultMsg reports the outcome of a user action.
type actionResultMsg struct {
	op  string
	err error
}

// loginResultMsg reports the outcome of storing a new token.
type loginResultMsg struct {
	err error
}

// logoutResultMsg reports the outcome of forgetting the token.
type logoutResultMsg struct {
	err error
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and access to the inbox.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	inbox        *inbox.Inbox
	resyncer     *appsync.Resyncer
	tokens       Tokens
	logger       *slog.Logger
	feed         *snapshotFeed
	list         notiflist.Model
	detail       detail.Model
	helpView     helpview.Model
	commandView  command.Model
	loginView    login.Model
	spinner      spinner.Model
	snap         inbox.Snapshot
	ready        bool

	authErrorMessage string
	actionError      string
}

// New creates a new root application model. The inbox listener is
// registered here, so New must be called before the inbox is used.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()

	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	feed := newSnapshotFeed()
	d.Inbox.SetListener(feed.publish)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = theme.HelpStyle

	return Model{
		currentView: ViewList,
		keys:        k,
		inbox:       d.Inbox,
		resyncer:    d.Resyncer,
		tokens:      d.Tokens,
		logger:      logger.With("component", "app"),
		feed:        feed,
		list:        notiflist.New(k, 80, 24),
		detail:      detail.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		loginView:   login.New(80, 24),
		spinner:     sp,
		snap:        d.Inbox.Snapshot(),
	}
}

// Init restores the offline cache, then starts reconciliation and opens
// the push connection.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.feed.wait(),
		m.spinner.Tick,
		tea.Sequence(m.restore(), m.goLive()),
	)
}

// goLive starts reconciliation and the push connection. Resyncer.Start
// launches the first fetch as soon as it is called, so it is deferred into
// the command to keep it behind the cache restore.
func (m Model) goLive() tea.Cmd {
	resyncer := m.resyncer
	connect := m.connect()
	return func() tea.Msg {
		return tea.Batch(resyncer.Start(), connect)()
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.list.SetSize(contentWidth, contentHeight)
		m.detail.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		m.loginView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case snapshotMsg:
		return m, tea.Batch(m.applySnapshot(msg.snap), m.feed.wait())

	case appsync.ResultMsg:
		if msg.AuthError != nil {
			m.authErrorMessage = msg.AuthError.Message
		} else if msg.Error == nil {
			m.authErrorMessage = ""
		}
		return m, m.resyncer.WaitForNextResult()

	case actionResultMsg:
		if msg.err != nil {
			m.logger.Warn("action failed", "op", msg.op, "error", msg.err)
			if api.IsAuthError(msg.err) {
				m.authErrorMessage = "Session expired. Press : and run 'login'."
			}
			m.actionError = fmt.Sprintf("%s failed: %v", msg.op, msg.err)
		} else {
			m.actionError = ""
		}
		return m, nil

	case notiflist.SelectedMsg:
		n, ok := m.find(msg.ID)
		if !ok {
			return m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetNotification(&n)
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case detail.ActionMsg:
		switch msg.Action {
		case detail.ActionMarkRead:
			return m, m.markRead(msg.ID)
		case detail.ActionDelete:
			m.currentView = ViewList
			return m, m.deleteNotification(msg.ID)
		}
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(msg)

	case login.SubmittedMsg:
		m.currentView = ViewList
		return m, m.saveToken(msg.Token)

	case login.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case loginResultMsg:
		if msg.err != nil {
			m.actionError = fmt.Sprintf("login failed: %v", msg.err)
			return m, nil
		}
		m.authErrorMessage = ""
		m.actionError = ""
		return m, tea.Batch(m.connect(), m.resyncer.Refresh())

	case logoutResultMsg:
		if msg.err != nil {
			m.actionError = fmt.Sprintf("logout failed: %v", msg.err)
			return m, nil
		}
		m.authErrorMessage = ""
		m.actionError = ""
		return m, m.openLogin()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		// The login form owns every other key while it is open.
		if m.currentView == ViewLogin {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			if m.currentView == ViewCommand {
				break
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Command):
			if m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp || m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
		}

		if m.currentView == ViewList {
			if cmd, handled := m.handleListKey(msg); handled {
				return m, cmd
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleListKey runs the inbox actions bound on the list view.
func (m *Model) handleListKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	page := m.snap.Page

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit(), true

	case key.Matches(msg, m.keys.Refresh):
		return m.resyncer.Refresh(), true

	case key.Matches(msg, m.keys.MarkRead):
		n, ok := m.list.Selected()
		if !ok || n.IsRead {
			return nil, true
		}
		return m.markRead(n.ID), true

	case key.Matches(msg, m.keys.MarkAllRead):
		return m.run("mark all read", m.inbox.MarkAllRead), true

	case key.Matches(msg, m.keys.Delete):
		id := m.list.SelectedID()
		if id == "" {
			return nil, true
		}
		return m.deleteNotification(id), true

	case key.Matches(msg, m.keys.DeleteRead):
		return m.run("delete read", m.inbox.DeleteAllRead), true

	case key.Matches(msg, m.keys.NextPage):
		if !page.HasNext() {
			return nil, true
		}
		return m.fetch(inbox.FetchParams{Page: page.Page + 1}), true

	case key.Matches(msg, m.keys.PrevPage):
		if !page.HasPrev() {
			return nil, true
		}
		return m.fetch(inbox.FetchParams{Page: page.Page - 1}), true

	case key.Matches(msg, m.keys.LoadMore):
		if !page.HasNext() {
			return nil, true
		}
		return m.fetch(inbox.FetchParams{Page: page.Page + 1, Append: true}), true

	case key.Matches(msg, m.keys.ToggleUnread):
		unread := !page.UnreadOnly
		return m.fetch(inbox.FetchParams{Page: 1, UnreadOnly: &unread}), true

	case key.Matches(msg, m.keys.Reconnect):
		return m.reconnect(), true
	}

	return nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.list, cmd = m.list.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	}

	return m, cmd
}

// applySnapshot refreshes every view from the inbox state.
func (m *Model) applySnapshot(s inbox.Snapshot) tea.Cmd {
	prev := m.snap.Status
	m.snap = s
	cmd := m.list.SetItems(s.Items, s.Page, s.Stale)

	if m.currentView == ViewDetail {
		if n, ok := m.find(m.detail.Current()); ok {
			m.detail.SetNotification(&n)
		} else {
			m.currentView = ViewList
		}
	}

	if s.Status == realtime.StatusMissingToken && prev != realtime.StatusMissingToken {
		return tea.Batch(cmd, m.openLogin())
	}
	return cmd
}

func (m *Model) openLogin() tea.Cmd {
	if m.currentView == ViewLogin {
		return nil
	}
	m.previousView = ViewList
	m.currentView = ViewLogin
	return m.loginView.Start()
}

func (m Model) find(id string) (model.Notification, bool) {
	for _, n := range m.snap.Items {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	headerTitle := "Notifications"
	if unread := m.snap.Stats.Unread; unread > 0 {
		headerTitle = fmt.Sprintf("Notifications [%d unread]", unread)
	}
	header := m.layout.RenderHeader(headerTitle, m.connectionStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.list.View()
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewLogin:
		return m.loginView.View()
	default:
		return ""
	}
}

// connectionStatus renders the right side of the header.
func (m Model) connectionStatus() string {
	label := statusLabel(m.snap.Status)
	if m.snap.Status == realtime.StatusReconnecting || m.snap.Loading {
		label = m.spinner.View() + " " + label
	}
	if m.resyncer.Status().State == appsync.SyncError {
		label += " · sync failed"
	}
	return theme.ConnectionStyle(m.snap.Status).Render(label)
}

func statusLabel(s realtime.Status) string {
	switch s {
	case realtime.StatusConnected:
		return "● live"
	case realtime.StatusReconnecting:
		return "reconnecting"
	case realtime.StatusError:
		return "connection error"
	case realtime.StatusMissingToken:
		return "not logged in"
	default:
		return "○ offline"
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.authErrorMessage != "" && m.currentView == ViewList {
		return m.authErrorMessage
	}
	if m.actionError != "" && m.currentView == ViewList {
		return theme.ErrorStyle.Render(m.actionError)
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close command | enter execute | esc back"
	case ViewDetail:
		return "esc back | x mark read | d delete | j/k scroll"
	case ViewLogin:
		return "enter submit | esc cancel"
	default:
		return "q quit | ? help | x read | d delete | [ ] page | u unread | r refresh"
	}
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(cmd command.CommandMsg) tea.Cmd {
	switch cmd {
	case command.Refresh:
		return m.resyncer.Refresh()
	case command.ReadAll:
		return m.run("mark all read", m.inbox.MarkAllRead)
	case command.DeleteRead:
		return m.run("delete read", m.inbox.DeleteAllRead)
	case command.Unread, command.All:
		unread := cmd == command.Unread
		return m.fetch(inbox.FetchParams{Page: 1, UnreadOnly: &unread})
	case command.Reconnect:
		return m.reconnect()
	case command.Ping:
		m.inbox.SendPing()
		return nil
	case command.Login:
		return m.openLogin()
	case command.Logout:
		return m.logout()
	case command.Quit:
		return m.quit()
	default:
		m.actionError = fmt.Sprintf("unknown command %q", string(cmd))
		return nil
	}
}

// run executes fn off the UI goroutine and reports the outcome.
func (m Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionResultMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) markRead(id string) tea.Cmd {
	in := m.inbox
	return m.run("mark read", func(ctx context.Context) error {
		return in.MarkRead(ctx, id)
	})
}

func (m Model) deleteNotification(id string) tea.Cmd {
	in := m.inbox
	return m.run("delete", func(ctx context.Context) error {
		return in.DeleteNotification(ctx, id)
	})
}

func (m Model) fetch(p inbox.FetchParams) tea.Cmd {
	in := m.inbox
	return m.run("load", func(ctx context.Context) error {
		return in.FetchNotifications(ctx, p)
	})
}

// restore shows the offline copy until the first fetch lands.
func (m Model) restore() tea.Cmd {
	in := m.inbox
	logger := m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := in.Restore(ctx); err != nil {
			logger.Warn("restoring cache", "error", err)
		}
		return nil
	}
}

// connect opens the push connection. Connect blocks for the ticket and
// handshake, so it runs as a command.
func (m Model) connect() tea.Cmd {
	in := m.inbox
	return func() tea.Msg {
		in.Connect(context.Background())
		return nil
	}
}

func (m Model) reconnect() tea.Cmd {
	in := m.inbox
	return func() tea.Msg {
		in.Disconnect()
		in.Connect(context.Background())
		return nil
	}
}

func (m Model) saveToken(token string) tea.Cmd {
	tokens := m.tokens
	return func() tea.Msg {
		return loginResultMsg{err: tokens.Save(token)}
	}
}

// logout forgets the token and every cached notification. The login form
// opens once logoutResultMsg arrives.
func (m Model) logout() tea.Cmd {
	tokens := m.tokens
	in := m.inbox
	return func() tea.Msg {
		if err := tokens.Clear(); err != nil {
			return logoutResultMsg{err: err}
		}
		in.Reset()
		return logoutResultMsg{}
	}
}

func (m Model) quit() tea.Cmd {
	m.resyncer.Stop()
	m.inbox.Disconnect()
	return tea.Quit
}
