package login

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shopnotify/internal/credential"
	"github.com/nhle/shopnotify/internal/theme"
)

// SubmittedMsg is dispatched when the user enters a token.
type SubmittedMsg struct {
	Token string
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	token string
}

// Model is the Bubble Tea model for the access token prompt.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	now    func() time.Time
	width  int
	height int
}

// New creates a new login form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		now:    time.Now,
		width:  width,
		height: height,
	}
}

// Start resets and focuses the form.
func (m *Model) Start() tea.Cmd {
	m.fb.token = ""
	m.form = huh.NewForm(
		huh.NewGroup(TokenField(&m.fb.token, m.now)),
	).WithWidth(m.formWidth())
	return m.form.Init()
}

// Form returns a standalone form for the login command, writing the
// entered token to dst.
func Form(dst *string) *huh.Form {
	return huh.NewForm(huh.NewGroup(TokenField(dst, time.Now)))
}

// TokenField is the masked access token input shared by the TUI and the
// login command.
func TokenField(dst *string, now func() time.Time) *huh.Input {
	return huh.NewInput().
		Title("Access token").
		Description("Paste the storefront access token. It is kept in the system keyring.").
		EchoMode(huh.EchoModePassword).
		Value(dst).
		Validate(func(s string) error {
			return ValidateToken(s, now())
		})
}

// ValidateToken rejects empty tokens and JWTs that have already expired.
// Opaque tokens are accepted as-is.
func ValidateToken(token string, now time.Time) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}
	if exp, ok := credential.Expiry(token); ok && !now.Before(exp) {
		return fmt.Errorf("token expired at %s", exp.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// Update handles messages for the login form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		token := strings.TrimSpace(m.fb.token)
		return m, func() tea.Msg { return SubmittedMsg{Token: token} }
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the login form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("Log in") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}
