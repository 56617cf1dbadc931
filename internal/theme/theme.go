package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shopnotify/internal/model"
	"github.com/nhle/shopnotify/internal/realtime"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// Apply forces the light or dark variant of the palette. "default" keeps
// lipgloss's terminal background detection.
func Apply(name string) {
	switch name {
	case "light":
		lipgloss.SetHasDarkBackground(false)
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	}
}

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// DetailPanelStyle wraps the detail view content area.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// DimmedStyle renders read notifications.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// UnreadStyle renders unread notification titles.
var UnreadStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// ErrorStyle renders inline action errors.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// ConnectionStyle returns a color-coded style for a connection status.
func ConnectionStyle(status realtime.Status) lipgloss.Style {
	base := HeaderStyle

	switch status {
	case realtime.StatusConnected:
		return base.Foreground(ColorGreen)
	case realtime.StatusReconnecting:
		return base.Foreground(ColorYellow)
	case realtime.StatusError, realtime.StatusMissingToken:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// TypeLabelStyle returns a color-coded style for a notification type.
func TypeLabelStyle(t model.NotificationType) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch t {
	case model.NotificationOrderCreated, model.NotificationOrderConfirmed:
		return base.Foreground(ColorBlue)
	case model.NotificationOrderShipped, model.NotificationOrderDelivered:
		return base.Foreground(ColorGreen)
	case model.NotificationOrderCancelled, model.NotificationPaymentFailed:
		return base.Foreground(ColorRed)
	case model.NotificationPaymentSuccess:
		return base.Foreground(ColorGreen)
	case model.NotificationReviewReceived:
		return base.Foreground(ColorYellow)
	case model.NotificationPromotion:
		return base.Foreground(ColorMagenta)
	case model.NotificationSystem:
		return base.Foreground(ColorOrange)
	default:
		return base.Foreground(ColorGray)
	}
}

// TypeIcon returns a one-cell glyph for a notification type.
func TypeIcon(t model.NotificationType) string {
	switch t {
	case model.NotificationOrderCreated, model.NotificationOrderConfirmed:
		return "◆"
	case model.NotificationOrderShipped:
		return "➜"
	case model.NotificationOrderDelivered, model.NotificationPaymentSuccess:
		return "✓"
	case model.NotificationOrderCancelled, model.NotificationPaymentFailed:
		return "✗"
	case model.NotificationReviewReceived:
		return "★"
	case model.NotificationPromotion:
		return "%"
	default:
		return "•"
	}
}
