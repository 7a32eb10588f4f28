// Package theme provides the Lip Gloss palette and shared styles for the
// CourseHub terminal client. It has no internal imports so every view can
// depend on it.
package theme

import "github.com/charmbracelet/lipgloss"

// Connection state colors.
var (
	ColorIdle         = lipgloss.Color("#4b5563")
	ColorConnecting   = lipgloss.Color("#7c3aed")
	ColorOpen         = lipgloss.Color("#22c55e")
	ColorReconnecting = lipgloss.Color("#d97706")
	ColorClosed       = lipgloss.Color("#dc2626")
)

// Channel accents.
var (
	ColorDiscussion    = lipgloss.Color("#3b82f6")
	ColorLiveClass     = lipgloss.Color("#a855f7")
	ColorNotifications = lipgloss.Color("#06b6d4")
)

// Presence colors.
var (
	ColorOnline = lipgloss.Color("#22c55e")
	ColorTyping = lipgloss.Color("#f59e0b")
	ColorUnread = lipgloss.Color("#f43f5e")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// StateColor returns the color for a connection state name as printed by
// client.State.String.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "idle":
		return ColorIdle
	case "connecting":
		return ColorConnecting
	case "open":
		return ColorOpen
	case "reconnecting":
		return ColorReconnecting
	case "closed":
		return ColorClosed
	default:
		return ColorDefault
	}
}

// StateGlyph returns a glyph for a connection state name.
func StateGlyph(state string) string {
	switch state {
	case "open":
		return "●"
	case "connecting":
		return "◎"
	case "reconnecting":
		return "◌"
	case "closed":
		return "✗"
	case "idle":
		return "○"
	default:
		return "·"
	}
}

// ChannelColor returns the accent for a channel name.
func ChannelColor(name string) lipgloss.Color {
	switch name {
	case "discussion":
		return ColorDiscussion
	case "live class":
		return ColorLiveClass
	case "notifications":
		return ColorNotifications
	default:
		return ColorDefault
	}
}

// KindColor returns the color for a notification kind.
func KindColor(kind string) lipgloss.Color {
	switch kind {
	case "announcement":
		return ColorLiveClass
	case "reply", "mention":
		return ColorDiscussion
	case "grade":
		return ColorHealthy
	case "deadline":
		return ColorWarning
	default:
		return ColorNotifications
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)
)

// Pane returns the bordered frame used by every pane, tinted with accent.
func Pane(width int, accent lipgloss.Color) lipgloss.Style {
	return StyleBorder.
		Width(width).
		Padding(0, 1).
		BorderForeground(accent)
}
