// Package presence renders the discussion pane: who is online in the thread
// and who is typing.
package presence

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/coursehub/realtime/internal/channel"
	"github.com/coursehub/realtime/internal/theme"
)

// Model is the discussion pane state.
type Model struct {
	ThreadID string
	State    string
	Online   []channel.User
	Typing   []channel.User
	// Self is true while the local user is flagged as typing.
	Self bool
}

// New creates an empty pane.
func New() Model {
	return Model{}
}

// SetState copies the derived discussion state.
func (m *Model) SetState(s channel.DiscussionState) {
	m.Online = s.OnlineUsers
	m.Typing = s.TypingUsers
}

// Reset clears everything bound to the previous thread.
func (m *Model) Reset() {
	*m = Model{}
}

// TypingLine returns the indicator shown under the roster, or "" when nobody
// is typing.
func TypingLine(users []channel.User) string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, displayName(u))
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0] + " is typing..."
	case 2:
		return names[0] + " and " + names[1] + " are typing..."
	default:
		return fmt.Sprintf("%s and %d others are typing...", names[0], len(names)-1)
	}
}

// View renders the pane.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	accent := theme.ColorDiscussion

	if m.ThreadID == "" {
		body := theme.StyleDimmed.Render("No thread selected. Use [ and ] to pick one.")
		return theme.Pane(innerW, accent).Render(body)
	}

	title := theme.StyleHeader.Render(fmt.Sprintf(" THREAD %s ", m.ThreadID)) +
		theme.StyleDimmed.Render(fmt.Sprintf(" %d online", len(m.Online)))

	typing := make(map[channel.UserID]bool, len(m.Typing))
	for _, u := range m.Typing {
		typing[u.UserID] = true
	}
	roster := append([]channel.User(nil), m.Online...)
	sort.SliceStable(roster, func(i, j int) bool {
		return displayName(roster[i]) < displayName(roster[j])
	})

	limit := height - 6
	if limit < 1 {
		limit = 1
	}
	lines := make([]string, 0, len(roster))
	for i, u := range roster {
		if i == limit {
			lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("  +%d more", len(roster)-limit)))
			break
		}
		glyph := lipgloss.NewStyle().Foreground(theme.ColorOnline).Render("●")
		if typing[u.UserID] {
			glyph = lipgloss.NewStyle().Foreground(theme.ColorTyping).Render("✎")
		}
		lines = append(lines, fmt.Sprintf("  %s %s", glyph, displayName(u)))
	}
	if len(lines) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  Nobody else is here."))
	}

	footer := lipgloss.NewStyle().Foreground(theme.ColorTyping).Italic(true).Render(TypingLine(m.Typing))
	if m.Self {
		footer = strings.TrimSpace(footer + " " + theme.StyleDimmed.Render("(you are typing)"))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), "", footer)
	return theme.Pane(innerW, accent).Render(content)
}

func displayName(u channel.User) string {
	if u.Username != "" {
		return u.Username
	}
	return "user " + string(u.UserID)
}
