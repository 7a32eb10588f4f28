package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/coursehub/realtime/internal/theme"
)

// Channel is the connection summary of one bound session.
type Channel struct {
	Name     string
	Key      string // bound thread or session id; empty when detached
	State    string
	Attempts int
}

// Model holds the status bar state.
type Model struct {
	Channels []Channel
	Unread   int
	Width    int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// Set replaces the summary for the channel called name, appending it when
// it is not known yet.
func (m *Model) Set(c Channel) {
	for i := range m.Channels {
		if m.Channels[i].Name == c.Name {
			m.Channels[i] = c
			return
		}
	}
	m.Channels = append(m.Channels, c)
}

// Get returns the summary for name.
func (m Model) Get(name string) (Channel, bool) {
	for _, c := range m.Channels {
		if c.Name == name {
			return c, true
		}
	}
	return Channel{}, false
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	parts := make([]string, 0, len(m.Channels)+1)
	for _, c := range m.Channels {
		parts = append(parts, renderChannel(c))
	}
	unread := theme.StyleDimmed.Render("0 unread")
	if m.Unread > 0 {
		unread = lipgloss.NewStyle().Foreground(theme.ColorUnread).Bold(true).
			Render(fmt.Sprintf("%d unread", m.Unread))
	}
	parts = append(parts, unread)

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.Join(parts, sep))
}

func renderChannel(c Channel) string {
	name := lipgloss.NewStyle().Foreground(theme.ChannelColor(c.Name)).Render(c.Name)
	if c.Key == "" {
		return name + " " + theme.StyleDimmed.Render("detached")
	}
	state := c.State
	if c.Attempts > 0 {
		state = fmt.Sprintf("%s %d", state, c.Attempts)
	}
	return fmt.Sprintf("%s %s %s", name, theme.StyleDimmed.Render(c.Key),
		lipgloss.NewStyle().Foreground(theme.StateColor(c.State)).
			Render(theme.StateGlyph(c.State)+" "+state))
}
