// Package debug provides the scrollable event log pane. It collects log lines
// and connection transitions from every channel.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/coursehub/realtime/internal/theme"
)

const maxEntries = 200

// Entry kinds.
const (
	KindState = "state"
	KindInfo  = "info"
	KindWarn  = "warn"
	KindError = "err"
	KindDebug = "dbg"
)

// Entry is a single event log line.
type Entry struct {
	Time    time.Time
	Kind    string
	Source  string // channel name, empty for app-level lines
	Message string
}

// Model holds the log and its scroll position.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset from the bottom
	now     func() time.Time
}

// New creates an empty log.
func New() Model {
	return Model{now: time.Now}
}

// Add appends an entry and caps the buffer.
func (m *Model) Add(kind, source, message string) {
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	m.Entries = append(m.Entries, Entry{
		Time:    now(),
		Kind:    kind,
		Source:  source,
		Message: message,
	})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// ScrollUp moves the viewport towards older entries.
func (m *Model) ScrollUp(n int) {
	m.Offset += n
	limit := len(m.Entries) - 1
	if limit < 0 {
		limit = 0
	}
	if m.Offset > limit {
		m.Offset = limit
	}
}

// ScrollDown moves the viewport towards newer entries.
func (m *Model) ScrollDown(n int) {
	m.Offset -= n
	if m.Offset < 0 {
		m.Offset = 0
	}
}

// View renders the log inside a pane of the given size.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	visible := height - 5
	if visible < 3 {
		visible = 3
	}

	title := theme.StyleHeader.Render(" EVENT LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  %d entries", len(m.Entries)))

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  No events recorded yet.")
		return theme.Pane(innerW, theme.ColorBorder).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := len(m.Entries) - m.Offset
	start := end - visible
	if start < 0 {
		start = 0
	}

	lines := make([]string, 0, end-start)
	for _, e := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(5).Render(e.Kind)
		room := innerW - 22
		src := ""
		if e.Source != "" {
			room -= len(e.Source) + 1
			src = lipgloss.NewStyle().Foreground(theme.ChannelColor(e.Source)).Render(e.Source) + " "
		}
		lines = append(lines, fmt.Sprintf("%s %s %s%s", ts, kind, src, truncate(e.Message, room)))
	}

	var more string
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help)
	return theme.Pane(innerW, theme.ColorBorder).Render(content)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return "..."
	}
	return string(r[:width-3]) + "..."
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case KindState:
		return theme.ColorConnecting
	case KindError:
		return theme.ColorDanger
	case KindWarn:
		return theme.ColorWarning
	case KindInfo:
		return theme.ColorOpen
	default:
		return theme.ColorDimmed
	}
}
