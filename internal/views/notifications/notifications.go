// Package notifications renders the notification pane. Message bodies are
// Markdown and go through glamour.
package notifications

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/coursehub/realtime/internal/notify"
	"github.com/coursehub/realtime/internal/theme"
)

// DefaultStyle is the glamour style used outside tests.
const DefaultStyle = "dark"

// Model is the notification pane state.
type Model struct {
	State    string
	Attached bool
	Items    []notify.Notification
	Unread   int

	bodies *bodies
}

// bodies caches rendered Markdown. It is shared by copies of the Model.
type bodies struct {
	style    string
	renderer *glamour.TermRenderer
	wrap     int
	cache    map[string]string
}

// New creates an empty pane rendering bodies with the named glamour style.
func New(style string) Model {
	if style == "" {
		style = DefaultStyle
	}
	return Model{bodies: &bodies{style: style, cache: make(map[string]string)}}
}

// SetStore copies the list and unread counter out of s.
func (m *Model) SetStore(s *notify.Store) {
	m.Items = s.Notifications()
	m.Unread = s.UnreadCount()
}

// Body renders the Markdown body of n at the given wrap width. Rendering
// failures fall back to the raw text.
func (m Model) Body(n notify.Notification, wrap int) string {
	if n.Message == "" {
		return ""
	}
	if m.bodies == nil {
		return n.Message
	}
	return m.bodies.render(n, wrap)
}

func (b *bodies) render(n notify.Notification, wrap int) string {
	if b.renderer == nil || b.wrap != wrap {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(b.style),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return n.Message
		}
		b.renderer, b.wrap = r, wrap
		clear(b.cache)
	}
	key := string(n.ID) + "\x00" + n.Message
	if out, ok := b.cache[key]; ok {
		return out
	}
	out, err := b.renderer.Render(n.Message)
	if err != nil {
		return n.Message
	}
	out = strings.Trim(out, "\n")
	b.cache[key] = out
	return out
}

// View renders the pane.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	accent := theme.ColorNotifications

	if !m.Attached {
		return theme.Pane(innerW, accent).Render(theme.StyleDimmed.Render("Notifications are off."))
	}

	title := theme.StyleHeader.Render(" NOTIFICATIONS ")
	if m.Unread > 0 {
		title += lipgloss.NewStyle().Foreground(theme.ColorUnread).Bold(true).
			Render(fmt.Sprintf(" %d unread", m.Unread))
	}

	budget := height - 4
	if budget < 3 {
		budget = 3
	}
	var blocks []string
	used := 0
	for _, n := range m.Items {
		block := m.item(n, innerW-2)
		rows := lipgloss.Height(block)
		if used+rows > budget && len(blocks) > 0 {
			blocks = append(blocks, theme.StyleDimmed.Render(fmt.Sprintf("... %d older", len(m.Items)-len(blocks))))
			break
		}
		blocks = append(blocks, block)
		used += rows
	}
	if len(blocks) == 0 {
		blocks = append(blocks, theme.StyleDimmed.Render("Nothing new."))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(blocks, "\n"))
	return theme.Pane(innerW, accent).Render(content)
}

func (m Model) item(n notify.Notification, width int) string {
	marker := theme.StyleDimmed.Render("○")
	if !n.IsRead {
		marker = lipgloss.NewStyle().Foreground(theme.ColorUnread).Render("●")
	}
	kind := lipgloss.NewStyle().Foreground(theme.KindColor(n.Kind)).Render(n.Kind)
	head := fmt.Sprintf("%s %s %s", marker, kind, theme.StyleSelected.Render(n.Title))
	if !n.CreatedAt.IsZero() {
		head += " " + theme.StyleDimmed.Render(n.CreatedAt.Local().Format("Jan 2 15:04"))
	}
	lines := []string{head}
	if body := m.Body(n, width); body != "" {
		lines = append(lines, body)
	}
	if n.Link != "" {
		lines = append(lines, theme.StyleDimmed.Render("  "+n.Link))
	}
	return strings.Join(lines, "\n")
}
