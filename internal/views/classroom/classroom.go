// Package classroom renders the live-class pane: participant count, the chat
// log, and reaction bursts that float up on a spring.
package classroom

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/coursehub/realtime/internal/channel"
	"github.com/coursehub/realtime/internal/theme"
)

const (
	// FPS is the animation rate while bursts are on screen.
	FPS = 30
	// laneHeight is the number of rows a burst rises through.
	laneHeight = 4
	// burstFrames is how long a burst stays visible.
	burstFrames = 45
	maxBursts   = 12
)

// Burst is one reaction rising through the lane.
type Burst struct {
	Emoji    string
	Username string
	pos, vel float64
	frames   int
}

// Height returns the burst's current lift in rows.
func (b Burst) Height() float64 { return b.pos }

// Model is the live-class pane state.
type Model struct {
	SessionID string
	State     string
	Count     int
	Messages  []channel.ChatMessage
	Bursts    []Burst

	spring harmonica.Spring
}

// New creates an empty pane.
func New() Model {
	return Model{spring: harmonica.NewSpring(harmonica.FPS(FPS), 6.0, 0.35)}
}

// SetState copies the derived live-class state. Frames that fail to decode
// are skipped.
func (m *Model) SetState(s channel.LiveClassState) {
	m.Count = s.ParticipantCount
	m.Messages = make([]channel.ChatMessage, 0, len(s.ChatMessages))
	for _, f := range s.ChatMessages {
		msg, err := channel.DecodeChat(f)
		if err != nil {
			continue
		}
		m.Messages = append(m.Messages, msg)
	}
}

// Reset clears everything bound to the previous session.
func (m *Model) Reset() {
	spring := m.spring
	*m = Model{spring: spring}
}

// React starts a burst for r.
func (m *Model) React(r channel.Reaction) {
	m.Bursts = append(m.Bursts, Burst{Emoji: r.Emoji, Username: r.Username})
	if len(m.Bursts) > maxBursts {
		m.Bursts = m.Bursts[len(m.Bursts)-maxBursts:]
	}
}

// Animate advances every burst one frame and drops the expired ones. It
// reports whether any burst is still running.
func (m *Model) Animate() bool {
	live := m.Bursts[:0]
	for _, b := range m.Bursts {
		b.pos, b.vel = m.spring.Update(b.pos, b.vel, laneHeight)
		b.frames++
		if b.frames < burstFrames {
			live = append(live, b)
		}
	}
	m.Bursts = live
	return len(m.Bursts) > 0
}

// Animating reports whether Animate should keep being scheduled.
func (m Model) Animating() bool { return len(m.Bursts) > 0 }

// FrameInterval is the delay between animation frames.
func FrameInterval() time.Duration { return time.Second / FPS }

// View renders the pane.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	accent := theme.ColorLiveClass

	if m.SessionID == "" {
		return theme.Pane(innerW, accent).Render(theme.StyleDimmed.Render("Not attending a live class."))
	}

	title := theme.StyleHeader.Render(fmt.Sprintf(" LIVE CLASS %s ", m.SessionID)) +
		theme.StyleDimmed.Render(fmt.Sprintf(" %d watching", m.Count))

	chatRows := height - laneHeight - 6
	if chatRows < 3 {
		chatRows = 3
	}
	start := len(m.Messages) - chatRows
	if start < 0 {
		start = 0
	}
	lines := make([]string, 0, chatRows)
	nameStyle := lipgloss.NewStyle().Foreground(accent).Bold(true)
	for _, msg := range m.Messages[start:] {
		ts := ""
		if !msg.Timestamp.IsZero() {
			ts = theme.StyleDimmed.Render(msg.Timestamp.Local().Format("15:04")) + " "
		}
		lines = append(lines, ts+nameStyle.Render(msg.Username)+" "+msg.Message)
	}
	if len(lines) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("No messages yet."))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title, m.lane(innerW-2), strings.Join(lines, "\n"))
	return theme.Pane(innerW, accent).Render(content)
}

// lane draws the bursts on a laneHeight-row grid, each in its own column
// slot, with row 0 at the top.
func (m Model) lane(width int) string {
	rows := make([][]string, laneHeight)
	slots := width / 3
	if slots < 1 {
		slots = 1
	}
	for i := range rows {
		rows[i] = make([]string, slots)
	}
	for i, b := range m.Bursts {
		lift := int(math.Round(b.pos))
		if lift < 0 {
			lift = 0
		}
		if lift > laneHeight-1 {
			lift = laneHeight - 1
		}
		rows[laneHeight-1-lift][i%slots] = b.Emoji
	}

	out := make([]string, laneHeight)
	for i, row := range rows {
		var sb strings.Builder
		for _, cell := range row {
			if cell == "" {
				sb.WriteString("   ")
				continue
			}
			sb.WriteString(lipgloss.NewStyle().Width(3).Render(cell))
		}
		out[i] = strings.TrimRight(sb.String(), " ")
	}
	return strings.Join(out, "\n")
}
