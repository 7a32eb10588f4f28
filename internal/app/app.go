// Package app is the Bubble Tea model of the terminal client. It owns one
// binding per channel and drives them from key presses and token expiry.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/coursehub/realtime/internal/auth"
	"github.com/coursehub/realtime/internal/binding"
	"github.com/coursehub/realtime/internal/channel"
	"github.com/coursehub/realtime/internal/client"
	"github.com/coursehub/realtime/internal/notify"
	"github.com/coursehub/realtime/internal/theme"
	"github.com/coursehub/realtime/internal/views/classroom"
	"github.com/coursehub/realtime/internal/views/debug"
	"github.com/coursehub/realtime/internal/views/notifications"
	"github.com/coursehub/realtime/internal/views/presence"
	"github.com/coursehub/realtime/internal/views/status"
	"github.com/rs/zerolog"
)

// Pane identifies the focused pane.
type Pane int

const (
	PaneDiscussion Pane = iota
	PaneLiveClass
	PaneNotifications
	PaneEvents
	paneCount
)

func (p Pane) String() string {
	switch p {
	case PaneDiscussion:
		return sourceDiscussion
	case PaneLiveClass:
		return sourceLiveClass
	case PaneNotifications:
		return sourceNotifications
	case PaneEvents:
		return "events"
	default:
		return "?"
	}
}

// feedKey is the binding key of the notification feed, which is scoped to
// the token's user rather than to an id.
const feedKey = "me"

// Options configure the root model.
type Options struct {
	// Channel is shared by every session. Its Token is ignored; the model
	// owns the token so it can revoke it.
	Channel   channel.Options
	Token     string
	Threads   []string
	LiveClass string
	// Notifications attaches the notification feed.
	Notifications bool
	// GlamourStyle names the style for notification bodies.
	GlamourStyle string
}

// Model is the root Bubble Tea model.
type Model struct {
	opts   Options
	events bus
	log    zerolog.Logger
	store  *notify.Store

	discussion *binding.Binding[string, *channel.Discussion]
	live       *binding.Binding[string, *channel.LiveClass]
	feed       *binding.Binding[string, *channel.Notifications]

	token     string
	expiry    time.Time
	hasExpiry bool
	threadIdx int

	keys      KeyMap
	help      help.Model
	input     textinput.Model
	composing bool
	typing    bool
	animating bool
	pane      Pane
	width     int
	height    int

	statusBar status.Model
	presence  presence.Model
	classroom classroom.Model
	notes     notifications.Model
	debug     debug.Model
}

// New creates the root model. Nothing connects until Init runs.
func New(opts Options) Model {
	events := newBus(eventBuffer, opts.Channel.Logger)
	log := opts.Channel.Logger.Hook(events)
	store := notify.NewStore()
	store.Subscribe(func() { events.post(changedMsg{source: sourceNotifications}) })

	base := opts.Channel
	base.Logger = log
	withToken := func(token string) channel.Options {
		o := base
		o.Token = token
		return o
	}

	input := textinput.New()
	input.Placeholder = "Say something"
	input.CharLimit = 2000

	m := Model{
		opts:   opts,
		events: events,
		log:    log,
		store:  store,
		token:  opts.Token,

		keys:      DefaultKeyMap(),
		help:      help.New(),
		input:     input,
		statusBar: status.New(),
		presence:  presence.New(),
		classroom: classroom.New(),
		notes:     notifications.New(opts.GlamourStyle),
		debug:     debug.New(),
	}
	m.expiry, m.hasExpiry = auth.Expiry(opts.Token)

	m.discussion = binding.New[string, *channel.Discussion](func(threadID, token string) *channel.Discussion {
		d := channel.NewDiscussion(threadID, withToken(token))
		d.OnChange(func() { events.post(changedMsg{source: sourceDiscussion}) })
		return d
	})
	m.live = binding.New[string, *channel.LiveClass](func(sessionID, token string) *channel.LiveClass {
		lc := channel.NewLiveClass(sessionID, withToken(token))
		lc.OnChange(func() { events.post(changedMsg{source: sourceLiveClass}) })
		lc.OnReaction(func(r channel.Reaction) { events.post(reactionMsg{reaction: r}) })
		return lc
	})
	m.feed = binding.New[string, *channel.Notifications](func(_ string, token string) *channel.Notifications {
		n := channel.NewNotifications(withToken(token), store)
		n.OnChange(func() { events.post(changedMsg{source: sourceNotifications}) })
		return n
	})
	return m
}

// Init binds the configured keys and starts listening for session events.
func (m Model) Init() tea.Cmd {
	token := m.token
	if m.expired(time.Now()) {
		m.log.Warn().Time("exp", m.expiry).Msg("token already expired")
		token = ""
	}
	if len(m.opts.Threads) > 0 {
		m.discussion.Set(m.opts.Threads[m.threadIdx], token)
	}
	if m.opts.LiveClass != "" {
		m.live.Set(m.opts.LiveClass, token)
	}
	if m.opts.Notifications {
		m.feed.Set(feedKey, token)
	}
	return tea.Batch(m.events.wait(), expiryTick())
}

// Close tears every session down. Later binding changes are ignored.
func (m Model) Close() {
	m.discussion.Close()
	m.live.Close()
	m.feed.Close()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.help.Width = msg.Width
		m.input.Width = msg.Width - 6
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case changedMsg:
		m.refresh()
		m.reportDrops()
		return m, m.events.wait()

	case reactionMsg:
		m.classroom.React(msg.reaction)
		m.reportDrops()
		cmds := []tea.Cmd{m.events.wait()}
		if !m.animating {
			m.animating = true
			cmds = append(cmds, nextFrame())
		}
		return m, tea.Batch(cmds...)

	case frameMsg:
		if m.classroom.Animate() {
			return m, nextFrame()
		}
		m.animating = false
		return m, nil

	case logMsg:
		m.debug.Add(logKind(msg.level), "", msg.message)
		m.reportDrops()
		return m, m.events.wait()

	case expiryTickMsg:
		if m.expired(time.Time(msg)) && m.token != "" {
			m.revoke()
		}
		return m, expiryTick()
	}

	if m.composing {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// reportDrops logs bus events lost since the last call to the event log.
func (m *Model) reportDrops() {
	if n := m.events.takeDropped(); n > 0 {
		m.debug.Add(debug.KindDebug, "", fmt.Sprintf("dropped %d events, event buffer full", n))
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.composing {
		return m.handleComposerKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Tab):
		m.pane = (m.pane + 1) % paneCount
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Compose):
		return m.startComposing()

	case key.Matches(msg, m.keys.Enter):
		if m.pane == PaneDiscussion {
			m.toggleTyping()
		}
		return m, nil

	case key.Matches(msg, m.keys.React):
		if m.pane == PaneLiveClass {
			m.react(reactions[msg.String()])
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevThread):
		m.cycleThread(-1)
		return m, nil

	case key.Matches(msg, m.keys.NextThread):
		m.cycleThread(1)
		return m, nil

	case key.Matches(msg, m.keys.Detach):
		m.toggleAttached()
		return m, nil

	case key.Matches(msg, m.keys.Reconnect):
		m.reconnect()
		return m, nil

	case key.Matches(msg, m.keys.MarkRead):
		m.store.MarkAllAsRead()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.pane == PaneEvents {
			m.debug.ScrollUp(1)
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.pane == PaneEvents {
			m.debug.ScrollDown(1)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleComposerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.stopComposing()
		return m, nil

	case msg.Type == tea.KeyCtrlC:
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Enter):
		switch m.pane {
		case PaneLiveClass:
			m.sendChat()
		case PaneDiscussion:
			m.toggleTyping()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) startComposing() (tea.Model, tea.Cmd) {
	switch m.pane {
	case PaneDiscussion:
		if _, ok := m.discussion.Current(); !ok {
			return m, nil
		}
		if !m.typing {
			m.toggleTyping()
		}
	case PaneLiveClass:
		if _, ok := m.live.Current(); !ok {
			return m, nil
		}
	default:
		return m, nil
	}
	m.composing = true
	cmd := m.input.Focus()
	return m, cmd
}

func (m *Model) stopComposing() {
	if m.pane == PaneDiscussion && m.typing {
		m.toggleTyping()
	}
	m.composing = false
	m.input.Blur()
	m.input.Reset()
}

func (m *Model) toggleTyping() {
	d, ok := m.discussion.Current()
	if !ok {
		return
	}
	var err error
	if m.typing {
		err = d.StopTyping()
	} else {
		err = d.StartTyping()
	}
	if err != nil {
		m.log.Warn().Err(err).Msg("typing indicator")
		return
	}
	m.typing = !m.typing
	m.presence.Self = m.typing
}

func (m *Model) sendChat() {
	text := strings.TrimSpace(m.input.Value())
	lc, ok := m.live.Current()
	if !ok || text == "" {
		return
	}
	if err := lc.SendChatMessage(text); err != nil {
		m.log.Warn().Err(err).Msg("send chat message")
		return
	}
	m.input.Reset()
}

func (m *Model) react(emoji string) {
	lc, ok := m.live.Current()
	if !ok || emoji == "" {
		return
	}
	if err := lc.SendReaction(emoji); err != nil {
		m.log.Warn().Err(err).Msg("send reaction")
	}
}

// cycleThread moves the discussion binding to the neighbouring configured
// thread.
func (m *Model) cycleThread(step int) {
	n := len(m.opts.Threads)
	if n == 0 {
		return
	}
	m.threadIdx = ((m.threadIdx+step)%n + n) % n
	m.resetTyping()
	m.presence.Reset()
	m.discussion.Set(m.opts.Threads[m.threadIdx], m.token)
	m.refresh()
}

// toggleAttached clears the focused pane's key, or restores the configured
// one when it is already clear.
func (m *Model) toggleAttached() {
	switch m.pane {
	case PaneDiscussion:
		if _, ok := m.discussion.Key(); ok {
			m.resetTyping()
			m.discussion.Clear()
		} else if len(m.opts.Threads) > 0 {
			m.discussion.Set(m.opts.Threads[m.threadIdx], m.token)
		}
		m.presence.Reset()
	case PaneLiveClass:
		if _, ok := m.live.Key(); ok {
			m.live.Clear()
		} else if m.opts.LiveClass != "" {
			m.live.Set(m.opts.LiveClass, m.token)
		}
		m.classroom.Reset()
	case PaneNotifications:
		if _, ok := m.feed.Key(); ok {
			m.feed.Clear()
		} else {
			m.feed.Set(feedKey, m.token)
		}
	default:
		return
	}
	m.refresh()
}

func (m *Model) reconnect() {
	switch m.pane {
	case PaneDiscussion:
		if d, ok := m.discussion.Current(); ok {
			d.Reconnect()
		}
	case PaneLiveClass:
		if lc, ok := m.live.Current(); ok {
			lc.Reconnect()
		}
	case PaneNotifications:
		if n, ok := m.feed.Current(); ok {
			n.Reconnect()
		}
	}
}

func (m *Model) resetTyping() {
	if m.composing && m.pane == PaneDiscussion {
		m.composing = false
		m.input.Blur()
		m.input.Reset()
	}
	m.typing = false
	m.presence.Self = false
}

func (m Model) expired(now time.Time) bool {
	return m.hasExpiry && !now.Before(m.expiry)
}

// revoke drops the token. Bindings keep their keys and come back if a new
// token is ever set.
func (m *Model) revoke() {
	m.log.Warn().Time("exp", m.expiry).Msg("token expired, disconnecting")
	m.token = ""
	m.resetTyping()
	m.discussion.SetToken("")
	m.live.SetToken("")
	m.feed.SetToken("")
	m.refresh()
}

// refresh copies session state into the views.
func (m *Model) refresh() {
	c := status.Channel{Name: sourceDiscussion, State: client.StateIdle.String()}
	c.Key, _ = m.discussion.Key()
	m.presence.ThreadID = c.Key
	if d, ok := m.discussion.Current(); ok {
		m.presence.SetState(d.State())
		c.State, c.Attempts = d.ConnState().String(), d.Attempts()
	} else {
		m.presence.SetState(channel.DiscussionState{})
	}
	m.presence.State = c.State
	m.setChannel(c)

	c = status.Channel{Name: sourceLiveClass, State: client.StateIdle.String()}
	c.Key, _ = m.live.Key()
	m.classroom.SessionID = c.Key
	if lc, ok := m.live.Current(); ok {
		m.classroom.SetState(lc.State())
		c.State, c.Attempts = lc.ConnState().String(), lc.Attempts()
	} else {
		m.classroom.SetState(channel.LiveClassState{})
	}
	m.classroom.State = c.State
	m.setChannel(c)

	c = status.Channel{Name: sourceNotifications, State: client.StateIdle.String()}
	c.Key, _ = m.feed.Key()
	m.notes.Attached = c.Key != ""
	if n, ok := m.feed.Current(); ok {
		c.State, c.Attempts = n.ConnState().String(), n.Attempts()
	}
	m.notes.State = c.State
	m.notes.SetStore(m.store)
	m.statusBar.Unread = m.notes.Unread
	m.setChannel(c)
}

// setChannel updates the status bar and logs state transitions.
func (m *Model) setChannel(c status.Channel) {
	prev, ok := m.statusBar.Get(c.Name)
	if !ok || prev.State != c.State || prev.Key != c.Key {
		line := c.State
		if c.Key == "" {
			line = "detached"
		} else if c.Key != feedKey {
			line = c.Key + " " + c.State
		}
		m.debug.Add(debug.KindState, c.Name, line)
	}
	m.statusBar.Set(c)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	chrome := 3 + 1 + lipgloss.Height(m.help.View(m.keys))
	if m.composing {
		chrome++
	}
	bodyH := m.height - chrome
	if bodyH < 5 {
		bodyH = 5
	}

	var body string
	switch m.pane {
	case PaneDiscussion:
		body = m.presence.View(m.width, bodyH)
	case PaneLiveClass:
		body = m.classroom.View(m.width, bodyH)
	case PaneNotifications:
		body = m.notes.View(m.width, bodyH)
	default:
		body = m.debug.View(m.width, bodyH)
	}

	sections := []string{m.statusBar.View(), m.tabs(), body}
	if m.composing {
		sections = append(sections, m.input.View())
	}
	sections = append(sections, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) tabs() string {
	parts := make([]string, 0, paneCount)
	for p := Pane(0); p < paneCount; p++ {
		label := " " + p.String() + " "
		if p == m.pane {
			parts = append(parts, theme.StyleSelected.
				Background(theme.ChannelColor(p.String())).Render(label))
			continue
		}
		parts = append(parts, theme.StyleDimmed.Render(label))
	}
	return strings.Join(parts, " ")
}

func nextFrame() tea.Cmd {
	return tea.Tick(classroom.FrameInterval(), func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func logKind(level zerolog.Level) string {
	switch {
	case level >= zerolog.ErrorLevel:
		return debug.KindError
	case level == zerolog.WarnLevel:
		return debug.KindWarn
	case level == zerolog.InfoLevel:
		return debug.KindInfo
	default:
		return debug.KindDebug
	}
}
