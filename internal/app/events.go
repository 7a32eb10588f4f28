package app

import (
	"fmt"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/coursehub/realtime/internal/channel"
	"github.com/rs/zerolog"
)

// Channel names as shown in the status bar and event log.
const (
	sourceDiscussion    = "discussion"
	sourceLiveClass     = "live class"
	sourceNotifications = "notifications"
)

// changedMsg reports that a session or the notification store changed.
type changedMsg struct {
	source string
}

// reactionMsg carries a live-class reaction burst.
type reactionMsg struct {
	reaction channel.Reaction
}

// logMsg mirrors a log line into the event log.
type logMsg struct {
	level   zerolog.Level
	message string
}

// expiryTickMsg drives the token expiry check.
type expiryTickMsg time.Time

// frameMsg advances the reaction animation.
type frameMsg time.Time

const eventBuffer = 256

// bus carries session callbacks, which run on socket goroutines, into the
// Bubble Tea loop.
type bus struct {
	ch      chan tea.Msg
	dropped *atomic.Int64
	// log must not carry the bus hook.
	log zerolog.Logger
}

func newBus(size int, log zerolog.Logger) bus {
	return bus{ch: make(chan tea.Msg, size), dropped: new(atomic.Int64), log: log}
}

// post never blocks. When the buffer is full msg is dropped, counted and
// logged at debug level.
func (b bus) post(msg tea.Msg) {
	select {
	case b.ch <- msg:
	default:
		n := b.dropped.Add(1)
		b.log.Debug().Str("event", fmt.Sprintf("%T", msg)).Int64("dropped", n).Msg("event buffer full")
	}
}

// takeDropped returns the number of events dropped since the last call.
func (b bus) takeDropped() int64 {
	return b.dropped.Swap(0)
}

// wait returns a command that yields the next event.
func (b bus) wait() tea.Cmd {
	return func() tea.Msg {
		return <-b.ch
	}
}

// Run implements zerolog.Hook so log lines show up in the event log.
func (b bus) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.InfoLevel || msg == "" {
		return
	}
	b.post(logMsg{level: level, message: msg})
}

func expiryTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return expiryTickMsg(t)
	})
}
