package channel

import (
	"sync"

	"github.com/coursehub/realtime/internal/client"
	"github.com/coursehub/realtime/internal/notify"
)

// NotificationsPath is the socket path of the per-user notification feed.
const NotificationsPath = "/ws/notifications"

// ApplyNotification prepends f to list. Every frame on this channel is a
// complete notification, whatever its type.
func ApplyNotification(list []client.Frame, f client.Frame) []client.Frame {
	out := make([]client.Frame, 0, len(list)+1)
	out = append(out, f)
	return append(out, list...)
}

// DecodeNotification converts a frame into a store record. Fields that do not
// decode are left empty; the rest of the record is kept.
func DecodeNotification(f client.Frame) notify.Notification {
	var n notify.Notification
	_ = f.Decode(&n)
	n.Kind = string(f.Type)
	n.Raw = f.Raw
	return n
}

// Notifications is the push feed of the signed-in user. Frames are kept
// newest first and mirrored into a shared store when one is given.
type Notifications struct {
	conn
	watchers

	opts  Options
	store *notify.Store

	mu     sync.RWMutex
	frames []client.Frame
}

// NewNotifications creates an unconnected feed. store may be nil.
func NewNotifications(opts Options, store *notify.Store) *Notifications {
	n := &Notifications{opts: opts, store: store}
	n.conn = opts.conn(NotificationsPath, client.Handler{
		OnMessage:     n.handle,
		OnStateChange: func(client.State) { n.notify() },
	})
	return n
}

func (n *Notifications) handle(f client.Frame) {
	applied := n.gate.fold(func() {
		n.mu.Lock()
		n.frames = ApplyNotification(n.frames, f)
		n.mu.Unlock()
	})
	if !applied {
		n.opts.Logger.Debug().Str("type", string(f.Type)).Msg("notifications: stale frame dropped")
		return
	}
	if n.store != nil {
		n.store.Push(DecodeNotification(f))
	}
	n.notify()
}

// Frames returns every received frame, newest first.
func (n *Notifications) Frames() []client.Frame {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]client.Frame(nil), n.frames...)
}

// Store returns the shared store, or nil.
func (n *Notifications) Store() *notify.Store { return n.store }
