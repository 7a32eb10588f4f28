package channel

import (
	"sync"

	"github.com/coursehub/realtime/internal/client"
)

// DiscussionPath is the socket path for a discussion thread.
func DiscussionPath(threadID string) string {
	return "/ws/discussions/" + threadID
}

// DiscussionState is the presence view of one thread.
type DiscussionState struct {
	TypingUsers []User
	OnlineUsers []User
}

type discussionFold func(DiscussionState, client.Frame) (DiscussionState, error)

var discussionDispatch = map[client.MessageType]discussionFold{
	client.MsgUserTyping: func(s DiscussionState, f client.Frame) (DiscussionState, error) {
		var u User
		if err := f.Decode(&u); err != nil {
			return s, err
		}
		s.TypingUsers = withUser(s.TypingUsers, u)
		return s, nil
	},
	client.MsgUserStoppedTyping: func(s DiscussionState, f client.Frame) (DiscussionState, error) {
		var u User
		if err := f.Decode(&u); err != nil {
			return s, err
		}
		s.TypingUsers = withoutUser(s.TypingUsers, u.UserID)
		return s, nil
	},
	client.MsgOnlineUsers: func(s DiscussionState, f client.Frame) (DiscussionState, error) {
		var body struct {
			Users []User `json:"users"`
		}
		if err := f.Decode(&body); err != nil {
			return s, err
		}
		s.OnlineUsers = dedupe(body.Users)
		return s, nil
	},
	client.MsgUserJoined: func(s DiscussionState, f client.Frame) (DiscussionState, error) {
		var u User
		if err := f.Decode(&u); err != nil {
			return s, err
		}
		s.OnlineUsers = withUser(s.OnlineUsers, u)
		return s, nil
	},
	client.MsgUserLeft: func(s DiscussionState, f client.Frame) (DiscussionState, error) {
		var u User
		if err := f.Decode(&u); err != nil {
			return s, err
		}
		s.OnlineUsers = withoutUser(s.OnlineUsers, u.UserID)
		return s, nil
	},
}

// ApplyDiscussion folds one frame into s. Unknown types and frames whose
// fields do not decode leave s unchanged.
func ApplyDiscussion(s DiscussionState, f client.Frame) DiscussionState {
	fold, ok := discussionDispatch[f.Type]
	if !ok {
		return s
	}
	next, err := fold(s, f)
	if err != nil {
		return s
	}
	return next
}

// Discussion is a live presence and typing session for one thread.
type Discussion struct {
	conn
	watchers

	threadID string
	opts     Options

	mu    sync.RWMutex
	state DiscussionState
	opens int
}

// NewDiscussion creates an unconnected session for threadID.
func NewDiscussion(threadID string, opts Options) *Discussion {
	d := &Discussion{threadID: threadID, opts: opts}
	d.conn = opts.conn(DiscussionPath(threadID), client.Handler{
		OnMessage:     d.handle,
		OnOpen:        d.opened,
		OnStateChange: func(client.State) { d.notify() },
	})
	return d
}

// ThreadID returns the thread this session is bound to.
func (d *Discussion) ThreadID() string { return d.threadID }

func (d *Discussion) handle(f client.Frame) {
	if _, ok := discussionDispatch[f.Type]; !ok {
		d.opts.Logger.Debug().Str("type", string(f.Type)).Msg("discussion: unhandled frame")
		return
	}
	applied := d.gate.fold(func() {
		d.mu.Lock()
		d.state = ApplyDiscussion(d.state, f)
		d.mu.Unlock()
	})
	if !applied {
		d.opts.Logger.Debug().Str("type", string(f.Type)).Msg("discussion: stale frame dropped")
		return
	}
	d.notify()
}

// opened asks for a fresh snapshot after every reconnect. Typing indicators
// are deltas, so the ones held across the gap are dropped first.
func (d *Discussion) opened() {
	d.mu.Lock()
	d.opens++
	resync := d.opens > 1
	if resync {
		d.state.TypingUsers = nil
	}
	d.mu.Unlock()
	if !resync {
		return
	}
	if err := d.mgr.Send(client.Frame{Type: client.MsgRequestSnapshot}); err != nil {
		d.opts.Logger.Warn().Err(err).Msg("discussion: snapshot request")
	}
	d.notify()
}

// State returns a copy of the derived state.
func (d *Discussion) State() DiscussionState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return DiscussionState{
		TypingUsers: append([]User(nil), d.state.TypingUsers...),
		OnlineUsers: append([]User(nil), d.state.OnlineUsers...),
	}
}

// TypingUsers returns the users currently typing.
func (d *Discussion) TypingUsers() []User { return d.State().TypingUsers }

// OnlineUsers returns the users present in the thread.
func (d *Discussion) OnlineUsers() []User { return d.State().OnlineUsers }

// StartTyping announces that the local user is typing.
func (d *Discussion) StartTyping() error {
	return d.mgr.Send(client.Frame{Type: client.MsgTyping})
}

// StopTyping announces that the local user stopped typing.
func (d *Discussion) StopTyping() error {
	return d.mgr.Send(client.Frame{Type: client.MsgStopTyping})
}
