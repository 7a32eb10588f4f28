package channel

import (
	"sync"

	"github.com/coursehub/realtime/internal/client"
)

// LiveClassPath is the socket path for a live-class session.
func LiveClassPath(sessionID string) string {
	return "/ws/live-class/" + sessionID
}

// LiveClassState is the derived view of a live class.
type LiveClassState struct {
	ParticipantCount int
	// ChatMessages holds every chat_message frame in arrival order.
	ChatMessages []client.Frame
}

// ChatMessage is the decoded form of a chat_message frame.
type ChatMessage struct {
	ID        client.ID   `json:"id"`
	UserID    UserID      `json:"user_id"`
	Username  string      `json:"username"`
	Message   string      `json:"message"`
	Timestamp client.Time `json:"timestamp"`
}

// DecodeChat reads a chat_message frame.
func DecodeChat(f client.Frame) (ChatMessage, error) {
	var m ChatMessage
	err := f.Decode(&m)
	return m, err
}

// Reaction is a transient emoji burst. It is never stored.
type Reaction struct {
	UserID   UserID `json:"user_id"`
	Username string `json:"username"`
	Emoji    string `json:"emoji"`
}

func applyCount(s LiveClassState, f client.Frame) (LiveClassState, *Reaction, error) {
	var body struct {
		ParticipantCount *int `json:"participant_count"`
		Count            *int `json:"count"`
	}
	if err := f.Decode(&body); err != nil {
		return s, nil, err
	}
	n := body.ParticipantCount
	if n == nil {
		n = body.Count
	}
	if n == nil {
		return s, nil, nil
	}
	s.ParticipantCount = max(*n, 0)
	return s, nil, nil
}

var liveClassDispatch = map[client.MessageType]func(LiveClassState, client.Frame) (LiveClassState, *Reaction, error){
	client.MsgConnected:         applyCount,
	client.MsgParticipantUpdate: applyCount,
	client.MsgChatMessage: func(s LiveClassState, f client.Frame) (LiveClassState, *Reaction, error) {
		n := len(s.ChatMessages)
		s.ChatMessages = append(s.ChatMessages[:n:n], f)
		return s, nil, nil
	},
	client.MsgReaction: func(s LiveClassState, f client.Frame) (LiveClassState, *Reaction, error) {
		var r Reaction
		if err := f.Decode(&r); err != nil {
			return s, nil, err
		}
		return s, &r, nil
	},
}

// ApplyLiveClass folds one frame into s. A reaction frame leaves s unchanged
// and is returned separately.
func ApplyLiveClass(s LiveClassState, f client.Frame) (LiveClassState, *Reaction) {
	fold, ok := liveClassDispatch[f.Type]
	if !ok {
		return s, nil
	}
	next, r, err := fold(s, f)
	if err != nil {
		return s, nil
	}
	return next, r
}

// LiveClass is the chat and participant session of one live class.
type LiveClass struct {
	conn
	watchers

	sessionID string
	opts      Options

	mu        sync.RWMutex
	state     LiveClassState
	opens     int
	reactions []func(Reaction)
}

// NewLiveClass creates an unconnected session for sessionID.
func NewLiveClass(sessionID string, opts Options) *LiveClass {
	lc := &LiveClass{sessionID: sessionID, opts: opts}
	lc.conn = opts.conn(LiveClassPath(sessionID), client.Handler{
		OnMessage:     lc.handle,
		OnOpen:        lc.opened,
		OnStateChange: func(client.State) { lc.notify() },
	})
	return lc
}

// SessionID returns the live-class session this is bound to.
func (lc *LiveClass) SessionID() string { return lc.sessionID }

// OnReaction registers f for reaction side effects.
func (lc *LiveClass) OnReaction(f func(Reaction)) {
	lc.mu.Lock()
	lc.reactions = append(lc.reactions, f)
	lc.mu.Unlock()
}

func (lc *LiveClass) handle(f client.Frame) {
	if _, ok := liveClassDispatch[f.Type]; !ok {
		lc.opts.Logger.Debug().Str("type", string(f.Type)).Msg("live-class: unhandled frame")
		return
	}
	var (
		r    *Reaction
		subs []func(Reaction)
	)
	applied := lc.gate.fold(func() {
		lc.mu.Lock()
		lc.state, r = ApplyLiveClass(lc.state, f)
		subs = append(subs, lc.reactions...)
		lc.mu.Unlock()
	})
	if !applied {
		lc.opts.Logger.Debug().Str("type", string(f.Type)).Msg("live-class: stale frame dropped")
		return
	}

	if r != nil {
		for _, fn := range subs {
			fn(*r)
		}
		return
	}
	lc.notify()
}

func (lc *LiveClass) opened() {
	lc.mu.Lock()
	lc.opens++
	resync := lc.opens > 1
	lc.mu.Unlock()
	if !resync {
		return
	}
	if err := lc.mgr.Send(client.Frame{Type: client.MsgRequestSnapshot}); err != nil {
		lc.opts.Logger.Warn().Err(err).Msg("live-class: snapshot request")
	}
}

// State returns a copy of the derived state.
func (lc *LiveClass) State() LiveClassState {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return LiveClassState{
		ParticipantCount: lc.state.ParticipantCount,
		ChatMessages:     append([]client.Frame(nil), lc.state.ChatMessages...),
	}
}

// ParticipantCount returns the last reported participant count.
func (lc *LiveClass) ParticipantCount() int {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.state.ParticipantCount
}

// ChatMessages returns the decoded chat history. A frame that fails to decode
// keeps its position with whatever fields were read, and the failure is logged.
func (lc *LiveClass) ChatMessages() []ChatMessage {
	frames := lc.State().ChatMessages
	out := make([]ChatMessage, len(frames))
	for i, f := range frames {
		var err error
		if out[i], err = DecodeChat(f); err != nil {
			lc.opts.Logger.Debug().Err(err).Int("index", i).Msg("live-class: chat decode")
		}
	}
	return out
}

// SendChatMessage posts text to the class chat.
func (lc *LiveClass) SendChatMessage(text string) error {
	return lc.mgr.Send(struct {
		Type    client.MessageType `json:"type"`
		Message string             `json:"message"`
	}{client.MsgChatMessage, text})
}

// SendReaction broadcasts an emoji reaction.
func (lc *LiveClass) SendReaction(emoji string) error {
	return lc.mgr.Send(struct {
		Type  client.MessageType `json:"type"`
		Emoji string             `json:"emoji"`
	}{client.MsgReaction, emoji})
}
