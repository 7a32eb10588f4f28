package relay

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Kind is the channel family a room belongs to.
type Kind int

const (
	KindDiscussion Kind = iota
	KindLiveClass
	KindNotifications
)

func (k Kind) String() string {
	switch k {
	case KindDiscussion:
		return "discussion"
	case KindLiveClass:
		return "live-class"
	case KindNotifications:
		return "notifications"
	default:
		return "unknown"
	}
}

type roomKey struct {
	kind Kind
	id   string
}

type member struct {
	ref   UserRef
	conns int
}

type room struct {
	key     roomKey
	peers   map[*peer]struct{}
	members map[string]*member
	// order keeps member ids in join order so snapshots are stable.
	order  []string
	typing map[string]bool
}

func newRoom(key roomKey) *room {
	return &room{
		key:     key,
		peers:   make(map[*peer]struct{}),
		members: make(map[string]*member),
		typing:  make(map[string]bool),
	}
}

func (r *room) users() []UserRef {
	out := make([]UserRef, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.members[id].ref)
	}
	return out
}

func (r *room) typers() []UserRef {
	var out []UserRef
	for _, id := range r.order {
		if r.typing[id] {
			out = append(out, r.members[id].ref)
		}
	}
	return out
}

// Hub routes frames between the peers of every room. A single mutex guards
// all rooms.
type Hub struct {
	log zerolog.Logger
	now func() time.Time

	mu    sync.Mutex
	rooms map[roomKey]*room
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:   log,
		now:   time.Now,
		rooms: make(map[roomKey]*room),
	}
}

// Join attaches p to its room and sends it the room's current snapshot.
func (h *Hub) Join(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[p.room]
	if !ok {
		r = newRoom(p.room)
		h.rooms[p.room] = r
	}
	r.peers[p] = struct{}{}
	m, existed := r.members[p.id.UserID]
	if !existed {
		m = &member{ref: p.ref()}
		r.members[p.id.UserID] = m
		r.order = append(r.order, p.id.UserID)
	}
	m.conns++

	switch p.room.kind {
	case KindDiscussion:
		h.sendDiscussionSnapshotLocked(p, r)
		if !existed {
			h.broadcastLocked(r, userFrame{Type: MsgUserJoined, UserRef: p.ref()}, p)
		}
	case KindLiveClass:
		n := len(r.members)
		h.sendLocked(p, countFrame{Type: MsgConnected, ParticipantCount: n, Count: n})
		h.broadcastLocked(r, countFrame{Type: MsgParticipantUpdate, ParticipantCount: n, Count: n}, p)
	}
}

// Leave detaches p. It is safe to call more than once.
func (h *Hub) Leave(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(p)
}

func (h *Hub) leaveLocked(p *peer) {
	if p.closed {
		return
	}
	p.closed = true
	close(p.send)

	r, ok := h.rooms[p.room]
	if !ok {
		return
	}
	delete(r.peers, p)
	uid := p.id.UserID
	if m, ok := r.members[uid]; ok {
		m.conns--
		if m.conns <= 0 {
			delete(r.members, uid)
			r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == uid })
			switch p.room.kind {
			case KindDiscussion:
				if r.typing[uid] {
					delete(r.typing, uid)
					h.broadcastLocked(r, userFrame{Type: MsgUserStoppedTyping, UserRef: p.ref()}, nil)
				}
				h.broadcastLocked(r, userFrame{Type: MsgUserLeft, UserRef: p.ref()}, nil)
			case KindLiveClass:
				n := len(r.members)
				h.broadcastLocked(r, countFrame{Type: MsgParticipantUpdate, ParticipantCount: n, Count: n}, nil)
			}
		}
	}
	if len(r.peers) == 0 {
		delete(h.rooms, p.room)
	}
}

// Handle applies one inbound frame from p.
func (h *Hub) Handle(p *peer, data []byte) error {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[p.room]
	if !ok || p.closed {
		return nil
	}
	uid := p.id.UserID

	switch p.room.kind {
	case KindDiscussion:
		switch in.Type {
		case MsgTyping:
			if !r.typing[uid] {
				r.typing[uid] = true
				h.broadcastLocked(r, userFrame{Type: MsgUserTyping, UserRef: p.ref()}, p)
			}
		case MsgStopTyping:
			if r.typing[uid] {
				delete(r.typing, uid)
				h.broadcastLocked(r, userFrame{Type: MsgUserStoppedTyping, UserRef: p.ref()}, p)
			}
		case MsgRequestSnapshot:
			h.sendDiscussionSnapshotLocked(p, r)
		default:
			return fmt.Errorf("unsupported %s frame %q", p.room.kind, in.Type)
		}
	case KindLiveClass:
		switch in.Type {
		case MsgChatMessage:
			text := strings.TrimSpace(in.Message)
			if text == "" {
				return nil
			}
			if len(text) > maxChatLength {
				return fmt.Errorf("chat message of %d bytes exceeds %d", len(text), maxChatLength)
			}
			h.broadcastLocked(r, chatFrame{
				Type:      MsgChatMessage,
				ID:        uuid.NewString(),
				UserRef:   p.ref(),
				Message:   text,
				Timestamp: h.now().UTC(),
			}, nil)
		case MsgReaction:
			if in.Emoji == "" {
				return nil
			}
			h.broadcastLocked(r, reactionFrame{Type: MsgReaction, UserRef: p.ref(), Emoji: in.Emoji}, nil)
		case MsgRequestSnapshot:
			n := len(r.members)
			h.sendLocked(p, countFrame{Type: MsgParticipantUpdate, ParticipantCount: n, Count: n})
		default:
			return fmt.Errorf("unsupported %s frame %q", p.room.kind, in.Type)
		}
	default:
		return fmt.Errorf("unsupported %s frame %q", p.room.kind, in.Type)
	}
	return nil
}

// Notify stamps n and pushes it to every notification socket of userID. It
// returns the stamped notification and the number of sockets reached.
func (h *Hub) Notify(userID string, n Notification) (Notification, int) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Kind == "" {
		n.Kind = "notification"
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = h.now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[roomKey{kind: KindNotifications, id: userID}]
	if !ok {
		return n, 0
	}
	delivered := len(r.peers)
	h.broadcastLocked(r, n, nil)
	return n, delivered
}

func (h *Hub) sendDiscussionSnapshotLocked(p *peer, r *room) {
	h.sendLocked(p, onlineUsersFrame{Type: MsgOnlineUsers, Users: r.users()})
	for _, u := range r.typers() {
		if u.UserID != p.id.UserID {
			h.sendLocked(p, userFrame{Type: MsgUserTyping, UserRef: u})
		}
	}
}

func (h *Hub) sendLocked(p *peer, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal frame")
		return
	}
	h.deliverLocked(p, data)
}

// broadcastLocked sends v to every peer in r except skip.
func (h *Hub) broadcastLocked(r *room, v any, skip *peer) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal frame")
		return
	}
	for p := range r.peers {
		if p != skip {
			h.deliverLocked(p, data)
		}
	}
}

func (h *Hub) deliverLocked(p *peer, data []byte) {
	if p.closed {
		return
	}
	select {
	case p.send <- data:
	default:
		h.log.Warn().Str("user", p.id.UserID).Str("room", p.room.kind.String()).Msg("client too slow, disconnecting")
		h.leaveLocked(p)
	}
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Rooms       map[string]int `json:"rooms"`
	Connections int            `json:"connections"`
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Stats{Rooms: map[string]int{}}
	for key, r := range h.rooms {
		s.Rooms[key.kind.String()]++
		s.Connections += len(r.peers)
	}
	return s
}

// PeerCount returns the number of attached sockets.
func (h *Hub) PeerCount() int {
	return h.Stats().Connections
}

// ActiveRooms lists the ids of rooms of kind that have a socket attached.
func (h *Hub) ActiveRooms(kind Kind) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var ids []string
	for key, r := range h.rooms {
		if key.kind != kind {
			continue
		}
		for p := range r.peers {
			if p.conn != nil {
				ids = append(ids, key.id)
				break
			}
		}
	}
	slices.Sort(ids)
	return ids
}
