package relay

import (
	"encoding/json"

	"github.com/coursehub/realtime/internal/auth"
)

const botBuffer = 16

// Bot is a participant without a socket. Its frames go through the same
// handling as a real client's.
type Bot struct {
	hub *Hub
	p   *peer
}

// AttachBot joins a socketless participant to a room.
func (h *Hub) AttachBot(kind Kind, roomID string, id auth.Identity) *Bot {
	p := newPeer(nil, id, roomKey{kind: kind, id: roomID}, botBuffer)
	h.Join(p)
	return &Bot{hub: h, p: p}
}

// Send handles v as if the bot had written it to its socket.
func (b *Bot) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.hub.Handle(b.p, data)
}

// Leave detaches the bot.
func (b *Bot) Leave() { b.hub.Leave(b.p) }

// Identity returns who the bot is.
func (b *Bot) Identity() auth.Identity { return b.p.id }
