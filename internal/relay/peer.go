package relay

import (
	"time"

	"github.com/coursehub/realtime/internal/auth"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// peer is one socket attached to a room. Bots have no conn.
type peer struct {
	conn *websocket.Conn
	send chan []byte
	id   auth.Identity
	room roomKey

	// closed is guarded by Hub.mu.
	closed bool
}

func newPeer(conn *websocket.Conn, id auth.Identity, room roomKey, buffer int) *peer {
	p := &peer{
		conn: conn,
		send: make(chan []byte, buffer),
		id:   id,
		room: room,
	}
	go p.writePump()
	return p
}

func (p *peer) writePump() {
	if p.conn == nil {
		for range p.send {
		}
		return
	}
	defer p.conn.Close()
	for msg := range p.send {
		p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
}

func (p *peer) ref() UserRef {
	return UserRef{UserID: p.id.UserID, Username: p.id.Username}
}
