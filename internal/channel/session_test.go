package channel

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coursehub/realtime/internal/client"
	"github.com/coursehub/realtime/internal/notify"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// scriptServer runs script for every accepted socket; n counts from 1.
func scriptServer(t *testing.T, script func(t *testing.T, conn *websocket.Conn, n int)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var count atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") == "" {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(t, conn, int(count.Add(1)))
	}))
	t.Cleanup(srv.Close)
	return srv, &count
}

func opts(srv *httptest.Server) Options {
	return Options{BaseURL: srv.URL, Token: "tok", ReconnectInterval: 10 * time.Millisecond}
}

func write(conn *websocket.Conn, raw string) {
	_ = conn.WriteMessage(websocket.TextMessage, []byte(raw))
}

func readType(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(waitFor))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return ""
	}
	f, err := client.ParseFrame(data)
	if err != nil {
		return ""
	}
	return string(f.Type)
}

func drain(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Time{})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestDiscussionSession(t *testing.T) {
	got := make(chan string, 4)
	srv, _ := scriptServer(t, func(t *testing.T, conn *websocket.Conn, n int) {
		write(conn, `{"type":"online_users","users":[{"user_id":1,"username":"a"},{"user_id":2,"username":"b"}]}`)
		write(conn, `not json at all`)
		write(conn, `{"type":"user_left","user_id":1}`)
		write(conn, `{"type":"user_typing","user_id":2,"username":"b"}`)
		got <- readType(conn)
		got <- readType(conn)
		drain(conn)
	})

	d := NewDiscussion("42", opts(srv))
	changed := make(chan struct{}, 64)
	d.OnChange(func() { changed <- struct{}{} })
	d.Connect()
	defer d.Disconnect()

	require.Eventually(t, func() bool { return len(d.TypingUsers()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []User{{UserID: "2", Username: "b"}}, d.OnlineUsers())
	assert.True(t, d.IsConnected())
	assert.NotEmpty(t, changed)
	assert.Equal(t, "42", d.ThreadID())

	require.NoError(t, d.StartTyping())
	require.NoError(t, d.StopTyping())
	assert.Equal(t, "typing", <-got)
	assert.Equal(t, "stop_typing", <-got)
}

func TestDiscussionResyncsAfterReconnect(t *testing.T) {
	requests := make(chan string, 4)
	srv, count := scriptServer(t, func(t *testing.T, conn *websocket.Conn, n int) {
		if n == 1 {
			write(conn, `{"type":"online_users","users":[{"user_id":1,"username":"a"}]}`)
			write(conn, `{"type":"user_typing","user_id":1,"username":"a"}`)
			time.Sleep(50 * time.Millisecond)
			return
		}
		requests <- readType(conn)
		write(conn, `{"type":"online_users","users":[{"user_id":1,"username":"a"},{"user_id":3,"username":"c"}]}`)
		drain(conn)
	})

	d := NewDiscussion("7", opts(srv))
	d.Connect()
	defer d.Disconnect()

	select {
	case typ := <-requests:
		assert.Equal(t, string(client.MsgRequestSnapshot), typ)
	case <-time.After(waitFor):
		t.Fatal("no snapshot request after reconnect")
	}
	require.Eventually(t, func() bool { return len(d.OnlineUsers()) == 2 }, waitFor, 5*time.Millisecond)
	assert.Empty(t, d.TypingUsers())
	assert.EqualValues(t, 2, count.Load())
}

func TestStateSurvivesDisconnect(t *testing.T) {
	srv, _ := scriptServer(t, func(t *testing.T, conn *websocket.Conn, n int) {
		write(conn, `{"type":"connected","participant_count":5}`)
		write(conn, `{"type":"chat_message","username":"ana","message":"hello"}`)
		drain(conn)
	})

	lc := NewLiveClass("s1", opts(srv))
	lc.Connect()
	require.Eventually(t, func() bool { return len(lc.ChatMessages()) == 1 }, waitFor, 5*time.Millisecond)

	lc.Disconnect()
	assert.Equal(t, client.StateClosed, lc.ConnState())
	assert.Equal(t, 5, lc.ParticipantCount())
	assert.Equal(t, "hello", lc.ChatMessages()[0].Message)
}

func TestFrameAfterDisconnectIsDropped(t *testing.T) {
	srv, _ := scriptServer(t, func(t *testing.T, conn *websocket.Conn, n int) {
		write(conn, `{"type":"online_users","users":[{"user_id":1,"username":"a"}]}`)
		drain(conn)
	})

	d := NewDiscussion("9", opts(srv))
	d.Connect()
	require.Eventually(t, func() bool { return len(d.OnlineUsers()) == 1 }, waitFor, 5*time.Millisecond)

	d.Disconnect()
	var changes atomic.Int32
	d.OnChange(func() { changes.Add(1) })

	// A frame read from the old socket that reaches the session late.
	d.handle(frame(t, `{"type":"user_joined","user_id":2,"username":"b"}`))
	assert.Equal(t, []User{{UserID: "1", Username: "a"}}, d.OnlineUsers())
	assert.Zero(t, changes.Load())

	lc := NewLiveClass("3", opts(srv))
	lc.handle(frame(t, `{"type":"participant_update","count":5}`))
	assert.Zero(t, lc.ParticipantCount(), "frames before the first open are dropped too")
}

func TestGateCloseWaitsForInFlightFold(t *testing.T) {
	g := &gate{}
	g.open()

	entered := make(chan struct{})
	release := make(chan struct{})
	go g.fold(func() {
		close(entered)
		<-release
	})
	<-entered

	closed := make(chan struct{})
	go func() {
		g.close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("close returned while a fold was running")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	select {
	case <-closed:
	case <-time.After(waitFor):
		t.Fatal("close never returned")
	}

	ran := false
	assert.False(t, g.fold(func() { ran = true }))
	assert.False(t, ran)
}

func TestLiveClassSession(t *testing.T) {
	got := make(chan string, 4)
	srv, _ := scriptServer(t, func(t *testing.T, conn *websocket.Conn, n int) {
		write(conn, `{"type":"connected","participant_count":1}`)
		write(conn, `{"type":"participant_update","count":5}`)
		write(conn, `{"type":"participant_update","count":3}`)
		write(conn, `{"type":"reaction","user_id":2,"emoji":"👏"}`)
		for range 2 {
			_ = conn.SetReadDeadline(time.Now().Add(waitFor))
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			got <- string(data)
		}
		drain(conn)
	})

	lc := NewLiveClass("s9", opts(srv))
	reactions := make(chan Reaction, 1)
	lc.OnReaction(func(r Reaction) { reactions <- r })

	// Queued before the socket opens.
	require.NoError(t, lc.SendChatMessage("hi all"))
	lc.Connect()
	defer lc.Disconnect()
	require.NoError(t, lc.SendReaction("🎉"))

	select {
	case r := <-reactions:
		assert.Equal(t, "👏", r.Emoji)
	case <-time.After(waitFor):
		t.Fatal("no reaction")
	}
	require.Eventually(t, func() bool { return lc.ParticipantCount() == 3 }, waitFor, 5*time.Millisecond)
	assert.Empty(t, lc.State().ChatMessages)

	assert.JSONEq(t, `{"type":"chat_message","message":"hi all"}`, <-got)
	assert.JSONEq(t, `{"type":"reaction","emoji":"🎉"}`, <-got)
}

func TestNotificationsFeedsStore(t *testing.T) {
	srv, _ := scriptServer(t, func(t *testing.T, conn *websocket.Conn, n int) {
		write(conn, `{"type":"announcement","id":"n1","title":"Welcome","message":"**hi**"}`)
		write(conn, `{"type":"grade","id":"n2","title":"Quiz graded","is_read":true}`)
		drain(conn)
	})

	store := notify.NewStore()
	feed := NewNotifications(opts(srv), store)
	feed.Connect()
	defer feed.Disconnect()

	require.Eventually(t, func() bool { return len(store.Notifications()) == 2 }, waitFor, 5*time.Millisecond)
	items := store.Notifications()
	assert.Equal(t, client.ID("n2"), items[0].ID)
	assert.Equal(t, "announcement", items[1].Kind)
	assert.Equal(t, 1, store.UnreadCount())
	assert.Len(t, feed.Frames(), 2)
	assert.True(t, strings.Contains(string(feed.Frames()[1].Raw), "Welcome"))
}

func TestSessionWithoutTokenStaysIdle(t *testing.T) {
	srv, count := scriptServer(t, func(*testing.T, *websocket.Conn, int) {})
	o := opts(srv)
	o.Token = ""
	feed := NewNotifications(o, nil)
	feed.Connect()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, client.StateIdle, feed.ConnState())
	assert.Zero(t, count.Load())
}
