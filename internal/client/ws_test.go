package client

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func testConfig() Config {
	return Config{
		BaseURL:              "http://classroom.test",
		Path:                 "/ws/discussions/7",
		Token:                "tok",
		ReconnectInterval:    3 * time.Second,
		MaxReconnectAttempts: 5,
	}
}

func waitState(t *testing.T, m *Manager, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State() == want }, waitFor, 5*time.Millisecond,
		"state never became %s (now %s)", want, m.State())
}

func recvConn(t *testing.T, d *fakeDialer) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(waitFor):
		t.Fatal("no connection dialled")
		return nil
	}
}

func recvTimer(t *testing.T, c *fakeClock) *fakeTimer {
	t.Helper()
	select {
	case tm := <-c.scheduled:
		return tm
	case <-time.After(waitFor):
		t.Fatal("no reconnect scheduled")
		return nil
	}
}

func assertNoDial(t *testing.T, d *fakeDialer) {
	t.Helper()
	select {
	case u := <-d.urls:
		t.Fatalf("unexpected dial to %s", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnectWithoutTokenStaysIdle(t *testing.T) {
	for _, cfg := range []Config{
		{BaseURL: "http://classroom.test", Path: "/ws/notifications"},
		{Token: "tok", Path: "/ws/notifications"},
	} {
		d := newFakeDialer(0)
		m := New(cfg, WithDialer(d))
		m.Connect()
		assert.Equal(t, StateIdle, m.State())
		assertNoDial(t, d)
	}
}

func TestConnectDialsTokenURL(t *testing.T) {
	d := newFakeDialer(0)
	m := New(testConfig(), WithDialer(d))
	m.Connect()

	select {
	case u := <-d.urls:
		assert.Equal(t, "ws://classroom.test/ws/discussions/7?token=tok", u)
	case <-time.After(waitFor):
		t.Fatal("no dial")
	}
	recvConn(t, d)
	waitState(t, m, StateOpen)
	assert.True(t, m.IsConnected())
}

func TestSendQueuesUntilOpenAndFlushesInOrder(t *testing.T) {
	d := newFakeDialer(0)
	var queuedAtOpen []int
	var mu sync.Mutex
	var m *Manager
	m = New(testConfig(), WithDialer(d), WithHandler(Handler{
		OnOpen: func() {
			mu.Lock()
			queuedAtOpen = append(queuedAtOpen, m.QueueLen())
			mu.Unlock()
		},
	}))

	for i, typ := range []MessageType{MsgTyping, MsgStopTyping, MsgTyping} {
		require.NoError(t, m.Send(map[string]any{"type": typ, "n": i}))
		assert.Equal(t, i+1, m.QueueLen())
	}

	m.Connect()
	conn := recvConn(t, d)
	waitState(t, m, StateOpen)
	require.NoError(t, m.Send(map[string]any{"type": MsgChatMessage, "n": 3}))

	assert.Equal(t, []string{
		`{"n":0,"type":"typing"}`,
		`{"n":1,"type":"stop_typing"}`,
		`{"n":2,"type":"typing"}`,
		`{"n":3,"type":"chat_message"}`,
	}, conn.writes())
	assert.Zero(t, m.QueueLen())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(queuedAtOpen) == 1
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, []int{0}, queuedAtOpen)
}

func TestSendEncodeErrorIsReturned(t *testing.T) {
	m := New(testConfig(), WithDialer(newFakeDialer(0)))
	err := m.Send(map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Zero(t, m.QueueLen())
}

func TestMalformedFrameIsDropped(t *testing.T) {
	d := newFakeDialer(0)
	got := make(chan Frame, 4)
	m := New(testConfig(), WithDialer(d), WithHandler(Handler{
		OnMessage: func(f Frame) { got <- f },
	}))
	m.Connect()
	conn := recvConn(t, d)
	waitState(t, m, StateOpen)

	conn.incoming <- []byte(`{"type": "user_typing", `)
	conn.incoming <- []byte(`[1,2,3]`)
	conn.incoming <- []byte(`{"type":"user_joined","user_id":4}`)

	select {
	case f := <-got:
		assert.Equal(t, MsgUserJoined, f.Type)
	case <-time.After(waitFor):
		t.Fatal("valid frame not delivered")
	}
	assert.Empty(t, got)
	assert.Equal(t, StateOpen, m.State())
}

func TestFramesDeliveredInOrder(t *testing.T) {
	d := newFakeDialer(0)
	got := make(chan string, 16)
	m := New(testConfig(), WithDialer(d), WithHandler(Handler{
		OnMessage: func(f Frame) {
			var body struct {
				N string `json:"n"`
			}
			_ = f.Decode(&body)
			got <- body.N
		},
	}))
	m.Connect()
	conn := recvConn(t, d)
	for _, n := range []string{"a", "b", "c", "d"} {
		conn.incoming <- []byte(`{"type":"chat_message","n":"` + n + `"}`)
	}
	var order []string
	for range 4 {
		select {
		case n := <-got:
			order = append(order, n)
		case <-time.After(waitFor):
			t.Fatal("frame missing")
		}
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	d := newFakeDialer(-1)
	clock := newFakeClock()
	m := New(testConfig(), WithDialer(d), WithClock(clock))
	m.Connect()

	want := []time.Duration{
		3000 * time.Millisecond,
		4500 * time.Millisecond,
		6750 * time.Millisecond,
		10125 * time.Millisecond,
		15187500 * time.Microsecond,
	}
	for k, delay := range want {
		tm := recvTimer(t, clock)
		assert.Equal(t, delay, tm.d, "attempt %d", k+1)
		assert.Equal(t, StateReconnecting, m.State())
		assert.Equal(t, k+1, m.Attempts())
		tm.fire()
	}

	waitState(t, m, StateClosed)
	select {
	case tm := <-clock.scheduled:
		t.Fatalf("attempt beyond the limit scheduled after %s", tm.d)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Len(t, d.urls, 1+len(want))
	assert.False(t, m.IsConnected())
}

func TestReconnectDelayIsCapped(t *testing.T) {
	d := newFakeDialer(-1)
	clock := newFakeClock()
	cfg := testConfig()
	cfg.MaxReconnectAttempts = 12
	cfg.MaxReconnectDelay = 20 * time.Second
	m := New(cfg, WithDialer(d), WithClock(clock))
	m.Connect()

	var last time.Duration
	for range 12 {
		tm := recvTimer(t, clock)
		assert.LessOrEqual(t, tm.d, 20*time.Second)
		last = tm.d
		tm.fire()
	}
	assert.Equal(t, 20*time.Second, last)
	waitState(t, m, StateClosed)
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	d := newFakeDialer(-1)
	clock := newFakeClock()
	m := New(testConfig(), WithDialer(d), WithClock(clock))
	m.Connect()
	<-d.urls

	tm := recvTimer(t, clock)
	m.Disconnect()
	assert.True(t, tm.isStopped())
	assert.Equal(t, StateClosed, m.State())

	// A callback that already escaped the timer must still do nothing.
	tm.f()
	assertNoDial(t, d)
	assert.Equal(t, StateClosed, m.State())
}

func TestDisconnectSendsNormalClosureOnce(t *testing.T) {
	d := newFakeDialer(0)
	var mu sync.Mutex
	var states []State
	m := New(testConfig(), WithDialer(d), WithHandler(Handler{
		OnStateChange: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	}))
	m.Connect()
	conn := recvConn(t, d)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 2
	}, waitFor, 5*time.Millisecond)

	m.Disconnect()
	m.Disconnect()

	frames := conn.closeFrames()
	require.Len(t, frames, 1)
	assert.Equal(t, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Client disconnect"), frames[0])
	assert.Equal(t, StateClosed, m.State())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateConnecting, StateOpen, StateClosed}, states)
}

func TestIntentionalCloseDoesNotReconnect(t *testing.T) {
	d := newFakeDialer(0)
	clock := newFakeClock()
	m := New(testConfig(), WithDialer(d), WithClock(clock))
	m.Connect()
	recvConn(t, d)
	<-d.urls
	waitState(t, m, StateOpen)

	m.Disconnect()
	assertNoDial(t, d)
	assert.Empty(t, clock.scheduled)
}

func TestDropSchedulesReconnectAndOpenResetsAttempts(t *testing.T) {
	d := newFakeDialer(0)
	clock := newFakeClock()
	closed := make(chan error, 1)
	m := New(testConfig(), WithDialer(d), WithClock(clock), WithHandler(Handler{
		OnClose: func(err error) { closed <- err },
	}))
	m.Connect()
	conn := recvConn(t, d)
	waitState(t, m, StateOpen)

	conn.drop()
	tm := recvTimer(t, clock)
	assert.Equal(t, 3*time.Second, tm.d)
	assert.Equal(t, 1, m.Attempts())
	select {
	case err := <-closed:
		assert.Error(t, err)
	case <-time.After(waitFor):
		t.Fatal("OnClose not called")
	}

	tm.fire()
	recvConn(t, d)
	waitState(t, m, StateOpen)
	assert.Zero(t, m.Attempts())
}

func TestManualReconnectResetsAttempts(t *testing.T) {
	d := newFakeDialer(-1)
	clock := newFakeClock()
	cfg := testConfig()
	cfg.MaxReconnectAttempts = 2
	m := New(cfg, WithDialer(d), WithClock(clock))
	m.Connect()
	recvTimer(t, clock).fire()
	recvTimer(t, clock).fire()
	waitState(t, m, StateClosed)
	assert.Equal(t, 2, m.Attempts())

	m.Reconnect()
	tm := recvTimer(t, clock)
	assert.Equal(t, 3*time.Second, tm.d)
	assert.Equal(t, 1, m.Attempts())
}

func TestConnectReplacesExistingSocket(t *testing.T) {
	d := newFakeDialer(0)
	clock := newFakeClock()
	m := New(testConfig(), WithDialer(d), WithClock(clock))
	m.Connect()
	first := recvConn(t, d)
	waitState(t, m, StateOpen)

	m.Connect()
	recvConn(t, d)
	waitState(t, m, StateOpen)

	assert.Len(t, first.closeFrames(), 1)
	assert.Empty(t, clock.scheduled, "closing the old socket must not schedule a reconnect")
}

func TestFrameMarshalRoundTrip(t *testing.T) {
	f, err := ParseFrame([]byte(` {"type":"reaction","emoji":"👏"} `))
	require.NoError(t, err)
	assert.Equal(t, MsgReaction, f.Type)
	out, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"reaction","emoji":"👏"}`, string(out))

	out, err = json.Marshal(Frame{Type: MsgTyping})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"typing"}`, string(out))
}

func TestParseFrameRejects(t *testing.T) {
	for _, in := range []string{"", "{", "null", `"x"`, "[]", "{\"type\": 3}"} {
		_, err := ParseFrame([]byte(in))
		assert.Error(t, err, "input %q", in)
	}
}
