package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	DefaultReconnectInterval    = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultMaxReconnectDelay    = 30 * time.Second

	defaultWriteTimeout     = 10 * time.Second
	defaultHandshakeTimeout = 15 * time.Second
	pongTimeout             = 60 * time.Second
	backoffMultiplier       = 1.5
	closeReason             = "Client disconnect"
)

// Config describes one socket endpoint and its reconnect policy.
type Config struct {
	BaseURL string
	Path    string
	Token   string

	ReconnectInterval time.Duration
	// MaxReconnectAttempts bounds automatic reconnects. Zero selects the
	// default; a negative value disables automatic reconnection.
	MaxReconnectAttempts int
	MaxReconnectDelay    time.Duration
	WriteTimeout         time.Duration
	// PingInterval enables websocket-level pings when positive.
	PingInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = 0
	}
	if c.MaxReconnectDelay <= 0 {
		c.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	return c
}

// Handler receives lifecycle events. Every field is optional. Callbacks run
// without the manager lock held, so they may call back into the Manager.
type Handler struct {
	OnMessage     func(Frame)
	OnOpen        func()
	OnClose       func(err error)
	OnError       func(err error)
	OnStateChange func(State)
}

// Option configures a Manager.
type Option func(*Manager)

func WithHandler(h Handler) Option { return func(m *Manager) { m.handler = h } }
func WithDialer(d Dialer) Option { return func(m *Manager) { m.dialer = d } }
func WithClock(c Clock) Option { return func(m *Manager) { m.clock = c } }
func WithLogger(l zerolog.Logger) Option { return func(m *Manager) { m.log = l } }

// Manager owns a single socket: connection, reconnection with capped
// exponential backoff, and an outbound queue that is flushed on open.
//
// Every transition runs under mu. Each socket gets a generation number and
// events from an older generation (late dials, reads, timers) are ignored.
type Manager struct {
	cfg     Config
	backoff Backoff
	handler Handler
	dialer  Dialer
	clock   Clock
	log     zerolog.Logger

	mu          sync.Mutex
	state       State
	conn        Conn
	gen         uint64
	intentional bool
	attempts    int
	queue       [][]byte
	timer       Timer
	timerSeq    uint64
	cancelDial  context.CancelFunc
	stopPing    context.CancelFunc
}

// New creates an idle manager. Nothing is dialled until Connect.
func New(cfg Config, opts ...Option) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg: cfg,
		backoff: Backoff{
			Initial:    cfg.ReconnectInterval,
			Multiplier: backoffMultiplier,
			Max:        cfg.MaxReconnectDelay,
		},
		dialer: NewDialer(defaultHandshakeTimeout),
		clock:  realClock{},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With().Str("path", cfg.Path).Logger()
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the socket is open.
func (m *Manager) IsConnected() bool {
	return m.State() == StateOpen
}

// Attempts returns the number of automatic reconnects since the last open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// QueueLen returns the number of frames waiting for the socket to open.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Connect opens a new socket, closing any existing one first. With no token
// or base URL the manager stays idle.
func (m *Manager) Connect() {
	var n notices
	m.mu.Lock()
	m.intentional = false
	m.connectLocked(&n)
	m.mu.Unlock()
	n.run()
}

// Reconnect resets the attempt counter and connects immediately.
func (m *Manager) Reconnect() {
	var n notices
	m.mu.Lock()
	m.intentional = false
	m.attempts = 0
	m.connectLocked(&n)
	m.mu.Unlock()
	n.run()
}

// Disconnect closes the socket with a normal closure and stops automatic
// reconnection. A pending reconnect timer is cancelled before it returns.
// Calling it again is a no-op.
func (m *Manager) Disconnect() {
	var n notices
	m.mu.Lock()
	m.intentional = true
	m.cancelTimerLocked()
	m.dropConnLocked()
	m.gen++
	m.setStateLocked(StateClosed, &n)
	m.mu.Unlock()
	n.run()
}

// Send transmits v as JSON when the socket is open and otherwise queues it.
// The only error is a failure to encode v.
func (m *Manager) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateOpen && m.conn != nil && len(m.queue) == 0 {
		err := m.writeLocked(data)
		if err == nil {
			return nil
		}
		m.log.Debug().Err(err).Msg("write failed, queueing frame")
	}
	m.queue = append(m.queue, data)
	return nil
}

func (m *Manager) connectLocked(n *notices) {
	m.cancelTimerLocked()
	target, err := BuildURL(m.cfg.BaseURL, m.cfg.Path, m.cfg.Token)
	if err != nil {
		m.log.Debug().Err(err).Msg("connect skipped")
		m.dropConnLocked()
		m.gen++
		m.setStateLocked(StateIdle, n)
		return
	}

	m.dropConnLocked()
	m.gen++
	gen := m.gen
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	if m.attempts > 0 {
		m.setStateLocked(StateReconnecting, n)
	} else {
		m.setStateLocked(StateConnecting, n)
	}
	m.log.Debug().Int("attempt", m.attempts).Msg("dialing")
	n.add(func() { go m.dial(ctx, gen, target) })
}

func (m *Manager) dial(ctx context.Context, gen uint64, target string) {
	conn, err := m.dialer.Dial(ctx, target)
	if err != nil {
		m.closed(gen, fmt.Errorf("dial: %w", err))
		return
	}
	m.opened(gen, conn)
}

func (m *Manager) opened(gen uint64, conn Conn) {
	var n notices
	m.mu.Lock()
	if gen != m.gen || m.intentional {
		m.mu.Unlock()
		closeNormal(conn, m.cfg.WriteTimeout)
		return
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	m.conn = conn
	m.attempts = 0
	m.setStateLocked(StateOpen, &n)
	flushed := m.drainLocked()
	if m.cfg.PingInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		m.stopPing = cancel
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
		go m.pingLoop(ctx, conn)
	}
	m.mu.Unlock()

	m.log.Info().Int("flushed", flushed).Msg("connected")
	n.run()
	if m.handler.OnOpen != nil {
		m.handler.OnOpen()
	}
	go m.readLoop(gen, conn)
}

// drainLocked writes queued frames in order. It stops at the first write
// error and leaves the rest queued.
func (m *Manager) drainLocked() int {
	sent := 0
	for len(m.queue) > 0 {
		if err := m.writeLocked(m.queue[0]); err != nil {
			m.log.Debug().Err(err).Int("pending", len(m.queue)).Msg("queue flush interrupted")
			return sent
		}
		m.queue[0] = nil
		m.queue = m.queue[1:]
		sent++
	}
	m.queue = nil
	return sent
}

func (m *Manager) writeLocked(data []byte) error {
	if err := m.conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout)); err != nil {
		return err
	}
	return m.conn.WriteMessage(websocket.TextMessage, data)
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.closed(gen, err)
			return
		}
		frame, err := ParseFrame(data)
		if err != nil {
			m.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping malformed frame")
			continue
		}
		if !m.current(gen) {
			return
		}
		if m.handler.OnMessage != nil {
			m.handler.OnMessage(frame)
		}
	}
}

func (m *Manager) pingLoop(ctx context.Context, conn Conn) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

// closed handles the end of socket generation gen, whether the dial failed or
// an open socket dropped.
func (m *Manager) closed(gen uint64, cause error) {
	var n notices
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	if m.stopPing != nil {
		m.stopPing()
		m.stopPing = nil
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	m.gen++

	var delay time.Duration
	switch {
	case m.intentional:
		m.setStateLocked(StateClosed, &n)
	case m.attempts < m.cfg.MaxReconnectAttempts:
		m.attempts++
		delay = m.backoff.Delay(m.attempts)
		m.scheduleLocked(delay)
		m.setStateLocked(StateReconnecting, &n)
	default:
		m.setStateLocked(StateClosed, &n)
	}
	attempts := m.attempts
	m.mu.Unlock()

	if delay > 0 {
		m.log.Info().Err(cause).Int("attempt", attempts).Dur("delay", delay).Msg("connection lost, reconnecting")
	} else {
		m.log.Info().Err(cause).Int("attempts", attempts).Msg("connection closed")
	}
	n.run()
	if cause != nil && !isNormalClose(cause) && m.handler.OnError != nil {
		m.handler.OnError(cause)
	}
	if m.handler.OnClose != nil {
		m.handler.OnClose(cause)
	}
}

func (m *Manager) scheduleLocked(delay time.Duration) {
	m.timerSeq++
	seq := m.timerSeq
	m.timer = m.clock.AfterFunc(delay, func() { m.fireReconnect(seq) })
}

func (m *Manager) fireReconnect(seq uint64) {
	var n notices
	m.mu.Lock()
	if m.intentional || seq != m.timerSeq || m.timer == nil {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.connectLocked(&n)
	m.mu.Unlock()
	n.run()
}

func (m *Manager) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerSeq++
}

// dropConnLocked closes the current socket and aborts an in-flight dial. The
// caller bumps gen so the old reader's close is ignored.
func (m *Manager) dropConnLocked() {
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if m.stopPing != nil {
		m.stopPing()
		m.stopPing = nil
	}
	if m.conn != nil {
		closeNormal(m.conn, m.cfg.WriteTimeout)
		m.conn = nil
	}
}

func (m *Manager) setStateLocked(s State, n *notices) {
	if m.state == s {
		return
	}
	m.state = s
	if cb := m.handler.OnStateChange; cb != nil {
		n.add(func() { cb(s) })
	}
}

// notices collects callbacks to run once the lock is released.
type notices []func()

func (n *notices) add(f func()) { *n = append(*n, f) }

func (n notices) run() {
	for _, f := range n {
		f()
	}
}
