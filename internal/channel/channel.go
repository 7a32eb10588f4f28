// Package channel interprets the frame streams of the discussion, live-class
// and notification sockets into derived state.
//
// Each session owns one client.Manager. Folding is done by pure Apply*
// functions driven by per-channel dispatch tables; sessions only guard the
// result and notify watchers.
package channel

import (
	"sync"
	"time"

	"github.com/coursehub/realtime/internal/client"
	"github.com/rs/zerolog"
)

// Options are shared by every session constructor.
type Options struct {
	BaseURL string
	Token   string

	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	MaxReconnectDelay    time.Duration
	PingInterval         time.Duration

	Logger zerolog.Logger
	// Client is appended to the manager options; tests use it to swap the
	// dialer and clock.
	Client []client.Option
}

func (o Options) config(path string) client.Config {
	return client.Config{
		BaseURL:              o.BaseURL,
		Path:                 path,
		Token:                o.Token,
		ReconnectInterval:    o.ReconnectInterval,
		MaxReconnectAttempts: o.MaxReconnectAttempts,
		MaxReconnectDelay:    o.MaxReconnectDelay,
		PingInterval:         o.PingInterval,
	}
}

func (o Options) manager(path string, h client.Handler) *client.Manager {
	opts := []client.Option{client.WithHandler(h), client.WithLogger(o.Logger)}
	opts = append(opts, o.Client...)
	return client.New(o.config(path), opts...)
}

// conn builds the manager for path with a gate wrapped around h.OnOpen.
func (o Options) conn(path string, h client.Handler) conn {
	g := &gate{}
	onOpen := h.OnOpen
	h.OnOpen = func() {
		g.open()
		if onOpen != nil {
			onOpen()
		}
	}
	return conn{mgr: o.manager(path, h), gate: g}
}

// conn is embedded by every session for the connection controls.
type conn struct {
	mgr  *client.Manager
	gate *gate
}

func (c conn) Connect() { c.gate.close(); c.mgr.Connect() }
func (c conn) Disconnect() { c.gate.close(); c.mgr.Disconnect() }
func (c conn) Reconnect() { c.gate.close(); c.mgr.Reconnect() }
func (c conn) ConnState() client.State { return c.mgr.State() }
func (c conn) IsConnected() bool { return c.mgr.IsConnected() }
func (c conn) Attempts() int { return c.mgr.Attempts() }

// gate admits frames from the socket's OnOpen until the session's next
// Connect, Reconnect or Disconnect. Folds run under the gate, so after
// Disconnect returns no frame from the old socket changes session state; after
// Connect the same holds until the new socket opens.
type gate struct {
	mu     sync.Mutex
	isOpen bool
}

func (g *gate) open() {
	g.mu.Lock()
	g.isOpen = true
	g.mu.Unlock()
}

func (g *gate) close() {
	g.mu.Lock()
	g.isOpen = false
	g.mu.Unlock()
}

// fold runs f if the gate is open and reports whether it ran. f must not call
// back into the session's connection controls.
func (g *gate) fold(f func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.isOpen {
		return false
	}
	f()
	return true
}

type watchers struct {
	mu  sync.Mutex
	fns []func()
}

// OnChange registers f to run after every state change, including
// connectivity changes. f runs on the socket's goroutine.
func (w *watchers) OnChange(f func()) {
	w.mu.Lock()
	w.fns = append(w.fns, f)
	w.mu.Unlock()
}

func (w *watchers) notify() {
	w.mu.Lock()
	fns := append([]func(){}, w.fns...)
	w.mu.Unlock()
	for _, f := range fns {
		f()
	}
}
