// Package binding ties a channel session's lifetime to a nullable key and an
// auth token owned by some consumer.
package binding

import "sync"

// Lifecycle is the part of a session a binding drives.
type Lifecycle interface {
	Connect()
	Disconnect()
}

// Factory builds an unconnected session for key.
type Factory[K comparable, S Lifecycle] func(key K, token string) S

// Binding owns at most one session at a time. It is created when both a key
// and a token are present and torn down as soon as either goes away. A key
// change tears the old session down before the new one is built.
type Binding[K comparable, S Lifecycle] struct {
	factory Factory[K, S]
	// ops serialises transitions so teardown and creation never interleave.
	ops sync.Mutex

	mu      sync.Mutex
	key     K
	hasKey  bool
	token   string
	current S
	live    bool
	closed  bool
}

// New returns an empty binding.
func New[K comparable, S Lifecycle](factory Factory[K, S]) *Binding[K, S] {
	return &Binding[K, S]{factory: factory}
}

// Set binds key using token.
func (b *Binding[K, S]) Set(key K, token string) {
	b.update(key, true, token)
}

// Clear unbinds the key.
func (b *Binding[K, S]) Clear() {
	b.mu.Lock()
	token := b.token
	b.mu.Unlock()
	var zero K
	b.update(zero, false, token)
}

// SetToken swaps the token for the current key. An empty token counts as
// revoked.
func (b *Binding[K, S]) SetToken(token string) {
	b.mu.Lock()
	key, hasKey := b.key, b.hasKey
	b.mu.Unlock()
	b.update(key, hasKey, token)
}

// Close tears the session down for good; later calls are ignored.
func (b *Binding[K, S]) Close() {
	b.ops.Lock()
	defer b.ops.Unlock()
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	old, live := b.current, b.live
	var zero S
	b.current, b.live = zero, false
	b.mu.Unlock()
	if live {
		old.Disconnect()
	}
}

// Current returns the live session, if any.
func (b *Binding[K, S]) Current() (S, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, b.live
}

// Key returns the bound key, if any.
func (b *Binding[K, S]) Key() (K, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.key, b.hasKey
}

func (b *Binding[K, S]) update(key K, hasKey bool, token string) {
	b.ops.Lock()
	defer b.ops.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	want := hasKey && token != ""
	if b.live && want && b.key == key && b.token == token {
		b.mu.Unlock()
		return
	}
	b.key, b.hasKey, b.token = key, hasKey, token
	old, hadOld := b.current, b.live
	var zero S
	b.current, b.live = zero, false
	b.mu.Unlock()

	if hadOld {
		old.Disconnect()
	}
	if !want {
		return
	}
	next := b.factory(key, token)
	b.mu.Lock()
	b.current, b.live = next, true
	b.mu.Unlock()
	next.Connect()
}
