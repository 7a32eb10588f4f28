// Package notify holds the notification list and unread counter shared by
// every view of the current user.
package notify

import (
	"encoding/json"
	"sync"

	"github.com/coursehub/realtime/internal/client"
)

// Notification is one notification record as pushed by the server.
type Notification struct {
	ID        client.ID       `json:"id"`
	Kind      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Link      string          `json:"link,omitempty"`
	IsRead    bool            `json:"is_read"`
	CreatedAt client.Time     `json:"created_at"`
	Raw       json.RawMessage `json:"-"`
}

// Store is safe for concurrent use. The zero value is not usable; call NewStore.
type Store struct {
	mu     sync.RWMutex
	items  []Notification
	unread int
	nextID int
	subs   map[int]func()
}

// NewStore returns an empty store with zero unread.
func NewStore() *Store {
	return &Store{subs: make(map[int]func())}
}

// SetNotifications replaces the list, newest first.
func (s *Store) SetNotifications(items []Notification) {
	s.mu.Lock()
	s.items = append([]Notification(nil), items...)
	s.mu.Unlock()
	s.publish()
}

// SetUnreadCount overrides the unread counter.
func (s *Store) SetUnreadCount(n int) {
	s.mu.Lock()
	s.unread = max(n, 0)
	s.mu.Unlock()
	s.publish()
}

// MarkAllAsRead flags every notification read and zeroes the counter.
func (s *Store) MarkAllAsRead() {
	s.mu.Lock()
	items := make([]Notification, len(s.items))
	for i, n := range s.items {
		n.IsRead = true
		items[i] = n
	}
	s.items = items
	s.unread = 0
	s.mu.Unlock()
	s.publish()
}

// Push prepends n and counts it as unread unless it arrived already read.
func (s *Store) Push(n Notification) {
	s.mu.Lock()
	s.items = append([]Notification{n}, s.items...)
	if !n.IsRead {
		s.unread++
	}
	s.mu.Unlock()
	s.publish()
}

// Notifications returns a copy of the list, newest first.
func (s *Store) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Notification(nil), s.items...)
}

// UnreadCount returns the unread counter.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Subscribe registers f to run after every change and returns a function
// that removes it.
func (s *Store) Subscribe(f func()) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = f
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) publish() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.subs))
	for _, f := range s.subs {
		fns = append(fns, f)
	}
	s.mu.RUnlock()
	for _, f := range fns {
		f()
	}
}
