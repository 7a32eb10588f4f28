package notifications

import (
	"testing"

	"github.com/coursehub/realtime/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyRendersMarkdown(t *testing.T) {
	m := New("notty")
	n := notify.Notification{ID: "1", Message: "Quiz **tomorrow** at 9"}

	out := m.Body(n, 40)
	assert.Contains(t, out, "tomorrow")
	assert.Len(t, m.bodies.cache, 1)

	assert.Equal(t, out, m.Body(n, 40))
	m.Body(n, 60)
	assert.Len(t, m.bodies.cache, 1, "a new wrap width drops the cache")
}

func TestViewFromStore(t *testing.T) {
	s := notify.NewStore()
	s.Push(notify.Notification{ID: "1", Kind: "announcement", Title: "Room change", Message: "Lab moves to B2"})
	s.Push(notify.Notification{ID: "2", Kind: "grade", Title: "Essay graded", IsRead: true})

	m := New("notty")
	m.Attached = true
	m.SetStore(s)
	require.Len(t, m.Items, 2)
	assert.Equal(t, 1, m.Unread)

	v := m.View(70, 30)
	assert.Contains(t, v, "1 unread")
	assert.Contains(t, v, "Essay graded")
	assert.Contains(t, v, "Lab moves to B2")
}

func TestViewDetached(t *testing.T) {
	m := New("notty")
	assert.Contains(t, m.View(70, 30), "Notifications are off")
}

func TestViewTruncatesOlderItems(t *testing.T) {
	s := notify.NewStore()
	for i := 0; i < 20; i++ {
		s.Push(notify.Notification{Title: "ping", Kind: "reply"})
	}
	m := New("notty")
	m.Attached = true
	m.SetStore(s)
	assert.Contains(t, m.View(70, 10), "older")
}
