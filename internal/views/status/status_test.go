package status

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetReplacesByName(t *testing.T) {
	m := New()
	m.Set(Channel{Name: "discussion", Key: "12", State: "connecting"})
	m.Set(Channel{Name: "live class", Key: "7", State: "open"})
	m.Set(Channel{Name: "discussion", Key: "12", State: "open"})

	assert.Len(t, m.Channels, 2)
	got, ok := m.Get("discussion")
	assert.True(t, ok)
	assert.Equal(t, "open", got.State)
	_, ok = m.Get("notifications")
	assert.False(t, ok)
}

func TestViewShowsStatesAndAttempts(t *testing.T) {
	m := New()
	m.Width = 120
	m.Set(Channel{Name: "discussion", Key: "12", State: "reconnecting", Attempts: 3})
	m.Set(Channel{Name: "live class"})
	m.Unread = 4

	v := m.View()
	for _, want := range []string{"discussion", "12", "reconnecting 3", "live class", "detached", "4 unread"} {
		assert.True(t, strings.Contains(v, want), "missing %q in %q", want, v)
	}
}
