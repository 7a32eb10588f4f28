package presence

import (
	"strings"
	"testing"

	"github.com/coursehub/realtime/internal/channel"
	"github.com/stretchr/testify/assert"
)

func users(names ...string) []channel.User {
	out := make([]channel.User, 0, len(names))
	for _, n := range names {
		out = append(out, channel.User{UserID: channel.UserID(n), Username: n})
	}
	return out
}

func TestTypingLine(t *testing.T) {
	tests := []struct {
		name  string
		users []channel.User
		want  string
	}{
		{"nobody", nil, ""},
		{"one", users("ana"), "ana is typing..."},
		{"two", users("ana", "ben"), "ana and ben are typing..."},
		{"many", users("ana", "ben", "cy"), "ana and 2 others are typing..."},
		{"no username", []channel.User{{UserID: "9"}}, "user 9 is typing..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypingLine(tt.users))
		})
	}
}

func TestViewRosterAndTyping(t *testing.T) {
	m := New()
	m.ThreadID = "12"
	m.SetState(channel.DiscussionState{
		OnlineUsers: users("zoe", "ana"),
		TypingUsers: users("zoe"),
	})

	v := m.View(60, 20)
	assert.Contains(t, v, "THREAD 12")
	assert.Contains(t, v, "2 online")
	assert.Contains(t, v, "zoe is typing...")
	assert.Less(t, strings.Index(v, "ana"), strings.Index(v, "zoe"), "roster is sorted by name")
}

func TestViewWithoutThread(t *testing.T) {
	m := New()
	m.SetState(channel.DiscussionState{OnlineUsers: users("ana")})
	m.Reset()
	assert.Contains(t, m.View(60, 20), "No thread selected")
	assert.Empty(t, m.Online)
}
