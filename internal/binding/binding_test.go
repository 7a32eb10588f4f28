package binding

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	log []string
}

type fakeSession struct {
	name string
	rec  *recorder
}

func (s *fakeSession) Connect()    { s.rec.log = append(s.rec.log, "connect "+s.name) }
func (s *fakeSession) Disconnect() { s.rec.log = append(s.rec.log, "disconnect "+s.name) }

func newBinding(rec *recorder) *Binding[int, *fakeSession] {
	return New(func(key int, token string) *fakeSession {
		rec.log = append(rec.log, fmt.Sprintf("create %d/%s", key, token))
		return &fakeSession{name: fmt.Sprint(key), rec: rec}
	})
}

func TestBindingTransitions(t *testing.T) {
	tests := []struct {
		name  string
		steps func(b *Binding[int, *fakeSession])
		want  []string
	}{
		{
			name:  "null to value connects",
			steps: func(b *Binding[int, *fakeSession]) { b.Set(1, "t") },
			want:  []string{"create 1/t", "connect 1"},
		},
		{
			name: "value to null disconnects",
			steps: func(b *Binding[int, *fakeSession]) {
				b.Set(1, "t")
				b.Clear()
			},
			want: []string{"create 1/t", "connect 1", "disconnect 1"},
		},
		{
			name: "key change tears down first",
			steps: func(b *Binding[int, *fakeSession]) {
				b.Set(1, "t")
				b.Set(2, "t")
			},
			want: []string{"create 1/t", "connect 1", "disconnect 1", "create 2/t", "connect 2"},
		},
		{
			name: "same key is a no-op",
			steps: func(b *Binding[int, *fakeSession]) {
				b.Set(1, "t")
				b.Set(1, "t")
			},
			want: []string{"create 1/t", "connect 1"},
		},
		{
			name: "token revoked then restored",
			steps: func(b *Binding[int, *fakeSession]) {
				b.Set(1, "t")
				b.SetToken("")
				b.SetToken("u")
			},
			want: []string{"create 1/t", "connect 1", "disconnect 1", "create 1/u", "connect 1"},
		},
		{
			name: "no token never connects",
			steps: func(b *Binding[int, *fakeSession]) {
				b.Set(1, "")
				b.Clear()
			},
			want: nil,
		},
		{
			name: "close is final",
			steps: func(b *Binding[int, *fakeSession]) {
				b.Set(1, "t")
				b.Close()
				b.Close()
				b.Set(2, "t")
			},
			want: []string{"create 1/t", "connect 1", "disconnect 1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			tt.steps(newBinding(rec))
			assert.Equal(t, tt.want, rec.log)
		})
	}
}

func TestCurrentAndKey(t *testing.T) {
	rec := &recorder{}
	b := newBinding(rec)
	_, ok := b.Current()
	assert.False(t, ok)

	b.Set(3, "t")
	s, ok := b.Current()
	assert.True(t, ok)
	assert.Equal(t, "3", s.name)
	key, ok := b.Key()
	assert.True(t, ok)
	assert.Equal(t, 3, key)

	b.SetToken("")
	_, ok = b.Current()
	assert.False(t, ok)
	key, ok = b.Key()
	assert.True(t, ok, "revoking the token keeps the key")
	assert.Equal(t, 3, key)
}
