package channel

import (
	"encoding/json"
	"strings"
)

// UserID accepts both JSON numbers and strings so that relays with numeric
// primary keys and relays with opaque ids decode the same way.
type UserID string

func (id *UserID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = UserID(n.String())
	return nil
}

// User is a presence entry. Identity is UserID alone.
type User struct {
	UserID   UserID `json:"user_id"`
	Username string `json:"username"`
}

func indexOf(users []User, id UserID) int {
	for i, u := range users {
		if u.UserID == id {
			return i
		}
	}
	return -1
}

// withUser returns users plus u, or users with u's entry refreshed when the id
// is already present. The input slice is never modified.
func withUser(users []User, u User) []User {
	if i := indexOf(users, u.UserID); i >= 0 {
		if users[i].Username == u.Username || u.Username == "" {
			return users
		}
		out := append([]User(nil), users...)
		out[i].Username = u.Username
		return out
	}
	return append(users[:len(users):len(users)], u)
}

func withoutUser(users []User, id UserID) []User {
	i := indexOf(users, id)
	if i < 0 {
		return users
	}
	out := make([]User, 0, len(users)-1)
	out = append(out, users[:i]...)
	return append(out, users[i+1:]...)
}

// dedupe keeps the first entry for every id, dropping blanks.
func dedupe(users []User) []User {
	out := make([]User, 0, len(users))
	for _, u := range users {
		if strings.TrimSpace(string(u.UserID)) == "" || indexOf(out, u.UserID) >= 0 {
			continue
		}
		out = append(out, u)
	}
	return out
}
