package client

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrNoBaseURL = errors.New("no base URL configured")
	ErrNoToken   = errors.New("no auth token")
)

// BuildURL resolves the socket address for path on base, upgrading http to ws
// and https to wss, and embeds token as the "token" query parameter.
func BuildURL(base, path, token string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", ErrNoBaseURL
	}
	if token == "" {
		return "", ErrNoToken
	}
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawPath = ""
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}
