// Package relay is a development server for the realtime channels. It speaks
// the same socket protocol as the production backend for discussions, live
// classes and notifications.
package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coursehub/realtime/internal/auth"
	"github.com/coursehub/realtime/internal/config"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const maxFrameBytes = 64 << 10

var errUnauthorized = errors.New("unauthorized")

type Server struct {
	cfg            config.RelayConfig
	hub            *Hub
	log            zerolog.Logger
	secret         []byte
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	started        time.Time
	stats          *ProcessStats
}

func NewServer(cfg config.RelayConfig, hub *Hub, log zerolog.Logger) *Server {
	s := &Server{
		cfg:            cfg,
		hub:            hub,
		log:            log,
		secret:         []byte(cfg.JWTSecret),
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		started:        time.Now(),
		stats:          NewProcessStats(),
	}
	for _, origin := range cfg.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}
	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/discussions/{id}", s.handleSocket(KindDiscussion))
	mux.HandleFunc("GET /ws/live-class/{id}", s.handleSocket(KindLiveClass))
	mux.HandleFunc("GET /ws/notifications", s.handleSocket(KindNotifications))
	mux.HandleFunc("POST /api/notifications", s.handleNotify)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) handleSocket(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.authenticate(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		key := roomKey{kind: kind, id: r.PathValue("id")}
		if kind == KindNotifications {
			key.id = id.UserID
		}
		if key.id == "" {
			http.Error(w, "missing channel id", http.StatusNotFound)
			return
		}
		if s.cfg.MaxClients > 0 && s.hub.PeerCount() >= s.cfg.MaxClients {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Debug().Err(err).Msg("upgrade failed")
			return
		}
		conn.SetReadLimit(maxFrameBytes)

		p := newPeer(conn, id, key, s.cfg.SendBuffer)
		s.hub.Join(p)
		log := s.log.With().Str("room", kind.String()).Str("id", key.id).Str("user", id.UserID).Logger()
		log.Info().Str("remote", r.RemoteAddr).Msg("client connected")

		go func() {
			defer func() {
				s.hub.Leave(p)
				log.Info().Msg("client disconnected")
			}()
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if err := s.hub.Handle(p, data); err != nil {
					log.Debug().Err(err).Msg("frame rejected")
				}
			}
		}()
	}
}

type notifyRequest struct {
	UserID  string `json:"user_id"`
	Kind    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authenticate(r); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req notifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrameBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || (req.Title == "" && req.Message == "") {
		http.Error(w, "user_id and title or message are required", http.StatusBadRequest)
		return
	}
	n, delivered := s.hub.Notify(req.UserID, Notification{
		Kind:    req.Kind,
		Title:   req.Title,
		Message: req.Message,
		Link:    req.Link,
	})
	s.log.Info().Str("user", req.UserID).Str("id", n.ID).Int("delivered", delivered).Msg("notification published")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(struct {
		Notification
		Delivered int `json:"delivered"`
	}{n, delivered})
}

type statsResponse struct {
	Uptime  string        `json:"uptime"`
	Hub     Stats         `json:"hub"`
	Process ProcessSample `json:"process"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authenticate(r); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	sample, err := s.stats.Sample()
	if err != nil {
		s.log.Warn().Err(err).Msg("process stats")
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsResponse{
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Hub:     s.hub.Stats(),
		Process: sample,
	})
}

// authenticate resolves the caller from ?token=, X-Coursehub-Token or a
// bearer header. Without a configured secret the token itself names the user.
func (s *Server) authenticate(r *http.Request) (auth.Identity, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("X-Coursehub-Token")
	}
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if token == "" {
		return auth.Identity{}, errUnauthorized
	}
	if len(s.secret) == 0 {
		return auth.Identity{UserID: token, Username: token}, nil
	}
	id, err := auth.Verify(s.secret, token)
	if err != nil {
		return auth.Identity{}, errUnauthorized
	}
	return id, nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := parsed.Host
	if host == r.Host {
		return true
	}
	hostname := parsed.Hostname()
	return hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"
}

// ListenAndServe serves mux on addr until the server fails.
func ListenAndServe(addr string, mux *http.ServeMux, log zerolog.Logger) error {
	log.Info().Str("addr", addr).Msg("relay listening")
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return srv.ListenAndServe()
}
