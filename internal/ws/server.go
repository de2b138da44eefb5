package ws

import (
	"errors"
	"net/http"
	"time"

	"grouptalk/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type Options struct {
	OutboundBuffer int
	WriteTimeout   time.Duration
	// AllowedOrigins lists the browser origins that may open a session.
	// Empty admits every origin.
	AllowedOrigins []string
}

type Server struct {
	hub      *Hub
	upgrader *websocket.Upgrader
	opts     Options
	log      *zerolog.Logger
}

func NewServer(hub *Hub, opts Options, logger *zerolog.Logger) *Server {
	s := &Server{
		hub:  hub,
		opts: opts,
		log:  logger,
	}
	s.upgrader = &websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// checkOrigin accepts requests without an Origin header, which only
// non-browser clients send, and otherwise consults AllowedOrigins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	return lo.Contains(s.opts.AllowedOrigins, origin)
}

// HandleConnections upgrades GET /api/chat?userId=<id> and serves the
// session until either side closes it.
func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	if err := s.hub.Resolve(r.Context(), userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Unknown user", http.StatusNotFound)
			return
		}
		s.log.Error().Err(err).Str("user_id", userID).Msg("failed to resolve user")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("error upgrading to websocket")
		return
	}

	conn := NewConnection(s.hub, ws, userID, s.opts.OutboundBuffer, s.opts.WriteTimeout)
	if err := conn.Handle(r.Context()); err != nil {
		s.log.Debug().Err(err).Str("user_id", userID).Msg("websocket closed")
	}
}
