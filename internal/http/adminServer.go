package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"grouptalk/internal/api"

	"github.com/rs/zerolog"
)

// AdminServer serves user management on its own listener, which should
// stay bound to a private address.
type AdminServer struct {
	server *http.Server
	wg     sync.WaitGroup
	log    *zerolog.Logger
}

func NewAdminServer(adminHandler *api.AdminHandler, addr string, readHeaderTimeout time.Duration, logger *zerolog.Logger) *AdminServer {
	engine := newEngine(logger)
	adminHandler.Register(engine.Group("/admin"))

	if addr == "" {
		addr = "localhost:8081"
	}

	return &AdminServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: logger,
	}
}

func (s *AdminServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *AdminServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Admin API started")
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *AdminServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
