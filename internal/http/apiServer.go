package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"grouptalk/internal/api"
	"grouptalk/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
	log    *zerolog.Logger
}

func NewAPIServer(apiHandlers *api.API, wsServer *ws.Server, addr string, readHeaderTimeout time.Duration, logger *zerolog.Logger) *APIServer {
	engine := newEngine(logger)

	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// REST endpoints
	apiHandlers.Register(engine.Group("/api"))

	// WebSocket endpoint
	engine.GET("/api/chat", gin.WrapF(wsServer.HandleConnections))

	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: logger,
	}
}

func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("API server started")
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
