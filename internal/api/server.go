// Package api exposes the engine's admin surface: feed lifecycle control
// and per-feed statistics.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safexstack/safex-monitor/internal/engine"
)

// ManagerAPI is the slice of the feed manager the handlers need.
type ManagerAPI interface {
	StartFeed(ctx context.Context, feedID string) error
	StopFeed(feedID string) error
	ListFeeds() []string
	FeedStats(ctx context.Context, feedID string) (engine.FeedReport, error)
}

// Server hosts the admin HTTP API.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds the router and binds it to addr.
func NewServer(addr string, manager ManagerAPI, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	h := &handlers{manager: manager, logger: logger}
	router.GET("/healthz", h.health)

	v1 := router.Group("/api/v1")
	v1.GET("/feeds", h.listFeeds)
	v1.POST("/feeds/:id/start", h.startFeed)
	v1.POST("/feeds/:id/stop", h.stopFeed)
	v1.GET("/feeds/:id/stats", h.feedStats)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("admin api listening", slog.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
