// Package server exposes the status HTTP API: health, metrics, and
// read-only views over the tracked items.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skireal/ebay-tracker/internal/store"
	domain "github.com/skireal/ebay-tracker/pkg/types"
)

const (
	defaultItemLimit = 50
	maxItemLimit     = 200
)

// Server wraps the echo instance serving the status API.
type Server struct {
	echo  *echo.Echo
	store store.Store
	log   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithTimeouts sets the read and write timeouts on the underlying HTTP
// server. Zero values leave echo's defaults in place.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		s.echo.Server.ReadTimeout = read
		s.echo.Server.WriteTimeout = write
	}
}

// New creates a Server with all routes registered.
func New(s store.Store, log *slog.Logger, opts ...Option) *Server {
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{echo: e, store: s, log: log}
	for _, opt := range opts {
		opt(srv)
	}

	e.GET("/healthz", srv.healthz)
	e.GET("/readyz", srv.readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.GET("/items", srv.items)
	api.GET("/stats", srv.stats)
	api.GET("/scans/latest", srv.latestScan)

	return srv
}

// Start begins serving on addr and blocks until shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("status server listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler returns the underlying HTTP handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (*Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		return c.JSON(
			http.StatusServiceUnavailable,
			map[string]string{"status": "unavailable"},
		)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) items(c echo.Context) error {
	limit := defaultItemLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(
				http.StatusBadRequest,
				map[string]string{"error": "limit must be a positive integer"},
			)
		}
		limit = min(n, maxItemLimit)
	}

	ctx := c.Request().Context()

	var items []domain.Item
	var err error
	if keyword := c.QueryParam("keyword"); keyword != "" {
		items, err = s.store.ItemsByKeyword(ctx, keyword, limit)
	} else {
		items, err = s.store.RecentItems(ctx, limit)
	}
	if err != nil {
		s.log.Error("listing items failed", "error", err)
		return c.JSON(
			http.StatusInternalServerError,
			map[string]string{"error": "listing items failed"},
		)
	}

	if items == nil {
		items = []domain.Item{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) stats(c echo.Context) error {
	stats, err := s.store.Stats(c.Request().Context())
	if err != nil {
		s.log.Error("fetching stats failed", "error", err)
		return c.JSON(
			http.StatusInternalServerError,
			map[string]string{"error": "fetching stats failed"},
		)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) latestScan(c echo.Context) error {
	run, err := s.store.LastScanRun(c.Request().Context())
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(
			http.StatusNotFound,
			map[string]string{"error": "no scans recorded yet"},
		)
	}
	if err != nil {
		s.log.Error("fetching last scan failed", "error", err)
		return c.JSON(
			http.StatusInternalServerError,
			map[string]string{"error": "fetching last scan failed"},
		)
	}
	return c.JSON(http.StatusOK, run)
}
