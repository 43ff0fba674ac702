// Package api exposes the read-only status surface for UI and telemetry
// consumers: project state, per-node run states, and artifact listings over
// HTTP, plus realtime run events over socket.io.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/vlm/flowforge/internal/events"
	"github.com/vlm/flowforge/internal/flow"
	"github.com/vlm/flowforge/internal/project"
)

// Server serves the status API for one application instance.
type Server struct {
	echo    *echo.Echo
	manager *project.Manager
	flows   *flow.Catalog
	logger  *slog.Logger
}

// NewServer wires the routes. gateway may be nil when realtime events are
// not needed (e.g. tests that only exercise the REST surface).
func NewServer(manager *project.Manager, flows *flow.Catalog, gateway *events.SocketGateway, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, manager: manager, flows: flows, logger: logger}

	e.GET("/healthz", s.handleHealth)
	e.GET("/api/flows", s.handleListFlows)
	e.GET("/api/projects", s.handleListProjects)
	e.GET("/api/projects/:id/status", s.handleProjectStatus)
	e.GET("/api/projects/:id/artifacts", s.handleProjectArtifacts)
	if gateway != nil {
		e.Any("/socket.io/*", echo.WrapHandler(gateway.Handler()))
	}
	return s
}

// Handler exposes the underlying mux, mainly for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Status API listening.", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
