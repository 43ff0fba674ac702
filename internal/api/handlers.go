package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vlm/flowforge/internal/project"
)

type flowSummary struct {
	ID    string   `json:"id"`
	Nodes []string `json:"nodes"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFlows(c echo.Context) error {
	summaries := make([]flowSummary, 0)
	for _, id := range s.flows.IDs() {
		def, ok := s.flows.Get(id)
		if !ok {
			continue
		}
		summaries = append(summaries, flowSummary{ID: id, Nodes: def.Order()})
	}
	return c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleListProjects(c echo.Context) error {
	projects, err := s.manager.ListProjects(c.Request().Context())
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, projects)
}

func (s *Server) handleProjectStatus(c echo.Context) error {
	status, err := s.manager.GetProjectStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handleProjectArtifacts(c echo.Context) error {
	status, err := s.manager.GetProjectStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, status.Artifacts)
}

// mapError translates domain errors into HTTP status codes; everything not
// recognized surfaces as a 500 through echo's default handler.
func (s *Server) mapError(err error) error {
	if errors.Is(err, project.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}
	s.logger.Error("Request failed.", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
