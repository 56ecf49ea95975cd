package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// handleSummary returns the dashboard figures of a project, narrowed to a
// sprint when sprintId is given.
func (s *Server) handleSummary(c *gin.Context) {
	projectID, ok := s.requireQuery(c, "projectId")
	if !ok {
		return
	}
	summary, err := s.repo.Summary(c.Request.Context(), projectID, strings.TrimSpace(c.Query("sprintId")))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, summary)
}

func (s *Server) handleBurndown(c *gin.Context) {
	sprintID, ok := s.requireQuery(c, "sprintId")
	if !ok {
		return
	}
	series, err := s.repo.Burndown(c.Request.Context(), sprintID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, series)
}

// handleVelocity reports delivered points over the last completed sprints.
func (s *Server) handleVelocity(c *gin.Context) {
	projectID, ok := s.requireQuery(c, "projectId")
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.respondError(c, err)
		return
	}
	report, err := s.repo.Velocity(c.Request.Context(), projectID, int(limit))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, report)
}
