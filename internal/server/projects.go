package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Manumac86/collybrix-admin-sub001/internal/repository"
)

// handleListProjects returns one page of projects.
func (s *Server) handleListProjects(c *gin.Context) {
	paging, sort, ok := s.listParams(c)
	if !ok {
		return
	}
	res, err := s.repo.ListProjects(c.Request.Context(), repository.ProjectFilter{
		Statuses: queryList(c, "status"),
		Stages:   queryList(c, "stage"),
		Company:  strings.TrimSpace(c.Query("company")),
		Search:   strings.TrimSpace(c.Query("search")),
		Paging:   paging,
		Sort:     sort,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondList(c, res)
}

// handleGetProject returns a single project.
func (s *Server) handleGetProject(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	project, err := s.repo.GetProject(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, project)
}

// handleCreateProject creates a new project entity.
func (s *Server) handleCreateProject(c *gin.Context) {
	var req repository.ProjectInput
	if !s.bindJSON(c, &req, false) {
		return
	}
	project, err := s.repo.CreateProject(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, project)
}

// handleReplaceProject overwrites an existing project.
func (s *Server) handleReplaceProject(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req repository.ProjectInput
	if !s.bindJSON(c, &req, false) {
		return
	}
	project, err := s.repo.ReplaceProject(c.Request.Context(), id, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, project)
}

// handleDeleteProject removes a project and its board.
func (s *Server) handleDeleteProject(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.repo.DeleteProject(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": id.Hex(), "deleted": true})
}

// handlePipeline summarizes projects per sales stage.
func (s *Server) handlePipeline(c *gin.Context) {
	stages, err := s.repo.Pipeline(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, stages)
}

// handleRevenue reports contracted and recurring revenue.
func (s *Server) handleRevenue(c *gin.Context) {
	report, err := s.repo.Revenue(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, report)
}
