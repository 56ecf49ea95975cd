package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Manumac86/collybrix-admin-sub001/internal/repository"
)

func (s *Server) handleListEstimations(c *gin.Context) {
	paging, sort, ok := s.listParams(c)
	if !ok {
		return
	}
	res, err := s.repo.ListEstimations(c.Request.Context(), repository.EstimationFilter{
		Statuses: queryList(c, "status"),
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

func (s *Server) handleGetEstimation(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	e, err := s.repo.GetEstimation(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, e)
}

// handleCreateEstimation prices and stores a new estimation.
func (s *Server) handleCreateEstimation(c *gin.Context) {
	var req repository.EstimationInput
	if !s.bindJSON(c, &req, false) {
		return
	}
	e, err := s.repo.CreateEstimation(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, e)
}

func (s *Server) handleReplaceEstimation(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req repository.EstimationInput
	if !s.bindJSON(c, &req, false) {
		return
	}
	e, err := s.repo.ReplaceEstimation(c.Request.Context(), id, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, e)
}

func (s *Server) handleDeleteEstimation(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.repo.DeleteEstimation(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": id.Hex(), "deleted": true})
}
