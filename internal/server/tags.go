package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Manumac86/collybrix-admin-sub001/internal/repository"
)

// handleListTags returns every tag of the project named by projectId.
func (s *Server) handleListTags(c *gin.Context) {
	projectID, ok := s.requireQuery(c, "projectId")
	if !ok {
		return
	}
	tags, err := s.repo.ListTags(c.Request.Context(), projectID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, tags)
}

func (s *Server) handleGetTag(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	tag, err := s.repo.GetTag(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, tag)
}

// handleCreateTag adds a tag; names are unique per project ignoring case.
func (s *Server) handleCreateTag(c *gin.Context) {
	var req repository.TagInput
	if !s.bindJSON(c, &req, false) {
		return
	}
	tag, err := s.repo.CreateTag(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, tag)
}

func (s *Server) handleUpdateTag(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req repository.TagUpdate
	if !s.bindJSON(c, &req, false) {
		return
	}
	tag, err := s.repo.UpdateTag(c.Request.Context(), id, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, tag)
}

// handleDeleteTag removes a tag and strips it from every task.
func (s *Server) handleDeleteTag(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	n, err := s.repo.DeleteTag(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": id.Hex(), "deleted": true, "updatedTasks": n})
}
