package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Manumac86/collybrix-admin-sub001/internal/metrics"
	"github.com/Manumac86/collybrix-admin-sub001/internal/repository"
)

func (s *Server) handleListSprints(c *gin.Context) {
	paging, sort, ok := s.listParams(c)
	if !ok {
		return
	}
	res, err := s.repo.ListSprints(c.Request.Context(), repository.SprintFilter{
		ProjectIDs: queryList(c, "projectId"),
		Statuses:   queryList(c, "status"),
		Paging:     paging,
		Sort:       sort,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondList(c, res)
}

func (s *Server) handleGetSprint(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	sprint, err := s.repo.GetSprint(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, sprint)
}

// handleCreateSprint plans a new sprint.
func (s *Server) handleCreateSprint(c *gin.Context) {
	var req repository.SprintInput
	if !s.bindJSON(c, &req, false) {
		return
	}
	sprint, err := s.repo.CreateSprint(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, sprint)
}

func (s *Server) handleReplaceSprint(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req repository.SprintInput
	if !s.bindJSON(c, &req, false) {
		return
	}
	sprint, err := s.repo.ReplaceSprint(c.Request.Context(), id, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, sprint)
}

func (s *Server) handlePatchSprint(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req repository.SprintPatch
	if !s.bindJSON(c, &req, false) {
		return
	}
	sprint, err := s.repo.PatchSprint(c.Request.Context(), id, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, sprint)
}

// handleDeleteSprint archives a sprint; its tasks are kept.
func (s *Server) handleDeleteSprint(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	sprint, err := s.repo.DeleteSprint(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, sprint)
}

// handleSprintTasks lists the tasks of a sprint, grouped into board
// columns with view=board.
func (s *Server) handleSprintTasks(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	tasks, err := s.repo.SprintTasks(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if c.Query("view") == "board" {
		respondSuccess(c, http.StatusOK, metrics.GroupByStatus(tasks))
		return
	}
	respondSuccess(c, http.StatusOK, tasks)
}

// handleStartSprint activates a planned sprint and records its commitment.
func (s *Server) handleStartSprint(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	sprint, err := s.repo.StartSprint(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, sprint)
}

type completeRequest struct {
	MoveIncomplete *bool `json:"moveIncomplete"`
}

// handleCompleteSprint closes an active sprint. Unfinished tasks return to
// the backlog unless moveIncomplete is false.
func (s *Server) handleCompleteSprint(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req completeRequest
	if !s.bindJSON(c, &req, true) {
		return
	}
	move := req.MoveIncomplete == nil || *req.MoveIncomplete
	res, err := s.repo.CompleteSprint(c.Request.Context(), id, move)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, res)
}
