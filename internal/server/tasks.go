package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Manumac86/collybrix-admin-sub001/internal/repository"
)

// handleListTasks returns one page of tasks matching the query filters.
func (s *Server) handleListTasks(c *gin.Context) {
	paging, sort, ok := s.listParams(c)
	if !ok {
		return
	}
	res, err := s.repo.ListTasks(c.Request.Context(), repository.TaskFilter{
		ProjectIDs: queryList(c, "projectId"),
		SprintIDs:  queryList(c, "sprintId"),
		Statuses:   queryList(c, "status"),
		Types:      queryList(c, "type"),
		Priorities: queryList(c, "priority"),
		Assignees:  queryList(c, "assignee"),
		Tags:       queryList(c, "tag"),
		Parents:    queryList(c, "parent"),
		Search:     strings.TrimSpace(c.Query("search")),
		Paging:     paging,
		Sort:       sort,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondList(c, res)
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	task, err := s.repo.GetTask(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleCreateTask inserts a new task at the end of its board column.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req repository.TaskInput
	if !s.bindJSON(c, &req, false) {
		return
	}
	task, err := s.repo.CreateTask(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, task)
}

// handleReplaceTask overwrites every updatable field of a task.
func (s *Server) handleReplaceTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req repository.TaskInput
	if !s.bindJSON(c, &req, false) {
		return
	}
	task, err := s.repo.ReplaceTask(c.Request.Context(), id, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handlePatchTask updates task fields such as status or sprint.
func (s *Server) handlePatchTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req repository.TaskPatch
	if !s.bindJSON(c, &req, false) {
		return
	}
	task, err := s.repo.PatchTask(c.Request.Context(), id, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.repo.DeleteTask(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": id.Hex(), "deleted": true})
}
