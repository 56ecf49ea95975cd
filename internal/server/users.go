package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
	"github.com/Manumac86/collybrix-admin-sub001/internal/repository"
)

// User listing sources.
const (
	sourceLocal    = "local"
	sourceIdentity = "identity"
	sourceBoth     = "both"
)

// directoryEntry is a user in the merged listing. Users known only to the
// identity provider have no _id yet.
type directoryEntry struct {
	ID         *primitive.ObjectID `json:"_id,omitempty"`
	ExternalID *string             `json:"externalId"`
	Name       string              `json:"name"`
	Email      string              `json:"email"`
	Role       string              `json:"role,omitempty"`
	Active     bool                `json:"active"`
	AvatarURL  string              `json:"avatarUrl"`
	Source     string              `json:"source"`
}

// handleListUsers returns one page of stored users, or with
// source=identity the stored users merged with the provider directory.
func (s *Server) handleListUsers(c *gin.Context) {
	switch c.Query("source") {
	case "", sourceLocal:
	case sourceIdentity:
		s.handleMergedUsers(c)
		return
	default:
		s.respondError(c, badRequest("source", "must be local or identity"))
		return
	}

	paging, sort, ok := s.listParams(c)
	if !ok {
		return
	}
	active, err := queryBool(c, "active")
	if err != nil {
		s.respondError(c, err)
		return
	}
	res, err := s.repo.ListUsers(c.Request.Context(), repository.UserFilter{
		Roles:  queryList(c, "role"),
		Active: active,
		Search: strings.TrimSpace(c.Query("search")),
		Paging: paging,
		Sort:   sort,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondList(c, res)
}

func (s *Server) handleMergedUsers(c *gin.Context) {
	if s.directory == nil {
		s.respondError(c, badRequest("source", "identity directory is not configured"))
		return
	}
	ctx := c.Request.Context()
	stored, err := s.repo.AllUsers(ctx)
	if err != nil {
		s.respondError(c, err)
		return
	}
	remote, err := s.directory.Users(ctx)
	if err != nil {
		s.respondError(c, fmt.Errorf("identity directory: %w", err))
		return
	}

	entries := make([]directoryEntry, 0, len(stored)+len(remote))
	byExternal := make(map[string]int, len(stored))
	byEmail := make(map[string]int, len(stored))
	for _, u := range stored {
		id := u.ID
		entries = append(entries, directoryEntry{
			ID:         &id,
			ExternalID: u.ExternalID,
			Name:       u.Name,
			Email:      u.Email,
			Role:       u.Role,
			Active:     u.Active,
			AvatarURL:  u.AvatarURL,
			Source:     sourceLocal,
		})
		if u.ExternalID != nil {
			byExternal[*u.ExternalID] = len(entries) - 1
		}
		byEmail[u.Email] = len(entries) - 1
	}
	for _, r := range remote {
		i, ok := byExternal[r.ID]
		if !ok {
			i, ok = byEmail[strings.ToLower(r.Email)]
		}
		if ok {
			e := &entries[i]
			e.Source = sourceBoth
			if e.ExternalID == nil {
				ext := r.ID
				e.ExternalID = &ext
			}
			if e.AvatarURL == "" {
				e.AvatarURL = r.AvatarURL
			}
			continue
		}
		ext := r.ID
		entries = append(entries, directoryEntry{
			ExternalID: &ext,
			Name:       r.Name,
			Email:      r.Email,
			Active:     true,
			AvatarURL:  r.AvatarURL,
			Source:     sourceIdentity,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
	respondSuccess(c, http.StatusOK, entries)
}

// userKey returns the :id parameter when it is an ObjectID or an
// identity-provider id.
func (s *Server) userKey(c *gin.Context) (string, bool) {
	key := c.Param("id")
	if _, err := models.ParseID(key); err == nil || s.repo.IsExternalUserID(key) {
		return key, true
	}
	s.respondError(c, repository.ErrInvalidID)
	return "", false
}

// handleGetUser looks a user up by ObjectID or identity-provider id.
func (s *Server) handleGetUser(c *gin.Context) {
	key, ok := s.userKey(c)
	if !ok {
		return
	}
	u, err := s.repo.GetUser(c.Request.Context(), key)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, u)
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req repository.UserInput
	if !s.bindJSON(c, &req, false) {
		return
	}
	u, err := s.repo.CreateUser(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, u)
}

// handleReplaceUser overwrites a user. Addressed by an identity-provider id
// that is not stored yet, it links a new user to that id.
func (s *Server) handleReplaceUser(c *gin.Context) {
	key, ok := s.userKey(c)
	if !ok {
		return
	}
	var req repository.UserInput
	if !s.bindJSON(c, &req, false) {
		return
	}
	u, created, err := s.repo.ReplaceUser(c.Request.Context(), key, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondSuccess(c, status, u)
}

func (s *Server) handlePatchUser(c *gin.Context) {
	key, ok := s.userKey(c)
	if !ok {
		return
	}
	var req repository.UserPatch
	if !s.bindJSON(c, &req, false) {
		return
	}
	u, err := s.repo.PatchUser(c.Request.Context(), key, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, u)
}

// handleDeleteUser removes a user and unassigns them from every task.
func (s *Server) handleDeleteUser(c *gin.Context) {
	key, ok := s.userKey(c)
	if !ok {
		return
	}
	if err := s.repo.DeleteUser(c.Request.Context(), key); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": key, "deleted": true})
}
