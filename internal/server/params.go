package server

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
	"github.com/Manumac86/collybrix-admin-sub001/internal/repository"
)

// parseID converts a path parameter to an ObjectID, answering INVALID_ID
// when it is malformed.
func (s *Server) parseID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := models.ParseID(c.Param(name))
	if err != nil {
		s.respondError(c, repository.ErrInvalidID)
		return primitive.NilObjectID, false
	}
	return id, true
}

// bindJSON decodes the request body into dst. An empty body is rejected
// unless optional is set.
func (s *Server) bindJSON(c *gin.Context, dst any, optional bool) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	if errors.Is(err, io.EOF) {
		s.respondError(c, badRequest("body", "request body is required"))
		return false
	}
	s.respondError(c, badRequest("body", err.Error()))
	return false
}

// queryList reads a multi-valued query parameter given either repeated or
// comma separated.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// requireQuery returns a mandatory query parameter.
func (s *Server) requireQuery(c *gin.Context, key string) (string, bool) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		s.respondError(c, missingParam(key))
		return "", false
	}
	return v, true
}

func queryInt(c *gin.Context, key string) (int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest(key, "must be an integer")
	}
	return n, nil
}

func queryBool(c *gin.Context, key string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, badRequest(key, "must be true or false")
	}
	return &b, nil
}

// listParams reads page, pageSize, sortBy and sortOrder.
func (s *Server) listParams(c *gin.Context) (repository.Paging, repository.Sort, bool) {
	page, err := queryInt(c, "page")
	if err != nil {
		s.respondError(c, err)
		return repository.Paging{}, repository.Sort{}, false
	}
	size, err := queryInt(c, "pageSize")
	if err != nil {
		s.respondError(c, err)
		return repository.Paging{}, repository.Sort{}, false
	}
	sort := repository.Sort{
		By:    strings.TrimSpace(c.Query("sortBy")),
		Order: strings.ToLower(strings.TrimSpace(c.Query("sortOrder"))),
	}
	return repository.Paging{Page: page, PageSize: size}, sort, true
}
