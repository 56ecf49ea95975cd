package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// mountStatic serves the compiled admin UI from the configured directory.
// Unknown paths fall back to index.html so client-side routes resolve;
// unknown API paths answer with the NOT_FOUND envelope.
func (s *Server) mountStatic() {
	index, hasIndex := s.uiPath("index.html", false)
	s.engine.NoRoute(func(c *gin.Context) {
		if !hasIndex || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, envelope{Error: &apiError{Code: CodeNotFound, Message: "Endpoint not found"}})
			return
		}
		c.File(index)
	})
	if !hasIndex {
		s.logger.Warn("admin UI not available; serving the API only", "static_dir", s.staticDir)
		return
	}

	s.engine.GET("/", func(c *gin.Context) { c.File(index) })
	if assets, ok := s.uiPath("assets", true); ok {
		s.engine.StaticFS("/assets", gin.Dir(assets, false))
	}
	if favicon, ok := s.uiPath("favicon.ico", false); ok {
		s.engine.StaticFile("/favicon.ico", favicon)
	}
}

// uiPath resolves name inside the static directory and reports whether it
// exists with the expected kind.
func (s *Server) uiPath(name string, dir bool) (string, bool) {
	if s.staticDir == "" {
		return "", false
	}
	p := filepath.Join(s.staticDir, name)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() != dir {
		return "", false
	}
	return p, true
}
