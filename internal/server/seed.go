package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Manumac86/collybrix-admin-sub001/internal/seed"
)

// handleSeed loads the demo data set into an empty database.
func (s *Server) handleSeed(c *gin.Context) {
	res, err := seed.Load(c.Request.Context(), s.repo, s.logger, s.now())
	if errors.Is(err, seed.ErrAlreadySeeded) {
		respondSuccess(c, http.StatusOK, gin.H{"seeded": false, "message": err.Error()})
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"seeded": true, "message": "Database seeded", "created": res})
}
