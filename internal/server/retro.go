package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Manumac86/collybrix-admin-sub001/internal/repository"
)

// handleRetroBoard returns the retrospective of a sprint, opening it on
// first visit.
func (s *Server) handleRetroBoard(c *gin.Context) {
	sprintID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	board, err := s.repo.RetroBoard(c.Request.Context(), sprintID, caller(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, board)
}

type retroStatusRequest struct {
	Status string `json:"status"`
}

// handleRetroStatus opens or closes the board.
func (s *Server) handleRetroStatus(c *gin.Context) {
	sprintID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req retroStatusRequest
	if !s.bindJSON(c, &req, false) {
		return
	}
	session, err := s.repo.SetRetroStatus(c.Request.Context(), sprintID, caller(c), req.Status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, session)
}

func (s *Server) handleAddCard(c *gin.Context) {
	sprintID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req repository.CardInput
	if !s.bindJSON(c, &req, false) {
		return
	}
	card, err := s.repo.AddCard(c.Request.Context(), sprintID, caller(c), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, card)
}

// handleUpdateCard edits a card; only its author may unless it is anonymous.
func (s *Server) handleUpdateCard(c *gin.Context) {
	sprintID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	cardID, ok := s.parseID(c, "cardId")
	if !ok {
		return
	}
	var req repository.CardPatch
	if !s.bindJSON(c, &req, false) {
		return
	}
	card, err := s.repo.UpdateCard(c.Request.Context(), sprintID, cardID, caller(c), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, card)
}

func (s *Server) handleDeleteCard(c *gin.Context) {
	sprintID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	cardID, ok := s.parseID(c, "cardId")
	if !ok {
		return
	}
	if err := s.repo.DeleteCard(c.Request.Context(), sprintID, cardID, caller(c)); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": cardID.Hex(), "deleted": true})
}

func (s *Server) handleVote(c *gin.Context) {
	s.changeVote(c, true)
}

func (s *Server) handleUnvote(c *gin.Context) {
	s.changeVote(c, false)
}

func (s *Server) changeVote(c *gin.Context, add bool) {
	sprintID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	cardID, ok := s.parseID(c, "cardId")
	if !ok {
		return
	}
	vote := s.repo.Unvote
	if add {
		vote = s.repo.Vote
	}
	card, err := vote(c.Request.Context(), sprintID, cardID, caller(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, card)
}

func (s *Server) handleAddAction(c *gin.Context) {
	sprintID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var req repository.ActionInput
	if !s.bindJSON(c, &req, false) {
		return
	}
	action, err := s.repo.AddAction(c.Request.Context(), sprintID, caller(c), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, action)
}

func (s *Server) handleUpdateAction(c *gin.Context) {
	sprintID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	actionID, ok := s.parseID(c, "actionId")
	if !ok {
		return
	}
	var req repository.ActionPatch
	if !s.bindJSON(c, &req, false) {
		return
	}
	action, err := s.repo.UpdateAction(c.Request.Context(), sprintID, actionID, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, action)
}

func (s *Server) handleDeleteAction(c *gin.Context) {
	sprintID, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	actionID, ok := s.parseID(c, "actionId")
	if !ok {
		return
	}
	if err := s.repo.DeleteAction(c.Request.Context(), sprintID, actionID); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": actionID.Hex(), "deleted": true})
}
