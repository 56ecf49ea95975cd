package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

// Caller identifies who performs a retrospective operation.
type Caller struct {
	ID   string
	Name string
}

// RetroBoard is everything the retrospective page shows for one sprint.
type RetroBoard struct {
	Session models.RetroSession  `json:"session"`
	Cards   []models.RetroCard   `json:"cards"`
	Actions []models.RetroAction `json:"actions"`
}

// CardInput is the body of a new retrospective card.
type CardInput struct {
	Column    string `json:"column" validate:"required"`
	Content   string `json:"content" validate:"required,max=2000"`
	Anonymous bool   `json:"anonymous"`
}

// CardPatch is the body of a card edit.
type CardPatch struct {
	Column  Optional[string]  `json:"column"`
	Content Optional[string]  `json:"content"`
	GroupID Optional[*string] `json:"groupId"`
}

// ActionInput is the body of a new follow-up action.
type ActionInput struct {
	Title         string     `json:"title" validate:"required,max=300"`
	AssigneeID    *string    `json:"assigneeId" validate:"omitempty,objectid"`
	DueDate       *time.Time `json:"dueDate"`
	LinkedCardIDs []string   `json:"linkedCardIds" validate:"dive,objectid"`
}

// ActionPatch is the body of a follow-up action edit.
type ActionPatch struct {
	Title         Optional[string]     `json:"title"`
	AssigneeID    Optional[*string]    `json:"assigneeId"`
	Status        Optional[string]     `json:"status"`
	DueDate       Optional[*time.Time] `json:"dueDate"`
	LinkedCardIDs Optional[[]string]   `json:"linkedCardIds"`
}

// session returns the retrospective of a sprint, creating it on first use.
func (r *Repository) session(ctx context.Context, sprintID primitive.ObjectID, caller Caller) (models.RetroSession, error) {
	if _, err := r.GetSprint(ctx, sprintID); err != nil {
		return models.RetroSession{}, err
	}
	bySprint := storage.Where(storage.Eq("sprintId", sprintID))

	var s models.RetroSession
	err := r.retroSessions.FindOne(ctx, bySprint, &s)
	if err == nil {
		return s, nil
	}
	if !isNotFound(err) {
		return s, fmt.Errorf("load retrospective: %w", err)
	}

	now := r.now()
	s = models.RetroSession{
		ID:            models.NewID(),
		SprintID:      sprintID,
		Status:        models.RetroOpen,
		FacilitatorID: caller.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.retroSessions.Insert(ctx, s.ID, s); err != nil {
		if isDuplicate(err) {
			// Another request created it first.
			err = r.retroSessions.FindOne(ctx, bySprint, &s)
		}
		if err != nil {
			return s, fmt.Errorf("create retrospective: %w", err)
		}
	}
	return s, nil
}

// RetroBoard loads the board of a sprint.
func (r *Repository) RetroBoard(ctx context.Context, sprintID primitive.ObjectID, caller Caller) (RetroBoard, error) {
	s, err := r.session(ctx, sprintID, caller)
	if err != nil {
		return RetroBoard{}, err
	}
	bySprint := storage.Where(storage.Eq("sprintId", sprintID)).SortBy("createdAt", false)
	cards, err := findAll[models.RetroCard](ctx, r.retroCards, bySprint)
	if err != nil {
		return RetroBoard{}, fmt.Errorf("load cards: %w", err)
	}
	actions, err := findAll[models.RetroAction](ctx, r.retroActions, bySprint)
	if err != nil {
		return RetroBoard{}, fmt.Errorf("load actions: %w", err)
	}
	return RetroBoard{Session: s, Cards: cards, Actions: actions}, nil
}

// SetRetroStatus opens or closes the board of a sprint.
func (r *Repository) SetRetroStatus(ctx context.Context, sprintID primitive.ObjectID, caller Caller, status string) (models.RetroSession, error) {
	if status != models.RetroOpen && status != models.RetroClosed {
		return models.RetroSession{}, &ValidationError{
			Message: "Validation failed",
			Details: map[string]string{"status": "must be one of closed, open"},
		}
	}
	s, err := r.session(ctx, sprintID, caller)
	if err != nil {
		return models.RetroSession{}, err
	}
	if s.Status == status {
		return s, nil
	}
	s.Status = status
	s.UpdatedAt = r.now()
	if err := r.retroSessions.Replace(ctx, s.ID, s); err != nil {
		return models.RetroSession{}, fmt.Errorf("update retrospective: %w", err)
	}
	return s, nil
}

func (r *Repository) openSession(ctx context.Context, sprintID primitive.ObjectID, caller Caller) (models.RetroSession, error) {
	s, err := r.session(ctx, sprintID, caller)
	if err != nil {
		return s, err
	}
	if s.Status != models.RetroOpen {
		return s, invalidf("the retrospective is closed")
	}
	return s, nil
}

func (r *Repository) sprintCard(ctx context.Context, sprintID, cardID primitive.ObjectID) (models.RetroCard, error) {
	var c models.RetroCard
	if err := r.get(ctx, r.retroCards, "Card", cardID, &c); err != nil {
		return c, err
	}
	if c.SprintID != sprintID {
		return c, &NotFoundError{Resource: "Card"}
	}
	return c, nil
}

// AddCard posts a card to the board. Anonymous cards carry no author.
func (r *Repository) AddCard(ctx context.Context, sprintID primitive.ObjectID, caller Caller, in CardInput) (models.RetroCard, error) {
	in.Content = strings.TrimSpace(in.Content)
	details := check(in)
	details.oneOf("column", in.Column, models.ValidRetroColumns)
	if err := details.err(); err != nil {
		return models.RetroCard{}, err
	}
	s, err := r.openSession(ctx, sprintID, caller)
	if err != nil {
		return models.RetroCard{}, err
	}

	now := r.now()
	c := models.RetroCard{
		ID:        models.NewID(),
		SprintID:  sprintID,
		SessionID: s.ID,
		Column:    in.Column,
		Content:   in.Content,
		Votes:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !in.Anonymous {
		c.AuthorID = caller.ID
		c.AuthorName = caller.Name
	}
	if err := r.retroCards.Insert(ctx, c.ID, c); err != nil {
		return models.RetroCard{}, fmt.Errorf("insert card: %w", err)
	}
	return c, nil
}

// UpdateCard edits a card; only its author may, unless it is anonymous.
func (r *Repository) UpdateCard(ctx context.Context, sprintID, cardID primitive.ObjectID, caller Caller, p CardPatch) (models.RetroCard, error) {
	c, err := r.sprintCard(ctx, sprintID, cardID)
	if err != nil {
		return models.RetroCard{}, err
	}
	if !c.CanModify(caller.ID) {
		return models.RetroCard{}, ErrForbidden
	}

	in := CardInput{Column: c.Column, Content: c.Content}
	p.Column.applyTo(&in.Column)
	p.Content.applyTo(&in.Content)
	in.Content = strings.TrimSpace(in.Content)
	details := check(in)
	details.oneOf("column", in.Column, models.ValidRetroColumns)
	var group *string
	p.GroupID.applyTo(&group)
	if group != nil && *group != "" {
		if _, err := models.ParseID(*group); err != nil {
			details.add("groupId", "must be a 24 character hex identifier")
		}
	}
	if err := details.err(); err != nil {
		return models.RetroCard{}, err
	}

	c.Column = in.Column
	c.Content = in.Content
	if p.GroupID.Set {
		c.GroupID = optionalID(group)
	}
	c.UpdatedAt = r.now()
	if err := r.retroCards.Replace(ctx, c.ID, c); err != nil {
		return models.RetroCard{}, fmt.Errorf("update card: %w", err)
	}
	return c, nil
}

// DeleteCard removes a card and unlinks it from actions and groups.
func (r *Repository) DeleteCard(ctx context.Context, sprintID, cardID primitive.ObjectID, caller Caller) error {
	c, err := r.sprintCard(ctx, sprintID, cardID)
	if err != nil {
		return err
	}
	if !c.CanModify(caller.ID) {
		return ErrForbidden
	}
	if err := r.remove(ctx, r.retroCards, "Card", c.ID); err != nil {
		return err
	}
	if _, err := r.retroActions.Pull(ctx, storage.Where(storage.Eq("sprintId", sprintID)), "linkedCardIds", c.ID); err != nil {
		return fmt.Errorf("unlink card: %w", err)
	}
	if _, err := r.retroCards.Set(ctx, storage.Where(storage.Eq("groupId", c.ID)), "groupId", nil); err != nil {
		return fmt.Errorf("ungroup cards: %w", err)
	}
	return nil
}

// Vote adds the caller's vote to a card. Voting twice has no effect.
func (r *Repository) Vote(ctx context.Context, sprintID, cardID primitive.ObjectID, caller Caller) (models.RetroCard, error) {
	return r.changeVote(ctx, sprintID, cardID, caller, true)
}

// Unvote removes the caller's vote from a card.
func (r *Repository) Unvote(ctx context.Context, sprintID, cardID primitive.ObjectID, caller Caller) (models.RetroCard, error) {
	return r.changeVote(ctx, sprintID, cardID, caller, false)
}

func (r *Repository) changeVote(ctx context.Context, sprintID, cardID primitive.ObjectID, caller Caller, add bool) (models.RetroCard, error) {
	if caller.ID == "" {
		return models.RetroCard{}, ErrForbidden
	}
	c, err := r.sprintCard(ctx, sprintID, cardID)
	if err != nil {
		return models.RetroCard{}, err
	}
	var changed bool
	if add {
		changed = c.AddVote(caller.ID)
	} else {
		changed = c.RemoveVote(caller.ID)
	}
	if !changed {
		return c, nil
	}
	c.UpdatedAt = r.now()
	if err := r.retroCards.Replace(ctx, c.ID, c); err != nil {
		return models.RetroCard{}, fmt.Errorf("update votes: %w", err)
	}
	return c, nil
}

// AddAction records a follow-up action on the board.
func (r *Repository) AddAction(ctx context.Context, sprintID primitive.ObjectID, caller Caller, in ActionInput) (models.RetroAction, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := check(in).err(); err != nil {
		return models.RetroAction{}, err
	}
	s, err := r.session(ctx, sprintID, caller)
	if err != nil {
		return models.RetroAction{}, err
	}
	now := r.now()
	a := models.RetroAction{
		ID:            models.NewID(),
		SprintID:      sprintID,
		SessionID:     s.ID,
		Title:         in.Title,
		AssigneeID:    optionalID(in.AssigneeID),
		Status:        models.ActionOpen,
		DueDate:       in.DueDate,
		LinkedCardIDs: mustIDs(in.LinkedCardIDs),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.retroActions.Insert(ctx, a.ID, a); err != nil {
		return models.RetroAction{}, fmt.Errorf("insert action: %w", err)
	}
	return a, nil
}

func (r *Repository) sprintAction(ctx context.Context, sprintID, actionID primitive.ObjectID) (models.RetroAction, error) {
	var a models.RetroAction
	if err := r.get(ctx, r.retroActions, "Action", actionID, &a); err != nil {
		return a, err
	}
	if a.SprintID != sprintID {
		return a, &NotFoundError{Resource: "Action"}
	}
	return a, nil
}

// UpdateAction edits a follow-up action.
func (r *Repository) UpdateAction(ctx context.Context, sprintID, actionID primitive.ObjectID, p ActionPatch) (models.RetroAction, error) {
	a, err := r.sprintAction(ctx, sprintID, actionID)
	if err != nil {
		return models.RetroAction{}, err
	}
	in := ActionInput{
		Title:         a.Title,
		AssigneeID:    hexPtr(a.AssigneeID),
		DueDate:       a.DueDate,
		LinkedCardIDs: hexIDs(a.LinkedCardIDs),
	}
	status := a.Status
	p.Title.applyTo(&in.Title)
	p.AssigneeID.applyTo(&in.AssigneeID)
	p.DueDate.applyTo(&in.DueDate)
	p.LinkedCardIDs.applyTo(&in.LinkedCardIDs)
	p.Status.applyTo(&status)
	in.Title = strings.TrimSpace(in.Title)

	details := check(in)
	if status == "" {
		details.add("status", "is required")
	}
	details.oneOf("status", status, models.ValidActionStatuses)
	if err := details.err(); err != nil {
		return models.RetroAction{}, err
	}

	a.Title = in.Title
	a.AssigneeID = optionalID(in.AssigneeID)
	a.DueDate = in.DueDate
	a.LinkedCardIDs = mustIDs(in.LinkedCardIDs)
	a.Status = status
	a.UpdatedAt = r.now()
	if err := r.retroActions.Replace(ctx, a.ID, a); err != nil {
		return models.RetroAction{}, fmt.Errorf("update action: %w", err)
	}
	return a, nil
}

// DeleteAction removes a follow-up action.
func (r *Repository) DeleteAction(ctx context.Context, sprintID, actionID primitive.ObjectID) error {
	a, err := r.sprintAction(ctx, sprintID, actionID)
	if err != nil {
		return err
	}
	return r.remove(ctx, r.retroActions, "Action", a.ID)
}
