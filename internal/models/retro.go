package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Retrospective board columns.
const (
	ColumnWentWell  = "went_well"
	ColumnToImprove = "to_improve"
	ColumnAction    = "action"
)

// ValidRetroColumns enumerates the board columns.
var ValidRetroColumns = setOf([]string{ColumnWentWell, ColumnToImprove, ColumnAction})

// Retrospective session and action statuses.
const (
	RetroOpen   = "open"
	RetroClosed = "closed"

	ActionOpen       = "open"
	ActionInProgress = "in_progress"
	ActionDone       = "done"
)

// ValidActionStatuses enumerates the follow-up action states.
var ValidActionStatuses = setOf([]string{ActionOpen, ActionInProgress, ActionDone})

// RetroSession is the retrospective board of one sprint.
type RetroSession struct {
	ID            primitive.ObjectID `bson:"_id" json:"_id"`
	SprintID      primitive.ObjectID `bson:"sprintId" json:"sprintId"`
	Status        string             `bson:"status" json:"status"`
	FacilitatorID string             `bson:"facilitatorId" json:"facilitatorId"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// RetroCard is a sticky note on the board. An empty AuthorID marks an
// anonymous card.
type RetroCard struct {
	ID         primitive.ObjectID  `bson:"_id" json:"_id"`
	SprintID   primitive.ObjectID  `bson:"sprintId" json:"sprintId"`
	SessionID  primitive.ObjectID  `bson:"sessionId" json:"sessionId"`
	Column     string              `bson:"column" json:"column"`
	Content    string              `bson:"content" json:"content"`
	AuthorID   string              `bson:"authorId" json:"authorId"`
	AuthorName string              `bson:"authorName" json:"authorName"`
	Votes      []string            `bson:"votes" json:"votes"`
	GroupID    *primitive.ObjectID `bson:"groupId" json:"groupId"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// CanModify reports whether caller may edit or delete the card.
func (c *RetroCard) CanModify(caller string) bool {
	return c.AuthorID == "" || c.AuthorID == caller
}

// AddVote registers voter once; it reports whether the set changed.
func (c *RetroCard) AddVote(voter string) bool {
	for _, v := range c.Votes {
		if v == voter {
			return false
		}
	}
	c.Votes = append(c.Votes, voter)
	return true
}

// RemoveVote drops voter; it reports whether the set changed.
func (c *RetroCard) RemoveVote(voter string) bool {
	for i, v := range c.Votes {
		if v == voter {
			c.Votes = append(c.Votes[:i], c.Votes[i+1:]...)
			return true
		}
	}
	return false
}

// RetroAction is a follow-up agreed during the retrospective.
type RetroAction struct {
	ID            primitive.ObjectID   `bson:"_id" json:"_id"`
	SprintID      primitive.ObjectID   `bson:"sprintId" json:"sprintId"`
	SessionID     primitive.ObjectID   `bson:"sessionId" json:"sessionId"`
	Title         string               `bson:"title" json:"title"`
	AssigneeID    *primitive.ObjectID  `bson:"assigneeId" json:"assigneeId"`
	Status        string               `bson:"status" json:"status"`
	DueDate       *time.Time           `bson:"dueDate" json:"dueDate"`
	LinkedCardIDs []primitive.ObjectID `bson:"linkedCardIds" json:"linkedCardIds"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt" json:"updatedAt"`
}
