package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Sprint statuses.
const (
	SprintPlanning  = "planning"
	SprintActive    = "active"
	SprintCompleted = "completed"
	SprintArchived  = "archived"
)

// ValidSprintStatuses enumerates the sprint lifecycle.
var ValidSprintStatuses = setOf([]string{SprintPlanning, SprintActive, SprintCompleted, SprintArchived})

// sprintTransitions lists, per status, the statuses it may move to.
var sprintTransitions = map[string][]string{
	SprintPlanning:  {SprintActive, SprintArchived},
	SprintActive:    {SprintCompleted, SprintArchived},
	SprintCompleted: {SprintArchived},
	SprintArchived:  {},
}

// CanTransitionSprint reports whether a sprint may move from one status to another.
// Writing the current status again is always allowed.
func CanTransitionSprint(from, to string) bool {
	if from == to {
		return true
	}
	for _, next := range sprintTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Sprint is a time box of work inside a project.
type Sprint struct {
	ID              primitive.ObjectID `bson:"_id" json:"_id"`
	ProjectID       primitive.ObjectID `bson:"projectId" json:"projectId"`
	Name            string             `bson:"name" json:"name"`
	Goal            string             `bson:"goal" json:"goal"`
	Status          string             `bson:"status" json:"status"`
	StartDate       time.Time          `bson:"startDate" json:"startDate"`
	EndDate         time.Time          `bson:"endDate" json:"endDate"`
	Capacity        int                `bson:"capacity" json:"capacity"`
	CommittedPoints int                `bson:"committedPoints" json:"committedPoints"`
	CompletedPoints int                `bson:"completedPoints" json:"completedPoints"`
	StartedAt       *time.Time         `bson:"startedAt" json:"startedAt"`
	CompletedAt     *time.Time         `bson:"completedAt" json:"completedAt"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}
