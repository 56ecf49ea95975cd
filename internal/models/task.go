package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Task workflow statuses.
const (
	StatusBacklog    = "backlog"
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusInReview   = "in_review"
	StatusInTesting  = "in_testing"
	StatusDone       = "done"
	StatusBlocked    = "blocked"
	StatusCancelled  = "cancelled"
	StatusArchived   = "archived"
)

// TaskStatuses lists the workflow in board order followed by the side states.
var TaskStatuses = []string{
	StatusBacklog,
	StatusTodo,
	StatusInProgress,
	StatusInReview,
	StatusInTesting,
	StatusDone,
	StatusBlocked,
	StatusCancelled,
	StatusArchived,
}

// ValidTaskStatuses enumerates the statuses supported by the board columns.
var ValidTaskStatuses = setOf(TaskStatuses)

// Task types.
const (
	TypeStory = "story"
	TypeTask  = "task"
	TypeBug   = "bug"
	TypeEpic  = "epic"
	TypeSpike = "spike"
)

// TaskTypes lists the supported work item types.
var TaskTypes = []string{TypeStory, TypeTask, TypeBug, TypeEpic, TypeSpike}

// ValidTaskTypes is the lookup form of TaskTypes.
var ValidTaskTypes = setOf(TaskTypes)

// Task priorities, lowest first.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// TaskPriorities lists priorities from lowest to highest.
var TaskPriorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// ValidTaskPriorities is the lookup form of TaskPriorities.
var ValidTaskPriorities = setOf(TaskPriorities)

// Task is a single work item on the board.
type Task struct {
	ID              primitive.ObjectID   `bson:"_id" json:"_id"`
	ProjectID       primitive.ObjectID   `bson:"projectId" json:"projectId"`
	Title           string               `bson:"title" json:"title"`
	Description     string               `bson:"description" json:"description"`
	Type            string               `bson:"type" json:"type"`
	Status          string               `bson:"status" json:"status"`
	Priority        string               `bson:"priority" json:"priority"`
	StoryPoints     *int                 `bson:"storyPoints" json:"storyPoints"`
	AssigneeIDs     []primitive.ObjectID `bson:"assigneeIds" json:"assigneeIds"`
	ReporterID      *primitive.ObjectID  `bson:"reporterId" json:"reporterId"`
	SprintID        *primitive.ObjectID  `bson:"sprintId" json:"sprintId"`
	ParentID        *primitive.ObjectID  `bson:"parentId" json:"parentId"`
	TagIDs          []primitive.ObjectID `bson:"tagIds" json:"tagIds"`
	DependencyIDs   []primitive.ObjectID `bson:"dependencyIds" json:"dependencyIds"`
	DueDate         *time.Time           `bson:"dueDate" json:"dueDate"`
	Position        int64                `bson:"position" json:"position"`
	StartedAt       *time.Time           `bson:"startedAt" json:"startedAt"`
	CompletedAt     *time.Time           `bson:"completedAt" json:"completedAt"`
	AddedToSprintAt *time.Time           `bson:"addedToSprintAt" json:"addedToSprintAt"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// Points returns the story points, counting a missing estimate as zero.
func (t *Task) Points() int {
	if t.StoryPoints == nil {
		return 0
	}
	return *t.StoryPoints
}

// IsDone reports whether the task reached the done column.
func (t *Task) IsDone() bool {
	return t.Status == StatusDone
}

// ApplyStatus moves the task to status and maintains the workflow timestamps.
func (t *Task) ApplyStatus(status string, now time.Time) {
	if status == StatusInProgress && t.StartedAt == nil {
		started := now
		t.StartedAt = &started
	}
	if status == StatusDone && (t.Status != StatusDone || t.CompletedAt == nil) {
		done := now
		t.CompletedAt = &done
	}
	if status != StatusDone {
		t.CompletedAt = nil
	}
	t.Status = status
}

// ApplySprint moves the task into sprint (nil for the backlog).
func (t *Task) ApplySprint(sprint *primitive.ObjectID, now time.Time) {
	if sprint == nil {
		t.SprintID = nil
		t.AddedToSprintAt = nil
		return
	}
	if t.SprintID == nil || *t.SprintID != *sprint {
		added := now
		t.AddedToSprintAt = &added
	}
	id := *sprint
	t.SprintID = &id
}

// Normalize fills the defaults for enumerated fields and nil sets.
func (t *Task) Normalize() {
	if t.Type == "" {
		t.Type = TypeTask
	}
	if t.Status == "" {
		t.Status = StatusBacklog
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.AssigneeIDs == nil {
		t.AssigneeIDs = []primitive.ObjectID{}
	}
	if t.TagIDs == nil {
		t.TagIDs = []primitive.ObjectID{}
	}
	if t.DependencyIDs == nil {
		t.DependencyIDs = []primitive.ObjectID{}
	}
	t.AssigneeIDs = UniqueIDs(t.AssigneeIDs)
	t.TagIDs = UniqueIDs(t.TagIDs)
	t.DependencyIDs = UniqueIDs(t.DependencyIDs)
}

func setOf(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
