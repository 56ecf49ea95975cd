package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

// FilterNone selects documents whose reference is unset, e.g. sprintId=none.
const FilterNone = "none"

var taskSortFields = map[string]struct{}{
	"createdAt":   {},
	"updatedAt":   {},
	"title":       {},
	"storyPoints": {},
	"dueDate":     {},
	"position":    {},
}

// TaskFilter narrows a task listing. Multi-valued fields match any value.
type TaskFilter struct {
	ProjectIDs []string
	SprintIDs  []string
	Statuses   []string
	Types      []string
	Priorities []string
	Assignees  []string
	Tags       []string
	Parents    []string
	Search     string
	Paging     Paging
	Sort       Sort
}

// TaskInput is the body of a task create or full replace.
type TaskInput struct {
	ProjectID     string     `json:"projectId" validate:"required,objectid"`
	Title         string     `json:"title" validate:"required,max=200"`
	Description   string     `json:"description" validate:"max=10000"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	StoryPoints   *int       `json:"storyPoints" validate:"omitempty,min=0,max=100"`
	AssigneeIDs   []string   `json:"assigneeIds" validate:"dive,objectid"`
	ReporterID    *string    `json:"reporterId" validate:"omitempty,objectid"`
	SprintID      *string    `json:"sprintId" validate:"omitempty,objectid"`
	ParentID      *string    `json:"parentId" validate:"omitempty,objectid"`
	TagIDs        []string   `json:"tagIds" validate:"dive,objectid"`
	DependencyIDs []string   `json:"dependencyIds" validate:"dive,objectid"`
	DueDate       *time.Time `json:"dueDate"`
	Position      *int64     `json:"position" validate:"omitempty,min=0"`
}

// TaskPatch is the body of a partial task update.
type TaskPatch struct {
	Title         Optional[string]     `json:"title"`
	Description   Optional[string]     `json:"description"`
	Type          Optional[string]     `json:"type"`
	Status        Optional[string]     `json:"status"`
	Priority      Optional[string]     `json:"priority"`
	StoryPoints   Optional[*int]       `json:"storyPoints"`
	AssigneeIDs   Optional[[]string]   `json:"assigneeIds"`
	ReporterID    Optional[*string]    `json:"reporterId"`
	SprintID      Optional[*string]    `json:"sprintId"`
	ParentID      Optional[*string]    `json:"parentId"`
	TagIDs        Optional[[]string]   `json:"tagIds"`
	DependencyIDs Optional[[]string]   `json:"dependencyIds"`
	DueDate       Optional[*time.Time] `json:"dueDate"`
	Position      Optional[*int64]     `json:"position"`
}

func (p TaskPatch) apply(in *TaskInput) {
	p.Title.applyTo(&in.Title)
	p.Description.applyTo(&in.Description)
	p.Type.applyTo(&in.Type)
	p.Status.applyTo(&in.Status)
	p.Priority.applyTo(&in.Priority)
	p.StoryPoints.applyTo(&in.StoryPoints)
	p.AssigneeIDs.applyTo(&in.AssigneeIDs)
	p.ReporterID.applyTo(&in.ReporterID)
	p.SprintID.applyTo(&in.SprintID)
	p.ParentID.applyTo(&in.ParentID)
	p.TagIDs.applyTo(&in.TagIDs)
	p.DependencyIDs.applyTo(&in.DependencyIDs)
	p.DueDate.applyTo(&in.DueDate)
	p.Position.applyTo(&in.Position)
}

func taskInputFrom(t models.Task) TaskInput {
	pos := t.Position
	return TaskInput{
		ProjectID:     t.ProjectID.Hex(),
		Title:         t.Title,
		Description:   t.Description,
		Type:          t.Type,
		Status:        t.Status,
		Priority:      t.Priority,
		StoryPoints:   t.StoryPoints,
		AssigneeIDs:   hexIDs(t.AssigneeIDs),
		ReporterID:    hexPtr(t.ReporterID),
		SprintID:      hexPtr(t.SprintID),
		ParentID:      hexPtr(t.ParentID),
		TagIDs:        hexIDs(t.TagIDs),
		DependencyIDs: hexIDs(t.DependencyIDs),
		DueDate:       t.DueDate,
		Position:      &pos,
	}
}

func (f TaskFilter) query() (storage.Query, error) {
	q := storage.Query{}

	refs := []struct {
		field string
		raw   []string
		array bool
	}{
		{"projectId", f.ProjectIDs, false},
		{"sprintId", f.SprintIDs, false},
		{"assigneeIds", f.Assignees, true},
		{"tagIds", f.Tags, true},
		{"parentId", f.Parents, false},
	}
	for _, ref := range refs {
		if len(ref.raw) == 0 {
			continue
		}
		if !ref.array && len(ref.raw) == 1 && ref.raw[0] == FilterNone {
			q = q.And(storage.IsNull(ref.field))
			continue
		}
		ids, err := parseFilterIDs(ref.field, ref.raw)
		if err != nil {
			return q, err
		}
		if ref.array {
			q = q.And(storage.AnyIn(ref.field, idValues(ids)...))
		} else {
			q = q.And(storage.In(ref.field, idValues(ids)...))
		}
	}

	enums := []struct {
		field string
		raw   []string
		valid map[string]struct{}
	}{
		{"status", f.Statuses, models.ValidTaskStatuses},
		{"type", f.Types, models.ValidTaskTypes},
		{"priority", f.Priorities, models.ValidTaskPriorities},
	}
	details := fieldErrors{}
	for _, e := range enums {
		for _, v := range e.raw {
			details.oneOf(e.field, v, e.valid)
		}
		if len(e.raw) > 0 {
			q = q.And(storage.In(e.field, stringValues(e.raw)...))
		}
	}
	if err := details.err(); err != nil {
		return q, err
	}

	if f.Search != "" {
		q = q.And(storage.Search(f.Search, "title", "description"))
	}
	return f.Sort.apply(q, taskSortFields, "position", false)
}

// ListTasks returns one page of tasks matching filter.
func (r *Repository) ListTasks(ctx context.Context, filter TaskFilter) (ListResult[models.Task], error) {
	q, err := filter.query()
	if err != nil {
		return ListResult[models.Task]{}, err
	}
	if filter.Sort.By != "" && filter.Sort.By != "position" {
		q = q.SortBy("position", false)
	}
	res, err := findPage[models.Task](ctx, r.tasks, q, filter.Paging)
	if err != nil {
		return res, fmt.Errorf("list tasks: %w", err)
	}
	return res, nil
}

// GetTask loads a single task.
func (r *Repository) GetTask(ctx context.Context, id primitive.ObjectID) (models.Task, error) {
	var t models.Task
	err := r.get(ctx, r.tasks, "Task", id, &t)
	return t, err
}

// CreateTask validates in and stores a new task at the end of its column.
func (r *Repository) CreateTask(ctx context.Context, in TaskInput) (models.Task, error) {
	now := r.now()
	t := models.Task{ID: models.NewID(), CreatedAt: now}
	if err := r.buildTask(ctx, &t, in, now); err != nil {
		return models.Task{}, err
	}
	if in.Position == nil {
		pos, err := r.nextPosition(ctx, t.ProjectID, t.Status)
		if err != nil {
			return models.Task{}, err
		}
		t.Position = pos
	}
	if err := r.tasks.Insert(ctx, t.ID, t); err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// ReplaceTask overwrites every updatable field of a task.
func (r *Repository) ReplaceTask(ctx context.Context, id primitive.ObjectID, in TaskInput) (models.Task, error) {
	t, err := r.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	return r.saveTask(ctx, t, in)
}

// PatchTask updates only the fields present in p.
func (r *Repository) PatchTask(ctx context.Context, id primitive.ObjectID, p TaskPatch) (models.Task, error) {
	t, err := r.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	in := taskInputFrom(t)
	p.apply(&in)
	if p.Status.Set && !p.Position.Set {
		in.Position = nil
	}
	return r.saveTask(ctx, t, in)
}

func (r *Repository) saveTask(ctx context.Context, t models.Task, in TaskInput) (models.Task, error) {
	now := r.now()
	oldStatus := t.Status
	if err := r.buildTask(ctx, &t, in, now); err != nil {
		return models.Task{}, err
	}
	if in.Position == nil && t.Status != oldStatus {
		pos, err := r.nextPosition(ctx, t.ProjectID, t.Status)
		if err != nil {
			return models.Task{}, err
		}
		t.Position = pos
	}
	if err := r.tasks.Replace(ctx, t.ID, t); err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

// buildTask validates in and applies it onto t, keeping the workflow
// timestamps consistent with the status and sprint changes.
func (r *Repository) buildTask(ctx context.Context, t *models.Task, in TaskInput, now time.Time) error {
	details := check(in)
	details.oneOf("type", in.Type, models.ValidTaskTypes)
	details.oneOf("status", in.Status, models.ValidTaskStatuses)
	details.oneOf("priority", in.Priority, models.ValidTaskPriorities)
	if err := details.err(); err != nil {
		return err
	}

	projectID := mustID(in.ProjectID)
	if err := r.requireProject(ctx, projectID, "projectId"); err != nil {
		return err
	}

	sprintID := optionalID(in.SprintID)
	if sprintID != nil {
		var s models.Sprint
		if err := r.get(ctx, r.sprints, "Sprint", *sprintID, &s); err != nil {
			return referenceError(err, "sprintId")
		}
		if s.ProjectID != projectID {
			details.add("sprintId", "belongs to another project")
		}
	}
	parentID := optionalID(in.ParentID)
	if parentID != nil {
		if *parentID == t.ID {
			details.add("parentId", "cannot reference the task itself")
		} else {
			var parent models.Task
			if err := r.get(ctx, r.tasks, "Task", *parentID, &parent); err != nil {
				return referenceError(err, "parentId")
			}
			if parent.ProjectID != projectID {
				details.add("parentId", "belongs to another project")
			}
		}
	}
	deps := mustIDs(in.DependencyIDs)
	if models.ContainsID(deps, t.ID) {
		details.add("dependencyIds", "cannot reference the task itself")
	}
	if err := details.err(); err != nil {
		return err
	}

	t.ProjectID = projectID
	t.Title = in.Title
	t.Description = in.Description
	t.Type = in.Type
	t.Priority = in.Priority
	t.StoryPoints = in.StoryPoints
	t.AssigneeIDs = mustIDs(in.AssigneeIDs)
	t.ReporterID = optionalID(in.ReporterID)
	t.ParentID = parentID
	t.TagIDs = mustIDs(in.TagIDs)
	t.DependencyIDs = deps
	t.DueDate = in.DueDate
	if in.Position != nil {
		t.Position = *in.Position
	}

	status := in.Status
	if status == "" {
		status = models.StatusBacklog
	}
	t.ApplyStatus(status, now)
	t.ApplySprint(sprintID, now)
	t.Normalize()
	t.UpdatedAt = now
	return nil
}

// referenceError turns a missing referenced document into a field error.
func referenceError(err error, field string) error {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return &ValidationError{Message: "Validation failed", Details: map[string]string{field: "does not exist"}}
	}
	return err
}

func (r *Repository) requireProject(ctx context.Context, id primitive.ObjectID, field string) error {
	n, err := r.projects.Count(ctx, storage.Where(storage.Eq("_id", id)))
	if err != nil {
		return fmt.Errorf("check project: %w", err)
	}
	if n == 0 {
		return &ValidationError{Message: "Validation failed", Details: map[string]string{field: "does not exist"}}
	}
	return nil
}

// nextPosition returns the position after the last task of a board column.
func (r *Repository) nextPosition(ctx context.Context, projectID primitive.ObjectID, status string) (int64, error) {
	q := storage.Where(storage.Eq("projectId", projectID), storage.Eq("status", status)).
		SortBy("position", true).
		Page(0, 1)
	var last models.Task
	err := r.tasks.FindOne(ctx, q, &last)
	if errors.Is(err, storage.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("next position: %w", err)
	}
	return last.Position + 1, nil
}

// DeleteTask removes a task, detaching its subtasks and dependants.
func (r *Repository) DeleteTask(ctx context.Context, id primitive.ObjectID) error {
	if err := r.remove(ctx, r.tasks, "Task", id); err != nil {
		return err
	}
	now := r.now()

	children := storage.Where(storage.Eq("parentId", id))
	if _, err := r.tasks.Set(ctx, children, "updatedAt", now); err != nil {
		return fmt.Errorf("touch subtasks: %w", err)
	}
	if _, err := r.tasks.Set(ctx, children, "parentId", nil); err != nil {
		return fmt.Errorf("detach subtasks: %w", err)
	}

	dependants := storage.Where(storage.AnyIn("dependencyIds", id))
	if _, err := r.tasks.Set(ctx, dependants, "updatedAt", now); err != nil {
		return fmt.Errorf("touch dependants: %w", err)
	}
	if _, err := r.tasks.Pull(ctx, storage.Query{}, "dependencyIds", id); err != nil {
		return fmt.Errorf("detach dependants: %w", err)
	}
	return nil
}
