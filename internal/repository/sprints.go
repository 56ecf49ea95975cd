package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

var sprintSortFields = map[string]struct{}{
	"createdAt": {},
	"updatedAt": {},
	"name":      {},
	"startDate": {},
	"endDate":   {},
}

// SprintFilter narrows a sprint listing.
type SprintFilter struct {
	ProjectIDs []string
	Statuses   []string
	Paging     Paging
	Sort       Sort
}

// SprintInput is the body of a sprint create or full replace.
type SprintInput struct {
	ProjectID string     `json:"projectId" validate:"required,objectid"`
	Name      string     `json:"name" validate:"required,max=120"`
	Goal      string     `json:"goal" validate:"max=2000"`
	Status    string     `json:"status"`
	StartDate *time.Time `json:"startDate" validate:"required"`
	EndDate   *time.Time `json:"endDate" validate:"required"`
	Capacity  int        `json:"capacity" validate:"min=0"`
}

// SprintPatch is the body of a partial sprint update.
type SprintPatch struct {
	Name      Optional[string]     `json:"name"`
	Goal      Optional[string]     `json:"goal"`
	Status    Optional[string]     `json:"status"`
	StartDate Optional[*time.Time] `json:"startDate"`
	EndDate   Optional[*time.Time] `json:"endDate"`
	Capacity  Optional[int]        `json:"capacity"`
}

// CompleteResult reports a sprint closed by CompleteSprint.
type CompleteResult struct {
	Sprint     models.Sprint `json:"sprint"`
	MovedTasks int64         `json:"movedTasks"`
}

// ListSprints returns one page of sprints, newest start date first.
func (r *Repository) ListSprints(ctx context.Context, filter SprintFilter) (ListResult[models.Sprint], error) {
	q := storage.Query{}
	if len(filter.ProjectIDs) > 0 {
		ids, err := parseFilterIDs("projectId", filter.ProjectIDs)
		if err != nil {
			return ListResult[models.Sprint]{}, err
		}
		q = q.And(storage.In("projectId", idValues(ids)...))
	}
	if len(filter.Statuses) > 0 {
		details := fieldErrors{}
		for _, s := range filter.Statuses {
			details.oneOf("status", s, models.ValidSprintStatuses)
		}
		if err := details.err(); err != nil {
			return ListResult[models.Sprint]{}, err
		}
		q = q.And(storage.In("status", stringValues(filter.Statuses)...))
	}
	q, err := filter.Sort.apply(q, sprintSortFields, "startDate", true)
	if err != nil {
		return ListResult[models.Sprint]{}, err
	}
	res, err := findPage[models.Sprint](ctx, r.sprints, q, filter.Paging)
	if err != nil {
		return res, fmt.Errorf("list sprints: %w", err)
	}
	return res, nil
}

// GetSprint loads a single sprint.
func (r *Repository) GetSprint(ctx context.Context, id primitive.ObjectID) (models.Sprint, error) {
	var s models.Sprint
	err := r.get(ctx, r.sprints, "Sprint", id, &s)
	return s, err
}

func validateSprint(in SprintInput) fieldErrors {
	details := check(in)
	details.oneOf("status", in.Status, models.ValidSprintStatuses)
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		details.add("endDate", "must not be before startDate")
	}
	return details
}

// CreateSprint stores a new sprint in planning.
func (r *Repository) CreateSprint(ctx context.Context, in SprintInput) (models.Sprint, error) {
	details := validateSprint(in)
	if in.Status != "" && in.Status != models.SprintPlanning {
		details.add("status", "new sprints start in planning")
	}
	if err := details.err(); err != nil {
		return models.Sprint{}, err
	}
	projectID := mustID(in.ProjectID)
	if err := r.requireProject(ctx, projectID, "projectId"); err != nil {
		return models.Sprint{}, err
	}

	now := r.now()
	s := models.Sprint{
		ID:        models.NewID(),
		ProjectID: projectID,
		Name:      in.Name,
		Goal:      in.Goal,
		Status:    models.SprintPlanning,
		StartDate: in.StartDate.UTC(),
		EndDate:   in.EndDate.UTC(),
		Capacity:  in.Capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.sprints.Insert(ctx, s.ID, s); err != nil {
		return models.Sprint{}, fmt.Errorf("insert sprint: %w", err)
	}
	return s, nil
}

// ReplaceSprint overwrites the editable fields of a sprint. A status change
// goes through the same rules as the start and complete actions.
func (r *Repository) ReplaceSprint(ctx context.Context, id primitive.ObjectID, in SprintInput) (models.Sprint, error) {
	s, err := r.GetSprint(ctx, id)
	if err != nil {
		return models.Sprint{}, err
	}
	if err := validateSprint(in).err(); err != nil {
		return models.Sprint{}, err
	}
	if mustID(in.ProjectID) != s.ProjectID {
		return models.Sprint{}, &ValidationError{
			Message: "Validation failed",
			Details: map[string]string{"projectId": "cannot move a sprint to another project"},
		}
	}
	return r.saveSprint(ctx, s, in)
}

// PatchSprint updates only the fields present in p.
func (r *Repository) PatchSprint(ctx context.Context, id primitive.ObjectID, p SprintPatch) (models.Sprint, error) {
	s, err := r.GetSprint(ctx, id)
	if err != nil {
		return models.Sprint{}, err
	}
	start, end := s.StartDate, s.EndDate
	in := SprintInput{
		ProjectID: s.ProjectID.Hex(),
		Name:      s.Name,
		Goal:      s.Goal,
		Status:    s.Status,
		StartDate: &start,
		EndDate:   &end,
		Capacity:  s.Capacity,
	}
	p.Name.applyTo(&in.Name)
	p.Goal.applyTo(&in.Goal)
	p.Status.applyTo(&in.Status)
	p.StartDate.applyTo(&in.StartDate)
	p.EndDate.applyTo(&in.EndDate)
	p.Capacity.applyTo(&in.Capacity)
	if err := validateSprint(in).err(); err != nil {
		return models.Sprint{}, err
	}
	return r.saveSprint(ctx, s, in)
}

func (r *Repository) saveSprint(ctx context.Context, s models.Sprint, in SprintInput) (models.Sprint, error) {
	status := in.Status
	if status == "" {
		status = s.Status
	}
	if !models.CanTransitionSprint(s.Status, status) {
		return models.Sprint{}, transitionError(s.Status, status)
	}

	s.Name = in.Name
	s.Goal = in.Goal
	s.StartDate = in.StartDate.UTC()
	s.EndDate = in.EndDate.UTC()
	s.Capacity = in.Capacity

	switch {
	case status == s.Status:
		s.UpdatedAt = r.now()
		if err := r.sprints.Replace(ctx, s.ID, s); err != nil {
			return models.Sprint{}, fmt.Errorf("update sprint: %w", err)
		}
		return s, nil
	case status == models.SprintActive:
		return r.start(ctx, s)
	case status == models.SprintCompleted:
		res, err := r.complete(ctx, s, true)
		return res.Sprint, err
	default:
		return r.archive(ctx, s)
	}
}

// DeleteSprint archives a sprint; sprints are never removed.
func (r *Repository) DeleteSprint(ctx context.Context, id primitive.ObjectID) (models.Sprint, error) {
	s, err := r.GetSprint(ctx, id)
	if err != nil {
		return models.Sprint{}, err
	}
	if s.Status == models.SprintArchived {
		return s, nil
	}
	return r.archive(ctx, s)
}

func (r *Repository) archive(ctx context.Context, s models.Sprint) (models.Sprint, error) {
	s.Status = models.SprintArchived
	s.UpdatedAt = r.now()
	if err := r.sprints.Replace(ctx, s.ID, s); err != nil {
		return models.Sprint{}, fmt.Errorf("archive sprint: %w", err)
	}
	return s, nil
}

// SprintTasks returns every task scheduled in the sprint in board order.
func (r *Repository) SprintTasks(ctx context.Context, id primitive.ObjectID) ([]models.Task, error) {
	if _, err := r.GetSprint(ctx, id); err != nil {
		return nil, err
	}
	return r.sprintTasks(ctx, id)
}

func (r *Repository) sprintTasks(ctx context.Context, id primitive.ObjectID) ([]models.Task, error) {
	q := storage.Where(storage.Eq("sprintId", id)).SortBy("position", false)
	tasks, err := findAll[models.Task](ctx, r.tasks, q)
	if err != nil {
		return nil, fmt.Errorf("list sprint tasks: %w", err)
	}
	return tasks, nil
}

// StartSprint activates a planned sprint and freezes its commitment as the
// story points currently scheduled in it.
func (r *Repository) StartSprint(ctx context.Context, id primitive.ObjectID) (models.Sprint, error) {
	s, err := r.GetSprint(ctx, id)
	if err != nil {
		return models.Sprint{}, err
	}
	if s.Status != models.SprintPlanning {
		return models.Sprint{}, transitionError(s.Status, models.SprintActive)
	}
	return r.start(ctx, s)
}

func (r *Repository) start(ctx context.Context, s models.Sprint) (models.Sprint, error) {
	tasks, err := r.sprintTasks(ctx, s.ID)
	if err != nil {
		return models.Sprint{}, err
	}
	committed := 0
	for _, t := range tasks {
		committed += t.Points()
	}

	now := r.now()
	s.Status = models.SprintActive
	s.CommittedPoints = committed
	s.StartedAt = timePtr(now)
	s.UpdatedAt = now
	if err := r.sprints.Replace(ctx, s.ID, s); err != nil {
		return models.Sprint{}, fmt.Errorf("start sprint: %w", err)
	}
	r.logger.Info("sprint started",
		"sprint", s.ID.Hex(),
		"committed_points", committed,
		"tasks", len(tasks))
	return s, nil
}

// CompleteSprint closes an active sprint, recording the delivered points.
// With moveIncomplete, unfinished tasks go back to the backlog.
func (r *Repository) CompleteSprint(ctx context.Context, id primitive.ObjectID, moveIncomplete bool) (CompleteResult, error) {
	s, err := r.GetSprint(ctx, id)
	if err != nil {
		return CompleteResult{}, err
	}
	if s.Status != models.SprintActive {
		return CompleteResult{}, transitionError(s.Status, models.SprintCompleted)
	}
	return r.complete(ctx, s, moveIncomplete)
}

func (r *Repository) complete(ctx context.Context, s models.Sprint, moveIncomplete bool) (CompleteResult, error) {
	tasks, err := r.sprintTasks(ctx, s.ID)
	if err != nil {
		return CompleteResult{}, err
	}
	completed := 0
	var unfinished []primitive.ObjectID
	for _, t := range tasks {
		if t.IsDone() {
			completed += t.Points()
			continue
		}
		unfinished = append(unfinished, t.ID)
	}

	now := r.now()
	var moved int64
	if moveIncomplete && len(unfinished) > 0 {
		q := storage.Where(storage.In("_id", idValues(unfinished)...))
		if _, err := r.tasks.Set(ctx, q, "updatedAt", now); err != nil {
			return CompleteResult{}, fmt.Errorf("touch unfinished tasks: %w", err)
		}
		if _, err := r.tasks.Set(ctx, q, "addedToSprintAt", nil); err != nil {
			return CompleteResult{}, fmt.Errorf("reset unfinished tasks: %w", err)
		}
		moved, err = r.tasks.Set(ctx, q, "sprintId", nil)
		if err != nil {
			return CompleteResult{}, fmt.Errorf("move unfinished tasks: %w", err)
		}
	}

	s.Status = models.SprintCompleted
	s.CompletedPoints = completed
	s.CompletedAt = timePtr(now)
	s.UpdatedAt = now
	if err := r.sprints.Replace(ctx, s.ID, s); err != nil {
		return CompleteResult{}, fmt.Errorf("complete sprint: %w", err)
	}
	r.logger.Info("sprint completed",
		"sprint", s.ID.Hex(),
		"completed_points", completed,
		"moved_tasks", moved)
	return CompleteResult{Sprint: s, MovedTasks: moved}, nil
}
