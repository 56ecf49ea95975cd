package repository

import (
	"context"
	"fmt"

	"github.com/Manumac86/collybrix-admin-sub001/internal/metrics"
	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

// DefaultVelocityLimit is how many completed sprints velocity looks back.
const DefaultVelocityLimit = 5

// Summary builds the dashboard of a project, narrowed to one sprint when
// sprintID is not empty.
func (r *Repository) Summary(ctx context.Context, projectID, sprintID string) (metrics.Summary, error) {
	pid, err := models.ParseID(projectID)
	if err != nil {
		return metrics.Summary{}, invalidID("projectId")
	}
	if _, err := r.GetProject(ctx, pid); err != nil {
		return metrics.Summary{}, err
	}

	q := storage.Where(storage.Eq("projectId", pid))
	var sprint *models.Sprint
	if sprintID != "" {
		sid, err := models.ParseID(sprintID)
		if err != nil {
			return metrics.Summary{}, invalidID("sprintId")
		}
		s, err := r.GetSprint(ctx, sid)
		if err != nil {
			return metrics.Summary{}, err
		}
		if s.ProjectID != pid {
			return metrics.Summary{}, &ValidationError{
				Message: "Sprint does not belong to the project",
				Details: map[string]string{"sprintId": "belongs to another project"},
			}
		}
		sprint = &s
		q = q.And(storage.Eq("sprintId", sid))
	}

	tasks, err := findAll[models.Task](ctx, r.tasks, q)
	if err != nil {
		return metrics.Summary{}, fmt.Errorf("load tasks: %w", err)
	}
	tags, err := r.projectTags(ctx, pid)
	if err != nil {
		return metrics.Summary{}, fmt.Errorf("load tags: %w", err)
	}
	return metrics.Summarize(tasks, tags, sprint, r.now()), nil
}

// Burndown builds the burndown chart of a sprint.
func (r *Repository) Burndown(ctx context.Context, sprintID string) (metrics.BurndownSeries, error) {
	sid, err := models.ParseID(sprintID)
	if err != nil {
		return metrics.BurndownSeries{}, invalidID("sprintId")
	}
	s, err := r.GetSprint(ctx, sid)
	if err != nil {
		return metrics.BurndownSeries{}, err
	}
	tasks, err := r.sprintTasks(ctx, sid)
	if err != nil {
		return metrics.BurndownSeries{}, err
	}
	return metrics.Burndown(s, tasks, r.now()), nil
}

// Velocity reports delivered points over the last limit completed sprints
// of a project.
func (r *Repository) Velocity(ctx context.Context, projectID string, limit int) (metrics.VelocityReport, error) {
	pid, err := models.ParseID(projectID)
	if err != nil {
		return metrics.VelocityReport{}, invalidID("projectId")
	}
	if limit <= 0 {
		limit = DefaultVelocityLimit
	}

	q := storage.Where(
		storage.Eq("projectId", pid),
		storage.Eq("status", models.SprintCompleted),
	).SortBy("endDate", true).Page(0, int64(limit))
	sprints, err := findAll[models.Sprint](ctx, r.sprints, q)
	if err != nil {
		return metrics.VelocityReport{}, fmt.Errorf("load sprints: %w", err)
	}
	if len(sprints) == 0 {
		return metrics.Velocity(nil, nil, limit), nil
	}

	ids := make([]any, len(sprints))
	for i, s := range sprints {
		ids[i] = s.ID
	}
	tasks, err := findAll[models.Task](ctx, r.tasks, storage.Where(
		storage.In("sprintId", ids...),
		storage.Eq("status", models.StatusDone),
	))
	if err != nil {
		return metrics.VelocityReport{}, fmt.Errorf("load tasks: %w", err)
	}
	return metrics.Velocity(sprints, tasks, limit), nil
}
