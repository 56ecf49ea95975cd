package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/metrics"
	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

var projectSortFields = map[string]struct{}{
	"createdAt": {},
	"updatedAt": {},
	"name":      {},
	"company":   {},
	"price":     {},
	"startDate": {},
}

// ProjectFilter narrows a project listing.
type ProjectFilter struct {
	Statuses []string
	Stages   []string
	Company  string
	Search   string
	Paging   Paging
	Sort     Sort
}

// ProjectInput is the body of a project create or replace. No field is
// required; omitted enums take their defaults.
type ProjectInput struct {
	Name       string             `json:"name" validate:"max=200"`
	Company    string             `json:"company" validate:"max=200"`
	Status     string             `json:"status"`
	Stage      string             `json:"stage"`
	Price      float64            `json:"price" validate:"min=0"`
	MonthlyFee float64            `json:"monthlyFee" validate:"min=0"`
	Currency   string             `json:"currency" validate:"omitempty,len=3"`
	StartDate  *time.Time         `json:"startDate"`
	EndDate    *time.Time         `json:"endDate"`
	Contacts   []models.Contact   `json:"contacts"`
	Milestones []models.Milestone `json:"milestones"`
	Notes      string             `json:"notes"`
}

// ListProjects returns one page of projects, newest first.
func (r *Repository) ListProjects(ctx context.Context, filter ProjectFilter) (ListResult[models.Project], error) {
	q := storage.Query{}
	details := fieldErrors{}
	for _, s := range filter.Statuses {
		details.oneOf("status", s, models.ValidProjectStatuses)
	}
	for _, s := range filter.Stages {
		if models.StageIndex(s) < 0 {
			details.add("stage", "must be one of "+strings.Join(models.PipelineStages, ", "))
		}
	}
	if err := details.err(); err != nil {
		return ListResult[models.Project]{}, err
	}
	if len(filter.Statuses) > 0 {
		q = q.And(storage.In("status", stringValues(filter.Statuses)...))
	}
	if len(filter.Stages) > 0 {
		q = q.And(storage.In("stage", stringValues(filter.Stages)...))
	}
	if filter.Company != "" {
		q = q.And(storage.Eq("company", filter.Company))
	}
	if filter.Search != "" {
		q = q.And(storage.Search(filter.Search, "name", "company"))
	}
	q, err := filter.Sort.apply(q, projectSortFields, "createdAt", true)
	if err != nil {
		return ListResult[models.Project]{}, err
	}
	res, err := findPage[models.Project](ctx, r.projects, q, filter.Paging)
	if err != nil {
		return res, fmt.Errorf("list projects: %w", err)
	}
	return res, nil
}

// GetProject loads a single project.
func (r *Repository) GetProject(ctx context.Context, id primitive.ObjectID) (models.Project, error) {
	var p models.Project
	err := r.get(ctx, r.projects, "Project", id, &p)
	return p, err
}

// CountProjects returns how many projects are stored.
func (r *Repository) CountProjects(ctx context.Context) (int64, error) {
	return r.projects.Count(ctx, storage.Query{})
}

func validateProject(in ProjectInput) error {
	details := check(in)
	details.oneOf("status", in.Status, models.ValidProjectStatuses)
	if in.Stage != "" && models.StageIndex(in.Stage) < 0 {
		details.add("stage", "must be one of "+strings.Join(models.PipelineStages, ", "))
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		details.add("endDate", "must not be before startDate")
	}
	return details.err()
}

func applyProject(p *models.Project, in ProjectInput, now time.Time) {
	p.Name = strings.TrimSpace(in.Name)
	p.Company = strings.TrimSpace(in.Company)
	p.Status = in.Status
	p.Stage = in.Stage
	p.Price = in.Price
	p.MonthlyFee = in.MonthlyFee
	p.Currency = strings.ToUpper(in.Currency)
	p.StartDate = in.StartDate
	p.EndDate = in.EndDate
	p.Contacts = in.Contacts
	p.Milestones = in.Milestones
	p.Notes = in.Notes
	p.Normalize()
	p.UpdatedAt = now
}

// CreateProject stores a new project.
func (r *Repository) CreateProject(ctx context.Context, in ProjectInput) (models.Project, error) {
	if err := validateProject(in); err != nil {
		return models.Project{}, err
	}
	now := r.now()
	p := models.Project{ID: models.NewID(), CreatedAt: now}
	applyProject(&p, in, now)
	if err := r.projects.Insert(ctx, p.ID, p); err != nil {
		return models.Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

// ReplaceProject overwrites a project.
func (r *Repository) ReplaceProject(ctx context.Context, id primitive.ObjectID, in ProjectInput) (models.Project, error) {
	p, err := r.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if err := validateProject(in); err != nil {
		return models.Project{}, err
	}
	applyProject(&p, in, r.now())
	if err := r.projects.Replace(ctx, p.ID, p); err != nil {
		return models.Project{}, fmt.Errorf("update project: %w", err)
	}
	return p, nil
}

// DeleteProject removes a project together with its board: tasks, sprints,
// tags and retrospectives.
func (r *Repository) DeleteProject(ctx context.Context, id primitive.ObjectID) error {
	if err := r.remove(ctx, r.projects, "Project", id); err != nil {
		return err
	}
	owned := storage.Where(storage.Eq("projectId", id))

	sprints, err := findAll[models.Sprint](ctx, r.sprints, owned)
	if err != nil {
		return fmt.Errorf("list project sprints: %w", err)
	}
	if len(sprints) > 0 {
		ids := make([]primitive.ObjectID, len(sprints))
		for i, s := range sprints {
			ids[i] = s.ID
		}
		inSprints := storage.Where(storage.In("sprintId", idValues(ids)...))
		for _, c := range []storage.Collection{r.retroCards, r.retroActions, r.retroSessions} {
			if _, err := c.DeleteMany(ctx, inSprints); err != nil {
				return fmt.Errorf("delete retrospectives: %w", err)
			}
		}
	}

	counts := make(map[string]int64, 3)
	for name, c := range map[string]storage.Collection{
		"tasks":   r.tasks,
		"sprints": r.sprints,
		"tags":    r.tags,
	} {
		n, err := c.DeleteMany(ctx, owned)
		if err != nil {
			return fmt.Errorf("delete project %s: %w", name, err)
		}
		counts[name] = n
	}
	r.logger.Info("project deleted",
		"project", id.Hex(),
		"tasks", counts["tasks"],
		"sprints", counts["sprints"],
		"tags", counts["tags"])
	return nil
}

// Pipeline summarizes projects per pipeline stage.
func (r *Repository) Pipeline(ctx context.Context) ([]metrics.StageSummary, error) {
	projects, err := findAll[models.Project](ctx, r.projects, storage.Query{})
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	return metrics.Pipeline(projects), nil
}

// Revenue aggregates project pricing.
func (r *Repository) Revenue(ctx context.Context) (metrics.RevenueReport, error) {
	projects, err := findAll[models.Project](ctx, r.projects, storage.Query{})
	if err != nil {
		return metrics.RevenueReport{}, fmt.Errorf("load projects: %w", err)
	}
	return metrics.Revenue(projects), nil
}
