// Package seed loads a small demo data set through the repository so every
// document passes the same validation as API writes.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
	"github.com/Manumac86/collybrix-admin-sub001/internal/repository"
)

// ErrAlreadySeeded is returned when projects exist already.
var ErrAlreadySeeded = errors.New("Database already seeded")

// Result counts what a seed run created.
type Result struct {
	Projects    int `json:"projects"`
	Estimations int `json:"estimations"`
	Users       int `json:"users"`
	Tags        int `json:"tags"`
	Sprints     int `json:"sprints"`
	Tasks       int `json:"tasks"`
}

// Load fills an empty database with demo data. now anchors the sprint dates.
func Load(ctx context.Context, repo *repository.Repository, logger *slog.Logger, now time.Time) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	n, err := repo.CountProjects(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("count projects: %w", err)
	}
	if n > 0 {
		return Result{}, ErrAlreadySeeded
	}

	l := &loader{repo: repo, now: now.UTC().Truncate(24 * time.Hour)}
	steps := []func(context.Context) error{
		l.projects,
		l.estimations,
		l.users,
		l.board,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return l.res, err
		}
	}
	logger.Info("demo data loaded",
		"projects", l.res.Projects,
		"estimations", l.res.Estimations,
		"users", l.res.Users,
		"sprints", l.res.Sprints,
		"tasks", l.res.Tasks)
	return l.res, nil
}

type loader struct {
	repo *repository.Repository
	now  time.Time
	res  Result

	portal      models.Project
	seededUsers []models.User
}

func (l *loader) day(offset int) *time.Time {
	t := l.now.AddDate(0, 0, offset)
	return &t
}

func (l *loader) projects(ctx context.Context) error {
	inputs := []repository.ProjectInput{
		{
			Name:       "Client Portal",
			Company:    "Acme Corp",
			Status:     models.ProjectActive,
			Stage:      models.StageInProgress,
			Price:      48000,
			MonthlyFee: 1200,
			StartDate:  l.day(-60),
			EndDate:    l.day(90),
			Contacts: []models.Contact{
				{Name: "Laura Pérez", Email: "laura@acme.example", Role: "CTO"},
			},
			Milestones: []models.Milestone{
				{Date: *l.day(30), Type: "delivery", Name: "Beta", Deliverable: "Portal beta"},
				{Date: *l.day(-30), Type: "kickoff", Name: "Kickoff"},
			},
		},
		{
			Name:    "Mobile App",
			Company: "Globex",
			Status:  models.ProjectActive,
			Stage:   models.StageProposal,
			Price:   65000,
		},
		{
			Name:    "Data Warehouse",
			Company: "Initech",
			Status:  models.ProjectCompleted,
			Stage:   models.StageFinished,
			Price:   30000,
		},
		{
			Name:    "Brand Refresh",
			Company: "Umbrella",
			Status:  models.ProjectOnHold,
			Stage:   models.StageQualification,
		},
	}
	for i, in := range inputs {
		p, err := l.repo.CreateProject(ctx, in)
		if err != nil {
			return fmt.Errorf("seed project %q: %w", in.Name, err)
		}
		if i == 0 {
			l.portal = p
		}
		l.res.Projects++
	}
	return nil
}

func (l *loader) estimations(ctx context.Context) error {
	inputs := []repository.EstimationInput{
		{
			ProjectName: "Mobile App",
			ClientName:  "Globex",
			TeamMembers: []models.TeamMember{
				{Name: "Senior developer", Role: "developer", DailyRate: 450, DaysAllocated: 60},
				{Name: "Designer", Role: "designer", DailyRate: 380, DaysAllocated: 20},
			},
			Resources: []models.Resource{
				{Name: "App store accounts", Type: "license", Cost: 125, BillingFrequency: models.BillingYearly},
				{Name: "Backend hosting", Type: "infrastructure", Cost: 90, BillingFrequency: models.BillingMonthly},
			},
			DurationMonths:    4,
			RevenuePercentage: 20,
			PaymentPlan: &models.PaymentPlan{Installments: []models.Installment{
				{Label: "Kickoff", Percentage: 40},
				{Label: "Beta", Percentage: 30},
				{Label: "Launch", Percentage: 30},
			}},
			Status: models.EstimationSent,
		},
		{
			ProjectName: "Brand Refresh",
			ClientName:  "Umbrella",
			TeamMembers: []models.TeamMember{
				{Name: "Designer", Role: "designer", DailyRate: 380, DaysAllocated: 15},
			},
			RevenuePercentage: 15,
		},
	}
	for _, in := range inputs {
		if _, err := l.repo.CreateEstimation(ctx, in); err != nil {
			return fmt.Errorf("seed estimation %q: %w", in.ProjectName, err)
		}
		l.res.Estimations++
	}
	return nil
}

func (l *loader) users(ctx context.Context) error {
	inputs := []repository.UserInput{
		{Name: "Ana García", Email: "ana@collybrix.example", Role: models.RoleManager},
		{Name: "Marco Rossi", Email: "marco@collybrix.example", Role: models.RoleDeveloper},
		{Name: "Sofía López", Email: "sofia@collybrix.example", Role: models.RoleDesigner},
	}
	for _, in := range inputs {
		u, err := l.repo.CreateUser(ctx, in)
		if err != nil {
			return fmt.Errorf("seed user %q: %w", in.Email, err)
		}
		l.seededUsers = append(l.seededUsers, u)
		l.res.Users++
	}
	return nil
}

func (l *loader) board(ctx context.Context) error {
	project := l.portal.ID.Hex()

	tagIDs := map[string]string{}
	for _, t := range []repository.TagInput{
		{ProjectID: project, Name: "Backend", Color: "#2563eb"},
		{ProjectID: project, Name: "Frontend", Color: "#16a34a"},
		{ProjectID: project, Name: "Urgent", Color: "#dc2626"},
	} {
		tag, err := l.repo.CreateTag(ctx, t)
		if err != nil {
			return fmt.Errorf("seed tag %q: %w", t.Name, err)
		}
		tagIDs[t.Name] = tag.ID.Hex()
		l.res.Tags++
	}

	sprint := func(name, goal string, start int) (models.Sprint, error) {
		s, err := l.repo.CreateSprint(ctx, repository.SprintInput{
			ProjectID: project,
			Name:      name,
			Goal:      goal,
			StartDate: l.day(start),
			EndDate:   l.day(start + 14),
			Capacity:  20,
		})
		if err == nil {
			l.res.Sprints++
		}
		return s, err
	}
	done, err := sprint("Sprint 1", "Authentication and layout", -28)
	if err != nil {
		return fmt.Errorf("seed sprint: %w", err)
	}
	active, err := sprint("Sprint 2", "Customer dashboard", -10)
	if err != nil {
		return fmt.Errorf("seed sprint: %w", err)
	}
	if _, err := sprint("Sprint 3", "Reporting", 4); err != nil {
		return fmt.Errorf("seed sprint: %w", err)
	}

	points := func(v int) *int { return &v }
	ref := func(id string) *string { return &id }
	dev, designer := l.seededUsers[1].ID.Hex(), l.seededUsers[2].ID.Hex()
	reporter := l.seededUsers[0].ID.Hex()

	type plan struct {
		in     repository.TaskInput
		sprint models.Sprint
		status string
	}
	plans := []plan{
		{repository.TaskInput{Title: "Login with SSO", Type: models.TypeStory, StoryPoints: points(5), AssigneeIDs: []string{dev}, TagIDs: []string{tagIDs["Backend"]}}, done, models.StatusDone},
		{repository.TaskInput{Title: "Base layout", Type: models.TypeStory, StoryPoints: points(3), AssigneeIDs: []string{designer}, TagIDs: []string{tagIDs["Frontend"]}}, done, models.StatusDone},
		{repository.TaskInput{Title: "Password reset emails", Type: models.TypeTask, StoryPoints: points(2), AssigneeIDs: []string{dev}, TagIDs: []string{tagIDs["Backend"]}}, done, models.StatusTodo},
		{repository.TaskInput{Title: "Dashboard widgets", Type: models.TypeStory, StoryPoints: points(8), AssigneeIDs: []string{designer, dev}, TagIDs: []string{tagIDs["Frontend"]}}, active, models.StatusInProgress},
		{repository.TaskInput{Title: "Invoices API", Type: models.TypeStory, StoryPoints: points(5), AssigneeIDs: []string{dev}, TagIDs: []string{tagIDs["Backend"]}}, active, models.StatusDone},
		{repository.TaskInput{Title: "Fix session timeout", Type: models.TypeBug, Priority: models.PriorityCritical, StoryPoints: points(1), AssigneeIDs: []string{dev}, TagIDs: []string{tagIDs["Backend"], tagIDs["Urgent"]}}, active, models.StatusInReview},
		{repository.TaskInput{Title: "Export to CSV", Type: models.TypeTask, StoryPoints: points(3)}, models.Sprint{}, models.StatusBacklog},
		{repository.TaskInput{Title: "Evaluate charting libraries", Type: models.TypeSpike}, models.Sprint{}, models.StatusTodo},
	}

	created := make([]models.Task, len(plans))
	for i, p := range plans {
		in := p.in
		in.ProjectID = project
		in.ReporterID = ref(reporter)
		if p.sprint.ID.IsZero() {
			in.Status = p.status
		} else {
			in.SprintID = ref(p.sprint.ID.Hex())
			in.Status = models.StatusTodo
		}
		task, err := l.repo.CreateTask(ctx, in)
		if err != nil {
			return fmt.Errorf("seed task %q: %w", in.Title, err)
		}
		created[i] = task
		l.res.Tasks++
	}

	// Work happens once a sprint is running, so statuses move after the start.
	advance := func(sprint models.Sprint) error {
		if _, err := l.repo.StartSprint(ctx, sprint.ID); err != nil {
			return fmt.Errorf("start seed sprint: %w", err)
		}
		for i, p := range plans {
			if p.sprint.ID != sprint.ID || p.status == models.StatusTodo {
				continue
			}
			patch := repository.TaskPatch{Status: repository.Some(p.status)}
			if _, err := l.repo.PatchTask(ctx, created[i].ID, patch); err != nil {
				return fmt.Errorf("advance seed task: %w", err)
			}
		}
		return nil
	}

	if err := advance(done); err != nil {
		return err
	}
	if _, err := l.repo.CompleteSprint(ctx, done.ID, true); err != nil {
		return fmt.Errorf("complete seed sprint: %w", err)
	}
	return advance(active)
}
