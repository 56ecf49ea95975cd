package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
	"github.com/Manumac86/collybrix-admin-sub001/internal/repository"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage/sqlite"
)

// tickClock advances one second on every reading.
type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	repo  *repository.Repository
	store *sqlite.Store
	ctx   context.Context
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "repo.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	clock := &tickClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	repo := repository.New(store, logger, repository.WithClock(clock.Now))
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return fixture{repo: repo, store: store, ctx: context.Background()}
}

func (f fixture) project(t *testing.T) models.Project {
	t.Helper()
	p, err := f.repo.CreateProject(f.ctx, repository.ProjectInput{Name: "Portal", Company: "Acme"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func (f fixture) task(t *testing.T, in repository.TaskInput) models.Task {
	t.Helper()
	task, err := f.repo.CreateTask(f.ctx, in)
	if err != nil {
		t.Fatalf("create task %q: %v", in.Title, err)
	}
	return task
}

func (f fixture) sprint(t *testing.T, projectID primitive.ObjectID, name string) models.Sprint {
	t.Helper()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)
	s, err := f.repo.CreateSprint(f.ctx, repository.SprintInput{
		ProjectID: projectID.Hex(),
		Name:      name,
		StartDate: &start,
		EndDate:   &end,
		Capacity:  20,
	})
	if err != nil {
		t.Fatalf("create sprint: %v", err)
	}
	return s
}

func points(v int) *int { return &v }

func ref(id primitive.ObjectID) *string {
	s := id.Hex()
	return &s
}

func validationDetails(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *repository.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	return verr.Details
}

func TestCreateTaskDefaults(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)

	first := f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "First"})
	second := f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "Second"})

	if first.Status != models.StatusBacklog || first.Type != models.TypeTask || first.Priority != models.PriorityMedium {
		t.Fatalf("defaults = %s/%s/%s", first.Status, first.Type, first.Priority)
	}
	if first.Position != 1 || second.Position != 2 {
		t.Fatalf("positions = %d, %d", first.Position, second.Position)
	}
	if first.TagIDs == nil || first.AssigneeIDs == nil {
		t.Fatal("reference sets should be empty, not nil")
	}

	got, err := f.repo.GetTask(f.ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "First" || !got.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)

	_, err := f.repo.CreateTask(f.ctx, repository.TaskInput{
		ProjectID:   p.ID.Hex(),
		Status:      "finished",
		StoryPoints: points(101),
		TagIDs:      []string{"nope"},
	})
	details := validationDetails(t, err)
	for _, key := range []string{"title", "storyPoints", "tagIds[0]"} {
		if _, ok := details[key]; !ok {
			t.Errorf("missing %q in %v", key, details)
		}
	}

	_, err = f.repo.CreateTask(f.ctx, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "x", Status: "finished"})
	if details := validationDetails(t, err); details["status"] == "" {
		t.Fatalf("status not rejected: %v", details)
	}

	_, err = f.repo.CreateTask(f.ctx, repository.TaskInput{ProjectID: primitive.NewObjectID().Hex(), Title: "x"})
	if details := validationDetails(t, err); details["projectId"] != "does not exist" {
		t.Fatalf("unknown project: %v", details)
	}
}

func TestPatchTaskStatus(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	task := f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "Work", StoryPoints: points(3)})

	var patch repository.TaskPatch
	if err := json.Unmarshal([]byte(`{"status":"in_progress"}`), &patch); err != nil {
		t.Fatalf("decode patch: %v", err)
	}
	updated, err := f.repo.PatchTask(f.ctx, task.ID, patch)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}

	got, err := f.repo.GetTask(f.ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusInProgress {
		t.Fatalf("status = %s", got.Status)
	}
	if !got.UpdatedAt.After(task.UpdatedAt) {
		t.Fatalf("updatedAt did not advance: %v -> %v", task.UpdatedAt, got.UpdatedAt)
	}
	if got.StartedAt == nil || got.Title != "Work" || got.Points() != 3 {
		t.Fatalf("patched task = %+v", got)
	}
	if !updated.UpdatedAt.Equal(got.UpdatedAt) {
		t.Fatal("returned task differs from stored task")
	}

	done, err := f.repo.PatchTask(f.ctx, task.ID, repository.TaskPatch{Status: repository.Some(models.StatusDone)})
	if err != nil {
		t.Fatalf("patch done: %v", err)
	}
	if done.CompletedAt == nil {
		t.Fatal("completedAt not stamped")
	}
	reopened, err := f.repo.PatchTask(f.ctx, task.ID, repository.TaskPatch{Status: repository.Some(models.StatusTodo)})
	if err != nil {
		t.Fatalf("patch todo: %v", err)
	}
	if reopened.CompletedAt != nil || reopened.StartedAt == nil {
		t.Fatalf("timestamps after reopen = %+v", reopened)
	}
}

func TestPatchTaskClearsSprint(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	s := f.sprint(t, p.ID, "S1")
	task := f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "Work", SprintID: ref(s.ID)})
	if task.AddedToSprintAt == nil {
		t.Fatal("addedToSprintAt not stamped")
	}

	var patch repository.TaskPatch
	if err := json.Unmarshal([]byte(`{"sprintId":null}`), &patch); err != nil {
		t.Fatalf("decode patch: %v", err)
	}
	got, err := f.repo.PatchTask(f.ctx, task.ID, patch)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if got.SprintID != nil || got.AddedToSprintAt != nil {
		t.Fatalf("sprint not cleared: %+v", got)
	}
}

func TestListTasksFilters(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	other := f.project(t)
	s := f.sprint(t, p.ID, "S1")
	tag, err := f.repo.CreateTag(f.ctx, repository.TagInput{ProjectID: p.ID.Hex(), Name: "api"})
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}

	f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "Login form", Status: models.StatusTodo, SprintID: ref(s.ID)})
	f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "Signup", Description: "needs LOGIN too", Status: models.StatusDone, TagIDs: []string{tag.ID.Hex()}})
	f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "Billing", Type: models.TypeBug})
	f.task(t, repository.TaskInput{ProjectID: other.ID.Hex(), Title: "Elsewhere login"})

	cases := []struct {
		name   string
		filter repository.TaskFilter
		want   int64
	}{
		{"project", repository.TaskFilter{ProjectIDs: []string{p.ID.Hex()}}, 3},
		{"multi status", repository.TaskFilter{Statuses: []string{models.StatusTodo, models.StatusDone}}, 2},
		{"unscheduled", repository.TaskFilter{ProjectIDs: []string{p.ID.Hex()}, SprintIDs: []string{repository.FilterNone}}, 2},
		{"sprint", repository.TaskFilter{SprintIDs: []string{s.ID.Hex()}}, 1},
		{"tag", repository.TaskFilter{Tags: []string{tag.ID.Hex()}}, 1},
		{"type", repository.TaskFilter{Types: []string{models.TypeBug}}, 1},
		{"search title or description", repository.TaskFilter{ProjectIDs: []string{p.ID.Hex()}, Search: "login"}, 2},
		{"search everywhere", repository.TaskFilter{Search: "LOGIN"}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.repo.ListTasks(f.ctx, tc.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if res.Total != tc.want || int64(len(res.Items)) != tc.want {
				t.Fatalf("total=%d items=%d, want %d", res.Total, len(res.Items), tc.want)
			}
		})
	}

	page, err := f.repo.ListTasks(f.ctx, repository.TaskFilter{
		Paging: repository.Paging{Page: 2, PageSize: 3},
		Sort:   repository.Sort{By: "title", Order: "asc"},
	})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if page.Total != 4 || len(page.Items) != 1 || page.TotalPages() != 2 {
		t.Fatalf("page = total %d items %d pages %d", page.Total, len(page.Items), page.TotalPages())
	}
	if page.Items[0].Title != "Signup" {
		t.Fatalf("last by title = %q", page.Items[0].Title)
	}

	if _, err := f.repo.ListTasks(f.ctx, repository.TaskFilter{Statuses: []string{"bogus"}}); err == nil {
		t.Fatal("unknown status accepted")
	}
	if _, err := f.repo.ListTasks(f.ctx, repository.TaskFilter{ProjectIDs: []string{"xyz"}}); !errors.Is(err, repository.ErrInvalidID) {
		t.Fatalf("err = %v, want ErrInvalidID", err)
	}
	if _, err := f.repo.ListTasks(f.ctx, repository.TaskFilter{Sort: repository.Sort{By: "priority"}}); err == nil {
		t.Fatal("unsupported sort accepted")
	}
}

func TestSearchTasksFoldsCase(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	review := f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "ÉQUIPE review"})
	street := f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "Address form", Description: "Validate Straße names"})
	f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "Equipment order"})

	cases := []struct {
		search string
		want   primitive.ObjectID
	}{
		{"équipe", review.ID},
		{"ÉQUIPE", review.ID},
		{"strasse", street.ID},
		{"STRAßE", street.ID},
	}
	for _, tc := range cases {
		t.Run(tc.search, func(t *testing.T) {
			res, err := f.repo.ListTasks(f.ctx, repository.TaskFilter{Search: tc.search})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if res.Total != 1 || res.Items[0].ID != tc.want {
				t.Fatalf("total=%d items=%+v", res.Total, res.Items)
			}
		})
	}
}

func TestListTasksPageBeyondRange(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "Only"})

	res, err := f.repo.ListTasks(f.ctx, repository.TaskFilter{Paging: repository.Paging{Page: math.MaxInt64, PageSize: repository.MaxPageSize}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 1 || len(res.Items) != 0 || res.Page != repository.MaxPage {
		t.Fatalf("page = %d total = %d items = %d", res.Page, res.Total, len(res.Items))
	}
}

func TestDeleteTaskDetachesReferences(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	parent := f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "Epic", Type: models.TypeEpic})
	child := f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "Child", ParentID: ref(parent.ID)})
	dependant := f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "Later", DependencyIDs: []string{parent.ID.Hex()}})

	if err := f.repo.DeleteTask(f.ctx, parent.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.repo.GetTask(f.ctx, parent.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("deleted task still loads: %v", err)
	}
	gotChild, _ := f.repo.GetTask(f.ctx, child.ID)
	if gotChild.ParentID != nil {
		t.Fatal("subtask still points at deleted parent")
	}
	gotDep, _ := f.repo.GetTask(f.ctx, dependant.ID)
	if len(gotDep.DependencyIDs) != 0 {
		t.Fatalf("dependencies = %v", gotDep.DependencyIDs)
	}
	if err := f.repo.DeleteTask(f.ctx, parent.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete = %v", err)
	}
}

func TestTagsAreUniqueIgnoringCase(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	other := f.project(t)

	back, err := f.repo.CreateTag(f.ctx, repository.TagInput{ProjectID: p.ID.Hex(), Name: "Backend"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if back.NameKey != "backend" {
		t.Fatalf("name key = %q", back.NameKey)
	}
	if _, err := f.repo.CreateTag(f.ctx, repository.TagInput{ProjectID: p.ID.Hex(), Name: "backend"}); !errors.Is(err, repository.ErrDuplicateTag) {
		t.Fatalf("err = %v, want ErrDuplicateTag", err)
	}
	if _, err := f.repo.CreateTag(f.ctx, repository.TagInput{ProjectID: other.ID.Hex(), Name: "BACKEND"}); err != nil {
		t.Fatalf("same name in another project: %v", err)
	}

	front, err := f.repo.CreateTag(f.ctx, repository.TagInput{ProjectID: p.ID.Hex(), Name: "Frontend", Color: "#ff0000"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.repo.UpdateTag(f.ctx, front.ID, repository.TagUpdate{Name: " BackEnd "}); !errors.Is(err, repository.ErrDuplicateTag) {
		t.Fatalf("rename err = %v", err)
	}
	renamed, err := f.repo.UpdateTag(f.ctx, front.ID, repository.TagUpdate{Name: "frontend"})
	if err != nil {
		t.Fatalf("recase own name: %v", err)
	}
	if renamed.Color != "#ff0000" {
		t.Fatalf("color lost: %q", renamed.Color)
	}

	if _, err := f.repo.CreateTag(f.ctx, repository.TagInput{ProjectID: p.ID.Hex(), Name: "x", Color: "red"}); err == nil {
		t.Fatal("invalid color accepted")
	}
}

func TestConcurrentTagCreation(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)

	names := []string{"Design", "design", "DESIGN", "DeSiGn", " design ", "Design", "dEsign", "designE"}
	errs := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			_, errs[i] = f.repo.CreateTag(f.ctx, repository.TagInput{ProjectID: p.ID.Hex(), Name: name})
		}(i, name)
	}
	wg.Wait()

	created := 0
	for i, err := range errs {
		switch {
		case err == nil:
			created++
		case !errors.Is(err, repository.ErrDuplicateTag):
			t.Fatalf("create %q: %v", names[i], err)
		}
	}
	tags, err := f.repo.ListTags(f.ctx, p.ID.Hex())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if created != 2 || len(tags) != 2 {
		t.Fatalf("created %d, stored %d, want one per folded name", created, len(tags))
	}
}

func TestDeleteTagCascades(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	keep, _ := f.repo.CreateTag(f.ctx, repository.TagInput{ProjectID: p.ID.Hex(), Name: "keep"})
	drop, _ := f.repo.CreateTag(f.ctx, repository.TagInput{ProjectID: p.ID.Hex(), Name: "drop"})
	task := f.task(t, repository.TaskInput{
		ProjectID: p.ID.Hex(),
		Title:     "Tagged",
		TagIDs:    []string{keep.ID.Hex(), drop.ID.Hex()},
	})

	n, err := f.repo.DeleteTag(f.ctx, drop.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("updated tasks = %d", n)
	}
	got, _ := f.repo.GetTask(f.ctx, task.ID)
	if len(got.TagIDs) != 1 || got.TagIDs[0] != keep.ID {
		t.Fatalf("tags = %v", got.TagIDs)
	}
	if !got.UpdatedAt.After(task.UpdatedAt) {
		t.Fatal("cascade did not touch updatedAt")
	}
	if _, err := f.repo.GetTag(f.ctx, drop.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("tag still present: %v", err)
	}
}

func TestSprintLifecycle(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	s := f.sprint(t, p.ID, "S1")
	if s.Status != models.SprintPlanning {
		t.Fatalf("new sprint status = %s", s.Status)
	}

	a := f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "a", StoryPoints: points(5), SprintID: ref(s.ID)})
	b := f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "b", StoryPoints: points(3), SprintID: ref(s.ID)})
	f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "c", SprintID: ref(s.ID)})

	if _, err := f.repo.CompleteSprint(f.ctx, s.ID, true); !errors.Is(err, repository.ErrInvalidTransition) {
		t.Fatalf("complete planning sprint = %v", err)
	}

	started, err := f.repo.StartSprint(f.ctx, s.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != models.SprintActive || started.CommittedPoints != 8 || started.StartedAt == nil {
		t.Fatalf("started = %+v", started)
	}
	if _, err := f.repo.StartSprint(f.ctx, s.ID); !errors.Is(err, repository.ErrInvalidTransition) {
		t.Fatalf("second start = %v", err)
	}

	if _, err := f.repo.PatchTask(f.ctx, a.ID, repository.TaskPatch{Status: repository.Some(models.StatusDone)}); err != nil {
		t.Fatalf("finish task: %v", err)
	}
	res, err := f.repo.CompleteSprint(f.ctx, s.ID, true)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Sprint.CompletedPoints != 5 || res.MovedTasks != 2 || res.Sprint.CompletedAt == nil {
		t.Fatalf("complete result = %+v", res)
	}
	gotB, _ := f.repo.GetTask(f.ctx, b.ID)
	if gotB.SprintID != nil {
		t.Fatal("unfinished task stayed in the sprint")
	}
	gotA, _ := f.repo.GetTask(f.ctx, a.ID)
	if gotA.SprintID == nil || *gotA.SprintID != s.ID {
		t.Fatal("finished task left the sprint")
	}

	if _, err := f.repo.PatchSprint(f.ctx, s.ID, repository.SprintPatch{Status: repository.Some(models.SprintPlanning)}); !errors.Is(err, repository.ErrInvalidTransition) {
		t.Fatalf("completed -> planning = %v", err)
	}

	archived, err := f.repo.DeleteSprint(f.ctx, s.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if archived.Status != models.SprintArchived {
		t.Fatalf("status after delete = %s", archived.Status)
	}
	if _, err := f.repo.GetSprint(f.ctx, s.ID); err != nil {
		t.Fatalf("soft-deleted sprint should still load: %v", err)
	}
}

func TestCreateSprintValidation(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)
	_, err := f.repo.CreateSprint(f.ctx, repository.SprintInput{ProjectID: p.ID.Hex(), Name: "S", StartDate: &start, EndDate: &end})
	if details := validationDetails(t, err); details["endDate"] == "" {
		t.Fatalf("details = %v", details)
	}
	_, err = f.repo.CreateSprint(f.ctx, repository.SprintInput{ProjectID: p.ID.Hex()})
	details := validationDetails(t, err)
	for _, key := range []string{"name", "startDate", "endDate"} {
		if details[key] == "" {
			t.Errorf("missing %q in %v", key, details)
		}
	}
}

func TestUsers(t *testing.T) {
	f := newFixture(t)
	u, err := f.repo.CreateUser(f.ctx, repository.UserInput{Name: "Ana", Email: " Ana@Example.COM "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Email != "ana@example.com" || u.Role != models.RoleDeveloper || !u.Active {
		t.Fatalf("user = %+v", u)
	}
	if _, err := f.repo.CreateUser(f.ctx, repository.UserInput{Name: "Other", Email: "ANA@example.com"}); !errors.Is(err, repository.ErrDuplicateUser) {
		t.Fatalf("duplicate = %v", err)
	}

	ext := "user_2abc"
	linked, created, err := f.repo.ReplaceUser(f.ctx, ext, repository.UserInput{Name: "Bo", Email: "bo@example.com"})
	if err != nil || !created {
		t.Fatalf("upsert by external id: created=%v err=%v", created, err)
	}
	if linked.ExternalID == nil || *linked.ExternalID != ext {
		t.Fatalf("external id = %v", linked.ExternalID)
	}
	byExt, err := f.repo.GetUser(f.ctx, ext)
	if err != nil || byExt.ID != linked.ID {
		t.Fatalf("lookup by external id: %v", err)
	}

	if _, err := f.repo.CreateUser(f.ctx, repository.UserInput{Name: "Bo 2", Email: "bo2@example.com", ExternalID: &ext}); !errors.Is(err, repository.ErrDuplicateUser) {
		t.Fatalf("second link to %s = %v", ext, err)
	}
	if _, err := f.repo.CreateUser(f.ctx, repository.UserInput{Name: "Cy", Email: "cy@example.com"}); err != nil {
		t.Fatalf("second unlinked user: %v", err)
	}

	if _, err := f.repo.GetUser(f.ctx, "not-an-id"); !errors.Is(err, repository.ErrInvalidID) {
		t.Fatalf("bad key = %v", err)
	}
	if _, err := f.repo.GetUser(f.ctx, "user_missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing external = %v", err)
	}

	off := false
	patched, err := f.repo.PatchUser(f.ctx, u.ID.Hex(), repository.UserPatch{Active: repository.Some(&off)})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if patched.Active || patched.Name != "Ana" {
		t.Fatalf("patched = %+v", patched)
	}
	active := true
	list, err := f.repo.ListUsers(f.ctx, repository.UserFilter{Active: &active, Search: "bo"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Total != 1 || list.Items[0].Name != "Bo" {
		t.Fatalf("active users = %+v", list.Items)
	}
}

func TestDeleteUserUnassigns(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	u, _ := f.repo.CreateUser(f.ctx, repository.UserInput{Name: "Ana", Email: "ana@example.com"})
	task := f.task(t, repository.TaskInput{
		ProjectID:   p.ID.Hex(),
		Title:       "Owned",
		AssigneeIDs: []string{u.ID.Hex()},
		ReporterID:  ref(u.ID),
	})
	if err := f.repo.DeleteUser(f.ctx, u.ID.Hex()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := f.repo.GetTask(f.ctx, task.ID)
	if len(got.AssigneeIDs) != 0 || got.ReporterID != nil {
		t.Fatalf("task still references user: %+v", got)
	}
}

func TestEstimationValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.repo.CreateEstimation(f.ctx, repository.EstimationInput{
		ProjectName: "Portal",
		ClientName:  "Acme",
		TeamMembers: []models.TeamMember{},
	})
	var verr *repository.ValidationError
	if !errors.As(err, &verr) || verr.Message != "At least one team member is required" {
		t.Fatalf("err = %v", err)
	}

	_, err = f.repo.CreateEstimation(f.ctx, repository.EstimationInput{
		ProjectName: "Portal",
		TeamMembers: []models.TeamMember{{Name: "Ana", DailyRate: 100, DaysAllocated: 1}},
	})
	if details := validationDetails(t, err); details["clientName"] == "" {
		t.Fatalf("details = %v", details)
	}

	e, err := f.repo.CreateEstimation(f.ctx, repository.EstimationInput{
		ProjectName:       "Portal",
		ClientName:        "Acme",
		TeamMembers:       []models.TeamMember{{Name: "Ana", DailyRate: 100, DaysAllocated: 10}},
		RevenuePercentage: 10,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.Totals.Total != 1100 || e.DurationMonths != 1 || e.Status != models.EstimationDraft {
		t.Fatalf("estimation = %+v", e)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	keep := f.project(t)
	s := f.sprint(t, p.ID, "S1")
	f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "gone"})
	kept := f.task(t, repository.TaskInput{ProjectID: keep.ID.Hex(), Title: "kept"})
	if _, err := f.repo.AddCard(f.ctx, s.ID, repository.Caller{ID: "user_1"}, repository.CardInput{Column: models.ColumnWentWell, Content: "nice"}); err != nil {
		t.Fatalf("add card: %v", err)
	}

	if err := f.repo.DeleteProject(f.ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	res, err := f.repo.ListTasks(f.ctx, repository.TaskFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 1 || res.Items[0].ID != kept.ID {
		t.Fatalf("remaining tasks = %+v", res.Items)
	}
	if _, err := f.repo.GetSprint(f.ctx, s.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("sprint survived: %v", err)
	}
	cards, err := f.store.Collection(models.CollectionRetroCards).Count(f.ctx, storage.Query{})
	if err != nil || cards != 0 {
		t.Fatalf("cards = %d (%v)", cards, err)
	}
}

func TestRetrospective(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	s := f.sprint(t, p.ID, "S1")
	ana := repository.Caller{ID: "user_ana", Name: "Ana"}
	bo := repository.Caller{ID: "user_bo", Name: "Bo"}

	board, err := f.repo.RetroBoard(f.ctx, s.ID, ana)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if board.Session.Status != models.RetroOpen || board.Session.FacilitatorID != ana.ID {
		t.Fatalf("session = %+v", board.Session)
	}
	again, _ := f.repo.RetroBoard(f.ctx, s.ID, bo)
	if again.Session.ID != board.Session.ID {
		t.Fatal("session created twice")
	}

	own, err := f.repo.AddCard(f.ctx, s.ID, ana, repository.CardInput{Column: models.ColumnToImprove, Content: "slow CI"})
	if err != nil {
		t.Fatalf("add card: %v", err)
	}
	anon, err := f.repo.AddCard(f.ctx, s.ID, ana, repository.CardInput{Column: models.ColumnWentWell, Content: "demo", Anonymous: true})
	if err != nil {
		t.Fatalf("add anonymous card: %v", err)
	}
	if anon.AuthorID != "" || anon.AuthorName != "" {
		t.Fatalf("anonymous card has author %+v", anon)
	}
	if _, err := f.repo.AddCard(f.ctx, s.ID, ana, repository.CardInput{Column: "later", Content: "x"}); err == nil {
		t.Fatal("unknown column accepted")
	}

	edit := repository.CardPatch{Content: repository.Some("edited")}
	if _, err := f.repo.UpdateCard(f.ctx, s.ID, own.ID, bo, edit); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("edit by other = %v", err)
	}
	if _, err := f.repo.UpdateCard(f.ctx, s.ID, anon.ID, bo, edit); err != nil {
		t.Fatalf("edit anonymous: %v", err)
	}
	if err := f.repo.DeleteCard(f.ctx, s.ID, own.ID, bo); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("delete by other = %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := f.repo.Vote(f.ctx, s.ID, own.ID, bo); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}
	voted, _ := f.repo.Vote(f.ctx, s.ID, own.ID, ana)
	if len(voted.Votes) != 2 {
		t.Fatalf("votes = %v", voted.Votes)
	}
	unvoted, err := f.repo.Unvote(f.ctx, s.ID, own.ID, bo)
	if err != nil || len(unvoted.Votes) != 1 || unvoted.Votes[0] != ana.ID {
		t.Fatalf("unvote = %v (%v)", unvoted.Votes, err)
	}

	action, err := f.repo.AddAction(f.ctx, s.ID, ana, repository.ActionInput{Title: "Speed up CI", LinkedCardIDs: []string{own.ID.Hex()}})
	if err != nil {
		t.Fatalf("add action: %v", err)
	}
	action, err = f.repo.UpdateAction(f.ctx, s.ID, action.ID, repository.ActionPatch{Status: repository.Some(models.ActionDone)})
	if err != nil || action.Status != models.ActionDone {
		t.Fatalf("update action: %+v (%v)", action, err)
	}
	if err := f.repo.DeleteCard(f.ctx, s.ID, own.ID, ana); err != nil {
		t.Fatalf("delete own card: %v", err)
	}
	board, _ = f.repo.RetroBoard(f.ctx, s.ID, ana)
	if len(board.Cards) != 1 || len(board.Actions) != 1 || len(board.Actions[0].LinkedCardIDs) != 0 {
		t.Fatalf("board after delete = %+v", board)
	}

	if _, err := f.repo.SetRetroStatus(f.ctx, s.ID, ana, models.RetroClosed); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := f.repo.AddCard(f.ctx, s.ID, ana, repository.CardInput{Column: models.ColumnWentWell, Content: "late"}); err == nil {
		t.Fatal("card added to closed board")
	}
}

func TestMetricsLoaders(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)

	v, err := f.repo.Velocity(f.ctx, p.ID.Hex(), 0)
	if err != nil {
		t.Fatalf("velocity: %v", err)
	}
	if v.AverageVelocity != 0 || v.Sprints == nil || len(v.Sprints) != 0 {
		t.Fatalf("empty velocity = %+v", v)
	}

	s := f.sprint(t, p.ID, "S1")
	a := f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "a", StoryPoints: points(4), SprintID: ref(s.ID)})
	f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "b", StoryPoints: points(2), SprintID: ref(s.ID)})
	if _, err := f.repo.StartSprint(f.ctx, s.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.repo.PatchTask(f.ctx, a.ID, repository.TaskPatch{Status: repository.Some(models.StatusDone)}); err != nil {
		t.Fatalf("finish: %v", err)
	}

	burndown, err := f.repo.Burndown(f.ctx, s.ID.Hex())
	if err != nil {
		t.Fatalf("burndown: %v", err)
	}
	if burndown.CommittedPoints != 6 || len(burndown.Points) != 15 {
		t.Fatalf("burndown = %d points, committed %d", len(burndown.Points), burndown.CommittedPoints)
	}

	if _, err := f.repo.CompleteSprint(f.ctx, s.ID, true); err != nil {
		t.Fatalf("complete: %v", err)
	}
	v, err = f.repo.Velocity(f.ctx, p.ID.Hex(), 5)
	if err != nil {
		t.Fatalf("velocity: %v", err)
	}
	if len(v.Sprints) != 1 || v.AverageVelocity != 4 {
		t.Fatalf("velocity = %+v", v)
	}

	sum, err := f.repo.Summary(f.ctx, p.ID.Hex(), "")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalTasks != 2 || sum.CompletedPoints != 4 {
		t.Fatalf("summary = %+v", sum)
	}
	elsewhere := f.sprint(t, f.project(t).ID, "Elsewhere")
	_, err = f.repo.Summary(f.ctx, p.ID.Hex(), elsewhere.ID.Hex())
	if details := validationDetails(t, err); details["sprintId"] == "" {
		t.Fatalf("foreign sprint details = %v", details)
	}
	if _, err := f.repo.Summary(f.ctx, "bad", ""); !errors.Is(err, repository.ErrInvalidID) {
		t.Fatalf("bad project id = %v", err)
	}
}

func TestResetInvalidTaskStatuses(t *testing.T) {
	f := newFixture(t)
	p := f.project(t)
	good := f.task(t, repository.TaskInput{ProjectID: p.ID.Hex(), Title: "ok", Status: models.StatusTodo})

	bad := models.Task{ID: primitive.NewObjectID(), ProjectID: p.ID, Title: "legacy", Status: "Done!"}
	bad.Normalize()
	bad.Status = "Done!"
	if err := f.store.Collection(models.CollectionTasks).Insert(f.ctx, bad.ID, bad); err != nil {
		t.Fatalf("insert legacy task: %v", err)
	}

	n, err := f.repo.ResetInvalidTaskStatuses(f.ctx, true)
	if err != nil || n != 1 {
		t.Fatalf("dry run = %d (%v)", n, err)
	}
	got, _ := f.repo.GetTask(f.ctx, bad.ID)
	if got.Status != "Done!" {
		t.Fatal("dry run wrote changes")
	}

	n, err = f.repo.ResetInvalidTaskStatuses(f.ctx, false)
	if err != nil || n != 1 {
		t.Fatalf("reset = %d (%v)", n, err)
	}
	got, _ = f.repo.GetTask(f.ctx, bad.ID)
	if got.Status != models.StatusBacklog {
		t.Fatalf("status = %q", got.Status)
	}
	kept, _ := f.repo.GetTask(f.ctx, good.ID)
	if kept.Status != models.StatusTodo {
		t.Fatalf("valid task changed to %q", kept.Status)
	}
}
