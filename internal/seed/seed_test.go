package seed_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
	"github.com/Manumac86/collybrix-admin-sub001/internal/repository"
	"github.com/Manumac86/collybrix-admin-sub001/internal/seed"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage/sqlite"
)

func TestLoad(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "seed.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close(context.Background())

	ctx := context.Background()
	repo := repository.New(store, logger)
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	now := time.Now().UTC()
	res, err := seed.Load(ctx, repo, logger, now)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := seed.Result{Projects: 4, Estimations: 2, Users: 3, Tags: 3, Sprints: 3, Tasks: 8}
	if res != want {
		t.Fatalf("result = %+v, want %+v", res, want)
	}

	sprints, err := repo.ListSprints(ctx, repository.SprintFilter{})
	if err != nil {
		t.Fatalf("list sprints: %v", err)
	}
	statuses := map[string]int{}
	for _, s := range sprints.Items {
		statuses[s.Status]++
	}
	if statuses[models.SprintCompleted] != 1 || statuses[models.SprintActive] != 1 || statuses[models.SprintPlanning] != 1 {
		t.Fatalf("sprint statuses = %v", statuses)
	}

	unscheduled, err := repo.ListTasks(ctx, repository.TaskFilter{SprintIDs: []string{repository.FilterNone}})
	if err != nil {
		t.Fatalf("list backlog: %v", err)
	}
	// Two planned backlog items plus the one left over from the completed sprint.
	if unscheduled.Total != 3 {
		t.Fatalf("unscheduled tasks = %d", unscheduled.Total)
	}

	if _, err := seed.Load(ctx, repo, logger, now); !errors.Is(err, seed.ErrAlreadySeeded) {
		t.Fatalf("second load = %v, want ErrAlreadySeeded", err)
	}
}
