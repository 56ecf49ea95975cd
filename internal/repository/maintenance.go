package repository

import (
	"context"
	"fmt"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

// ResetInvalidTaskStatuses moves every task whose status is missing or not
// one of the known values back to the backlog. With dryRun nothing is
// written. It returns how many tasks are affected.
func (r *Repository) ResetInvalidTaskStatuses(ctx context.Context, dryRun bool) (int64, error) {
	q := storage.Where(storage.NotIn("status", stringValues(models.TaskStatuses)...))

	n, err := r.tasks.Count(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("count invalid statuses: %w", err)
	}
	if dryRun || n == 0 {
		r.logger.Info("task statuses checked", "affected", n, "dry_run", dryRun)
		return n, nil
	}

	if _, err := r.tasks.Set(ctx, q, "updatedAt", r.now()); err != nil {
		return 0, fmt.Errorf("touch tasks: %w", err)
	}
	changed, err := r.tasks.Set(ctx, q, "status", models.StatusBacklog)
	if err != nil {
		return 0, fmt.Errorf("reset statuses: %w", err)
	}
	r.logger.Info("task statuses reset", "affected", changed)
	return changed, nil
}
