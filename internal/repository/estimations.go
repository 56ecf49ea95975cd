package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/estimation"
	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

var estimationSortFields = map[string]struct{}{
	"createdAt":    {},
	"updatedAt":    {},
	"clientName":   {},
	"projectName":  {},
	"totals.total": {},
}

// EstimationFilter narrows an estimation listing.
type EstimationFilter struct {
	Statuses []string
	Search   string
	Paging   Paging
	Sort     Sort
}

// EstimationInput is the body of an estimation create or replace. Totals
// and installment amounts are always computed.
type EstimationInput struct {
	ProjectName       string              `json:"projectName" validate:"required,max=200"`
	ClientName        string              `json:"clientName" validate:"required,max=200"`
	TeamMembers       []models.TeamMember `json:"teamMembers"`
	Resources         []models.Resource   `json:"resources"`
	DurationMonths    int                 `json:"durationMonths" validate:"min=0,max=120"`
	RevenuePercentage float64             `json:"revenuePercentage" validate:"min=0,max=1000"`
	PaymentPlan       *models.PaymentPlan `json:"paymentPlan"`
	Status            string              `json:"status"`
	Notes             string              `json:"notes"`
}

func (in EstimationInput) estimation() models.Estimation {
	return models.Estimation{
		ProjectName:       in.ProjectName,
		ClientName:        in.ClientName,
		TeamMembers:       in.TeamMembers,
		Resources:         in.Resources,
		DurationMonths:    in.DurationMonths,
		RevenuePercentage: in.RevenuePercentage,
		PaymentPlan:       in.PaymentPlan,
		Status:            in.Status,
		Notes:             in.Notes,
	}
}

// buildEstimation validates in and prices it.
func buildEstimation(in EstimationInput) (models.Estimation, error) {
	e := in.estimation()
	rules, err := estimation.Validate(e)
	if errors.Is(err, estimation.ErrNoTeamMembers) {
		return e, &ValidationError{Message: err.Error(), Details: check(in)}
	}
	details := check(in)
	for field, msg := range rules {
		details.add(field, msg)
	}
	if err := details.err(); err != nil {
		return e, err
	}
	estimation.Price(&e)
	return e, nil
}

// ListEstimations returns one page of estimations, newest first.
func (r *Repository) ListEstimations(ctx context.Context, filter EstimationFilter) (ListResult[models.Estimation], error) {
	q := storage.Query{}
	if len(filter.Statuses) > 0 {
		details := fieldErrors{}
		for _, s := range filter.Statuses {
			details.oneOf("status", s, models.ValidEstimationStatuses)
		}
		if err := details.err(); err != nil {
			return ListResult[models.Estimation]{}, err
		}
		q = q.And(storage.In("status", stringValues(filter.Statuses)...))
	}
	if filter.Search != "" {
		q = q.And(storage.Search(filter.Search, "projectName", "clientName"))
	}
	q, err := filter.Sort.apply(q, estimationSortFields, "createdAt", true)
	if err != nil {
		return ListResult[models.Estimation]{}, err
	}
	res, err := findPage[models.Estimation](ctx, r.estimations, q, filter.Paging)
	if err != nil {
		return res, fmt.Errorf("list estimations: %w", err)
	}
	return res, nil
}

// GetEstimation loads a single estimation.
func (r *Repository) GetEstimation(ctx context.Context, id primitive.ObjectID) (models.Estimation, error) {
	var e models.Estimation
	err := r.get(ctx, r.estimations, "Estimation", id, &e)
	return e, err
}

// CreateEstimation validates, prices and stores an estimation.
func (r *Repository) CreateEstimation(ctx context.Context, in EstimationInput) (models.Estimation, error) {
	e, err := buildEstimation(in)
	if err != nil {
		return models.Estimation{}, err
	}
	now := r.now()
	e.ID = models.NewID()
	e.CreatedAt = now
	e.UpdatedAt = now
	if err := r.estimations.Insert(ctx, e.ID, e); err != nil {
		return models.Estimation{}, fmt.Errorf("insert estimation: %w", err)
	}
	return e, nil
}

// ReplaceEstimation re-prices and overwrites an estimation.
func (r *Repository) ReplaceEstimation(ctx context.Context, id primitive.ObjectID, in EstimationInput) (models.Estimation, error) {
	current, err := r.GetEstimation(ctx, id)
	if err != nil {
		return models.Estimation{}, err
	}
	e, err := buildEstimation(in)
	if err != nil {
		return models.Estimation{}, err
	}
	e.ID = current.ID
	e.CreatedAt = current.CreatedAt
	e.UpdatedAt = r.now()
	if err := r.estimations.Replace(ctx, e.ID, e); err != nil {
		return models.Estimation{}, fmt.Errorf("update estimation: %w", err)
	}
	return e, nil
}

// DeleteEstimation removes an estimation.
func (r *Repository) DeleteEstimation(ctx context.Context, id primitive.ObjectID) error {
	return r.remove(ctx, r.estimations, "Estimation", id)
}
