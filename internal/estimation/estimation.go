// Package estimation prices a proposal from its staffing and resource costs.
package estimation

import (
	"errors"
	"fmt"
	"math"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
)

// ErrNoTeamMembers is returned when an estimation has nobody staffed on it.
var ErrNoTeamMembers = errors.New("At least one team member is required")

// percentTolerance absorbs float noise when installment shares are summed.
const percentTolerance = 0.01

// Cents rounds an amount to two decimals, half away from zero.
func Cents(v float64) float64 {
	return math.Round(v*100) / 100
}

// ResourceCost is the cost of r over a project lasting months.
func ResourceCost(r models.Resource, months int) float64 {
	if months < 1 {
		months = 1
	}
	switch r.BillingFrequency {
	case models.BillingMonthly:
		return r.Cost * float64(months)
	case models.BillingYearly:
		return r.Cost * math.Ceil(float64(months)/12)
	default:
		return r.Cost
	}
}

// Totals derives the estimation totals from its members, resources and margin.
func Totals(e models.Estimation) models.EstimationTotals {
	var team, resources float64
	for _, m := range e.TeamMembers {
		team += m.DailyRate * m.DaysAllocated
	}
	for _, r := range e.Resources {
		resources += ResourceCost(r, e.DurationMonths)
	}

	team = Cents(team)
	resources = Cents(resources)
	subtotal := Cents(team + resources)
	revenue := Cents(subtotal * e.RevenuePercentage / 100)
	return models.EstimationTotals{
		Team:      team,
		Resources: resources,
		Subtotal:  subtotal,
		Revenue:   revenue,
		Total:     Cents(subtotal + revenue),
	}
}

// ApplyPlan fills each installment amount as its share of total.
func ApplyPlan(plan *models.PaymentPlan, total float64) {
	if plan == nil {
		return
	}
	for i := range plan.Installments {
		plan.Installments[i].Amount = Cents(total * plan.Installments[i].Percentage / 100)
	}
}

// Validate checks the business rules an estimation must satisfy before it is
// priced. It returns one message per offending field, keyed by JSON path.
func Validate(e models.Estimation) (map[string]string, error) {
	details := map[string]string{}
	if len(e.TeamMembers) == 0 {
		return details, ErrNoTeamMembers
	}

	if _, ok := models.ValidEstimationStatuses[e.Status]; e.Status != "" && !ok {
		details["status"] = "must be one of draft, sent, approved, rejected"
	}
	if e.DurationMonths < 0 {
		details["durationMonths"] = "must not be negative"
	}
	if e.RevenuePercentage < 0 {
		details["revenuePercentage"] = "must not be negative"
	}
	for i, m := range e.TeamMembers {
		if m.DailyRate < 0 {
			details[fmt.Sprintf("teamMembers[%d].dailyRate", i)] = "must not be negative"
		}
		if m.DaysAllocated < 0 {
			details[fmt.Sprintf("teamMembers[%d].daysAllocated", i)] = "must not be negative"
		}
	}
	for i, r := range e.Resources {
		if r.Cost < 0 {
			details[fmt.Sprintf("resources[%d].cost", i)] = "must not be negative"
		}
		switch r.BillingFrequency {
		case "", models.BillingOneTime, models.BillingMonthly, models.BillingYearly:
		default:
			details[fmt.Sprintf("resources[%d].billingFrequency", i)] = "must be one of one_time, monthly, yearly"
		}
	}
	if e.PaymentPlan != nil && len(e.PaymentPlan.Installments) > 0 {
		var sum float64
		for i, inst := range e.PaymentPlan.Installments {
			if inst.Percentage <= 0 {
				details[fmt.Sprintf("paymentPlan.installments[%d].percentage", i)] = "must be positive"
			}
			sum += inst.Percentage
		}
		if math.Abs(sum-100) > percentTolerance {
			details["paymentPlan.installments"] = fmt.Sprintf("percentages must add up to 100, got %g", sum)
		}
	}

	if len(details) > 0 {
		return details, errors.New("invalid estimation")
	}
	return details, nil
}

// Price normalizes defaults and recomputes every derived amount in place.
func Price(e *models.Estimation) {
	if e.DurationMonths < 1 {
		e.DurationMonths = 1
	}
	if e.Status == "" {
		e.Status = models.EstimationDraft
	}
	if e.Resources == nil {
		e.Resources = []models.Resource{}
	}
	for i := range e.Resources {
		if e.Resources[i].BillingFrequency == "" {
			e.Resources[i].BillingFrequency = models.BillingOneTime
		}
	}
	e.Totals = Totals(*e)
	ApplyPlan(e.PaymentPlan, e.Totals.Total)
}
