package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Estimation statuses.
const (
	EstimationDraft    = "draft"
	EstimationSent     = "sent"
	EstimationApproved = "approved"
	EstimationRejected = "rejected"
)

// ValidEstimationStatuses enumerates the proposal lifecycle.
var ValidEstimationStatuses = setOf([]string{EstimationDraft, EstimationSent, EstimationApproved, EstimationRejected})

// Resource billing frequencies.
const (
	BillingOneTime = "one_time"
	BillingMonthly = "monthly"
	BillingYearly  = "yearly"
)

// TeamMember is a staffed role on an estimation.
type TeamMember struct {
	Name          string  `bson:"name" json:"name"`
	Role          string  `bson:"role" json:"role"`
	DailyRate     float64 `bson:"dailyRate" json:"dailyRate"`
	DaysAllocated float64 `bson:"daysAllocated" json:"daysAllocated"`
}

// Resource is a non-staff cost such as hosting or licences.
type Resource struct {
	Name             string  `bson:"name" json:"name"`
	Type             string  `bson:"type" json:"type"`
	Cost             float64 `bson:"cost" json:"cost"`
	BillingFrequency string  `bson:"billingFrequency" json:"billingFrequency"`
}

// EstimationTotals are derived from members, resources and the margin.
type EstimationTotals struct {
	Team      float64 `bson:"team" json:"team"`
	Resources float64 `bson:"resources" json:"resources"`
	Subtotal  float64 `bson:"subtotal" json:"subtotal"`
	Revenue   float64 `bson:"revenue" json:"revenue"`
	Total     float64 `bson:"total" json:"total"`
}

// Installment is one scheduled payment of a plan.
type Installment struct {
	Label      string     `bson:"label" json:"label"`
	Percentage float64    `bson:"percentage" json:"percentage"`
	Amount     float64    `bson:"amount" json:"amount"`
	DueDate    *time.Time `bson:"dueDate" json:"dueDate"`
}

// PaymentPlan splits the estimation total into installments.
type PaymentPlan struct {
	Installments []Installment `bson:"installments" json:"installments"`
}

// Estimation is a priced proposal for a client.
type Estimation struct {
	ID                primitive.ObjectID `bson:"_id" json:"_id"`
	ProjectName       string             `bson:"projectName" json:"projectName"`
	ClientName        string             `bson:"clientName" json:"clientName"`
	TeamMembers       []TeamMember       `bson:"teamMembers" json:"teamMembers"`
	Resources         []Resource         `bson:"resources" json:"resources"`
	DurationMonths    int                `bson:"durationMonths" json:"durationMonths"`
	RevenuePercentage float64            `bson:"revenuePercentage" json:"revenuePercentage"`
	Totals            EstimationTotals   `bson:"totals" json:"totals"`
	PaymentPlan       *PaymentPlan       `bson:"paymentPlan" json:"paymentPlan"`
	Status            string             `bson:"status" json:"status"`
	Notes             string             `bson:"notes" json:"notes"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}
