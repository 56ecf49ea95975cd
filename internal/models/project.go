package models

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project lifecycle statuses.
const (
	ProjectActive    = "active"
	ProjectOnHold    = "on_hold"
	ProjectCompleted = "completed"
	ProjectCancelled = "cancelled"
)

// ValidProjectStatuses enumerates the lifecycle statuses a project may hold.
var ValidProjectStatuses = map[string]struct{}{
	ProjectActive:    {},
	ProjectOnHold:    {},
	ProjectCompleted: {},
	ProjectCancelled: {},
}

// Pipeline stages, in the order a deal moves through them.
const (
	StageQualification = "qualification"
	StageDiscovery     = "discovery"
	StageProposal      = "proposal"
	StageNegotiation   = "negotiation"
	StageInProgress    = "in_progress"
	StageFinished      = "finished"
)

// PipelineStages lists the stages in pipeline order.
var PipelineStages = []string{
	StageQualification,
	StageDiscovery,
	StageProposal,
	StageNegotiation,
	StageInProgress,
	StageFinished,
}

// StageIndex returns the ordinal of stage, or -1 when unknown.
func StageIndex(stage string) int {
	for i, s := range PipelineStages {
		if s == stage {
			return i
		}
	}
	return -1
}

// Contact is a person on the client side of a project.
type Contact struct {
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
	Phone string `bson:"phone" json:"phone"`
	Role  string `bson:"role" json:"role"`
}

// Milestone marks a dated delivery point of a project.
type Milestone struct {
	Date        time.Time `bson:"date" json:"date"`
	Type        string    `bson:"type" json:"type"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description" json:"description"`
	Deliverable string    `bson:"deliverable" json:"deliverable"`
}

// Project is a client engagement tracked by the agency.
type Project struct {
	ID         primitive.ObjectID `bson:"_id" json:"_id"`
	Name       string             `bson:"name" json:"name"`
	Company    string             `bson:"company" json:"company"`
	Status     string             `bson:"status" json:"status"`
	Stage      string             `bson:"stage" json:"stage"`
	Price      float64            `bson:"price" json:"price"`
	MonthlyFee float64            `bson:"monthlyFee" json:"monthlyFee"`
	Currency   string             `bson:"currency" json:"currency"`
	StartDate  *time.Time         `bson:"startDate" json:"startDate"`
	EndDate    *time.Time         `bson:"endDate" json:"endDate"`
	Contacts   []Contact          `bson:"contacts" json:"contacts"`
	Milestones []Milestone        `bson:"milestones" json:"milestones"`
	Notes      string             `bson:"notes" json:"notes"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Normalize fills defaults and orders milestones chronologically.
func (p *Project) Normalize() {
	if p.Status == "" {
		p.Status = ProjectActive
	}
	if p.Stage == "" {
		p.Stage = StageQualification
	}
	if p.Currency == "" {
		p.Currency = "EUR"
	}
	if p.Contacts == nil {
		p.Contacts = []Contact{}
	}
	if p.Milestones == nil {
		p.Milestones = []Milestone{}
	}
	sort.SliceStable(p.Milestones, func(i, j int) bool {
		return p.Milestones[i].Date.Before(p.Milestones[j].Date)
	})
}
