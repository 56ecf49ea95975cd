package metrics

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
)

// SprintProgress is the headline state of a sprint.
type SprintProgress struct {
	TotalDays            int  `json:"totalDays"`
	ElapsedDays          int  `json:"elapsedDays"`
	RemainingDays        int  `json:"remainingDays"`
	Capacity             int  `json:"capacity"`
	CommittedPoints      int  `json:"committedPoints"`
	CompletedPoints      int  `json:"completedPoints"`
	CompletionPercentage int  `json:"completionPercentage"`
	OverCapacity         bool `json:"overCapacity"`
}

// BurndownPoint is one day of the burndown chart. Actual is nil for days
// that have not happened yet.
type BurndownPoint struct {
	Date   string  `json:"date"`
	Ideal  float64 `json:"ideal"`
	Actual *int    `json:"actual"`
}

// BurndownSeries is the remaining-work chart of a sprint.
type BurndownSeries struct {
	SprintID        primitive.ObjectID `json:"sprintId"`
	CommittedPoints int                `json:"committedPoints"`
	Days            int                `json:"days"`
	Points          []BurndownPoint    `json:"points"`
}

// VelocityPoint is the delivered work of one completed sprint.
type VelocityPoint struct {
	SprintID        primitive.ObjectID `json:"sprintId"`
	Name            string             `json:"name"`
	EndDate         time.Time          `json:"endDate"`
	CommittedPoints int                `json:"committedPoints"`
	CompletedPoints int                `json:"completedPoints"`
}

// VelocityReport lists recent sprints oldest first.
type VelocityReport struct {
	Sprints         []VelocityPoint `json:"sprints"`
	AverageVelocity float64         `json:"averageVelocity"`
}

// ScopeCreepReport measures work added after a sprint started.
type ScopeCreepReport struct {
	CommittedPoints int `json:"committedPoints"`
	AddedPoints     int `json:"addedPoints"`
	AddedTasks      int `json:"addedTasks"`
	Percentage      int `json:"percentage"`
}

func inSprint(t models.Task, sprintID primitive.ObjectID) bool {
	return t.SprintID != nil && *t.SprintID == sprintID
}

// committedPoints falls back to the current sprint contents while the
// sprint has not been started and nothing was committed yet.
func committedPoints(s models.Sprint, tasks []models.Task) int {
	if s.CommittedPoints > 0 {
		return s.CommittedPoints
	}
	total := 0
	for _, t := range tasks {
		if inSprint(t, s.ID) {
			total += t.Points()
		}
	}
	return total
}

func completedPoints(sprintID primitive.ObjectID, tasks []models.Task) int {
	total := 0
	for _, t := range tasks {
		if inSprint(t, sprintID) && t.IsDone() {
			total += t.Points()
		}
	}
	return total
}

func sprintDays(s models.Sprint) int {
	d := daysBetween(s.StartDate, s.EndDate)
	if d < 1 {
		return 1
	}
	return d
}

// Progress reports elapsed time and delivered points for a sprint at now.
func Progress(s models.Sprint, tasks []models.Task, now time.Time) SprintProgress {
	total := sprintDays(s)
	elapsed := daysBetween(s.StartDate, now)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > total {
		elapsed = total
	}

	committed := committedPoints(s, tasks)
	completed := completedPoints(s.ID, tasks)

	return SprintProgress{
		TotalDays:            total,
		ElapsedDays:          elapsed,
		RemainingDays:        total - elapsed,
		Capacity:             s.Capacity,
		CommittedPoints:      committed,
		CompletedPoints:      completed,
		CompletionPercentage: Percent(completed, committed),
		OverCapacity:         s.Capacity > 0 && (completed > s.Capacity || committed > s.Capacity),
	}
}

// Burndown builds one point per calendar day from start to end date
// inclusive. The ideal line falls linearly from the commitment to zero; the
// actual line subtracts the points of tasks completed on or before each day.
func Burndown(s models.Sprint, tasks []models.Task, now time.Time) BurndownSeries {
	days := sprintDays(s)
	committed := committedPoints(s, tasks)
	start := day(s.StartDate)
	today := day(now)

	type completion struct {
		at     time.Time
		points int
	}
	var done []completion
	for _, t := range tasks {
		if inSprint(t, s.ID) && t.IsDone() && t.CompletedAt != nil {
			done = append(done, completion{at: day(*t.CompletedAt), points: t.Points()})
		}
	}

	points := make([]BurndownPoint, 0, days+1)
	for i := 0; i <= days; i++ {
		date := start.AddDate(0, 0, i)
		p := BurndownPoint{
			Date:  date.Format("2006-01-02"),
			Ideal: round(float64(committed)-float64(committed)*float64(i)/float64(days), 2),
		}
		if !date.After(today) {
			burned := 0
			for _, c := range done {
				if !c.at.After(date) {
					burned += c.points
				}
			}
			remaining := committed - burned
			if remaining < 0 {
				remaining = 0
			}
			p.Actual = &remaining
		}
		points = append(points, p)
	}

	return BurndownSeries{
		SprintID:        s.ID,
		CommittedPoints: committed,
		Days:            days,
		Points:          points,
	}
}

// Velocity reports the limit most recently completed sprints (all when
// limit <= 0), each with the points of its done tasks.
func Velocity(sprints []models.Sprint, tasks []models.Task, limit int) VelocityReport {
	completed := make([]models.Sprint, 0, len(sprints))
	for _, s := range sprints {
		if s.Status == models.SprintCompleted {
			completed = append(completed, s)
		}
	}
	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].EndDate.After(completed[j].EndDate)
	})
	if limit > 0 && len(completed) > limit {
		completed = completed[:limit]
	}

	report := VelocityReport{Sprints: make([]VelocityPoint, 0, len(completed))}
	if len(completed) == 0 {
		return report
	}

	sum := 0
	for i := len(completed) - 1; i >= 0; i-- {
		s := completed[i]
		points := completedPoints(s.ID, tasks)
		sum += points
		report.Sprints = append(report.Sprints, VelocityPoint{
			SprintID:        s.ID,
			Name:            s.Name,
			EndDate:         s.EndDate,
			CommittedPoints: s.CommittedPoints,
			CompletedPoints: points,
		})
	}
	report.AverageVelocity = round(float64(sum)/float64(len(completed)), 1)
	return report
}

// ScopeCreep counts points of tasks that joined the sprint after it began.
// The moment the sprint was started is preferred over its planned start date.
func ScopeCreep(s models.Sprint, tasks []models.Task) ScopeCreepReport {
	ref := s.StartDate
	if s.StartedAt != nil {
		ref = *s.StartedAt
	}

	report := ScopeCreepReport{CommittedPoints: committedPoints(s, tasks)}
	for _, t := range tasks {
		if !inSprint(t, s.ID) || t.AddedToSprintAt == nil {
			continue
		}
		if t.AddedToSprintAt.After(ref) {
			report.AddedPoints += t.Points()
			report.AddedTasks++
		}
	}
	report.Percentage = Percent(report.AddedPoints, report.CommittedPoints)
	return report
}
