package metrics

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
)

// TopTagsLimit is how many tags a dashboard summary lists.
const TopTagsLimit = 10

// CycleTimeReport is the average time from in_progress to done.
type CycleTimeReport struct {
	AverageHours float64 `json:"averageHours"`
	AverageDays  float64 `json:"averageDays"`
	Count        int     `json:"count"`
}

// TagCount is the usage of one tag across a task set.
type TagCount struct {
	TagID primitive.ObjectID `json:"tagId"`
	Name  string             `json:"name"`
	Color string             `json:"color"`
	Count int                `json:"count"`
}

// Summary is the dashboard rollup of a task set.
type Summary struct {
	TotalTasks           int               `json:"totalTasks"`
	CompletedTasks       int               `json:"completedTasks"`
	BlockedTasks         int               `json:"blockedTasks"`
	TotalPoints          int               `json:"totalPoints"`
	CompletedPoints      int               `json:"completedPoints"`
	CompletionPercentage int               `json:"completionPercentage"`
	ByStatus             map[string]int    `json:"byStatus"`
	ByType               map[string]int    `json:"byType"`
	ByPriority           map[string]int    `json:"byPriority"`
	TopTags              []TagCount        `json:"topTags"`
	CycleTime            CycleTimeReport   `json:"cycleTime"`
	Sprint               *SprintProgress   `json:"sprint,omitempty"`
	ScopeCreep           *ScopeCreepReport `json:"scopeCreep,omitempty"`
}

// CycleTime averages the time between a task starting and finishing. Tasks
// missing either timestamp, or finishing before they started, are skipped.
func CycleTime(tasks []models.Task) CycleTimeReport {
	var total time.Duration
	n := 0
	for _, t := range tasks {
		if t.StartedAt == nil || t.CompletedAt == nil {
			continue
		}
		d := t.CompletedAt.Sub(*t.StartedAt)
		if d < 0 {
			continue
		}
		total += d
		n++
	}
	if n == 0 {
		return CycleTimeReport{}
	}
	hours := total.Hours() / float64(n)
	return CycleTimeReport{
		AverageHours: round(hours, 1),
		AverageDays:  round(hours/24, 1),
		Count:        n,
	}
}

func countBy(tasks []models.Task, keys []string, field func(models.Task) string) map[string]int {
	out := make(map[string]int, len(keys))
	for _, k := range keys {
		out[k] = 0
	}
	for _, t := range tasks {
		out[field(t)]++
	}
	return out
}

// CountByStatus counts tasks per status; every known status is present.
func CountByStatus(tasks []models.Task) map[string]int {
	return countBy(tasks, models.TaskStatuses, func(t models.Task) string { return t.Status })
}

// CountByType counts tasks per type; every known type is present.
func CountByType(tasks []models.Task) map[string]int {
	return countBy(tasks, models.TaskTypes, func(t models.Task) string { return t.Type })
}

// CountByPriority counts tasks per priority; every known priority is present.
func CountByPriority(tasks []models.Task) map[string]int {
	return countBy(tasks, models.TaskPriorities, func(t models.Task) string { return t.Priority })
}

// GroupByStatus partitions tasks into board columns, keeping input order.
func GroupByStatus(tasks []models.Task) map[string][]models.Task {
	out := make(map[string][]models.Task, len(models.TaskStatuses))
	for _, s := range models.TaskStatuses {
		out[s] = []models.Task{}
	}
	for _, t := range tasks {
		out[t.Status] = append(out[t.Status], t)
	}
	return out
}

// TopTags ranks tags by how many tasks carry them, most used first, ties by
// name. Tags with no tasks are omitted; at most limit entries are returned.
func TopTags(tasks []models.Task, tags []models.Tag, limit int) []TagCount {
	counts := make(map[primitive.ObjectID]int)
	for _, t := range tasks {
		for _, id := range t.TagIDs {
			counts[id]++
		}
	}

	out := make([]TagCount, 0, len(tags))
	for _, tag := range tags {
		if n := counts[tag.ID]; n > 0 {
			out = append(out, TagCount{TagID: tag.ID, Name: tag.Name, Color: tag.Color, Count: n})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Summarize builds the dashboard rollup. When sprint is non-nil its progress
// and scope creep are included as well.
func Summarize(tasks []models.Task, tags []models.Tag, sprint *models.Sprint, now time.Time) Summary {
	s := Summary{
		TotalTasks: len(tasks),
		ByStatus:   CountByStatus(tasks),
		ByType:     CountByType(tasks),
		ByPriority: CountByPriority(tasks),
		TopTags:    TopTags(tasks, tags, TopTagsLimit),
		CycleTime:  CycleTime(tasks),
	}
	for _, t := range tasks {
		s.TotalPoints += t.Points()
		if t.IsDone() {
			s.CompletedTasks++
			s.CompletedPoints += t.Points()
		}
		if t.Status == models.StatusBlocked {
			s.BlockedTasks++
		}
	}
	s.CompletionPercentage = Percent(s.CompletedPoints, s.TotalPoints)

	if sprint != nil {
		progress := Progress(*sprint, tasks, now)
		creep := ScopeCreep(*sprint, tasks)
		s.Sprint = &progress
		s.ScopeCreep = &creep
	}
	return s
}
