package metrics

import (
	"sort"

	"github.com/Manumac86/collybrix-admin-sub001/internal/models"
)

// StageSummary is one column of the sales pipeline.
type StageSummary struct {
	Stage string  `json:"stage"`
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// CompanyRevenue is the contracted value per client company.
type CompanyRevenue struct {
	Company  string  `json:"company"`
	Projects int     `json:"projects"`
	Value    float64 `json:"value"`
}

// RevenueReport aggregates project pricing.
type RevenueReport struct {
	TotalContracted  float64            `json:"totalContracted"`
	MonthlyRecurring float64            `json:"monthlyRecurring"`
	PipelineValue    float64            `json:"pipelineValue"`
	ByStatus         map[string]float64 `json:"byStatus"`
	ByCompany        []CompanyRevenue   `json:"byCompany"`
}

// Pipeline returns every stage in order with its project count and value.
// Projects on an unknown stage are left out.
func Pipeline(projects []models.Project) []StageSummary {
	out := make([]StageSummary, len(models.PipelineStages))
	for i, stage := range models.PipelineStages {
		out[i].Stage = stage
	}
	for _, p := range projects {
		i := models.StageIndex(p.Stage)
		if i < 0 {
			continue
		}
		out[i].Count++
		out[i].Value = round(out[i].Value+p.Price, 2)
	}
	return out
}

// Revenue sums contracted work (projects in delivery or delivered), recurring
// fees of active projects, and the value still in the sales stages.
func Revenue(projects []models.Project) RevenueReport {
	report := RevenueReport{ByStatus: make(map[string]float64)}
	for status := range models.ValidProjectStatuses {
		report.ByStatus[status] = 0
	}

	companies := make(map[string]*CompanyRevenue)
	for _, p := range projects {
		report.ByStatus[p.Status] = round(report.ByStatus[p.Status]+p.Price, 2)

		if p.Status == models.ProjectActive {
			report.MonthlyRecurring = round(report.MonthlyRecurring+p.MonthlyFee, 2)
		}

		if p.Stage != models.StageInProgress && p.Stage != models.StageFinished {
			if p.Status != models.ProjectCancelled {
				report.PipelineValue = round(report.PipelineValue+p.Price, 2)
			}
			continue
		}
		report.TotalContracted = round(report.TotalContracted+p.Price, 2)

		c, ok := companies[p.Company]
		if !ok {
			c = &CompanyRevenue{Company: p.Company}
			companies[p.Company] = c
		}
		c.Projects++
		c.Value = round(c.Value+p.Price, 2)
	}

	report.ByCompany = make([]CompanyRevenue, 0, len(companies))
	for _, c := range companies {
		report.ByCompany = append(report.ByCompany, *c)
	}
	sort.Slice(report.ByCompany, func(i, j int) bool {
		if report.ByCompany[i].Value != report.ByCompany[j].Value {
			return report.ByCompany[i].Value > report.ByCompany[j].Value
		}
		return report.ByCompany[i].Company < report.ByCompany[j].Company
	})
	return report
}
