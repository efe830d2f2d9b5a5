package progress

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/stratplan/internal/contracts"
)

// ErrVersionConflict is returned by Commit when a progress record changed
// since it was read. The caller should refetch and fold again.
var ErrVersionConflict = errors.New("progress record was modified concurrently")

// Source reads committed progress for one KRA and year
type Source interface {
	Fetch(ctx context.Context, kraID string, year int) ([]contracts.ProgressRecord, error)
}

// Committer persists the contribution of an approved analysis
type Committer interface {
	Commit(ctx context.Context, c Contribution) error
}

// Contribution is what one approved analysis adds to cumulative progress
type Contribution struct {
	AnalysisID string             `json:"analysisId"`
	PlanHash   string             `json:"planHash"`
	Year       int                `json:"year"`
	Quarter    int                `json:"quarter"`
	Items      []ContributionItem `json:"items"`
}

// ContributionItem is the contribution to one KPI. ExpectedVersion is the
// version of the record the fold was computed from (0 for a new record).
type ContributionItem struct {
	KRAID           string               `json:"kraId"`
	KPIID           string               `json:"kpiId"`
	Type            contracts.TargetType `json:"targetType"`
	Reported        float64              `json:"reported"`
	NewTotal        float64              `json:"newTotal"`
	Target          float64              `json:"target"`
	RawAchievement  float64              `json:"rawAchievement"`
	ExpectedVersion int64                `json:"expectedVersion"`
}

// NewContribution turns an evaluated summary into a commit request
func NewContribution(analysisID, planHash string, quarter int, s Summary) Contribution {
	c := Contribution{
		AnalysisID: analysisID,
		PlanHash:   planHash,
		Year:       s.Year,
		Quarter:    quarter,
		Items:      make([]ContributionItem, 0, len(s.Groups)),
	}

	for _, g := range s.Groups {
		c.Items = append(c.Items, ContributionItem{
			KRAID:           g.Key.KRAID,
			KPIID:           g.Key.InitiativeID,
			Type:            g.Target.Type,
			Reported:        g.Aggregate.TotalReported,
			NewTotal:        g.Progress.NewTotal,
			Target:          g.Progress.Target,
			RawAchievement:  g.Progress.RawAchievement,
			ExpectedVersion: g.Version,
		})
	}
	return c
}

// QuarterOf returns the calendar quarter (1..4) of t
func QuarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}
