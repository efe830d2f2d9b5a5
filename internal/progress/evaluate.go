package progress

import (
	"github.com/wonny/stratplan/internal/achievement"
	"github.com/wonny/stratplan/internal/contracts"
	"github.com/wonny/stratplan/internal/plan"
)

// Resolver resolves the target of a KRA/KPI for a year
type Resolver interface {
	ResolveTarget(kraID, initiativeID string, year int) contracts.Target
}

// Snapshot is the committed progress of one year keyed by KRA and KPI
type Snapshot map[string]contracts.ProgressRecord

// NewSnapshot indexes records by normalized KRA and KPI id
func NewSnapshot(records []contracts.ProgressRecord) Snapshot {
	s := make(Snapshot, len(records))
	for _, r := range records {
		s[snapshotKey(r.KRAID, r.KPIID)] = r
	}
	return s
}

// Get returns the record of a KPI
func (s Snapshot) Get(kraID, kpiID string) (contracts.ProgressRecord, bool) {
	r, ok := s[snapshotKey(kraID, kpiID)]
	return r, ok
}

func snapshotKey(kraID, kpiID string) string {
	return plan.NormalizeKRAID(kraID) + "/" + plan.NormalizeInitiativeID(kpiID)
}

// GroupResult is the evaluation of one aggregation group
type GroupResult struct {
	Key        contracts.GroupKey `json:"key"`
	Indices    []int              `json:"indices"`
	Target     contracts.Target   `json:"target"`
	Aggregate  achievement.Result `json:"aggregate"`
	Progress   Cumulative         `json:"progress"`
	Version    int64              `json:"version"`
	HasHistory bool               `json:"hasHistory"`
}

// Summary is the evaluation of a whole document
type Summary struct {
	Year                int                  `json:"year"`
	Groups              []GroupResult        `json:"groups"`
	DocumentAchievement float64              `json:"documentAchievement"`
	Unresolved          []contracts.GroupKey `json:"unresolved,omitempty"`
	Cumulative          bool                 `json:"cumulative"`
}

// Evaluate groups activities by resolved KRA/KPI, aggregates each group and
// folds it into the committed progress. A nil snapshot means no progress
// context is available and achievements are document-local.
// Activities without a KRA or KPI, and groups whose target cannot be
// resolved, are listed in Unresolved and excluded from the document mean.
func Evaluate(resolver Resolver, year int, activities []contracts.Activity, snapshot Snapshot) Summary {
	summary := Summary{Year: year, Cumulative: snapshot != nil}

	groups := make(map[contracts.GroupKey]int)
	measurements := make([][]achievement.Measurement, 0)
	unresolved := make(map[contracts.GroupKey]bool)

	for i, a := range activities {
		if !a.Key().Complete() {
			markUnresolved(&summary, unresolved, a.Key())
			continue
		}

		target := resolver.ResolveTarget(a.KRAID, a.InitiativeID, year)
		if !target.Resolved() {
			markUnresolved(&summary, unresolved, contracts.GroupKey{KRAID: target.KRAID, InitiativeID: a.InitiativeID})
			continue
		}

		key := contracts.GroupKey{KRAID: target.KRAID, InitiativeID: target.InitiativeID}
		idx, ok := groups[key]
		if !ok {
			idx = len(summary.Groups)
			groups[key] = idx
			summary.Groups = append(summary.Groups, GroupResult{Key: key, Target: target})
			measurements = append(measurements, nil)
		}
		summary.Groups[idx].Indices = append(summary.Groups[idx].Indices, i)
		measurements[idx] = append(measurements[idx], achievement.FromActivity(a))
	}

	displayed := make([]float64, 0, len(summary.Groups))
	for i := range summary.Groups {
		g := &summary.Groups[i]
		g.Aggregate = achievement.Aggregate(achievement.InputFor(g.Target, measurements[i]))

		var previous contracts.ProgressRecord
		if rec, ok := snapshot.Get(g.Key.KRAID, g.Key.InitiativeID); ok {
			previous = rec
			g.HasHistory = true
			g.Version = rec.Version
		}

		g.Progress = Fold(g.Target.Type, previous, g.Aggregate)
		displayed = append(displayed, g.Progress.DisplayedAchievement)
	}

	summary.DocumentAchievement = DocumentAchievement(displayed)
	return summary
}

func markUnresolved(s *Summary, seen map[contracts.GroupKey]bool, key contracts.GroupKey) {
	if seen[key] {
		return
	}
	seen[key] = true
	s.Unresolved = append(s.Unresolved, key)
}

// KRAIDs returns the distinct normalized KRA ids of the activities in order
// of first appearance
func KRAIDs(activities []contracts.Activity) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, a := range activities {
		id := plan.NormalizeKRAID(a.KRAID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
