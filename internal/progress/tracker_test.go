package progress

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stratplan/internal/achievement"
	"github.com/wonny/stratplan/internal/contracts"
	"github.com/wonny/stratplan/internal/plan/plantest"
)

func TestCombine_CapsDisplayedKeepsRaw(t *testing.T) {
	first := Combine(contracts.ProgressRecord{Current: 40, Target: 100}, 50)
	assert.Equal(t, 90.0, first.NewTotal)
	assert.InDelta(t, 90, first.RawAchievement, 1e-9)
	assert.InDelta(t, 90, first.DisplayedAchievement, 1e-9)

	second := Combine(contracts.ProgressRecord{Current: first.NewTotal, Target: 100}, 30)
	assert.InDelta(t, 120, second.RawAchievement, 1e-9)
	assert.Equal(t, 100.0, second.DisplayedAchievement)
}

func TestCombine_ZeroTarget(t *testing.T) {
	c := Combine(contracts.ProgressRecord{Current: 10}, 5)
	assert.Equal(t, 15.0, c.NewTotal)
	assert.Zero(t, c.RawAchievement)
	assert.Zero(t, c.DisplayedAchievement)
}

func TestFold(t *testing.T) {
	tests := []struct {
		name          string
		typ           contracts.TargetType
		previous      contracts.ProgressRecord
		res           achievement.Result
		wantTotal     float64
		wantDisplayed float64
	}{
		{
			name:          "count adds to committed total",
			typ:           contracts.TargetCount,
			previous:      contracts.ProgressRecord{Current: 40, Target: 100},
			res:           achievement.Result{TotalReported: 50, TotalTarget: 100},
			wantTotal:     90,
			wantDisplayed: 90,
		},
		{
			name:          "record without target uses document target",
			typ:           contracts.TargetFinancial,
			previous:      contracts.ProgressRecord{Current: 100},
			res:           achievement.Result{TotalReported: 100, TotalTarget: 400},
			wantTotal:     200,
			wantDisplayed: 50,
		},
		{
			name:          "percentage adds to committed total and caps",
			typ:           contracts.TargetPercentage,
			previous:      contracts.ProgressRecord{Current: 40, Target: 80},
			res:           achievement.Result{TotalReported: 50, TotalTarget: 80},
			wantTotal:     90,
			wantDisplayed: 100,
		},
		{
			name:          "milestone achieved earlier stays achieved",
			typ:           contracts.TargetMilestone,
			previous:      contracts.ProgressRecord{Current: 1, Target: 1},
			res:           achievement.Result{},
			wantTotal:     1,
			wantDisplayed: 100,
		},
		{
			name:          "milestone not yet achieved",
			typ:           contracts.TargetTextCondition,
			res:           achievement.Result{},
			wantTotal:     0,
			wantDisplayed: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Fold(tt.typ, tt.previous, tt.res)
			assert.InDelta(t, tt.wantTotal, c.NewTotal, 1e-9)
			assert.InDelta(t, tt.wantDisplayed, c.DisplayedAchievement, 1e-9)
			assert.Equal(t, tt.previous.Current, c.PreviousCurrent)
		})
	}
}

func TestDocumentAchievement_IsUnweightedMean(t *testing.T) {
	assert.Zero(t, DocumentAchievement(nil))
	assert.InDelta(t, 70, DocumentAchievement([]float64{100, 40}), 1e-9)
	// five small KPIs and one large KPI weigh the same
	assert.InDelta(t, 100.0*5/6, DocumentAchievement([]float64{100, 100, 100, 100, 100, 0}), 1e-9)
}

func sampleActivities() []contracts.Activity {
	return []contracts.Activity{
		{Name: "Faculty survey", KRAID: "kra1", InitiativeID: "KRA1-KPI1", Reported: 70},
		{Name: "Student survey", KRAID: "KRA 1", InitiativeID: "kra1-kpi1", Reported: 90},
		{Name: "Extension program", KRAID: "KRA 2", InitiativeID: "KRA2-KPI1", Reported: 5},
		{Name: "Community outreach", KRAID: "KRA  2", InitiativeID: "KRA2-KPI1", Reported: 5},
		{Name: "Unknown", KRAID: "KRA 9", InitiativeID: "KRA9-KPI1", Reported: 3},
		{Name: "Unassigned", Reported: 1},
	}
}

func TestEvaluate_DocumentLocal(t *testing.T) {
	reg := plantest.Registry(t)

	s := Evaluate(reg, plantest.Year, sampleActivities(), nil)

	require.Len(t, s.Groups, 2)
	assert.False(t, s.Cumulative)

	pct := s.Groups[0]
	assert.Equal(t, contracts.GroupKey{KRAID: "KRA 1", InitiativeID: "KRA1-KPI1"}, pct.Key)
	assert.Equal(t, []int{0, 1}, pct.Indices)
	assert.InDelta(t, 80, pct.Aggregate.TotalReported, 1e-9)
	assert.InDelta(t, 100, pct.Progress.DisplayedAchievement, 1e-9)

	count := s.Groups[1]
	assert.Equal(t, []int{2, 3}, count.Indices)
	assert.InDelta(t, 40, count.Progress.DisplayedAchievement, 1e-9)
	assert.False(t, count.HasHistory)

	assert.InDelta(t, 70, s.DocumentAchievement, 1e-9)
	assert.Equal(t, []contracts.GroupKey{
		{KRAID: "KRA 9", InitiativeID: "KRA9-KPI1"},
		{},
	}, s.Unresolved)
}

func TestEvaluate_WithCommittedProgress(t *testing.T) {
	reg := plantest.Registry(t)
	snapshot := NewSnapshot([]contracts.ProgressRecord{
		{KRAID: "KRA 2", KPIID: "KRA2-KPI1", Year: plantest.Year, Current: 15, Target: 25, Version: 3},
	})

	s := Evaluate(reg, plantest.Year, sampleActivities(), snapshot)

	require.Len(t, s.Groups, 2)
	assert.True(t, s.Cumulative)

	count := s.Groups[1]
	assert.True(t, count.HasHistory)
	assert.Equal(t, int64(3), count.Version)
	assert.Equal(t, 25.0, count.Progress.NewTotal)
	assert.InDelta(t, 100, count.Progress.DisplayedAchievement, 1e-9)
	assert.InDelta(t, 100, s.DocumentAchievement, 1e-9)
}

func TestEvaluate_Idempotent(t *testing.T) {
	reg := plantest.Registry(t)
	activities := sampleActivities()

	first := Evaluate(reg, plantest.Year, activities, nil)
	second := Evaluate(reg, plantest.Year, activities, nil)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Evaluate not stable (-first +second):\n%s", diff)
	}
}

func TestEvaluate_PerUnitUsesPlanUnitCount(t *testing.T) {
	reg := plantest.Registry(t)
	activities := []contracts.Activity{
		{KRAID: "KRA 1", InitiativeID: "KRA1-KPI2", Reported: 9},
		{KRAID: "KRA 1", InitiativeID: "KRA1-KPI2", Reported: 9},
	}

	s := Evaluate(reg, plantest.Year, activities, nil)

	require.Len(t, s.Groups, 1)
	// 3 per college x 9 colleges, not x 2 activities
	assert.Equal(t, 27.0, s.Groups[0].Aggregate.TotalTarget)
	assert.InDelta(t, 100.0*18/27, s.Groups[0].Progress.DisplayedAchievement, 1e-9)
}

func TestNewContribution(t *testing.T) {
	reg := plantest.Registry(t)
	snapshot := NewSnapshot([]contracts.ProgressRecord{
		{KRAID: "KRA 2", KPIID: "KRA2-KPI1", Current: 15, Target: 25, Version: 3},
	})
	s := Evaluate(reg, plantest.Year, sampleActivities(), snapshot)

	c := NewContribution("an-1", reg.Hash(), 2, s)

	assert.Equal(t, "an-1", c.AnalysisID)
	assert.Equal(t, plantest.Year, c.Year)
	require.Len(t, c.Items, 2)
	assert.Equal(t, ContributionItem{
		KRAID:           "KRA 2",
		KPIID:           "KRA2-KPI1",
		Type:            contracts.TargetCount,
		Reported:        10,
		NewTotal:        25,
		Target:          25,
		RawAchievement:  100,
		ExpectedVersion: 3,
	}, c.Items[1])
}

func TestKRAIDs(t *testing.T) {
	assert.Equal(t, []string{"KRA 1", "KRA 2", "KRA 9"}, KRAIDs(sampleActivities()))
}

func TestQuarterOf(t *testing.T) {
	assert.Equal(t, 1, QuarterOf(time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, QuarterOf(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 4, QuarterOf(time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)))
}
