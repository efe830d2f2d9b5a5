package review

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stratplan/internal/contracts"
	"github.com/wonny/stratplan/internal/plan/plantest"
	"github.com/wonny/stratplan/internal/progress"
	"github.com/wonny/stratplan/pkg/logger"
)

type fakeGateway struct {
	mu         sync.Mutex
	analysis   contracts.Analysis
	refetch    *contracts.Analysis
	refetchErr error
	saveErr    error
	approveErr error
	calls      []string
	saved      []contracts.Activity
	reason     string
}

func (g *fakeGateway) GetAnalysis(ctx context.Context, id string) (contracts.Analysis, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "get")

	if len(g.calls) > 1 {
		if g.refetchErr != nil {
			return contracts.Analysis{}, g.refetchErr
		}
		if g.refetch != nil {
			return *g.refetch, nil
		}
	}
	a := g.analysis
	a.Activities = append([]contracts.Activity(nil), g.analysis.Activities...)
	return a, nil
}

func (g *fakeGateway) SaveActivities(ctx context.Context, id string, activities []contracts.Activity) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "save")
	if g.saveErr != nil {
		return g.saveErr
	}
	g.saved = activities
	return nil
}

func (g *fakeGateway) Approve(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "approve")
	return g.approveErr
}

func (g *fakeGateway) Reject(ctx context.Context, id, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "reject")
	g.reason = reason
	return nil
}

func (g *fakeGateway) networkCalls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	// the initial fetch is not part of the operation under test
	return append([]string(nil), g.calls[1:]...)
}

type fakeInsights struct {
	items  []contracts.RegenerationItem
	result contracts.RegenerationResult
	err    error
}

func (f *fakeInsights) Regenerate(ctx context.Context, analysisID string, items []contracts.RegenerationItem) (contracts.RegenerationResult, error) {
	f.items = items
	return f.result, f.err
}

type fakeProgress struct {
	mu      sync.Mutex
	records []contracts.ProgressRecord
	err     error
	fetches int
}

func (f *fakeProgress) Fetch(ctx context.Context, kraID string, year int) ([]contracts.ProgressRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	var out []contracts.ProgressRecord
	for _, r := range f.records {
		if r.KRAID == kraID && r.Year == year {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeCommitter struct {
	errs    []error
	commits []progress.Contribution
}

func (f *fakeCommitter) Commit(ctx context.Context, c progress.Contribution) error {
	f.commits = append(f.commits, c)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func sampleAnalysis() contracts.Analysis {
	return contracts.Analysis{
		ID:      "an-1",
		Title:   "Q2 accomplishment report",
		Year:    plantest.Year,
		Quarter: 2,
		Status:  contracts.AnalysisDraft,
		Activities: []contracts.Activity{
			{Name: "Faculty development survey", KRAID: "KRA 1", InitiativeID: "KRA1-KPI1", Reported: 70, Target: 80},
			{Name: "Research colloquium", KRAID: "KRA 2", InitiativeID: "KRA2-KPI1", Reported: 5, Target: 25},
			{Name: "Income generating project", KRAID: "KRA 5", InitiativeID: "KRA5-KPI1", Reported: 250000, Target: 1000000},
		},
	}
}

type fixture struct {
	svc       *Service
	gateway   *fakeGateway
	insights  *fakeInsights
	progress  *fakeProgress
	committer *fakeCommitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		gateway:  &fakeGateway{analysis: sampleAnalysis()},
		insights: &fakeInsights{},
		progress: &fakeProgress{records: []contracts.ProgressRecord{
			{KRAID: "KRA 2", KPIID: "KRA2-KPI1", Year: plantest.Year, Current: 15, Target: 25, Version: 2},
		}},
		committer: &fakeCommitter{},
	}
	f.svc = NewService(Deps{
		Gateway:   f.gateway,
		Insights:  f.insights,
		Progress:  f.progress,
		Committer: f.committer,
		Catalog:   plantest.Registry(t),
		Store:     NewStore(time.Hour),
		Logger:    logger.Nop(),
	})
	return f
}

func (f *fixture) open(t *testing.T) *Session {
	t.Helper()
	s, err := f.svc.Open(context.Background(), "an-1")
	require.NoError(t, err)
	return s
}

func TestOpen_UsesCommittedProgress(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	sum := s.Summary()
	assert.True(t, sum.Cumulative)
	require.Len(t, sum.Groups, 3)
	// 15 committed + 5 reported of 25
	assert.InDelta(t, 80, sum.Groups[1].Progress.DisplayedAchievement, 1e-9)
	assert.Equal(t, 3, f.progress.fetches)
}

func TestOpen_ProgressFailureFallsBackToDocumentLocal(t *testing.T) {
	f := newFixture(t)
	f.progress.err = errors.New("connection refused")

	s := f.open(t)

	sum := s.Summary()
	assert.False(t, sum.Cumulative)
	assert.InDelta(t, 20, sum.Groups[1].Progress.DisplayedAchievement, 1e-9)
}

func TestOpen_AnalysisFetchFails(t *testing.T) {
	f := newFixture(t)
	f.svc.gateway = failingGateway{f.gateway}

	_, err := f.svc.Open(context.Background(), "an-1")
	assert.Error(t, err)
}

type failingGateway struct{ *fakeGateway }

func (failingGateway) GetAnalysis(ctx context.Context, id string) (contracts.Analysis, error) {
	return contracts.Analysis{}, errors.New("404 not found")
}

func TestEditKRA_ClearsKPIAndWarnsOnMismatch(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	warning, err := s.EditKRA(1, "KRA 5")
	require.NoError(t, err)
	assert.NotEmpty(t, warning)

	warning, err = s.EditKRA(0, "kra1")
	require.NoError(t, err)
	assert.Empty(t, warning)

	v := s.View()
	assert.Empty(t, v.Activities[1].InitiativeID)
	assert.Equal(t, []int{0, 1}, v.Changed)
	assert.Contains(t, v.Warnings, 1)
}

func TestEditKPI_RequiresKRA(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	_, err := s.EditKRA(0, "")
	require.NoError(t, err)

	err = s.EditKPI(0, "KRA1-KPI1")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, msgKRARequired, verr.Errors[0])
}

func TestEditKPI_ResolvesTargetForAnalysisYear(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	_, err := s.EditKRA(2, "KRA 2")
	require.NoError(t, err)
	require.NoError(t, s.EditKPI(2, "kpi 1"))

	a := s.View().Activities[2]
	assert.Equal(t, "kpi 1", a.InitiativeID)
	assert.Equal(t, 25.0, a.Target)
	assert.InDelta(t, 1_000_000, a.Achievement, 1e-6)
	assert.Equal(t, contracts.StatusMet, a.Status)
}

func TestEditKPI_MilestoneIsBinary(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	_, err := s.EditKRA(2, "KRA 5")
	require.NoError(t, err)
	require.NoError(t, s.EditKPI(2, "KRA5-KPI2"))

	a := s.View().Activities[2]
	assert.Equal(t, 1.0, a.Target)
	assert.Equal(t, 1.0, a.Reported)
	assert.Equal(t, contracts.StatusMet, a.Status)
}

func TestEditValues_Recomputes(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	require.NoError(t, s.EditValues(0, 90, 80))
	a := s.View().Activities[0]
	assert.InDelta(t, 112.5, a.Achievement, 1e-9)
	assert.Equal(t, contracts.StatusMet, a.Status)

	require.NoError(t, s.EditValues(0, 40, 80))
	a = s.View().Activities[0]
	assert.InDelta(t, 50, a.Achievement, 1e-9)
	assert.Equal(t, contracts.StatusMissed, a.Status)

	assert.ErrorIs(t, s.EditValues(7, 1, 1), ErrIndexOutOfRange)
}

func TestDelete_ReindexesChanged(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	_, err := s.EditKRA(0, "KRA 3")
	require.NoError(t, err)
	_, err = s.EditKRA(2, "KRA 3")
	require.NoError(t, err)

	require.NoError(t, s.Delete(1))

	v := s.View()
	require.Len(t, v.Activities, 2)
	assert.Equal(t, "Income generating project", v.Activities[1].Name)
	assert.Equal(t, []int{0, 1}, v.Changed)
	assert.Contains(t, v.Warnings, 1)

	require.NoError(t, s.Delete(0))
	assert.Equal(t, []int{0}, s.View().Changed)
}

func TestValidation(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	assert.NoError(t, s.ValidateKRAAssignments())
	assert.NoError(t, s.ValidateKPISelections())

	_, err := s.EditKRA(1, "KRA 3")
	require.NoError(t, err)
	_, err = s.EditKRA(2, "")
	require.NoError(t, err)

	err = s.ValidateKPISelections()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[int]string{1: msgKPIRequired, 2: msgKPIRequired}, verr.Errors)

	err = s.ValidateKRAAssignments()
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[int]string{2: msgKRARequired}, verr.Errors)
	assert.Contains(t, err.Error(), "activity 2: KRA is required")
}

func TestValidateForApproval_ReportsApproveOp(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	require.NoError(t, s.ValidateForApproval())

	// KRA present but no KPI picked: the KPI check fails under the approve op
	_, err := s.EditKRA(1, "KRA 3")
	require.NoError(t, err)

	err = s.ValidateForApproval()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "approve", verr.Op)
	assert.Equal(t, map[int]string{1: msgKPIRequired}, verr.Errors)
	assert.True(t, strings.HasPrefix(err.Error(), "approve blocked:"), err.Error())
}

func TestApprove_RefusedWithoutKRA(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	_, err := s.EditKRA(0, "")
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), s.ID)
	assert.True(t, IsValidation(err))
	assert.Empty(t, f.gateway.networkCalls())
	assert.Equal(t, contracts.AnalysisDraft, s.Status())
}

func TestApprove_RefusedWhenChangedActivityLacksKPI(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	_, err := s.EditKRA(1, "KRA 5")
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), s.ID)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[int]string{1: msgKPIRequired}, verr.Errors)
	assert.Empty(t, f.gateway.networkCalls())
}

func TestApprove_PersistFailureAborts(t *testing.T) {
	f := newFixture(t)
	persistErr := errors.New("PATCH /analyses/an-1: unexpected status 500")
	f.gateway.saveErr = persistErr
	s := f.open(t)

	_, err := f.svc.Approve(context.Background(), s.ID)
	assert.ErrorIs(t, err, persistErr)
	assert.Contains(t, err.Error(), persistErr.Error())
	assert.Equal(t, []string{"save"}, f.gateway.networkCalls())
	assert.Equal(t, contracts.AnalysisDraft, s.Status())
	assert.Empty(t, f.committer.commits)
}

func TestApprove_PersistsApprovesAndCommits(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	require.NoError(t, s.EditValues(1, 6, 25))

	res, err := f.svc.Approve(context.Background(), s.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"save", "approve"}, f.gateway.networkCalls())
	assert.Equal(t, 6.0, f.gateway.saved[1].Reported)
	assert.Equal(t, contracts.AnalysisApproved, res.Status)
	assert.True(t, res.Committed)

	require.Len(t, f.committer.commits, 1)
	c := f.committer.commits[0]
	assert.Equal(t, "an-1", c.AnalysisID)
	assert.Equal(t, 2, c.Quarter)
	assert.Equal(t, plantest.Registry(t).Hash(), c.PlanHash)
	require.Len(t, c.Items, 3)
	assert.Equal(t, int64(2), c.Items[1].ExpectedVersion)
	assert.Equal(t, 21.0, c.Items[1].NewTotal)

	assert.ErrorIs(t, s.EditValues(0, 1, 1), ErrSessionClosed)
	_, err = f.svc.Approve(context.Background(), s.ID)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestApprove_RetriesOnceOnVersionConflict(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	// another analysis committed meanwhile
	f.progress.records[0].Current = 20
	f.progress.records[0].Version = 3
	f.committer.errs = []error{progress.ErrVersionConflict}

	res, err := f.svc.Approve(context.Background(), s.ID)
	require.NoError(t, err)

	assert.True(t, res.Committed)
	require.Len(t, f.committer.commits, 2)
	retry := f.committer.commits[1].Items[1]
	assert.Equal(t, int64(3), retry.ExpectedVersion)
	assert.Equal(t, 25.0, retry.NewTotal)
}

func TestApprove_CommitFailureIsReported(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	f.committer.errs = []error{progress.ErrVersionConflict, progress.ErrVersionConflict}

	res, err := f.svc.Approve(context.Background(), s.ID)
	require.NoError(t, err)

	assert.Equal(t, contracts.AnalysisApproved, res.Status)
	assert.False(t, res.Committed)
	assert.Contains(t, res.CommitError, "modified concurrently")
}

func TestRegenerate_SendsChangedAndPreservesLocalFields(t *testing.T) {
	f := newFixture(t)
	refetched := sampleAnalysis()
	refetched.DocumentInsight = ""
	f.gateway.refetch = &refetched
	f.insights.result = contracts.RegenerationResult{
		Activities: []contracts.RegeneratedActivity{
			{Index: 1, Insight: "Outreach exceeded plan", Prescriptive: "Sustain partnerships"},
		},
		DocumentInsight: "Strong extension quarter",
	}
	s := f.open(t)

	_, err := s.EditKRA(1, "KRA 3")
	require.NoError(t, err)

	_, err = f.svc.Regenerate(context.Background(), s.ID)
	assert.True(t, IsValidation(err))
	assert.Nil(t, f.insights.items)

	require.NoError(t, s.EditKPI(1, "KRA3-KPI1"))
	v, err := f.svc.Regenerate(context.Background(), s.ID)
	require.NoError(t, err)

	require.Len(t, f.insights.items, 1)
	assert.Equal(t, 1, f.insights.items[0].Index)
	assert.True(t, f.insights.items[0].UserSelectedKPI)

	assert.Empty(t, v.Changed)
	assert.Equal(t, "KRA 3", v.Activities[1].KRAID)
	assert.Equal(t, "Outreach exceeded plan", v.Activities[1].Insight)
	assert.Equal(t, "Sustain partnerships", v.Activities[1].Prescriptive)
	assert.True(t, v.Activities[1].UserSelectedKPI)
	assert.Equal(t, "Strong extension quarter", v.DocumentInsight)
}

func TestRegenerate_FailureKeepsChanges(t *testing.T) {
	f := newFixture(t)
	f.insights.err = errors.New("timeout")
	s := f.open(t)

	_, err := s.EditKRA(0, "KRA 1")
	require.NoError(t, err)
	require.NoError(t, s.EditKPI(0, "KRA1-KPI1"))

	_, err = f.svc.Regenerate(context.Background(), s.ID)
	assert.Error(t, err)
	assert.Equal(t, []int{0}, s.View().Changed)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	assert.ErrorIs(t, f.svc.Reject(context.Background(), s.ID, "  "), ErrReasonRequired)

	require.NoError(t, f.svc.Reject(context.Background(), s.ID, "wrong reporting period"))
	assert.Equal(t, "wrong reporting period", f.gateway.reason)
	assert.Equal(t, contracts.AnalysisRejected, s.Status())

	_, err := f.svc.Session(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestOperationInFlightIsRefused(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	require.NoError(t, s.begin())
	defer s.end()

	assert.ErrorIs(t, s.EditValues(0, 1, 1), ErrOperationInFlight)
	_, err := f.svc.Approve(context.Background(), s.ID)
	assert.ErrorIs(t, err, ErrOperationInFlight)
	assert.Empty(t, f.gateway.networkCalls())
}

func TestRecomputeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	s.Recompute()

	before := s.View()
	a := before.Activities[1]
	require.NoError(t, s.EditValues(1, a.Reported, a.Target))
	after := s.View()

	if diff := cmp.Diff(before.Activities, after.Activities); diff != "" {
		t.Errorf("activities changed after no-op edit (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(before.Summary, after.Summary); diff != "" {
		t.Errorf("summary changed after no-op edit (-before +after):\n%s", diff)
	}
}

func TestStore_EvictsOnRead(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	st := NewStore(time.Minute)
	st.now = func() time.Time { return now }

	s := newSession("s-1", sampleAnalysis(), nil, plantest.Registry(t), DefaultKeywords(), now)
	st.Put(s)
	st.Put(newSession("s-2", sampleAnalysis(), nil, plantest.Registry(t), DefaultKeywords(), now))

	now = now.Add(30 * time.Second)
	_, err := st.Get("s-1")
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	_, err = st.Get("s-1")
	require.NoError(t, err, "read refreshed the idle timer")
	_, err = st.Get("s-2")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 1, st.Len())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, st.Sweep())
	assert.Zero(t, st.Len())
}

func TestKeywordTable(t *testing.T) {
	table := DefaultKeywords()
	assert.False(t, table.Mismatch("kra 2", "Annual Research Congress"))
	assert.True(t, table.Mismatch("KRA 2", "Sports festival"))
	assert.False(t, table.Mismatch("KRA 9", "anything"))

	loaded, err := LoadKeywords("testdata/keywords.yaml")
	require.NoError(t, err)
	assert.Equal(t, KeywordTable{
		"KRA 1": {"instruction", "faculty"},
		"KRA 7": {"sports"},
	}, loaded)
	assert.False(t, loaded.Mismatch("KRA 7", "Intramural Sports Fest"))

	_, err = LoadKeywords("testdata/missing.yaml")
	assert.Error(t, err)
}
