package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/stratplan/internal/contracts"
	"github.com/wonny/stratplan/internal/progress"
	"github.com/wonny/stratplan/pkg/logger"
)

// progressFetchLimit bounds concurrent progress fetches per document
const progressFetchLimit = 4

// AnalysisGateway is the authoritative store of analyses and approvals
type AnalysisGateway interface {
	GetAnalysis(ctx context.Context, analysisID string) (contracts.Analysis, error)
	SaveActivities(ctx context.Context, analysisID string, activities []contracts.Activity) error
	Approve(ctx context.Context, analysisID string) error
	Reject(ctx context.Context, analysisID, reason string) error
}

// InsightGenerator rewrites the narrative fields of reclassified activities
type InsightGenerator interface {
	Regenerate(ctx context.Context, analysisID string, items []contracts.RegenerationItem) (contracts.RegenerationResult, error)
}

// Catalog resolves targets and identifies the plan version
type Catalog interface {
	progress.Resolver
	Hash() string
}

// Deps are the collaborators of a Service. Progress and Committer may be
// nil: without a progress source achievements are document-local, and
// without a committer approval does not record progress locally.
type Deps struct {
	Gateway   AnalysisGateway
	Insights  InsightGenerator
	Progress  progress.Source
	Committer progress.Committer
	Catalog   Catalog
	Keywords  KeywordTable
	Store     *Store
	Logger    *logger.Logger
}

// Service runs the review workflow over sessions
type Service struct {
	gateway   AnalysisGateway
	insights  InsightGenerator
	source    progress.Source
	committer progress.Committer
	catalog   Catalog
	keywords  KeywordTable
	store     *Store
	logger    *logger.Logger
	now       func() time.Time
}

// ApprovalResult reports an approval. A failed progress commit does not
// undo the approval; it is reported in CommitError.
type ApprovalResult struct {
	SessionID   string                   `json:"sessionId"`
	AnalysisID  string                   `json:"analysisId"`
	Status      contracts.AnalysisStatus `json:"status"`
	Summary     progress.Summary         `json:"summary"`
	Committed   bool                     `json:"committed"`
	CommitError string                   `json:"commitError,omitempty"`
}

// NewService creates a review service
func NewService(d Deps) *Service {
	keywords := d.Keywords
	if keywords == nil {
		keywords = DefaultKeywords()
	}

	return &Service{
		gateway:   d.Gateway,
		insights:  d.Insights,
		source:    d.Progress,
		committer: d.Committer,
		catalog:   d.Catalog,
		keywords:  keywords,
		store:     d.Store,
		logger:    d.Logger.Component("review"),
		now:       time.Now,
	}
}

// Open fetches an analysis and its committed progress and starts a session.
// A progress failure is logged and the session falls back to
// document-local achievement.
func (svc *Service) Open(ctx context.Context, analysisID string) (*Session, error) {
	analysis, err := svc.gateway.GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("fetch analysis %s: %w", analysisID, err)
	}

	snapshot := svc.fetchSnapshot(ctx, analysis.Year, analysis.Activities)
	s := newSession(uuid.NewString(), analysis, snapshot, svc.catalog, svc.keywords, svc.now())
	svc.store.Put(s)

	svc.logger.WithFields(map[string]interface{}{
		"session_id":  s.ID,
		"analysis_id": analysisID,
		"activities":  len(analysis.Activities),
		"cumulative":  snapshot != nil,
	}).Info("Review session opened")

	return s, nil
}

// Session returns an open session
func (svc *Service) Session(id string) (*Session, error) {
	return svc.store.Get(id)
}

// Regenerate sends the KRA-changed activities to the insight generator,
// merges the returned fields and reconciles with a refetched analysis
func (svc *Service) Regenerate(ctx context.Context, sessionID string) (View, error) {
	s, err := svc.store.Get(sessionID)
	if err != nil {
		return View{}, err
	}
	if err := s.begin(); err != nil {
		return View{}, err
	}
	defer s.end()

	s.mu.Lock()
	if err := s.validateKPILocked("regenerate"); err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	analysisID := s.analysis.ID
	items := make([]contracts.RegenerationItem, 0, len(s.changed))
	for _, i := range s.changedLocked() {
		a := s.analysis.Activities[i]
		a.UserSelectedKPI = true
		items = append(items, contracts.RegenerationItem{Index: i, Activity: a})
	}
	s.mu.Unlock()

	if len(items) == 0 {
		return s.View(), nil
	}

	result, err := svc.insights.Regenerate(ctx, analysisID, items)
	if err != nil {
		svc.logger.WithError(err).Analysis(analysisID).Warn("Insight regeneration failed")
		return View{}, fmt.Errorf("regenerate insights: %w", err)
	}
	s.applyRegeneration(items, result)

	fresh, err := svc.gateway.GetAnalysis(ctx, analysisID)
	if err != nil {
		svc.logger.WithError(err).Analysis(analysisID).Warn("Refetch after regeneration failed, keeping local copy")
	} else if !s.reconcile(fresh) {
		svc.logger.Analysis(analysisID).Warn("Refetched analysis does not match the working set, keeping local copy")
	}

	return s.View(), nil
}

// Approve validates the working set, persists it and only then approves.
// A persistence failure aborts before the approval call.
func (svc *Service) Approve(ctx context.Context, sessionID string) (ApprovalResult, error) {
	s, err := svc.store.Get(sessionID)
	if err != nil {
		return ApprovalResult{}, err
	}
	if err := s.begin(); err != nil {
		return ApprovalResult{}, err
	}
	defer s.end()

	s.mu.Lock()
	err = s.validateApprovalLocked()
	analysisID := s.analysis.ID
	activities := append([]contracts.Activity(nil), s.analysis.Activities...)
	s.mu.Unlock()
	if err != nil {
		return ApprovalResult{}, err
	}

	if err := svc.gateway.SaveActivities(ctx, analysisID, activities); err != nil {
		return ApprovalResult{}, fmt.Errorf("persist activities: %w", err)
	}
	if err := svc.gateway.Approve(ctx, analysisID); err != nil {
		return ApprovalResult{}, fmt.Errorf("approve analysis: %w", err)
	}

	s.mu.Lock()
	s.analysis.Status = contracts.AnalysisApproved
	s.changed = make(map[int]bool)
	s.mu.Unlock()

	result := ApprovalResult{SessionID: s.ID, AnalysisID: analysisID, Status: contracts.AnalysisApproved}
	summary, committed, err := svc.commit(ctx, s)
	result.Summary = summary
	result.Committed = committed
	if err != nil {
		result.CommitError = err.Error()
		svc.logger.WithError(err).Analysis(analysisID).Error("Progress commit failed after approval")
	}

	svc.logger.WithFields(map[string]interface{}{
		"analysis_id":          analysisID,
		"document_achievement": summary.DocumentAchievement,
		"committed":            committed,
	}).Info("Analysis approved")

	return result, nil
}

// Reject rejects the analysis and closes the session
func (svc *Service) Reject(ctx context.Context, sessionID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}

	s, err := svc.store.Get(sessionID)
	if err != nil {
		return err
	}
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	s.mu.Lock()
	analysisID := s.analysis.ID
	s.mu.Unlock()

	if err := svc.gateway.Reject(ctx, analysisID, reason); err != nil {
		return fmt.Errorf("reject analysis: %w", err)
	}

	s.mu.Lock()
	s.analysis.Status = contracts.AnalysisRejected
	s.mu.Unlock()
	svc.store.Delete(s.ID)

	svc.logger.Analysis(analysisID).Info("Analysis rejected")
	return nil
}

// SweepExpired drops idle sessions
func (svc *Service) SweepExpired() int {
	return svc.store.Sweep()
}

// commit folds the approved document into committed progress. A version
// conflict triggers one refetch and retry.
func (svc *Service) commit(ctx context.Context, s *Session) (progress.Summary, bool, error) {
	s.mu.Lock()
	analysis := s.analysis
	activities := append([]contracts.Activity(nil), s.analysis.Activities...)
	summary := s.summaryLocked()
	s.mu.Unlock()

	if svc.committer == nil {
		return summary, false, nil
	}

	quarter := analysis.Quarter
	if quarter < 1 || quarter > 4 {
		quarter = progress.QuarterOf(svc.now())
	}

	err := svc.committer.Commit(ctx, progress.NewContribution(analysis.ID, svc.catalog.Hash(), quarter, summary))
	if errors.Is(err, progress.ErrVersionConflict) {
		svc.logger.Analysis(analysis.ID).Warn("Progress changed since review opened, retrying commit")

		snapshot := svc.fetchSnapshot(ctx, analysis.Year, activities)
		if snapshot == nil {
			return summary, false, err
		}

		s.mu.Lock()
		s.snapshot = snapshot
		s.mu.Unlock()

		summary = progress.Evaluate(svc.catalog, analysis.Year, activities, snapshot)
		err = svc.committer.Commit(ctx, progress.NewContribution(analysis.ID, svc.catalog.Hash(), quarter, summary))
	}

	return summary, err == nil, err
}

// fetchSnapshot loads committed progress for every KRA of the document in
// parallel. It returns nil when no progress context is available.
func (svc *Service) fetchSnapshot(ctx context.Context, year int, activities []contracts.Activity) progress.Snapshot {
	if svc.source == nil {
		return nil
	}

	kras := progress.KRAIDs(activities)
	results := make([][]contracts.ProgressRecord, len(kras))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(progressFetchLimit)
	for i, kra := range kras {
		g.Go(func() error {
			records, err := svc.source.Fetch(gctx, kra, year)
			if err != nil {
				return fmt.Errorf("fetch progress for %s: %w", kra, err)
			}
			results[i] = records
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		svc.logger.WithError(err).WithField("year", year).Warn("Progress unavailable, using document-local achievement")
		return nil
	}

	var all []contracts.ProgressRecord
	for _, records := range results {
		all = append(all, records...)
	}
	return progress.NewSnapshot(all)
}

// applyRegeneration merges returned insight fields and clears the changed
// markers of the regenerated activities
func (s *Session) applyRegeneration(items []contracts.RegenerationItem, result contracts.RegenerationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range result.Activities {
		if r.Index < 0 || r.Index >= len(s.analysis.Activities) {
			continue
		}
		a := &s.analysis.Activities[r.Index]
		if r.Insight != "" {
			a.Insight = r.Insight
		}
		if r.Prescriptive != "" {
			a.Prescriptive = r.Prescriptive
		}
	}

	for _, item := range items {
		if item.Index < len(s.analysis.Activities) {
			s.analysis.Activities[item.Index].UserSelectedKPI = true
		}
		delete(s.changed, item.Index)
	}

	if result.DocumentInsight != "" {
		s.analysis.DocumentInsight = result.DocumentInsight
	}
}

// reconcile takes server-side narrative fields from a refetched analysis.
// Local assignments and values stay authoritative until approval persists
// them, and local regenerated fields survive when the refetch lacks them.
// It returns false when the refetch does not line up with the working set.
func (s *Session) reconcile(fresh contracts.Analysis) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(fresh.Activities) != len(s.analysis.Activities) {
		return false
	}

	for i := range s.analysis.Activities {
		local := &s.analysis.Activities[i]
		remote := fresh.Activities[i]
		if remote.Insight != "" {
			local.Insight = remote.Insight
		}
		if remote.Prescriptive != "" {
			local.Prescriptive = remote.Prescriptive
		}
		if remote.Confidence != 0 {
			local.Confidence = remote.Confidence
		}
	}

	if fresh.DocumentInsight != "" {
		s.analysis.DocumentInsight = fresh.DocumentInsight
	}
	if fresh.Title != "" {
		s.analysis.Title = fresh.Title
	}
	return true
}
