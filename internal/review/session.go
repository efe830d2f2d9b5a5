package review

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wonny/stratplan/internal/achievement"
	"github.com/wonny/stratplan/internal/contracts"
	"github.com/wonny/stratplan/internal/progress"
)

const (
	msgKRARequired = "KRA is required"
	msgKPIRequired = "KPI is required after changing the KRA"
)

// Session is the working copy of one analysis under review. Local edits
// apply immediately; network operations are serialized and a second one
// is refused while the first is pending.
type Session struct {
	ID string

	mu        sync.Mutex
	busy      bool
	analysis  contracts.Analysis
	changed   map[int]bool
	warnings  map[int]string
	snapshot  progress.Snapshot
	resolver  progress.Resolver
	keywords  KeywordTable
	touchedAt time.Time
}

// View is a read-only copy of the session state
type View struct {
	ID              string                   `json:"id"`
	AnalysisID      string                   `json:"analysisId"`
	Title           string                   `json:"title,omitempty"`
	Year            int                      `json:"year"`
	Status          contracts.AnalysisStatus `json:"status"`
	Activities      []contracts.Activity     `json:"activities"`
	Changed         []int                    `json:"changed"`
	Warnings        map[int]string           `json:"warnings,omitempty"`
	DocumentInsight string                   `json:"documentInsight,omitempty"`
	Summary         progress.Summary         `json:"summary"`
}

func newSession(id string, analysis contracts.Analysis, snapshot progress.Snapshot, resolver progress.Resolver, keywords KeywordTable, now time.Time) *Session {
	if analysis.Status == "" {
		analysis.Status = contracts.AnalysisDraft
	}
	analysis.Activities = append([]contracts.Activity(nil), analysis.Activities...)

	return &Session{
		ID:        id,
		analysis:  analysis,
		changed:   make(map[int]bool),
		warnings:  make(map[int]string),
		snapshot:  snapshot,
		resolver:  resolver,
		keywords:  keywords,
		touchedAt: now,
	}
}

// View returns a copy of the current state with a fresh evaluation
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	warnings := make(map[int]string, len(s.warnings))
	for i, w := range s.warnings {
		warnings[i] = w
	}

	return View{
		ID:              s.ID,
		AnalysisID:      s.analysis.ID,
		Title:           s.analysis.Title,
		Year:            s.analysis.Year,
		Status:          s.analysis.Status,
		Activities:      append([]contracts.Activity(nil), s.analysis.Activities...),
		Changed:         s.changedLocked(),
		Warnings:        warnings,
		DocumentInsight: s.analysis.DocumentInsight,
		Summary:         s.summaryLocked(),
	}
}

// Summary evaluates the working set against committed progress
func (s *Session) Summary() progress.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() progress.Summary {
	return progress.Evaluate(s.resolver, s.analysis.Year, s.analysis.Activities, s.snapshot)
}

// Status returns the review state
func (s *Session) Status() contracts.AnalysisStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis.Status
}

// EditKRA assigns a KRA, clears the KPI and marks the activity changed.
// The returned warning is non-empty when the activity name matches none of
// the KRA's keywords.
func (s *Session) EditKRA(index int, kraID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.editableLocked(index)
	if err != nil {
		return "", err
	}

	a.KRAID = strings.TrimSpace(kraID)
	a.InitiativeID = ""
	s.changed[index] = true

	delete(s.warnings, index)
	if a.KRAID != "" && s.keywords.Mismatch(a.KRAID, a.Name) {
		s.warnings[index] = "activity name does not look like " + a.KRAID
	}
	return s.warnings[index], nil
}

// EditKPI assigns a KPI under the activity's KRA and recomputes the
// activity's target and achievement for the analysis year
func (s *Session) EditKPI(index int, initiativeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.editableLocked(index)
	if err != nil {
		return err
	}
	if strings.TrimSpace(a.KRAID) == "" {
		return &ValidationError{Op: "edit KPI", Errors: map[int]string{index: msgKRARequired}}
	}

	a.InitiativeID = strings.TrimSpace(initiativeID)

	target := s.resolver.ResolveTarget(a.KRAID, a.InitiativeID, s.analysis.Year)
	switch {
	case target.Type.Binary():
		a.Target = 1
		if a.Reported > 0 {
			a.Reported = 1
		}
	case target.Value != nil:
		a.Target = *target.Value
	}
	recompute(a)
	return nil
}

// EditValues sets reported and target values and recomputes achievement
func (s *Session) EditValues(index int, reported, target float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.editableLocked(index)
	if err != nil {
		return err
	}

	a.Reported = reported
	a.Target = target
	recompute(a)
	return nil
}

// Delete removes an activity; changed markers and warnings of later
// activities move down by one
func (s *Session) Delete(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.editableLocked(index); err != nil {
		return err
	}

	acts := s.analysis.Activities
	s.analysis.Activities = append(acts[:index:index], acts[index+1:]...)

	changed := make(map[int]bool, len(s.changed))
	for i := range s.changed {
		switch {
		case i < index:
			changed[i] = true
		case i > index:
			changed[i-1] = true
		}
	}
	s.changed = changed

	warnings := make(map[int]string, len(s.warnings))
	for i, w := range s.warnings {
		switch {
		case i < index:
			warnings[i] = w
		case i > index:
			warnings[i-1] = w
		}
	}
	s.warnings = warnings
	return nil
}

// ValidateKPISelections checks that every KRA-changed activity has a KPI
func (s *Session) ValidateKPISelections() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateKPILocked("regenerate")
}

// ValidateKRAAssignments checks that every activity has a KRA
func (s *Session) ValidateKRAAssignments() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateKRALocked("approve")
}

// ValidateForApproval runs the same checks Approve does, reported as "approve"
func (s *Session) ValidateForApproval() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateApprovalLocked()
}

// Recompute refreshes achievement and status of every activity from its
// reported and target values. On an unedited set this changes nothing.
func (s *Session) Recompute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.analysis.Activities {
		recompute(&s.analysis.Activities[i])
	}
}

func (s *Session) validateKPILocked(op string) error {
	errs := make(map[int]string)
	for i := range s.changed {
		if strings.TrimSpace(s.analysis.Activities[i].InitiativeID) == "" {
			errs[i] = msgKPIRequired
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Op: op, Errors: errs}
	}
	return nil
}

func (s *Session) validateKRALocked(op string) error {
	errs := make(map[int]string)
	for i, a := range s.analysis.Activities {
		if strings.TrimSpace(a.KRAID) == "" {
			errs[i] = msgKRARequired
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Op: op, Errors: errs}
	}
	return nil
}

// validateApprovalLocked runs the KRA check, then the KPI check
func (s *Session) validateApprovalLocked() error {
	if err := s.validateKRALocked("approve"); err != nil {
		return err
	}
	return s.validateKPILocked("approve")
}

func (s *Session) editableLocked(index int) (*contracts.Activity, error) {
	if s.analysis.Status.Terminal() {
		return nil, ErrSessionClosed
	}
	if s.busy {
		return nil, ErrOperationInFlight
	}
	if index < 0 || index >= len(s.analysis.Activities) {
		return nil, ErrIndexOutOfRange
	}
	return &s.analysis.Activities[index], nil
}

func (s *Session) changedLocked() []int {
	out := make([]int, 0, len(s.changed))
	for i := range s.changed {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// begin marks a network operation as pending. Callers must call end.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.analysis.Status.Terminal() {
		return ErrSessionClosed
	}
	if s.busy {
		return ErrOperationInFlight
	}
	s.busy = true
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.touchedAt = now
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.busy && now.Sub(s.touchedAt) > ttl
}

func recompute(a *contracts.Activity) {
	a.Achievement, a.Status = achievement.ActivityAchievement(a.Reported, a.Target)
}
