package contracts

import "strings"

// ActivityStatus is MET when achievement reaches 100%
type ActivityStatus string

const (
	StatusMet    ActivityStatus = "MET"
	StatusMissed ActivityStatus = "MISSED"
)

// Activity is one reported line item extracted from a document
type Activity struct {
	Name         string         `json:"name"`
	KRAID        string         `json:"kraId"`
	InitiativeID string         `json:"initiativeId"`
	Reported     float64        `json:"reported"`
	Target       float64        `json:"target"`
	Achievement  float64        `json:"achievement"`
	Status       ActivityStatus `json:"status"`
	Confidence   float64        `json:"confidence"`

	// Narrative fields written by the insight generator
	Insight         string `json:"aiInsight,omitempty"`
	Prescriptive    string `json:"prescriptiveAnalysis,omitempty"`
	UserSelectedKPI bool   `json:"userSelectedKPI,omitempty"`
}

// Key returns the aggregation group of the activity
func (a Activity) Key() GroupKey {
	return GroupKey{KRAID: a.KRAID, InitiativeID: a.InitiativeID}
}

// GroupKey identifies an aggregation group: activities sharing KRA and KPI
type GroupKey struct {
	KRAID        string `json:"kraId"`
	InitiativeID string `json:"initiativeId"`
}

// Complete reports whether both ids are set
func (k GroupKey) Complete() bool {
	return strings.TrimSpace(k.KRAID) != "" && strings.TrimSpace(k.InitiativeID) != ""
}

// AnalysisStatus is the review state of an analysis
type AnalysisStatus string

const (
	AnalysisDraft    AnalysisStatus = "DRAFT"
	AnalysisApproved AnalysisStatus = "APPROVED"
	AnalysisRejected AnalysisStatus = "REJECTED"
)

// Terminal reports whether no further edits are allowed
func (s AnalysisStatus) Terminal() bool {
	return s == AnalysisApproved || s == AnalysisRejected
}

// Analysis is one parsed report and its extracted activities, already
// normalized to the flat activity shape
type Analysis struct {
	ID              string         `json:"id"`
	Title           string         `json:"title,omitempty"`
	Year            int            `json:"year"`
	Quarter         int            `json:"quarter,omitempty"`
	Status          AnalysisStatus `json:"status"`
	Activities      []Activity     `json:"activities"`
	DocumentInsight string         `json:"documentInsight,omitempty"`
}

// RegenerationItem is an activity sent to the insight generator. The KPI is
// reviewer-confirmed and must not be re-matched.
type RegenerationItem struct {
	Index int `json:"index"`
	Activity
}

// RegeneratedActivity carries the fields returned for one RegenerationItem
type RegeneratedActivity struct {
	Index        int    `json:"index"`
	Insight      string `json:"aiInsight,omitempty"`
	Prescriptive string `json:"prescriptiveAnalysis,omitempty"`
}

// RegenerationResult is the insight generator response
type RegenerationResult struct {
	Activities      []RegeneratedActivity `json:"activities"`
	DocumentInsight string                `json:"documentInsight,omitempty"`
}
