package contracts

import "strings"

// TargetType decides how activities are aggregated against a KPI target
type TargetType string

const (
	TargetCount         TargetType = "count"
	TargetPercentage    TargetType = "percentage"
	TargetFinancial     TargetType = "financial"
	TargetMilestone     TargetType = "milestone"
	TargetTextCondition TargetType = "text_condition"
)

// Valid reports whether t is one of the known target types
func (t TargetType) Valid() bool {
	switch t {
	case TargetCount, TargetPercentage, TargetFinancial, TargetMilestone, TargetTextCondition:
		return true
	}
	return false
}

// Binary reports whether the type is achieved/not-achieved per period
func (t TargetType) Binary() bool {
	return t == TargetMilestone || t == TargetTextCondition
}

// Additive reports whether reported values accumulate across documents.
// Everything except the binary types is additive, unknown types included.
func (t TargetType) Additive() bool {
	return !t.Binary()
}

// TargetScope says whether a target applies once or per organizational unit
type TargetScope string

const (
	ScopeInstitutional TargetScope = "INSTITUTIONAL"
	ScopePerUnit       TargetScope = "PER_UNIT"
)

// ParseScope returns PER_UNIT only for an explicit PER_UNIT marker.
// Anything else, including empty, is INSTITUTIONAL so that activity counts
// are never multiplied by a unit count the plan did not ask for.
func ParseScope(s string) TargetScope {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	if norm == string(ScopePerUnit) {
		return ScopePerUnit
	}
	return ScopeInstitutional
}

// StrategicPlan is the immutable catalog of KRAs and their KPIs
// ⭐ SSOT: the only source of valid KRA/KPI ids and targets
type StrategicPlan struct {
	Title      string             `json:"title" yaml:"title"`
	StartYear  int                `json:"start_year" yaml:"start_year"`
	EndYear    int                `json:"end_year" yaml:"end_year"`
	UnitCounts map[string]float64 `json:"unit_counts,omitempty" yaml:"unit_counts,omitempty"` // unit_basis -> number of units
	KRAs       []KRA              `json:"kras" yaml:"kras"`
}

// KRA is a Key Result Area
type KRA struct {
	KRAID            string       `json:"kra_id" yaml:"kra_id"`
	Title            string       `json:"kra_title" yaml:"kra_title"`
	GuidingPrinciple string       `json:"guiding_principle,omitempty" yaml:"guiding_principle,omitempty"`
	Initiatives      []Initiative `json:"initiatives" yaml:"initiatives"`
}

// Initiative is a KPI within a KRA
type Initiative struct {
	ID                 string     `json:"id" yaml:"id"`
	KPI                KPIText    `json:"key_performance_indicator" yaml:"key_performance_indicator"`
	Strategies         []string   `json:"strategies,omitempty" yaml:"strategies,omitempty"`
	Programs           []string   `json:"programs,omitempty" yaml:"programs,omitempty"`
	ResponsibleOffices []string   `json:"responsible_offices,omitempty" yaml:"responsible_offices,omitempty"`
	Targets            TargetSpec `json:"targets" yaml:"targets"`
}

// KPIText is the descriptive output/outcome text of an initiative
type KPIText struct {
	Outputs  string `json:"outputs" yaml:"outputs"`
	Outcomes string `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
}

// TargetSpec describes how an initiative is measured
type TargetSpec struct {
	Type      TargetType      `json:"type" yaml:"type"`
	Scope     string          `json:"scope,omitempty" yaml:"scope,omitempty"`
	UnitBasis string          `json:"unit_basis,omitempty" yaml:"unit_basis,omitempty"`
	Timeline  []TimelineEntry `json:"timeline" yaml:"timeline"`
}

// TimelineEntry is the target for one plan year
type TimelineEntry struct {
	Year        int    `json:"year" yaml:"year"`
	TargetValue Scalar `json:"target_value" yaml:"target_value"`
}

// Target is a resolved target for one KRA/KPI/year.
// Type is empty when the KRA or KPI could not be resolved; callers must treat
// that as "no target", never as a zero target.
type Target struct {
	KRAID          string      `json:"kraId"`
	InitiativeID   string      `json:"initiativeId"`
	Year           int         `json:"year"`
	Type           TargetType  `json:"targetType,omitempty"`
	Value          *float64    `json:"targetValue"`
	Text           string      `json:"targetText,omitempty"`
	Scope          TargetScope `json:"targetScope,omitempty"`
	UnitBasis      string      `json:"unitBasis,omitempty"`
	UnitMultiplier *float64    `json:"unitMultiplier,omitempty"`
	TimelineYear   int         `json:"timelineYear,omitempty"` // year of the timeline entry used
}

// Resolved reports whether both the KRA and the KPI were found
func (t Target) Resolved() bool {
	return t.Type != ""
}
