package plan

import (
	"github.com/wonny/stratplan/internal/contracts"
)

// ResolveTarget returns the target for a KRA/KPI in a given year. When the
// KRA or KPI cannot be resolved the returned Target has an empty Type and a
// nil Value.
func (r *Registry) ResolveTarget(kraID, initiativeID string, year int) contracts.Target {
	t := contracts.Target{
		KRAID:        NormalizeKRAID(kraID),
		InitiativeID: initiativeID,
		Year:         year,
	}

	ini, ok := r.Initiative(kraID, initiativeID)
	if !ok {
		return t
	}

	spec := ini.Targets
	t.InitiativeID = ini.ID
	t.Type = spec.Type
	t.Scope = contracts.ParseScope(spec.Scope)
	t.UnitBasis = spec.UnitBasis

	if t.Scope == contracts.ScopePerUnit && spec.UnitBasis != "" {
		if n, ok := r.UnitCount(spec.UnitBasis); ok {
			t.UnitMultiplier = &n
		}
	}

	if entry, ok := TargetValueForYear(spec.Timeline, year); ok {
		t.TimelineYear = entry.Year
		t.Value = entry.TargetValue.Number()
		t.Text = entry.TargetValue.String()
	}

	return t
}

// TargetValueForYear picks the timeline entry for year: the exact year,
// else the closest earlier year, else the earliest later year.
func TargetValueForYear(timeline []contracts.TimelineEntry, year int) (contracts.TimelineEntry, bool) {
	var (
		past, future       contracts.TimelineEntry
		hasPast, hasFuture bool
	)

	for _, e := range timeline {
		switch {
		case e.Year == year:
			return e, true
		case e.Year < year:
			if !hasPast || e.Year > past.Year {
				past, hasPast = e, true
			}
		default:
			if !hasFuture || e.Year < future.Year {
				future, hasFuture = e, true
			}
		}
	}

	if hasPast {
		return past, true
	}
	if hasFuture {
		return future, true
	}
	return contracts.TimelineEntry{}, false
}
