// Package plantest provides a small strategic plan for tests of packages
// that depend on the registry.
package plantest

import (
	"testing"

	"github.com/wonny/stratplan/internal/contracts"
	"github.com/wonny/stratplan/internal/plan"
)

// Year is the plan year the sample targets are defined for
const Year = 2025

// Plan returns a fresh sample plan:
//
//	KRA 1 / KRA1-KPI1  percentage  80 (2025)
//	KRA 1 / KRA1-KPI2  count       3 per college, 9 colleges
//	KRA 2 / KRA2-KPI1  count       25
//	KRA 5 / KRA5-KPI1  financial   1,000,000
//	KRA 5 / KRA5-KPI2  milestone   "Policy approved"
func Plan() *contracts.StrategicPlan {
	return &contracts.StrategicPlan{
		Title:      "Sample plan",
		StartYear:  2023,
		EndYear:    2028,
		UnitCounts: map[string]float64{"college": 9},
		KRAs: []contracts.KRA{
			{
				KRAID: "KRA 1",
				Title: "Quality and Relevant Instruction",
				Initiatives: []contracts.Initiative{
					initiative("KRA1-KPI1", contracts.TargetPercentage, "", "", entry(2023, contracts.Num(70)), entry(2025, contracts.Num(80))),
					initiative("KRA1-KPI2", contracts.TargetCount, "PER_UNIT", "college", entry(2025, contracts.Num(3))),
				},
			},
			{
				KRAID: "KRA 2",
				Title: "Research and Innovation",
				Initiatives: []contracts.Initiative{
					initiative("KRA2-KPI1", contracts.TargetCount, "", "", entry(2025, contracts.Num(25))),
				},
			},
			{
				KRAID: "KRA 5",
				Title: "Resource Generation",
				Initiatives: []contracts.Initiative{
					initiative("KRA5-KPI1", contracts.TargetFinancial, "", "", entry(2025, contracts.Text("1,000,000"))),
					initiative("KRA5-KPI2", contracts.TargetMilestone, "", "", entry(2025, contracts.Text("Policy approved"))),
				},
			},
		},
	}
}

// Registry returns a registry over Plan()
func Registry(t testing.TB) *plan.Registry {
	t.Helper()
	r, err := plan.NewRegistry(Plan())
	if err != nil {
		t.Fatalf("sample plan: %v", err)
	}
	return r
}

func initiative(id string, typ contracts.TargetType, scope, basis string, timeline ...contracts.TimelineEntry) contracts.Initiative {
	return contracts.Initiative{
		ID:  id,
		KPI: contracts.KPIText{Outputs: id + " output"},
		Targets: contracts.TargetSpec{
			Type:      typ,
			Scope:     scope,
			UnitBasis: basis,
			Timeline:  timeline,
		},
	}
}

func entry(year int, v contracts.Scalar) contracts.TimelineEntry {
	return contracts.TimelineEntry{Year: year, TargetValue: v}
}
