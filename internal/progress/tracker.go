package progress

import (
	"github.com/wonny/stratplan/internal/achievement"
	"github.com/wonny/stratplan/internal/contracts"
)

// Cumulative is the result of folding one document's contribution into the
// progress already committed for a KPI/year. RawAchievement is uncapped and
// kept for diagnostics; DisplayedAchievement never exceeds 100.
type Cumulative struct {
	PreviousCurrent      float64 `json:"previousCurrent"`
	NewTotal             float64 `json:"newTotal"`
	Target               float64 `json:"target"`
	RawAchievement       float64 `json:"rawAchievement"`
	DisplayedAchievement float64 `json:"displayedAchievement"`
}

// Combine adds totalReported to the previously committed current value
func Combine(previous contracts.ProgressRecord, totalReported float64) Cumulative {
	newTotal := previous.Current + totalReported
	raw := achievement.Percent(newTotal, previous.Target)

	return Cumulative{
		PreviousCurrent:      previous.Current,
		NewTotal:             newTotal,
		Target:               previous.Target,
		RawAchievement:       raw,
		DisplayedAchievement: capPercent(raw),
	}
}

// Fold applies the accumulation rule of the target type:
//   - milestone/text_condition are binary per period and stay achieved once
//     any document achieved them
//   - every other type, percentage included, adds to the previous total
//
// A record without a target falls back to the document's effective target.
func Fold(t contracts.TargetType, previous contracts.ProgressRecord, res achievement.Result) Cumulative {
	target := previous.Target
	if target <= 0 {
		target = res.TotalTarget
	}

	switch {
	case t.Binary():
		done := previous.Current > 0 || res.TotalReported > 0
		c := Cumulative{PreviousCurrent: previous.Current, Target: 1}
		if done {
			c.NewTotal = 1
			c.RawAchievement = 100
			c.DisplayedAchievement = 100
		}
		return c

	default:
		return Combine(contracts.ProgressRecord{Current: previous.Current, Target: target}, res.TotalReported)
	}
}

// DocumentAchievement is the arithmetic mean of the displayed per-KPI
// achievements; every KPI weighs the same regardless of its size.
func DocumentAchievement(displayed []float64) float64 {
	if len(displayed) == 0 {
		return 0
	}
	var sum float64
	for _, v := range displayed {
		sum += v
	}
	return sum / float64(len(displayed))
}

func capPercent(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}
