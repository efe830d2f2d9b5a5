package achievement

import (
	"github.com/wonny/stratplan/internal/contracts"
)

// Measurement is one activity's reported value and its own (optional)
// target, used as a denominator for percentage KPIs
type Measurement struct {
	Reported contracts.Scalar `json:"reported"`
	Target   contracts.Scalar `json:"target"`
}

// FromActivity converts a workflow activity into a measurement
func FromActivity(a contracts.Activity) Measurement {
	return Measurement{Reported: contracts.Num(a.Reported), Target: contracts.Num(a.Target)}
}

// Input is one target and the activities assigned to it
type Input struct {
	TargetType     contracts.TargetType  `json:"targetType"`
	TargetValue    *float64              `json:"targetValue"`
	TargetScope    contracts.TargetScope `json:"targetScope"`
	UnitMultiplier *float64              `json:"unitMultiplier,omitempty"`
	Activities     []Measurement         `json:"activities"`
}

// InputFor builds an Input from a resolved target
func InputFor(t contracts.Target, activities []Measurement) Input {
	return Input{
		TargetType:     t.Type,
		TargetValue:    t.Value,
		TargetScope:    t.Scope,
		UnitMultiplier: t.UnitMultiplier,
		Activities:     activities,
	}
}

// Result is the aggregated value of a group against its effective target
type Result struct {
	TotalReported      float64 `json:"totalReported"`
	TotalTarget        float64 `json:"totalTarget"`
	AchievementPercent float64 `json:"achievementPercent"`
	Counted            int     `json:"counted"`
	Discarded          int     `json:"discarded"`
}

// EffectiveTarget multiplies the target by the unit count only for PER_UNIT
// scope. A missing multiplier counts as one unit; the number of activities
// is never used as a multiplier.
func EffectiveTarget(value *float64, scope contracts.TargetScope, unitMultiplier *float64) float64 {
	if value == nil {
		return 0
	}
	if scope == contracts.ScopePerUnit && unitMultiplier != nil {
		return *value * *unitMultiplier
	}
	return *value
}

// Aggregate folds the activities of one group into a single reported value
// and achievement percentage using the rule of the target type. It never
// fails: zero targets and empty groups resolve to 0%.
func Aggregate(in Input) Result {
	effective := EffectiveTarget(in.TargetValue, in.TargetScope, in.UnitMultiplier)

	switch in.TargetType {
	case contracts.TargetPercentage:
		return averagePercent(in.Activities, effective)
	case contracts.TargetMilestone, contracts.TargetTextCondition:
		return anyTruthy(in.Activities, effective)
	default:
		// count, financial and unknown types are additive
		return sum(in.Activities, effective)
	}
}

func averagePercent(activities []Measurement, effective float64) Result {
	res := Result{TotalTarget: effective}

	var total float64
	for _, m := range activities {
		v, ok := NormalizePercent(m)
		if !ok {
			res.Discarded++
			continue
		}
		total += v
		res.Counted++
	}

	if res.Counted > 0 {
		res.TotalReported = total / float64(res.Counted)
	}
	res.AchievementPercent = Percent(res.TotalReported, effective)
	return res
}

func sum(activities []Measurement, effective float64) Result {
	res := Result{TotalTarget: effective}

	for _, m := range activities {
		if v := m.Reported.Number(); v != nil {
			res.TotalReported += *v
			res.Counted++
		} else {
			res.Discarded++
		}
	}

	res.AchievementPercent = Percent(res.TotalReported, effective)
	return res
}

func anyTruthy(activities []Measurement, effective float64) Result {
	res := Result{TotalTarget: effective}

	for _, m := range activities {
		res.Counted++
		if m.Reported.Truthy() {
			res.TotalReported = 1
			res.AchievementPercent = 100
			return res
		}
	}
	return res
}

// NormalizePercent expresses a reported value as 0..100. Values already in
// range are used as-is; otherwise reported/target*100 is tried with the
// activity's own target as denominator. Anything else cannot be normalized.
func NormalizePercent(m Measurement) (float64, bool) {
	v := m.Reported.Number()
	if v == nil {
		return 0, false
	}
	if inPercentRange(*v) {
		return *v, true
	}

	if d := m.Target.Number(); d != nil && *d != 0 {
		ratio := *v / *d * 100
		if inPercentRange(ratio) {
			return ratio, true
		}
	}
	return 0, false
}

func inPercentRange(v float64) bool {
	return v >= 0 && v <= 100
}

// Percent returns value/target*100, or 0 for a non-positive target
func Percent(value, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return value / target * 100
}

// ActivityAchievement is the per-line achievement shown while reviewing
func ActivityAchievement(reported, target float64) (float64, contracts.ActivityStatus) {
	pct := Percent(reported, target)
	if pct >= 100 {
		return pct, contracts.StatusMet
	}
	return pct, contracts.StatusMissed
}
