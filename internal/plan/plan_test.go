package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stratplan/internal/contracts"
)

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := LoadRegistry("testdata/plan.json")
	require.NoError(t, err)
	return r
}

func TestNormalizeKRAID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"kra   5", "KRA 5"},
		{"KRA5", "KRA 5"},
		{"KRA 5", "KRA 5"},
		{" kra\t05 ", "KRA 5"},
		{"KRA 12", "KRA 12"},
		{"KRA 5: Research", "KRA 5"},
		{"KRA 5: Research and Development", "KRA 5"},
		{"kra5 - x", "KRA 5"},
		{"kra 5.", "KRA 5"},
		{"Research  Area", "Research Area"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKRAID(tt.in))
		})
	}
}

func TestNormalizeInitiativeID(t *testing.T) {
	assert.Equal(t, "KRA5-KPI2", NormalizeInitiativeID(" KRA5 - KPI2 "))
	assert.Equal(t, "KRA5-KPI2", NormalizeInitiativeID("kra5-kpi2"))
}

func TestLoad_JSONAndYAML(t *testing.T) {
	p, raw, err := Load("testdata/plan.json")
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Len(t, p.KRAs, 3)
	assert.Equal(t, contracts.TargetPercentage, p.KRAs[0].Initiatives[0].Targets.Type)

	y, _, err := Load("testdata/plan.yaml")
	require.NoError(t, err)
	assert.Equal(t, "kra3", y.KRAs[0].KRAID)
}

func TestLoad_UnknownFieldFails(t *testing.T) {
	_, _, err := Load("testdata/unknown_field.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timline")
}

func TestValidate(t *testing.T) {
	p := &contracts.StrategicPlan{
		KRAs: []contracts.KRA{
			{KRAID: "KRA 1", Initiatives: []contracts.Initiative{
				{ID: "KRA1-KPI1", Targets: contracts.TargetSpec{Type: "ratio"}},
				{ID: "kra1-kpi1", Targets: contracts.TargetSpec{Type: contracts.TargetCount, Timeline: []contracts.TimelineEntry{
					{Year: 2024, TargetValue: contracts.Text("lots")},
					{Year: 2024, TargetValue: contracts.Num(1)},
				}}},
			}},
			{KRAID: "kra1"},
		},
	}

	err := Validate(p)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown type "ratio"`)
	assert.Contains(t, msg, `duplicate initiative "KRA1-KPI1"`)
	assert.Contains(t, msg, `"lots" is not numeric`)
	assert.Contains(t, msg, "duplicate year 2024")
	assert.Contains(t, msg, `duplicate KRA "KRA 1"`)
}

func TestHashDeterministic(t *testing.T) {
	p, _, err := Load("testdata/plan.json")
	require.NoError(t, err)

	h1, err := Hash(p)
	require.NoError(t, err)
	h2, _ := Hash(p)
	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)

	r, err := NewRegistry(p)
	require.NoError(t, err)
	assert.Equal(t, h1, r.Hash())
}

func TestRegistry_OwnsItsCopy(t *testing.T) {
	p, _, err := Load("testdata/plan.json")
	require.NoError(t, err)
	r, err := NewRegistry(p)
	require.NoError(t, err)

	p.KRAs[0].Initiatives[0].Targets.Timeline[0].TargetValue = contracts.Num(1)

	target := r.ResolveTarget("KRA 1", "KRA1-KPI1", 2023)
	require.NotNil(t, target.Value)
	assert.Equal(t, 70.0, *target.Value)
}

func TestRegistry_InitiativeLookup(t *testing.T) {
	r := loadTestRegistry(t)

	tests := []struct {
		name   string
		kra    string
		kpi    string
		wantID string
		found  bool
	}{
		{"exact", "KRA 5", "KRA5-KPI2", "KRA5-KPI2", true},
		{"kra spelling", "kra5", "KRA5-KPI2", "KRA5-KPI2", true},
		{"whitespace in kpi", "KRA 5", " KRA5 - KPI2", "KRA5-KPI2", true},
		{"kpi token fallback", "KRA 5", "KPI 2", "KRA5-KPI2", true},
		{"noisy token", "KRA5", "Initiative KPI2 (income)", "KRA5-KPI2", true},
		{"kpi12 is not kpi1", "KRA 5", "KPI12", "", false},
		{"unknown kra", "KRA 9", "KRA9-KPI1", "", false},
		{"kpi from other kra stays local", "KRA 2", "KRA5-KPI2", "", false},
		{"empty", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ini, ok := r.Initiative(tt.kra, tt.kpi)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.wantID, ini.ID)
		})
	}
}

func TestTargetValueForYear(t *testing.T) {
	timeline := []contracts.TimelineEntry{
		{Year: 2027, TargetValue: contracts.Num(90)},
		{Year: 2023, TargetValue: contracts.Num(70)},
		{Year: 2025, TargetValue: contracts.Num(80)},
	}

	tests := []struct {
		year     int
		wantYear int
		found    bool
	}{
		{2025, 2025, true}, // exact
		{2024, 2023, true}, // most recent past
		{2026, 2025, true},
		{2030, 2027, true},
		{2020, 2023, true}, // no past: earliest future
	}

	for _, tt := range tests {
		e, ok := TargetValueForYear(timeline, tt.year)
		assert.Equal(t, tt.found, ok, "year %d", tt.year)
		assert.Equal(t, tt.wantYear, e.Year, "year %d", tt.year)
	}

	_, ok := TargetValueForYear(nil, 2025)
	assert.False(t, ok)
}

func TestResolveTarget(t *testing.T) {
	r := loadTestRegistry(t)

	t.Run("exact year", func(t *testing.T) {
		target := r.ResolveTarget("KRA 1", "KRA1-KPI1", 2025)
		require.True(t, target.Resolved())
		assert.Equal(t, contracts.TargetPercentage, target.Type)
		assert.Equal(t, 80.0, *target.Value)
		assert.Equal(t, 2025, target.TimelineYear)
	})

	t.Run("off-cycle year uses nearest earlier", func(t *testing.T) {
		target := r.ResolveTarget("kra 1", "KRA1-KPI1", 2026)
		assert.Equal(t, 80.0, *target.Value)
		assert.Equal(t, 2025, target.TimelineYear)
	})

	t.Run("numeric string target", func(t *testing.T) {
		target := r.ResolveTarget("KRA 5", "KRA5-KPI1", 2025)
		assert.Equal(t, contracts.TargetFinancial, target.Type)
		assert.Equal(t, 1000000.0, *target.Value)
	})

	t.Run("milestone keeps text", func(t *testing.T) {
		target := r.ResolveTarget("KRA 5", "KRA5-KPI2", 2026)
		assert.Equal(t, contracts.TargetMilestone, target.Type)
		assert.Nil(t, target.Value)
		assert.Equal(t, "Policy approved", target.Text)
	})

	t.Run("unknown ids resolve to no target, not zero", func(t *testing.T) {
		target := r.ResolveTarget("KRA 9", "KRA9-KPI1", 2025)
		assert.False(t, target.Resolved())
		assert.Equal(t, contracts.TargetType(""), target.Type)
		assert.Nil(t, target.Value)
	})
}

// Scope only becomes PER_UNIT when the plan says so. A count KPI without an
// explicit scope must stay INSTITUTIONAL, otherwise a count of activities
// would be inflated by the number of units.
func TestResolveTarget_ScopeDefaultsToInstitutional(t *testing.T) {
	r := loadTestRegistry(t)

	institutional := r.ResolveTarget("KRA 2", "KRA2-KPI1", 2025)
	assert.Equal(t, contracts.ScopeInstitutional, institutional.Scope)
	assert.Nil(t, institutional.UnitMultiplier)

	perUnit := r.ResolveTarget("KRA 1", "KRA1-KPI2", 2025)
	assert.Equal(t, contracts.ScopePerUnit, perUnit.Scope)
	assert.Equal(t, "college", perUnit.UnitBasis)
	require.NotNil(t, perUnit.UnitMultiplier)
	assert.Equal(t, 9.0, *perUnit.UnitMultiplier)
}
