package plan

import (
	"fmt"

	"github.com/wonny/stratplan/internal/contracts"
)

// Registry is the loaded-once, read-only strategic plan with normalized
// lookup by KRA and KPI id. Safe for concurrent use.
// ⭐ SSOT: KRA/KPI lookups go through the registry only
type Registry struct {
	plan *contracts.StrategicPlan
	hash string
	kras map[string]*kraIndex
}

type kraIndex struct {
	kra     *contracts.KRA
	byID    map[string]*contracts.Initiative
	byKPINo map[string]*contracts.Initiative
}

// NewRegistry validates and indexes a plan. The registry keeps its own copy.
func NewRegistry(p *contracts.StrategicPlan) (*Registry, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	hash, err := Hash(p)
	if err != nil {
		return nil, fmt.Errorf("hash plan: %w", err)
	}

	owned := clonePlan(p)
	r := &Registry{
		plan: owned,
		hash: hash,
		kras: make(map[string]*kraIndex, len(owned.KRAs)),
	}

	for i := range owned.KRAs {
		kra := &owned.KRAs[i]
		idx := &kraIndex{
			kra:     kra,
			byID:    make(map[string]*contracts.Initiative, len(kra.Initiatives)),
			byKPINo: make(map[string]*contracts.Initiative, len(kra.Initiatives)),
		}
		for j := range kra.Initiatives {
			ini := &kra.Initiatives[j]
			idx.byID[NormalizeInitiativeID(ini.ID)] = ini
			if n, ok := kpiNumber(ini.ID); ok {
				if _, dup := idx.byKPINo[n]; !dup {
					idx.byKPINo[n] = ini
				}
			}
		}
		r.kras[NormalizeKRAID(kra.KRAID)] = idx
	}

	return r, nil
}

// LoadRegistry loads a plan file and indexes it
func LoadRegistry(path string) (*Registry, error) {
	p, _, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry(p)
}

// Hash identifies the plan version the registry was built from
func (r *Registry) Hash() string {
	return r.hash
}

// Title returns the plan title
func (r *Registry) Title() string {
	return r.plan.Title
}

// KRAs returns the KRAs in plan order. Callers must not modify the result.
func (r *Registry) KRAs() []contracts.KRA {
	return r.plan.KRAs
}

// KRA looks up a KRA by any spelling of its id
func (r *Registry) KRA(id string) (contracts.KRA, bool) {
	idx, ok := r.kras[NormalizeKRAID(id)]
	if !ok {
		return contracts.KRA{}, false
	}
	return *idx.kra, true
}

// HasKRA reports whether the id names a KRA of the plan
func (r *Registry) HasKRA(id string) bool {
	_, ok := r.kras[NormalizeKRAID(id)]
	return ok
}

// Initiative finds a KPI inside a KRA. An exact normalized match wins;
// otherwise the embedded KPI<n> token is matched, which tolerates ids that
// came out of extraction as "KPI 2" or "kra5 - kpi2".
func (r *Registry) Initiative(kraID, initiativeID string) (contracts.Initiative, bool) {
	idx, ok := r.kras[NormalizeKRAID(kraID)]
	if !ok {
		return contracts.Initiative{}, false
	}

	if ini, ok := idx.byID[NormalizeInitiativeID(initiativeID)]; ok {
		return *ini, true
	}

	if n, ok := kpiNumber(initiativeID); ok {
		if ini, ok := idx.byKPINo[n]; ok {
			return *ini, true
		}
	}

	return contracts.Initiative{}, false
}

// UnitCount returns the number of units for a unit basis, if the plan lists it
func (r *Registry) UnitCount(basis string) (float64, bool) {
	n, ok := r.plan.UnitCounts[basis]
	return n, ok
}

func clonePlan(p *contracts.StrategicPlan) *contracts.StrategicPlan {
	c := *p
	if p.UnitCounts != nil {
		c.UnitCounts = make(map[string]float64, len(p.UnitCounts))
		for k, v := range p.UnitCounts {
			c.UnitCounts[k] = v
		}
	}
	c.KRAs = make([]contracts.KRA, len(p.KRAs))
	for i, kra := range p.KRAs {
		kc := kra
		kc.Initiatives = make([]contracts.Initiative, len(kra.Initiatives))
		for j, ini := range kra.Initiatives {
			ic := ini
			ic.Targets.Timeline = append([]contracts.TimelineEntry(nil), ini.Targets.Timeline...)
			kc.Initiatives[j] = ic
		}
		c.KRAs[i] = kc
	}
	return &c
}
