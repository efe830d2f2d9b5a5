package plan

import (
	"errors"
	"fmt"

	"github.com/wonny/stratplan/internal/contracts"
)

// ValidationError is a structural problem in the plan document
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks ids and target specs. All problems are reported at once.
func Validate(p *contracts.StrategicPlan) error {
	var errs []error

	if len(p.KRAs) == 0 {
		errs = append(errs, ValidationError{"kras", "at least one KRA is required"})
	}
	if p.StartYear != 0 && p.EndYear != 0 && p.StartYear > p.EndYear {
		errs = append(errs, ValidationError{"start_year", "must be <= end_year"})
	}
	for basis, n := range p.UnitCounts {
		if n <= 0 {
			errs = append(errs, ValidationError{"unit_counts." + basis, "must be > 0"})
		}
	}

	seenKRA := make(map[string]bool)
	for i, kra := range p.KRAs {
		field := fmt.Sprintf("kras[%d]", i)
		id := NormalizeKRAID(kra.KRAID)
		if id == "" {
			errs = append(errs, ValidationError{field + ".kra_id", "required"})
			continue
		}
		if seenKRA[id] {
			errs = append(errs, ValidationError{field + ".kra_id", fmt.Sprintf("duplicate KRA %q", id)})
		}
		seenKRA[id] = true

		seenKPI := make(map[string]bool)
		for j, ini := range kra.Initiatives {
			errs = append(errs, validateInitiative(fmt.Sprintf("%s.initiatives[%d]", field, j), ini, seenKPI)...)
		}
	}

	return errors.Join(errs...)
}

func validateInitiative(field string, ini contracts.Initiative, seen map[string]bool) []error {
	var errs []error

	id := NormalizeInitiativeID(ini.ID)
	if id == "" {
		return []error{ValidationError{field + ".id", "required"}}
	}
	if seen[id] {
		errs = append(errs, ValidationError{field + ".id", fmt.Sprintf("duplicate initiative %q", id)})
	}
	seen[id] = true

	spec := ini.Targets
	if !spec.Type.Valid() {
		errs = append(errs, ValidationError{field + ".targets.type", fmt.Sprintf("unknown type %q", spec.Type)})
	}

	years := make(map[int]bool)
	for k, entry := range spec.Timeline {
		ef := fmt.Sprintf("%s.targets.timeline[%d]", field, k)
		if entry.Year <= 0 {
			errs = append(errs, ValidationError{ef + ".year", "must be > 0"})
		}
		if years[entry.Year] {
			errs = append(errs, ValidationError{ef + ".year", fmt.Sprintf("duplicate year %d", entry.Year)})
		}
		years[entry.Year] = true

		// Numeric types need numeric targets
		if !spec.Type.Binary() && !entry.TargetValue.IsNull() && entry.TargetValue.Number() == nil {
			errs = append(errs, ValidationError{ef + ".target_value", fmt.Sprintf("%q is not numeric", entry.TargetValue.String())})
		}
	}

	return errs
}
