package reportapi

import (
	"strings"

	"github.com/wonny/stratplan/internal/contracts"
)

// analysisPayload is the upstream analysis document. Activities arrive
// either flat in Activities or grouped per KRA in OrganizedActivities;
// normalize collapses both to the flat form.
type analysisPayload struct {
	ID                  string            `json:"id"`
	Title               string            `json:"title"`
	Year                int               `json:"year"`
	Quarter             int               `json:"quarter"`
	Status              string            `json:"status"`
	Activities          []activityPayload `json:"activities"`
	OrganizedActivities []kraGroupPayload `json:"organizedActivities"`
	DocumentInsight     string            `json:"documentInsight"`
}

type kraGroupPayload struct {
	KRAID      string            `json:"kraId"`
	KRATitle   string            `json:"kraTitle"`
	Activities []activityPayload `json:"activities"`
}

// activityPayload tolerates numbers sent as strings
type activityPayload struct {
	Name            string           `json:"name"`
	KRAID           string           `json:"kraId"`
	InitiativeID    string           `json:"initiativeId"`
	Reported        contracts.Scalar `json:"reported"`
	Target          contracts.Scalar `json:"target"`
	Achievement     contracts.Scalar `json:"achievement"`
	Status          string           `json:"status"`
	Confidence      contracts.Scalar `json:"confidence"`
	Insight         string           `json:"aiInsight"`
	Prescriptive    string           `json:"prescriptiveAnalysis"`
	UserSelectedKPI bool             `json:"userSelectedKPI"`
}

type shape int

const (
	shapeFlat shape = iota
	shapeOrganized
)

func (p analysisPayload) shape() shape {
	if len(p.Activities) == 0 && len(p.OrganizedActivities) > 0 {
		return shapeOrganized
	}
	return shapeFlat
}

func (p analysisPayload) normalize() contracts.Analysis {
	a := contracts.Analysis{
		ID:              p.ID,
		Title:           p.Title,
		Year:            p.Year,
		Quarter:         p.Quarter,
		Status:          contracts.AnalysisStatus(strings.ToUpper(strings.TrimSpace(p.Status))),
		DocumentInsight: p.DocumentInsight,
	}
	if a.Status == "" {
		a.Status = contracts.AnalysisDraft
	}

	switch p.shape() {
	case shapeOrganized:
		for _, g := range p.OrganizedActivities {
			for _, act := range g.Activities {
				if strings.TrimSpace(act.KRAID) == "" {
					act.KRAID = g.KRAID
				}
				a.Activities = append(a.Activities, act.activity())
			}
		}
	default:
		a.Activities = make([]contracts.Activity, 0, len(p.Activities))
		for _, act := range p.Activities {
			a.Activities = append(a.Activities, act.activity())
		}
	}

	return a
}

func (p activityPayload) activity() contracts.Activity {
	status := contracts.ActivityStatus(strings.ToUpper(strings.TrimSpace(p.Status)))
	if status != contracts.StatusMet {
		status = contracts.StatusMissed
	}

	return contracts.Activity{
		Name:            p.Name,
		KRAID:           p.KRAID,
		InitiativeID:    p.InitiativeID,
		Reported:        number(p.Reported),
		Target:          number(p.Target),
		Achievement:     number(p.Achievement),
		Status:          status,
		Confidence:      number(p.Confidence),
		Insight:         p.Insight,
		Prescriptive:    p.Prescriptive,
		UserSelectedKPI: p.UserSelectedKPI,
	}
}

func number(s contracts.Scalar) float64 {
	if v := s.Number(); v != nil {
		return *v
	}
	return 0
}

// progressPayload is the upstream progress of one KRA
type progressPayload struct {
	KRAID       string                      `json:"kraId"`
	Initiatives []initiativeProgressPayload `json:"initiatives"`
}

type initiativeProgressPayload struct {
	ID       string           `json:"id"`
	Target   contracts.Scalar `json:"target"`
	Version  int64            `json:"version"`
	Progress []quarterPayload `json:"progress"`
}

type quarterPayload struct {
	Year    int              `json:"year"`
	Quarter int              `json:"quarter"`
	Value   contracts.Scalar `json:"value"`
}

// records sums the entries of the requested year per initiative. Entries
// without a year are taken to belong to it.
func (p progressPayload) records(kraID string, year int) []contracts.ProgressRecord {
	if p.KRAID != "" {
		kraID = p.KRAID
	}

	records := make([]contracts.ProgressRecord, 0, len(p.Initiatives))
	for _, ini := range p.Initiatives {
		rec := contracts.ProgressRecord{
			KRAID:   kraID,
			KPIID:   ini.ID,
			Year:    year,
			Target:  number(ini.Target),
			Version: ini.Version,
		}
		for _, q := range ini.Progress {
			if q.Year != 0 && q.Year != year {
				continue
			}
			rec.Current += number(q.Value)
		}
		records = append(records, rec)
	}
	return records
}
