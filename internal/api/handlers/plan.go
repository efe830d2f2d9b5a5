package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/stratplan/internal/plan"
	"github.com/wonny/stratplan/pkg/logger"
)

// PlanHandler serves the strategic plan catalog
type PlanHandler struct {
	registry *plan.Registry
	logger   *logger.Logger
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(registry *plan.Registry, log *logger.Logger) *PlanHandler {
	return &PlanHandler{registry: registry, logger: log}
}

type kraSummary struct {
	KRAID       string   `json:"kraId"`
	Title       string   `json:"title"`
	Initiatives []string `json:"initiatives"`
}

// GetPlan lists KRAs with their KPI ids
// GET /api/plan
func (h *PlanHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	kras := h.registry.KRAs()
	out := make([]kraSummary, 0, len(kras))
	for _, k := range kras {
		ids := make([]string, 0, len(k.Initiatives))
		for _, ini := range k.Initiatives {
			ids = append(ids, ini.ID)
		}
		out = append(out, kraSummary{KRAID: k.KRAID, Title: k.Title, Initiatives: ids})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"title": h.registry.Title(),
		"hash":  h.registry.Hash(),
		"kras":  out,
	})
}

// GetKRA returns one KRA with its initiatives and timelines
// GET /api/plan/kras/{kraId}
func (h *PlanHandler) GetKRA(w http.ResponseWriter, r *http.Request) {
	kra, ok := h.registry.KRA(mux.Vars(r)["kraId"])
	if !ok {
		respondError(w, http.StatusNotFound, "KRA not found")
		return
	}
	respondJSON(w, http.StatusOK, kra)
}

// ResolveTarget resolves the target of a KRA/KPI for a year. An unresolved
// target is returned with resolved=false rather than as an error.
// GET /api/plan/targets?kraId=&kpiId=&year=
func (h *PlanHandler) ResolveTarget(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "year must be an integer")
		return
	}

	target := h.registry.ResolveTarget(q.Get("kraId"), q.Get("kpiId"), year)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"resolved": target.Resolved(),
		"target":   target,
	})
}
