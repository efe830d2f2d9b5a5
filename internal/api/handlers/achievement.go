package handlers

import (
	"net/http"

	"github.com/wonny/stratplan/internal/achievement"
	"github.com/wonny/stratplan/internal/contracts"
	"github.com/wonny/stratplan/internal/plan"
	"github.com/wonny/stratplan/internal/progress"
	"github.com/wonny/stratplan/pkg/logger"
)

// AchievementHandler computes achievements for ad-hoc inputs without a
// review session
type AchievementHandler struct {
	registry *plan.Registry
	logger   *logger.Logger
}

// NewAchievementHandler creates a new achievement handler
func NewAchievementHandler(registry *plan.Registry, log *logger.Logger) *AchievementHandler {
	return &AchievementHandler{registry: registry, logger: log}
}

// Aggregate aggregates activities against an explicit target
// POST /api/achievement/aggregate
func (h *AchievementHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	var in achievement.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	respondJSON(w, http.StatusOK, achievement.Aggregate(in))
}

// Evaluate groups activities, resolves their targets from the plan and
// folds them into the given committed progress
// POST /api/achievement/evaluate
func (h *AchievementHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Year       int                        `json:"year"`
		Activities []contracts.Activity       `json:"activities"`
		Progress   []contracts.ProgressRecord `json:"progress,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Year <= 0 {
		respondError(w, http.StatusBadRequest, "year is required")
		return
	}

	var snapshot progress.Snapshot
	if req.Progress != nil {
		snapshot = progress.NewSnapshot(req.Progress)
	}

	respondJSON(w, http.StatusOK, progress.Evaluate(h.registry, req.Year, req.Activities, snapshot))
}
