package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/stratplan/internal/review"
	"github.com/wonny/stratplan/pkg/logger"
)

// ReviewHandler exposes the reclassification workflow
// ⭐ SSOT: review API handlers live in this struct only
type ReviewHandler struct {
	svc    *review.Service
	logger *logger.Logger
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(svc *review.Service, log *logger.Logger) *ReviewHandler {
	return &ReviewHandler{svc: svc, logger: log.Component("review_api")}
}

// Open starts a review session for an analysis
// POST /api/reviews
func (h *ReviewHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AnalysisID string `json:"analysisId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AnalysisID == "" {
		respondError(w, http.StatusBadRequest, "analysisId is required")
		return
	}

	s, err := h.svc.Open(r.Context(), req.AnalysisID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, s.View())
}

// Get returns the session state
// GET /api/reviews/{id}
func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

// Summary returns the per-KPI and document achievement
// GET /api/reviews/{id}/summary
func (h *ReviewHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.Summary())
}

// EditKRA reassigns the KRA of an activity
// PUT /api/reviews/{id}/activities/{index}/kra
func (h *ReviewHandler) EditKRA(w http.ResponseWriter, r *http.Request) {
	s, index, ok := h.activity(w, r)
	if !ok {
		return
	}

	var req struct {
		KRAID string `json:"kraId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	warning, err := s.EditKRA(index, req.KRAID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"warning": warning,
		"review":  s.View(),
	})
}

// EditKPI selects the KPI of an activity
// PUT /api/reviews/{id}/activities/{index}/kpi
func (h *ReviewHandler) EditKPI(w http.ResponseWriter, r *http.Request) {
	s, index, ok := h.activity(w, r)
	if !ok {
		return
	}

	var req struct {
		InitiativeID string `json:"initiativeId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.EditKPI(index, req.InitiativeID); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

// EditValues changes reported and target values of an activity
// PUT /api/reviews/{id}/activities/{index}/values
func (h *ReviewHandler) EditValues(w http.ResponseWriter, r *http.Request) {
	s, index, ok := h.activity(w, r)
	if !ok {
		return
	}

	var req struct {
		Reported float64 `json:"reported"`
		Target   float64 `json:"target"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.EditValues(index, req.Reported, req.Target); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

// DeleteActivity removes an activity from the working set
// DELETE /api/reviews/{id}/activities/{index}
func (h *ReviewHandler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	s, index, ok := h.activity(w, r)
	if !ok {
		return
	}

	if err := s.Delete(index); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

// Validate runs the regeneration or approval checks without side effects
// POST /api/reviews/{id}/validate?for=regenerate|approval
func (h *ReviewHandler) Validate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var err error
	switch r.URL.Query().Get("for") {
	case "regenerate":
		err = s.ValidateKPISelections()
	case "approval", "":
		err = s.ValidateForApproval()
	default:
		respondError(w, http.StatusBadRequest, "for must be regenerate or approval")
		return
	}

	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// Regenerate refreshes insights of reclassified activities
// POST /api/reviews/{id}/regenerate
func (h *ReviewHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Regenerate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Approve persists the working set and approves the analysis
// POST /api/reviews/{id}/approve
func (h *ReviewHandler) Approve(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Approve(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Reject rejects the analysis with a reason
// POST /api/reviews/{id}/reject
func (h *ReviewHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.Reject(r.Context(), mux.Vars(r)["id"], req.Reason); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "REJECTED"})
}

func (h *ReviewHandler) session(w http.ResponseWriter, r *http.Request) (*review.Session, bool) {
	s, err := h.svc.Session(mux.Vars(r)["id"])
	if err != nil {
		respondDomainError(w, h.logger, err)
		return nil, false
	}
	return s, true
}

func (h *ReviewHandler) activity(w http.ResponseWriter, r *http.Request) (*review.Session, int, bool) {
	index, err := pathInt(r, "index")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, 0, false
	}
	s, ok := h.session(w, r)
	return s, index, ok
}
