package handlers

import (
	"net/http"

	"github.com/wonny/stratplan/internal/contracts"
	"github.com/wonny/stratplan/internal/progress"
	"github.com/wonny/stratplan/pkg/logger"
)

// ProgressHandler serves committed progress. Quarterly entries are only
// available with the Postgres store.
type ProgressHandler struct {
	source progress.Source
	repo   *progress.Repository
	logger *logger.Logger
}

// NewProgressHandler creates a new progress handler. repo may be nil.
func NewProgressHandler(source progress.Source, repo *progress.Repository, log *logger.Logger) *ProgressHandler {
	return &ProgressHandler{source: source, repo: repo, logger: log}
}

// GetProgress returns the records of a KRA for a year
// GET /api/progress?kraId=&year=
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	kraID := r.URL.Query().Get("kraId")
	year, err := queryYear(r)
	if err != nil || kraID == "" {
		respondError(w, http.StatusBadRequest, "kraId and a positive year are required")
		return
	}

	records, err := h.source.Fetch(r.Context(), kraID, year)
	if err != nil {
		h.logger.WithError(err).WithField("kra_id", kraID).Error("Failed to fetch progress")
		respondError(w, http.StatusBadGateway, "failed to fetch progress")
		return
	}
	if records == nil {
		records = []contracts.ProgressRecord{}
	}

	respondJSON(w, http.StatusOK, records)
}

// GetEntries returns the quarterly breakdown of a KRA for a year
// GET /api/progress/entries?kraId=&year=
func (h *ProgressHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		respondError(w, http.StatusNotImplemented, "quarterly entries require the postgres progress source")
		return
	}

	kraID := r.URL.Query().Get("kraId")
	year, err := queryYear(r)
	if err != nil || kraID == "" {
		respondError(w, http.StatusBadRequest, "kraId and a positive year are required")
		return
	}

	entries, err := h.repo.Entries(r.Context(), kraID, year)
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch progress entries")
		respondError(w, http.StatusInternalServerError, "failed to fetch progress entries")
		return
	}
	if entries == nil {
		entries = []contracts.ProgressEntry{}
	}

	respondJSON(w, http.StatusOK, entries)
}

// ImportEntries stores quarterly entries reported outside the workflow
// POST /api/progress/entries
func (h *ProgressHandler) ImportEntries(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		respondError(w, http.StatusNotImplemented, "quarterly entries require the postgres progress source")
		return
	}

	var entries []contracts.ProgressEntry
	if !decodeJSON(w, r, &entries) {
		return
	}

	if err := h.repo.SaveEntries(r.Context(), entries); err != nil {
		h.logger.WithError(err).Error("Failed to import progress entries")
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{"imported": len(entries)})
}
