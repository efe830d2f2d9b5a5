package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/stratplan/internal/review"
	"github.com/wonny/stratplan/pkg/httputil"
	"github.com/wonny/stratplan/pkg/logger"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondDomainError maps workflow and upstream errors to HTTP statuses
func respondDomainError(w http.ResponseWriter, log *logger.Logger, err error) {
	var verr *review.ValidationError
	var statusErr *httputil.StatusError

	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  verr.Error(),
			"errors": verr.Errors,
		})
	case errors.Is(err, review.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, review.ErrSessionClosed), errors.Is(err, review.ErrOperationInFlight):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, review.ErrIndexOutOfRange), errors.Is(err, review.ErrReasonRequired):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &statusErr):
		// upstream message is surfaced verbatim
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		log.WithError(err).Error("Request failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func queryYear(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	year, err := strconv.Atoi(raw)
	if err != nil || year <= 0 {
		return 0, fmt.Errorf("year must be a positive integer")
	}
	return year, nil
}
