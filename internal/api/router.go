package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/stratplan/internal/api/handlers"
	"github.com/wonny/stratplan/pkg/logger"
	"github.com/wonny/stratplan/pkg/ratelimit"
)

// Handlers groups the endpoint handlers mounted by NewRouter
type Handlers struct {
	Review      *handlers.ReviewHandler
	Plan        *handlers.PlanHandler
	Achievement *handlers.AchievementHandler
	Progress    *handlers.ProgressHandler
}

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID returns the id assigned to the request by the router
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: routes are registered in this function only
func NewRouter(h Handlers, limiter *ratelimit.Keyed, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(rateLimitMiddleware(limiter, log))

	// Plan catalog
	api.HandleFunc("/plan", h.Plan.GetPlan).Methods("GET")
	api.HandleFunc("/plan/kras/{kraId}", h.Plan.GetKRA).Methods("GET")
	api.HandleFunc("/plan/targets", h.Plan.ResolveTarget).Methods("GET")

	// Stateless aggregation
	api.HandleFunc("/achievement/aggregate", h.Achievement.Aggregate).Methods("POST")
	api.HandleFunc("/achievement/evaluate", h.Achievement.Evaluate).Methods("POST")

	// Progress
	api.HandleFunc("/progress", h.Progress.GetProgress).Methods("GET")
	api.HandleFunc("/progress/entries", h.Progress.GetEntries).Methods("GET")
	api.HandleFunc("/progress/entries", h.Progress.ImportEntries).Methods("POST")

	// Review workflow
	api.HandleFunc("/reviews", h.Review.Open).Methods("POST")
	api.HandleFunc("/reviews/{id}", h.Review.Get).Methods("GET")
	api.HandleFunc("/reviews/{id}/summary", h.Review.Summary).Methods("GET")
	api.HandleFunc("/reviews/{id}/activities/{index}/kra", h.Review.EditKRA).Methods("PUT")
	api.HandleFunc("/reviews/{id}/activities/{index}/kpi", h.Review.EditKPI).Methods("PUT")
	api.HandleFunc("/reviews/{id}/activities/{index}/values", h.Review.EditValues).Methods("PUT")
	api.HandleFunc("/reviews/{id}/activities/{index}", h.Review.DeleteActivity).Methods("DELETE")
	api.HandleFunc("/reviews/{id}/validate", h.Review.Validate).Methods("POST")
	api.HandleFunc("/reviews/{id}/regenerate", h.Review.Regenerate).Methods("POST")
	api.HandleFunc("/reviews/{id}/approve", h.Review.Approve).Methods("POST")
	api.HandleFunc("/reviews/{id}/reject", h.Review.Reject).Methods("POST")

	// Apply middleware
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "stratplan-api",
	})
}

// requestIDMiddleware keeps an incoming X-Request-ID or assigns a new one
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"request_id": RequestID(r.Context()),
				"duration":   time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware applies the per-client limiter keyed by remote host
func rateLimitMiddleware(limiter *ratelimit.Keyed, log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := clientKey(r)
			if !limiter.Allow(key) {
				log.WithField("client", key).Warn("Rate limit exceeded")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "rate limit exceeded",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
