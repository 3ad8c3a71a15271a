// Package api provides the HTTP server for Kola.
// It exposes the learner accounting endpoints plus health and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/volo-kola/kola/internal/app/progress"
	"github.com/volo-kola/kola/internal/domain"
	"github.com/volo-kola/kola/internal/health"
)

// UserHeader carries the learner identity set by the upstream auth proxy.
const UserHeader = "X-User-ID"

// Server is the Kola HTTP API server.
type Server struct {
	svc            *progress.Service
	health         *health.Checker
	log            *zap.Logger
	metricsEnabled bool
	timeout        time.Duration
}

// NewServer creates a new API server.
func NewServer(svc *progress.Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, log: log, timeout: 30 * time.Second}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth sets the checker behind /health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetTimeout bounds how long a single request may run.
func (s *Server) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(withDeadline(s.timeout))
	r.Use(corsMiddleware)
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Post("/users", s.handleCreateUser)

	// Learner routes
	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Post("/exercises/{id}/complete", s.handleCompleteExercise)
		r.Post("/lessons/{id}/complete", s.handleCompleteLesson)

		r.Get("/challenges", s.handleChallenges)
		r.Post("/challenges/{id}/claim", s.handleClaimChallenge)

		r.Route("/user/me", func(r chi.Router) {
			r.Get("/", s.handleMe)
			r.Get("/xp/daily", s.handleDailyXP)
			r.Get("/achievements", s.handleAchievements)
			r.Get("/achievements/{code}", s.handleAchievement)
		})

		r.Get("/leaderboard", s.handleLeaderboard)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// ─── Identity ───────────────────────────────────────────────────────────────

type userKey struct{}

// requireUser rejects requests without a learner identity.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", UserHeader+" header is required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}

// ─── Responses ──────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    typ,
		},
	})
}

// writeServiceError maps domain errors onto status codes. Anything
// unrecognized is logged and reported as a bare 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, domain.ErrChallengeNotFound):
		writeError(w, http.StatusNotFound, "challenge_not_found", err.Error())
	case errors.Is(err, domain.ErrAchievementNotFound):
		writeError(w, http.StatusNotFound, "achievement_not_found", err.Error())
	case errors.Is(err, domain.ErrUserExists):
		writeError(w, http.StatusConflict, "user_exists", err.Error())
	case errors.Is(err, domain.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, "already_claimed", err.Error())
	case errors.Is(err, domain.ErrNotCompleted):
		writeError(w, http.StatusConflict, "not_completed", err.Error())
	case errors.Is(err, domain.ErrExpired):
		writeError(w, http.StatusConflict, "challenge_expired", err.Error())
	case errors.Is(err, domain.ErrConcurrentUpdate):
		writeError(w, http.StatusConflict, "conflict", "request conflicted with a concurrent update, retry")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "timeout", "request timed out")
	default:
		s.log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// withDeadline bounds the request context. Handlers own the response when
// it expires: writeServiceError reports 503 timeout.
func withDeadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+UserHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
