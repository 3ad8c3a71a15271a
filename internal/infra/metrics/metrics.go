// Package metrics provides Prometheus metrics for Kola.
// Counters for the learner accounting engine plus HTTP request latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── XP ─────────────────────────────────────────────────────────────────────

// XPGranted tracks XP granted by source.
var XPGranted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kola",
	Name:      "xp_granted_total",
	Help:      "Total XP granted, by source.",
}, []string{"source"})

// LessonsCompleted tracks finished lessons by outcome (perfect or not).
var LessonsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kola",
	Name:      "lessons_completed_total",
	Help:      "Total lessons completed.",
}, []string{"perfect"})

// ExercisesAnswered tracks answered exercises by correctness.
var ExercisesAnswered = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kola",
	Name:      "exercises_answered_total",
	Help:      "Total exercises answered.",
}, []string{"correct"})

// ─── Hearts ─────────────────────────────────────────────────────────────────

// HeartsLost tracks hearts charged for wrong answers.
var HeartsLost = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "kola",
	Name:      "hearts_lost_total",
	Help:      "Total hearts lost to wrong answers.",
})

// OutOfHearts tracks exercise submissions rejected for lack of hearts.
var OutOfHearts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "kola",
	Name:      "out_of_hearts_total",
	Help:      "Exercise submissions rejected with zero hearts available.",
})

// ─── Challenges & Achievements ──────────────────────────────────────────────

// ChallengeClaims tracks claim attempts by outcome.
var ChallengeClaims = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kola",
	Name:      "challenge_claims_total",
	Help:      "Challenge claim attempts by outcome.",
}, []string{"outcome"})

// AchievementsUnlocked tracks unlocks by achievement code.
var AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kola",
	Name:      "achievements_unlocked_total",
	Help:      "Achievements unlocked, by code.",
}, []string{"code"})

// ─── Storage ────────────────────────────────────────────────────────────────

// TxRetries tracks operations retried after a concurrent update.
var TxRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kola",
	Name:      "tx_retries_total",
	Help:      "Operations retried after a concurrent update conflict.",
}, []string{"operation"})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequestDuration tracks request latency by route pattern and status.
var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "kola",
	Name:      "http_request_duration_seconds",
	Help:      "HTTP request duration in seconds.",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
}, []string{"method", "route", "status"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckFailures tracks failed health checks by name.
var HealthCheckFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kola",
	Name:      "health_check_failures_total",
	Help:      "Total failed health checks.",
}, []string{"check"})
