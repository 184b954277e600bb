package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	issuesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issues_created_total",
			Help: "Total number of issues created",
		},
		[]string{"department", "priority"},
	)

	issuesStatusChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issues_status_changed_total",
			Help: "Total number of issue status transitions",
		},
		[]string{"from_status", "to_status"},
	)

	transitionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issue_transitions_rejected_total",
			Help: "Total number of lifecycle transitions rejected by validation",
		},
		[]string{"operation"},
	)

	escalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issue_escalations_total",
			Help: "Total number of escalation requests and decisions",
		},
		[]string{"outcome"}, // requested, approved, rejected
	)

	proofDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proof_decisions_total",
			Help: "Total number of proof-of-work review decisions",
		},
		[]string{"decision"},
	)

	writeConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "issue_write_conflicts_total",
			Help: "Total number of updates lost to a concurrent writer",
		},
	)

	scoringRecomputes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoring_recomputes_total",
			Help: "Total number of score recomputations from the issue store",
		},
	)

	leaderboardDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leaderboard_computation_duration_seconds",
			Help:    "Full leaderboard computation duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	classifierRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifier_requests_total",
			Help: "Total number of classification requests",
		},
		[]string{"outcome"}, // classified, rejected, failed
	)

	portalMirrorFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_mirror_failures_total",
			Help: "Total number of failed status mirrors to the citizen portal",
		},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	// Replace UUIDs with placeholder
	// Simple heuristic: segments that look like UUIDs
	// In production, use proper path templates
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordIssueCreated records an issue creation
func RecordIssueCreated(department, priority string) {
	issuesCreated.WithLabelValues(department, priority).Inc()
}

// RecordStatusChange records a lifecycle status transition
func RecordStatusChange(fromStatus, toStatus string) {
	issuesStatusChanged.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordTransitionRejected records a transition rejected by validation
func RecordTransitionRejected(operation string) {
	transitionsRejected.WithLabelValues(operation).Inc()
}

// RecordEscalation records an escalation request or decision outcome
func RecordEscalation(outcome string) {
	escalationsTotal.WithLabelValues(outcome).Inc()
}

// RecordProofDecision records a proof-of-work review decision
func RecordProofDecision(decision string) {
	proofDecisions.WithLabelValues(decision).Inc()
}

// RecordWriteConflict records an update lost to a concurrent writer
func RecordWriteConflict() {
	writeConflicts.Inc()
}

// RecordScoringRecompute records one score recomputation
func RecordScoringRecompute() {
	scoringRecomputes.Inc()
}

// RecordLeaderboardDuration records a full leaderboard computation
func RecordLeaderboardDuration(duration time.Duration) {
	leaderboardDuration.Observe(duration.Seconds())
}

// RecordClassifierRequest records a classification attempt outcome
func RecordClassifierRequest(outcome string) {
	classifierRequests.WithLabelValues(outcome).Inc()
}

// RecordPortalMirrorFailure records one failed status mirror
func RecordPortalMirrorFailure() {
	portalMirrorFailures.Inc()
}

// RecordDBConnections records active database connections
func RecordDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
