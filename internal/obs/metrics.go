package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	authEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_auth_events_total",
			Help: "Auth-state events handled by session controllers, by kind.",
		},
		[]string{"kind"},
	)

	profileFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_profile_fetches_total",
			Help: "Profile fetches by outcome (found, missing, error, stale).",
		},
		[]string{"outcome"},
	)

	recoveryOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_recovery_outcomes_total",
			Help: "Password-recovery page transitions by outcome.",
		},
		[]string{"outcome"},
	)

	activeVisitors = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_active_visitors",
		Help: "Visitors with a live session controller.",
	})

	initOnce sync.Once
)

// Init registers the metrics with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			authEvents, profileFetches, recoveryOutcomes, activeVisitors)
	})
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAuthEvent counts an auth-state event.
func ObserveAuthEvent(kind string) { authEvents.WithLabelValues(kind).Inc() }

// ObserveProfileFetch counts a profile fetch outcome.
func ObserveProfileFetch(outcome string) { profileFetches.WithLabelValues(outcome).Inc() }

// ObserveRecovery counts a recovery page outcome.
func ObserveRecovery(outcome string) { recoveryOutcomes.WithLabelValues(outcome).Inc() }

// SetActiveVisitors records the size of the visitor registry.
func SetActiveVisitors(n int) { activeVisitors.Set(float64(n)) }

// Instrument records request count, latency and in-flight gauge. The path
// label is the matched chi route pattern so ids do not explode cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)
		path := RoutePattern(r)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// RoutePattern returns the chi route pattern that served r, or "unmatched".
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
