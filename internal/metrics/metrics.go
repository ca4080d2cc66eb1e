package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/arosnov/schedhook/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Executor metrics

	AttemptDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scheduler",
		Name:      "attempt_duration_seconds",
		Help:      "Duration of a single HTTP attempt, by error class.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"class"})

	RunsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scheduler",
		Name:      "runs_in_flight",
		Help:      "Number of runs currently being executed.",
	})

	RunsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "runs_completed_total",
		Help:      "Total runs reaching a terminal status.",
	}, []string{"status"})

	// Scheduler metrics

	SchedulesArmedTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scheduler",
		Name:      "schedules_armed",
		Help:      "Number of schedules with a currently armed timer.",
	})

	FiringsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "firings_total",
		Help:      "Total schedule firings, by outcome (enqueued/duplicate/skipped_inflight).",
	}, []string{"outcome"})

	MisfiresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "misfires_total",
		Help:      "Total firings that were missed past the grace period and dropped.",
	})

	// Recovery metrics

	RecoveryOrphanedRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "recovery_orphaned_runs_total",
		Help:      "Runs failed as orphaned during the most recent startup recovery.",
	})

	RecoveryRearmedSchedulesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "recovery_rearmed_schedules_total",
		Help:      "Schedules rearmed during the most recent startup recovery.",
	})

	// Process lifecycle

	ProcessStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scheduler",
		Name:      "process_start_time_seconds",
		Help:      "Unix timestamp when this process started.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scheduler",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		AttemptDuration,
		RunsInFlight,
		RunsCompletedTotal,
		SchedulesArmedTotal,
		FiringsTotal,
		MisfiresTotal,
		RecoveryOrphanedRunsTotal,
		RecoveryRearmedSchedulesTotal,
		ProcessStartTime,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer builds the sidecar server exposing /metrics alongside the
// liveness and readiness probes backed by checker.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if result.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(result)
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}
