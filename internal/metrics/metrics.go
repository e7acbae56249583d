// Package metrics exposes Prometheus collectors for the HTTP surface and family provisioning.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "carecoins",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carecoins",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carecoins",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	familiesProvisioned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "carecoins",
			Subsystem: "provisioning",
			Name:      "families_total",
			Help:      "Total number of families created.",
		},
	)

	actorsProvisioned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carecoins",
			Subsystem: "provisioning",
			Name:      "actors_total",
			Help:      "Total number of actors created during provisioning.",
		},
		[]string{"type"},
	)

	provisioningFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carecoins",
			Subsystem: "provisioning",
			Name:      "failures_total",
			Help:      "Provisioning failures by the write that failed.",
		},
		[]string{"stage"},
	)

	startingCoins = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "carecoins",
			Subsystem: "accrual",
			Name:      "starting_coins",
			Help:      "Starting coins computed per actor.",
			Buckets:   prometheus.LinearBuckets(0, 200, 10),
		},
	)

	familyJoins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carecoins",
			Subsystem: "families",
			Name:      "joins_total",
			Help:      "PIN join attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		familiesProvisioned,
		actorsProvisioned,
		provisioningFailures,
		startingCoins,
		familyJoins,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordProvisioned records a successfully created family and its actors by type.
func RecordProvisioned(actorTypes []string, coins []int) {
	familiesProvisioned.Inc()
	for _, t := range actorTypes {
		actorsProvisioned.WithLabelValues(t).Inc()
	}
	for _, c := range coins {
		startingCoins.Observe(float64(c))
	}
}

// RecordProvisioningFailure records a failed provisioning write (family, actors or user).
func RecordProvisioningFailure(stage string) {
	provisioningFailures.WithLabelValues(stage).Inc()
}

// RecordJoin records a PIN join attempt outcome.
func RecordJoin(outcome string) {
	familyJoins.WithLabelValues(outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath keeps /functions/v1/<name> and collapses everything else to its first segment
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 3 && parts[0] == "functions" && parts[1] == "v1" {
		return "/functions/v1/" + parts[2]
	}
	return "/" + parts[0]
}
