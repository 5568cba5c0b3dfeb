package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics regroupe les compteurs exposés sur /metrics. Un *Metrics nil est
// accepté partout et n'enregistre rien.
type Metrics struct {
	registry         *prometheus.Registry
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	recomputeTotal   *prometheus.CounterVec
	recomputeSeconds prometheus.Histogram
	warningsTotal    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		recomputeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_recompute_total",
			Help: "Total forecast passes by result.",
		}, []string{"result"}),
		recomputeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_recompute_duration_seconds",
			Help:    "Histogram of forecast pass durations.",
			Buckets: prometheus.DefBuckets,
		}),
		warningsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_warnings_total",
			Help: "Total warnings returned by forecast passes.",
		}, []string{"warning"}),
	}
	m.registry.MustRegister(m.httpRequests, m.httpDuration, m.recomputeTotal, m.recomputeSeconds, m.warningsTotal)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware mesure chaque requête, étiquetée par le motif de route chi.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Recompute enregistre une passe de calcul.
func (m *Metrics) Recompute(duration time.Duration, warnings []string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.recomputeTotal.WithLabelValues(result).Inc()
	m.recomputeSeconds.Observe(duration.Seconds())
	for _, w := range warnings {
		m.warningsTotal.WithLabelValues(w).Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
