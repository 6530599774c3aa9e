// Package metrics exposes Prometheus counters for HTTP traffic and the exam
// session lifecycle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered for one server.
type Metrics struct {
	gatherer prometheus.Gatherer

	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	SessionsStarted  *prometheus.CounterVec
	SessionsFinished *prometheus.CounterVec
	AnswersSubmitted *prometheus.CounterVec
	SessionAccuracy  *prometheus.HistogramVec
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		),
		SessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statexam_sessions_started_total",
				Help: "Sessions started by grade and mode",
			},
			[]string{"grade", "mode"},
		),
		SessionsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statexam_sessions_finished_total",
				Help: "Sessions finished by grade and mode",
			},
			[]string{"grade", "mode"},
		),
		AnswersSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statexam_answers_submitted_total",
				Help: "Answers accepted by mode",
			},
			[]string{"mode"},
		),
		SessionAccuracy: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "statexam_session_accuracy",
				Help:    "Accuracy of finished sessions",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"grade", "mode"},
		),
	}
	reg.MustRegister(
		m.RequestCounter,
		m.RequestDuration,
		m.SessionsStarted,
		m.SessionsFinished,
		m.AnswersSubmitted,
		m.SessionAccuracy,
		collectors.NewGoCollector(),
	)
	return m
}

// Middleware records request counts and latencies keyed by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
