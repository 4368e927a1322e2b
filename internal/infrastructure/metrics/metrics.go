// Package metrics exports run, step and intent API metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"carvana-workflows/internal/application/port/output"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ output.RunRecorder = (*Recorder)(nil)

var (
	stepDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
	runDurationBuckets  = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120}
	httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
)

type Recorder struct {
	WorkflowRunsTotal   *prometheus.CounterVec
	WorkflowDuration    *prometheus.HistogramVec
	StepsTotal          *prometheus.CounterVec
	StepDuration        *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the instruments and registers them on reg. A nil reg gets a
// private registry.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &Recorder{
		WorkflowRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoflow_workflow_runs_total",
			Help: "Top-level workflow runs by outcome.",
		}, []string{"workflow", "outcome"}),
		WorkflowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autoflow_workflow_duration_seconds",
			Help:    "Top-level workflow run duration in seconds.",
			Buckets: runDurationBuckets,
		}, []string{"workflow"}),
		StepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoflow_steps_total",
			Help: "Executed steps by kind and outcome.",
		}, []string{"kind", "outcome"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autoflow_step_duration_seconds",
			Help:    "Step duration in seconds.",
			Buckets: stepDurationBuckets,
		}, []string{"kind"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autoflow_http_requests_total",
			Help: "Intent API requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autoflow_http_request_duration_seconds",
			Help:    "Intent API request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		gatherer: reg,
	}
	reg.MustRegister(
		r.WorkflowRunsTotal,
		r.WorkflowDuration,
		r.StepsTotal,
		r.StepDuration,
		r.HTTPRequestsTotal,
		r.HTTPRequestDuration,
	)
	return r
}

func (r *Recorder) WorkflowFinished(workflow, outcome string, d time.Duration) {
	r.WorkflowRunsTotal.WithLabelValues(workflow, outcome).Inc()
	r.WorkflowDuration.WithLabelValues(workflow).Observe(d.Seconds())
}

func (r *Recorder) StepFinished(kind, outcome string, d time.Duration) {
	r.StepsTotal.WithLabelValues(kind, outcome).Inc()
	r.StepDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request metrics labelled by chi's route pattern rather
// than the raw path.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, req)

		pattern := routePattern(req)
		r.HTTPRequestsTotal.WithLabelValues(req.Method, pattern, strconv.Itoa(sw.status)).Inc()
		r.HTTPRequestDuration.WithLabelValues(req.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	for strings.Contains(pattern, "/*/") {
		pattern = strings.ReplaceAll(pattern, "/*/", "/")
	}
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}
