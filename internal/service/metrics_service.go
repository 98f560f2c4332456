package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carddex/carddex-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the contribution pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	submissionTotal *prometheus.CounterVec
	reviewTotal     *prometheus.CounterVec
	autoApproved    prometheus.Counter
	duplicateDenied prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	submissionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submissions_total",
		Help: "Submissions accepted by the pipeline",
	}, []string{"kind", "status"})

	reviewTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submission_reviews_total",
		Help: "Review decisions applied to submissions",
	}, []string{"decision"})

	autoApproved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "submission_auto_approvals_total",
		Help: "Submissions applied synchronously through the auto-approval gate",
	})

	duplicateDenied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "submission_duplicates_denied_total",
		Help: "Submissions rejected by the duplicate guard",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, submissionTotal, reviewTotal, autoApproved, duplicateDenied, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		submissionTotal: submissionTotal,
		reviewTotal:     reviewTotal,
		autoApproved:    autoApproved,
		duplicateDenied: duplicateDenied,
	}
}

// Handler serves the /metrics endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one handled HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// ObserveSubmission records an accepted submission and its initial status.
func (s *MetricsService) ObserveSubmission(kind models.EntityKind, status models.SubmissionStatus) {
	s.submissionTotal.WithLabelValues(string(kind), string(status)).Inc()
}

// ObserveReview records a review decision.
func (s *MetricsService) ObserveReview(status models.SubmissionStatus) {
	s.reviewTotal.WithLabelValues(string(status)).Inc()
}

// ObserveAutoApproval records a synchronous auto-approval.
func (s *MetricsService) ObserveAutoApproval() {
	s.autoApproved.Inc()
}

// ObserveDuplicateDenied records a duplicate-guard rejection.
func (s *MetricsService) ObserveDuplicateDenied() {
	s.duplicateDenied.Inc()
}
