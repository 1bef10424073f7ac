package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector exposed on /metrics.
var Registry = prometheus.NewRegistry()

var (
	reviewsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reviews_submitted_total",
		Help: "Plan reviews accepted for analysis",
	})
	reviewsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reviews_completed_total",
		Help: "Plan reviews that finished with an analysis",
	})
	reviewsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reviews_failed_total",
		Help: "Plan reviews that finished with an error",
	})
	analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "review_analysis_duration_seconds",
		Help:    "Time spent analyzing a plan",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})
	jobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_jobs_total",
		Help: "Queue jobs handled by the review worker, by outcome",
	}, []string{"outcome"})
	webhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound CRM webhook events, by outcome",
	}, []string{"outcome"})
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests served, by method, route and status",
	}, []string{"method", "route", "status"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		reviewsSubmitted,
		reviewsCompleted,
		reviewsFailed,
		analysisDuration,
		jobs,
		webhookEvents,
		httpRequests,
	)
}

// IncReviewSubmitted increments the submitted counter.
func IncReviewSubmitted() { reviewsSubmitted.Inc() }

// IncReviewCompleted increments the completed counter.
func IncReviewCompleted() { reviewsCompleted.Inc() }

// IncReviewFailed increments the failed counter.
func IncReviewFailed() { reviewsFailed.Inc() }

// ObserveAnalysisDuration records how long one analysis took.
func ObserveAnalysisDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	analysisDuration.Observe(d.Seconds())
}

// IncJob counts a queue job by outcome: enqueued, received, completed, failed, unrecoverable.
func IncJob(outcome string) { jobs.WithLabelValues(outcome).Inc() }

// IncWebhookEvent counts a webhook event by outcome: triggered, skipped, error.
func IncWebhookEvent(outcome string) { webhookEvents.WithLabelValues(outcome).Inc() }

// ObserveRequest counts a served request.
func ObserveRequest(method, route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// HTTPHandler is Handler for plain net/http muxes.
func HTTPHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
