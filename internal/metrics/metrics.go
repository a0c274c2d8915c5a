// Package metrics exposes Prometheus instrumentation for the matching engine
// and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/biomatch-server/internal/domain"
)

// Metrics holds every collector, registered on one registry
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	samplesIngested *prometheus.CounterVec
	matchesReturned *prometheus.CounterVec
	matchDuration   *prometheus.HistogramVec
	compositeScores prometheus.Histogram
	reviewDecisions *prometheus.CounterVec
	donorContacts   *prometheus.CounterVec
}

// New registers collectors on a fresh registry, including the Go and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		samplesIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biomatch_samples_ingested_total",
				Help: "Samples ingested, by sample type and outcome",
			},
			[]string{"sample_type", "outcome"},
		),
		matchesReturned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biomatch_matches_returned_total",
				Help: "Match results returned, by sample type and compatibility tier",
			},
			[]string{"sample_type", "tier"},
		),
		matchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "biomatch_match_duration_seconds",
				Help:    "Wall time of one findMatches call",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"sample_type"},
		),
		compositeScores: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "biomatch_composite_score",
				Help:    "Distribution of composite compatibility scores",
				Buckets: []float64{50, 60, 70, 75, 80, 85, 90, 95, 100},
			},
		),
		reviewDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biomatch_review_events_total",
				Help: "Doctor review queue events, by resulting status",
			},
			[]string{"status"},
		),
		donorContacts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biomatch_donor_contacts_total",
				Help: "Donor contact requests, by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveIngest counts an ingest attempt
func (m *Metrics) ObserveIngest(sampleType domain.SampleType, err error) {
	label := string(sampleType)
	if label == "" {
		label = "unknown"
	}
	m.samplesIngested.WithLabelValues(label, outcome(err)).Inc()
}

// ObserveMatches records one findMatches call
func (m *Metrics) ObserveMatches(sampleType domain.SampleType, results []*domain.MatchResult, elapsed time.Duration) {
	m.matchDuration.WithLabelValues(string(sampleType)).Observe(elapsed.Seconds())
	for _, r := range results {
		m.matchesReturned.WithLabelValues(string(sampleType), string(r.CompatibilityTier)).Inc()
		m.compositeScores.Observe(float64(r.CompositeScore))
	}
}

// ObserveReview counts a review queue event
func (m *Metrics) ObserveReview(status domain.ReviewStatus) {
	m.reviewDecisions.WithLabelValues(string(status)).Inc()
}

// ObserveContact counts a donor contact attempt
func (m *Metrics) ObserveContact(err error) {
	m.donorContacts.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return domain.ErrorCode(err)
	}
	return "ok"
}

// Middleware records HTTP request metrics using the matched route as the path label
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
