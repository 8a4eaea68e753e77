package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric exported by the service.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// CasesAnalyzed counts completed analyses by kind (image, video).
	CasesAnalyzed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incident",
		Name:      "cases_analyzed_total",
		Help:      "Cases analysed, by media kind.",
	}, []string{"kind"})

	// CacheLookups counts result cache lookups by outcome (hit, miss).
	CacheLookups = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incident",
		Name:      "cache_lookups_total",
		Help:      "Image result cache lookups, by outcome.",
	}, []string{"outcome"})

	// CollaboratorFailures counts degraded collaborator calls.
	CollaboratorFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incident",
		Name:      "collaborator_failures_total",
		Help:      "Collaborator calls that failed and were degraded.",
	}, []string{"collaborator"})

	// FramesProcessed counts sampled video frames run through the engine.
	FramesProcessed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "incident",
		Name:      "frames_processed_total",
		Help:      "Sampled video frames analysed.",
	})

	// EventsPublished counts case events by outcome (delivered, failed).
	EventsPublished = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incident",
		Name:      "events_published_total",
		Help:      "Case events handed to the broker, by outcome.",
	}, []string{"outcome"})

	// HTTPRequests counts API requests by route pattern and status code.
	HTTPRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incident",
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route and status code.",
	}, []string{"route", "code"})

	// AnalysisDuration observes wall time per analysis by kind.
	AnalysisDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "incident",
		Name:      "analysis_duration_seconds",
		Help:      "Analysis wall time, by media kind.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"kind"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// MetricsHandler serves the registry in the Prometheus exposition format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
