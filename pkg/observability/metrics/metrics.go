package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the analysis service's Prometheus collectors.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	AnalysesTotal    *prometheus.CounterVec
	InferenceSeconds *prometheus.HistogramVec
	CasesStored      prometheus.Gauge
	EventsFailed     prometheus.Counter
	RateLimited      prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests to avoid duplicate registration.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "radiology_http_requests_total",
			Help: "HTTP requests served, by route and status code.",
		}, []string{"route", "code"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "radiology_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		AnalysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "radiology_analyses_total",
			Help: "Analyses processed, by type and outcome.",
		}, []string{"analysis_type", "outcome"}),
		InferenceSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "radiology_inference_seconds",
			Help:    "End-to-end inference latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"analysis_type"}),
		CasesStored: f.NewGauge(prometheus.GaugeOpts{
			Name: "radiology_cases_stored",
			Help: "Cases currently held by the case repository.",
		}),
		EventsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "radiology_events_publish_failed_total",
			Help: "analysis.completed events that could not be published.",
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "radiology_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		gatherer: reg,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
