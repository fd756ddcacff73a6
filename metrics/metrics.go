// Package metrics exposes Prometheus counters and histograms for the
// curation pipeline. All methods are nil-safe so callers can run without
// metrics wired.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's instruments.
type Metrics struct {
	registry *prometheus.Registry

	urlsProcessed  *prometheus.CounterVec
	imagesAdmitted prometheus.Counter
	imagesRejected prometheus.Counter
	imageFailures  prometheus.Counter
	runDuration    prometheus.Histogram
	renderDuration prometheus.Histogram
	modelFallbacks prometheus.Counter
}

// New registers the pipeline instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		urlsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_urls_processed_total",
			Help: "URLs processed, by terminal status.",
		}, []string{"status"}),
		imagesAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curator_images_admitted_total",
			Help: "Image candidates admitted by the vision filter.",
		}),
		imagesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curator_images_rejected_total",
			Help: "Image candidates rejected by the vision filter.",
		}),
		imageFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curator_image_failures_total",
			Help: "Admitted images that failed to download or upload.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "curator_run_duration_seconds",
			Help:    "Wall time of full pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "curator_render_duration_seconds",
			Help:    "Wall time of headless page renders.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		modelFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "curator_model_fallbacks_total",
			Help: "LLM calls answered by a fallback model.",
		}),
	}

	reg.MustRegister(
		m.urlsProcessed,
		m.imagesAdmitted,
		m.imagesRejected,
		m.imageFailures,
		m.runDuration,
		m.renderDuration,
		m.modelFallbacks,
	)
	return m
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// URLProcessed counts one URL reaching a terminal status.
func (m *Metrics) URLProcessed(status string) {
	if m == nil {
		return
	}
	m.urlsProcessed.WithLabelValues(status).Inc()
}

// ImageAdmitted counts a vision-filter admission.
func (m *Metrics) ImageAdmitted() {
	if m == nil {
		return
	}
	m.imagesAdmitted.Inc()
}

// ImageRejected counts a vision-filter rejection.
func (m *Metrics) ImageRejected() {
	if m == nil {
		return
	}
	m.imagesRejected.Inc()
}

// ImageFailure counts an admitted image that failed locally.
func (m *Metrics) ImageFailure() {
	if m == nil {
		return
	}
	m.imageFailures.Inc()
}

// RunCompleted records a full run's duration.
func (m *Metrics) RunCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(d.Seconds())
}

// RenderCompleted records one page render's duration.
func (m *Metrics) RenderCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.Observe(d.Seconds())
}

// ModelFallback counts an LLM call served by a non-primary model.
func (m *Metrics) ModelFallback() {
	if m == nil {
		return
	}
	m.modelFallbacks.Inc()
}
