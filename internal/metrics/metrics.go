// Package metrics provides Prometheus instrumentation for the cache
// service: a private registry, a promhttp handler, and a small Record*
// API that keeps instrumentation decoupled from cache internals.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus series the cache exposes. It is exercised
// internally (cachefs.Recorder) and scraped via Handler on its own metrics
// server, kept separate from the cache's public routes.
type Metrics struct {
	UploadsTotal   *prometheus.CounterVec
	DownloadsTotal *prometheus.CounterVec
	AliasesTotal   *prometheus.CounterVec
	EvictionsTotal *prometheus.CounterVec
	SlotSize       *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates and registers every series on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filecache_uploads_total",
				Help: "Total upload attempts by product, platform and outcome.",
			},
			[]string{"product", "platform", "outcome"},
		),
		DownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filecache_downloads_total",
				Help: "Total download attempts by product, platform and outcome.",
			},
			[]string{"product", "platform", "outcome"},
		),
		AliasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filecache_aliases_total",
				Help: "Total alias-creation attempts by product, platform and outcome.",
			},
			[]string{"product", "platform", "outcome"},
		),
		EvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filecache_evictions_total",
				Help: "Total evictions by product, platform and triggering rule.",
			},
			[]string{"product", "platform", "rule"},
		),
		SlotSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "filecache_slot_entries",
				Help: "Current entry count for a (product, platform) slot.",
			},
			[]string{"product", "platform"},
		),
		registry: reg,
	}

	reg.MustRegister(m.UploadsTotal, m.DownloadsTotal, m.AliasesTotal, m.EvictionsTotal, m.SlotSize)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordUpload implements cachefs.Recorder.
func (m *Metrics) RecordUpload(product, platform string) {
	m.UploadsTotal.WithLabelValues(product, platform, "stored").Inc()
}

// RecordUploadRejected implements cachefs.Recorder.
func (m *Metrics) RecordUploadRejected(product, platform string) {
	m.UploadsTotal.WithLabelValues(product, platform, "rejected").Inc()
}

// RecordDownload implements cachefs.Recorder.
func (m *Metrics) RecordDownload(product, platform string, hit bool) {
	outcome := "hit"
	if !hit {
		outcome = "miss"
	}
	m.DownloadsTotal.WithLabelValues(product, platform, outcome).Inc()
}

// RecordAliasCreated implements cachefs.Recorder.
func (m *Metrics) RecordAliasCreated(product, platform string) {
	m.AliasesTotal.WithLabelValues(product, platform, "created").Inc()
}

// RecordAliasRejected implements cachefs.Recorder.
func (m *Metrics) RecordAliasRejected(product, platform string) {
	m.AliasesTotal.WithLabelValues(product, platform, "rejected").Inc()
}

// RecordEviction implements cachefs.Recorder.
func (m *Metrics) RecordEviction(product, platform, rule string) {
	m.EvictionsTotal.WithLabelValues(product, platform, rule).Inc()
}

// ObserveSlotSize implements cachefs.Recorder.
func (m *Metrics) ObserveSlotSize(product, platform string, n int) {
	m.SlotSize.WithLabelValues(product, platform).Set(float64(n))
}
