// Package monitoring exposes request metrics and health checks.
package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/conneroisu/ssrgate/internal/outcome"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig names and sizes the collectors.
type MetricsConfig struct {
	Namespace       string
	DurationBuckets []float64
	// Runtime adds the Go and process collectors.
	Runtime bool
}

// Metrics tracks page outcomes and locale redirects. It implements
// outcome.Sink so it can be teed next to the log sink.
//
// Metrics:
//   - <ns>_page_requests_total: finalized page requests by outcome, status, locale
//   - <ns>_page_duration_seconds: page pipeline duration by outcome
//   - <ns>_locale_redirects_total: canonicalizing redirects by target locale
//   - <ns>_locale_fallbacks_total: pages served from a fallback locale
type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	redirects *prometheus.CounterVec
	fallbacks prometheus.Counter
}

// NewMetrics creates and registers the collectors on a private registry.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "ssrgate"
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = prometheus.DefBuckets
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "page_requests_total",
				Help:      "Page requests by final outcome",
			},
			[]string{"outcome", "status", "locale"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "page_duration_seconds",
				Help:      "Duration of the page pipeline in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"outcome"},
		),
		redirects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "locale_redirects_total",
				Help:      "Canonicalizing locale redirects by target locale",
			},
			[]string{"locale"},
		),
		fallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "locale_fallbacks_total",
				Help:      "Pages served from a fallback locale",
			},
		),
	}

	m.registry.MustRegister(m.requests, m.duration, m.redirects, m.fallbacks)
	if cfg.Runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return m
}

// Emit implements outcome.Sink.
func (m *Metrics) Emit(_ context.Context, rec outcome.Record) {
	m.requests.WithLabelValues(string(rec.Kind), statusLabel(rec.Status), rec.Locale).Inc()
	seconds := (time.Duration(rec.DurationMs * float64(time.Millisecond))).Seconds()
	m.duration.WithLabelValues(string(rec.Kind)).Observe(seconds)
	if len(rec.Fallbacks) > 0 {
		m.fallbacks.Inc()
	}
}

// RecordRedirect counts a redirect to locale.
func (m *Metrics) RecordRedirect(locale string) {
	m.redirects.WithLabelValues(locale).Inc()
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		if status == 404 {
			return "404"
		}
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
