package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CTAG07/pagetags/pkg/templating"
)

// Metrics holds the Prometheus collectors exposed on /metrics.
type Metrics struct {
	registry       *prometheus.Registry
	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	apiRequests    *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry, together with the
// Go runtime and process collectors and a gauge of loaded templates.
func NewMetrics(tm *templating.TemplateManager) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagetags",
			Name:      "renders_total",
			Help:      "Page renders by template and outcome.",
		}, []string{"template", "outcome"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pagetags",
			Name:      "render_duration_seconds",
			Help:      "Time spent running directives and executing a template.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"template"}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagetags",
			Name:      "api_requests_total",
			Help:      "API requests by method and status code.",
		}, []string{"method", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.renders,
		m.renderDuration,
		m.apiRequests,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "pagetags",
			Name:      "templates_loaded",
			Help:      "Number of page templates currently loaded.",
		}, func() float64 {
			return float64(len(tm.GetTemplateNames(false)))
		}),
	)
	return m
}

// ObserveRender records the outcome and duration of one template render.
func (m *Metrics) ObserveRender(template string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.renders.WithLabelValues(template, outcome).Inc()
	m.renderDuration.WithLabelValues(template).Observe(time.Since(start).Seconds())
}

// InstrumentAPI counts the requests passing through next.
func (m *Metrics) InstrumentAPI(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(m.apiRequests, next)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
