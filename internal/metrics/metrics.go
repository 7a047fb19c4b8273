package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts resolver outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	search     *prometheus.CounterVec
	trending   *prometheus.CounterVec
	taskFailed *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		search: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cinesearch",
			Name:      "search_resolutions_total",
			Help:      "Search resolutions by outcome.",
		}, []string{"outcome"}),
		trending: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cinesearch",
			Name:      "trending_resolutions_total",
			Help:      "Trending resolutions by the source that was served.",
		}, []string{"source"}),
		taskFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cinesearch",
			Name:      "background_task_failures_total",
			Help:      "Best-effort background writes that failed.",
		}, []string{"task"}),
	}
	m.registry.MustRegister(
		m.search,
		m.trending,
		m.taskFailed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) SearchResolved(outcome string) {
	if m == nil {
		return
	}
	m.search.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TrendingResolved(source string) {
	if m == nil {
		return
	}
	m.trending.WithLabelValues(source).Inc()
}

func (m *Metrics) TaskFailed(name string) {
	if m == nil {
		return
	}
	m.taskFailed.WithLabelValues(name).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
