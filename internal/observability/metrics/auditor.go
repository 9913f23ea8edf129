package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type AuditorMetrics struct {
	registry *prometheus.Registry

	tracesTotal   *prometheus.CounterVec
	traceEntries  *prometheus.HistogramVec
	traceLag      *prometheus.HistogramVec
	degradedTotal *prometheus.CounterVec
}

func NewAuditorMetrics(service string) *AuditorMetrics {
	registry := prometheus.NewRegistry()

	tracesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tce",
			Subsystem: "auditor",
			Name:      "traces_total",
			Help:      "Total consumed retrieval traces by status.",
		},
		[]string{"service", "status"},
	)
	traceEntries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tce",
			Subsystem: "auditor",
			Name:      "trace_entries",
			Help:      "Distribution of entries per consumed trace.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34, 55},
		},
		[]string{"service"},
	)
	traceLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tce",
			Subsystem: "auditor",
			Name:      "trace_lag_seconds",
			Help:      "Delay between trace creation and auditor consumption.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tce",
			Subsystem: "auditor",
			Name:      "degraded_channels_total",
			Help:      "Total degraded channels observed across consumed traces.",
		},
		[]string{"service", "channel"},
	)

	registry.MustRegister(tracesTotal, traceEntries, traceLag, degradedTotal)

	return &AuditorMetrics{
		registry:      registry,
		tracesTotal:   tracesTotal,
		traceEntries:  traceEntries,
		traceLag:      traceLag,
		degradedTotal: degradedTotal,
	}
}

func (m *AuditorMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *AuditorMetrics) RecordTrace(service string, entries int, degradedChannels []string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.tracesTotal.WithLabelValues(service, status).Inc()
	m.traceEntries.WithLabelValues(service).Observe(float64(entries))
	for _, channel := range degradedChannels {
		m.degradedTotal.WithLabelValues(service, channel).Inc()
	}
}

func (m *AuditorMetrics) ObserveTraceLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.traceLag.WithLabelValues(service).Observe(lag.Seconds())
}
