package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/tutor-context/internal/core/domain"
)

type ComposeMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	composeTotal      *prometheus.CounterVec
	composeDuration   *prometheus.HistogramVec
	channelCandidates *prometheus.HistogramVec
	channelDegraded   *prometheus.CounterVec
	chunksReturned    *prometheus.HistogramVec
	tokensUsed        *prometheus.HistogramVec
	decisionsTotal    *prometheus.CounterVec
	emptyContextTotal *prometheus.CounterVec
}

func NewComposeMetrics(service string) *ComposeMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tce",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tce",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tce",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	composeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tce",
			Subsystem: "compose",
			Name:      "requests_total",
			Help:      "Total context composition requests by outcome.",
		},
		[]string{"service", "outcome"},
	)
	composeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tce",
			Subsystem: "compose",
			Name:      "duration_seconds",
			Help:      "Context composition duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	channelCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tce",
			Subsystem: "compose",
			Name:      "channel_candidates",
			Help:      "Distribution of candidates contributed per retrieval channel.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service", "channel"},
	)
	channelDegraded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tce",
			Subsystem: "compose",
			Name:      "channel_degraded_total",
			Help:      "Total compositions where a retrieval channel failed or timed out.",
		},
		[]string{"service", "channel"},
	)
	chunksReturned := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tce",
			Subsystem: "compose",
			Name:      "chunks_returned",
			Help:      "Distribution of chunks included in the assembled context.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	tokensUsed := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tce",
			Subsystem: "compose",
			Name:      "tokens_used",
			Help:      "Distribution of retrieval tokens spent per composition.",
			Buckets:   []float64{0, 64, 128, 256, 512, 1024, 2048, 4096, 8192},
		},
		[]string{"service"},
	)
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tce",
			Subsystem: "compose",
			Name:      "decisions_total",
			Help:      "Total trace decisions by kind.",
		},
		[]string{"service", "decision"},
	)
	emptyContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tce",
			Subsystem: "compose",
			Name:      "empty_context_total",
			Help:      "Total compositions that produced no chunks.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		composeTotal,
		composeDuration,
		channelCandidates,
		channelDegraded,
		chunksReturned,
		tokensUsed,
		decisionsTotal,
		emptyContextTotal,
	)

	return &ComposeMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		composeTotal:      composeTotal,
		composeDuration:   composeDuration,
		channelCandidates: channelCandidates,
		channelDegraded:   channelDegraded,
		chunksReturned:    chunksReturned,
		tokensUsed:        tokensUsed,
		decisionsTotal:    decisionsTotal,
		emptyContextTotal: emptyContextTotal,
	}
}

func (m *ComposeMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ComposeMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// RecordComposition flattens one assembled context into counters so
// degraded channels and trimming show up on dashboards without
// reading traces.
func (m *ComposeMetrics) RecordComposition(service string, result *domain.AssembledContext, duration time.Duration) {
	m.composeTotal.WithLabelValues(service, "success").Inc()
	m.composeDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.chunksReturned.WithLabelValues(service).Observe(float64(len(result.OrderedChunks)))
	m.tokensUsed.WithLabelValues(service).Observe(float64(result.TokensUsed))

	for _, channel := range result.Trace.DegradedChannels {
		m.channelDegraded.WithLabelValues(service, string(channel)).Inc()
	}

	perChannel := make(map[domain.Channel]int, 3)
	for _, entry := range result.Trace.Entries {
		m.decisionsTotal.WithLabelValues(service, string(entry.Decision)).Inc()
		for channel, score := range entry.ChannelScores {
			if score > 0 {
				perChannel[channel]++
			}
		}
	}
	for _, channel := range domain.Channels() {
		m.channelCandidates.WithLabelValues(service, string(channel)).Observe(float64(perChannel[channel]))
	}

	if len(result.OrderedChunks) == 0 {
		m.emptyContextTotal.WithLabelValues(service).Inc()
	}
}

func (m *ComposeMetrics) RecordCompositionError(service string, duration time.Duration) {
	m.composeTotal.WithLabelValues(service, "error").Inc()
	m.composeDuration.WithLabelValues(service).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
