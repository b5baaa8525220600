package council

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus collectors for council execution monitoring.
//
// Metrics exposed (all namespaced with "council_"):
//
//  1. inflight_model_calls (gauge): model calls currently executing.
//  2. model_call_duration_seconds (histogram): per-call wall time.
//     Labels: model, stage, status (success or failure kind).
//  3. model_call_retries_total (counter): retry attempts.
//     Labels: model, reason.
//  4. turns_total (counter): finished turns. Labels: status
//     ("committed" or the turn-fatal code).
//  5. turn_duration_seconds (histogram): full three-stage turn wall time.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := council.NewMetrics(registry)
//	eng := council.New(cfg, client, store, council.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// All methods are nil-safe: an engine constructed without metrics skips
// collection entirely.
type Metrics struct {
	inflightCalls prometheus.Gauge
	callDuration  *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	turns         *prometheus.CounterVec
	turnDuration  prometheus.Histogram
}

// NewMetrics creates and registers all council metrics with the provided
// registry. Pass prometheus.DefaultRegisterer for the global registry, or a
// private registry for isolation (recommended in tests).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		inflightCalls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "council",
			Name:      "inflight_model_calls",
			Help:      "Model calls currently in flight across all stages",
		}),
		callDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "council",
			Name:      "model_call_duration_seconds",
			Help:      "Wall-clock duration of individual model calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"model", "stage", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "council",
			Name:      "model_call_retries_total",
			Help:      "Retry attempts for transient model-call failures",
		}, []string{"model", "reason"}),
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "council",
			Name:      "turns_total",
			Help:      "Finished deliberation turns by outcome",
		}, []string{"status"}),
		turnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "council",
			Name:      "turn_duration_seconds",
			Help:      "Wall-clock duration of complete three-stage turns",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),
	}
}

func (m *Metrics) callStarted() {
	if m == nil {
		return
	}
	m.inflightCalls.Inc()
}

func (m *Metrics) callFinished() {
	if m == nil {
		return
	}
	m.inflightCalls.Dec()
}

func (m *Metrics) observeCall(modelName, stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.callDuration.WithLabelValues(modelName, stage, status).Observe(d.Seconds())
}

func (m *Metrics) retried(modelName, reason string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(modelName, reason).Inc()
}

func (m *Metrics) turnFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(status).Inc()
	m.turnDuration.Observe(d.Seconds())
}
