package telemetry

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odvcencio/regionfocus/pkg/focus"
)

// DefaultNamespace prefixes every metric name when none is configured.
const DefaultNamespace = "regionfocus"

// Metrics records engine activity as prometheus collectors. It implements
// focus.Recorder.
type Metrics struct {
	gatherer prometheus.Gatherer

	regionsActive   prometheus.Gauge
	reconciliations *prometheus.CounterVec
	resolveDepth    prometheus.Histogram
	borrows         *prometheus.CounterVec
	releases        *prometheus.CounterVec
	violations      *prometheus.CounterVec
}

var _ focus.Recorder = (*Metrics)(nil)

// NewMetrics registers the engine collectors on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetricsWith(reg, reg, namespace)
}

// NewMetricsWith registers the engine collectors on reg and serves them from
// gatherer. Pass prometheus.DefaultRegisterer and DefaultGatherer to share
// the process-wide registry.
func NewMetricsWith(reg prometheus.Registerer, gatherer prometheus.Gatherer, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		regionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "region",
			Name:      "active",
			Help:      "Number of live focus regions.",
		}),
		reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "total",
			Help:      "Reconciliations by the action they took.",
		}, []string{"action"}),
		resolveDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "resolve_depth",
			Help:      "Regions consulted to find a fallback when focus was lost.",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		}),
		borrows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "borrow",
			Name:      "total",
			Help:      "Focus borrows, split by whether a live session was replaced.",
		}, []string{"replaced"}),
		releases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "release",
			Name:      "total",
			Help:      "Borrow session releases by outcome.",
		}, []string{"outcome"}),
		violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contract",
			Name:      "violations_total",
			Help:      "Rejected calls by operation.",
		}, []string{"op"}),
	}
}

// RegionsActive implements focus.Recorder.
func (m *Metrics) RegionsActive(n int) {
	m.regionsActive.Set(float64(n))
}

// Reconciled implements focus.Recorder. Depth is only observed when focus
// actually moved.
func (m *Metrics) Reconciled(action focus.Action, depth int) {
	m.reconciliations.WithLabelValues(action.String()).Inc()
	if action != focus.ActionNone {
		m.resolveDepth.Observe(float64(depth))
	}
}

// Borrowed implements focus.Recorder.
func (m *Metrics) Borrowed(replaced bool) {
	m.borrows.WithLabelValues(strconv.FormatBool(replaced)).Inc()
}

// Released implements focus.Recorder.
func (m *Metrics) Released(outcome focus.ReleaseOutcome) {
	m.releases.WithLabelValues(string(outcome)).Inc()
}

// Violation implements focus.Recorder.
func (m *Metrics) Violation(op string) {
	m.violations.WithLabelValues(op).Inc()
}

// Handler serves the collected metrics in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
