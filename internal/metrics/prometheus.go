package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scoring run outcomes.
const (
	OutcomeScored     = "scored"
	OutcomeError      = "error"
	OutcomeSuperseded = "superseded"
)

// Hotkey action results.
const (
	ResultDone        = "done"
	ResultUnavailable = "unavailable"
	ResultNotFound    = "not_found"
	ResultIgnored     = "ignored"
)

// Manager owns the application metrics. A nil *Manager is valid and records
// nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         *prometheus.Registry

	scoringRuns      *prometheus.CounterVec
	scoringLatency   prometheus.Histogram
	hotkeyActions    *prometheus.CounterVec
	autoscanTriggers prometheus.Counter
	completionErrors *prometheus.CounterVec
}

// NewManager creates a metrics manager on its own registry unless
// WithRegistry is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "liqa",
		histogramBuckets: []float64{250, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		constLabels:      make(map[string]string),
		registry:         prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.scoringRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "scoring_runs_total",
		Help:        "Total number of scoring runs by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "scoring_latency_milliseconds",
		Help:        "Time from scoring request to a presented result",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.hotkeyActions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "hotkey_actions_total",
		Help:        "Total number of hotkey actions by action and result",
		ConstLabels: m.constLabels,
	}, []string{"action", "result"})

	m.autoscanTriggers = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "autoscan_triggers_total",
		Help:        "Total number of scoring runs started by autoscan",
		ConstLabels: m.constLabels,
	})

	m.completionErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "completion_errors_total",
		Help:        "Total number of failed completion calls by provider",
		ConstLabels: m.constLabels,
	}, []string{"provider"})
}

// Registry returns the registry the metrics live on.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordScoringRun counts a finished scoring run. Latency is only observed
// for runs that produced a score.
func (m *Manager) RecordScoringRun(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.scoringRuns.WithLabelValues(outcome).Inc()
	if outcome == OutcomeScored {
		m.scoringLatency.Observe(float64(elapsed.Milliseconds()))
	}
}

// RecordHotkey counts a hotkey action.
func (m *Manager) RecordHotkey(action, result string) {
	if m == nil {
		return
	}
	m.hotkeyActions.WithLabelValues(action, result).Inc()
}

// RecordAutoscan counts an autoscan triggered run.
func (m *Manager) RecordAutoscan() {
	if m == nil {
		return
	}
	m.autoscanTriggers.Inc()
}

// RecordCompletionError counts a failed completion call.
func (m *Manager) RecordCompletionError(provider string) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "unknown"
	}
	m.completionErrors.WithLabelValues(provider).Inc()
}
