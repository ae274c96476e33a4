package observability

import (
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeTransient = "transient"
	OutcomeFatal     = "fatal"
)

// Metrics records runtime measurements into a dedicated Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	backendCalls   *prometheus.CounterVec
	backendRetries *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec

	toolCalls   *prometheus.CounterVec
	toolLatency *prometheus.HistogramVec

	agentRuns    *prometheus.CounterVec
	agentLatency *prometheus.HistogramVec

	runs       *prometheus.CounterVec
	activeRuns prometheus.Gauge

	bridgeLoops  prometheus.Counter
	bridgeNested prometheus.Counter
}

// NewMetrics registers every collector under namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "studymesh"
	}
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "backend", Name: "calls_total",
			Help: "Backend call attempts by model and outcome.",
		}, []string{"model", "outcome"}),
		backendRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "backend", Name: "retries_total",
			Help: "Backend retries scheduled after transient failures.",
		}, []string{"model"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "backend", Name: "call_duration_seconds",
			Help: "Duration of single backend attempts.", Buckets: prometheus.DefBuckets,
		}, []string{"model"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "tool", Name: "calls_total",
			Help: "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "tool", Name: "call_duration_seconds",
			Help: "Tool invocation duration.", Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		agentRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "agent", Name: "runs_total",
			Help: "Agent runs by agent and outcome, including nested agents and agent tools.",
		}, []string{"agent", "outcome"}),
		agentLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "agent", Name: "run_duration_seconds",
			Help: "Agent run duration, including nested agents and agent tools.", Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"agent"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "runner", Name: "runs_total",
			Help: "Runner invocations by outcome.",
		}, []string{"outcome"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "runner", Name: "active_runs",
			Help: "Runs currently holding a user session.",
		}),
		bridgeLoops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bridge", Name: "loops_started_total",
			Help: "Top-level scheduler loops started by the sync bridge.",
		}),
		bridgeNested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bridge", Name: "nested_tasks_total",
			Help: "Tasks submitted to an already running loop.",
		}),
	}

	reg.MustRegister(
		m.backendCalls, m.backendRetries, m.backendLatency,
		m.toolCalls, m.toolLatency,
		m.agentRuns, m.agentLatency,
		m.runs, m.activeRuns,
		m.bridgeLoops, m.bridgeNested,
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBackendCall records one backend attempt.
func (m *Metrics) ObserveBackendCall(model, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.backendCalls.WithLabelValues(model, outcome).Inc()
	m.backendLatency.WithLabelValues(model).Observe(d.Seconds())
}

// IncBackendRetry records a scheduled retry.
func (m *Metrics) IncBackendRetry(model string) {
	if m == nil {
		return
	}
	m.backendRetries.WithLabelValues(model).Inc()
}

// ObserveToolCall records one tool invocation.
func (m *Metrics) ObserveToolCall(tool, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolLatency.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveAgentRun records one top-level run.
func (m *Metrics) ObserveAgentRun(agent, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.agentRuns.WithLabelValues(agent, outcome).Inc()
	m.agentLatency.WithLabelValues(agent).Observe(d.Seconds())
}

// RunStarted marks a runner invocation as active.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
}

// RunFinished records the outcome of a runner invocation.
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
	m.runs.WithLabelValues(outcome).Inc()
}

// IncBridgeLoop records a new top-level loop.
func (m *Metrics) IncBridgeLoop() {
	if m == nil {
		return
	}
	m.bridgeLoops.Inc()
}

// IncBridgeNested records a nested task submission.
func (m *Metrics) IncBridgeNested() {
	if m == nil {
		return
	}
	m.bridgeNested.Inc()
}

// SummaryEntry aggregates one metric family.
type SummaryEntry struct {
	Name    string  `json:"name"`
	Count   float64 `json:"count"`
	Average float64 `json:"average,omitempty"`
}

// Summary flattens the registry into counts (counters) and
// count/average pairs (histograms), sorted by name.
func (m *Metrics) Summary() ([]SummaryEntry, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	var out []SummaryEntry
	for _, mf := range families {
		entry := SummaryEntry{Name: mf.GetName()}
		var sum float64
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				entry.Count += c.GetValue()
			}
			if h := metric.GetHistogram(); h != nil {
				entry.Count += float64(h.GetSampleCount())
				sum += h.GetSampleSum()
			}
		}
		if sum > 0 && entry.Count > 0 {
			entry.Average = sum / entry.Count
		}
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}
