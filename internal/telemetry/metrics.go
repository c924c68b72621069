package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the prometheus collectors used across the pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	runs           *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	toolCalls      *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	schedulerFires prometheus.Counter
	queueDepth     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headliner_runs_total",
			Help: "Agent runs by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "headliner_run_duration_seconds",
			Help:    "Wall time of agent runs",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"trigger"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headliner_tool_calls_total",
			Help: "Tool invocations requested by the model",
		}, []string{"tool", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headliner_notifications_total",
			Help: "Telegram deliveries by outcome",
		}, []string{"outcome"}),
		schedulerFires: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headliner_scheduler_fires_total",
			Help: "Times the daily job fired",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "headliner_queue_depth",
			Help: "Run requests waiting for the worker",
		}),
	}
	for _, c := range []prometheus.Collector{m.runs, m.runDuration, m.toolCalls, m.notifications, m.schedulerFires, m.queueDepth} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RunFinished(trigger, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(trigger, outcome).Inc()
	m.runDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

func (m *Metrics) ToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) Notification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SchedulerFired() {
	if m == nil {
		return
	}
	m.schedulerFires.Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
