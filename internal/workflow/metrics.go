package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks prediction workflow activity.
type Metrics struct {
	submissions *prometheus.CounterVec
	duration    prometheus.Histogram
	inFlight    prometheus.Gauge
	workflows   prometheus.Gauge
	records     prometheus.Counter
}

// NewMetrics registers the workflow collectors on reg. A nil reg leaves the
// collectors unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oncoscope",
			Subsystem: "workflow",
			Name:      "submissions_total",
			Help:      "Prediction submissions by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "oncoscope",
			Subsystem: "workflow",
			Name:      "predict_duration_seconds",
			Help:      "Time from dispatch to a settled prediction call.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oncoscope",
			Subsystem: "workflow",
			Name:      "in_flight",
			Help:      "Prediction calls currently outstanding.",
		}),
		workflows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oncoscope",
			Subsystem: "workflow",
			Name:      "active",
			Help:      "Workflows held in memory.",
		}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oncoscope",
			Subsystem: "workflow",
			Name:      "records_total",
			Help:      "Result records received from the prediction service.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.submissions, m.duration, m.inFlight, m.workflows, m.records)
	}
	return m
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) settled(outcome string, elapsed time.Duration, records int) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.submissions.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
	m.records.Add(float64(records))
}

func (m *Metrics) setWorkflows(n int) {
	if m == nil {
		return
	}
	m.workflows.Set(float64(n))
}
