// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's counters and gauges. Construct once in main
// and pass down; tests use New with a private registry.
type Metrics struct {
	PatternsDetected  *prometheus.CounterVec
	AlertsGenerated   prometheus.Counter
	DetectionFailures *prometheus.CounterVec
	JobsEnqueued      prometheus.Counter
	JobsProcessed     prometheus.Counter
	JobsDropped       prometheus.Counter
	QueueDepth        prometheus.Gauge
}

// New registers the engine metrics on reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PatternsDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "insight_patterns_detected_total",
			Help: "Detected patterns persisted, by pattern class.",
		}, []string{"pattern_class"}),
		AlertsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "insight_alerts_generated_total",
			Help: "Alerts created from detected patterns.",
		}),
		DetectionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "insight_detection_failures_total",
			Help: "Rule evaluation or persistence failures, by rule.",
		}, []string{"rule"}),
		JobsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "insight_detection_jobs_enqueued_total",
			Help: "Detection jobs accepted onto the work queue.",
		}),
		JobsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "insight_detection_jobs_processed_total",
			Help: "Detection jobs completed by workers.",
		}),
		JobsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "insight_detection_jobs_dropped_total",
			Help: "Detection jobs dropped because the queue was full.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "insight_detection_queue_depth",
			Help: "Jobs currently waiting on the work queue.",
		}),
	}
}
