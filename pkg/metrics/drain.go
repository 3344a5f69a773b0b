package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DrainMetrics records metadata for outbox drain cycles.
type DrainMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewDrainMetrics registers the drain metrics on the provided registerer.
func NewDrainMetrics(reg prometheus.Registerer) *DrainMetrics {
	if reg == nil {
		return &DrainMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_drain_duration_seconds",
		Help:    "Duration of outbox drain cycles in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"consumer"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_delivered",
		Help: "Outbox events delivered to a consumer.",
	}, []string{"consumer"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_failed",
		Help: "Outbox events that failed delivery.",
	}, []string{"consumer"})
	reg.MustRegister(duration, success, failure)
	return &DrainMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named consumer.
func (d *DrainMetrics) ObserveDuration(consumer string, duration time.Duration) {
	if d == nil || d.duration == nil {
		return
	}
	d.duration.WithLabelValues(normalizeLabel(consumer)).Observe(duration.Seconds())
}

// IncSuccess increments the delivery counter for the named consumer.
func (d *DrainMetrics) IncSuccess(consumer string) {
	if d == nil || d.success == nil {
		return
	}
	d.success.WithLabelValues(normalizeLabel(consumer)).Inc()
}

// IncFailure increments the failure counter for the named consumer.
func (d *DrainMetrics) IncFailure(consumer string) {
	if d == nil || d.failure == nil {
		return
	}
	d.failure.WithLabelValues(normalizeLabel(consumer)).Inc()
}
