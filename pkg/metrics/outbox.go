package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crewsync"

// Send outcomes recorded per outbox item.
const (
	ResultSent     = "sent"
	ResultConflict = "conflict"
	ResultFailed   = "failed"
)

// OutboxMetrics tracks queue depth and delivery outcomes. A nil receiver is a no-op.
type OutboxMetrics struct {
	enqueued *prometheus.CounterVec
	deduped  *prometheus.CounterVec
	sends    *prometheus.CounterVec
	pending  prometheus.Gauge
	flush    prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "enqueued_total",
			Help:      "Items added to the outbox.",
		}, []string{"kind"}),
		deduped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "deduplicated_total",
			Help:      "Enqueue calls answered with an existing item.",
		}, []string{"kind"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "sends_total",
			Help:      "Send attempts by kind and result.",
		}, []string{"kind", "result"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "pending_items",
			Help:      "Items currently waiting in the outbox.",
		}),
		flush: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "flush_duration_seconds",
			Help:      "Duration of a full flush pass.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.enqueued, m.deduped, m.sends, m.pending, m.flush)
	return m
}

func (m *OutboxMetrics) IncEnqueued(kind string) {
	if m == nil || m.enqueued == nil {
		return
	}
	m.enqueued.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *OutboxMetrics) IncDeduplicated(kind string) {
	if m == nil || m.deduped == nil {
		return
	}
	m.deduped.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *OutboxMetrics) IncSend(kind, result string) {
	if m == nil || m.sends == nil {
		return
	}
	m.sends.WithLabelValues(normalizeLabel(kind), normalizeLabel(result)).Inc()
}

func (m *OutboxMetrics) SetPending(count int) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(count))
}

func (m *OutboxMetrics) ObserveFlush(duration time.Duration) {
	if m == nil || m.flush == nil {
		return
	}
	m.flush.Observe(duration.Seconds())
}
