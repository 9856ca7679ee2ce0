// Package metrics is the Prometheus-backed implementation of gate.Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cpstream/aligner/gate"
)

const namespace = "aligner"

// Metrics is a gate.Metrics backed by a dedicated prometheus.Registry.
type Metrics struct {
	registry *prometheus.Registry

	checkpointStartDelay prometheus.Histogram
	alignmentDuration    prometheus.Histogram
	blockedChannels      prometheus.Gauge
	buffersEmitted       prometheus.Counter
	buffersRecycled      prometheus.Counter
	barriersDropped      prometheus.Counter
}

// New builds a Metrics and registers its collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		checkpointStartDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkpoint_start_delay_seconds",
			Help:      "Delay between the coordinator issuing a barrier and this task observing it.",
			Buckets:   prometheus.DefBuckets,
		}),
		alignmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alignment_duration_seconds",
			Help:      "Time spent blocked waiting for a checkpoint to align across all channels.",
			Buckets:   prometheus.DefBuckets,
		}),
		blockedChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blocked_channels",
			Help:      "Number of input channels currently blocked pending checkpoint alignment.",
		}),
		buffersEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffers_emitted_total",
			Help:      "Data buffers forwarded downstream.",
		}),
		buffersRecycled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffers_recycled_total",
			Help:      "Data buffers recycled without being forwarded, e.g. on gate close.",
		}),
		barriersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barriers_dropped_total",
			Help:      "Barriers dropped as late, duplicate, or superseded.",
		}),
	}
	registry.MustRegister(
		m.checkpointStartDelay,
		m.alignmentDuration,
		m.blockedChannels,
		m.buffersEmitted,
		m.buffersRecycled,
		m.barriersDropped,
	)
	return m
}

// Registry exposes the underlying registry for ListenAndServe.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) RecordCheckpointStartDelay(nanos int64) {
	m.checkpointStartDelay.Observe(float64(nanos) / 1e9)
}

func (m *Metrics) RecordAlignmentDuration(nanos int64) {
	m.alignmentDuration.Observe(float64(nanos) / 1e9)
}

func (m *Metrics) RecordBlockedChannels(n int) { m.blockedChannels.Set(float64(n)) }
func (m *Metrics) RecordBufferEmitted()        { m.buffersEmitted.Inc() }
func (m *Metrics) RecordBufferRecycled()       { m.buffersRecycled.Inc() }
func (m *Metrics) RecordBarrierDropped()       { m.barriersDropped.Inc() }

var _ gate.Metrics = (*Metrics)(nil)
