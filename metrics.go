package authflow

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	MetricRegisterStarted MetricID = iota
	MetricRegisterRejected
	MetricRegisterMailUsed
	MetricRegisterRateLimited
	MetricMailFailure
	MetricRegisterCanceled
	MetricVerifySuccess
	MetricVerifyIncorrect
	MetricVerifyAttemptsExceeded
	MetricExchangeSuccess
	MetricExchangeFailure
	MetricRegistrationCompleted
	MetricStateLoaded
	MetricTokensRefreshed
	MetricLoginSuccess
	MetricLoginFailure
	MetricSessionErrored
	MetricSessionExpired
	MetricSessionTokenIssued
	// MetricExchangeLatency is the only histogram: upstream token exchange time.
	MetricExchangeLatency
	metricIDCount
)

// latencyBounds are the inclusive upper bounds of the first seven exchange
// latency buckets; anything slower lands in the eighth.
var latencyBounds = [...]time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2500 * time.Millisecond,
	5 * time.Second,
}

const histBucketCount = len(latencyBounds) + 1

type latencyHistogram [histBucketCount]atomic.Uint64

func (h *latencyHistogram) observe(d time.Duration) {
	i := 0
	for i < len(latencyBounds) && d > latencyBounds[i] {
		i++
	}
	h[i].Add(1)
}

func (h *latencyHistogram) load() []uint64 {
	out := make([]uint64, histBucketCount)
	for i := range h {
		out[i] = h[i].Load()
	}
	return out
}

// Metrics holds one atomic counter per MetricID plus the exchange latency
// histogram. The zero value records nothing; use NewMetrics.
type Metrics struct {
	enabled  bool
	latency  bool
	counters [metricIDCount]struct {
		atomic.Uint64
		_ [56]byte // keep hot counters on separate cache lines
	}
	exchange latencyHistogram
}

// MetricsSnapshot is a point-in-time copy of all metrics. Histogram buckets
// are per-bucket counts, not cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount || id == MetricExchangeLatency {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d for id. MetricExchangeLatency is the only histogram;
// other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricExchangeLatency {
		return
	}
	m.exchange.observe(d)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter. A disabled Metrics returns empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}
	for id := range metricIDCount {
		if id != MetricExchangeLatency {
			s.Counters[id] = m.counters[id].Load()
		}
	}
	if m.latency {
		s.Histograms[MetricExchangeLatency] = m.exchange.load()
	}
	return s
}
