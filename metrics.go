package goGuard

import (
	"sync/atomic"
	"time"
)

// MetricID names an engine counter or histogram.
type MetricID uint16

const (
	// MetricTickProcessed counts ticks that queried the event source successfully.
	MetricTickProcessed MetricID = iota
	// MetricTickSkipped counts ticks rejected by the spacing gate.
	MetricTickSkipped
	// MetricTickFailed counts ticks abandoned on an event source error.
	MetricTickFailed
	// MetricFallbackQuery counts ticks that fell back to the current-foreground query.
	MetricFallbackQuery
	// MetricTransitionForwarded counts transitions handed to the lock decision.
	MetricTransitionForwarded
	// MetricTransitionDuplicate counts transitions dropped as already seen or in flight.
	MetricTransitionDuplicate
	MetricDecisionNotLocked
	MetricDecisionReserved
	MetricDecisionWithinGrace
	MetricDecisionChallenge
	MetricSessionAnnounced
	MetricSessionGranted
	MetricSessionDenied
	MetricSessionExpired
	MetricSessionSuperseded
	// MetricSessionInFlightRejected counts sessions refused because one was already live.
	MetricSessionInFlightRejected
	MetricSuspendIssued
	MetricSuspendFailure
	// MetricCapabilityUnavailable counts sessions denied because the presenter or provider
	// could not run.
	MetricCapabilityUnavailable
	MetricOutcomeRejected
	MetricOutcomeStale
	MetricGrantsCleared
	MetricStoreFailure
	// MetricTickLatency is the tick duration histogram.
	MetricTickLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets  [histBucketCount]uint64
	sumNanos uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus the tick latency histogram. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metrics. Histogram buckets are not
// cumulative.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

// NewMetrics returns metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id. Only MetricTickLatency carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricTickLatency {
		return
	}

	if d < 0 {
		d = 0
	}
	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
	atomic.AddUint64(&m.histograms[id].sumNanos, uint64(d))
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}

	s := MetricsSnapshot{
		Counters:      make(map[MetricID]uint64, int(metricIDCount)),
		Histograms:    make(map[MetricID][]uint64, 1),
		HistogramSums: make(map[MetricID]time.Duration, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricTickLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricTickLatency].buckets[i])
		}
		s.Histograms[MetricTickLatency] = buckets
		s.HistogramSums[MetricTickLatency] = time.Duration(atomic.LoadUint64(&m.histograms[MetricTickLatency].sumNanos))
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
