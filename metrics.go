package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginNotFound
	MetricLoginLockedRejected
	MetricAccountLocked
	MetricLockoutNoticeFailed
	MetricLogout
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricVerificationIssued
	MetricVerificationAlreadySent
	MetricVerificationDeliveryFailed
	MetricVerificationSuccess
	MetricVerificationMismatch
	MetricVerificationBlocked
	MetricRegistrationSuccess
	MetricRegistrationDuplicate
	MetricRegistrationCompensated
	MetricRegistrationCompensationFailed
	MetricSocialLogin
	// MetricValidateLatency is the access-token validation latency histogram.
	MetricValidateLatency
	// MetricRegistrationLatency is the registration saga latency histogram,
	// remote provisioning included.
	MetricRegistrationLatency
	metricIDCount
)

// HistogramBucketCount is the number of buckets per histogram, the last one
// being unbounded.
const HistogramBucketCount = 8

const cacheLineSize = 64

// Validation is a local HMAC check; registration waits on remote services.
// The two histograms therefore use different scales.
var (
	validateBounds = [HistogramBucketCount - 1]time.Duration{
		250 * time.Microsecond,
		500 * time.Microsecond,
		time.Millisecond,
		2500 * time.Microsecond,
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
	}
	registrationBounds = [HistogramBucketCount - 1]time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		2500 * time.Millisecond,
		5 * time.Second,
	}
)

// HistogramBounds returns the finite upper bounds of id's buckets, or nil
// when id is not a histogram.
func HistogramBounds(id MetricID) []time.Duration {
	switch id {
	case MetricValidateLatency:
		return validateBounds[:]
	case MetricRegistrationLatency:
		return registrationBounds[:]
	default:
		return nil
	}
}

type histogram struct {
	buckets [HistogramBucketCount]uint64
	sumNs   uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free engine counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	enabled      bool
	latency      bool
	counters     [metricIDCount]paddedCounter
	validate     histogram
	registration histogram
}

// MetricsSnapshot is a point-in-time copy of all counters and, when latency
// histograms are enabled, their non-cumulative buckets and sums.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.latency
}

// Inc increments id by one. Safe for concurrent use.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Ids without a histogram are
// ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() {
		return
	}
	h := m.histogram(id)
	if h == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	atomic.AddUint64(&h.buckets[bucketFor(HistogramBounds(id), d)], 1)
	atomic.AddUint64(&h.sumNs, uint64(d))
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:      map[MetricID]uint64{},
		Histograms:    map[MetricID][]uint64{},
		HistogramSums: map[MetricID]time.Duration{},
	}
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if m.histogram(id) != nil {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.latency {
		for _, id := range []MetricID{MetricValidateLatency, MetricRegistrationLatency} {
			h := m.histogram(id)
			buckets := make([]uint64, HistogramBucketCount)
			for i := range buckets {
				buckets[i] = atomic.LoadUint64(&h.buckets[i])
			}
			s.Histograms[id] = buckets
			s.HistogramSums[id] = time.Duration(atomic.LoadUint64(&h.sumNs))
		}
	}

	return s
}

func (m *Metrics) histogram(id MetricID) *histogram {
	switch id {
	case MetricValidateLatency:
		return &m.validate
	case MetricRegistrationLatency:
		return &m.registration
	default:
		return nil
	}
}

func bucketFor(bounds []time.Duration, d time.Duration) int {
	for i, upper := range bounds {
		if d <= upper {
			return i
		}
	}
	return len(bounds)
}
