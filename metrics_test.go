package authcore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRefreshSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestHistogramBoundsAreAscending(t *testing.T) {
	for _, id := range []MetricID{MetricValidateLatency, MetricRegistrationLatency} {
		bounds := HistogramBounds(id)
		if len(bounds) != HistogramBucketCount-1 {
			t.Fatalf("metric %d: expected %d bounds, got %d", id, HistogramBucketCount-1, len(bounds))
		}
		for i := 1; i < len(bounds); i++ {
			if bounds[i] <= bounds[i-1] {
				t.Fatalf("metric %d: bound %d not ascending: %v", id, i, bounds)
			}
		}
	}
	if HistogramBounds(MetricLoginSuccess) != nil {
		t.Fatal("counters have no bounds")
	}
}

func TestMetricsObserveFillsEachBucket(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	// One sample on each finite upper bound plus one past the last.
	bounds := HistogramBounds(MetricValidateLatency)
	var want time.Duration
	for _, b := range bounds {
		m.Observe(MetricValidateLatency, b)
		want += b
	}
	m.Observe(MetricValidateLatency, time.Second)
	want += time.Second

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricValidateLatency]
	if len(buckets) != HistogramBucketCount {
		t.Fatalf("expected %d buckets, got %d", HistogramBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if got := snap.HistogramSums[MetricValidateLatency]; got != want {
		t.Fatalf("expected sum %v, got %v", want, got)
	}
}

func TestMetricsObserveClampsNegative(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricValidateLatency, -time.Second)

	snap := m.Snapshot()
	if snap.Histograms[MetricValidateLatency][0] != 1 || snap.HistogramSums[MetricValidateLatency] != 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestMetricsLatencyRequiresFlag(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricValidateLatency, time.Millisecond)

	snap := m.Snapshot()
	if len(snap.Histograms) != 0 || len(snap.HistogramSums) != 0 {
		t.Fatalf("expected no histograms, got %+v", snap.Histograms)
	}
	if m.LatencyEnabled() {
		t.Fatal("latency must be disabled")
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginFailure)
	m.Inc(MetricLoginFailure)
	m.Observe(MetricValidateLatency, 200*time.Microsecond)

	snap := m.Snapshot()

	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected MetricLoginSuccess=1 got %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 2 {
		t.Fatalf("expected MetricLoginFailure=2 got %d", snap.Counters[MetricLoginFailure])
	}
	if snap.Histograms[MetricValidateLatency][0] != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", snap.Histograms[MetricValidateLatency][0])
	}
}

func TestMetricsRegistrationHistogramIsSeparate(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Observe(MetricRegistrationLatency, 120*time.Millisecond)
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	if snap.Histograms[MetricRegistrationLatency][2] != 1 {
		t.Fatalf("expected 250ms bucket=1, got %v", snap.Histograms[MetricRegistrationLatency])
	}
	if snap.HistogramSums[MetricRegistrationLatency] != 120*time.Millisecond {
		t.Fatalf("unexpected registration sum %v", snap.HistogramSums[MetricRegistrationLatency])
	}
	for _, v := range snap.Histograms[MetricValidateLatency] {
		if v != 0 {
			t.Fatal("validate histogram must stay empty")
		}
	}
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("counters must not carry histograms")
	}
	if _, ok := snap.Counters[MetricRegistrationLatency]; ok {
		t.Fatal("histograms must not appear as counters")
	}
}

func TestEngineMetricsCountLoginOutcomes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUser(t, "a@x.com", "Aa1!aaaa")

	if _, err := h.engine.Login(ctx, RoleUser, "a@x.com", "Aa1!aaaa"); err != nil {
		t.Fatalf("login: %v", err)
	}
	_, _ = h.engine.Login(ctx, RoleUser, "a@x.com", "wrong")
	_, _ = h.engine.Login(ctx, RoleUser, "nobody@x.com", "Aa1!aaaa")

	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 || snap.Counters[MetricLoginFailure] != 1 || snap.Counters[MetricLoginNotFound] != 1 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}
}
