package authcore

import (
	"testing"
	"time"
)

var benchCounterIDs = [...]MetricID{
	MetricLoginSuccess,
	MetricLoginFailure,
	MetricRefreshSuccess,
	MetricVerificationIssued,
	MetricVerificationSuccess,
	MetricLogout,
}

func BenchmarkMetrics(b *testing.B) {
	cases := []struct {
		name string
		cfg  MetricsConfig
	}{
		{"disabled", MetricsConfig{}},
		{"counters", MetricsConfig{Enabled: true}},
		{"latency", MetricsConfig{Enabled: true, EnableLatencyHistograms: true}},
	}

	for _, tc := range cases {
		b.Run(tc.name+"/inc", func(b *testing.B) {
			m := NewMetrics(tc.cfg)
			b.ReportAllocs()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					m.Inc(benchCounterIDs[i%len(benchCounterIDs)])
					i++
				}
			})
		})

		b.Run(tc.name+"/observe", func(b *testing.B) {
			m := NewMetrics(tc.cfg)
			b.ReportAllocs()
			b.RunParallel(func(pb *testing.PB) {
				d := 700 * time.Microsecond
				for pb.Next() {
					m.Observe(MetricValidateLatency, d)
				}
			})
		})
	}
}

func BenchmarkMetricsSnapshot(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	for id := MetricID(0); id < metricIDCount; id++ {
		m.Inc(id)
	}
	m.Observe(MetricRegistrationLatency, 300*time.Millisecond)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Snapshot()
	}
}
