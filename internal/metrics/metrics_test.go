package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledMetricsAreNoop(t *testing.T) {
	m := New(Config{})
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricCallLatency, time.Millisecond)
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("disabled metrics must not count")
	}
	if s := m.Snapshot(); len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", s)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLogout)
	if nilMetrics.Enabled() || nilMetrics.Value(MetricLogout) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}

func TestConcurrentIncrements(t *testing.T) {
	m := New(Config{Enabled: true})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricRenewalAttempt)
			}
		}()
	}
	wg.Wait()
	if got := m.Value(MetricRenewalAttempt); got != 8000 {
		t.Fatalf("expected 8000, got %d", got)
	}
	m.Inc(MetricIDCount)
}

func TestLatencyBuckets(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})
	for _, d := range []time.Duration{
		time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		90 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		900 * time.Millisecond,
		3 * time.Second,
	} {
		m.Observe(MetricCallLatency, d)
	}
	m.Observe(MetricLoginSuccess, time.Millisecond)

	s := m.Snapshot()
	buckets := s.Histograms[MetricCallLatency]
	if len(buckets) != HistBucketCount {
		t.Fatalf("expected %d buckets, got %d", HistBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d: expected 1, got %d", i, v)
		}
	}
	if _, ok := s.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("only call latency has a histogram")
	}
}
