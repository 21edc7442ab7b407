package secretroom

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricSolveSuccess)

	if got := m.Value(MetricSolveSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricSolveSuccess)
	m.Inc(MetricSolveSuccess)
	m.Inc(MetricSolveSuccess)

	if got := m.Value(MetricSolveSuccess); got != 3 {
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
				m.Inc(MetricSolveFailure)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricSolveFailure); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}

	for _, d := range observations {
		m.Observe(MetricSolveLatency, d)
	}

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricSolveLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}

	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricSolveSuccess)
	m.Inc(MetricSolveFailure)
	m.Inc(MetricSolveFailure)
	m.Observe(MetricSolveLatency, 2*time.Millisecond)

	snap := m.Snapshot()

	if snap.Counters[MetricSolveSuccess] != 1 {
		t.Fatalf("expected MetricSolveSuccess=1 got %d", snap.Counters[MetricSolveSuccess])
	}
	if snap.Counters[MetricSolveFailure] != 2 {
		t.Fatalf("expected MetricSolveFailure=2 got %d", snap.Counters[MetricSolveFailure])
	}
	if len(snap.Histograms[MetricSolveLatency]) != 8 {
		t.Fatalf("expected histogram length 8")
	}
	if snap.Histograms[MetricSolveLatency][0] != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", snap.Histograms[MetricSolveLatency][0])
	}
}

func TestSolvePathCountsMetrics(t *testing.T) {
	cfg := solveTestConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, _, done := buildTestEngine(t, cfg)
	defer done()

	roomID := createTestRoom(t, engine, CreateRoomInput{})
	ctx := WithClientIP(context.Background(), "203.0.113.40")

	if _, err := solveAttempt(t, engine, ctx, roomID, "wrong"); err == nil {
		t.Fatal("expected wrong answer to fail")
	}
	if _, err := solveAttempt(t, engine, ctx, roomID, testAnswer); err != nil {
		t.Fatalf("solve failed: %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricRoomCreated] != 1 {
		t.Fatalf("expected one room_created, got %d", snap.Counters[MetricRoomCreated])
	}
	if snap.Counters[MetricNonceIssued] != 2 {
		t.Fatalf("expected two nonces issued, got %d", snap.Counters[MetricNonceIssued])
	}
	if snap.Counters[MetricSolveFailure] != 1 {
		t.Fatalf("expected one solve failure, got %d", snap.Counters[MetricSolveFailure])
	}
	if snap.Counters[MetricSolveSuccess] != 1 {
		t.Fatalf("expected one solve success, got %d", snap.Counters[MetricSolveSuccess])
	}

	var observed uint64
	for _, v := range snap.Histograms[MetricSolveLatency] {
		observed += v
	}
	if observed != 1 {
		t.Fatalf("expected one latency observation, got %d", observed)
	}
}
