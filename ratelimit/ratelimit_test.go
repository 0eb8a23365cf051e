package ratelimit

import (
	"context"
	"testing"
	"time"
)

func noPace(ctx context.Context) error { return nil }

func newTestLimiter(cfg Config, clock func() time.Time) *Limiter {
	cfg.now = clock
	cfg.pace = noPace
	return New(cfg)
}

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestAcquire_DenialLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(Config{TokensPerMinute: 100, DefaultPricePer1K: 0.002}, fixedClock(&now))

	ok, _ := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 60, Op: OpEmbedding})
	if !ok {
		t.Fatalf("first acquire should grant")
	}
	before := l.Status()

	ok, reason := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 60, Op: OpEmbedding})
	if ok {
		t.Fatalf("expected token-window denial")
	}
	if reason != DenyTokens {
		t.Fatalf("expected %q, got %q", DenyTokens, reason)
	}

	after := l.Status()
	if before != after {
		t.Fatalf("denial mutated state: before=%+v after=%+v", before, after)
	}
}

func TestAcquire_WindowPruning(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(Config{RequestsPerMinute: 2, MaxConcurrent: 10}, fixedClock(&now))

	for i := 0; i < 2; i++ {
		if ok, _ := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 10, Op: OpEmbedding}); !ok {
			t.Fatalf("acquire %d should grant", i)
		}
		l.Release(0, "")
	}
	if ok, reason := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 10, Op: OpEmbedding}); ok || reason != DenyRequests {
		t.Fatalf("expected request-window denial, got ok=%v reason=%q", ok, reason)
	}

	now = now.Add(61 * time.Second)
	if ok, _ := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 10, Op: OpEmbedding}); !ok {
		t.Fatalf("limiter should grant again after window elapses")
	}
}

func TestRelease_Balance(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(Config{MaxConcurrent: 5}, fixedClock(&now))

	if ok, _ := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 10, Op: OpEmbedding}); !ok {
		t.Fatalf("acquire should grant")
	}
	if got := l.Status().ActiveRequests.Current; got != 1 {
		t.Fatalf("expected 1 active, got %v", got)
	}
	l.Release(0, "")
	if got := l.Status().ActiveRequests.Current; got != 0 {
		t.Fatalf("expected 0 active, got %v", got)
	}
	// Extra releases must not drive the counter negative.
	l.Release(0, "")
	l.Release(0, "")
	if got := l.Status().ActiveRequests.Current; got != 0 {
		t.Fatalf("active went negative: %v", got)
	}
}

func TestRelease_ActualUsageCorrection(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(Config{
		Pricing:           map[string]float64{"m": 1.0}, // $1 per 1K tokens
		DefaultPricePer1K: 1.0,
	}, fixedClock(&now))

	if ok, _ := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 1000, Op: OpEmbedding}); !ok {
		t.Fatalf("acquire should grant")
	}
	if got := l.Status().DailyCost.Current; got != 1.0 {
		t.Fatalf("expected estimated cost 1.0, got %v", got)
	}

	// Actual usage came in lower than the estimate.
	l.Release(500, "m")
	st := l.Status()
	if st.DailyCost.Current != 0.5 {
		t.Fatalf("expected corrected cost 0.5, got %v", st.DailyCost.Current)
	}
	if st.TokensPerMinute.Current != 500 {
		t.Fatalf("expected corrected token window 500, got %v", st.TokensPerMinute.Current)
	}
}

func TestDailyCostReset(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	l := newTestLimiter(Config{
		DailyCostLimit:    1.0,
		DefaultPricePer1K: 1.0,
	}, fixedClock(&now))

	if ok, _ := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 1000, Op: OpEmbedding}); !ok {
		t.Fatalf("acquire should grant")
	}
	l.Release(0, "")
	if ok, reason := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 1000, Op: OpEmbedding}); ok || reason != DenyDailyCost {
		t.Fatalf("expected daily-cost denial, got ok=%v reason=%q", ok, reason)
	}

	// Crossing midnight resets the accumulator before limits are evaluated.
	now = now.Add(2 * time.Minute)
	if got := l.Status().DailyCost.Current; got != 0 {
		t.Fatalf("expected daily cost reset to 0, got %v", got)
	}
	if ok, _ := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 1000, Op: OpEmbedding}); !ok {
		t.Fatalf("acquire should grant after daily reset")
	}
}

func TestAcquire_RPMCheckedIndependentlyOfConcurrency(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(Config{RequestsPerMinute: 1, MaxConcurrent: 100}, fixedClock(&now))

	if ok, _ := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 10, Op: OpVision}); !ok {
		t.Fatalf("first acquire should grant")
	}
	// Previous permit still held: the second denial must come from the
	// request window, not the concurrency counter.
	ok, reason := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 10, Op: OpVision})
	if ok {
		t.Fatalf("second acquire in the same window should be denied")
	}
	if reason != DenyRequests {
		t.Fatalf("expected %q, got %q", DenyRequests, reason)
	}
}

func TestAcquire_ConcurrencyDenial(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(Config{MaxConcurrent: 1}, fixedClock(&now))

	if ok, _ := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 10, Op: OpVision}); !ok {
		t.Fatalf("first acquire should grant")
	}
	if ok, reason := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 10, Op: OpVision}); ok || reason != DenyConcurrency {
		t.Fatalf("expected concurrency denial, got ok=%v reason=%q", ok, reason)
	}
	l.Release(0, "")
	now = now.Add(time.Second)
	if ok, _ := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 10, Op: OpVision}); !ok {
		t.Fatalf("acquire should grant after release")
	}
}

func TestStatus_Percentages(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(Config{RequestsPerMinute: 4, TokensPerMinute: 200, MaxConcurrent: 2, DailyCostLimit: 10}, fixedClock(&now))

	if ok, _ := l.Acquire(ctx, Request{Model: "m", EstimatedTokens: 100, Op: OpEmbedding}); !ok {
		t.Fatalf("acquire should grant")
	}
	st := l.Status()
	if st.RequestsPerMinute.Percent != 25 {
		t.Fatalf("expected 25%% RPM utilization, got %v", st.RequestsPerMinute.Percent)
	}
	if st.TokensPerMinute.Percent != 50 {
		t.Fatalf("expected 50%% TPM utilization, got %v", st.TokensPerMinute.Percent)
	}
	if st.ActiveRequests.Percent != 50 {
		t.Fatalf("expected 50%% concurrency utilization, got %v", st.ActiveRequests.Percent)
	}
}
