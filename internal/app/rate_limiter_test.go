package app

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemorySubmitRateLimiter_CountsWithinWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemorySubmitRateLimiter()
	limiter.now = clock.Now
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		count, retryAfter, err := limiter.ConsumeRateLimit(ctx, "wizard_submit", "user-1", 2, time.Minute)
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		if count != want {
			t.Fatalf("expected count %d, got %d", want, count)
		}
		if retryAfter != 60 {
			t.Fatalf("expected retry after 60s, got %d", retryAfter)
		}
	}

	count, _, _ := limiter.ConsumeRateLimit(ctx, "wizard_submit", "user-2", 2, time.Minute)
	if count != 1 {
		t.Fatalf("expected subjects to be counted separately, got %d", count)
	}

	clock.Advance(time.Minute)
	count, _, _ = limiter.ConsumeRateLimit(ctx, "wizard_submit", "user-1", 2, time.Minute)
	if count != 1 {
		t.Fatalf("expected a fresh window, got %d", count)
	}
}

func TestMemorySubmitRateLimiter_DisabledLimit(t *testing.T) {
	limiter := NewMemorySubmitRateLimiter()

	count, retryAfter, err := limiter.ConsumeRateLimit(context.Background(), "wizard_submit", "user-1", 0, time.Minute)
	if err != nil || count != 0 || retryAfter != 0 {
		t.Fatalf("expected a no-op, got %d, %d, %v", count, retryAfter, err)
	}
}

func TestRedisSubmitRateLimiter_NilClientIsNoop(t *testing.T) {
	limiter := NewRedisSubmitRateLimiter(nil, "fund:")
	if limiter.prefix != "fund:rate_limit" {
		t.Fatalf("unexpected prefix %q", limiter.prefix)
	}

	count, _, err := limiter.ConsumeRateLimit(context.Background(), "wizard_submit", "user-1", 5, time.Minute)
	if err != nil || count != 0 {
		t.Fatalf("expected a no-op without a client, got %d, %v", count, err)
	}
}

func TestSeedDemo_RejectsSecondRun(t *testing.T) {
	env := newTestEnv(t, testConfig())

	if _, err := SeedDemo(context.Background(), env.container, testPassword); err == nil {
		t.Fatal("expected the second seed to be rejected")
	}
}

func TestMemorySubmitRateLimiter_PrunesExpiredWindows(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemorySubmitRateLimiter()
	limiter.now = clock.Now
	ctx := context.Background()

	for i := 0; i < memoryRateWindowSweepSize; i++ {
		limiter.ConsumeRateLimit(ctx, "wizard_submit", fmt.Sprintf("user-%d", i), 5, time.Minute)
	}
	clock.Advance(2 * time.Minute)
	limiter.ConsumeRateLimit(ctx, "wizard_submit", "fresh", 5, time.Minute)

	if got := len(limiter.windows); got != 1 {
		t.Fatalf("expected expired windows to be pruned, got %d", got)
	}
}

func TestRetryAfterFromMillis(t *testing.T) {
	tests := []struct {
		ms   int64
		want int
	}{
		{ms: 0, want: 1},
		{ms: 999, want: 1},
		{ms: 1001, want: 2},
		{ms: 60000, want: 60},
	}
	for _, tt := range tests {
		if got := retryAfterFromMillis(tt.ms); got != tt.want {
			t.Fatalf("retryAfterFromMillis(%d): expected %d, got %d", tt.ms, tt.want, got)
		}
	}
}
