package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := New(60) // 1 per second, burst 6

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	for i := 0; i < 6; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("request %d should be allowed within burst: %v", i, err)
		}
	}
	if err := l.Wait(ctx); err == nil {
		t.Error("expected request beyond burst to exceed the deadline")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := New(0)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	for i := 0; i < 1000; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("unlimited limiter blocked: %v", err)
		}
	}
}
