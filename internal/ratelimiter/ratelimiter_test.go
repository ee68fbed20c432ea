package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestAllowEnforcesBurst(t *testing.T) {
	limiter := New(10, 5)

	for i := 0; i < 5; i++ {
		if !limiter.Allow() {
			t.Fatalf("connection %d should be allowed (within burst)", i)
		}
	}
	if limiter.Allow() {
		t.Fatal("connection should be rejected after burst exhausted")
	}

	// 10/s refills one token every 100ms.
	time.Sleep(120 * time.Millisecond)
	if !limiter.Allow() {
		t.Fatal("connection should be allowed after refill")
	}
}

func TestBurstDefaultsToRate(t *testing.T) {
	limiter := New(3, 0)
	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Fatalf("connection %d should be allowed", i)
		}
	}
	if limiter.Allow() {
		t.Fatal("fourth connection should be rejected")
	}
}

func TestUnlimited(t *testing.T) {
	limiter := New(0, 0)
	if !limiter.Unlimited() {
		t.Fatal("zero rate should be unlimited")
	}
	for i := 0; i < 10000; i++ {
		if !limiter.Allow() {
			t.Fatalf("unlimited limiter rejected connection %d", i)
		}
	}
}

func TestWaitContextCancellation(t *testing.T) {
	limiter := New(1, 1)
	if !limiter.Allow() {
		t.Fatal("first token should be available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("Wait should fail when the context expires before a token arrives")
	}
}

func TestSetLimit(t *testing.T) {
	limiter := New(1, 1)
	limiter.SetLimit(0)
	if !limiter.Unlimited() {
		t.Fatal("SetLimit(0) should remove the limit")
	}

	limiter.SetLimit(100)
	if limiter.Unlimited() {
		t.Fatal("SetLimit(100) should restore a limit")
	}
	if limiter.Tokens() < 0 {
		t.Fatalf("unexpected token count %v", limiter.Tokens())
	}
}

func BenchmarkAllow(b *testing.B) {
	limiter := New(1_000_000, 1_000_000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow()
	}
}
