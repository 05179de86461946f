package providers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMockClient(t *testing.T) {
	t.Run("chat", func(t *testing.T) {
		c := NewMockClient()
		c.ResponseText = "hello world"

		result, err := c.Chat(context.Background(), &ChatRequest{
			Model:    "test-model",
			Messages: []Message{{Role: "user", Content: "test"}},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if !result.Success {
			t.Errorf("Success = false, want true")
		}
		if result.Content != "hello world" {
			t.Errorf("Content = %q, want %q", result.Content, "hello world")
		}
		if c.RequestCount() != 1 {
			t.Errorf("RequestCount = %d, want 1", c.RequestCount())
		}
	})

	t.Run("scripted responses", func(t *testing.T) {
		c := NewMockClient()
		c.Responses = []string{"first", "second"}
		c.ResponseText = "fallback"

		want := []string{"first", "second", "fallback"}
		for i, w := range want {
			res, err := c.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
			if err != nil {
				t.Fatalf("call %d: %v", i, err)
			}
			if res.Content != w {
				t.Errorf("call %d: Content = %q, want %q", i, res.Content, w)
			}
		}
		if len(c.Requests()) != 3 {
			t.Errorf("Requests() = %d, want 3", len(c.Requests()))
		}
	})

	t.Run("fail after", func(t *testing.T) {
		c := NewMockClient()
		c.FailAfter = 2

		for i := 0; i < 2; i++ {
			if _, err := c.Chat(context.Background(), &ChatRequest{}); err != nil {
				t.Fatalf("request %d should succeed: %v", i, err)
			}
		}
		if _, err := c.Chat(context.Background(), &ChatRequest{}); err == nil {
			t.Error("request 3 should fail")
		}
	})

	t.Run("fail with status", func(t *testing.T) {
		c := NewMockClient()
		c.ShouldFail = true
		c.FailStatus = http.StatusTooManyRequests

		_, err := c.Chat(context.Background(), &ChatRequest{})
		se, ok := AsStatusError(err)
		if !ok {
			t.Fatalf("expected *StatusError, got %v", err)
		}
		if !se.Retryable() {
			t.Error("429 should be retryable")
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		c := NewMockClient()
		c.Latency = time.Second

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.Chat(ctx, &ChatRequest{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestIsRetryableStatus(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{401, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tt := range tests {
		if got := IsRetryableStatus(tt.code); got != tt.want {
			t.Errorf("IsRetryableStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows initial requests", func(t *testing.T) {
		limiter := NewRateLimiter(600)

		start := time.Now()
		for i := 0; i < 5; i++ {
			if err := limiter.Wait(context.Background()); err != nil {
				t.Fatalf("request %d failed: %v", i, err)
			}
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("took too long: %v", elapsed)
		}
	})

	t.Run("try consume", func(t *testing.T) {
		limiter := NewRateLimiter(60)
		if !limiter.TryConsume() {
			t.Error("first TryConsume should succeed")
		}
	})

	t.Run("status", func(t *testing.T) {
		limiter := NewRateLimiter(60)

		status := limiter.Status()
		if status.RPM != 60 {
			t.Errorf("RPM = %f, want 60", status.RPM)
		}
		if status.TokensAvailable <= 0 {
			t.Error("expected positive tokens available")
		}
	})

	t.Run("record 429 pauses", func(t *testing.T) {
		limiter := NewRateLimiter(60)

		limiter.Record429(time.Minute)

		status := limiter.Status()
		if status.Last429Time.IsZero() {
			t.Error("Last429Time should be set")
		}
		if limiter.TryConsume() {
			t.Error("TryConsume should fail while paused")
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		limiter := NewRateLimiter(1)
		limiter.Wait(context.Background())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := limiter.Wait(ctx); err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("concurrent requests", func(t *testing.T) {
		limiter := NewRateLimiter(6000)

		var wg sync.WaitGroup
		var failures atomic.Int32
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := limiter.Wait(context.Background()); err != nil {
					failures.Add(1)
				}
			}()
		}
		wg.Wait()

		if failures.Load() > 0 {
			t.Errorf("had %d errors", failures.Load())
		}
		if status := limiter.Status(); status.TotalConsumed != 10 {
			t.Errorf("TotalConsumed = %d, want 10", status.TotalConsumed)
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	h := http.Header{}
	if got := ParseRetryAfter(h); got != 0 {
		t.Errorf("empty header = %v, want 0", got)
	}
	h.Set("Retry-After", "2")
	if got := ParseRetryAfter(h); got != 2*time.Second {
		t.Errorf("Retry-After 2 = %v, want 2s", got)
	}
	h.Set("Retry-After", "soon")
	if got := ParseRetryAfter(h); got != 0 {
		t.Errorf("unparseable = %v, want 0", got)
	}
}

func TestProbe(t *testing.T) {
	t.Run("caps concurrency and collects headers", func(t *testing.T) {
		c := NewMockClient()
		c.Headers = http.Header{
			"X-Ratelimit-Remaining-Requests": []string{"42"},
			"Retry-After":                    []string{"1"},
			"Content-Type":                   []string{"application/json"},
		}

		report, err := Probe(context.Background(), c, "m", 12)
		if err != nil {
			t.Fatalf("Probe() error = %v", err)
		}
		if report.Calls != MaxProbeCalls {
			t.Errorf("Calls = %d, want %d", report.Calls, MaxProbeCalls)
		}
		if c.RequestCount() != MaxProbeCalls {
			t.Errorf("RequestCount = %d, want %d", c.RequestCount(), MaxProbeCalls)
		}
		for i, r := range report.Results {
			if r.Index != i {
				t.Errorf("result %d has index %d", i, r.Index)
			}
			if r.RateLimit["x-ratelimit-remaining-requests"] != "42" {
				t.Errorf("result %d missing rate limit header: %v", i, r.RateLimit)
			}
			if _, ok := r.RateLimit["content-type"]; ok {
				t.Errorf("result %d kept unrelated header", i)
			}
		}
		if report.Succeeded != MaxProbeCalls {
			t.Errorf("Succeeded = %d", report.Succeeded)
		}
	})

	t.Run("counts rate limited calls", func(t *testing.T) {
		c := NewMockClient()
		c.ShouldFail = true
		c.FailStatus = http.StatusTooManyRequests

		report, err := Probe(context.Background(), c, "m", 3)
		if err != nil {
			t.Fatalf("Probe() error = %v", err)
		}
		if report.Limited != 3 || report.Succeeded != 0 {
			t.Errorf("Limited = %d, Succeeded = %d", report.Limited, report.Succeeded)
		}
	})

	t.Run("rejects zero calls", func(t *testing.T) {
		if _, err := Probe(context.Background(), NewMockClient(), "m", 0); err == nil {
			t.Error("expected error for n=0")
		}
	})
}
