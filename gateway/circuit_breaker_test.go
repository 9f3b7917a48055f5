package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 2, Cooldown: time.Minute})
	now := time.Unix(0, 0)
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		if err := cb.Allow(); err != nil {
			t.Fatalf("attempt %d rejected: %v", i, err)
		}
		cb.Record(boom)
	}
	if cb.State() != BreakerOpen {
		t.Fatalf("expected OPEN, got %s", cb.State())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	// 冷却结束后放行一个探测请求
	now = now.Add(time.Minute)
	if err := cb.Allow(); err != nil {
		t.Fatalf("trial request rejected: %v", err)
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("second trial request must be rejected, got %v", err)
	}
	cb.Record(nil)
	if cb.State() != BreakerClosed {
		t.Fatalf("expected CLOSED after successful trial request, got %s", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 1, Cooldown: time.Second})
	now := time.Unix(0, 0)
	cb.now = func() time.Time { return now }

	_ = cb.Allow()
	cb.Record(errors.New("429"))
	now = now.Add(time.Second)
	if err := cb.Allow(); err != nil {
		t.Fatalf("trial request rejected: %v", err)
	}
	cb.Record(errors.New("429"))
	if cb.State() != BreakerOpen {
		t.Fatalf("expected OPEN, got %s", cb.State())
	}
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 1})
	_ = cb.Allow()
	cb.Record(context.Canceled)
	if cb.State() != BreakerClosed {
		t.Fatalf("cancellation must not trip the breaker, got %s", cb.State())
	}
	cb.Record(errors.New("x"))
	cb.Reset()
	if cb.State() != BreakerClosed {
		t.Fatalf("reset failed, got %s", cb.State())
	}
}

func TestMarketRESTClientWithBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewMarketRESTClient(srv.URL, nil)
	client.Breaker = NewCircuitBreaker(CircuitBreakerConfig{Threshold: 2, Cooldown: time.Hour})

	for i := 0; i < 2; i++ {
		if _, err := client.FetchMarkets(context.Background(), DefaultMarketsQuery()); !errors.Is(err, ErrHTTPStatus) {
			t.Fatalf("expected status error, got %v", err)
		}
	}
	if _, err := client.FetchMarkets(context.Background(), DefaultMarketsQuery()); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 2 upstream hits, got %d", got)
	}
}
