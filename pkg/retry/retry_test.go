package retry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	res := Do(context.Background(), fastPolicy(3), func(_ context.Context, attempt int) (string, error) {
		if attempt < 3 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if res.Value != "ok" || res.Attempts != 3 || res.Exhausted {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDo_ExhaustsWithLastError(t *testing.T) {
	last := errors.New("third failure")
	res := Do(context.Background(), fastPolicy(3), func(_ context.Context, attempt int) (int, error) {
		if attempt == 3 {
			return 0, last
		}
		return 0, errors.New("earlier failure")
	})
	if !res.Exhausted {
		t.Fatalf("expected exhausted, got %+v", res)
	}
	if res.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", res.Attempts)
	}
	if !errors.Is(res.Err, last) {
		t.Fatalf("expected last error surfaced, got %v", res.Err)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	cause := errors.New("bad request")
	res := Do(context.Background(), fastPolicy(5), func(_ context.Context, _ int) (int, error) {
		return 0, Permanent(cause)
	})
	if res.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", res.Attempts)
	}
	if res.Exhausted {
		t.Fatal("permanent failure must not count as exhausted")
	}
	if !errors.Is(res.Err, cause) || IsPermanent(res.Err) {
		t.Fatalf("expected unwrapped cause, got %v", res.Err)
	}
}

func TestDo_NormalizesAttempts(t *testing.T) {
	calls := 0
	res := Do(context.Background(), Policy{Attempts: -2}, func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, errors.New("nope")
	})
	if calls != 1 || res.Attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 5, BaseDelay: time.Second, MaxDelay: time.Second}
	res := Do(ctx, p, func(_ context.Context, _ int) (int, error) {
		cancel()
		return 0, errors.New("transient")
	})
	if res.OK() {
		t.Fatal("expected failure")
	}
	if res.Exhausted {
		t.Fatal("cancelled run must not report exhaustion")
	}
	if res.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", res.Attempts)
	}
}

func TestDo_SuccessSurvivesCancellationDuringAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	res := Do(ctx, fastPolicy(3), func(_ context.Context, _ int) (string, error) {
		cancel()
		return "posted", nil
	})
	if !res.OK() {
		t.Fatalf("expected success to be kept, got %v", res.Err)
	}
	if res.Value != "posted" || res.Attempts != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDoHTTP_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exec := NewHTTPExecutor(fastPolicy(3))
	resp, err := DoHTTP(context.Background(), srv.Client(), exec, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("expected 3 hits, got %d", got)
	}
}

func TestDoHTTP_DoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	exec := NewHTTPExecutor(fastPolicy(3))
	resp, err := DoHTTP(context.Background(), srv.Client(), exec, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected 1 hit, got %d", got)
	}
}
