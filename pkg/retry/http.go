package retry

import (
	"context"
	"net/http"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// ShouldRetryHTTP retries on transport errors, 5xx gateway errors and 429.
func ShouldRetryHTTP(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// NewHTTPExecutor creates a failsafe executor for outbound HTTP calls.
//
//nolint:bodyclose // false positive: [*http.Response] is a generic type parameter, not an actual response
func NewHTTPExecutor(p Policy) failsafe.Executor[*http.Response] {
	p = p.normalized()
	policy := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(p.BaseDelay, p.MaxDelay).
		WithMaxRetries(p.Attempts - 1).
		WithJitterFactor(p.JitterFactor).
		HandleIf(ShouldRetryHTTP).
		ReturnLastFailure().
		Build()
	return failsafe.With(policy)
}

// DoHTTP runs the request builder through the executor. newReq is called once
// per attempt so request bodies are never reused.
func DoHTTP(ctx context.Context, client *http.Client, executor failsafe.Executor[*http.Response], newReq func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	var prev *http.Response
	return executor.WithContext(ctx).Get(func() (*http.Response, error) {
		// The previous attempt's response is being discarded.
		if prev != nil && prev.Body != nil {
			_ = prev.Body.Close()
		}
		req, err := newReq(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		prev = resp
		return resp, err
	})
}
