package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestSendMakesSingleAttempt(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&count, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	resp, err := send(context.Background(), &http.Client{}, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 to surface, got %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", got)
	}
}

func TestSendHonorsCancelledContext(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&count, 1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := send(ctx, nil, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := atomic.LoadInt32(&count); got != 0 {
		t.Fatalf("expected no request, got %d", got)
	}
}

type fakeProvider struct {
	chunks []string
	err    error
}

func (f *fakeProvider) Complete(context.Context, []Message, Options) (Stream, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sliceStream{chunks: f.chunks}, nil
}

type sliceStream struct {
	chunks []string
	closed bool
}

func (s *sliceStream) Recv() (Chunk, error) {
	if len(s.chunks) == 0 {
		return Chunk{}, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return Chunk{Content: c}, nil
}

func (s *sliceStream) Close() error { s.closed = true; return nil }

func TestCompleteTextDrainsAndTrims(t *testing.T) {
	p := &fakeProvider{chunks: []string{"  Hello", " world ", "\n"}}
	text, err := CompleteText(context.Background(), p, []Message{User("hi")}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Hello world" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestCompleteTextPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	if _, err := CompleteText(context.Background(), &fakeProvider{err: boom}, nil, Options{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := CompleteText(context.Background(), nil, nil, Options{}); err == nil {
		t.Fatal("expected error for nil provider")
	}
}
