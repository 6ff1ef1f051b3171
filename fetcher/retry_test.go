package fetcher

import (
	"context"
	"testing"
	"time"
)

type stubFetcher struct {
	calls   int
	results []*FetchResult
	errs    []*Error
}

func (s *stubFetcher) Fetch(ctx context.Context, rawURL string, opts Options) (*FetchResult, *Error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return nil, &Error{Kind: KindNetwork, Retryable: false, Message: "exhausted stub"}
}

func TestFetchWithRetry_SucceedsAfterRetryableError(t *testing.T) {
	stub := &stubFetcher{
		errs:    []*Error{{Kind: KindNetwork, Retryable: true, Message: "boom"}, nil},
		results: []*FetchResult{nil, {StatusCode: 200}},
	}
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	result, err := FetchWithRetry(context.Background(), stub, "https://example.com/", Options{}, policy)
	if err != nil {
		t.Fatalf("FetchWithRetry() error = %v", err)
	}
	if result.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}
	if stub.calls != 2 {
		t.Errorf("calls = %d, want 2", stub.calls)
	}
}

func TestFetchWithRetry_TerminalStopsImmediately(t *testing.T) {
	stub := &stubFetcher{errs: []*Error{{Kind: KindHTTP4xx, Retryable: false, Message: "not found"}}}
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	_, err := FetchWithRetry(context.Background(), stub, "https://example.com/", Options{}, policy)
	if err == nil || err.Kind != KindHTTP4xx {
		t.Fatalf("err = %v, want terminal http4xx", err)
	}
	if stub.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on terminal error)", stub.calls)
	}
}

func TestFetchWithRetry_ExhaustsRetries(t *testing.T) {
	stub := &stubFetcher{errs: []*Error{
		{Kind: KindNetwork, Retryable: true, Message: "1"},
		{Kind: KindNetwork, Retryable: true, Message: "2"},
		{Kind: KindNetwork, Retryable: true, Message: "3"},
	}}
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	_, err := FetchWithRetry(context.Background(), stub, "https://example.com/", Options{}, policy)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if stub.calls != 3 {
		t.Errorf("calls = %d, want 3 (1 initial + 2 retries)", stub.calls)
	}
}

func TestFetchWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	stub := &stubFetcher{errs: []*Error{{Kind: KindNetwork, Retryable: true, Message: "boom"}}}
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := FetchWithRetry(ctx, stub, "https://example.com/", Options{}, policy)
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
}
