package fetcher

import (
	"context"
	"time"
)

// RetryPolicy configures exponential backoff for retryable fetch errors,
// generalized from the teacher's crawler.RetryPolicy.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration // capped at the scheduler's request delay
}

// DefaultRetryPolicy mirrors the teacher's defaults: 2 retries (3 total
// attempts), 1s base delay, 30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// FetchWithRetry wraps f.Fetch with the policy's backoff. Only
// errors with Retryable=true are retried; everything else returns
// immediately.
func FetchWithRetry(ctx context.Context, f Fetcher, rawURL string, opts Options, policy RetryPolicy) (*FetchResult, *Error) {
	backoff := policy.BaseDelay
	var lastErr *Error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &Error{Kind: KindNetwork, Retryable: false, Message: ctx.Err().Error()}
			case <-time.After(backoff):
				backoff = min(backoff*2, policy.MaxDelay)
			}
		}

		result, fetchErr := f.Fetch(ctx, rawURL, opts)
		if fetchErr == nil {
			return result, nil
		}
		lastErr = fetchErr
		if !fetchErr.Retryable {
			return nil, fetchErr
		}
	}
	return nil, lastErr
}
