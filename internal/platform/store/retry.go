package store

import (
	"time"

	"github.com/jpillora/backoff"
)

// RetryPolicy decides whether a failed attempt is tried again.
// attempt starts at 1 for the first failure.
type RetryPolicy interface {
	Next(attempt int, err error) (time.Duration, bool)
}

// FallthroughRetryPolicy never retries.
type FallthroughRetryPolicy struct{}

func (FallthroughRetryPolicy) Next(int, error) (time.Duration, bool) {
	return 0, false
}

// BackoffRetryPolicy retries transient failures with jittered exponential backoff.
type BackoffRetryPolicy struct {
	MaxAttempts int
	backoff     *backoff.Backoff
}

// NewRetryPolicy retries up to maxAttempts times, sleeping between min and max.
func NewRetryPolicy(maxAttempts int, min, max time.Duration) *BackoffRetryPolicy {
	return &BackoffRetryPolicy{
		MaxAttempts: maxAttempts,
		backoff: &backoff.Backoff{
			Min:    min,
			Max:    max,
			Factor: 2,
			Jitter: true,
		},
	}
}

// DefaultRetryPolicy retries unavailable and timed-out statements three times.
func DefaultRetryPolicy() *BackoffRetryPolicy {
	return NewRetryPolicy(3, 50*time.Millisecond, 2*time.Second)
}

func (p *BackoffRetryPolicy) Next(attempt int, err error) (time.Duration, bool) {
	if attempt > p.MaxAttempts || !Retryable(err) {
		return 0, false
	}
	// ForAttempt is stateless, so one policy is safe to share between goroutines.
	return p.backoff.ForAttempt(float64(attempt - 1)), true
}
