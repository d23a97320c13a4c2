// Package processor implements the background event processing loop, its
// retry policy, and the retention task purging old processed events.
package processor

import "time"

// DefaultMaxAttempts is the processing attempt cap before an event is
// dead-lettered.
const DefaultMaxAttempts = 5

// RetryPolicy bounds how often a failing event is retried. Backoff, when
// non-zero, is the pause after a failed attempt within a tick.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy returns the standard policy: five attempts, no backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts}
}

// Exhausted reports whether an event with the given attempt count has reached
// the cap.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}
