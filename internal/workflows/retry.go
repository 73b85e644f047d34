package workflows

import "time"

// RetryPolicy governs engine attempt retries. The workflow owns the retry
// loop so each failed attempt is visible in history and in the session's
// reasoning trail, rather than hidden inside Temporal's activity retrier.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy matches production defaults: three attempts with
// exponential backoff starting at one minute.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   60 * time.Second,
	}
}

// policyFromInput resolves the retry policy for one execution, keeping
// defaults for fields the input leaves unset.
func policyFromInput(input ResearchWorkflowInput) RetryPolicy {
	policy := DefaultRetryPolicy()
	if input.MaxAttempts > 0 {
		policy.MaxAttempts = input.MaxAttempts
	}
	if input.BaseDelaySeconds > 0 {
		policy.BaseDelay = time.Duration(input.BaseDelaySeconds) * time.Second
	}
	return policy
}

// Delay returns the backoff before retrying after the given attempt,
// doubling per attempt: base, 2*base, 4*base, ...
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
