package provider

import "time"

// BackoffPolicy is the shared retry policy for external calls: a bounded
// number of attempts with exponential delay between them. Every retrying
// call site uses one of these instead of an inline sleep loop.
type BackoffPolicy struct {
	MaxRetries int           // Retries after the first attempt
	Base       time.Duration // Delay unit; attempt n sleeps Base * 2^n
	Cap        time.Duration // Upper bound on a single delay
}

// DefaultBackoff returns the policy used for provider invocations.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		MaxRetries: 2,
		Base:       time.Second,
		Cap:        8 * time.Second,
	}
}

// Delay returns the sleep before retry number attempt (zero-based).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	d := p.Base << uint(attempt)
	if p.Cap > 0 && d > p.Cap {
		return p.Cap
	}
	return d
}
