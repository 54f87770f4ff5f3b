package provider

import (
	"context"
	"time"

	"inkwell/internal/logger"
)

// Invoker walks an ordered provider list until one produces a usable
// response. Transient failures are retried per provider with backoff;
// rejections skip to the next provider; auth failures cool the provider
// down process-wide before advancing.
type Invoker struct {
	policy    BackoffPolicy
	cooldowns *CooldownStore
	timeout   time.Duration
	sleep     func(time.Duration) // Injectable for tests
}

// NewInvoker creates an invoker with the given retry policy, shared
// cool-down store, and per-call timeout.
func NewInvoker(policy BackoffPolicy, cooldowns *CooldownStore, timeout time.Duration) *Invoker {
	return &Invoker{
		policy:    policy,
		cooldowns: cooldowns,
		timeout:   timeout,
		sleep:     time.Sleep,
	}
}

// Invoke attempts each provider in order and returns the first successful
// response. On failure it returns an *ExhaustedError distinguishing
// unreachable providers from rejected requests.
func (inv *Invoker) Invoke(ctx context.Context, providers []Provider, req Request) (*Response, error) {
	attempts := 0
	anyRejected := false

	for _, p := range providers {
		if inv.cooldowns != nil && inv.cooldowns.Active(p.Name()) {
			logger.Debug("Skipping cooled-down provider", "provider", p.Name())
			continue
		}

		resp, made, outcome := inv.tryProvider(ctx, p, req)
		attempts += made
		switch outcome {
		case outcomeSuccess:
			resp.Provider = p.Name()
			return resp, nil
		case outcomeRejected:
			anyRejected = true
		}
		// outcomeUnreachable: advance without marking rejection
	}

	return nil, &ExhaustedError{Attempts: attempts, Unreachable: !anyRejected}
}

type providerOutcome int

const (
	outcomeSuccess providerOutcome = iota
	outcomeRejected
	outcomeUnreachable
)

// tryProvider runs the retry loop for a single provider and reports how
// many calls were made and how the provider fell through.
func (inv *Invoker) tryProvider(ctx context.Context, p Provider, req Request) (*Response, int, providerOutcome) {
	made := 0

	for attempt := 0; attempt <= inv.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			inv.sleep(inv.policy.Delay(attempt - 1))
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if inv.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, inv.timeout)
		}
		resp, err := p.Generate(callCtx, req)
		if cancel != nil {
			cancel()
		}
		made++

		if err == nil {
			if resp.Empty() {
				// Success with nothing usable in it counts as a soft
				// failure; the next provider gets a chance.
				logger.Warn("Provider returned empty payload", "provider", p.Name())
				return nil, made, outcomeRejected
			}
			return resp, made, outcomeSuccess
		}

		switch Classify(err) {
		case ClassAuth:
			if inv.cooldowns != nil {
				inv.cooldowns.Disable(p.Name(), err.Error())
			}
			return nil, made, outcomeUnreachable
		case ClassRejected:
			logger.Debug("Provider rejected request", "provider", p.Name(), "error", err.Error())
			return nil, made, outcomeRejected
		default:
			logger.Debug("Transient provider failure", "provider", p.Name(), "attempt", attempt, "error", err.Error())
		}
	}

	return nil, made, outcomeUnreachable
}
