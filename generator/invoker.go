package generator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// RetryPolicy is the Invoker's exponential backoff. Delays are expressed in
// abstract units; Unit converts them to wall time.
type RetryPolicy struct {
	Attempts     int
	InitialDelay float64
	Base         float64
	Unit         time.Duration
}

// DefaultRetryPolicy: 5 attempts, delays 1, 7, 49, 343 seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, InitialDelay: 1, Base: 7, Unit: time.Second}
}

func (p RetryPolicy) validate() error {
	if p.Attempts < 1 {
		return fmt.Errorf("retry attempts must be >= 1, got %d", p.Attempts)
	}
	if p.InitialDelay < 0 {
		return fmt.Errorf("retry initial delay must be >= 0, got %v", p.InitialDelay)
	}
	if p.Base < 1 {
		return fmt.Errorf("retry exponential base must be >= 1, got %v", p.Base)
	}
	return nil
}

// Delay is the wait after the n-th failed attempt (n >= 1):
// InitialDelay * Base^(n-1) units.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	unit := p.Unit
	if unit <= 0 {
		unit = time.Second
	}
	return time.Duration(p.InitialDelay * math.Pow(p.Base, float64(n-1)) * float64(unit))
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper. It parks on a timer, so a waiting
// retry never holds up other runs.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Invoker wraps single model calls with the retry policy. It holds no
// per-call state and may be shared by concurrent runs.
type Invoker struct {
	client   LLMClient
	policy   RetryPolicy
	sleep    Sleeper
	observer Observer
	now      func() time.Time
}

// InvokerOption customises an Invoker.
type InvokerOption func(*Invoker)

// WithSleeper replaces the backoff wait; tests use it to record delays.
func WithSleeper(s Sleeper) InvokerOption {
	return func(inv *Invoker) { inv.sleep = s }
}

// WithObserver attaches an attempt observer.
func WithObserver(o Observer) InvokerOption {
	return func(inv *Invoker) { inv.observer = o }
}

// WithClock replaces time.Now for latency measurement.
func WithClock(now func() time.Time) InvokerOption {
	return func(inv *Invoker) { inv.now = now }
}

func NewInvoker(client LLMClient, policy RetryPolicy, opts ...InvokerOption) (*Invoker, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}
	inv := &Invoker{
		client: client,
		policy: policy,
		sleep:  SleepContext,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv, nil
}

// Policy returns the configured retry policy.
func (inv *Invoker) Policy() RetryPolicy { return inv.policy }

// Invoke performs one logical model call. Transient failures are retried with
// exponential backoff until the attempt budget runs out; any other failure
// returns a *FatalUpstreamError at once.
func (inv *Invoker) Invoke(ctx context.Context, prompt Prompt) (string, error) {
	var (
		backoff time.Duration
		last    error
	)
	for attempt := 1; attempt <= inv.policy.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", &FatalUpstreamError{Attempts: attempt - 1, Backoff: backoff, Err: err}
		}

		start := inv.now()
		out, err := inv.client.Complete(ctx, prompt)
		latency := inv.now().Sub(start)

		if err == nil {
			inv.observe(Attempt{Step: prompt.Step, Number: attempt, Latency: latency, Outcome: AttemptSuccess})
			return out, nil
		}

		var transient *TransientUpstreamError
		if !errors.As(err, &transient) {
			inv.observe(Attempt{Step: prompt.Step, Number: attempt, Latency: latency, Outcome: AttemptFatal, Err: err})
			return "", &FatalUpstreamError{Attempts: attempt, Backoff: backoff, Err: err}
		}
		inv.observe(Attempt{Step: prompt.Step, Number: attempt, Latency: latency, Outcome: AttemptTransient, Err: err})
		last = err

		if attempt == inv.policy.Attempts {
			break
		}
		d := inv.policy.Delay(attempt)
		if err := inv.sleep(ctx, d); err != nil {
			return "", &FatalUpstreamError{Attempts: attempt, Backoff: backoff, Err: err}
		}
		backoff += d
	}
	return "", &FatalUpstreamError{Attempts: inv.policy.Attempts, Backoff: backoff, Exhausted: true, Err: last}
}

func (inv *Invoker) observe(a Attempt) {
	if inv.observer != nil {
		inv.observer.ObserveAttempt(a)
	}
}
