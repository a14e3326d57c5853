package engine

import (
	"context"
	"errors"
	"time"
)

// ErrInterrupted is returned when the interrupt check fired during a
// backoff wait. The scheduler maps it to a paused/cancelled record rather
// than a provider failure.
var ErrInterrupted = errors.New("retry wait interrupted")

// RetryPolicy wraps a remote call with classification-driven retry and
// capped exponential backoff. Retryable failures are re-attempted without
// an upper bound on attempts; the FATAL/RETRYABLE split is what terminates
// the loop on permanent errors. Fatal failures propagate immediately.
type RetryPolicy struct {
	// BaseDelay is the first backoff wait; each retry doubles it.
	BaseDelay time.Duration
	// MaxDelay caps the backoff wait.
	MaxDelay time.Duration
	// PollInterval is how often the interrupt check runs during a wait.
	PollInterval time.Duration
}

// DefaultRetryPolicy matches the remote providers' published limits:
// waits of 5s, 10s, 20s, ... capped at 60s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:    5 * time.Second,
		MaxDelay:     60 * time.Second,
		PollInterval: 500 * time.Millisecond,
	}
}

// Delay returns the backoff wait before retry number attempt (0-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs call until it succeeds or fails with a non-retryable error.
// interrupt may be nil; when set it is polled during every backoff wait so
// a pause request does not sit behind a long wait. Context cancellation is
// honored in the wait regardless.
func (p RetryPolicy) Do(ctx context.Context, interrupt func() bool, call func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := call(ctx)
		if err == nil {
			return nil
		}

		var re *RemoteError
		if !errors.As(err, &re) || !re.Retryable {
			return err
		}

		if werr := p.wait(ctx, p.Delay(attempt), interrupt); werr != nil {
			return werr
		}
	}
}

// wait sleeps for d, waking every PollInterval to run the interrupt check.
func (p RetryPolicy) wait(ctx context.Context, d time.Duration, interrupt func() bool) error {
	if interrupt == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	}

	poll := p.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	deadline := time.Now().Add(d)
	for {
		if interrupt() {
			return ErrInterrupted
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		if remaining < poll {
			poll = remaining
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}
