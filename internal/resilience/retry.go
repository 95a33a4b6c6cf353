// Package resilience retries calls to services the run depends on but does
// not own: the Postgres server at connect time and the Pushgateway.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy describes how one remote call is retried. The delay doubles after
// every failed attempt up to MaxBackoff.
type Policy struct {
	// Service and Operation label the retry log lines.
	Service   string
	Operation string

	// Attempts is the total number of calls, the first one included.
	Attempts int

	Backoff    time.Duration
	MaxBackoff time.Duration

	// Jitter spreads each delay by up to ±Jitter of its value.
	Jitter float64

	// Retryable decides whether a failure is worth another attempt.
	// IsTransient is used when nil.
	Retryable func(err error) bool
}

// PostgresConnect is the policy for the startup ping. A server that is
// still booting or briefly refusing connections gets a few seconds.
func PostgresConnect() Policy {
	return Policy{
		Service:    "postgres",
		Operation:  "ping",
		Attempts:   5,
		Backoff:    250 * time.Millisecond,
		MaxBackoff: 4 * time.Second,
		Jitter:     0.2,
		Retryable:  IsTransient,
	}
}

// PushgatewayPush is the policy for pushing run metrics.
func PushgatewayPush() Policy {
	return Policy{
		Service:    "pushgateway",
		Operation:  "push",
		Attempts:   3,
		Backoff:    250 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
		Jitter:     0.2,
		Retryable:  IsTransientPush,
	}
}

// Do calls fn until it succeeds, fails with a non-retryable error, runs out
// of attempts, or ctx is done. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = p.normalize()

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == p.Attempts || !p.Retryable(err) {
			return err
		}

		wait := p.delay(attempt)
		zap.L().Warn("retrying call",
			zap.String("service", p.Service),
			zap.String("operation", p.Operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func (p Policy) normalize() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Backoff <= 0 {
		p.Backoff = 100 * time.Millisecond
	}
	if p.MaxBackoff < p.Backoff {
		p.MaxBackoff = p.Backoff
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// delay is the wait after the given failed attempt (1-based).
func (p Policy) delay(attempt int) time.Duration {
	d := p.Backoff
	for i := 1; i < attempt && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	if p.Jitter > 0 {
		d += time.Duration((rand.Float64()*2 - 1) * p.Jitter * float64(d))
	}
	return max(d, 0)
}
