// Package backoff computes how long a client waits between reconnect
// attempts. Strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the wait before reconnect attempt n. Attempts are
// 1-indexed; values below 1 are treated as 1.
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Func adapts a plain function to a Strategy.
type Func func(attempt int) time.Duration

// Delay calls f.
func (f Func) Delay(attempt int) time.Duration { return f(normalize(attempt)) }

func normalize(attempt int) int {
	if attempt < 1 {
		return 1
	}
	return attempt
}

func capAt(d, maxDelay time.Duration) time.Duration {
	if maxDelay > 0 && d > maxDelay {
		return maxDelay
	}
	return d
}

// Constant waits the same interval before every attempt.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration { return c.Interval }

// Linear grows the wait by Initial per attempt, up to Max.
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewLinear creates a linear strategy.
func NewLinear(initial, maxDelay time.Duration) *Linear {
	return &Linear{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * attempt, capped at Max.
func (l *Linear) Delay(attempt int) time.Duration {
	return capAt(l.Initial*time.Duration(normalize(attempt)), l.Max)
}

// Exponential doubles the wait each attempt, up to Max.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	return capAt(exponential(e.Initial, attempt), e.Max)
}

// Jittered picks a random wait in [0, min(Initial * 2^(attempt-1), Max)]
// so that many clients dropped by one server restart do not reconnect in
// lockstep.
type Jittered struct {
	Initial time.Duration
	Max     time.Duration
}

// NewJittered creates an exponential strategy with full jitter.
func NewJittered(initial, maxDelay time.Duration) *Jittered {
	return &Jittered{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration up to the capped exponential bound.
func (j *Jittered) Delay(attempt int) time.Duration {
	bound := capAt(exponential(j.Initial, attempt), j.Max)
	return time.Duration(rand.Float64() * float64(bound)) //nolint:gosec // jitter intentionally uses non-crypto rand
}

func exponential(initial time.Duration, attempt int) time.Duration {
	d := float64(initial) * math.Pow(2, float64(normalize(attempt)-1))
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// DefaultStrategy is the client's reconnect policy: jittered exponential
// from 250ms up to 30s.
func DefaultStrategy() Strategy {
	return NewJittered(250*time.Millisecond, 30*time.Second)
}
