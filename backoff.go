package eventstream

import (
	"math"
	"math/rand"
	"time"
)

// JitterFunc returns a uniform draw in [-1, 1).
type JitterFunc func() float64

// jitterFraction is the share of the capped delay that jitter may add or remove.
const jitterFraction = 0.1

// BackoffPolicy defines reconnect backoff behavior.
type BackoffPolicy struct {
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Max caps the delay before jitter is applied. 0 = no cap below maxDelay.
	Max time.Duration
	// Multiplier grows the delay for each retry attempt.
	Multiplier float64
	// MaxAttempts limits retry attempts. 0 = unlimited.
	MaxAttempts int
}

// DefaultPolicy provides the reconnect defaults.
func DefaultPolicy() BackoffPolicy {
	return BackoffPolicy{
		Initial:    1 * time.Second,
		Max:        30 * time.Second,
		Multiplier: 2,
	}
}

// Validate reports whether the policy can produce a growing delay.
func (p BackoffPolicy) Validate() error {
	if p.Initial <= 0 || p.Multiplier <= 1 {
		return ErrInvalidPolicy
	}
	return nil
}

// Unlimited reports whether the policy retries forever.
func (p BackoffPolicy) Unlimited() bool {
	return p.MaxAttempts <= 0
}

// maxDelay is the largest delay a policy can produce.
const maxDelay = time.Duration(math.MaxInt64)

// Capped returns min(Initial * Multiplier^attempt, Max) for a 0-based attempt.
// Without a Max the result saturates at maxDelay.
func (p BackoffPolicy) Capped(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	raw := float64(p.Initial) * math.Pow(p.Multiplier, float64(attempt))
	if p.Max > 0 && (raw > float64(p.Max) || math.IsInf(raw, 1)) {
		return p.Max
	}
	return saturate(raw)
}

// Delay returns the jittered wait before retry attempt (0-based).
// A nil jitter draws from math/rand.
func Delay(attempt int, p BackoffPolicy, jitter JitterFunc) time.Duration {
	if jitter == nil {
		jitter = randomJitter
	}
	capped := float64(p.Capped(attempt))
	d := capped + capped*jitterFraction*clampUnit(jitter())
	if d < 0 {
		return 0
	}
	ms := math.Round(d / float64(time.Millisecond))
	return saturate(ms * float64(time.Millisecond))
}

// saturate converts ns to a Duration, clamping values past maxDelay.
func saturate(ns float64) time.Duration {
	if math.IsNaN(ns) || ns <= 0 {
		return 0
	}
	if ns >= float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(ns)
}

func randomJitter() float64 {
	return rand.Float64()*2 - 1
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < -1:
		return -1
	case v > 1:
		return 1
	}
	return v
}
