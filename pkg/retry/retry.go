// Package retry provides reconnect delay strategies for the streaming engine.
//
// The default policy is a constant delay between attempts. Exponential backoff
// is available behind the same Strategy interface so the reconnect controller
// can be reconfigured without touching any other component.
package retry

import (
	"math/rand"
	"sync"
	"time"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Strategy computes the delay before a reconnect attempt.
// attempt is 1-based: the delay returned for attempt n is applied before
// the n-th retry.
type Strategy interface {
	// Delay returns the wait duration before the given attempt.
	Delay(attempt int) time.Duration
	// Name returns a short identifier for logging and metrics labels.
	Name() string
}

// Constant waits the same fixed duration between every attempt.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant-delay strategy.
func NewConstant(interval time.Duration) Constant {
	return Constant{Interval: interval}
}

// Delay returns the fixed interval regardless of attempt number.
func (c Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Name returns the strategy identifier.
func (c Constant) Name() string { return "constant" }

// Exponential doubles the delay per attempt up to MaxDelay, with optional
// jitter to avoid thundering-herd reconnects after a shared outage.
type Exponential struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	AddJitter    bool
}

// NewExponential creates an exponential backoff strategy with sensible defaults
// applied to zero-valued fields.
func NewExponential(initial, max time.Duration) Exponential {
	return Exponential{
		InitialDelay: initial,
		MaxDelay:     max,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Delay returns the backoff duration for the given 1-based attempt.
func (e Exponential) Delay(attempt int) time.Duration {
	initial := e.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	multiplier := e.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		next := float64(delay) * multiplier
		if e.MaxDelay > 0 && next > float64(e.MaxDelay) {
			delay = e.MaxDelay
			break
		}
		delay = time.Duration(next)
	}
	if e.MaxDelay > 0 && delay > e.MaxDelay {
		delay = e.MaxDelay
	}

	if e.AddJitter && delay > 0 {
		// Up to 25% jitter using thread-safe random
		randMu.Lock()
		jitter := time.Duration(randSource.Int63n(int64(delay / 4)))
		randMu.Unlock()
		delay += jitter
	}

	return delay
}

// Name returns the strategy identifier.
func (e Exponential) Name() string { return "exponential" }
