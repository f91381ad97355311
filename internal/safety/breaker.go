// Package safety guards external collaborator calls so provider outages
// degrade the risk gate instead of blocking it.
package safety

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState represents the state of a lookup breaker.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the breaker state
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig holds configuration for a lookup breaker.
type BreakerConfig struct {
	FailureThreshold uint32        // Consecutive failures before opening
	SuccessThreshold uint32        // Successes to close from half-open
	OpenTimeout      time.Duration // Time to wait before probing again
}

// Breaker trips after repeated provider failures so subsequent lookups skip
// straight to the configured fallback value without waiting on timeouts.
type Breaker struct {
	config      BreakerConfig
	state       BreakerState
	failures    uint32
	successes   uint32
	nextAttempt time.Time
	mutex       sync.Mutex
	name        string
}

// NewBreaker creates a lookup breaker with defaults for zero-value fields.
func NewBreaker(name string, config BreakerConfig) *Breaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 3
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}
	if config.OpenTimeout == 0 {
		config.OpenTimeout = 30 * time.Second
	}

	return &Breaker{
		config: config,
		state:  StateClosed,
		name:   name,
	}
}

// Allow reports whether a lookup may be attempted right now.
func (b *Breaker) Allow() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Now().After(b.nextAttempt) {
			b.state = StateHalfOpen
			b.successes = 0
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful lookup.
func (b *Breaker) RecordSuccess() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.failures = 0

	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = StateClosed
			b.successes = 0
		}
	}
}

// RecordFailure records a failed lookup.
func (b *Breaker) RecordFailure() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.failures++

	switch b.state {
	case StateClosed:
		if b.failures >= b.config.FailureThreshold {
			b.open()
		}
	case StateHalfOpen:
		b.open()
	case StateOpen:
		b.nextAttempt = time.Now().Add(b.config.OpenTimeout)
	}
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.nextAttempt = time.Now().Add(b.config.OpenTimeout)
	b.successes = 0
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

// Reset returns the breaker to closed.
func (b *Breaker) Reset() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}

// ErrOpen is returned by guarded calls skipped because the breaker is open.
func (b *Breaker) ErrOpen() error {
	return fmt.Errorf("lookup breaker %s is open", b.name)
}
