// Package circuit guards calls to the biometric verifier and other remote
// collaborators that can stall the ledger.
package circuit

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	// StateHalfOpen admits trial calls until enough succeed or one fails.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Transition is the state change caused by one recorded result.
type Transition int

const (
	NoTransition Transition = iota
	Opened
	Closed
)

// Breaker trips after a run of consecutive failures. Once the cooldown has
// passed it goes half-open and lets one trial call through per cooldown
// window; a run of trial successes closes it and any trial failure reopens it.
type Breaker struct {
	name       string
	openAfter  int
	closeAfter int
	cooldown   time.Duration
	now        func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	lastTrial time.Time
}

type Option func(*Breaker)

// WithFailureThreshold sets the consecutive failures that open the breaker.
// Default 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.openAfter = n
		}
	}
}

// WithSuccessThreshold sets the consecutive trial successes that close it.
// Default 3.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.closeAfter = n
		}
	}
}

// WithCooldown sets the wait before the first trial and between trials.
// Default 5s.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:       name,
		openAfter:  5,
		closeAfter: 3,
		cooldown:   5 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen is true while calls are being short-circuited, half-open included.
func (b *Breaker) IsOpen() bool { return b.State() != StateClosed }

// Allow reports whether a call may go out now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if now.Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.successes = 0
	case StateHalfOpen:
		if now.Sub(b.lastTrial) < b.cooldown {
			return false
		}
	}
	b.lastTrial = now
	return true
}

// Failure records a failed call.
func (b *Breaker) Failure() Transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.now()
		return NoTransition
	case StateOpen:
		return NoTransition
	}
	b.failures++
	if b.failures < b.openAfter {
		return NoTransition
	}
	b.state = StateOpen
	b.openedAt = b.now()
	return Opened
}

// Success records a successful call.
func (b *Breaker) Success() Transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		b.failures = 0
		return NoTransition
	}
	b.successes++
	if b.successes < b.closeAfter {
		return NoTransition
	}
	b.state = StateClosed
	b.failures, b.successes = 0, 0
	return Closed
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures, b.successes = 0, 0
}
