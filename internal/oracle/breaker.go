package oracle

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// BreakerState is the state of a circuit breaker
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerHalfOpen:
		return "half-open"
	case BreakerOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Breaker stops calling a backend after consecutive failures
//
// After the cooldown one probe call is let through; its outcome closes the
// breaker or opens it for another cooldown.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu         sync.Mutex
	state      BreakerState
	generation uint64
	failures   int
	probing    bool
	expiry     time.Time
}

// NewBreaker creates a closed breaker
// A threshold of zero or less disables it.
func NewBreaker(name string, threshold int, cooldown time.Duration, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		logger:    logger,
		now:       time.Now,
		state:     BreakerClosed,
	}
}

// Execute runs fn unless the breaker is open
func (b *Breaker) Execute(fn func() error) error {
	generation, err := b.beforeRequest()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			b.afterRequest(generation, false)
			panic(r)
		}
	}()

	err = fn()
	b.afterRequest(generation, err == nil)
	return err
}

// State returns the current state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState(b.now())
}

func (b *Breaker) beforeRequest() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState(b.now()) {
	case BreakerOpen:
		return b.generation, ErrCircuitOpen
	case BreakerHalfOpen:
		if b.probing {
			return b.generation, ErrCircuitOpen
		}
		b.probing = true
	}
	return b.generation, nil
}

func (b *Breaker) afterRequest(before uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	state := b.currentState(now)
	if b.generation != before {
		return
	}

	if success {
		b.failures = 0
		if state == BreakerHalfOpen {
			b.setState(BreakerClosed, now)
		}
		return
	}

	switch state {
	case BreakerClosed:
		b.failures++
		if b.threshold > 0 && b.failures >= b.threshold {
			b.setState(BreakerOpen, now)
		}
	case BreakerHalfOpen:
		b.setState(BreakerOpen, now)
	}
}

func (b *Breaker) currentState(now time.Time) BreakerState {
	if b.state == BreakerOpen && !b.expiry.After(now) {
		b.setState(BreakerHalfOpen, now)
	}
	return b.state
}

func (b *Breaker) setState(state BreakerState, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.generation++
	b.failures = 0
	b.probing = false
	if state == BreakerOpen {
		b.expiry = now.Add(b.cooldown)
	}

	b.logger.Info("Circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", prev.String()),
		zap.String("to", state.String()),
	)
}
