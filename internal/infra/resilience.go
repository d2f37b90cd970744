// Package infra provides shared infrastructure for the Wikipedia lookup client:
// a TTL/LRU page cache, in-flight request coalescing and a circuit breaker.
package infra

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCallPanicked is what waiters receive when the shared call panicked.
var ErrCallPanicked = errors.New("coalesced call panicked")

// Deduplicator coalesces identical in-flight lookups. When several callers ask
// for the same page at once, one request is made and every waiter gets its result.
type Deduplicator[V any] struct {
	mu       sync.Mutex
	inflight map[string]*call[V]
}

type call[V any] struct {
	done    chan struct{}
	value   V
	err     error
	waiters int
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator[V any]() *Deduplicator[V] {
	return &Deduplicator[V]{inflight: make(map[string]*call[V])}
}

// Do runs fn unless a call with the same key is already running, in which case
// it waits for that call. shared reports whether the result came from another caller.
func (d *Deduplicator[V]) Do(ctx context.Context, key string, fn func() (V, error)) (value V, shared bool, err error) {
	d.mu.Lock()
	if c, ok := d.inflight[key]; ok {
		c.waiters++
		d.mu.Unlock()

		select {
		case <-c.done:
			return c.value, true, c.err
		case <-ctx.Done():
			var zero V
			return zero, false, ctx.Err()
		}
	}

	c := &call[V]{done: make(chan struct{}), err: ErrCallPanicked, waiters: 1}
	d.inflight[key] = c
	d.mu.Unlock()

	// a panic in fn still releases the key and the waiters
	defer func() {
		d.mu.Lock()
		delete(d.inflight, key)
		d.mu.Unlock()
		close(c.done)
	}()

	c.value, c.err = fn()
	return c.value, false, c.err
}

// InFlight returns the number of distinct keys currently being fetched.
func (d *Deduplicator[V]) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

// CircuitState represents the current state of the circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Failing fast
	CircuitHalfOpen                     // Probing for recovery
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n int) BreakerOption {
	return func(cb *CircuitBreaker) { cb.failureThreshold = n }
}

// WithResetTimeout sets how long the circuit stays open before probing.
func WithResetTimeout(d time.Duration) BreakerOption {
	return func(cb *CircuitBreaker) { cb.resetTimeout = d }
}

// WithHalfOpenProbes sets how many probe requests pass in the half-open state.
func WithHalfOpenProbes(n int) BreakerOption {
	return func(cb *CircuitBreaker) { cb.halfOpenMax = n }
}

// CircuitBreaker fails fast once Wikipedia keeps failing, instead of letting
// every lookup wait out its retries.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMax      int

	state            CircuitState
	consecutiveFails int
	lastFailure      time.Time
	halfOpenCount    int

	now func() time.Time
}

// NewCircuitBreaker creates a breaker that opens after 5 failures and probes after 30s.
func NewCircuitBreaker(opts ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		failureThreshold: 5,
		resetTimeout:     30 * time.Second,
		halfOpenMax:      2,
		state:            CircuitClosed,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Allow reports whether a request may proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.halfOpenCount = 1
			return true
		}
		return false
	case CircuitHalfOpen:
		if cb.halfOpenCount < cb.halfOpenMax {
			cb.halfOpenCount++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess resets the failure count and closes a half-open circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
		cb.halfOpenCount = 0
	}
}

// RecordFailure counts a failure and opens the circuit when the threshold is hit.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = cb.now()

	switch cb.state {
	case CircuitClosed:
		if cb.consecutiveFails >= cb.failureThreshold {
			cb.state = CircuitOpen
		}
	case CircuitHalfOpen:
		cb.state = CircuitOpen
		cb.halfOpenCount = 0
	}
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the breaker.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		State:            cb.state.String(),
		ConsecutiveFails: cb.consecutiveFails,
		LastFailure:      cb.lastFailure,
		RetryAt:          cb.lastFailure.Add(cb.resetTimeout),
	}
}

// CircuitBreakerStats contains circuit breaker statistics
type CircuitBreakerStats struct {
	State            string    `json:"state"`
	ConsecutiveFails int       `json:"consecutive_failures"`
	LastFailure      time.Time `json:"last_failure,omitempty"`
	RetryAt          time.Time `json:"retry_at,omitempty"`
}

// ErrCircuitOpen is returned when the circuit breaker rejects a request.
type ErrCircuitOpen struct {
	RetryAt  time.Time
	Failures int
}

func (e *ErrCircuitOpen) Error() string {
	return "wikipedia is not responding, retry after " + e.RetryAt.Format(time.RFC3339)
}
