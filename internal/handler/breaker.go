package handler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/noejunior792/hdl-ai-proteus/internal/domain"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Failing, reject requests
	CircuitHalfOpen                     // Testing if recovered
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	default:
		return "half_open"
	}
}

// CircuitBreaker stops calling a backend after repeated upstream failures.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           CircuitState
	failures        int
	successes       int
	lastFailureTime time.Time
	now             func() time.Time

	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	OnStateChange    func(from, to CircuitState)
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(failureThreshold int, timeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		state:            CircuitClosed,
		now:              time.Now,
		FailureThreshold: failureThreshold,
		SuccessThreshold: 1,
		Timeout:          timeout,
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow reports whether a call may proceed. An open breaker turns half-open
// once Timeout has passed since the last failure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailureTime) > cb.Timeout {
			cb.setState(CircuitHalfOpen)
			return true
		}
		return false
	default:
		return true
	}
}

// RetryAfter is the time left until an open breaker admits a trial request.
func (cb *CircuitBreaker) RetryAfter() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != CircuitOpen {
		return 0
	}
	if d := cb.Timeout - cb.now().Sub(cb.lastFailureTime); d > 0 {
		return d
	}
	return 0
}

// RecordSuccess records a successful upstream call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.SuccessThreshold {
			cb.setState(CircuitClosed)
			cb.failures = 0
			cb.successes = 0
		}
	case CircuitClosed:
		cb.failures = 0
	}
}

// RecordFailure records a failed upstream call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.FailureThreshold {
			cb.setState(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.setState(CircuitOpen)
		cb.successes = 0
	}
}

func (cb *CircuitBreaker) setState(newState CircuitState) {
	if cb.OnStateChange != nil && cb.state != newState {
		cb.OnStateChange(cb.state, newState)
	}
	cb.state = newState
}

// BreakerSet holds one breaker per provider kind.
type BreakerSet struct {
	breakers map[domain.ProviderKind]*CircuitBreaker
}

// NewBreakerSet creates a breaker for each kind and logs state changes.
func NewBreakerSet(kinds []domain.ProviderKind, failureThreshold int, timeout time.Duration, logger *slog.Logger) *BreakerSet {
	if logger == nil {
		logger = slog.Default()
	}
	s := &BreakerSet{breakers: make(map[domain.ProviderKind]*CircuitBreaker, len(kinds))}
	for _, k := range kinds {
		cb := NewCircuitBreaker(failureThreshold, timeout)
		cb.OnStateChange = func(from, to CircuitState) {
			logger.Warn("provider circuit changed",
				slog.String("provider", string(k)),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		}
		s.breakers[k] = cb
	}
	return s
}

// For returns the breaker for kind, or nil when kind has none.
func (s *BreakerSet) For(kind domain.ProviderKind) *CircuitBreaker {
	if s == nil {
		return nil
	}
	return s.breakers[kind]
}

// States reports every breaker's state for health output.
func (s *BreakerSet) States() map[string]string {
	out := make(map[string]string)
	if s == nil {
		return out
	}
	for k, cb := range s.breakers {
		out[string(k)] = cb.State().String()
	}
	return out
}
