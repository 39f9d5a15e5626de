// Package dispatch implements the core of the gateway: the Retry Decorator,
// Backpressure Wrapper, Parameter Validator, Workaround Translator,
// Parameter Discovery Cache, and the Provider Registry that composes them
// per spec §4.2–§4.7. Grounded throughout on the teacher's
// internal/resilience package and on original_source/src/providers/*.rs.
package dispatch

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/emesal/ratatoskr/pkg/rerr"
)

// ErrCircuitOpen is returned by CircuitBreaker.Execute when the breaker is
// open and the reset timeout has not yet elapsed. The Provider Registry
// treats this the same as ModelNotAvailable: a fallback trigger.
var ErrCircuitOpen = errors.New("dispatch: circuit breaker is open")

// CircuitBreakerState is the three-state machine: closed, open, half-open.
type CircuitBreakerState int

const (
	CBClosed CircuitBreakerState = iota
	CBOpen
	CBHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CBClosed:
		return "closed"
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes a CircuitBreaker. This is a supplement to
// spec.md (§5 of SPEC_FULL.md): the dispatch algorithm of §4.4 never opens a
// circuit on its own; attaching one to a Registry entry is an opt-in
// operational hardening knob layered on top.
type CircuitBreakerConfig struct {
	Name         string
	MaxFailures  int // default 5
	ResetTimeout time.Duration // default 30s
	HalfOpenMax  int // default 3
}

// CircuitBreaker is the classic three-state breaker from the teacher's
// internal/resilience.CircuitBreaker, adapted so the failure budget tracks
// provider health rather than raw fn() success. Execute no longer trips the
// breaker on every error returned by fn: isBreakerFailure classifies the
// error first via rerr, so a deterministic caller mistake (bad input, an
// unsupported parameter, an unknown model id) never counts against a
// provider that is otherwise healthy, while a transient transport failure or
// an explicit ModelNotAvailable does. This mirrors the same rerr vocabulary
// registry.go's isFallbackTrigger uses to decide whether to try the next
// source.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu              sync.Mutex
	state           CircuitBreakerState
	consecutiveFail int
	lastFailure     time.Time
	halfOpenCalls   int
	halfOpenFails   int
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name: cfg.Name, maxFailures: cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout, halfOpenMax: cfg.HalfOpenMax,
		state: CBClosed,
	}
}

// isBreakerFailure reports whether err is a signal that the provider itself
// is unhealthy, as opposed to a deterministic rejection any instance of the
// same provider would repeat. Transient errors (HTTPTransport, RateLimited,
// Stream, a 429/502/503/504 API response) and an explicit ModelNotAvailable count; an
// unclassified error — one that never passed through rerr.New/rerr.Wrap —
// fails safe and counts too, since there's no basis to tell it apart from a
// transport problem. Everything else (InvalidInput, UnsupportedParameter,
// ModelNotFound, ContextLengthExceeded, ...) reached the provider and got a
// well-formed rejection, so tripping the breaker on it would only punish
// traffic that was never going to succeed against this or any other source.
func isBreakerFailure(err error) bool {
	e, ok := rerr.As(err)
	if !ok {
		return true
	}
	return e.Transient() || e.Kind == rerr.ModelNotAvailable
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case CBOpen:
		if time.Since(cb.lastFailure) >= cb.resetTimeout {
			cb.state = CBHalfOpen
			cb.halfOpenCalls, cb.halfOpenFails = 0, 0
			slog.Info("circuit breaker transitioning to half-open", "name", cb.name)
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	case CBHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMax {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	inHalfOpen := cb.state == CBHalfOpen
	if inHalfOpen {
		cb.halfOpenCalls++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil && isBreakerFailure(err) {
		cb.recordFailure(inHalfOpen)
	} else {
		cb.recordSuccess(inHalfOpen)
	}
	return err
}

func (cb *CircuitBreaker) recordFailure(inHalfOpen bool) {
	cb.lastFailure = time.Now()
	if inHalfOpen {
		cb.halfOpenFails++
		cb.state = CBOpen
		cb.consecutiveFail = cb.maxFailures
		slog.Warn("circuit breaker re-opened from half-open", "name", cb.name)
		return
	}
	cb.consecutiveFail++
	if cb.consecutiveFail >= cb.maxFailures {
		cb.state = CBOpen
		slog.Warn("circuit breaker opened", "name", cb.name, "consecutive_failures", cb.consecutiveFail)
	}
}

func (cb *CircuitBreaker) recordSuccess(inHalfOpen bool) {
	if inHalfOpen {
		if cb.halfOpenCalls-cb.halfOpenFails >= cb.halfOpenMax {
			cb.state = CBClosed
			cb.consecutiveFail, cb.halfOpenCalls, cb.halfOpenFails = 0, 0, 0
			slog.Info("circuit breaker closed after successful probes", "name", cb.name)
		}
		return
	}
	cb.consecutiveFail = 0
}

func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CBOpen && time.Since(cb.lastFailure) >= cb.resetTimeout {
		return CBHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CBClosed
	cb.consecutiveFail, cb.halfOpenCalls, cb.halfOpenFails = 0, 0, 0
	slog.Info("circuit breaker manually reset", "name", cb.name)
}
