package resilience

import (
	stderrors "errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateOpen blocks all requests.
	StateOpen
	// StateHalfOpen lets one probe through to test recovery.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling through while a breaker is open.
var ErrCircuitOpen = stderrors.New("circuit breaker is open")

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies this breaker in logs.
	Name string
	// MaxFailures is the number of consecutive failures that open the circuit.
	MaxFailures int
	// Cooldown is how long the circuit stays open before a probe is allowed.
	Cooldown time.Duration
	// OnStateChange is called, with the lock released, after every transition.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker fails fast while a dependency is known to be down.
//
// Closed counts consecutive failures and opens at MaxFailures. Open rejects
// every call until Cooldown passes, then turns half-open. Half-open admits
// one probe: success closes the circuit, failure reopens it.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	return &CircuitBreaker{config: config, now: time.Now}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	state, change := cb.refresh()
	cb.mu.Unlock()
	cb.notify(change)
	return state
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

type transition struct {
	from, to State
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	state, change := cb.refresh()
	var err error
	switch state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if cb.probing {
			err = ErrCircuitOpen
		} else {
			cb.probing = true
		}
	}
	cb.mu.Unlock()
	cb.notify(change)
	return err
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	var change *transition
	if err == nil {
		cb.failures = 0
		change = cb.moveTo(StateClosed)
	} else {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.config.MaxFailures {
			cb.openedAt = cb.now()
			change = cb.moveTo(StateOpen)
		}
	}
	cb.mu.Unlock()
	cb.notify(change)
}

// refresh moves an expired open circuit to half-open. Callers hold mu.
func (cb *CircuitBreaker) refresh() (State, *transition) {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.Cooldown {
		return StateHalfOpen, cb.moveTo(StateHalfOpen)
	}
	return cb.state, nil
}

func (cb *CircuitBreaker) moveTo(to State) *transition {
	cb.probing = false
	if cb.state == to {
		return nil
	}
	t := &transition{from: cb.state, to: to}
	cb.state = to
	return t
}

func (cb *CircuitBreaker) notify(t *transition) {
	if t != nil && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, t.from, t.to)
	}
}
