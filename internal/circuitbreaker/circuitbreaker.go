package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned without touching the network while the
	// breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when the half-open probe budget is
	// already in flight.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config holds circuit breaker configuration.
type Config struct {
	MaxHalfOpen      uint32        // Max in-flight probes in half-open state
	Interval         time.Duration // Window for clearing counters while closed
	Cooldown         time.Duration // Open -> half-open delay
	FailureThreshold uint32        // Consecutive failures that open the circuit
	SuccessThreshold uint32        // Probe successes that close it again
	OnStateChange    func(name string, from, to State)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxHalfOpen:      1,
		Interval:         60 * time.Second,
		Cooldown:         30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
	}
}

// Counts holds the breaker statistics for the current generation.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker implements the circuit breaker pattern for one logical pool.
type Breaker struct {
	name   string
	config Config
	logger *zap.Logger

	mutex      sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time

	// halfOpenInFlight bounds concurrent probes; released when a probe
	// settles so sequential probes can accumulate SuccessThreshold.
	halfOpenInFlight uint32
}

// New creates a breaker named after the pool it guards.
func New(name string, config Config, logger *zap.Logger) *Breaker {
	if config.FailureThreshold == 0 {
		config = DefaultConfig()
	}
	b := &Breaker{
		name:   name,
		config: config,
		logger: logger,
		state:  StateClosed,
		expiry: time.Now().Add(config.Interval),
	}
	setStateGauge(name, StateClosed)
	return b
}

// Execute runs fn if the breaker admits the call. The classify callback
// decides whether an error counts as a failure; passing nil counts every
// non-nil error.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	return b.ExecuteClassified(ctx, fn, nil)
}

// ExecuteClassified is Execute with a failure classifier. Errors the
// classifier rejects (returns false for) pass through without tripping the
// breaker, e.g. a fatal request error that retrying cannot fix.
func (b *Breaker) ExecuteClassified(ctx context.Context, fn func() error, isFailure func(error) bool) error {
	generation, err := b.beforeRequest()
	if err != nil {
		recordRejection(b.name, err)
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			b.afterRequest(generation, false)
			panic(r)
		}
	}()

	err = fn()
	failure := err != nil
	if failure && isFailure != nil {
		failure = isFailure(err)
	}
	b.afterRequest(generation, !failure)
	return err
}

// State returns the current state of the breaker.
func (b *Breaker) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	state, _ := b.currentState(time.Now())
	return state
}

// Counts returns a snapshot of the current counters.
func (b *Breaker) Counts() Counts {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.counts
}

func (b *Breaker) beforeRequest() (uint64, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	now := time.Now()
	state, generation := b.currentState(now)

	if state == StateOpen {
		return generation, ErrCircuitOpen
	}
	if state == StateHalfOpen {
		if b.halfOpenInFlight >= b.config.MaxHalfOpen {
			return generation, ErrTooManyRequests
		}
		b.halfOpenInFlight++
	}

	b.counts.Requests++
	return generation, nil
}

func (b *Breaker) afterRequest(before uint64, success bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	now := time.Now()
	state, generation := b.currentState(now)
	if generation != before {
		return
	}

	if state == StateHalfOpen && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}

	if success {
		b.onSuccess(state, now)
	} else {
		b.onFailure(state, now)
	}
}

func (b *Breaker) currentState(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.toNewGeneration(now)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.setState(StateHalfOpen, now)
		}
	}
	return b.state, b.generation
}

func (b *Breaker) onSuccess(state State, now time.Time) {
	switch state {
	case StateClosed:
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveFailures = 0
	case StateHalfOpen:
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		if b.counts.ConsecutiveSuccesses >= b.config.SuccessThreshold {
			b.setState(StateClosed, now)
		}
	}
}

func (b *Breaker) onFailure(state State, now time.Time) {
	switch state {
	case StateClosed:
		b.counts.TotalFailures++
		b.counts.ConsecutiveFailures++
		if b.counts.ConsecutiveFailures >= b.config.FailureThreshold {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.setState(StateOpen, now)
	}
}

func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.toNewGeneration(now)

	setStateGauge(b.name, state)
	recordTransition(b.name, prev, state)

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, prev, state)
	}

	if b.logger != nil {
		b.logger.Info("Circuit breaker state changed",
			zap.String("pool", b.name),
			zap.String("from", prev.String()),
			zap.String("to", state.String()),
		)
	}
}

func (b *Breaker) toNewGeneration(now time.Time) {
	b.generation++
	b.counts = Counts{}
	b.halfOpenInFlight = 0

	var zero time.Time
	switch b.state {
	case StateClosed:
		if b.config.Interval == 0 {
			b.expiry = zero
		} else {
			b.expiry = now.Add(b.config.Interval)
		}
	case StateOpen:
		b.expiry = now.Add(b.config.Cooldown)
	default: // StateHalfOpen
		b.expiry = zero
	}
}
