// Package resilience classifies AI backend failures and guards the backend
// with a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/credit-predictor/internal/config"
)

// State is the position of a Breaker.
type State int

const (
	// Closed lets calls through.
	Closed State = iota
	// Open rejects calls until the reset timeout elapses.
	Open
	// HalfOpen lets a single trial call through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the backend while the breaker is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerOptions controls a Breaker.
type BreakerOptions struct {
	// Name labels log lines, e.g. "anthropic".
	Name string

	// FailureThreshold consecutive tripping failures open the breaker. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration

	// ShouldTrip decides which errors count as failures. Nil means
	// IsTransient: a malformed model answer says nothing about backend health.
	ShouldTrip func(err error) bool

	// OnStateChange is called with the lock held; keep it cheap.
	OnStateChange func(from, to State)
}

// OptionsFromConfig maps the circuit config section onto BreakerOptions.
func OptionsFromConfig(name string, c config.CircuitConfig) BreakerOptions {
	opts := BreakerOptions{Name: name, FailureThreshold: 5, ResetTimeout: 30 * time.Second}
	if c.FailureThreshold > 0 {
		opts.FailureThreshold = c.FailureThreshold
	}
	if c.ResetTimeoutSecs > 0 {
		opts.ResetTimeout = time.Duration(c.ResetTimeoutSecs) * time.Second
	}
	return opts
}

// Breaker is a consecutive-failure circuit breaker. Safe for concurrent use.
type Breaker struct {
	opts BreakerOptions

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	trialing    bool

	now func() time.Time
}

// NewBreaker creates a closed Breaker.
func NewBreaker(opts BreakerOptions) *Breaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 30 * time.Second
	}
	if opts.ShouldTrip == nil {
		opts.ShouldTrip = IsTransient
	}
	return &Breaker{opts: opts, state: Closed, now: time.Now}
}

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call runs fn through b and returns its value. A nil breaker calls fn directly.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if b == nil {
		return fn(ctx)
	}
	var zero T
	if err := b.admit(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// State reports the current position, treating an expired open breaker as half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.lastFailure) >= b.opts.ResetTimeout {
		return HalfOpen
	}
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.trialing = false
	b.transition(Closed)
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.lastFailure) < b.opts.ResetTimeout {
			return ErrCircuitOpen
		}
		b.transition(HalfOpen)
		b.trialing = true
		return nil
	case HalfOpen:
		// One trial call at a time.
		if b.trialing {
			return ErrCircuitOpen
		}
		b.trialing = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A canceled caller says nothing about the backend's health.
	if errors.Is(err, context.Canceled) {
		b.trialing = false
		return
	}

	if err == nil || !b.opts.ShouldTrip(err) {
		b.failures = 0
		b.trialing = false
		b.transition(Closed)
		return
	}

	b.failures++
	b.lastFailure = b.now()

	switch b.state {
	case Closed:
		if b.failures >= b.opts.FailureThreshold {
			b.transition(Open)
		}
	case HalfOpen:
		b.trialing = false
		b.transition(Open)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	zap.L().Info("resilience: circuit state change",
		zap.String("breaker", b.opts.Name),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Int("failures", b.failures),
	)
	if b.opts.OnStateChange != nil {
		b.opts.OnStateChange(from, to)
	}
}
