package kafka

import (
	"errors"
	"sync"
	"time"

	"github.com/Zayn-Suleman/loan-preQualification/internal/metrics"
)

// ErrBreakerOpen is returned without touching the broker while the breaker
// rejects traffic.
var ErrBreakerOpen = errors.New("circuit breaker open: broker publishes suspended")

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker is a three-state circuit breaker guarding broker publishes.
//
//	CLOSED    -> OPEN       after failureThreshold consecutive failures
//	OPEN      -> HALF_OPEN  once openTimeout has elapsed
//	HALF_OPEN -> CLOSED     after successThreshold consecutive successes
//	HALF_OPEN -> OPEN       on any failure (timeout restarts)
type Breaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	now              func() time.Time

	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
}

func NewBreaker(name string, failureThreshold, successThreshold int, openTimeout time.Duration) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
		now:              time.Now,
		state:            BreakerClosed,
	}
	metrics.BreakerState.WithLabelValues(name).Set(0)
	return b
}

// Do runs fn under the breaker. While OPEN it fails fast with ErrBreakerOpen
// until the open timeout elapses, then lets probes through in HALF_OPEN.
func (b *Breaker) Do(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err == nil)
	return err
}

// State reports the current state, applying the OPEN -> HALF_OPEN transition
// if the timeout has elapsed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	if b.state == BreakerOpen {
		return ErrBreakerOpen
	}
	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()

	switch b.state {
	case BreakerClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.failureThreshold {
			b.trip()
		}
	case BreakerHalfOpen:
		if !success {
			b.trip()
			return
		}
		b.successes++
		if b.successes >= b.successThreshold {
			b.transition(BreakerClosed)
			b.failures = 0
		}
	case BreakerOpen:
		// A call admitted just before the breaker tripped; its result does
		// not move the state machine.
	}
}

func (b *Breaker) refresh() {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.openTimeout {
		b.transition(BreakerHalfOpen)
		b.successes = 0
	}
}

func (b *Breaker) trip() {
	b.transition(BreakerOpen)
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
}

func (b *Breaker) transition(next BreakerState) {
	b.state = next
	metrics.BreakerState.WithLabelValues(b.name).Set(float64(next))
}
