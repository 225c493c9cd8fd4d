package payments

import (
	"sync"
	"time"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// breaker shields a single gateway: after maxFailures consecutive failures
// calls fail fast with ErrGatewayUnavailable until resetTimeout has passed,
// then one probe call is let through.
type breaker struct {
	mu           sync.Mutex
	state        breakerState
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time
}

func newBreaker(maxFailures int, resetTimeout time.Duration) *breaker {
	return &breaker{maxFailures: maxFailures, resetTimeout: resetTimeout}
}

func (b *breaker) do(fn func() error) error {
	b.mu.Lock()
	if b.state == breakerOpen {
		if time.Since(b.lastFailure) <= b.resetTimeout {
			b.mu.Unlock()
			return models.ErrGatewayUnavailable
		}
		b.state = breakerHalfOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		if b.state == breakerHalfOpen || b.failures >= b.maxFailures {
			b.state = breakerOpen
		}
		return err
	}
	b.state = breakerClosed
	b.failures = 0
	return nil
}
