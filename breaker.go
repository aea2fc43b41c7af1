package beanstalk

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/koodaamo/beanstalk/proto"
)

// Breaker wraps client operations in a circuit breaker: after repeated
// transport failures against a server, further calls fail fast instead
// of waiting on a dead peer. It is opt-in and never retries anything;
// retry and reconnect policy stay with the caller.
//
// Domain outcomes (ErrNotFound, ErrTimedOut, ...) and caller-initiated
// context cancellation do not count as failures; only errors that
// invalidate the connection trip the breaker.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

// NewBreaker creates a circuit breaker for a server, identified by name
// (typically the address). maxRequests limits probes in the half-open
// state, interval resets the failure counts while closed, and timeout is
// how long the breaker stays open before probing again.
func NewBreaker(name string, maxRequests uint32, interval, timeout time.Duration) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Caller-initiated cancellation says nothing about server
			// health.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return !proto.ShouldCloseConnection(err)
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

// Do runs fn through the breaker. When the breaker is open,
// gobreaker.ErrOpenState is returned without invoking fn.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// State returns the breaker's current state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
