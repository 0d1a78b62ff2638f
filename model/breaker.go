package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/hupe1980/agencyhub/logging"
)

// BreakerOptions configure CircuitBreaker.
type BreakerOptions struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a half-open probe.
	Timeout time.Duration
	// Interval clears failure counts periodically while closed. Zero never clears.
	Interval time.Duration
	Logger   logging.Logger
}

// ErrCircuitOpen wraps failures rejected by an open circuit.
var ErrCircuitOpen = fmt.Errorf("model circuit open")

// CircuitBreaker wraps a Model so repeated provider failures fail fast.
type CircuitBreaker struct {
	inner   Model
	breaker *gobreaker.CircuitBreaker[*Response]
}

// NewCircuitBreaker wraps inner.
func NewCircuitBreaker(inner Model, optFns ...func(o *BreakerOptions)) *CircuitBreaker {
	opts := BreakerOptions{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		Interval:    60 * time.Second,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := logging.OrNoOp(opts.Logger)

	cb := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "model:" + inner.Info().Name,
		MaxRequests: 1,
		Interval:    opts.Interval,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// caller cancellation does not count as a provider failure
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &CircuitBreaker{inner: inner, breaker: cb}
}

// Generate implements Model.
func (c *CircuitBreaker) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.inner.Generate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %w", ErrCircuitOpen, c.inner.Info().Name, err)
		}
		return nil, err
	}
	return resp, nil
}

// Info implements Model.
func (c *CircuitBreaker) Info() Info { return c.inner.Info() }

// State returns the breaker state for monitoring.
func (c *CircuitBreaker) State() gobreaker.State { return c.breaker.State() }
