// Package circuitbreaker wraps sony/gobreaker with the settings shared by outbound calls.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

var ErrOpen = errors.New("circuit breaker is open")

// Config trips the breaker after ConsecutiveFailures and keeps it open for OpenTimeout
// before HalfOpenRequests probes are let through.
type Config struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

type Breaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

func New(cfg Config) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

// Do runs fn through the breaker. Rejections while open or half-open are reported as ErrOpen.
// Context cancellation is not counted as a failure of the downstream.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var callErr error
	_, err := b.cb.Execute(func() (struct{}, error) {
		callErr = fn(ctx)
		if callErr != nil && ctx.Err() != nil {
			return struct{}{}, nil
		}
		return struct{}{}, callErr
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	if err != nil {
		return err
	}
	return callErr
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
