package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Breaker guards the write path of a Store with a circuit breaker. Transport
// failures and an open breaker both surface as ErrUnavailable so callers can
// tell "try again later" apart from a missing document.
type Breaker struct {
	Store
	cb *gobreaker.CircuitBreaker[string]
}

type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:                "store",
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

func NewBreaker(s Store, settings BreakerSettings) *Breaker {
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isCallerError(err)
		},
	})
	return &Breaker{Store: s, cb: cb}
}

func (b *Breaker) Create(ctx context.Context, collection string, fields any) (string, error) {
	id, err := b.cb.Execute(func() (string, error) {
		return b.Store.Create(ctx, collection, fields)
	})
	return id, classify(err)
}

func (b *Breaker) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := b.cb.Execute(func() (string, error) {
		return "", b.Store.Update(ctx, collection, id, fields)
	})
	return classify(err)
}

func (b *Breaker) Delete(ctx context.Context, collection, id string) error {
	_, err := b.cb.Execute(func() (string, error) {
		return "", b.Store.Delete(ctx, collection, id)
	})
	return classify(err)
}

// State reports the breaker state, e.g. for health output.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func isCallerError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidFields) ||
		errors.Is(err, context.Canceled)
}

func classify(err error) error {
	if err == nil || isCallerError(err) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
