// Tracklog - Structured Logging and Request Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tracklog

package applog

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/tracklog/internal/logging"
	"github.com/tomtom215/tracklog/internal/metrics"
)

// BreakerSettings tunes BreakerStore.
type BreakerSettings struct {
	// MinRequests is the sample size before the failure ratio is evaluated.
	MinRequests uint32

	// FailureRatio trips the breaker once reached.
	FailureRatio float64

	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings returns the production breaker tuning.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:  10,
		FailureRatio: 0.6,
		OpenTimeout:  30 * time.Second,
	}
}

// BreakerStore guards inserts with a circuit breaker so an unavailable
// store fails fast instead of tying up writers for the full timeout.
// Reads and deletes pass straight through.
type BreakerStore struct {
	Store
	name string
	cb   *gobreaker.CircuitBreaker[interface{}]
}

// NewBreakerStore wraps store.
func NewBreakerStore(name string, store Store, settings BreakerSettings) *BreakerStore {
	metrics.SetCircuitState(name, 0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("store", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Log store circuit breaker state change")
			metrics.SetCircuitState(name, stateValue(to))
		},
	})

	return &BreakerStore{Store: store, name: name, cb: cb}
}

// Insert implements Store.
func (s *BreakerStore) Insert(ctx context.Context, r *Record) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.Store.Insert(ctx, r)
	})
	return err
}

// State returns the breaker state name.
func (s *BreakerStore) State() string {
	return s.cb.State().String()
}

func stateValue(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
