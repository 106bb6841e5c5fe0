// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package frigate

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
)

// Ensure BreakerClient implements ClientInterface
var _ ClientInterface = (*BreakerClient)(nil)

// BreakerClient wraps Client with a circuit breaker so a dead or flapping
// Frigate fails fast instead of tying every caller up in connect timeouts.
//
// The breaker uses real time for its interval and timeout calculations;
// tests exercising timing should target the wrapped client directly.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewBreakerClient creates a Frigate client with circuit breaker protection.
// Breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func NewBreakerClient(cfg *config.FrigateConfig) *BreakerClient {
	return newBreakerClient(NewClient(cfg))
}

// NewBreakerClientWith wraps an existing client, sharing its session.
func NewBreakerClientWith(client *Client) *BreakerClient {
	return newBreakerClient(client)
}

func newBreakerClient(client *Client) *BreakerClient {
	cbName := "frigate-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		// Opens when failure rate >= 60% with minimum 10 requests.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening frigate circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] Frigate state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &BreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// execute wraps a Frigate API call with circuit breaker protection.
func (bc *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := bc.cb.Execute(func() (interface{}, error) {
		return fn()
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Frigate request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "failure").Inc()
			counts := bc.cb.Counts()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(bc.name).Set(float64(counts.ConsecutiveFailures))
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(bc.name).Set(0)

	return result, nil
}

// castResult safely type-casts the circuit breaker result.
func castResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// stateToFloat converts circuit breaker state to a numeric value for metrics.
func stateToFloat(state gobreaker.State) float64 {
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

// stateToString converts circuit breaker state to a string for logging.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Stats retrieves statistics with circuit breaker protection.
func (bc *BreakerClient) Stats(ctx context.Context) (*Stats, error) {
	return castResult[Stats](bc.execute(func() (interface{}, error) {
		return bc.client.Stats(ctx)
	}))
}

// Version retrieves the Frigate version with circuit breaker protection.
func (bc *BreakerClient) Version(ctx context.Context) (string, error) {
	result, err := bc.execute(func() (interface{}, error) {
		return bc.client.Version(ctx)
	})
	if err != nil {
		return "", err
	}
	version, ok := result.(string)
	if !ok {
		return "", errors.New("circuit breaker: unexpected result type for Version")
	}
	return version, nil
}

// Events retrieves detection events with circuit breaker protection.
func (bc *BreakerClient) Events(ctx context.Context, q EventsQuery) ([]Event, error) {
	result, err := bc.execute(func() (interface{}, error) {
		return bc.client.Events(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	events, ok := result.([]Event)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for Events")
	}
	return events, nil
}

// Event retrieves a single event with circuit breaker protection.
func (bc *BreakerClient) Event(ctx context.Context, id string) (*Event, error) {
	return castResult[Event](bc.execute(func() (interface{}, error) {
		return bc.client.Event(ctx, id)
	}))
}

// SetSubLabel assigns a sub label with circuit breaker protection.
func (bc *BreakerClient) SetSubLabel(ctx context.Context, eventID, subLabel string) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.client.SetSubLabel(ctx, eventID, subLabel)
	})
	return err
}

// FetchSnapshot downloads an event snapshot with circuit breaker protection.
func (bc *BreakerClient) FetchSnapshot(ctx context.Context, eventID string) ([]byte, error) {
	result, err := bc.execute(func() (interface{}, error) {
		return bc.client.FetchSnapshot(ctx, eventID)
	})
	if err != nil {
		return nil, err
	}
	data, ok := result.([]byte)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for FetchSnapshot")
	}
	return data, nil
}

// SnapshotURL is a passthrough; it makes no network call.
func (bc *BreakerClient) SnapshotURL(eventID string) string {
	return bc.client.SnapshotURL(eventID)
}

// LatestImageURL is a passthrough; it makes no network call.
func (bc *BreakerClient) LatestImageURL(camera string) string {
	return bc.client.LatestImageURL(camera)
}

// Status is a passthrough; the credential snapshot is local state.
func (bc *BreakerClient) Status() AuthStatus {
	return bc.client.Status()
}

// ResetSession is a passthrough; clearing the credential is local state.
func (bc *BreakerClient) ResetSession() {
	bc.client.ResetSession()
}

// State returns the current circuit breaker state.
func (bc *BreakerClient) State() gobreaker.State {
	return bc.cb.State()
}

// Counts returns the current circuit breaker counts.
func (bc *BreakerClient) Counts() gobreaker.Counts {
	return bc.cb.Counts()
}

// Name returns the circuit breaker name.
func (bc *BreakerClient) Name() string {
	return bc.name
}
