// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
breaker.go - Per-Server Circuit Breaker

Wraps a TautulliClient with a circuit breaker (sony/gobreaker) so a
server that is down or misbehaving fails fast instead of tying up sync
workers in timeouts.

Configuration:
  - Opens after >= 10 requests with >= 60% failures in the interval
  - Open for 2 minutes, then half-open allowing 3 trial requests
  - State transitions are logged and exported as metrics

Both the raw client and the wrapper satisfy ClientAPI; the engine only
ever sees the interface, which is what the tests fake.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/multiplexstats/multiplex/internal/logging"
	"github.com/multiplexstats/multiplex/internal/metrics"
	"github.com/multiplexstats/multiplex/internal/models/tautulli"
)

// ClientAPI is the Tautulli surface the sync engine consumes.
type ClientAPI interface {
	Name() string
	Ping(ctx context.Context) error

	GetHistory(ctx context.Context, after time.Time, start, length int) (*tautulli.TautulliHistory, error)

	GetLibraries(ctx context.Context) (*tautulli.TautulliLibraries, error)
	GetLibraryMediaInfo(ctx context.Context, sectionID, start, length int) (*tautulli.TautulliLibraryMediaInfo, error)
	GetItemWatchTimeStats(ctx context.Context, ratingKey string) (*tautulli.TautulliItemWatchTimeStats, error)
	GetItemUserStats(ctx context.Context, ratingKey string) (*tautulli.TautulliItemUserStats, error)

	ExportMetadata(ctx context.Context, sectionID int) (*tautulli.TautulliExportMetadata, error)
	GetExportsTable(ctx context.Context) (*tautulli.TautulliExportsTable, error)
	DownloadExport(ctx context.Context, exportID int64) ([]byte, error)
}

// CircuitBreakerClient wraps a TautulliClient with circuit breaker
// protection.
type CircuitBreakerClient struct {
	client *TautulliClient
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewCircuitBreakerClient creates the protected client for one server.
func NewCircuitBreakerClient(client *TautulliClient) *CircuitBreakerClient {
	name := client.Name()

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("tautulli-%s", name),
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		OnStateChange: func(cbName string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", cbName).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			if to == gobreaker.StateOpen {
				metrics.CircuitBreakerTrips.WithLabelValues(name).Inc()
			}
		},
	}

	return &CircuitBreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker[interface{}](settings),
		name:   name,
	}
}

// Name returns the configured server name.
func (c *CircuitBreakerClient) Name() string {
	return c.name
}

// execute runs fn through the circuit breaker, translating breaker
// rejections into descriptive errors.
func (c *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := c.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("circuit breaker open for %s: server unavailable", c.name)
		}
		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("circuit breaker throttling %s: too many trial requests", c.name)
		}
		return nil, err
	}
	return result, nil
}

// castResult converts the breaker's interface{} result back to the
// expected pointer type.
func castResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", result)
	}
	return typed, nil
}

func (c *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := c.execute(func() (interface{}, error) {
		return nil, c.client.Ping(ctx)
	})
	return err
}

func (c *CircuitBreakerClient) GetHistory(ctx context.Context, after time.Time, start, length int) (*tautulli.TautulliHistory, error) {
	return castResult[tautulli.TautulliHistory](c.execute(func() (interface{}, error) {
		return c.client.GetHistory(ctx, after, start, length)
	}))
}

func (c *CircuitBreakerClient) GetLibraries(ctx context.Context) (*tautulli.TautulliLibraries, error) {
	return castResult[tautulli.TautulliLibraries](c.execute(func() (interface{}, error) {
		return c.client.GetLibraries(ctx)
	}))
}

func (c *CircuitBreakerClient) GetLibraryMediaInfo(ctx context.Context, sectionID, start, length int) (*tautulli.TautulliLibraryMediaInfo, error) {
	return castResult[tautulli.TautulliLibraryMediaInfo](c.execute(func() (interface{}, error) {
		return c.client.GetLibraryMediaInfo(ctx, sectionID, start, length)
	}))
}

func (c *CircuitBreakerClient) GetItemWatchTimeStats(ctx context.Context, ratingKey string) (*tautulli.TautulliItemWatchTimeStats, error) {
	return castResult[tautulli.TautulliItemWatchTimeStats](c.execute(func() (interface{}, error) {
		return c.client.GetItemWatchTimeStats(ctx, ratingKey)
	}))
}

func (c *CircuitBreakerClient) GetItemUserStats(ctx context.Context, ratingKey string) (*tautulli.TautulliItemUserStats, error) {
	return castResult[tautulli.TautulliItemUserStats](c.execute(func() (interface{}, error) {
		return c.client.GetItemUserStats(ctx, ratingKey)
	}))
}

func (c *CircuitBreakerClient) ExportMetadata(ctx context.Context, sectionID int) (*tautulli.TautulliExportMetadata, error) {
	return castResult[tautulli.TautulliExportMetadata](c.execute(func() (interface{}, error) {
		return c.client.ExportMetadata(ctx, sectionID)
	}))
}

func (c *CircuitBreakerClient) GetExportsTable(ctx context.Context) (*tautulli.TautulliExportsTable, error) {
	return castResult[tautulli.TautulliExportsTable](c.execute(func() (interface{}, error) {
		return c.client.GetExportsTable(ctx)
	}))
}

func (c *CircuitBreakerClient) DownloadExport(ctx context.Context, exportID int64) ([]byte, error) {
	result, err := c.execute(func() (interface{}, error) {
		return c.client.DownloadExport(ctx, exportID)
	})
	if err != nil {
		return nil, err
	}
	data, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", result)
	}
	return data, nil
}

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
