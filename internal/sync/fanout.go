// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
fanout.go - Two-Server Fan-Out Coordinator

Runs one worker goroutine per configured server (at most two) and joins
them all before applying the domain's failure policy:

  - anyFailureFatal (history): a failure on either server fails the
    whole run. History rows are facts; a half-synced run would leave a
    silently incomplete table.
  - primaryFailureFatal (media, lifetime): only a primary (order 1)
    failure is fatal. A secondary failure with a primary success
    degrades to a "Partial warnings: " message on a successful run,
    because these domains rebuild derived aggregates and primary-only
    data is still useful.

Workers recover their own panics into their result slot; nothing
escapes a worker goroutine.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"

	"github.com/multiplexstats/multiplex/internal/config"
	"github.com/multiplexstats/multiplex/internal/logging"
)

type failurePolicy int

const (
	anyFailureFatal failurePolicy = iota
	primaryFailureFatal
)

// partialWarningPrefix prefixes the consolidated secondary-failure
// message recorded on a successful run.
const partialWarningPrefix = "Partial warnings: "

type serverResult struct {
	server config.ServerEntry
	err    error
}

// runServers runs work once per server in parallel and joins all
// workers. Results are returned in server order, primary first.
func runServers(ctx context.Context, servers []config.ServerEntry, work func(ctx context.Context, server config.ServerEntry) error) []serverResult {
	results := make([]serverResult, len(servers))

	var wg gosync.WaitGroup
	for i, server := range servers {
		wg.Add(1)
		go func(i int, server config.ServerEntry) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logging.Error().
						Str("server", server.Name).
						Interface("panic", r).
						Msg("Sync worker panicked")
					results[i] = serverResult{server: server, err: fmt.Errorf("worker panic: %v", r)}
				}
			}()
			results[i] = serverResult{server: server, err: work(ctx, server)}
		}(i, server)
	}
	wg.Wait()

	return results
}

// applyPolicy reduces per-server results to a run outcome: a fatal
// error, or a warning string for non-fatal secondary failures.
func applyPolicy(results []serverResult, policy failurePolicy) (warning string, err error) {
	var fatal, nonFatal []string
	for _, res := range results {
		if res.err == nil {
			continue
		}
		msg := res.err.Error()
		switch policy {
		case anyFailureFatal:
			fatal = append(fatal, msg)
		case primaryFailureFatal:
			if res.server.Order == 1 {
				fatal = append(fatal, msg)
			} else {
				nonFatal = append(nonFatal, msg)
			}
		}
	}

	if len(fatal) > 0 {
		// A fatal failure reports everything that went wrong, the
		// non-fatal messages included.
		return "", fmt.Errorf("%s", strings.Join(append(fatal, nonFatal...), " | "))
	}
	if len(nonFatal) > 0 {
		return partialWarningPrefix + strings.Join(nonFatal, " | "), nil
	}
	return "", nil
}
