// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
errors.go - Sync Engine Error Taxonomy

Errors are tagged by type so callers and the fan-out coordinator can
classify failures with errors.Is/errors.As instead of matching message
strings:

  - Sentinel errors for configuration-class failures (ErrNoServers,
    ErrAlreadyRunning, ErrNoLocalData)
  - RemoteError for anything a Tautulli server did wrong: unreachable,
    non-success response envelope, malformed payload
  - ExportError for the metadata export job lifecycle (timeout,
    terminal server-side failure, download/decode failure)
*/
package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrNoServers is returned when a sync is requested with no
	// enabled Tautulli servers.
	ErrNoServers = errors.New("no Tautulli servers configured")

	// ErrAlreadyRunning is returned when a sync is requested for a
	// domain whose previous run has not reached a terminal state.
	ErrAlreadyRunning = errors.New("sync already running")

	// ErrNoLocalData is returned by an incremental history sync when
	// the local viewing_history table is empty. Incremental runs fail
	// closed; a backfill or full sync must seed the table first.
	ErrNoLocalData = errors.New("no local history to sync incrementally from")
)

// RemoteError wraps a failure attributable to one Tautulli server.
type RemoteError struct {
	Server string // configured server name
	Op     string // Tautulli API command
	Err    error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Server, e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func remoteErr(server, op string, err error) *RemoteError {
	return &RemoteError{Server: server, Op: op, Err: err}
}

// ExportErrorReason classifies metadata export job failures.
type ExportErrorReason string

const (
	// ExportTimeout means the job missed the hard deadline.
	ExportTimeout ExportErrorReason = "timeout"

	// ExportTerminalFailure means Tautulli reported a negative
	// completion status. Never retried.
	ExportTerminalFailure ExportErrorReason = "terminal_failure"

	// ExportFailed covers start, download and decode failures.
	ExportFailed ExportErrorReason = "failed"
)

// ExportError wraps a metadata export job failure.
type ExportError struct {
	Server   string
	ExportID int64
	Reason   ExportErrorReason
	Err      error
}

func (e *ExportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s export %d %s: %v", e.Server, e.ExportID, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s export %d %s", e.Server, e.ExportID, e.Reason)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
