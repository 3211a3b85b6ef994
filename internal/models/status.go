// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package models

import "time"

// SyncState is the lifecycle state of a sync domain.
// Transitions: idle -> running -> {success, failed}; a terminal state is a
// valid resting state from which a new run moves back to running. There is
// no cancelled state.
type SyncState string

const (
	SyncStateIdle    SyncState = "idle"
	SyncStateRunning SyncState = "running"
	SyncStateSuccess SyncState = "success"
	SyncStateFailed  SyncState = "failed"
)

// SyncKind selects the history sync variant. Media and lifetime runs are
// always full replacements and use SyncKindFull.
type SyncKind string

const (
	SyncKindIncremental SyncKind = "incremental"
	SyncKindBackfill    SyncKind = "backfill"
	SyncKindFull        SyncKind = "full"
)

// ServerState is the per-server worker state within one run.
type ServerState string

const (
	ServerStatePending ServerState = "pending"
	ServerStateRunning ServerState = "running"
	ServerStateSuccess ServerState = "success"
	ServerStateFailed  ServerState = "failed"
)

// ServerProgress is one server's progress within the current run, keyed by
// slot ("a" for the primary, "b" for the secondary). Reset at the start of
// every run.
type ServerProgress struct {
	Slot    string      `json:"slot"`
	Name    string      `json:"name"`
	Status  ServerState `json:"status"`
	Step    string      `json:"step"` // free-text phase label
	Fetched int64       `json:"fetched"`
	Total   *int64      `json:"total"` // nil until the server reports it
	Error   string      `json:"error,omitempty"`
}

// SyncStatus is the singleton mutable status record for one sync domain.
// It is created lazily on first access and only ever overwritten in place.
type SyncStatus struct {
	Domain        string     `json:"domain"` // history, media, lifetime
	State         SyncState  `json:"state"`
	Kind          SyncKind   `json:"kind,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CurrentServer string     `json:"current_server,omitempty"`

	RecordsFetched  int64 `json:"records_fetched"`
	RecordsInserted int64 `json:"records_inserted"`
	RecordsSkipped  int64 `json:"records_skipped"`
	RecordsTotal    int64 `json:"records_total"` // sum of known server totals

	ErrorMessage string `json:"error_message,omitempty"`

	// Servers lists per-server progress, slot "a" before "b".
	Servers []ServerProgress `json:"servers"`
}

// StatusSnapshot is what getStatus returns: the ledger contents plus the
// persisted row count for the domain's destination table.
type StatusSnapshot struct {
	SyncStatus
	StoredRows int64 `json:"stored_rows"`
}
