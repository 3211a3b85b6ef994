// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
progress.go - Per-Domain Progress Ledger

One Ledger per sync domain (history, media, lifetime) holds the
domain's singleton status record. Every read-modify-write happens under
the ledger's mutex; mutators operate on the freshest state, never on a
caller-held copy, and Snapshot() always returns a copy.

Start() is the single-flight gate: it transitions idle or a terminal
state to running and returns false when a run is already in flight, so
concurrent trigger requests race safely on one lock.

Terminal snapshots persist to Badger so the most recent run outcome
survives restarts. In-flight progress is deliberately not persisted; a
crash mid-run simply resurrects the previous terminal snapshot.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"errors"
	"fmt"
	gosync "sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/multiplexstats/multiplex/internal/config"
	"github.com/multiplexstats/multiplex/internal/logging"
	"github.com/multiplexstats/multiplex/internal/models"
)

// SnapshotStore persists terminal status snapshots across restarts.
type SnapshotStore interface {
	SaveStatus(domain string, status models.SyncStatus) error
	LoadStatus(domain string) (models.SyncStatus, bool, error)
}

// Ledger is the mutable status record for one sync domain.
type Ledger struct {
	mu      gosync.Mutex
	status  models.SyncStatus
	persist SnapshotStore // nil disables persistence
}

// NewLedger creates the ledger for one domain, seeding it from the
// persisted terminal snapshot when one exists.
func NewLedger(domain string, persist SnapshotStore) *Ledger {
	l := &Ledger{
		status:  models.SyncStatus{Domain: domain, State: models.SyncStateIdle},
		persist: persist,
	}
	if persist != nil {
		if saved, ok, err := persist.LoadStatus(domain); err != nil {
			logging.Warn().Err(err).Str("domain", domain).Msg("Failed to load persisted sync status")
		} else if ok {
			// A snapshot can only have been saved in a terminal
			// state, so restoring it never resurrects "running".
			saved.Domain = domain
			l.status = saved
		}
	}
	return l
}

// Start is the single-flight gate. It returns true when the domain
// transitioned to running and counters were reset, false when a run is
// already in flight.
func (l *Ledger) Start(kind models.SyncKind, servers []config.ServerEntry) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.status.State == models.SyncStateRunning {
		return false
	}

	now := time.Now()
	progress := make([]models.ServerProgress, 0, len(servers))
	for _, s := range servers {
		progress = append(progress, models.ServerProgress{
			Slot:   slotForOrder(s.Order),
			Name:   s.Name,
			Status: models.ServerStatePending,
		})
	}

	l.status = models.SyncStatus{
		Domain:    l.status.Domain,
		State:     models.SyncStateRunning,
		Kind:      kind,
		StartedAt: &now,
		Servers:   progress,
	}
	return true
}

// SetServer updates the current-server label.
func (l *Ledger) SetServer(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.CurrentServer = name
}

// SetServerStep marks a server running and records its phase label.
func (l *Ledger) SetServerStep(slot, step string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p := l.serverSlot(slot); p != nil {
		p.Status = models.ServerStateRunning
		p.Step = step
	}
}

// SetServerTotal records a server's reported total and recomputes the
// run total as the sum of all known server totals.
func (l *Ledger) SetServerTotal(slot string, total int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p := l.serverSlot(slot); p != nil {
		t := total
		p.Total = &t
	}
	var sum int64
	for i := range l.status.Servers {
		if l.status.Servers[i].Total != nil {
			sum += *l.status.Servers[i].Total
		}
	}
	l.status.RecordsTotal = sum
}

// SetServerFetched records a server's absolute fetched count and
// recomputes the run's fetched counter from the slots.
func (l *Ledger) SetServerFetched(slot string, fetched int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p := l.serverSlot(slot); p != nil {
		p.Fetched = fetched
	}
	var sum int64
	for i := range l.status.Servers {
		sum += l.status.Servers[i].Fetched
	}
	l.status.RecordsFetched = sum
}

// SetServerDone marks a server's worker finished, recording the result.
func (l *Ledger) SetServerDone(slot string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.serverSlot(slot)
	if p == nil {
		return
	}
	if err != nil {
		p.Status = models.ServerStateFailed
		p.Error = err.Error()
	} else {
		p.Status = models.ServerStateSuccess
	}
}

// AddFetched adds to both the run's fetched counter and the server
// slot's fetched counter.
func (l *Ledger) AddFetched(slot string, n int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.RecordsFetched += n
	if p := l.serverSlot(slot); p != nil {
		p.Fetched += n
	}
}

// AddInserted adds to the run's inserted counter.
func (l *Ledger) AddInserted(n int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.RecordsInserted += n
}

// AddSkipped adds to the run's skipped (duplicate) counter.
func (l *Ledger) AddSkipped(n int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.RecordsSkipped += n
}

// FinishSuccess moves the run to success. A non-empty warning (partial
// secondary failures) is recorded without failing the run.
func (l *Ledger) FinishSuccess(warning string) {
	l.finish(models.SyncStateSuccess, warning)
}

// FinishFailure moves the run to failed with the consolidated error.
func (l *Ledger) FinishFailure(err error) {
	msg := "sync failed"
	if err != nil {
		msg = err.Error()
	}
	l.finish(models.SyncStateFailed, msg)
}

func (l *Ledger) finish(state models.SyncState, message string) {
	l.mu.Lock()
	now := time.Now()
	l.status.State = state
	l.status.CompletedAt = &now
	l.status.CurrentServer = ""
	l.status.ErrorMessage = message
	snapshot := l.copyStatusLocked()
	l.mu.Unlock()

	if l.persist != nil {
		if err := l.persist.SaveStatus(snapshot.Domain, snapshot); err != nil {
			logging.Warn().Err(err).Str("domain", snapshot.Domain).Msg("Failed to persist sync status")
		}
	}
}

// Snapshot returns a copy of the current status. The copy shares no
// mutable state with the ledger.
func (l *Ledger) Snapshot() models.SyncStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.copyStatusLocked()
}

func (l *Ledger) copyStatusLocked() models.SyncStatus {
	out := l.status
	out.Servers = make([]models.ServerProgress, len(l.status.Servers))
	copy(out.Servers, l.status.Servers)
	for i := range out.Servers {
		if l.status.Servers[i].Total != nil {
			t := *l.status.Servers[i].Total
			out.Servers[i].Total = &t
		}
	}
	return out
}

func (l *Ledger) serverSlot(slot string) *models.ServerProgress {
	for i := range l.status.Servers {
		if l.status.Servers[i].Slot == slot {
			return &l.status.Servers[i]
		}
	}
	return nil
}

// BadgerStore persists status snapshots in a Badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the snapshot store at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the underlying Badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func statusKey(domain string) []byte {
	return []byte(fmt.Sprintf("sync:%s:status", domain))
}

// SaveStatus stores one domain's status snapshot as JSON.
func (s *BadgerStore) SaveStatus(domain string, status models.SyncStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal sync status: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(statusKey(domain), data)
	})
}

// LoadStatus retrieves one domain's persisted snapshot. The second
// return value is false when none has been saved yet.
func (s *BadgerStore) LoadStatus(domain string) (models.SyncStatus, bool, error) {
	var status models.SyncStatus
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(statusKey(domain))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &status); err != nil {
				return fmt.Errorf("failed to unmarshal sync status: %w", err)
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return models.SyncStatus{}, false, err
	}
	return status, found, nil
}
