// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/multiplexstats/multiplex/internal/config"
	"github.com/multiplexstats/multiplex/internal/database"
	"github.com/multiplexstats/multiplex/internal/models"
	"github.com/multiplexstats/multiplex/internal/models/tautulli"
)

// fakeStore is an in-memory Store for engine tests.
type fakeStore struct {
	mu gosync.Mutex

	history  []*models.HistoryRecord
	byRowID  map[int64]bool
	media    []*models.CachedMediaItem
	lifetime []*models.LifetimePlayCount

	insertErr error
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{byRowID: make(map[int64]bool)}
}

func (s *fakeStore) InsertHistoryBatch(_ context.Context, recs []*models.HistoryRecord) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return 0, 0, s.insertErr
	}
	inserted, duplicates := 0, 0
	for _, rec := range recs {
		if s.byRowID[rec.RowID] {
			duplicates++
			continue
		}
		s.byRowID[rec.RowID] = true
		s.history = append(s.history, rec)
		inserted++
	}
	return inserted, duplicates, nil
}

func (s *fakeStore) CountHistoryRows(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.history)), nil
}

func (s *fakeStore) LatestStarted(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest int64
	for _, rec := range s.history {
		if rec.Started > latest {
			latest = rec.Started
		}
	}
	if latest == 0 {
		return 0, database.ErrNoHistory
	}
	return latest, nil
}

func (s *fakeStore) DeleteAllHistory(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.history = nil
	s.byRowID = make(map[int64]bool)
	return nil
}

func (s *fakeStore) HistoryChunk(_ context.Context, serverName string, offset, limit int) ([]*models.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var forServer []*models.HistoryRecord
	for _, rec := range s.history {
		if rec.ServerName == serverName {
			forServer = append(forServer, rec)
		}
	}
	if offset >= len(forServer) {
		return nil, nil
	}
	end := offset + limit
	if end > len(forServer) {
		end = len(forServer)
	}
	return forServer[offset:end], nil
}

func (s *fakeStore) CountHistoryForServer(_ context.Context, serverName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, rec := range s.history {
		if rec.ServerName == serverName {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) CountPlaysForRatingKeys(_ context.Context, serverName string, keys []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}
	var n int64
	for _, rec := range s.history {
		if rec.ServerName != serverName {
			continue
		}
		if keySet[rec.RatingKey] || keySet[rec.GrandparentRatingKey] {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ReplaceCachedMedia(_ context.Context, items []*models.CachedMediaItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media = items
	return nil
}

func (s *fakeStore) CountCachedMedia(_ context.Context, mediaType string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mediaType == "" {
		return int64(len(s.media)), nil
	}
	var n int64
	for _, item := range s.media {
		if item.MediaType == mediaType {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ReplaceLifetimeCounts(_ context.Context, counts []*models.LifetimePlayCount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lifetime = counts
	return nil
}

func (s *fakeStore) CountLifetimeRows(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.lifetime)), nil
}

func (s *fakeStore) storedMedia() []*models.CachedMediaItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media
}

func (s *fakeStore) storedLifetime() []*models.LifetimePlayCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lifetime
}

// fakeClient implements ClientAPI with replaceable function fields.
// Unset methods fail loudly so a test cannot silently exercise an
// endpoint it did not stub.
type fakeClient struct {
	name string

	historyFn      func(ctx context.Context, after time.Time, start, length int) (*tautulli.TautulliHistory, error)
	librariesFn    func(ctx context.Context) (*tautulli.TautulliLibraries, error)
	mediaInfoFn    func(ctx context.Context, sectionID, start, length int) (*tautulli.TautulliLibraryMediaInfo, error)
	watchTimeFn    func(ctx context.Context, ratingKey string) (*tautulli.TautulliItemWatchTimeStats, error)
	userStatsFn    func(ctx context.Context, ratingKey string) (*tautulli.TautulliItemUserStats, error)
	exportFn       func(ctx context.Context, sectionID int) (*tautulli.TautulliExportMetadata, error)
	exportsTableFn func(ctx context.Context) (*tautulli.TautulliExportsTable, error)
	downloadFn     func(ctx context.Context, exportID int64) ([]byte, error)
}

func (c *fakeClient) Name() string { return c.name }

func (c *fakeClient) Ping(context.Context) error { return nil }

func (c *fakeClient) GetHistory(ctx context.Context, after time.Time, start, length int) (*tautulli.TautulliHistory, error) {
	if c.historyFn == nil {
		return nil, fmt.Errorf("GetHistory not stubbed for %s", c.name)
	}
	return c.historyFn(ctx, after, start, length)
}

func (c *fakeClient) GetLibraries(ctx context.Context) (*tautulli.TautulliLibraries, error) {
	if c.librariesFn == nil {
		return nil, fmt.Errorf("GetLibraries not stubbed for %s", c.name)
	}
	return c.librariesFn(ctx)
}

func (c *fakeClient) GetLibraryMediaInfo(ctx context.Context, sectionID, start, length int) (*tautulli.TautulliLibraryMediaInfo, error) {
	if c.mediaInfoFn == nil {
		return nil, fmt.Errorf("GetLibraryMediaInfo not stubbed for %s", c.name)
	}
	return c.mediaInfoFn(ctx, sectionID, start, length)
}

func (c *fakeClient) GetItemWatchTimeStats(ctx context.Context, ratingKey string) (*tautulli.TautulliItemWatchTimeStats, error) {
	if c.watchTimeFn == nil {
		return nil, fmt.Errorf("GetItemWatchTimeStats not stubbed for %s", c.name)
	}
	return c.watchTimeFn(ctx, ratingKey)
}

func (c *fakeClient) GetItemUserStats(ctx context.Context, ratingKey string) (*tautulli.TautulliItemUserStats, error) {
	if c.userStatsFn == nil {
		return nil, fmt.Errorf("GetItemUserStats not stubbed for %s", c.name)
	}
	return c.userStatsFn(ctx, ratingKey)
}

func (c *fakeClient) ExportMetadata(ctx context.Context, sectionID int) (*tautulli.TautulliExportMetadata, error) {
	if c.exportFn == nil {
		return nil, fmt.Errorf("ExportMetadata not stubbed for %s", c.name)
	}
	return c.exportFn(ctx, sectionID)
}

func (c *fakeClient) GetExportsTable(ctx context.Context) (*tautulli.TautulliExportsTable, error) {
	if c.exportsTableFn == nil {
		return nil, fmt.Errorf("GetExportsTable not stubbed for %s", c.name)
	}
	return c.exportsTableFn(ctx)
}

func (c *fakeClient) DownloadExport(ctx context.Context, exportID int64) ([]byte, error) {
	if c.downloadFn == nil {
		return nil, fmt.Errorf("DownloadExport not stubbed for %s", c.name)
	}
	return c.downloadFn(ctx, exportID)
}

// testConfig returns a validated-shape config tuned for fast tests.
func testConfig() *config.Config {
	return &config.Config{
		Sync: config.SyncConfig{
			PageSize:           2,
			BatchSize:          100,
			Timezone:           "UTC",
			ExportPollInterval: 5 * time.Millisecond,
			ExportTimeout:      time.Second,
			ScanChunkSize:      2000,
			DailyRefreshHour:   1,
		},
	}
}

// testEngine wires an engine with fake clients. Entries are built in
// order: the first client is the primary.
func testEngine(t *testing.T, store Store, clients ...*fakeClient) *Engine {
	t.Helper()
	servers := make([]server, 0, len(clients))
	for i, c := range clients {
		servers = append(servers, server{
			entry: config.ServerEntry{
				Order:  i + 1,
				Name:   c.name,
				URL:    fmt.Sprintf("http://tautulli-%d.local", i+1),
				APIKey: "test-key",
			},
			client: c,
		})
	}
	return newEngine(testConfig(), time.UTC, store, nil, servers)
}

// waitForTerminal polls a ledger until the run leaves the running
// state.
func waitForTerminal(t *testing.T, l *Ledger) models.SyncStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := l.Snapshot()
		if snap.State == models.SyncStateSuccess || snap.State == models.SyncStateFailed {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("sync did not reach a terminal state")
	return models.SyncStatus{}
}
