// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/multiplexstats/multiplex/internal/models"
	"github.com/multiplexstats/multiplex/internal/models/tautulli"
)

type fakeEngine struct {
	startOK bool

	historyKind models.SyncKind
	historyDays int

	statusSnap models.StatusSnapshot
	statusOK   bool
	statusErr  error

	userStats    []tautulli.TautulliItemUserStatRow
	userStatsErr error
	statsSlot    string
	statsKey     string

	pingErr error
}

func (f *fakeEngine) StartHistorySync(_ context.Context, kind models.SyncKind, days int) bool {
	f.historyKind = kind
	f.historyDays = days
	return f.startOK
}

func (f *fakeEngine) StartMediaSync(context.Context) bool    { return f.startOK }
func (f *fakeEngine) StartLifetimeSync(context.Context) bool { return f.startOK }

func (f *fakeEngine) StatusFor(_ context.Context, domain string) (models.StatusSnapshot, bool, error) {
	return f.statusSnap, f.statusOK, f.statusErr
}

func (f *fakeEngine) ItemUserStats(_ context.Context, slot, ratingKey string) ([]tautulli.TautulliItemUserStatRow, error) {
	f.statsSlot = slot
	f.statsKey = ratingKey
	return f.userStats, f.userStatsErr
}

func (f *fakeEngine) Ping(context.Context) error { return f.pingErr }

type fakeStore struct {
	historyFilter models.HistoryFilter
	history       []*models.HistoryRecord
	historyErr    error

	mediaFilter models.MediaFilter
	media       []*models.CachedMediaItem

	lifetimeType string
	lifetime     []*models.LifetimePlayCount

	countErr error
}

func (f *fakeStore) QueryHistory(_ context.Context, filter models.HistoryFilter) ([]*models.HistoryRecord, error) {
	f.historyFilter = filter
	return f.history, f.historyErr
}

func (f *fakeStore) QueryCachedMedia(_ context.Context, filter models.MediaFilter) ([]*models.CachedMediaItem, error) {
	f.mediaFilter = filter
	return f.media, nil
}

func (f *fakeStore) QueryLifetimeCounts(_ context.Context, mediaType string) ([]*models.LifetimePlayCount, error) {
	f.lifetimeType = mediaType
	return f.lifetime, nil
}

func (f *fakeStore) CountHistoryRows(context.Context) (int64, error) {
	return 0, f.countErr
}

func newTestServer(engine *fakeEngine, store *fakeStore) *httptest.Server {
	router := NewRouter(NewHandler(engine, store))
	return httptest.NewServer(router.Setup())
}

func decodeEnvelope(t *testing.T, resp *http.Response) models.APIResponse {
	t.Helper()
	defer resp.Body.Close()
	var envelope models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope
}

func TestTriggerHistorySyncDefaultsToIncremental(t *testing.T) {
	engine := &fakeEngine{startOK: true}
	srv := newTestServer(engine, &fakeStore{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/sync/history", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	envelope := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if envelope.Status != "success" {
		t.Errorf("envelope status = %q", envelope.Status)
	}
	if engine.historyKind != models.SyncKindIncremental {
		t.Errorf("kind = %q, want incremental", engine.historyKind)
	}
}

func TestTriggerHistorySyncBackfill(t *testing.T) {
	engine := &fakeEngine{startOK: true}
	srv := newTestServer(engine, &fakeStore{})
	defer srv.Close()

	body := strings.NewReader(`{"kind":"backfill","days":90}`)
	resp, err := http.Post(srv.URL+"/api/v1/sync/history", "application/json", body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if engine.historyKind != models.SyncKindBackfill || engine.historyDays != 90 {
		t.Errorf("got kind=%q days=%d", engine.historyKind, engine.historyDays)
	}
}

func TestTriggerHistorySyncBackfillRequiresDays(t *testing.T) {
	engine := &fakeEngine{startOK: true}
	srv := newTestServer(engine, &fakeStore{})
	defer srv.Close()

	body := strings.NewReader(`{"kind":"backfill"}`)
	resp, err := http.Post(srv.URL+"/api/v1/sync/history", "application/json", body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	envelope := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v, want VALIDATION_ERROR", envelope.Error)
	}
}

func TestTriggerHistorySyncRejectsUnknownKind(t *testing.T) {
	srv := newTestServer(&fakeEngine{startOK: true}, &fakeStore{})
	defer srv.Close()

	body := strings.NewReader(`{"kind":"sideways"}`)
	resp, err := http.Post(srv.URL+"/api/v1/sync/history", "application/json", body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTriggerSyncConflict(t *testing.T) {
	srv := newTestServer(&fakeEngine{startOK: false}, &fakeStore{})
	defer srv.Close()

	for _, path := range []string{"/api/v1/sync/history", "/api/v1/sync/media", "/api/v1/sync/lifetime"} {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("post %s: %v", path, err)
		}
		envelope := decodeEnvelope(t, resp)

		if resp.StatusCode != http.StatusConflict {
			t.Errorf("%s: status = %d, want 409", path, resp.StatusCode)
		}
		if envelope.Error == nil || envelope.Error.Code != "SYNC_ALREADY_RUNNING" {
			t.Errorf("%s: error = %+v", path, envelope.Error)
		}
	}
}

func TestSyncStatus(t *testing.T) {
	engine := &fakeEngine{statusOK: true}
	engine.statusSnap.Domain = "history"
	engine.statusSnap.State = models.SyncStateSuccess
	srv := newTestServer(engine, &fakeStore{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/sync/history/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	envelope := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	data, ok := envelope.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data type = %T", envelope.Data)
	}
	if data["state"] != "success" {
		t.Errorf("state = %v, want success", data["state"])
	}
}

func TestSyncStatusUnknownDomain(t *testing.T) {
	srv := newTestServer(&fakeEngine{statusOK: false}, &fakeStore{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/sync/weather/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	envelope := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v", envelope.Error)
	}
}

func TestHistoryDefaults(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(&fakeEngine{}, store)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/history")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if store.historyFilter.Limit != 100 {
		t.Errorf("limit = %d, want 100", store.historyFilter.Limit)
	}
	if store.historyFilter.SortBy != "started" || !store.historyFilter.SortDesc {
		t.Errorf("sort = %q desc=%v, want started desc", store.historyFilter.SortBy, store.historyFilter.SortDesc)
	}
}

func TestHistoryFilterParams(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(&fakeEngine{}, store)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/history?user=alice&media_type=episode&sort=title&order=asc&limit=25&after=1700000000")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	f := store.historyFilter
	if f.Username != "alice" || f.MediaType != "episode" || f.SortBy != "title" || f.SortDesc || f.Limit != 25 || f.After != 1700000000 {
		t.Errorf("filter = %+v", f)
	}
}

func TestHistoryRejectsExcessiveLimit(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeStore{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/history?limit=5000")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	envelope := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v", envelope.Error)
	}
}

func TestHistoryDatabaseError(t *testing.T) {
	store := &fakeStore{historyErr: errors.New("disk gone")}
	srv := newTestServer(&fakeEngine{}, store)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/history")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	envelope := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != "DATABASE_ERROR" {
		t.Errorf("error = %+v", envelope.Error)
	}
}

func TestMoviesAndShowsSelectMediaType(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(&fakeEngine{}, store)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/media/movies")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if store.mediaFilter.MediaType != "movie" {
		t.Errorf("media type = %q, want movie", store.mediaFilter.MediaType)
	}

	resp, err = http.Get(srv.URL + "/api/v1/media/shows?sort=play_count&order=desc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if store.mediaFilter.MediaType != "show" {
		t.Errorf("media type = %q, want show", store.mediaFilter.MediaType)
	}
	if store.mediaFilter.SortBy != "play_count" || !store.mediaFilter.SortDesc {
		t.Errorf("sort = %+v", store.mediaFilter)
	}
}

func TestItemUserStats(t *testing.T) {
	engine := &fakeEngine{
		userStats: []tautulli.TautulliItemUserStatRow{
			{Username: "alice", TotalPlays: 7},
		},
	}
	srv := newTestServer(engine, &fakeStore{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/media/a/items/12345/users")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	envelope := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if engine.statsSlot != "a" || engine.statsKey != "12345" {
		t.Errorf("got slot=%q key=%q", engine.statsSlot, engine.statsKey)
	}
	if envelope.Metadata.Count != 1 {
		t.Errorf("count = %d, want 1", envelope.Metadata.Count)
	}
}

func TestItemUserStatsValidatesSlot(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeStore{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/media/c/items/12345/users")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestItemUserStatsUpstreamError(t *testing.T) {
	engine := &fakeEngine{userStatsErr: errors.New("server unreachable")}
	srv := newTestServer(engine, &fakeStore{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/media/b/items/99/users")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	envelope := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != "UPSTREAM_ERROR" {
		t.Errorf("error = %+v", envelope.Error)
	}
}

func TestLifetimeMediaTypeFilter(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(&fakeEngine{}, store)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/lifetime?media_type=show")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if store.lifetimeType != "show" {
		t.Errorf("media type = %q, want show", store.lifetimeType)
	}
}

func TestLifetimeRejectsUnknownMediaType(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeStore{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/lifetime?media_type=song")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthDegradedOnPingFailure(t *testing.T) {
	engine := &fakeEngine{pingErr: errors.New("connection refused")}
	srv := newTestServer(engine, &fakeStore{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	envelope := decodeEnvelope(t, resp)

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	data, ok := envelope.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data type = %T", envelope.Data)
	}
	if data["status"] != "degraded" {
		t.Errorf("health status = %v, want degraded", data["status"])
	}
}

func TestHealthLive(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeStore{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeStore{})
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Request-ID", "upstream-id-7")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "upstream-id-7" {
		t.Errorf("X-Request-ID = %q, want upstream-id-7", got)
	}
}

func TestRequestIDGenerated(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeStore{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}
