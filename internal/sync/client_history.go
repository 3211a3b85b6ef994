// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
client_history.go - Tautulli Playback History Methods

NOTE: This file uses encoding/json instead of go-json because go-json
issue #340 causes "expected comma after object element" parsing errors
with large Tautulli history responses (500+ records).
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/multiplexstats/multiplex/internal/metrics"
	"github.com/multiplexstats/multiplex/internal/models/tautulli"
)

// GetHistory retrieves one page of playback history, newest first. A
// zero after means no date filter; otherwise Tautulli filters to
// sessions on or after that date ("YYYY-MM-DD", date precision only).
func (c *TautulliClient) GetHistory(ctx context.Context, after time.Time, start, length int) (*tautulli.TautulliHistory, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", "get_history")
	params.Set("start", fmt.Sprintf("%d", start))
	params.Set("length", fmt.Sprintf("%d", length))
	params.Set("order_column", "started")
	params.Set("order_dir", "desc")
	// Disable session grouping to get individual playback records.
	// Without this, Tautulli groups consecutive plays of the same
	// content by the same user.
	params.Set("grouping", "0")
	if !after.IsZero() {
		params.Set("after", after.Format("2006-01-02"))
	}

	const cmd = "get_history"
	reqURL := fmt.Sprintf("%s/api/v2?%s", c.baseURL, params.Encode())

	started := time.Now()
	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	metrics.APIRequestDuration.WithLabelValues(c.name, cmd).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.APIRequestErrors.WithLabelValues(c.name, cmd).Inc()
		return nil, fmt.Errorf("failed to make history request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.APIRequestErrors.WithLabelValues(c.name, cmd).Inc()
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("history request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var history tautulli.TautulliHistory
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		metrics.APIRequestErrors.WithLabelValues(c.name, cmd).Inc()
		return nil, fmt.Errorf("failed to decode history response: %w", err)
	}
	if err := validateTautulliResponse(cmd, &history); err != nil {
		metrics.APIRequestErrors.WithLabelValues(c.name, cmd).Inc()
		return nil, err
	}
	return &history, nil
}
