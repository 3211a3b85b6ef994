// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
client_export.go - Tautulli Metadata Export Methods

Export Methods:
  - ExportMetadata(): Start a JSON metadata export for a section
  - GetExportsTable(): Poll export job status (complete: 1 finished,
    0 processing, negative on failure)
  - DownloadExport(): Retrieve the raw export payload

Exports request thumb/art level 0 (no image data) and a minimal
metadata field list, keeping export files small enough that Tautulli
finishes them in seconds for typical library sizes.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/multiplexstats/multiplex/internal/metrics"
	"github.com/multiplexstats/multiplex/internal/models/tautulli"
)

// exportFieldList is the minimal metadata field set requested from
// export_metadata. Ratings and addedAt are what the media sync needs;
// ratingKey joins the export rows back to library items.
const exportFieldList = "ratingKey,title,year,addedAt,contentRating,audienceRating"

// ExportMetadata starts a JSON metadata export for a library section
// and returns the queued export's id.
func (c *TautulliClient) ExportMetadata(ctx context.Context, sectionID int) (*tautulli.TautulliExportMetadata, error) {
	params := url.Values{}
	params.Set("section_id", fmt.Sprintf("%d", sectionID))
	params.Set("file_format", "json")
	params.Set("thumb_level", "0")
	params.Set("art_level", "0")
	params.Set("custom_fields", exportFieldList)

	var result tautulli.TautulliExportMetadata
	err := c.makeRequest(ctx, "export_metadata", params, &result)
	return &result, err
}

// GetExportsTable retrieves the export job table, newest first.
func (c *TautulliClient) GetExportsTable(ctx context.Context) (*tautulli.TautulliExportsTable, error) {
	params := url.Values{}
	params.Set("order_column", "timestamp")
	params.Set("order_dir", "desc")
	params.Set("length", "50")

	var result tautulli.TautulliExportsTable
	err := c.makeRequest(ctx, "get_exports_table", params, &result)
	return &result, err
}

// DownloadExport retrieves the raw export payload. The body is returned
// as-is: Tautulli deployments have been observed returning a bare JSON
// array, a {"data": [...]} envelope, or a double-encoded JSON string,
// and the caller decodes tolerantly.
func (c *TautulliClient) DownloadExport(ctx context.Context, exportID int64) ([]byte, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", "download_export")
	params.Set("export_id", fmt.Sprintf("%d", exportID))

	const cmd = "download_export"
	reqURL := fmt.Sprintf("%s/api/v2?%s", c.baseURL, params.Encode())

	started := time.Now()
	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	metrics.APIRequestDuration.WithLabelValues(c.name, cmd).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.APIRequestErrors.WithLabelValues(c.name, cmd).Inc()
		return nil, fmt.Errorf("failed to download export %d: %w", exportID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.APIRequestErrors.WithLabelValues(c.name, cmd).Inc()
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("export download failed with status %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.APIRequestErrors.WithLabelValues(c.name, cmd).Inc()
		return nil, fmt.Errorf("failed to read export %d: %w", exportID, err)
	}
	return data, nil
}
