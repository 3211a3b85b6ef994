// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
export_poller.go - Metadata Export Job Poller

Drives one Tautulli metadata export job to completion: start the
export, poll get_exports_table on a fixed interval, download and decode
the payload when the job reports complete.

Lifecycle rules:
  - complete == 1: finished, download
  - complete == 0: still processing, keep polling
  - complete < 0:  terminal server-side failure, never retried
  - hard deadline: the run fails with ExportTimeout

Payload decoding is tolerant of the three shapes Tautulli deployments
have been observed returning: a bare JSON array, a {"data": [...]}
envelope, and a JSON string containing either (double-encoded).
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"bytes"
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/multiplexstats/multiplex/internal/logging"
	"github.com/multiplexstats/multiplex/internal/metrics"
	"github.com/multiplexstats/multiplex/internal/models/tautulli"
)

// exportPoller runs one export job for one server.
type exportPoller struct {
	client   ClientAPI
	server   string
	interval time.Duration
	timeout  time.Duration
}

// Run starts an export for the section and blocks until the payload is
// downloaded and decoded, the job fails terminally, or the deadline
// passes.
func (p *exportPoller) Run(ctx context.Context, sectionID int) ([]tautulli.TautulliExportedItem, error) {
	meta, err := p.client.ExportMetadata(ctx, sectionID)
	if err != nil {
		metrics.ExportJobsTotal.WithLabelValues(p.server, "failed").Inc()
		return nil, &ExportError{Server: p.server, Reason: ExportFailed, Err: err}
	}
	exportID := meta.Response.Data.ExportID

	logging.Debug().
		Str("server", p.server).
		Int("section_id", sectionID).
		Int64("export_id", exportID).
		Msg("Export started")

	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			metrics.ExportJobsTotal.WithLabelValues(p.server, "failed").Inc()
			return nil, &ExportError{Server: p.server, ExportID: exportID, Reason: ExportFailed, Err: ctx.Err()}

		case <-deadline.C:
			metrics.ExportJobsTotal.WithLabelValues(p.server, "timeout").Inc()
			return nil, &ExportError{Server: p.server, ExportID: exportID, Reason: ExportTimeout}

		case <-ticker.C:
			metrics.ExportPollCycles.Inc()
			row, err := p.findExport(ctx, exportID)
			if err != nil {
				// Transient poll failures are retried until the
				// deadline; the table endpoint flaps under load.
				logging.Warn().Err(err).
					Str("server", p.server).
					Int64("export_id", exportID).
					Msg("Export status poll failed")
				continue
			}
			if row == nil {
				continue
			}

			switch {
			case row.Complete < 0:
				metrics.ExportJobsTotal.WithLabelValues(p.server, "terminal_failure").Inc()
				return nil, &ExportError{Server: p.server, ExportID: exportID, Reason: ExportTerminalFailure}

			case row.Complete == 1:
				items, err := p.download(ctx, exportID)
				if err != nil {
					metrics.ExportJobsTotal.WithLabelValues(p.server, "failed").Inc()
					return nil, err
				}
				metrics.ExportJobsTotal.WithLabelValues(p.server, "success").Inc()
				return items, nil
			}
		}
	}
}

func (p *exportPoller) findExport(ctx context.Context, exportID int64) (*tautulli.TautulliExportsTableRow, error) {
	table, err := p.client.GetExportsTable(ctx)
	if err != nil {
		return nil, err
	}
	for i := range table.Response.Data.Data {
		if table.Response.Data.Data[i].ExportID == exportID {
			return &table.Response.Data.Data[i], nil
		}
	}
	return nil, nil
}

func (p *exportPoller) download(ctx context.Context, exportID int64) ([]tautulli.TautulliExportedItem, error) {
	raw, err := p.client.DownloadExport(ctx, exportID)
	if err != nil {
		return nil, &ExportError{Server: p.server, ExportID: exportID, Reason: ExportFailed, Err: err}
	}
	items, err := decodeExportPayload(raw)
	if err != nil {
		return nil, &ExportError{Server: p.server, ExportID: exportID, Reason: ExportFailed, Err: err}
	}
	return items, nil
}

// decodeExportPayload decodes an export download tolerantly. Shapes
// are tried in order: raw array, {"data": [...]} envelope, and a JSON
// string wrapping either (double-encoded).
func decodeExportPayload(raw []byte) ([]tautulli.TautulliExportedItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty export payload")
	}

	switch trimmed[0] {
	case '[':
		var items []tautulli.TautulliExportedItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode export array: %w", err)
		}
		return items, nil

	case '{':
		var envelope struct {
			Data []tautulli.TautulliExportedItem `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode export envelope: %w", err)
		}
		return envelope.Data, nil

	case '"':
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("failed to decode double-encoded export: %w", err)
		}
		return decodeExportPayload([]byte(inner))

	default:
		return nil, fmt.Errorf("unrecognized export payload (leading byte %q)", trimmed[0])
	}
}
