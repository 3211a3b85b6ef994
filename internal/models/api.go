// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

package models

import "time"

// APIResponse is the envelope every HTTP endpoint returns.
//
// Status is "success" or "error". Data carries the payload on success;
// Error is populated only when Status is "error".
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata is attached to every response.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count,omitempty"` // result rows, list endpoints only
}

// APIError carries structured error details.
//
// Codes in use: VALIDATION_ERROR, SYNC_ALREADY_RUNNING, NOT_FOUND,
// DATABASE_ERROR, UPSTREAM_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
