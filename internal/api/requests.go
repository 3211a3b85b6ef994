// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
requests.go - Typed API Request Structures

Request parameters are bound into these structs and validated with
go-playground/validator before handlers touch the database. Validation
failures surface as VALIDATION_ERROR responses naming the offending
field.
*/
package api

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/multiplexstats/multiplex/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SyncHistoryRequest is the body of POST /api/v1/sync/history.
// Kind defaults to incremental; Days applies to backfill only.
type SyncHistoryRequest struct {
	Kind string `json:"kind" validate:"omitempty,oneof=incremental backfill full"`
	Days int    `json:"days" validate:"omitempty,min=1,max=3650"`
}

// HistoryQueryRequest holds the query parameters of GET /api/v1/history.
type HistoryQueryRequest struct {
	ServerName string `validate:"omitempty,max=100"`
	Username   string `validate:"omitempty,max=100"`
	MediaType  string `validate:"omitempty,oneof=movie episode track"`
	Search     string `validate:"omitempty,max=200"`
	SortBy     string `validate:"omitempty,oneof=started date_played title username"`
	Order      string `validate:"omitempty,oneof=asc desc"`
	Limit      int    `validate:"min=1,max=1000"`
	Offset     int    `validate:"min=0"`
}

// MediaQueryRequest holds the query parameters of the cached media
// list endpoints.
type MediaQueryRequest struct {
	Search string `validate:"omitempty,max=200"`
	SortBy string `validate:"omitempty,oneof=title year added_at last_played play_count total_file_size"`
	Order  string `validate:"omitempty,oneof=asc desc"`
	Limit  int    `validate:"min=1,max=1000"`
	Offset int    `validate:"min=0"`
}

// LifetimeQueryRequest holds the query parameters of GET /api/v1/lifetime.
type LifetimeQueryRequest struct {
	MediaType string `validate:"omitempty,oneof=movie show"`
}

// ItemUserStatsRequest identifies one item on one server for the
// per-item user statistics endpoint.
type ItemUserStatsRequest struct {
	Slot      string `validate:"required,oneof=a b"`
	RatingKey string `validate:"required,number,max=32"`
}

// validateRequest runs struct validation and converts the first
// failure into an APIError.
func validateRequest(v interface{}) *models.APIError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &models.APIError{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid value for " + strings.ToLower(fe.Field()),
			Details: map[string]interface{}{
				"field":      fe.Field(),
				"constraint": fe.Tag(),
			},
		}
	}

	return &models.APIError{
		Code:    "VALIDATION_ERROR",
		Message: "Invalid request parameters",
	}
}
