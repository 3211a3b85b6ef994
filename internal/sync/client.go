// Multiplex - Dual-Server Plex Viewing Statistics
// Copyright 2026 Multiplex contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/multiplexstats/multiplex

/*
client.go - Tautulli API Client Core

This file provides the HTTP client core shared by all Tautulli API
methods:

  - makeRequest(): Generic request execution with response validation
  - doRequestWithRateLimit(): HTTP 429 handling with exponential
    backoff, honoring Retry-After when the server sends one
  - validateTautulliResponse(): Envelope validation via reflection
    (every Tautulli response carries response.result/response.message)

Rate Limiting:
Tautulli deployments behind reverse proxies commonly rate-limit the API.
On 429 the client waits retryBaseDelay << attempt (or the Retry-After
value when present) and retries up to maxRetries times. The wait is
context-aware so a shutdown is never blocked by a backoff sleep.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/multiplexstats/multiplex/internal/logging"
	"github.com/multiplexstats/multiplex/internal/metrics"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxRetries     = 5
	defaultRetryBaseDelay = time.Second

	// maxErrorBodySize bounds how much of an error response body is
	// read for diagnostics.
	maxErrorBodySize = 64 * 1024
)

// TautulliClient is a client for one Tautulli server's v2 API.
type TautulliClient struct {
	name    string // configured server name, used as the metrics label
	baseURL string
	apiKey  string

	httpClient     *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewTautulliClient creates a client for one server. retryAttempts and
// retryDelay of zero fall back to the defaults.
func NewTautulliClient(name, baseURL, apiKey string, retryAttempts int, retryDelay time.Duration) *TautulliClient {
	if retryAttempts <= 0 {
		retryAttempts = defaultMaxRetries
	}
	if retryDelay <= 0 {
		retryDelay = defaultRetryBaseDelay
	}
	return &TautulliClient{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		maxRetries:     retryAttempts,
		retryBaseDelay: retryDelay,
	}
}

// Name returns the configured server name.
func (c *TautulliClient) Name() string {
	return c.name
}

// Ping verifies connectivity and API key validity via the arnold
// endpoint, the cheapest authenticated Tautulli command.
func (c *TautulliClient) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", "arnold")

	reqURL := fmt.Sprintf("%s/api/v2?%s", c.baseURL, params.Encode())

	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return fmt.Errorf("ping failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// makeRequest executes a Tautulli API command and decodes the response
// envelope into result, which must embed a Response struct with Result
// and Message fields.
func (c *TautulliClient) makeRequest(ctx context.Context, cmd string, params url.Values, result interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", cmd)

	reqURL := fmt.Sprintf("%s/api/v2?%s", c.baseURL, params.Encode())

	started := time.Now()
	resp, err := c.doRequestWithRateLimit(ctx, reqURL)
	metrics.APIRequestDuration.WithLabelValues(c.name, cmd).Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.APIRequestErrors.WithLabelValues(c.name, cmd).Inc()
		return fmt.Errorf("failed to make %s request: %w", cmd, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.APIRequestErrors.WithLabelValues(c.name, cmd).Inc()
		body := readBodyForError(resp.Body)
		return fmt.Errorf("%s request failed with status %d: %s", cmd, resp.StatusCode, string(body))
	}

	if err := c.decodeResponse(resp.Body, cmd, result); err != nil {
		metrics.APIRequestErrors.WithLabelValues(c.name, cmd).Inc()
		return err
	}
	return nil
}

func (c *TautulliClient) decodeResponse(body io.Reader, cmd string, result interface{}) error {
	if err := json.NewDecoder(body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", cmd, err)
	}
	return validateTautulliResponse(cmd, result)
}

// doRequestWithRateLimit executes a GET with HTTP 429 retry handling.
func (c *TautulliClient) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastResp *http.Response

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Rate limited. Closing the body before the wait keeps the
		// connection reusable.
		delay := c.retryBaseDelay << attempt
		if retryAfter := parseRetryAfter(resp.Header.Get("Retry-After")); retryAfter > 0 {
			delay = retryAfter
		}
		resp.Body.Close()
		lastResp = resp

		metrics.RateLimitRetries.WithLabelValues(c.name).Inc()
		logging.Warn().
			Str("server", c.name).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Rate limited by Tautulli, backing off")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("rate limited after %d retries (last status %d)", c.maxRetries, lastResp.StatusCode)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// readBodyForError reads a bounded prefix of an error response body.
func readBodyForError(body io.Reader) []byte {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	if err != nil {
		return []byte(fmt.Sprintf("<failed to read body: %v>", err))
	}
	return data
}

// validateTautulliResponse checks the response.result field of a decoded
// envelope. Uses reflection so every typed response model shares one
// validation path.
func validateTautulliResponse(cmd string, result interface{}) error {
	v := reflect.ValueOf(result)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	respField := v.FieldByName("Response")
	if !respField.IsValid() {
		return nil
	}

	resultField := respField.FieldByName("Result")
	if !resultField.IsValid() || resultField.Kind() != reflect.String {
		return nil
	}
	if resultField.String() == "success" {
		return nil
	}

	msg := "unknown error"
	msgField := respField.FieldByName("Message")
	if msgField.IsValid() && msgField.Kind() == reflect.Ptr && !msgField.IsNil() {
		msg = msgField.Elem().String()
	}
	return fmt.Errorf("%s failed: %s", cmd, msg)
}
