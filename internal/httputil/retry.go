// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pdiddy/notebook-engine/internal/retry"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// transient HTTP failures. Tests override this to avoid real sleeps.
var RetryBaseDelay = 500 * time.Millisecond

const defaultMaxRetries = 3

// StatusError is returned for a non-2xx response that was not retried away.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether a status code is worth retrying.
func Transient(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

// PostJSON sends body to url and returns the response body of the first 2xx
// reply. Transport errors, 408, 429, and 5xx are retried with capped
// exponential backoff starting at RetryBaseDelay; a Retry-After header
// raises the next delay. Other statuses fail immediately with *StatusError.
//
// When maxRetries is 0 the default (3) is used. attemptTimeout bounds each
// attempt on its own; an attempt that runs out of time is retried like a
// transport error. Zero leaves attempts bounded only by ctx. Once ctx itself
// is done the context error is returned without further attempts.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body []byte, maxRetries int, attemptTimeout time.Duration) ([]byte, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if client == nil {
		client = http.DefaultClient
	}

	policy := retry.Policy{
		Attempts:   maxRetries + 1,
		BaseDelay:  RetryBaseDelay,
		MaxDelay:   10 * RetryBaseDelay,
		Multiplier: 2,
		Jitter:     0.2,
	}

	var out []byte
	err := retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
		attemptCtx := ctx
		if attemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, attemptTimeout)
			defer cancel()
		}

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			// Only the caller's context ends the loop; a per-attempt
			// deadline is transient.
			if ctx.Err() != nil {
				return retry.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			out = data
			return nil
		}

		serr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 500)}
		if !Transient(resp.StatusCode) {
			return retry.Permanent(serr)
		}
		if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			return retry.After(serr, d)
		}
		return serr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IsStatus reports whether err carries an HTTP status error with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
	}
	return 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
