// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/notebook-engine/internal/retry"
)

func init() {
	// Use a tiny base delay so tests finish quickly.
	RetryBaseDelay = 1 * time.Millisecond
}

func TestPostJSON_ImmediateSuccess(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"a":1}`, string(body))
		w.Write([]byte(`ok`))
	}))
	defer ts.Close()

	out, err := PostJSON(context.Background(), ts.Client(), ts.URL, map[string]string{"Authorization": "Bearer k"}, []byte(`{"a":1}`), 3, 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostJSON_RetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			// Body must be resent intact on every attempt.
			body, _ := io.ReadAll(r.Body)
			w.Write(body)
		}
	}))
	defer ts.Close()

	out, err := PostJSON(context.Background(), ts.Client(), ts.URL, nil, []byte(`{"x":true}`), 5, 0)
	require.NoError(t, err)
	assert.Equal(t, `{"x":true}`, string(out))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPostJSON_ExhaustsRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := PostJSON(context.Background(), ts.Client(), ts.URL, nil, nil, 3, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.True(t, IsStatus(err, http.StatusServiceUnavailable))
	// 1 initial + 3 retries = 4 total calls.
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestPostJSON_DefaultMaxRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := PostJSON(context.Background(), ts.Client(), ts.URL, nil, nil, 0, 0)
	require.Error(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestPostJSON_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`unsupported parameter`))
	}))
	defer ts.Close()

	_, err := PostJSON(context.Background(), ts.Client(), ts.URL, nil, nil, 5, 0)
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Contains(t, se.Body, "unsupported parameter")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostJSON_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	// Use a longer base delay so the context cancels during the wait.
	old := RetryBaseDelay
	RetryBaseDelay = 500 * time.Millisecond
	defer func() { RetryBaseDelay = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := PostJSON(ctx, ts.Client(), ts.URL, nil, nil, 5, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryAfter(t *testing.T) {
	d, ok := retryAfter("2")
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	_, ok = retryAfter("")
	assert.False(t, ok)
	_, ok = retryAfter("soon")
	assert.False(t, ok)
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(http.StatusTooManyRequests))
	assert.True(t, Transient(http.StatusRequestTimeout))
	assert.True(t, Transient(http.StatusInternalServerError))
	assert.False(t, Transient(http.StatusUnauthorized))
	assert.False(t, Transient(http.StatusNotFound))
}

func TestPostJSON_HungAttemptIsRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer ts.Close()

	start := time.Now()
	out, err := PostJSON(context.Background(), ts.Client(), ts.URL, nil, nil, 3, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPostJSON_CallerDeadlineDuringAttemptIsPermanent(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := PostJSON(ctx, ts.Client(), ts.URL, nil, nil, 3, time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
