// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/notebook-engine/internal/httputil"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

// captured decodes request bodies into a generic map for inspection.
type captured struct {
	bodies []map[string]any
}

func chatServer(t *testing.T, rec *captured, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		rec.bodies = append(rec.bodies, body)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": reply}}},
		})
	}))
}

func TestComplete_SendsRequestAndReturnsContent(t *testing.T) {
	var rec captured
	ts := chatServer(t, &rec, `{"ok":true}`)
	defer ts.Close()

	c := NewClient(types.LLMConfig{BaseURL: ts.URL + "/v1/", Model: "gpt-4o", APIKey: "secret"}, WithHTTPClient(ts.Client()))
	out, err := c.Complete(context.Background(), Request{
		Messages:    []Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "hi"}},
		Temperature: Temp(0.1),
		MaxTokens:   200,
		JSONMode:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	require.Len(t, rec.bodies, 1)
	body := rec.bodies[0]
	assert.Equal(t, "gpt-4o", body["model"])
	assert.InDelta(t, 0.1, body["temperature"], 1e-9)
	assert.EqualValues(t, 200, body["max_tokens"])
	// Loopback test server is not a provider that honours response_format.
	assert.NotContains(t, body, "response_format")
	msgs := body["messages"].([]any)
	assert.Len(t, msgs, 2)
}

func TestComplete_OmitsTemperatureForListedModels(t *testing.T) {
	var rec captured
	ts := chatServer(t, &rec, "text")
	defer ts.Close()

	c := NewClient(types.LLMConfig{
		BaseURL:             ts.URL,
		Model:               "openai/o3-mini",
		NoTemperatureModels: []string{"o3*"},
	}, WithHTTPClient(ts.Client()))
	_, err := c.Complete(context.Background(), Request{Temperature: Temp(0.2)})
	require.NoError(t, err)
	assert.NotContains(t, rec.bodies[0], "temperature")
	assert.False(t, c.SupportsTemperature())
}

func TestComplete_LearnsTemperatureRejection(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["temperature"]; ok {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"Unsupported parameter: 'temperature' is not supported with this model."}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "fine"}}},
		})
	}))
	defer ts.Close()

	c := NewClient(types.LLMConfig{BaseURL: ts.URL, Model: "reasoner"}, WithHTTPClient(ts.Client()))
	out, err := c.Complete(context.Background(), Request{Temperature: Temp(0)})
	require.NoError(t, err)
	assert.Equal(t, "fine", out)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// Second call goes straight through without temperature.
	_, err = c.Complete(context.Background(), Request{Temperature: Temp(0)})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestComplete_EmptyReply(t *testing.T) {
	var rec captured
	ts := chatServer(t, &rec, "   ")
	defer ts.Close()

	c := NewClient(types.LLMConfig{BaseURL: ts.URL, Model: "m"}, WithHTTPClient(ts.Client()))
	_, err := c.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestComplete_PerCallTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	c := NewClient(types.LLMConfig{BaseURL: ts.URL, Model: "m", Timeout: 50 * time.Millisecond}, WithHTTPClient(ts.Client()))
	start := time.Now()
	_, err := c.Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestComplete_RetriesHungAttempt(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"recovered"}}]}`))
	}))
	defer ts.Close()

	c := NewClient(types.LLMConfig{BaseURL: ts.URL, Model: "m", Timeout: 100 * time.Millisecond, MaxRetries: 3}, WithHTTPClient(ts.Client()))
	out, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCapsFor(t *testing.T) {
	assert.False(t, CapsFor("https://api.poe.com").ResponseFormat)
	assert.True(t, CapsFor("https://api.openai.com/v1").ResponseFormat)
	assert.True(t, CapsFor("https://openrouter.ai/api").ResponseFormat)
	assert.False(t, CapsFor("http://localhost:11434").ResponseFormat)
}

func TestChatCompletionsURL(t *testing.T) {
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", ChatCompletionsURL("https://api.openai.com"))
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", ChatCompletionsURL("https://api.openai.com/v1/"))
	assert.Equal(t, "http://localhost:1234/v1/chat/completions", ChatCompletionsURL(" http://localhost:1234/ "))
}

func TestIsLocalEndpoint(t *testing.T) {
	for _, u := range []string{"http://localhost:11434", "http://127.0.0.1:8080/v1", "http://0.0.0.0:1234", "http://[::1]:8000", "127.0.0.1:9000"} {
		assert.True(t, IsLocalEndpoint(u), u)
	}
	for _, u := range []string{"https://api.poe.com", "https://api.openai.com/v1", "", "http://10.0.0.5:8000"} {
		assert.False(t, IsLocalEndpoint(u), u)
	}
}

func TestObserve(t *testing.T) {
	var seen int
	c := Observe(CompleterFunc(func(context.Context, Request) (string, error) { return "x", nil }), func(time.Duration, error) { seen++ })
	out, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "x", out)
	assert.Equal(t, 1, seen)
}

func TestIdentityResolver(t *testing.T) {
	tgt, err := IdentityResolver{}.Resolve(context.Background(), "gpt-4o", "https://api.openai.com/v1")
	require.NoError(t, err)
	assert.Equal(t, Target{Model: "gpt-4o", BaseURL: "https://api.openai.com"}, tgt)
}
