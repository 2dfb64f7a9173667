// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm calls OpenAI-compatible chat-completions endpoints.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pdiddy/notebook-engine/internal/httputil"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

// ErrEmptyReply is returned when the endpoint answers without any content.
var ErrEmptyReply = errors.New("completion returned no content")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call. Temperature nil means the provider
// default; JSONMode asks for a json_object response where supported.
type Request struct {
	Messages    []Message
	Temperature *float64
	MaxTokens   int
	JSONMode    bool
}

// Temp is a helper for Request.Temperature.
func Temp(v float64) *float64 { return &v }

// Completer produces the text of the first choice for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Client is a Completer backed by an HTTP chat-completions endpoint.
type Client struct {
	cfg     types.LLMConfig
	url     string
	caps    Caps
	http    *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger

	noTempMu   sync.RWMutex
	noTempSeen map[string]bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a Client for cfg.
func NewClient(cfg types.LLMConfig, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	c := &Client{
		cfg:        cfg,
		url:        ChatCompletionsURL(cfg.BaseURL),
		caps:       CapsFor(cfg.BaseURL),
		http:       &http.Client{},
		logger:     zerolog.Nop(),
		noTempSeen: map[string]bool{},
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Model returns the configured model id.
func (c *Client) Model() string { return c.cfg.Model }

// BaseURL returns the configured endpoint root.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// HasCredentials reports whether an API key is configured.
func (c *Client) HasCredentials() bool { return strings.TrimSpace(c.cfg.APIKey) != "" }

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends req and returns the first choice's message content.
// Each HTTP attempt is bounded by the configured timeout. A model that rejects the
// temperature parameter is remembered and the call is repeated without it.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	body := chatRequest{
		Model:     c.cfg.Model,
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil && !c.noTemperature(c.cfg.Model) {
		body.Temperature = req.Temperature
	}
	if req.JSONMode && c.caps.ResponseFormat {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	content, err := c.send(ctx, body)
	if err != nil && body.Temperature != nil && unsupportedTemperature(err) {
		c.logger.Warn().Str("model", c.cfg.Model).Msg("model rejected temperature, retrying without it")
		c.noteNoTemperature(c.cfg.Model)
		body.Temperature = nil
		content, err = c.send(ctx, body)
	}
	return content, err
}

func (c *Client) send(ctx context.Context, body chatRequest) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	headers := map[string]string{}
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		headers["Authorization"] = "Bearer " + key
	}

	start := time.Now()
	raw, err := httputil.PostJSON(ctx, c.http, c.url, headers, data, c.cfg.MaxRetries, c.cfg.Timeout)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", c.url, err)
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decoding completion response: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyReply
	}

	c.logger.Debug().
		Str("model", body.Model).
		Dur("elapsed", time.Since(start)).
		Int("chars", len(resp.Choices[0].Message.Content)).
		Msg("completion")
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) noTemperature(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	if m == "" {
		return false
	}
	// Provider-prefixed ids like "openai/o3-mini" match on the final segment.
	if i := strings.LastIndexByte(m, '/'); i >= 0 {
		m = m[i+1:]
	}
	for _, rule := range c.cfg.NoTemperatureModels {
		r := strings.ToLower(strings.TrimSpace(rule))
		if r == "" {
			continue
		}
		if strings.HasSuffix(r, "*") {
			if strings.HasPrefix(m, strings.TrimSuffix(r, "*")) {
				return true
			}
			continue
		}
		if m == r {
			return true
		}
	}
	c.noTempMu.RLock()
	defer c.noTempMu.RUnlock()
	return c.noTempSeen[m]
}

func (c *Client) noteNoTemperature(model string) {
	m := strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndexByte(m, '/'); i >= 0 {
		m = m[i+1:]
	}
	c.noTempMu.Lock()
	c.noTempSeen[m] = true
	c.noTempMu.Unlock()
}

// SupportsTemperature reports whether temperature is sent for the configured model.
func (c *Client) SupportsTemperature() bool {
	return !c.noTemperature(c.cfg.Model)
}

func unsupportedTemperature(err error) bool {
	var se *httputil.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(se.Body)
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, marker := range []string{"unsupported", "unknown parameter", "unrecognized parameter", "not supported", "does not support", "only the default"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
