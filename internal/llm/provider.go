// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"net"
	"net/url"
	"strings"
)

// Caps describes what a provider accepts in a chat-completions body.
type Caps struct {
	// ResponseFormat is true when {"response_format":{"type":"json_object"}} is honoured.
	ResponseFormat bool
}

// CapsFor returns the capabilities of the provider serving baseURL.
// Unknown providers get the conservative default.
func CapsFor(baseURL string) Caps {
	host := hostOf(baseURL)
	switch {
	case host == "poe.com" || strings.HasSuffix(host, ".poe.com"):
		return Caps{}
	case host == "api.openai.com", host == "openrouter.ai" || strings.HasSuffix(host, ".openrouter.ai"):
		return Caps{ResponseFormat: true}
	}
	return Caps{}
}

// NormalizeBase strips whitespace, trailing slashes, and a trailing /v1.
func NormalizeBase(baseURL string) string {
	b := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	b = strings.TrimSuffix(b, "/v1")
	return strings.TrimRight(b, "/")
}

// ChatCompletionsURL builds the completion endpoint for a provider root.
func ChatCompletionsURL(baseURL string) string {
	return NormalizeBase(baseURL) + "/v1/chat/completions"
}

// IsLocalEndpoint reports whether baseURL points at a loopback or
// unspecified address, i.e. a single-tenant inference server on this host.
func IsLocalEndpoint(baseURL string) bool {
	host := hostOf(baseURL)
	switch host {
	case "localhost", "0.0.0.0", "::1", "127.0.0.1":
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback() || ip.IsUnspecified()
	}
	return false
}

func hostOf(baseURL string) string {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Target is a concrete provider model and endpoint root.
type Target struct {
	Model   string
	BaseURL string
}

// Resolver maps a logical model reference and provider to a Target.
// Model-name aliasing lives outside this module; the engine only consumes it.
type Resolver interface {
	Resolve(ctx context.Context, model, baseURL string) (Target, error)
}

// IdentityResolver returns its inputs unchanged apart from URL normalisation.
type IdentityResolver struct{}

// Resolve implements Resolver.
func (IdentityResolver) Resolve(_ context.Context, model, baseURL string) (Target, error) {
	return Target{Model: model, BaseURL: NormalizeBase(baseURL)}, nil
}
