// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/notebook-engine/internal/audit"
	"github.com/pdiddy/notebook-engine/internal/llm"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

// Clients are the completion clients one pipeline needs.
type Clients struct {
	Generation *llm.Client
	Audit      *llm.Client

	// AuditEndpoint is what the semantic audit uses to decide whether to run.
	AuditEndpoint audit.Endpoint
}

// Connect resolves the generation and audit models through r and builds a
// client for each. Empty audit fields inherit from the generation settings.
func Connect(ctx context.Context, cfg types.EngineConfig, r llm.Resolver, logger zerolog.Logger) (*Clients, error) {
	if r == nil {
		r = llm.IdentityResolver{}
	}

	gen := cfg.LLM
	target, err := r.Resolve(ctx, gen.Model, gen.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("resolving generation model %q: %w", gen.Model, err)
	}
	gen.Model, gen.BaseURL = target.Model, target.BaseURL

	aud := AuditLLMConfig(cfg)
	target, err = r.Resolve(ctx, aud.Model, aud.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("resolving audit model %q: %w", aud.Model, err)
	}
	aud.Model, aud.BaseURL = target.Model, target.BaseURL

	genClient := llm.NewClient(gen, llm.WithLogger(logger.With().Str("component", "llm").Logger()))
	auditClient := llm.NewClient(aud, llm.WithLogger(logger.With().Str("component", "llm_audit").Logger()))
	return &Clients{
		Generation: genClient,
		Audit:      auditClient,
		AuditEndpoint: audit.Endpoint{
			BaseURL:        auditClient.BaseURL(),
			HasCredentials: auditClient.HasCredentials(),
		},
	}, nil
}

// AuditLLMConfig returns the LLM settings for the semantic audit.
func AuditLLMConfig(cfg types.EngineConfig) types.LLMConfig {
	out := cfg.LLM
	if cfg.Audit.BaseURL != "" {
		out.BaseURL = cfg.Audit.BaseURL
	}
	if cfg.Audit.Model != "" {
		out.Model = cfg.Audit.Model
	}
	if cfg.Audit.APIKey != "" {
		out.APIKey = cfg.Audit.APIKey
	}
	return out
}
