// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/pdiddy/notebook-engine/internal/secrets"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

// setDefaults registers every config key so env variables and flags can
// override keys that no config file mentions.
func setDefaults(v *viper.Viper) {
	d := types.DefaultEngineConfig()
	defaults := map[string]any{
		"llm.base_url":               d.LLM.BaseURL,
		"llm.model":                  d.LLM.Model,
		"llm.api_key":                d.LLM.APIKey,
		"llm.timeout":                d.LLM.Timeout,
		"llm.requests_per_second":    d.LLM.RequestsPerSecond,
		"llm.max_retries":            d.LLM.MaxRetries,
		"llm.no_temperature_models":  d.LLM.NoTemperatureModels,
		"outline.token_ceiling":      d.Outline.TokenCeiling,
		"outline.max_tokens":         d.Outline.MaxTokens,
		"outline.strict":             d.Outline.Strict,
		"sections.max_tokens":        d.Sections.MaxTokens,
		"coordinator.concurrency":    d.Coordinator.Concurrency,
		"coordinator.checkpoint_dir": d.Coordinator.CheckpointDir,
		"coordinator.max_attempts":   d.Coordinator.MaxAttempts,
		"coordinator.base_delay":     d.Coordinator.BaseDelay,
		"coordinator.max_delay":      d.Coordinator.MaxDelay,
		"audit.semantic":             d.Audit.Semantic,
		"audit.base_url":             d.Audit.BaseURL,
		"audit.model":                d.Audit.Model,
		"audit.api_key":              d.Audit.APIKey,
		"records.db_path":            d.Records.DBPath,
		"prompts.dir":                d.Prompts.Dir,
		"logging.level":              d.Logging.Level,
		"logging.format":             d.Logging.Format,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// loadConfig decodes viper into an EngineConfig, fills API keys from
// secrets, and validates the result.
func loadConfig(v *viper.Viper) (types.EngineConfig, error) {
	var cfg types.EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = secrets.Lookup(loadedSecrets, secrets.KeyFor(cfg.LLM.BaseURL)...)
	}
	if cfg.Audit.APIKey == "" {
		cfg.Audit.APIKey = secrets.Lookup(loadedSecrets, secrets.AuditKey)
	}
	if cfg.Audit.APIKey == "" && cfg.Audit.BaseURL != "" && cfg.Audit.BaseURL != cfg.LLM.BaseURL {
		cfg.Audit.APIKey = secrets.Lookup(loadedSecrets, secrets.KeyFor(cfg.Audit.BaseURL)...)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
