// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// LLMConfig holds settings for calls to a chat-completions endpoint.
type LLMConfig struct {
	// BaseURL is the provider root, e.g. "https://api.openai.com". A trailing
	// /v1 is tolerated.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// Model is the provider model identifier.
	Model string `json:"model" yaml:"model" mapstructure:"model" validate:"required"`

	// APIKey is sent as a bearer token. Local endpoints may leave it empty.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Timeout bounds each HTTP attempt of a completion call (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// RequestsPerSecond rate-limits calls from one client. Zero disables the limiter.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gte=0"`

	// MaxRetries is the number of HTTP-level retries for transient failures (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`

	// NoTemperatureModels lists models that reject the temperature parameter.
	// A trailing "*" matches by prefix.
	NoTemperatureModels []string `json:"no_temperature_models" yaml:"no_temperature_models" mapstructure:"no_temperature_models"`
}

// OutlineConfig holds settings for the outline stage.
type OutlineConfig struct {
	// TokenCeiling is the maximum estimated_total_tokens (default 4000).
	TokenCeiling int `json:"token_ceiling" yaml:"token_ceiling" mapstructure:"token_ceiling" validate:"gt=0"`

	// MaxTokens caps the outline completion length (default 2000).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens" validate:"gt=0"`

	// Strict rejects outlines that only pass validation after deterministic padding.
	Strict bool `json:"strict" yaml:"strict" mapstructure:"strict"`
}

// SectionConfig holds settings for the section stage.
type SectionConfig struct {
	// MaxTokens caps the section completion length (default 1500).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens" validate:"gt=0"`
}

// CoordinatorConfig holds settings for concurrent section generation.
type CoordinatorConfig struct {
	// Concurrency is the worker count. Zero selects 2 for local endpoints and 1 otherwise.
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency" validate:"gte=0"`

	// CheckpointDir is the parent of all run directories (default ./runs).
	CheckpointDir string `json:"checkpoint_dir" yaml:"checkpoint_dir" mapstructure:"checkpoint_dir" validate:"required"`

	// MaxAttempts is the number of attempts per section (default 5).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts" validate:"gt=0"`

	// BaseDelay is the first backoff delay (default 500ms).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay" mapstructure:"base_delay" validate:"gte=0"`

	// MaxDelay caps the backoff delay (default 5s).
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay" validate:"gte=0"`
}

// AuditConfig holds settings for the semantic audit. Empty endpoint fields
// inherit from the generation LLMConfig.
type AuditConfig struct {
	Semantic bool   `json:"semantic" yaml:"semantic" mapstructure:"semantic"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// RecordsConfig locates the run record database.
type RecordsConfig struct {
	// DBPath is the SQLite file. Empty disables record keeping.
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`
}

// PromptsConfig locates prompt template overrides.
type PromptsConfig struct {
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" mapstructure:"dir"`
}

// LoggingConfig controls the zerolog logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"omitempty,oneof=json console"`
}

// EngineConfig aggregates every stage's settings.
type EngineConfig struct {
	LLM         LLMConfig         `json:"llm" yaml:"llm" mapstructure:"llm"`
	Outline     OutlineConfig     `json:"outline" yaml:"outline" mapstructure:"outline"`
	Sections    SectionConfig     `json:"sections" yaml:"sections" mapstructure:"sections"`
	Coordinator CoordinatorConfig `json:"coordinator" yaml:"coordinator" mapstructure:"coordinator"`
	Audit       AuditConfig       `json:"audit" yaml:"audit" mapstructure:"audit"`
	Records     RecordsConfig     `json:"records" yaml:"records" mapstructure:"records"`
	Prompts     PromptsConfig     `json:"prompts" yaml:"prompts" mapstructure:"prompts"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging" mapstructure:"logging"`
}

// DefaultEngineConfig returns the settings used when nothing is configured.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		LLM: LLMConfig{
			BaseURL:             "https://api.poe.com",
			Model:               "gpt-oss-20b",
			Timeout:             60 * time.Second,
			MaxRetries:          3,
			NoTemperatureModels: []string{"o1*", "o3*", "o4*", "gpt-5*"},
		},
		Outline: OutlineConfig{
			TokenCeiling: 4000,
			MaxTokens:    2000,
		},
		Sections: SectionConfig{
			MaxTokens: 1500,
		},
		Coordinator: CoordinatorConfig{
			CheckpointDir: "runs",
			MaxAttempts:   5,
			BaseDelay:     500 * time.Millisecond,
			MaxDelay:      5 * time.Second,
		},
		Audit: AuditConfig{
			Semantic: true,
		},
		Records: RecordsConfig{
			DBPath: "runs/records.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
