// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Intro to Embeddings", "intro-to-embeddings"},
		{"  RAG: Retrieval & Generation!  ", "rag-retrieval-generation"},
		{"GPT-4o in 10 Steps", "gpt-4o-in-10-steps"},
		{"???", "notebook"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slug(tt.in), tt.in)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("POE_API_KEY", "poe-from-env")
	loadedSecrets = nil

	v := viper.New()
	setDefaults(v)
	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "https://api.poe.com", cfg.LLM.BaseURL)
	assert.Equal(t, "poe-from-env", cfg.LLM.APIKey)
	assert.Equal(t, 5, cfg.Coordinator.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Coordinator.BaseDelay)
	assert.True(t, cfg.Audit.Semantic)
}

func TestLoadConfigOverridesAndSecrets(t *testing.T) {
	loadedSecrets = map[string]string{"openai-api-key": "sk-file"}
	t.Cleanup(func() { loadedSecrets = nil })

	v := viper.New()
	setDefaults(v)
	v.Set("llm.base_url", "https://api.openai.com")
	v.Set("coordinator.base_delay", "250ms")
	v.Set("llm.api_key", "")

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "sk-file", cfg.LLM.APIKey)
	assert.Equal(t, 250*time.Millisecond, cfg.Coordinator.BaseDelay)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("llm.base_url", "not a url")
	_, err := loadConfig(v)
	assert.ErrorContains(t, err, "invalid config")

	v = viper.New()
	setDefaults(v)
	v.Set("logging.format", "xml")
	_, err = loadConfig(v)
	assert.ErrorContains(t, err, "invalid config")
}
