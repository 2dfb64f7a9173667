// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Recognised key files: openai-api-key, poe-api-key, openrouter-api-key, audit-api-key.
// A .env file may supply the same credentials as environment variables.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Key file names.
const (
	OpenAIKey     = "openai-api-key"
	PoeKey        = "poe-api-key"
	OpenRouterKey = "openrouter-api-key"
	AuditKey      = "audit-api-key"
)

// envNames maps key files to the environment variables that may carry them.
var envNames = map[string]string{
	OpenAIKey:     "OPENAI_API_KEY",
	PoeKey:        "POE_API_KEY",
	OpenRouterKey: "OPENROUTER_API_KEY",
	AuditKey:      "NOTEBOOK_ENGINE_AUDIT_API_KEY",
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadDotEnv loads each existing file into the process environment without
// overriding variables that are already set. Missing files are skipped. It
// returns the files that were loaded.
func LoadDotEnv(paths ...string) ([]string, error) {
	var loaded []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("checking %s: %w", p, err)
		}
		if err := godotenv.Load(p); err != nil {
			return loaded, fmt.Errorf("loading %s: %w", p, err)
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

// Lookup returns the first non-empty credential among keys, checking the
// loaded secret files before the matching environment variables.
func Lookup(secrets map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := secrets[k]; v != "" {
			return v
		}
	}
	for _, k := range keys {
		if env, ok := envNames[k]; ok {
			if v := strings.TrimSpace(os.Getenv(env)); v != "" {
				return v
			}
		}
	}
	return ""
}

// KeyFor picks the credential keys to try for a provider base URL.
func KeyFor(baseURL string) []string {
	u := strings.ToLower(baseURL)
	switch {
	case strings.Contains(u, "poe.com"):
		return []string{PoeKey, OpenAIKey}
	case strings.Contains(u, "openrouter.ai"):
		return []string{OpenRouterKey, OpenAIKey}
	default:
		return []string{OpenAIKey, PoeKey}
	}
}
