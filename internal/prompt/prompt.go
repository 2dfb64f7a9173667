// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompt renders the prompts sent to the completion endpoint.
// Built-in templates can be replaced per deployment by placing <name>.tmpl
// files in an override directory.
package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"text/template"
)

var defaultTemplates = parseBuiltins()

func parseBuiltins() map[string]*template.Template {
	out := make(map[string]*template.Template, len(builtins))
	for name, text := range builtins {
		out[name] = template.Must(template.New(name).Parse(text))
	}
	return out
}

// Loader resolves templates by name. The zero value uses the built-ins.
type Loader struct {
	dir string

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewLoader returns a Loader that prefers templates from dir. An empty dir
// disables overrides.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Render executes the named template with data.
func (l *Loader) Render(name string, data any) (string, error) {
	tmpl, err := l.lookup(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", name, err)
	}
	return buf.String(), nil
}

func (l *Loader) lookup(name string) (*template.Template, error) {
	builtin, ok := defaultTemplates[name]
	if !ok {
		return nil, fmt.Errorf("unknown prompt template %q", name)
	}
	if l == nil || l.dir == "" {
		return builtin, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.cache[name]; ok {
		return t, nil
	}

	t := builtin
	path := filepath.Join(l.dir, name+".tmpl")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		t, err = template.New(name).Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parsing prompt override %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading prompt override %s: %w", path, err)
	}

	if l.cache == nil {
		l.cache = make(map[string]*template.Template)
	}
	l.cache[name] = t
	return t, nil
}
