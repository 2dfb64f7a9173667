// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"strings"
)

// CellKind tags the content of a Cell.
type CellKind string

const (
	CellMarkdown CellKind = "markdown"
	CellCode     CellKind = "code"
)

// Cell is one unit of section content, either markdown text or code.
type Cell struct {
	Kind   CellKind `json:"cell_type" yaml:"cell_type"`
	Source string   `json:"source" yaml:"source"`
}

// UnmarshalJSON accepts source as a string or as a list of lines, since
// models emit both forms.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind   CellKind        `json:"cell_type"`
		Source json.RawMessage `json:"source"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Kind = CellKind(strings.ToLower(string(raw.Kind)))
	c.Source = ""
	if len(raw.Source) == 0 || string(raw.Source) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Source, &s); err == nil {
		c.Source = s
		return nil
	}
	var lines []json.RawMessage
	if err := json.Unmarshal(raw.Source, &lines); err != nil {
		c.Source = looseString(raw.Source)
		return nil
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(looseString(l))
	}
	c.Source = b.String()
	return nil
}

// Callout is a highlighted tip, warning, or note attached to a section.
type Callout struct {
	Type    string `json:"type" yaml:"type"`
	Message string `json:"message" yaml:"message"`
}

// Section is one bounded-size instructional unit answering one outline step.
// Once checkpointed it is never regenerated.
type Section struct {
	Number             int       `json:"section_number" yaml:"section_number"`
	Title              string    `json:"title" yaml:"title"`
	Content            []Cell    `json:"content" yaml:"content"`
	Callouts           []Callout `json:"callouts,omitempty" yaml:"callouts,omitempty"`
	EstimatedTokens    int       `json:"estimated_tokens,omitempty" yaml:"estimated_tokens,omitempty"`
	PrerequisitesCheck []string  `json:"prerequisites_check,omitempty" yaml:"prerequisites_check,omitempty"`
	NextSectionHint    string    `json:"next_section_hint,omitempty" yaml:"next_section_hint,omitempty"`

	// Fallback is set when the section was synthesised locally because the
	// model reply could not be parsed.
	Fallback bool `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// Markdown returns the concatenated markdown of s, one cell per paragraph.
func (s Section) Markdown() string {
	var parts []string
	for _, c := range s.Content {
		if c.Kind == CellMarkdown {
			parts = append(parts, c.Source)
		}
	}
	return strings.Join(parts, "\n\n")
}

// CountKind returns the number of cells of kind k.
func (s Section) CountKind(k CellKind) int {
	n := 0
	for _, c := range s.Content {
		if c.Kind == k {
			n++
		}
	}
	return n
}
