// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunStatus is the final state of a pipeline run.
type RunStatus string

const (
	RunSucceeded RunStatus = "success"
	RunFailed    RunStatus = "failed"
)

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	ID           string     `json:"id" yaml:"id"`
	Title        string     `json:"title" yaml:"title"`
	Subject      string     `json:"subject" yaml:"subject"`
	Difficulty   Difficulty `json:"difficulty" yaml:"difficulty"`
	Status       RunStatus  `json:"status" yaml:"status"`
	QualityScore int        `json:"quality_score" yaml:"quality_score"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
}

// RunRecord is everything kept about one finished run.
type RunRecord struct {
	RunSummary `yaml:",inline"`

	Outline  *Outline  `json:"outline,omitempty" yaml:"outline,omitempty"`
	Notebook *Notebook `json:"notebook,omitempty" yaml:"-"`
	Sections []Section `json:"sections,omitempty" yaml:"sections,omitempty"`
}
