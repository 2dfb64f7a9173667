// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"time"

	"github.com/pdiddy/notebook-engine/internal/metrics"
	"github.com/pdiddy/notebook-engine/internal/outline"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

// Stage names used in StageError, logs, and metrics.
const (
	StageRequest   = "request"
	StageAuthorize = "authorize"
	StageOutline   = "outline"
	StageSections  = "sections"
	StageBuild     = "build"
	StageQA        = "qa"
	StageSemantic  = "semantic"
	StageQuality   = "quality"
	StageCompat    = "compatibility"
)

// StageError is a failure that aborted the run at Stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Timings are wall-clock durations per stage in milliseconds.
type Timings struct {
	OutlineMs       int64   `json:"outline_ms"`
	SectionsMsTotal int64   `json:"sections_ms_total"`
	SectionMs       []int64 `json:"section_ms"`
	BuildMs         int64   `json:"build_ms"`
	QualityMs       int64   `json:"quality_ms"`
	CompatMs        int64   `json:"compat_ms"`
	TotalMs         int64   `json:"total_ms"`
}

// Result is the envelope returned for every run. On failure Success is
// false, Reason explains why, and the reports produced before the failure
// are attached.
type Result struct {
	Success bool   `json:"success"`
	RunID   string `json:"run_id"`
	Reason  string `json:"reason,omitempty"`
	Stage   string `json:"failed_stage,omitempty"`

	Notebook       *types.Notebook     `json:"notebook,omitempty"`
	Outline        *types.Outline      `json:"outline,omitempty"`
	OutlineRepair  outline.RepairLevel `json:"outline_repair,omitempty"`
	OutlineResumed bool                `json:"outline_resumed,omitempty"`
	Padded         int                 `json:"padded_entries,omitempty"`
	Sections       []types.Section     `json:"sections"`
	Resumed        []int               `json:"resumed_sections,omitempty"`

	QA               *types.QaGateReport        `json:"qa_report,omitempty"`
	Semantic         *types.SemanticReport      `json:"semantic_report,omitempty"`
	Quality          *types.QualityMetrics      `json:"quality_metrics,omitempty"`
	Compatibility    *types.CompatibilityResult `json:"compatibility,omitempty"`
	ValidationReport string                     `json:"validation_report,omitempty"`

	Timings Timings          `json:"timings"`
	Metrics metrics.Snapshot `json:"metrics"`

	// Err is the error behind Reason, for errors.Is/As by callers.
	Err error `json:"-"`
}

func ms(d time.Duration) int64 { return d.Milliseconds() }
