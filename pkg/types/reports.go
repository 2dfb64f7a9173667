// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// GateStatus is the outcome of a single check or an entire gate.
type GateStatus string

const (
	StatusPass GateStatus = "pass"
	StatusWarn GateStatus = "warn"
	StatusFail GateStatus = "fail"
)

// Worse returns the more severe of s and o.
func (s GateStatus) Worse(o GateStatus) GateStatus {
	rank := func(g GateStatus) int {
		switch g {
		case StatusFail:
			return 2
		case StatusWarn:
			return 1
		}
		return 0
	}
	if rank(o) > rank(s) {
		return o
	}
	return s
}

// QaMetrics are the structural measurements taken by the QA gate.
type QaMetrics struct {
	OutlineSteps           int     `json:"outline_steps"`
	SectionsExpected       int     `json:"sections_expected"`
	SectionsReceived       int     `json:"sections_received"`
	Objectives             int     `json:"objectives"`
	Exercises              int     `json:"exercises"`
	Assessments            int     `json:"assessments"`
	AvgSectionLengthChars  int     `json:"avg_section_length_chars"`
	MarkdownRatio          float64 `json:"markdown_ratio"`
	PlaceholderOccurrences int     `json:"placeholder_occurrences"`
}

// QaCheck is one named check within the QA gate.
type QaCheck struct {
	Name    string     `json:"name"`
	Status  GateStatus `json:"status"`
	Details []string   `json:"details,omitempty"`
}

// RecommendedActions splits QA follow-ups by urgency.
type RecommendedActions struct {
	MustFix   []string `json:"must_fix"`
	ShouldFix []string `json:"should_fix"`
}

// QaGateReport is the output of the structural QA gate.
type QaGateReport struct {
	OverallStatus  GateStatus         `json:"overall_status"`
	Metrics        QaMetrics          `json:"metrics"`
	Checks         []QaCheck          `json:"checks"`
	BlockingIssues []string           `json:"blocking_issues"`
	Warnings       []string           `json:"warnings"`
	Summary        string             `json:"summary"`
	Actions        RecommendedActions `json:"recommended_actions"`
	SectionIDs     []string           `json:"section_ids"`
}

// SemanticReport is the output of the LLM-based semantic audit.
type SemanticReport struct {
	Status          GateStatus `json:"status"`
	Issues          []string   `json:"issues"`
	FillerSections  []int      `json:"filler_sections"`
	Recommendations []string   `json:"recommendations"`
	Skipped         bool       `json:"skipped,omitempty"`
	Note            string     `json:"note,omitempty"`
	RawResponse     string     `json:"raw_response,omitempty"`
}

// QualityMetrics is the advisory 0-100 score of a notebook.
type QualityMetrics struct {
	Score              int      `json:"score"`
	MeetsStandards     bool     `json:"meets_standards"`
	HasTitle           bool     `json:"has_title"`
	HasObjectives      bool     `json:"has_objectives"`
	HasSetup           bool     `json:"has_setup"`
	HasAssessments     bool     `json:"has_assessments"`
	StepCount          int      `json:"step_count"`
	MarkdownCells      int      `json:"markdown_cells"`
	CodeCells          int      `json:"code_cells"`
	MarkdownRatio      float64  `json:"markdown_ratio"`
	EstimatedTokens    int      `json:"estimated_tokens"`
	ReadingTimeMinutes float64  `json:"reading_time_minutes"`
	Issues             []string `json:"issues,omitempty"`
}

// Severity grades a compatibility finding.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// CompatibilityIssue is one problematic code idiom found in a cell.
type CompatibilityIssue struct {
	Rule      string   `json:"rule"`
	Severity  Severity `json:"severity"`
	CellIndex int      `json:"cell_index"`
	Message   string   `json:"message"`
	Fix       string   `json:"fix,omitempty"`
}

// CompatibilityResult is the output of the compatibility checker.
type CompatibilityResult struct {
	Compatible    bool                 `json:"compatible"`
	Issues        []CompatibilityIssue `json:"issues"`
	Patched       bool                 `json:"patched"`
	AppliedFixes  []string             `json:"applied_fixes,omitempty"`
	CriticalCount int                  `json:"critical_count"`
	WarningCount  int                  `json:"warning_count"`
}
