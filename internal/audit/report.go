// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"fmt"
	"strings"

	"github.com/pdiddy/notebook-engine/pkg/types"
)

// RenderQaReport formats a QA gate report as markdown.
func RenderQaReport(r types.QaGateReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# QA Gate Report\n\n**Status:** %s\n\n%s\n\n", r.OverallStatus, r.Summary)
	sb.WriteString("## Metrics\n\n")
	fmt.Fprintf(&sb, "- Outline steps: %d\n", r.Metrics.OutlineSteps)
	fmt.Fprintf(&sb, "- Sections: %d of %d\n", r.Metrics.SectionsReceived, r.Metrics.SectionsExpected)
	fmt.Fprintf(&sb, "- Objectives: %d\n", r.Metrics.Objectives)
	fmt.Fprintf(&sb, "- Exercises: %d\n", r.Metrics.Exercises)
	fmt.Fprintf(&sb, "- Assessments: %d\n", r.Metrics.Assessments)
	fmt.Fprintf(&sb, "- Average section markdown: %d chars\n", r.Metrics.AvgSectionLengthChars)
	fmt.Fprintf(&sb, "- Markdown ratio: %.2f\n", r.Metrics.MarkdownRatio)
	fmt.Fprintf(&sb, "- Placeholders: %d\n", r.Metrics.PlaceholderOccurrences)

	sb.WriteString("\n## Checks\n\n")
	for _, c := range r.Checks {
		fmt.Fprintf(&sb, "- **%s**: %s\n", c.Name, c.Status)
		for _, d := range c.Details {
			fmt.Fprintf(&sb, "  - %s\n", d)
		}
	}
	writeList(&sb, "Must fix", r.Actions.MustFix)
	writeList(&sb, "Should fix", r.Actions.ShouldFix)
	return sb.String()
}

// RenderSemanticReport formats a semantic audit report as markdown.
func RenderSemanticReport(r types.SemanticReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Semantic Audit\n\n**Status:** %s\n", r.Status)
	if r.Skipped {
		fmt.Fprintf(&sb, "\n_%s_\n", r.Note)
	}
	writeList(&sb, "Issues", r.Issues)
	if len(r.FillerSections) > 0 {
		nums := make([]string, len(r.FillerSections))
		for i, n := range r.FillerSections {
			nums[i] = fmt.Sprintf("%d", n)
		}
		fmt.Fprintf(&sb, "\n**Filler sections:** %s\n", strings.Join(nums, ", "))
	}
	writeList(&sb, "Recommendations", r.Recommendations)
	return sb.String()
}

// RenderQualityReport formats quality metrics as markdown.
func RenderQualityReport(m types.QualityMetrics) string {
	var sb strings.Builder
	verdict := "Needs improvement"
	if m.MeetsStandards {
		verdict = "Meets standards"
	}
	fmt.Fprintf(&sb, "# Quality Report\n\n**Score:** %d/100 (%s)\n\n", m.Score, verdict)
	fmt.Fprintf(&sb, "- Steps: %d (optimal 6-15)\n", m.StepCount)
	fmt.Fprintf(&sb, "- Cells: %d markdown, %d code\n", m.MarkdownCells, m.CodeCells)
	fmt.Fprintf(&sb, "- Markdown ratio: %.1f%%\n", m.MarkdownRatio*100)
	fmt.Fprintf(&sb, "- Estimated tokens: %d\n", m.EstimatedTokens)
	fmt.Fprintf(&sb, "- Reading time: %.1f minutes\n", m.ReadingTimeMinutes)
	writeList(&sb, "Issues", m.Issues)
	return sb.String()
}

// RenderCompatibilityReport formats a compatibility result as markdown.
func RenderCompatibilityReport(r types.CompatibilityResult) string {
	var sb strings.Builder
	status := "Compatible"
	if !r.Compatible {
		status = "Issues remain"
	}
	fmt.Fprintf(&sb, "# Compatibility Report\n\n**Status:** %s\n**Critical issues:** %d\n**Total issues:** %d\n",
		status, r.CriticalCount, len(r.Issues))
	if len(r.Issues) > 0 {
		sb.WriteString("\n")
		for i, is := range r.Issues {
			fmt.Fprintf(&sb, "%d. %s (%s, cell %d)\n   %s\n", i+1, is.Rule, is.Severity, is.CellIndex, is.Message)
		}
	}
	writeList(&sb, "Applied fixes", r.AppliedFixes)
	return sb.String()
}

// RenderValidationReport combines quality and compatibility into the
// summary attached to a pipeline result.
func RenderValidationReport(q types.QualityMetrics, c types.CompatibilityResult) string {
	var sb strings.Builder
	sb.WriteString("# Validation Report\n\n## Quality Assessment\n\n")
	fmt.Fprintf(&sb, "- **Score:** %d/100\n", q.Score)
	fmt.Fprintf(&sb, "- **Standards:** %s\n", yesNo(q.MeetsStandards, "Met", "Not met"))
	fmt.Fprintf(&sb, "- **Steps:** %d\n", q.StepCount)
	fmt.Fprintf(&sb, "- **Reading time:** %.1f minutes\n", q.ReadingTimeMinutes)

	sb.WriteString("\n## Compatibility\n\n")
	compat := yesNo(c.Compatible, "Compatible", "Issues remain")
	if c.Patched && c.Compatible {
		compat = "Compatible after fixes"
	}
	fmt.Fprintf(&sb, "- **Status:** %s\n", compat)
	fmt.Fprintf(&sb, "- **Issues:** %d\n", len(c.Issues))

	sb.WriteString("\n## Summary\n\n")
	switch {
	case q.MeetsStandards && c.Compatible && !c.Patched:
		sb.WriteString("Ready for use.\n")
	case c.Compatible:
		sb.WriteString("Usable; review the issues above before publishing.\n")
	default:
		sb.WriteString("Compatibility problems remain; fix them before publishing.\n")
	}
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n## %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", it)
	}
}

func yesNo(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
