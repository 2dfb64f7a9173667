// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit implements the validation gates run over a built notebook:
// the structural QA gate, the LLM semantic audit, the quality scorer, and
// the compatibility checker.
package audit

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/notebook-engine/pkg/types"
)

// MinSectionMarkdownChars is the markdown length below which a section is
// reported as thin.
const MinSectionMarkdownChars = 800

// Check names reported by the QA gate.
const (
	CheckOutlineCompleteness = "outline_completeness"
	CheckSectionAlignment    = "section_alignment"
	CheckPlaceholderScan     = "placeholder_scan"
)

var placeholderRe = regexp.MustCompile(`(?i)\b(TODO|TBD|FIXME)\b`)

// QaInput is what the QA gate inspects.
type QaInput struct {
	Outline  *types.Outline
	Sections []types.Section

	// Padded is the number of outline entries filled in by deterministic repair.
	Padded int
}

// QaGate runs cheap deterministic checks before the expensive audits.
type QaGate struct {
	logger zerolog.Logger
}

// NewQaGate returns a QaGate.
func NewQaGate(logger zerolog.Logger) *QaGate {
	return &QaGate{logger: logger.With().Str("component", "qa_gate").Logger()}
}

// Evaluate never fails; problems are expressed in the report status.
func (g *QaGate) Evaluate(in QaInput) types.QaGateReport {
	o := in.Outline
	if o == nil {
		o = &types.Outline{}
	}
	steps := len(o.Steps)
	received := len(in.Sections)

	var blocking, outlineWarn []string
	if strings.TrimSpace(o.Title) == "" {
		blocking = append(blocking, "Outline is missing a title")
	}
	if steps == 0 {
		blocking = append(blocking, "Outline contains no steps")
	}
	if len(o.Setup.Requirements) == 0 {
		outlineWarn = append(outlineWarn, "Setup requirements list is empty")
	}
	if strings.TrimSpace(o.Summary) == "" || strings.TrimSpace(o.NextSteps) == "" {
		outlineWarn = append(outlineWarn, "Summary or next steps are missing from the outline")
	}
	if len(o.Exercises) == 0 {
		outlineWarn = append(outlineWarn, "No exercises defined in outline")
	}
	if in.Padded > 0 {
		outlineWarn = append(outlineWarn, fmt.Sprintf("Outline needed %d placeholder entries to pass validation", in.Padded))
	}

	sectionWarn, avgLen, ratio := inspectSections(steps, in.Sections)
	placeholderWarn, placeholders := scanPlaceholders(in.Sections)

	var sectionBlocking, coverageWarn []string
	if received == 0 {
		sectionBlocking = append(sectionBlocking, "No generated sections found")
	} else if received != steps {
		coverageWarn = append(coverageWarn, fmt.Sprintf("Expected %d sections but received %d", steps, received))
	}
	blocking = append(blocking, sectionBlocking...)

	var warnings []string
	warnings = append(warnings, outlineWarn...)
	warnings = append(warnings, sectionWarn...)
	warnings = append(warnings, placeholderWarn...)
	warnings = append(warnings, coverageWarn...)

	status := types.StatusPass
	switch {
	case len(blocking) > 0:
		status = types.StatusFail
	case len(warnings) > 0:
		status = types.StatusWarn
	}

	outlineBlocking := blocking[:len(blocking)-len(sectionBlocking)]
	alignment := append(append([]string(nil), sectionWarn...), coverageWarn...)

	ids := make([]string, len(in.Sections))
	for i, s := range in.Sections {
		ids[i] = fmt.Sprintf("section-%d", s.Number)
	}

	report := types.QaGateReport{
		OverallStatus: status,
		Metrics: types.QaMetrics{
			OutlineSteps:           steps,
			SectionsExpected:       steps,
			SectionsReceived:       received,
			Objectives:             len(o.Objectives),
			Exercises:              len(o.Exercises),
			Assessments:            len(o.Assessments),
			AvgSectionLengthChars:  avgLen,
			MarkdownRatio:          round2(ratio),
			PlaceholderOccurrences: placeholders,
		},
		Checks: []types.QaCheck{
			{Name: CheckOutlineCompleteness, Status: statusFor(outlineBlocking, outlineWarn), Details: append(append([]string(nil), outlineBlocking...), outlineWarn...)},
			{Name: CheckSectionAlignment, Status: statusFor(sectionBlocking, alignment), Details: append(append([]string(nil), sectionBlocking...), alignment...)},
			{Name: CheckPlaceholderScan, Status: statusFor(nil, placeholderWarn), Details: placeholderWarn},
		},
		BlockingIssues: nonNil(blocking),
		Warnings:       nonNil(warnings),
		Summary:        summary(status, blocking, warnings),
		Actions: types.RecommendedActions{
			MustFix:   nonNil(blocking),
			ShouldFix: nonNil(warnings),
		},
		SectionIDs: ids,
	}

	g.logger.Info().
		Str("status", string(status)).
		Int("outline_steps", steps).
		Int("sections", received).
		Int("warnings", len(warnings)).
		Int("blocking", len(blocking)).
		Msg("qa gate evaluated")
	return report
}

func inspectSections(expected int, sections []types.Section) (warnings []string, avgLen int, ratio float64) {
	if len(sections) == 0 {
		return nil, 0, 0
	}
	var mdChars, codeChars int
	for _, s := range sections {
		secMD, hasCode := 0, false
		for _, c := range s.Content {
			switch c.Kind {
			case types.CellMarkdown:
				secMD += len(c.Source)
			case types.CellCode:
				codeChars += len(c.Source)
				hasCode = true
			}
		}
		mdChars += secMD
		if secMD < MinSectionMarkdownChars {
			warnings = append(warnings, fmt.Sprintf("Section %d markdown body is shorter than %d characters", s.Number, MinSectionMarkdownChars))
		}
		if !hasCode {
			warnings = append(warnings, fmt.Sprintf("Section %d does not include a code cell", s.Number))
		}
	}
	if len(sections) < expected {
		warnings = append(warnings, "Not all outline steps currently have generated sections")
	}
	all := mdChars + codeChars
	if all == 0 {
		all = 1
	}
	avgLen = int(math.Round(float64(mdChars) / float64(len(sections))))
	return warnings, avgLen, float64(mdChars) / float64(all)
}

func scanPlaceholders(sections []types.Section) ([]string, int) {
	var warnings []string
	count := 0
	for _, s := range sections {
		hits := 0
		for _, c := range s.Content {
			hits += len(placeholderRe.FindAllStringIndex(c.Source, -1))
		}
		if hits > 0 {
			warnings = append(warnings, fmt.Sprintf("Placeholder text found in section %d", s.Number))
			count += hits
		}
	}
	return warnings, count
}

func statusFor(blocking, warnings []string) types.GateStatus {
	switch {
	case len(blocking) > 0:
		return types.StatusFail
	case len(warnings) > 0:
		return types.StatusWarn
	}
	return types.StatusPass
}

func summary(status types.GateStatus, blocking, warnings []string) string {
	switch status {
	case types.StatusFail:
		return "QA gate failed: " + strings.Join(blocking, "; ")
	case types.StatusWarn:
		return strings.Join(warnings, "; ")
	}
	return "QA gate passed."
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
