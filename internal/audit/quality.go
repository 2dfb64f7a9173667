// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/pdiddy/notebook-engine/pkg/types"
)

// Quality thresholds.
const (
	MinQualityScore = 90
	tokensPerMinute = 200
)

var (
	titleRe     = regexp.MustCompile(`^#\s+`)
	stepHeadRe  = regexp.MustCompile(`(?i)^##\s+(Step|Section)\s+\d+`)
	knowCheckRe = regexp.MustCompile(`(?i)knowledge\s*check`)
	mcqRe       = regexp.MustCompile(`render_mcq\s*\(|import\s+ipywidgets\s+as\s+widgets`)
)

// QualityScorer grades a notebook from 0 to 100. The score is advisory.
type QualityScorer struct{}

// Score inspects every cell of nb.
func (QualityScorer) Score(nb *types.Notebook) types.QualityMetrics {
	var m types.QualityMetrics
	for _, c := range nb.Cells {
		src := c.Text()
		m.EstimatedTokens += estimateTokens(src)
		switch c.Kind {
		case types.CellMarkdown:
			m.MarkdownCells++
			lower := strings.ToLower(src)
			if titleRe.MatchString(src) {
				m.HasTitle = true
			}
			if strings.Contains(lower, "objective") {
				m.HasObjectives = true
			}
			if strings.Contains(lower, "setup") {
				m.HasSetup = true
			}
			if strings.Contains(lower, "question") || knowCheckRe.MatchString(src) {
				m.HasAssessments = true
			}
			if stepHeadRe.MatchString(src) {
				m.StepCount++
			}
		case types.CellCode:
			m.CodeCells++
			if mcqRe.MatchString(src) {
				m.HasAssessments = true
			}
		}
	}
	if n := m.MarkdownCells + m.CodeCells; n > 0 {
		m.MarkdownRatio = round2(float64(m.MarkdownCells) / float64(n))
	}
	m.ReadingTimeMinutes = math.Round(float64(m.EstimatedTokens)/tokensPerMinute*10) / 10

	score := 0
	for _, s := range []struct {
		ok    bool
		issue string
	}{
		{m.HasTitle, "Missing a top-level title"},
		{m.HasObjectives, "Missing learning objectives"},
		{m.HasSetup, "Missing a setup section"},
		{m.HasAssessments, "Missing knowledge checks"},
	} {
		if s.ok {
			score += 10
		} else {
			m.Issues = append(m.Issues, s.issue)
		}
	}

	switch {
	case m.StepCount >= 6 && m.StepCount <= 15:
		score += 20
	case m.StepCount >= 3:
		score += 10
		m.Issues = append(m.Issues, fmt.Sprintf("Step count %d outside 6-15", m.StepCount))
	default:
		m.Issues = append(m.Issues, fmt.Sprintf("Only %d step headings", m.StepCount))
	}

	switch r := m.MarkdownRatio; {
	case r >= 0.4 && r <= 0.7:
		score += 20
	case r >= 0.3 && r <= 0.8:
		score += 10
		m.Issues = append(m.Issues, fmt.Sprintf("Markdown ratio %.2f outside 0.40-0.70", r))
	default:
		m.Issues = append(m.Issues, fmt.Sprintf("Markdown ratio %.2f far from 0.40-0.70", r))
	}

	switch t := m.EstimatedTokens; {
	case t >= 2000 && t <= 4000:
		score += 20
	case t >= 1000 && t <= 6000:
		score += 10
		m.Issues = append(m.Issues, fmt.Sprintf("Estimated %d tokens outside 2000-4000", t))
	default:
		m.Issues = append(m.Issues, fmt.Sprintf("Estimated %d tokens far from 2000-4000", t))
	}

	m.Score = min(score, 100)
	m.MeetsStandards = m.Score >= MinQualityScore
	return m
}

// estimateTokens approximates four characters per token.
func estimateTokens(s string) int {
	return int(math.Round(float64(len(s)) / 4))
}
