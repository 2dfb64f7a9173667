// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package outline

import (
	"fmt"
	"strings"

	"github.com/pdiddy/notebook-engine/pkg/types"
)

// Shape constraints every outline must satisfy.
const (
	MinObjectives  = 3
	MaxObjectives  = 5
	MinSteps       = 6
	MaxSteps       = 15
	MinAssessments = 4

	DefaultTokenCeiling = 4000
	paddedStepTokens    = 250
)

var defaultObjectives = []string{
	"Understand core concepts",
	"Set up the environment",
	"Complete a first working example",
}

// Validate returns one message per violated constraint. An empty result
// means the outline is acceptable.
func Validate(o *types.Outline, ceiling int) []string {
	if ceiling <= 0 {
		ceiling = DefaultTokenCeiling
	}
	var issues []string
	if strings.TrimSpace(o.Title) == "" {
		issues = append(issues, "Missing title")
	}
	if n := len(nonEmpty(o.Objectives)); n < MinObjectives || n > MaxObjectives {
		issues = append(issues, fmt.Sprintf("Need %d-%d objectives (got %d)", MinObjectives, MaxObjectives, n))
	}
	switch n := len(o.Steps); {
	case n < MinSteps:
		issues = append(issues, fmt.Sprintf("Need at least %d steps (got %d)", MinSteps, n))
	case n > MaxSteps:
		issues = append(issues, fmt.Sprintf("Too many steps: %d (max %d)", n, MaxSteps))
	}
	for i, s := range o.Steps {
		if s.Step != i+1 {
			issues = append(issues, fmt.Sprintf("Step at position %d is numbered %d", i+1, s.Step))
			break
		}
	}
	if n := len(validAssessments(o.Assessments)); n < MinAssessments {
		issues = append(issues, fmt.Sprintf("Need at least %d valid assessments (got %d)", MinAssessments, n))
	}
	if o.EstimatedTotalTokens > ceiling {
		issues = append(issues, fmt.Sprintf("Estimated tokens %d exceed limit of %d", o.EstimatedTotalTokens, ceiling))
	}
	return issues
}

// normalize fixes cosmetic problems in place: trims the title, renumbers
// steps from 1, and fills empty step titles.
func normalize(o *types.Outline) {
	o.Title = strings.TrimSpace(o.Title)
	o.Objectives = nonEmpty(o.Objectives)
	for i := range o.Steps {
		o.Steps[i].Step = i + 1
		if strings.TrimSpace(o.Steps[i].Title) == "" {
			o.Steps[i].Title = fmt.Sprintf("Step %d", i+1)
		}
		if o.Steps[i].Type == "" {
			o.Steps[i].Type = types.StepConcept
		}
	}
}

// Repair deterministically forces o to satisfy every constraint. It never
// calls out; padding uses fixed filler. It returns the repaired copy and the
// number of entries it had to invent.
func Repair(o *types.Outline, subject string, ceiling int) (*types.Outline, int) {
	if ceiling <= 0 {
		ceiling = DefaultTokenCeiling
	}
	c := o.Clone()
	padded := 0

	if c.Title = strings.TrimSpace(c.Title); c.Title == "" {
		c.Title = strings.TrimSpace(subject)
		if c.Title == "" {
			c.Title = "Untitled Notebook"
		}
	}

	c.Objectives = nonEmpty(c.Objectives)
	for _, d := range defaultObjectives {
		if len(c.Objectives) >= MinObjectives {
			break
		}
		if !contains(c.Objectives, d) {
			c.Objectives = append(c.Objectives, d)
			padded++
		}
	}
	for i := 1; len(c.Objectives) < MinObjectives; i++ {
		c.Objectives = append(c.Objectives, fmt.Sprintf("Practice skill %d", i))
		padded++
	}
	if len(c.Objectives) > MaxObjectives {
		c.Objectives = c.Objectives[:MaxObjectives]
	}

	if len(c.Steps) > MaxSteps {
		c.Steps = c.Steps[:MaxSteps]
	}
	for len(c.Steps) < MinSteps {
		n := len(c.Steps) + 1
		c.Steps = append(c.Steps, types.OutlineStep{
			Step:            n,
			Title:           fmt.Sprintf("Step %d: Additional Content", n),
			Type:            types.StepConcept,
			EstimatedTokens: paddedStepTokens,
			ContentType:     "markdown + code",
		})
		padded++
	}
	normalize(c)

	c.Assessments = validAssessments(c.Assessments)
	for len(c.Assessments) < MinAssessments {
		n := len(c.Assessments) + 1
		c.Assessments = append(c.Assessments, types.Assessment{
			Question:     fmt.Sprintf("Quick check %d: Basic understanding", n),
			Options:      []string{"A", "B", "C", "D"},
			CorrectIndex: 0,
			Explanation:  "Review the outline section to find the correct answer.",
		})
		padded++
	}

	if c.EstimatedTotalTokens > ceiling {
		c.EstimatedTotalTokens = ceiling
	}
	return c, padded
}

func validAssessments(in []types.Assessment) []types.Assessment {
	out := make([]types.Assessment, 0, len(in))
	for _, a := range in {
		if a.Validate() == nil {
			out = append(out, a)
		}
	}
	return out
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
