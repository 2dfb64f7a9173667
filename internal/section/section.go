// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package section produces one bounded-size notebook section per outline step.
package section

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/notebook-engine/internal/jsonutil"
	"github.com/pdiddy/notebook-engine/internal/llm"
	"github.com/pdiddy/notebook-engine/internal/prompt"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

// Token bounds for a section.
const (
	MinTokens = 800
	MaxTokens = 1500

	fallbackTokens  = 1000
	excerptLimit    = 500
	sectionTemp     = 0.2
	maxPreviousHint = 8
)

// InvalidSectionError reports a section that failed structural validation.
// The coordinator treats it as retryable.
type InvalidSectionError struct {
	Number int
	Issues []string
}

func (e *InvalidSectionError) Error() string {
	return fmt.Sprintf("section %d invalid: %s", e.Number, strings.Join(e.Issues, "; "))
}

// Generator produces sections.
type Generator struct {
	llm       llm.Completer
	prompts   *prompt.Loader
	maxTokens int
	logger    zerolog.Logger
}

// NewGenerator returns a Generator. A nil prompts loader uses built-in templates.
func NewGenerator(c llm.Completer, prompts *prompt.Loader, cfg types.SectionConfig, logger zerolog.Logger) *Generator {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = MaxTokens
	}
	return &Generator{
		llm:       c,
		prompts:   prompts,
		maxTokens: maxTokens,
		logger:    logger.With().Str("component", "section").Logger(),
	}
}

// Generate writes section number (1-based) of o. previous holds sections
// already completed, used only for continuity. An unparseable reply yields a
// fallback section instead of an error; transport errors and validation
// failures are returned for the caller to retry.
func (g *Generator) Generate(ctx context.Context, o *types.Outline, number int, previous []types.Section) (types.Section, error) {
	step, ok := o.Step(number)
	if !ok {
		return types.Section{}, fmt.Errorf("section %d out of range (outline has %d steps)", number, len(o.Steps))
	}

	text, err := g.prompts.Render(prompt.Section, prompt.SectionData{
		Title:         o.Title,
		Difficulty:    difficulty(o),
		Audience:      prompt.Audience(difficulty(o)),
		Objectives:    o.Objectives,
		SectionNumber: number,
		TotalSections: len(o.Steps),
		Step:          step,
		Previous:      digest(previous, number),
		MinTokens:     MinTokens,
		MaxTokens:     MaxTokens,
	})
	if err != nil {
		return types.Section{}, err
	}

	reply, err := g.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: prompt.SectionSystem},
			{Role: "user", Content: text},
		},
		Temperature: llm.Temp(sectionTemp),
		MaxTokens:   g.maxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return types.Section{}, fmt.Errorf("requesting section %d: %w", number, err)
	}

	var sec types.Section
	if err := jsonutil.Decode(reply, &sec); err != nil {
		g.logger.Warn().Err(err).Int("section", number).Msg("section reply not parseable, using fallback")
		return Fallback(number, step, reply), nil
	}

	sec.Number = number
	if strings.TrimSpace(sec.Title) == "" {
		sec.Title = step.Title
	}
	sec.Content = dropBlank(sec.Content)

	blocking, warnings := Validate(sec)
	for _, w := range warnings {
		g.logger.Debug().Int("section", number).Str("warning", w).Msg("section warning")
	}
	if len(blocking) > 0 {
		return types.Section{}, &InvalidSectionError{Number: number, Issues: blocking}
	}
	return sec, nil
}

// Validate checks a section's structure. Blocking issues reject the section;
// warnings are informational.
func Validate(s types.Section) (blocking, warnings []string) {
	if len(s.Content) == 0 {
		return []string{"Section has no content"}, nil
	}
	if s.CountKind(types.CellMarkdown) == 0 {
		blocking = append(blocking, "Missing markdown cell")
	}
	if s.CountKind(types.CellCode) == 0 {
		blocking = append(blocking, "Missing code cell")
	}
	switch {
	case s.EstimatedTokens == 0:
		warnings = append(warnings, "Estimated tokens not reported")
	case s.EstimatedTokens < MinTokens:
		blocking = append(blocking, fmt.Sprintf("Estimated tokens %d below minimum %d", s.EstimatedTokens, MinTokens))
	case s.EstimatedTokens > MaxTokens:
		blocking = append(blocking, fmt.Sprintf("Estimated tokens %d exceed maximum %d", s.EstimatedTokens, MaxTokens))
	}
	return blocking, warnings
}

// Fallback builds a minimal section that passes Validate, carrying an
// excerpt of whatever the model returned.
func Fallback(number int, step types.OutlineStep, raw string) types.Section {
	title := strings.TrimSpace(step.Title)
	if title == "" {
		title = fmt.Sprintf("Section %d", number)
	}
	excerpt := strings.TrimSpace(raw)
	if r := []rune(excerpt); len(r) > excerptLimit {
		excerpt = string(r[:excerptLimit])
	}
	if excerpt == "" {
		excerpt = "Content for this step could not be generated automatically."
	}
	return types.Section{
		Number: number,
		Title:  title,
		Content: []types.Cell{
			{Kind: types.CellMarkdown, Source: fmt.Sprintf("## Section %d: %s\n\n%s", number, title, excerpt)},
			{Kind: types.CellCode, Source: fmt.Sprintf("print(%q)", fmt.Sprintf("Section %d: %s", number, title))},
		},
		EstimatedTokens: fallbackTokens,
		Fallback:        true,
	}
}

// digest summarises completed sections before number, most recent last.
func digest(previous []types.Section, number int) []prompt.PreviousSection {
	var out []prompt.PreviousSection
	for _, p := range previous {
		if p.Number <= 0 || p.Number >= number {
			continue
		}
		out = append(out, prompt.PreviousSection{Number: p.Number, Title: p.Title, Hint: p.NextSectionHint})
	}
	if len(out) > maxPreviousHint {
		out = out[len(out)-maxPreviousHint:]
	}
	return out
}

func dropBlank(cells []types.Cell) []types.Cell {
	out := cells[:0]
	for _, c := range cells {
		if strings.TrimSpace(c.Source) != "" {
			out = append(out, c)
		}
	}
	return out
}

func difficulty(o *types.Outline) types.Difficulty {
	if o.Difficulty.Valid() {
		return o.Difficulty
	}
	return types.DifficultyBeginner
}
