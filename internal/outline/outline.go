// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package outline produces the validated lesson outline for a subject.
//
// Generation asks the model once, retries once with a JSON-only reminder if
// the reply cannot be parsed, then validates. An invalid outline gets one
// model-driven repair at temperature 0 and, if still invalid, a
// deterministic repair that pads with fixed filler. In strict mode the
// deterministic repair is refused instead.
package outline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/notebook-engine/internal/jsonutil"
	"github.com/pdiddy/notebook-engine/internal/llm"
	"github.com/pdiddy/notebook-engine/internal/prompt"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

var (
	// ErrNoJSON means neither attempt produced a parseable outline.
	ErrNoJSON = errors.New("no JSON outline in model reply")

	// ErrOutlineRejected means strict mode refused a padded outline.
	ErrOutlineRejected = errors.New("outline rejected: only valid after deterministic padding")
)

const (
	generateTemperature = 0.1
	repairTemperature   = 0.0
)

// RepairLevel records how far repair had to go.
type RepairLevel string

const (
	RepairNone          RepairLevel = "none"
	RepairLLM           RepairLevel = "llm"
	RepairDeterministic RepairLevel = "deterministic"
)

// Request describes the notebook to plan.
type Request struct {
	Subject    string
	Difficulty types.Difficulty
	Context    string
}

// Result is a validated outline plus repair provenance.
type Result struct {
	Outline *types.Outline
	Repair  RepairLevel

	// Issues are the violations found on the first parse.
	Issues []string

	// Padded counts filler entries added by deterministic repair.
	Padded int
}

// Generator produces outlines.
type Generator struct {
	llm     llm.Completer
	prompts *prompt.Loader
	cfg     types.OutlineConfig
	logger  zerolog.Logger
}

// NewGenerator returns a Generator. A nil prompts loader uses built-in templates.
func NewGenerator(c llm.Completer, prompts *prompt.Loader, cfg types.OutlineConfig, logger zerolog.Logger) *Generator {
	if cfg.TokenCeiling <= 0 {
		cfg.TokenCeiling = DefaultTokenCeiling
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	return &Generator{
		llm:     c,
		prompts: prompts,
		cfg:     cfg,
		logger:  logger.With().Str("component", "outline").Logger(),
	}
}

// Generate returns an outline satisfying Validate. It fails only when the
// request cannot be sent, no JSON can be recovered from two attempts, or
// strict mode rejects a padded outline.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Subject) == "" {
		return nil, errors.New("subject is required")
	}
	if !req.Difficulty.Valid() {
		req.Difficulty = types.DifficultyBeginner
	}

	text, err := g.prompts.Render(prompt.Outline, prompt.OutlineData{
		Subject:        req.Subject,
		Difficulty:     req.Difficulty,
		Audience:       prompt.Audience(req.Difficulty),
		Context:        req.Context,
		TokenCeiling:   g.cfg.TokenCeiling,
		MinObjectives:  MinObjectives,
		MaxObjectives:  MaxObjectives,
		MinSteps:       MinSteps,
		MaxSteps:       MaxSteps,
		MinAssessments: MinAssessments,
	})
	if err != nil {
		return nil, err
	}

	o, err := g.requestOutline(ctx, text)
	if err != nil {
		return nil, err
	}
	normalize(o)
	o.Difficulty = req.Difficulty

	res := &Result{Outline: o, Repair: RepairNone}
	res.Issues = Validate(o, g.cfg.TokenCeiling)
	if len(res.Issues) == 0 {
		return res, nil
	}
	g.logger.Info().Strs("issues", res.Issues).Msg("outline invalid, requesting repair")

	current := o
	repaired, err := g.repairWithModel(ctx, o, res.Issues)
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		g.logger.Warn().Err(err).Msg("outline repair call failed, keeping original")
	default:
		repaired.Difficulty = req.Difficulty
		remaining := Validate(repaired, g.cfg.TokenCeiling)
		if len(remaining) == 0 {
			res.Outline = repaired
			res.Repair = RepairLLM
			return res, nil
		}
		// A repair that made things worse is discarded.
		if len(remaining) <= len(res.Issues) {
			current = repaired
		}
	}

	remaining := Validate(current, g.cfg.TokenCeiling)
	if g.cfg.Strict {
		return nil, fmt.Errorf("%w: %s", ErrOutlineRejected, strings.Join(remaining, "; "))
	}
	fixed, padded := Repair(current, req.Subject, g.cfg.TokenCeiling)
	g.logger.Warn().
		Strs("issues", remaining).
		Int("padded", padded).
		Msg("outline padded by deterministic repair")
	res.Outline = fixed
	res.Repair = RepairDeterministic
	res.Padded = padded
	return res, nil
}

// requestOutline calls the model and parses the reply, retrying once with a
// JSON-only addendum on a parse failure.
func (g *Generator) requestOutline(ctx context.Context, userPrompt string) (*types.Outline, error) {
	for attempt := 1; attempt <= 2; attempt++ {
		content := userPrompt
		if attempt == 2 {
			content += prompt.JSONOnlyAddendum
		}
		reply, err := g.llm.Complete(ctx, llm.Request{
			Messages: []llm.Message{
				{Role: "system", Content: prompt.OutlineSystem},
				{Role: "user", Content: content},
			},
			Temperature: llm.Temp(generateTemperature),
			MaxTokens:   g.cfg.MaxTokens,
			JSONMode:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("requesting outline: %w", err)
		}

		var o types.Outline
		if err := jsonutil.Decode(reply, &o); err != nil {
			g.logger.Warn().Err(err).Int("attempt", attempt).Msg("outline reply not parseable")
			continue
		}
		return &o, nil
	}
	return nil, ErrNoJSON
}

func (g *Generator) repairWithModel(ctx context.Context, o *types.Outline, issues []string) (*types.Outline, error) {
	current, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling outline: %w", err)
	}
	text, err := g.prompts.Render(prompt.OutlineRepair, prompt.RepairData{
		Issues:       issues,
		OutlineJSON:  string(current),
		TokenCeiling: g.cfg.TokenCeiling,
	})
	if err != nil {
		return nil, err
	}

	reply, err := g.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: prompt.OutlineSystem},
			{Role: "user", Content: text},
		},
		Temperature: llm.Temp(repairTemperature),
		MaxTokens:   g.cfg.MaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("requesting outline repair: %w", err)
	}

	var repaired types.Outline
	if err := jsonutil.Decode(reply, &repaired); err != nil {
		return nil, fmt.Errorf("parsing outline repair: %w", err)
	}
	normalize(&repaired)
	return &repaired, nil
}
