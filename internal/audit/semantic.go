// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/notebook-engine/internal/jsonutil"
	"github.com/pdiddy/notebook-engine/internal/llm"
	"github.com/pdiddy/notebook-engine/internal/prompt"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

// Semantic audit request limits.
const (
	ExcerptChars      = 800
	semanticMaxTokens = 400
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	digitsRe     = regexp.MustCompile(`\d+`)
)

// SemanticInput is what the semantic audit reviews.
type SemanticInput struct {
	Outline  *types.Outline
	Sections []types.Section
	Padded   int
}

// Endpoint describes where the audit model lives, for the skip decision.
type Endpoint struct {
	BaseURL        string
	HasCredentials bool
}

// SemanticAuditor asks a model to flag filler and incomplete sections.
type SemanticAuditor struct {
	c        llm.Completer
	prompts  *prompt.Loader
	endpoint Endpoint
	logger   zerolog.Logger
}

// NewSemanticAuditor returns a SemanticAuditor. prompts may be nil.
func NewSemanticAuditor(c llm.Completer, prompts *prompt.Loader, ep Endpoint, logger zerolog.Logger) *SemanticAuditor {
	return &SemanticAuditor{
		c:        c,
		prompts:  prompts,
		endpoint: ep,
		logger:   logger.With().Str("component", "semantic_audit").Logger(),
	}
}

// Evaluate degrades to warn instead of failing when the audit cannot run or
// its reply cannot be read. Only a model verdict can produce fail.
func (a *SemanticAuditor) Evaluate(ctx context.Context, in SemanticInput) types.SemanticReport {
	if !a.endpoint.HasCredentials {
		a.logger.Warn().Str("reason", "missing_api_key").Msg("semantic audit skipped")
		return skipped("Semantic audit skipped: missing API key.", "Provide an API key to enable the semantic audit.")
	}
	if llm.IsLocalEndpoint(a.endpoint.BaseURL) {
		a.logger.Info().Str("base_url", a.endpoint.BaseURL).Msg("semantic audit skipped for local endpoint")
		return skipped("Semantic audit skipped for local endpoint.", "Run the semantic audit against a hosted provider.")
	}

	title := ""
	if in.Outline != nil {
		title = in.Outline.Title
	}
	data := prompt.SemanticData{Title: title, Padded: in.Padded}
	for _, s := range in.Sections {
		data.Excerpts = append(data.Excerpts, prompt.Excerpt{Number: s.Number, Title: s.Title, Text: excerpt(s)})
	}
	user, err := a.prompts.Render(prompt.SemanticAudit, data)
	if err != nil {
		return degraded("Semantic audit prompt failed: "+err.Error(), "")
	}

	reply, err := a.c.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: prompt.SemanticSystem},
			{Role: "user", Content: user},
		},
		Temperature: llm.Temp(0),
		MaxTokens:   semanticMaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("semantic audit request failed")
		return degraded("Semantic audit request failed: "+err.Error(), "")
	}

	report, ok := parseSemantic(reply)
	if !ok {
		a.logger.Warn().Msg("semantic audit reply unparseable")
		return degraded("Semantic audit returned an unparseable response.", reply)
	}
	report.RawResponse = reply
	a.logger.Info().
		Str("status", string(report.Status)).
		Int("issues", len(report.Issues)).
		Ints("filler_sections", report.FillerSections).
		Msg("semantic audit complete")
	return report
}

func excerpt(s types.Section) string {
	text := strings.TrimSpace(whitespaceRe.ReplaceAllString(s.Markdown(), " "))
	if r := []rune(text); len(r) > ExcerptChars {
		text = string(r[:ExcerptChars])
	}
	return text
}

func parseSemantic(reply string) (types.SemanticReport, bool) {
	var raw struct {
		Status          string            `json:"status"`
		Issues          []json.RawMessage `json:"issues"`
		FillerSections  []json.RawMessage `json:"filler_sections"`
		Recommendations []json.RawMessage `json:"recommendations"`
	}
	if err := jsonutil.Decode(reply, &raw); err != nil {
		return types.SemanticReport{}, false
	}

	status := types.GateStatus(strings.ToLower(strings.TrimSpace(raw.Status)))
	switch status {
	case types.StatusPass, types.StatusWarn, types.StatusFail:
	default:
		status = types.StatusWarn
	}
	return types.SemanticReport{
		Status:          status,
		Issues:          texts(raw.Issues),
		FillerSections:  sectionNumbers(raw.FillerSections),
		Recommendations: texts(raw.Recommendations),
	}, true
}

// texts renders each element as a string; non-string values keep their JSON.
func texts(in []json.RawMessage) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(r))
	}
	return out
}

// sectionNumbers accepts numbers or strings like "Section 3: filler".
func sectionNumbers(in []json.RawMessage) []int {
	out := make([]int, 0, len(in))
	for _, r := range in {
		var n int
		if err := json.Unmarshal(r, &n); err == nil {
			out = append(out, n)
			continue
		}
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			continue
		}
		if m := digitsRe.FindString(s); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				out = append(out, n)
			}
		}
	}
	return out
}

func skipped(issue, rec string) types.SemanticReport {
	return types.SemanticReport{
		Status:          types.StatusWarn,
		Issues:          []string{issue},
		FillerSections:  []int{},
		Recommendations: []string{rec},
		Skipped:         true,
		Note:            issue,
	}
}

func degraded(issue, raw string) types.SemanticReport {
	return types.SemanticReport{
		Status:          types.StatusWarn,
		Issues:          []string{issue},
		FillerSections:  []int{},
		Recommendations: []string{"Inspect the notebook manually for filler content."},
		RawResponse:     raw,
	}
}
