// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"github.com/pdiddy/notebook-engine/pkg/types"
)

// Template names. An override directory may supply <name>.tmpl for any of them.
const (
	Outline       = "outline"
	OutlineRepair = "outline_repair"
	Section       = "section"
	SemanticAudit = "semantic_audit"
)

// System messages sent ahead of the rendered user prompt.
const (
	OutlineSystem  = "You are an expert instructional designer who writes hands-on Jupyter notebook lessons. You reply with a single JSON object and nothing else."
	SectionSystem  = "You are an expert technical writer producing one section of a Jupyter notebook lesson. You reply with a single JSON object and nothing else."
	SemanticSystem = "You are a rigorous notebook quality reviewer. Identify filler, placeholder, or incomplete instructional content. Reply with JSON only."
)

// JSONOnlyAddendum is appended when a reply could not be parsed.
const JSONOnlyAddendum = "\n\nIMPORTANT: Respond with ONLY the JSON object. No prose, no markdown fences, no commentary before or after it."

// Audience returns the framing sentence for a difficulty tier.
func Audience(d types.Difficulty) string {
	switch d {
	case types.DifficultyAdvanced:
		return "experienced practitioners who want depth, trade-offs, and production concerns; skip basic explanations"
	case types.DifficultyIntermediate:
		return "developers comfortable with Python who know the basics and want practical patterns and best practices"
	default:
		return "newcomers with basic Python knowledge; explain every concept plainly, define jargon, and keep code short"
	}
}

// OutlineData fills the outline template.
type OutlineData struct {
	Subject        string
	Difficulty     types.Difficulty
	Audience       string
	Context        string
	TokenCeiling   int
	MinObjectives  int
	MaxObjectives  int
	MinSteps       int
	MaxSteps       int
	MinAssessments int
}

// RepairData fills the outline repair template.
type RepairData struct {
	Issues       []string
	OutlineJSON  string
	TokenCeiling int
}

// PreviousSection summarises an earlier section for continuity.
type PreviousSection struct {
	Number int
	Title  string
	Hint   string
}

// SectionData fills the section template.
type SectionData struct {
	Title         string
	Difficulty    types.Difficulty
	Audience      string
	Objectives    []string
	SectionNumber int
	TotalSections int
	Step          types.OutlineStep
	Previous      []PreviousSection
	MinTokens     int
	MaxTokens     int
}

// Excerpt is a condensed section sent to the semantic audit.
type Excerpt struct {
	Number int
	Title  string
	Text   string
}

// SemanticData fills the semantic audit template.
type SemanticData struct {
	Title    string
	Excerpts []Excerpt
	Padded   int
}

var builtins = map[string]string{
	Outline: `Create a lesson outline for a hands-on Jupyter notebook.

Subject: {{.Subject}}
Difficulty: {{.Difficulty}}
Audience: {{.Audience}}
{{- if .Context}}

Additional context from the requester:
{{.Context}}
{{- end}}

Return a JSON object with exactly these fields:
{
  "title": "string",
  "overview": "2-3 sentence description of what the reader builds",
  "objectives": ["{{.MinObjectives}}-{{.MaxObjectives}} measurable learning objectives"],
  "prerequisites": ["string"],
  "setup": {"requirements": ["pip packages"], "environment": ["ENV_VAR names"], "commands": ["shell commands"]},
  "outline": [{"step": 1, "title": "string", "type": "setup|concept|implementation|exercise|deployment", "estimated_tokens": 300, "content_type": "markdown + code"}],
  "exercises": [{"title": "string", "difficulty": "easy|medium|hard", "estimated_tokens": 200}],
  "assessments": [{"question": "string", "options": ["A", "B", "C", "D"], "correct_index": 0, "explanation": "string"}],
  "summary": "string",
  "next_steps": "string",
  "references": ["url or citation"],
  "estimated_total_tokens": 3000,
  "target_reading_time": "15-20 minutes"
}

Constraints:
- {{.MinObjectives}} to {{.MaxObjectives}} objectives.
- {{.MinSteps}} to {{.MaxSteps}} outline steps, numbered from 1 in order.
- At least {{.MinAssessments}} multiple-choice assessments; correct_index is 0-based and must point at one of the options.
- estimated_total_tokens must not exceed {{.TokenCeiling}}.
- Every step must be teachable in one short section with at least one runnable code cell.
`,

	OutlineRepair: `The lesson outline below fails these constraints:
{{range .Issues}}- {{.}}
{{end}}
Fix every listed problem while keeping the subject, tone, and any valid content.
Keep estimated_total_tokens at or below {{.TokenCeiling}}.
Return the complete corrected outline as a single JSON object with the same fields.

Current outline:
{{.OutlineJSON}}
`,

	Section: `Write section {{.SectionNumber}} of {{.TotalSections}} for the notebook "{{.Title}}".

Audience: {{.Audience}} (difficulty: {{.Difficulty}})
{{- if .Objectives}}
Lesson objectives:
{{range .Objectives}}- {{.}}
{{end}}
{{- end}}
This section covers step {{.Step.Step}}: "{{.Step.Title}}" (type: {{.Step.Type}}, content: {{.Step.ContentType}}).
{{- if .Previous}}

{{len .Previous}} previous section(s) are already written. Continue from them without repeating their material:
{{range .Previous}}- Section {{.Number}}: {{.Title}}{{if .Hint}} (led into: {{.Hint}}){{end}}
{{end}}
{{- end}}

Return a JSON object:
{
  "section_number": {{.SectionNumber}},
  "title": "string",
  "content": [
    {"cell_type": "markdown", "source": "explanation in markdown"},
    {"cell_type": "code", "source": "runnable python"}
  ],
  "callouts": [{"type": "tip|warning|note", "message": "string"}],
  "estimated_tokens": 1000,
  "prerequisites_check": ["string"],
  "next_section_hint": "string"
}

Rules:
- Include at least one markdown cell and at least one code cell.
- Code must run as-is in a fresh Python 3 kernel after the setup cells; never hardcode credentials.
- estimated_tokens must be between {{.MinTokens}} and {{.MaxTokens}}.
- No placeholder text such as TODO, TBD, or FIXME.
`,

	SemanticAudit: `Review the notebook "{{.Title}}" for filler, placeholder, repetitive, or incomplete instructional content.
{{- if .Padded}}
Note: {{.Padded}} outline entries were filled in automatically and may be generic.
{{- end}}

Section excerpts:
{{range .Excerpts}}
[Section {{.Number}}] {{.Title}}
{{.Text}}
{{end}}
Respond with JSON:
{"status": "pass|warn|fail", "issues": ["string"], "filler_sections": [1], "recommendations": ["string"]}
Use "fail" only when content is mostly filler or unusable.
`,
}
