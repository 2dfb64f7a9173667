// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notebook assembles the final nbformat 4 notebook from an outline
// and its generated sections. Building is deterministic and makes no
// external calls.
package notebook

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/notebook-engine/pkg/types"
)

// BuilderName identifies this builder in notebook provenance.
const BuilderName = "notebook-engine"

// maxChecksPerSection bounds how many knowledge checks follow one section;
// anything beyond goes to the bonus group at the end.
const maxChecksPerSection = 2

// Options configures a Builder.
type Options struct {
	// Version is recorded in provenance and the branding cell.
	Version string

	// BaseURL and Model are written into the provider setup cell.
	BaseURL string
	Model   string

	// Now supplies the creation timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Builder turns an outline and sections into a notebook.
type Builder struct {
	opts   Options
	logger zerolog.Logger
}

// NewBuilder returns a Builder.
func NewBuilder(opts Options, logger zerolog.Logger) *Builder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com"
	}
	return &Builder{opts: opts, logger: logger.With().Str("component", "builder").Logger()}
}

// Build emits, in order: scaffold cells, title, objectives, prerequisites,
// setup, each section followed by the knowledge checks it earns, any bonus
// checks, and the troubleshooting cell. sections must be in ascending
// number order. Malformed assessments are skipped with a warning.
func (b *Builder) Build(o *types.Outline, sections []types.Section) (*types.Notebook, error) {
	for i := 1; i < len(sections); i++ {
		if sections[i].Number <= sections[i-1].Number {
			return nil, fmt.Errorf("sections out of order: %d follows %d", sections[i].Number, sections[i-1].Number)
		}
	}

	var cells []types.NotebookCell
	add := func(kind types.CellKind, text string, tags ...string) {
		c := types.NewNotebookCell(kind, text)
		if len(tags) > 0 {
			c.Metadata["tags"] = tags
		}
		cells = append(cells, c)
	}

	add(types.CellMarkdown, brandingCell(b.opts.Version), TagScaffold)
	add(types.CellCode, envDetectCell, TagScaffold)
	add(types.CellMarkdown, secretsPrimerCell, TagScaffold)
	add(types.CellCode, dotenvCell, TagScaffold)
	add(types.CellCode, providerCell(b.opts.BaseURL, b.opts.Model), TagScaffold)
	add(types.CellCode, smokeTestCell, TagScaffold)
	add(types.CellCode, widgetBootstrapCell, TagScaffold)

	title := fmt.Sprintf("# %s\n", o.Title)
	if ov := strings.TrimSpace(o.Overview); ov != "" {
		title += "\n" + ov + "\n"
	}
	add(types.CellMarkdown, title, TagTitle)

	if len(o.Objectives) > 0 {
		var sb strings.Builder
		sb.WriteString("## Learning Objectives\n\nBy the end of this notebook, you will be able to:\n\n")
		for i, obj := range o.Objectives {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, obj)
		}
		add(types.CellMarkdown, sb.String(), TagObjectives)
	}

	if len(o.Prerequisites) > 0 {
		var sb strings.Builder
		sb.WriteString("## Prerequisites\n\n")
		for _, p := range o.Prerequisites {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
		add(types.CellMarkdown, sb.String(), TagPrerequisites)
	}

	b.addSetup(o.Setup, add)

	pending := b.validAssessments(o.Assessments)
	introDone := false
	intro := func() {
		if introDone {
			return
		}
		add(types.CellMarkdown, knowledgeCheckIntro, TagAssessment)
		add(types.CellCode, mcqHelperCell, TagAssessment)
		introDone = true
	}

	for i, sec := range sections {
		tag := SectionTag(sec.Number)
		for _, c := range sec.Content {
			switch c.Kind {
			case types.CellMarkdown:
				add(types.CellMarkdown, c.Source, tag)
			case types.CellCode:
				add(types.CellCode, c.Source, tag)
			default:
				b.logger.Warn().Int("section", sec.Number).Str("kind", string(c.Kind)).Msg("unknown cell kind, emitting as markdown")
				add(types.CellMarkdown, c.Source, tag)
			}
		}

		if len(pending) == 0 {
			continue
		}
		remaining := len(sections) - i
		per := int(math.Ceil(float64(len(pending)) / float64(remaining)))
		if per < 1 {
			per = 1
		}
		if per > maxChecksPerSection {
			per = maxChecksPerSection
		}
		if per > len(pending) {
			per = len(pending)
		}

		intro()
		add(types.CellMarkdown, fmt.Sprintf("### Knowledge Check – %s\n", sectionHeading(sec)), TagAssessment)
		for _, a := range pending[:per] {
			add(types.CellCode, mcqCall(a), TagAssessment)
		}
		pending = pending[per:]
	}

	if len(pending) > 0 {
		intro()
		add(types.CellMarkdown, "### Bonus Knowledge Checks\n", TagAssessment)
		for _, a := range pending {
			add(types.CellCode, mcqCall(a), TagAssessment)
		}
	}

	add(types.CellMarkdown, troubleshootingCell, TagTroubleshooting)

	return &types.Notebook{
		Cells: cells,
		Metadata: types.NotebookMetadata{
			KernelSpec:   types.KernelSpec{DisplayName: "Python 3", Language: "python", Name: "python3"},
			LanguageInfo: types.LanguageInfo{Name: "python", Version: "3.10"},
			Provenance: &types.Provenance{
				SchemaVersion: types.ProvenanceSchemaVersion,
				CreatedAt:     b.opts.Now().UTC().Format(time.RFC3339),
				Title:         o.Title,
				Builder:       types.BuilderInfo{Name: BuilderName, Version: b.opts.Version},
			},
		},
		NBFormat:      types.NBFormat,
		NBFormatMinor: types.NBFormatMinor,
	}, nil
}

func (b *Builder) addSetup(setup types.SetupSpec, add func(types.CellKind, string, ...string)) {
	if len(setup.Requirements) == 0 && len(setup.Environment) == 0 && len(setup.Commands) == 0 {
		return
	}
	var sb strings.Builder
	sb.WriteString("## Setup\n\nInstall the required packages and configure the environment.\n")
	if len(setup.Environment) > 0 {
		sb.WriteString("\nEnvironment variables:\n\n")
		for _, e := range setup.Environment {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
	}
	if len(setup.Commands) > 0 {
		sb.WriteString("\nCommands:\n\n")
		for _, c := range setup.Commands {
			fmt.Fprintf(&sb, "    %s\n", c)
		}
	}
	add(types.CellMarkdown, sb.String(), TagSetup)
	if len(setup.Requirements) > 0 {
		add(types.CellCode, installCell(setup.Requirements), TagSetup)
	}
}

func (b *Builder) validAssessments(in []types.Assessment) []types.Assessment {
	out := make([]types.Assessment, 0, len(in))
	for i, a := range in {
		if err := a.Validate(); err != nil {
			b.logger.Warn().Err(err).Int("assessment", i).Msg("skipping malformed assessment")
			continue
		}
		out = append(out, a)
	}
	return out
}

func sectionHeading(s types.Section) string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	return fmt.Sprintf("Section %d", s.Number)
}
