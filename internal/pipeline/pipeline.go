// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one notebook generation request end to end:
// outline, sections, assembly, then the QA, semantic, quality and
// compatibility gates. Stages run in that fixed order and only section
// generation is concurrent.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/notebook-engine/internal/audit"
	"github.com/pdiddy/notebook-engine/internal/checkpoint"
	"github.com/pdiddy/notebook-engine/internal/coordinator"
	"github.com/pdiddy/notebook-engine/internal/llm"
	"github.com/pdiddy/notebook-engine/internal/logging"
	"github.com/pdiddy/notebook-engine/internal/metrics"
	"github.com/pdiddy/notebook-engine/internal/notebook"
	"github.com/pdiddy/notebook-engine/internal/outline"
	"github.com/pdiddy/notebook-engine/internal/prompt"
	"github.com/pdiddy/notebook-engine/internal/retry"
	"github.com/pdiddy/notebook-engine/internal/section"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

// Request is one generation request.
type Request struct {
	Subject     string           `validate:"required"`
	Difficulty  types.Difficulty `validate:"omitempty,oneof=beginner intermediate advanced"`
	Context     string
	MaxSections int `validate:"gte=0,lte=15"`

	// RunID selects the checkpoint directory. Reusing the id of an
	// interrupted run resumes it. Empty allocates a new id.
	RunID string `validate:"omitempty,excludesall=/\\"`
}

// Authorizer decides whether a request may run.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) error
}

// AllowAll authorizes every request.
type AllowAll struct{}

// Authorize implements Authorizer.
func (AllowAll) Authorize(context.Context, Request) error { return nil }

// RecordSink stores successful runs.
type RecordSink interface {
	SaveRun(ctx context.Context, rec types.RunRecord) error
}

// Pipeline holds the collaborators shared by every run. It is safe to call
// Run concurrently; each run gets its own checkpoint directory and metrics.
type Pipeline struct {
	cfg      types.EngineConfig
	gen      llm.Completer
	auditor  llm.Completer
	auditEP  audit.Endpoint
	prompts  *prompt.Loader
	auth     Authorizer
	records  RecordSink
	version  string
	now      func() time.Time
	logger   zerolog.Logger
	validate *validator.Validate
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAuditor sets the completer and endpoint used by the semantic audit.
func WithAuditor(c llm.Completer, ep audit.Endpoint) Option {
	return func(p *Pipeline) {
		p.auditor = c
		p.auditEP = ep
	}
}

// WithPrompts sets the prompt loader.
func WithPrompts(l *prompt.Loader) Option {
	return func(p *Pipeline) { p.prompts = l }
}

// WithAuthorizer sets the request authorizer.
func WithAuthorizer(a Authorizer) Option {
	return func(p *Pipeline) { p.auth = a }
}

// WithRecordSink sets where successful runs are stored.
func WithRecordSink(r RecordSink) Option {
	return func(p *Pipeline) { p.records = r }
}

// WithVersion sets the builder version written into notebooks.
func WithVersion(v string) Option {
	return func(p *Pipeline) { p.version = v }
}

// WithClock overrides the clock used for notebook and record timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New returns a Pipeline that generates with gen. Without WithAuditor the
// semantic audit reuses gen and the generation endpoint.
func New(cfg types.EngineConfig, gen llm.Completer, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		gen:      gen,
		auth:     AllowAll{},
		now:      time.Now,
		logger:   zerolog.Nop(),
		validate: validator.New(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.auditor == nil {
		p.auditor = gen
		aud := AuditLLMConfig(cfg)
		p.auditEP = audit.Endpoint{BaseURL: aud.BaseURL, HasCredentials: strings.TrimSpace(aud.APIKey) != ""}
	}
	p.logger = p.logger.With().Str("component", "pipeline").Logger()
	return p
}

// Run executes one request. The returned Result is never nil.
func (p *Pipeline) Run(ctx context.Context, req Request) *Result {
	start := time.Now()
	col := metrics.NewCollector()
	res := &Result{RunID: req.RunID}

	err := p.run(ctx, req, res, col)
	total := time.Since(start)
	res.Timings.TotalMs = ms(total)
	col.ObserveStage("total", total)

	logger := logging.WithRun(p.logger, res.RunID)
	if err != nil {
		res.Success = false
		res.Err = err
		res.Reason = err.Error()
		var se *StageError
		if errors.As(err, &se) {
			res.Stage = se.Stage
		}
		col.IncRun(string(types.RunFailed))
		logger.Error().Err(err).Str("stage", res.Stage).Dur("elapsed", total).Msg("pipeline failed")
	} else {
		res.Success = true
		col.IncRun(string(types.RunSucceeded))
		logger.Info().Int("quality_score", res.Quality.Score).Dur("elapsed", total).Msg("pipeline complete")
		p.saveRecord(ctx, req, res, logger)
	}

	snap, serr := col.Snapshot()
	if serr != nil {
		logger.Warn().Err(serr).Msg("metrics snapshot failed")
	}
	res.Metrics = snap
	return res
}

func (p *Pipeline) run(ctx context.Context, req Request, res *Result, col *metrics.Collector) error {
	if err := p.validate.Struct(req); err != nil {
		return &StageError{Stage: StageRequest, Err: fmt.Errorf("invalid request: %w", err)}
	}
	if req.Difficulty == "" {
		req.Difficulty = types.DifficultyBeginner
	}
	if p.auth != nil {
		if err := p.auth.Authorize(ctx, req); err != nil {
			return &StageError{Stage: StageAuthorize, Err: err}
		}
	}

	if res.RunID == "" {
		res.RunID = uuid.NewString()
	}
	logger := logging.WithRun(p.logger, res.RunID)
	logger.Info().
		Str("subject", req.Subject).
		Str("difficulty", string(req.Difficulty)).
		Int("max_sections", req.MaxSections).
		Msg("pipeline starting")

	store, err := checkpoint.Open(filepath.Join(p.cfg.Coordinator.CheckpointDir, res.RunID))
	if err != nil {
		return &StageError{Stage: StageSections, Err: err}
	}

	// Outline.
	t := time.Now()
	o, err := p.outline(ctx, req, res, store, col, logger)
	d := time.Since(t)
	res.Timings.OutlineMs = ms(d)
	col.ObserveStage(StageOutline, d)
	if err != nil {
		return &StageError{Stage: StageOutline, Err: err}
	}
	res.Outline = o

	// Sections.
	t = time.Now()
	gen := section.NewGenerator(p.observed(p.gen, StageSections, col), p.prompts, p.cfg.Sections, logger)
	coord := coordinator.New(gen, store, coordinator.Config{
		Concurrency: coordinator.ResolveConcurrency(p.cfg.Coordinator.Concurrency, p.cfg.LLM.BaseURL),
		Policy:      p.sectionPolicy(),
	}, logger, col)
	outcome, err := coord.Run(ctx, o, req.MaxSections)
	d = time.Since(t)
	res.Timings.SectionsMsTotal = ms(d)
	col.ObserveStage(StageSections, d)
	if outcome != nil {
		res.Sections = outcome.Sections
		res.Resumed = outcome.Resumed
		for _, sd := range outcome.Durations {
			res.Timings.SectionMs = append(res.Timings.SectionMs, ms(sd))
		}
	}
	if err != nil {
		return &StageError{Stage: StageSections, Err: err}
	}

	// Build.
	t = time.Now()
	nb, err := notebook.NewBuilder(notebook.Options{
		Version: p.version,
		BaseURL: p.cfg.LLM.BaseURL,
		Model:   p.cfg.LLM.Model,
		Now:     p.now,
	}, logger).Build(o, res.Sections)
	d = time.Since(t)
	res.Timings.BuildMs = ms(d)
	col.ObserveStage(StageBuild, d)
	if err != nil {
		return &StageError{Stage: StageBuild, Err: err}
	}
	res.Notebook = nb

	// QA gate.
	qa := audit.NewQaGate(logger).Evaluate(audit.QaInput{Outline: o, Sections: res.Sections, Padded: res.Padded})
	res.QA = &qa
	if qa.OverallStatus == types.StatusFail {
		reason := strings.Join(qa.BlockingIssues, "; ")
		if reason == "" {
			reason = qa.Summary
		}
		return &StageError{Stage: StageQA, Err: fmt.Errorf("QA gate failed: %s", reason)}
	}

	// Semantic audit.
	sem := p.semantic(ctx, o, res, col, logger)
	res.Semantic = &sem
	if sem.Status == types.StatusFail {
		reason := strings.Join(sem.Issues, "; ")
		if reason == "" {
			reason = "review required"
		}
		return &StageError{Stage: StageSemantic, Err: fmt.Errorf("semantic audit failed: %s", reason)}
	}

	// Quality score.
	t = time.Now()
	q := audit.QualityScorer{}.Score(nb)
	d = time.Since(t)
	res.Timings.QualityMs = ms(d)
	col.ObserveStage(StageQuality, d)
	res.Quality = &q

	// Compatibility.
	t = time.Now()
	compat, patched := audit.NewCompatibilityChecker(logger).Check(nb)
	d = time.Since(t)
	res.Timings.CompatMs = ms(d)
	col.ObserveStage(StageCompat, d)
	res.Compatibility = &compat
	if patched != nil {
		res.Notebook = patched
	}

	res.ValidationReport = audit.RenderValidationReport(q, compat)
	return nil
}

// outline reloads the run's frozen outline or generates and freezes a new one.
func (p *Pipeline) outline(ctx context.Context, req Request, res *Result, store *checkpoint.Store, col *metrics.Collector, logger zerolog.Logger) (*types.Outline, error) {
	o, err := store.LoadOutline()
	if err == nil {
		res.OutlineResumed = true
		logger.Info().Str("title", o.Title).Int("steps", len(o.Steps)).Msg("reusing frozen outline")
		return o, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	gen := outline.NewGenerator(p.observed(p.gen, StageOutline, col), p.prompts, p.cfg.Outline, logger)
	out, err := gen.Generate(ctx, outline.Request{Subject: req.Subject, Difficulty: req.Difficulty, Context: req.Context})
	if err != nil {
		return nil, err
	}
	res.OutlineRepair = out.Repair
	res.Padded = out.Padded

	if err := store.SaveOutline(out.Outline); err != nil {
		if !errors.Is(err, checkpoint.ErrExists) {
			return nil, err
		}
		// Another process froze an outline first; its sections answer that one.
		return store.LoadOutline()
	}
	return out.Outline, nil
}

func (p *Pipeline) semantic(ctx context.Context, o *types.Outline, res *Result, col *metrics.Collector, logger zerolog.Logger) types.SemanticReport {
	if !p.cfg.Audit.Semantic {
		logger.Info().Msg("semantic audit disabled")
		return types.SemanticReport{
			Status:  types.StatusWarn,
			Skipped: true,
			Note:    "Semantic audit disabled by configuration.",
		}
	}
	t := time.Now()
	auditor := audit.NewSemanticAuditor(p.observed(p.auditor, StageSemantic, col), p.prompts, p.auditEP, logger)
	report := auditor.Evaluate(ctx, audit.SemanticInput{Outline: o, Sections: res.Sections, Padded: res.Padded})
	col.ObserveStage(StageSemantic, time.Since(t))
	return report
}

func (p *Pipeline) observed(c llm.Completer, stage string, col *metrics.Collector) llm.Completer {
	return llm.Observe(c, func(d time.Duration, err error) {
		col.ObserveLLM(stage, d, err)
	})
}

func (p *Pipeline) sectionPolicy() retry.Policy {
	pol := retry.DefaultPolicy
	cc := p.cfg.Coordinator
	if cc.MaxAttempts > 0 {
		pol.Attempts = cc.MaxAttempts
	}
	if cc.BaseDelay > 0 {
		pol.BaseDelay = cc.BaseDelay
	}
	if cc.MaxDelay > 0 {
		pol.MaxDelay = cc.MaxDelay
	}
	return pol
}

func (p *Pipeline) saveRecord(ctx context.Context, req Request, res *Result, logger zerolog.Logger) {
	if p.records == nil {
		return
	}
	rec := types.RunRecord{
		RunSummary: types.RunSummary{
			ID:           res.RunID,
			Title:        res.Outline.Title,
			Subject:      req.Subject,
			Difficulty:   res.Outline.Difficulty,
			Status:       types.RunSucceeded,
			QualityScore: res.Quality.Score,
			CreatedAt:    p.now(),
		},
		Outline:  res.Outline,
		Notebook: res.Notebook,
		Sections: res.Sections,
	}
	if err := p.records.SaveRun(ctx, rec); err != nil {
		logger.Warn().Err(err).Msg("saving run record failed")
		return
	}
	logger.Debug().Msg("run record saved")
}
