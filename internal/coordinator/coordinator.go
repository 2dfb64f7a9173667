// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coordinator generates the sections of one outline with bounded
// parallelism, checkpointing each as it completes and resuming from
// whatever a previous run left behind.
package coordinator

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/notebook-engine/internal/checkpoint"
	"github.com/pdiddy/notebook-engine/internal/llm"
	"github.com/pdiddy/notebook-engine/internal/retry"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

// Worker counts chosen when no override is configured.
const (
	LocalConcurrency  = 2
	RemoteConcurrency = 1
)

// SectionGenerator produces one section. previous holds the sections
// completed so far with a lower number.
type SectionGenerator interface {
	Generate(ctx context.Context, o *types.Outline, number int, previous []types.Section) (types.Section, error)
}

// Recorder receives per-section counters and timings.
type Recorder interface {
	IncSection(outcome string)
	IncRetry(stage string)
	ObserveStage(stage string, d time.Duration)
}

// Section outcomes reported to the Recorder.
const (
	OutcomeResumed   = "resumed"
	OutcomeGenerated = "generated"
	OutcomeFallback  = "fallback"
	OutcomeFailed    = "failed"
)

// IncompleteError lists the section numbers that could not be produced.
type IncompleteError struct {
	Missing []int
	Causes  map[int]error
}

func (e *IncompleteError) Error() string {
	nums := make([]string, len(e.Missing))
	for i, n := range e.Missing {
		nums[i] = strconv.Itoa(n)
	}
	return "section generation incomplete, missing sections: " + strings.Join(nums, ", ")
}

// Outcome is the result of a coordinator run.
type Outcome struct {
	// Sections are ordered by number, 1..count.
	Sections []types.Section

	// Resumed and Generated partition the section numbers by source.
	Resumed   []int
	Generated []int

	// Durations holds wall time per section, indexed by number-1. Resumed
	// sections have zero duration.
	Durations []time.Duration
}

// Config tunes a Coordinator.
type Config struct {
	Concurrency int
	Policy      retry.Policy
}

// Coordinator drives section generation for one run directory.
type Coordinator struct {
	gen    SectionGenerator
	store  *checkpoint.Store
	cfg    Config
	logger zerolog.Logger
	rec    Recorder
}

// New returns a Coordinator. A nil Recorder discards metrics.
func New(gen SectionGenerator, store *checkpoint.Store, cfg Config, logger zerolog.Logger, rec Recorder) *Coordinator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = RemoteConcurrency
	}
	if cfg.Policy.Attempts <= 0 {
		cfg.Policy = retry.DefaultPolicy
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Coordinator{
		gen:    gen,
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "coordinator").Logger(),
		rec:    rec,
	}
}

// ResolveConcurrency returns override when positive, otherwise 2 for a
// local endpoint and 1 for a hosted one.
func ResolveConcurrency(override int, baseURL string) int {
	if override > 0 {
		return override
	}
	if llm.IsLocalEndpoint(baseURL) {
		return LocalConcurrency
	}
	return RemoteConcurrency
}

// Run produces sections 1..count of o. Checkpointed sections are loaded,
// not regenerated. When any section stays unresolved the returned error is
// an *IncompleteError and the Outcome carries the sections that did finish.
func (c *Coordinator) Run(ctx context.Context, o *types.Outline, count int) (*Outcome, error) {
	if count <= 0 || count > len(o.Steps) {
		count = len(o.Steps)
	}
	if count == 0 {
		return &Outcome{}, errors.New("outline has no steps")
	}

	slots := make([]*types.Section, count)
	durations := make([]time.Duration, count)
	var mu sync.RWMutex

	out := &Outcome{}
	done, err := c.store.Completed()
	if err != nil {
		return out, err
	}
	for _, n := range done {
		if n > count {
			continue
		}
		sec, err := c.store.LoadSection(n)
		if err != nil {
			c.logger.Warn().Err(err).Int("section", n).Msg("unreadable checkpoint, regenerating")
			if qerr := c.store.Quarantine(n); qerr != nil {
				return out, qerr
			}
			continue
		}
		slots[n-1] = &sec
		out.Resumed = append(out.Resumed, n)
		c.rec.IncSection(OutcomeResumed)
	}

	var pending []int
	for i, s := range slots {
		if s == nil {
			pending = append(pending, i+1)
		}
	}
	c.logger.Info().
		Int("total", count).
		Int("resumed", len(out.Resumed)).
		Int("pending", len(pending)).
		Msg("section generation starting")

	causes := make(map[int]error)
	var causesMu sync.Mutex

	if len(pending) > 0 {
		workers := c.cfg.Concurrency
		if workers > len(pending) {
			workers = len(pending)
		}

		// A failed section is recorded in causes and the worker moves on;
		// only cancellation of ctx ends the group early.
		var cursor atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < workers; w++ {
			g.Go(func() error {
				for {
					if err := gctx.Err(); err != nil {
						return err
					}
					i := int(cursor.Add(1)) - 1
					if i >= len(pending) {
						return nil
					}
					n := pending[i]
					start := time.Now()
					sec, err := c.generate(gctx, o, n, slots, &mu)
					elapsed := time.Since(start)
					if err != nil {
						causesMu.Lock()
						causes[n] = err
						causesMu.Unlock()
						c.rec.IncSection(OutcomeFailed)
						c.logger.Error().Err(err).Int("section", n).Msg("section failed")
						continue
					}
					c.persist(&sec)

					mu.Lock()
					slots[n-1] = &sec
					durations[n-1] = elapsed
					mu.Unlock()

					c.rec.ObserveStage("section", elapsed)
					if sec.Fallback {
						c.rec.IncSection(OutcomeFallback)
					} else {
						c.rec.IncSection(OutcomeGenerated)
					}
					c.logger.Info().Int("section", n).Dur("elapsed", elapsed).Bool("fallback", sec.Fallback).Msg("section complete")
				}
			})
		}
		if err := g.Wait(); err != nil {
			c.logger.Warn().Err(err).Msg("section generation interrupted")
			causesMu.Lock()
			for _, n := range pending {
				if slots[n-1] == nil && causes[n] == nil {
					causes[n] = err
				}
			}
			causesMu.Unlock()
		}
	}

	var missing []int
	for i, s := range slots {
		if s == nil {
			missing = append(missing, i+1)
			continue
		}
		out.Sections = append(out.Sections, *s)
	}
	for _, n := range pending {
		if slots[n-1] != nil {
			out.Generated = append(out.Generated, n)
		}
	}
	out.Durations = durations

	if len(missing) > 0 {
		return out, &IncompleteError{Missing: missing, Causes: causes}
	}
	return out, nil
}

// generate runs one section under the retry policy.
func (c *Coordinator) generate(ctx context.Context, o *types.Outline, n int, slots []*types.Section, mu *sync.RWMutex) (types.Section, error) {
	var result types.Section
	err := retry.Do(ctx, c.cfg.Policy, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			c.rec.IncRetry("section")
		}
		prev := previous(slots, n, mu)
		sec, err := c.gen.Generate(ctx, o, n, prev)
		if err != nil {
			c.logger.Warn().Err(err).Int("section", n).Int("attempt", attempt).Msg("section attempt failed")
			return err
		}
		sec.Number = n
		result = sec
		return nil
	})
	return result, err
}

// persist writes the checkpoint. A concurrent writer that got there first
// wins; its file is authoritative on resume.
func (c *Coordinator) persist(sec *types.Section) {
	err := c.store.SaveSection(*sec)
	switch {
	case err == nil:
	case errors.Is(err, checkpoint.ErrExists):
		if existing, lerr := c.store.LoadSection(sec.Number); lerr == nil {
			*sec = existing
		}
	default:
		c.logger.Error().Err(err).Int("section", sec.Number).Msg("checkpoint write failed")
	}
}

func previous(slots []*types.Section, n int, mu *sync.RWMutex) []types.Section {
	mu.RLock()
	defer mu.RUnlock()
	var out []types.Section
	for i := 0; i < n-1 && i < len(slots); i++ {
		if slots[i] != nil {
			out = append(out, *slots[i])
		}
	}
	return out
}

type nopRecorder struct{}

func (nopRecorder) IncSection(string) {}
func (nopRecorder) IncRetry(string) {}
func (nopRecorder) ObserveStage(string, time.Duration) {}
