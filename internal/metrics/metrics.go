// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics collects counters and timings for one pipeline run.
// Each Collector owns its registry so concurrent runs never share state.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Namespace prefixes every metric name.
const Namespace = "notebook_engine"

// Collector holds the metrics of one run. A nil *Collector discards
// everything, so callers never need to check.
type Collector struct {
	reg *prometheus.Registry

	runs          *prometheus.CounterVec
	sections      *prometheus.CounterVec
	retries       *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	llmRequests   *prometheus.CounterVec
	llmDuration   *prometheus.HistogramVec
}

// NewCollector creates a Collector with a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by final status",
		}, []string{"status"}),
		sections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sections_total",
			Help:      "Sections by outcome (generated, resumed, fallback, failed)",
		}, []string{"outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "retries_total",
			Help:      "Retried attempts by stage",
		}, []string{"stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "llm_requests_total",
			Help:      "Completion requests by stage and result",
		}, []string{"stage", "result"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Completion request latency by stage",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),
	}
	c.reg.MustRegister(c.runs, c.sections, c.retries, c.stageDuration, c.llmRequests, c.llmDuration)
	return c
}

// Registry exposes the underlying registry, e.g. for a push gateway.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.reg
}

// IncRun counts a finished run.
func (c *Collector) IncRun(status string) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(status).Inc()
}

// IncSection counts a section by outcome.
func (c *Collector) IncSection(outcome string) {
	if c == nil {
		return
	}
	c.sections.WithLabelValues(outcome).Inc()
}

// IncRetry counts one retried attempt.
func (c *Collector) IncRetry(stage string) {
	if c == nil {
		return
	}
	c.retries.WithLabelValues(stage).Inc()
}

// ObserveStage records the wall time of a stage.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveLLM records one completion request.
func (c *Collector) ObserveLLM(stage string, d time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.llmRequests.WithLabelValues(stage, result).Inc()
	c.llmDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// HistogramSummary is the count and sum of one histogram series.
type HistogramSummary struct {
	Count uint64  `json:"count"`
	Sum   float64 `json:"sum"`
}

// Snapshot is a flattened copy of every series. Keys look like
// `notebook_engine_sections_total{outcome="generated"}`.
type Snapshot struct {
	Counters   map[string]float64          `json:"counters"`
	Histograms map[string]HistogramSummary `json:"histograms"`
}

// Snapshot gathers the registry. A nil Collector yields an empty Snapshot.
func (c *Collector) Snapshot() (Snapshot, error) {
	snap := Snapshot{Counters: map[string]float64{}, Histograms: map[string]HistogramSummary{}}
	if c == nil {
		return snap, nil
	}
	families, err := c.reg.Gather()
	if err != nil {
		return snap, fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := seriesKey(mf.GetName(), m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				snap.Counters[key] = m.GetCounter().GetValue()
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				snap.Histograms[key] = HistogramSummary{Count: h.GetSampleCount(), Sum: h.GetSampleSum()}
			}
		}
	}
	return snap, nil
}

func seriesKey(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s=%q", l.GetName(), l.GetValue())
	}
	sort.Strings(parts)
	return name + "{" + strings.Join(parts, ",") + "}"
}
