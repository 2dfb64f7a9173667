// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data model shared by the notebook-engine stages:
// outlines, sections, notebooks, audit reports, and configuration.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// Difficulty is the audience tier a notebook is written for.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// StepType categorises an outline step.
type StepType string

const (
	StepSetup          StepType = "setup"
	StepConcept        StepType = "concept"
	StepImplementation StepType = "implementation"
	StepExercise       StepType = "exercise"
	StepDeployment     StepType = "deployment"
)

// OutlineStep is one planned section of the notebook. Step is 1-based and
// equals the step's index in Outline.Steps plus one.
type OutlineStep struct {
	Step            int      `json:"step" yaml:"step"`
	Title           string   `json:"title" yaml:"title"`
	Type            StepType `json:"type" yaml:"type"`
	EstimatedTokens int      `json:"estimated_tokens" yaml:"estimated_tokens"`
	ContentType     string   `json:"content_type" yaml:"content_type"`
}

// SetupSpec lists what the reader needs before running the notebook.
type SetupSpec struct {
	Requirements []string `json:"requirements" yaml:"requirements"`
	Environment  []string `json:"environment" yaml:"environment"`
	Commands     []string `json:"commands" yaml:"commands"`
}

// Exercise is a hands-on task suggested by the outline.
type Exercise struct {
	Title           string `json:"title" yaml:"title"`
	Difficulty      string `json:"difficulty" yaml:"difficulty"`
	EstimatedTokens int    `json:"estimated_tokens" yaml:"estimated_tokens"`
}

// Assessment is a multiple-choice knowledge check.
type Assessment struct {
	Question     string   `json:"question" yaml:"question"`
	Options      []string `json:"options" yaml:"options"`
	CorrectIndex int      `json:"correct_index" yaml:"correct_index"`
	Explanation  string   `json:"explanation" yaml:"explanation"`
}

// Validate returns an error describing the first structural problem with a.
func (a Assessment) Validate() error {
	switch {
	case strings.TrimSpace(a.Question) == "":
		return errors.New("missing question")
	case len(a.Options) < 2:
		return fmt.Errorf("need at least 2 options, got %d", len(a.Options))
	case a.CorrectIndex < 0 || a.CorrectIndex >= len(a.Options):
		return fmt.Errorf("correct_index %d out of range [0,%d)", a.CorrectIndex, len(a.Options))
	case strings.TrimSpace(a.Explanation) == "":
		return errors.New("missing explanation")
	}
	return nil
}

// Outline is the lesson plan produced before any section content exists.
// Downstream stages treat it as read-only.
type Outline struct {
	Title                string        `json:"title" yaml:"title"`
	Overview             string        `json:"overview" yaml:"overview"`
	Objectives           []string      `json:"objectives" yaml:"objectives"`
	Prerequisites        []string      `json:"prerequisites" yaml:"prerequisites"`
	Setup                SetupSpec     `json:"setup" yaml:"setup"`
	Steps                []OutlineStep `json:"outline" yaml:"outline"`
	Exercises            []Exercise    `json:"exercises" yaml:"exercises"`
	Assessments          []Assessment  `json:"assessments" yaml:"assessments"`
	Summary              string        `json:"summary" yaml:"summary"`
	NextSteps            string        `json:"next_steps" yaml:"next_steps"`
	References           []string      `json:"references" yaml:"references"`
	EstimatedTotalTokens int           `json:"estimated_total_tokens" yaml:"estimated_total_tokens"`
	TargetReadingTime    string        `json:"target_reading_time" yaml:"target_reading_time"`

	// Difficulty is copied from the request, not produced by the model.
	Difficulty Difficulty `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
}

// Clone returns a deep copy of o.
func (o *Outline) Clone() *Outline {
	if o == nil {
		return nil
	}
	c := *o
	c.Objectives = append([]string(nil), o.Objectives...)
	c.Prerequisites = append([]string(nil), o.Prerequisites...)
	c.Setup = SetupSpec{
		Requirements: append([]string(nil), o.Setup.Requirements...),
		Environment:  append([]string(nil), o.Setup.Environment...),
		Commands:     append([]string(nil), o.Setup.Commands...),
	}
	c.Steps = append([]OutlineStep(nil), o.Steps...)
	c.Exercises = append([]Exercise(nil), o.Exercises...)
	c.Assessments = make([]Assessment, len(o.Assessments))
	for i, a := range o.Assessments {
		a.Options = append([]string(nil), a.Options...)
		c.Assessments[i] = a
	}
	c.References = append([]string(nil), o.References...)
	return &c
}

// Step returns the outline step with 1-based number n.
func (o *Outline) Step(n int) (OutlineStep, bool) {
	if n < 1 || n > len(o.Steps) {
		return OutlineStep{}, false
	}
	return o.Steps[n-1], true
}
