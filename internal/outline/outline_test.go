// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package outline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/notebook-engine/internal/llm"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

// scripted replies with canned responses in order and records requests.
type scripted struct {
	replies []string
	errs    []error
	reqs    []llm.Request
}

func (s *scripted) Complete(_ context.Context, req llm.Request) (string, error) {
	i := len(s.reqs)
	s.reqs = append(s.reqs, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i >= len(s.replies) {
		return "", fmt.Errorf("unexpected call %d", i+1)
	}
	return s.replies[i], nil
}

func validOutline(steps int) *types.Outline {
	o := &types.Outline{
		Title:                "Intro to Embeddings",
		Overview:             "Build a tiny semantic search.",
		Objectives:           []string{"Explain embeddings", "Compute similarity", "Build search"},
		Setup:                types.SetupSpec{Requirements: []string{"numpy"}},
		Summary:              "You built search.",
		NextSteps:            "Try a vector DB.",
		EstimatedTotalTokens: 3200,
	}
	for i := 1; i <= steps; i++ {
		o.Steps = append(o.Steps, types.OutlineStep{Step: i, Title: fmt.Sprintf("Topic %d", i), Type: types.StepConcept, EstimatedTokens: 300})
	}
	for i := 0; i < 4; i++ {
		o.Assessments = append(o.Assessments, types.Assessment{
			Question: fmt.Sprintf("Q%d?", i), Options: []string{"a", "b", "c"}, CorrectIndex: 1, Explanation: "because",
		})
	}
	return o
}

func toJSON(t *testing.T, o *types.Outline) string {
	t.Helper()
	b, err := json.Marshal(o)
	require.NoError(t, err)
	return string(b)
}

func newGen(c llm.Completer, strict bool) *Generator {
	return NewGenerator(c, nil, types.OutlineConfig{TokenCeiling: 4000, MaxTokens: 2000, Strict: strict}, zerolog.Nop())
}

func assertShape(t *testing.T, o *types.Outline) {
	t.Helper()
	assert.NotEmpty(t, o.Title)
	assert.GreaterOrEqual(t, len(o.Objectives), MinObjectives)
	assert.LessOrEqual(t, len(o.Objectives), MaxObjectives)
	assert.GreaterOrEqual(t, len(o.Steps), MinSteps)
	assert.LessOrEqual(t, len(o.Steps), MaxSteps)
	assert.GreaterOrEqual(t, len(o.Assessments), MinAssessments)
	assert.LessOrEqual(t, o.EstimatedTotalTokens, 4000)
	for i, s := range o.Steps {
		assert.Equal(t, i+1, s.Step)
	}
	assert.Empty(t, Validate(o, 4000))
}

func TestGenerate_ValidFirstTry(t *testing.T) {
	c := &scripted{replies: []string{toJSON(t, validOutline(8))}}
	res, err := newGen(c, false).Generate(context.Background(), Request{Subject: "Embeddings", Difficulty: types.DifficultyBeginner})
	require.NoError(t, err)
	assert.Equal(t, RepairNone, res.Repair)
	assert.Len(t, c.reqs, 1)
	assertShape(t, res.Outline)

	req := c.reqs[0]
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.1, *req.Temperature, 1e-9)
	assert.True(t, req.JSONMode)
	assert.Equal(t, 2000, req.MaxTokens)
}

func TestGenerate_ParseRetryWithAddendum(t *testing.T) {
	c := &scripted{replies: []string{"I'd be happy to help!", "Here:\n" + toJSON(t, validOutline(7)) + "\nEnjoy"}}
	res, err := newGen(c, false).Generate(context.Background(), Request{Subject: "x"})
	require.NoError(t, err)
	require.Len(t, c.reqs, 2)
	assert.Contains(t, c.reqs[1].Messages[1].Content, "ONLY the JSON object")
	assertShape(t, res.Outline)
}

func TestGenerate_NoJSONAfterTwoAttempts(t *testing.T) {
	c := &scripted{replies: []string{"nope", "still nope"}}
	_, err := newGen(c, false).Generate(context.Background(), Request{Subject: "x"})
	assert.ErrorIs(t, err, ErrNoJSON)
	assert.Len(t, c.reqs, 2)
}

func TestGenerate_TolerantFieldTypes(t *testing.T) {
	tests := []struct {
		name  string
		patch map[string]any
		check func(t *testing.T, o *types.Outline)
	}{
		{
			name:  "references as objects",
			patch: map[string]any{"references": []map[string]string{{"title": "Word2Vec", "url": "https://arxiv.org/abs/1301.3781"}}},
			check: func(t *testing.T, o *types.Outline) {
				assert.Equal(t, []string{"Word2Vec - https://arxiv.org/abs/1301.3781"}, o.References)
			},
		},
		{
			name:  "token total as string",
			patch: map[string]any{"estimated_total_tokens": "3200"},
			check: func(t *testing.T, o *types.Outline) {
				assert.Equal(t, 3200, o.EstimatedTotalTokens)
			},
		},
		{
			name:  "next steps as list",
			patch: map[string]any{"next_steps": []string{"Try a vector DB.", "Read the paper."}},
			check: func(t *testing.T, o *types.Outline) {
				assert.Equal(t, "Try a vector DB.\nRead the paper.", o.NextSteps)
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var m map[string]any
			require.NoError(t, json.Unmarshal([]byte(toJSON(t, validOutline(8))), &m))
			for k, v := range tc.patch {
				m[k] = v
			}
			b, err := json.Marshal(m)
			require.NoError(t, err)

			c := &scripted{replies: []string{string(b)}}
			res, err := newGen(c, false).Generate(context.Background(), Request{Subject: "Embeddings"})
			require.NoError(t, err)
			assert.Len(t, c.reqs, 1)
			assert.Equal(t, RepairNone, res.Repair)
			assertShape(t, res.Outline)
			tc.check(t, res.Outline)
		})
	}
}

func TestGenerate_TransportErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	c := &scripted{errs: []error{boom}}
	_, err := newGen(c, false).Generate(context.Background(), Request{Subject: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestGenerate_LLMRepair(t *testing.T) {
	bad := validOutline(4)
	bad.Title = ""
	c := &scripted{replies: []string{toJSON(t, bad), toJSON(t, validOutline(9))}}

	res, err := newGen(c, false).Generate(context.Background(), Request{Subject: "x"})
	require.NoError(t, err)
	assert.Equal(t, RepairLLM, res.Repair)
	assert.Contains(t, res.Issues, "Missing title")
	require.Len(t, c.reqs, 2)

	repairReq := c.reqs[1]
	require.NotNil(t, repairReq.Temperature)
	assert.Equal(t, 0.0, *repairReq.Temperature)
	assert.Contains(t, repairReq.Messages[1].Content, "Need at least 6 steps (got 4)")
	assertShape(t, res.Outline)
}

func TestGenerate_DeterministicRepairAfterFailedLLMRepair(t *testing.T) {
	bad := validOutline(3)
	bad.Objectives = []string{"only one"}
	bad.Assessments = bad.Assessments[:1]
	bad.EstimatedTotalTokens = 9000

	stillBad := validOutline(5)
	stillBad.Assessments = nil

	c := &scripted{replies: []string{toJSON(t, bad), toJSON(t, stillBad)}}
	res, err := newGen(c, false).Generate(context.Background(), Request{Subject: "Embeddings"})
	require.NoError(t, err)
	assert.Equal(t, RepairDeterministic, res.Repair)
	assert.Greater(t, res.Padded, 0)
	assertShape(t, res.Outline)
}

func TestGenerate_RepairCallErrorFallsBackToDeterministic(t *testing.T) {
	bad := validOutline(2)
	c := &scripted{replies: []string{toJSON(t, bad), ""}, errs: []error{nil, errors.New("503")}}
	res, err := newGen(c, false).Generate(context.Background(), Request{Subject: "Embeddings"})
	require.NoError(t, err)
	assert.Equal(t, RepairDeterministic, res.Repair)
	assert.Equal(t, 4, res.Padded)
	assertShape(t, res.Outline)
	assert.Equal(t, "Step 6: Additional Content", res.Outline.Steps[5].Title)
}

func TestGenerate_StrictRejectsPadding(t *testing.T) {
	bad := validOutline(2)
	c := &scripted{replies: []string{toJSON(t, bad), toJSON(t, bad)}}
	_, err := newGen(c, true).Generate(context.Background(), Request{Subject: "x"})
	assert.ErrorIs(t, err, ErrOutlineRejected)
}

func TestGenerate_RequiresSubject(t *testing.T) {
	_, err := newGen(&scripted{}, false).Generate(context.Background(), Request{Subject: "  "})
	assert.Error(t, err)
}

func TestRepair_Deterministic(t *testing.T) {
	tests := []struct {
		name string
		in   *types.Outline
	}{
		{name: "empty", in: &types.Outline{}},
		{name: "too many steps", in: validOutline(20)},
		{name: "too many objectives", in: func() *types.Outline {
			o := validOutline(6)
			o.Objectives = []string{"a", "b", "c", "d", "e", "f", "g"}
			return o
		}()},
		{name: "malformed assessments", in: func() *types.Outline {
			o := validOutline(6)
			o.Assessments[0].CorrectIndex = 3
			o.Assessments[1].Options = []string{"only"}
			return o
		}()},
		{name: "over budget", in: func() *types.Outline {
			o := validOutline(6)
			o.EstimatedTotalTokens = 12000
			return o
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := toJSON(t, tt.in)
			out, _ := Repair(tt.in, "Embeddings", 4000)
			assertShape(t, out)
			// Input is never mutated.
			assert.Equal(t, before, toJSON(t, tt.in))
		})
	}
}

func TestRepair_EmptyOutlineUsesSubjectAndDefaults(t *testing.T) {
	out, padded := Repair(&types.Outline{}, "Vector Search", 4000)
	assert.Equal(t, "Vector Search", out.Title)
	assert.Equal(t, defaultObjectives, out.Objectives)
	assert.Equal(t, 3+6+4, padded)
	assert.True(t, strings.HasPrefix(out.Assessments[0].Question, "Quick check 1"))
}

func TestValidate_Messages(t *testing.T) {
	o := validOutline(16)
	o.Objectives = nil
	issues := Validate(o, 4000)
	assert.Contains(t, issues, "Need 3-5 objectives (got 0)")
	assert.Contains(t, issues, "Too many steps: 16 (max 15)")
}
