// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooseScalars(t *testing.T) {
	ints := map[string]int{
		`1100`:               1100,
		`1100.6`:             1101,
		`"3200"`:             3200,
		`"1,100 tokens"`:     1100,
		`"about a thousand"`: 0,
		`null`:               0,
		`{"n": 1}`:           0,
	}
	for in, want := range ints {
		assert.Equal(t, want, looseInt(json.RawMessage(in)), in)
	}

	assert.Equal(t, 1, looseIndex(json.RawMessage(`"B"`)))
	assert.Equal(t, 2, looseIndex(json.RawMessage(`"2"`)))
	assert.Equal(t, "42", looseString(json.RawMessage(`42`)))
	assert.Equal(t, "Docs", looseString(json.RawMessage(`{"name": "Docs"}`)))
	assert.Equal(t, []string{"only"}, looseStrings(json.RawMessage(`"only"`)))
}

func TestOutline_UnmarshalTolerant(t *testing.T) {
	raw := `{
	  "title": "Embeddings",
	  "objectives": ["Explain", {"text": "Compute similarity"}],
	  "setup": ["numpy", "scikit-learn"],
	  "outline": [
	    {"step": "1", "title": "Vectors", "type": "Concept", "estimated_tokens": "300"},
	    "Similarity"
	  ],
	  "exercises": ["Build a search index"],
	  "assessments": [{"question": "Q?", "options": ["a", "b"], "correct_index": "B", "explanation": "e"}],
	  "next_steps": ["Try a vector DB", "Read more"],
	  "references": [{"title": "Word2Vec", "url": "https://arxiv.org/abs/1301.3781"}, "Docs"],
	  "estimated_total_tokens": "3200",
	  "target_reading_time": 15
	}`
	var o Outline
	require.NoError(t, json.Unmarshal([]byte(raw), &o))

	assert.Equal(t, []string{"Explain", "Compute similarity"}, o.Objectives)
	assert.Equal(t, []string{"numpy", "scikit-learn"}, o.Setup.Requirements)
	require.Len(t, o.Steps, 2)
	assert.Equal(t, OutlineStep{Step: 1, Title: "Vectors", Type: StepConcept, EstimatedTokens: 300}, o.Steps[0])
	assert.Equal(t, "Similarity", o.Steps[1].Title)
	assert.Equal(t, "Build a search index", o.Exercises[0].Title)
	assert.Equal(t, 1, o.Assessments[0].CorrectIndex)
	assert.Equal(t, "Try a vector DB\nRead more", o.NextSteps)
	assert.Equal(t, []string{"Word2Vec - https://arxiv.org/abs/1301.3781", "Docs"}, o.References)
	assert.Equal(t, 3200, o.EstimatedTotalTokens)
	assert.Equal(t, "15", o.TargetReadingTime)
}

func TestOutline_UnmarshalRoundTrip(t *testing.T) {
	in := Outline{
		Title:                "T",
		Objectives:           []string{"a"},
		Steps:                []OutlineStep{{Step: 1, Title: "s", Type: StepSetup, EstimatedTokens: 10}},
		Assessments:          []Assessment{{Question: "q", Options: []string{"x", "y"}, CorrectIndex: 1, Explanation: "e"}},
		References:           []string{"r"},
		EstimatedTotalTokens: 100,
		Difficulty:           DifficultyAdvanced,
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	var out Outline
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in.Title, out.Title)
	assert.Equal(t, in.Steps, out.Steps)
	assert.Equal(t, in.Assessments, out.Assessments)
	assert.Equal(t, in.References, out.References)
	assert.Equal(t, in.EstimatedTotalTokens, out.EstimatedTotalTokens)
	assert.Equal(t, in.Difficulty, out.Difficulty)
}

func TestSection_UnmarshalTolerant(t *testing.T) {
	raw := `{
	  "section_number": "3",
	  "title": "Vectors",
	  "content": [{"cell_type": "Markdown", "source": ["a", "b"]}],
	  "callouts": ["Normalise first"],
	  "estimated_tokens": "1100",
	  "prerequisites_check": "numpy installed",
	  "fallback": true
	}`
	var s Section
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	assert.Equal(t, 3, s.Number)
	assert.Equal(t, 1100, s.EstimatedTokens)
	assert.Equal(t, []Cell{{Kind: CellMarkdown, Source: "ab"}}, s.Content)
	assert.Equal(t, []Callout{{Type: "tip", Message: "Normalise first"}}, s.Callouts)
	assert.Equal(t, []string{"numpy installed"}, s.PrerequisitesCheck)
	assert.True(t, s.Fallback)
}

func TestSection_UnmarshalRejectsMalformed(t *testing.T) {
	var s Section
	assert.Error(t, json.Unmarshal([]byte(`{"title": "x", "content": [`), &s))
}
