// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/notebook-engine/internal/llm"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

var hosted = Endpoint{BaseURL: "https://api.poe.com", HasCredentials: true}

func replying(reply string, err error, got *[]llm.Request) llm.Completer {
	return llm.CompleterFunc(func(_ context.Context, req llm.Request) (string, error) {
		if got != nil {
			*got = append(*got, req)
		}
		return reply, err
	})
}

func semanticInput() SemanticInput {
	return SemanticInput{Outline: fullOutline(6), Sections: richSections(6)}
}

func TestSemantic_SkipsWithoutCredentials(t *testing.T) {
	var calls []llm.Request
	a := NewSemanticAuditor(replying("{}", nil, &calls), nil, Endpoint{BaseURL: "https://api.poe.com"}, zerolog.Nop())
	r := a.Evaluate(context.Background(), semanticInput())

	assert.Equal(t, types.StatusWarn, r.Status)
	assert.True(t, r.Skipped)
	assert.Empty(t, calls)
}

func TestSemantic_SkipsLocalEndpoint(t *testing.T) {
	var calls []llm.Request
	ep := Endpoint{BaseURL: "http://localhost:1234/v1", HasCredentials: true}
	r := NewSemanticAuditor(replying("{}", nil, &calls), nil, ep, zerolog.Nop()).Evaluate(context.Background(), semanticInput())

	assert.Equal(t, types.StatusWarn, r.Status)
	assert.True(t, r.Skipped)
	assert.Empty(t, calls)
}

func TestSemantic_Pass(t *testing.T) {
	var calls []llm.Request
	reply := `{"status":"pass","issues":[],"filler_sections":[],"recommendations":["none"]}`
	r := NewSemanticAuditor(replying(reply, nil, &calls), nil, hosted, zerolog.Nop()).Evaluate(context.Background(), semanticInput())

	assert.Equal(t, types.StatusPass, r.Status)
	assert.False(t, r.Skipped)
	assert.Equal(t, []string{"none"}, r.Recommendations)
	assert.Equal(t, reply, r.RawResponse)

	require.Len(t, calls, 1)
	req := calls[0]
	assert.Equal(t, 400, req.MaxTokens)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.0, *req.Temperature)
	assert.Contains(t, req.Messages[1].Content, "[Section 3] Part 3")
}

func TestSemantic_ExcerptsCollapsedAndTruncated(t *testing.T) {
	var calls []llm.Request
	in := semanticInput()
	in.Sections[0].Content[0].Source = "alpha\n\n   beta\t" + strings.Repeat("z", 2000)
	NewSemanticAuditor(replying(`{"status":"pass"}`, nil, &calls), nil, hosted, zerolog.Nop()).Evaluate(context.Background(), in)

	require.Len(t, calls, 1)
	prompt := calls[0].Messages[1].Content
	assert.Contains(t, prompt, "alpha beta z")
	assert.NotContains(t, prompt, strings.Repeat("z", ExcerptChars))
	assert.Contains(t, prompt, strings.Repeat("z", ExcerptChars-len("alpha beta ")))
}

func TestSemantic_FailWithFillerStrings(t *testing.T) {
	reply := "Here you go:\n```json\n{\"status\": \"FAIL\", \"issues\": [\"Section 3 is filler\"], \"filler_sections\": [\"Section 3: restates title\", 5], \"recommendations\": []}\n```"
	r := NewSemanticAuditor(replying(reply, nil, nil), nil, hosted, zerolog.Nop()).Evaluate(context.Background(), semanticInput())

	assert.Equal(t, types.StatusFail, r.Status)
	assert.Equal(t, []int{3, 5}, r.FillerSections)
	assert.Equal(t, []string{"Section 3 is filler"}, r.Issues)
}

func TestSemantic_UnknownStatusIsWarn(t *testing.T) {
	r := NewSemanticAuditor(replying(`{"status":"great"}`, nil, nil), nil, hosted, zerolog.Nop()).Evaluate(context.Background(), semanticInput())
	assert.Equal(t, types.StatusWarn, r.Status)
}

func TestSemantic_UnparseableIsWarn(t *testing.T) {
	r := NewSemanticAuditor(replying("looks fine to me", nil, nil), nil, hosted, zerolog.Nop()).Evaluate(context.Background(), semanticInput())
	assert.Equal(t, types.StatusWarn, r.Status)
	assert.Equal(t, "looks fine to me", r.RawResponse)
	assert.False(t, r.Skipped)
}

func TestSemantic_RequestFailureIsWarn(t *testing.T) {
	r := NewSemanticAuditor(replying("", errors.New("boom"), nil), nil, hosted, zerolog.Nop()).Evaluate(context.Background(), semanticInput())
	assert.Equal(t, types.StatusWarn, r.Status)
	require.Len(t, r.Issues, 1)
	assert.Contains(t, r.Issues[0], "boom")
}

func TestSemantic_PaddingMentioned(t *testing.T) {
	var calls []llm.Request
	in := semanticInput()
	in.Padded = 4
	NewSemanticAuditor(replying(`{"status":"pass"}`, nil, &calls), nil, hosted, zerolog.Nop()).Evaluate(context.Background(), in)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[1].Content, "4 outline entries were filled in automatically")
}
