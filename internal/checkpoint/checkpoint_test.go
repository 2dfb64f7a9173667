// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/notebook-engine/pkg/types"
)

func sec(n int, title string) types.Section {
	return types.Section{
		Number: n,
		Title:  title,
		Content: []types.Cell{
			{Kind: types.CellMarkdown, Source: "## " + title},
			{Kind: types.CellCode, Source: "print(1)"},
		},
		EstimatedTokens: 900,
	}
}

func TestSaveAndLoadSection(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SaveSection(sec(3, "Three")))
	got, err := s.LoadSection(3)
	require.NoError(t, err)
	assert.Equal(t, sec(3, "Three"), got)

	_, err = os.Stat(filepath.Join(s.Dir(), "sections", "3.json"))
	assert.NoError(t, err)
}

func TestSaveSection_AtMostOnce(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SaveSection(sec(1, "first")))
	err = s.SaveSection(sec(1, "second"))
	assert.ErrorIs(t, err, ErrExists)

	got, err := s.LoadSection(1)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
}

func TestSaveSection_InvalidNumber(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.SaveSection(sec(0, "zero")))
}

func TestCompleted(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	for _, n := range []int{5, 1, 3} {
		require.NoError(t, s.SaveSection(sec(n, "x")))
	}
	// Noise that must be ignored.
	secDir := filepath.Join(dir, "sections")
	require.NoError(t, os.WriteFile(filepath.Join(secDir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(secDir, "2.json.corrupt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(secDir, "0.json"), []byte("{}"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(secDir, "7.json"), 0o755))

	got, err := s.Completed()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5}, got)
}

func TestQuarantine(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	path := filepath.Join(dir, "sections", "2.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err = s.LoadSection(2)
	require.Error(t, err)
	require.NoError(t, s.Quarantine(2))

	got, err := s.Completed()
	require.NoError(t, err)
	assert.Empty(t, got)
	_, err = os.Stat(path + ".corrupt")
	assert.NoError(t, err)

	// The slot is free again.
	require.NoError(t, s.SaveSection(sec(2, "regenerated")))
}

func TestOutlineRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.LoadOutline()
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	o := &types.Outline{
		Title:      "Embeddings",
		Objectives: []string{"a", "b", "c"},
		Steps:      []types.OutlineStep{{Step: 1, Title: "One", Type: types.StepSetup}},
		Assessments: []types.Assessment{
			{Question: "q", Options: []string{"x", "y"}, CorrectIndex: 1, Explanation: "e"},
		},
		Difficulty: types.DifficultyAdvanced,
	}
	require.NoError(t, s.SaveOutline(o))
	got, err := s.LoadOutline()
	require.NoError(t, err)
	assert.Equal(t, o.Title, got.Title)
	assert.Equal(t, o.Steps, got.Steps)
	assert.Equal(t, o.Assessments, got.Assessments)
	assert.Equal(t, types.DifficultyAdvanced, got.Difficulty)

	assert.ErrorIs(t, s.SaveOutline(o), ErrExists)
}
