// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipNotebook = `{
 "cells": [
  {
   "cell_type": "code",
   "execution_count": 7,
   "metadata": {},
   "outputs": [{"name": "stdout", "output_type": "stream", "text": ["done\n"]}],
   "source": ["import subprocess, sys\n", "subprocess.check_call([sys.executable, \"-m\", \"pip\", \"install\", \"numpy\"])\n"]
  }
 ],
 "metadata": {
  "colab": {"name": "demo"},
  "kernelspec": {"display_name": "Python 3", "language": "python", "name": "python3"},
  "language_info": {"name": "python"}
 },
 "nbformat": 4,
 "nbformat_minor": 5
}`

func TestFixedPath(t *testing.T) {
	assert.Equal(t, "nb.fixed.ipynb", fixedPath("nb.ipynb"))
	assert.Equal(t, filepath.Join("dir", "a.b.fixed.ipynb"), fixedPath(filepath.Join("dir", "a.b.ipynb")))
	assert.Equal(t, "notes.fixed.ipynb", fixedPath("notes"))
}

func TestAuditFixKeepsInputAndOutputs(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "demo.ipynb")
	require.NoError(t, os.WriteFile(in, []byte(pipNotebook), 0o644))

	require.NoError(t, auditCmd.Flags().Set("fix", "true"))
	t.Cleanup(func() { _ = auditCmd.Flags().Set("fix", "false") })

	require.NoError(t, runAudit(auditCmd, []string{in}))

	orig, err := os.ReadFile(in)
	require.NoError(t, err)
	assert.Equal(t, pipNotebook, string(orig), "input must not be modified")

	data, err := os.ReadFile(filepath.Join(dir, "demo.fixed.ipynb"))
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	meta := got["metadata"].(map[string]any)
	assert.Equal(t, map[string]any{"name": "demo"}, meta["colab"])

	cells := got["cells"].([]any)
	require.Len(t, cells, 2, "environment cell is prepended")
	patched := cells[1].(map[string]any)
	assert.Equal(t, 7.0, patched["execution_count"])
	assert.Len(t, patched["outputs"], 1)
	assert.Equal(t, "colab-env-detect", cells[0].(map[string]any)["id"])
}
