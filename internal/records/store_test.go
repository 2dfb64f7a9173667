// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/notebook-engine/pkg/types"
)

// --- test helpers ---

func testSetup(t *testing.T) *Store {
	t.Helper()
	cfg := types.RecordsConfig{DBPath: filepath.Join(t.TempDir(), "nested", "records.db")}
	store, err := NewStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord(id, title string, created time.Time) types.RunRecord {
	nb := &types.Notebook{
		Cells: []types.NotebookCell{
			types.NewNotebookCell(types.CellMarkdown, "# "+title+"\n"),
			types.NewNotebookCell(types.CellCode, "print('hi')\n"),
		},
		NBFormat:      4,
		NBFormatMinor: 4,
	}
	return types.RunRecord{
		RunSummary: types.RunSummary{
			ID:           id,
			Title:        title,
			Subject:      strings.ToLower(title),
			Difficulty:   types.DifficultyBeginner,
			Status:       types.RunSucceeded,
			QualityScore: 92,
			CreatedAt:    created,
		},
		Outline: &types.Outline{
			Title:      title,
			Objectives: []string{"Understand vectors"},
			Steps:      []types.OutlineStep{{Step: 1, Title: "Vectors", Type: types.StepConcept, EstimatedTokens: 400}},
			Difficulty: types.DifficultyBeginner,
		},
		Notebook: nb,
		Sections: []types.Section{{Number: 1, Title: "Vectors", Content: []types.Cell{{Kind: types.CellMarkdown, Source: "Vectors are lists."}}}},
	}
}

// --- tests ---

func TestNewStoreCreatesSchema(t *testing.T) {
	store := testSetup(t)

	var n int
	if err := store.db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='runs'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("runs table count = %d, want 1", n)
	}
}

func TestNewStoreRejectsEmptyPath(t *testing.T) {
	if _, err := NewStore(types.RecordsConfig{}); err == nil {
		t.Fatal("expected error for empty db_path")
	}
}

func TestSaveAndGet(t *testing.T) {
	store := testSetup(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.SaveRun(ctx, sampleRecord("run-1", "Intro to Embeddings", created)); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Intro to Embeddings" || got.QualityScore != 92 || got.Status != types.RunSucceeded {
		t.Errorf("summary fields = %+v", got.RunSummary)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.Outline == nil || len(got.Outline.Steps) != 1 || got.Outline.Steps[0].Title != "Vectors" {
		t.Errorf("outline not restored: %+v", got.Outline)
	}
	if got.Notebook == nil || len(got.Notebook.Cells) != 2 {
		t.Fatalf("notebook not restored: %+v", got.Notebook)
	}
	if got.Notebook.Cells[1].Text() != "print('hi')\n" {
		t.Errorf("code cell = %q", got.Notebook.Cells[1].Text())
	}
	if len(got.Sections) != 1 || got.Sections[0].Content[0].Source != "Vectors are lists." {
		t.Errorf("sections not restored: %+v", got.Sections)
	}
}

func TestSaveRunUpserts(t *testing.T) {
	store := testSetup(t)
	ctx := context.Background()

	rec := sampleRecord("run-1", "First", time.Now())
	if err := store.SaveRun(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Title = "Second"
	rec.QualityScore = 70
	if err := store.SaveRun(ctx, rec); err != nil {
		t.Fatal(err)
	}

	runs, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].Title != "Second" || runs[0].QualityScore != 70 {
		t.Errorf("upsert not applied: %+v", runs[0])
	}
}

func TestSaveRunRequiresID(t *testing.T) {
	store := testSetup(t)
	if err := store.SaveRun(context.Background(), types.RunRecord{}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestGetNotFound(t *testing.T) {
	store := testSetup(t)
	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListOrderAndFilters(t *testing.T) {
	store := testSetup(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, title := range []string{"Intro to Embeddings", "Vector Databases", "Prompt Caching"} {
		rec := sampleRecord(title, title, base.Add(time.Duration(i)*time.Hour))
		if i == 2 {
			rec.Status = types.RunFailed
		}
		if err := store.SaveRun(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Title != "Prompt Caching" || all[2].Title != "Intro to Embeddings" {
		t.Errorf("unexpected order: %+v", all)
	}

	tests := []struct {
		name string
		opts ListOptions
		want int
	}{
		{"query title", ListOptions{Query: "vector"}, 1},
		{"query subject", ListOptions{Query: "embeddings"}, 1},
		{"status", ListOptions{Status: types.RunSucceeded}, 2},
		{"limit", ListOptions{Limit: 1}, 1},
		{"no match", ListOptions{Query: "quantum"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d runs, want %d", len(got), tt.want)
			}
		})
	}
}

func TestExportNotebook(t *testing.T) {
	store := testSetup(t)
	ctx := context.Background()
	if err := store.SaveRun(ctx, sampleRecord("run-1", "Intro", time.Now())); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := store.ExportNotebook(ctx, "run-1", &buf); err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if raw["nbformat"] != float64(4) {
		t.Errorf("nbformat = %v", raw["nbformat"])
	}
}

func TestExportOutline(t *testing.T) {
	store := testSetup(t)
	ctx := context.Background()
	if err := store.SaveRun(ctx, sampleRecord("run-1", "Intro", time.Now())); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := store.ExportOutline(ctx, "run-1", &buf); err != nil {
		t.Fatal(err)
	}
	var o types.Outline
	if err := yaml.Unmarshal(buf.Bytes(), &o); err != nil {
		t.Fatal(err)
	}
	if o.Title != "Intro" {
		t.Errorf("title = %q", o.Title)
	}
}

func TestStorePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	ctx := context.Background()

	first, err := NewStore(types.RecordsConfig{DBPath: path})
	if err != nil {
		t.Fatal(err)
	}
	if err := first.SaveRun(ctx, sampleRecord("run-1", "Intro", time.Now())); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := NewStore(types.RecordsConfig{DBPath: path})
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if _, err := second.Get(ctx, "run-1"); err != nil {
		t.Errorf("run lost after reopen: %v", err)
	}
}
