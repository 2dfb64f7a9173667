// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package records keeps a SQLite history of finished pipeline runs so past
// notebooks can be listed and exported again.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/notebook-engine/internal/retry"
	"github.com/pdiddy/notebook-engine/pkg/types"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

const defaultListLimit = 50

// timeLayout has a fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// busyPolicy retries writes that collide with another connection.
var busyPolicy = retry.Policy{
	Attempts:   5,
	BaseDelay:  50 * time.Millisecond,
	MaxDelay:   time.Second,
	Multiplier: 2,
	Jitter:     0.2,
}

// Store manages the run record database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the database at cfg.DBPath, creating parent
// directories and the schema as needed.
func NewStore(cfg types.RecordsConfig) (*Store, error) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, errors.New("records db_path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating records directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=2000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			subject TEXT NOT NULL,
			difficulty TEXT,
			status TEXT NOT NULL,
			quality_score INTEGER,
			created_at TEXT NOT NULL,
			outline_yaml TEXT,
			notebook_json TEXT,
			sections_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveRun inserts or replaces the record with rec.ID. Writes that hit a
// locked database are retried with backoff.
func (s *Store) SaveRun(ctx context.Context, rec types.RunRecord) error {
	if rec.ID == "" {
		return errors.New("run record has no id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	var outlineYAML, notebookJSON, sectionsJSON []byte
	var err error
	if rec.Outline != nil {
		if outlineYAML, err = yaml.Marshal(rec.Outline); err != nil {
			return fmt.Errorf("marshaling outline: %w", err)
		}
	}
	if rec.Notebook != nil {
		if notebookJSON, err = json.Marshal(rec.Notebook); err != nil {
			return fmt.Errorf("marshaling notebook: %w", err)
		}
	}
	if sectionsJSON, err = json.Marshal(rec.Sections); err != nil {
		return fmt.Errorf("marshaling sections: %w", err)
	}

	return retry.Do(ctx, busyPolicy, func(ctx context.Context, _ int) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO runs (id, title, subject, difficulty, status, quality_score, created_at, outline_yaml, notebook_json, sections_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				title=excluded.title, subject=excluded.subject, difficulty=excluded.difficulty,
				status=excluded.status, quality_score=excluded.quality_score, created_at=excluded.created_at,
				outline_yaml=excluded.outline_yaml, notebook_json=excluded.notebook_json,
				sections_json=excluded.sections_json`,
			rec.ID, rec.Title, rec.Subject, string(rec.Difficulty), string(rec.Status), rec.QualityScore,
			rec.CreatedAt.UTC().Format(timeLayout),
			nullable(outlineYAML), nullable(notebookJSON), string(sectionsJSON),
		)
		if err == nil {
			return nil
		}
		if busy(err) {
			return err
		}
		return retry.Permanent(fmt.Errorf("saving run %s: %w", rec.ID, err))
	})
}

// ListOptions filters List. Query matches title or subject as a substring.
type ListOptions struct {
	Query  string
	Status types.RunStatus
	Limit  int
}

// List returns run summaries, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]types.RunSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var b strings.Builder
	var args []any
	b.WriteString(`SELECT id, title, subject, difficulty, status, quality_score, created_at FROM runs WHERE 1=1`)
	if q := strings.TrimSpace(opts.Query); q != "" {
		b.WriteString(` AND (title LIKE ? OR subject LIKE ?)`)
		like := "%" + q + "%"
		args = append(args, like, like)
	}
	if opts.Status != "" {
		b.WriteString(` AND status = ?`)
		args = append(args, string(opts.Status))
	}
	b.WriteString(` ORDER BY created_at DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []types.RunSummary
	for rows.Next() {
		var sum types.RunSummary
		var difficulty, status, created sql.NullString
		var score sql.NullInt64
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Subject, &difficulty, &status, &score, &created); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		sum.Difficulty = types.Difficulty(difficulty.String)
		sum.Status = types.RunStatus(status.String)
		sum.QualityScore = int(score.Int64)
		sum.CreatedAt = parseTime(created.String)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get loads the full record for id.
func (s *Store) Get(ctx context.Context, id string) (*types.RunRecord, error) {
	var rec types.RunRecord
	var difficulty, status, created, outlineYAML, notebookJSON, sectionsJSON sql.NullString
	var score sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, subject, difficulty, status, quality_score, created_at, outline_yaml, notebook_json, sections_json
		 FROM runs WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Title, &rec.Subject, &difficulty, &status, &score, &created, &outlineYAML, &notebookJSON, &sectionsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}

	rec.Difficulty = types.Difficulty(difficulty.String)
	rec.Status = types.RunStatus(status.String)
	rec.QualityScore = int(score.Int64)
	rec.CreatedAt = parseTime(created.String)

	if outlineYAML.Valid && outlineYAML.String != "" {
		var o types.Outline
		if err := yaml.Unmarshal([]byte(outlineYAML.String), &o); err != nil {
			return nil, fmt.Errorf("decoding outline of %s: %w", id, err)
		}
		rec.Outline = &o
	}
	if notebookJSON.Valid && notebookJSON.String != "" {
		var nb types.Notebook
		if err := json.Unmarshal([]byte(notebookJSON.String), &nb); err != nil {
			return nil, fmt.Errorf("decoding notebook of %s: %w", id, err)
		}
		rec.Notebook = &nb
	}
	if sectionsJSON.Valid && sectionsJSON.String != "" {
		if err := json.Unmarshal([]byte(sectionsJSON.String), &rec.Sections); err != nil {
			return nil, fmt.Errorf("decoding sections of %s: %w", id, err)
		}
	}
	return &rec, nil
}

// ExportNotebook writes the stored notebook of id to w as indented JSON.
func (s *Store) ExportNotebook(ctx context.Context, id string, w io.Writer) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Notebook == nil {
		return fmt.Errorf("run %s has no notebook", id)
	}
	data, err := json.MarshalIndent(rec.Notebook, "", " ")
	if err != nil {
		return fmt.Errorf("marshaling notebook: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing notebook: %w", err)
	}
	return nil
}

// ExportOutline writes the stored outline of id to w as YAML.
func (s *Store) ExportOutline(ctx context.Context, id string, w io.Writer) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Outline == nil {
		return fmt.Errorf("run %s has no outline", id)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rec.Outline); err != nil {
		return fmt.Errorf("encoding outline: %w", err)
	}
	return enc.Close()
}

func busy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

func nullable(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
