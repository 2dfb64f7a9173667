// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package checkpoint persists completed sections and the frozen outline of
// one run so an interrupted run can resume.
//
// Layout under the run directory:
//
//	outline.yaml       the outline every section answers
//	sections/N.json    one completed section per step number
//
// A section file's presence is the only completion signal. Files are
// written once via rename and never overwritten.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/notebook-engine/pkg/types"
)

const (
	outlineFile = "outline.yaml"
	sectionsDir = "sections"
)

// sectionFilePattern matches checkpoint files: N.json.
var sectionFilePattern = regexp.MustCompile(`^(\d+)\.json$`)

// ErrExists is returned when a checkpoint for the section is already on disk.
var ErrExists = errors.New("checkpoint already exists")

// Store reads and writes one run directory. Concurrent writers are safe as
// long as each writes its own section number.
type Store struct {
	dir string
}

// Open returns a Store rooted at runDir, creating it if needed.
func Open(runDir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(runDir, sectionsDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}
	return &Store{dir: runDir}, nil
}

// Dir returns the run directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) sectionPath(n int) string {
	return filepath.Join(s.dir, sectionsDir, strconv.Itoa(n)+".json")
}

// Completed returns the section numbers with a checkpoint file, ascending.
func (s *Store) Completed() ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, sectionsDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading checkpoint directory: %w", err)
	}
	var nums []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := sectionFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums, nil
}

// LoadSection reads the checkpoint for section n.
func (s *Store) LoadSection(n int) (types.Section, error) {
	data, err := os.ReadFile(s.sectionPath(n))
	if err != nil {
		return types.Section{}, fmt.Errorf("reading section %d: %w", n, err)
	}
	var sec types.Section
	if err := json.Unmarshal(data, &sec); err != nil {
		return types.Section{}, fmt.Errorf("parsing section %d: %w", n, err)
	}
	sec.Number = n
	return sec, nil
}

// SaveSection writes sec under its number. An existing checkpoint is left
// untouched and ErrExists is returned.
func (s *Store) SaveSection(sec types.Section) error {
	if sec.Number <= 0 {
		return fmt.Errorf("invalid section number %d", sec.Number)
	}
	data, err := json.MarshalIndent(sec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling section %d: %w", sec.Number, err)
	}
	return writeOnce(s.sectionPath(sec.Number), data)
}

// Quarantine moves an unreadable checkpoint aside so the section is
// regenerated. The bad file is kept as N.json.corrupt.
func (s *Store) Quarantine(n int) error {
	path := s.sectionPath(n)
	if err := os.Rename(path, path+".corrupt"); err != nil {
		return fmt.Errorf("quarantining section %d: %w", n, err)
	}
	return nil
}

// SaveOutline freezes the outline for the run. It is written once.
func (s *Store) SaveOutline(o *types.Outline) error {
	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshaling outline: %w", err)
	}
	return writeOnce(filepath.Join(s.dir, outlineFile), data)
}

// LoadOutline reads the frozen outline. It returns fs.ErrNotExist (wrapped)
// when the run has none yet.
func (s *Store) LoadOutline() (*types.Outline, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, outlineFile))
	if err != nil {
		return nil, fmt.Errorf("reading outline: %w", err)
	}
	var o types.Outline
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parsing outline: %w", err)
	}
	return &o, nil
}

// writeOnce writes data to a temp file and links it into place only if path
// does not exist yet.
func writeOnce(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), ErrExists)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	// Link fails if path appeared in the meantime, so no write clobbers another.
	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", filepath.Base(path), ErrExists)
		}
		return fmt.Errorf("committing %s: %w", filepath.Base(path), err)
	}
	return nil
}
