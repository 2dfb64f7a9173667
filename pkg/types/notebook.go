// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Notebook format version emitted by the builder.
const (
	NBFormat      = 4
	NBFormatMinor = 4

	// ProvenanceSchemaVersion versions the provenance block in notebook metadata.
	ProvenanceSchemaVersion = "1.0.0"
)

// NotebookCell is a cell in an nbformat 4 document. Code cells the builder
// creates carry a null execution count and an empty output list; markdown
// cells carry neither.
type NotebookCell struct {
	Kind     CellKind       `json:"cell_type"`
	Metadata map[string]any `json:"metadata"`
	Source   []string       `json:"source"`

	// Extra holds the fields not modelled here (outputs, execution_count,
	// id, attachments) so a notebook read from disk is written back intact.
	Extra map[string]json.RawMessage `json:"-"`
}

// NewNotebookCell splits text into nbformat source lines.
func NewNotebookCell(kind CellKind, text string) NotebookCell {
	return NotebookCell{Kind: kind, Metadata: map[string]any{}, Source: SplitSource(text)}
}

// Text joins the cell's source lines.
func (c NotebookCell) Text() string {
	return strings.Join(c.Source, "")
}

// MarshalJSON emits the execution fields only for code cells.
func (c NotebookCell) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+5)
	for k, v := range c.Extra {
		out[k] = v
	}
	meta := c.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	src := c.Source
	if src == nil {
		src = []string{}
	}
	out["cell_type"] = c.Kind
	out["metadata"] = meta
	out["source"] = src
	if c.Kind == CellCode {
		if _, ok := out["execution_count"]; !ok {
			out["execution_count"] = nil
		}
		if _, ok := out["outputs"]; !ok {
			out["outputs"] = []any{}
		}
	} else {
		delete(out, "execution_count")
		delete(out, "outputs")
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a cell whose source may be a string or a line list.
func (c *NotebookCell) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var cell Cell
	if err := cell.UnmarshalJSON(data); err != nil {
		return err
	}
	var meta map[string]any
	if raw, ok := fields["metadata"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &meta); err != nil {
			return fmt.Errorf("cell metadata: %w", err)
		}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	delete(fields, "cell_type")
	delete(fields, "metadata")
	delete(fields, "source")
	if len(fields) == 0 {
		fields = nil
	}

	*c = NotebookCell{
		Kind:     cell.Kind,
		Metadata: meta,
		Source:   SplitSource(cell.Source),
		Extra:    fields,
	}
	return nil
}

// SplitSource splits text into lines that keep their trailing newline, as
// nbformat stores them.
func SplitSource(text string) []string {
	if text == "" {
		return []string{}
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// KernelSpec describes the notebook kernel.
type KernelSpec struct {
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
	Name        string `json:"name"`
}

// LanguageInfo describes the notebook language.
type LanguageInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// BuilderInfo names the software that produced a notebook.
type BuilderInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Provenance records where a notebook came from.
type Provenance struct {
	SchemaVersion string      `json:"schema_version"`
	CreatedAt     string      `json:"created_at"`
	Title         string      `json:"title"`
	Builder       BuilderInfo `json:"builder"`
}

// NotebookMetadata is the top-level notebook metadata block.
type NotebookMetadata struct {
	KernelSpec   KernelSpec   `json:"kernelspec"`
	LanguageInfo LanguageInfo `json:"language_info"`
	Provenance   *Provenance  `json:"notebook_engine,omitempty"`

	// Extra is the metadata block as read from disk. Keys not modelled above
	// (colab, widgets, accelerator) are written back as is, and modelled
	// objects keep their unmodelled fields.
	Extra map[string]json.RawMessage `json:"-"`
}

// MarshalJSON overlays the modelled fields on Extra.
func (m NotebookMetadata) MarshalJSON() ([]byte, error) {
	type plain NotebookMetadata
	b, err := json.Marshal(plain(m))
	if err != nil || len(m.Extra) == 0 {
		return b, err
	}
	var typed map[string]json.RawMessage
	if err := json.Unmarshal(b, &typed); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(m.Extra)+len(typed))
	for k, v := range m.Extra {
		out[k] = v
	}
	for k, v := range typed {
		out[k] = mergeObjects(out[k], v)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *NotebookMetadata) UnmarshalJSON(data []byte) error {
	type plain NotebookMetadata
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	p.Extra = all
	*m = NotebookMetadata(p)
	return nil
}

// mergeObjects returns over with any keys of base it lacks. Non-objects
// yield over unchanged.
func mergeObjects(base, over json.RawMessage) json.RawMessage {
	if len(base) == 0 {
		return over
	}
	var bm, om map[string]json.RawMessage
	if json.Unmarshal(base, &bm) != nil || json.Unmarshal(over, &om) != nil || bm == nil || om == nil {
		return over
	}
	for k, v := range om {
		bm[k] = v
	}
	merged, err := json.Marshal(bm)
	if err != nil {
		return over
	}
	return merged
}

// Notebook is the assembled artifact.
type Notebook struct {
	Cells         []NotebookCell   `json:"cells"`
	Metadata      NotebookMetadata `json:"metadata"`
	NBFormat      int              `json:"nbformat"`
	NBFormatMinor int              `json:"nbformat_minor"`
}

// Clone returns a deep copy of nb.
func (nb *Notebook) Clone() *Notebook {
	if nb == nil {
		return nil
	}
	c := *nb
	c.Cells = make([]NotebookCell, len(nb.Cells))
	for i, cell := range nb.Cells {
		meta := make(map[string]any, len(cell.Metadata))
		for k, v := range cell.Metadata {
			meta[k] = v
		}
		cell.Metadata = meta
		cell.Source = append([]string(nil), cell.Source...)
		cell.Extra = cloneRaw(cell.Extra)
		c.Cells[i] = cell
	}
	if nb.Metadata.Provenance != nil {
		p := *nb.Metadata.Provenance
		c.Metadata.Provenance = &p
	}
	c.Metadata.Extra = cloneRaw(nb.Metadata.Extra)
	return &c
}

// CodeCells returns the text of every code cell in order.
func (nb *Notebook) CodeCells() []string {
	var out []string
	for _, c := range nb.Cells {
		if c.Kind == CellCode {
			out = append(out, c.Text())
		}
	}
	return out
}

func cloneRaw(in map[string]json.RawMessage) map[string]json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
