// Package types provides the document and wire types for the nbkit core.
package types

import "encoding/json"

// Cell types understood by the document store.
const (
	CellTypeCode     = "code"
	CellTypeMarkdown = "markdown"
	CellTypeRaw      = "raw"
)

// Notebook is an ordered sequence of cells plus format metadata. One instance
// exists per open notebook tab and is exclusively owned by the document store.
type Notebook struct {
	Cells         []Cell         `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

// Cell is a unit of source text plus the outputs of its most recent execution.
// ID is stable for the lifetime of the cell and never reused within the same
// document instance; it is assigned on load and not serialized.
type Cell struct {
	ID             string         `json:"-"`
	CellType       string         `json:"cell_type"`
	Source         string         `json:"source"`
	Metadata       map[string]any `json:"metadata"`
	Outputs        []Output       `json:"outputs"`
	ExecutionCount ExecutionCount `json:"execution_count"`
}

// MarshalJSON serializes a cell in nbformat shape. Markdown and raw cells
// carry no outputs or execution_count fields on disk.
func (c Cell) MarshalJSON() ([]byte, error) {
	meta := c.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	if c.CellType != CellTypeCode {
		return json.Marshal(struct {
			CellType string         `json:"cell_type"`
			Source   string         `json:"source"`
			Metadata map[string]any `json:"metadata"`
		}{c.CellType, c.Source, meta})
	}
	outputs := c.Outputs
	if outputs == nil {
		outputs = []Output{}
	}
	return json.Marshal(struct {
		CellType       string         `json:"cell_type"`
		Source         string         `json:"source"`
		Metadata       map[string]any `json:"metadata"`
		Outputs        []Output       `json:"outputs"`
		ExecutionCount ExecutionCount `json:"execution_count"`
	}{c.CellType, c.Source, meta, outputs, c.ExecutionCount})
}

// UnmarshalJSON accepts both nbformat source encodings (a single string or a
// list of lines) and decodes outputs into their tagged variants.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var raw struct {
		CellType       string            `json:"cell_type"`
		Source         json.RawMessage   `json:"source"`
		Metadata       map[string]any    `json:"metadata"`
		Outputs        []json.RawMessage `json:"outputs"`
		ExecutionCount ExecutionCount    `json:"execution_count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.CellType = raw.CellType
	c.Metadata = raw.Metadata
	c.ExecutionCount = raw.ExecutionCount

	source, err := decodeSource(raw.Source)
	if err != nil {
		return err
	}
	c.Source = source

	c.Outputs = nil
	for _, rawOut := range raw.Outputs {
		out, err := UnmarshalOutput(rawOut)
		if err != nil {
			return err
		}
		c.Outputs = append(c.Outputs, out)
	}
	return nil
}

// decodeSource handles the two legal nbformat encodings of cell source.
func decodeSource(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err != nil {
		return "", err
	}
	var joined string
	for _, line := range lines {
		joined += line
	}
	return joined, nil
}

// ExecutionCount is the kernel-assigned execution counter of a code cell.
// Running marks an in-flight execution; the zero value means never executed.
// Both serialize as null, matching nbformat.
type ExecutionCount struct {
	N       int
	Running bool
}

// MarshalJSON emits the counter, or null while running or never executed.
func (e ExecutionCount) MarshalJSON() ([]byte, error) {
	if e.Running || e.N == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(e.N)
}

// UnmarshalJSON accepts a number or null.
func (e *ExecutionCount) UnmarshalJSON(data []byte) error {
	*e = ExecutionCount{}
	if string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, &e.N)
}
