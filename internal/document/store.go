// Package document owns the notebook document: an ordered sequence of cells
// with stable identity under structural edits and concurrent execution.
package document

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/nbkit/nbkit/internal/api"
	"github.com/nbkit/nbkit/internal/event"
	"github.com/nbkit/nbkit/pkg/types"
)

// Store holds one notebook document per open tab. All structural operations
// are total: out-of-range indices degrade to no-ops, never errors. Cell ids
// are never reused within a document instance; paste and duplicate always
// allocate fresh ones.
type Store struct {
	client *api.Client
	bus    *event.Bus

	mu        sync.RWMutex
	path      string
	nb        types.Notebook
	clipboard *types.Cell // value copy, not the live cell
}

// NewStore creates an empty document store.
func NewStore(client *api.Client, bus *event.Bus) *Store {
	return &Store{client: client, bus: bus}
}

// Open fetches the notebook at path from the content store and loads it.
func (s *Store) Open(ctx context.Context, path string) error {
	nb, err := s.client.OpenNotebook(ctx, path)
	if err != nil {
		return err
	}
	s.LoadSerialized(path, nb)
	return nil
}

// LoadSerialized replaces the document with a freshly deserialized notebook.
// Every cell gets a new id and its execution-transient state (outputs,
// execution count) is reset. An empty document gets one default code cell.
func (s *Store) LoadSerialized(path string, nb *types.Notebook) {
	s.mu.Lock()
	cells := make([]types.Cell, 0, len(nb.Cells))
	for _, cell := range nb.Cells {
		cells = append(cells, types.Cell{
			ID:       newCellID(),
			CellType: cell.CellType,
			Source:   cell.Source,
			Metadata: cell.Metadata,
		})
	}
	if len(cells) == 0 {
		cells = append(cells, newCodeCell())
	}
	s.path = path
	s.nb = types.Notebook{
		Cells:         cells,
		Metadata:      nb.Metadata,
		NBFormat:      nb.NBFormat,
		NBFormatMinor: nb.NBFormatMinor,
	}
	if s.nb.NBFormat == 0 {
		s.nb.NBFormat = 4
		s.nb.NBFormatMinor = 2
	}
	s.mu.Unlock()

	s.bus.Publish(event.Event{Type: event.DocumentUpdated, Data: event.DocumentUpdatedData{Path: path}})
}

// Save writes the document back to the content store.
func (s *Store) Save(ctx context.Context) error {
	s.mu.RLock()
	path := s.path
	nb := s.snapshotLocked()
	s.mu.RUnlock()

	if err := s.client.SaveNotebook(ctx, path, &nb); err != nil {
		return err
	}
	s.bus.Publish(event.Event{Type: event.DocumentSaved, Data: event.DocumentSavedData{Path: path}})
	return nil
}

// Path returns the content-store path of the open document.
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Len returns the number of cells.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nb.Cells)
}

// Cells returns a snapshot copy of the cell sequence.
func (s *Store) Cells() []types.Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cells := make([]types.Cell, len(s.nb.Cells))
	for i, cell := range s.nb.Cells {
		cells[i] = cell
		cells[i].Outputs = types.CloneOutputs(cell.Outputs)
	}
	return cells
}

// CellAt returns a copy of the cell at index i.
func (s *Store) CellAt(i int) (types.Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.nb.Cells) {
		return types.Cell{}, false
	}
	cell := s.nb.Cells[i]
	cell.Outputs = types.CloneOutputs(cell.Outputs)
	return cell, true
}

// CellByID returns a copy of the cell with the given id.
func (s *Store) CellByID(id string) (types.Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cell := range s.nb.Cells {
		if cell.ID == id {
			cell.Outputs = types.CloneOutputs(cell.Outputs)
			return cell, true
		}
	}
	return types.Cell{}, false
}

// Snapshot returns a value copy of the whole notebook.
func (s *Store) Snapshot() types.Notebook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() types.Notebook {
	nb := s.nb
	nb.Cells = make([]types.Cell, len(s.nb.Cells))
	for i, cell := range s.nb.Cells {
		nb.Cells[i] = cell
		nb.Cells[i].Outputs = types.CloneOutputs(cell.Outputs)
	}
	return nb
}

// InsertAbove creates a new empty code cell at the focused index. Cells at
// positions >= i shift down by one.
func (s *Store) InsertAbove(i int) {
	s.insertAt(i)
}

// InsertBelow creates a new empty code cell just after the focused index.
func (s *Store) InsertBelow(i int) {
	s.insertAt(i + 1)
}

func (s *Store) insertAt(i int) {
	s.mu.Lock()
	if i < 0 {
		i = 0
	}
	if i > len(s.nb.Cells) {
		i = len(s.nb.Cells)
	}
	cells := make([]types.Cell, 0, len(s.nb.Cells)+1)
	cells = append(cells, s.nb.Cells[:i]...)
	cells = append(cells, newCodeCell())
	cells = append(cells, s.nb.Cells[i:]...)
	s.nb.Cells = cells
	s.mu.Unlock()

	s.publishDocumentUpdated()
}

// Remove deletes the cell at index i. Out-of-range indices are no-ops.
func (s *Store) Remove(i int) {
	s.mu.Lock()
	if i < 0 || i >= len(s.nb.Cells) {
		s.mu.Unlock()
		return
	}
	s.nb.Cells = append(s.nb.Cells[:i], s.nb.Cells[i+1:]...)
	s.mu.Unlock()

	s.publishDocumentUpdated()
}

// Copy stores a value copy of the cell at index i on the clipboard.
func (s *Store) Copy(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.nb.Cells) {
		return
	}
	cell := s.nb.Cells[i]
	cell.Outputs = types.CloneOutputs(cell.Outputs)
	s.clipboard = &cell
}

// Cut copies the cell at index i and removes it from the document.
func (s *Store) Cut(i int) {
	s.Copy(i)
	s.Remove(i)
}

// Paste inserts a clone of the clipboard cell just below index i. The clone
// gets a newly allocated id.
func (s *Store) Paste(i int) {
	s.mu.Lock()
	if s.clipboard == nil {
		s.mu.Unlock()
		return
	}
	at := i + 1
	if at < 0 {
		at = 0
	}
	if at > len(s.nb.Cells) {
		at = len(s.nb.Cells)
	}
	clone := *s.clipboard
	clone.ID = newCellID()
	clone.Outputs = types.CloneOutputs(s.clipboard.Outputs)
	cells := make([]types.Cell, 0, len(s.nb.Cells)+1)
	cells = append(cells, s.nb.Cells[:at]...)
	cells = append(cells, clone)
	cells = append(cells, s.nb.Cells[at:]...)
	s.nb.Cells = cells
	s.mu.Unlock()

	s.publishDocumentUpdated()
}

// SetCellType changes the cell type of the cell at index i.
func (s *Store) SetCellType(i int, cellType string) {
	s.mu.Lock()
	if i < 0 || i >= len(s.nb.Cells) {
		s.mu.Unlock()
		return
	}
	cell := s.nb.Cells[i]
	cell.CellType = cellType
	s.nb.Cells[i] = cell
	id := cell.ID
	s.mu.Unlock()

	s.publishCellUpdated(id)
}

// SetSource replaces the source text of the cell with the given id. This is
// the entry point for the external editor collaborator.
func (s *Store) SetSource(id, source string) {
	s.Update(id, func(cell types.Cell) types.Cell {
		cell.Source = source
		return cell
	})
}

// Update applies fn to a value copy of the cell with the given id and swaps
// the result in atomically. The transformation always starts from the current
// cell state, so back-to-back updates for the same cell never lose writes.
// Returns false when no cell has that id.
func (s *Store) Update(id string, fn func(types.Cell) types.Cell) bool {
	s.mu.Lock()
	idx := -1
	for i, cell := range s.nb.Cells {
		if cell.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return false
	}
	cell := s.nb.Cells[idx]
	cell.Outputs = types.CloneOutputs(cell.Outputs)
	next := fn(cell)
	next.ID = id // identity is immutable
	s.nb.Cells[idx] = next
	s.mu.Unlock()

	s.publishCellUpdated(id)
	return true
}

func (s *Store) publishDocumentUpdated() {
	s.mu.RLock()
	path := s.path
	s.mu.RUnlock()
	s.bus.Publish(event.Event{Type: event.DocumentUpdated, Data: event.DocumentUpdatedData{Path: path}})
}

func (s *Store) publishCellUpdated(id string) {
	s.bus.Publish(event.Event{Type: event.CellUpdated, Data: event.CellUpdatedData{CellID: id}})
}

// newCellID allocates a fresh cell id.
func newCellID() string {
	return ulid.Make().String()
}

// newCodeCell creates an empty code cell with a fresh id.
func newCodeCell() types.Cell {
	return types.Cell{ID: newCellID(), CellType: types.CellTypeCode}
}
