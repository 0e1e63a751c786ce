package gridmap

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/gridsim/internal/geometry"
)

// ErrSizeMismatch is returned by Restore when a snapshot's geometry differs
// from the grid it is being restored into.
var ErrSizeMismatch = errors.New("snapshot geometry does not match grid")

// Snapshot is an immutable copy of the grid taken between updates. It is safe
// to share across goroutines and remains valid after later updates.
type Snapshot struct {
	Size     int
	CellSize float64
	Anchor   geometry.Vector
	Seq      uint64
	Cells    []Cell // len = Size*Size, idx = row*Size + col
}

// Counts tallies cells per state.
type Counts struct {
	Unknown   int `json:"unknown"`
	Freespace int `json:"free"`
	Occupied  int `json:"occupied"`
}

// Snapshot copies the grid under the read lock.
func (g *GridMap) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cells := make([]Cell, len(g.cells))
	copy(cells, g.cells)
	return &Snapshot{
		Size:     g.frame.size,
		CellSize: g.frame.cellSize,
		Anchor:   g.frame.anchor,
		Seq:      g.seq,
		Cells:    cells,
	}
}

// Restore replaces the grid contents with a snapshot taken from a grid of the
// same geometry.
func (g *GridMap) Restore(s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("nil snapshot")
	}
	if s.Size != g.frame.size || s.CellSize != g.frame.cellSize || !s.Anchor.Equal(g.frame.anchor) {
		return fmt.Errorf("snapshot %dx%d@%g anchor=%v into grid %dx%d@%g anchor=%v: %w",
			s.Size, s.Size, s.CellSize, s.Anchor,
			g.frame.size, g.frame.size, g.frame.cellSize, g.frame.anchor, ErrSizeMismatch)
	}
	if len(s.Cells) != s.Size*s.Size {
		return fmt.Errorf("snapshot has %d cells, want %d", len(s.Cells), s.Size*s.Size)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	copy(g.cells, s.Cells)
	g.seq = s.Seq
	diagf("restored grid snapshot seq=%d", s.Seq)
	return nil
}

// CellState returns the cell at (row, col) in the snapshot.
func (s *Snapshot) CellState(row, col int) (Cell, bool) {
	if row < 0 || row >= s.Size || col < 0 || col >= s.Size {
		return Cell{}, false
	}
	return s.Cells[row*s.Size+col], true
}

// Counts tallies cells per state.
func (s *Snapshot) Counts() Counts {
	var c Counts
	for _, cell := range s.Cells {
		switch cell.State {
		case Freespace:
			c.Freespace++
		case Occupied:
			c.Occupied++
		default:
			c.Unknown++
		}
	}
	return c
}

// CellCenter returns the world position of a cell centre.
func (s *Snapshot) CellCenter(row, col int) geometry.Vector {
	return frame{size: s.Size, cellSize: s.CellSize, anchor: s.Anchor}.center(Index{Row: row, Col: col})
}

// Rows renders the snapshot as one string per row using CellState.Glyph.
func (s *Snapshot) Rows() []string {
	rows := make([]string, s.Size)
	var b strings.Builder
	for r := 0; r < s.Size; r++ {
		b.Reset()
		b.Grow(s.Size)
		for c := 0; c < s.Size; c++ {
			b.WriteByte(s.Cells[r*s.Size+c].State.Glyph())
		}
		rows[r] = b.String()
	}
	return rows
}

// EncodeSnapshot compresses a snapshot using gob encoding and gzip compression.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(s); err != nil {
		gz.Close()
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot decompresses and decodes a blob produced by EncodeSnapshot.
func DecodeSnapshot(blob []byte) (*Snapshot, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty snapshot blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var s Snapshot
	if err := gob.NewDecoder(gz).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if len(s.Cells) != s.Size*s.Size {
		return nil, fmt.Errorf("decoded snapshot has %d cells, want %d", len(s.Cells), s.Size*s.Size)
	}
	return &s, nil
}
