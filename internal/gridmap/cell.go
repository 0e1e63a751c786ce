package gridmap

// CellState is the classification of one grid cell.
type CellState uint8

const (
	// Unknown cells have never been touched by an update.
	Unknown CellState = iota
	// Freespace cells were crossed by a sensor ray.
	Freespace
	// Occupied cells contained the terminal point of a sensor ray.
	Occupied
)

func (s CellState) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Freespace:
		return "free"
	case Occupied:
		return "occupied"
	default:
		return "invalid"
	}
}

// Glyph returns the single character used in text dumps of the grid.
func (s CellState) Glyph() byte {
	switch s {
	case Freespace:
		return '.'
	case Occupied:
		return '#'
	default:
		return '?'
	}
}

// Cell is the stored state of one grid cell.
//
// Hits and LastTick are the Occupied payload: how many ray endpoints have
// landed in the cell and the update sequence number of the most recent one.
// They are informational; classification never reads them.
type Cell struct {
	State    CellState
	Hits     uint32
	LastTick uint64
}

// Index addresses a cell by row and column.
type Index struct {
	Row, Col int
}
