package grid

import "fmt"

// Size is the edge length of the square board.
const Size = 8

// Cells is the number of cells on the board.
const Cells = Size * Size

// Cell identifies a board position.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// InBounds reports whether the cell lies on the board.
func (c Cell) InBounds() bool {
	return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size
}

// Index maps a cell to its row-major index.
func (c Cell) Index() int {
	return c.Row*Size + c.Col
}

// FromIndex is the inverse of Index.
func FromIndex(i int) Cell {
	return Cell{Row: i / Size, Col: i % Size}
}

// All returns every cell in row-major order.
func All() []Cell {
	cells := make([]Cell, 0, Cells)
	for i := 0; i < Cells; i++ {
		cells = append(cells, FromIndex(i))
	}
	return cells
}

var (
	mooreOffsets = [8][2]int{
		{-1, -1}, {-1, 0}, {-1, 1},
		{0, -1}, {0, 1},
		{1, -1}, {1, 0}, {1, 1},
	}
	manhattanOffsets = [4][2]int{
		{-1, 0}, // up
		{0, -1}, // left
		{0, 1},  // right
		{1, 0},  // down
	}
)

// MooreNeighbors returns the up-to-8 cells surrounding c, diagonals
// included, clipped to the board. Reveal uses this relation.
func MooreNeighbors(c Cell) []Cell {
	return neighbors(c, mooreOffsets[:])
}

// ManhattanNeighbors returns the up-to-4 orthogonally adjacent cells of c,
// clipped to the board. Move and attack use this relation.
func ManhattanNeighbors(c Cell) []Cell {
	return neighbors(c, manhattanOffsets[:])
}

// IsMooreNeighbor reports whether b is in the Moore neighborhood of a.
func IsMooreNeighbor(a, b Cell) bool {
	return contains(MooreNeighbors(a), b)
}

// IsManhattanNeighbor reports whether b is orthogonally adjacent to a.
func IsManhattanNeighbor(a, b Cell) bool {
	return contains(ManhattanNeighbors(a), b)
}

func neighbors(c Cell, offsets [][2]int) []Cell {
	out := make([]Cell, 0, len(offsets))
	for _, d := range offsets {
		n := Cell{Row: c.Row + d[0], Col: c.Col + d[1]}
		if n.InBounds() {
			out = append(out, n)
		}
	}
	return out
}

func contains(cells []Cell, target Cell) bool {
	for _, c := range cells {
		if c == target {
			return true
		}
	}
	return false
}
