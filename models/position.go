package models

import "fmt"

// Position is a cell on the board addressed by row and column
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// NewPosition creates a position
func NewPosition(row, col int) Position {
	return Position{Row: row, Col: col}
}

// DistanceTo returns the Chebyshev distance to another position.
// Aggro, attack range, explosion radius and visibility all use this metric.
func (p Position) DistanceTo(other Position) int {
	return max(abs(p.Row-other.Row), abs(p.Col-other.Col))
}

// Add returns the position offset by the given deltas
func (p Position) Add(dRow, dCol int) Position {
	return Position{Row: p.Row + dRow, Col: p.Col + dCol}
}

// Neighbors returns the four orthogonally adjacent cells (movement is 4-directional)
func (p Position) Neighbors() []Position {
	return []Position{
		p.Add(1, 0),
		p.Add(-1, 0),
		p.Add(0, 1),
		p.Add(0, -1),
	}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Helper function to calculate absolute value
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
