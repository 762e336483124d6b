package board

import (
	"math"
	"strings"

	"github.com/notnil/chess"
)

// Orientation says which side is drawn at the bottom of the board.
type Orientation int

const (
	// WhiteBottom draws rank 1 at the bottom, file a on the left.
	WhiteBottom Orientation = iota
	// BlackBottom draws rank 8 at the bottom, file h on the left.
	BlackBottom
)

// Flip returns the opposite orientation.
func (o Orientation) Flip() Orientation {
	if o == BlackBottom {
		return WhiteBottom
	}
	return BlackBottom
}

// Color returns the side drawn at the bottom.
func (o Orientation) Color() chess.Color {
	if o == BlackBottom {
		return chess.Black
	}
	return chess.White
}

func (o Orientation) String() string {
	if o == BlackBottom {
		return "black"
	}
	return "white"
}

// ParseOrientation accepts "white" or "black"; anything else is WhiteBottom.
func ParseOrientation(s string) Orientation {
	if strings.EqualFold(strings.TrimSpace(s), "black") {
		return BlackBottom
	}
	return WhiteBottom
}

// Cell converts a visual row and column (row 0 at the top) to a square.
func (o Orientation) Cell(row, col int) chess.Square {
	if o == BlackBottom {
		return chess.NewSquare(chess.File(7-col), chess.Rank(row))
	}
	return chess.NewSquare(chess.File(col), chess.Rank(7-row))
}

// Position is the inverse of Cell.
func (o Orientation) Position(sq chess.Square) (row, col int) {
	file, rank := int(sq.File()), int(sq.Rank())
	if o == BlackBottom {
		return rank, 7 - file
	}
	return 7 - rank, file
}

// Point is a pointer position in board pixels, origin at the top-left corner.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Geometry maps pixels to squares for a rendered board.
type Geometry struct {
	SquareSize  float64
	Orientation Orientation
}

// SquareAt returns the square under p. ok is false outside the board.
func (g Geometry) SquareAt(p Point) (chess.Square, bool) {
	if g.SquareSize <= 0 || math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return chess.NoSquare, false
	}
	col := int(math.Floor(p.X / g.SquareSize))
	row := int(math.Floor(p.Y / g.SquareSize))
	if col < 0 || col > 7 || row < 0 || row > 7 {
		return chess.NoSquare, false
	}
	return g.Orientation.Cell(row, col), true
}

// Center returns the pixel centre of sq.
func (g Geometry) Center(sq chess.Square) Point {
	row, col := g.Orientation.Position(sq)
	return Point{
		X: (float64(col) + 0.5) * g.SquareSize,
		Y: (float64(row) + 0.5) * g.SquareSize,
	}
}
