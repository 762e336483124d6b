// Package board turns a rule-library board into view descriptors and maps
// pointer pixels to squares. Everything here is pure.
package board

import (
	"strings"

	"github.com/notnil/chess"
)

// SquareView describes one rendered square.
type SquareView struct {
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Square   string `json:"square"`
	Light    bool   `json:"light"`
	Class    string `json:"class"`
	Piece    string `json:"piece,omitempty"`
	Glyph    string `json:"glyph,omitempty"`
	Target   bool   `json:"target,omitempty"`
	Source   bool   `json:"source,omitempty"`
	LastMove bool   `json:"lastMove,omitempty"`
	Check    bool   `json:"check,omitempty"`
	Golden   bool   `json:"golden,omitempty"`
}

// Overlay carries the transient marks drawn over the position.
type Overlay struct {
	Source   chess.Square
	Targets  []chess.Square
	LastFrom chess.Square
	LastTo   chess.Square
	Check    chess.Square
	// GoldenKing is the colour whose king uses the golden cosmetic, or
	// chess.NoColor.
	GoldenKing chess.Color
}

// NoOverlay draws the bare position.
func NoOverlay() Overlay {
	return Overlay{
		Source:     chess.NoSquare,
		LastFrom:   chess.NoSquare,
		LastTo:     chess.NoSquare,
		Check:      chess.NoSquare,
		GoldenKing: chess.NoColor,
	}
}

// Render returns the 64 squares in visual order, top-left first.
func Render(b *chess.Board, o Orientation, theme Theme, ov Overlay) []SquareView {
	targets := make(map[chess.Square]bool, len(ov.Targets))
	for _, sq := range ov.Targets {
		targets[sq] = true
	}
	out := make([]SquareView, 0, 64)
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			sq := o.Cell(row, col)
			light := IsLight(sq)
			v := SquareView{
				Row:      row,
				Col:      col,
				Square:   sq.String(),
				Light:    light,
				Class:    theme.Class(light),
				Target:   targets[sq],
				Source:   sq == ov.Source,
				LastMove: sq == ov.LastFrom || sq == ov.LastTo,
				Check:    sq == ov.Check,
			}
			if b != nil {
				if p := b.Piece(sq); p != chess.NoPiece {
					v.Piece = PieceCode(p)
					v.Glyph = Glyph(p)
					v.Golden = p.Type() == chess.King && p.Color() == ov.GoldenKing
				}
			}
			out = append(out, v)
		}
	}
	return out
}

// IsLight reports the square colour; a1 is dark.
func IsLight(sq chess.Square) bool {
	return (int(sq.File())+int(sq.Rank()))%2 == 1
}

// KingSquare finds the king of c, or chess.NoSquare.
func KingSquare(b *chess.Board, c chess.Color) chess.Square {
	if b == nil {
		return chess.NoSquare
	}
	for sq := chess.A1; sq <= chess.H8; sq++ {
		p := b.Piece(sq)
		if p.Type() == chess.King && p.Color() == c {
			return sq
		}
	}
	return chess.NoSquare
}

// PieceCode returns a two-letter code such as "wK" or "bP": the colour
// followed by the upper-case piece letter.
func PieceCode(p chess.Piece) string {
	if p == chess.NoPiece {
		return ""
	}
	return p.Color().String() + strings.ToUpper(p.Type().String())
}

// Glyph returns the Unicode chess symbol for p.
func Glyph(p chess.Piece) string {
	if p == chess.NoPiece {
		return ""
	}
	white := p.Color() == chess.White
	switch p.Type() {
	case chess.King:
		if white {
			return "♔"
		}
		return "♚"
	case chess.Queen:
		if white {
			return "♕"
		}
		return "♛"
	case chess.Rook:
		if white {
			return "♖"
		}
		return "♜"
	case chess.Bishop:
		if white {
			return "♗"
		}
		return "♝"
	case chess.Knight:
		if white {
			return "♘"
		}
		return "♞"
	case chess.Pawn:
		if white {
			return "♙"
		}
		return "♟"
	}
	return ""
}
