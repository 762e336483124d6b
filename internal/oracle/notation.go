package oracle

import (
	"strings"

	"github.com/notnil/chess"
)

// ParseSquare converts an algebraic label such as "e4" to a square.
func ParseSquare(s string) chess.Square {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return chess.NoSquare
	}
	file := int(s[0]) - 'a'
	rank := int(s[1]) - '1'
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return chess.NoSquare
	}
	return chess.NewSquare(chess.File(file), chess.Rank(rank))
}

// ParsePromotion maps "q", "r", "b" and "n" to piece types. Anything else
// yields chess.NoPieceType.
func ParsePromotion(s string) chess.PieceType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "q":
		return chess.Queen
	case "r":
		return chess.Rook
	case "b":
		return chess.Bishop
	case "n":
		return chess.Knight
	}
	return chess.NoPieceType
}

// IsPromotion reports whether any of moves promotes.
func IsPromotion(moves []*chess.Move) bool {
	for _, m := range moves {
		if m.Promo() != chess.NoPieceType {
			return true
		}
	}
	return false
}

// MoveUCI formats a from/to/promotion triple the way chess.Move.String does.
func MoveUCI(from, to chess.Square, promo chess.PieceType) string {
	return from.String() + to.String() + promo.String()
}
