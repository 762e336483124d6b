// Package oracle adapts github.com/notnil/chess to the small rule contract
// the board, input and dispatch layers rely on. No chess rules live here.
package oracle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	// ErrIllegalMove is returned when no legal move matches the request.
	ErrIllegalMove = errors.New("illegal move")
	// ErrBadFEN is returned when a start position cannot be parsed.
	ErrBadFEN = errors.New("bad fen")
)

// Oracle is the rule contract consumed by the session. Implementations own
// the authoritative board; callers only read it.
type Oracle interface {
	Board() *chess.Board
	Turn() chess.Color
	LegalMoves(from chess.Square) []*chess.Move
	Apply(from, to chess.Square, promo chess.PieceType) (*chess.Move, error)
	InCheck() bool
	IsCheckmate() bool
	IsDraw() bool
	Undo() bool
	Reset()
	History() []HistoryEntry
	FEN() string
	PGN() string
	Outcome() chess.Outcome
	Method() chess.Method
}

// HistoryEntry is one played ply.
type HistoryEntry struct {
	Ply   int    `json:"ply"`
	Color string `json:"color"`
	SAN   string `json:"san"`
	UCI   string `json:"uci"`
}

// Game wraps a *chess.Game together with the position it started from so
// that Undo and Reset can rebuild it.
type Game struct {
	startFEN string
	g        *chess.Game
}

// New returns an oracle at the standard starting position.
func New() *Game {
	return &Game{startFEN: StartFEN, g: chess.NewGame()}
}

// NewFromFEN returns an oracle starting from fen.
func NewFromFEN(fen string) (*Game, error) {
	g, err := newChessGame(fen)
	if err != nil {
		return nil, err
	}
	return &Game{startFEN: fen, g: g}, nil
}

// Restore rebuilds a game from its start position and the UCI moves played
// since. It stops at the first move the rules reject.
func Restore(fen string, uci []string) (*Game, error) {
	if strings.TrimSpace(fen) == "" {
		fen = StartFEN
	}
	o, err := NewFromFEN(fen)
	if err != nil {
		return nil, err
	}
	notation := chess.UCINotation{}
	for i, s := range uci {
		m, err := notation.Decode(o.g.Position(), s)
		if err != nil {
			return o, fmt.Errorf("restore ply %d %q: %w", i+1, s, ErrIllegalMove)
		}
		if err := o.g.Move(m); err != nil {
			return o, fmt.Errorf("restore ply %d %q: %w", i+1, s, ErrIllegalMove)
		}
	}
	return o, nil
}

func newChessGame(fen string) (*chess.Game, error) {
	if fen == StartFEN {
		return chess.NewGame(), nil
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFEN, err)
	}
	return chess.NewGame(opt), nil
}

// StartPosition returns the FEN the game started from.
func (o *Game) StartPosition() string { return o.startFEN }

// Board returns the current board.
func (o *Game) Board() *chess.Board { return o.g.Position().Board() }

// Turn returns the side to move.
func (o *Game) Turn() chess.Color { return o.g.Position().Turn() }

// LegalMoves returns every legal move starting on from. Promotions appear
// once per promotion piece.
func (o *Game) LegalMoves(from chess.Square) []*chess.Move {
	var out []*chess.Move
	for _, m := range o.g.ValidMoves() {
		if m.S1() == from {
			out = append(out, m)
		}
	}
	return out
}

// Apply plays the legal move matching from, to and promo. For non-promoting
// moves promo must be chess.NoPieceType.
func (o *Game) Apply(from, to chess.Square, promo chess.PieceType) (*chess.Move, error) {
	for _, m := range o.g.ValidMoves() {
		if m.S1() == from && m.S2() == to && m.Promo() == promo {
			if err := o.g.Move(m); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
			}
			return m, nil
		}
	}
	return nil, ErrIllegalMove
}

// InCheck reports whether the side to move is in check.
func (o *Game) InCheck() bool {
	moves := o.g.Moves()
	if len(moves) == 0 {
		return attacked(o.g.Position().Board(), o.Turn())
	}
	return moves[len(moves)-1].HasTag(chess.Check)
}

// attacked reports whether side's king is attacked on b. The attacker's king
// is lifted off so pinned attackers still count.
func attacked(b *chess.Board, side chess.Color) bool {
	squares := b.SquareMap()
	king := chess.NoSquare
	for sq, p := range squares {
		switch {
		case p.Type() != chess.King:
		case p.Color() == side:
			king = sq
		default:
			delete(squares, sq)
		}
	}
	if king == chess.NoSquare {
		return false
	}
	fen := chess.NewBoard(squares).String() + " " + side.Other().String() + " - - 0 1"
	opt, err := chess.FEN(fen)
	if err != nil {
		return false
	}
	for _, m := range chess.NewGame(opt).ValidMoves() {
		if m.S2() == king {
			return true
		}
	}
	return false
}

// Mates reports whether the legal move from, to, promo would deliver
// checkmate. The board is not changed.
func (o *Game) Mates(from, to chess.Square, promo chess.PieceType) bool {
	pos := o.g.Position()
	for _, m := range pos.ValidMoves() {
		if m.S1() == from && m.S2() == to && m.Promo() == promo {
			return pos.Update(m).Status() == chess.Checkmate
		}
	}
	return false
}

// IsCheckmate reports whether the game ended by checkmate.
func (o *Game) IsCheckmate() bool { return o.g.Method() == chess.Checkmate }

// IsDraw reports whether the game ended drawn.
func (o *Game) IsDraw() bool { return o.g.Outcome() == chess.Draw }

// Outcome returns the game result, chess.NoOutcome while in progress.
func (o *Game) Outcome() chess.Outcome { return o.g.Outcome() }

// Method returns how the game ended.
func (o *Game) Method() chess.Method { return o.g.Method() }

// Undo takes back the last ply. It returns false when nothing was played.
func (o *Game) Undo() bool {
	moves := o.g.Moves()
	if len(moves) == 0 {
		return false
	}
	g, err := newChessGame(o.startFEN)
	if err != nil {
		return false
	}
	for _, m := range moves[:len(moves)-1] {
		if err := g.Move(m); err != nil {
			return false
		}
	}
	o.g = g
	return true
}

// Reset returns to the start position.
func (o *Game) Reset() {
	g, err := newChessGame(o.startFEN)
	if err != nil {
		g = chess.NewGame()
		o.startFEN = StartFEN
	}
	o.g = g
}

// History returns the played moves in SAN and UCI.
func (o *Game) History() []HistoryEntry {
	moves := o.g.Moves()
	positions := o.g.Positions()
	out := make([]HistoryEntry, 0, len(moves))
	san := chess.AlgebraicNotation{}
	for i, m := range moves {
		pos := positions[i]
		out = append(out, HistoryEntry{
			Ply:   i + 1,
			Color: ColorName(pos.Turn()),
			SAN:   san.Encode(pos, m),
			UCI:   m.String(),
		})
	}
	return out
}

// UCI returns the played moves in UCI notation.
func (o *Game) UCI() []string {
	moves := o.g.Moves()
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		out = append(out, m.String())
	}
	return out
}

// FEN returns the current position.
func (o *Game) FEN() string { return o.g.Position().String() }

// PGN returns the move text of the game.
func (o *Game) PGN() string { return o.g.String() }

// ColorName returns "white" or "black".
func ColorName(c chess.Color) string {
	switch c {
	case chess.White:
		return "white"
	case chess.Black:
		return "black"
	}
	return ""
}
