package oracle

import (
	"errors"
	"testing"

	"github.com/notnil/chess"
)

func TestApplyLegalMove(t *testing.T) {
	o := New()
	m, err := o.Apply(chess.E2, chess.E4, chess.NoPieceType)
	if err != nil {
		t.Fatalf("expected e2e4 to be legal, got %v", err)
	}
	if m.String() != "e2e4" {
		t.Fatalf("expected e2e4, got %s", m.String())
	}
	if o.Turn() != chess.Black {
		t.Fatalf("expected black to move")
	}
}

func TestApplyIllegalMoveLeavesBoard(t *testing.T) {
	o := New()
	before := o.FEN()
	if _, err := o.Apply(chess.E2, chess.E5, chess.NoPieceType); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if o.FEN() != before {
		t.Fatalf("board changed after illegal move")
	}
}

func TestLegalMovesFromSquare(t *testing.T) {
	o := New()
	moves := o.LegalMoves(chess.G1)
	if len(moves) != 2 {
		t.Fatalf("expected 2 knight moves, got %d", len(moves))
	}
	if len(o.LegalMoves(chess.E4)) != 0 {
		t.Fatalf("expected no moves from an empty square")
	}
}

func TestUndoAndReset(t *testing.T) {
	o := New()
	start := o.FEN()
	if o.Undo() {
		t.Fatalf("undo on a fresh game should report false")
	}
	if _, err := o.Apply(chess.E2, chess.E4, chess.NoPieceType); err != nil {
		t.Fatalf("apply: %v", err)
	}
	afterE4 := o.FEN()
	if _, err := o.Apply(chess.E7, chess.E5, chess.NoPieceType); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !o.Undo() {
		t.Fatalf("expected undo to succeed")
	}
	if o.FEN() != afterE4 {
		t.Fatalf("undo: expected %s got %s", afterE4, o.FEN())
	}
	o.Reset()
	if o.FEN() != start {
		t.Fatalf("reset: expected %s got %s", start, o.FEN())
	}
	if len(o.History()) != 0 {
		t.Fatalf("history should be empty after reset")
	}
}

func TestUndoFromCustomStart(t *testing.T) {
	fen := "4k3/P7/8/8/8/8/8/4K3 w - - 0 1"
	o, err := NewFromFEN(fen)
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	if _, err := o.Apply(chess.A7, chess.A8, chess.Queen); err != nil {
		t.Fatalf("promotion: %v", err)
	}
	o.Undo()
	if o.FEN() != fen {
		t.Fatalf("expected %s, got %s", fen, o.FEN())
	}
}

func TestHistoryNotation(t *testing.T) {
	o := New()
	for _, mv := range [][2]chess.Square{{chess.E2, chess.E4}, {chess.E7, chess.E5}, {chess.G1, chess.F3}} {
		if _, err := o.Apply(mv[0], mv[1], chess.NoPieceType); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	h := o.History()
	want := []string{"e4", "e5", "Nf3"}
	if len(h) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(h))
	}
	for i, w := range want {
		if h[i].SAN != w {
			t.Fatalf("ply %d: expected %s got %s", i+1, w, h[i].SAN)
		}
	}
	if h[1].Color != "black" || h[2].UCI != "g1f3" {
		t.Fatalf("unexpected entry %+v / %+v", h[1], h[2])
	}
}

func TestCheckAndMate(t *testing.T) {
	// Fool's mate.
	o := New()
	for _, s := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		if _, err := o.Apply(ParseSquare(s[:2]), ParseSquare(s[2:]), chess.NoPieceType); err != nil {
			t.Fatalf("apply %s: %v", s, err)
		}
	}
	if !o.InCheck() {
		t.Fatalf("expected check")
	}
	if !o.IsCheckmate() {
		t.Fatalf("expected checkmate")
	}
	if o.IsDraw() {
		t.Fatalf("checkmate is not a draw")
	}
	if o.Outcome() != chess.BlackWon {
		t.Fatalf("expected black to win, got %s", o.Outcome())
	}
}

func TestInCheckFromStartPosition(t *testing.T) {
	cases := []struct {
		name string
		fen  string
		want bool
	}{
		{"rook on the file", "4k3/8/8/8/8/8/8/4R1K1 b - - 0 1", true},
		{"pinned rook still checks", "4k3/7b/8/8/4R3/8/8/1K6 b - - 0 1", true},
		{"knight", "4k3/8/3N4/8/8/8/8/4K3 b - - 0 1", true},
		{"pawn", "4k3/3P4/8/8/8/8/8/4K3 b - - 0 1", true},
		{"quiet", "4k3/8/8/8/8/8/8/3R2K1 b - - 0 1", false},
		{"initial", StartFEN, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, err := NewFromFEN(tc.fen)
			if err != nil {
				t.Fatalf("fen: %v", err)
			}
			if got := o.InCheck(); got != tc.want {
				t.Fatalf("InCheck() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStalemateIsDraw(t *testing.T) {
	o, err := NewFromFEN("k7/8/8/2Q5/8/8/8/7K w - - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	if _, err := o.Apply(chess.C5, chess.B6, chess.NoPieceType); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !o.IsDraw() || o.IsCheckmate() {
		t.Fatalf("expected stalemate draw")
	}
	if o.Method() != chess.Stalemate {
		t.Fatalf("expected stalemate, got %s", o.Method())
	}
}

func TestRestore(t *testing.T) {
	o, err := Restore("", []string{"e2e4", "e7e5", "g1f3"})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(o.History()) != 3 || o.Turn() != chess.Black {
		t.Fatalf("unexpected restored game %s", o.FEN())
	}
	if _, err := Restore("", []string{"e2e4", "e2e4"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected restore to fail on illegal ply, got %v", err)
	}
}

func TestParseHelpers(t *testing.T) {
	if ParseSquare("e4") != chess.E4 || ParseSquare("H8") != chess.H8 {
		t.Fatalf("parse square")
	}
	if ParseSquare("i9") != chess.NoSquare || ParseSquare("e") != chess.NoSquare {
		t.Fatalf("expected NoSquare for bad input")
	}
	if ParsePromotion("q") != chess.Queen || ParsePromotion("x") != chess.NoPieceType {
		t.Fatalf("parse promotion")
	}
	if MoveUCI(chess.A7, chess.A8, chess.Queen) != "a7a8q" || MoveUCI(chess.E2, chess.E4, chess.NoPieceType) != "e2e4" {
		t.Fatalf("move uci")
	}
}
