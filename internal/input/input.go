// Package input tracks a drag gesture on the board: pointer down on a piece,
// any number of moves, pointer up on a target square.
package input

import (
	"goldenknights/internal/board"

	"github.com/notnil/chess"
)

// State of the machine.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Rules is the subset of the rule oracle the machine needs.
type Rules interface {
	Board() *chess.Board
	Turn() chess.Color
	LegalMoves(from chess.Square) []*chess.Move
}

// DragState exists only while a piece is being dragged.
type DragState struct {
	From    chess.Square
	Piece   chess.Piece
	Targets []chess.Square
	Pointer board.Point
}

// Drop is the outcome of a finished gesture.
type Drop struct {
	From chess.Square
	To   chess.Square
}

// Machine is the drag state machine. The zero value is not usable; call New.
type Machine struct {
	geom board.Geometry
	drag *DragState
}

// New returns an idle machine using geom for pixel mapping.
func New(geom board.Geometry) *Machine {
	return &Machine{geom: geom}
}

// Geometry returns the current pixel mapping.
func (m *Machine) Geometry() board.Geometry { return m.geom }

// SetGeometry replaces the pixel mapping, cancelling any gesture.
func (m *Machine) SetGeometry(g board.Geometry) {
	m.drag = nil
	m.geom = g
}

// State returns Idle or Dragging.
func (m *Machine) State() State {
	if m.drag != nil {
		return Dragging
	}
	return Idle
}

// Drag returns a copy of the active drag, or nil when idle.
func (m *Machine) Drag() *DragState {
	if m.drag == nil {
		return nil
	}
	d := *m.drag
	d.Targets = append([]chess.Square(nil), m.drag.Targets...)
	return &d
}

// PointerDown starts a drag when p is over a piece of the side to move. It
// reports whether the machine entered Dragging.
func (m *Machine) PointerDown(rules Rules, p board.Point) bool {
	if m.drag != nil {
		return false
	}
	sq, ok := m.geom.SquareAt(p)
	if !ok {
		return false
	}
	piece := rules.Board().Piece(sq)
	if piece == chess.NoPiece || piece.Color() != rules.Turn() {
		return false
	}
	m.drag = &DragState{
		From:    sq,
		Piece:   piece,
		Targets: Targets(rules.LegalMoves(sq)),
		Pointer: p,
	}
	return true
}

// PointerMove repositions the dragged piece. Game state is untouched.
func (m *Machine) PointerMove(p board.Point) {
	if m.drag != nil {
		m.drag.Pointer = p
	}
}

// PointerUp ends the gesture. ok is false when nothing was dragged, the
// pointer left the board, or the piece was dropped back on its square.
func (m *Machine) PointerUp(p board.Point) (Drop, bool) {
	d := m.drag
	m.drag = nil
	if d == nil {
		return Drop{}, false
	}
	to, ok := m.geom.SquareAt(p)
	if !ok || to == d.From {
		return Drop{}, false
	}
	return Drop{From: d.From, To: to}, true
}

// Cancel abandons any gesture.
func (m *Machine) Cancel() {
	m.drag = nil
}

// Targets returns the distinct destination squares of moves, in order.
func Targets(moves []*chess.Move) []chess.Square {
	seen := make(map[chess.Square]bool, len(moves))
	out := make([]chess.Square, 0, len(moves))
	for _, mv := range moves {
		if !seen[mv.S2()] {
			seen[mv.S2()] = true
			out = append(out, mv.S2())
		}
	}
	return out
}
