package game

import (
	"errors"
	"fmt"

	"goldenknights/internal/oracle"
	"goldenknights/pkg/utils"

	"github.com/notnil/chess"
)

var (
	ErrPromotionPending   = errors.New("choose a promotion piece first")
	ErrNoPendingPromotion = errors.New("no promotion pending")
	ErrBadPromotion       = errors.New("promotion piece not allowed")
	ErrGameOver           = errors.New("game is over")
)

// Applied describes a move that reached the board.
type Applied struct {
	oracle.HistoryEntry
	From chess.Square `json:"-"`
	To   chess.Square `json:"-"`
}

// Outcome of a dispatch: either a move was applied or a promotion choice is
// awaited.
type Outcome struct {
	Applied *Applied
	Pending *PendingPromotion
}

// PendingPromotion holds a promoting drop until the piece is chosen.
type PendingPromotion struct {
	From    chess.Square
	To      chess.Square
	Color   chess.Color
	Choices []chess.PieceType
}

// Flash is a transient status line.
type Flash struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Text string `json:"text"`
}

func newFlash(kind, text string) *Flash {
	return &Flash{ID: utils.RandomHex(4), Kind: kind, Text: text}
}

// Guard may veto a fully specified move before it is applied.
type Guard func(from, to chess.Square, promo chess.PieceType) error

// Dispatcher validates drops against the rules and applies them.
type Dispatcher struct {
	rules     oracle.Oracle
	autoQueen bool
	guard     Guard

	pending  *PendingPromotion
	lastFrom chess.Square
	lastTo   chess.Square
	flash    *Flash
}

// NewDispatcher wraps rules. With autoQueen set, promotions never prompt.
func NewDispatcher(rules oracle.Oracle, autoQueen bool) *Dispatcher {
	return &Dispatcher{
		rules:     rules,
		autoQueen: autoQueen,
		lastFrom:  chess.NoSquare,
		lastTo:    chess.NoSquare,
	}
}

// SetGuard installs a veto hook; nil removes it.
func (d *Dispatcher) SetGuard(g Guard) { d.guard = g }

// SetAutoQueen toggles prompt-free promotion.
func (d *Dispatcher) SetAutoQueen(on bool) { d.autoQueen = on }

// Pending returns the awaited promotion, if any.
func (d *Dispatcher) Pending() *PendingPromotion { return d.pending }

// LastMove returns the squares of the last applied move, or NoSquare twice.
func (d *Dispatcher) LastMove() (chess.Square, chess.Square) { return d.lastFrom, d.lastTo }

// Flash returns the current transient status.
func (d *Dispatcher) Flash() *Flash { return d.flash }

// Notify replaces the transient status.
func (d *Dispatcher) Notify(kind, text string) { d.flash = newFlash(kind, text) }

// Dispatch tries from->to. promo may be chess.NoPieceType.
func (d *Dispatcher) Dispatch(from, to chess.Square, promo chess.PieceType) (Outcome, error) {
	if d.pending != nil {
		return Outcome{}, d.reject(ErrPromotionPending)
	}
	if d.rules.Outcome() != chess.NoOutcome {
		return Outcome{}, d.reject(ErrGameOver)
	}
	var matches []*chess.Move
	for _, m := range d.rules.LegalMoves(from) {
		if m.S2() == to {
			matches = append(matches, m)
		}
	}
	if len(matches) == 0 {
		return Outcome{}, d.reject(oracle.ErrIllegalMove)
	}
	if oracle.IsPromotion(matches) {
		if promo == chess.NoPieceType && d.autoQueen {
			promo = chess.Queen
		}
		if promo == chess.NoPieceType {
			d.pending = &PendingPromotion{
				From:    from,
				To:      to,
				Color:   d.rules.Turn(),
				Choices: promotionChoices(matches),
			}
			d.flash = nil
			return Outcome{Pending: d.pending}, nil
		}
	} else {
		promo = chess.NoPieceType
	}
	applied, err := d.apply(from, to, promo)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Applied: applied}, nil
}

// Promote resolves the pending promotion with pt.
func (d *Dispatcher) Promote(pt chess.PieceType) (Outcome, error) {
	p := d.pending
	if p == nil {
		return Outcome{}, ErrNoPendingPromotion
	}
	allowed := false
	for _, c := range p.Choices {
		if c == pt {
			allowed = true
		}
	}
	if !allowed {
		return Outcome{}, d.reject(ErrBadPromotion)
	}
	applied, err := d.apply(p.From, p.To, pt)
	if err != nil {
		d.pending = nil
		return Outcome{}, err
	}
	d.pending = nil
	return Outcome{Applied: applied}, nil
}

// CancelPromotion drops the pending promotion. The board is unchanged.
func (d *Dispatcher) CancelPromotion() bool {
	if d.pending == nil {
		return false
	}
	d.pending = nil
	return true
}

// ApplyScripted plays a UCI move without the guard, used for puzzle replies.
func (d *Dispatcher) ApplyScripted(uci string) (*Applied, error) {
	if len(uci) < 4 {
		return nil, fmt.Errorf("%w: %q", oracle.ErrIllegalMove, uci)
	}
	from, to := oracle.ParseSquare(uci[:2]), oracle.ParseSquare(uci[2:4])
	promo := chess.NoPieceType
	if len(uci) == 5 {
		promo = oracle.ParsePromotion(uci[4:])
	}
	m, err := d.rules.Apply(from, to, promo)
	if err != nil {
		return nil, err
	}
	return d.record(m), nil
}

func (d *Dispatcher) apply(from, to chess.Square, promo chess.PieceType) (*Applied, error) {
	if d.guard != nil {
		if err := d.guard(from, to, promo); err != nil {
			return nil, d.reject(err)
		}
	}
	m, err := d.rules.Apply(from, to, promo)
	if err != nil {
		return nil, d.reject(err)
	}
	d.flash = nil
	return d.record(m), nil
}

func (d *Dispatcher) record(m *chess.Move) *Applied {
	d.lastFrom, d.lastTo = m.S1(), m.S2()
	a := &Applied{From: m.S1(), To: m.S2()}
	if h := d.rules.History(); len(h) > 0 {
		a.HistoryEntry = h[len(h)-1]
	}
	return a
}

func (d *Dispatcher) reject(err error) error {
	text := "Illegal move"
	switch {
	case errors.Is(err, oracle.ErrIllegalMove):
	case errors.Is(err, ErrGameOver):
		text = "The game is over"
	default:
		text = capitalize(err.Error())
	}
	d.flash = newFlash("error", text)
	return err
}

// Undo takes back one ply and clears transient marks.
func (d *Dispatcher) Undo() bool {
	d.pending = nil
	if !d.rules.Undo() {
		return false
	}
	d.syncLastMove()
	d.flash = nil
	return true
}

// syncLastMove points the last-move marks at the final history entry.
func (d *Dispatcher) syncLastMove() {
	d.lastFrom, d.lastTo = chess.NoSquare, chess.NoSquare
	if h := d.rules.History(); len(h) > 0 {
		last := h[len(h)-1].UCI
		d.lastFrom, d.lastTo = oracle.ParseSquare(last[:2]), oracle.ParseSquare(last[2:4])
	}
}

// Reset returns to the start position.
func (d *Dispatcher) Reset() {
	d.rules.Reset()
	d.pending = nil
	d.lastFrom, d.lastTo = chess.NoSquare, chess.NoSquare
	d.flash = nil
}

// Banner is the status line and result of the game.
type Banner struct {
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Over   bool   `json:"over"`
	Check  bool   `json:"check"`
}

// Banner queries the rules for the current status.
func (d *Dispatcher) Banner() Banner {
	turn := d.rules.Turn()
	b := Banner{Check: d.rules.InCheck()}
	switch {
	case d.rules.IsCheckmate():
		b.Over = true
		b.Status = fmt.Sprintf("Checkmate. %s wins", colorTitle(turn.Other()))
	case d.rules.IsDraw():
		b.Over = true
		b.Status = "Draw by " + methodLabel(d.rules.Method())
	case d.rules.Outcome() != chess.NoOutcome:
		b.Over = true
		b.Status = "Game over"
	case b.Check:
		b.Status = fmt.Sprintf("Check! %s to move", colorTitle(turn))
	default:
		b.Status = fmt.Sprintf("%s to move", colorTitle(turn))
	}
	if b.Over {
		b.Result = string(d.rules.Outcome())
	}
	return b
}

func promotionChoices(moves []*chess.Move) []chess.PieceType {
	order := []chess.PieceType{chess.Queen, chess.Rook, chess.Bishop, chess.Knight}
	have := make(map[chess.PieceType]bool, len(moves))
	for _, m := range moves {
		have[m.Promo()] = true
	}
	out := make([]chess.PieceType, 0, len(order))
	for _, pt := range order {
		if have[pt] {
			out = append(out, pt)
		}
	}
	return out
}

func colorTitle(c chess.Color) string {
	if c == chess.Black {
		return "Black"
	}
	return "White"
}

func methodLabel(m chess.Method) string {
	switch m {
	case chess.Stalemate:
		return "stalemate"
	case chess.ThreefoldRepetition:
		return "threefold repetition"
	case chess.FivefoldRepetition:
		return "fivefold repetition"
	case chess.FiftyMoveRule:
		return "fifty-move rule"
	case chess.SeventyFiveMoveRule:
		return "seventy-five-move rule"
	case chess.InsufficientMaterial:
		return "insufficient material"
	case chess.DrawOffer:
		return "agreement"
	}
	return "rule"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
