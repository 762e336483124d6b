package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"goldenknights/internal/board"
	"goldenknights/internal/input"
	"goldenknights/internal/logging"
	"goldenknights/internal/oracle"
	"goldenknights/internal/puzzle"
	"goldenknights/internal/rewards"
	"goldenknights/internal/storage"

	"github.com/google/uuid"
	"github.com/notnil/chess"
)

var (
	ErrWrongPuzzleMove = errors.New("not the best move, try again")
	ErrPuzzleSolved    = errors.New("puzzle already solved")
	ErrUndoDisabled    = errors.New("undo is not available in puzzles")
)

// Session is one board on one page: the rules, the drag gesture, the
// dispatcher and the owner's ledger. Every exported method takes Mu; callers
// never touch the fields concurrently.
type Session struct {
	Mu       sync.Mutex
	ID       uuid.UUID
	PlayerID string
	Mode     Mode
	Watchers map[chan []byte]struct{}
	LastSeen time.Time

	rules    *oracle.Game
	input    *input.Machine
	dispatch *Dispatcher
	ledger   *rewards.Ledger
	archive  Archive
	settings Settings
	side     chess.Color // the player's side, which wears the golden king
	attempt  *puzzle.Attempt
	awarded  int
	now      func() time.Time
}

type sessionParams struct {
	id       uuid.UUID
	playerID string
	mode     Mode
	rules    *oracle.Game
	ledger   *rewards.Ledger
	archive  Archive
	settings Settings
	attempt  *puzzle.Attempt
	now      func() time.Time
}

func newSession(p sessionParams) *Session {
	if p.now == nil {
		p.now = time.Now
	}
	s := &Session{
		ID:       p.id,
		PlayerID: p.playerID,
		Mode:     p.mode,
		Watchers: make(map[chan []byte]struct{}),
		LastSeen: p.now(),
		rules:    p.rules,
		ledger:   p.ledger,
		archive:  p.archive,
		settings: p.settings,
		side:     chess.White,
		attempt:  p.attempt,
		now:      p.now,
	}
	s.input = input.New(board.Geometry{SquareSize: p.settings.SquareSize, Orientation: p.settings.Orientation})
	s.dispatch = NewDispatcher(p.rules, p.settings.AutoQueen)
	if p.attempt != nil {
		s.dispatch.SetGuard(s.puzzleGuard)
		s.dispatch.SetAutoQueen(false)
		// The solver plays the side to move in the puzzle position.
		if start, err := oracle.NewFromFEN(p.rules.StartPosition()); err == nil {
			s.side = start.Turn()
		}
		s.settings.Orientation = board.WhiteBottom
		if s.side == chess.Black {
			s.settings.Orientation = board.BlackBottom
		}
		s.input.SetGeometry(s.geometry())
	}
	s.dispatch.syncLastMove()
	return s
}

func (s *Session) geometry() board.Geometry {
	return board.Geometry{SquareSize: s.settings.SquareSize, Orientation: s.settings.Orientation}
}

// Touch updates the last seen timestamp.
func (s *Session) Touch() {
	s.Mu.Lock()
	s.LastSeen = s.now()
	s.Mu.Unlock()
}

// PointerDown starts a drag if the pointer is over a movable piece.
func (s *Session) PointerDown(p board.Point) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.dispatch.Pending() != nil {
		return false
	}
	ok := s.input.PointerDown(s.rules, p)
	s.broadcastLocked()
	return ok
}

// PointerMove moves the dragged glyph.
func (s *Session) PointerMove(p board.Point) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.input.State() != input.Dragging {
		return
	}
	s.input.PointerMove(p)
	s.broadcastLocked()
}

// PointerUp drops the dragged piece and dispatches the move. A cancelled
// gesture returns a zero Outcome and no error.
func (s *Session) PointerUp(ctx context.Context, p board.Point) (Outcome, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	drop, ok := s.input.PointerUp(p)
	if !ok {
		s.broadcastLocked()
		return Outcome{}, nil
	}
	return s.dispatchLocked(ctx, drop.From, drop.To, chess.NoPieceType)
}

// CancelDrag abandons the gesture.
func (s *Session) CancelDrag() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.input.Cancel()
	s.broadcastLocked()
}

// Move dispatches a fully named move, bypassing the drag gesture.
func (s *Session) Move(ctx context.Context, from, to chess.Square, promo chess.PieceType) (Outcome, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.input.Cancel()
	return s.dispatchLocked(ctx, from, to, promo)
}

// Promote answers the promotion prompt.
func (s *Session) Promote(ctx context.Context, pt chess.PieceType) (Outcome, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	out, err := s.dispatch.Promote(pt)
	return s.afterDispatchLocked(ctx, out, err)
}

// CancelPromotion dismisses the prompt, snapping the pawn back.
func (s *Session) CancelPromotion() bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	ok := s.dispatch.CancelPromotion()
	s.broadcastLocked()
	return ok
}

func (s *Session) dispatchLocked(ctx context.Context, from, to chess.Square, promo chess.PieceType) (Outcome, error) {
	out, err := s.dispatch.Dispatch(from, to, promo)
	return s.afterDispatchLocked(ctx, out, err)
}

func (s *Session) afterDispatchLocked(ctx context.Context, out Outcome, err error) (Outcome, error) {
	defer s.broadcastLocked()
	if err != nil || out.Applied == nil {
		return out, err
	}
	s.LastSeen = s.now()
	s.persistMoveLocked(ctx, out.Applied)
	if s.attempt != nil {
		s.advancePuzzleLocked(ctx, out.Applied)
	}
	return out, nil
}

func (s *Session) puzzleGuard(from, to chess.Square, promo chess.PieceType) error {
	if s.attempt.Solved() {
		return ErrPuzzleSolved
	}
	if !s.attempt.Allows(oracle.MoveUCI(from, to, promo), s.rules.Mates(from, to, promo)) {
		return ErrWrongPuzzleMove
	}
	return nil
}

func (s *Session) advancePuzzleLocked(ctx context.Context, played *Applied) {
	reply, ok := s.attempt.Accept(played.UCI, s.rules.IsCheckmate())
	if !ok {
		return
	}
	if reply != "" {
		applied, err := s.dispatch.ApplyScripted(reply)
		if err != nil {
			logging.Errorf("puzzle %s: scripted reply %s: %v", s.attempt.Puzzle.ID, reply, err)
			return
		}
		s.persistMoveLocked(ctx, applied)
	}
	if !s.attempt.Solved() {
		s.dispatch.Notify("info", "Good move! Keep going")
		return
	}
	if s.ledger == nil {
		s.dispatch.Notify("info", "Puzzle solved!")
		return
	}
	res, err := s.ledger.CompleteDailyPuzzle(ctx)
	if err != nil {
		logging.Errorf("complete puzzle for %s: %v", s.PlayerID, err)
		s.dispatch.Notify("error", "Puzzle solved, but the reward could not be saved")
		return
	}
	s.awarded = res.Awarded
	switch {
	case res.AlreadyDone:
		s.dispatch.Notify("info", "Puzzle solved! Already counted today")
	case res.Awarded > 0:
		s.dispatch.Notify("info", fmt.Sprintf("Puzzle solved! %d day streak, +%d coins", res.Streak, res.Awarded))
	default:
		s.dispatch.Notify("info", fmt.Sprintf("Puzzle solved! %d day streak", res.Streak))
	}
}

// Undo takes back one ply. Puzzles cannot be undone, only reset.
func (s *Session) Undo(ctx context.Context) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	defer s.broadcastLocked()
	if s.attempt != nil {
		s.dispatch.Notify("error", "Undo is not available in puzzles")
		return ErrUndoDisabled
	}
	s.input.Cancel()
	if !s.dispatch.Undo() {
		return nil
	}
	s.persistRewindLocked(ctx)
	return nil
}

// Reset returns the board to its start position.
func (s *Session) Reset(ctx context.Context) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.input.Cancel()
	s.dispatch.Reset()
	if s.attempt != nil {
		s.attempt.Restart()
		s.awarded = 0
	}
	s.persistRewindLocked(ctx)
	pos := s.rules.FEN()
	logging.Debugf("session %s reset - FEN: %s", s.ID, pos)
	s.broadcastLocked()
}

// Flip toggles the board orientation.
func (s *Session) Flip() board.Orientation {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.settings.Orientation = s.settings.Orientation.Flip()
	s.input.SetGeometry(s.geometry())
	s.broadcastLocked()
	return s.settings.Orientation
}

// SetTheme selects a board theme. Unknown names are rejected.
func (s *Session) SetTheme(name string) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	t, ok := board.LookupTheme(name)
	if ok {
		s.settings.Theme = t.Name
		s.broadcastLocked()
	}
	return ok
}

// SetSquareSize records the rendered square size reported by the page.
func (s *Session) SetSquareSize(px float64) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if px <= 0 || px == s.settings.SquareSize {
		return
	}
	s.settings.SquareSize = px
	s.input.SetGeometry(s.geometry())
}

// Settings returns a copy of the display options.
func (s *Session) Settings() Settings {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.settings
}

// Ledger returns the owner's reward ledger, possibly nil.
func (s *Session) Ledger() *rewards.Ledger { return s.ledger }

// Rules exposes the rule oracle for read-only use such as rendering.
func (s *Session) Rules() *oracle.Game { return s.rules }

// Overlay returns the marks for the current state.
func (s *Session) Overlay() board.Overlay {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.overlayLocked()
}

func (s *Session) overlayLocked() board.Overlay {
	ov := board.NoOverlay()
	if d := s.input.Drag(); d != nil {
		ov.Source = d.From
		ov.Targets = d.Targets
	}
	ov.LastFrom, ov.LastTo = s.dispatch.LastMove()
	b := s.rules.Board()
	if s.rules.InCheck() {
		ov.Check = board.KingSquare(b, s.rules.Turn())
	}
	if s.ledger != nil && s.ledger.Snapshot().GoldenKing {
		ov.GoldenKing = s.side
	}
	return ov
}

// WriteSVG draws the current position as an SVG image.
func (s *Session) WriteSVG(w io.Writer) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	theme, _ := board.LookupTheme(s.settings.Theme)
	return board.WriteSVG(w, s.rules.Board(), s.settings.Orientation, theme, s.overlayLocked())
}

// View renders the current state.
func (s *Session) View() View {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	theme, _ := board.LookupTheme(s.settings.Theme)
	v := View{
		Kind:        "state",
		ID:          s.ID.String(),
		Mode:        s.Mode,
		FEN:         s.rules.FEN(),
		Turn:        oracle.ColorName(s.rules.Turn()),
		Orientation: s.settings.Orientation.String(),
		Theme:       theme.Name,
		SquareSize:  s.settings.SquareSize,
		Squares:     board.Render(s.rules.Board(), s.settings.Orientation, theme, s.overlayLocked()),
		Moves:       s.rules.History(),
		Banner:      s.dispatch.Banner(),
		Flash:       s.dispatch.Flash(),
		Themes:      board.Themes(),
		Watchers:    len(s.Watchers),
		LastSeen:    s.LastSeen.UnixMilli(),
	}
	if d := s.input.Drag(); d != nil {
		v.Drag = &DragView{
			From:  d.From.String(),
			Piece: board.PieceCode(d.Piece),
			Glyph: board.Glyph(d.Piece),
			At:    d.Pointer,
		}
	}
	if p := s.dispatch.Pending(); p != nil {
		pv := &PromotionView{From: p.From.String(), To: p.To.String(), Color: oracle.ColorName(p.Color)}
		for _, c := range p.Choices {
			pv.Choices = append(pv.Choices, c.String())
		}
		v.Promotion = pv
	}
	if s.attempt != nil {
		v.Puzzle = &PuzzleView{
			ID:      s.attempt.Puzzle.ID,
			Title:   s.attempt.Puzzle.Title,
			Solved:  s.attempt.Solved(),
			Awarded: s.awarded,
		}
		if v.Puzzle.Solved {
			v.Banner.Status = "Puzzle solved"
		}
	}
	if s.ledger != nil {
		v.Ledger = s.ledger.Snapshot()
		v.Shop = s.ledger.Shop()
	}
	return v
}

// StateJSON returns the marshalled view.
func (s *Session) StateJSON() []byte {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	data, _ := json.Marshal(s.viewLocked())
	return data
}

// AddWatcher adds a new watcher channel.
func (s *Session) AddWatcher(ch chan []byte) {
	s.Mu.Lock()
	s.Watchers[ch] = struct{}{}
	s.Mu.Unlock()
}

// RemoveWatcher removes a watcher channel.
func (s *Session) RemoveWatcher(ch chan []byte) {
	s.Mu.Lock()
	delete(s.Watchers, ch)
	s.Mu.Unlock()
}

// Broadcast sends the current view to all watchers.
func (s *Session) Broadcast() {
	s.Mu.Lock()
	s.broadcastLocked()
	s.Mu.Unlock()
}

func (s *Session) broadcastLocked() {
	if len(s.Watchers) == 0 {
		return
	}
	data, _ := json.Marshal(s.viewLocked())
	for ch := range s.Watchers {
		select {
		case ch <- data:
		default:
		}
	}
}

func (s *Session) persistMoveLocked(ctx context.Context, a *Applied) {
	if s.archive == nil {
		return
	}
	if err := s.archive.RecordMove(ctx, s.ID, a.Ply, a.UCI, a.SAN, a.Color); err != nil {
		logging.Errorf("record move %s in %s: %v", a.UCI, s.ID, err)
	}
	fen, pgn, seen := s.rules.FEN(), s.rules.PGN(), s.LastSeen
	if err := s.archive.SaveGameState(ctx, s.ID, storage.GameStateUpdate{FEN: &fen, PGN: &pgn, LastSeen: &seen}); err != nil {
		logging.Errorf("save game %s: %v", s.ID, err)
	}
	if b := s.dispatch.Banner(); b.Over {
		if err := s.archive.CompleteGame(ctx, s.ID, b.Status, b.Result, s.now()); err != nil {
			logging.Errorf("complete game %s: %v", s.ID, err)
		}
	}
}

func (s *Session) persistRewindLocked(ctx context.Context) {
	if s.archive == nil {
		return
	}
	if err := s.archive.TruncateMoves(ctx, s.ID, len(s.rules.History())); err != nil {
		logging.Errorf("truncate moves of %s: %v", s.ID, err)
	}
	if err := s.archive.ReopenGame(ctx, s.ID); err != nil {
		logging.Errorf("reopen game %s: %v", s.ID, err)
	}
	fen, pgn := s.rules.FEN(), s.rules.PGN()
	if err := s.archive.SaveGameState(ctx, s.ID, storage.GameStateUpdate{FEN: &fen, PGN: &pgn}); err != nil {
		logging.Errorf("save game %s: %v", s.ID, err)
	}
}
