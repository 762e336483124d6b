package game

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"goldenknights/internal/board"
	"goldenknights/internal/puzzle"
	"goldenknights/internal/rewards"
	"goldenknights/internal/storage"

	"github.com/notnil/chess"
)

var testNow = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestHub(t *testing.T, mem *storage.Memory, cfg rewards.Config) *Hub {
	t.Helper()
	return newPuzzleHub(t, mem, cfg, "doubled-rooks")
}

func newPuzzleHub(t *testing.T, mem *storage.Memory, cfg rewards.Config, puzzleID string) *Hub {
	t.Helper()
	c, err := puzzle.Builtin()
	if err != nil {
		t.Fatalf("puzzles: %v", err)
	}
	p, ok := c.Lookup(puzzleID)
	if !ok {
		t.Fatalf("missing puzzle %s", puzzleID)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	h := NewHub(mem, mem, HubConfig{
		Rewards: cfg,
		Puzzles: puzzle.Catalog{p},
		Now:     func() time.Time { return testNow },
	})
	t.Cleanup(h.Close)
	return h
}

func center(s *Session, sq chess.Square) board.Point {
	st := s.Settings()
	return board.Geometry{SquareSize: st.SquareSize, Orientation: st.Orientation}.Center(sq)
}

func TestDragAndDropMovesPiece(t *testing.T) {
	h := newTestHub(t, storage.NewMemory(), rewards.DefaultConfig())
	ctx := context.Background()
	s, err := h.NewGame(ctx, "p1")
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	if !s.PointerDown(center(s, chess.E2)) {
		t.Fatalf("drag did not start on e2")
	}
	v := s.View()
	if v.Drag == nil || v.Drag.From != "e2" || v.Drag.Piece != "wP" {
		t.Fatalf("unexpected drag %+v", v.Drag)
	}
	targets := map[string]bool{}
	for _, sq := range v.Squares {
		if sq.Target {
			targets[sq.Square] = true
		}
	}
	if !reflect.DeepEqual(targets, map[string]bool{"e3": true, "e4": true}) {
		t.Fatalf("unexpected targets %v", targets)
	}
	s.PointerMove(board.Point{X: 1, Y: 1})
	out, err := s.PointerUp(ctx, center(s, chess.E4))
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if out.Applied == nil || out.Applied.UCI != "e2e4" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	v = s.View()
	if v.Drag != nil || v.Turn != "black" {
		t.Fatalf("unexpected view after drop: drag=%v turn=%s", v.Drag, v.Turn)
	}
}

func TestDropOffBoardCancels(t *testing.T) {
	h := newTestHub(t, storage.NewMemory(), rewards.DefaultConfig())
	ctx := context.Background()
	s, _ := h.NewGame(ctx, "p1")
	before := s.View().FEN
	s.PointerDown(center(s, chess.G1))
	out, err := s.PointerUp(ctx, board.Point{X: -10, Y: 20})
	if err != nil || out.Applied != nil || out.Pending != nil {
		t.Fatalf("expected cancelled drop, got %+v %v", out, err)
	}
	if s.View().FEN != before {
		t.Fatalf("position changed")
	}
	if s.PointerDown(center(s, chess.E7)) {
		t.Fatalf("drag started on the side not to move")
	}
}

func TestRenderMirrorsBoard(t *testing.T) {
	h := newTestHub(t, storage.NewMemory(), rewards.DefaultConfig())
	ctx := context.Background()
	s, _ := h.NewGame(ctx, "p1")
	for _, mv := range [][2]chess.Square{{chess.E2, chess.E4}, {chess.D7, chess.D5}, {chess.E4, chess.D5}} {
		if _, err := s.Move(ctx, mv[0], mv[1], chess.NoPieceType); err != nil {
			t.Fatalf("%s%s: %v", mv[0], mv[1], err)
		}
	}
	for _, o := range []board.Orientation{board.WhiteBottom, board.BlackBottom} {
		if s.Settings().Orientation != o {
			s.Flip()
		}
		v := s.View()
		b := s.Rules().Board()
		if len(v.Squares) != 64 {
			t.Fatalf("expected 64 squares, got %d", len(v.Squares))
		}
		for _, sv := range v.Squares {
			sq := o.Cell(sv.Row, sv.Col)
			want := ""
			if p := b.Piece(sq); p != chess.NoPiece {
				want = board.PieceCode(p)
			}
			if sv.Piece != want || sv.Square != sq.String() {
				t.Fatalf("%s at %d,%d: got %q want %q", sq, sv.Row, sv.Col, sv.Piece, want)
			}
			if sv.LastMove != (sq == chess.E4 || sq == chess.D5) {
				t.Fatalf("last move mark wrong on %s", sq)
			}
		}
	}
}

func TestIllegalMoveLeavesStateAndLedger(t *testing.T) {
	mem := storage.NewMemory()
	h := newTestHub(t, mem, rewards.DefaultConfig())
	ctx := context.Background()
	s, _ := h.NewGame(ctx, "p1")
	fen := s.View().FEN
	entries, _ := mem.LoadEntries(ctx, "p1")
	if _, err := s.Move(ctx, chess.E2, chess.E5, chess.NoPieceType); err == nil {
		t.Fatalf("expected illegal move error")
	}
	if s.View().FEN != fen {
		t.Fatalf("FEN changed after illegal move")
	}
	after, _ := mem.LoadEntries(ctx, "p1")
	if !reflect.DeepEqual(entries, after) {
		t.Fatalf("ledger changed: %v -> %v", entries, after)
	}
	pg, err := mem.LoadGame(ctx, s.ID)
	if err != nil || len(pg.Moves) != 0 {
		t.Fatalf("illegal move archived: %+v %v", pg, err)
	}
	if f := s.View().Flash; f == nil || f.Text != "Illegal move" {
		t.Fatalf("unexpected flash %+v", f)
	}
}

func TestMovesAreArchived(t *testing.T) {
	mem := storage.NewMemory()
	h := newTestHub(t, mem, rewards.DefaultConfig())
	ctx := context.Background()
	s, _ := h.NewGame(ctx, "p1")
	_, _ = s.Move(ctx, chess.E2, chess.E4, chess.NoPieceType)
	_, _ = s.Move(ctx, chess.E7, chess.E5, chess.NoPieceType)
	pg, err := mem.LoadGame(ctx, s.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := pg.UCI(); !reflect.DeepEqual(got, []string{"e2e4", "e7e5"}) {
		t.Fatalf("archived moves %v", got)
	}
	if pg.Game.FEN != s.View().FEN {
		t.Fatalf("archived FEN %s", pg.Game.FEN)
	}
	if err := s.Undo(ctx); err != nil {
		t.Fatalf("undo: %v", err)
	}
	pg, _ = mem.LoadGame(ctx, s.ID)
	if got := pg.UCI(); !reflect.DeepEqual(got, []string{"e2e4"}) {
		t.Fatalf("moves after undo %v", got)
	}
	s.Reset(ctx)
	pg, _ = mem.LoadGame(ctx, s.ID)
	if len(pg.Moves) != 0 || pg.Game.FEN != s.Rules().StartPosition() {
		t.Fatalf("reset not archived: %+v", pg.Game)
	}
}

func TestPromotionThroughSession(t *testing.T) {
	h := newTestHub(t, storage.NewMemory(), rewards.DefaultConfig())
	ctx := context.Background()
	s, _ := h.NewGame(ctx, "p1")
	s.rules = newRules(t, promotionFEN)
	s.dispatch = NewDispatcher(s.rules, false)

	s.PointerDown(center(s, chess.A7))
	out, err := s.PointerUp(ctx, center(s, chess.A8))
	if err != nil || out.Pending == nil {
		t.Fatalf("expected pending promotion, got %+v %v", out, err)
	}
	v := s.View()
	if v.Promotion == nil || v.Promotion.To != "a8" || len(v.Promotion.Choices) != 4 {
		t.Fatalf("unexpected prompt %+v", v.Promotion)
	}
	if s.PointerDown(center(s, chess.E1)) {
		t.Fatalf("drag allowed while prompt open")
	}
	out, err = s.Promote(ctx, chess.Queen)
	if err != nil || out.Applied.UCI != "a7a8q" {
		t.Fatalf("promote: %+v %v", out, err)
	}
	if s.View().Promotion != nil {
		t.Fatalf("prompt still open")
	}
}

func TestWatchersReceiveState(t *testing.T) {
	h := newTestHub(t, storage.NewMemory(), rewards.DefaultConfig())
	ctx := context.Background()
	s, _ := h.NewGame(ctx, "p1")
	ch := make(chan []byte, 4)
	s.AddWatcher(ch)
	if _, err := s.Move(ctx, chess.E2, chess.E4, chess.NoPieceType); err != nil {
		t.Fatalf("move: %v", err)
	}
	select {
	case data := <-ch:
		if len(data) == 0 {
			t.Fatalf("empty broadcast")
		}
	default:
		t.Fatalf("expected broadcast after move")
	}
	s.RemoveWatcher(ch)
	if s.View().Watchers != 0 {
		t.Fatalf("watcher not removed")
	}
}

func TestThemeAndFlip(t *testing.T) {
	h := newTestHub(t, storage.NewMemory(), rewards.DefaultConfig())
	s, _ := h.NewGame(context.Background(), "p1")
	if s.SetTheme("neon") {
		t.Fatalf("unknown theme accepted")
	}
	if !s.SetTheme("green") || s.View().Theme != "green" {
		t.Fatalf("theme not applied")
	}
	if s.Flip() != board.BlackBottom {
		t.Fatalf("flip did not change orientation")
	}
	if !s.PointerDown(center(s, chess.E2)) {
		t.Fatalf("pointer mapping not updated after flip")
	}
	s.CancelDrag()
	s.SetSquareSize(40)
	if s.Settings().SquareSize != 40 {
		t.Fatalf("square size not updated")
	}
}

func TestDailyPuzzleAwardsOnce(t *testing.T) {
	mem := storage.NewMemory()
	cfg := rewards.DefaultConfig()
	cfg.Milestones = rewards.Milestones{{Streak: 1, Coins: 20}}
	cfg.Shop = rewards.DefaultShop(20)
	h := newTestHub(t, mem, cfg)
	ctx := context.Background()

	s, err := h.NewPuzzle(ctx, "p1")
	if err != nil {
		t.Fatalf("puzzle: %v", err)
	}
	if s.Mode != ModePuzzle || s.View().Puzzle.ID != "doubled-rooks" {
		t.Fatalf("unexpected session %+v", s.View().Puzzle)
	}
	again, _ := h.NewPuzzle(ctx, "p1")
	if again != s {
		t.Fatalf("daily puzzle session not reused")
	}

	fen := s.View().FEN
	if _, err := s.Move(ctx, chess.E2, chess.E7, chess.NoPieceType); !errors.Is(err, ErrWrongPuzzleMove) {
		t.Fatalf("expected ErrWrongPuzzleMove, got %v", err)
	}
	if s.View().FEN != fen {
		t.Fatalf("wrong puzzle move changed the board")
	}
	if err := s.Undo(ctx); !errors.Is(err, ErrUndoDisabled) {
		t.Fatalf("expected ErrUndoDisabled, got %v", err)
	}

	solve := func() {
		t.Helper()
		if _, err := s.Move(ctx, chess.E2, chess.E8, chess.NoPieceType); err != nil {
			t.Fatalf("e2e8: %v", err)
		}
		if got := len(s.Rules().History()); got != 2 {
			t.Fatalf("scripted reply not played, history %d", got)
		}
		if _, err := s.Move(ctx, chess.E1, chess.E8, chess.NoPieceType); err != nil {
			t.Fatalf("e1e8: %v", err)
		}
	}
	solve()
	v := s.View()
	if v.Puzzle == nil || !v.Puzzle.Solved || v.Puzzle.Awarded != 20 {
		t.Fatalf("unexpected puzzle view %+v", v.Puzzle)
	}
	if v.Ledger.Coins != 20 || v.Ledger.Streak != 1 || !v.Ledger.CompletedToday {
		t.Fatalf("unexpected ledger %+v", v.Ledger)
	}
	if !v.Banner.Over {
		t.Fatalf("expected mate after the solution")
	}

	s.Reset(ctx)
	solve()
	if l := s.View().Ledger; l.Coins != 20 || l.Streak != 1 {
		t.Fatalf("second solve changed the ledger: %+v", l)
	}

	if _, err := s.Ledger().Buy(ctx, rewards.GoldenKingID); err != nil {
		t.Fatalf("buy: %v", err)
	}
	golden := ""
	for _, sq := range s.View().Squares {
		if sq.Golden {
			golden = sq.Square
		}
	}
	if golden != "g1" {
		t.Fatalf("expected golden king on g1, got %q", golden)
	}
}

func TestPuzzleAcceptsAlternativeMate(t *testing.T) {
	cfg := rewards.DefaultConfig()
	cfg.Milestones = rewards.Milestones{{Streak: 1, Coins: 10}}
	mem := storage.NewMemory()
	h := newPuzzleHub(t, mem, cfg, "crowning")
	ctx := context.Background()
	s, err := h.NewPuzzle(ctx, "p1")
	if err != nil {
		t.Fatalf("puzzle: %v", err)
	}
	if _, err := s.Move(ctx, chess.C7, chess.C8, chess.Bishop); !errors.Is(err, ErrWrongPuzzleMove) {
		t.Fatalf("expected bishop promotion to be rejected, got %v", err)
	}
	if _, err := s.Move(ctx, chess.C7, chess.C8, chess.Rook); err != nil {
		t.Fatalf("rook promotion: %v", err)
	}
	v := s.View()
	if v.Puzzle == nil || !v.Puzzle.Solved || v.Ledger.Coins != 10 {
		t.Fatalf("rook mate did not solve: %+v %+v", v.Puzzle, v.Ledger)
	}

	h.Sweep(testNow.Add(48 * time.Hour))
	r, err := h.NewPuzzle(ctx, "p1")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if r == s || !r.attempt.Solved() || len(r.Rules().History()) != 1 {
		t.Fatalf("restored attempt lost the alternative mate")
	}
}

func TestGoldenKingStaysWithPlayerOnFlip(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	if err := mem.SaveEntries(ctx, "p1", map[string]string{rewards.KeyGoldenKing: "true"}); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	h := newTestHub(t, mem, rewards.DefaultConfig())
	s, err := h.NewGame(ctx, "p1")
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	golden := func() []string {
		var out []string
		for _, sq := range s.View().Squares {
			if sq.Golden {
				out = append(out, sq.Square)
			}
		}
		return out
	}
	if got := golden(); !reflect.DeepEqual(got, []string{"e1"}) {
		t.Fatalf("golden squares before flip: %v", got)
	}
	s.Flip()
	if got := golden(); !reflect.DeepEqual(got, []string{"e1"}) {
		t.Fatalf("golden squares after flip: %v", got)
	}
}
