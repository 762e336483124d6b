package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"goldenknights/internal/game"
	"goldenknights/internal/oracle"

	"github.com/notnil/chess"
)

var errUsage = errors.New("usage")

type repl struct {
	hub     *game.Hub
	player  string
	out     io.Writer
	session *game.Session
}

func newREPL(hub *game.Hub, player string, out io.Writer) *repl {
	return &repl{hub: hub, player: player, out: out}
}

func (r *repl) prompt() string {
	if r.session == nil {
		return "gk> "
	}
	v := r.session.View()
	if v.Mode == game.ModePuzzle {
		return fmt.Sprintf("gk puzzle [%s]> ", v.Turn)
	}
	return fmt.Sprintf("gk [%s]> ", v.Turn)
}

// run executes one command line.
func (r *repl) run(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	if cmd != "new" && cmd != "puzzle" && cmd != "help" && cmd != "ledger" && cmd != "buy" && r.session == nil {
		return errors.New("no game, type 'new' or 'puzzle'")
	}
	switch cmd {
	case "help":
		r.help()
		return nil
	case "new":
		s, err := r.hub.NewGame(ctx, r.player)
		if err != nil {
			return err
		}
		r.session = s
	case "puzzle":
		s, err := r.hub.NewPuzzle(ctx, r.player)
		if err != nil {
			return err
		}
		r.session = s
	case "move", "m":
		if len(args) != 1 {
			return fmt.Errorf("%w: move e2e4", errUsage)
		}
		return r.move(ctx, args[0])
	case "promote":
		if len(args) != 1 {
			return fmt.Errorf("%w: promote q|r|b|n", errUsage)
		}
		pt := oracle.ParsePromotion(args[0])
		if pt == chess.NoPieceType {
			return fmt.Errorf("%w: promote q|r|b|n", errUsage)
		}
		if _, err := r.session.Promote(ctx, pt); err != nil {
			return err
		}
	case "cancel":
		r.session.CancelPromotion()
	case "undo":
		if err := r.session.Undo(ctx); err != nil {
			return err
		}
	case "reset":
		r.session.Reset(ctx)
	case "flip":
		r.session.Flip()
	case "theme":
		if len(args) != 1 || !r.session.SetTheme(args[0]) {
			return fmt.Errorf("%w: theme <name>", errUsage)
		}
	case "ledger":
		return r.ledger(ctx)
	case "buy":
		if len(args) != 1 {
			return fmt.Errorf("%w: buy <item>", errUsage)
		}
		return r.buy(ctx, args[0])
	case "moves":
		r.moves()
		return nil
	case "board":
	default:
		// A bare move such as "e2e4" or "a7a8q".
		if len(args) == 0 && (len(cmd) == 4 || len(cmd) == 5) {
			return r.move(ctx, cmd)
		}
		return fmt.Errorf("unknown command %q", cmd)
	}
	r.show()
	return nil
}

func (r *repl) move(ctx context.Context, uci string) error {
	uci = strings.ToLower(uci)
	if len(uci) != 4 && len(uci) != 5 {
		return fmt.Errorf("%w: move e2e4", errUsage)
	}
	from, to := oracle.ParseSquare(uci[:2]), oracle.ParseSquare(uci[2:4])
	if from == chess.NoSquare || to == chess.NoSquare {
		return fmt.Errorf("bad squares in %q", uci)
	}
	promo := chess.NoPieceType
	if len(uci) == 5 {
		promo = oracle.ParsePromotion(uci[4:])
	}
	out, err := r.session.Move(ctx, from, to, promo)
	r.show()
	if err != nil {
		return err
	}
	if out.Pending != nil {
		fmt.Fprintln(r.out, "Promote to which piece? (promote q|r|b|n, or cancel)")
	}
	return nil
}

func (r *repl) ledger(ctx context.Context) error {
	l, err := r.hub.Ledger(ctx, r.player)
	if err != nil {
		return err
	}
	snap := l.Snapshot()
	fmt.Fprintf(r.out, "Coins: %d  Streak: %d", snap.Coins, snap.Streak)
	if snap.CompletedToday {
		fmt.Fprint(r.out, "  (puzzle done today)")
	}
	fmt.Fprintln(r.out)
	for _, it := range l.Shop() {
		owned := ""
		if l.Owns(it.ID) {
			owned = " (owned)"
		}
		fmt.Fprintf(r.out, "  %-12s %-12s %4d%s\n", it.ID, it.Name, it.Cost, owned)
	}
	return nil
}

func (r *repl) buy(ctx context.Context, item string) error {
	l, err := r.hub.Ledger(ctx, r.player)
	if err != nil {
		return err
	}
	it, err := l.Buy(ctx, item)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Bought %s. %d coins left\n", it.Name, l.Snapshot().Coins)
	if r.session != nil {
		r.show()
	}
	return nil
}

func (r *repl) moves() {
	h := r.session.View().Moves
	for i := 0; i < len(h); i += 2 {
		line := fmt.Sprintf("%d. %s", i/2+1, h[i].SAN)
		if i+1 < len(h) {
			line += " " + h[i+1].SAN
		}
		fmt.Fprintln(r.out, line)
	}
}

func (r *repl) show() {
	fmt.Fprint(r.out, renderText(r.session.View()))
}

func (r *repl) help() {
	fmt.Fprint(r.out, `Commands:
  e2e4 | move e2e4   play a move (append q/r/b/n to promote)
  promote q          answer the promotion prompt
  cancel             dismiss the promotion prompt
  undo | reset       take back a move | start over
  flip               turn the board around
  theme <name>       gold, classic, green or slate
  new | puzzle       free play | today's puzzle
  ledger | buy <id>  coins and streak | spend coins
  board | moves      show the board | the move list
  exit
`)
}

// renderText draws the view as ranks of glyphs.
func renderText(v game.View) string {
	var b strings.Builder
	for row := 0; row < 8; row++ {
		sq := v.Squares[row*8]
		fmt.Fprintf(&b, "%c ", sq.Square[1])
		for col := 0; col < 8; col++ {
			sv := v.Squares[row*8+col]
			cell := "."
			if !sv.Light {
				cell = ":"
			}
			if sv.Glyph != "" {
				cell = sv.Glyph
			}
			switch {
			case sv.Golden:
				fmt.Fprintf(&b, "*%s", cell)
			case sv.LastMove:
				fmt.Fprintf(&b, "'%s", cell)
			default:
				fmt.Fprintf(&b, " %s", cell)
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString("  ")
	for col := 0; col < 8; col++ {
		fmt.Fprintf(&b, " %c", v.Squares[56+col].Square[0])
	}
	b.WriteByte('\n')
	b.WriteString(v.Banner.Status)
	if v.Puzzle != nil {
		fmt.Fprintf(&b, "  [puzzle: %s]", v.Puzzle.Title)
	}
	b.WriteByte('\n')
	if v.Flash != nil {
		b.WriteString(v.Flash.Text)
		b.WriteByte('\n')
	}
	if v.Promotion != nil {
		fmt.Fprintf(&b, "Promotion pending on %s: %s\n", v.Promotion.To, strings.Join(v.Promotion.Choices, " "))
	}
	return b.String()
}
