// Package puzzle serves the daily puzzle: a start position and the scripted
// line the player has to find.
package puzzle

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"goldenknights/internal/oracle"
)

//go:embed puzzles.json
var builtin []byte

// Puzzle is one exercise. Solution alternates player and opponent moves in
// UCI, starting with the player.
type Puzzle struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	FEN      string   `json:"fen"`
	Solution []string `json:"solution"`
}

// Catalog is an ordered puzzle list.
type Catalog []Puzzle

// ErrEmptyCatalog is returned when no puzzle is available.
var ErrEmptyCatalog = errors.New("empty puzzle catalog")

// Builtin returns the embedded catalog.
func Builtin() (Catalog, error) {
	return Parse(builtin)
}

// Parse decodes and validates a JSON catalog.
func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode puzzles: %w", err)
	}
	if len(c) == 0 {
		return nil, ErrEmptyCatalog
	}
	for _, p := range c {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Validate replays the solution against the rules.
func (p Puzzle) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("puzzle without id")
	}
	if len(p.Solution) == 0 || len(p.Solution)%2 == 0 {
		return fmt.Errorf("puzzle %s: solution must end on a player move", p.ID)
	}
	if _, err := oracle.Restore(p.FEN, p.Solution); err != nil {
		return fmt.Errorf("puzzle %s: %w", p.ID, err)
	}
	return nil
}

// ForDate picks the puzzle of the calendar day containing t.
func (c Catalog) ForDate(t time.Time) (Puzzle, error) {
	if len(c) == 0 {
		return Puzzle{}, ErrEmptyCatalog
	}
	y, m, d := t.Date()
	days := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
	return c[int(days%int64(len(c)))], nil
}

// Lookup finds a puzzle by id.
func (c Catalog) Lookup(id string) (Puzzle, bool) {
	for _, p := range c {
		if p.ID == id {
			return p, true
		}
	}
	return Puzzle{}, false
}

// Attempt tracks progress through a puzzle's solution.
type Attempt struct {
	Puzzle Puzzle
	ply    int
}

// NewAttempt starts at the first solution move.
func NewAttempt(p Puzzle) *Attempt {
	return &Attempt{Puzzle: p}
}

// Expected returns the next player move, or "" once solved.
func (a *Attempt) Expected() string {
	if a.Solved() {
		return ""
	}
	return a.Puzzle.Solution[a.ply]
}

// Allows reports whether uci may be played next. On the final move any
// checkmate counts, not only the scripted one.
func (a *Attempt) Allows(uci string, mates bool) bool {
	if a.Solved() {
		return false
	}
	if strings.EqualFold(uci, a.Puzzle.Solution[a.ply]) {
		return true
	}
	return mates && a.ply == len(a.Puzzle.Solution)-1
}

// Accept records a correct player move and returns the scripted reply, if
// any. It reports false when uci is not allowed.
func (a *Attempt) Accept(uci string, mates bool) (reply string, ok bool) {
	if !a.Allows(uci, mates) {
		return "", false
	}
	a.ply++
	if a.ply < len(a.Puzzle.Solution) {
		reply = a.Puzzle.Solution[a.ply]
		a.ply++
	}
	return reply, true
}

// Played returns how many solution plies were consumed.
func (a *Attempt) Played() int { return a.ply }

// Solved reports whether the whole line was played.
func (a *Attempt) Solved() bool { return a.ply >= len(a.Puzzle.Solution) }

// Restart rewinds to the first move.
func (a *Attempt) Restart() { a.ply = 0 }

// Resume fast-forwards over plies already on the board. mated tells whether
// the board is checkmate, which admits an alternative final move. It returns
// false when the played moves diverge from the solution.
func (a *Attempt) Resume(played []string, mated bool) bool {
	if len(played) > len(a.Puzzle.Solution) {
		return false
	}
	for i, uci := range played {
		if strings.EqualFold(uci, a.Puzzle.Solution[i]) {
			continue
		}
		if !mated || i != len(a.Puzzle.Solution)-1 {
			return false
		}
	}
	a.ply = len(played)
	return true
}
