package game

import (
	"context"
	"time"

	"goldenknights/internal/board"
	"goldenknights/internal/oracle"
	"goldenknights/internal/rewards"
	"goldenknights/internal/storage"

	"github.com/google/uuid"
)

// Mode distinguishes free play from the daily puzzle.
type Mode string

const (
	ModePlay   Mode = "play"
	ModePuzzle Mode = "puzzle"
)

// Settings are the per-session display options.
type Settings struct {
	SquareSize  float64
	Orientation board.Orientation
	Theme       string
	AutoQueen   bool
}

// DefaultSettings are used when the hub is given none.
func DefaultSettings() Settings {
	return Settings{
		SquareSize:  64,
		Orientation: board.WhiteBottom,
		Theme:       board.DefaultTheme,
	}
}

// Archive persists games. *storage.Store and *storage.Memory implement it.
type Archive interface {
	CreateGame(ctx context.Context, g storage.NewGame) error
	SaveGameState(ctx context.Context, id uuid.UUID, upd storage.GameStateUpdate) error
	RecordMove(ctx context.Context, gameID uuid.UUID, number int, uci, san, color string) error
	TruncateMoves(ctx context.Context, gameID uuid.UUID, keep int) error
	LoadGame(ctx context.Context, id uuid.UUID) (*storage.PersistedGame, error)
	CompleteGame(ctx context.Context, id uuid.UUID, status, result string, completedAt time.Time) error
	ReopenGame(ctx context.Context, id uuid.UUID) error
	UpdateLastSeen(ctx context.Context, id uuid.UUID, lastSeen time.Time) error
	FetchStats(ctx context.Context) (storage.Stats, error)
}

// PointerEvent is a pointer message from the page.
type PointerEvent struct {
	Kind string  `json:"kind" validate:"required,oneof=down move up cancel"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	// Size is the rendered square size in pixels; zero keeps the last one.
	Size float64 `json:"size" validate:"gte=0,lte=1000"`
}

// MoveRequest is a click-to-move or keyboard move.
type MoveRequest struct {
	From      string `json:"from" validate:"required,len=2"`
	To        string `json:"to" validate:"required,len=2"`
	Promotion string `json:"promotion" validate:"omitempty,oneof=q r b n"`
}

// PromotionRequest answers the promotion prompt.
type PromotionRequest struct {
	Piece  string `json:"piece" validate:"omitempty,oneof=q r b n"`
	Cancel bool   `json:"cancel"`
}

// ThemeRequest selects a board theme.
type ThemeRequest struct {
	Theme string `json:"theme" validate:"required,max=32"`
}

// BuyRequest purchases a shop item.
type BuyRequest struct {
	Item string `json:"item" validate:"required,max=64"`
}

// View is the full state pushed to the page after every change.
type View struct {
	Kind        string                `json:"kind"`
	ID          string                `json:"id"`
	Mode        Mode                  `json:"mode"`
	FEN         string                `json:"fen"`
	Turn        string                `json:"turn"`
	Orientation string                `json:"orientation"`
	Theme       string                `json:"theme"`
	SquareSize  float64               `json:"squareSize"`
	Squares     []board.SquareView    `json:"squares"`
	Drag        *DragView             `json:"drag,omitempty"`
	Promotion   *PromotionView        `json:"promotion,omitempty"`
	Moves       []oracle.HistoryEntry `json:"moves"`
	Banner      Banner                `json:"banner"`
	Flash       *Flash                `json:"flash,omitempty"`
	Puzzle      *PuzzleView           `json:"puzzle,omitempty"`
	Ledger      rewards.Snapshot      `json:"ledger"`
	Shop        []rewards.Item        `json:"shop"`
	Themes      []board.Theme         `json:"themes"`
	Watchers    int                   `json:"watchers"`
	LastSeen    int64                 `json:"lastSeen"`
}

// DragView shows the piece under the pointer.
type DragView struct {
	From  string      `json:"from"`
	Piece string      `json:"piece"`
	Glyph string      `json:"glyph"`
	At    board.Point `json:"at"`
}

// PromotionView is the promotion prompt.
type PromotionView struct {
	From    string   `json:"from"`
	To      string   `json:"to"`
	Color   string   `json:"color"`
	Choices []string `json:"choices"`
}

// PuzzleView describes the daily puzzle attempt.
type PuzzleView struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Solved  bool   `json:"solved"`
	Awarded int    `json:"awarded,omitempty"`
}
