package storage

import (
	"time"

	"github.com/google/uuid"
)

// Game is one board session: a free game or a daily puzzle attempt.
type Game struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	PlayerID    string    `gorm:"size:36;index"`
	Mode        string    `gorm:"size:16"`
	PuzzleID    string    `gorm:"size:64"`
	StartFEN    string
	FEN         string
	PGN         string
	Status      string
	Result      string
	Active      bool `gorm:"index"`
	CompletedAt *time.Time
	LastSeen    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Moves       []Move
}

// Move stores a single ply of a game.
type Move struct {
	ID        uint      `gorm:"primaryKey"`
	GameID    uuid.UUID `gorm:"type:uuid;index"`
	Number    int
	UCI       string `gorm:"size:5"`
	SAN       string `gorm:"size:16"`
	Color     string `gorm:"size:5"`
	CreatedAt time.Time
}

// LedgerEntry is one persisted reward value of a player.
type LedgerEntry struct {
	PlayerID  string `gorm:"primaryKey;size:36"`
	Key       string `gorm:"primaryKey;size:32"`
	Value     string
	UpdatedAt time.Time
}
