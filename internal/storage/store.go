package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps a gorm DB instance and provides helper methods for persisting
// games and reward ledgers.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new store helper from a gorm DB.
func NewStore(db *gorm.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// DB exposes the underlying gorm DB instance.
func (s *Store) DB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ErrNotFound is returned when a record is not found.
var ErrNotFound = gorm.ErrRecordNotFound

// GameStateUpdate represents a partial update to a game row.
type GameStateUpdate struct {
	FEN         *string
	PGN         *string
	Status      *string
	Result      *string
	Active      *bool
	LastSeen    *time.Time
	CompletedAt *time.Time
}

func (u GameStateUpdate) columns() map[string]any {
	updates := make(map[string]any)
	if u.FEN != nil {
		updates["fen"] = *u.FEN
	}
	if u.PGN != nil {
		updates["pgn"] = *u.PGN
	}
	if u.Status != nil {
		updates["status"] = *u.Status
	}
	if u.Result != nil {
		updates["result"] = *u.Result
	}
	if u.Active != nil {
		updates["active"] = *u.Active
	}
	if u.LastSeen != nil {
		updates["last_seen"] = *u.LastSeen
	}
	if u.CompletedAt != nil {
		updates["completed_at"] = *u.CompletedAt
	}
	return updates
}

// NewGame describes a game row to insert.
type NewGame struct {
	ID       uuid.UUID
	PlayerID string
	Mode     string
	PuzzleID string
	StartFEN string
	At       time.Time
}

// CreateGame inserts a new game; an existing row with the same id is kept.
func (s *Store) CreateGame(ctx context.Context, g NewGame) error {
	if s == nil {
		return nil
	}
	game := Game{
		ID:       g.ID,
		PlayerID: g.PlayerID,
		Mode:     g.Mode,
		PuzzleID: g.PuzzleID,
		StartFEN: g.StartFEN,
		FEN:      g.StartFEN,
		Active:   true,
		LastSeen: g.At,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&game).Error
}

// SaveGameState applies partial updates to the game row.
func (s *Store) SaveGameState(ctx context.Context, id uuid.UUID, upd GameStateUpdate) error {
	if s == nil {
		return nil
	}
	updates := upd.columns()
	if len(updates) == 0 {
		return nil
	}
	return affected(s.db.WithContext(ctx).Model(&Game{}).Where("id = ?", id).Updates(updates))
}

func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMissingGame
	}
	return nil
}

// RecordMove inserts a move row for the given game.
func (s *Store) RecordMove(ctx context.Context, gameID uuid.UUID, number int, uci, san, color string) error {
	if s == nil {
		return nil
	}
	move := Move{
		GameID: gameID,
		Number: number,
		UCI:    uci,
		SAN:    san,
		Color:  color,
	}
	return s.db.WithContext(ctx).Create(&move).Error
}

// TruncateMoves deletes every move numbered above keep. Undo and reset use it.
func (s *Store) TruncateMoves(ctx context.Context, gameID uuid.UUID, keep int) error {
	if s == nil {
		return nil
	}
	return s.db.WithContext(ctx).Where("game_id = ? AND number > ?", gameID, keep).Delete(&Move{}).Error
}

// PersistedGame is a game row with its moves in play order.
type PersistedGame struct {
	Game  Game
	Moves []Move
}

// UCI returns the move list in UCI notation.
func (p *PersistedGame) UCI() []string {
	out := make([]string, 0, len(p.Moves))
	for _, m := range p.Moves {
		out = append(out, m.UCI)
	}
	return out
}

// LoadGame fetches a persisted game and its moves.
func (s *Store) LoadGame(ctx context.Context, id uuid.UUID) (*PersistedGame, error) {
	if s == nil {
		return nil, gorm.ErrRecordNotFound
	}
	var game Game
	if err := s.db.WithContext(ctx).First(&game, "id = ?", id).Error; err != nil {
		return nil, err
	}
	var moves []Move
	if err := s.db.WithContext(ctx).
		Where("game_id = ?", id).
		Order("number asc").
		Find(&moves).Error; err != nil {
		return nil, err
	}
	return &PersistedGame{Game: game, Moves: moves}, nil
}

// Stats represents aggregate counts for games.
type Stats struct {
	Started   int64 `json:"started"`
	Completed int64 `json:"completed"`
	Active    int64 `json:"active"`
}

// FetchStats aggregates counts for display on the home page.
func (s *Store) FetchStats(ctx context.Context) (Stats, error) {
	var stats Stats
	if s == nil {
		return stats, nil
	}
	if err := s.db.WithContext(ctx).Model(&Game{}).Count(&stats.Started).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&Game{}).Where("active = ?", true).Count(&stats.Active).Error; err != nil {
		return stats, err
	}
	if err := s.db.WithContext(ctx).Model(&Game{}).Where("completed_at IS NOT NULL").Count(&stats.Completed).Error; err != nil {
		return stats, err
	}
	return stats, nil
}

// CompleteGame marks a game as finished with the provided status and result.
func (s *Store) CompleteGame(ctx context.Context, id uuid.UUID, status, result string, completedAt time.Time) error {
	if s == nil {
		return nil
	}
	active := false
	return s.SaveGameState(ctx, id, GameStateUpdate{
		Status:      &status,
		Result:      &result,
		Active:      &active,
		CompletedAt: &completedAt,
	})
}

// ReopenGame clears the finished state after an undo or reset.
func (s *Store) ReopenGame(ctx context.Context, id uuid.UUID) error {
	if s == nil {
		return nil
	}
	return affected(s.db.WithContext(ctx).Model(&Game{}).Where("id = ?", id).Updates(map[string]any{
		"status":       "",
		"result":       "",
		"active":       true,
		"completed_at": nil,
	}))
}

// UpdateLastSeen updates the last seen timestamp for a game.
func (s *Store) UpdateLastSeen(ctx context.Context, id uuid.UUID, lastSeen time.Time) error {
	if s == nil {
		return nil
	}
	return s.SaveGameState(ctx, id, GameStateUpdate{LastSeen: &lastSeen})
}

// LoadEntries returns every ledger value of a player.
func (s *Store) LoadEntries(ctx context.Context, playerID string) (map[string]string, error) {
	out := make(map[string]string)
	if s == nil {
		return out, nil
	}
	var rows []LedgerEntry
	if err := s.db.WithContext(ctx).Where("player_id = ?", playerID).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// SaveEntries upserts ledger values in one transaction.
func (s *Store) SaveEntries(ctx context.Context, playerID string, entries map[string]string) error {
	if s == nil {
		return nil
	}
	if playerID == "" {
		return ErrMissingPlayer
	}
	if len(entries) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]LedgerEntry, 0, len(entries))
	for k, v := range entries {
		rows = append(rows, LedgerEntry{PlayerID: playerID, Key: k, Value: v, UpdatedAt: now})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
	})
}

var (
	// ErrMissingGame is returned when an update targets a game that was never created.
	ErrMissingGame = errors.New("game not found")
	// ErrMissingPlayer is returned when a ledger write has no owner.
	ErrMissingPlayer = errors.New("player id is required")
)
