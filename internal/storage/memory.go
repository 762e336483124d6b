package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory keeps games and ledgers in process. It is used when no database is
// configured and in tests.
type Memory struct {
	mu      sync.Mutex
	games   map[uuid.UUID]*Game
	moves   map[uuid.UUID][]Move
	entries map[string]map[string]string
	nextID  uint
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		games:   make(map[uuid.UUID]*Game),
		moves:   make(map[uuid.UUID][]Move),
		entries: make(map[string]map[string]string),
	}
}

// CreateGame inserts a new game; an existing game with the same id is kept.
func (m *Memory) CreateGame(_ context.Context, g NewGame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.ID]; ok {
		return nil
	}
	m.games[g.ID] = &Game{
		ID:        g.ID,
		PlayerID:  g.PlayerID,
		Mode:      g.Mode,
		PuzzleID:  g.PuzzleID,
		StartFEN:  g.StartFEN,
		FEN:       g.StartFEN,
		Active:    true,
		LastSeen:  g.At,
		CreatedAt: g.At,
		UpdatedAt: g.At,
	}
	return nil
}

// SaveGameState applies partial updates to the game.
func (m *Memory) SaveGameState(_ context.Context, id uuid.UUID, upd GameStateUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return ErrMissingGame
	}
	if upd.FEN != nil {
		g.FEN = *upd.FEN
	}
	if upd.PGN != nil {
		g.PGN = *upd.PGN
	}
	if upd.Status != nil {
		g.Status = *upd.Status
	}
	if upd.Result != nil {
		g.Result = *upd.Result
	}
	if upd.Active != nil {
		g.Active = *upd.Active
	}
	if upd.LastSeen != nil {
		g.LastSeen = *upd.LastSeen
	}
	if upd.CompletedAt != nil {
		at := *upd.CompletedAt
		g.CompletedAt = &at
	}
	g.UpdatedAt = time.Now()
	return nil
}

// RecordMove appends a move to the given game.
func (m *Memory) RecordMove(_ context.Context, gameID uuid.UUID, number int, uci, san, color string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[gameID]; !ok {
		return ErrMissingGame
	}
	m.nextID++
	m.moves[gameID] = append(m.moves[gameID], Move{
		ID:        m.nextID,
		GameID:    gameID,
		Number:    number,
		UCI:       uci,
		SAN:       san,
		Color:     color,
		CreatedAt: time.Now(),
	})
	return nil
}

// TruncateMoves drops every move numbered above keep.
func (m *Memory) TruncateMoves(_ context.Context, gameID uuid.UUID, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.moves[gameID][:0]
	for _, mv := range m.moves[gameID] {
		if mv.Number <= keep {
			kept = append(kept, mv)
		}
	}
	m.moves[gameID] = kept
	return nil
}

// LoadGame returns a copy of the game and its moves.
func (m *Memory) LoadGame(_ context.Context, id uuid.UUID) (*PersistedGame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	moves := append([]Move(nil), m.moves[id]...)
	sort.Slice(moves, func(i, j int) bool { return moves[i].Number < moves[j].Number })
	return &PersistedGame{Game: *g, Moves: moves}, nil
}

// CompleteGame marks a game as finished.
func (m *Memory) CompleteGame(ctx context.Context, id uuid.UUID, status, result string, completedAt time.Time) error {
	active := false
	return m.SaveGameState(ctx, id, GameStateUpdate{
		Status:      &status,
		Result:      &result,
		Active:      &active,
		CompletedAt: &completedAt,
	})
}

// ReopenGame clears the finished state after an undo or reset.
func (m *Memory) ReopenGame(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return ErrMissingGame
	}
	g.Status, g.Result, g.Active, g.CompletedAt = "", "", true, nil
	return nil
}

// UpdateLastSeen updates the last seen timestamp for a game.
func (m *Memory) UpdateLastSeen(ctx context.Context, id uuid.UUID, lastSeen time.Time) error {
	return m.SaveGameState(ctx, id, GameStateUpdate{LastSeen: &lastSeen})
}

// FetchStats counts started, active and finished games.
func (m *Memory) FetchStats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s Stats
	for _, g := range m.games {
		s.Started++
		if g.Active {
			s.Active++
		}
		if g.CompletedAt != nil {
			s.Completed++
		}
	}
	return s, nil
}

// LoadEntries returns a copy of a player's ledger values.
func (m *Memory) LoadEntries(_ context.Context, playerID string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.entries[playerID]))
	for k, v := range m.entries[playerID] {
		out[k] = v
	}
	return out, nil
}

// SaveEntries merges ledger values into the player's entries.
func (m *Memory) SaveEntries(_ context.Context, playerID string, entries map[string]string) error {
	if playerID == "" {
		return ErrMissingPlayer
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[playerID] == nil {
		m.entries[playerID] = make(map[string]string, len(entries))
	}
	for k, v := range entries {
		m.entries[playerID][k] = v
	}
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
