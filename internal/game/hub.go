package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"goldenknights/internal/logging"
	"goldenknights/internal/oracle"
	"goldenknights/internal/puzzle"
	"goldenknights/internal/rewards"
	"goldenknights/internal/storage"

	"github.com/google/uuid"
)

// HubConfig tunes a Hub. Zero values fall back to defaults.
type HubConfig struct {
	Settings      Settings
	Rewards       rewards.Config
	Puzzles       puzzle.Catalog
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	Now           func() time.Time
}

// Hub owns the live sessions and the per-player ledgers.
type Hub struct {
	Mu       sync.Mutex
	Sessions map[uuid.UUID]*Session

	ledgers map[string]*rewards.Ledger
	archive Archive
	store   rewards.Store
	cfg     HubConfig
	stop    chan struct{}
	once    sync.Once
}

// puzzleSpace namespaces the deterministic daily puzzle ids.
var puzzleSpace = uuid.MustParse("6f1c2f5e-3d7a-4c55-9f0e-8d2b1a6c4e10")

// NewHub creates a hub with a cleanup goroutine. archive and store may be nil.
func NewHub(archive Archive, store rewards.Store, cfg HubConfig) *Hub {
	if cfg.Settings.SquareSize <= 0 {
		cfg.Settings = DefaultSettings()
	}
	if cfg.Rewards.Milestones == nil && cfg.Rewards.Shop == nil {
		cfg.Rewards = rewards.DefaultConfig()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 24 * time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	h := &Hub{
		Sessions: make(map[uuid.UUID]*Session),
		ledgers:  make(map[string]*rewards.Ledger),
		archive:  archive,
		store:    store,
		cfg:      cfg,
		stop:     make(chan struct{}),
	}
	go h.sweepLoop()
	return h
}

func (h *Hub) sweepLoop() {
	t := time.NewTicker(h.cfg.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-h.stop:
			return
		case now := <-t.C:
			if n := h.Sweep(now); n > 0 {
				logging.Debugf("swept %d idle sessions", n)
			}
		}
	}
}

// Sweep drops sessions idle for longer than the idle timeout and returns how
// many were removed. Sessions with watchers are kept.
func (h *Hub) Sweep(now time.Time) int {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	removed := 0
	for id, s := range h.Sessions {
		s.Mu.Lock()
		idle := now.Sub(s.LastSeen) > h.cfg.IdleTimeout && len(s.Watchers) == 0
		seen := s.LastSeen
		s.Mu.Unlock()
		if !idle {
			continue
		}
		if h.archive != nil {
			if err := h.archive.UpdateLastSeen(context.Background(), id, seen); err != nil {
				logging.Errorf("update last seen %s: %v", id, err)
			}
		}
		delete(h.Sessions, id)
		removed++
	}
	return removed
}

// Close stops the sweeper. It is safe to call more than once.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.stop) })
}

// Settings returns the default display options.
func (h *Hub) Settings() Settings { return h.cfg.Settings }

// Ledger returns the cached ledger of playerID, loading it on first use.
func (h *Hub) Ledger(ctx context.Context, playerID string) (*rewards.Ledger, error) {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	return h.ledgerLocked(ctx, playerID)
}

func (h *Hub) ledgerLocked(ctx context.Context, playerID string) (*rewards.Ledger, error) {
	if playerID == "" {
		return nil, storage.ErrMissingPlayer
	}
	if l, ok := h.ledgers[playerID]; ok {
		return l, nil
	}
	l, err := rewards.Open(ctx, h.store, playerID, h.cfg.Rewards, h.cfg.Now)
	if err != nil {
		return nil, err
	}
	h.ledgers[playerID] = l
	return l, nil
}

// NewGame starts a free-play session for playerID.
func (h *Hub) NewGame(ctx context.Context, playerID string) (*Session, error) {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	id := uuid.New()
	rules := oracle.New()
	if h.archive != nil {
		err := h.archive.CreateGame(ctx, storage.NewGame{
			ID:       id,
			PlayerID: playerID,
			Mode:     string(ModePlay),
			StartFEN: rules.StartPosition(),
			At:       h.cfg.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("create game: %w", err)
		}
	}
	return h.addLocked(ctx, id, playerID, ModePlay, rules, nil)
}

// NewPuzzle returns today's puzzle session for playerID. The id is derived
// from the player and the date, so reloading the page keeps the attempt.
func (h *Hub) NewPuzzle(ctx context.Context, playerID string) (*Session, error) {
	if len(h.cfg.Puzzles) == 0 {
		return nil, puzzle.ErrEmptyCatalog
	}
	loc := h.cfg.Rewards.Location
	if loc == nil {
		loc = time.Local
	}
	day := h.cfg.Now().In(loc)
	p, err := h.cfg.Puzzles.ForDate(day)
	if err != nil {
		return nil, err
	}
	id := uuid.NewSHA1(puzzleSpace, []byte(playerID+"/"+day.Format("2006-01-02")+"/"+p.ID))
	if s, err := h.Get(ctx, id, playerID); err == nil {
		return s, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	h.Mu.Lock()
	defer h.Mu.Unlock()
	if s, ok := h.Sessions[id]; ok {
		return s, nil
	}
	rules, err := oracle.NewFromFEN(p.FEN)
	if err != nil {
		return nil, err
	}
	if h.archive != nil {
		err := h.archive.CreateGame(ctx, storage.NewGame{
			ID:       id,
			PlayerID: playerID,
			Mode:     string(ModePuzzle),
			PuzzleID: p.ID,
			StartFEN: p.FEN,
			At:       h.cfg.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("create puzzle game: %w", err)
		}
	}
	return h.addLocked(ctx, id, playerID, ModePuzzle, rules, puzzle.NewAttempt(p))
}

// Get returns a live session, restoring it from the archive if needed.
// Without an archive, unknown ids yield storage.ErrNotFound.
func (h *Hub) Get(ctx context.Context, id uuid.UUID, playerID string) (*Session, error) {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	if s, ok := h.Sessions[id]; ok {
		return s, nil
	}
	if h.archive == nil {
		return nil, storage.ErrNotFound
	}
	pg, err := h.archive.LoadGame(ctx, id)
	if err != nil {
		return nil, err
	}
	rules, err := oracle.Restore(pg.Game.StartFEN, pg.UCI())
	if err != nil {
		return nil, fmt.Errorf("restore game %s: %w", id, err)
	}
	owner := pg.Game.PlayerID
	if owner == "" {
		owner = playerID
	}
	var attempt *puzzle.Attempt
	mode := Mode(pg.Game.Mode)
	if mode == ModePuzzle {
		p, ok := h.cfg.Puzzles.Lookup(pg.Game.PuzzleID)
		if !ok {
			return nil, fmt.Errorf("restore game %s: unknown puzzle %q", id, pg.Game.PuzzleID)
		}
		attempt = puzzle.NewAttempt(p)
		if !attempt.Resume(pg.UCI(), rules.IsCheckmate()) {
			logging.Errorf("puzzle game %s diverged from %s, restarting", id, p.ID)
			rules.Reset()
			attempt.Restart()
			if err := h.archive.TruncateMoves(ctx, id, 0); err != nil {
				logging.Errorf("truncate moves of %s: %v", id, err)
			}
		}
	} else {
		mode = ModePlay
	}
	logging.Debugf("restored game %s with %d moves", id, len(pg.Moves))
	return h.addLocked(ctx, id, owner, mode, rules, attempt)
}

func (h *Hub) addLocked(ctx context.Context, id uuid.UUID, playerID string, mode Mode, rules *oracle.Game, attempt *puzzle.Attempt) (*Session, error) {
	var ledger *rewards.Ledger
	if playerID != "" {
		l, err := h.ledgerLocked(ctx, playerID)
		if err != nil {
			return nil, err
		}
		ledger = l
	}
	s := newSession(sessionParams{
		id:       id,
		playerID: playerID,
		mode:     mode,
		rules:    rules,
		ledger:   ledger,
		archive:  h.archive,
		settings: h.cfg.Settings,
		attempt:  attempt,
		now:      h.cfg.Now,
	})
	h.Sessions[id] = s
	return s, nil
}

// BroadcastPlayer pushes a fresh view to every live session of playerID,
// used after a ledger change such as a purchase.
func (h *Hub) BroadcastPlayer(playerID string) {
	h.Mu.Lock()
	var owned []*Session
	for _, s := range h.Sessions {
		if s.PlayerID == playerID {
			owned = append(owned, s)
		}
	}
	h.Mu.Unlock()
	for _, s := range owned {
		s.Broadcast()
	}
}

// Stats reports archive counters, or live counts without an archive.
func (h *Hub) Stats(ctx context.Context) (storage.Stats, error) {
	if h.archive != nil {
		return h.archive.FetchStats(ctx)
	}
	h.Mu.Lock()
	defer h.Mu.Unlock()
	var st storage.Stats
	for _, s := range h.Sessions {
		st.Started++
		if s.View().Banner.Over {
			st.Completed++
		} else {
			st.Active++
		}
	}
	return st, nil
}
