// Package rewards keeps a player's coins, daily-puzzle streak and cosmetic
// purchases.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Persisted keys.
const (
	KeyCoins         = "coins"
	KeyStreak        = "streak"
	KeyLastCompleted = "last_completed"
	KeyGoldenKing    = "golden_king"
)

const dateLayout = "2006-01-02"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidCost       = errors.New("invalid cost")
	ErrUnknownItem       = errors.New("unknown item")
	ErrAlreadyOwned      = errors.New("already owned")
)

// Store persists ledger entries per player.
type Store interface {
	LoadEntries(ctx context.Context, playerID string) (map[string]string, error)
	SaveEntries(ctx context.Context, playerID string, entries map[string]string) error
}

// Snapshot is the ledger as shown to the player.
type Snapshot struct {
	Coins          int    `json:"coins"`
	Streak         int    `json:"streak"`
	LastCompleted  string `json:"lastCompleted,omitempty"`
	CompletedToday bool   `json:"completedToday"`
	GoldenKing     bool   `json:"goldenKing"`
}

// Completion reports the effect of CompleteDailyPuzzle.
type Completion struct {
	AlreadyDone bool `json:"alreadyDone"`
	Streak      int  `json:"streak"`
	Awarded     int  `json:"awarded"`
	Coins       int  `json:"coins"`
}

// Ledger is one player's reward state.
type Ledger struct {
	mu       sync.Mutex
	store    Store
	playerID string
	cfg      Config
	now      func() time.Time

	coins      int
	streak     int
	last       string
	goldenKing bool
}

// Open loads the ledger for playerID. now defaults to time.Now.
func Open(ctx context.Context, store Store, playerID string, cfg Config, now func() time.Time) (*Ledger, error) {
	if now == nil {
		now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	l := &Ledger{store: store, playerID: playerID, cfg: cfg, now: now}
	if store == nil {
		return l, nil
	}
	entries, err := store.LoadEntries(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", playerID, err)
	}
	l.coins = atoiNonNegative(entries[KeyCoins])
	l.streak = atoiNonNegative(entries[KeyStreak])
	if _, err := time.Parse(dateLayout, entries[KeyLastCompleted]); err == nil {
		l.last = entries[KeyLastCompleted]
	}
	l.goldenKing = entries[KeyGoldenKing] == "true"
	return l, nil
}

func atoiNonNegative(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Snapshot returns the current values.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		Coins:          l.coins,
		Streak:         l.streak,
		LastCompleted:  l.last,
		CompletedToday: l.last != "" && l.last == l.today(),
		GoldenKing:     l.goldenKing,
	}
}

func (l *Ledger) today() string {
	return l.now().In(l.cfg.Location).Format(dateLayout)
}

// CompleteDailyPuzzle records today's puzzle. A second call on the same date
// is a no-op. The streak grows only when the previous completion was
// yesterday, otherwise it restarts at one.
func (l *Ledger) CompleteDailyPuzzle(ctx context.Context) (Completion, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.today()
	if l.last == today {
		return Completion{AlreadyDone: true, Streak: l.streak, Coins: l.coins}, nil
	}
	streak := 1
	if l.last != "" && isYesterday(l.last, today) {
		streak = l.streak + 1
	}
	award := l.cfg.AwardFor(streak)
	entries := map[string]string{
		KeyLastCompleted: today,
		KeyStreak:        strconv.Itoa(streak),
	}
	if award > 0 {
		entries[KeyCoins] = strconv.Itoa(l.coins + award)
	}
	if err := l.save(ctx, entries); err != nil {
		return Completion{}, err
	}
	l.last = today
	l.streak = streak
	l.coins += award
	return Completion{Streak: streak, Awarded: award, Coins: l.coins}, nil
}

func isYesterday(last, today string) bool {
	prev, err := time.Parse(dateLayout, last)
	if err != nil {
		return false
	}
	return prev.AddDate(0, 0, 1).Format(dateLayout) == today
}

// Purchase deducts cost when the balance covers it.
func (l *Ledger) Purchase(ctx context.Context, cost int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.purchaseLocked(ctx, cost, nil)
}

func (l *Ledger) purchaseLocked(ctx context.Context, cost int, extra map[string]string) error {
	if cost < 0 {
		return ErrInvalidCost
	}
	if cost > l.coins {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, cost, l.coins)
	}
	entries := map[string]string{KeyCoins: strconv.Itoa(l.coins - cost)}
	for k, v := range extra {
		entries[k] = v
	}
	if err := l.save(ctx, entries); err != nil {
		return err
	}
	l.coins -= cost
	return nil
}

// Buy purchases a shop item by id.
func (l *Ledger) Buy(ctx context.Context, itemID string) (Item, error) {
	item, ok := l.cfg.Shop.Lookup(itemID)
	if !ok {
		return Item{}, fmt.Errorf("%w: %q", ErrUnknownItem, itemID)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ownsLocked(item.ID) {
		return item, ErrAlreadyOwned
	}
	if err := l.purchaseLocked(ctx, item.Cost, map[string]string{item.Key: "true"}); err != nil {
		return item, err
	}
	if item.Key == KeyGoldenKing {
		l.goldenKing = true
	}
	return item, nil
}

// Owns reports whether the player bought the item.
func (l *Ledger) Owns(itemID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ownsLocked(itemID)
}

func (l *Ledger) ownsLocked(itemID string) bool {
	item, ok := l.cfg.Shop.Lookup(itemID)
	return ok && item.Key == KeyGoldenKing && l.goldenKing
}

// Shop returns the configured catalog.
func (l *Ledger) Shop() Shop { return l.cfg.Shop }

func (l *Ledger) save(ctx context.Context, entries map[string]string) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.SaveEntries(ctx, l.playerID, entries); err != nil {
		return fmt.Errorf("save ledger %s: %w", l.playerID, err)
	}
	return nil
}
