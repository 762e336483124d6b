package rewards

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	entries map[string]map[string]string
	saves   int
	failing bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]map[string]string)}
}

func (f *fakeStore) LoadEntries(_ context.Context, player string) (map[string]string, error) {
	out := make(map[string]string)
	for k, v := range f.entries[player] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) SaveEntries(_ context.Context, player string, entries map[string]string) error {
	if f.failing {
		return errors.New("disk full")
	}
	f.saves++
	if f.entries[player] == nil {
		f.entries[player] = make(map[string]string)
	}
	for k, v := range entries {
		f.entries[player][k] = v
	}
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(days int) { c.t = c.t.AddDate(0, 0, days) }

func newLedger(t *testing.T, store Store, c *clock) *Ledger {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Location = time.UTC
	l, err := Open(context.Background(), store, "p1", cfg, c.now)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return l
}

func day(y int, m time.Month, d int) *clock {
	return &clock{t: time.Date(y, m, d, 12, 0, 0, 0, time.UTC)}
}

func TestStreakConsecutiveDays(t *testing.T) {
	c := day(2024, time.March, 1)
	l := newLedger(t, newFakeStore(), c)
	ctx := context.Background()

	res, err := l.CompleteDailyPuzzle(ctx)
	if err != nil || res.Streak != 1 {
		t.Fatalf("first completion: %+v %v", res, err)
	}
	c.advance(1)
	res, _ = l.CompleteDailyPuzzle(ctx)
	if res.Streak != 2 {
		t.Fatalf("expected streak 2, got %d", res.Streak)
	}
}

func TestStreakResetsAfterGap(t *testing.T) {
	c := day(2024, time.March, 1)
	l := newLedger(t, newFakeStore(), c)
	ctx := context.Background()
	l.CompleteDailyPuzzle(ctx)
	c.advance(1)
	l.CompleteDailyPuzzle(ctx)
	c.advance(2)
	res, _ := l.CompleteDailyPuzzle(ctx)
	if res.Streak != 1 {
		t.Fatalf("expected streak reset to 1, got %d", res.Streak)
	}
}

func TestSameDayIsNoop(t *testing.T) {
	c := day(2024, time.March, 1)
	store := newFakeStore()
	l := newLedger(t, store, c)
	ctx := context.Background()
	l.CompleteDailyPuzzle(ctx)
	saves := store.saves
	res, err := l.CompleteDailyPuzzle(ctx)
	if err != nil || !res.AlreadyDone || res.Streak != 1 || res.Awarded != 0 {
		t.Fatalf("expected no-op, got %+v %v", res, err)
	}
	if store.saves != saves {
		t.Fatalf("no-op completion must not write")
	}
}

func TestMilestoneAwardsOnce(t *testing.T) {
	c := day(2024, time.January, 1)
	l := newLedger(t, newFakeStore(), c)
	ctx := context.Background()

	awards := map[int]int{}
	for i := 1; i <= 30; i++ {
		res, err := l.CompleteDailyPuzzle(ctx)
		if err != nil {
			t.Fatalf("day %d: %v", i, err)
		}
		if res.Awarded > 0 {
			awards[res.Streak] = res.Awarded
		}
		again, _ := l.CompleteDailyPuzzle(ctx)
		if again.Awarded != 0 {
			t.Fatalf("day %d: double award", i)
		}
		c.advance(1)
	}
	want := map[int]int{3: 25, 7: 50, 14: 50, 30: 150}
	if len(awards) != len(want) {
		t.Fatalf("awards %v, want %v", awards, want)
	}
	for k, v := range want {
		if awards[k] != v {
			t.Fatalf("streak %d: awarded %d want %d", k, awards[k], v)
		}
	}
	if got := l.Snapshot().Coins; got != 275 {
		t.Fatalf("expected 275 coins, got %d", got)
	}
}

func TestStreakAcrossMonthBoundary(t *testing.T) {
	c := day(2024, time.February, 29)
	l := newLedger(t, newFakeStore(), c)
	ctx := context.Background()
	l.CompleteDailyPuzzle(ctx)
	c.advance(1)
	if res, _ := l.CompleteDailyPuzzle(ctx); res.Streak != 2 {
		t.Fatalf("expected streak 2 across month end, got %d", res.Streak)
	}
}

func TestLedgerPersistsAndReloads(t *testing.T) {
	c := day(2024, time.March, 1)
	store := newFakeStore()
	store.entries["p1"] = map[string]string{KeyCoins: "10", KeyStreak: "2", KeyLastCompleted: "2024-02-29"}
	l := newLedger(t, store, c)
	res, err := l.CompleteDailyPuzzle(context.Background())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Streak != 3 || res.Awarded != 25 || res.Coins != 35 {
		t.Fatalf("unexpected completion %+v", res)
	}
	reloaded := newLedger(t, store, c)
	snap := reloaded.Snapshot()
	if snap.Coins != 35 || snap.Streak != 3 || snap.LastCompleted != "2024-03-01" || !snap.CompletedToday {
		t.Fatalf("unexpected reload %+v", snap)
	}
}

func TestCorruptEntriesLoadAsZero(t *testing.T) {
	store := newFakeStore()
	store.entries["p1"] = map[string]string{KeyCoins: "-5", KeyStreak: "x", KeyLastCompleted: "yesterday"}
	snap := newLedger(t, store, day(2024, time.March, 1)).Snapshot()
	if snap.Coins != 0 || snap.Streak != 0 || snap.LastCompleted != "" {
		t.Fatalf("expected zero ledger, got %+v", snap)
	}
}

func TestPurchase(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.entries["p1"] = map[string]string{KeyCoins: "150"}
	l := newLedger(t, store, day(2024, time.March, 1))
	if err := l.Purchase(ctx, 150); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if l.Snapshot().Coins != 0 || store.entries["p1"][KeyCoins] != "0" {
		t.Fatalf("expected zero balance")
	}

	store.entries["p1"][KeyCoins] = "100"
	l = newLedger(t, store, day(2024, time.March, 1))
	saves := store.saves
	if err := l.Purchase(ctx, 150); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if l.Snapshot().Coins != 100 || store.saves != saves {
		t.Fatalf("failed purchase changed the ledger")
	}
	if err := l.Purchase(ctx, -1); !errors.Is(err, ErrInvalidCost) {
		t.Fatalf("expected invalid cost, got %v", err)
	}
}

func TestBuyGoldenKing(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.entries["p1"] = map[string]string{KeyCoins: "200"}
	l := newLedger(t, store, day(2024, time.March, 1))

	if _, err := l.Buy(ctx, "crown"); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected unknown item, got %v", err)
	}
	item, err := l.Buy(ctx, GoldenKingID)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if item.Cost != 150 || !l.Owns(GoldenKingID) || !l.Snapshot().GoldenKing {
		t.Fatalf("golden king not owned after purchase")
	}
	if store.entries["p1"][KeyGoldenKing] != "true" || store.entries["p1"][KeyCoins] != "50" {
		t.Fatalf("unexpected persisted entries %v", store.entries["p1"])
	}
	if _, err := l.Buy(ctx, GoldenKingID); !errors.Is(err, ErrAlreadyOwned) {
		t.Fatalf("expected already owned, got %v", err)
	}
}

func TestStoreFailureLeavesLedger(t *testing.T) {
	store := newFakeStore()
	store.entries["p1"] = map[string]string{KeyCoins: "200"}
	l := newLedger(t, store, day(2024, time.March, 1))
	store.failing = true
	if err := l.Purchase(context.Background(), 50); err == nil {
		t.Fatalf("expected store error")
	}
	if _, err := l.CompleteDailyPuzzle(context.Background()); err == nil {
		t.Fatalf("expected store error")
	}
	snap := l.Snapshot()
	if snap.Coins != 200 || snap.Streak != 0 {
		t.Fatalf("ledger changed despite failed write: %+v", snap)
	}
}

func TestParseMilestones(t *testing.T) {
	m, err := ParseMilestones("7:50, 3:25,30:150")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.String() != "3:25,7:50,30:150" {
		t.Fatalf("unexpected %s", m)
	}
	for _, bad := range []string{"3", "a:1", "3:-1", "0:5"} {
		if _, err := ParseMilestones(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	var mm Milestones
	if err := mm.UnmarshalText([]byte("5:10")); err != nil || mm.String() != "5:10" {
		t.Fatalf("unmarshal: %v %s", err, mm)
	}
}
