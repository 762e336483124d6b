package rewards

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Milestone awards Coins when the streak reaches Streak.
type Milestone struct {
	Streak int `json:"streak"`
	Coins  int `json:"coins"`
}

// Milestones is a streak award table.
type Milestones []Milestone

// DefaultMilestones are the hand-tuned awards of the first release.
func DefaultMilestones() Milestones {
	return Milestones{{3, 25}, {7, 50}, {14, 50}, {30, 150}}
}

// ParseMilestones reads "streak:coins" pairs separated by commas, such as
// "3:25,7:50".
func ParseMilestones(s string) (Milestones, error) {
	var out Milestones
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		streak, coins, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("milestone %q: want streak:coins", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(streak))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("milestone %q: bad streak", part)
		}
		c, err := strconv.Atoi(strings.TrimSpace(coins))
		if err != nil || c < 0 {
			return nil, fmt.Errorf("milestone %q: bad coins", part)
		}
		out = append(out, Milestone{Streak: n, Coins: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Streak < out[j].Streak })
	return out, nil
}

// UnmarshalText lets Milestones be read from environment variables.
func (m *Milestones) UnmarshalText(b []byte) error {
	parsed, err := ParseMilestones(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalText is the inverse of UnmarshalText.
func (m Milestones) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m Milestones) String() string {
	parts := make([]string, 0, len(m))
	for _, ms := range m {
		parts = append(parts, fmt.Sprintf("%d:%d", ms.Streak, ms.Coins))
	}
	return strings.Join(parts, ",")
}

// Item is something the shop sells.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Cost int    `json:"cost"`
	// Key is the persisted ownership flag.
	Key string `json:"-"`
}

// GoldenKingID identifies the golden king cosmetic.
const GoldenKingID = "golden-king"

// Shop is the item catalog.
type Shop []Item

// DefaultShop sells the golden king for cost coins.
func DefaultShop(cost int) Shop {
	return Shop{{ID: GoldenKingID, Name: "Golden King", Cost: cost, Key: KeyGoldenKing}}
}

// Lookup finds an item by id.
func (s Shop) Lookup(id string) (Item, bool) {
	id = strings.TrimSpace(id)
	for _, it := range s {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Config parameterises a ledger.
type Config struct {
	Milestones Milestones
	Shop       Shop
	// Location decides where calendar days start. Defaults to time.Local.
	Location *time.Location
}

// DefaultConfig uses DefaultMilestones and a 150 coin golden king.
func DefaultConfig() Config {
	return Config{
		Milestones: DefaultMilestones(),
		Shop:       DefaultShop(150),
		Location:   time.Local,
	}
}

// AwardFor returns the coins earned on reaching streak.
func (c Config) AwardFor(streak int) int {
	total := 0
	for _, m := range c.Milestones {
		if m.Streak == streak {
			total += m.Coins
		}
	}
	return total
}
