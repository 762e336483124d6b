// Package config reads server settings from GK_* environment variables, with
// command-line flags taking precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"goldenknights/internal/board"
	"goldenknights/internal/rewards"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config holds the server configuration.
type Config struct {
	Addr            string             `env:"GK_ADDR"             envDefault:":8080"  validate:"required"`
	DatabaseURL     string             `env:"GK_DATABASE_URL"`
	Debug           bool               `env:"GK_DEBUG"`
	SquareSize      float64            `env:"GK_SQUARE_SIZE"      envDefault:"64"     validate:"gt=0,lte=1000"`
	Theme           string             `env:"GK_THEME"            envDefault:"gold"   validate:"required"`
	AutoQueen       bool               `env:"GK_AUTO_QUEEN"`
	Timezone        string             `env:"GK_TIMEZONE"         envDefault:"Local"`
	Milestones      rewards.Milestones `env:"GK_MILESTONES"`
	GoldenKingCost  int                `env:"GK_GOLDEN_KING_COST" envDefault:"150"    validate:"gte=0"`
	IdleTimeout     time.Duration      `env:"GK_IDLE_TIMEOUT"     envDefault:"24h"    validate:"gt=0"`
	ShutdownTimeout time.Duration      `env:"GK_SHUTDOWN_TIMEOUT" envDefault:"10s"    validate:"gt=0"`
}

// ErrUnknownTheme is returned for a theme name no board theme matches.
var ErrUnknownTheme = errors.New("unknown theme")

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Milestones == nil {
		cfg.Milestones = rewards.DefaultMilestones()
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "postgres:// URL or sqlite file; empty keeps everything in memory")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
	fs.Float64Var(&cfg.SquareSize, "square-size", cfg.SquareSize, "initial square size in pixels")
	fs.StringVar(&cfg.Theme, "theme", cfg.Theme, "default board theme")
	fs.BoolVar(&cfg.AutoQueen, "auto-queen", cfg.AutoQueen, "promote to a queen without asking")
	fs.StringVar(&cfg.Timezone, "tz", cfg.Timezone, "time zone deciding when a puzzle day starts")
	fs.TextVar(&cfg.Milestones, "milestones", cfg.Milestones, "streak rewards as streak:coins pairs")
	fs.IntVar(&cfg.GoldenKingCost, "golden-king-cost", cfg.GoldenKingCost, "price of the Golden King")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges and names.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, ok := board.LookupTheme(c.Theme); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTheme, c.Theme)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Rewards builds the ledger configuration.
func (c Config) Rewards() (rewards.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return rewards.Config{}, err
	}
	return rewards.Config{
		Milestones: c.Milestones,
		Shop:       rewards.DefaultShop(c.GoldenKingCost),
		Location:   loc,
	}, nil
}
