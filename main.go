package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"goldenknights/internal/board"
	"goldenknights/internal/config"
	"goldenknights/internal/game"
	"goldenknights/internal/handlers"
	"goldenknights/internal/logging"
	"goldenknights/internal/puzzle"
	"goldenknights/internal/storage"
	"goldenknights/internal/templates"
)

// backend is what the hub needs from persistence.
type backend interface {
	game.Archive
	LoadEntries(ctx context.Context, playerID string) (map[string]string, error)
	SaveEntries(ctx context.Context, playerID string, entries map[string]string) error
	Close() error
}

func main() {
	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Debug = cfg.Debug

	templates.SetCommit(commit, buildDate)

	var store backend = storage.NewMemory()
	if cfg.DatabaseURL != "" {
		db, err := storage.New(cfg.DatabaseURL, cfg.Debug)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		store = storage.NewStore(db)
	} else {
		log.Printf("no database configured, games and ledgers are kept in memory")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	rewardsCfg, err := cfg.Rewards()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	puzzles, err := puzzle.Builtin()
	if err != nil {
		log.Fatalf("puzzles: %v", err)
	}

	// Initialize game hub
	hub := game.NewHub(store, store, game.HubConfig{
		Settings: game.Settings{
			SquareSize:  cfg.SquareSize,
			Orientation: board.WhiteBottom,
			Theme:       cfg.Theme,
			AutoQueen:   cfg.AutoQueen,
		},
		Rewards:     rewardsCfg,
		Puzzles:     puzzles,
		IdleTimeout: cfg.IdleTimeout,
	})
	defer hub.Close()

	// Initialize HTTP handlers
	mux := http.NewServeMux()
	handlers.NewHandler(hub).Register(mux)

	srv := &http.Server{Addr: cfg.Addr, Handler: handlers.LogRequests(mux)}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("GoldenKnights %s listening on %s …", commit, cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
