// Command gk-term plays GoldenKnights in a terminal, sharing the server's
// sessions, puzzles and reward ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"goldenknights/internal/board"
	"goldenknights/internal/config"
	"goldenknights/internal/game"
	"goldenknights/internal/logging"
	"goldenknights/internal/puzzle"
	"goldenknights/internal/storage"

	"github.com/chzyer/readline"
)

func main() {
	player := flag.String("player", "local", "player id owning the reward ledger")
	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logging.Debug = cfg.Debug

	hub, closeStore, err := openHub(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeStore()
	defer hub.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "gk> ",
		HistoryFile:     ".gk_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer rl.Close()

	r := newREPL(hub, *player, rl.Stdout())
	ctx := context.Background()
	if err := r.run(ctx, "new"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Fprintln(rl.Stdout(), "Type 'help' for commands")

	for {
		rl.SetPrompt(r.prompt())
		line, err := rl.Readline()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "exit" || line == "quit" {
			break
		}
		if err := r.run(ctx, line); err != nil {
			fmt.Fprintf(rl.Stdout(), "error: %v\n", err)
		}
	}
}

func openHub(cfg config.Config) (*game.Hub, func(), error) {
	rc, err := cfg.Rewards()
	if err != nil {
		return nil, nil, err
	}
	puzzles, err := puzzle.Builtin()
	if err != nil {
		return nil, nil, err
	}
	hubCfg := game.HubConfig{
		Settings: game.Settings{
			SquareSize:  cfg.SquareSize,
			Orientation: board.WhiteBottom,
			Theme:       cfg.Theme,
			AutoQueen:   cfg.AutoQueen,
		},
		Rewards:     rc,
		Puzzles:     puzzles,
		IdleTimeout: cfg.IdleTimeout,
	}
	if cfg.DatabaseURL == "" {
		mem := storage.NewMemory()
		return game.NewHub(mem, mem, hubCfg), func() {}, nil
	}
	db, err := storage.New(cfg.DatabaseURL, cfg.Debug)
	if err != nil {
		return nil, nil, err
	}
	st := storage.NewStore(db)
	return game.NewHub(st, st, hubCfg), func() { _ = st.Close() }, nil
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("move"),
		readline.PcItem("promote", readline.PcItem("q"), readline.PcItem("r"), readline.PcItem("b"), readline.PcItem("n")),
		readline.PcItem("cancel"),
		readline.PcItem("undo"),
		readline.PcItem("reset"),
		readline.PcItem("flip"),
		readline.PcItem("theme", readline.PcItemDynamic(func(string) []string {
			var names []string
			for _, t := range board.Themes() {
				names = append(names, t.Name)
			}
			return names
		})),
		readline.PcItem("new"),
		readline.PcItem("puzzle"),
		readline.PcItem("ledger"),
		readline.PcItem("buy", readline.PcItem("golden-king")),
		readline.PcItem("board"),
		readline.PcItem("moves"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}
