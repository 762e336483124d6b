package templates

import (
	"embed"
	"html/template"
	"log"
	"net/http"

	"goldenknights/internal/rewards"
	"goldenknights/internal/storage"
)

//go:embed *.html
var files embed.FS

var pages = template.Must(template.ParseFS(files, "*.html"))

var (
	commit    = "dev"
	buildDate = ""
)

// SetCommit records the build shown in page footers.
func SetCommit(c, date string) {
	if c != "" {
		commit = c
	}
	buildDate = date
}

// HomeData feeds the home page.
type HomeData struct {
	Stats  storage.Stats
	Ledger rewards.Snapshot
	Commit string
	Built  string
}

// GameData feeds the game page.
type GameData struct {
	ID     string
	Mode   string
	Commit string
	Built  string
}

// WriteHomeHTML serves the home page template
func WriteHomeHTML(w http.ResponseWriter, data HomeData) {
	data.Commit, data.Built = commit, buildDate
	write(w, "home.html", data)
}

// WriteGameHTML serves the game page template
func WriteGameHTML(w http.ResponseWriter, data GameData) {
	data.Commit, data.Built = commit, buildDate
	write(w, "game.html", data)
}

func write(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("render %s: %v", name, err)
	}
}
