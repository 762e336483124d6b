package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"goldenknights/internal/board"
	"goldenknights/internal/game"
	"goldenknights/internal/logging"
	"goldenknights/internal/oracle"
	"goldenknights/internal/rewards"
	"goldenknights/internal/storage"
	"goldenknights/internal/templates"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/notnil/chess"
)

// PlayerCookie holds the anonymous player id.
const PlayerCookie = "gk_player"

const maxBody = 4 << 10

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Hub      *game.Hub
	validate *validator.Validate
}

// NewHandler creates a new handler instance
func NewHandler(hub *game.Hub) *Handler {
	return &Handler{Hub: hub, validate: validator.New()}
}

// Register adds every route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/new", method(http.MethodGet, h.HandleNew))
	mux.HandleFunc("/puzzle", method(http.MethodGet, h.HandlePuzzle))
	mux.HandleFunc("/sse/", method(http.MethodGet, h.HandleSSE))
	mux.HandleFunc("/board/", method(http.MethodGet, h.HandleBoardSVG))
	mux.HandleFunc("/ledger", method(http.MethodGet, h.HandleLedger))
	mux.HandleFunc("/pointer/", method(http.MethodPost, h.HandlePointer))
	mux.HandleFunc("/move/", method(http.MethodPost, h.HandleMove))
	mux.HandleFunc("/promote/", method(http.MethodPost, h.HandlePromote))
	mux.HandleFunc("/undo/", method(http.MethodPost, h.HandleUndo))
	mux.HandleFunc("/reset/", method(http.MethodPost, h.HandleReset))
	mux.HandleFunc("/flip/", method(http.MethodPost, h.HandleFlip))
	mux.HandleFunc("/theme/", method(http.MethodPost, h.HandleTheme))
	mux.HandleFunc("/shop/buy", method(http.MethodPost, h.HandleBuy))
	mux.HandleFunc("/", method(http.MethodGet, h.HandlePage))
}

// PlayerID returns the player id from the cookie, issuing a new one when the
// cookie is missing or malformed.
func PlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(PlayerCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     PlayerCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// HandleNew creates a new game and redirects to it
func (h *Handler) HandleNew(w http.ResponseWriter, r *http.Request) {
	s, err := h.Hub.NewGame(r.Context(), PlayerID(w, r))
	if err != nil {
		log.Printf("new game: %v", err)
		http.Error(w, "could not create game", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/"+s.ID.String(), http.StatusFound)
}

// HandlePuzzle redirects to today's puzzle
func (h *Handler) HandlePuzzle(w http.ResponseWriter, r *http.Request) {
	s, err := h.Hub.NewPuzzle(r.Context(), PlayerID(w, r))
	if err != nil {
		log.Printf("daily puzzle: %v", err)
		http.Error(w, "no puzzle today", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/"+s.ID.String(), http.StatusFound)
}

// HandlePage serves the home page or game page
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	player := PlayerID(w, r)
	if path == "" || path == "index.html" {
		data := templates.HomeData{}
		if stats, err := h.Hub.Stats(r.Context()); err == nil {
			data.Stats = stats
		} else {
			log.Printf("stats: %v", err)
		}
		if l, err := h.Hub.Ledger(r.Context(), player); err == nil {
			data.Ledger = l.Snapshot()
		} else {
			log.Printf("ledger %s: %v", player, err)
		}
		templates.WriteHomeHTML(w, data)
		return
	}
	id, err := uuid.Parse(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	s, err := h.Hub.Get(r.Context(), id, player)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Printf("load game %s: %v", id, err)
		http.Error(w, "could not load game", http.StatusInternalServerError)
		return
	}
	s.Touch()
	templates.WriteGameHTML(w, templates.GameData{ID: s.ID.String(), Mode: string(s.Mode)})
}

// HandleSSE handles Server-Sent Events for real-time game updates
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "/sse/")
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan []byte, 16)
	s.AddWatcher(ch)
	defer s.RemoveWatcher(ch)

	_, _ = fmt.Fprintf(w, "data: %s\n\n", s.StateJSON())
	flusher.Flush()

	s.Touch()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// heartbeat
			_, _ = w.Write([]byte("data: {}\n\n"))
			flusher.Flush()
			s.Touch()
		case msg := <-ch:
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

// HandlePointer feeds a pointer event into the drag state machine
func (h *Handler) HandlePointer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "/pointer/")
	if !ok {
		return
	}
	var ev game.PointerEvent
	if !h.decode(w, r, &ev) {
		return
	}
	if ev.Size > 0 {
		s.SetSquareSize(ev.Size)
	}
	p := board.Point{X: ev.X, Y: ev.Y}
	switch ev.Kind {
	case "down":
		started := s.PointerDown(p)
		WriteJSON(w, http.StatusOK, map[string]any{"ok": started, "state": s.View()})
		return
	case "move":
		s.PointerMove(p)
	case "up":
		if _, err := s.PointerUp(r.Context(), p); err != nil {
			h.reject(w, s, err)
			return
		}
	case "cancel":
		s.CancelDrag()
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.View()})
}

// HandleMove processes a chess move named by its squares
func (h *Handler) HandleMove(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "/move/")
	if !ok {
		return
	}
	var m game.MoveRequest
	if !h.decode(w, r, &m) {
		return
	}
	from := oracle.ParseSquare(strings.ToLower(m.From))
	to := oracle.ParseSquare(strings.ToLower(m.To))
	if from == chess.NoSquare || to == chess.NoSquare {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad square"})
		return
	}
	promo := chess.NoPieceType
	if m.Promotion != "" {
		promo = oracle.ParsePromotion(m.Promotion)
	}
	logging.Debugf("move %s%s%s in %s", m.From, m.To, m.Promotion, s.ID)
	out, err := s.Move(r.Context(), from, to, promo)
	if err != nil {
		h.reject(w, s, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "pending": out.Pending != nil, "state": s.View()})
}

// HandlePromote answers or dismisses the promotion prompt
func (h *Handler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "/promote/")
	if !ok {
		return
	}
	var body game.PromotionRequest
	if !h.decode(w, r, &body) {
		return
	}
	if body.Cancel {
		ok := s.CancelPromotion()
		WriteJSON(w, http.StatusOK, map[string]any{"ok": ok, "state": s.View()})
		return
	}
	if body.Piece == "" {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "piece or cancel required"})
		return
	}
	if _, err := s.Promote(r.Context(), oracle.ParsePromotion(body.Piece)); err != nil {
		h.reject(w, s, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.View()})
}

// HandleUndo takes back one move
func (h *Handler) HandleUndo(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "/undo/")
	if !ok {
		return
	}
	if err := s.Undo(r.Context()); err != nil {
		h.reject(w, s, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.View()})
}

// HandleReset resets a game to the starting position
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "/reset/")
	if !ok {
		return
	}
	s.Reset(r.Context())
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.View()})
}

// HandleFlip toggles the board orientation
func (h *Handler) HandleFlip(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "/flip/")
	if !ok {
		return
	}
	s.Flip()
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.View()})
}

// HandleTheme switches the board colours
func (h *Handler) HandleTheme(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, "/theme/")
	if !ok {
		return
	}
	var body game.ThemeRequest
	if !h.decode(w, r, &body) {
		return
	}
	if !s.SetTheme(body.Theme) {
		WriteJSON(w, http.StatusOK, map[string]any{"ok": false, "error": "unknown theme", "state": s.View()})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "state": s.View()})
}

// HandleBuy purchases a shop item with the player's coins
func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	player := PlayerID(w, r)
	var body game.BuyRequest
	if !h.decode(w, r, &body) {
		return
	}
	l, err := h.Hub.Ledger(r.Context(), player)
	if err != nil {
		log.Printf("ledger %s: %v", player, err)
		WriteJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "ledger unavailable"})
		return
	}
	item, err := l.Buy(r.Context(), body.Item)
	switch {
	case err == nil:
	case isRuleError(err):
		WriteJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error(), "ledger": l.Snapshot()})
		return
	default:
		log.Printf("buy %s for %s: %v", body.Item, player, err)
		WriteJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "purchase failed"})
		return
	}
	h.Hub.BroadcastPlayer(player)
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "item": item, "ledger": l.Snapshot()})
}

// HandleLedger returns the player's coins, streak and purchases
func (h *Handler) HandleLedger(w http.ResponseWriter, r *http.Request) {
	player := PlayerID(w, r)
	l, err := h.Hub.Ledger(r.Context(), player)
	if err != nil {
		log.Printf("ledger %s: %v", player, err)
		WriteJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "ledger unavailable"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "ledger": l.Snapshot(), "shop": l.Shop()})
}

// HandleBoardSVG renders the current position as an image
func (h *Handler) HandleBoardSVG(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, ".svg") {
		http.NotFound(w, r)
		return
	}
	r.URL.Path = strings.TrimSuffix(r.URL.Path, ".svg")
	s, ok := h.session(w, r, "/board/")
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.WriteSVG(w); err != nil {
		log.Printf("svg %s: %v", s.ID, err)
	}
}

// session resolves the game id after prefix, writing the error response
// itself when it cannot.
func (h *Handler) session(w http.ResponseWriter, r *http.Request, prefix string) (*game.Session, bool) {
	id, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, prefix))
	if err != nil {
		WriteJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown game"})
		return nil, false
	}
	s, err := h.Hub.Get(r.Context(), id, PlayerID(w, r))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown game"})
			return nil, false
		}
		log.Printf("load game %s: %v", id, err)
		WriteJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "could not load game"})
		return nil, false
	}
	s.Touch()
	return s, true
}

// decode reads a JSON body into v and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad json"})
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		msg := "invalid request"
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg = fmt.Sprintf("invalid %s", strings.ToLower(verrs[0].Field()))
		}
		WriteJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": msg})
		return false
	}
	return true
}

// reject writes a domain error. Rule rejections are a normal outcome and keep
// status 200.
func (h *Handler) reject(w http.ResponseWriter, s *game.Session, err error) {
	if isRuleError(err) {
		WriteJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error(), "state": s.View()})
		return
	}
	log.Printf("game %s: %v", s.ID, err)
	WriteJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "internal error"})
}

var ruleErrors = []error{
	oracle.ErrIllegalMove,
	game.ErrPromotionPending,
	game.ErrNoPendingPromotion,
	game.ErrBadPromotion,
	game.ErrGameOver,
	game.ErrWrongPuzzleMove,
	game.ErrPuzzleSolved,
	game.ErrUndoDisabled,
	rewards.ErrInsufficientFunds,
	rewards.ErrUnknownItem,
	rewards.ErrAlreadyOwned,
	rewards.ErrInvalidCost,
}

func isRuleError(err error) bool {
	for _, target := range ruleErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ClientIP extracts the client IP from the request
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
