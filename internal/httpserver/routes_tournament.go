// internal/httpserver/routes_tournament.go
//
// HTTP routes for the tournament mode.
// Exposes endpoints under /tournament:
//   - POST /tournament/new              → register a shared seed as a tournament
//   - GET  /tournament/daily            → today's deterministic daily seed
//   - GET  /tournament/{id}             → tournament metadata
//   - POST /tournament/{id}/submit      → submit a finished session's score
//   - GET  /tournament/{id}/leaderboard → top results
//
// Each player can submit once per tournament (enforced by DB UNIQUE).
// The daily seed is derived from date + salt, so every player who joins the
// daily plays the exact same deterministic session.

package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/session"
	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/tournament"
)

// tournamentServer wraps dependencies for /tournament endpoints.
type tournamentServer struct {
	srv   *Server
	store *tournament.Store
	salt  string
}

// mountTournament registers all /tournament routes.
func (s *Server) mountTournament(r chi.Router) {
	tt := &tournamentServer{
		srv:   s,
		store: tournament.NewStore(s.db),
		salt:  getEnv("DAILY_SALT", "local_dev_salt"),
	}
	r.Route("/tournament", func(r chi.Router) {
		r.Post("/new", tt.handleNew)
		r.Get("/daily", tt.handleDaily)
		r.Get("/{id}", tt.handleGet)
		r.Post("/{id}/submit", tt.handleSubmit)
		r.Get("/{id}/leaderboard", tt.handleLeaderboard)
	})
}

// -----------------------------------------------------------------------------
// /tournament/new

// newTournamentReq is the payload for POST /tournament/new. An empty seed
// gets a fresh random token.
type newTournamentReq struct {
	Seed string `json:"seed"`
}

func (t *tournamentServer) handleNew(w http.ResponseWriter, r *http.Request) {
	var req newTournamentReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	token := strings.TrimSpace(req.Seed)
	if token == "" {
		token = session.RandomSeedToken()
	}
	seed, limit := session.ParseSeedToken(token)
	canonical := session.CanonicalSeedToken(seed, limit)

	created, err := t.store.Create(r.Context(), canonical, t.srv.ownerID(w, r))
	if err != nil {
		log.Error().Err(err).Msg("create tournament")
		http.Error(w, `{"error":"create_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(created)
}

// -----------------------------------------------------------------------------
// /tournament/daily

// dailyRes is returned by GET /tournament/daily.
type dailyRes struct {
	Date string `json:"date"`
	Seed string `json:"seed"`
}

func (t *tournamentServer) handleDaily(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	_ = json.NewEncoder(w).Encode(dailyRes{
		Date: tournament.DateKey(now),
		Seed: tournament.DailySeed(now, t.salt),
	})
}

// -----------------------------------------------------------------------------
// /tournament/{id}

func (t *tournamentServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tr, err := t.store.Get(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(tr)
}

// -----------------------------------------------------------------------------
// /tournament/{id}/submit

// submitReq is the payload for POST /tournament/{id}/submit.
type submitReq struct {
	Correct   int `json:"correct"`
	Played    int `json:"played"`
	ElapsedMs int `json:"elapsedMs"`
}

// submitRes reports whether this submission counted (false when the player
// already has a result on record).
type submitRes struct {
	Accepted bool `json:"accepted"`
}

func (t *tournamentServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := t.store.Get(r.Context(), id); err != nil {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}

	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	if req.Correct < 0 || req.Played < 0 || req.Correct > req.Played || req.ElapsedMs < 0 {
		http.Error(w, `{"error":"invalid_result"}`, http.StatusBadRequest)
		return
	}

	uid := t.srv.ownerID(w, r)
	if played, err := t.store.AlreadySubmitted(r.Context(), id, uid); err == nil && played {
		_ = json.NewEncoder(w).Encode(submitRes{Accepted: false})
		return
	}
	if err := t.store.SubmitResult(r.Context(), tournament.Result{
		TournamentID: id,
		UserID:       uid,
		Correct:      req.Correct,
		Played:       req.Played,
		ElapsedMs:    req.ElapsedMs,
	}); err != nil {
		log.Error().Err(err).Str("tournament", id).Msg("submit result")
		http.Error(w, `{"error":"submit_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(submitRes{Accepted: true})
}

// -----------------------------------------------------------------------------
// /tournament/{id}/leaderboard

// lbRes is returned by GET /tournament/{id}/leaderboard.
type lbRes struct {
	TournamentID string             `json:"tournamentId"`
	Top          []tournament.LBRow `json:"top"`
}

func (t *tournamentServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rows, err := t.store.Leaderboard(r.Context(), id, 20)
	if err != nil {
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(lbRes{TournamentID: id, Top: rows})
}
