// internal/httpserver/server.go
//
// HTTP server wiring for the Review Guesser tournament backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Session endpoints (optional auth): GET /session, POST /session/seed,
//     POST /session/settings, POST /session/reset.
//   - Round endpoints (optional auth): POST /round/next, POST /round/answer,
//     POST /round/void, GET /round.
//   - Tournament endpoints: mounted under /tournament.
//   - Auth endpoints (require auth where noted): /auth/*.
//   - JWT + cookie handling, anonymous session cookie, user CRUD helpers.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Each owner (user id or anonymous cookie) gets one live session
//     controller, created lazily over a KV scope namespaced by owner; the
//     durable record survives restarts in SQLite.

package httpserver

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/catalog"
	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/lifecycle"
	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/session"
	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/store"
)

// Server bundles router, session registry, catalog, and DB handle.
type Server struct {
	r        *chi.Mux
	registry store.Registry
	catalog  *catalog.Catalog
	db       *sql.DB
	kv       session.KV
}

// New constructs a Server, installs middleware, and registers routes.
func New(reg store.Registry, cat *catalog.Catalog, db *sql.DB) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		registry: reg,
		catalog:  cat,
		db:       db,
		kv:       session.NewSQLiteKV(db),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(corsFromEnv)                     // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"review-guesser","endpoints":["/health","GET /session","POST /round/next","POST /round/answer","/tournament/*","/auth/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// Session + round endpoints — OPTIONAL AUTH (guests can play)
	s.r.With(s.withOptionalAuth()).Group(func(r chi.Router) {
		r.Get("/session", s.handleSessionState)
		r.Post("/session/seed", s.handleSetSeed)
		r.Post("/session/settings", s.handleSettings)
		r.Post("/session/reset", s.handleReset)

		r.Get("/round", s.handleCurrentRound)
		r.Post("/round/next", s.handleNextRound)
		r.Post("/round/answer", s.handleAnswer)
		r.Post("/round/void", s.handleVoid)
	})

	// Tournaments — OPTIONAL AUTH (guests submit under their anon id)
	s.mountTournament(s.r.With(s.withOptionalAuth()))

	// Auth
	s.mountAuthRoutes()

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	// Debug: catalog counts
	s.r.Get("/debug/catalog", func(w http.ResponseWriter, r *http.Request) {
		games, dlc := cat.Stats()
		_ = json.NewEncoder(w).Encode(map[string]int{"games": games, "dlc": dlc})
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:5173.
func corsFromEnv(next http.Handler) http.Handler {
	origin := os.Getenv("CLIENT_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ----------------------------- SESSION -------------------------------------

// sessionFor returns the live controller for the request's owner, creating
// one lazily over an owner-scoped KV namespace.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *lifecycle.Controller {
	owner := s.ownerID(w, r)
	if c, err := s.registry.Get(r.Context(), owner); err == nil {
		return c
	}
	kv := session.Namespaced(s.kv, "sess:"+owner)
	st := session.NewStore(kv, log.With().Str("owner", owner).Logger())
	c := lifecycle.New(st, s.catalog, s.catalog, s.catalog, log.With().Str("owner", owner).Logger())
	if secs := envInt("ROUND_SECONDS", 0); secs > 0 {
		c.SetRoundDuration(time.Duration(secs) * time.Second)
	}
	if err := s.registry.Save(r.Context(), owner, c); err != nil {
		log.Warn().Err(err).Str("owner", owner).Msg("save session controller")
	}
	return c
}

// ownerID is the authenticated user id, or the anonymous cookie id.
func (s *Server) ownerID(w http.ResponseWriter, r *http.Request) string {
	if me, _ := r.Context().Value(ctxUserKey{}).(*authUser); me != nil {
		return me.ID
	}
	return s.ensureAnonID(w, r)
}

// sessionStateRes mirrors the persisted session record.
type sessionStateRes struct {
	Seed          string `json:"seed"` // canonical, with limit suffix if finite
	PlayCount     int    `json:"playCount"`
	NavCount      int    `json:"navigationCount"`
	CorrectCount  int    `json:"correctCount"`
	GameLimit     int    `json:"gameLimit"` // 0 = unlimited
	GameMode      string `json:"gameMode"`  // "" = both
	ContentFilter bool   `json:"contentFilter"`
}

func stateRes(rec session.Record) sessionStateRes {
	return sessionStateRes{
		Seed:          session.CanonicalSeedToken(rec.Seed, rec.GameLimit),
		PlayCount:     rec.PlayCount,
		NavCount:      rec.NavigationCount,
		CorrectCount:  rec.CorrectCount,
		GameLimit:     rec.GameLimit,
		GameMode:      string(rec.GameMode),
		ContentFilter: rec.ContentFilter,
	}
}

// handleSessionState restores (or creates) the owner's session and returns
// its record. A ?seed= query parameter acts like a URL-supplied seed token.
func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	c := s.sessionFor(w, r)
	c.Store().RestoreOrInit(r.URL.Query().Get("seed"))
	_ = json.NewEncoder(w).Encode(stateRes(c.Store().Record()))
}

// setSeedReq is the payload for POST /session/seed.
type setSeedReq struct {
	Token string  `json:"token"`
	Limit *int    `json:"limit,omitempty"` // overrides any :limit suffix
	Mode  *string `json:"mode,omitempty"`
}

// handleSetSeed replaces the session identity and resets counters.
func (s *Server) handleSetSeed(w http.ResponseWriter, r *http.Request) {
	var req setSeedReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		req.Token = session.RandomSeedToken()
	}
	var modeOverride *session.Mode
	if req.Mode != nil {
		m := session.ParseMode(*req.Mode)
		modeOverride = &m
	}
	c := s.sessionFor(w, r)
	canonical := c.Store().SetSeed(req.Token, req.Limit, modeOverride)
	res := stateRes(c.Store().Record())
	res.Seed = canonical
	_ = json.NewEncoder(w).Encode(res)
}

// settingsReq is the payload for POST /session/settings; only the fields
// present are applied.
type settingsReq struct {
	Limit  *int    `json:"limit,omitempty"`
	Mode   *string `json:"mode,omitempty"`
	Filter *bool   `json:"filter,omitempty"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	c := s.sessionFor(w, r)
	st := c.Store()
	st.RestoreOrInit("")
	if req.Limit != nil {
		st.SetGameLimit(*req.Limit)
	}
	if req.Mode != nil {
		st.SetGameMode(session.ParseMode(*req.Mode))
	}
	if req.Filter != nil {
		st.SetFilterEnabled(*req.Filter)
	}
	_ = json.NewEncoder(w).Encode(stateRes(st.Record()))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	c := s.sessionFor(w, r)
	c.Store().RestoreOrInit("")
	c.Store().ResetCounters()
	_ = json.NewEncoder(w).Encode(stateRes(c.Store().Record()))
}

// ------------------------------ ROUNDS -------------------------------------

// roundRes describes an in-flight round. The true value is only included
// once the round is answered.
type roundRes struct {
	TargetID  string `json:"targetId"`
	Name      string `json:"name,omitempty"`
	Choices   []int  `json:"choices"`
	PlayCount int    `json:"playCount"`
	Answered  bool   `json:"answered"`
}

func (s *Server) roundRes(c *lifecycle.Controller, rd lifecycle.Round) roundRes {
	name := ""
	if e, ok := s.catalog.Get(rd.TargetID); ok {
		name = e.Name
	}
	return roundRes{
		TargetID:  rd.TargetID,
		Name:      name,
		Choices:   rd.Choices,
		PlayCount: c.Store().Record().PlayCount,
		Answered:  rd.Answered,
	}
}

// handleNextRound advances the session to a new round.
func (s *Server) handleNextRound(w http.ResponseWriter, r *http.Request) {
	c := s.sessionFor(w, r)
	c.Store().RestoreOrInit(r.URL.Query().Get("seed"))
	rd, err := c.Advance()
	if err != nil {
		writeLifecycleErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(s.roundRes(c, rd))
}

// handleCurrentRound returns the in-flight round, if any.
func (s *Server) handleCurrentRound(w http.ResponseWriter, r *http.Request) {
	c := s.sessionFor(w, r)
	rd, ok := c.CurrentRound()
	if !ok {
		http.Error(w, `{"error":"no_round"}`, http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(s.roundRes(c, rd))
}

// answerReq/Res payloads for POST /round/answer.
type answerReq struct {
	Value int `json:"value"`
}
type answerRes struct {
	Correct      bool `json:"correct"`
	TrueValue    int  `json:"trueValue"`
	CorrectCount int  `json:"correctCount"`
}

// handleAnswer marks the round answered; repeated calls are no-ops that
// report the original outcome.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	c := s.sessionFor(w, r)
	correct, trueValue, err := c.MarkAnswered(req.Value)
	if err != nil {
		writeLifecycleErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(answerRes{
		Correct:      correct,
		TrueValue:    trueValue,
		CorrectCount: c.Store().Record().CorrectCount,
	})
}

// handleVoid voids the in-flight round and retries with a fresh target.
func (s *Server) handleVoid(w http.ResponseWriter, r *http.Request) {
	c := s.sessionFor(w, r)
	rd, err := c.VoidAndRetry()
	if err != nil {
		writeLifecycleErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(s.roundRes(c, rd))
}

// writeLifecycleErr maps controller errors onto user-visible statuses.
func writeLifecycleErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrLimitReached):
		http.Error(w, `{"error":"limit_reached"}`, http.StatusConflict)
	case errors.Is(err, lifecycle.ErrRetryExhausted):
		http.Error(w, `{"error":"retry_exhausted"}`, http.StatusConflict)
	case errors.Is(err, lifecycle.ErrNoRound):
		http.Error(w, `{"error":"no_round"}`, http.StatusNotFound)
	default:
		log.Error().Err(err).Msg("round handler")
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	}
}

// ------------------------------- AUTH --------------------------------------

// Request payloads for signup/login.
type signupReq struct{ Username, Password string }
type loginReq struct{ Username, Password string }

// authUser is placed into request context by auth middleware.
type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// mountAuthRoutes registers authentication + gated routes (/auth/*).
func (s *Server) mountAuthRoutes() {
	s.r.Post("/auth/signup", s.handleSignup)
	s.r.Post("/auth/login", s.handleLogin)
	s.r.Post("/auth/logout", s.handleLogout)

	// Current user (gated)
	s.r.With(s.requireAuth()).Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		me, _ := r.Context().Value(ctxUserKey{}).(*authUser)
		if me == nil {
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(me)
	})
}

// handleSignup creates a new user, signs a JWT, and sets the auth cookie.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body signupReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	u, err := s.createUser(body.Username, body.Password)
	if err != nil {
		if err.Error() == "username taken" {
			http.Error(w, `{"error":"Username taken"}`, http.StatusConflict)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	tok, exp, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	s.setAuthCookie(w, tok, exp)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": u.ID, "username": u.Username, "createdAt": u.CreatedAt})
}

// handleLogin authenticates a user and sets the auth cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	u, err := s.findUserByUsername(strings.TrimSpace(body.Username))
	if err != nil || !checkPassword(u.PasswordHash, body.Password) {
		http.Error(w, `{"error":"Invalid username or password"}`, http.StatusUnauthorized)
		return
	}
	tok, exp, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	s.setAuthCookie(w, tok, exp)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": u.ID, "username": u.Username})
}

// handleLogout clears the auth cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// --------------------------- optional auth ---------------------------------

// withOptionalAuth decorates requests with user context if a valid JWT is
// present. It never 401s; used for routes where guests are allowed.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := bearerOrCookie(r); tok != "" {
				claims := jwt.MapClaims{}
				if t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
					return []byte(getEnv("JWT_SECRET", "dev_secret_change_me")), nil
				}); err == nil && t.Valid {
					if id, _ := claims["id"].(string); id != "" {
						if u, err := s.findUserByID(id); err == nil {
							ctx := context.WithValue(r.Context(), ctxUserKey{}, &authUser{ID: u.ID, Username: u.Username})
							r = r.WithContext(ctx)
						}
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

const anonCookieName = "rg_anon"

// ensureAnonID returns an existing anon cookie or sets a new one.
// Used to give guest sessions a stable persisted-state scope.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := genID()
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   os.Getenv("NODE_ENV") == "production",
		SameSite: func() http.SameSite {
			if os.Getenv("NODE_ENV") == "production" {
				return http.SameSiteNoneMode
			}
			return http.SameSiteLaxMode
		}(),
		Expires: time.Now().Add(180 * 24 * time.Hour),
	})
	return id
}

// ------------------------ auth helpers & users -----------------------------

// userRow matches the users table shape.
type userRow struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// createUser validates input, checks uniqueness, hashes password, and
// inserts a new user.
func (s *Server) createUser(username, pw string) (*userRow, error) {
	username = normalizeUsername(username)
	if err := validateSignup(username, pw); err != nil {
		return nil, err
	}
	var exists int
	_ = s.db.QueryRow(`SELECT 1 FROM users WHERE lower(username)=lower(?)`, username).Scan(&exists)
	if exists == 1 {
		return nil, errors.New("username taken")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	id := genID()
	if _, err := s.db.Exec(`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		id, username, string(h), now); err != nil {
		return nil, err
	}
	return &userRow{ID: id, Username: username, PasswordHash: string(h), CreatedAt: mustParse(now)}, nil
}

// findUserByUsername/ID load a user row or return an error if missing.
func (s *Server) findUserByUsername(username string) (*userRow, error) {
	row := s.db.QueryRow(`SELECT id, username, password_hash, created_at
	                      FROM users WHERE lower(username)=lower(?)`, username)
	return scanUser(row)
}
func (s *Server) findUserByID(id string) (*userRow, error) {
	row := s.db.QueryRow(`SELECT id, username, password_hash, created_at
	                      FROM users WHERE id=?`, id)
	return scanUser(row)
}

// scanUser converts a *sql.Row into a userRow.
func scanUser(row *sql.Row) (*userRow, error) {
	var u userRow
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created); err != nil {
		return nil, err
	}
	u.CreatedAt = mustParse(created)
	return &u, nil
}

// mustParse parses RFC3339 timestamps; on error returns zero time.
func mustParse(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// checkPassword is a bcrypt verifier.
func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// normalizeUsername trims whitespace; adjust here if you want stricter rules.
func normalizeUsername(u string) string {
	return strings.TrimSpace(u)
}

// validateSignup enforces basic username/password rules.
func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return errors.New("username must be 3–24 chars")
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return errors.New("username: letters, numbers, underscore only")
		}
	}
	if len(p) < 8 || len(p) > 100 {
		return errors.New("password must be 8–100 chars")
	}
	return nil
}

// genID creates a 22-char URL-safe, crypto-random identifier (no padding).
func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	s := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b[:])
	if len(s) > 22 {
		return s[:22]
	}
	return s
}

// ------------------------------ JWT & cookies ------------------------------

// signJWT creates an HS256 JWT with id/username and a configurable expiry
// (JWT_EXPIRES_DAYS; default 14).
func (s *Server) signJWT(id, username string) (string, time.Time, error) {
	secret := getEnv("JWT_SECRET", "dev_secret_change_me")
	days := envInt("JWT_EXPIRES_DAYS", 14)
	exp := time.Now().Add(time.Duration(days) * 24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      time.Now().Unix(),
	})
	ss, err := t.SignedString([]byte(secret))
	return ss, exp, err
}

// setAuthCookie writes the auth token cookie with appropriate security attributes.
func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	name := getEnv("COOKIE_NAME", "rg_token")
	secure := os.Getenv("NODE_ENV") == "production"
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		Expires:  exp,
	})
}

// clearAuthCookie deletes the auth token cookie.
func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	name := getEnv("COOKIE_NAME", "rg_token")
	secure := os.Getenv("NODE_ENV") == "production"
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		MaxAge:   -1,
	})
}

// bearerOrCookie extracts a bearer token from Authorization header or auth cookie.
func bearerOrCookie(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(getEnv("COOKIE_NAME", "rg_token")); err == nil {
		return c.Value
	}
	return ""
}

// ---------------------------- auth middleware ------------------------------

// ctxUserKey is the context key type for storing authUser.
type ctxUserKey struct{}

// requireAuth enforces a valid JWT and injects authUser into request context.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerOrCookie(r)
			if tokenStr == "" {
				http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
				return
			}
			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				return []byte(getEnv("JWT_SECRET", "dev_secret_change_me")), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
				return
			}
			id, _ := claims["id"].(string)
			username, _ := claims["username"].(string)
			if id == "" || username == "" {
				http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
				return
			}
			// Ensure user still exists
			if _, err := s.findUserByID(id); err != nil {
				http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxUserKey{}, &authUser{ID: id, Username: username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ------------------------------- small util --------------------------------

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// envInt returns the integer value of k or def if unset/invalid.
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
