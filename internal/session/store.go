// internal/session/store.go
//
// Durable session state store.
// Responsibilities:
//   - Translate between a human-entered seed token and the generator's
//     integer seed.
//   - Persist and restore the full session Record through the KV port.
//   - Materialize the one live Generator for the session, fast-forwarding
//     a restored generator past the draws earlier rounds consumed.
//   - Notify subscribers when the seed, counters, or settings change.
//
// Failure semantics: persistence is best-effort. When the KV backend is
// absent or failing, every operation proceeds in memory and simply does not
// survive a restart; the error is logged, never propagated.
//
// Concurrency: every exported method serializes on the store mutex, so HTTP
// handlers and the lifecycle controller can mutate one store from different
// goroutines. Notifications are delivered synchronously under that lock;
// subscriber callbacks must not call back into the store.

package session

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/rng"
)

// FastForwardPerRound is how many draws a restored generator discards per
// recorded navigation. The multiplier is a tunable heuristic: it keeps
// in-round decoy generation from reusing draws across rounds, but it is not
// a proof of draw-sequence disjointness over very long sessions.
const FastForwardPerRound = 10

// Durable keys. The integer seed is always recomputed from the seed token,
// never stored separately.
const (
	keySeed          = "seed"
	keyPlayCount     = "play_count"
	keyNavCount      = "nav_count"
	keyCorrectCount  = "correct_count"
	keyGameLimit     = "game_limit"      // empty = unlimited
	keyGameMode      = "game_mode"       // empty = both
	keyContentFilter = "content_filter"  // "0" / "1"
	keyNavMarker     = "nav_marker"      // chain counter of an in-flight advance
)

// EventKind discriminates store notifications.
type EventKind string

const (
	EventSeedChanged         EventKind = "seed_changed"
	EventPlayCountChanged    EventKind = "play_count_changed"
	EventCorrectCountChanged EventKind = "correct_count_changed"
	EventSettingsChanged     EventKind = "settings_changed"
)

// Event carries the state snapshot relevant to a notification.
type Event struct {
	Kind         EventKind
	Seed         string
	GameLimit    int
	GameMode     Mode
	PlayCount    int
	CorrectCount int
}

// Store owns the session Record and its Generator. Exactly one active
// session exists per KV scope; callers pass the store around explicitly
// rather than reaching for globals.
type Store struct {
	mu   sync.Mutex // guards gen, rec, subs
	kv   KV
	log  zerolog.Logger
	gen  *rng.Generator
	rec  Record
	subs []func(Event)
}

// NewStore constructs a Store over kv. A nil kv means in-memory-only
// operation (nothing survives a restart).
func NewStore(kv KV, log zerolog.Logger) *Store {
	return &Store{kv: kv, log: log}
}

// Subscribe registers fn for every subsequent notification.
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Record returns a copy of the current session record.
func (s *Store) Record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

// Generator returns the live generator, materializing it on first use.
func (s *Store) Generator() *rng.Generator {
	return s.RestoreOrInit("")
}

// SetSeed replaces the session identity. It parses token per the seed
// grammar, applies explicit overrides over token-embedded values, swaps in
// a fresh generator, zeroes all three counters, persists the whole record,
// and emits a seed-changed notification. Returns the canonical seed string
// (with limit suffix when finite).
func (s *Store) SetSeed(token string, limitOverride *int, modeOverride *Mode) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setSeedLocked(token, limitOverride, modeOverride)
}

func (s *Store) setSeedLocked(token string, limitOverride *int, modeOverride *Mode) string {
	seed, limit := ParseSeedToken(token)
	if limitOverride != nil {
		limit = *limitOverride
	}
	mode := s.rec.GameMode
	if modeOverride != nil {
		mode = *modeOverride
	}

	s.rec = Record{
		Seed:          seed,
		GameLimit:     limit,
		GameMode:      mode,
		ContentFilter: s.rec.ContentFilter,
	}
	s.gen = rng.New(rng.HashSeed(seed))

	s.persistRecord()
	s.emit(Event{
		Kind:      EventSeedChanged,
		Seed:      seed,
		GameLimit: limit,
		GameMode:  mode,
	})
	return CanonicalSeedToken(seed, limit)
}

// RestoreOrInit is the single point where a generator is materialized.
// Priority order:
//  1. an already-live in-memory generator is returned unchanged;
//  2. a URL-supplied seed token acts as SetSeed with no overrides;
//  3. a persisted record reconstructs the generator from the stored seed
//     and fast-forwards it by NavigationCount × FastForwardPerRound draws;
//  4. otherwise a brand-new random seed token is generated and set.
//
// Fast-forward tracks navigations, not counted plays: a voided round must
// not replay the same decoys on retry, so the entropy cursor follows
// attempts.
func (s *Store) RestoreOrInit(urlToken string) *rng.Generator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreOrInitLocked(urlToken)
}

func (s *Store) restoreOrInitLocked(urlToken string) *rng.Generator {
	if s.gen != nil {
		return s.gen
	}
	if urlToken != "" {
		s.setSeedLocked(urlToken, nil, nil)
		return s.gen
	}
	if s.loadRecord() {
		s.gen = rng.New(rng.HashSeed(s.rec.Seed))
		s.gen.Skip(s.rec.NavigationCount * FastForwardPerRound)
		return s.gen
	}
	s.setSeedLocked(RandomSeedToken(), nil, nil)
	return s.gen
}

// RecordPlay increments the play and navigation counters together and
// persists both. Returns the new play count.
func (s *Store) RecordPlay() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.PlayCount++
	s.rec.NavigationCount++
	s.put(keyPlayCount, strconv.Itoa(s.rec.PlayCount))
	s.put(keyNavCount, strconv.Itoa(s.rec.NavigationCount))
	s.emit(Event{Kind: EventPlayCountChanged, PlayCount: s.rec.PlayCount})
	return s.rec.PlayCount
}

// RecordNavigationOnly advances only the navigation counter, used in tandem
// with a compensating DecrementPlayCount when a play is voided after the
// fact. Returns the new navigation count.
func (s *Store) RecordNavigationOnly() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.NavigationCount++
	s.put(keyNavCount, strconv.Itoa(s.rec.NavigationCount))
	return s.rec.NavigationCount
}

// RecordCorrect increments the correct-answer counter.
func (s *Store) RecordCorrect() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.CorrectCount++
	s.put(keyCorrectCount, strconv.Itoa(s.rec.CorrectCount))
	s.emit(Event{Kind: EventCorrectCountChanged, CorrectCount: s.rec.CorrectCount})
	return s.rec.CorrectCount
}

// DecrementPlayCount walks the play counter back one, floored at zero.
// The navigation counter is deliberately left alone so the generator's
// fast-forward distance still covers the draws the voided round consumed.
func (s *Store) DecrementPlayCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec.PlayCount > 0 {
		s.rec.PlayCount--
	}
	s.put(keyPlayCount, strconv.Itoa(s.rec.PlayCount))
	s.emit(Event{Kind: EventPlayCountChanged, PlayCount: s.rec.PlayCount})
	return s.rec.PlayCount
}

// ResetCounters zeroes the play and correct counters without touching the
// seed, generator, or navigation counter.
func (s *Store) ResetCounters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.PlayCount = 0
	s.rec.CorrectCount = 0
	s.put(keyPlayCount, "0")
	s.put(keyCorrectCount, "0")
	s.emit(Event{Kind: EventPlayCountChanged})
	s.emit(Event{Kind: EventCorrectCountChanged})
}

// SetGameLimit updates the play limit (0 = unlimited).
func (s *Store) SetGameLimit(limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit < 0 {
		limit = 0
	}
	s.rec.GameLimit = limit
	s.put(keyGameLimit, encodeLimit(limit))
	s.emitSettings()
}

// SetGameMode updates the catalog slice the session plays against.
func (s *Store) SetGameMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.GameMode = mode
	s.put(keyGameMode, string(mode))
	s.emitSettings()
}

// SetFilterEnabled toggles the content filter.
func (s *Store) SetFilterEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.ContentFilter = enabled
	s.put(keyContentFilter, encodeBool(enabled))
	s.emitSettings()
}

// SetNavMarker persists the short-lived "this navigation was ours" marker
// together with its auto-retry chain counter.
func (s *Store) SetNavMarker(chain int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(keyNavMarker, strconv.Itoa(chain))
}

// NavMarker reports the chain counter of an in-flight advance, if any.
func (s *Store) NavMarker() (chain int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok, err := s.get(keyNavMarker)
	if err != nil || !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ClearNavMarker removes the marker.
func (s *Store) ClearNavMarker() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kv == nil {
		return
	}
	if err := s.kv.Remove(keyNavMarker); err != nil {
		s.log.Warn().Err(err).Msg("session: clear nav marker")
	}
}

// ----------------------------- internals -----------------------------------

func (s *Store) emit(e Event) {
	for _, fn := range s.subs {
		fn(e)
	}
}

func (s *Store) emitSettings() {
	s.emit(Event{
		Kind:      EventSettingsChanged,
		Seed:      s.rec.Seed,
		GameLimit: s.rec.GameLimit,
		GameMode:  s.rec.GameMode,
	})
}

// loadRecord pulls the persisted record into memory. Returns false when no
// seed has ever been persisted in this scope.
func (s *Store) loadRecord() bool {
	seed, ok, err := s.get(keySeed)
	if err != nil || !ok || seed == "" {
		return false
	}
	s.rec = Record{
		Seed:            seed,
		PlayCount:       s.getInt(keyPlayCount),
		NavigationCount: s.getInt(keyNavCount),
		CorrectCount:    s.getInt(keyCorrectCount),
		GameLimit:       s.getInt(keyGameLimit),
		GameMode:        ParseMode(s.getStr(keyGameMode)),
		ContentFilter:   s.getStr(keyContentFilter) == "1",
	}
	return true
}

// persistRecord writes every field of the record in one logical step so the
// counters are never torn apart from the seed they belong to.
func (s *Store) persistRecord() {
	s.put(keySeed, s.rec.Seed)
	s.put(keyPlayCount, strconv.Itoa(s.rec.PlayCount))
	s.put(keyNavCount, strconv.Itoa(s.rec.NavigationCount))
	s.put(keyCorrectCount, strconv.Itoa(s.rec.CorrectCount))
	s.put(keyGameLimit, encodeLimit(s.rec.GameLimit))
	s.put(keyGameMode, string(s.rec.GameMode))
	s.put(keyContentFilter, encodeBool(s.rec.ContentFilter))
}

func (s *Store) put(key, value string) {
	if s.kv == nil {
		return
	}
	if err := s.kv.Set(key, value); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("session: persist failed, continuing in memory")
	}
}

func (s *Store) get(key string) (string, bool, error) {
	if s.kv == nil {
		return "", false, nil
	}
	v, ok, err := s.kv.Get(key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("session: read failed")
	}
	return v, ok, err
}

func (s *Store) getStr(key string) string {
	v, _, _ := s.get(key)
	return v
}

func (s *Store) getInt(key string) int {
	v, ok, err := s.get(key)
	if err != nil || !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func encodeLimit(limit int) string {
	if limit <= 0 {
		return ""
	}
	return strconv.Itoa(limit)
}

func encodeBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

const seedAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomSeedToken generates an 8-char uppercase alphanumeric token, used
// for sessions started without an explicit seed and for fresh tournaments.
// Each position is an unbiased crypto/rand draw over the alphabet.
func RandomSeedToken() string {
	out := make([]byte, 8)
	max := big.NewInt(int64(len(seedAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing means the platform's entropy source is
			// broken; nothing sensible to degrade to.
			panic("session: crypto/rand unavailable: " + err.Error())
		}
		out[i] = seedAlphabet[n.Int64()]
	}
	return string(out)
}
