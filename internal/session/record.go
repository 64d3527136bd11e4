// internal/session/record.go
//
// Core type definitions for the persisted play session.
// Defines:
//   - Mode: which slice of the catalog a session draws targets from.
//   - Record: the durable aggregate restored on every page load.
//   - Seed token parsing/formatting (the shareable session identity).

package session

import (
	"strconv"
	"strings"
)

// Mode selects which catalog entries a session plays against.
// The empty string means both kinds, matching the persisted encoding.
type Mode string

const (
	ModeBoth  Mode = ""
	ModeGames Mode = "games"
	ModeDLC   Mode = "dlc"
)

// ParseMode normalizes a mode string; anything unrecognized degrades to
// ModeBoth rather than failing.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeGames:
		return ModeGames
	case ModeDLC:
		return ModeDLC
	default:
		return ModeBoth
	}
}

// Record is the persisted session aggregate. GameLimit of 0 means unlimited.
type Record struct {
	Seed            string // uppercased token, no limit suffix
	PlayCount       int    // rounds counted toward the visible score/limit
	NavigationCount int    // attempted advances, including voided ones
	CorrectCount    int
	GameLimit       int
	GameMode        Mode
	ContentFilter   bool
}

// LimitReached reports whether the play counter has hit a finite limit.
func (r Record) LimitReached() bool {
	return r.GameLimit > 0 && r.PlayCount >= r.GameLimit
}

// ParseSeedToken splits a user-entered token into the canonical seed part
// and an optional play limit.
//
// Grammar:
//   <ALNUM>                  → unlimited
//   <ALNUM>:<positive-int>   → finite limit
//   <ALNUM>:UNLIMITED        → unlimited (case-insensitive, or empty suffix)
//
// The seed part is case-folded to uppercase. A non-numeric or non-positive
// limit suffix is ignored (treated as absent) rather than rejected.
func ParseSeedToken(token string) (seed string, limit int) {
	token = strings.TrimSpace(token)
	left, right, hasSuffix := strings.Cut(token, ":")
	seed = strings.ToUpper(left)
	if !hasSuffix {
		return seed, 0
	}
	right = strings.TrimSpace(right)
	if right == "" || strings.EqualFold(right, "unlimited") {
		return seed, 0
	}
	if n, err := strconv.Atoi(right); err == nil && n > 0 {
		return seed, n
	}
	return seed, 0
}

// CanonicalSeedToken renders the seed with its limit suffix when finite.
func CanonicalSeedToken(seed string, limit int) string {
	if limit > 0 {
		return seed + ":" + strconv.Itoa(limit)
	}
	return seed
}
