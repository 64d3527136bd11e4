// internal/rng/rng.go
//
// Deterministic pseudo-random generator for seeded play sessions.
// Responsibilities:
//   - Derive a 32-bit integer seed from a human-entered seed token.
//   - Produce a reproducible stream of uniform floats, bounded ints,
//     in-place shuffles, and uniform picks.
//
// Notes:
//   - The generator is a mulberry32-style 32-bit mixer: every draw advances
//     the state by a fixed additive constant and runs an avalanche transform
//     over the advanced state.
//   - Call order is significant. Every draw both mutates state and produces
//     a value, so callers must never re-order or skip calls if the session
//     is expected to replay identically.
//   - Not cryptographic. One algorithm, one use pattern.

package rng

import "fmt"

// Generator is a stateful deterministic random source. A Generator belongs
// to exactly one active session; restoring a session creates a fresh one
// from the stored seed and fast-forwards it.
type Generator struct {
	state uint32
}

// New constructs a Generator from a 32-bit integer seed.
func New(seed uint32) *Generator {
	return &Generator{state: seed}
}

// State exposes the raw internal state, used by tests to compare cursor
// positions across replay scenarios.
func (g *Generator) State() uint32 { return g.state }

// Draw advances the state and returns a uniform float in [0,1).
func (g *Generator) Draw() float64 {
	g.state += 0x6D2B79F5
	z := g.state
	z = (z ^ (z >> 15)) * (z | 1)
	z ^= z + (z^(z>>7))*(z|61)
	z ^= z >> 14
	return float64(z) / 4294967296.0
}

// DrawInt returns a uniform integer in [min,max] inclusive, consuming one
// draw. A max below min is a caller defect, not user input, so it panics
// rather than clamping silently.
func (g *Generator) DrawInt(min, max int) int {
	if max < min {
		panic(fmt.Sprintf("rng: DrawInt called with max %d < min %d", max, min))
	}
	return int(g.Draw()*float64(max-min+1)) + min
}

// Skip discards n draws, advancing the cursor without producing values.
// Used to fast-forward a restored generator to its session position.
func (g *Generator) Skip(n int) {
	for i := 0; i < n; i++ {
		g.Draw()
	}
}

// Shuffle permutes s in place, swapping each position from the end down to
// position 1 with a uniformly drawn earlier-or-equal index. Consumes exactly
// len(s)-1 draws; zero- and one-element slices consume none.
func Shuffle[T any](g *Generator, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := g.DrawInt(0, i)
		s[i], s[j] = s[j], s[i]
	}
}

// Pick returns a uniformly chosen element of s, consuming exactly one draw.
// An empty slice returns ok=false without consuming any draws.
func Pick[T any](g *Generator, s []T) (T, bool) {
	if len(s) == 0 {
		var zero T
		return zero, false
	}
	return s[g.DrawInt(0, len(s)-1)], true
}

// HashSeed maps a seed token to the generator's integer seed using a
// 31-multiplier rolling hash over the token's bytes. Identical tokens always
// hash to identical integers, which is what makes a seed shareable.
func HashSeed(token string) uint32 {
	var h uint32
	for i := 0; i < len(token); i++ {
		h = h*31 + uint32(token[i])
	}
	return h
}
