// internal/guess/synth.go
//
// Guess-set synthesis: turns one true review count into a small shuffled
// set of plausible decoys using the session generator.
// Responsibilities:
//   - Spread decoys below the true value (÷5 steps with noise) and above it
//     (×5 steps with a minimum-gap floor).
//   - Keep members distinct, non-negative, and capped.
//   - Occasionally offer an extreme low decoy (0 or 1) for small values.
//   - Shuffle the result so the true value's position carries no signal.
//
// Everything here is a pure function of the true value and the generator's
// current state, which is what makes a seeded round replayable.

package guess

import (
	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/rng"
)

const (
	// Cap is the ceiling for every member of a guess set. Review counts
	// above it are clamped before synthesis.
	Cap = 10_000_000

	// SetSize is the target member count per round.
	SetSize = 6

	// collisionProbes bounds the +1 probing when an upward candidate lands
	// on an existing member.
	collisionProbes = 10
)

// Synthesize builds the multiple-choice set for one round. The returned
// slice holds distinct non-negative integers ≤ Cap, one of which is the
// (clamped) true value, in shuffled order.
func Synthesize(trueValue int, g *rng.Generator) []int {
	t := trueValue
	if t < 0 {
		t = 0
	}
	if t > Cap {
		t = Cap
	}

	minStep := g.DrawInt(40, 60)
	maxDown := g.DrawInt(4, 5)

	members := []int{t}
	seen := map[int]bool{t: true}

	// Downward phase: walk ÷5 steps from the true value. Only entered when
	// the value is large enough to sit above the minimum step at all.
	if t >= minStep {
		cur := t
		downs := 0
		for downs < maxDown && len(members) < SetSize {
			next := cur/5 + g.DrawInt(-3, 3)
			if next < 0 {
				next = 0
			}
			if next >= cur {
				next = cur - 1
			}
			if next < 0 {
				// cur was already 0; the division step makes no progress.
				break
			}
			if !seen[next] {
				members = append(members, next)
				seen[next] = true
				downs++
			}
			cur = next
			if cur < 50 {
				break
			}
		}
	}

	// Upward phase: climb ×5 steps from the true value. The minimum-gap
	// floor is the dominant constraint; the multiplication mostly breaks
	// ties between neighbouring candidates.
	up := t
	for len(members) < SetSize {
		cand := up*5 + g.DrawInt(-2, 3)
		if cand < 0 {
			cand = 0
		}
		if cand < up+minStep {
			cand = up + minStep
		}
		if cand > Cap {
			cand = Cap
		}
		probes := 0
		for seen[cand] && probes < collisionProbes && cand < Cap {
			cand++
			probes++
		}
		if seen[cand] {
			// Unique-candidate space exhausted near the ceiling; stop
			// adding rather than looping forever.
			break
		}
		members = append(members, cand)
		seen[cand] = true
		up = cand
	}

	// Fallback: pathological cases near Cap fill sequentially from the
	// current maximum.
	for len(members) < SetSize {
		m := maxOf(members)
		if m >= Cap {
			break
		}
		members = append(members, m+1)
		seen[m+1] = true
	}

	perturbLowEnd(members, seen, t, g)

	rng.Shuffle(g, members)
	return members
}

// perturbLowEnd occasionally swaps the smallest decoy for 0 or 1 so small
// true values sometimes face an extreme low option. The coin flips
// short-circuit: when the first flip fails the second is never drawn, which
// keeps the generator cursor bit-for-bit compatible across branches.
func perturbLowEnd(members []int, seen map[int]bool, t int, g *rng.Generator) {
	minIdx := 0
	for i, v := range members {
		if v < members[minIdx] {
			minIdx = i
		}
	}
	min := members[minIdx]
	if min == t || min >= 20 {
		return
	}
	if g.Draw() < 0.5 && g.Draw() < 0.5 {
		prefs := [2]int{0, 1}
		if g.Draw() < 0.5 {
			prefs = [2]int{1, 0}
		}
		for _, v := range prefs {
			if !seen[v] {
				delete(seen, min)
				members[minIdx] = v
				seen[v] = true
				return
			}
		}
	}
}

func maxOf(s []int) int {
	m := s[0]
	for _, v := range s[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
