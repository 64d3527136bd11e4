// internal/lifecycle/controller.go
//
// Session lifecycle controller: the round state machine sitting between the
// session store and the page-integration collaborators.
// Responsibilities:
//   - Advance: enforce the play limit, pick the next target, spend the play,
//     consult the content policy, and synthesize the round's guess set.
//   - Void-and-retry: walk back a rejected play without walking back the
//     generator's entropy cursor, bounded by the auto-retry chain counter.
//   - Mark-answered: idempotent round termination with correctness scoring.
//   - Optional per-round countdown that expires a round as an incorrect
//     answer and advances to the next one.
//
// Collaborators are injected as small ports so the server wires the catalog
// in while tests substitute scripted fakes.

package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/guess"
	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/rng"
	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/session"
)

const (
	// maxChain bounds consecutive voided-round auto-retries.
	maxChain = 5

	// maxPolicyPolls bounds re-polling an indeterminate content verdict.
	maxPolicyPolls = 10
)

var (
	// ErrLimitReached blocks Advance once the play count hits a finite game
	// limit. Callers must surface it to the user, not swallow it.
	ErrLimitReached = errors.New("lifecycle: game limit reached")

	// ErrRetryExhausted reports that the voided-round retry chain hit its
	// ceiling without finding an acceptable target.
	ErrRetryExhausted = errors.New("lifecycle: retry chain exhausted")

	// ErrNoRound reports an answer submitted with no round in flight.
	ErrNoRound = errors.New("lifecycle: no active round")
)

// Verdict is a content policy's judgement of a candidate target.
type Verdict string

const (
	VerdictAccept        Verdict = "accept"
	VerdictReject        Verdict = "reject"
	VerdictIndeterminate Verdict = "indeterminate" // not ready, re-poll
)

// TargetPicker yields the next candidate target for a mode. Picking draws
// from the session generator so the target sequence replays with the seed.
type TargetPicker interface {
	PickTarget(g *rng.Generator, mode session.Mode) (string, error)
}

// TrueValueProvider yields the hidden review count for a target.
type TrueValueProvider interface {
	TrueValue(targetID string) (int, error)
}

// ContentPolicy accepts, rejects, or defers judgement on a target.
type ContentPolicy interface {
	Evaluate(targetID string, filterEnabled bool) Verdict
}

// Navigator is the page-navigation hand-off invoked after a play is spent.
type Navigator interface {
	Navigate(targetID string)
}

// Round is the per-round ephemeral state. Choices are already shuffled; the
// true value's position carries no information.
type Round struct {
	TargetID  string
	TrueValue int
	Choices   []int
	Answered  bool
	Correct   bool
	Expired   bool
}

// Controller drives rounds for one session. All mutation happens under one
// mutex, so every operation is atomic with respect to the session record.
type Controller struct {
	mu     sync.Mutex
	store  *session.Store
	picker TargetPicker
	values TrueValueProvider
	policy ContentPolicy
	nav    Navigator
	log    zerolog.Logger

	round         *Round
	chain         int
	timer         *time.Timer
	roundDuration time.Duration
}

// New constructs a Controller over the given store and collaborator ports.
func New(store *session.Store, picker TargetPicker, values TrueValueProvider, policy ContentPolicy, log zerolog.Logger) *Controller {
	return &Controller{store: store, picker: picker, values: values, policy: policy, log: log}
}

// SetNavigator installs the optional page-navigation hand-off.
func (c *Controller) SetNavigator(nav Navigator) { c.nav = nav }

// SetRoundDuration enables the per-round countdown. Zero disables it.
func (c *Controller) SetRoundDuration(d time.Duration) { c.roundDuration = d }

// Store exposes the underlying session store for settings and state reads.
func (c *Controller) Store() *session.Store { return c.store }

// CurrentRound returns a copy of the in-flight round, if any.
func (c *Controller) CurrentRound() (Round, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.round == nil {
		return Round{}, false
	}
	return *c.round, true
}

// Advance starts the next round: refuses when the limit is reached, spends
// a play, and keeps retrying voided targets until the chain ceiling.
func (c *Controller) Advance() (Round, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advanceLocked()
}

// VoidAndRetry voids the in-flight round after the fact (the target turned
// out to be unplayable downstream) and advances again. The play counter
// walks back one; the navigation counter stays put, so the retried round
// draws fresh entropy instead of replaying the voided round's decoys.
func (c *Controller) VoidAndRetry() (Round, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.round = nil
	if exhausted := c.voidLocked(); exhausted {
		return Round{}, ErrRetryExhausted
	}
	return c.advanceLocked()
}

// MarkAnswered terminates the round with the player's chosen candidate.
// Correctness is recorded once; a second call after the round is closed is
// a no-op that reports the original outcome.
func (c *Controller) MarkAnswered(candidate int) (correct bool, trueValue int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.round == nil {
		return false, 0, ErrNoRound
	}
	if c.round.Answered {
		return c.round.Correct, c.round.TrueValue, nil
	}
	c.round.Answered = true
	c.stopTimerLocked()
	if candidate == c.round.TrueValue {
		c.round.Correct = true
		c.store.RecordCorrect()
	}
	return c.round.Correct, c.round.TrueValue, nil
}

// ----------------------------- internals -----------------------------------

func (c *Controller) advanceLocked() (Round, error) {
	for {
		rec := c.store.Record()
		if rec.LimitReached() {
			return Round{}, ErrLimitReached
		}
		gen := c.store.Generator()

		id, err := c.picker.PickTarget(gen, rec.GameMode)
		if err != nil {
			return Round{}, fmt.Errorf("pick target: %w", err)
		}

		// Mark the navigation as ours before spending the play, so a reload
		// mid-advance still sees a consistent chain counter.
		c.store.SetNavMarker(c.chain)
		c.store.RecordPlay()
		if c.nav != nil {
			c.nav.Navigate(id)
		}

		if c.evaluateLocked(id, rec.ContentFilter) == VerdictReject {
			c.log.Debug().Str("target", id).Int("chain", c.chain).Msg("target rejected, voiding play")
			if exhausted := c.voidLocked(); exhausted {
				return Round{}, ErrRetryExhausted
			}
			continue
		}

		tv, err := c.values.TrueValue(id)
		if err != nil {
			c.log.Warn().Err(err).Str("target", id).Msg("true value unavailable, voiding play")
			if exhausted := c.voidLocked(); exhausted {
				return Round{}, ErrRetryExhausted
			}
			continue
		}

		c.chain = 0
		c.store.ClearNavMarker()
		c.stopTimerLocked()
		c.round = &Round{TargetID: id, TrueValue: tv, Choices: guess.Synthesize(tv, gen)}
		c.startTimerLocked()
		return *c.round, nil
	}
}

// voidLocked walks back one play and bumps the retry chain. Reports true
// when the chain ceiling is hit, which clears the marker and resets the
// chain for the next user-initiated advance.
func (c *Controller) voidLocked() (exhausted bool) {
	c.store.DecrementPlayCount()
	c.chain++
	if c.chain >= maxChain {
		c.store.ClearNavMarker()
		c.chain = 0
		return true
	}
	return false
}

// evaluateLocked re-polls an indeterminate verdict a bounded number of
// times, then falls back to accepting rather than hanging the round.
func (c *Controller) evaluateLocked(id string, filterEnabled bool) Verdict {
	for i := 0; i < maxPolicyPolls; i++ {
		v := c.policy.Evaluate(id, filterEnabled)
		if v != VerdictIndeterminate {
			return v
		}
	}
	c.log.Warn().Str("target", id).Msg("content verdict still indeterminate, accepting")
	return VerdictAccept
}

func (c *Controller) startTimerLocked() {
	if c.roundDuration <= 0 {
		return
	}
	c.timer = time.AfterFunc(c.roundDuration, c.expireRound)
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// expireRound fires on countdown expiry: the round locks as an incorrect
// answer and the session advances exactly as if the player had missed.
func (c *Controller) expireRound() {
	c.mu.Lock()
	if c.round == nil || c.round.Answered {
		c.mu.Unlock()
		return
	}
	c.round.Answered = true
	c.round.Expired = true
	c.mu.Unlock()

	if _, err := c.Advance(); err != nil {
		c.log.Info().Err(err).Msg("auto-advance after round expiry stopped")
	}
}
