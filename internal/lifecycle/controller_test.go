package lifecycle

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/rng"
	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/session"
)

// seqPicker returns a scripted sequence of targets, consuming one draw per
// pick like the real catalog does.
type seqPicker struct {
	seq []string
	i   int
}

func (p *seqPicker) PickTarget(g *rng.Generator, _ session.Mode) (string, error) {
	g.Draw()
	id := p.seq[p.i%len(p.seq)]
	p.i++
	return id, nil
}

// scriptedDeps provides values and verdicts per target id.
type scriptedDeps struct {
	values map[string]int
	reject map[string]bool
	indet  map[string]int // remaining indeterminate polls per target
}

func (d *scriptedDeps) TrueValue(id string) (int, error) {
	v, ok := d.values[id]
	if !ok {
		return 0, errors.New("no value")
	}
	return v, nil
}

func (d *scriptedDeps) Evaluate(id string, _ bool) Verdict {
	if n := d.indet[id]; n > 0 {
		d.indet[id] = n - 1
		return VerdictIndeterminate
	}
	if d.reject[id] {
		return VerdictReject
	}
	return VerdictAccept
}

func newTestController(seed string, targets []string, deps *scriptedDeps) *Controller {
	st := session.NewStore(session.NewMemoryKV(), zerolog.Nop())
	st.SetSeed(seed, nil, nil)
	return New(st, &seqPicker{seq: targets}, deps, deps, zerolog.Nop())
}

func simpleDeps() *scriptedDeps {
	return &scriptedDeps{
		values: map[string]int{"a": 7036, "b": 1287, "c": 94213},
		reject: map[string]bool{},
		indet:  map[string]int{},
	}
}

func TestAdvanceBuildsRound(t *testing.T) {
	c := newTestController("TEST", []string{"a", "b", "c"}, simpleDeps())
	rd, err := c.Advance()
	require.NoError(t, err)
	assert.Equal(t, "a", rd.TargetID)
	assert.Equal(t, 7036, rd.TrueValue)
	require.Len(t, rd.Choices, 6)
	assert.Contains(t, rd.Choices, 7036)

	rec := c.Store().Record()
	assert.Equal(t, 1, rec.PlayCount)
	assert.Equal(t, 1, rec.NavigationCount)

	// The accepted advance clears the navigation marker.
	_, ok := c.Store().NavMarker()
	assert.False(t, ok)
}

func TestAdvanceRefusesAtLimit(t *testing.T) {
	c := newTestController("TEST:1", []string{"a"}, simpleDeps())
	_, err := c.Advance()
	require.NoError(t, err)

	_, err = c.Advance()
	require.ErrorIs(t, err, ErrLimitReached)
	rec := c.Store().Record()
	assert.Equal(t, 1, rec.PlayCount, "refused advance must not move counters")
	assert.Equal(t, 1, rec.NavigationCount)
}

func TestVoidAndRetryConsumesEntropy(t *testing.T) {
	// Path A: one clean advance.
	a := newTestController("ENTROPY", []string{"a", "b"}, simpleDeps())
	_, err := a.Advance()
	require.NoError(t, err)
	stateA := a.Store().Generator().State()

	// Path B: advance, void, advance again on an identical setup.
	b := newTestController("ENTROPY", []string{"a", "b"}, simpleDeps())
	_, err = b.Advance()
	require.NoError(t, err)
	rd, err := b.VoidAndRetry()
	require.NoError(t, err)
	assert.Equal(t, "b", rd.TargetID)

	recB := b.Store().Record()
	assert.Equal(t, 1, recB.PlayCount, "void walks the play count back before the retry spends it again")
	assert.Equal(t, 2, recB.NavigationCount, "the voided attempt still counts as a navigation")
	assert.NotEqual(t, stateA, b.Store().Generator().State(),
		"a voided attempt must consume entropy: the retried round draws fresh values")
}

func TestRejectedTargetAutoRetries(t *testing.T) {
	deps := simpleDeps()
	deps.reject["a"] = true
	c := newTestController("TEST", []string{"a", "b"}, deps)

	rd, err := c.Advance()
	require.NoError(t, err)
	assert.Equal(t, "b", rd.TargetID)

	rec := c.Store().Record()
	assert.Equal(t, 1, rec.PlayCount)
	assert.Equal(t, 2, rec.NavigationCount)
}

func TestRetryChainExhausts(t *testing.T) {
	deps := simpleDeps()
	deps.reject["a"] = true
	deps.reject["b"] = true
	deps.reject["c"] = true
	c := newTestController("TEST", []string{"a", "b", "c"}, deps)

	_, err := c.Advance()
	require.ErrorIs(t, err, ErrRetryExhausted)

	rec := c.Store().Record()
	assert.Zero(t, rec.PlayCount, "every voided play walked back")
	assert.Equal(t, maxChain, rec.NavigationCount)
	_, ok := c.Store().NavMarker()
	assert.False(t, ok, "exhausted chain clears the marker")

	// The chain resets, so a later user-initiated advance retries again
	// rather than failing immediately.
	deps.reject["b"] = false
	rd, err := c.Advance()
	require.NoError(t, err)
	assert.Equal(t, "b", rd.TargetID)
}

func TestUnknownTrueValueVoidsPlay(t *testing.T) {
	deps := simpleDeps()
	c := newTestController("TEST", []string{"ghost", "a"}, deps)

	rd, err := c.Advance()
	require.NoError(t, err)
	assert.Equal(t, "a", rd.TargetID)
	assert.Equal(t, 1, c.Store().Record().PlayCount)
}

func TestIndeterminateVerdictIsRepolled(t *testing.T) {
	deps := simpleDeps()
	deps.indet["a"] = 3
	c := newTestController("TEST", []string{"a"}, deps)

	rd, err := c.Advance()
	require.NoError(t, err)
	assert.Equal(t, "a", rd.TargetID)
	assert.Zero(t, deps.indet["a"], "indeterminate verdict polled until resolved")
}

func TestMarkAnsweredCorrect(t *testing.T) {
	c := newTestController("TEST", []string{"a"}, simpleDeps())
	rd, err := c.Advance()
	require.NoError(t, err)

	correct, trueValue, err := c.MarkAnswered(rd.TrueValue)
	require.NoError(t, err)
	assert.True(t, correct)
	assert.Equal(t, rd.TrueValue, trueValue)
	assert.Equal(t, 1, c.Store().Record().CorrectCount)
}

func TestMarkAnsweredIncorrect(t *testing.T) {
	c := newTestController("TEST", []string{"a"}, simpleDeps())
	rd, err := c.Advance()
	require.NoError(t, err)

	correct, trueValue, err := c.MarkAnswered(rd.TrueValue + 1)
	require.NoError(t, err)
	assert.False(t, correct)
	assert.Equal(t, rd.TrueValue, trueValue)
	assert.Zero(t, c.Store().Record().CorrectCount)
}

func TestMarkAnsweredIdempotent(t *testing.T) {
	c := newTestController("TEST", []string{"a"}, simpleDeps())
	rd, err := c.Advance()
	require.NoError(t, err)

	correct, _, err := c.MarkAnswered(rd.TrueValue)
	require.NoError(t, err)
	require.True(t, correct)

	// A second call reports the original outcome without double counting.
	correct, _, err = c.MarkAnswered(rd.TrueValue)
	require.NoError(t, err)
	assert.True(t, correct)
	assert.Equal(t, 1, c.Store().Record().CorrectCount)

	// Answering a closed round with a different value changes nothing.
	correct, _, err = c.MarkAnswered(rd.TrueValue + 1)
	require.NoError(t, err)
	assert.True(t, correct)
	assert.Equal(t, 1, c.Store().Record().CorrectCount)
}

func TestMarkAnsweredWithoutRound(t *testing.T) {
	c := newTestController("TEST", []string{"a"}, simpleDeps())
	_, _, err := c.MarkAnswered(1)
	assert.ErrorIs(t, err, ErrNoRound)
}

// A seed change from an HTTP handler can race an in-flight advance; run
// with -race. The store serializes its own state, so the worst outcome is
// an advance that finishes on the generator it already held.
func TestSeedChangeRacesAdvance(t *testing.T) {
	c := newTestController("FIRST", []string{"a", "b", "c"}, simpleDeps())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = c.Advance()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c.Store().SetSeed("SECOND", nil, nil)
		}
	}()
	wg.Wait()

	rec := c.Store().Record()
	assert.Equal(t, "SECOND", rec.Seed, "advances never touch the seed")
	assert.GreaterOrEqual(t, rec.NavigationCount, rec.PlayCount)
}

func TestRoundExpiryAdvancesAsIncorrect(t *testing.T) {
	// Limit 2 stops the auto-advance chain after the second round, so the
	// counters below settle.
	c := newTestController("TEST:2", []string{"a", "b"}, simpleDeps())
	c.SetRoundDuration(20 * time.Millisecond)

	first, err := c.Advance()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rd, ok := c.CurrentRound()
		return ok && rd.TargetID != first.TargetID
	}, 2*time.Second, 10*time.Millisecond, "expiry should auto-advance to the next round")

	rec := c.Store().Record()
	assert.Equal(t, 2, rec.PlayCount)
	assert.Zero(t, rec.CorrectCount, "an expired round scores as incorrect")
}

func TestAnswerCancelsExpiry(t *testing.T) {
	c := newTestController("TEST", []string{"a", "b"}, simpleDeps())
	c.SetRoundDuration(30 * time.Millisecond)

	rd, err := c.Advance()
	require.NoError(t, err)
	_, _, err = c.MarkAnswered(rd.TrueValue)
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)
	rec := c.Store().Record()
	assert.Equal(t, 1, rec.PlayCount, "answered round must not auto-advance")
	cur, ok := c.CurrentRound()
	require.True(t, ok)
	assert.Equal(t, rd.TargetID, cur.TargetID)
}
