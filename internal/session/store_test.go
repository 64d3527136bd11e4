package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/rng"
)

func newTestStore(kv KV) *Store {
	return NewStore(kv, zerolog.Nop())
}

func TestSetSeedRoundTrip(t *testing.T) {
	s := newTestStore(NewMemoryKV())
	canonical := s.SetSeed("ABC123:10", nil, nil)
	assert.Equal(t, "ABC123:10", canonical)
	rec := s.Record()
	assert.Equal(t, "ABC123", rec.Seed)
	assert.Equal(t, 10, rec.GameLimit)

	canonical = s.SetSeed("abc123:UNLIMITED", nil, nil)
	assert.Equal(t, "ABC123", canonical)
	rec = s.Record()
	assert.Equal(t, "ABC123", rec.Seed)
	assert.Equal(t, 0, rec.GameLimit)
}

func TestSetSeedOverridesBeatTokenSuffix(t *testing.T) {
	s := newTestStore(NewMemoryKV())
	limit := 7
	mode := ModeDLC
	canonical := s.SetSeed("abc:5", &limit, &mode)
	assert.Equal(t, "ABC:7", canonical)
	rec := s.Record()
	assert.Equal(t, 7, rec.GameLimit)
	assert.Equal(t, ModeDLC, rec.GameMode)
}

func TestSetSeedResetsCountersAndGenerator(t *testing.T) {
	s := newTestStore(NewMemoryKV())
	s.SetSeed("FIRST", nil, nil)
	s.RecordPlay()
	s.RecordPlay()
	s.RecordCorrect()
	g1 := s.Generator()
	g1.Draw()

	s.SetSeed("SECOND", nil, nil)
	rec := s.Record()
	assert.Zero(t, rec.PlayCount)
	assert.Zero(t, rec.NavigationCount)
	assert.Zero(t, rec.CorrectCount)

	g2 := s.Generator()
	assert.NotSame(t, g1, g2, "changing the seed must discard the generator")
	assert.Equal(t, rng.New(rng.HashSeed("SECOND")).State(), g2.State())
}

func TestSetSeedEmitsNotification(t *testing.T) {
	s := newTestStore(NewMemoryKV())
	var events []Event
	s.Subscribe(func(e Event) { events = append(events, e) })

	s.SetSeed("test:3", nil, nil)
	require.NotEmpty(t, events)
	e := events[len(events)-1]
	assert.Equal(t, EventSeedChanged, e.Kind)
	assert.Equal(t, "TEST", e.Seed)
	assert.Equal(t, 3, e.GameLimit)
}

func TestRestoreOrInitReturnsLiveGeneratorUnchanged(t *testing.T) {
	s := newTestStore(NewMemoryKV())
	g1 := s.RestoreOrInit("SEED")
	g1.Draw()
	state := g1.State()
	g2 := s.RestoreOrInit("OTHER")
	assert.Same(t, g1, g2)
	assert.Equal(t, state, g2.State())
}

func TestRestoreOrInitPrefersURLToken(t *testing.T) {
	kv := NewMemoryKV()
	first := newTestStore(kv)
	first.SetSeed("PERSISTED", nil, nil)

	second := newTestStore(kv)
	g := second.RestoreOrInit("fromurl")
	assert.Equal(t, "FROMURL", second.Record().Seed)
	assert.Equal(t, rng.New(rng.HashSeed("FROMURL")).State(), g.State())
}

func TestRestoreOrInitFastForwardsByNavigationCount(t *testing.T) {
	kv := NewMemoryKV()
	first := newTestStore(kv)
	first.SetSeed("TEST", nil, nil)
	first.RecordPlay()
	first.RecordPlay()
	first.RecordNavigationOnly() // a voided attempt still moves the cursor

	second := newTestStore(kv)
	g := second.RestoreOrInit("")

	want := rng.New(rng.HashSeed("TEST"))
	want.Skip(3 * FastForwardPerRound)
	assert.Equal(t, want.State(), g.State())

	// Replaying the restore from the same persisted record lands on the
	// same cursor every time.
	third := newTestStore(kv)
	assert.Equal(t, g.State(), third.RestoreOrInit("").State())
}

func TestRestoreOrInitGeneratesSeedWhenEmpty(t *testing.T) {
	s := newTestStore(NewMemoryKV())
	g := s.RestoreOrInit("")
	require.NotNil(t, g)
	rec := s.Record()
	require.Len(t, rec.Seed, 8)
	for _, r := range rec.Seed {
		assert.True(t, (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'), "seed char %q", r)
	}
}

func TestCountersPersistAcrossRestores(t *testing.T) {
	kv := NewMemoryKV()
	first := newTestStore(kv)
	first.SetSeed("KEEP:4", nil, nil)
	first.SetGameMode(ModeGames)
	first.SetFilterEnabled(true)
	first.RecordPlay()
	first.RecordCorrect()

	second := newTestStore(kv)
	second.RestoreOrInit("")
	rec := second.Record()
	assert.Equal(t, "KEEP", rec.Seed)
	assert.Equal(t, 1, rec.PlayCount)
	assert.Equal(t, 1, rec.NavigationCount)
	assert.Equal(t, 1, rec.CorrectCount)
	assert.Equal(t, 4, rec.GameLimit)
	assert.Equal(t, ModeGames, rec.GameMode)
	assert.True(t, rec.ContentFilter)
}

func TestRecordNavigationOnlyLeavesPlayCount(t *testing.T) {
	s := newTestStore(NewMemoryKV())
	s.SetSeed("TEST", nil, nil)
	s.RecordPlay()
	nav := s.RecordNavigationOnly()
	assert.Equal(t, 2, nav)
	rec := s.Record()
	assert.Equal(t, 1, rec.PlayCount)
	assert.Equal(t, 2, rec.NavigationCount)
}

func TestDecrementPlayCountFloorsAtZero(t *testing.T) {
	s := newTestStore(NewMemoryKV())
	s.SetSeed("TEST", nil, nil)
	assert.Zero(t, s.DecrementPlayCount())
	s.RecordPlay()
	assert.Zero(t, s.DecrementPlayCount())
	assert.Equal(t, 1, s.Record().NavigationCount, "navigation never walks back")
}

func TestResetCountersKeepsSeedAndNavigation(t *testing.T) {
	s := newTestStore(NewMemoryKV())
	s.SetSeed("TEST", nil, nil)
	s.RecordPlay()
	s.RecordCorrect()
	s.ResetCounters()
	rec := s.Record()
	assert.Zero(t, rec.PlayCount)
	assert.Zero(t, rec.CorrectCount)
	assert.Equal(t, "TEST", rec.Seed)
	assert.Equal(t, 1, rec.NavigationCount)
}

func TestSettingsMutatorsEmitAndPersist(t *testing.T) {
	kv := NewMemoryKV()
	s := newTestStore(kv)
	s.SetSeed("TEST", nil, nil)

	var kinds []EventKind
	s.Subscribe(func(e Event) { kinds = append(kinds, e.Kind) })

	s.SetGameLimit(25)
	s.SetGameMode(ModeDLC)
	s.SetFilterEnabled(true)
	assert.Equal(t, []EventKind{EventSettingsChanged, EventSettingsChanged, EventSettingsChanged}, kinds)

	v, ok, err := kv.Get("game_limit")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "25", v)

	s.SetGameLimit(0)
	v, _, _ = kv.Get("game_limit")
	assert.Equal(t, "", v, "unlimited persists as empty string")
}

func TestNavMarker(t *testing.T) {
	s := newTestStore(NewMemoryKV())
	_, ok := s.NavMarker()
	assert.False(t, ok)

	s.SetNavMarker(3)
	chain, ok := s.NavMarker()
	require.True(t, ok)
	assert.Equal(t, 3, chain)

	s.ClearNavMarker()
	_, ok = s.NavMarker()
	assert.False(t, ok)
}

// failingKV simulates an unavailable durable store.
type failingKV struct{}

func (failingKV) Get(string) (string, bool, error) { return "", false, errors.New("storage offline") }
func (failingKV) Set(string, string) error         { return errors.New("storage offline") }
func (failingKV) Remove(string) error              { return errors.New("storage offline") }

func TestPersistenceFailureDegradesToMemory(t *testing.T) {
	s := newTestStore(failingKV{})
	require.NotPanics(t, func() {
		s.SetSeed("TEST:2", nil, nil)
		s.RecordPlay()
		s.RecordCorrect()
		s.SetGameLimit(5)
		s.ClearNavMarker()
	})
	rec := s.Record()
	assert.Equal(t, "TEST", rec.Seed)
	assert.Equal(t, 1, rec.PlayCount)
	assert.Equal(t, 1, rec.CorrectCount)
	assert.Equal(t, 5, rec.GameLimit)
}

// Exercises every mutator from racing goroutines; run with -race. Handlers
// and the lifecycle controller share one store without external locking, so
// the store itself must serialize.
func TestConcurrentMutationIsSerialized(t *testing.T) {
	s := newTestStore(NewMemoryKV())
	s.SetSeed("BASE", nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				switch i % 4 {
				case 0:
					s.SetSeed("OTHER", nil, nil)
				case 1:
					s.RecordPlay()
					s.RecordCorrect()
				case 2:
					s.Generator()
					_ = s.Record()
				case 3:
					s.SetGameLimit(j)
					s.SetNavMarker(j)
					s.NavMarker()
				}
			}
		}(i)
	}
	wg.Wait()

	rec := s.Record()
	assert.Contains(t, []string{"BASE", "OTHER"}, rec.Seed)
	assert.GreaterOrEqual(t, rec.NavigationCount, rec.PlayCount,
		"navigation can never trail the play count")
}

func TestRandomSeedToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		tok := RandomSeedToken()
		require.Len(t, tok, 8)
		for _, r := range tok {
			assert.True(t, (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'), "token char %q", r)
		}
		seen[tok] = true
	}
	assert.Greater(t, len(seen), 1, "tokens must vary")
}

func TestNilKVOperatesInMemory(t *testing.T) {
	s := newTestStore(nil)
	s.SetSeed("TEST", nil, nil)
	s.RecordPlay()
	assert.Equal(t, 1, s.Record().PlayCount)
}

func TestNamespacedKVIsolation(t *testing.T) {
	base := NewMemoryKV()
	a := Namespaced(base, "sess:alice")
	b := Namespaced(base, "sess:bob")

	require.NoError(t, a.Set("seed", "AAA"))
	require.NoError(t, b.Set("seed", "BBB"))

	va, ok, err := a.Get("seed")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "AAA", va)

	require.NoError(t, a.Remove("seed"))
	_, ok, _ = a.Get("seed")
	assert.False(t, ok)
	vb, ok, _ := b.Get("seed")
	require.True(t, ok)
	assert.Equal(t, "BBB", vb)
}
