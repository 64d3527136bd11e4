package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/lifecycle"
	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/rng"
	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/session"
)

func testEntries() []Entry {
	return []Entry{
		{ID: "g1", Name: "One", Kind: KindGame, Reviews: 120},
		{ID: "g2", Name: "Two", Kind: KindGame, Reviews: 98431},
		{ID: "g3", Name: "Three", Kind: KindGame, Reviews: 7, Tags: []string{"adult"}},
		{ID: "d1", Name: "One DLC", Kind: KindDLC, Reviews: 45},
		{ID: "d2", Name: "Two DLC", Kind: KindDLC, Reviews: 3310, Tags: []string{"adult"}},
	}
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New(testEntries())
	require.NoError(t, err)
	return c
}

func TestNewRejectsEmpty(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	games, dlc := newTestCatalog(t).Stats()
	assert.Equal(t, 3, games)
	assert.Equal(t, 2, dlc)
}

func TestPickTargetRespectsMode(t *testing.T) {
	c := newTestCatalog(t)
	g := rng.New(rng.HashSeed("MODES"))

	gamesOnly := map[string]bool{"g1": true, "g2": true, "g3": true}
	dlcOnly := map[string]bool{"d1": true, "d2": true}

	for i := 0; i < 50; i++ {
		id, err := c.PickTarget(g, session.ModeGames)
		require.NoError(t, err)
		assert.True(t, gamesOnly[id], "mode games picked %q", id)

		id, err = c.PickTarget(g, session.ModeDLC)
		require.NoError(t, err)
		assert.True(t, dlcOnly[id], "mode dlc picked %q", id)
	}
}

func TestPickTargetConsumesOneDraw(t *testing.T) {
	c := newTestCatalog(t)

	// The pick must advance the stream exactly as one draw does, so later
	// synthesis stays aligned with the seed.
	a := rng.New(rng.HashSeed("DRAWS"))
	_, err := c.PickTarget(a, session.ModeBoth)
	require.NoError(t, err)

	b := rng.New(rng.HashSeed("DRAWS"))
	b.Draw()
	assert.Equal(t, b.State(), a.State())
}

func TestPickTargetDeterministic(t *testing.T) {
	c := newTestCatalog(t)
	var first []string
	for run := 0; run < 2; run++ {
		g := rng.New(rng.HashSeed("REPLAY"))
		var ids []string
		for i := 0; i < 10; i++ {
			id, err := c.PickTarget(g, session.ModeBoth)
			require.NoError(t, err)
			ids = append(ids, id)
		}
		if run == 0 {
			first = ids
		} else {
			assert.Equal(t, first, ids)
		}
	}
}

func TestTrueValue(t *testing.T) {
	c := newTestCatalog(t)
	v, err := c.TrueValue("g2")
	require.NoError(t, err)
	assert.Equal(t, 98431, v)

	_, err = c.TrueValue("nope")
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	c := newTestCatalog(t)
	assert.Equal(t, lifecycle.VerdictAccept, c.Evaluate("g1", true))
	assert.Equal(t, lifecycle.VerdictReject, c.Evaluate("g3", true), "adult entry rejected with filter on")
	assert.Equal(t, lifecycle.VerdictAccept, c.Evaluate("g3", false), "filter off lets adult entries through")
	assert.Equal(t, lifecycle.VerdictIndeterminate, c.Evaluate("nope", true))
}

func TestLoadEmbeddedDefault(t *testing.T) {
	t.Setenv("CATALOG_FILE", "")
	c, err := Load()
	require.NoError(t, err)
	games, dlc := c.Stats()
	assert.Positive(t, games)
	assert.Positive(t, dlc)
}

func TestLoadFromFile(t *testing.T) {
	raw, err := json.Marshal(testEntries())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	t.Setenv("CATALOG_FILE", path)

	c, err := Load()
	require.NoError(t, err)
	_, ok := c.Get("g2")
	assert.True(t, ok)
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Setenv("CATALOG_FILE", filepath.Join(t.TempDir(), "absent.json"))
	_, err := Load()
	assert.Error(t, err)
}
