// internal/catalog/catalog.go
//
// Storefront catalog: the id list the game picks its targets from.
//
// Responsibilities:
//   - Load entries from an environment-provided file or fall back to the
//     embedded default list.
//   - Pick the next target deterministically from the session generator,
//     filtered by game mode (games / dlc / both).
//   - Serve as the round's true-value provider (the hidden review count).
//   - Act as the content policy: entries tagged "adult" are rejected when
//     the session's content filter is on.
//
// Environment variables:
//   CATALOG_FILE=/path/to/catalog.json
//
// Entries are kept in file order so a seed replays the same pick sequence
// regardless of how the catalog was loaded.

package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/assets"
	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/lifecycle"
	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/rng"
	"github.com/StoneFilosoph/Jonas-Review-Guesser-Tournament-edition/internal/session"
)

// Kind values for catalog entries.
const (
	KindGame = "game"
	KindDLC  = "dlc"
)

// adultTag marks entries the content filter excludes.
const adultTag = "adult"

// Entry is one storefront item a round can target.
type Entry struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Reviews int      `json:"reviews"`
	Tags    []string `json:"tags,omitempty"`
}

// Catalog is an immutable, loaded id list.
type Catalog struct {
	entries []Entry
	byID    map[string]Entry
}

// Load reads the catalog from CATALOG_FILE when set, otherwise from the
// embedded default list.
func Load() (*Catalog, error) {
	var raw []byte
	var err error
	if path := os.Getenv("CATALOG_FILE"); path != "" {
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
	} else {
		raw, err = assets.DefaultCatalog()
		if err != nil {
			return nil, fmt.Errorf("embedded catalog: %w", err)
		}
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(entries)
}

// New builds a Catalog from already-parsed entries.
func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, errors.New("catalog: no entries")
	}
	byID := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	return &Catalog{entries: entries, byID: byID}, nil
}

// Get looks up an entry by id.
func (c *Catalog) Get(id string) (Entry, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// Stats returns counts of loaded entries: (games, dlc).
func (c *Catalog) Stats() (games, dlc int) {
	for _, e := range c.entries {
		if e.Kind == KindDLC {
			dlc++
		} else {
			games++
		}
	}
	return games, dlc
}

// PickTarget draws the next target id for a mode from the session
// generator. The pick consumes exactly one draw, so the target sequence is
// part of the seed's replayable stream.
func (c *Catalog) PickTarget(g *rng.Generator, mode session.Mode) (string, error) {
	candidates := c.entries
	if mode != session.ModeBoth {
		candidates = make([]Entry, 0, len(c.entries))
		for _, e := range c.entries {
			if (mode == session.ModeGames && e.Kind != KindDLC) ||
				(mode == session.ModeDLC && e.Kind == KindDLC) {
				candidates = append(candidates, e)
			}
		}
	}
	e, ok := rng.Pick(g, candidates)
	if !ok {
		return "", fmt.Errorf("catalog: no targets for mode %q", mode)
	}
	return e.ID, nil
}

// TrueValue returns the hidden review count for a target.
func (c *Catalog) TrueValue(id string) (int, error) {
	e, ok := c.byID[id]
	if !ok {
		return 0, fmt.Errorf("catalog: unknown target %q", id)
	}
	return e.Reviews, nil
}

// Evaluate is the content policy: unknown ids are not ready yet
// (indeterminate), adult-tagged entries are rejected when the filter is on.
func (c *Catalog) Evaluate(id string, filterEnabled bool) lifecycle.Verdict {
	e, ok := c.byID[id]
	if !ok {
		return lifecycle.VerdictIndeterminate
	}
	if filterEnabled {
		for _, t := range e.Tags {
			if t == adultTag {
				return lifecycle.VerdictReject
			}
		}
	}
	return lifecycle.VerdictAccept
}
