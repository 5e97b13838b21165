// Package catalog is the in-memory player store. It is built once from the
// slate, applies projection floors and attribute defaults, materializes
// showdown multiplier entries, and is read-only during the parallel phases.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/gpp-engine/internal/correlation"
	"github.com/stitts-dev/gpp-engine/internal/rules"
	"github.com/stitts-dev/gpp-engine/internal/types"
	"github.com/stitts-dev/gpp-engine/pkg/logger"
)

// ErrNotFound is returned when a referenced player is absent from the catalog.
var ErrNotFound = errors.New("player not found in catalog")

const minOwnership = 0.1

// Options control catalog construction.
type Options struct {
	ProjectionMinimum float64
	DefaultVariance   float64 // stddev as a fraction of projection when missing
	// CorrelationOverrides replaces entries of the default position tables.
	CorrelationOverrides map[string]map[string]float64
}

// Catalog provides O(1) lookup by composite key and by ID.
type Catalog struct {
	players   []*types.Player
	byKey     map[string]*types.Player
	byTeam    map[string][]*types.Player
	byMatchup map[string][]*types.Player

	skipped int
	log     *logrus.Entry
}

// New builds a catalog from raw slate players. Entries below the projection
// minimum are rejected before any downstream component sees them. For
// showdown rules, every surviving person is materialized once per multiplier
// slot with scaled salary and projection.
func New(raw []types.Player, siteRules *rules.SiteRules, opts Options) *Catalog {
	c := &Catalog{
		byKey:     make(map[string]*types.Player),
		byTeam:    make(map[string][]*types.Player),
		byMatchup: make(map[string][]*types.Player),
		log:       logger.WithComponent("catalog"),
	}

	for _, in := range raw {
		if in.Projection < opts.ProjectionMinimum {
			c.skipped++
			continue
		}
		if siteRules.Mode == "showdown" {
			c.addShowdownEntries(in, siteRules, opts)
		} else {
			p := in
			p.BaseID = -1
			c.add(&p, opts)
		}
	}

	c.log.WithFields(logrus.Fields{
		"players": len(c.players),
		"skipped": c.skipped,
		"teams":   len(c.byTeam),
		"mode":    siteRules.Mode,
	}).Info("Catalog loaded")

	return c
}

func (c *Catalog) addShowdownEntries(in types.Player, siteRules *rules.SiteRules, opts Options) {
	baseID := -1
	for _, slot := range siteRules.MultiplierSlots() {
		entry := in
		entry.RosterSlot = slot.Name
		// Slot label first so eligibility keys off it; the real positions stay
		// behind it so correlation rows resolve to the player's true position.
		entry.Positions = append([]string{slot.Name}, in.Positions...)
		entry.Multiplier = slot.Multiplier
		entry.Salary = int(math.Round(float64(in.Salary) * slot.Multiplier))
		entry.Projection = in.Projection * slot.Multiplier
		if in.FieldProjection > 0 {
			entry.FieldProjection = in.FieldProjection * slot.Multiplier
		}
		entry.StdDev = in.StdDev * slot.Multiplier
		if in.Ceiling > 0 {
			entry.Ceiling = in.Ceiling * slot.Multiplier
		}
		entry.BaseID = baseID // -1 marks the base entry itself
		c.add(&entry, opts)
		if slot.Multiplier == 1 {
			baseID = entry.ID
		}
	}
}

// add normalizes defaults, assigns the ID, and indexes the entry.
func (c *Catalog) add(p *types.Player, opts Options) {
	if p.Salary <= 0 || len(p.Positions) == 0 {
		c.skipped++
		c.log.WithField("player", p.Name).Warn("Skipping player with no salary or positions")
		return
	}

	if p.StdDev <= 0 {
		p.StdDev = p.Projection * opts.DefaultVariance
	}
	if p.Ceiling <= 0 {
		p.Ceiling = p.Projection + p.StdDev
	}
	if p.FieldProjection <= 0 || p.FieldProjection > p.Projection {
		p.FieldProjection = p.Projection
	}
	if p.Ownership <= 0 {
		p.Ownership = minOwnership
	}
	if p.Matchup == "" {
		p.Matchup = matchupKey(p.Team, p.Opponent)
	}
	if p.Correlations == nil {
		p.Correlations = correlation.DefaultsFor(p.PrimaryPosition(), opts.CorrelationOverrides)
	}

	p.BayesProjection = p.Projection
	p.BayesVariance = p.StdDev * p.StdDev

	p.ID = len(c.players)
	if p.Multiplier == 0 {
		p.Multiplier = 1
	}
	if p.BaseID < 0 {
		p.BaseID = p.ID
	}

	if _, dup := c.byKey[p.Key()]; dup {
		c.skipped++
		c.log.WithField("key", p.Key()).Warn("Duplicate catalog key, keeping first entry")
		return
	}

	c.players = append(c.players, p)
	c.byKey[p.Key()] = p
	c.byTeam[p.Team] = append(c.byTeam[p.Team], p)
	c.byMatchup[p.Matchup] = append(c.byMatchup[p.Matchup], p)
}

func matchupKey(team, opponent string) string {
	if team < opponent {
		return fmt.Sprintf("%s@%s", team, opponent)
	}
	return fmt.Sprintf("%s@%s", opponent, team)
}

// Get looks a player up by the (name, roster slot, team) triple.
func (c *Catalog) Get(name, slot, team string) (*types.Player, error) {
	if p, ok := c.byKey[name+"|"+slot+"|"+team]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s/%s/%s", ErrNotFound, name, slot, team)
}

// ByID looks a player up by catalog ID.
func (c *Catalog) ByID(id int) (*types.Player, error) {
	if id < 0 || id >= len(c.players) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return c.players[id], nil
}

// ByName finds any entry for a display name, preferring base entries. Used to
// resolve live-contest references that do not carry a slot binding.
func (c *Catalog) ByName(name string) (*types.Player, error) {
	var fallback *types.Player
	for _, p := range c.players {
		if p.Name != name {
			continue
		}
		if p.BaseID == p.ID {
			return p, nil
		}
		if fallback == nil {
			fallback = p
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// ByTeam returns the team's entries.
func (c *Catalog) ByTeam(team string) []*types.Player {
	return c.byTeam[team]
}

// Players returns all entries in ID order.
func (c *Catalog) Players() []*types.Player {
	return c.players
}

// Matchups groups entries by matchup key, ordered deterministically.
func (c *Catalog) Matchups() map[string][]*types.Player {
	return c.byMatchup
}

// MatchupKeys returns the sorted matchup keys.
func (c *Catalog) MatchupKeys() []string {
	keys := make([]string, 0, len(c.byMatchup))
	for k := range c.byMatchup {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Skipped reports how many slate rows the catalog rejected.
func (c *Catalog) Skipped() int {
	return c.skipped
}
