// Package swap regenerates the unlocked slots of live-contest entries. Locked
// players stay pinned in their slots; fills come from the field generator's
// sampling strategy (or the optimizer in user-optimized mode) restricted to
// the remaining salary and roster positions.
package swap

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/gpp-engine/internal/catalog"
	"github.com/stitts-dev/gpp-engine/internal/field"
	"github.com/stitts-dev/gpp-engine/internal/optimizer"
	"github.com/stitts-dev/gpp-engine/internal/rng"
	"github.com/stitts-dev/gpp-engine/internal/rules"
	"github.com/stitts-dev/gpp-engine/internal/types"
	"github.com/stitts-dev/gpp-engine/pkg/logger"
)

// EntryState classifies a live entry before planning.
type EntryState int

const (
	StateEmpty EntryState = iota
	StateAllLocked
	StatePartial
)

// Config holds swap planning knobs.
type Config struct {
	MaxAttempts       int     // failed samples before one backoff step
	BackoffFactor     float64 // multiplies both floors, < 1
	MinSalaryFloorPct float64 // backoff stops at this fraction of the cap
	MaxPctOffOptimal  float64
	Optimize          bool // rebuild unlocked slots via the optimizer
	Seed              int64
}

// Stats summarizes a planning pass.
type Stats struct {
	Entries   int
	Empty     int
	AllLocked int
	Planned   int
	Flagged   int
}

// Planner fills unlocked roster slots for live entries.
type Planner struct {
	cat   *catalog.Catalog
	rules *rules.SiteRules
	gen   *field.Generator
	cfg   Config
	log   *logrus.Entry
}

// NewPlanner builds a planner sharing the field generator's sampling pools.
func NewPlanner(cat *catalog.Catalog, siteRules *rules.SiteRules, gen *field.Generator, cfg Config) *Planner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 50
	}
	if cfg.BackoffFactor <= 0 || cfg.BackoffFactor >= 1 {
		cfg.BackoffFactor = 0.95
	}
	if cfg.MinSalaryFloorPct <= 0 {
		cfg.MinSalaryFloorPct = 0.90
	}
	return &Planner{
		cat:   cat,
		rules: siteRules,
		gen:   gen,
		cfg:   cfg,
		log:   logger.WithComponent("swap"),
	}
}

// Classify inspects an entry's lock mask. Unlocked slots are marked by a
// player ID of -1.
func Classify(entry *types.FieldEntry) EntryState {
	if entry.Lineup == nil || len(entry.Lineup.PlayerIDs) == 0 {
		return StateEmpty
	}
	open := 0
	for _, id := range entry.Lineup.PlayerIDs {
		if id < 0 {
			open++
		}
	}
	if open == 0 {
		return StateAllLocked
	}
	return StatePartial
}

// Plan fills every entry's unlocked slots. Entries that cannot be completed
// within the backoff schedule keep their best partial and are flagged; the
// simulation still runs with them.
func (pl *Planner) Plan(entries []*types.FieldEntry, optimalScore float64) Stats {
	stats := Stats{Entries: len(entries)}
	for i, entry := range entries {
		switch Classify(entry) {
		case StateEmpty:
			stats.Empty++
			entry.Flagged = true
			continue
		case StateAllLocked:
			stats.AllLocked++
			pl.fillTotals(entry)
			continue
		}

		if pl.planEntry(entry, i, optimalScore) {
			stats.Planned++
		} else {
			stats.Flagged++
		}
	}

	pl.log.WithFields(logrus.Fields{
		"entries":    stats.Entries,
		"planned":    stats.Planned,
		"all_locked": stats.AllLocked,
		"empty":      stats.Empty,
		"flagged":    stats.Flagged,
	}).Info("Swap planning completed")
	return stats
}

// planEntry fills one entry, backing off the salary and projection floors
// after every MaxAttempts failures until their minima.
func (pl *Planner) planEntry(entry *types.FieldEntry, index int, optimalScore float64) bool {
	locked := make(map[int]*types.Player)
	lockedSalary := 0
	lockedProjection := 0.0
	for slot, id := range entry.Lineup.PlayerIDs {
		if id < 0 {
			continue
		}
		p, err := pl.cat.ByID(id)
		if err != nil {
			pl.log.WithFields(logrus.Fields{
				"entry_id": entry.EntryID,
				"player":   id,
			}).Warn("Live entry references unknown player, keeping best partial")
			entry.Flagged = true
			pl.applyPartial(entry, locked)
			return false
		}
		locked[slot] = p
		lockedSalary += p.Salary
		lockedProjection += p.Projection
	}
	entry.LockedSalary = lockedSalary
	entry.LockedProjection = lockedProjection

	if pl.cfg.Optimize {
		return pl.optimizeEntry(entry, locked, index)
	}

	gen := rng.New(pl.cfg.Seed, index)
	partial := pl.gen.NewPartial(locked)

	salaryFloor := pl.rules.SalaryCap - pl.rules.SalaryTolerance
	minFloor := int(float64(pl.rules.SalaryCap) * pl.cfg.MinSalaryFloorPct)
	projFloor := (1 - pl.cfg.MaxPctOffOptimal) * optimalScore

	for {
		for attempt := 0; attempt < pl.cfg.MaxAttempts; attempt++ {
			assign := pl.gen.SampleOnce(gen, partial, salaryFloor, projFloor)
			if assign == nil {
				continue
			}
			assign = pl.arrangeSlots(assign, entry)
			if assign == nil {
				continue
			}
			pl.apply(entry, assign)
			return true
		}
		if salaryFloor <= minFloor && projFloor <= 0 {
			break
		}
		salaryFloor = int(float64(salaryFloor) * pl.cfg.BackoffFactor)
		if salaryFloor < minFloor {
			salaryFloor = minFloor
		}
		projFloor *= pl.cfg.BackoffFactor
		if projFloor < 0.5 {
			projFloor = 0
		}
	}

	pl.log.WithField("entry_id", entry.EntryID).Warn("Swap backoff exhausted, keeping best partial")
	entry.Flagged = true
	pl.applyPartial(entry, locked)
	return false
}

// optimizeEntry rebuilds the unlocked slots with the optimizer, locked
// players pinned to their slots.
func (pl *Planner) optimizeEntry(entry *types.FieldEntry, locked map[int]*types.Player, index int) bool {
	lockedSlots := make(map[int]int, len(locked))
	for slot, p := range locked {
		lockedSlots[slot] = p.ID
	}
	res, err := optimizer.Optimize(pl.cat, pl.rules, optimizer.Config{
		NumLineups:  1,
		LockedSlots: lockedSlots,
		Seed:        rng.TaskSeed(pl.cfg.Seed, index),
		SalaryFloor: -1,
	})
	if err != nil {
		pl.log.WithFields(logrus.Fields{
			"entry_id": entry.EntryID,
			"error":    err.Error(),
		}).Warn("Optimized swap infeasible, keeping best partial")
		entry.Flagged = true
		pl.applyPartial(entry, locked)
		return false
	}
	lineup := res.Lineups[0]
	assign := make([]*types.Player, len(lineup.PlayerIDs))
	for i, id := range lineup.PlayerIDs {
		assign[i], _ = pl.cat.ByID(id)
	}
	if arranged := pl.arrangeSlots(assign, entry); arranged != nil {
		assign = arranged
	}
	pl.apply(entry, assign)
	return true
}

// arrangeSlots re-checks eligibility and shuffles unlocked players among the
// unlocked slots so the latest-starting players end up in the most flexible
// seats, preserving maximum late-swap room. Locked players never move.
func (pl *Planner) arrangeSlots(assign []*types.Player, entry *types.FieldEntry) []*types.Player {
	out := make([]*types.Player, len(assign))
	var openSlots []int
	var pool []*types.Player
	for i, p := range assign {
		if i < len(entry.LockMask) && entry.LockMask[i] {
			out[i] = p
			continue
		}
		openSlots = append(openSlots, i)
		pool = append(pool, p)
	}

	// Most restrictive slots first; ties keep roster order.
	sort.SliceStable(openSlots, func(a, b int) bool {
		return len(pl.rules.Slots[openSlots[a]].AllowedPositions) < len(pl.rules.Slots[openSlots[b]].AllowedPositions)
	})
	// Earliest games get assigned first, leaving late starters for the
	// flexible slots at the end.
	sort.SliceStable(pool, func(a, b int) bool {
		return pool[a].GameTime.Before(pool[b].GameTime)
	})

	if !assignPool(pl.rules, out, openSlots, pool, 0) {
		return nil
	}
	return out
}

// assignPool backtracks players onto slots in the prepared preference order.
func assignPool(siteRules *rules.SiteRules, out []*types.Player, openSlots []int, pool []*types.Player, k int) bool {
	if k == len(openSlots) {
		return true
	}
	slot := openSlots[k]
	for i, p := range pool {
		if p == nil || !p.Eligible(siteRules.Slots[slot].AllowedPositions) {
			continue
		}
		out[slot] = p
		pool[i] = nil
		if assignPool(siteRules, out, openSlots, pool, k+1) {
			return true
		}
		pool[i] = p
		out[slot] = nil
	}
	return false
}

// apply writes the final assignment back onto the entry lineup.
func (pl *Planner) apply(entry *types.FieldEntry, assign []*types.Player) {
	l := entry.Lineup
	l.Salary = 0
	l.Projection = 0
	l.FieldProjection = 0
	l.Ceiling = 0
	minutes := 0.0
	for i, p := range assign {
		l.PlayerIDs[i] = p.ID
		l.Slots[i] = pl.rules.Slots[i].Name
		l.Salary += p.Salary
		l.Projection += p.Projection
		l.FieldProjection += p.FieldProjection
		l.Ceiling += p.Ceiling
		minutes += p.MinutesRemaining
	}
	entry.MinutesRemaining = minutes
}

// applyPartial writes totals for the locked portion only. Open slots keep
// their -1 marker and contribute nothing when the entry is scored.
func (pl *Planner) applyPartial(entry *types.FieldEntry, locked map[int]*types.Player) {
	l := entry.Lineup
	l.Salary = 0
	l.Projection = 0
	l.FieldProjection = 0
	l.Ceiling = 0
	minutes := 0.0
	for slot, p := range locked {
		l.Slots[slot] = pl.rules.Slots[slot].Name
		l.Salary += p.Salary
		l.Projection += p.Projection
		l.FieldProjection += p.FieldProjection
		l.Ceiling += p.Ceiling
		minutes += p.MinutesRemaining
	}
	entry.MinutesRemaining = minutes
}

// fillTotals recomputes lineup totals for fully locked entries.
func (pl *Planner) fillTotals(entry *types.FieldEntry) {
	assign := make([]*types.Player, 0, len(entry.Lineup.PlayerIDs))
	for _, id := range entry.Lineup.PlayerIDs {
		p, err := pl.cat.ByID(id)
		if err != nil {
			entry.Flagged = true
			return
		}
		assign = append(assign, p)
	}
	pl.apply(entry, assign)
}
