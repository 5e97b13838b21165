// Package field fabricates a realistic opponent field: lineups drawn in
// proportion to projected ownership under the same structural rules as the
// optimizer, filtered by a salary and projection realism band.
package field

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/gpp-engine/internal/catalog"
	"github.com/stitts-dev/gpp-engine/internal/rng"
	"github.com/stitts-dev/gpp-engine/internal/rules"
	"github.com/stitts-dev/gpp-engine/internal/types"
	"github.com/stitts-dev/gpp-engine/pkg/logger"
)

// Config holds field generation knobs.
type Config struct {
	FieldSize        int
	MaxPctOffOptimal float64
	TeamCap          int // 0 defers to the site rules
	OverlapLimit     int // showdown: max players opposing the captain
	Seed             int64
	Workers          int
	MaxAttempts      int // per-lineup restart budget before giving up
}

// Stats summarizes generation for the run summary line.
type Stats struct {
	Requested int
	Generated int
	Unique    int
	Failed    int
	TimeMs    int64
}

// Generator samples opponent lineups from the catalog. The per-slot candidate
// pools and salary minima are read-only after construction, so workers share
// them without locks.
type Generator struct {
	cat       *catalog.Catalog
	rules     *rules.SiteRules
	cfg       Config
	teamCap   int
	slotPools [][]*types.Player
	minSalary []int
	log       *logrus.Entry
}

// NewGenerator builds a generator bound to one catalog and rule set.
func NewGenerator(cat *catalog.Catalog, siteRules *rules.SiteRules, cfg Config) *Generator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1000
	}
	teamCap := siteRules.TeamCap
	if cfg.TeamCap > 0 {
		teamCap = cfg.TeamCap
	}
	g := &Generator{
		cat:       cat,
		rules:     siteRules,
		cfg:       cfg,
		teamCap:   teamCap,
		minSalary: siteRules.MinSlotSalary(cat.Players()),
		log:       logger.WithComponent("field"),
	}
	g.slotPools = make([][]*types.Player, len(siteRules.Slots))
	for i, slot := range siteRules.Slots {
		for _, p := range cat.Players() {
			if p.Eligible(slot.AllowedPositions) {
				g.slotPools[i] = append(g.slotPools[i], p)
			}
		}
	}
	return g
}

// Generate draws FieldSize lineups and deduplicates them. Each target lineup
// is an independent task with a private generator split from the master seed;
// tasks are joined in index order so the dedupe result is reproducible.
func (g *Generator) Generate(optimalScore float64) ([]*types.Lineup, Stats) {
	start := time.Now()
	stats := Stats{Requested: g.cfg.FieldSize}

	results := make([][]*types.Player, g.cfg.FieldSize)
	tasks := make(chan int, g.cfg.FieldSize)

	var wg sync.WaitGroup
	for w := 0; w < g.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range tasks {
				gen := rng.New(g.cfg.Seed, idx)
				results[idx] = g.sampleWithRetries(gen, g.emptyPartial(), optimalScore, g.salaryFloor())
			}
		}()
	}
	for i := 0; i < g.cfg.FieldSize; i++ {
		tasks <- i
	}
	close(tasks)
	wg.Wait()

	// Dedupe after join. First occurrence keeps the lineup, later ones only
	// bump the duplicate count.
	byKey := make(map[string]*types.Lineup)
	var unique []*types.Lineup
	for i, assign := range results {
		if assign == nil {
			stats.Failed++
			continue
		}
		stats.Generated++
		lineup := g.toLineup(assign, i)
		if seen, ok := byKey[lineup.DedupeKey()]; ok {
			seen.DupeCount++
			continue
		}
		byKey[lineup.DedupeKey()] = lineup
		unique = append(unique, lineup)
	}

	stats.Unique = len(unique)
	stats.TimeMs = time.Since(start).Milliseconds()
	g.log.WithFields(logrus.Fields{
		"requested": stats.Requested,
		"generated": stats.Generated,
		"unique":    stats.Unique,
		"failed":    stats.Failed,
		"time_ms":   stats.TimeMs,
	}).Info("Field generation completed")
	return unique, stats
}

func (g *Generator) salaryFloor() int {
	return g.rules.SalaryCap - g.rules.SalaryTolerance
}

// Partial is a lineup under construction: locked slots carry their player,
// open slots are nil. The swap planner seeds partials from live entries; the
// field path starts from an empty one.
type Partial struct {
	Assign []*types.Player
}

func (g *Generator) emptyPartial() *Partial {
	return &Partial{Assign: make([]*types.Player, len(g.rules.Slots))}
}

// NewPartial builds a partial from locked assignments keyed by slot index.
func (g *Generator) NewPartial(locked map[int]*types.Player) *Partial {
	p := g.emptyPartial()
	for i, player := range locked {
		if i >= 0 && i < len(p.Assign) {
			p.Assign[i] = player
		}
	}
	return p
}

// sampleWithRetries restarts the whole lineup until it passes the realism
// filter or the attempt budget runs out.
func (g *Generator) sampleWithRetries(gen *rand.Rand, partial *Partial, optimalScore float64, salaryFloor int) []*types.Player {
	projFloor := (1 - g.cfg.MaxPctOffOptimal) * optimalScore
	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		if assign := g.SampleOnce(gen, partial, salaryFloor, projFloor); assign != nil {
			return assign
		}
	}
	return nil
}

// SampleOnce fills the open slots of a partial by ownership-weighted draws.
// Returns nil when the draw dead-ends or the completed lineup fails the
// realism filter.
func (g *Generator) SampleOnce(gen *rand.Rand, partial *Partial, salaryFloor int, projFloor float64) []*types.Player {
	n := len(g.rules.Slots)
	assign := make([]*types.Player, n)
	copy(assign, partial.Assign)

	inLineup := make(map[int]bool)
	usedPerson := make(map[string]bool)
	teamCount := make(map[string]int)
	salary := 0

	var open []int
	for i, p := range assign {
		if p == nil {
			open = append(open, i)
			continue
		}
		inLineup[p.ID] = true
		usedPerson[p.PersonKey()] = true
		teamCount[p.Team]++
		salary += p.Salary
	}

	for k, slotIdx := range open {
		// Cheapest possible completion of the remaining open slots.
		minRest := 0
		for _, later := range open[k+1:] {
			minRest += g.minSalary[later]
		}
		lastSlot := k == len(open)-1

		total := 0.0
		weights := make([]float64, 0, len(g.slotPools[slotIdx]))
		candidates := make([]*types.Player, 0, len(g.slotPools[slotIdx]))
		for _, p := range g.slotPools[slotIdx] {
			if inLineup[p.ID] || usedPerson[p.PersonKey()] {
				continue
			}
			if teamCount[p.Team] >= g.teamCap {
				continue
			}
			if salary+p.Salary+minRest > g.rules.SalaryCap {
				continue
			}
			if lastSlot && salary+p.Salary < salaryFloor {
				continue
			}
			w := p.Ownership
			if lastSlot {
				// Bias the final pick toward spending the remaining cap.
				ratio := float64(p.Salary) / float64(g.rules.SalaryCap)
				w *= ratio * ratio
			}
			total += w
			candidates = append(candidates, p)
			weights = append(weights, w)
		}
		if len(candidates) == 0 || total <= 0 {
			return nil
		}

		r := gen.Float64() * total
		chosen := candidates[len(candidates)-1]
		for i, w := range weights {
			if r -= w; r <= 0 {
				chosen = candidates[i]
				break
			}
		}

		assign[slotIdx] = chosen
		inLineup[chosen.ID] = true
		usedPerson[chosen.PersonKey()] = true
		teamCount[chosen.Team]++
		salary += chosen.Salary
	}

	if salary > g.rules.SalaryCap || salary < salaryFloor {
		return nil
	}
	if len(teamCount) < 2 {
		return nil
	}
	projection := 0.0
	for _, p := range assign {
		projection += p.FieldProjection
	}
	if projection < projFloor {
		return nil
	}
	if g.cfg.OverlapLimit > 0 && g.rules.Mode == "showdown" {
		if g.captainOverlap(assign) > g.cfg.OverlapLimit {
			return nil
		}
	}
	return assign
}

// captainOverlap counts players opposing the highest-multiplier slot.
func (g *Generator) captainOverlap(assign []*types.Player) int {
	var captain *types.Player
	best := 1.0
	for i, p := range assign {
		if g.rules.Slots[i].Multiplier > best {
			best = g.rules.Slots[i].Multiplier
			captain = p
		}
	}
	if captain == nil {
		return 0
	}
	overlap := 0
	for _, p := range assign {
		if p.Team == captain.Opponent {
			overlap++
		}
	}
	return overlap
}

func (g *Generator) toLineup(assign []*types.Player, index int) *types.Lineup {
	lineup := &types.Lineup{
		ID:        fmt.Sprintf("field_%d_%s", index+1, uuid.New().String()[:8]),
		Slots:     make([]string, len(assign)),
		PlayerIDs: make([]int, len(assign)),
		Type:      types.LineupTypeGenerated,
		DupeCount: 1,
	}
	for i, p := range assign {
		lineup.Slots[i] = g.rules.Slots[i].Name
		lineup.PlayerIDs[i] = p.ID
		lineup.Salary += p.Salary
		lineup.Projection += p.Projection
		lineup.FieldProjection += p.FieldProjection
		lineup.Ceiling += p.Ceiling
	}
	return lineup
}
