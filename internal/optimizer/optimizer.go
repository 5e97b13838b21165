// Package optimizer emits diverse near-optimal lineups under the site's
// structural rules. The search is a slot-ordered branch and bound: candidates
// are tried best-first with an admissible upper bound, so the first completed
// solve is the true optimum, and diversity cuts between solves enumerate the
// rest.
package optimizer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/gpp-engine/internal/catalog"
	"github.com/stitts-dev/gpp-engine/internal/rng"
	"github.com/stitts-dev/gpp-engine/internal/rules"
	"github.com/stitts-dev/gpp-engine/internal/types"
	"github.com/stitts-dev/gpp-engine/pkg/logger"
)

// ErrInfeasible is returned when no lineup satisfies the constraints.
var ErrInfeasible = errors.New("no feasible lineup under constraints")

// Config holds optimizer knobs. Zero values defer to the site rules.
type Config struct {
	NumLineups int
	NumUniques int     // minimum player differences between emitted lineups
	Randomness float64 // percent; > 0 switches to stochastic objectives
	Epsilon    float64 // deterministic diversity cut step
	Seed       int64

	TeamCap        int
	MatchupLimits  map[string]int
	MatchupAtLeast map[string]int
	AtLeast        map[string][]string // "count#i" -> player names
	AtMost         map[string][]string

	Locked      []int       // player IDs that must appear in every lineup
	Excluded    []int       // player IDs removed from the pool
	LockedSlots map[int]int // slot index -> player ID, pinned exactly (late swap)

	UseFieldProjection bool
	SalaryFloor        int // -1 disables the floor, 0 defers to the rules
}

// Result is the optimizer output.
type Result struct {
	Lineups      []*types.Lineup
	OptimalScore float64
	TimeMs       int64
}

type groupRule struct {
	count int
	ids   map[int]bool
}

type solver struct {
	cat     *catalog.Catalog
	rules   *rules.SiteRules
	cfg     Config
	log     *logrus.Entry
	teamCap int
	floor   int

	slotPools  [][]*types.Player // eligible candidates per slot, value-ordered
	weights    []float64         // objective weight per player ID
	maxPerSlot []float64
	minSalary  []int
	maxSalary  []int

	atLeast []groupRule
	atMost  []groupRule
	cuts    [][]int // previously emitted lineups, as player-ID sets
	cutoff  float64 // objective must stay strictly below (deterministic mode)

	best       float64
	bestFound  bool
	bestAssign []*types.Player
}

// Optimize runs the solver NumLineups times with diversity cuts installed
// between iterations. Infeasibility mid-run is non-fatal: the lineups
// gathered so far are returned.
func Optimize(cat *catalog.Catalog, siteRules *rules.SiteRules, cfg Config) (*Result, error) {
	start := time.Now()
	log := logger.WithComponent("optimizer")

	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 0.01
	}
	if cfg.NumUniques <= 0 {
		cfg.NumUniques = 1
	}

	s, err := newSolver(cat, siteRules, cfg, log)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"num_lineups": cfg.NumLineups,
		"randomness":  cfg.Randomness,
		"pool_size":   len(cat.Players()),
	}).Info("Starting lineup optimization")

	result := &Result{}
	for i := 0; i < cfg.NumLineups; i++ {
		if cfg.Randomness > 0 {
			s.perturbWeights(rng.New(cfg.Seed, i))
		}
		assign, obj, err := s.solve()
		if err != nil {
			log.WithFields(logrus.Fields{
				"produced":  len(result.Lineups),
				"requested": cfg.NumLineups,
			}).Warn("Optimizer infeasible, returning partial results")
			break
		}

		lineup := buildLineup(siteRules, assign, i, types.LineupTypeUser)
		result.Lineups = append(result.Lineups, lineup)
		if i == 0 {
			result.OptimalScore = lineup.Projection
			if cfg.UseFieldProjection {
				result.OptimalScore = lineup.FieldProjection
			}
		}

		ids := make([]int, len(assign))
		for j, p := range assign {
			ids[j] = p.ID
		}
		s.cuts = append(s.cuts, ids)
		if cfg.Randomness <= 0 {
			s.cutoff = obj - cfg.Epsilon
		}
	}

	if len(result.Lineups) == 0 {
		return nil, ErrInfeasible
	}

	result.TimeMs = time.Since(start).Milliseconds()
	log.WithFields(logrus.Fields{
		"lineups": len(result.Lineups),
		"time_ms": result.TimeMs,
	}).Info("Lineup optimization completed")
	return result, nil
}

// OptimalScore solves once without diversity cuts against field projections.
// The field generator's realism band is anchored to this value.
func OptimalScore(cat *catalog.Catalog, siteRules *rules.SiteRules, cfg Config) (float64, error) {
	cfg.NumLineups = 1
	cfg.Randomness = 0
	cfg.UseFieldProjection = true
	res, err := Optimize(cat, siteRules, cfg)
	if err != nil {
		return 0, err
	}
	return res.Lineups[0].FieldProjection, nil
}

func newSolver(cat *catalog.Catalog, siteRules *rules.SiteRules, cfg Config, log *logrus.Entry) (*solver, error) {
	s := &solver{
		cat:     cat,
		rules:   siteRules,
		cfg:     cfg,
		log:     log,
		teamCap: siteRules.TeamCap,
		floor:   siteRules.SalaryFloor,
		cutoff:  math.Inf(1),
	}
	if cfg.TeamCap > 0 {
		s.teamCap = cfg.TeamCap
	}
	if cfg.SalaryFloor > 0 {
		s.floor = cfg.SalaryFloor
	} else if cfg.SalaryFloor < 0 {
		s.floor = 0
	}

	excluded := make(map[int]bool, len(cfg.Excluded))
	for _, id := range cfg.Excluded {
		excluded[id] = true
	}

	pool := cat.Players()
	maxID := 0
	for _, p := range pool {
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	s.weights = make([]float64, maxID+1)
	for _, p := range pool {
		s.weights[p.ID] = p.Projection
		if cfg.UseFieldProjection {
			s.weights[p.ID] = p.FieldProjection
		}
	}

	s.slotPools = make([][]*types.Player, len(siteRules.Slots))
	for i, slot := range siteRules.Slots {
		if pinned, ok := cfg.LockedSlots[i]; ok {
			p, err := cat.ByID(pinned)
			if err != nil {
				return nil, fmt.Errorf("locked slot %d: %w", i, err)
			}
			s.slotPools[i] = []*types.Player{p}
			continue
		}
		for _, p := range pool {
			if excluded[p.ID] {
				continue
			}
			if p.Eligible(slot.AllowedPositions) {
				s.slotPools[i] = append(s.slotPools[i], p)
			}
		}
		if len(s.slotPools[i]) == 0 {
			return nil, fmt.Errorf("%w: no candidates for slot %s", ErrInfeasible, slot.Name)
		}
	}

	s.atLeast = resolveGroups(cat, cfg.AtLeast)
	s.atMost = resolveGroups(cat, cfg.AtMost)
	s.prepare()
	return s, nil
}

// resolveGroups maps named group rules onto catalog IDs, skipping names that
// do not resolve (data error: warn and continue).
func resolveGroups(cat *catalog.Catalog, groups map[string][]string) []groupRule {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rulesOut []groupRule
	for _, key := range keys {
		var count int
		fmt.Sscanf(key, "%d", &count)
		ids := make(map[int]bool)
		for _, name := range groups[key] {
			p, err := cat.ByName(name)
			if err != nil {
				logger.WithComponent("optimizer").WithField("player", name).Warn("Group rule references unknown player")
				continue
			}
			ids[p.ID] = true
		}
		if count > 0 && len(ids) > 0 {
			rulesOut = append(rulesOut, groupRule{count: count, ids: ids})
		}
	}
	return rulesOut
}

// prepare rebuilds candidate ordering and the bound tables for the current
// weights. Ordering is (weight desc, ID asc) so the search is deterministic.
func (s *solver) prepare() {
	n := len(s.slotPools)
	s.maxPerSlot = make([]float64, n)
	s.minSalary = make([]int, n)
	s.maxSalary = make([]int, n)
	for i, pool := range s.slotPools {
		sort.Slice(pool, func(a, b int) bool {
			wa, wb := s.weights[pool[a].ID], s.weights[pool[b].ID]
			if wa != wb {
				return wa > wb
			}
			return pool[a].ID < pool[b].ID
		})
		s.maxPerSlot[i] = s.weights[pool[0].ID]
		s.minSalary[i] = pool[0].Salary
		s.maxSalary[i] = pool[0].Salary
		for _, p := range pool {
			if p.Salary < s.minSalary[i] {
				s.minSalary[i] = p.Salary
			}
			if p.Salary > s.maxSalary[i] {
				s.maxSalary[i] = p.Salary
			}
		}
	}
}

// perturbWeights draws a fresh objective N(projection, stddev * randomness/100)
// per player, then reorders candidate pools for the new weights.
func (s *solver) perturbWeights(gen interface{ NormFloat64() float64 }) {
	for _, p := range s.cat.Players() {
		mean := p.Projection
		if s.cfg.UseFieldProjection {
			mean = p.FieldProjection
		}
		s.weights[p.ID] = gen.NormFloat64()*p.StdDev*(s.cfg.Randomness/100) + mean
	}
	s.prepare()
}

type searchState struct {
	assign     []*types.Player
	salary     int
	objective  float64
	usedIDs    map[int]bool
	usedPerson map[string]bool
	teamCount  map[string]int
	matchCount map[string]int
	lockedLeft map[int]bool
}

// solve finds the maximum-objective lineup under all active constraints and
// cuts. Returns ErrInfeasible when the search space is empty.
func (s *solver) solve() ([]*types.Player, float64, error) {
	s.best = math.Inf(-1)
	s.bestFound = false
	s.bestAssign = nil

	st := &searchState{
		assign:     make([]*types.Player, len(s.slotPools)),
		usedIDs:    make(map[int]bool),
		usedPerson: make(map[string]bool),
		teamCount:  make(map[string]int),
		matchCount: make(map[string]int),
		lockedLeft: make(map[int]bool),
	}
	for _, id := range s.cfg.Locked {
		st.lockedLeft[id] = true
	}

	s.search(st, 0)

	if !s.bestFound {
		return nil, 0, ErrInfeasible
	}
	return s.bestAssign, s.best, nil
}

func (s *solver) search(st *searchState, slot int) {
	if slot == len(s.slotPools) {
		s.acceptLeaf(st)
		return
	}

	// Admissible bound: even taking the best remaining candidate everywhere
	// cannot beat the incumbent.
	bound := st.objective
	for k := slot; k < len(s.slotPools); k++ {
		bound += s.maxPerSlot[k]
	}
	if bound <= s.best {
		return
	}

	// Salary window feasibility for the remaining slots.
	minRest, maxRest := 0, 0
	for k := slot + 1; k < len(s.slotPools); k++ {
		minRest += s.minSalary[k]
		maxRest += s.maxSalary[k]
	}

	remainingSlots := len(s.slotPools) - slot
	if len(st.lockedLeft) > remainingSlots {
		return
	}

	for _, p := range s.slotPools[slot] {
		if st.usedIDs[p.ID] || st.usedPerson[p.PersonKey()] {
			continue
		}
		if st.salary+p.Salary+minRest > s.rules.SalaryCap {
			continue
		}
		if s.floor > 0 && st.salary+p.Salary+maxRest < s.floor {
			continue
		}
		if st.teamCount[p.Team] >= s.teamCap {
			continue
		}
		if limit, ok := s.cfg.MatchupLimits[p.Matchup]; ok && st.matchCount[p.Matchup] >= limit {
			continue
		}
		if s.overAtMost(st, p.ID) {
			continue
		}

		st.assign[slot] = p
		st.salary += p.Salary
		st.objective += s.weights[p.ID]
		st.usedIDs[p.ID] = true
		st.usedPerson[p.PersonKey()] = true
		st.teamCount[p.Team]++
		st.matchCount[p.Matchup]++
		wasLocked := st.lockedLeft[p.ID]
		delete(st.lockedLeft, p.ID)

		s.search(st, slot+1)

		st.assign[slot] = nil
		st.salary -= p.Salary
		st.objective -= s.weights[p.ID]
		delete(st.usedIDs, p.ID)
		delete(st.usedPerson, p.PersonKey())
		st.teamCount[p.Team]--
		st.matchCount[p.Matchup]--
		if st.matchCount[p.Matchup] == 0 {
			delete(st.matchCount, p.Matchup)
		}
		if wasLocked {
			st.lockedLeft[p.ID] = true
		}
	}
}

func (s *solver) overAtMost(st *searchState, id int) bool {
	for _, g := range s.atMost {
		if !g.ids[id] {
			continue
		}
		n := 0
		for used := range st.usedIDs {
			if g.ids[used] {
				n++
			}
		}
		if n >= g.count {
			return true
		}
	}
	return false
}

// acceptLeaf applies the constraints that only make sense on a complete
// lineup, then keeps the incumbent if the objective improved.
func (s *solver) acceptLeaf(st *searchState) {
	if st.objective <= s.best || st.objective > s.cutoff {
		return
	}
	if len(st.lockedLeft) > 0 {
		return
	}
	if s.floor > 0 && st.salary < s.floor {
		return
	}
	if len(st.matchCount) < s.rules.MinMatchups {
		return
	}
	for matchup, need := range s.cfg.MatchupAtLeast {
		if st.matchCount[matchup] < need {
			return
		}
	}
	for _, g := range s.atLeast {
		n := 0
		for used := range st.usedIDs {
			if g.ids[used] {
				n++
			}
		}
		if n < g.count {
			return
		}
	}
	for _, cut := range s.cuts {
		if differences(st.usedIDs, cut) < s.cfg.NumUniques {
			return
		}
	}

	s.best = st.objective
	s.bestFound = true
	s.bestAssign = make([]*types.Player, len(st.assign))
	copy(s.bestAssign, st.assign)
}

// differences counts players of the previous lineup missing from the current.
func differences(used map[int]bool, previous []int) int {
	n := 0
	for _, id := range previous {
		if !used[id] {
			n++
		}
	}
	return n
}

func buildLineup(siteRules *rules.SiteRules, assign []*types.Player, index int, lineupType types.LineupType) *types.Lineup {
	lineup := &types.Lineup{
		ID:        fmt.Sprintf("lineup_%d_%s", index+1, uuid.New().String()[:8]),
		Slots:     make([]string, len(assign)),
		PlayerIDs: make([]int, len(assign)),
		Type:      lineupType,
		DupeCount: 1,
	}
	for i, p := range assign {
		lineup.Slots[i] = siteRules.Slots[i].Name
		lineup.PlayerIDs[i] = p.ID
		lineup.Salary += p.Salary
		lineup.Projection += p.Projection
		lineup.FieldProjection += p.FieldProjection
		lineup.Ceiling += p.Ceiling
	}
	return lineup
}
