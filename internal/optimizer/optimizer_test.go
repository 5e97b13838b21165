package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/gpp-engine/internal/catalog"
	"github.com/stitts-dev/gpp-engine/internal/rules"
	"github.com/stitts-dev/gpp-engine/internal/types"
)

// Fifteen players, three per position, all at the same salary so the optimum
// is the projection-greedy fill: 45+44+43+42+41 starters, 40 at G, 38 at F,
// 39 at UTIL, for 332 total.
func testPool() []types.Player {
	mk := func(name, pos, team, opp string, proj float64) types.Player {
		return types.Player{
			Name: name, Team: team, Opponent: opp,
			Positions: []string{pos}, Salary: 6000, Projection: proj,
		}
	}
	return []types.Player{
		mk("PG One", "PG", "GSW", "MEM", 45),
		mk("PG Two", "PG", "MEM", "GSW", 40),
		mk("PG Three", "PG", "BOS", "NYK", 35),
		mk("SG One", "SG", "MEM", "GSW", 44),
		mk("SG Two", "SG", "BOS", "NYK", 39),
		mk("SG Three", "SG", "NYK", "BOS", 34),
		mk("SF One", "SF", "BOS", "NYK", 43),
		mk("SF Two", "SF", "NYK", "BOS", 38),
		mk("SF Three", "SF", "GSW", "MEM", 33),
		mk("PF One", "PF", "NYK", "BOS", 42),
		mk("PF Two", "PF", "GSW", "MEM", 37),
		mk("PF Three", "PF", "MEM", "GSW", 32),
		mk("C One", "C", "GSW", "MEM", 41),
		mk("C Two", "C", "MEM", "GSW", 36),
		mk("C Three", "C", "BOS", "NYK", 31),
	}
}

func testSetup(t *testing.T) (*catalog.Catalog, *rules.SiteRules) {
	t.Helper()
	r, err := rules.ForSite("draftkings", "classic")
	require.NoError(t, err)
	cat := catalog.New(testPool(), r, catalog.Options{DefaultVariance: 0.25})
	require.Len(t, cat.Players(), 15)
	return cat, r
}

func lineupPlayers(t *testing.T, cat *catalog.Catalog, l *types.Lineup) []*types.Player {
	t.Helper()
	players := make([]*types.Player, len(l.PlayerIDs))
	for i, id := range l.PlayerIDs {
		p, err := cat.ByID(id)
		require.NoError(t, err)
		players[i] = p
	}
	return players
}

func TestOptimizeFindsTrueOptimum(t *testing.T) {
	cat, r := testSetup(t)

	res, err := Optimize(cat, r, Config{NumLineups: 1, SalaryFloor: -1})
	require.NoError(t, err)
	require.Len(t, res.Lineups, 1)

	assert.InDelta(t, 332.0, res.Lineups[0].Projection, 1e-9)
	assert.InDelta(t, 332.0, res.OptimalScore, 1e-9)
	assert.Equal(t, 48000, res.Lineups[0].Salary)
}

func TestOptimizeDeterministicEnumeration(t *testing.T) {
	cat, r := testSetup(t)

	noFloor := *r
	noFloor.SalaryFloor = 0

	res, err := Optimize(cat, r, Config{NumLineups: 5, SalaryFloor: -1})
	require.NoError(t, err)
	require.Len(t, res.Lineups, 5)

	for i, l := range res.Lineups {
		require.NoError(t, noFloor.ValidateLineup(lineupPlayers(t, cat, l)))
		if i > 0 {
			gap := res.Lineups[i-1].Projection - l.Projection
			assert.GreaterOrEqual(t, gap, 0.01-1e-9, "lineup %d not separated", i)
		}
	}

	again, err := Optimize(cat, r, Config{NumLineups: 5, SalaryFloor: -1})
	require.NoError(t, err)
	for i := range res.Lineups {
		assert.Equal(t, res.Lineups[i].PlayerIDs, again.Lineups[i].PlayerIDs)
	}
}

func TestOptimizeNumUniques(t *testing.T) {
	cat, r := testSetup(t)

	res, err := Optimize(cat, r, Config{NumLineups: 3, NumUniques: 3, SalaryFloor: -1})
	require.NoError(t, err)
	require.Len(t, res.Lineups, 3)

	sets := make([]map[int]bool, len(res.Lineups))
	for i, l := range res.Lineups {
		sets[i] = make(map[int]bool)
		for _, id := range l.PlayerIDs {
			sets[i][id] = true
		}
	}
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			diff := 0
			for id := range sets[i] {
				if !sets[j][id] {
					diff++
				}
			}
			assert.GreaterOrEqual(t, diff, 3, "lineups %d and %d overlap too much", i, j)
		}
	}
}

func TestOptimizeStochasticDiversity(t *testing.T) {
	cat, r := testSetup(t)
	cfg := Config{NumLineups: 12, Randomness: 100, Seed: 42, SalaryFloor: -1}

	res, err := Optimize(cat, r, cfg)
	require.NoError(t, err)
	require.Len(t, res.Lineups, 12)

	keys := make(map[string]bool)
	for _, l := range res.Lineups {
		keys[l.DedupeKey()] = true
		// Even the weakest legal lineup in this pool projects 277.
		assert.GreaterOrEqual(t, l.Projection, 277.0)
	}
	assert.Len(t, keys, 12)

	again, err := Optimize(cat, r, cfg)
	require.NoError(t, err)
	for i := range res.Lineups {
		assert.Equal(t, res.Lineups[i].PlayerIDs, again.Lineups[i].PlayerIDs, "same seed must reproduce lineup %d", i)
	}
}

func TestOptimizeLockedAndExcluded(t *testing.T) {
	cat, r := testSetup(t)

	worstCenter, err := cat.ByName("C Three")
	require.NoError(t, err)
	bestPG, err := cat.ByName("PG One")
	require.NoError(t, err)

	res, err := Optimize(cat, r, Config{
		NumLineups:  2,
		Locked:      []int{worstCenter.ID},
		Excluded:    []int{bestPG.ID},
		SalaryFloor: -1,
	})
	require.NoError(t, err)

	for _, l := range res.Lineups {
		assert.Contains(t, l.PlayerIDs, worstCenter.ID)
		assert.NotContains(t, l.PlayerIDs, bestPG.ID)
	}
}

func TestOptimizeLockedSlots(t *testing.T) {
	cat, r := testSetup(t)

	pinned, err := cat.ByName("PG Three")
	require.NoError(t, err)

	res, err := Optimize(cat, r, Config{
		NumLineups:  1,
		LockedSlots: map[int]int{0: pinned.ID},
		SalaryFloor: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, pinned.ID, res.Lineups[0].PlayerIDs[0])
}

func TestOptimizeTeamCapOverride(t *testing.T) {
	cat, r := testSetup(t)

	res, err := Optimize(cat, r, Config{NumLineups: 3, TeamCap: 2, SalaryFloor: -1})
	require.NoError(t, err)

	for _, l := range res.Lineups {
		counts := make(map[string]int)
		for _, p := range lineupPlayers(t, cat, l) {
			counts[p.Team]++
		}
		for team, n := range counts {
			assert.LessOrEqual(t, n, 2, "team %s over the cap", team)
		}
	}
}

func TestOptimizeGroupRules(t *testing.T) {
	cat, r := testSetup(t)

	res, err := Optimize(cat, r, Config{
		NumLineups:  1,
		AtMost:      map[string][]string{"1#0": {"PG One", "SG One"}},
		AtLeast:     map[string][]string{"2#0": {"C Three", "SF Three"}},
		SalaryFloor: -1,
	})
	require.NoError(t, err)

	ids := func(names ...string) map[int]bool {
		out := make(map[int]bool)
		for _, name := range names {
			p, err := cat.ByName(name)
			require.NoError(t, err)
			out[p.ID] = true
		}
		return out
	}
	capped := ids("PG One", "SG One")
	wanted := ids("C Three", "SF Three")

	nCapped, nWanted := 0, 0
	for _, id := range res.Lineups[0].PlayerIDs {
		if capped[id] {
			nCapped++
		}
		if wanted[id] {
			nWanted++
		}
	}
	assert.LessOrEqual(t, nCapped, 1)
	assert.Equal(t, 2, nWanted)
}

func TestOptimizeMatchupLimits(t *testing.T) {
	cat, r := testSetup(t)

	res, err := Optimize(cat, r, Config{
		NumLineups:    2,
		MatchupLimits: map[string]int{"GSW@MEM": 3},
		SalaryFloor:   -1,
	})
	require.NoError(t, err)

	for _, l := range res.Lineups {
		n := 0
		for _, p := range lineupPlayers(t, cat, l) {
			if p.Matchup == "GSW@MEM" {
				n++
			}
		}
		assert.LessOrEqual(t, n, 3)
	}
}

func TestOptimizeSpansTwoMatchups(t *testing.T) {
	// The eight highest projections all come from BOS@NYK, so the greedy fill
	// would cover a single game. The solver has to pull in one of the weak
	// GSW players instead, and must keep doing so on every enumerated lineup.
	mk := func(name, pos, team, opp string, proj float64) types.Player {
		return types.Player{
			Name: name, Team: team, Opponent: opp,
			Positions: []string{pos}, Salary: 6000, Projection: proj,
		}
	}
	pool := []types.Player{
		mk("BOS PG", "PG", "BOS", "NYK", 50),
		mk("BOS SG", "SG", "BOS", "NYK", 49),
		mk("BOS SF", "SF", "BOS", "NYK", 48),
		mk("BOS PF", "PF", "BOS", "NYK", 47),
		mk("NYK C", "C", "NYK", "BOS", 46),
		mk("NYK PG", "PG", "NYK", "BOS", 45),
		mk("NYK SG", "SG", "NYK", "BOS", 44),
		mk("NYK SF", "SF", "NYK", "BOS", 43),
		mk("GSW PG", "PG", "GSW", "MEM", 20),
		mk("GSW C", "C", "GSW", "MEM", 19),
	}
	r, err := rules.ForSite("draftkings", "classic")
	require.NoError(t, err)
	cat := catalog.New(pool, r, catalog.Options{DefaultVariance: 0.25})

	res, err := Optimize(cat, r, Config{NumLineups: 3, SalaryFloor: -1})
	require.NoError(t, err)
	require.NotEmpty(t, res.Lineups)

	for i, l := range res.Lineups {
		games := make(map[string]bool)
		for _, p := range lineupPlayers(t, cat, l) {
			games[p.Matchup] = true
		}
		assert.GreaterOrEqual(t, len(games), r.MinMatchups, "lineup %d covers one game", i)
	}
	// Best legal fill swaps NYK SG out of UTIL for GSW PG: 372 - 44 + 20.
	assert.InDelta(t, 348.0, res.Lineups[0].Projection, 1e-9)
}

func TestOptimizeInfeasibleFloor(t *testing.T) {
	cat, r := testSetup(t)

	// Every lineup in this pool costs exactly 48000.
	_, err := Optimize(cat, r, Config{NumLineups: 1, SalaryFloor: 48500})
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestOptimalScore(t *testing.T) {
	cat, r := testSetup(t)

	score, err := OptimalScore(cat, r, Config{SalaryFloor: -1})
	require.NoError(t, err)
	assert.InDelta(t, 332.0, score, 1e-9)
}
