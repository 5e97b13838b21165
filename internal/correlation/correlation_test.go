package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/stitts-dev/gpp-engine/internal/types"
)

func matchupPlayer(id int, name, pos, team string, proj, stddev float64) *types.Player {
	opp := "NYK"
	if team == "NYK" {
		opp = "BOS"
	}
	return &types.Player{
		ID: id, Name: name, Team: team, Opponent: opp, Matchup: "BOS@NYK",
		Positions: []string{pos}, Multiplier: 1, BaseID: id,
		Projection: proj, StdDev: stddev,
		BayesProjection: proj, BayesVariance: stddev * stddev,
		Correlations: DefaultsFor(pos, nil),
	}
}

func TestDefaultsFor(t *testing.T) {
	row := DefaultsFor("PG", nil)
	assert.InDelta(t, -0.1324, row["PG"], 1e-9)
	assert.Positive(t, row["Opp PG"])

	overridden := DefaultsFor("PG", map[string]map[string]float64{
		"PG": {"C": 0.2},
	})
	assert.InDelta(t, 0.2, overridden["C"], 1e-9)
	assert.InDelta(t, row["PG"], overridden["PG"], 1e-9, "untouched labels keep defaults")

	assert.Empty(t, DefaultsFor("KICKER", nil))
}

func TestPairCorrelation(t *testing.T) {
	pg := matchupPlayer(0, "Jalen Brunson", "PG", "NYK", 40, 8)
	sg := matchupPlayer(1, "Derrick White", "SG", "BOS", 28, 6)
	c := matchupPlayer(2, "Kristaps Porzingis", "C", "BOS", 30, 7)

	assert.Equal(t, 1.0, PairCorrelation(pg, pg))
	assert.InDelta(t, 0.0236, PairCorrelation(pg, c), 1e-9, "opposing center boosts a guard")
	assert.InDelta(t, -0.1278, PairCorrelation(sg, c), 1e-9, "teammates compete for possessions")

	pg.PlayerCorrelations = map[string]float64{"Kristaps Porzingis": 0.5}
	assert.InDelta(t, 0.5, PairCorrelation(pg, c), 1e-9, "player override wins")
	assert.InDelta(t, 0.5, PairCorrelation(c, pg), 1e-9, "override applies in both directions")
}

func TestBuildCovariance(t *testing.T) {
	a := matchupPlayer(0, "A", "PG", "BOS", 40, 8)
	b := matchupPlayer(1, "B", "SG", "BOS", 28, 6)
	cov := BuildCovariance([]*types.Player{a, b})

	assert.InDelta(t, 64.0, cov.At(0, 0), 1e-9)
	assert.InDelta(t, 36.0, cov.At(1, 1), 1e-9)
	assert.InDelta(t, -0.1324*8*6, cov.At(0, 1), 1e-9)
	assert.Equal(t, cov.At(0, 1), cov.At(1, 0))
}

func TestProjectPSDRepairsIndefiniteMatrix(t *testing.T) {
	// Pairwise correlations near +-1 in a triangle cannot all hold at once;
	// the raw matrix has a negative eigenvalue.
	cov := mat.NewSymDense(3, []float64{
		1, 0.95, -0.95,
		0.95, 1, 0.95,
		-0.95, 0.95, 1,
	})
	eigs, err := Eigenvalues(cov)
	require.NoError(t, err)
	minEig := eigs[0]
	for _, v := range eigs {
		if v < minEig {
			minEig = v
		}
	}
	require.Negative(t, minEig, "fixture must actually be indefinite")

	transform, err := ProjectPSD(cov)
	require.NoError(t, err)

	// A * At is PSD by construction; verify it stayed close to the input.
	var repaired mat.Dense
	repaired.Mul(transform, transform.T())
	sym := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			sym.SetSym(i, j, repaired.At(i, j))
		}
	}
	eigs, err = Eigenvalues(sym)
	require.NoError(t, err)
	for _, v := range eigs {
		assert.GreaterOrEqual(t, v, -1e-9)
	}
}

func TestProjectPSDKeepsValidMatrix(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{64, -6.4, -6.4, 36})

	transform, err := ProjectPSD(cov)
	require.NoError(t, err)

	var repaired mat.Dense
	repaired.Mul(transform, transform.T())
	assert.InDelta(t, 64.0, repaired.At(0, 0), 1e-8)
	assert.InDelta(t, -6.4, repaired.At(0, 1), 1e-8)
	assert.InDelta(t, 36.0, repaired.At(1, 1), 1e-8)
}

func TestSamplerDeterministic(t *testing.T) {
	matchups := map[string][]*types.Player{
		"BOS@NYK": {
			matchupPlayer(0, "A", "PG", "BOS", 40, 8),
			matchupPlayer(1, "B", "SG", "BOS", 28, 6),
			matchupPlayer(2, "C", "C", "NYK", 33, 7),
		},
	}

	first, stats := NewSampler(256, 2, 42).Sample(matchups)
	second, _ := NewSampler(256, 2, 42).Sample(matchups)

	assert.Equal(t, 1, stats.Matchups)
	assert.Zero(t, stats.DegenerateMatchups)
	assert.Equal(t, first, second)

	different, _ := NewSampler(256, 2, 43).Sample(matchups)
	assert.NotEqual(t, first, different)
}

func TestSamplerMeansTrackProjections(t *testing.T) {
	players := []*types.Player{
		matchupPlayer(0, "A", "PG", "BOS", 40, 8),
		matchupPlayer(1, "B", "C", "NYK", 30, 6),
	}
	samples, _ := NewSampler(20000, 4, 7).Sample(map[string][]*types.Player{"BOS@NYK": players})

	require.Len(t, samples[0], 20000)
	assert.InDelta(t, 40.0, stat.Mean(samples[0], nil), 0.5)
	assert.InDelta(t, 30.0, stat.Mean(samples[1], nil), 0.5)
	assert.InDelta(t, 8.0, stat.StdDev(samples[0], nil), 0.5)
}

func TestSamplerSkipsZeroProjection(t *testing.T) {
	inactive := matchupPlayer(1, "Scratch", "SG", "BOS", 0, 0)
	samples, _ := NewSampler(16, 1, 42).Sample(map[string][]*types.Player{
		"BOS@NYK": {matchupPlayer(0, "A", "PG", "BOS", 40, 8), inactive},
	})

	assert.Contains(t, samples, 0)
	assert.NotContains(t, samples, 1)
}

func TestDeriveMultiplierSamples(t *testing.T) {
	base := matchupPlayer(0, "Nikola Jokic", "C", "BOS", 55, 11)
	captain := matchupPlayer(1, "Nikola Jokic", "C", "BOS", 82.5, 16.5)
	captain.BaseID = 0
	captain.Multiplier = 1.5

	samples := SampleSet{0: []float64{50, 60, 40}}
	DeriveMultiplierSamples(samples, []*types.Player{base, captain})

	require.Contains(t, samples, 1)
	assert.Equal(t, []float64{75, 90, 60}, samples[1])
}
