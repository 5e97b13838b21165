package bayes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stitts-dev/gpp-engine/internal/types"
)

func TestUpdatePlayerHalftime(t *testing.T) {
	// Halftime, running a point per two minutes above the prior rate.
	p := &types.Player{
		Name:             "Jayson Tatum",
		Projection:       30,
		StdDev:           6,
		ActualPoints:     18,
		MinutesRemaining: 24,
	}
	UpdatePlayer(p)

	assert.InDelta(t, 34.5, p.BayesProjection, 1e-9)
	assert.InDelta(t, 9.0, p.BayesVariance, 1e-9)
}

func TestUpdatePlayerGameOver(t *testing.T) {
	p := &types.Player{
		Projection:       30,
		StdDev:           6,
		ActualPoints:     18,
		MinutesRemaining: 0,
	}
	UpdatePlayer(p)

	assert.Equal(t, 18.0, p.BayesProjection)
	assert.Equal(t, 0.0, p.BayesVariance)
}

func TestUpdatePlayerPregameUntouched(t *testing.T) {
	p := &types.Player{
		Projection:       30,
		StdDev:           6,
		MinutesRemaining: 48,
		BayesProjection:  30,
		BayesVariance:    36,
	}
	UpdatePlayer(p)

	assert.Equal(t, 30.0, p.BayesProjection)
	assert.Equal(t, 36.0, p.BayesVariance)
}

func TestUpdatePlayerTrackingPrior(t *testing.T) {
	// A player tracking the prior exactly keeps the prior mean.
	p := &types.Player{
		Projection:       32,
		StdDev:           8,
		ActualPoints:     8, // 32 * 12/48
		MinutesRemaining: 36,
	}
	UpdatePlayer(p)

	assert.InDelta(t, 32.0, p.BayesProjection, 1e-9)
	assert.Less(t, p.BayesVariance, 64.0, "any observation tightens the prior")
}

func TestUpdateAll(t *testing.T) {
	players := []*types.Player{
		{ID: 0, Team: "BOS", Projection: 30, StdDev: 6},
		{ID: 1, Team: "BOS", Projection: 20, StdDev: 5},
		{ID: 2, Team: "DEN", Projection: 40, StdDev: 7, BayesProjection: 40, BayesVariance: 49},
	}
	minutes := map[string]float64{"BOS": 24}
	actuals := map[int]float64{0: 18, 1: 4}

	n := UpdateAll(players, minutes, actuals)

	assert.Equal(t, 2, n)
	assert.InDelta(t, 34.5, players[0].BayesProjection, 1e-9)
	assert.Equal(t, 24.0, players[1].MinutesRemaining)
	assert.Equal(t, 40.0, players[2].BayesProjection, "teams without live state keep the pregame posterior")
}
