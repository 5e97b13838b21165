// Package bayes rewrites player projections and variances mid-game from
// actual points and minutes remaining. It runs on the coordinator before any
// parallel phase starts; the catalog is read-only afterwards.
package bayes

import (
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/gpp-engine/internal/types"
	"github.com/stitts-dev/gpp-engine/pkg/logger"
)

// GameMinutes is regulation length per player.
const GameMinutes = 48.0

// UpdatePlayer computes the minutes-remaining posterior for one player.
//
// The prior points-per-minute is blended with the observed rate, weighted by
// elapsed share of the game, and projected over the remaining minutes; the
// posterior is actual points plus that remainder. Variance of the remaining
// and elapsed segments attenuates with their share of the game and combines
// by inverse-variance weighting.
func UpdatePlayer(p *types.Player) {
	remaining := p.MinutesRemaining
	if remaining >= GameMinutes || remaining < 0 {
		return
	}
	actual := p.ActualPoints

	if remaining == 0 {
		p.BayesProjection = actual
		p.BayesVariance = 0
		return
	}

	elapsed := GameMinutes - remaining
	priorPPM := p.Projection / GameMinutes
	actualPPM := actual / elapsed
	scale := elapsed / GameMinutes

	weightedPPM := actualPPM*scale + priorPPM*(1-scale)
	p.BayesProjection = actual + weightedPPM*remaining

	priorVar := p.StdDev * p.StdDev
	remainingVar := priorVar * (remaining / GameMinutes)
	actualVar := priorVar * (elapsed / GameMinutes)
	if remainingVar > 0 && actualVar > 0 {
		p.BayesVariance = 1 / (1/remainingVar + 1/actualVar)
	} else {
		p.BayesVariance = remainingVar
	}
}

// UpdateAll applies the posterior to every player whose team has partial game
// progress. minutesRemaining maps team to remaining game minutes; teams absent
// from the map are untouched (their games have not started).
func UpdateAll(players []*types.Player, minutesRemaining map[string]float64, actuals map[int]float64) int {
	log := logger.WithComponent("bayes")
	updated := 0
	for _, p := range players {
		remaining, live := minutesRemaining[p.Team]
		if !live || remaining >= GameMinutes {
			continue
		}
		p.MinutesRemaining = remaining
		if pts, ok := actuals[p.ID]; ok {
			p.ActualPoints = pts
		}
		UpdatePlayer(p)
		updated++
	}
	if updated > 0 {
		log.WithFields(logrus.Fields{
			"players_updated": updated,
			"live_teams":      len(minutesRemaining),
		}).Info("Applied live projection updates")
	}
	return updated
}
