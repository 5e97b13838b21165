package correlation

import "github.com/stitts-dev/gpp-engine/internal/types"

// Default position-to-position correlation calibration. Rows are keyed by a
// player's primary position; columns by the peer's position label, with
// "Opp " prefixed for the other side of the matchup. The table is symmetric
// and is only a default: config-level overrides and per-player overrides both
// take precedence.
var defaultCorrelations = map[string]map[string]float64{
	types.PositionPG: {
		types.PositionPG: -0.1324, types.PositionSG: -0.1324,
		types.PositionSF: -0.1037, types.PositionPF: -0.1037,
		types.PositionC: -0.1278,
		"Opp PG":        0.0454, "Opp SG": 0.0454,
		"Opp SF": 0.0321, "Opp PF": 0.0321,
		"Opp C": 0.0236,
	},
	types.PositionSG: {
		types.PositionPG: -0.1324, types.PositionSG: -0.1324,
		types.PositionSF: -0.1037, types.PositionPF: -0.1037,
		types.PositionC: -0.1278,
		"Opp PG":        0.0454, "Opp SG": 0.0454,
		"Opp SF": 0.0321, "Opp PF": 0.0321,
		"Opp C": 0.0236,
	},
	types.PositionSF: {
		types.PositionPG: -0.1037, types.PositionSG: -0.1037,
		types.PositionSF: -0.0812, types.PositionPF: -0.0812,
		types.PositionC: -0.1022,
		"Opp PG":        0.0321, "Opp SG": 0.0321,
		"Opp SF": 0.0287, "Opp PF": 0.0287,
		"Opp C": 0.0212,
	},
	types.PositionPF: {
		types.PositionPG: -0.1037, types.PositionSG: -0.1037,
		types.PositionSF: -0.0812, types.PositionPF: -0.0812,
		types.PositionC: -0.1022,
		"Opp PG":        0.0321, "Opp SG": 0.0321,
		"Opp SF": 0.0287, "Opp PF": 0.0287,
		"Opp C": 0.0212,
	},
	types.PositionC: {
		types.PositionPG: -0.1278, types.PositionSG: -0.1278,
		types.PositionSF: -0.1022, types.PositionPF: -0.1022,
		types.PositionC: -0.1231,
		"Opp PG":        0.0236, "Opp SG": 0.0236,
		"Opp SF": 0.0212, "Opp PF": 0.0212,
		"Opp C": 0.0113,
	},
}

// DefaultsFor returns a copy of the default correlation row for a position,
// with config-level overrides applied on top. Unknown positions get an empty
// row, which the sampler treats as uncorrelated.
func DefaultsFor(position string, overrides map[string]map[string]float64) map[string]float64 {
	row := make(map[string]float64)
	for label, v := range defaultCorrelations[position] {
		row[label] = v
	}
	for label, v := range overrides[position] {
		row[label] = v
	}
	return row
}
