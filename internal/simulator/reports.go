package simulator

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/stitts-dev/gpp-engine/internal/catalog"
	"github.com/stitts-dev/gpp-engine/internal/types"
)

// PlayerExposure aggregates simulation results per player for the exposure
// report.
type PlayerExposure struct {
	PlayerID           int     `json:"player_id"`
	Name               string  `json:"name"`
	Position           string  `json:"position"`
	Team               string  `json:"team"`
	WinPct             float64 `json:"win_pct"`
	TopKPct            float64 `json:"top_k_pct"`
	FieldOwnershipPct  float64 `json:"field_ownership_pct"`
	ProjectedOwnership float64 `json:"projected_ownership_pct"`
	AvgReturn          float64 `json:"avg_return"`
}

// Exposures builds the per-player report from scored lineups. Field ownership
// is the duplicate-weighted share of entries containing the player.
func Exposures(cat *catalog.Catalog, lineups []*types.Lineup, iterations int) []PlayerExposure {
	type agg struct {
		wins, topK, roi float64
		entries         int
		appearances     int
	}
	byPlayer := make(map[int]*agg)
	totalEntries := 0

	for _, l := range lineups {
		totalEntries += l.DupeCount
		for _, id := range l.PlayerIDs {
			a, ok := byPlayer[id]
			if !ok {
				a = &agg{}
				byPlayer[id] = a
			}
			a.wins += l.Wins
			a.topK += l.TopK
			a.roi += l.ROI
			a.entries += l.DupeCount
			a.appearances++
		}
	}

	ids := make([]int, 0, len(byPlayer))
	for id := range byPlayer {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]PlayerExposure, 0, len(ids))
	for _, id := range ids {
		p, err := cat.ByID(id)
		if err != nil {
			continue
		}
		a := byPlayer[id]
		out = append(out, PlayerExposure{
			PlayerID:           id,
			Name:               p.Name,
			Position:           p.PrimaryPosition(),
			Team:               p.Team,
			WinPct:             pct(a.wins, float64(iterations)),
			TopKPct:            pct(a.topK, float64(iterations)),
			FieldOwnershipPct:  pct(float64(a.entries), float64(totalEntries)),
			ProjectedOwnership: p.Ownership,
			AvgReturn:          a.roi / float64(iterations) / float64(a.appearances),
		})
	}
	return out
}

// UserEquity aggregates ROI and finish counts across one user's entries.
type UserEquity struct {
	UserName string  `json:"user_name"`
	Entries  int     `json:"entries"`
	Wins     float64 `json:"wins"`
	TopK     float64 `json:"top_k"`
	Cashes   float64 `json:"cashes"`
	ROI      float64 `json:"roi"`
}

// EquityByUser groups scored live-contest entries by user handle.
func EquityByUser(entries []*types.FieldEntry) []UserEquity {
	byUser := make(map[string]*UserEquity)
	var order []string
	for _, e := range entries {
		if e.Lineup == nil {
			continue
		}
		u, ok := byUser[e.UserName]
		if !ok {
			u = &UserEquity{UserName: e.UserName}
			byUser[e.UserName] = u
			order = append(order, e.UserName)
		}
		u.Entries++
		u.Wins += e.Lineup.Wins
		u.TopK += e.Lineup.TopK
		u.Cashes += e.Lineup.Cashes
		u.ROI += e.Lineup.ROI
	}
	sort.Strings(order)
	out := make([]UserEquity, 0, len(order))
	for _, name := range order {
		out = append(out, *byUser[name])
	}
	return out
}

// ROISummary returns mean and stddev of per-lineup ROI, for the run log.
func ROISummary(lineups []*types.Lineup) (mean, stddev float64) {
	rois := make([]float64, len(lineups))
	for i, l := range lineups {
		rois[i] = l.ROI
	}
	mean = stat.Mean(rois, nil)
	stddev = stat.StdDev(rois, nil)
	return mean, stddev
}

func pct(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den * 100
}
