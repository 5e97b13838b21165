// Package rules holds the site-parameterized roster structure: required slots,
// slot eligibility, salary caps, and team/matchup limits.
package rules

import (
	"fmt"

	"github.com/stitts-dev/gpp-engine/internal/types"
)

// Slot is a labeled seat in a lineup with an eligibility set over positions
// and, for showdown contests, a salary/score multiplier.
type Slot struct {
	Name             string
	AllowedPositions []string
	Multiplier       float64
}

// SiteRules bundles the structural constraints for one site and contest mode.
type SiteRules struct {
	Site string // "draftkings" or "fanduel"
	Mode string // "classic" or "showdown"

	Slots           []Slot
	SalaryCap       int
	SalaryFloor     int // realism floor; 0 means unset
	SalaryTolerance int // field realism band width below the cap
	TeamCap         int
	MinMatchups     int
}

var anyPosition = []string{types.PositionPG, types.PositionSG, types.PositionSF, types.PositionPF, types.PositionC}

// ForSite resolves the slot topology and caps for a site/mode pair.
func ForSite(site, mode string) (*SiteRules, error) {
	switch mode {
	case "classic":
		return classicRules(site)
	case "showdown":
		return showdownRules(site)
	}
	return nil, fmt.Errorf("unknown contest mode %q", mode)
}

func classicRules(site string) (*SiteRules, error) {
	switch site {
	case "draftkings":
		return &SiteRules{
			Site: site,
			Mode: "classic",
			Slots: []Slot{
				{Name: types.PositionPG, AllowedPositions: []string{types.PositionPG}, Multiplier: 1},
				{Name: types.PositionSG, AllowedPositions: []string{types.PositionSG}, Multiplier: 1},
				{Name: types.PositionSF, AllowedPositions: []string{types.PositionSF}, Multiplier: 1},
				{Name: types.PositionPF, AllowedPositions: []string{types.PositionPF}, Multiplier: 1},
				{Name: types.PositionC, AllowedPositions: []string{types.PositionC}, Multiplier: 1},
				{Name: types.SlotG, AllowedPositions: []string{types.PositionPG, types.PositionSG}, Multiplier: 1},
				{Name: types.SlotF, AllowedPositions: []string{types.PositionSF, types.PositionPF}, Multiplier: 1},
				{Name: types.SlotUTIL, AllowedPositions: anyPosition, Multiplier: 1},
			},
			SalaryCap:       50000,
			SalaryFloor:     49000,
			SalaryTolerance: 1000,
			TeamCap:         4,
			MinMatchups:     2,
		}, nil
	case "fanduel":
		double := func(name string) []Slot {
			s := Slot{Name: name, AllowedPositions: []string{name}, Multiplier: 1}
			return []Slot{s, s}
		}
		slots := append(double(types.PositionPG), double(types.PositionSG)...)
		slots = append(slots, double(types.PositionSF)...)
		slots = append(slots, double(types.PositionPF)...)
		slots = append(slots, Slot{Name: types.PositionC, AllowedPositions: []string{types.PositionC}, Multiplier: 1})
		return &SiteRules{
			Site:            site,
			Mode:            "classic",
			Slots:           slots,
			SalaryCap:       60000,
			SalaryTolerance: 2000,
			TeamCap:         4,
			MinMatchups:     1,
		}, nil
	}
	return nil, fmt.Errorf("unknown site %q", site)
}

func showdownRules(site string) (*SiteRules, error) {
	switch site {
	case "draftkings":
		slots := []Slot{
			{Name: types.SlotCPT, AllowedPositions: []string{types.SlotCPT}, Multiplier: 1.5},
		}
		for i := 0; i < 5; i++ {
			slots = append(slots, Slot{Name: types.SlotUTIL, AllowedPositions: []string{types.SlotUTIL}, Multiplier: 1})
		}
		return &SiteRules{
			Site:            site,
			Mode:            "showdown",
			Slots:           slots,
			SalaryCap:       50000,
			SalaryTolerance: 1000,
			TeamCap:         5,
			MinMatchups:     1,
		}, nil
	case "fanduel":
		return &SiteRules{
			Site: site,
			Mode: "showdown",
			Slots: []Slot{
				{Name: types.SlotMVP, AllowedPositions: []string{types.SlotMVP}, Multiplier: 2},
				{Name: types.SlotSTAR, AllowedPositions: []string{types.SlotSTAR}, Multiplier: 1.5},
				{Name: types.SlotPRO, AllowedPositions: []string{types.SlotPRO}, Multiplier: 1.2},
				{Name: types.SlotUTIL, AllowedPositions: []string{types.SlotUTIL}, Multiplier: 1},
				{Name: types.SlotUTIL, AllowedPositions: []string{types.SlotUTIL}, Multiplier: 1},
			},
			SalaryCap:       60000,
			SalaryTolerance: 2000,
			TeamCap:         4,
			MinMatchups:     1,
		}, nil
	}
	return nil, fmt.Errorf("unknown site %q", site)
}

// MultiplierSlots returns the roster-slot labels a showdown pool materializes
// for each person, UTIL first so multiplier twins can point at their base row.
func (r *SiteRules) MultiplierSlots() []Slot {
	if r.Mode != "showdown" {
		return nil
	}
	seen := make(map[string]bool)
	out := []Slot{{Name: types.SlotUTIL, Multiplier: 1}}
	seen[types.SlotUTIL] = true
	for _, s := range r.Slots {
		if !seen[s.Name] {
			out = append(out, Slot{Name: s.Name, Multiplier: s.Multiplier})
			seen[s.Name] = true
		}
	}
	return out
}

// MinSlotSalary returns, per slot index, the cheapest eligible salary in the
// pool. Used by samplers to prune dead-end partial lineups.
func (r *SiteRules) MinSlotSalary(pool []*types.Player) []int {
	mins := make([]int, len(r.Slots))
	for i, slot := range r.Slots {
		mins[i] = r.SalaryCap
		for _, p := range pool {
			if p.Eligible(slot.AllowedPositions) && p.Salary < mins[i] {
				mins[i] = p.Salary
			}
		}
	}
	return mins
}

// ValidateLineup checks every structural invariant: slot count and
// eligibility, salary band, one slot per player, no multiplier twins of the
// same person, team cap, and minimum distinct matchups.
func (r *SiteRules) ValidateLineup(players []*types.Player) error {
	if len(players) != len(r.Slots) {
		return fmt.Errorf("lineup has %d players, need %d", len(players), len(r.Slots))
	}

	salary := 0
	seenIDs := make(map[int]bool)
	seenPersons := make(map[string]bool)
	teamCounts := make(map[string]int)
	matchups := make(map[string]bool)

	for i, p := range players {
		if p == nil {
			return fmt.Errorf("slot %s is empty", r.Slots[i].Name)
		}
		if !p.Eligible(r.Slots[i].AllowedPositions) {
			return fmt.Errorf("player %s cannot fill slot %s", p.Name, r.Slots[i].Name)
		}
		if seenIDs[p.ID] {
			return fmt.Errorf("player %s fills more than one slot", p.Name)
		}
		if seenPersons[p.PersonKey()] {
			return fmt.Errorf("person %s appears twice via multiplier twins", p.Name)
		}
		seenIDs[p.ID] = true
		seenPersons[p.PersonKey()] = true
		salary += p.Salary
		teamCounts[p.Team]++
		matchups[p.Matchup] = true
	}

	if salary > r.SalaryCap {
		return fmt.Errorf("salary %d exceeds cap %d", salary, r.SalaryCap)
	}
	if r.SalaryFloor > 0 && salary < r.SalaryFloor {
		return fmt.Errorf("salary %d below floor %d", salary, r.SalaryFloor)
	}
	for team, n := range teamCounts {
		if n > r.TeamCap {
			return fmt.Errorf("team %s has %d players, cap is %d", team, n, r.TeamCap)
		}
	}
	if len(matchups) < r.MinMatchups {
		return fmt.Errorf("lineup covers %d matchups, need %d", len(matchups), r.MinMatchups)
	}
	return nil
}
