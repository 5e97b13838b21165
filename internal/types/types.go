package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Basketball positions and the flex slot labels built from them.
const (
	PositionPG = "PG"
	PositionSG = "SG"
	PositionSF = "SF"
	PositionPF = "PF"
	PositionC  = "C"

	SlotG    = "G"
	SlotF    = "F"
	SlotUTIL = "UTIL"
	SlotCPT  = "CPT"
	SlotMVP  = "MVP"
	SlotSTAR = "STAR"
	SlotPRO  = "PRO"
)

// LineupType tags where a lineup came from.
type LineupType string

const (
	LineupTypeUser      LineupType = "user"
	LineupTypeGenerated LineupType = "generated"
	LineupTypeInput     LineupType = "input"
)

// Player is one catalog entry. Showdown contests materialize the same person
// several times under different roster slots with scaled salary/projection, so
// the identifying key is the (name, roster slot, team) triple, not the name.
type Player struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Team       string   `json:"team"`
	Opponent   string   `json:"opponent"`
	Matchup    string   `json:"matchup"`
	RosterSlot string   `json:"roster_slot"` // slot binding; "" for classic pool entries
	Positions  []string `json:"positions"`   // ordered eligibility, e.g. [PG G UTIL]
	Salary     int      `json:"salary"`
	Multiplier float64  `json:"multiplier"`  // 1.0 except showdown multiplier slots
	BaseID     int      `json:"base_id"`     // UTIL twin for multiplier entries, else own ID

	Projection      float64 `json:"projection"`
	FieldProjection float64 `json:"field_projection"`
	StdDev          float64 `json:"stddev"`
	Ceiling         float64 `json:"ceiling"`
	Ownership       float64 `json:"ownership"` // percent in (0, 100]

	GameTime time.Time `json:"game_time"`

	// Correlations keyed by peer position label ("PG", "Opp C", ...), with an
	// optional per-player override keyed by peer name.
	Correlations       map[string]float64 `json:"correlations,omitempty"`
	PlayerCorrelations map[string]float64 `json:"player_correlations,omitempty"`

	// Live-update state, mutated only by the bayesian updater before the
	// parallel phases start.
	BayesProjection  float64 `json:"bayes_projection"`
	BayesVariance    float64 `json:"bayes_variance"`
	ActualPoints     float64 `json:"actual_points"`
	MinutesRemaining float64 `json:"minutes_remaining"`
}

// PrimaryPosition returns the first real position the player carries.
func (p *Player) PrimaryPosition() string {
	for _, pos := range p.Positions {
		switch pos {
		case PositionPG, PositionSG, PositionSF, PositionPF, PositionC:
			return pos
		}
	}
	if len(p.Positions) > 0 {
		return p.Positions[0]
	}
	return ""
}

// PersonKey identifies the underlying physical person across multiplier twins.
func (p *Player) PersonKey() string {
	return p.Name + "|" + p.Team
}

// Key is the unique catalog key for this entry.
func (p *Player) Key() string {
	return p.Name + "|" + p.RosterSlot + "|" + p.Team
}

// Eligible reports whether the player may legally occupy a slot with the given
// allowed position set.
func (p *Player) Eligible(allowed []string) bool {
	for _, a := range allowed {
		for _, pos := range p.Positions {
			if pos == a {
				return true
			}
		}
	}
	return false
}

// Lineup is an ordered assignment of players to the required slots of a
// contest. Immutable after construction; simulation statistics accumulate in
// the exported counters.
type Lineup struct {
	ID        string     `json:"id"`
	Slots     []string   `json:"slots"`
	PlayerIDs []int      `json:"player_ids"`
	Salary    int        `json:"salary"`
	Type      LineupType `json:"type"`

	Projection      float64 `json:"projection"`
	FieldProjection float64 `json:"field_projection"`
	Ceiling         float64 `json:"ceiling"`

	Wins      float64 `json:"wins"`
	TopK      float64 `json:"top_k"`
	Cashes    float64 `json:"cashes"`
	ROI       float64 `json:"roi"`
	DupeCount int     `json:"dupe_count"`
}

// DedupeKey is order-independent: two lineups with the same player set are the
// same tournament entry regardless of which slot each player fills.
func (l *Lineup) DedupeKey() string {
	ids := make([]int, len(l.PlayerIDs))
	copy(ids, l.PlayerIDs)
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, "-")
}

// FieldEntry is a live-contest entry: a lineup plus its lock state.
type FieldEntry struct {
	Lineup           *Lineup `json:"lineup"`
	EntryID          string  `json:"entry_id"`
	UserName         string  `json:"user_name"`
	LockMask         []bool  `json:"lock_mask"` // true = player locked in that slot
	LockedSalary     int     `json:"locked_salary"`
	LockedProjection float64 `json:"locked_projection"`
	MinutesRemaining float64 `json:"minutes_remaining"`
	Flagged          bool    `json:"flagged"`
}

// PayoutTier is one row of a contest payout schedule, covering finishing
// places MinRank through MaxRank inclusive (1-based).
type PayoutTier struct {
	MinRank int     `json:"min_rank"`
	MaxRank int     `json:"max_rank"`
	Payout  float64 `json:"payout"`
}

// Tournament is a payout schedule plus entry fee and field size.
type Tournament struct {
	Payouts   []float64 `json:"payouts"` // indexed by finishing rank, 0-based
	EntryFee  float64   `json:"entry_fee"`
	FieldSize int       `json:"field_size"`
}

// NewTournament expands payout tiers into a flat per-rank table.
func NewTournament(tiers []PayoutTier, entryFee float64, fieldSize int) (*Tournament, error) {
	maxRank := 0
	for _, t := range tiers {
		if t.MinRank < 1 || t.MaxRank < t.MinRank {
			return nil, fmt.Errorf("invalid payout tier ranks %d-%d", t.MinRank, t.MaxRank)
		}
		if t.MaxRank > maxRank {
			maxRank = t.MaxRank
		}
	}
	payouts := make([]float64, maxRank)
	for _, t := range tiers {
		for r := t.MinRank; r <= t.MaxRank; r++ {
			payouts[r-1] = t.Payout
		}
	}
	return &Tournament{Payouts: payouts, EntryFee: entryFee, FieldSize: fieldSize}, nil
}

// TotalPayout is the configured prize pool.
func (t *Tournament) TotalPayout() float64 {
	sum := 0.0
	for _, p := range t.Payouts {
		sum += p
	}
	return sum
}

// PayoutForRank returns the prize for a 0-based finishing rank.
func (t *Tournament) PayoutForRank(rank int) float64 {
	if rank < 0 || rank >= len(t.Payouts) {
		return 0
	}
	return t.Payouts[rank]
}
