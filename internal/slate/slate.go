// Package slate loads the engine's JSON input files: the player slate, the
// contest structure, and live-contest entries. Site CSV exports are converted
// upstream; this is the engine's own format and the one the test fixtures use.
package slate

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/stitts-dev/gpp-engine/internal/catalog"
	"github.com/stitts-dev/gpp-engine/internal/types"
	"github.com/stitts-dev/gpp-engine/pkg/logger"
)

// nameSentinel replaces hyphen-minus in display names so keys survive
// round-trips through site exports that strip or alter hyphens.
const nameSentinel = "#"

// NormalizeName applies the engine's name normalization.
func NormalizeName(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, "-", nameSentinel))
}

// PlayerRow is one slate entry.
type PlayerRow struct {
	Name            string   `json:"name"`
	Team            string   `json:"team"`
	Opponent        string   `json:"opponent"`
	Positions       []string `json:"positions"`
	Salary          int      `json:"salary"`
	Projection      float64  `json:"projection"`
	FieldProjection float64  `json:"field_projection,omitempty"`
	StdDev          float64  `json:"stddev,omitempty"`
	Ceiling         float64  `json:"ceiling,omitempty"`
	Ownership       float64  `json:"ownership"`
	GameTime        string   `json:"game_time,omitempty"`

	Correlations       map[string]float64 `json:"correlations,omitempty"`
	PlayerCorrelations map[string]float64 `json:"player_correlations,omitempty"`
}

// File is the top-level slate document.
type File struct {
	Site    string      `json:"site"`
	Mode    string      `json:"mode"`
	Players []PlayerRow `json:"players"`
}

// Load reads and normalizes a slate file into catalog input players.
func Load(path string) (*File, []types.Player, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading slate: %w", err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, nil, fmt.Errorf("parsing slate: %w", err)
	}

	log := logger.WithComponent("slate")
	players := make([]types.Player, 0, len(f.Players))
	for _, row := range f.Players {
		if row.Salary <= 0 || len(row.Positions) == 0 {
			log.WithField("player", row.Name).Warn("Skipping malformed slate row")
			continue
		}
		p := types.Player{
			Name:               NormalizeName(row.Name),
			Team:               row.Team,
			Opponent:           row.Opponent,
			Positions:          row.Positions,
			Salary:             row.Salary,
			Projection:         row.Projection,
			FieldProjection:    row.FieldProjection,
			StdDev:             row.StdDev,
			Ceiling:            row.Ceiling,
			Ownership:          row.Ownership,
			Correlations:       row.Correlations,
			PlayerCorrelations: row.PlayerCorrelations,
		}
		if row.GameTime != "" {
			if t, err := time.Parse(time.RFC3339, row.GameTime); err == nil {
				p.GameTime = t
			} else {
				log.WithField("player", row.Name).Warn("Unparseable game time, leaving zero")
			}
		}
		players = append(players, p)
	}
	return &f, players, nil
}

// ContestFile is the contest structure document.
type ContestFile struct {
	EntryFee  float64     `json:"entry_fee"`
	FieldSize int         `json:"field_size"`
	Payouts   []PayoutRow `json:"payouts"`
}

// PayoutRow covers a single place or an "a-b" range.
type PayoutRow struct {
	Place  string  `json:"place"`
	Payout float64 `json:"payout"`
}

// LoadContest reads a contest structure into a Tournament.
func LoadContest(path string) (*types.Tournament, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading contest: %w", err)
	}
	var f ContestFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing contest: %w", err)
	}
	tiers := make([]types.PayoutTier, 0, len(f.Payouts))
	for _, row := range f.Payouts {
		lo, hi, err := parsePlace(row.Place)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, types.PayoutTier{MinRank: lo, MaxRank: hi, Payout: row.Payout})
	}
	return types.NewTournament(tiers, f.EntryFee, f.FieldSize)
}

func parsePlace(place string) (int, int, error) {
	place = strings.TrimSpace(place)
	if lo, hi, found := strings.Cut(place, "-"); found {
		a, errA := strconv.Atoi(strings.TrimSpace(lo))
		b, errB := strconv.Atoi(strings.TrimSpace(hi))
		if errA != nil || errB != nil {
			return 0, 0, fmt.Errorf("invalid payout place range %q", place)
		}
		return a, b, nil
	}
	n, err := strconv.Atoi(place)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid payout place %q", place)
	}
	return n, n, nil
}

// EntriesFile holds live-contest entries.
type EntriesFile struct {
	Entries []EntryRow `json:"entries"`
}

// EntryRow mirrors a live-contest export row: per-slot cells hold either the
// literal "LOCKED" (an unlocked seat to refill) or "Name (id)".
type EntryRow struct {
	EntryID  string   `json:"entry_id"`
	UserName string   `json:"user_name"`
	Cells    []string `json:"cells"`
}

var cellPattern = regexp.MustCompile(`^(.*?)\s*\(([^)]+)\)$`)

// LoadEntries parses live entries against the catalog. Entries referencing
// unknown players are excluded with a warning, not fatal.
func LoadEntries(path string, cat *catalog.Catalog, slotCount int) ([]*types.FieldEntry, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading entries: %w", err)
	}
	var f EntriesFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, 0, fmt.Errorf("parsing entries: %w", err)
	}

	log := logger.WithComponent("slate")
	skipped := 0
	var out []*types.FieldEntry
	for _, row := range f.Entries {
		entry, err := parseEntry(row, cat, slotCount)
		if err != nil {
			log.WithFields(map[string]interface{}{
				"entry_id": row.EntryID,
				"error":    err.Error(),
			}).Warn("Excluding live entry")
			skipped++
			continue
		}
		out = append(out, entry)
	}
	return out, skipped, nil
}

func parseEntry(row EntryRow, cat *catalog.Catalog, slotCount int) (*types.FieldEntry, error) {
	if len(row.Cells) != slotCount {
		return nil, fmt.Errorf("entry has %d cells, roster needs %d", len(row.Cells), slotCount)
	}
	lineup := &types.Lineup{
		ID:        "entry_" + row.EntryID,
		Slots:     make([]string, slotCount),
		PlayerIDs: make([]int, slotCount),
		Type:      types.LineupTypeInput,
		DupeCount: 1,
	}
	mask := make([]bool, slotCount)
	for i, cell := range row.Cells {
		cell = strings.TrimSpace(cell)
		if cell == "" || strings.EqualFold(cell, "LOCKED") {
			// "LOCKED" in site exports marks a seat still open for swapping.
			lineup.PlayerIDs[i] = -1
			continue
		}
		name := cell
		if m := cellPattern.FindStringSubmatch(cell); m != nil {
			name = m[1]
		}
		p, err := cat.ByName(NormalizeName(name))
		if err != nil {
			return nil, err
		}
		lineup.PlayerIDs[i] = p.ID
		mask[i] = true
	}
	return &types.FieldEntry{
		Lineup:   lineup,
		EntryID:  row.EntryID,
		UserName: row.UserName,
		LockMask: mask,
	}, nil
}
