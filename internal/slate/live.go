package slate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/stitts-dev/gpp-engine/internal/catalog"
	"github.com/stitts-dev/gpp-engine/pkg/logger"
)

// LiveFile is the abstract live-scores feed: minutes remaining per team and
// actual fantasy points per player name.
type LiveFile struct {
	MinutesRemaining map[string]float64 `json:"minutes_remaining"`
	ActualPoints     map[string]float64 `json:"actual_points"`
}

// LoadLive reads the live feed and resolves player names to catalog IDs.
func LoadLive(path string, cat *catalog.Catalog) (map[string]float64, map[int]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading live feed: %w", err)
	}
	var f LiveFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, nil, fmt.Errorf("parsing live feed: %w", err)
	}

	log := logger.WithComponent("slate")
	actuals := make(map[int]float64, len(f.ActualPoints))
	for name, pts := range f.ActualPoints {
		p, err := cat.ByName(NormalizeName(name))
		if err != nil {
			log.WithField("player", name).Warn("Live feed references unknown player")
			continue
		}
		actuals[p.ID] = pts
	}
	return f.MinutesRemaining, actuals, nil
}
