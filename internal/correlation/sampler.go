package correlation

import (
	"runtime"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/gpp-engine/internal/rng"
	"github.com/stitts-dev/gpp-engine/internal/types"
	"github.com/stitts-dev/gpp-engine/pkg/logger"
)

// SampleSet maps player ID to that player's sampled score across iterations.
type SampleSet map[int][]float64

// SamplerStats summarizes degraded matchups for the run summary line.
type SamplerStats struct {
	Matchups           int
	DegenerateMatchups int
}

// Sampler draws joint fantasy-point outcomes per matchup from a multivariate
// normal whose covariance comes from the position correlation tables.
type Sampler struct {
	Iterations int
	Workers    int
	Seed       int64

	log *logrus.Entry
}

// NewSampler creates a sampler for a fixed iteration count and master seed.
func NewSampler(iterations, workers int, seed int64) *Sampler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Sampler{
		Iterations: iterations,
		Workers:    workers,
		Seed:       seed,
		log:        logger.WithComponent("sampler"),
	}
}

type matchupTask struct {
	index   int
	key     string
	players []*types.Player
}

type matchupResult struct {
	index      int
	samples    SampleSet
	degenerate bool
}

// Sample draws Iterations joint outcomes for every matchup. Matchups are
// independent tasks; each owns a private generator seeded from the master
// seed, and results are merged in matchup-key order so the output is
// deterministic for a fixed seed.
func (s *Sampler) Sample(matchups map[string][]*types.Player) (SampleSet, SamplerStats) {
	keys := make([]string, 0, len(matchups))
	for k := range matchups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tasks := make(chan matchupTask, len(keys))
	results := make([]matchupResult, len(keys))

	var wg sync.WaitGroup
	for w := 0; w < s.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				results[task.index] = s.sampleMatchup(task)
			}
		}()
	}
	for i, key := range keys {
		tasks <- matchupTask{index: i, key: key, players: matchups[key]}
	}
	close(tasks)
	wg.Wait()

	merged := make(SampleSet)
	stats := SamplerStats{Matchups: len(keys)}
	for _, res := range results {
		if res.degenerate {
			stats.DegenerateMatchups++
		}
		for id, row := range res.samples {
			merged[id] = row
		}
	}
	return merged, stats
}

// sampleMatchup draws all iterations for one matchup. A covariance that cannot
// be repaired falls back to degenerate samples pinned at each player's mean.
func (s *Sampler) sampleMatchup(task matchupTask) matchupResult {
	players := samplable(task.players)
	n := len(players)
	out := matchupResult{index: task.index, samples: make(SampleSet, n)}
	if n == 0 {
		return out
	}

	gen := rng.New(s.Seed, task.index)

	transform, err := ProjectPSD(BuildCovariance(players))
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"matchup": task.key,
			"players": n,
		}).Warn("Covariance not PSD after jitter, using degenerate samples")
		for _, p := range players {
			row := make([]float64, s.Iterations)
			for m := range row {
				row[m] = p.BayesProjection
			}
			out.samples[p.ID] = row
		}
		out.degenerate = true
		return out
	}

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, s.Iterations)
	}

	z := make([]float64, n)
	for m := 0; m < s.Iterations; m++ {
		for i := range z {
			z[i] = gen.NormFloat64()
		}
		for i := 0; i < n; i++ {
			x := players[i].BayesProjection
			for j := 0; j < n; j++ {
				x += transform.At(i, j) * z[j]
			}
			rows[i][m] = x
		}
	}
	for i, p := range players {
		out.samples[p.ID] = rows[i]
	}
	return out
}

// samplable filters to base entries with positive projection. Showdown
// multiplier twins are excluded here and derived afterward so a person's
// variants share one realization.
func samplable(players []*types.Player) []*types.Player {
	out := make([]*types.Player, 0, len(players))
	for _, p := range players {
		if p.BaseID != p.ID {
			continue
		}
		if p.Projection <= 0 {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeriveMultiplierSamples fills in sample rows for showdown multiplier twins
// by scaling their base entry's row, preserving correlations exactly.
func DeriveMultiplierSamples(samples SampleSet, players []*types.Player) {
	for _, p := range players {
		if p.BaseID == p.ID {
			continue
		}
		base, ok := samples[p.BaseID]
		if !ok {
			continue
		}
		row := make([]float64, len(base))
		for m, v := range base {
			row[m] = v * p.Multiplier
		}
		samples[p.ID] = row
	}
}
