// Package simulator scores every lineup across the sampled outcome matrix,
// ranks them per iteration, and allocates payouts. Iterations are split into
// chunks processed by a worker pool; chunk accumulators are purely additive,
// so totals are identical regardless of chunking.
package simulator

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/gpp-engine/internal/catalog"
	"github.com/stitts-dev/gpp-engine/internal/correlation"
	"github.com/stitts-dev/gpp-engine/internal/types"
	"github.com/stitts-dev/gpp-engine/pkg/logger"
)

// Options control scoring.
type Options struct {
	Workers       int
	TopPercentile float64 // elite-rank threshold as a fraction of field size
	ChunkSize     int
}

// Summary reports scoring totals for the run summary line.
type Summary struct {
	Iterations  int
	Entries     int // total entries including duplicates
	Lineups     int // unique lineups scored
	TotalPayout float64
	TimeMs      int64
}

type accumulator struct {
	wins   []float64
	topK   []float64
	cashes []float64
	roi    []float64
}

func newAccumulator(n int) *accumulator {
	return &accumulator{
		wins:   make([]float64, n),
		topK:   make([]float64, n),
		cashes: make([]float64, n),
		roi:    make([]float64, n),
	}
}

func (a *accumulator) merge(b *accumulator) {
	for i := range a.wins {
		a.wins[i] += b.wins[i]
		a.topK[i] += b.topK[i]
		a.cashes[i] += b.cashes[i]
		a.roi[i] += b.roi[i]
	}
}

// Score runs the tournament across all sampled iterations and writes the
// accumulated statistics back onto each lineup. Duplicate lineups are scored
// once; the prize of the rank slice they occupy is divided evenly across the
// duplicate count.
func Score(lineups []*types.Lineup, samples correlation.SampleSet, iterations int, tournament *types.Tournament, opts Options) (*Summary, error) {
	start := time.Now()
	log := logger.WithComponent("scorer")

	if len(lineups) == 0 {
		return nil, fmt.Errorf("no lineups to score")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.TopPercentile <= 0 {
		opts.TopPercentile = 0.01
	}

	rows, err := resolveRows(lineups, samples, iterations)
	if err != nil {
		return nil, err
	}

	topThreshold := int(float64(tournament.FieldSize)*opts.TopPercentile + 0.999999)
	if topThreshold < 1 {
		topThreshold = 1
	}

	type chunk struct{ start, end int }
	var chunks []chunk
	for s := 0; s < iterations; s += opts.ChunkSize {
		e := s + opts.ChunkSize
		if e > iterations {
			e = iterations
		}
		chunks = append(chunks, chunk{s, e})
	}

	results := make([]*accumulator, len(chunks))
	tasks := make(chan int, len(chunks))
	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ci := range tasks {
				acc := newAccumulator(len(lineups))
				scoreChunk(acc, lineups, rows, chunks[ci].start, chunks[ci].end, tournament, topThreshold)
				results[ci] = acc
			}
		}()
	}
	for ci := range chunks {
		tasks <- ci
	}
	close(tasks)
	wg.Wait()

	total := newAccumulator(len(lineups))
	for _, acc := range results {
		total.merge(acc)
	}

	entries := 0
	for i, l := range lineups {
		l.Wins = total.wins[i]
		l.TopK = total.topK[i]
		l.Cashes = total.cashes[i]
		l.ROI = total.roi[i]
		entries += l.DupeCount
	}

	summary := &Summary{
		Iterations:  iterations,
		Entries:     entries,
		Lineups:     len(lineups),
		TotalPayout: tournament.TotalPayout(),
		TimeMs:      time.Since(start).Milliseconds(),
	}
	log.WithFields(logrus.Fields{
		"iterations": iterations,
		"lineups":    len(lineups),
		"entries":    entries,
		"time_ms":    summary.TimeMs,
	}).Info("Tournament scoring completed")
	return summary, nil
}

// resolveRows maps each lineup to its players' sample rows once, so the hot
// loop is free of map lookups. Players without a sampled row (degenerate or
// zero-projection entries) contribute a constant row at their posterior mean.
func resolveRows(lineups []*types.Lineup, samples correlation.SampleSet, iterations int) ([][][]float64, error) {
	constants := make(map[int][]float64)
	rows := make([][][]float64, len(lineups))
	for i, l := range lineups {
		rows[i] = make([][]float64, len(l.PlayerIDs))
		for j, id := range l.PlayerIDs {
			if row, ok := samples[id]; ok {
				if len(row) < iterations {
					return nil, fmt.Errorf("sample row for player %d has %d iterations, need %d", id, len(row), iterations)
				}
				rows[i][j] = row
				continue
			}
			if row, ok := constants[id]; ok {
				rows[i][j] = row
				continue
			}
			row := make([]float64, iterations)
			constants[id] = row
			rows[i][j] = row
		}
	}
	return rows, nil
}

// scoreChunk accumulates one iteration range.
func scoreChunk(acc *accumulator, lineups []*types.Lineup, rows [][][]float64, start, end int, tournament *types.Tournament, topThreshold int) {
	n := len(lineups)
	scores := make([]float64, n)
	order := make([]int, n)

	for m := start; m < end; m++ {
		for i := range lineups {
			s := 0.0
			for _, row := range rows[i] {
				s += row[m]
			}
			scores[i] = s
		}
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool {
			if scores[order[a]] != scores[order[b]] {
				return scores[order[a]] > scores[order[b]]
			}
			return order[a] < order[b]
		})

		cursor := 0
		for _, idx := range order {
			dupes := lineups[idx].DupeCount
			slicePayout := 0.0
			for r := cursor; r < cursor+dupes; r++ {
				slicePayout += tournament.PayoutForRank(r)
			}
			perEntry := slicePayout / float64(dupes)

			if cursor == 0 {
				acc.wins[idx]++
			}
			if cursor < topThreshold {
				acc.topK[idx]++
			}
			if cursor < len(tournament.Payouts) {
				acc.cashes[idx]++
			}
			acc.roi[idx] += perEntry - tournament.EntryFee

			cursor += dupes
		}
	}
}

// ResolveConstants backfills constant rows at the posterior mean for players
// missing from the sample set, so duplicate and degenerate entries still score.
func ResolveConstants(lineups []*types.Lineup, samples correlation.SampleSet, cat *catalog.Catalog, iterations int) {
	for _, l := range lineups {
		for _, id := range l.PlayerIDs {
			if _, ok := samples[id]; ok {
				continue
			}
			p, err := cat.ByID(id)
			if err != nil {
				continue
			}
			row := make([]float64, iterations)
			for m := range row {
				row[m] = p.BayesProjection
			}
			samples[id] = row
		}
	}
}
