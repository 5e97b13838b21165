package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/gpp-engine/internal/correlation"
	"github.com/stitts-dev/gpp-engine/internal/types"
)

// Four single-player lineups with constant sample rows, so the finishing
// order is the same every iteration: 0 > 1 > 2 > 3.
func constantFixture(iterations int) ([]*types.Lineup, correlation.SampleSet) {
	lineups := make([]*types.Lineup, 4)
	samples := make(correlation.SampleSet)
	for i, score := range []float64{40, 30, 20, 10} {
		lineups[i] = &types.Lineup{
			ID:        string(rune('a' + i)),
			PlayerIDs: []int{i},
			DupeCount: 1,
		}
		row := make([]float64, iterations)
		for m := range row {
			row[m] = score
		}
		samples[i] = row
	}
	return lineups, samples
}

func testTournament(t *testing.T) *types.Tournament {
	t.Helper()
	tourney, err := types.NewTournament([]types.PayoutTier{
		{MinRank: 1, MaxRank: 1, Payout: 100},
		{MinRank: 2, MaxRank: 2, Payout: 50},
		{MinRank: 3, MaxRank: 3, Payout: 25},
	}, 10, 100)
	require.NoError(t, err)
	return tourney
}

func TestScoreAllocatesPayouts(t *testing.T) {
	const iterations = 8
	lineups, samples := constantFixture(iterations)
	tourney := testTournament(t)

	summary, err := Score(lineups, samples, iterations, tourney, Options{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, iterations, summary.Iterations)
	assert.Equal(t, 4, summary.Entries)
	assert.Equal(t, 175.0, summary.TotalPayout)

	assert.Equal(t, 8.0, lineups[0].Wins)
	assert.Equal(t, 0.0, lineups[1].Wins)
	assert.InDelta(t, 8*(100.0-10), lineups[0].ROI, 1e-9)
	assert.InDelta(t, 8*(50.0-10), lineups[1].ROI, 1e-9)
	assert.InDelta(t, 8*(25.0-10), lineups[2].ROI, 1e-9)
	assert.InDelta(t, 8*(0.0-10), lineups[3].ROI, 1e-9)

	assert.Equal(t, 8.0, lineups[0].Cashes)
	assert.Equal(t, 8.0, lineups[2].Cashes)
	assert.Equal(t, 0.0, lineups[3].Cashes)

	// FieldSize 100 at the default 1% percentile keeps TopK == Wins.
	assert.Equal(t, lineups[0].Wins, lineups[0].TopK)
	assert.Equal(t, 0.0, lineups[1].TopK)
}

func TestScorePayoutConservation(t *testing.T) {
	const iterations = 8
	lineups, samples := constantFixture(iterations)
	tourney := testTournament(t)

	_, err := Score(lineups, samples, iterations, tourney, Options{Workers: 3})
	require.NoError(t, err)

	totalROI := 0.0
	for _, l := range lineups {
		totalROI += l.ROI
	}
	// Every payout rank is occupied, so per iteration the field as a whole
	// takes home the pool minus the fees it paid.
	fees := float64(len(lineups)) * tourney.EntryFee
	assert.InDelta(t, iterations*(tourney.TotalPayout()-fees), totalROI, 1e-9)
}

func TestScoreChunkInvariance(t *testing.T) {
	const iterations = 100
	tourney := testTournament(t)

	run := func(chunkSize int) []*types.Lineup {
		lineups, samples := constantFixture(iterations)
		_, err := Score(lineups, samples, iterations, tourney, Options{Workers: 4, ChunkSize: chunkSize})
		require.NoError(t, err)
		return lineups
	}

	small := run(7)
	big := run(1000)
	for i := range small {
		assert.InDelta(t, big[i].ROI, small[i].ROI, 1e-9, "lineup %d", i)
		assert.Equal(t, big[i].Wins, small[i].Wins)
		assert.Equal(t, big[i].Cashes, small[i].Cashes)
	}
}

func TestScoreDuplicatesShareRankSlice(t *testing.T) {
	const iterations = 4
	lineups, samples := constantFixture(iterations)
	lineups[1].DupeCount = 2
	tourney := testTournament(t)

	summary, err := Score(lineups, samples, iterations, tourney, Options{Workers: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Entries)

	// The duplicated lineup occupies ranks 2 and 3, splitting 50+25 evenly.
	assert.InDelta(t, 4*(37.5-10), lineups[1].ROI, 1e-9)
	// The next lineup is pushed out of the money.
	assert.InDelta(t, 4*(0.0-10), lineups[2].ROI, 1e-9)
	assert.Equal(t, 4.0, lineups[1].Cashes)
	assert.Equal(t, 0.0, lineups[2].Cashes)
}

func TestScoreTieBreaksByIndex(t *testing.T) {
	const iterations = 2
	lineups, samples := constantFixture(iterations)
	// Force a tie between the top two lineups.
	for m := 0; m < iterations; m++ {
		samples[1][m] = 40
	}
	tourney := testTournament(t)

	_, err := Score(lineups, samples, iterations, tourney, Options{Workers: 1})
	require.NoError(t, err)

	assert.Equal(t, 2.0, lineups[0].Wins, "earlier index wins ties")
	assert.Equal(t, 0.0, lineups[1].Wins)
	assert.InDelta(t, 2*(50.0-10), lineups[1].ROI, 1e-9)
}

func TestScoreMissingSamplesScoreAsZero(t *testing.T) {
	const iterations = 3
	lineups, samples := constantFixture(iterations)
	delete(samples, 0)
	tourney := testTournament(t)

	_, err := Score(lineups, samples, iterations, tourney, Options{Workers: 1})
	require.NoError(t, err)

	// With a zero constant row, lineup 0 drops to last place.
	assert.Equal(t, 0.0, lineups[0].Wins)
	assert.Equal(t, 3.0, lineups[1].Wins)
}

func TestScoreRejectsShortRows(t *testing.T) {
	lineups, samples := constantFixture(4)
	samples[2] = samples[2][:2]

	_, err := Score(lineups, samples, 4, testTournament(t), Options{})
	assert.Error(t, err)
}

func TestScoreRejectsEmptyInput(t *testing.T) {
	_, err := Score(nil, correlation.SampleSet{}, 10, testTournament(t), Options{})
	assert.Error(t, err)
}
