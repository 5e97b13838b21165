package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/stitts-dev/gpp-engine/internal/bayes"
	"github.com/stitts-dev/gpp-engine/internal/cache"
	"github.com/stitts-dev/gpp-engine/internal/catalog"
	"github.com/stitts-dev/gpp-engine/internal/correlation"
	"github.com/stitts-dev/gpp-engine/internal/field"
	"github.com/stitts-dev/gpp-engine/internal/optimizer"
	"github.com/stitts-dev/gpp-engine/internal/rng"
	"github.com/stitts-dev/gpp-engine/internal/rules"
	"github.com/stitts-dev/gpp-engine/internal/simulator"
	"github.com/stitts-dev/gpp-engine/internal/slate"
	"github.com/stitts-dev/gpp-engine/internal/swap"
	"github.com/stitts-dev/gpp-engine/internal/types"
	"github.com/stitts-dev/gpp-engine/pkg/config"
	"github.com/stitts-dev/gpp-engine/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		// Configuration errors are the only fatal class: abort before work.
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger("", cfg.IsDevelopment())
	runID := uuid.New().String()[:8]
	runLog := logger.WithRunContext(runID, cfg.Site)

	if cfg.SlatePath == "" || cfg.ContestPath == "" {
		runLog.Error("SLATE_PATH and CONTEST_PATH are required")
		os.Exit(1)
	}

	if err := run(cfg, runLog); err != nil {
		runLog.WithField("error", err.Error()).Error("Run failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, runLog *logrus.Entry) error {
	siteRules, err := rules.ForSite(cfg.Site, cfg.Mode)
	if err != nil {
		return err
	}

	_, players, err := slate.Load(cfg.SlatePath)
	if err != nil {
		return err
	}
	cat := catalog.New(players, siteRules, catalog.Options{
		ProjectionMinimum:    cfg.ProjectionMinimum,
		DefaultVariance:      cfg.DefaultVariance,
		CorrelationOverrides: cfg.CorrelationOverrides,
	})

	tournament, err := slate.LoadContest(cfg.ContestPath)
	if err != nil {
		return err
	}

	seed := rng.MasterSeed(cfg.RandomSeed)
	infeasibleSolves := 0

	optimal, err := optimizer.OptimalScore(cat, siteRules, optimizer.Config{
		TeamCap:     cfg.GlobalTeamLimit,
		SalaryFloor: -1,
	})
	if err != nil {
		return fmt.Errorf("optimal solve: %w", err)
	}

	// Path A: user lineups from the optimizer.
	userLineups, err := optimizer.Optimize(cat, siteRules, optimizer.Config{
		NumLineups:     cfg.NumLineups,
		NumUniques:     cfg.NumUniques,
		Randomness:     cfg.Randomness,
		Epsilon:        cfg.DiversityEpsilon,
		Seed:           seed,
		TeamCap:        cfg.GlobalTeamLimit,
		MatchupLimits:  cfg.MatchupLimits,
		MatchupAtLeast: cfg.MatchupAtLeast,
		AtLeast:        cfg.AtLeast,
		AtMost:         cfg.AtMost,
		SalaryFloor:    cfg.MinLineupSalary,
	})
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	if len(userLineups.Lineups) < cfg.NumLineups {
		infeasibleSolves = cfg.NumLineups - len(userLineups.Lineups)
	}

	livePath := viper.GetString("LIVE_PATH")

	resultCache := openCache(cfg)
	defer resultCache.Close()
	cacheKey := cache.Key(inputsHash(cfg.SlatePath, cfg.ContestPath, livePath, cfg.EntriesPath), seed, cfg.NumIterations)
	ctx := context.Background()
	if cached, ok := resultCache.Get(ctx, cacheKey); ok {
		runLog.WithField("cached_at", cached.CachedAt).Info("Serving cached simulation result")
		printReports(runLog, cached.Summary, cached.Lineups, cached.Exposures, nil)
		return nil
	}

	// Live state mutates projections before any parallel phase starts.
	if livePath != "" {
		minutes, actuals, err := slate.LoadLive(livePath, cat)
		if err != nil {
			return err
		}
		bayes.UpdateAll(cat.Players(), minutes, actuals)
	}

	gen := field.NewGenerator(cat, siteRules, field.Config{
		FieldSize:        cfg.FieldSize,
		MaxPctOffOptimal: cfg.MaxPctOffOptimal,
		TeamCap:          cfg.GlobalTeamLimit,
		OverlapLimit:     cfg.OverlapLimit,
		Seed:             seed,
		Workers:          cfg.SimulationWorkers,
	})

	// Live-contest entries get their unlocked slots regenerated first.
	var entries []*types.FieldEntry
	skippedEntries := 0
	if cfg.EntriesPath != "" {
		entries, skippedEntries, err = slate.LoadEntries(cfg.EntriesPath, cat, len(siteRules.Slots))
		if err != nil {
			return err
		}
		planner := swap.NewPlanner(cat, siteRules, gen, swap.Config{
			MaxAttempts:       cfg.MaxSwapAttempts,
			BackoffFactor:     cfg.BackoffFactor,
			MinSalaryFloorPct: cfg.MinSalaryFloorPct,
			MaxPctOffOptimal:  cfg.MaxPctOffOptimal,
			Seed:              seed,
		})
		planner.Plan(entries, optimal)
	}

	// Path B: the synthetic opponent field.
	fieldLineups, fieldStats := gen.Generate(optimal)

	lineups := mergeLineups(userLineups.Lineups, entries, fieldLineups)

	sampler := correlation.NewSampler(cfg.NumIterations, cfg.SimulationWorkers, seed)
	samples, samplerStats := sampler.Sample(cat.Matchups())
	correlation.DeriveMultiplierSamples(samples, cat.Players())
	simulator.ResolveConstants(lineups, samples, cat, cfg.NumIterations)

	summary, err := simulator.Score(lineups, samples, cfg.NumIterations, tournament, simulator.Options{
		Workers:       cfg.SimulationWorkers,
		TopPercentile: cfg.TopPercentile,
	})
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}

	exposures := simulator.Exposures(cat, lineups, cfg.NumIterations)
	resultCache.Set(ctx, cacheKey, &cache.Entry{
		Summary:   summary,
		Lineups:   lineups,
		Exposures: exposures,
	})

	printReports(runLog, summary, lineups, exposures, entries)

	runLog.WithFields(logrus.Fields{
		"skipped_players":     cat.Skipped(),
		"skipped_entries":     skippedEntries,
		"infeasible_solves":   infeasibleSolves,
		"degenerate_matchups": samplerStats.DegenerateMatchups,
		"failed_field_draws":  fieldStats.Failed,
	}).Info("Run summary")
	return nil
}

// mergeLineups combines user, live-entry, and generated lineups, merging
// duplicate player sets into one scored entry with a summed duplicate count.
func mergeLineups(user []*types.Lineup, entries []*types.FieldEntry, generated []*types.Lineup) []*types.Lineup {
	byKey := make(map[string]*types.Lineup)
	var out []*types.Lineup
	add := func(l *types.Lineup) {
		key := l.DedupeKey()
		if seen, ok := byKey[key]; ok {
			seen.DupeCount += l.DupeCount
			return
		}
		byKey[key] = l
		out = append(out, l)
	}
	for _, l := range user {
		add(l)
	}
	// Flagged partials still score: their open slots hold -1 and resolve to
	// zero-contribution rows. Only entries with no lineup at all are dropped.
	for _, e := range entries {
		if e.Lineup != nil && len(e.Lineup.PlayerIDs) > 0 {
			add(e.Lineup)
		}
	}
	for _, l := range generated {
		add(l)
	}
	return out
}

func openCache(cfg *config.Config) *cache.ResultCache {
	if !cfg.CacheEnabled {
		return nil
	}
	return cache.New(cfg.RedisURL, cfg.CacheTTL)
}

// inputsHash digests every input file that shapes the simulation result, so
// an updated live snapshot or entry sheet never replays a stale cache hit.
// Unset or unreadable paths contribute nothing.
func inputsHash(paths ...string) string {
	h := sha256.New()
	for _, path := range paths {
		if path == "" {
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		h.Write([]byte(path))
		h.Write(raw)
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

func printReports(runLog *logrus.Entry, summary *simulator.Summary, lineups []*types.Lineup, exposures []simulator.PlayerExposure, entries []*types.FieldEntry) {
	meanROI, stddevROI := simulator.ROISummary(lineups)
	runLog.WithFields(logrus.Fields{
		"iterations":   summary.Iterations,
		"lineups":      summary.Lineups,
		"entries":      summary.Entries,
		"total_payout": summary.TotalPayout,
		"mean_roi":     meanROI,
		"stddev_roi":   stddevROI,
		"exposures":    len(exposures),
	}).Info("Simulation complete")

	for _, u := range simulator.EquityByUser(entries) {
		runLog.WithFields(logrus.Fields{
			"user":    u.UserName,
			"entries": u.Entries,
			"wins":    u.Wins,
			"top_k":   u.TopK,
			"cashes":  u.Cashes,
			"roi":     u.ROI,
		}).Info("User equity")
	}
}
